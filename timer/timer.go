// Package timer aggregates GPU timer query results per render pass.
//
// A Pool brackets one unit of GPU work per Start/Stop pair. Results arrive
// asynchronously; Measure folds every result that has become available
// into a rolling history without ever waiting for the GPU.
//
// A nil *Pool is valid: every method is a no-op and Measure returns a zero
// PassPerf. Create returns nil on devices without timer queries.
package timer

import (
	"errors"
	"time"

	"github.com/gogpu/vidrender/ra"
)

// SampleCount is the size of the rolling history.
const SampleCount = 256

// Timer pool errors.
var (
	// ErrAlreadyRunning is returned by Start while a bracket is open.
	ErrAlreadyRunning = errors.New("timer: already running")

	// ErrNotRunning is returned by Stop without a matching Start.
	ErrNotRunning = errors.New("timer: not running")
)

// PassPerf is a snapshot of one pool's history.
type PassPerf struct {
	Last  time.Duration
	Avg   time.Duration
	Peak  time.Duration
	Count int

	// Samples holds the last Count samples, oldest first.
	Samples []time.Duration
}

// Pool owns one timer query and its measurement history.
type Pool struct {
	ra    ra.RA
	timer *ra.Timer

	running bool

	samples [SampleCount]time.Duration
	idx     int
	count   int
	sum     time.Duration
	peak    time.Duration
}

// Create returns a pool backed by a new timer query, or nil if the device
// cannot provide one.
func Create(r ra.RA) *Pool {
	if r == nil || !r.Caps().Has(ra.CapTimers) {
		return nil
	}
	t, err := r.TimerCreate()
	if err != nil || t == nil {
		return nil
	}
	return &Pool{ra: r, timer: t}
}

// Destroy releases the timer query. The pool must not be used afterwards.
func (p *Pool) Destroy() {
	if p == nil || p.timer == nil {
		return
	}
	p.ra.TimerDestroy(p.timer)
	p.timer = nil
	p.running = false
}

// Start opens a measurement bracket.
func (p *Pool) Start() error {
	if p == nil || p.timer == nil {
		return nil
	}
	if p.running {
		return ErrAlreadyRunning
	}
	p.ra.TimerStart(p.timer)
	p.running = true
	return nil
}

// Stop closes the bracket opened by Start and collects ready results.
func (p *Pool) Stop() error {
	if p == nil || p.timer == nil {
		return nil
	}
	if !p.running {
		return ErrNotRunning
	}
	p.ra.TimerStop(p.timer)
	p.running = false
	p.poll()
	return nil
}

// Running reports whether a bracket is open.
func (p *Pool) Running() bool { return p != nil && p.running }

// Measure collects ready results and returns the current snapshot. If no
// result became ready, the snapshot equals the previous one.
func (p *Pool) Measure() PassPerf {
	if p == nil {
		return PassPerf{}
	}
	if p.timer != nil {
		p.poll()
	}
	res := PassPerf{
		Peak:    p.peak,
		Count:   p.count,
		Samples: make([]time.Duration, p.count),
	}
	start := p.idx - p.count + SampleCount
	for i := range res.Samples {
		res.Samples[i] = p.samples[(start+i)%SampleCount]
	}
	if p.count > 0 {
		res.Last = res.Samples[p.count-1]
		res.Avg = p.sum / time.Duration(p.count)
	}
	return res
}

func (p *Pool) poll() {
	for {
		d, ok := p.ra.TimerResult(p.timer)
		if !ok {
			return
		}
		p.record(d)
	}
}

func (p *Pool) record(d time.Duration) {
	p.sum -= p.samples[p.idx]
	p.samples[p.idx] = d
	p.idx = (p.idx + 1) % SampleCount
	p.count = min(p.count+1, SampleCount)
	p.sum += d
	p.peak = max(p.peak, d)
}
