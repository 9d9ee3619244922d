package main

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/vidrender"
	"github.com/gogpu/vidrender/timer"
)

func report(w io.Writer, r *vidrender.Renderer, frames int, elapsed time.Duration) {
	p := message.NewPrinter(language.English)

	fps := 0.0
	if elapsed > 0 {
		fps = float64(frames) / elapsed.Seconds()
	}
	p.Fprintf(w, "%d frames in %v (%.1f fps)\n", frames, elapsed.Round(time.Millisecond), fps)

	st := r.UploadStats()
	p.Fprintf(w, "uploads: %d direct, %d staged, %d busy, %d ring allocations\n",
		st.Direct, st.Staged, st.Busy, st.Reallocs)

	p.Fprintf(w, "last frame plan:\n")
	for _, pass := range r.Plan() {
		p.Fprintf(w, "  %s\n", pass.String())
	}

	d := r.PerfData()
	if d.Render.Count == 0 {
		p.Fprintf(w, "GPU timers unavailable\n")
		return
	}
	p.Fprintf(w, "%-24s %8s %12s %12s %12s\n", "pass", "samples", "last", "avg", "peak")
	row := func(name string, pp timer.PassPerf) {
		p.Fprintf(w, "%-24s %8d %12v %12v %12v\n", name, pp.Count, pp.Last, pp.Avg, pp.Peak)
	}
	row("upload", d.Upload)
	row("render", d.Render)
	for _, pp := range d.Passes {
		row(pp.Name, pp.PassPerf)
	}
}
