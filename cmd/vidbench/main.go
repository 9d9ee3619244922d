// Command vidbench renders synthetic video through the render core and
// reports upload and per-pass statistics.
//
// Usage:
//
//	vidbench -config opts.toml -src 1920x1080 -dst 2560x1440 -frames 240
//	vidbench -backend noop -config opts.yaml -watch -frames 0
package main

import (
	"context"
	"errors"
	"flag"
	"image"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/gogpu/vidrender"
	"github.com/gogpu/vidrender/backend"
	"github.com/gogpu/vidrender/options"
	"github.com/gogpu/vidrender/ra"
)

type benchConfig struct {
	backend string
	config  string
	frames  int
	src     string
	dst     string
	jitter  int
	watch   bool
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

// realMain runs the tool and returns the process exit code. Deferred
// cleanup has finished by the time it returns.
func realMain(args []string, stdout, stderr io.Writer) int {
	var (
		cfg     benchConfig
		verbose bool
	)
	fs := flag.NewFlagSet("vidbench", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.backend, "backend", "", "graphics backend; empty picks the first that opens")
	fs.StringVar(&cfg.config, "config", "", "options file (.toml, .yaml, .yml)")
	fs.IntVar(&cfg.frames, "frames", 240, "frames to render; 0 runs until interrupted")
	fs.StringVar(&cfg.src, "src", "1920x1080", "source image size")
	fs.StringVar(&cfg.dst, "dst", "2560x1440", "target size")
	fs.IntVar(&cfg.jitter, "jitter", 0, "shrink the destination by up to this many pixels, cycling per frame")
	fs.BoolVar(&cfg.watch, "watch", false, "reload the options file when it changes")
	fs.BoolVar(&verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	vidrender.SetLogger(log)
	defer vidrender.SetLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, stdout); err != nil {
		log.Error("vidbench failed", "err", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg benchConfig, log *slog.Logger, stdout io.Writer) error {
	opts, err := loadOptions(cfg.config)
	if err != nil {
		return err
	}
	sw, sh, err := parseSize(cfg.src)
	if err != nil {
		return err
	}
	dw, dh, err := parseSize(cfg.dst)
	if err != nil {
		return err
	}
	if cfg.jitter < 0 || cfg.jitter >= min(dw, dh) {
		return errors.New("vidbench: jitter must be smaller than the target")
	}

	dev, err := openDevice(cfg.backend, log)
	if err != nil {
		return err
	}
	defer dev.Close()

	r := vidrender.New(dev, vidrender.Config{Logger: log})
	defer r.Close()
	if err := r.UpdateOptions(opts); err != nil {
		return err
	}
	img := vidrender.ImageParams{
		W: sw, H: sh,
		Planes: []vidrender.PlaneParams{
			{Format: "r8"},
			{Format: "r8", ShiftX: 1, ShiftY: 1},
			{Format: "r8", ShiftX: 1, ShiftY: 1},
		},
		Primaries: options.PrimBT709,
		Transfer:  options.TransferBT1886,
	}
	if err := r.Configure(img); err != nil {
		return err
	}

	target, err := dev.TexCreate(ra.TexParams{
		Dimensions: 2,
		W:          dw,
		H:          dh,
		Format:     ra.FindNamedFormat(dev, "rgba8"),
		RenderDst:  true,
		Label:      "target",
	})
	if err != nil {
		return err
	}
	defer dev.TexDestroy(target)

	var updates <-chan *options.Options
	if cfg.watch && cfg.config != "" {
		if updates, err = watchOptions(ctx, cfg.config, log); err != nil {
			return err
		}
	}

	frame := synthFrame(img)
	start := time.Now()
	n := 0
loop:
	for cfg.frames == 0 || n < cfg.frames {
		select {
		case <-ctx.Done():
			break loop
		case o, ok := <-updates:
			if !ok {
				updates = nil
				break
			}
			if err := r.UpdateOptions(o); err != nil {
				log.Warn("options rejected", "err", err)
			}
		default:
		}
		if cfg.jitter > 0 {
			j := n % (cfg.jitter + 1)
			r.Resize(image.Rect(0, 0, sw, sh), image.Rect(0, 0, dw-j, dh-j))
		}
		frame.PTS = float64(n) / 24
		if err := r.RenderFrame(frame, ra.FBODst{Tex: target}); err != nil {
			return err
		}
		n++
	}
	report(stdout, r, n, time.Since(start))
	return nil
}

func openDevice(name string, log *slog.Logger) (backend.Device, error) {
	if name != "" {
		return backend.Open(name, log)
	}
	dev, name, err := backend.OpenDefault(log)
	if err != nil {
		return nil, err
	}
	log.Info("using backend", "name", name, "available", backend.Available())
	return dev, nil
}

// synthFrame returns a 4:2:0 frame with a luma ramp and neutral chroma.
func synthFrame(img vidrender.ImageParams) *vidrender.Frame {
	f := &vidrender.Frame{
		DisplaySynced: true,
		FrameDuration: 1.0 / 24,
		VSyncInterval: 1.0 / 60,
	}
	for i, p := range img.Planes {
		w, h := p.Size(img.W, img.H)
		data := make([]byte, w*h)
		for y := range h {
			for x := range w {
				if i == 0 {
					data[y*w+x] = byte((x + y) * 255 / max(1, w+h-2))
				} else {
					data[y*w+x] = 128
				}
			}
		}
		f.Planes = append(f.Planes, vidrender.FramePlane{Data: data, Stride: w})
	}
	return f
}
