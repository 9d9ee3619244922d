package vidrender

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/vidrender/ra/ratest"
)

func swapLogger(t testing.TB, l *slog.Logger) {
	t.Helper()
	prev := Logger()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(prev) })
}

func TestLoggerInstall(t *testing.T) {
	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name    string
		set     *slog.Logger
		enabled bool
	}{
		{"nil restores silence", nil, false},
		{"custom", custom, true},
		{"custom then nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			swapLogger(t, tt.set)
			l := Logger()
			if l == nil {
				t.Fatal("Logger() = nil")
			}
			for _, level := range []slog.Level{slog.LevelDebug, slog.LevelError} {
				if got := l.Enabled(context.Background(), level); got != tt.enabled {
					t.Errorf("Enabled(%v) = %v, want %v", level, got, tt.enabled)
				}
			}
			if tt.set != nil && l != tt.set {
				t.Error("Logger() != installed logger")
			}
		})
	}

	swapLogger(t, custom)
	Logger().Info("plane uploaded", "plane", 0)
	if !strings.Contains(buf.String(), "plane uploaded") {
		t.Errorf("custom logger output = %q, want the record", buf.String())
	}
}

func TestNewUsesDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	swapLogger(t, slog.New(slog.NewTextHandler(&buf, nil)))

	New(ratest.New(), Config{})
	out := buf.String()
	if !strings.Contains(out, "renderer: initialized") {
		t.Errorf("New() did not log through the default logger, got: %s", out)
	}
	if !strings.Contains(out, "module=vo/gpu") {
		t.Errorf("renderer records lack the module attribute, got: %s", out)
	}
}

func TestConfigLoggerOverridesDefault(t *testing.T) {
	var def, own bytes.Buffer
	swapLogger(t, slog.New(slog.NewTextHandler(&def, nil)))

	New(ratest.New(), Config{Logger: slog.New(slog.NewTextHandler(&own, nil))})
	if def.Len() != 0 {
		t.Errorf("default logger received output: %s", def.String())
	}
	if own.Len() == 0 {
		t.Error("Config.Logger received no output")
	}
}

func TestLoggerConcurrentSwap(t *testing.T) {
	swapLogger(t, nil)
	loggers := []*slog.Logger{nil, slog.New(slog.NewTextHandler(io.Discard, nil))}

	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				SetLogger(loggers[i%4/2])
				return
			}
			if Logger() == nil {
				t.Error("Logger() = nil during swap")
			}
		}()
	}
	wg.Wait()
}

func TestLogSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogSource(log, slog.LevelDebug, "first\nsecond\n")
	out := buf.String()
	if n := strings.Count(out, "\n"); n != 2 {
		t.Errorf("LogSource() wrote %d records, want 2:\n%s", n, out)
	}
	for _, want := range []string{"[  1] first", "[  2] second"} {
		if !strings.Contains(out, want) {
			t.Errorf("LogSource() output lacks %q:\n%s", want, out)
		}
	}
}

func TestLogSourceDisabledLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	LogSource(log, slog.LevelDebug, "hidden")
	LogSource(nil, slog.LevelError, "nil logger")
	if buf.Len() != 0 {
		t.Errorf("LogSource() below the handler level wrote %q", buf.String())
	}
}

func BenchmarkLogSourceDisabled(b *testing.B) {
	src := "uniform float a;\nuniform float b;\n"
	b.ReportAllocs()
	for b.Loop() {
		LogSource(Logger(), slog.LevelDebug, src)
	}
}
