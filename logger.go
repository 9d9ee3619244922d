package vidrender

import (
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/vidrender/internal/logx"
)

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(logx.Nop())
}

// SetLogger configures the default logger for renderers created without
// Config.Logger. By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used:
//   - [slog.LevelDebug]: reallocations, scaler reinitialization, pass plans
//   - [slog.LevelInfo]: lifecycle events (configure, device selection)
//   - [slog.LevelWarn]: degradations (insufficient scaler, busy staging buffer)
//   - [slog.LevelError]: allocation failures
//
// Example:
//
//	vidrender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	loggerPtr.Store(logx.OrNop(l))
}

// Logger returns the current default logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
