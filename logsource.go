package vidrender

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogSource logs src one line per record, each prefixed with its 1-based
// line number, so that messages referring to line numbers can be matched
// against the dump.
func LogSource(log *slog.Logger, level slog.Level, src string) {
	if log == nil || !log.Enabled(context.Background(), level) {
		return
	}
	src = strings.TrimSuffix(src, "\n")
	for i, line := range strings.Split(src, "\n") {
		log.Log(context.Background(), level, fmt.Sprintf("[%3d] %s", i+1, line))
	}
}
