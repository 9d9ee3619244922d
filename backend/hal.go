//go:build !nogpu

package backend

import (
	"log/slog"

	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/vidrender/backend/halra"
)

func init() {
	Register(BackendNoop, func(log *slog.Logger) (Device, error) {
		return halra.OpenBackend(noop.API{}, log)
	})
}
