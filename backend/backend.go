package backend

import (
	"errors"
	"log/slog"

	"github.com/gogpu/vidrender/ra"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or none can be opened.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Backend names.
const (
	BackendNoop = "noop"
)

// Device is an opened graphics device. Close releases the device and
// everything the backend created for it; resources allocated through the
// ra.RA methods must be destroyed first.
type Device interface {
	ra.RA
	Close()
}

// Factory opens a device. log may be nil.
type Factory func(log *slog.Logger) (Device, error)
