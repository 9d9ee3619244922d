package scaler

import "fmt"

// Fallback is the policy for units whose kernel exceeds the filter size
// limits.
type Fallback int

const (
	// FallbackDirect skips the LUT; the unit samples the kernel directly.
	FallbackDirect Fallback = iota

	// FallbackClamp builds a LUT at the largest filter size with the
	// kernel's filter scale reduced to fit.
	FallbackClamp
)

var fallbackNames = [...]string{
	FallbackDirect: "direct",
	FallbackClamp:  "clamp",
}

// Valid reports whether f is a known policy.
func (f Fallback) Valid() bool { return f >= 0 && int(f) < len(fallbackNames) }

// String returns the policy name.
func (f Fallback) String() string {
	if f.Valid() {
		return fallbackNames[f]
	}
	return fmt.Sprintf("Fallback(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Fallback) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("%w: fallback %d", ErrInvalidConfig, int(f))
	}
	return []byte(fallbackNames[f]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Fallback) UnmarshalText(b []byte) error {
	for i, n := range fallbackNames {
		if n == string(b) {
			*f = Fallback(i)
			return nil
		}
	}
	return fmt.Errorf("%w: fallback %q", ErrInvalidConfig, b)
}
