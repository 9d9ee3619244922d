package scaler

import (
	"fmt"
	"math"
	"slices"

	"github.com/gogpu/vidrender/kernel"
)

// Fun selects a kernel or window function and its shape parameters.
type Fun struct {
	Name string `toml:"name" yaml:"name"`

	// Params override the function defaults; NaN keeps the default.
	Params [2]float64 `toml:"params" yaml:"params"`

	// Blur and Taper override the function defaults when positive.
	Blur  float64 `toml:"blur" yaml:"blur"`
	Taper float64 `toml:"taper" yaml:"taper"`
}

// Config configures one scaler unit.
type Config struct {
	Kernel Fun `toml:"kernel" yaml:"kernel"`
	Window Fun `toml:"window" yaml:"window"`

	// Radius overrides the radius of resizable kernels; 0 keeps the default.
	Radius   float64 `toml:"radius" yaml:"radius"`
	Antiring float64 `toml:"antiring" yaml:"antiring"`
	Clamp    float64 `toml:"clamp" yaml:"clamp"`
	Cutoff   float64 `toml:"cutoff" yaml:"cutoff"`
}

var unset = [2]float64{math.NaN(), math.NaN()}

// NewConfig returns a configuration for the named kernel with default
// parameters.
func NewConfig(name string) Config {
	return Config{
		Kernel: Fun{Name: name, Params: unset},
		Window: Fun{Params: unset},
	}
}

// feq is == with NaN equal to itself.
func feq(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// Equal reports whether f and o select the same function.
func (f Fun) Equal(o Fun) bool {
	return f.Name == o.Name &&
		feq(f.Params[0], o.Params[0]) &&
		feq(f.Params[1], o.Params[1]) &&
		feq(f.Blur, o.Blur) &&
		feq(f.Taper, o.Taper)
}

// Equal reports whether c and o are identical, treating NaN parameters as
// equal.
func (c Config) Equal(o Config) bool {
	return c.lutEqual(o) && feq(c.Antiring, o.Antiring)
}

// lutEqual compares the fields that shape the kernel. Antiring only
// affects sampling.
func (c Config) lutEqual(o Config) bool {
	return c.Kernel.Equal(o.Kernel) &&
		c.Window.Equal(o.Window) &&
		feq(c.Radius, o.Radius) &&
		feq(c.Clamp, o.Clamp) &&
		feq(c.Cutoff, o.Cutoff)
}

var (
	fixedScalers  = []string{"bilinear", "bicubic_fast", "oversample"}
	fixedTScalers = []string{"oversample", "linear"}
)

// IsFixed reports whether name is a built-in sampler of unit u that needs
// no kernel.
func IsFixed(u Unit, name string) bool {
	if u == UnitTScale {
		return slices.Contains(fixedTScalers, name)
	}
	return slices.Contains(fixedScalers, name)
}

// Names lists the scaler names valid for unit u.
func Names(u Unit) []string {
	var names []string
	if u == UnitTScale {
		names = slices.Clone(fixedTScalers)
	} else {
		names = slices.Clone(fixedScalers)
	}
	for _, n := range kernel.Names() {
		if k, _ := kernel.Find(n); u == UnitTScale && k.Polar {
			continue
		}
		names = append(names, n)
	}
	return names
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func unitRange(name string, v float64) error {
	if !finite(v) || v < 0 || v > 1 {
		return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidConfig, name, v)
	}
	return nil
}

func (f Fun) validate(what string) error {
	for i, p := range f.Params {
		if math.IsInf(p, 0) {
			return fmt.Errorf("%w: %s param%d is infinite", ErrInvalidConfig, what, i+1)
		}
	}
	if !finite(f.Blur) || f.Blur < 0 {
		return fmt.Errorf("%w: %s blur %v", ErrInvalidConfig, what, f.Blur)
	}
	if !finite(f.Taper) || f.Taper < 0 || f.Taper >= 1 {
		return fmt.Errorf("%w: %s taper %v outside [0,1)", ErrInvalidConfig, what, f.Taper)
	}
	return nil
}

// Validate checks c for use on unit u.
func (c Config) Validate(u Unit) error {
	name := c.Kernel.Name
	switch {
	case name == "":
		return fmt.Errorf("%w: %s: no kernel", ErrInvalidConfig, u)
	case IsFixed(u, name):
	default:
		k, ok := kernel.Find(name)
		if !ok || (u == UnitTScale && name == "bilinear") {
			return fmt.Errorf("%w: %s=%s", ErrUnknownKernel, u, name)
		}
		if u == UnitTScale && k.Polar {
			return fmt.Errorf("%w: %s: polar kernel %s cannot interpolate frames", ErrInvalidConfig, u, name)
		}
	}
	if c.Window.Name != "" {
		if _, ok := kernel.FindWindow(c.Window.Name); !ok {
			return fmt.Errorf("%w: %s-window=%s", ErrUnknownWindow, u, c.Window.Name)
		}
	}
	if err := c.Kernel.validate(u.String()); err != nil {
		return err
	}
	if err := c.Window.validate(u.String() + "-window"); err != nil {
		return err
	}
	if !finite(c.Radius) || (c.Radius != 0 && (c.Radius < 0.5 || c.Radius > 16)) {
		return fmt.Errorf("%w: %s radius %v outside [0.5,16]", ErrInvalidConfig, u, c.Radius)
	}
	if err := unitRange(u.String()+" antiring", c.Antiring); err != nil {
		return err
	}
	if err := unitRange(u.String()+" clamp", c.Clamp); err != nil {
		return err
	}
	return unitRange(u.String()+" cutoff", c.Cutoff)
}

// resolve builds the kernel c selects, with every override applied.
func (c Config) resolve() kernel.Kernel {
	k, _ := kernel.Find(c.Kernel.Name)
	if c.Window.Name != "" {
		k.W, _ = kernel.FindWindow(c.Window.Name)
	}
	for i := range 2 {
		if !math.IsNaN(c.Kernel.Params[i]) {
			k.F.Params[i] = c.Kernel.Params[i]
		}
		if !math.IsNaN(c.Window.Params[i]) {
			k.W.Params[i] = c.Window.Params[i]
		}
	}
	if c.Kernel.Blur > 0 {
		k.F.Blur = c.Kernel.Blur
	}
	if c.Window.Blur > 0 {
		k.W.Blur = c.Window.Blur
	}
	if c.Kernel.Taper > 0 {
		k.F.Taper = c.Kernel.Taper
	}
	if c.Window.Taper > 0 {
		k.W.Taper = c.Window.Taper
	}
	if k.F.Resizable && c.Radius > 0 {
		k.F.Radius = c.Radius
	}
	k.Clamp = c.Clamp
	k.ValueCutoff = c.Cutoff
	return k
}
