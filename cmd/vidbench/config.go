package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/vidrender/options"
)

var errUnknownFormat = errors.New("vidbench: unknown options file format")

// loadOptions reads an options file on top of the defaults. The format is
// chosen by extension: .toml, .yaml or .yml. Unknown keys are rejected.
func loadOptions(path string) (*options.Options, error) {
	o := options.Default()
	if path == "" {
		return o, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), o)
		if err != nil {
			return nil, fmt.Errorf("vidbench: %s: %w", path, err)
		}
		if und := md.Undecoded(); len(und) > 0 {
			return nil, fmt.Errorf("vidbench: %s: unknown keys %v", path, und)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(o); err != nil {
			return nil, fmt.Errorf("vidbench: %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownFormat, path)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// parseSize parses "WxH".
func parseSize(s string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("vidbench: bad size %q", s)
	}
	return w, h, nil
}
