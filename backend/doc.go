// Package backend opens graphics devices for the renderer by name.
//
// Backends register a Factory from init functions; importing this package
// registers the HAL backends built into it (currently "noop", a device that
// accepts every call and draws nothing, useful for benchmarks and tests).
//
// # Backend Selection
//
// Use Open to request a backend by name, or OpenDefault for the first one
// that can be opened:
//
//	dev, err := backend.Open("noop", logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	r := vidrender.New(dev, vidrender.Config{Logger: logger})
//	defer r.Close()
//
// A Device is an ra.RA, so it can also be driven directly. Close the
// renderer before the device.
package backend
