// Package vidrender is the GPU render-resource and scaling core of a
// video output.
//
// # Overview
//
// A Renderer owns the GPU resources a video frame passes through on its way
// to the screen: the plane textures frames are uploaded into, the staging
// ring that pipelines those uploads, the intermediate render targets of the
// scaling passes, the four scaler units with their weight LUTs, the dither
// matrix and the per-pass GPU timers. Shader generation is not part of
// this package; each frame is handed to a PassRunner as an ordered pass
// plan.
//
// # Quick Start
//
//	r := vidrender.New(device, vidrender.Config{Runner: runner})
//	defer r.Close()
//
//	if err := r.UpdateOptions(options.Default()); err != nil { ... }
//	if err := r.Configure(vidrender.ImageParams{W: 1920, H: 1080, Planes: planes}); err != nil { ... }
//	r.Resize(src, dst)
//
//	for frame := range frames {
//	    if err := r.RenderFrame(frame, target); err != nil { ... }
//	}
//
// # Packages
//
//   - ra: the graphics abstraction; backend/halra implements it over wgpu
//   - transform: 2D affine transforms for pass geometry
//   - fbo: render-target cache with fuzzy resize
//   - upload: staging buffer ring
//   - timer: GPU timer pools
//   - kernel, scaler: filter kernels and the scaler units
//   - options: the render options aggregate
//   - dither: dither matrices
//
// # Threading
//
// A Renderer is driven from a single goroutine. GPU asynchrony is
// tolerated, never waited on: timer results are polled and busy staging
// buffers are reported instead of overwritten.
package vidrender
