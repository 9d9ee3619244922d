package vidrender

import "github.com/chewxy/math32"

// Ambient light gamma mapping: lux in [luxDark, luxBright] maps
// logarithmically to a display gamma in [gammaDark, gammaBright].
const (
	luxDark     = 16
	luxBright   = 64
	gammaDark   = 2.40
	gammaBright = 1.961
)

// ScaleAmbientLux maps lux from [lmin, lmax] onto [rmin, rmax] on a log10
// scale, clamping the result to the output range. lmax must exceed lmin.
func ScaleAmbientLux(lmin, lmax, rmin, rmax, lux float32) float32 {
	num := (rmax - rmin) * (math32.Log10(lux) - math32.Log10(lmin))
	den := math32.Log10(lmax) - math32.Log10(lmin)
	result := num/den + rmin

	hi := math32.Max(rmax, rmin)
	lo := math32.Min(rmax, rmin)
	return math32.Max(math32.Min(result, hi), lo)
}

// luxGamma returns the gamma multiplier for an ambient light level.
func luxGamma(lux int) float64 {
	g := ScaleAmbientLux(luxDark, luxBright, gammaDark, gammaBright, float32(lux))
	return float64(math32.Min(1, gammaBright/g))
}
