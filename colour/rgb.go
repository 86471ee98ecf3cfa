package colour

import colorful "github.com/lucasb-eyer/go-colorful"

// RGB is an 8-bit display colour.
type RGB struct {
	R, G, B uint8
}

// intensity is a triangular ramp from lo to peak to hi.
func intensity(lambda, lo, peak, hi int) uint8 {
	switch {
	case lambda <= lo:
		return 0
	case lambda <= peak:
		return uint8(255 * (lambda - lo) / (peak - lo))
	case lambda < hi:
		return uint8(255 * (hi - lambda) / (hi - peak))
	default:
		return 0
	}
}

// DisplayRGB returns a false-colour rendering of a marker point for
// visualisers. Ramps follow Dyer, Paulk and Reser's receptor figure.
func DisplayRGB(mp MarkerPoint) RGB {
	l := int(mp)
	return RGB{
		R: intensity(l, 400, 550, 650),
		G: intensity(l, 300, 430, 510),
		B: intensity(l, 300, 350, 410),
	}
}

// Hex returns the colour as "#rrggbb".
func (c RGB) Hex() string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}
