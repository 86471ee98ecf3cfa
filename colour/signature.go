// Package colour models flower reflectance and its perception by pollinators.
//
// A flower colour is described by a marker point: the wavelength at which its
// reflectance curve rises steeply. The curve is projected into the colour
// hexagon of a trichromatic (UV, blue, green) visual system, and perceptual
// distance is Euclidean distance in that hexagon.
package colour

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MarkerPoint is a wavelength in nanometres.
type MarkerPoint uint16

// NoMarkerPoint marks an unset wavelength.
const NoMarkerPoint MarkerPoint = 0

// HexPoint is a position in the colour hexagon.
type HexPoint struct {
	X, Y float64
}

// Distance returns the Euclidean distance between two hexagon points.
func (p HexPoint) Distance(q HexPoint) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Lerp moves p toward q by fraction t. Negative t moves away from q.
func (p HexPoint) Lerp(q HexPoint, t float64) HexPoint {
	return HexPoint{X: p.X + (q.X-p.X)*t, Y: p.Y + (q.Y-p.Y)*t}
}

// Signature is the immutable colour of a flower species.
type Signature struct {
	MarkerPoint MarkerPoint
	Reflectance []float64 // sampled at Model.Wavelengths
	Excitation  [3]float64
	Hex         HexPoint
}

// Distance is the perceptual distance between two signatures.
func (s *Signature) Distance(o *Signature) float64 {
	return s.Hex.Distance(o.Hex)
}

// DistanceTo is the perceptual distance from the signature to a hexagon point.
func (s *Signature) DistanceTo(p HexPoint) float64 {
	return s.Hex.Distance(p)
}

// SpectralDistance compares the raw reflectance curves.
func (s *Signature) SpectralDistance(o *Signature) float64 {
	return floats.Distance(s.Reflectance, o.Reflectance, 2)
}
