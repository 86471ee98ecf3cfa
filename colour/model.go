package colour

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Receptor photoreceptor peaks (nm) for a hymenopteran visual system.
const (
	PeakUV    = 344.0
	PeakBlue  = 436.0
	PeakGreen = 544.0
)

// Spectral sampling range.
const (
	MinWavelength  = 300
	MaxWavelength  = 700
	WavelengthStep = 5
)

// ModelParams configures the reflectance and receptor model.
type ModelParams struct {
	ReceptorWidth         float64 // Gaussian sigma of each receptor (nm)
	BackgroundReflectance float64 // flat reflectance of the foliage background
	LowReflectance        float64 // flower reflectance below the marker point
	HighReflectance       float64 // flower reflectance above the marker point
	EdgeSlope             float64 // sigmoid width at the marker point (nm)
	MinMarker, MaxMarker  MarkerPoint
	MarkerStep            MarkerPoint
}

// DefaultModelParams returns parameters giving a realistic hexagon spread.
func DefaultModelParams() ModelParams {
	return ModelParams{
		ReceptorWidth:         40,
		BackgroundReflectance: 0.1,
		LowReflectance:        0.05,
		HighReflectance:       0.8,
		EdgeSlope:             10,
		MinMarker:             300,
		MaxMarker:             650,
		MarkerStep:            10,
	}
}

// Model projects reflectance curves into the colour hexagon.
// Signatures are built once per marker point and shared.
type Model struct {
	params      ModelParams
	Wavelengths []float64
	receptors   [3][]float64
	norm        [3]float64
	cache       map[MarkerPoint]*Signature
}

// NewModel precomputes receptor curves and background adaptation.
func NewModel(p ModelParams) (*Model, error) {
	if p.ReceptorWidth <= 0 {
		return nil, fmt.Errorf("receptor width must be positive, got %v", p.ReceptorWidth)
	}
	if p.BackgroundReflectance <= 0 {
		return nil, fmt.Errorf("background reflectance must be positive, got %v", p.BackgroundReflectance)
	}
	if p.MinMarker == NoMarkerPoint || p.MaxMarker < p.MinMarker {
		return nil, fmt.Errorf("invalid marker range [%d, %d]", p.MinMarker, p.MaxMarker)
	}
	if p.MarkerStep == 0 {
		p.MarkerStep = 1
	}

	n := (MaxWavelength-MinWavelength)/WavelengthStep + 1
	m := &Model{
		params:      p,
		Wavelengths: make([]float64, n),
		cache:       make(map[MarkerPoint]*Signature),
	}
	floats.Span(m.Wavelengths, MinWavelength, MaxWavelength)

	peaks := [3]float64{PeakUV, PeakBlue, PeakGreen}
	background := make([]float64, n)
	for i := range background {
		background[i] = p.BackgroundReflectance
	}
	for r, peak := range peaks {
		curve := distuv.Normal{Mu: peak, Sigma: p.ReceptorWidth}
		sens := make([]float64, n)
		for i, lambda := range m.Wavelengths {
			sens[i] = curve.Prob(lambda)
		}
		// Scale so the peak sensitivity is 1.
		floats.Scale(1/curve.Prob(peak), sens)
		m.receptors[r] = sens
		// Von Kries adaptation: the background yields quantum catch 1.
		m.norm[r] = 1 / floats.Dot(sens, background)
	}
	return m, nil
}

// Params returns the model parameters.
func (m *Model) Params() ModelParams { return m.params }

// Reflectance returns the sampled reflectance curve for a marker point.
func (m *Model) Reflectance(mp MarkerPoint) []float64 {
	p := m.params
	out := make([]float64, len(m.Wavelengths))
	for i, lambda := range m.Wavelengths {
		t := (lambda - float64(mp)) / p.EdgeSlope
		out[i] = p.LowReflectance + (p.HighReflectance-p.LowReflectance)/(1+math.Exp(-t))
	}
	return out
}

// Signature returns the shared signature for a marker point.
func (m *Model) Signature(mp MarkerPoint) *Signature {
	if s, ok := m.cache[mp]; ok {
		return s
	}
	refl := m.Reflectance(mp)
	s := &Signature{MarkerPoint: mp, Reflectance: refl}
	for r := range m.receptors {
		q := m.norm[r] * floats.Dot(m.receptors[r], refl)
		s.Excitation[r] = q / (q + 1)
	}
	s.Hex = hexagon(s.Excitation)
	m.cache[mp] = s
	return s
}

// hexagon maps UV, blue and green excitations to hexagon coordinates.
func hexagon(e [3]float64) HexPoint {
	return HexPoint{
		X: math.Sqrt(3) / 2 * (e[2] - e[0]),
		Y: e[1] - 0.5*(e[0]+e[2]),
	}
}

// ClampMarker limits a marker point to the configured range and snaps it to
// the marker step.
func (m *Model) ClampMarker(mp float64) MarkerPoint {
	p := m.params
	if mp < float64(p.MinMarker) {
		mp = float64(p.MinMarker)
	}
	if mp > float64(p.MaxMarker) {
		mp = float64(p.MaxMarker)
	}
	steps := math.Round((mp - float64(p.MinMarker)) / float64(p.MarkerStep))
	return p.MinMarker + MarkerPoint(steps)*p.MarkerStep
}

// NumMarkers returns the number of distinct marker points in range.
func (m *Model) NumMarkers() int {
	p := m.params
	return int((p.MaxMarker-p.MinMarker)/p.MarkerStep) + 1
}

// MarkerAt returns the i-th marker point in range.
func (m *Model) MarkerAt(i int) MarkerPoint {
	p := m.params
	return p.MinMarker + MarkerPoint(i)*p.MarkerStep
}

// Nearest returns the in-range marker point whose hexagon position is
// closest to h. Ties go to the shorter wavelength.
func (m *Model) Nearest(h HexPoint) MarkerPoint {
	best := m.MarkerAt(0)
	bestD := math.Inf(1)
	for i := 0; i < m.NumMarkers(); i++ {
		mp := m.MarkerAt(i)
		if d := m.Signature(mp).DistanceTo(h); d < bestD {
			best, bestD = mp, d
		}
	}
	return best
}
