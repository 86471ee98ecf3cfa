package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/evobee/components"
)

// Mover applies a step-length policy within the environment bounds.
type Mover struct {
	Step      components.StepType
	Length    float64 // constant step, or Pareto scale for Levy steps
	MaxLength float64 // cap on Levy steps
	Exponent  float64 // Pareto tail exponent
	Bounds    components.Rect
	Boundary  components.Boundary
}

// StepLength draws the length of the next search step.
func (m Mover) StepLength(rng *rand.Rand) float64 {
	if m.Step != components.StepLevy {
		return m.Length
	}
	// Pareto(xm, alpha) is xm * exp(E) with E ~ Exponential(alpha).
	e := distuv.Exponential{Rate: m.Exponent}.Quantile(rng.Float64())
	l := m.Length * math.Exp(e)
	if m.MaxLength > 0 && l > m.MaxLength {
		l = m.MaxLength
	}
	return l
}

// RandomStep moves one search step in a uniformly random direction.
// It returns the new position and the distance flown.
func (m Mover) RandomStep(rng *rand.Rand, from components.FPos) (components.FPos, float64) {
	l := m.StepLength(rng)
	heading := rng.Float64() * 2 * math.Pi
	to := components.FPos{X: from.X + l*math.Cos(heading), Y: from.Y + l*math.Sin(heading)}
	return m.Confine(to), l
}

// Confine maps a position back inside the bounds by reflecting off or
// wrapping around the edges.
func (m Mover) Confine(p components.FPos) components.FPos {
	b := m.Bounds
	if m.Boundary == components.BoundaryWrap {
		return components.FPos{
			X: wrap(p.X, b.Min.X, b.Max.X),
			Y: wrap(p.Y, b.Min.Y, b.Max.Y),
		}
	}
	return components.FPos{
		X: reflect(p.X, b.Min.X, b.Max.X),
		Y: reflect(p.Y, b.Min.Y, b.Max.Y),
	}
}

func wrap(v, lo, hi float64) float64 {
	w := hi - lo
	if w <= 0 {
		return lo
	}
	v = math.Mod(v-lo, w)
	if v < 0 {
		v += w
	}
	return lo + v
}

func reflect(v, lo, hi float64) float64 {
	w := hi - lo
	if w <= 0 {
		return lo
	}
	// Fold onto a period of 2w, then mirror the upper half.
	v = math.Mod(v-lo, 2*w)
	if v < 0 {
		v += 2 * w
	}
	if v > w {
		v = 2*w - v
	}
	// Keep the result strictly inside the half-open bounds.
	if v >= w {
		v = math.Nextafter(w, 0)
	}
	return lo + v
}
