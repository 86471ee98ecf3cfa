package systems

import (
	"math/rand"

	"github.com/aquilax/go-perlin"

	"github.com/pthm-cable/evobee/components"
)

// Perlin parameters for the placement field.
const (
	noiseAlpha   = 2.0
	noiseBeta    = 2.0
	noiseOctaves = 3
	noiseScale   = 0.08 // field frequency per world unit
	maxSamples   = 32
)

// PlacementField is a coherent noise field used to clump plant placement.
type PlacementField struct {
	noise *perlin.Perlin
	scale float64
}

// NewPlacementField creates a field seeded from the run's RNG.
func NewPlacementField(seed int64) *PlacementField {
	return &PlacementField{
		noise: perlin.NewPerlin(noiseAlpha, noiseBeta, noiseOctaves, seed),
		scale: noiseScale,
	}
}

// Density returns the field value at p mapped to [0, 1].
func (f *PlacementField) Density(p components.FPos) float64 {
	v := (f.noise.Noise2D(p.X*f.scale, p.Y*f.scale) + 1) / 2
	return min(max(v, 0), 1)
}

// Sample draws a position inside area. With clumping 0 positions are uniform;
// with clumping 1 they are accepted in proportion to the field density.
func (f *PlacementField) Sample(rng *rand.Rand, area components.Rect, clumping float64) components.FPos {
	var p components.FPos
	for i := 0; i < maxSamples; i++ {
		p = components.FPos{
			X: area.Min.X + rng.Float64()*area.Width(),
			Y: area.Min.Y + rng.Float64()*area.Height(),
		}
		accept := (1 - clumping) + clumping*f.Density(p)
		if rng.Float64() < accept {
			return p
		}
	}
	return p
}
