package systems

import (
	"math/rand"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

// Innate preference marker points.
const (
	GiurfaMarker   colour.MarkerPoint = 420
	HoverflyMarker colour.MarkerPoint = 520
)

// Preference is a pollinator's visual preference memory.
type Preference struct {
	Point   colour.HexPoint // preferred colour in the hexagon
	Initial colour.HexPoint // preference at spawn, for drift
	Tracked bool            // false under learning: none

	// Landing probabilities for simple constancy.
	ProbLandTarget    float64
	ProbLandNonTarget float64

	// Target species for simple constancy, set on the first rewarded visit
	// of a bout.
	TargetSpecies uint32
	HasTarget     bool

	// Colour of the last rewarding flower, adopted by stay at bout reset.
	LastRewarding *colour.Signature
}

// Drift is the hexagon distance between the current and initial preference.
func (p *Preference) Drift() float64 {
	if !p.Tracked {
		return 0
	}
	return p.Point.Distance(p.Initial)
}

// Learning holds a learning strategy and its parameters.
type Learning struct {
	Strategy      components.LearningStrategy
	Rate          float64
	Aversion      float64
	ProbLandDelta float64
	BaseTarget    float64
	BaseNonTarget float64
	Innate        components.InnatePrefType
	InnateMarker  colour.MarkerPoint // for innate: preset
}

// innateMarker returns the marker point an untrained pollinator prefers.
func (l Learning) innateMarker(rng *rand.Rand, model *colour.Model) colour.MarkerPoint {
	switch l.Innate {
	case components.InnateGiurfa:
		return GiurfaMarker
	case components.InnateHoverfly:
		return HoverflyMarker
	case components.InnatePreset:
		return l.InnateMarker
	default:
		return randomMarker(rng, model)
	}
}

func randomMarker(rng *rand.Rand, model *colour.Model) colour.MarkerPoint {
	return model.MarkerAt(rng.Intn(model.NumMarkers()))
}

// NewPreference builds the preference of a newly spawned pollinator.
// StayRandom starts from a random colour, every other tracking strategy from
// the innate one.
func (l Learning) NewPreference(rng *rand.Rand, model *colour.Model) Preference {
	p := Preference{
		Tracked:           l.Strategy.TracksPreference(),
		ProbLandTarget:    l.BaseTarget,
		ProbLandNonTarget: l.BaseNonTarget,
	}
	if !p.Tracked {
		return p
	}
	var mp colour.MarkerPoint
	if l.Strategy == components.LearnStayRandom {
		mp = randomMarker(rng, model)
	} else {
		mp = l.innateMarker(rng, model)
	}
	p.Point = model.Signature(mp).Hex
	p.Initial = p.Point
	return p
}

// Inherit builds a new pollinator's preference from a template.
func (l Learning) Inherit(template Preference) Preference {
	p := Preference{
		Point:             template.Point,
		Initial:           template.Point,
		Tracked:           template.Tracked,
		ProbLandTarget:    l.BaseTarget,
		ProbLandNonTarget: l.BaseNonTarget,
	}
	return p
}

// StartBout applies the strategy's bout-start rule.
func (l Learning) StartBout(p *Preference, rng *rand.Rand, model *colour.Model) {
	p.HasTarget = false
	p.TargetSpecies = 0
	p.ProbLandTarget = l.BaseTarget
	p.ProbLandNonTarget = l.BaseNonTarget
	if !p.Tracked {
		return
	}
	switch l.Strategy {
	case components.LearnStay:
		if p.LastRewarding != nil {
			p.Point = p.LastRewarding.Hex
		}
	case components.LearnStayRandom:
		p.Point = model.Signature(randomMarker(rng, model)).Hex
	case components.LearnStayInnate:
		p.Point = model.Signature(l.innateMarker(rng, model)).Hex
	}
	p.LastRewarding = nil
}

// AfterVisit updates the preference with the outcome of a landing.
// Only the per-visit strategies move the preference point.
func (l Learning) AfterVisit(p *Preference, sig *colour.Signature, speciesID uint32, reward, perVisit int) {
	rewarded := reward > 0
	if rewarded {
		p.LastRewarding = sig
		if !p.HasTarget {
			p.HasTarget = true
			p.TargetSpecies = speciesID
		}
	}
	if !p.Tracked || !l.Strategy.LearnsPerVisit() {
		return
	}

	if rewarded {
		scale := 1.0
		if perVisit > 0 {
			scale = min(float64(reward)/float64(perVisit), 1)
		}
		p.Point = p.Point.Lerp(sig.Hex, l.Rate*scale)
		p.ProbLandTarget = clampProb(p.ProbLandTarget+l.ProbLandDelta, l.BaseNonTarget, l.BaseTarget)
		p.ProbLandNonTarget = clampProb(p.ProbLandNonTarget-l.ProbLandDelta, l.BaseNonTarget, l.BaseTarget)
		return
	}
	p.Point = p.Point.Lerp(sig.Hex, -l.Aversion)
	p.ProbLandTarget = clampProb(p.ProbLandTarget-l.ProbLandDelta, l.BaseNonTarget, l.BaseTarget)
	p.ProbLandNonTarget = clampProb(p.ProbLandNonTarget+l.ProbLandDelta, l.BaseNonTarget, l.BaseTarget)
}

func clampProb(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
