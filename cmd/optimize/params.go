// Package main searches pollinator learning parameters that maximise
// pollination.
package main

import (
	"fmt"

	"github.com/pthm-cable/evobee/config"
)

// Param is one searchable pollinator setting and its bounds.
type Param struct {
	Name   string
	Lo, Hi float64

	get func(*config.PollinatorConfig) float64
	set func(*config.PollinatorConfig, float64)
}

// Space is the box of learning parameters searched for one pollinator.
// The optimiser works in unit coordinates; Apply writes raw values.
type Space struct {
	Pollinator string
	Params     []Param
}

// LearningSpace returns the learning rate, aversion and constancy threshold
// of the named pollinator.
func LearningSpace(pollinator string) *Space {
	return &Space{
		Pollinator: pollinator,
		Params: []Param{
			{
				Name: "learning_rate", Lo: 0, Hi: 1,
				get: func(pc *config.PollinatorConfig) float64 { return deref(pc.LearningRate) },
				set: func(pc *config.PollinatorConfig, v float64) { pc.LearningRate = &v },
			},
			{
				Name: "aversion", Lo: 0, Hi: 0.5,
				get: func(pc *config.PollinatorConfig) float64 { return deref(pc.Aversion) },
				set: func(pc *config.PollinatorConfig, v float64) { pc.Aversion = &v },
			},
			{
				Name: "constancy_threshold", Lo: 0.02, Hi: 0.6,
				get: func(pc *config.PollinatorConfig) float64 { return pc.ConstancyThreshold },
				set: func(pc *config.PollinatorConfig, v float64) { pc.ConstancyThreshold = v },
			},
		},
	}
}

func (s *Space) Dim() int { return len(s.Params) }

// ToUnit maps raw values into [0,1] per parameter.
func (s *Space) ToUnit(raw []float64) []float64 {
	u := make([]float64, len(s.Params))
	for i, p := range s.Params {
		u[i] = (raw[i] - p.Lo) / (p.Hi - p.Lo)
	}
	return u
}

// FromUnit maps unit coordinates back to raw values, clamped to bounds.
func (s *Space) FromUnit(u []float64) []float64 {
	raw := make([]float64, len(s.Params))
	for i, p := range s.Params {
		raw[i] = p.Lo + u[i]*(p.Hi-p.Lo)
	}
	return s.Clamp(raw)
}

// Clamp limits each value to its parameter bounds.
func (s *Space) Clamp(v []float64) []float64 {
	out := make([]float64, len(s.Params))
	for i, p := range s.Params {
		out[i] = min(max(v[i], p.Lo), p.Hi)
	}
	return out
}

// Apply writes clamped values into the target pollinator of cfg.
func (s *Space) Apply(cfg *config.Config, values []float64) error {
	pc, ok := cfg.Pollinator(s.Pollinator)
	if !ok {
		return fmt.Errorf("no pollinator %q in config", s.Pollinator)
	}
	for i, v := range s.Clamp(values) {
		s.Params[i].set(pc, v)
	}
	return nil
}

// Read returns the target pollinator's current values.
func (s *Space) Read(cfg *config.Config) ([]float64, error) {
	pc, ok := cfg.Pollinator(s.Pollinator)
	if !ok {
		return nil, fmt.Errorf("no pollinator %q in config", s.Pollinator)
	}
	v := make([]float64, len(s.Params))
	for i, p := range s.Params {
		v[i] = p.get(pc)
	}
	return v, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
