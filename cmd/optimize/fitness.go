package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/evobee/config"
	"github.com/pthm-cable/evobee/sim"
	"github.com/pthm-cable/evobee/telemetry"
)

// FitnessEvaluator scores parameter vectors by running the simulation over a
// fixed set of seeds.
type FitnessEvaluator struct {
	space      *Space
	configPath string
	maxTicks   int
	seeds      []int64

	mu       sync.Mutex
	lastRate float64
}

// NewFitnessEvaluator creates an evaluator. Each run loads a fresh copy of
// the config at configPath.
func NewFitnessEvaluator(space *Space, configPath string, maxTicks int, seeds []int64) *FitnessEvaluator {
	return &FitnessEvaluator{
		space:      space,
		configPath: configPath,
		maxTicks:   maxTicks,
		seeds:      seeds,
	}
}

// LastRate returns the mean pollinations per tick of the latest evaluation.
func (fe *FitnessEvaluator) LastRate() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastRate
}

// Evaluate returns the negative mean pollination rate across seeds for raw
// parameter values (lower is better). A failed run scores +Inf.
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	rates := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rates[i] = fe.run(raw, seed)
		}()
	}
	wg.Wait()

	for _, r := range rates {
		if math.IsNaN(r) {
			return math.Inf(1)
		}
	}
	mean := stat.Mean(rates, nil)

	fe.mu.Lock()
	fe.lastRate = mean
	fe.mu.Unlock()
	return -mean
}

// run executes one simulation and returns its pollination rate, or NaN.
func (fe *FitnessEvaluator) run(raw []float64, seed int64) float64 {
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return math.NaN()
	}
	if err := fe.space.Apply(cfg, raw); err != nil {
		return math.NaN()
	}
	s, err := sim.New(cfg, sim.Options{Seed: seed, MaxTicks: fe.maxTicks})
	if err != nil {
		return math.NaN()
	}
	if err := s.Run(); err != nil {
		return math.NaN()
	}
	return pollinationRate(s.Results())
}

// pollinationRate is the mean number of pollinations per simulated tick.
func pollinationRate(results []telemetry.TickStats) float64 {
	if len(results) == 0 {
		return 0
	}
	return float64(results[len(results)-1].TotalPollinations) / float64(len(results))
}
