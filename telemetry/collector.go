// Package telemetry records simulation statistics, bookmarks, performance
// timings and snapshots. It only reads simulation state.
package telemetry

import (
	"github.com/pthm-cable/evobee/components"
	"github.com/pthm-cable/evobee/systems"
)

// WindowSummary aggregates tick records over a logging window.
type WindowSummary struct {
	StartTick    int32
	EndTick      int32
	Landings     int
	Declines     int
	Pollinations int
	Agents       int     // at window end
	DriftMean    float64 // at window end
	DriftStd     float64 // at window end
}

// Collector builds one TickStats per tick from the environment and hives,
// and accumulates window summaries for bookmark detection.
type Collector struct {
	windowTicks int32

	totalPollinations int
	drift             []float64 // scratch
	hiveDrift         []float64 // scratch

	window WindowSummary
}

// NewCollector creates a collector whose windows span windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: int32(windowTicks)}
}

// Record builds the statistics record for tick. Only agent actions taken at
// tick are counted as this tick's outcomes.
func (c *Collector) Record(tick int32, env *systems.Environment, hives []systems.Colony) TickStats {
	s := TickStats{
		Tick:      tick,
		Plants:    len(env.Plants()),
		Flowers:   env.NumFlowers(),
		Nectar:    env.NectarTotal(),
		Senesced:  env.Senesced(),
		SeedsLost: env.SeedsLost(),
		Hives:     make([]HiveStats, 0, len(hives)),
	}

	c.drift = c.drift[:0]
	for _, h := range hives {
		counters := h.Counters()
		hs := HiveStats{
			Tick:     tick,
			Hive:     h.Name(),
			Spawned:  counters.Spawned,
			Rejected: counters.Rejected,
			Retired:  counters.Retired,
		}
		c.hiveDrift = c.hiveDrift[:0]
		for _, a := range h.Agents() {
			hs.Agents++
			switch a.State {
			case components.StateForaging:
				s.Foraging++
			case components.StateBoutComplete:
				s.BoutComplete++
			}
			if a.Pref.Tracked {
				c.drift = append(c.drift, a.Pref.Drift())
				c.hiveDrift = append(c.hiveDrift, a.Pref.Drift())
			}
			if a.Latest.Tick != tick {
				continue
			}
			switch a.Latest.Status {
			case components.StatusOnFlower:
				hs.Landings++
				hs.Pollinations += a.Latest.Pollinations
				s.Reward += a.Latest.Reward
			case components.StatusDeclinedFlower:
				s.Declines++
			case components.StatusNoFlowerSeen:
				s.NoFlower++
			}
		}
		hs.DriftMean = Summarize(c.hiveDrift).Mean
		s.Agents += hs.Agents
		s.Landings += hs.Landings
		s.Pollinations += hs.Pollinations
		s.Hives = append(s.Hives, hs)
	}

	c.totalPollinations += s.Pollinations
	s.TotalPollinations = c.totalPollinations

	d := Summarize(c.drift)
	s.DriftMean, s.DriftStd = d.Mean, d.Std
	s.DriftP10, s.DriftP50, s.DriftP90 = d.P10, d.P50, d.P90

	c.accumulate(s)
	return s
}

func (c *Collector) accumulate(s TickStats) {
	c.window.Landings += s.Landings
	c.window.Declines += s.Declines
	c.window.Pollinations += s.Pollinations
	c.window.EndTick = s.Tick
	c.window.Agents = s.Agents
	c.window.DriftMean = s.DriftMean
	c.window.DriftStd = s.DriftStd
}

// ShouldFlush reports whether the current window is complete after tick.
func (c *Collector) ShouldFlush(tick int32) bool {
	return tick+1-c.window.StartTick >= c.windowTicks
}

// Flush returns the current window summary and starts the next window.
func (c *Collector) Flush() WindowSummary {
	w := c.window
	c.window = WindowSummary{StartTick: w.EndTick + 1}
	return w
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int32 {
	return c.windowTicks
}
