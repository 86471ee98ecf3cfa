package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// TickStats is the aggregate statistics record for one tick.
type TickStats struct {
	Tick int32 `csv:"tick"`

	// Population at tick end
	Agents       int `csv:"agents"`
	Foraging     int `csv:"foraging"`
	BoutComplete int `csv:"bout_complete"`
	Plants       int `csv:"plants"`
	Flowers      int `csv:"flowers"`
	Nectar       int `csv:"nectar"`

	// Decision outcomes during the tick
	Landings     int `csv:"landings"`
	Declines     int `csv:"declines"`
	NoFlower     int `csv:"no_flower"`
	Pollinations int `csv:"pollinations"`
	Reward       int `csv:"reward"`

	// Cumulative counts
	TotalPollinations int `csv:"total_pollinations"`
	Senesced          int `csv:"senesced"`
	SeedsLost         int `csv:"seeds_lost"`

	// Preference drift over tracked agents
	DriftMean float64 `csv:"drift_mean"`
	DriftStd  float64 `csv:"drift_std"`
	DriftP10  float64 `csv:"drift_p10"`
	DriftP50  float64 `csv:"drift_p50"`
	DriftP90  float64 `csv:"drift_p90"`

	Hives []HiveStats `csv:"-"`
}

// HiveStats is the per-hive part of a tick record, written in long format.
type HiveStats struct {
	Tick         int32   `csv:"tick"`
	Hive         string  `csv:"hive"`
	Agents       int     `csv:"agents"`
	Spawned      int     `csv:"spawned"`
	Rejected     int     `csv:"rejected"`
	Retired      int     `csv:"retired"`
	Landings     int     `csv:"landings"`
	Pollinations int     `csv:"pollinations"`
	DriftMean    float64 `csv:"drift_mean"`
}

// Quantile returns the p-quantile of a sorted slice using the empirical
// distribution. It returns 0 for an empty slice.
func Quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	return stat.Quantile(min(max(p, 0), 1), stat.Empirical, sorted, nil)
}

// Distribution summarises a sample: population mean and standard deviation
// plus the 10th, 50th and 90th percentiles.
type Distribution struct {
	Mean, Std     float64
	P10, P50, P90 float64
}

// Summarize computes a Distribution. The input is not modified.
func Summarize(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	mean, std := stat.PopMeanStdDev(sorted, nil)
	return Distribution{
		Mean: mean,
		Std:  std,
		P10:  Quantile(sorted, 0.10),
		P50:  Quantile(sorted, 0.50),
		P90:  Quantile(sorted, 0.90),
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s TickStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("tick", int(s.Tick)),
		slog.Int("agents", s.Agents),
		slog.Int("foraging", s.Foraging),
		slog.Int("bout_complete", s.BoutComplete),
		slog.Int("plants", s.Plants),
		slog.Int("flowers", s.Flowers),
		slog.Int("nectar", s.Nectar),
		slog.Int("landings", s.Landings),
		slog.Int("declines", s.Declines),
		slog.Int("no_flower", s.NoFlower),
		slog.Int("pollinations", s.Pollinations),
		slog.Int("total_pollinations", s.TotalPollinations),
		slog.Int("senesced", s.Senesced),
		slog.Int("seeds_lost", s.SeedsLost),
		slog.Float64("drift_mean", s.DriftMean),
		slog.Float64("drift_std", s.DriftStd),
		slog.Float64("drift_p50", s.DriftP50),
	}
	for _, h := range s.Hives {
		attrs = append(attrs, slog.Group(h.Hive,
			slog.Int("agents", h.Agents),
			slog.Int("pollinations", h.Pollinations),
			slog.Int("rejected", h.Rejected),
			slog.Int("retired", h.Retired),
		))
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the record using slog.
func (s TickStats) LogStats() {
	slog.Info("stats", "tick", s)
}
