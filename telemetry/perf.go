package telemetry

import (
	"log/slog"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Phase is one timed section of a simulation tick.
type Phase uint8

const (
	PhaseEvents Phase = iota
	PhaseEnvironment
	PhaseHives
	PhaseFlush
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{"events", "environment", "hives", "flush", "telemetry"}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// tickTiming is the wall time spent in one tick, split by phase.
type tickTiming struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps phase timings for the most recent ticks in a ring.
type PerfCollector struct {
	ring   []tickTiming
	next   int
	filled int

	cur     tickTiming
	started time.Time
	mark    time.Time
	phase   Phase
	timing  bool

	now func() time.Time
}

// NewPerfCollector returns a collector averaging over the last window ticks.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 100
	}
	return &PerfCollector{ring: make([]tickTiming, window), now: time.Now}
}

// StartTick begins timing a tick.
func (p *PerfCollector) StartTick() {
	p.cur = tickTiming{}
	p.started = p.now()
	p.timing = false
}

// StartPhase closes the running phase, if any, and opens phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	t := p.now()
	p.closePhase(t)
	p.phase, p.mark, p.timing = phase, t, true
}

func (p *PerfCollector) closePhase(t time.Time) {
	if p.timing && p.phase < numPhases {
		p.cur.phases[p.phase] += t.Sub(p.mark)
	}
}

// EndTick closes the running phase and stores the tick in the ring.
func (p *PerfCollector) EndTick() {
	t := p.now()
	p.closePhase(t)
	p.timing = false
	p.cur.total = t.Sub(p.started)

	p.ring[p.next] = p.cur
	p.next = (p.next + 1) % len(p.ring)
	p.filled = min(p.filled+1, len(p.ring))
}

// PerfStats summarises the ticks currently in the ring.
type PerfStats struct {
	Ticks int

	Mean time.Duration
	Min  time.Duration
	Max  time.Duration
	P95  time.Duration

	// Share of mean tick time per phase, in percent.
	PhaseShare [numPhases]float64

	TicksPerSecond float64
}

// Stats computes the window summary. An empty collector yields zero stats.
func (p *PerfCollector) Stats() PerfStats {
	if p.filled == 0 {
		return PerfStats{}
	}

	totals := make([]float64, p.filled)
	var phaseSum [numPhases]time.Duration
	for i, tt := range p.ring[:p.filled] {
		totals[i] = float64(tt.total)
		for ph, d := range tt.phases {
			phaseSum[ph] += d
		}
	}
	slices.Sort(totals)

	s := PerfStats{
		Ticks: p.filled,
		Mean:  time.Duration(stat.Mean(totals, nil)),
		Min:   time.Duration(totals[0]),
		Max:   time.Duration(totals[len(totals)-1]),
		P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, totals, nil)),
	}
	if s.Mean > 0 {
		s.TicksPerSecond = float64(time.Second) / float64(s.Mean)
		n := time.Duration(p.filled)
		for ph, sum := range phaseSum {
			s.PhaseShare[ph] = float64(sum/n) / float64(s.Mean) * 100
		}
	}
	return s
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("ticks", s.Ticks),
		slog.Int64("mean_tick_us", s.Mean.Microseconds()),
		slog.Int64("p95_tick_us", s.P95.Microseconds()),
		slog.Int64("max_tick_us", s.Max.Microseconds()),
		slog.Int("ticks_per_sec", int(s.TicksPerSecond)),
	}
	for ph, pct := range s.PhaseShare {
		if pct >= 0.1 {
			attrs = append(attrs, slog.Float64(Phase(ph).String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// LogStats logs the summary at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "window", s)
}

// PerfRow is the perf.csv record for one stats window.
type PerfRow struct {
	WindowEnd      int32   `csv:"window_end"`
	Ticks          int     `csv:"ticks"`
	MeanTickUS     int64   `csv:"mean_tick_us"`
	MinTickUS      int64   `csv:"min_tick_us"`
	MaxTickUS      int64   `csv:"max_tick_us"`
	P95TickUS      int64   `csv:"p95_tick_us"`
	TicksPerSec    float64 `csv:"ticks_per_sec"`
	EventsPct      float64 `csv:"events_pct"`
	EnvironmentPct float64 `csv:"environment_pct"`
	HivesPct       float64 `csv:"hives_pct"`
	FlushPct       float64 `csv:"flush_pct"`
	TelemetryPct   float64 `csv:"telemetry_pct"`
}

// Row flattens the summary for the window ending at windowEnd.
func (s PerfStats) Row(windowEnd int32) PerfRow {
	return PerfRow{
		WindowEnd:      windowEnd,
		Ticks:          s.Ticks,
		MeanTickUS:     s.Mean.Microseconds(),
		MinTickUS:      s.Min.Microseconds(),
		MaxTickUS:      s.Max.Microseconds(),
		P95TickUS:      s.P95.Microseconds(),
		TicksPerSec:    s.TicksPerSecond,
		EventsPct:      s.PhaseShare[PhaseEvents],
		EnvironmentPct: s.PhaseShare[PhaseEnvironment],
		HivesPct:       s.PhaseShare[PhaseHives],
		FlushPct:       s.PhaseShare[PhaseFlush],
		TelemetryPct:   s.PhaseShare[PhaseTelemetry],
	}
}
