package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/evobee/config"
	"github.com/pthm-cable/evobee/systems"
	"github.com/pthm-cable/evobee/telemetry"
)

// ErrFinished is returned by Step after the run has ended.
var ErrFinished = errors.New("simulation finished")

// Options configures a run beyond the config file.
type Options struct {
	Seed          int64  // 0 = config seed
	RunID         string // empty = generated
	MaxTicks      int    // 0 = config tick budget
	LogStats      bool   // log stats and bookmarks via slog
	OutputDir     string // CSV, config and run info (empty = disabled)
	SnapshotDir   string // JSON snapshots (empty = disabled)
	SnapshotEvery int    // periodic snapshots every N ticks (0 = bookmarks only)

	// StatsCallback is called with every tick record.
	StatsCallback func(telemetry.TickStats)
}

// Simulation owns one run. It is single-threaded.
type Simulation struct {
	cfg  *config.Config
	opts Options

	ctx        *Context
	scheduler  *systems.Scheduler
	env        *systems.Environment
	hives      []systems.Colony
	steppables []Steppable

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	results   []telemetry.TickStats

	runID    string
	maxTicks int32
	done     bool
}

// New validates cfg and builds the initial state: plants placed, initial
// populations spawned and first bout resets scheduled.
func New(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	seed := opts.Seed
	if seed == 0 {
		seed = cfg.Simulation.Seed
	}
	maxTicks := opts.MaxTicks
	if maxTicks == 0 {
		maxTicks = cfg.Simulation.Ticks
	}

	window := cfg.Telemetry.LogEvery
	if window <= 0 {
		window = cfg.Telemetry.PerfWindow
	}

	if opts.RunID == "" {
		opts.RunID = telemetry.NewRunID()
	}

	s := &Simulation{
		cfg:       cfg,
		opts:      opts,
		ctx:       NewContext(seed),
		scheduler: systems.NewScheduler(),
		collector: telemetry.NewCollector(window),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarks: telemetry.NewBookmarkDetector(10),
		runID:     opts.RunID,
		maxTicks:  int32(maxTicks),
	}

	env, err := newEnvironment(cfg, s.ctx)
	if err != nil {
		return nil, err
	}
	s.env = env

	hives, err := newHives(cfg, s.ctx, env)
	if err != nil {
		return nil, err
	}
	s.hives = hives

	s.steppables = append(s.steppables, env)
	for _, h := range hives {
		s.steppables = append(s.steppables, h)
	}

	// Lifespan and bout-reset events from setup.
	s.ctx.Flush(s.scheduler)

	if err := s.openOutput(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulation) openOutput() error {
	om, err := telemetry.NewOutputManager(s.opts.OutputDir)
	if err != nil {
		return err
	}
	if om == nil {
		return nil
	}
	s.output = om

	if err := om.WriteConfig(s.cfg); err != nil {
		return err
	}
	names := make([]string, len(s.hives))
	for i, h := range s.hives {
		names[i] = h.Name()
	}
	return om.WriteRunInfo(telemetry.RunInfo{
		ID:        s.runID,
		Seed:      s.ctx.Seed(),
		Ticks:     int(s.maxTicks),
		Hives:     names,
		StartedAt: time.Now().UTC(),
	})
}

// Step advances the simulation by one tick: due events are applied, the
// environment and then every hive step, deferred events are scheduled and
// the tick is recorded. A returned error ends the run.
func (s *Simulation) Step() error {
	if s.done {
		return ErrFinished
	}
	if err := s.step(); err != nil {
		s.done = true
		return err
	}
	return nil
}

func (s *Simulation) step() error {
	tick := s.ctx.Tick()
	s.perf.StartTick()

	s.perf.StartPhase(telemetry.PhaseEvents)
	if err := s.applyDueEvents(tick); err != nil {
		return err
	}

	s.perf.StartPhase(telemetry.PhaseEnvironment)
	for i, st := range s.steppables {
		if i == 1 {
			s.perf.StartPhase(telemetry.PhaseHives)
		}
		if err := st.Step(s.ctx); err != nil {
			return err
		}
	}

	s.perf.StartPhase(telemetry.PhaseFlush)
	s.ctx.Flush(s.scheduler)

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	stats := s.collector.Record(tick, s.env, s.hives)
	s.results = append(s.results, stats)
	s.perf.EndTick()
	s.emit(stats)

	s.ctx.advance()
	s.done = s.finished(stats)
	return nil
}

// applyDueEvents applies every event due at tick in (tick, insertion) order.
func (s *Simulation) applyDueEvents(tick int32) error {
	for {
		ev, ok := s.scheduler.PopDue(tick)
		if !ok {
			return nil
		}
		if err := s.apply(ev); err != nil {
			return err
		}
	}
}

func (s *Simulation) apply(ev systems.Event) error {
	switch ev.Kind {
	case systems.EventReplenish:
		s.env.Refill(ev.Flower)
	case systems.EventSenescence:
		s.env.Senesce(s.ctx, ev.Plant)
	case systems.EventPlantGrowth:
		return s.env.Grow(s.ctx, ev)
	case systems.EventBoutReset:
		h, err := s.hive(ev.Hive)
		if err != nil {
			return err
		}
		return h.ResetBout(s.ctx)
	case systems.EventRespawn:
		h, err := s.hive(ev.Hive)
		if err != nil {
			return err
		}
		_, err = h.Spawn(s.ctx, ev.Count)
		return err
	default:
		return fmt.Errorf("tick %d: unknown event kind %s", ev.Tick, ev.Kind)
	}
	return nil
}

func (s *Simulation) hive(id uint32) (systems.Colony, error) {
	if id == 0 || int(id) > len(s.hives) {
		return nil, fmt.Errorf("tick %d: event for unknown hive %d", s.ctx.Tick(), id)
	}
	return s.hives[id-1], nil
}

// finished reports whether the run ends after the recorded tick.
func (s *Simulation) finished(stats telemetry.TickStats) bool {
	if s.ctx.Tick() >= s.maxTicks {
		return true
	}
	if !s.cfg.Simulation.StopWhenExtinct || stats.Agents > 0 {
		return false
	}
	// Delayed replacements are already on their way.
	if s.scheduler.Pending(systems.EventRespawn) > 0 {
		return false
	}
	slog.Info("no pollinators remain", "tick", stats.Tick)
	return true
}

// emit hands the tick record to the callback, logs and output files, and
// runs window-level bookmark detection.
func (s *Simulation) emit(stats telemetry.TickStats) {
	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}

	tick := stats.Tick
	logEvery := int32(s.cfg.Telemetry.LogEvery)
	if s.opts.LogStats && logEvery > 0 && tick%logEvery == 0 {
		stats.LogStats()
	}

	if err := s.output.WriteTick(stats); err != nil {
		slog.Error("failed to write telemetry", "error", err)
	}

	if s.opts.SnapshotEvery > 0 && tick%int32(s.opts.SnapshotEvery) == 0 {
		s.saveSnapshot(nil)
	}

	if !s.collector.ShouldFlush(tick) {
		return
	}
	window := s.collector.Flush()
	perfStats := s.perf.Stats()
	if s.opts.LogStats {
		perfStats.LogStats()
	}
	if err := s.output.WritePerf(perfStats, window.EndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, bm := range s.bookmarks.Check(window) {
		if s.opts.LogStats {
			bm.LogBookmark()
		}
		if err := s.output.WriteBookmark(bm); err != nil {
			slog.Error("failed to write bookmark", "error", err)
		}
		s.saveSnapshot(&bm)
	}
}

// saveSnapshot writes the current state to the snapshot directory, if set.
func (s *Simulation) saveSnapshot(bookmark *telemetry.Bookmark) {
	if s.opts.SnapshotDir == "" {
		return
	}
	snapshot := s.Snapshot()
	snapshot.Bookmark = bookmark

	path, err := telemetry.SaveSnapshot(snapshot, s.opts.SnapshotDir)
	if err != nil {
		slog.Error("failed to save snapshot", "error", err)
		return
	}
	slog.Debug("snapshot saved", "path", path, "tick", snapshot.Tick)
}

// Run steps until the tick budget is spent or the run ends early.
func (s *Simulation) Run() error {
	for !s.done {
		if err := s.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Done reports whether the run has ended.
func (s *Simulation) Done() bool { return s.done }

// Tick returns the next tick to be simulated.
func (s *Simulation) Tick() int32 { return s.ctx.Tick() }

// Seed returns the run's RNG seed.
func (s *Simulation) Seed() int64 { return s.ctx.Seed() }

// RunID returns the run identifier written to run.json.
func (s *Simulation) RunID() string { return s.runID }

// Results returns one record per simulated tick in tick order.
func (s *Simulation) Results() []telemetry.TickStats { return s.results }

// Environment returns the environment. Callers must not mutate it.
func (s *Simulation) Environment() *systems.Environment { return s.env }

// Hives returns the hives in registration order. Callers must not mutate them.
func (s *Simulation) Hives() []systems.Colony { return s.hives }

// Scheduler returns the event queue.
func (s *Simulation) Scheduler() *systems.Scheduler { return s.scheduler }

// Snapshot captures the current state for visualisers.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	return telemetry.BuildSnapshot(s.ctx.Seed(), s.ctx.Tick(), s.env, s.hives)
}

// Close flushes and closes output files.
func (s *Simulation) Close() error {
	return s.output.Close()
}
