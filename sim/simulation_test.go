package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evobee/config"
	"github.com/pthm-cable/evobee/systems"
	"github.com/pthm-cable/evobee/telemetry"
)

const testYAML = `
simulation:
  ticks: 120
  seed: 7
  stop_when_extinct: true
  replenish_delay: 5
environment:
  patches_x: 2
  patches_y: 2
  patch_size: 10
  max_plants_per_patch: 8
plant_types:
  - species: violet
    marker_min: 400
    marker_max: 420
    num_flowers: 2
    flower_spread: 0.5
    nectar_reward: 2
    anther_pollen: 50
    anther_loss_per_visit: 1
    stigma_capacity: 5
    lifespan: 60
    reseed_probability: 0.5
    marker_mutation: 5
  - species: yellow
    marker_min: 500
    marker_max: 520
    num_flowers: 2
    flower_spread: 0.5
    nectar_reward: 3
    anther_pollen: 50
    anther_loss_per_visit: 1
    stigma_capacity: 5
plant_distributions:
  - species: violet
    density: 0.03
    clumping: 0.5
  - species: yellow
    density: 0.03
    clumping: 0
pollinators:
  - name: honeybee
    foraging: nearest_flower
    constancy: visual
    learning: deliberative_decisive
    innate: giurfa
    constancy_threshold: 0.3
    prob_land_target: 0.8
    prob_land_non_target: 0.2
    perception_radius: 4
    step: levy
    step_length: 1
    max_step_length: 8
    levy_exponent: 1.5
    initial_energy: 20
    energy_per_cycle: 0.5
    energy_per_distance: 0.1
    max_visits_per_bout: 10
    bout_length: 30
    nectar_per_visit: 1
    pollen_capacity: 10
    pollen_carryover: 3
    pollen_deposit: 1
    pollen_collect: 2
hives:
  - name: north
    pollinator: honeybee
    capacity: 4
    initial: 4
    retire_threshold: 1
    respawn_delay: 3
    x: 5
    y: 5
    start_from_hive: true
  - name: south
    pollinator: honeybee
    capacity: 3
    initial: 5
    spawn_rate: 2
    inherit_preference: true
telemetry:
  log_every: 20
  perf_window: 20
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(testYAML))
	require.NoError(t, err)
	return cfg
}

// emptyHive replaces the hives with one that starts without agents.
func emptyHive(cfg *config.Config) {
	cfg.Hives = []config.HiveConfig{{
		Name:       "empty",
		Type:       "honeybee",
		Pollinator: "honeybee",
		Capacity:   2,
		ForageArea: config.Area{MaxX: cfg.Derived.Width, MaxY: cfg.Derived.Height},
	}}
}

func runToEnd(t *testing.T, cfg *config.Config, opts Options) *Simulation {
	t.Helper()
	s, err := New(cfg, opts)
	require.NoError(t, err)
	require.NoError(t, s.Run())
	require.NoError(t, s.Close())
	return s
}

func TestSameSeedProducesIdenticalCSV(t *testing.T) {
	dirA := filepath.Join(t.TempDir(), "a")
	dirB := filepath.Join(t.TempDir(), "b")

	a := runToEnd(t, testConfig(t), Options{OutputDir: dirA})
	b := runToEnd(t, testConfig(t), Options{OutputDir: dirB})

	assert.Equal(t, a.Results(), b.Results())
	assert.NotEqual(t, a.RunID(), b.RunID())

	for _, name := range []string{"telemetry.csv", "hives.csv"} {
		dataA, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		dataB, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.NotEmpty(t, dataA)
		assert.Equal(t, dataA, dataB, name)
	}
	assert.FileExists(t, filepath.Join(dirA, "config.yaml"))
	assert.FileExists(t, filepath.Join(dirA, "run.json"))
}

func TestSeedOptionOverridesConfig(t *testing.T) {
	s, err := New(testConfig(t), Options{Seed: 99, MaxTicks: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(99), s.Seed())

	s, err = New(testConfig(t), Options{MaxTicks: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(7), s.Seed())
}

func TestHivePopulationNeverExceedsCapacity(t *testing.T) {
	cfg := testConfig(t)
	capacity := map[string]int{"north": 4, "south": 3}

	var checked int
	s := runToEnd(t, cfg, Options{StatsCallback: func(stats telemetry.TickStats) {
		for _, h := range stats.Hives {
			assert.LessOrEqual(t, h.Agents, capacity[h.Hive], "tick %d hive %s", stats.Tick, h.Hive)
			checked++
		}
	}})

	assert.Equal(t, 2*len(s.Results()), checked)
	// South asked for 5 with room for 3.
	assert.GreaterOrEqual(t, s.Hives()[1].Counters().Rejected, 2)
}

func TestResultsHaveStrictlyIncreasingTicks(t *testing.T) {
	s := runToEnd(t, testConfig(t), Options{})

	results := s.Results()
	require.Len(t, results, 120)
	for i, r := range results {
		assert.Equal(t, int32(i), r.Tick)
	}
	assert.True(t, s.Done())
	assert.Equal(t, int32(120), s.Tick())
	assert.ErrorIs(t, s.Step(), ErrFinished)
}

func TestBoutResetsAndSenescenceAreApplied(t *testing.T) {
	s := runToEnd(t, testConfig(t), Options{})

	sched := s.Scheduler()
	// Resets at 30, 60 and 90 for each of two hives.
	assert.Equal(t, 6, sched.Applied(systems.EventBoutReset))
	// Every violet plant dies at tick 60.
	assert.Equal(t, 12, sched.Applied(systems.EventSenescence))

	last := s.Results()[len(s.Results())-1]
	assert.GreaterOrEqual(t, last.Senesced, 12)
}

func TestInitialPlacementFollowsDensity(t *testing.T) {
	s, err := New(testConfig(t), Options{MaxTicks: 1})
	require.NoError(t, err)

	env := s.Environment()
	require.Len(t, env.Patches(), 4)
	for _, p := range env.Patches() {
		assert.Len(t, p.Plants, 6, "patch %d", p.Index)
		for _, pl := range p.Plants {
			assert.True(t, p.Bounds.Contains(pl.Pos), "plant %d outside patch %d", pl.ID, p.Index)
		}
	}
	assert.Equal(t, 48, env.NumFlowers())
}

func TestStopWhenExtinct(t *testing.T) {
	cfg := testConfig(t)
	emptyHive(cfg)
	s := runToEnd(t, cfg, Options{})
	assert.Len(t, s.Results(), 1)
	assert.Zero(t, s.Results()[0].Agents)

	cfg = testConfig(t)
	emptyHive(cfg)
	cfg.Simulation.StopWhenExtinct = false
	s = runToEnd(t, cfg, Options{MaxTicks: 40})
	assert.Len(t, s.Results(), 40)
	// The first bout reset fills the hive.
	assert.Zero(t, s.Results()[29].Agents)
	assert.Equal(t, 2, s.Results()[35].Agents)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.Environment.MaxPlantsPerPatch = 2

	_, err := New(cfg, Options{})
	require.Error(t, err)

	var fe *config.FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "plant_distributions", fe.Field)
}

func TestSnapshotMatchesState(t *testing.T) {
	dir := t.TempDir()
	s, err := New(testConfig(t), Options{MaxTicks: 10, SnapshotDir: dir, SnapshotEvery: 5})
	require.NoError(t, err)
	require.NoError(t, s.Run())

	snap := s.Snapshot()
	assert.Equal(t, int32(10), snap.Tick)
	agents := 0
	for _, h := range s.Hives() {
		agents += len(h.Agents())
	}
	assert.Len(t, snap.Agents, agents)
	assert.Len(t, snap.Flowers, s.Environment().NumFlowers())

	assert.FileExists(t, filepath.Join(dir, "snapshot_0.json"))
	assert.FileExists(t, filepath.Join(dir, "snapshot_5.json"))
}
