package systems

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

// testCtx is a minimal Context that records deferred events.
type testCtx struct {
	rng      *rand.Rand
	tick     int32
	deferred []Event
}

func newTestCtx(seed int64) *testCtx {
	return &testCtx{rng: rand.New(rand.NewSource(seed))}
}

func (c *testCtx) Rand() *rand.Rand { return c.rng }
func (c *testCtx) Tick() int32      { return c.tick }
func (c *testCtx) Defer(ev Event)   { c.deferred = append(c.deferred, ev) }

func testModel(t *testing.T) *colour.Model {
	t.Helper()
	m, err := colour.NewModel(colour.DefaultModelParams())
	require.NoError(t, err)
	return m
}

// testEnv builds a single-patch 10x10 environment.
func testEnv(t *testing.T) *Environment {
	t.Helper()
	return NewEnvironment(EnvParams{
		PatchesX:          1,
		PatchesY:          1,
		PatchSize:         10,
		MaxPlantsPerPatch: 5,
		CellSize:          2,
		ReplenishDelay:    3,
	}, testModel(t))
}

func testSpecies(env *Environment, name string, marker colour.MarkerPoint) *Species {
	sp := &Species{
		Name:               name,
		MarkerMin:          marker,
		MarkerMax:          marker,
		NumFlowers:         1,
		NectarReward:       5,
		AntherPollen:       10,
		AntherLossPerVisit: 2,
		StigmaCapacity:     3,
	}
	env.RegisterSpecies(sp)
	return sp
}

func testStrategy(env *Environment) *Strategy {
	return &Strategy{
		Foraging:  components.ForageNearestFlower,
		Constancy: components.ConstancyNone,
		Learning: Learning{
			Strategy:      components.LearnNone,
			BaseTarget:    1,
			BaseNonTarget: 0,
		},
		Mover: Mover{
			Step:     components.StepConstant,
			Length:   1,
			Bounds:   env.Bounds(),
			Boundary: components.BoundaryReflect,
		},
		PerceptionRadius: 2,
		InitialEnergy:    100,
		EnergyPerCycle:   0.1,
		NectarPerVisit:   1,
		PollenCapacity:   10,
		PollenDeposit:    1,
		PollenCollect:    2,
	}
}

func mustPlant(t *testing.T, ctx Context, env *Environment, sp *Species, x, y float64) *Plant {
	t.Helper()
	p, err := env.AddPlant(ctx, sp, sp.MarkerMin, components.FPos{X: x, Y: y}, 0)
	require.NoError(t, err)
	return p
}

func startedPollinator(t *testing.T, s *Strategy, x, y float64, pref Preference) *Pollinator {
	t.Helper()
	p := NewPollinator(1, 0, components.FPos{X: x, Y: y}, s, pref)
	require.NoError(t, p.Start(0))
	return p
}
