package telemetry

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
	"github.com/pthm-cable/evobee/systems"
)

type stubCtx struct {
	rng  *rand.Rand
	tick int32
}

func (c *stubCtx) Rand() *rand.Rand      { return c.rng }
func (c *stubCtx) Tick() int32           { return c.tick }
func (c *stubCtx) Defer(ev systems.Event) {}

// newFixture builds a 10x10 environment with one flower at (5, 5) and a hive
// of two agents starting on it.
func newFixture(t *testing.T) (*stubCtx, *systems.Environment, []systems.Colony) {
	t.Helper()

	model, err := colour.NewModel(colour.DefaultModelParams())
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	env := systems.NewEnvironment(systems.EnvParams{
		PatchesX:          1,
		PatchesY:          1,
		PatchSize:         10,
		MaxPlantsPerPatch: 4,
	}, model)
	sp := &systems.Species{
		Name:           "yellow",
		MarkerMin:      550,
		MarkerMax:      550,
		NumFlowers:     1,
		NectarReward:   5,
		AntherPollen:   10,
		StigmaCapacity: 4,
	}
	env.RegisterSpecies(sp)

	ctx := &stubCtx{rng: rand.New(rand.NewSource(7))}
	if _, err := env.AddPlant(ctx, sp, 550, components.FPos{X: 5, Y: 5}, 0); err != nil {
		t.Fatalf("AddPlant: %v", err)
	}

	strategy := &systems.Strategy{
		Foraging:  components.ForageNearestFlower,
		Constancy: components.ConstancyNone,
		Learning: systems.Learning{
			Strategy:   components.LearnStay,
			Innate:     components.InnateGiurfa,
			BaseTarget: 1,
		},
		Mover: systems.Mover{
			Step:     components.StepConstant,
			Length:   1,
			Bounds:   env.Bounds(),
			Boundary: components.BoundaryReflect,
		},
		PerceptionRadius: 2,
		InitialEnergy:    100,
		NectarPerVisit:   1,
		PollenCapacity:   4,
		PollenDeposit:    1,
	}
	hive, err := systems.MakeHive("honeybee", 1, systems.HiveParams{
		Name:          "north",
		Capacity:      2,
		StartFromHive: true,
		Pos:           components.FPos{X: 5, Y: 5},
	}, strategy, env, &systems.AgentIDs{})
	if err != nil {
		t.Fatalf("MakeHive: %v", err)
	}
	if _, err := hive.Spawn(ctx, 2); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	return ctx, env, []systems.Colony{hive}
}
