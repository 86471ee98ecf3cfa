package systems

import (
	"errors"
	"testing"

	"github.com/mlange-42/ark/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evobee/components"
)

func TestAddPlantRejectsFullPatch(t *testing.T) {
	ctx := newTestCtx(1)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	for i := 0; i < 5; i++ {
		mustPlant(t, ctx, env, sp, float64(i)+0.5, 1)
	}

	_, err := env.AddPlant(ctx, sp, 400, components.FPos{X: 8, Y: 8}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPatchFull))
	assert.Len(t, env.Plants(), 5)
	assert.Equal(t, 5, env.NumFlowers())
	require.NoError(t, env.Step(ctx))
}

func TestAddPlantScattersFlowersInsidePatch(t *testing.T) {
	ctx := newTestCtx(2)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	sp.NumFlowers = 4
	sp.FlowerSpread = 3

	plant := mustPlant(t, ctx, env, sp, 9.5, 9.5)
	require.Len(t, plant.Flowers, 4)

	first := env.FlowerInfo(plant.Flowers[0])
	assert.Equal(t, plant.Pos, first.Pos)

	patch := env.Patches()[plant.Patch]
	var prev uint32
	for _, e := range plant.Flowers {
		f := env.FlowerInfo(e)
		assert.True(t, patch.Bounds.Contains(f.Pos))
		assert.Equal(t, plant.ID, f.PlantID)
		assert.Same(t, plant.Signature, f.Signature)
		assert.Greater(t, f.ID, prev)
		prev = f.ID
	}
}

func TestLifespanSchedulesSenescence(t *testing.T) {
	ctx := newTestCtx(3)
	ctx.tick = 7
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	sp.Lifespan = 20

	plant := mustPlant(t, ctx, env, sp, 5, 5)
	require.Len(t, ctx.deferred, 1)
	assert.Equal(t, Event{Tick: 27, Kind: EventSenescence, Plant: plant.ID}, ctx.deferred[0])
}

func TestSenesceRemovesFlowersAndReseeds(t *testing.T) {
	ctx := newTestCtx(4)
	ctx.tick = 12
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	sp.NumFlowers = 2
	sp.ReseedProbability = 1

	plant := mustPlant(t, ctx, env, sp, 5, 5)
	other := mustPlant(t, ctx, env, sp, 2, 2)
	_, _, bloom, _ := env.Flower(plant.Flowers[0])
	bloom.Pollinated = true
	handles := append([]ecs.Entity(nil), plant.Flowers...)

	env.Senesce(ctx, plant.ID)

	for _, h := range handles {
		assert.False(t, env.Alive(h))
	}
	assert.Equal(t, components.PlantSenescent, plant.State)
	_, ok := env.Plant(plant.ID)
	assert.False(t, ok)
	assert.Equal(t, []*Plant{other}, env.Plants())
	assert.Equal(t, len(other.Flowers), env.NumFlowers())
	assert.Equal(t, 1, env.Senesced())
	require.NoError(t, env.Step(ctx))

	// Only the pollinated flower sets seed.
	require.Len(t, ctx.deferred, 1)
	seed := ctx.deferred[0]
	assert.Equal(t, EventPlantGrowth, seed.Kind)
	assert.Equal(t, int32(13), seed.Tick)
	assert.Equal(t, sp.ID, seed.Species)
	assert.Equal(t, 1, seed.Gen)
	assert.True(t, env.Bounds().Contains(seed.Pos))

	// A second senescence of the same plant is a no-op.
	env.Senesce(ctx, plant.ID)
	assert.Equal(t, 1, env.Senesced())

	ctx.tick = seed.Tick
	require.NoError(t, env.Grow(ctx, seed))
	plants := env.Plants()
	require.Len(t, plants, 2)
	child := plants[1]
	assert.Equal(t, 1, child.Generation)
	assert.Equal(t, seed.Marker, child.Signature.MarkerPoint)
	assert.Greater(t, child.ID, plant.ID)
}

func TestGrowIntoFullPatchLosesSeed(t *testing.T) {
	ctx := newTestCtx(5)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	for i := 0; i < 5; i++ {
		mustPlant(t, ctx, env, sp, float64(i)+0.5, 1)
	}

	err := env.Grow(ctx, Event{Kind: EventPlantGrowth, Species: sp.ID, Marker: 400, Pos: components.FPos{X: 5, Y: 5}})
	require.NoError(t, err)
	assert.Equal(t, 1, env.SeedsLost())
	assert.Len(t, env.Plants(), 5)

	var inv *InvariantError
	err = env.Grow(ctx, Event{Kind: EventPlantGrowth, Species: 99})
	assert.True(t, errors.As(err, &inv))
}

func TestVisitEvictsOnePerOverflow(t *testing.T) {
	ctx := newTestCtx(6)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	donor := mustPlant(t, ctx, env, sp, 2, 2)
	target := mustPlant(t, ctx, env, sp, 5, 5)

	carried := components.NewPollenStore(10)
	for i := 0; i < 5; i++ {
		carried.Insert(components.Pollen{SpeciesID: sp.ID, PlantID: donor.ID, DepositTick: int32(i)}, 0, 0)
	}

	res, err := env.Visit(5, target.Flowers[0], VisitRequest{Carrier: 3, Carried: &carried, Deposit: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Deposited)
	assert.Equal(t, 2, res.Evicted)
	assert.Equal(t, 5, res.Pollinations)
	assert.Zero(t, carried.Len())

	_, _, bloom, store := env.Flower(target.Flowers[0])
	assert.Equal(t, store.Capacity, store.Len())
	assert.True(t, bloom.Pollinated)
	for _, u := range store.Units {
		assert.Equal(t, uint32(3), u.CarrierID)
		assert.Equal(t, int32(5), u.DepositTick)
	}
	assert.Equal(t, int32(5), bloom.LastVisitedTick)
	assert.Equal(t, 1, bloom.Visits)
}

func TestVisitSelfPollenDoesNotPollinate(t *testing.T) {
	ctx := newTestCtx(7)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	plant := mustPlant(t, ctx, env, sp, 5, 5)

	carried := components.NewPollenStore(10)
	res, err := env.Visit(0, plant.Flowers[0], VisitRequest{Carrier: 1, Carried: &carried, Nectar: 2, Deposit: 3, Collect: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reward)
	assert.Equal(t, 1, res.Deposited)
	assert.Zero(t, res.Pollinations)
	// Anther loss caps collection.
	assert.Equal(t, sp.AntherLossPerVisit, res.Collected)
	assert.Equal(t, sp.AntherLossPerVisit, carried.Len())

	_, _, bloom, _ := env.Flower(plant.Flowers[0])
	assert.False(t, bloom.Pollinated)
	assert.Equal(t, sp.AntherPollen-1-sp.AntherLossPerVisit, bloom.AntherPollen)
}

func TestVisitDropsPollenPastCarryover(t *testing.T) {
	ctx := newTestCtx(8)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	sp.AntherLossPerVisit = 0
	plant := mustPlant(t, ctx, env, sp, 5, 5)

	carried := components.NewPollenStore(10)
	carried.Insert(components.Pollen{SpeciesID: 9, PlantID: 9}, 0, 0)
	carried.Insert(components.Pollen{SpeciesID: 9, PlantID: 9}, 0, 0)
	carried.Insert(components.Pollen{SpeciesID: 9, PlantID: 9}, 0, 0)

	req := VisitRequest{Carried: &carried, Carryover: 1}
	_, err := env.Visit(0, plant.Flowers[0], req)
	require.NoError(t, err)
	assert.Equal(t, 3, carried.Len())

	_, err = env.Visit(1, plant.Flowers[0], req)
	require.NoError(t, err)
	assert.Zero(t, carried.Len())
}

func TestVisitRemovedFlowerIsInvariantError(t *testing.T) {
	ctx := newTestCtx(9)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	plant := mustPlant(t, ctx, env, sp, 5, 5)
	e := plant.Flowers[0]
	env.Senesce(ctx, plant.ID)

	_, err := env.Visit(3, e, VisitRequest{})
	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, int32(3), inv.Tick)
	assert.False(t, env.Refill(e))
}

func TestPopulateFollowsPlan(t *testing.T) {
	ctx := newTestCtx(10)
	env := NewEnvironment(EnvParams{PatchesX: 2, PatchesY: 1, PatchSize: 10, MaxPlantsPerPatch: 6}, testModel(t))
	a := testSpecies(env, "a", 400)
	a.MarkerMax = 440
	b := testSpecies(env, "b", 550)

	left := env.Patches()[0]
	right := env.Patches()[1]
	plan := []Placement{
		{Species: a, Patch: 0, Area: left.Bounds, Count: 4, Clumping: 0.5},
		{Species: b, Patch: 1, Area: right.Bounds, Count: 2},
	}
	require.NoError(t, env.Populate(ctx, NewPlacementField(1), plan))

	assert.Len(t, left.Plants, 4)
	assert.Len(t, right.Plants, 2)
	for _, p := range left.Plants {
		assert.Same(t, a, p.Species)
		assert.GreaterOrEqual(t, p.Signature.MarkerPoint, a.MarkerMin)
		assert.LessOrEqual(t, p.Signature.MarkerPoint, a.MarkerMax)
	}
	for _, p := range right.Plants {
		assert.Same(t, b, p.Species)
		assert.True(t, right.Bounds.Contains(p.Pos))
	}

	plan = []Placement{{Species: a, Patch: 0, Area: left.Bounds, Count: 3}}
	err := env.Populate(ctx, NewPlacementField(1), plan)
	assert.True(t, errors.Is(err, ErrPatchFull))
}

func TestNectarTotal(t *testing.T) {
	ctx := newTestCtx(11)
	env := testEnv(t)
	sp := testSpecies(env, "a", 400)
	plant := mustPlant(t, ctx, env, sp, 5, 5)
	mustPlant(t, ctx, env, sp, 6, 6)
	assert.Equal(t, 10, env.NectarTotal())

	res, err := env.Visit(0, plant.Flowers[0], VisitRequest{Nectar: 10})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Reward)
	assert.True(t, res.NeedsRefill)
	assert.Equal(t, 5, env.NectarTotal())

	// A second depleting visit does not ask for another refill.
	res, err = env.Visit(1, plant.Flowers[0], VisitRequest{Nectar: 1})
	require.NoError(t, err)
	assert.False(t, res.NeedsRefill)
}

func TestVisitJudgesViabilityOnCarriedAge(t *testing.T) {
	ctx := newTestCtx(13)
	env := NewEnvironment(EnvParams{
		PatchesX:          1,
		PatchesY:          1,
		PatchSize:         10,
		MaxPlantsPerPatch: 5,
		CellSize:          2,
		ReplenishDelay:    3,
		PollenDecay:       1,
	}, testModel(t))
	sp := testSpecies(env, "a", 400)
	donor := mustPlant(t, ctx, env, sp, 2, 2)
	fresh := mustPlant(t, ctx, env, sp, 5, 5)
	stale := mustPlant(t, ctx, env, sp, 8, 8)

	tests := []struct {
		name         string
		target       *Plant
		tick         int32
		pollinations int
	}{
		{"one tick old", fresh, 1, 1},
		{"hundred ticks old", stale, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carried := components.NewPollenStore(10)
			carried.Insert(components.Pollen{SpeciesID: sp.ID, PlantID: donor.ID, DepositTick: 0}, 0, 1)

			res, err := env.Visit(tt.tick, tt.target.Flowers[0], VisitRequest{Carrier: 1, Carried: &carried, Deposit: 1})
			require.NoError(t, err)
			assert.Equal(t, 1, res.Deposited)
			assert.Equal(t, tt.pollinations, res.Pollinations)

			_, _, bloom, store := env.Flower(tt.target.Flowers[0])
			assert.Equal(t, tt.pollinations == 1, bloom.Pollinated)
			require.Equal(t, 1, store.Len())
			assert.Equal(t, tt.tick, store.Units[0].DepositTick)
		})
	}
}
