package systems

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

// EnvParams configures the patch grid.
type EnvParams struct {
	PatchesX, PatchesY int
	PatchSize          float64
	MaxPlantsPerPatch  int
	Boundary           components.Boundary
	CellSize           float64
	PollenDecay        float64
	ReplenishDelay     int
}

// Placement asks for Count plants of one species inside Area of a patch.
type Placement struct {
	Species  *Species
	Patch    int
	Area     components.Rect
	Count    int
	Clumping float64
}

// Pollen below this viability no longer pollinates.
const minViability = 0.01

// VisitRequest carries what a pollinator brings to a flower.
type VisitRequest struct {
	Carrier   uint32
	Carried   *components.PollenStore
	Nectar    int // nectar wanted
	Deposit   int // pollen units to deposit
	Collect   int // pollen units to pick up
	Carryover int // landings a carried unit survives (0 = unlimited)
}

// VisitResult reports the outcome of a landing.
type VisitResult struct {
	FlowerID     uint32
	PlantID      uint32
	SpeciesID    uint32
	Signature    *colour.Signature
	Reward       int
	Deposited    int
	Pollinations int
	Collected    int
	Evicted      int
	NeedsRefill  bool
}

// Environment owns every patch, plant and flower. Flowers are ark entities;
// agents refer to them by entity handle and check Alive before use.
type Environment struct {
	world        *ecs.World
	flowerMapper *ecs.Map4[components.Flower, components.Nectar, components.Bloom, components.PollenStore]
	flowerMap    *ecs.Map1[components.Flower]
	nectarMap    *ecs.Map1[components.Nectar]

	params  EnvParams
	bounds  components.Rect
	grid    *FlowerGrid
	colour  *colour.Model
	patches []*Patch
	species []*Species

	plants     []*Plant // live plants, ascending ID
	plantIndex map[uint32]*Plant
	flowers    []ecs.Entity // live flowers, ascending ID

	nextPlantID  uint32
	nextFlowerID uint32
	seedsLost    int
	senesced     int
}

// NewEnvironment builds an empty patch grid.
func NewEnvironment(p EnvParams, model *colour.Model) *Environment {
	world := ecs.NewWorld()

	width := float64(p.PatchesX) * p.PatchSize
	height := float64(p.PatchesY) * p.PatchSize
	cellSize := p.CellSize
	if cellSize <= 0 {
		cellSize = p.PatchSize
	}

	env := &Environment{
		world: world,
		flowerMapper: ecs.NewMap4[
			components.Flower,
			components.Nectar,
			components.Bloom,
			components.PollenStore,
		](world),
		flowerMap:  ecs.NewMap1[components.Flower](world),
		nectarMap:  ecs.NewMap1[components.Nectar](world),
		params:     p,
		bounds:     components.Rect{Max: components.FPos{X: width, Y: height}},
		grid:       NewFlowerGrid(width, height, cellSize, p.Boundary == components.BoundaryWrap),
		colour:     model,
		plantIndex: make(map[uint32]*Plant),
		// IDs start at 1 so zero never names a live plant or flower.
		nextPlantID:  1,
		nextFlowerID: 1,
	}

	for y := 0; y < p.PatchesY; y++ {
		for x := 0; x < p.PatchesX; x++ {
			origin := components.FPos{X: float64(x) * p.PatchSize, Y: float64(y) * p.PatchSize}
			env.patches = append(env.patches, &Patch{
				Index:     len(env.patches),
				Cell:      components.IPos{X: x, Y: y},
				Bounds:    components.Rect{Min: origin, Max: components.FPos{X: origin.X + p.PatchSize, Y: origin.Y + p.PatchSize}},
				MaxPlants: p.MaxPlantsPerPatch,
			})
		}
	}
	return env
}

// Bounds returns the environment rectangle.
func (env *Environment) Bounds() components.Rect { return env.bounds }

// Boundary returns the edge behaviour.
func (env *Environment) Boundary() components.Boundary { return env.params.Boundary }

// ReplenishDelay is the number of ticks between nectar depletion and refill.
func (env *Environment) ReplenishDelay() int32 { return int32(max(env.params.ReplenishDelay, 1)) }

// Colour returns the colour model used for signatures.
func (env *Environment) Colour() *colour.Model { return env.colour }

// Patches returns the patch grid in row-major order.
func (env *Environment) Patches() []*Patch { return env.patches }

// Plants returns the live plants in ID order.
func (env *Environment) Plants() []*Plant { return env.plants }

// Plant returns a live plant by ID.
func (env *Environment) Plant(id uint32) (*Plant, bool) {
	p, ok := env.plantIndex[id]
	return p, ok
}

// Flowers returns the live flower handles in ID order. The slice must not be
// modified.
func (env *Environment) Flowers() []ecs.Entity { return env.flowers }

// NumFlowers returns the number of live flowers.
func (env *Environment) NumFlowers() int { return len(env.flowers) }

// SeedsLost returns how many seeds could not be planted in a full patch.
func (env *Environment) SeedsLost() int { return env.seedsLost }

// Senesced returns how many plants have died.
func (env *Environment) Senesced() int { return env.senesced }

// Distance measures between two points, toroidally when the edges wrap.
func (env *Environment) Distance(a, b components.FPos) float64 {
	return env.grid.Distance(a, b)
}

// RegisterSpecies adds a species. Its ID is its registration index.
func (env *Environment) RegisterSpecies(sp *Species) {
	sp.ID = uint32(len(env.species))
	env.species = append(env.species, sp)
}

// Species returns the registered species in ID order.
func (env *Environment) Species() []*Species { return env.species }

// PatchAt returns the patch containing p.
func (env *Environment) PatchAt(p components.FPos) *Patch {
	c := components.CellOf(p, env.params.PatchSize)
	c.X = min(max(c.X, 0), env.params.PatchesX-1)
	c.Y = min(max(c.Y, 0), env.params.PatchesY-1)
	return env.patches[c.Y*env.params.PatchesX+c.X]
}

// Alive is the freshness check for a flower handle.
func (env *Environment) Alive(e ecs.Entity) bool {
	return env.world.Alive(e)
}

// Flower returns the components of a live flower.
func (env *Environment) Flower(e ecs.Entity) (*components.Flower, *components.Nectar, *components.Bloom, *components.PollenStore) {
	return env.flowerMapper.Get(e)
}

// FlowerInfo returns the identity of a live flower.
func (env *Environment) FlowerInfo(e ecs.Entity) *components.Flower {
	return env.flowerMap.Get(e)
}

// Nearest returns the closest live flower to p within maxDist accepted by keep.
func (env *Environment) Nearest(p components.FPos, maxDist float64, keep func(ecs.Entity) bool) (ecs.Entity, bool) {
	e, _, ok := env.grid.Nearest(p, maxDist, keep)
	return e, ok
}

// WithinRadius appends flowers within r of p to dst in flower ID order.
func (env *Environment) WithinRadius(dst []ecs.Entity, p components.FPos, r float64) []ecs.Entity {
	return env.grid.WithinRadius(dst, p, r)
}

// Populate places the initial plants.
func (env *Environment) Populate(ctx Context, field *PlacementField, plan []Placement) error {
	rng := ctx.Rand()
	for _, pl := range plan {
		for i := 0; i < pl.Count; i++ {
			pos := field.Sample(rng, pl.Area, pl.Clumping)
			marker := env.drawMarker(rng.Float64(), pl.Species)
			if _, err := env.AddPlant(ctx, pl.Species, marker, pos, 0); err != nil {
				return fmt.Errorf("placing %s in patch %d: %w", pl.Species.Name, pl.Patch, err)
			}
		}
	}
	return nil
}

func (env *Environment) drawMarker(u float64, sp *Species) colour.MarkerPoint {
	lo, hi := float64(sp.MarkerMin), float64(sp.MarkerMax)
	return env.colour.ClampMarker(lo + u*(hi-lo))
}

// AddPlant creates a plant and its flowers at pos.
func (env *Environment) AddPlant(ctx Context, sp *Species, marker colour.MarkerPoint, pos components.FPos, generation int) (*Plant, error) {
	patch := env.PatchAt(pos)
	if patch.Full() {
		return nil, fmt.Errorf("planting %s at (%.2f, %.2f): %w", sp.Name, pos.X, pos.Y, ErrPatchFull)
	}

	plant := &Plant{
		ID:          env.nextPlantID,
		Species:     sp,
		Signature:   env.colour.Signature(marker),
		Pos:         pos,
		Patch:       patch.Index,
		State:       components.PlantAlive,
		PlantedTick: ctx.Tick(),
		Generation:  generation,
	}
	env.nextPlantID++
	if err := patch.Add(plant); err != nil {
		return nil, err
	}

	rng := ctx.Rand()
	for i := 0; i < sp.NumFlowers; i++ {
		fpos := pos
		if i > 0 && sp.FlowerSpread > 0 {
			angle := rng.Float64() * 2 * math.Pi
			r := rng.Float64() * sp.FlowerSpread
			fpos = clampInto(components.FPos{X: pos.X + r*math.Cos(angle), Y: pos.Y + r*math.Sin(angle)}, patch.Bounds)
		}
		plant.Flowers = append(plant.Flowers, env.newFlower(plant, fpos))
	}

	env.plants = append(env.plants, plant)
	env.plantIndex[plant.ID] = plant

	if sp.Lifespan > 0 {
		ctx.Defer(Event{Tick: ctx.Tick() + int32(sp.Lifespan), Kind: EventSenescence, Plant: plant.ID})
	}
	return plant, nil
}

func (env *Environment) newFlower(plant *Plant, pos components.FPos) ecs.Entity {
	sp := plant.Species
	flower := components.Flower{
		ID:        env.nextFlowerID,
		PlantID:   plant.ID,
		SpeciesID: sp.ID,
		Pos:       pos,
		Signature: plant.Signature,
	}
	env.nextFlowerID++
	nectar := components.Nectar{Amount: sp.NectarReward, Max: sp.NectarReward}
	bloom := components.Bloom{AntherPollen: sp.AntherPollen, AntherLoss: sp.AntherLossPerVisit, LastVisitedTick: -1}
	store := components.NewPollenStore(sp.StigmaCapacity)

	e := env.flowerMapper.NewEntity(&flower, &nectar, &bloom, &store)
	env.grid.Insert(e, flower.ID, pos)
	env.flowers = append(env.flowers, e)
	return e
}

func clampInto(p components.FPos, r components.Rect) components.FPos {
	return components.FPos{
		X: min(max(p.X, r.Min.X), math.Nextafter(r.Max.X, r.Min.X)),
		Y: min(max(p.Y, r.Min.Y), math.Nextafter(r.Max.Y, r.Min.Y)),
	}
}

// Senesce kills a plant and removes its flowers. Pollinated flowers may set
// seed, scheduling PlantGrowth events near the parent.
func (env *Environment) Senesce(ctx Context, plantID uint32) {
	plant, ok := env.plantIndex[plantID]
	if !ok || !plant.Alive() {
		return
	}
	rng := ctx.Rand()
	sp := plant.Species

	for _, e := range plant.Flowers {
		if !env.world.Alive(e) {
			continue
		}
		f, _, bloom, _ := env.flowerMapper.Get(e)
		if bloom.Pollinated && sp.ReseedProbability > 0 && rng.Float64() < sp.ReseedProbability {
			ctx.Defer(Event{
				Tick:    ctx.Tick() + 1,
				Kind:    EventPlantGrowth,
				Plant:   plant.ID,
				Species: sp.ID,
				Marker:  env.mutateMarker(rng.Float64(), plant.Signature.MarkerPoint, sp.MarkerMutation),
				Pos:     env.seedPosition(rng.Float64(), rng.Float64(), f.Pos),
				Gen:     plant.Generation + 1,
			})
		}
		env.removeFlower(e, f)
	}

	plant.State = components.PlantSenescent
	plant.Flowers = nil
	env.patches[plant.Patch].Remove(plant.ID)
	delete(env.plantIndex, plant.ID)
	env.plants = slices.DeleteFunc(env.plants, func(p *Plant) bool { return p.ID == plant.ID })
	env.senesced++
}

func (env *Environment) mutateMarker(u float64, parent colour.MarkerPoint, sigma float64) colour.MarkerPoint {
	if sigma <= 0 || u <= 0 {
		return parent
	}
	mp := distuv.Normal{Mu: float64(parent), Sigma: sigma}.Quantile(u)
	return env.colour.ClampMarker(mp)
}

// seedPosition scatters a seed within half a patch of its parent flower.
func (env *Environment) seedPosition(u, v float64, parent components.FPos) components.FPos {
	r := u * env.params.PatchSize / 2
	angle := v * 2 * math.Pi
	p := components.FPos{X: parent.X + r*math.Cos(angle), Y: parent.Y + r*math.Sin(angle)}
	m := Mover{Bounds: env.bounds, Boundary: env.params.Boundary}
	return m.Confine(p)
}

func (env *Environment) removeFlower(e ecs.Entity, f *components.Flower) {
	env.grid.Remove(f.ID, f.Pos)
	env.flowers = slices.DeleteFunc(env.flowers, func(x ecs.Entity) bool { return x == e })
	env.world.RemoveEntity(e)
}

// Grow plants a seed from a PlantGrowth event. A seed landing in a full
// patch is lost.
func (env *Environment) Grow(ctx Context, ev Event) error {
	if int(ev.Species) >= len(env.species) {
		return invariantf(ctx.Tick(), fmt.Sprintf("species %d", ev.Species), "plant growth for unknown species")
	}
	_, err := env.AddPlant(ctx, env.species[ev.Species], ev.Marker, ev.Pos, ev.Gen)
	if errors.Is(err, ErrPatchFull) {
		env.seedsLost++
		return nil
	}
	return err
}

// Refill restores a flower's nectar. Stale handles are ignored.
func (env *Environment) Refill(e ecs.Entity) bool {
	if !env.world.Alive(e) {
		return false
	}
	n := env.nectarMap.Get(e)
	n.Amount = n.Max
	n.RefillPending = false
	return true
}

// Visit lands a pollinator on flower e. Nectar is taken, carried pollen is
// deposited oldest first and anther pollen is collected. A carrier with
// nothing to deposit leaves pollen from the flower's own anther.
func (env *Environment) Visit(tick int32, e ecs.Entity, req VisitRequest) (VisitResult, error) {
	if !env.world.Alive(e) {
		return VisitResult{}, invariantf(tick, "flower", "visit to a removed flower")
	}
	f, nectar, bloom, store := env.flowerMapper.Get(e)
	res := VisitResult{FlowerID: f.ID, PlantID: f.PlantID, SpeciesID: f.SpeciesID, Signature: f.Signature}

	res.Reward = min(req.Nectar, nectar.Amount)
	nectar.Amount -= res.Reward
	if nectar.Amount == 0 && nectar.Max > 0 && !nectar.RefillPending {
		nectar.RefillPending = true
		res.NeedsRefill = true
	}

	carried := req.Carried
	selfDeposit := carried == nil || carried.Len() == 0
	for i := 0; i < req.Deposit; i++ {
		var unit components.Pollen
		if selfDeposit {
			if i > 0 || bloom.AntherPollen == 0 {
				break
			}
			bloom.AntherPollen--
			unit = components.Pollen{SpeciesID: f.SpeciesID, PlantID: f.PlantID}
		} else {
			u, ok := carried.PopOldest()
			if !ok {
				break
			}
			unit = u
		}
		// Viability is judged on the carried age before the unit is restamped
		// as deposited here.
		viable := unit.Viability(tick, env.params.PollenDecay) >= minViability
		unit.CarrierID = req.Carrier
		unit.DepositTick = tick
		if _, evicted := store.Insert(unit, tick, env.params.PollenDecay); evicted {
			res.Evicted++
		}
		res.Deposited++
		if viable && unit.SpeciesID == f.SpeciesID && unit.PlantID != f.PlantID {
			res.Pollinations++
			bloom.Pollinated = true
		}
	}
	if store.Len() > store.Capacity {
		return res, invariantf(tick, fmt.Sprintf("flower %d", f.ID), "pollen store holds %d units, capacity %d", store.Len(), store.Capacity)
	}

	if carried != nil {
		for i := range carried.Units {
			carried.Units[i].Landings++
		}
		if req.Carryover > 0 {
			carried.DropWhere(func(p *components.Pollen) bool { return p.Landings > req.Carryover })
		}

		loss := min(bloom.AntherLoss, bloom.AntherPollen)
		bloom.AntherPollen -= loss
		take := min(loss, req.Collect)
		if carried.Capacity > 0 {
			for i := 0; i < take; i++ {
				carried.Insert(components.Pollen{
					SpeciesID:   f.SpeciesID,
					PlantID:     f.PlantID,
					CarrierID:   req.Carrier,
					DepositTick: tick,
				}, tick, env.params.PollenDecay)
				res.Collected++
			}
		}
	}

	bloom.LastVisitedTick = tick
	bloom.Visits++
	return res, nil
}

// Step checks the environment's structural invariants.
func (env *Environment) Step(ctx Context) error {
	if env.grid.Len() != len(env.flowers) {
		return invariantf(ctx.Tick(), "environment", "spatial index holds %d flowers, entity table %d", env.grid.Len(), len(env.flowers))
	}
	if len(env.plantIndex) != len(env.plants) {
		return invariantf(ctx.Tick(), "environment", "plant index holds %d plants, plant list %d", len(env.plantIndex), len(env.plants))
	}
	for _, p := range env.patches {
		if len(p.Plants) > p.MaxPlants {
			return invariantf(ctx.Tick(), fmt.Sprintf("patch %d", p.Index), "holds %d plants, limit %d", len(p.Plants), p.MaxPlants)
		}
	}
	return nil
}

// NectarTotal sums the nectar of all live flowers.
func (env *Environment) NectarTotal() int {
	total := 0
	for _, e := range env.flowers {
		total += env.nectarMap.Get(e).Amount
	}
	return total
}
