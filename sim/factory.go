package sim

import (
	"fmt"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
	"github.com/pthm-cable/evobee/config"
	"github.com/pthm-cable/evobee/systems"
)

// newEnvironment builds the colour model and the patch grid, registers every
// plant type and places the initial plants.
func newEnvironment(cfg *config.Config, ctx *Context) (*systems.Environment, error) {
	model, err := colour.NewModel(cfg.ColourParams())
	if err != nil {
		return nil, fmt.Errorf("building colour model: %w", err)
	}

	ec := cfg.Environment
	env := systems.NewEnvironment(systems.EnvParams{
		PatchesX:          ec.PatchesX,
		PatchesY:          ec.PatchesY,
		PatchSize:         ec.PatchSize,
		MaxPlantsPerPatch: ec.MaxPlantsPerPatch,
		Boundary:          ec.Boundary,
		CellSize:          ec.CellSize,
		PollenDecay:       cfg.Simulation.PollenDecay,
		ReplenishDelay:    cfg.Simulation.ReplenishDelay,
	}, model)

	species := make(map[string]*systems.Species, len(cfg.PlantTypes))
	for _, pt := range cfg.PlantTypes {
		sp := newSpecies(model, pt)
		env.RegisterSpecies(sp)
		species[pt.Species] = sp
	}

	plan, err := placementPlan(cfg, species)
	if err != nil {
		return nil, err
	}
	field := systems.NewPlacementField(ctx.Rand().Int63())
	if err := env.Populate(ctx, field, plan); err != nil {
		return nil, fmt.Errorf("placing plants: %w", err)
	}
	return env, nil
}

func newSpecies(model *colour.Model, pt config.PlantTypeConfig) *systems.Species {
	return &systems.Species{
		Name:               pt.Species,
		MarkerMin:          model.ClampMarker(float64(pt.MarkerMin)),
		MarkerMax:          model.ClampMarker(float64(pt.MarkerMax)),
		NumFlowers:         pt.NumFlowers,
		FlowerSpread:       pt.FlowerSpread,
		NectarReward:       pt.NectarReward,
		AntherPollen:       pt.AntherPollen,
		AntherLossPerVisit: pt.AntherLossPerVisit,
		StigmaCapacity:     pt.StigmaCapacity,
		Lifespan:           pt.Lifespan,
		ReseedProbability:  pt.ReseedProbability,
		MarkerMutation:     pt.MarkerMutation,
	}
}

// placementPlan lists the plants to place, patch by patch in row-major
// order and distribution order within a patch.
func placementPlan(cfg *config.Config, species map[string]*systems.Species) ([]systems.Placement, error) {
	ec := cfg.Environment
	var plan []systems.Placement
	for py := 0; py < ec.PatchesY; py++ {
		for px := 0; px < ec.PatchesX; px++ {
			patch := cfg.PatchArea(px, py)
			for i, n := range cfg.PlantsForPatch(px, py) {
				if n == 0 {
					continue
				}
				d := cfg.PlantDistributions[i]
				sp, ok := species[d.Species]
				if !ok {
					return nil, fmt.Errorf("plant distribution %d: unknown species %q", i, d.Species)
				}
				plan = append(plan, systems.Placement{
					Species:  sp,
					Patch:    py*ec.PatchesX + px,
					Area:     d.Area.Intersect(patch).Rect(),
					Count:    n,
					Clumping: d.Clumping,
				})
			}
		}
	}
	return plan, nil
}

// newStrategy translates a pollinator config into its behavioural strategy.
func newStrategy(pc *config.PollinatorConfig, env *systems.Environment) *systems.Strategy {
	return &systems.Strategy{
		Foraging:           pc.Foraging,
		Constancy:          pc.Constancy,
		ConstancyThreshold: pc.ConstancyThreshold,
		Learning: systems.Learning{
			Strategy:      pc.Learning,
			Rate:          deref(pc.LearningRate),
			Aversion:      deref(pc.Aversion),
			ProbLandDelta: pc.ProbLandDelta,
			BaseTarget:    pc.ProbLandTarget,
			BaseNonTarget: pc.ProbLandNonTarget,
			Innate:        pc.Innate,
			InnateMarker:  env.Colour().ClampMarker(float64(pc.InnateMarker)),
		},
		Mover: systems.Mover{
			Step:      pc.Step,
			Length:    pc.StepLength,
			MaxLength: pc.MaxStepLength,
			Exponent:  pc.LevyExponent,
			Bounds:    env.Bounds(),
			Boundary:  env.Boundary(),
		},
		PerceptionRadius:  pc.PerceptionRadius,
		InitialEnergy:     pc.InitialEnergy,
		EnergyPerCycle:    pc.EnergyPerCycle,
		EnergyPerDistance: pc.EnergyPerDistance,
		MaxVisitsPerBout:  pc.MaxVisitsPerBout,
		NectarPerVisit:    pc.NectarPerVisit,
		PollenCapacity:    pc.PollenCapacity,
		PollenCarryover:   pc.PollenCarryover,
		PollenDeposit:     pc.PollenDeposit,
		PollenCollect:     pc.PollenCollect,
	}
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// newHives creates every hive in config order, spawns the initial
// populations and defers each hive's first bout reset. Hive IDs start at 1.
func newHives(cfg *config.Config, ctx *Context, env *systems.Environment) ([]systems.Colony, error) {
	ids := &systems.AgentIDs{}
	strategies := make(map[string]*systems.Strategy, len(cfg.Pollinators))

	hives := make([]systems.Colony, 0, len(cfg.Hives))
	for i, hc := range cfg.Hives {
		pc, ok := cfg.Pollinator(hc.Pollinator)
		if !ok {
			return nil, fmt.Errorf("hive %s: unknown pollinator %q", hc.Name, hc.Pollinator)
		}
		s, ok := strategies[pc.Name]
		if !ok {
			s = newStrategy(pc, env)
			strategies[pc.Name] = s
		}

		h, err := systems.MakeHive(hc.Type, uint32(i+1), systems.HiveParams{
			Name:              hc.Name,
			Capacity:          hc.Capacity,
			SpawnRate:         hc.SpawnRate,
			RetireThreshold:   hc.RetireThreshold,
			RespawnDelay:      hc.RespawnDelay,
			BoutLength:        pc.BoutLength,
			InheritPreference: hc.InheritPreference,
			Pos:               components.FPos{X: hc.X, Y: hc.Y},
			StartFromHive:     hc.StartFromHive,
			ForageArea:        hc.ForageArea.Rect(),
		}, s, env, ids)
		if err != nil {
			return nil, fmt.Errorf("hive %s: %w", hc.Name, err)
		}

		if _, err := h.Spawn(ctx, hc.Initial); err != nil {
			return nil, fmt.Errorf("hive %s: initial spawn: %w", hc.Name, err)
		}
		if pc.BoutLength > 0 {
			ctx.Defer(systems.Event{Tick: ctx.Tick() + int32(pc.BoutLength), Kind: systems.EventBoutReset, Hive: h.ID()})
		}
		hives = append(hives, h)
	}
	return hives, nil
}
