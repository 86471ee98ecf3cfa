package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/evobee/components"
)

// FieldError identifies an invalid configuration field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

type validator struct {
	errs []error
}

func (v *validator) check(ok bool, field, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}
}

// Validate checks the configuration before a run starts. All problems are
// reported together, each as a *FieldError.
func (c *Config) Validate() error {
	v := &validator{}

	s := c.Simulation
	v.check(s.Ticks > 0, "simulation.ticks", "must be positive, got %d", s.Ticks)
	v.check(s.ReplenishDelay >= 1, "simulation.replenish_delay", "must be at least 1, got %d", s.ReplenishDelay)
	v.check(s.PollenDecay >= 0, "simulation.pollen_decay", "must not be negative, got %v", s.PollenDecay)

	e := c.Environment
	v.check(e.PatchesX > 0, "environment.patches_x", "must be positive, got %d", e.PatchesX)
	v.check(e.PatchesY > 0, "environment.patches_y", "must be positive, got %d", e.PatchesY)
	v.check(e.PatchSize > 0, "environment.patch_size", "must be positive, got %v", e.PatchSize)
	v.check(e.MaxPlantsPerPatch > 0, "environment.max_plants_per_patch", "must be positive, got %d", e.MaxPlantsPerPatch)
	v.check(e.Boundary.Valid(), "environment.boundary", "unknown boundary %d", e.Boundary)
	v.check(e.CellSize > 0, "environment.cell_size", "must be positive, got %v", e.CellSize)

	c.validateColour(v)
	c.validatePlants(v)
	c.validatePollinators(v)
	c.validateHives(v)

	return errors.Join(v.errs...)
}

func (c *Config) validateColour(v *validator) {
	cc := c.Colour
	v.check(cc.MinMarker > 0, "colour.min_marker", "must be positive, got %d", cc.MinMarker)
	v.check(cc.MaxMarker >= cc.MinMarker, "colour.max_marker", "must be >= min_marker (%d), got %d", cc.MinMarker, cc.MaxMarker)
	v.check(cc.MaxMarker <= math.MaxUint16, "colour.max_marker", "out of range: %d", cc.MaxMarker)
	v.check(cc.MarkerStep > 0, "colour.marker_step", "must be positive, got %d", cc.MarkerStep)
	v.check(cc.ReceptorWidth > 0, "colour.receptor_width", "must be positive, got %v", cc.ReceptorWidth)
	v.check(cc.BackgroundReflectance > 0, "colour.background_reflectance", "must be positive, got %v", cc.BackgroundReflectance)
	v.check(cc.EdgeSlope > 0, "colour.edge_slope", "must be positive, got %v", cc.EdgeSlope)
	v.check(cc.LowReflectance >= 0 && cc.HighReflectance <= 1 && cc.LowReflectance < cc.HighReflectance,
		"colour.low_reflectance", "need 0 <= low < high <= 1, got %v and %v", cc.LowReflectance, cc.HighReflectance)
}

func (c *Config) validatePlants(v *validator) {
	seen := make(map[string]bool, len(c.PlantTypes))
	for i, pt := range c.PlantTypes {
		f := fmt.Sprintf("plant_types[%d]", i)
		v.check(pt.Species != "", f+".species", "must not be empty")
		v.check(!seen[pt.Species], f+".species", "duplicate species %q", pt.Species)
		seen[pt.Species] = true
		v.check(pt.MarkerMin >= c.Colour.MinMarker && pt.MarkerMax <= c.Colour.MaxMarker && pt.MarkerMin <= pt.MarkerMax,
			f+".marker_min", "range [%d, %d] must lie within colour range [%d, %d]",
			pt.MarkerMin, pt.MarkerMax, c.Colour.MinMarker, c.Colour.MaxMarker)
		v.check(pt.NumFlowers > 0, f+".num_flowers", "must be positive, got %d", pt.NumFlowers)
		v.check(pt.FlowerSpread >= 0, f+".flower_spread", "must not be negative, got %v", pt.FlowerSpread)
		v.check(pt.NectarReward >= 0, f+".nectar_reward", "must not be negative, got %d", pt.NectarReward)
		v.check(pt.AntherPollen >= 0, f+".anther_pollen", "must not be negative, got %d", pt.AntherPollen)
		v.check(pt.AntherLossPerVisit >= 0, f+".anther_loss_per_visit", "must not be negative, got %d", pt.AntherLossPerVisit)
		v.check(pt.StigmaCapacity > 0, f+".stigma_capacity", "must be positive, got %d", pt.StigmaCapacity)
		v.check(pt.Lifespan >= 0, f+".lifespan", "must not be negative, got %d", pt.Lifespan)
		v.check(pt.ReseedProbability >= 0 && pt.ReseedProbability <= 1, f+".reseed_probability", "must be in [0, 1], got %v", pt.ReseedProbability)
		v.check(pt.MarkerMutation >= 0, f+".marker_mutation", "must not be negative, got %v", pt.MarkerMutation)
	}

	world := Area{MaxX: c.Derived.Width, MaxY: c.Derived.Height}
	for i, d := range c.PlantDistributions {
		f := fmt.Sprintf("plant_distributions[%d]", i)
		_, ok := c.Derived.SpeciesIndex[d.Species]
		v.check(ok, f+".species", "unknown species %q", d.Species)
		v.check(d.Density >= 0, f+".density", "must not be negative, got %v", d.Density)
		v.check(d.Clumping >= 0 && d.Clumping <= 1, f+".clumping", "must be in [0, 1], got %v", d.Clumping)
		v.check(d.Area.MinX < d.Area.MaxX && d.Area.MinY < d.Area.MaxY && world.containsArea(d.Area),
			f+".area", "must be a non-empty rectangle inside the environment")
	}

	if c.Environment.PatchSize <= 0 || c.Environment.MaxPlantsPerPatch <= 0 {
		return
	}
	// Each patch receives round(density * overlap) plants per distribution.
	for py := 0; py < c.Environment.PatchesY; py++ {
		for px := 0; px < c.Environment.PatchesX; px++ {
			need := c.PlantsForPatch(px, py)
			total := 0
			for _, n := range need {
				total += n
			}
			v.check(total <= c.Environment.MaxPlantsPerPatch, "plant_distributions",
				"density constraint unsatisfiable: patch (%d,%d) needs %d plants, max_plants_per_patch is %d",
				px, py, total, c.Environment.MaxPlantsPerPatch)
		}
	}
}

// PatchArea returns the rectangle covered by patch (px, py).
func (c *Config) PatchArea(px, py int) Area {
	s := c.Environment.PatchSize
	return Area{
		MinX: float64(px) * s, MinY: float64(py) * s,
		MaxX: float64(px+1) * s, MaxY: float64(py+1) * s,
	}
}

// PlantsForPatch returns the number of plants each distribution places in
// patch (px, py), indexed like PlantDistributions.
func (c *Config) PlantsForPatch(px, py int) []int {
	patch := c.PatchArea(px, py)
	out := make([]int, len(c.PlantDistributions))
	for i, d := range c.PlantDistributions {
		out[i] = int(math.Round(d.Density * patch.overlap(d.Area)))
	}
	return out
}

func (a Area) containsArea(b Area) bool {
	return b.MinX >= a.MinX && b.MinY >= a.MinY && b.MaxX <= a.MaxX && b.MaxY <= a.MaxY
}

// Intersect returns the overlapping rectangle of a and b (zero if disjoint).
func (a Area) Intersect(b Area) Area {
	r := Area{
		MinX: math.Max(a.MinX, b.MinX), MinY: math.Max(a.MinY, b.MinY),
		MaxX: math.Min(a.MaxX, b.MaxX), MaxY: math.Min(a.MaxY, b.MaxY),
	}
	if r.MinX >= r.MaxX || r.MinY >= r.MaxY {
		return Area{}
	}
	return r
}

func (a Area) overlap(b Area) float64 {
	r := a.Intersect(b)
	return (r.MaxX - r.MinX) * (r.MaxY - r.MinY)
}

func (c *Config) validatePollinators(v *validator) {
	seen := make(map[string]bool, len(c.Pollinators))
	for i, p := range c.Pollinators {
		f := fmt.Sprintf("pollinators[%d]", i)
		v.check(p.Name != "", f+".name", "must not be empty")
		v.check(!seen[p.Name], f+".name", "duplicate pollinator %q", p.Name)
		seen[p.Name] = true

		v.check(p.Foraging.Valid(), f+".foraging", "unknown foraging strategy %d", p.Foraging)
		v.check(p.Constancy.Valid(), f+".constancy", "unknown constancy type %d", p.Constancy)
		v.check(p.Learning.Valid(), f+".learning", "unknown learning strategy %d", p.Learning)
		v.check(p.Innate.Valid(), f+".innate", "unknown innate preference %d", p.Innate)
		v.check(p.Step.Valid(), f+".step", "unknown step type %d", p.Step)
		v.check(!(p.Constancy == components.ConstancyVisual && p.Learning == components.LearnNone),
			f+".constancy", "visual constancy needs a learning strategy that tracks a preference")
		if p.Innate == components.InnatePreset {
			v.check(p.InnateMarker >= c.Colour.MinMarker && p.InnateMarker <= c.Colour.MaxMarker,
				f+".innate_marker", "must lie within the colour range, got %d", p.InnateMarker)
		}

		if p.LearningRate != nil {
			v.check(*p.LearningRate >= 0 && *p.LearningRate <= 1, f+".learning_rate", "must be in [0, 1], got %v", *p.LearningRate)
		}
		if p.Aversion != nil {
			v.check(*p.Aversion >= 0 && *p.Aversion <= 1, f+".aversion", "must be in [0, 1], got %v", *p.Aversion)
		}
		v.check(p.ConstancyThreshold >= 0, f+".constancy_threshold", "must not be negative, got %v", p.ConstancyThreshold)
		v.check(inUnit(p.ProbLandTarget), f+".prob_land_target", "must be in [0, 1], got %v", p.ProbLandTarget)
		v.check(inUnit(p.ProbLandNonTarget), f+".prob_land_non_target", "must be in [0, 1], got %v", p.ProbLandNonTarget)
		v.check(p.ProbLandNonTarget <= p.ProbLandTarget, f+".prob_land_non_target", "must not exceed prob_land_target")
		v.check(p.ProbLandDelta >= 0, f+".prob_land_delta", "must not be negative, got %v", p.ProbLandDelta)

		v.check(p.PerceptionRadius > 0, f+".perception_radius", "must be positive, got %v", p.PerceptionRadius)
		v.check(p.StepLength > 0, f+".step_length", "must be positive, got %v", p.StepLength)
		v.check(p.MaxStepLength >= p.StepLength, f+".max_step_length", "must be >= step_length, got %v", p.MaxStepLength)
		if p.Step == components.StepLevy {
			v.check(p.LevyExponent > 0, f+".levy_exponent", "must be positive, got %v", p.LevyExponent)
		}

		v.check(p.InitialEnergy > 0, f+".initial_energy", "must be positive, got %v", p.InitialEnergy)
		v.check(p.EnergyPerCycle >= 0, f+".energy_per_cycle", "must not be negative, got %v", p.EnergyPerCycle)
		v.check(p.EnergyPerDistance >= 0, f+".energy_per_distance", "must not be negative, got %v", p.EnergyPerDistance)
		v.check(p.MaxVisitsPerBout >= 0, f+".max_visits_per_bout", "must not be negative, got %d", p.MaxVisitsPerBout)
		v.check(p.BoutLength > 0, f+".bout_length", "must be positive, got %d", p.BoutLength)

		v.check(p.NectarPerVisit > 0, f+".nectar_per_visit", "must be positive, got %d", p.NectarPerVisit)
		v.check(p.PollenCapacity >= 0, f+".pollen_capacity", "must not be negative, got %d", p.PollenCapacity)
		v.check(p.PollenCarryover >= 0, f+".pollen_carryover", "must not be negative, got %d", p.PollenCarryover)
		v.check(p.PollenDeposit >= 0, f+".pollen_deposit", "must not be negative, got %d", p.PollenDeposit)
		v.check(p.PollenCollect >= 0, f+".pollen_collect", "must not be negative, got %d", p.PollenCollect)
	}
}

func (c *Config) validateHives(v *validator) {
	world := Area{MaxX: c.Derived.Width, MaxY: c.Derived.Height}
	seen := make(map[string]bool, len(c.Hives))
	for i, h := range c.Hives {
		f := fmt.Sprintf("hives[%d]", i)
		v.check(!seen[h.Name], f+".name", "duplicate hive %q", h.Name)
		seen[h.Name] = true
		v.check(h.Type == "honeybee", f+".type", "unknown hive type %q", h.Type)
		_, ok := c.Derived.PollinatorIndex[h.Pollinator]
		v.check(ok, f+".pollinator", "unknown pollinator %q", h.Pollinator)
		v.check(h.Capacity > 0, f+".capacity", "must be positive, got %d", h.Capacity)
		v.check(h.Initial >= 0, f+".initial", "must not be negative, got %d", h.Initial)
		v.check(h.SpawnRate >= 0, f+".spawn_rate", "must not be negative, got %d", h.SpawnRate)
		v.check(h.RetireThreshold >= 0, f+".retire_threshold", "must not be negative, got %d", h.RetireThreshold)
		v.check(h.RespawnDelay >= 0, f+".respawn_delay", "must not be negative, got %d", h.RespawnDelay)
		v.check(h.X >= 0 && h.X <= world.MaxX && h.Y >= 0 && h.Y <= world.MaxY,
			f+".x", "hive position (%v, %v) is outside the environment", h.X, h.Y)
		v.check(h.ForageArea.MinX <= h.ForageArea.MaxX && h.ForageArea.MinY <= h.ForageArea.MaxY && world.containsArea(h.ForageArea),
			f+".forage_area", "must be a rectangle inside the environment")
	}
}

func inUnit(x float64) bool { return x >= 0 && x <= 1 }
