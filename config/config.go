// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation         SimulationConfig          `yaml:"simulation"`
	Environment        EnvironmentConfig         `yaml:"environment"`
	Colour             ColourConfig              `yaml:"colour"`
	PlantTypes         []PlantTypeConfig         `yaml:"plant_types"`
	PlantDistributions []PlantDistributionConfig `yaml:"plant_distributions"`
	Pollinators        []PollinatorConfig        `yaml:"pollinators"`
	Hives              []HiveConfig              `yaml:"hives"`
	Telemetry          TelemetryConfig           `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds run-level parameters.
type SimulationConfig struct {
	Ticks           int     `yaml:"ticks"`             // Tick budget
	Seed            int64   `yaml:"seed"`              // RNG seed (overridden by -seed)
	StopWhenExtinct bool    `yaml:"stop_when_extinct"` // End the run when no agents are alive
	ReplenishDelay  int     `yaml:"replenish_delay"`   // Ticks between nectar depletion and refill
	PollenDecay     float64 `yaml:"pollen_decay"`      // Viability decay per tick of age (0 = none)
}

// EnvironmentConfig holds the patch grid layout.
type EnvironmentConfig struct {
	PatchesX          int                 `yaml:"patches_x"`
	PatchesY          int                 `yaml:"patches_y"`
	PatchSize         float64             `yaml:"patch_size"`           // Side length of a square patch
	MaxPlantsPerPatch int                 `yaml:"max_plants_per_patch"` // Density constraint per patch
	Boundary          components.Boundary `yaml:"boundary"`             // reflect | wrap
	CellSize          float64             `yaml:"cell_size"`            // Spatial index cell (0 = patch size)
}

// ColourConfig holds the reflectance and receptor model.
type ColourConfig struct {
	MinMarker             int     `yaml:"min_marker"` // nm
	MaxMarker             int     `yaml:"max_marker"` // nm
	MarkerStep            int     `yaml:"marker_step"`
	ReceptorWidth         float64 `yaml:"receptor_width"`
	BackgroundReflectance float64 `yaml:"background_reflectance"`
	LowReflectance        float64 `yaml:"low_reflectance"`
	HighReflectance       float64 `yaml:"high_reflectance"`
	EdgeSlope             float64 `yaml:"edge_slope"`
}

// PlantTypeConfig describes one flowering plant species.
type PlantTypeConfig struct {
	Species            string  `yaml:"species"`
	MarkerMin          int     `yaml:"marker_min"`     // Marker point drawn uniformly in [min, max]
	MarkerMax          int     `yaml:"marker_max"`
	NumFlowers         int     `yaml:"num_flowers"`    // Flowers per plant
	FlowerSpread       float64 `yaml:"flower_spread"`  // Max offset of flowers from the plant site
	NectarReward       int     `yaml:"nectar_reward"`  // Initial and refill nectar per flower
	AntherPollen       int     `yaml:"anther_pollen"`  // Collectable pollen per flower
	AntherLossPerVisit int     `yaml:"anther_loss_per_visit"`
	StigmaCapacity     int     `yaml:"stigma_capacity"` // Max pollen units held by a flower
	Lifespan           int     `yaml:"lifespan"`        // Ticks until senescence (0 = immortal)
	ReseedProbability  float64 `yaml:"reseed_probability"`
	MarkerMutation     float64 `yaml:"marker_mutation"` // Std dev of offspring marker point (nm)
}

// Area is an axis-aligned rectangle in environment coordinates.
// A zero area means the whole environment.
type Area struct {
	MinX float64 `yaml:"min_x"`
	MinY float64 `yaml:"min_y"`
	MaxX float64 `yaml:"max_x"`
	MaxY float64 `yaml:"max_y"`
}

// IsZero reports whether the area is unset.
func (a Area) IsZero() bool { return a == Area{} }

// Rect converts the area to a rectangle.
func (a Area) Rect() components.Rect {
	return components.Rect{
		Min: components.FPos{X: a.MinX, Y: a.MinY},
		Max: components.FPos{X: a.MaxX, Y: a.MaxY},
	}
}

// PlantDistributionConfig places one species over an area.
type PlantDistributionConfig struct {
	Species  string  `yaml:"species"`
	Area     Area    `yaml:"area"`
	Density  float64 `yaml:"density"`  // Plants per unit area
	Clumping float64 `yaml:"clumping"` // 0 = uniform, 1 = fully noise-driven
}

// PollinatorConfig describes one kind of pollinator.
type PollinatorConfig struct {
	Name      string                      `yaml:"name"`
	Foraging  components.ForagingStrategy `yaml:"foraging"`
	Constancy components.ConstancyType    `yaml:"constancy"`
	Learning  components.LearningStrategy `yaml:"learning"`
	Innate    components.InnatePrefType   `yaml:"innate"`
	Step      components.StepType         `yaml:"step"`

	InnateMarker       int      `yaml:"innate_marker"`       // Used by innate: preset
	LearningRate       *float64 `yaml:"learning_rate"`       // nil = strategy default
	Aversion           *float64 `yaml:"aversion"`            // nil = strategy default
	ConstancyThreshold float64  `yaml:"constancy_threshold"` // Hexagon distance for visual constancy
	ProbLandTarget     float64  `yaml:"prob_land_target"`
	ProbLandNonTarget  float64  `yaml:"prob_land_non_target"`
	ProbLandDelta      float64  `yaml:"prob_land_delta"`

	PerceptionRadius float64 `yaml:"perception_radius"`
	StepLength       float64 `yaml:"step_length"`
	MaxStepLength    float64 `yaml:"max_step_length"`
	LevyExponent     float64 `yaml:"levy_exponent"`

	InitialEnergy     float64 `yaml:"initial_energy"`
	EnergyPerCycle    float64 `yaml:"energy_per_cycle"`
	EnergyPerDistance float64 `yaml:"energy_per_distance"`
	MaxVisitsPerBout  int     `yaml:"max_visits_per_bout"` // 0 = energy-limited only
	BoutLength        int     `yaml:"bout_length"`         // Ticks between bout resets

	NectarPerVisit  int `yaml:"nectar_per_visit"`
	PollenCapacity  int `yaml:"pollen_capacity"`  // Carried pollen units
	PollenCarryover int `yaml:"pollen_carryover"` // Landings a carried unit survives (0 = unlimited)
	PollenDeposit   int `yaml:"pollen_deposit"`   // Units deposited per visit
	PollenCollect   int `yaml:"pollen_collect"`   // Units collected per visit
}

// HiveConfig describes one hive and its population policy.
type HiveConfig struct {
	Name              string  `yaml:"name"`
	Type              string  `yaml:"type"`       // Pollinator kind (honeybee)
	Pollinator        string  `yaml:"pollinator"` // Name of a pollinators entry
	Capacity          int     `yaml:"capacity"`
	Initial           int     `yaml:"initial"`          // Spawn requests at start
	SpawnRate         int     `yaml:"spawn_rate"`       // Max spawns per bout reset (0 = up to capacity)
	RetireThreshold   int     `yaml:"retire_threshold"` // Min cumulative pollinations to survive
	RespawnDelay      int     `yaml:"respawn_delay"`    // Ticks before replacements appear (0 = immediate)
	InheritPreference bool    `yaml:"inherit_preference"`
	X                 float64 `yaml:"x"`
	Y                 float64 `yaml:"y"`
	StartFromHive     bool    `yaml:"start_from_hive"` // Otherwise start uniformly within forage_area
	ForageArea        Area    `yaml:"forage_area"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	LogEvery   int `yaml:"log_every"`   // Log a stats record every N ticks (0 = never)
	PerfWindow int `yaml:"perf_window"` // Ticks averaged by the perf collector
}

// DerivedConfig holds values computed from other config values.
type DerivedConfig struct {
	Width, Height   float64
	PatchArea       float64
	SpeciesIndex    map[string]int
	PollinatorIndex map[string]int
}

// Load reads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, err
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

// Parse builds a configuration from YAML data merged over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if err := cfg.merge(data); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// merge unmarshals data over the current values. Lists in data replace the
// default lists wholesale.
func (c *Config) merge(data []byte) error {
	var lists struct {
		PlantTypes         []yaml.Node `yaml:"plant_types"`
		PlantDistributions []yaml.Node `yaml:"plant_distributions"`
		Pollinators        []yaml.Node `yaml:"pollinators"`
		Hives              []yaml.Node `yaml:"hives"`
	}
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	if lists.PlantTypes != nil {
		c.PlantTypes = nil
	}
	if lists.PlantDistributions != nil {
		c.PlantDistributions = nil
	}
	if lists.Pollinators != nil {
		c.Pollinators = nil
	}
	if lists.Hives != nil {
		c.Hives = nil
	}
	// Unmarshal into same struct - only overwrites fields present in file
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.Width = float64(c.Environment.PatchesX) * c.Environment.PatchSize
	c.Derived.Height = float64(c.Environment.PatchesY) * c.Environment.PatchSize
	c.Derived.PatchArea = c.Environment.PatchSize * c.Environment.PatchSize

	if c.Environment.CellSize == 0 {
		c.Environment.CellSize = c.Environment.PatchSize
	}

	for i := range c.Pollinators {
		p := &c.Pollinators[i]
		if p.LearningRate == nil {
			v := defaultLearningRate(p.Learning)
			p.LearningRate = &v
		}
		if p.Aversion == nil {
			v := defaultAversion(p.Learning)
			p.Aversion = &v
		}
		if p.MaxStepLength == 0 {
			p.MaxStepLength = p.StepLength
		}
	}

	for i := range c.Hives {
		h := &c.Hives[i]
		if h.Name == "" {
			h.Name = fmt.Sprintf("hive%d", i)
		}
		if h.Type == "" {
			h.Type = "honeybee"
		}
		if h.ForageArea.IsZero() {
			h.ForageArea = Area{MaxX: c.Derived.Width, MaxY: c.Derived.Height}
		}
	}

	for i := range c.PlantDistributions {
		d := &c.PlantDistributions[i]
		if d.Area.IsZero() {
			d.Area = Area{MaxX: c.Derived.Width, MaxY: c.Derived.Height}
		}
	}

	c.Derived.SpeciesIndex = make(map[string]int, len(c.PlantTypes))
	for i, pt := range c.PlantTypes {
		c.Derived.SpeciesIndex[pt.Species] = i
	}
	c.Derived.PollinatorIndex = make(map[string]int, len(c.Pollinators))
	for i, p := range c.Pollinators {
		c.Derived.PollinatorIndex[p.Name] = i
	}
}

func defaultLearningRate(l components.LearningStrategy) float64 {
	switch l {
	case components.LearnDeliberativeDecisive:
		return 0.5
	case components.LearnFickleCircumspect:
		return 0.1
	default:
		return 0
	}
}

func defaultAversion(l components.LearningStrategy) float64 {
	if l == components.LearnFickleCircumspect {
		return 0.1
	}
	return 0
}

// ColourParams converts the colour section to model parameters.
func (c *Config) ColourParams() colour.ModelParams {
	cc := c.Colour
	return colour.ModelParams{
		ReceptorWidth:         cc.ReceptorWidth,
		BackgroundReflectance: cc.BackgroundReflectance,
		LowReflectance:        cc.LowReflectance,
		HighReflectance:       cc.HighReflectance,
		EdgeSlope:             cc.EdgeSlope,
		MinMarker:             colour.MarkerPoint(cc.MinMarker),
		MaxMarker:             colour.MarkerPoint(cc.MaxMarker),
		MarkerStep:            colour.MarkerPoint(cc.MarkerStep),
	}
}

// Pollinator returns the named pollinator config.
func (c *Config) Pollinator(name string) (*PollinatorConfig, bool) {
	i, ok := c.Derived.PollinatorIndex[name]
	if !ok {
		return nil, false
	}
	return &c.Pollinators[i], true
}

// PlantType returns the named plant type config.
func (c *Config) PlantType(species string) (*PlantTypeConfig, bool) {
	i, ok := c.Derived.SpeciesIndex[species]
	if !ok {
		return nil, false
	}
	return &c.PlantTypes[i], true
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
