package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/evobee/components"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 50.0, cfg.Derived.Width)
	assert.Equal(t, 50.0, cfg.Derived.Height)
	assert.Equal(t, cfg.Environment.PatchSize, cfg.Environment.CellSize)

	p, ok := cfg.Pollinator("honeybee")
	require.True(t, ok)
	assert.Equal(t, components.ForageNearestFlower, p.Foraging)
	assert.Equal(t, components.ConstancyVisual, p.Constancy)
	assert.Equal(t, components.StepLevy, p.Step)
	require.NotNil(t, p.LearningRate)
	assert.Equal(t, 0.5, *p.LearningRate)
	assert.Equal(t, 0.0, *p.Aversion)
}

func TestStrategyDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
pollinators:
  - name: fickle
    learning: fickle_circumspect
  - name: explicit
    learning: fickle_circumspect
    learning_rate: 0.3
    aversion: 0
`))
	require.NoError(t, err)

	fickle, _ := cfg.Pollinator("fickle")
	assert.Equal(t, 0.1, *fickle.LearningRate)
	assert.Equal(t, 0.1, *fickle.Aversion)

	explicit, _ := cfg.Pollinator("explicit")
	assert.Equal(t, 0.3, *explicit.LearningRate)
	assert.Equal(t, 0.0, *explicit.Aversion)
}

func TestLoadMergesUserFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  ticks: 7\nenvironment:\n  boundary: wrap\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Simulation.Ticks)
	assert.Equal(t, components.BoundaryWrap, cfg.Environment.Boundary)
	// Untouched sections keep their defaults.
	assert.Equal(t, 20, cfg.Simulation.ReplenishDelay)
	assert.Len(t, cfg.PlantTypes, 2)
}

func TestUserListsReplaceDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
plant_types:
  - species: red
    marker_min: 600
    marker_max: 600
plant_distributions: []
`))
	require.NoError(t, err)
	require.Len(t, cfg.PlantTypes, 1)
	assert.Equal(t, "red", cfg.PlantTypes[0].Species)
	assert.Empty(t, cfg.PlantDistributions)
}

func TestUnknownEnumFailsAtLoad(t *testing.T) {
	_, err := Parse([]byte("pollinators:\n  - name: x\n    foraging: sideways\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foraging strategy")
	assert.Contains(t, err.Error(), "sideways")
}

func TestCamelCaseEnumsAccepted(t *testing.T) {
	cfg, err := Parse([]byte("pollinators:\n  - name: x\n    foraging: RandomGlobal\n    learning: StayInnate\n"))
	require.NoError(t, err)
	assert.Equal(t, components.ForageRandomGlobal, cfg.Pollinators[0].Foraging)
	assert.Equal(t, components.LearnStayInnate, cfg.Pollinators[0].Learning)
}

func TestValidateFieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"zero capacity", "hives:\n  - pollinator: honeybee\n    capacity: 0\n    x: 1\n    y: 1\n", "hives[0].capacity"},
		{"unknown pollinator", "hives:\n  - pollinator: wasp\n    capacity: 3\n    x: 1\n    y: 1\n", "hives[0].pollinator"},
		{"zero ticks", "simulation:\n  ticks: 0\n", "simulation.ticks"},
		{"replenish delay", "simulation:\n  replenish_delay: 0\n", "simulation.replenish_delay"},
		{"unknown species", "plant_distributions:\n  - species: blue\n    density: 0.01\n", "plant_distributions[0].species"},
		{"density unsatisfiable", "environment:\n  max_plants_per_patch: 2\n", "plant_distributions"},
		{"visual without learning", "pollinators:\n  - name: honeybee\n    constancy: visual\n    learning: none\n", "pollinators[0].constancy"},
		{"marker outside range", "plant_types:\n  - species: violet\n    marker_min: 100\n    marker_max: 420\n    num_flowers: 1\n    stigma_capacity: 1\n", "plant_types[0].marker_min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)

			err = cfg.Validate()
			require.Error(t, err)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.True(t, hasField(err, tt.field), "no error for %s in %v", tt.field, err)
		})
	}
}

func hasField(err error, field string) bool {
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		var fe *FieldError
		return errors.As(err, &fe) && fe.Field == field
	}
	for _, e := range joined.Unwrap() {
		var fe *FieldError
		if errors.As(e, &fe) && fe.Field == field {
			return true
		}
	}
	return false
}

func TestPlantsForPatch(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	// Default patches are 10x10 with two species at 0.03 each.
	assert.Equal(t, []int{3, 3}, cfg.PlantsForPatch(0, 0))
	assert.Equal(t, []int{3, 3}, cfg.PlantsForPatch(4, 4))
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Pollinators[0].Foraging, again.Pollinators[0].Foraging)
	assert.Equal(t, cfg.Environment.Boundary, again.Environment.Boundary)
	assert.Equal(t, cfg.Hives[0].ForageArea, again.Hives[0].ForageArea)
}
