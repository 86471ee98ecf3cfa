package systems

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

// Species holds the traits shared by every plant of one type.
type Species struct {
	ID                 uint32
	Name               string
	MarkerMin          colour.MarkerPoint
	MarkerMax          colour.MarkerPoint
	NumFlowers         int
	FlowerSpread       float64
	NectarReward       int
	AntherPollen       int
	AntherLossPerVisit int
	StigmaCapacity     int
	Lifespan           int
	ReseedProbability  float64
	MarkerMutation     float64
}

// Plant is a flowering plant owning one or more flower entities.
type Plant struct {
	ID          uint32
	Species     *Species
	Signature   *colour.Signature
	Pos         components.FPos
	Patch       int
	Flowers     []ecs.Entity // creation order
	State       components.PlantState
	PlantedTick int32
	Generation  int
}

// Alive reports whether the plant has not yet senesced.
func (p *Plant) Alive() bool { return p.State == components.PlantAlive }
