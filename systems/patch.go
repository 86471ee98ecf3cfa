package systems

import (
	"fmt"

	"github.com/pthm-cable/evobee/components"
)

// Patch is a square area of the environment holding flowering plants.
type Patch struct {
	Index     int
	Cell      components.IPos
	Bounds    components.Rect
	MaxPlants int
	Plants    []*Plant // placement order
}

// Full reports whether another plant would break the density limit.
func (p *Patch) Full() bool { return len(p.Plants) >= p.MaxPlants }

// Add places a plant in the patch.
func (p *Patch) Add(pl *Plant) error {
	if p.Full() {
		return fmt.Errorf("patch %d (%d,%d) holds %d plants: %w", p.Index, p.Cell.X, p.Cell.Y, len(p.Plants), ErrPatchFull)
	}
	p.Plants = append(p.Plants, pl)
	return nil
}

// Remove drops the plant with the given ID, keeping the order of the rest.
func (p *Patch) Remove(plantID uint32) bool {
	for i, pl := range p.Plants {
		if pl.ID == plantID {
			p.Plants = append(p.Plants[:i], p.Plants[i+1:]...)
			return true
		}
	}
	return false
}
