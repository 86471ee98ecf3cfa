package components

import (
	"math"

	"github.com/pthm-cable/evobee/colour"
)

// Flower holds the immutable identity of a single bloom.
// Flowers live as ECS entities owned by the environment.
type Flower struct {
	ID        uint32
	PlantID   uint32
	SpeciesID uint32
	Pos       FPos
	Signature *colour.Signature
}

// Nectar holds the depletable reward of a flower.
type Nectar struct {
	Amount int
	Max    int

	// RefillPending is set while a replenish event is queued so a flower
	// never has more than one outstanding refill.
	RefillPending bool
}

// Bloom holds per-flower pollination state.
type Bloom struct {
	AntherPollen    int   // collectable pollen remaining
	AntherLoss      int   // grains picked up per visit
	Pollinated      bool  // received conspecific pollen from another plant
	LastVisitedTick int32 // -1 when never visited
	Visits          int
}

// VisitedSince reports whether the flower has been visited at or after tick.
func (b *Bloom) VisitedSince(tick int32) bool {
	return b.LastVisitedTick >= 0 && b.LastVisitedTick >= tick
}

// Pollen is one provenance-tagged unit of pollen.
type Pollen struct {
	SpeciesID   uint32 // origin plant type
	PlantID     uint32 // origin plant
	CarrierID   uint32 // pollinator that moved it (0 = none)
	DepositTick int32
	Landings    int // flower landings survived while carried
}

// Viability returns the unit's viability at tick under exponential decay.
// A decay of 0 keeps every unit fully viable.
func (p Pollen) Viability(tick int32, decay float64) float64 {
	if decay <= 0 {
		return 1
	}
	age := float64(tick - p.DepositTick)
	if age < 0 {
		age = 0
	}
	return math.Exp(-decay * age)
}

// PollenStore is a bounded collection of pollen units.
// Units are kept in insertion order.
type PollenStore struct {
	Units    []Pollen
	Capacity int
}

// NewPollenStore creates an empty store with the given capacity.
func NewPollenStore(capacity int) PollenStore {
	return PollenStore{Units: make([]Pollen, 0, capacity), Capacity: capacity}
}

// Len returns the number of stored units.
func (s *PollenStore) Len() int { return len(s.Units) }

// Insert adds a unit. When the store is full exactly one unit is evicted
// first: the lowest viability, ties broken by oldest deposit then lowest
// index. The evicted unit is returned with ok=true.
func (s *PollenStore) Insert(p Pollen, tick int32, decay float64) (evicted Pollen, ok bool) {
	if s.Capacity <= 0 {
		return p, true
	}
	if len(s.Units) >= s.Capacity {
		idx := s.weakest(tick, decay)
		evicted = s.Units[idx]
		s.Units = append(s.Units[:idx], s.Units[idx+1:]...)
		ok = true
	}
	s.Units = append(s.Units, p)
	return evicted, ok
}

// weakest returns the index of the unit evicted on overflow.
func (s *PollenStore) weakest(tick int32, decay float64) int {
	best := 0
	bestV := s.Units[0].Viability(tick, decay)
	for i := 1; i < len(s.Units); i++ {
		v := s.Units[i].Viability(tick, decay)
		if v < bestV || (v == bestV && s.Units[i].DepositTick < s.Units[best].DepositTick) {
			best = i
			bestV = v
		}
	}
	return best
}

// PopOldest removes and returns the first inserted unit.
func (s *PollenStore) PopOldest() (Pollen, bool) {
	if len(s.Units) == 0 {
		return Pollen{}, false
	}
	p := s.Units[0]
	s.Units = append(s.Units[:0], s.Units[1:]...)
	return p, true
}

// CountSpecies returns how many units originate from the given species.
func (s *PollenStore) CountSpecies(speciesID uint32) int {
	n := 0
	for i := range s.Units {
		if s.Units[i].SpeciesID == speciesID {
			n++
		}
	}
	return n
}

// DropWhere removes every unit for which drop returns true and reports how
// many were removed.
func (s *PollenStore) DropWhere(drop func(*Pollen) bool) int {
	kept := s.Units[:0]
	removed := 0
	for i := range s.Units {
		if drop(&s.Units[i]) {
			removed++
			continue
		}
		kept = append(kept, s.Units[i])
	}
	s.Units = kept
	return removed
}
