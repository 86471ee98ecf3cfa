package systems

import (
	"fmt"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

// Strategy is the full behavioural configuration of a pollinator kind.
// Every pollinator is the same type; behaviour dispatches on these values.
type Strategy struct {
	Foraging           components.ForagingStrategy
	Constancy          components.ConstancyType
	ConstancyThreshold float64
	Learning           Learning
	Mover              Mover
	PerceptionRadius   float64

	InitialEnergy     float64
	EnergyPerCycle    float64
	EnergyPerDistance float64
	MaxVisitsPerBout  int

	NectarPerVisit  int
	PollenCapacity  int
	PollenCarryover int
	PollenDeposit   int
	PollenCollect   int
}

// Performance holds a pollinator's cumulative counters.
type Performance struct {
	Landings       int
	Pollinations   int
	Declines       int
	NoFlowerCycles int
	Bouts          int
	Reward         int
	Distance       float64
}

// LatestAction records the outcome of the most recent decision cycle.
type LatestAction struct {
	Tick          int32
	Status        components.PollinatorStatus
	FlowerID      uint32
	Reward        int
	Pollinations  int
	MatchedTarget bool
}

// Pollinator is a foraging agent. It is owned by exactly one hive and refers
// to flowers only through entity handles.
type Pollinator struct {
	ID     uint32
	HiveID uint32
	Pos    components.FPos

	State      components.PollinatorState
	Status     components.PollinatorStatus
	Energy     float64
	BoutVisits int
	BoutStart  int32

	Pref    Preference
	Carried components.PollenStore
	Perf    Performance
	Latest  LatestAction

	target    ecs.Entity
	hasTarget bool
	declined  []uint32 // flower IDs declined this bout
	scratch   []ecs.Entity

	strategy *Strategy
}

// NewPollinator creates an uninitiated pollinator.
func NewPollinator(id, hiveID uint32, pos components.FPos, s *Strategy, pref Preference) *Pollinator {
	return &Pollinator{
		ID:       id,
		HiveID:   hiveID,
		Pos:      pos,
		State:    components.StateUninitiated,
		Status:   components.StatusNoFlowerSeen,
		Pref:     pref,
		Carried:  components.NewPollenStore(s.PollenCapacity),
		strategy: s,
		Latest:   LatestAction{Tick: -1},
	}
}

// Strategy returns the pollinator's behavioural configuration.
func (p *Pollinator) Strategy() *Strategy { return p.strategy }

// Target returns the current target flower handle, if any.
func (p *Pollinator) Target() (ecs.Entity, bool) { return p.target, p.hasTarget }

func (p *Pollinator) label() string { return fmt.Sprintf("pollinator %d", p.ID) }

// Start moves an uninitiated pollinator into its first bout.
func (p *Pollinator) Start(tick int32) error {
	if p.State != components.StateUninitiated {
		return invariantf(tick, p.label(), "start from state %s", p.State)
	}
	p.beginBout(tick)
	return nil
}

// ResetBout begins a new bout. It is driven by the owning hive and is the
// only way out of BoutComplete.
func (p *Pollinator) ResetBout(ctx Context, model *colour.Model, pos components.FPos) error {
	if p.State == components.StateUninitiated {
		return invariantf(ctx.Tick(), p.label(), "bout reset before start")
	}
	p.Pos = pos
	p.strategy.Learning.StartBout(&p.Pref, ctx.Rand(), model)
	p.beginBout(ctx.Tick())
	return nil
}

func (p *Pollinator) beginBout(tick int32) {
	p.State = components.StateForaging
	p.Status = components.StatusNoFlowerSeen
	p.Energy = p.strategy.InitialEnergy
	p.BoutVisits = 0
	p.BoutStart = tick
	p.hasTarget = false
	p.declined = p.declined[:0]
	p.Perf.Bouts++
}

// Step runs one decision cycle. Every cycle costs EnergyPerCycle plus the
// distance flown. A chosen flower is reached before the constancy decision,
// so a declined flower is paid for like a visited one. The bout completes
// once energy is spent, whatever the cycle's outcome.
func (p *Pollinator) Step(ctx Context, env *Environment) error {
	switch p.State {
	case components.StateBoutComplete:
		return nil
	case components.StateUninitiated:
		return invariantf(ctx.Tick(), p.label(), "stepped before start")
	}

	s := p.strategy
	p.Energy -= s.EnergyPerCycle

	// A removed target costs this cycle; the next one re-queries.
	if p.hasTarget && !env.Alive(p.target) {
		p.hasTarget = false
		p.noFlower(ctx.Tick())
		p.tire()
		return nil
	}

	e, ok := p.choose(ctx, env)
	if !ok {
		p.hasTarget = false
		p.noFlower(ctx.Tick())
		p.tire()
		return nil
	}

	flower := env.FlowerInfo(e)
	p.flyTo(env, flower.Pos)
	p.target, p.hasTarget = e, true

	if !p.accepts(ctx, flower) {
		p.declined = append(p.declined, flower.ID)
		p.Status = components.StatusDeclinedFlower
		p.Perf.Declines++
		p.Latest = LatestAction{Tick: ctx.Tick(), Status: p.Status, FlowerID: flower.ID}
		p.tire()
		return nil
	}
	return p.land(ctx, env, e)
}

// tire ends the bout once energy is spent. The cycle's status is kept.
func (p *Pollinator) tire() {
	if p.Energy <= 0 {
		p.State = components.StateBoutComplete
	}
}

func (p *Pollinator) noFlower(tick int32) {
	p.Status = components.StatusNoFlowerSeen
	p.Perf.NoFlowerCycles++
	p.Latest = LatestAction{Tick: tick, Status: p.Status}
}

// choose selects a candidate flower according to the foraging strategy.
func (p *Pollinator) choose(ctx Context, env *Environment) (ecs.Entity, bool) {
	s := p.strategy
	rng := ctx.Rand()

	switch s.Foraging {
	case components.ForageRandom:
		p.searchStep(ctx)
		p.scratch = env.WithinRadius(p.scratch[:0], p.Pos, s.PerceptionRadius)
		if len(p.scratch) == 0 {
			return ecs.Entity{}, false
		}
		return p.scratch[rng.Intn(len(p.scratch))], true

	case components.ForageNearestFlower:
		e, ok := env.Nearest(p.Pos, s.PerceptionRadius, func(e ecs.Entity) bool {
			return p.eligible(env, e)
		})
		if !ok {
			p.searchStep(ctx)
		}
		return e, ok

	case components.ForageRandomFlower:
		p.scratch = env.WithinRadius(p.scratch[:0], p.Pos, s.PerceptionRadius)
		p.scratch = slices.DeleteFunc(p.scratch, func(e ecs.Entity) bool { return !p.eligible(env, e) })
		if len(p.scratch) == 0 {
			p.searchStep(ctx)
			return ecs.Entity{}, false
		}
		return p.scratch[rng.Intn(len(p.scratch))], true

	case components.ForageRandomGlobal:
		all := env.Flowers()
		if len(all) == 0 {
			return ecs.Entity{}, false
		}
		return all[rng.Intn(len(all))], true
	}
	return ecs.Entity{}, false
}

// eligible excludes flowers visited or declined during the current bout.
func (p *Pollinator) eligible(env *Environment, e ecs.Entity) bool {
	f, _, bloom, _ := env.Flower(e)
	if bloom.VisitedSince(p.BoutStart) {
		return false
	}
	return !slices.Contains(p.declined, f.ID)
}

// searchStep moves one step of the step-length policy in a random direction.
func (p *Pollinator) searchStep(ctx Context) {
	pos, dist := p.strategy.Mover.RandomStep(ctx.Rand(), p.Pos)
	p.Pos = pos
	p.travel(dist)
}

func (p *Pollinator) flyTo(env *Environment, to components.FPos) {
	d := env.Distance(p.Pos, to)
	p.Pos = to
	p.travel(d)
}

func (p *Pollinator) travel(d float64) {
	p.Perf.Distance += d
	p.Energy -= d * p.strategy.EnergyPerDistance
}

// accepts applies the constancy rule to a candidate.
func (p *Pollinator) accepts(ctx Context, f *components.Flower) bool {
	s := p.strategy
	switch s.Constancy {
	case components.ConstancySimple:
		if !p.Pref.HasTarget {
			return true
		}
		prob := p.Pref.ProbLandNonTarget
		if f.SpeciesID == p.Pref.TargetSpecies {
			prob = p.Pref.ProbLandTarget
		}
		return ctx.Rand().Float64() < prob
	case components.ConstancyVisual:
		if !p.Pref.Tracked {
			return true
		}
		return f.Signature.DistanceTo(p.Pref.Point) <= s.ConstancyThreshold
	default:
		return true
	}
}

// land visits flower e and applies the outcome.
func (p *Pollinator) land(ctx Context, env *Environment, e ecs.Entity) error {
	s := p.strategy
	tick := ctx.Tick()
	matched := p.Pref.HasTarget

	res, err := env.Visit(tick, e, VisitRequest{
		Carrier:   p.ID,
		Carried:   &p.Carried,
		Nectar:    s.NectarPerVisit,
		Deposit:   s.PollenDeposit,
		Collect:   s.PollenCollect,
		Carryover: s.PollenCarryover,
	})
	if err != nil {
		return err
	}
	if p.Carried.Capacity > 0 && p.Carried.Len() > p.Carried.Capacity {
		return invariantf(tick, p.label(), "carries %d pollen units, capacity %d", p.Carried.Len(), p.Carried.Capacity)
	}
	if res.NeedsRefill {
		ctx.Defer(Event{Tick: tick + env.ReplenishDelay(), Kind: EventReplenish, Flower: e})
	}
	matched = matched && res.SpeciesID == p.Pref.TargetSpecies

	s.Learning.AfterVisit(&p.Pref, res.Signature, res.SpeciesID, res.Reward, s.NectarPerVisit)

	p.Status = components.StatusOnFlower
	p.BoutVisits++
	p.Perf.Landings++
	p.Perf.Pollinations += res.Pollinations
	p.Perf.Reward += res.Reward
	p.Latest = LatestAction{
		Tick:          tick,
		Status:        p.Status,
		FlowerID:      res.FlowerID,
		Reward:        res.Reward,
		Pollinations:  res.Pollinations,
		MatchedTarget: matched,
	}

	if p.Energy <= 0 || (s.MaxVisitsPerBout > 0 && p.BoutVisits >= s.MaxVisitsPerBout) {
		p.State = components.StateBoutComplete
	}
	return nil
}
