package systems

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/evobee/components"
)

// Kind marks a pollinator kind a hive is specialised for.
type Kind interface {
	KindName() string
}

// HoneyBee is the hymenopteran forager kind.
type HoneyBee struct{}

// KindName implements Kind.
func (HoneyBee) KindName() string { return "honeybee" }

// HiveParams holds the population policy of a hive.
type HiveParams struct {
	Name              string
	Capacity          int
	SpawnRate         int // max replacements per bout reset (0 = up to capacity)
	RetireThreshold   int // min cumulative pollinations to survive a bout reset
	RespawnDelay      int // ticks before replacements appear (0 = immediate)
	BoutLength        int
	InheritPreference bool
	Pos               components.FPos
	StartFromHive     bool
	ForageArea        components.Rect
}

// HiveCounters are cumulative lifecycle counts.
type HiveCounters struct {
	Spawned  int
	Rejected int
	Retired  int
}

// Colony is the kind-independent view of a hive used by the simulation loop.
type Colony interface {
	ID() uint32
	Name() string
	KindName() string
	Capacity() int
	BoutLength() int
	Agents() []*Pollinator
	Counters() HiveCounters
	Spawn(ctx Context, n int) (int, error)
	ResetBout(ctx Context) error
	Step(ctx Context) error
}

// AgentIDs hands out pollinator IDs unique across hives.
type AgentIDs struct {
	next uint32
}

// Next returns a fresh ID, starting at 1.
func (a *AgentIDs) Next() uint32 {
	a.next++
	return a.next
}

// Hive owns the pollinators of one kind. Agents are stepped in population
// order, which is spawn order.
type Hive[K Kind] struct {
	id       uint32
	kind     K
	params   HiveParams
	strategy *Strategy
	env      *Environment
	ids      *AgentIDs
	agents   []*Pollinator
	counters HiveCounters
}

// NewHive creates an empty hive.
func NewHive[K Kind](id uint32, kind K, p HiveParams, s *Strategy, env *Environment, ids *AgentIDs) *Hive[K] {
	return &Hive[K]{id: id, kind: kind, params: p, strategy: s, env: env, ids: ids}
}

// MakeHive creates a hive for a named kind.
func MakeHive(kind string, id uint32, p HiveParams, s *Strategy, env *Environment, ids *AgentIDs) (Colony, error) {
	switch kind {
	case HoneyBee{}.KindName():
		return NewHive(id, HoneyBee{}, p, s, env, ids), nil
	default:
		return nil, fmt.Errorf("unknown hive type %q", kind)
	}
}

func (h *Hive[K]) ID() uint32             { return h.id }
func (h *Hive[K]) Name() string           { return h.params.Name }
func (h *Hive[K]) KindName() string       { return h.kind.KindName() }
func (h *Hive[K]) Capacity() int          { return h.params.Capacity }
func (h *Hive[K]) BoutLength() int        { return h.params.BoutLength }
func (h *Hive[K]) Agents() []*Pollinator  { return h.agents }
func (h *Hive[K]) Counters() HiveCounters { return h.counters }

// Spawn creates up to n pollinators. Requests beyond capacity are rejected,
// not queued. It returns the number created.
func (h *Hive[K]) Spawn(ctx Context, n int) (int, error) {
	room := h.params.Capacity - len(h.agents)
	created := min(max(room, 0), n)
	if rejected := n - created; rejected > 0 {
		h.counters.Rejected += rejected
		slog.Debug("spawn requests rejected", "hive", h.params.Name, "requested", n, "rejected", rejected)
	}

	var template *Pollinator
	if h.params.InheritPreference {
		template = h.best()
	}

	model := h.env.Colour()
	for i := 0; i < created; i++ {
		var pref Preference
		if template != nil {
			pref = h.strategy.Learning.Inherit(template.Pref)
		} else {
			pref = h.strategy.Learning.NewPreference(ctx.Rand(), model)
		}
		a := NewPollinator(h.ids.Next(), h.id, h.startPos(ctx), h.strategy, pref)
		if err := a.Start(ctx.Tick()); err != nil {
			return i, err
		}
		h.agents = append(h.agents, a)
	}
	h.counters.Spawned += created

	if len(h.agents) > h.params.Capacity {
		return created, invariantf(ctx.Tick(), "hive "+h.params.Name, "population %d exceeds capacity %d", len(h.agents), h.params.Capacity)
	}
	return created, nil
}

// best returns the agent with the most pollinations, lowest ID on ties.
func (h *Hive[K]) best() *Pollinator {
	var best *Pollinator
	for _, a := range h.agents {
		if best == nil || a.Perf.Pollinations > best.Perf.Pollinations {
			best = a
		}
	}
	return best
}

func (h *Hive[K]) startPos(ctx Context) components.FPos {
	if h.params.StartFromHive {
		return h.params.Pos
	}
	rng := ctx.Rand()
	area := h.params.ForageArea
	return components.FPos{
		X: area.Min.X + rng.Float64()*area.Width(),
		Y: area.Min.Y + rng.Float64()*area.Height(),
	}
}

// ResetBout starts a new bout epoch: under-performing agents retire,
// survivors begin a fresh bout and replacements are spawned or scheduled.
// The next bout reset is scheduled BoutLength ticks ahead.
func (h *Hive[K]) ResetBout(ctx Context) error {
	if h.params.RetireThreshold > 0 {
		kept := h.agents[:0]
		for _, a := range h.agents {
			if a.Perf.Pollinations < h.params.RetireThreshold {
				h.counters.Retired++
				continue
			}
			kept = append(kept, a)
		}
		clear(h.agents[len(kept):])
		h.agents = kept
	}

	model := h.env.Colour()
	for _, a := range h.agents {
		if err := a.ResetBout(ctx, model, h.startPos(ctx)); err != nil {
			return err
		}
	}

	want := h.params.Capacity - len(h.agents)
	if h.params.SpawnRate > 0 {
		want = min(want, h.params.SpawnRate)
	}
	if want > 0 {
		if h.params.RespawnDelay > 0 {
			ctx.Defer(Event{Tick: ctx.Tick() + int32(h.params.RespawnDelay), Kind: EventRespawn, Hive: h.id, Count: want})
		} else if _, err := h.Spawn(ctx, want); err != nil {
			return err
		}
	}

	if h.params.BoutLength > 0 {
		ctx.Defer(Event{Tick: ctx.Tick() + int32(h.params.BoutLength), Kind: EventBoutReset, Hive: h.id})
	}
	return nil
}

// Step runs one decision cycle for every agent in population order.
func (h *Hive[K]) Step(ctx Context) error {
	for _, a := range h.agents {
		if err := a.Step(ctx, h.env); err != nil {
			return err
		}
	}
	return nil
}
