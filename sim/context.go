// Package sim runs the simulation clock: it owns the random source, the
// event scheduler, the environment and the hives, and feeds telemetry.
package sim

import (
	"math/rand"

	"github.com/pthm-cable/evobee/systems"
)

// Context carries the run's single random source and the current tick.
// Events deferred during a tick are held until Flush.
type Context struct {
	rng     *rand.Rand
	seed    int64
	tick    int32
	pending []systems.Event
}

// NewContext seeds the run's random source. It is never reseeded.
func NewContext(seed int64) *Context {
	return &Context{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

func (c *Context) Rand() *rand.Rand { return c.rng }
func (c *Context) Tick() int32      { return c.tick }
func (c *Context) Seed() int64      { return c.seed }

// Defer queues an event until the next Flush.
func (c *Context) Defer(ev systems.Event) {
	c.pending = append(c.pending, ev)
}

// Flush moves deferred events into the scheduler in the order they were
// deferred. Events due at or before the current tick move to the next tick.
func (c *Context) Flush(s *systems.Scheduler) int {
	n := len(c.pending)
	for _, ev := range c.pending {
		if ev.Tick <= c.tick {
			ev.Tick = c.tick + 1
		}
		s.Schedule(ev)
	}
	clear(c.pending)
	c.pending = c.pending[:0]
	return n
}

func (c *Context) advance() { c.tick++ }

// Steppable is anything advanced once per tick.
type Steppable interface {
	Step(ctx systems.Context) error
}
