package systems

import (
	"container/heap"
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/evobee/colour"
	"github.com/pthm-cable/evobee/components"
)

// EventKind identifies a scheduled effect.
type EventKind uint8

const (
	EventReplenish   EventKind = iota // refill a flower's nectar
	EventSenescence                   // a plant dies
	EventPlantGrowth                  // a seed from a pollinated plant grows
	EventBoutReset                    // a hive starts a new bout
	EventRespawn                      // delayed hive replacements

	numEventKinds = iota
)

var eventNames = []string{"replenish", "senescence", "plant_growth", "bout_reset", "respawn"}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return fmt.Sprintf("event(%d)", k)
}

// Event is a delayed effect keyed by its trigger tick. Only the fields
// relevant to Kind are set.
type Event struct {
	Tick int32
	Seq  uint64
	Kind EventKind

	Flower  ecs.Entity         // Replenish
	Plant   uint32             // Senescence; parent for PlantGrowth
	Species uint32             // PlantGrowth
	Marker  colour.MarkerPoint // PlantGrowth
	Pos     components.FPos    // PlantGrowth
	Gen     int                // PlantGrowth
	Hive    uint32             // BoutReset, Respawn
	Count   int                // Respawn
}

// Context is what components need from the running simulation: the shared
// random source, the current tick and a way to schedule future effects.
type Context interface {
	Rand() *rand.Rand
	Tick() int32
	// Defer queues an event. Deferred events enter the scheduler after all
	// hives have stepped.
	Defer(Event)
}

// eventHeap orders events by (Tick, Seq).
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Tick != h[j].Tick {
		return h[i].Tick < h[j].Tick
	}
	return h[i].Seq < h[j].Seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(Event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

// Scheduler is a time-ordered event queue. Events due on the same tick are
// returned in insertion order.
type Scheduler struct {
	events  eventHeap
	nextSeq uint64
	counts  [numEventKinds]int
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule queues an event and assigns its sequence number.
func (s *Scheduler) Schedule(ev Event) {
	ev.Seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.events, ev)
}

// PopDue removes and returns the next event due at or before tick.
func (s *Scheduler) PopDue(tick int32) (Event, bool) {
	if len(s.events) == 0 || s.events[0].Tick > tick {
		return Event{}, false
	}
	ev := heap.Pop(&s.events).(Event)
	if int(ev.Kind) < len(s.counts) {
		s.counts[ev.Kind]++
	}
	return ev, true
}

// Len returns the number of pending events.
func (s *Scheduler) Len() int { return len(s.events) }

// Peek returns the next pending event without removing it.
func (s *Scheduler) Peek() (Event, bool) {
	if len(s.events) == 0 {
		return Event{}, false
	}
	return s.events[0], true
}

// Applied returns how many events of the kind have been dequeued.
func (s *Scheduler) Applied(kind EventKind) int {
	if int(kind) >= len(s.counts) {
		return 0
	}
	return s.counts[kind]
}

// Pending returns how many queued events have the kind.
func (s *Scheduler) Pending(kind EventKind) int {
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
