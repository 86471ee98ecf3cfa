package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerOrdersByTickThenInsertion(t *testing.T) {
	s := NewScheduler()
	s.Schedule(Event{Tick: 5, Kind: EventReplenish, Count: 1})
	s.Schedule(Event{Tick: 3, Kind: EventBoutReset, Count: 2})
	s.Schedule(Event{Tick: 5, Kind: EventRespawn, Count: 3})
	s.Schedule(Event{Tick: 3, Kind: EventSenescence, Count: 4})
	s.Schedule(Event{Tick: 5, Kind: EventPlantGrowth, Count: 5})

	_, ok := s.PopDue(2)
	assert.False(t, ok)

	var order []int
	for tick := int32(0); tick <= 5; tick++ {
		for {
			ev, ok := s.PopDue(tick)
			if !ok {
				break
			}
			assert.Equal(t, tick, ev.Tick)
			order = append(order, ev.Count)
		}
	}
	assert.Equal(t, []int{2, 4, 1, 3, 5}, order)
	assert.Zero(t, s.Len())
	assert.Equal(t, 1, s.Applied(EventReplenish))
	assert.Equal(t, 1, s.Applied(EventBoutReset))
}

func TestSchedulerPopsOverdueEvents(t *testing.T) {
	s := NewScheduler()
	s.Schedule(Event{Tick: 1})
	ev, ok := s.Peek()
	require.True(t, ok)
	assert.Equal(t, int32(1), ev.Tick)

	ev, ok = s.PopDue(10)
	require.True(t, ok)
	assert.Equal(t, uint64(0), ev.Seq)
}

func TestEventKindString(t *testing.T) {
	assert.Equal(t, "plant_growth", EventPlantGrowth.String())
	assert.Equal(t, "event(9)", EventKind(9).String())
}

func TestSchedulerPendingByKind(t *testing.T) {
	s := NewScheduler()
	s.Schedule(Event{Tick: 4, Kind: EventRespawn})
	s.Schedule(Event{Tick: 2, Kind: EventBoutReset})
	s.Schedule(Event{Tick: 6, Kind: EventRespawn})

	assert.Equal(t, 2, s.Pending(EventRespawn))
	assert.Equal(t, 0, s.Pending(EventReplenish))

	_, ok := s.PopDue(4)
	require.True(t, ok)
	_, ok = s.PopDue(4)
	require.True(t, ok)
	assert.Equal(t, 1, s.Pending(EventRespawn))
}
