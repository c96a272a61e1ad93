package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishToTypedSubscribers(t *testing.T) {
	bus := NewBus()

	var kicked []string
	bus.Subscribe(TypePlayerKicked, func(e Event) {
		kicked = append(kicked, e.(PlayerKicked).PlayerID)
	})

	bus.Publish(PlayerKicked{PlayerID: "p1"})
	bus.Publish(ConnectionLost{PlayerID: "p2"})

	assert.Equal(t, []string{"p1"}, kicked)
}

func TestBus_On(t *testing.T) {
	bus := NewBus()

	var got MatchEnd
	On(bus, func(e MatchEnd) { got = e })

	bus.Publish(MatchEnd{WinnerID: "p1", Reason: "kill_limit"})
	assert.Equal(t, "p1", got.WinnerID)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsubscribe := bus.Subscribe(TypeMatchStart, func(Event) { calls++ })
	bus.Publish(MatchStart{})
	unsubscribe()
	bus.Publish(MatchStart{})

	assert.Equal(t, 1, calls)
}

func TestBus_OrderTypedBeforeAll(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "all") })
	bus.Subscribe(TypeHitConfirmed, func(Event) { order = append(order, "typed") })

	bus.Publish(HitConfirmed{})
	assert.Equal(t, []string{"typed", "all"}, order)
}

func TestBus_NilSafe(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(MatchStart{}) })
}

func TestRecorder(t *testing.T) {
	bus := NewBus()
	var rec Recorder
	stop := rec.Record(bus)

	bus.Publish(ViolationDetected{PlayerID: "p1", ViolationType: "speed_hack"})
	bus.Publish(PlayerKicked{PlayerID: "p1"})
	bus.Publish(ViolationDetected{PlayerID: "p1", ViolationType: "speed_hack"})

	require.Len(t, rec.Events(), 3)
	assert.Len(t, rec.OfType(TypeViolationDetected), 2)
	assert.Len(t, rec.OfType(TypePlayerKicked), 1)

	stop()
	bus.Publish(PlayerKicked{PlayerID: "p2"})
	assert.Len(t, rec.Events(), 3)

	rec.Reset()
	assert.Empty(t, rec.Events())
}
