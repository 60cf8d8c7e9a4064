package voice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestEmitterDeliversInOrderToEverySubscriber(t *testing.T) {
	e := NewEmitter()
	first := e.Subscribe()
	second := e.Subscribe()
	defer first.Close()
	defer second.Close()
	require.Equal(t, 2, e.Subscribers())

	e.Emit(Event{Type: EventStarted})
	e.Emit(Event{Type: EventMessage, Message: &Message{Transcript: "hi"}})
	e.Emit(Event{Type: EventEnded})

	for _, sub := range []*Subscription{first, second} {
		require.Equal(t, EventStarted, (<-sub.Events()).Type)
		require.Equal(t, EventMessage, (<-sub.Events()).Type)
		require.Equal(t, EventEnded, (<-sub.Events()).Type)
	}
}

func TestSubscriptionCloseUnblocksEmitAndUnregisters(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewEmitter()
	sub := e.Subscribe()

	emitted := make(chan struct{})
	go func() {
		defer close(emitted)
		for i := 0; i < defaultSubscriptionBuffer+4; i++ {
			e.Emit(Event{Type: EventSpeechStarted})
		}
	}()

	time.Sleep(20 * time.Millisecond)
	sub.Close()
	sub.Close()

	select {
	case <-emitted:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit stayed blocked after subscription closed")
	}
	require.Zero(t, e.Subscribers())
}

func TestEmitterCloseClosesStreams(t *testing.T) {
	e := NewEmitter()
	sub := e.Subscribe()
	e.Close()

	_, ok := <-sub.Events()
	require.False(t, ok)

	late := e.Subscribe()
	_, ok = <-late.Events()
	require.False(t, ok)

	e.Emit(Event{Type: EventStarted})
	sub.Close()
	late.Close()
}

func TestEmitUntilGivesUpWhenAborted(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	e := NewEmitter()
	sub := e.Subscribe()
	defer sub.Close()
	for i := 0; i < defaultSubscriptionBuffer; i++ {
		require.True(t, e.EmitUntil(nil, Event{Type: EventSpeechStarted}))
	}

	abort := make(chan struct{})
	result := make(chan bool, 1)
	go func() { result <- e.EmitUntil(abort, Event{Type: EventStarted}) }()

	close(abort)
	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("EmitUntil did not return after abort")
	}

	e.Close()
	require.False(t, e.EmitUntil(nil, Event{Type: EventEnded}))
}
