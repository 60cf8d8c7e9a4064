package fsm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	allStates = []State{StateIdle, StateConnecting, StateActive, StateFinished, StateFailed}
	allEvents = []Event{EventStart, EventReject, EventStarted, EventEnded, EventStop, EventError, EventRetry}
)

func TestTransitionHappyPath(t *testing.T) {
	s := StateIdle

	next, err := Transition(s, EventStart)
	require.NoError(t, err)
	require.Equal(t, StateConnecting, next)

	next, err = Transition(next, EventStarted)
	require.NoError(t, err)
	require.Equal(t, StateActive, next)

	next, err = Transition(next, EventEnded)
	require.NoError(t, err)
	require.Equal(t, StateFinished, next)
}

func TestTransitionFailureAndRetry(t *testing.T) {
	next, err := Transition(StateIdle, EventReject)
	require.NoError(t, err)
	require.Equal(t, StateFailed, next)

	next, err = Transition(next, EventRetry)
	require.NoError(t, err)
	require.Equal(t, StateIdle, next)

	for _, from := range []State{StateConnecting, StateActive} {
		next, err := Transition(from, EventError)
		require.NoError(t, err)
		require.Equal(t, StateFailed, next)
	}
}

func TestTransitionStopFromConnectingOrActive(t *testing.T) {
	for _, from := range []State{StateConnecting, StateActive} {
		next, err := Transition(from, EventStop)
		require.NoError(t, err)
		require.Equal(t, StateFinished, next)
	}
}

// Every pair outside the lifecycle table must leave the state unchanged.
func TestTransitionMatrixOnlyListedPairsMove(t *testing.T) {
	legal := map[State]map[Event]State{
		StateIdle:       {EventStart: StateConnecting, EventReject: StateFailed},
		StateConnecting: {EventStarted: StateActive, EventStop: StateFinished, EventError: StateFailed},
		StateActive:     {EventEnded: StateFinished, EventStop: StateFinished, EventError: StateFailed},
		StateFailed:     {EventRetry: StateIdle},
		StateFinished:   {},
	}

	for _, state := range allStates {
		for _, event := range allEvents {
			t.Run(string(state)+"/"+string(event), func(t *testing.T) {
				next, err := Transition(state, event)
				want, ok := legal[state][event]
				if ok {
					require.NoError(t, err)
					require.Equal(t, want, next)
					return
				}
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid transition")
				require.Equal(t, state, next)
			})
		}
	}
}

func TestTransitionUnknownState(t *testing.T) {
	next, err := Transition(State("mystery"), EventStart)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown state")
	require.Equal(t, State("mystery"), next)
}

func TestTerminalAndInCall(t *testing.T) {
	require.True(t, Terminal(StateFinished))
	require.True(t, Terminal(StateFailed))
	require.False(t, Terminal(StateActive))

	require.True(t, InCall(StateConnecting))
	require.True(t, InCall(StateActive))
	require.False(t, InCall(StateIdle))
	require.False(t, InCall(StateFinished))
}
