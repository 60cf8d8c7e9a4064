// Package fsm defines the call lifecycle states and their legal transitions.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateFinished   State = "finished"
	StateFailed     State = "failed"
)

const (
	// EventStart is a start request whose preconditions passed.
	EventStart Event = "start"
	// EventReject is a start request whose preconditions failed.
	EventReject  Event = "reject"
	EventStarted Event = "started"
	EventEnded   Event = "ended"
	EventStop    Event = "stop"
	EventError   Event = "error"
	EventRetry   Event = "retry"
)

// Transition returns the next state for event, or current plus an error when
// the pair is not part of the lifecycle table.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateConnecting, nil
		case EventReject:
			return StateFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventStarted:
			return StateActive, nil
		case EventStop:
			return StateFinished, nil
		case EventError:
			return StateFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateActive:
		switch event {
		case EventEnded, EventStop:
			return StateFinished, nil
		case EventError:
			return StateFailed, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFailed:
		switch event {
		case EventRetry:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateFinished:
		return current, invalidTransition(current, event)
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Terminal reports whether state ends a call attempt.
func Terminal(state State) bool {
	return state == StateFinished || state == StateFailed
}

// InCall reports whether a call has been issued and not yet settled.
func InCall(state State) bool {
	return state == StateConnecting || state == StateActive
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
