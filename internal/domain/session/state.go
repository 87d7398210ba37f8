package session

import (
	"errors"
	"fmt"
)

// State is the position of a session in the search flow.
type State string

const (
	StateIdle         State = "IDLE"
	StateLocating     State = "LOCATING"
	StateFetchingData State = "FETCHING_DATA"
	StateSuccess      State = "SUCCESS"
	StateError        State = "ERROR"
)

// Event drives a transition.
type Event string

const (
	EventLocate         Event = "locate"
	EventFetch          Event = "fetch"
	EventPositionFound  Event = "position_found"
	EventPositionFailed Event = "position_failed"
	EventSucceeded      Event = "succeeded"
	EventFailed         Event = "failed"
	EventCancel         Event = "cancel"
	EventReset          Event = "reset"
	EventSelectPhase    Event = "select_phase"
)

// ErrInvalidTransition is returned when an event is not allowed in the current state.
var ErrInvalidTransition = errors.New("invalid session transition")

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventLocate: StateLocating,
		EventFetch:  StateFetchingData,
	},
	StateLocating: {
		EventPositionFound:  StateFetchingData,
		EventPositionFailed: StateError,
		EventCancel:         StateIdle,
	},
	StateFetchingData: {
		EventSucceeded: StateSuccess,
		EventFailed:    StateError,
		EventCancel:    StateIdle,
	},
	StateSuccess: {
		EventReset:       StateIdle,
		EventSelectPhase: StateSuccess,
	},
	StateError: {
		EventReset: StateIdle,
	},
}

// Next returns the state reached by applying ev in from.
func Next(from State, ev Event) (State, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev, from)
}
