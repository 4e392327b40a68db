package framedrive

import "github.com/bft-labs/framedrive/internal/app"

// State is the lifecycle phase of a run.
type State = app.State

const (
	StateIdle       = app.StateIdle
	StateSpawning   = app.StateSpawning
	StateRunning    = app.StateRunning
	StateDraining   = app.StateDraining
	StateTerminated = app.StateTerminated
	StateFailed     = app.StateFailed
)

// StateChangeEvent describes one lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// EventHandler receives lifecycle events of a run.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(StateChangeEvent)

// OnStateChange calls f(event).
func (f EventHandlerFunc) OnStateChange(event StateChangeEvent) { f(event) }

// eventEmitterWrapper adapts EventHandler to the session's emitter.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	if e.handler == nil {
		return
	}
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}
