package app

import (
	"fmt"
	"sync"

	"github.com/bft-labs/framedrive/internal/domain"
	"github.com/bft-labs/framedrive/pkg/log"
)

// State represents the lifecycle phase of a session.
type State int

const (
	StateIdle State = iota
	StateSpawning
	StateRunning
	StateDraining
	StateTerminated
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSpawning:
		return "Spawning"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateTerminated:
		return "Terminated"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateTerminated || s == StateFailed
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Lifecycle is the state machine of a single session:
//
//	Idle -> Spawning -> Running -> Draining -> Terminated
//
// Spawning covers preparing the commands and launching the backend.
// Every non-terminal state may also move to Failed.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	logger       log.Logger
	eventEmitter EventEmitter
}

// NewLifecycle creates a lifecycle in StateIdle.
func NewLifecycle(logger log.Logger, emitter EventEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateIdle,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanStart returns true if the session has not run yet.
func (l *Lifecycle) CanStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateIdle
}

// Start moves Idle to Spawning atomically, so exactly one caller can start
// a session. Every other caller gets an error wrapping
// domain.ErrInvalidTransition.
func (l *Lifecycle) Start(reason string) error {
	l.mu.Lock()
	if l.state != StateIdle {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("%w: already started (state %s)", domain.ErrInvalidTransition, state)
	}
	l.state = StateSpawning
	l.mu.Unlock()

	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(StateIdle, StateSpawning, reason)
	}
	l.logger.Debug("session state",
		log.String("from", StateIdle.String()),
		log.String("to", StateSpawning.String()),
		log.String("reason", reason),
	)
	return nil
}

// TransitionTo moves to newState. Invalid transitions return an error
// wrapping domain.ErrInvalidTransition and leave the state unchanged.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	if !allowed(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldState, newState)
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("session state",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)
	return nil
}

func allowed(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	switch from {
	case StateIdle:
		return to == StateSpawning
	case StateSpawning:
		return to == StateRunning
	case StateRunning:
		return to == StateDraining
	case StateDraining:
		return to == StateTerminated
	default:
		return false
	}
}
