// Package payment models the hand-off to a hosted payment gateway.
package payment

import (
	"sync"

	"github.com/pkg/errors"
)

// State of a single payment attempt.
//
//	idle ──verify──▶ verifying ──▶ done
//	  │                   └──────▶ failed
//	  └──dismiss──▶ cancelled
type State int

const (
	StateIdle State = iota
	StateVerifying
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateVerifying:
		return "verifying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// ErrIllegalTransition is returned when a transition is not allowed from the current state.
var ErrIllegalTransition = errors.New("payment: illegal attempt transition")

// Attempt guards the gateway callbacks of one payment: completion may start
// verification only once, and never after a dismissal.
type Attempt struct {
	OrderID   string
	SessionID string

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

// NewAttempt starts an idle attempt.
func NewAttempt(orderID, sessionID string) *Attempt {
	return &Attempt{OrderID: orderID, SessionID: sessionID, done: make(chan struct{})}
}

// State returns the current state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Err is the verification error of a failed attempt.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Done is closed when the attempt reaches a terminal state.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// BeginVerify moves idle → verifying.
func (a *Attempt) BeginVerify() error {
	return a.transition(StateIdle, StateVerifying, nil)
}

// Finish moves verifying → done, or verifying → failed when err is non-nil.
func (a *Attempt) Finish(err error) error {
	if err != nil {
		return a.transition(StateVerifying, StateFailed, err)
	}
	return a.transition(StateVerifying, StateDone, nil)
}

// Cancel moves idle → cancelled.
func (a *Attempt) Cancel() error {
	return a.transition(StateIdle, StateCancelled, nil)
}

func (a *Attempt) transition(from, to State, err error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != from {
		return errors.Wrapf(ErrIllegalTransition, "%s -> %s from %s", from, to, a.state)
	}
	a.state = to
	a.err = err
	if to.Terminal() {
		close(a.done)
	}
	return nil
}
