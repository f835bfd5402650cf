package redis

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the breaker position for the Redis write path.
type State int

const (
	StateClosed   State = 0 // writes flow to Redis
	StateOpen     State = 1 // Redis looks down; writes divert to the local buffer
	StateHalfOpen State = 2 // probing: a single write allowed through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without touching Redis while the breaker is open.
var ErrCircuitOpen = errors.New("redis circuit open")

// CircuitBreaker guards the Redis bar/fill write path. maxFailures
// consecutive write errors open it; after resetTimeout a single probe write
// is let through, and its outcome decides between closing and reopening.
//
// Context cancellation does not count as a failure: a write abandoned during
// shutdown says nothing about Redis health.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	maxFailures  int
	resetTimeout time.Duration
	openedAt     time.Time
	probing      bool

	// OnStateChange is called on every transition (optional, for metrics).
	OnStateChange func(from, to State)
}

// NewCircuitBreaker creates a circuit breaker.
// maxFailures: consecutive write failures before opening (e.g., 5)
// resetTimeout: how long to buffer locally before probing Redis again
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		state:        StateClosed,
	}
}

// Execute runs one write attempt through the breaker. Returns ErrCircuitOpen
// when the write should be buffered instead of sent.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.settle(err)
	return err
}

// admit decides whether this write may reach Redis.
func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) < cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			// A probe is already in flight; keep buffering
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

// settle records the write outcome and moves the state machine.
func (cb *CircuitBreaker) settle(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	wasProbe := cb.probing
	cb.probing = false

	if err == nil {
		if cb.state == StateHalfOpen {
			cb.transition(StateClosed)
		}
		cb.failures = 0
		return
	}

	if errors.Is(err, context.Canceled) {
		// Shutdown, not an outage: leave state and counter alone
		return
	}

	cb.failures++
	if wasProbe && cb.state == StateHalfOpen {
		cb.reopen()
	} else if cb.state == StateClosed && cb.failures >= cb.maxFailures {
		cb.reopen()
	}
}

func (cb *CircuitBreaker) reopen() {
	cb.openedAt = time.Now()
	cb.transition(StateOpen)
}

// CurrentState returns the current breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}
