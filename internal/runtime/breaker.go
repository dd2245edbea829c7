package runtime

import (
	"sync"
	"time"

	"github.com/quantfold/tessera/pkg/domain"
)

type breakerState uint8

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitBreaker protects one agent against repeated invocation failures.
// Consecutive failures trip it open; after the cooldown a single trial call
// is admitted, and its outcome decides whether the breaker closes again.
type CircuitBreaker struct {
	agent     string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	state       breakerState
	failures    int
	openedAt    time.Time
	trialActive bool
}

// NewCircuitBreaker creates a breaker for the named agent.
func NewCircuitBreaker(agent string, threshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		agent:     agent,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call to the agent may proceed. When the breaker is
// open past its cooldown, exactly one caller is admitted as the trial and
// receives trial=true; that caller must settle the probe via OnSuccess,
// OnFailure, or Cancel. A rejected call gets a *domain.CircuitOpenError.
func (cb *CircuitBreaker) Allow() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return false, nil
	case breakerHalfOpen:
		if cb.trialActive {
			return false, &domain.CircuitOpenError{Agent: cb.agent, RetryAfter: cb.cooldown}
		}
		cb.trialActive = true
		return true, nil
	default: // breakerOpen
		elapsed := cb.now().Sub(cb.openedAt)
		if elapsed < cb.cooldown {
			return false, &domain.CircuitOpenError{Agent: cb.agent, RetryAfter: cb.cooldown - elapsed}
		}
		cb.state = breakerHalfOpen
		cb.trialActive = true
		return true, nil
	}
}

// OnSuccess records a successful call. A successful trial closes the breaker.
func (cb *CircuitBreaker) OnSuccess(trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialActive = false
	}
	cb.state = breakerClosed
	cb.failures = 0
}

// OnFailure records a failed call. A failed trial reopens the breaker and
// restarts the cooldown; in the closed state, reaching the consecutive
// failure threshold trips it open.
func (cb *CircuitBreaker) OnFailure(trial bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialActive = false
		cb.state = breakerOpen
		cb.openedAt = cb.now()
		return
	}
	if cb.state != breakerClosed {
		return
	}
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.state = breakerOpen
		cb.openedAt = cb.now()
	}
}

// Cancel releases an admitted trial without settling it, keeping the breaker
// half-open so the next caller can probe instead. Used when a call is
// satisfied from cache and never reaches the agent.
func (cb *CircuitBreaker) Cancel(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.trialActive = false
}

// Reset force-closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = breakerClosed
	cb.failures = 0
	cb.trialActive = false
}

// State returns the current state name for introspection.
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == breakerOpen && cb.now().Sub(cb.openedAt) >= cb.cooldown {
		return breakerHalfOpen.String()
	}
	return cb.state.String()
}

// BreakerSet holds one breaker per agent, created lazily.
type BreakerSet struct {
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet creates a set using the given trip threshold and cooldown.
func NewBreakerSet(threshold int, cooldown time.Duration) *BreakerSet {
	return &BreakerSet{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		breakers:  make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for an agent, creating it on first use.
func (s *BreakerSet) For(agent string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	cb, ok := s.breakers[agent]
	if !ok {
		cb = NewCircuitBreaker(agent, s.threshold, s.cooldown)
		cb.now = s.now
		s.breakers[agent] = cb
	}
	return cb
}

// Reset force-closes the breaker for an agent. Resetting an agent without
// breaker state is a no-op.
func (s *BreakerSet) Reset(agent string) {
	s.mu.Lock()
	cb, ok := s.breakers[agent]
	s.mu.Unlock()
	if ok {
		cb.Reset()
	}
}

// States returns the current state of every tracked breaker.
func (s *BreakerSet) States() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	states := make(map[string]string, len(s.breakers))
	for agent, cb := range s.breakers {
		states[agent] = cb.State()
	}
	return states
}
