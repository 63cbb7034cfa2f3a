// Package resilience provides the fault-tolerance primitives used around the
// optional backends: a circuit breaker that lets the report cache fail fast
// while Redis is unhealthy, and exponential-backoff retry for run
// bookkeeping and Kafka job redelivery.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker rejects calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a circuit breaker. The numeric values are exported
// as a gauge, so they must stay stable.
type State int

const (
	StateClosed   State = 0
	StateOpen     State = 1
	StateHalfOpen State = 2
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

// CircuitBreakerConfig controls when a breaker trips and how it recovers.
// Zero values select the defaults: 5 failures, 30s cooldown, 1 probe.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// Cooldown is how long an open breaker rejects calls before letting
	// probes through.
	Cooldown time.Duration
	// HalfOpenProbes is the number of calls admitted while half-open.
	HalfOpenProbes int
	// OnStateChange, if set, is called after every transition with the
	// breaker's lock released.
	OnStateChange func(from, to State)
}

func (c CircuitBreakerConfig) withDefaults() CircuitBreakerConfig {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.HalfOpenProbes <= 0 {
		c.HalfOpenProbes = 1
	}
	return c
}

// CircuitBreaker counts consecutive failures of a backend. Once the
// threshold is reached it rejects calls for the cooldown, then admits a
// limited number of probes: one success closes it, one failure reopens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probes   int
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg.withDefaults(),
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn unless the breaker rejects the call, and records the
// outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call would currently be let through, without
// counting it as a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state != StateOpen || time.Since(cb.openedAt) >= cb.cfg.Cooldown
}

// Reset closes the breaker and clears its failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.failures = 0
	cb.probes = 0
	cb.state = StateClosed
	cb.mu.Unlock()
	cb.changed(from, StateClosed, "reset")
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.Cooldown - time.Since(cb.openedAt)
		if wait > 0 {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (retry in %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.state = StateHalfOpen
		cb.probes = 1
	case StateHalfOpen:
		if cb.probes >= cb.cfg.HalfOpenProbes {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (probe in flight)", ErrCircuitOpen, cb.name)
		}
		cb.probes++
	}
	to := cb.state
	cb.mu.Unlock()
	cb.changed(from, to, "cooldown elapsed")
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	from := cb.state
	reason := ""
	if err == nil {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.state = StateClosed
			cb.probes = 0
			reason = "probe succeeded"
		}
	} else {
		cb.failures++
		switch {
		case cb.state == StateHalfOpen:
			reason = "probe failed"
		case cb.failures >= cb.cfg.FailureThreshold:
			reason = fmt.Sprintf("%d consecutive failures", cb.failures)
		}
		if reason != "" {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
	}
	to := cb.state
	cb.mu.Unlock()
	cb.changed(from, to, reason)
}

func (cb *CircuitBreaker) changed(from, to State, reason string) {
	if from == to {
		return
	}
	if to == StateOpen {
		cb.logger.Warn("circuit opened", "from", from.String(), "reason", reason, "cooldown", cb.cfg.Cooldown)
	} else {
		cb.logger.Info("circuit state changed", "from", from.String(), "to", to.String(), "reason", reason)
	}
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
