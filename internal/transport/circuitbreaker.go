package transport

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/swarmguard/swarmguard/internal/apierr"
)

// CircuitBreakerState is one of the three states a breaker can be in.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half_open"
)

// CircuitBreakerConfig configures trip/reset thresholds.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	SuccessThreshold    int
	Timeout             time.Duration
	MaxHalfOpenRequests int
	OnStateChange       func(from, to CircuitBreakerState, reason string)
}

// DefaultCircuitBreakerConfig mirrors the teacher's defaults: 5 failures
// trip the breaker, 2 consecutive half-open successes close it again.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// CircuitBreaker protects a downstream HTTP collaborator reached through
// transport.Client (the agent's alert-sending client, the router's
// metrics-fetcher client) from repeated calls while that collaborator is
// failing.
type CircuitBreaker struct {
	mu     sync.Mutex
	config CircuitBreakerConfig
	logger *zap.Logger

	state            CircuitBreakerState
	failureCount     int
	successCount     int
	halfOpenRequests int
	lastStateChange  time.Time
}

// NewCircuitBreaker constructs a breaker starting in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		config:          config,
		logger:          logger,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Call executes fn under circuit breaker protection, returning
// apierr.ErrCircuitOpen immediately when the breaker is open.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if now.Sub(cb.lastStateChange) >= cb.config.Timeout {
			cb.transitionTo(StateHalfOpen, "timeout elapsed")
			return nil
		}
		return apierr.ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.config.MaxHalfOpenRequests {
			return apierr.ErrCircuitOpen
		}
		cb.halfOpenRequests++
		return nil
	default:
		return fmt.Errorf("unknown circuit breaker state: %s", cb.state)
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if err != nil {
			cb.failureCount++
			cb.successCount = 0
			if cb.failureCount >= cb.config.FailureThreshold {
				cb.transitionTo(StateOpen, fmt.Sprintf("failure threshold reached (%d failures)", cb.failureCount))
			}
		} else {
			cb.failureCount = 0
		}
	case StateHalfOpen:
		cb.halfOpenRequests--
		if err != nil {
			cb.transitionTo(StateOpen, "failure in half-open state")
		} else {
			cb.successCount++
			if cb.successCount >= cb.config.SuccessThreshold {
				cb.transitionTo(StateClosed, fmt.Sprintf("success threshold reached (%d successes)", cb.successCount))
			}
		}
	case StateOpen:
		cb.logger.Warn("afterCall invoked while circuit open")
	}
}

func (cb *CircuitBreaker) transitionTo(newState CircuitBreakerState, reason string) {
	oldState := cb.state
	if newState == oldState {
		return
	}
	cb.state = newState
	cb.lastStateChange = time.Now()
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenRequests = 0

	cb.logger.Info("circuit breaker state changed",
		zap.String("from", string(oldState)),
		zap.String("to", string(newState)),
		zap.String("reason", reason))

	if cb.config.OnStateChange != nil {
		go cb.config.OnStateChange(oldState, newState, reason)
	}
}

// State returns the current state (used by tests).
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed (for tests).
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.halfOpenRequests = 0
	cb.lastStateChange = time.Now()
}
