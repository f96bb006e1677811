package resilience

import (
	"sync"
	"time"
)

// CircuitBreakerState represents the state of the circuit breaker
type CircuitBreakerState string

const (
	// CircuitClosed allows requests to pass through
	CircuitClosed CircuitBreakerState = "closed"
	// CircuitOpen blocks all requests
	CircuitOpen CircuitBreakerState = "open"
	// CircuitHalfOpen lets a probe request through
	CircuitHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig configures a CircuitBreaker
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenDuration     time.Duration
}

// DefaultCircuitBreakerConfig opens after five consecutive failures and
// probes again after thirty seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		OpenDuration:     30 * time.Second,
	}
}

// CircuitBreaker stops calling an upstream that keeps failing after its
// retries are exhausted.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failures     int
	successCount int
	lastFailure  time.Time
	config       CircuitBreakerConfig
	now          func() time.Time
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		state:  CircuitClosed,
		config: cfg,
		now:    time.Now,
	}
}

// RecordSuccess records a successful operation
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successCount = 0
		}
	case CircuitClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed operation and reports whether the
// breaker is now open.
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	if cb.state == CircuitHalfOpen || cb.failures >= cb.config.FailureThreshold {
		cb.state = CircuitOpen
		cb.successCount = 0
	}
	return cb.state == CircuitOpen
}

// CanExecute checks if an operation can be executed
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != CircuitOpen {
		return true
	}
	if cb.now().Sub(cb.lastFailure) >= cb.config.OpenDuration {
		cb.state = CircuitHalfOpen
		cb.successCount = 0
		return true
	}
	return false
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = CircuitClosed
	cb.failures = 0
	cb.successCount = 0
	cb.lastFailure = time.Time{}
}
