package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrCircuitBreakerOpen    = errors.New("circuit breaker is open")
	ErrCircuitBreakerTimeout = errors.New("circuit breaker operation timeout")
)

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int32

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig defines configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit
	MaxFailures int

	// Timeout is how long to wait before transitioning from Open to Half-Open
	Timeout time.Duration

	// MaxConcurrentRequests is the max requests allowed in Half-Open state
	MaxConcurrentRequests int

	// SuccessThreshold is the number of consecutive successes needed in Half-Open to go to Closed
	SuccessThreshold int

	// RequestTimeout bounds a single call. Zero means only the caller's context applies.
	RequestTimeout time.Duration

	// IsFailure decides whether an error counts against the circuit. Errors it
	// rejects are returned to the caller but treated as a success. Nil counts every error.
	IsFailure func(error) bool

	// OnStateChange is called after every transition, outside the breaker's lock
	OnStateChange func(from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns a default configuration
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures:           5,
		Timeout:               30 * time.Second,
		MaxConcurrentRequests: 1,
		SuccessThreshold:      2,
		RequestTimeout:        30 * time.Second,
	}
}

// CircuitBreaker stops calling a failing dependency until it has had time to recover
type CircuitBreaker struct {
	config CircuitBreakerConfig

	state           int32 // CircuitBreakerState
	failures        int32
	successes       int32
	requests        int32
	lastFailureTime int64 // Unix nano

	mu sync.Mutex
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 1
	}
	if config.MaxConcurrentRequests <= 0 {
		config.MaxConcurrentRequests = 1
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &CircuitBreaker{
		config: config,
		state:  int32(StateClosed),
	}
}

// Execute runs fn unless the circuit is open. fn receives a context bounded by
// RequestTimeout; if it has not returned when that context ends, Execute returns
// without waiting for it.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	halfOpen, err := cb.beforeRequest()
	if err != nil {
		return err
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if cb.config.RequestTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, cb.config.RequestTimeout)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		err := fn(callCtx)
		if halfOpen {
			atomic.AddInt32(&cb.requests, -1)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil && cb.countsAsFailure(err) {
			cb.onFailure()
			return err
		}
		cb.onSuccess()
		return err

	case <-callCtx.Done():
		cb.onFailure()
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return ErrCircuitBreakerTimeout
		}
		return callCtx.Err()
	}
}

func (cb *CircuitBreaker) countsAsFailure(err error) bool {
	if cb.config.IsFailure == nil {
		return true
	}
	return cb.config.IsFailure(err)
}

// beforeRequest checks if the request should be allowed and reports whether it
// occupies a half-open slot
func (cb *CircuitBreaker) beforeRequest() (bool, error) {
	switch cb.State() {
	case StateClosed:
		return false, nil

	case StateOpen:
		if !cb.shouldAttemptReset() {
			return false, ErrCircuitBreakerOpen
		}
		cb.TransitionToHalfOpen()
		return cb.acquireHalfOpen()

	case StateHalfOpen:
		return cb.acquireHalfOpen()

	default:
		return false, ErrCircuitBreakerOpen
	}
}

func (cb *CircuitBreaker) acquireHalfOpen() (bool, error) {
	for {
		current := atomic.LoadInt32(&cb.requests)
		if current >= int32(cb.config.MaxConcurrentRequests) {
			return false, ErrCircuitBreakerOpen
		}
		if atomic.CompareAndSwapInt32(&cb.requests, current, current+1) {
			return true, nil
		}
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.State() {
	case StateClosed:
		atomic.StoreInt32(&cb.failures, 0)

	case StateHalfOpen:
		if int(atomic.AddInt32(&cb.successes, 1)) >= cb.config.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	failures := atomic.AddInt32(&cb.failures, 1)
	atomic.StoreInt64(&cb.lastFailureTime, time.Now().UnixNano())

	switch cb.State() {
	case StateClosed:
		if int(failures) >= cb.config.MaxFailures {
			cb.transition(StateOpen)
		}

	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) shouldAttemptReset() bool {
	lastFailure := atomic.LoadInt64(&cb.lastFailureTime)
	return time.Since(time.Unix(0, lastFailure)) >= cb.config.Timeout
}

func (cb *CircuitBreaker) transition(to CircuitBreakerState) {
	cb.mu.Lock()
	from := CircuitBreakerState(atomic.SwapInt32(&cb.state, int32(to)))
	switch to {
	case StateClosed:
		atomic.StoreInt32(&cb.failures, 0)
		atomic.StoreInt32(&cb.successes, 0)
	case StateOpen:
		atomic.StoreInt64(&cb.lastFailureTime, time.Now().UnixNano())
	case StateHalfOpen:
		atomic.StoreInt32(&cb.successes, 0)
	}
	cb.mu.Unlock()

	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

// TransitionToHalfOpen transitions the circuit breaker to half-open state
func (cb *CircuitBreaker) TransitionToHalfOpen() {
	cb.transition(StateHalfOpen)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return CircuitBreakerState(atomic.LoadInt32(&cb.state))
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	return int(atomic.LoadInt32(&cb.failures))
}

// Successes returns the current success count (only relevant in half-open state)
func (cb *CircuitBreaker) Successes() int {
	return int(atomic.LoadInt32(&cb.successes))
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.transition(StateClosed)
}

type CircuitBreakerStats struct {
	State     CircuitBreakerState
	Failures  int
	Successes int
	Requests  int
}

// Stats returns current statistics
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	return CircuitBreakerStats{
		State:     cb.State(),
		Failures:  cb.Failures(),
		Successes: cb.Successes(),
		Requests:  int(atomic.LoadInt32(&cb.requests)),
	}
}
