package resilience

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// RetryConfig controls Retry
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Jitter adds up to 20% to each backoff
	Jitter bool
	// RetryableErrors decides whether an error is worth another attempt
	RetryableErrors func(error) bool
}

// DefaultRetryConfig returns a default configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        2 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
		RetryableErrors:   DefaultRetryableErrors,
	}
}

// DefaultRetryableErrors retries everything except an open circuit, a breaker
// timeout and context cancellation
func DefaultRetryableErrors(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrCircuitBreakerOpen), errors.Is(err, ErrCircuitBreakerTimeout):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt))
	if max := float64(config.MaxBackoff); max > 0 && backoff > max {
		backoff = max
	}
	if config.Jitter && backoff > 0 {
		backoff += backoff * 0.2 * rand.Float64()
	}
	return time.Duration(backoff)
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = DefaultRetryableErrors
	}
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		if attempt >= config.MaxRetries {
			return fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}
		timer := time.NewTimer(calculateBackoff(attempt, config))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

// RetryWithCircuitBreaker runs each attempt through cb. An open circuit ends the
// retries immediately.
func RetryWithCircuitBreaker(ctx context.Context, config RetryConfig, cb *CircuitBreaker, fn func(ctx context.Context) error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}
