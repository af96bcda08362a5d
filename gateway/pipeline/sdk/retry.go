// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package sdk

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// RetryConfig configures retry behavior for backend calls.
type RetryConfig struct {
	// MaxRetries is the number of retry attempts after the first call.
	MaxRetries int

	// InitialBackoff is the wait before the first retry.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier for exponential backoff.
	BackoffFactor float64

	// Jitter adds randomness to avoid thundering herd (0.0-1.0).
	Jitter float64

	// RetryIf determines if an error should be retried.
	RetryIf func(err error) bool

	// Observe, when set, is called once per failed attempt before the
	// retry decision. Used for telemetry.
	Observe func(attempt int, err error)
}

// DefaultRetryConfig returns the retry configuration used against model
// backends: exponential backoff, retrying only transient failures.
func DefaultRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     15 * time.Second,
		BackoffFactor:  2.0,
		Jitter:         0.1,
		RetryIf:        DefaultRetryable,
	}
}

// StatusRetryable reports whether an HTTP status warrants a retry.
// Only 429 and the 5xx range are retryable; other 4xx statuses are fatal.
func StatusRetryable(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

// DefaultRetryable retries API errors with retryable statuses and all
// transport-level failures. Context cancellation is never retried.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	// Anything else is a transport error.
	return true
}

// RetryWithBackoff executes fn with exponential backoff retry. The last
// error is returned after exhaustion.
func RetryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if config.Observe != nil {
			config.Observe(attempt, err)
		}

		if config.RetryIf != nil && !config.RetryIf(err) {
			return zero, err
		}

		// Don't wait after the last attempt.
		if attempt >= config.MaxRetries {
			break
		}

		backoff := config.InitialBackoff * time.Duration(pow(config.BackoffFactor, float64(attempt)))
		if backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
		if config.Jitter > 0 {
			jitterDelta := float64(backoff) * config.Jitter
			jitter := (rand.Float64() * 2 * jitterDelta) - jitterDelta
			backoff = time.Duration(float64(backoff) + jitter)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return zero, lastErr
}

// pow calculates base^exp for floats.
func pow(base, exp float64) float64 {
	result := 1.0
	for exp > 0 {
		if int(exp)%2 == 1 {
			result *= base
		}
		exp = float64(int(exp) / 2)
		base *= base
	}
	return result
}

// APIError is a non-OK HTTP answer from a backend, kept with enough of the
// response to classify it after retries are exhausted.
type APIError struct {
	StatusCode int
	Body       string
	XRequestID string
}

func (e *APIError) Error() string {
	return http.StatusText(e.StatusCode) + ": " + e.Body
}

// IsRetryable reports whether the status warrants another attempt.
func (e *APIError) IsRetryable() bool {
	return StatusRetryable(e.StatusCode)
}
