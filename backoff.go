package main

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
)

// Retry policy defaults
const (
	DefaultMaxRetries = 5
	DefaultMinDelayMs = 1
	DefaultCapMs      = 5000
)

// RetryableError marks a failure the retry wrapper should retry, network
// I/O mostly. Anything else propagates immediately.
type RetryableError struct {
	Cause error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.Cause)
}

func (e *RetryableError) Unwrap() error { return e.Cause }

// NoRetryError reports retry exhaustion, wrapping the last cause.
type NoRetryError struct {
	Cause error
}

func (e *NoRetryError) Error() string {
	return fmt.Sprintf("retries exhausted: %v", e.Cause)
}

func (e *NoRetryError) Unwrap() error { return e.Cause }

// backoffDelay computes an AWS full-jitter backoff: a uniform random
// delay in [0, min(capMs, minDelayMs*2^attempt)) milliseconds.
//
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
func backoffDelay(attempt, minDelayMs, capMs int) time.Duration {
	ceiling := min(capMs, minDelayMs<<attempt)
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Intn(ceiling)) * time.Millisecond
}

// withBackoff runs fn, retrying on RetryableError with full-jitter sleeps
// up to maxRetries times. Exhaustion surfaces a NoRetryError wrapping the
// last underlying cause.
func withBackoff(log zerolog.Logger, maxRetries, minDelayMs, capMs int, fn func() error) error {
	var lastCause error

	for retries := 0; retries <= maxRetries; retries++ {
		err := fn()
		if err == nil {
			return nil
		}

		var retryable *RetryableError
		if !errors.As(err, &retryable) {
			return err
		}

		lastCause = retryable.Cause
		log.Info().Err(retryable.Cause).Int("retry", retries).Msg("caught a retryable error")
		time.Sleep(backoffDelay(retries+1, minDelayMs, capMs))
	}

	return &NoRetryError{Cause: lastCause}
}
