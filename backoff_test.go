package main

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelayBounds(t *testing.T) {
	for attempt := 1; attempt <= 8; attempt++ {
		ceiling := time.Duration(min(DefaultCapMs, 1<<attempt)) * time.Millisecond
		for i := 0; i < 50; i++ {
			delay := backoffDelay(attempt, DefaultMinDelayMs, DefaultCapMs)
			assert.GreaterOrEqual(t, delay, time.Duration(0))
			assert.Less(t, delay, ceiling, "attempt %d", attempt)
		}
	}
}

func TestBackoffDelayHonoursCap(t *testing.T) {
	for i := 0; i < 50; i++ {
		delay := backoffDelay(30, DefaultMinDelayMs, DefaultCapMs)
		assert.Less(t, delay, time.Duration(DefaultCapMs)*time.Millisecond)
	}
}

func TestBackoffDelayZeroCeiling(t *testing.T) {
	assert.Equal(t, time.Duration(0), backoffDelay(0, 0, DefaultCapMs))
}

func TestWithBackoffStopsOnSuccess(t *testing.T) {
	calls := 0
	err := withBackoff(zerolog.Nop(), 5, 1, 10, func() error {
		calls++
		if calls < 3 {
			return &RetryableError{Cause: errors.New("flaky")}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithBackoffDoesNotRetryOtherErrors(t *testing.T) {
	calls := 0
	fatal := errors.New("fatal")
	err := withBackoff(zerolog.Nop(), 5, 1, 10, func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffExhaustionWrapsLastCause(t *testing.T) {
	cause := errors.New("socket reset")
	calls := 0
	err := withBackoff(zerolog.Nop(), 2, 1, 10, func() error {
		calls++
		return &RetryableError{Cause: cause}
	})

	var noRetry *NoRetryError
	require.ErrorAs(t, err, &noRetry)
	assert.Same(t, cause, noRetry.Cause)
	assert.Equal(t, 3, calls, "initial call plus two retries")
}
