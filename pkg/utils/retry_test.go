package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestRetryWithResult_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	got, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errTransient
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult_GivesUp(t *testing.T) {
	calls := 0
	_, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		calls++
		return 0, errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
}

func TestRetryWithResult_NonRetryable(t *testing.T) {
	cfg := fastRetry()
	cfg.RetryableErrors = []error{errTransient}
	permanent := errors.New("permanent")

	calls := 0
	_, err := RetryWithResult(context.Background(), cfg, func() (string, error) {
		calls++
		return "", permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastRetry()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	calls := 0
	_, err := RetryWithResult(ctx, cfg, func() (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestCalculateBackoff(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, CalculateBackoff(0, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, 400*time.Millisecond, CalculateBackoff(2, 100*time.Millisecond, time.Second, 2))
	assert.Equal(t, time.Second, CalculateBackoff(10, 100*time.Millisecond, time.Second, 2))
}
