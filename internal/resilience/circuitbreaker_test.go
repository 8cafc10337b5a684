package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestBreaker(c *clock) *CircuitBreaker {
	cb := NewCircuitBreaker("orats", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	})
	cb.now = c.now
	return cb
}

func fail(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, cb.Allow())
		cb.Record(true)
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	c := &clock{t: time.Date(2023, 3, 1, 10, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(c)

	fail(t, cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())

	// A success resets the count.
	require.NoError(t, cb.Allow())
	cb.Record(false)
	fail(t, cb, 2)
	assert.Equal(t, CircuitClosed, cb.State())

	fail(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	stats := cb.Stats()
	assert.Equal(t, int64(1), stats.TotalRejected)
	assert.Equal(t, int64(5), stats.TotalFailures)
	assert.Equal(t, "orats", cb.Name())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	c := &clock{t: time.Date(2023, 3, 1, 10, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(c)
	fail(t, cb, 3)
	require.Equal(t, CircuitOpen, cb.State())

	c.t = c.t.Add(time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())
	cb.Record(false)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Allow())
	cb.Record(false)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	c := &clock{t: time.Date(2023, 3, 1, 10, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(c)
	fail(t, cb, 3)

	c.t = c.t.Add(2 * time.Minute)
	fail(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Allow())
}

func TestCircuitBreakerStats_FailureRate(t *testing.T) {
	assert.Zero(t, CircuitBreakerStats{}.FailureRate())
	assert.InDelta(t, 25.0, CircuitBreakerStats{TotalRequests: 8, TotalFailures: 2}.FailureRate(), 1e-9)
}
