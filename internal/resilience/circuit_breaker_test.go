package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream down")

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "github", FailureThreshold: 3, RecoveryTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Call(func() error { return errUpstream }), errUpstream)
	}
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })

	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, "github", cbErr.Name)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2})

	_ = cb.Call(func() error { return errUpstream })
	assert.Equal(t, 1, cb.Failures())
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Second})
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errUpstream })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())

	_ = cb.Call(func() error { return errUpstream })
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(11 * time.Second)
	_ = cb.Call(func() error { return errUpstream })
	assert.Equal(t, StateOpen, cb.State(), "a failed trial call reopens the circuit")
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	_ = cb.Call(func() error { return errUpstream })
	cb.Reset()

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.Stats()["state"])
}
