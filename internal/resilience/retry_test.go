package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastRetry(retryable func(error) bool) RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		RetryableErrors: retryable,
	}
}

func TestRetryWithConfig(t *testing.T) {
	always := func(error) bool { return true }
	never := func(error) bool { return false }

	tests := []struct {
		name      string
		retryable func(error) bool
		failUntil int
		wantCalls int
		wantErr   bool
	}{
		{name: "first try succeeds", retryable: always, failUntil: 0, wantCalls: 1},
		{name: "succeeds on third try", retryable: always, failUntil: 2, wantCalls: 3},
		{name: "gives up after max attempts", retryable: always, failUntil: 10, wantCalls: 3, wantErr: true},
		{name: "non-retryable stops immediately", retryable: never, failUntil: 10, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := RetryWithConfig(context.Background(), fastRetry(tt.retryable), func() error {
				calls++
				if calls <= tt.failUntil {
					return errors.New("transient")
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryWithConfig_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithConfig(ctx, fastRetry(func(error) bool { return true }), func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestCalculateDelay(t *testing.T) {
	config := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffFactor: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(config, 0))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(config, 2))
	assert.Equal(t, time.Second, calculateDelay(config, 10))

	config.JitterEnabled = true
	d := calculateDelay(config, 0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 110*time.Millisecond)
}
