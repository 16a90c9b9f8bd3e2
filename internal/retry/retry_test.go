package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond, Multiplier: 2}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastConfig(3), func() (string, error) {
		calls++
		if calls < 3 {
			return "", Retryable(errors.New("503"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("403")
	calls := 0
	_, err := Do(context.Background(), fastConfig(5), func() (int, error) {
		calls++
		return 0, permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestDoUnwrapsLastError(t *testing.T) {
	cause := errors.New("connection reset")
	calls := 0
	_, err := Do(context.Background(), fastConfig(2), func() (int, error) {
		calls++
		return 0, Retryable(cause)
	})
	assert.Same(t, cause, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 2, calls)
}

func TestDoHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := Config{MaxAttempts: 3, InitialWait: time.Hour, Multiplier: 1}
	_, err := Do(ctx, cfg, func() (int, error) {
		return 0, Retryable(errors.New("timeout"))
	})
	assert.ErrorIs(t, err, context.Canceled)
}
