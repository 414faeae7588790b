package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessOnRetry(t *testing.T) {
	var attempts []int
	err := Do(context.Background(), 3, time.Millisecond, func(attempt int) error {
		attempts = append(attempts, attempt)
		if attempt < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, attempts)
}

func TestDo_AllAttemptsExhausted(t *testing.T) {
	sentinel := errors.New("always fails")
	calls := 0
	err := Do(context.Background(), 3, time.Millisecond, func(int) error {
		calls++
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 3, calls)
}

func TestDo_PermanentErrorStopsRetry(t *testing.T) {
	sentinel := errors.New("permanent failure")
	calls := 0
	err := Do(context.Background(), 5, time.Millisecond, func(int) error {
		calls++
		return Permanent(sentinel)
	})

	assert.ErrorIs(t, err, sentinel)
	var pe *PermanentError
	assert.False(t, errors.As(err, &pe), "обёртка не должна утекать наружу")
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, 5, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, Backoff(base, 0))
	assert.Equal(t, 200*time.Millisecond, Backoff(base, 1))
	assert.Equal(t, 400*time.Millisecond, Backoff(base, 2))
	assert.Equal(t, base, Backoff(base, -1))
}
