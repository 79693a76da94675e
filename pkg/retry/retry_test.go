package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ktrace/pkg/errors"
)

func TestLinearBackOff(t *testing.T) {
	b := NewLinearBackOff(100*time.Millisecond, 250*time.Millisecond)

	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 200*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 250*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 100*time.Millisecond, b.NextBackOff())
}

func TestLinearDelay_Uncapped(t *testing.T) {
	assert.Equal(t, 3*time.Second, LinearDelay(3, time.Second, 0))
}

func TestRetry_SucceedsFirstTime(t *testing.T) {
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 3}, func(int) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ExhaustsAfterMaxRetries(t *testing.T) {
	boom := errors.New("connection refused")
	calls := 0

	attempts, err := Retry(context.Background(), Policy{MaxRetries: 2, BaseDelay: time.Millisecond}, func(int) error {
		calls++
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetry_RecoversMidway(t *testing.T) {
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond}, func(attempt int) error {
		if attempt < 3 {
			return errors.New("503")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(int) error {
		return NewFatalError(errors.New("bad request"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_AppErrorMarkedFatal(t *testing.T) {
	attempts, err := Retry(context.Background(), Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(int) error {
		return apperrors.ErrDeliveryFailed.AsFatal()
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithCallback_LinearDelays(t *testing.T) {
	var delays []time.Duration
	var seen []int

	_, err := RetryWithCallback(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(int) error { return errors.New("timeout") },
		func(attempt int, err error, next time.Duration) {
			seen = append(seen, attempt)
			delays = append(delays, next)
		})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond}, delays)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := Retry(ctx, Policy{MaxRetries: 10, BaseDelay: time.Hour}, func(int) error {
		return errors.New("offline")
	})
	require.Error(t, err)
	assert.LessOrEqual(t, attempts, 1)
}
