package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_Execute(t *testing.T) {
	t.Run("successful operation", func(t *testing.T) {
		r := New()
		callCount := 0

		err := r.Execute(t.Context(), func() error {
			callCount++
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, callCount, "Operation should be called exactly once")
	})

	t.Run("retry until success", func(t *testing.T) {
		r := New(WithAttempts(3), WithDelay(time.Millisecond))
		callCount := 0

		err := r.Execute(t.Context(), func() error {
			callCount++
			if callCount < 2 {
				return errors.New("temporary error")
			}
			return nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 2, callCount, "Operation should be called exactly twice")
	})

	t.Run("retry exhausted returns every error", func(t *testing.T) {
		r := New(
			WithAttempts(3),
			WithDelay(1*time.Millisecond),
			WithMaxDelay(5*time.Millisecond),
			WithLastErrorOnly(false),
		)
		callCount := 0
		expectedErr := errors.New("persistent error")

		err := r.Execute(t.Context(), func() error {
			callCount++
			return expectedErr
		})

		var errs retrygo.Error
		require.ErrorAs(t, err, &errs)
		assert.Len(t, errs, 3, "Should return all errors")
		assert.ErrorIs(t, err, expectedErr)
		assert.Equal(t, 3, callCount, "Operation should be called exactly 3 times")
	})

	t.Run("retry exhausted returns last error", func(t *testing.T) {
		r := New(WithAttempts(2), WithDelay(time.Millisecond), WithFixedDelay())
		expectedErr := errors.New("persistent error")

		err := r.Execute(t.Context(), func() error { return expectedErr })

		assert.Equal(t, expectedErr, err)
	})

	t.Run("unrecoverable error stops immediately", func(t *testing.T) {
		r := New(WithAttempts(5), WithDelay(time.Millisecond))
		callCount := 0
		fatal := errors.New("fatal")

		err := r.Execute(t.Context(), func() error {
			callCount++
			return Unrecoverable(fatal)
		})

		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, callCount)
	})

	t.Run("retry if rejects error", func(t *testing.T) {
		skip := errors.New("do not retry")
		r := New(
			WithAttempts(5),
			WithDelay(time.Millisecond),
			WithRetryIf(func(err error) bool { return !errors.Is(err, skip) }),
		)
		callCount := 0

		err := r.Execute(t.Context(), func() error {
			callCount++
			return skip
		})

		assert.ErrorIs(t, err, skip)
		assert.Equal(t, 1, callCount)
	})

	t.Run("on retry callback", func(t *testing.T) {
		var attempts []uint
		r := New(
			WithAttempts(3),
			WithDelay(time.Millisecond),
			WithFixedDelay(),
			WithOnRetry(func(n uint, _ error) { attempts = append(attempts, n) }),
		)

		_ = r.Execute(t.Context(), func() error { return errors.New("boom") })

		require.NotEmpty(t, attempts)
		assert.Equal(t, uint(0), attempts[0])
	})

	t.Run("context cancellation", func(t *testing.T) {
		r := New(
			WithAttempts(5),
			WithDelay(100*time.Millisecond),
		)
		callCount := 0

		ctx, cancel := context.WithCancel(t.Context())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		err := r.Execute(ctx, func() error {
			callCount++
			return errors.New("error that would normally trigger retry")
		})

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, callCount, "Operation should be called exactly once due to context cancellation")
	})
}

func TestRetry_Options(t *testing.T) {
	t.Run("default options", func(t *testing.T) {
		r := New()
		retrier, ok := r.(*retrier)
		require.True(t, ok, "Expected r to be of type *retrier")

		assert.Equal(t, uint(3), retrier.cfg.attempts)
		assert.Equal(t, 1*time.Second, retrier.cfg.delay)
		assert.Equal(t, 5*time.Second, retrier.cfg.maxDelay)
		assert.False(t, retrier.cfg.fixedDelay)
	})

	t.Run("zero attempts becomes one", func(t *testing.T) {
		r := New(WithAttempts(0))
		retrier, ok := r.(*retrier)
		require.True(t, ok)

		assert.Equal(t, uint(1), retrier.cfg.attempts)
	})

	t.Run("custom options", func(t *testing.T) {
		r := New(
			WithAttempts(5),
			WithDelay(2*time.Second),
			WithMaxDelay(10*time.Second),
			WithFixedDelay(),
		)
		retrier, ok := r.(*retrier)
		require.True(t, ok)

		assert.Equal(t, uint(5), retrier.cfg.attempts)
		assert.Equal(t, 2*time.Second, retrier.cfg.delay)
		assert.Equal(t, 10*time.Second, retrier.cfg.maxDelay)
		assert.True(t, retrier.cfg.fixedDelay)
	})
}
