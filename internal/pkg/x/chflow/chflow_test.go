package chflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReceive(t *testing.T) {
	t.Run("successful receive", func(t *testing.T) {
		ch := make(chan int, 1)
		ch <- 42

		value, ok := Receive(t.Context(), ch)

		assert.True(t, ok)
		assert.Equal(t, 42, value)
	})

	t.Run("context canceled before receive", func(t *testing.T) {
		ch := make(chan int)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		value, ok := Receive(ctx, ch)

		assert.False(t, ok)
		assert.Equal(t, 0, value)
	})

	t.Run("channel closed", func(t *testing.T) {
		ch := make(chan string)
		close(ch)

		value, ok := Receive(t.Context(), ch)

		assert.False(t, ok)
		assert.Equal(t, "", value)
	})
}

func TestReceiveTimeout(t *testing.T) {
	t.Run("times out on empty channel", func(t *testing.T) {
		ch := make(chan struct{})
		start := time.Now()

		_, ok := ReceiveTimeout(t.Context(), ch, 20*time.Millisecond)

		assert.False(t, ok)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("value ready", func(t *testing.T) {
		ch := make(chan struct{}, 1)
		ch <- struct{}{}

		_, ok := ReceiveTimeout(t.Context(), ch, time.Second)
		assert.True(t, ok)
	})
}

func TestSleep(t *testing.T) {
	t.Run("full sleep", func(t *testing.T) {
		assert.True(t, Sleep(t.Context(), 5*time.Millisecond))
	})

	t.Run("zero duration", func(t *testing.T) {
		assert.True(t, Sleep(t.Context(), 0))
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		assert.False(t, Sleep(ctx, time.Second))
		assert.False(t, Sleep(ctx, 0))
	})
}
