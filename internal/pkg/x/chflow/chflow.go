// Package chflow provides context-aware helpers for waiting on Go channels
// and timers. Every helper returns early when the context is done.
package chflow

import (
	"context"
	"time"
)

// Receive waits to receive a value from the provided channel or for the context to be canceled.
// It returns the value (zero value if canceled) and a boolean indicating if the receive was successful.
func Receive[T any](ctx context.Context, ch <-chan T) (T, bool) {
	var data T
	select {
	case <-ctx.Done():
		return data, false
	case data, ok := <-ch:
		return data, ok
	}
}

// ReceiveTimeout behaves like Receive but also gives up after d.
func ReceiveTimeout[T any](ctx context.Context, ch <-chan T, d time.Duration) (T, bool) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	return Receive(ctx, ch)
}

// Sleep pauses for d or until the context is done, whichever comes first.
// It returns false if the context ended the wait.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
