package cli

import (
	"context"
	"slices"
)

type group []Relay

// Group combines relays into one. Start runs them in order and, when one
// fails, stops those already started. Stop runs in reverse order.
func Group(relays ...Relay) Relay {
	return group(relays)
}

func (g group) Start(ctx context.Context) error {
	for i, r := range g {
		if err := r.Start(ctx); err != nil {
			group(g[:i]).Stop()
			return err
		}
	}
	return nil
}

func (g group) Stop() {
	for _, r := range slices.Backward(g) {
		r.Stop()
	}
}
