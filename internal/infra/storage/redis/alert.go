package redis

import (
	"context"
	"encoding/json"

	"github.com/gabapcia/txrelay/internal/guard"

	"github.com/redis/go-redis/v9"
)

var (
	// alertChannel is the pub/sub channel alerts are published on.
	alertChannel = keyPrefix + ":alerts"

	// alertListKey holds the most recent alerts, newest first.
	alertListKey = keyPrefix + ":alerts:recent"
)

// Alert publishes record on the alert channel and prepends it to the capped
// alert list in one transaction.
func (c *client) Alert(ctx context.Context, record guard.ErrorRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = c.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, alertChannel, data)
		pipe.LPush(ctx, alertListKey, data)
		pipe.LTrim(ctx, alertListKey, 0, c.alertHistory-1)
		return nil
	})
	return err
}

var _ guard.Notifier = new(client)
