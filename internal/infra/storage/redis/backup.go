package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gabapcia/txrelay/internal/maintenance"

	"github.com/redis/go-redis/v9"
)

// backupLatestKey always points at the most recent snapshot.
var backupLatestKey = keyPrefix + ":backup:latest"

// backupKey returns "txrelay:backup:<unix seconds>".
func backupKey(snapshot maintenance.Snapshot) string {
	return fmt.Sprintf("%s:backup:%d", keyPrefix, snapshot.TakenAt.Unix())
}

// SaveSnapshot stores snapshot under its timestamp and as the latest backup.
func (c *client) SaveSnapshot(ctx context.Context, snapshot maintenance.Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	_, err = c.conn.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, backupKey(snapshot), data, c.backupTTL)
		pipe.Set(ctx, backupLatestKey, data, 0)
		return nil
	})
	return err
}

var _ maintenance.SnapshotSink = new(client)
