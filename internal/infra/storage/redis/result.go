package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gabapcia/txrelay/internal/txproc"
	"github.com/gabapcia/txrelay/internal/txqueue"

	"github.com/redis/go-redis/v9"
)

// resultKey returns "txrelay:result:<id>".
func resultKey(id string) string {
	return fmt.Sprintf("%s:result:%s", keyPrefix, id)
}

// SaveResult stores result as JSON under its transaction id.
func (c *client) SaveResult(ctx context.Context, result txqueue.TransactionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}

	return c.conn.Set(ctx, resultKey(result.TransactionID), data, c.resultTTL).Err()
}

// LoadResult returns the stored result of id, or txproc.ErrResultNotFound.
func (c *client) LoadResult(ctx context.Context, id string) (txqueue.TransactionResult, error) {
	data, err := c.conn.Get(ctx, resultKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = txproc.ErrResultNotFound
		}
		return txqueue.TransactionResult{}, err
	}

	var result txqueue.TransactionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return txqueue.TransactionResult{}, fmt.Errorf("decode result %s: %w", id, err)
	}
	return result, nil
}

var _ txproc.ResultStore = new(client)
