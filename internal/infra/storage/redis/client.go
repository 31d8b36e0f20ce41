// Package redis implements the relay's Redis-backed sinks: terminal result
// storage, alert fan-out and backup snapshots.
//
// Keys are namespaced under "txrelay:".
package redis

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "txrelay"

	DefaultResultTTL    = 24 * time.Hour
	DefaultAlertHistory = 1000
	DefaultBackupTTL    = 7 * 24 * time.Hour
)

type client struct {
	conn *redis.Client

	resultTTL    time.Duration
	alertHistory int64
	backupTTL    time.Duration
}

type config struct {
	resultTTL    time.Duration
	alertHistory int64
	backupTTL    time.Duration
}

type Option func(*config)

// WithResultTTL sets how long terminal results are kept. Zero keeps them forever.
// Default: DefaultResultTTL.
func WithResultTTL(d time.Duration) Option {
	return func(c *config) {
		c.resultTTL = d
	}
}

// WithAlertHistory sets how many alerts the capped alert list retains.
// Default: DefaultAlertHistory.
func WithAlertHistory(n int64) Option {
	return func(c *config) {
		c.alertHistory = n
	}
}

// WithBackupTTL sets how long timestamped backups are kept. The latest
// backup never expires. Default: DefaultBackupTTL.
func WithBackupTTL(d time.Duration) Option {
	return func(c *config) {
		c.backupTTL = d
	}
}

func (c *client) Close() error {
	return c.conn.Close()
}

// NewClient connects to Redis and checks the connection with PING.
func NewClient(ctx context.Context, addr, username, password string, db int, opts ...Option) (*client, error) {
	cfg := config{
		resultTTL:    DefaultResultTTL,
		alertHistory: DefaultAlertHistory,
		backupTTL:    DefaultBackupTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: username,
		Password: password,
		DB:       db,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &client{
		conn:         conn,
		resultTTL:    cfg.resultTTL,
		alertHistory: max(cfg.alertHistory, 1),
		backupTTL:    cfg.backupTTL,
	}, nil
}
