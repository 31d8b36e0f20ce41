// Package config loads the relay configuration from the environment.
//
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence. Every variable
// is prefixed with TXRELAY_.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/gabapcia/txrelay/internal/pkg/validator"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const Prefix = "TXRELAY"

// ChainEndpoints maps chain ids to JSON-RPC endpoints. In the environment it
// is written as "id=url,id=url".
type ChainEndpoints map[string]string

// Decode implements envconfig.Decoder. envconfig's own map syntax splits on
// ':', which breaks on URLs.
func (c *ChainEndpoints) Decode(value string) error {
	out := make(ChainEndpoints)
	for pair := range strings.SplitSeq(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		id, url, ok := strings.Cut(pair, "=")
		id, url = strings.TrimSpace(id), strings.TrimSpace(url)
		if !ok || id == "" || url == "" {
			return fmt.Errorf("invalid chain endpoint %q, expected id=url", pair)
		}
		if _, dup := out[id]; dup {
			return fmt.Errorf("chain %q configured twice", id)
		}
		out[id] = url
	}

	*c = out
	return nil
}

// IDs returns the configured chain ids, sorted.
func (c ChainEndpoints) IDs() []string {
	return slices.Sorted(maps.Keys(c))
}

type Config struct {
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	ServiceName      string `envconfig:"SERVICE_NAME" default:"txrelay" validate:"required"`
	TelemetryEnabled bool   `envconfig:"TELEMETRY_ENABLED" default:"false"`

	QueueCapacity int           `envconfig:"QUEUE_CAPACITY" default:"10000" validate:"gt=0"`
	Workers       int           `envconfig:"WORKERS" default:"4" validate:"gt=0"`
	TxMaxRetries  int           `envconfig:"TX_MAX_RETRIES" default:"3" validate:"gte=0"`
	TxRetryDelay  time.Duration `envconfig:"TX_RETRY_DELAY" default:"5s" validate:"gte=0"`

	ChainEndpoints ChainEndpoints `envconfig:"CHAIN_ENDPOINTS" required:"true" validate:"min=1,dive,keys,chainid,endkeys,url"`
	RPCTimeout     time.Duration  `envconfig:"RPC_TIMEOUT" default:"10s" validate:"gt=0"`
	RPCRetryMax    int            `envconfig:"RPC_RETRY_MAX" default:"2" validate:"gte=0"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisUsername string        `envconfig:"REDIS_USERNAME"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	ResultTTL     time.Duration `envconfig:"RESULT_TTL" default:"24h" validate:"gte=0"`

	SchedulerMaxConcurrentTasks int           `envconfig:"SCHEDULER_MAX_CONCURRENT_TASKS" default:"4" validate:"gt=0"`
	HealthCheckCron             string        `envconfig:"HEALTH_CHECK_CRON" default:"@every 30s" validate:"required"`
	MetricsCron                 string        `envconfig:"METRICS_CRON" default:"@every 1m" validate:"required"`
	BackupCron                  string        `envconfig:"BACKUP_CRON" default:"0 * * * *" validate:"required"`
	CleanupCron                 string        `envconfig:"CLEANUP_CRON" default:"@every 1h" validate:"required"`
	ErrorRetention              time.Duration `envconfig:"ERROR_RETENTION" default:"24h" validate:"gt=0"`
}

// RedisEnabled reports whether the Redis sinks are configured.
func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads files (".env" when none is given) into the environment, then
// processes and validates the TXRELAY_ variables. Missing files are ignored.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, err
	}

	if err := validator.Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
