package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gabapcia/txrelay/internal/pkg/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainEndpoints_Decode(t *testing.T) {
	t.Run("parses pairs with urls containing colons", func(t *testing.T) {
		var c ChainEndpoints
		require.NoError(t, c.Decode("1=https://eth.example.com:8545/v1, 137=http://localhost:8546,"))

		assert.Equal(t, ChainEndpoints{
			"1":   "https://eth.example.com:8545/v1",
			"137": "http://localhost:8546",
		}, c)
		assert.Equal(t, []string{"1", "137"}, c.IDs())
	})

	t.Run("rejects malformed pairs", func(t *testing.T) {
		var c ChainEndpoints
		assert.ErrorContains(t, c.Decode("1"), "expected id=url")
		assert.ErrorContains(t, c.Decode("=http://x"), "expected id=url")
	})

	t.Run("rejects duplicate chains", func(t *testing.T) {
		var c ChainEndpoints
		assert.ErrorContains(t, c.Decode("1=http://a,1=http://b"), "configured twice")
	})
}

func TestLoad(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("TXRELAY_CHAIN_ENDPOINTS", "1=http://localhost:8545")

		cfg, err := Load(missing)
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "txrelay", cfg.ServiceName)
		assert.Equal(t, 10000, cfg.QueueCapacity)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, 3, cfg.TxMaxRetries)
		assert.Equal(t, 5*time.Second, cfg.TxRetryDelay)
		assert.Equal(t, 10*time.Second, cfg.RPCTimeout)
		assert.Equal(t, 24*time.Hour, cfg.ResultTTL)
		assert.Equal(t, "@every 30s", cfg.HealthCheckCron)
		assert.Equal(t, "0 * * * *", cfg.BackupCron)
		assert.False(t, cfg.RedisEnabled())
		assert.Equal(t, ChainEndpoints{"1": "http://localhost:8545"}, cfg.ChainEndpoints)
	})

	t.Run("reads overrides", func(t *testing.T) {
		t.Setenv("TXRELAY_CHAIN_ENDPOINTS", "1=http://localhost:8545")
		t.Setenv("TXRELAY_WORKERS", "16")
		t.Setenv("TXRELAY_TX_RETRY_DELAY", "250ms")
		t.Setenv("TXRELAY_REDIS_ADDR", "localhost:6379")

		cfg, err := Load(missing)
		require.NoError(t, err)
		assert.Equal(t, 16, cfg.Workers)
		assert.Equal(t, 250*time.Millisecond, cfg.TxRetryDelay)
		assert.True(t, cfg.RedisEnabled())
	})

	t.Run("loads env files without overriding the environment", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(file, []byte(
			"TXRELAY_CHAIN_ENDPOINTS=5=http://goerli:8545\nTXRELAY_QUEUE_CAPACITY=5\n",
		), 0o600))
		t.Setenv("TXRELAY_QUEUE_CAPACITY", "7")
		t.Cleanup(func() { os.Unsetenv("TXRELAY_CHAIN_ENDPOINTS") })

		cfg, err := Load(file)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.QueueCapacity)
		assert.Equal(t, ChainEndpoints{"5": "http://goerli:8545"}, cfg.ChainEndpoints)
	})

	t.Run("requires chain endpoints", func(t *testing.T) {
		_, err := Load(missing)
		assert.ErrorContains(t, err, "CHAIN_ENDPOINTS")
	})

	t.Run("validates values", func(t *testing.T) {
		t.Setenv("TXRELAY_CHAIN_ENDPOINTS", "1=not a url")
		t.Setenv("TXRELAY_LOG_LEVEL", "verbose")

		_, err := Load(missing)
		assert.ErrorIs(t, err, validator.ErrValidationFailed)
		assert.ErrorContains(t, err, "LogLevel")
	})

	t.Run("rejects invalid chain ids", func(t *testing.T) {
		t.Setenv("TXRELAY_CHAIN_ENDPOINTS", "eth mainnet=http://localhost:8545")

		_, err := Load(missing)
		assert.ErrorIs(t, err, validator.ErrValidationFailed)
	})
}
