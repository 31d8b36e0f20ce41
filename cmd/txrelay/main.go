package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gabapcia/txrelay/internal/config"
	"github.com/gabapcia/txrelay/internal/guard"
	"github.com/gabapcia/txrelay/internal/handlers/cli"
	"github.com/gabapcia/txrelay/internal/infra/blockchain/evm"
	"github.com/gabapcia/txrelay/internal/infra/storage/redis"
	"github.com/gabapcia/txrelay/internal/maintenance"
	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/pkg/telemetry"
	txhttp "github.com/gabapcia/txrelay/internal/pkg/transport/http"
	"github.com/gabapcia/txrelay/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/txrelay/internal/scheduler"
	"github.com/gabapcia/txrelay/internal/txproc"
)

const shutdownTimeout = 10 * time.Second

// closer adapts a cleanup function to cli.Relay so it runs last on shutdown.
type closer func()

func (closer) Start(context.Context) error { return nil }
func (c closer) Stop()                      { c() }

func newRelay(ctx context.Context) (cli.Relay, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var cleanups []func(context.Context) error

	if cfg.TelemetryEnabled {
		shutdown, err := telemetry.Init(ctx, cfg.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		cleanups = append(cleanups, shutdown)
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	cleanups = append(cleanups, func(context.Context) error {
		// stdout does not support fsync on most platforms
		_ = logger.Sync()
		return nil
	})

	guardOpts := []guard.Option{}
	procOpts := []txproc.Option{
		txproc.WithQueueCapacity(cfg.QueueCapacity),
		txproc.WithMaxConcurrentWorkers(cfg.Workers),
		txproc.WithDefaultMaxRetries(cfg.TxMaxRetries),
		txproc.WithDefaultRetryDelay(cfg.TxRetryDelay),
	}

	var sink maintenance.SnapshotSink
	if cfg.RedisEnabled() {
		store, err := redis.NewClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB, redis.WithResultTTL(cfg.ResultTTL))
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		cleanups = append(cleanups, func(context.Context) error { return store.Close() })

		guardOpts = append(guardOpts, guard.WithNotifier(store))
		procOpts = append(procOpts, txproc.WithResultStore(store))
		sink = store
	}

	conns := make(map[string]jsonrpc.Client, len(cfg.ChainEndpoints))
	for chainID, endpoint := range cfg.ChainEndpoints {
		conns[chainID] = jsonrpc.NewClient(endpoint,
			txhttp.WithTimeout(cfg.RPCTimeout),
			txhttp.WithRetryMax(cfg.RPCRetryMax),
			txhttp.WithRetryLogging(),
		)
	}
	broadcaster := evm.NewBroadcaster(conns)

	g := guard.New(guardOpts...)
	processor := txproc.New(broadcaster, g, procOpts...)

	sched := scheduler.New(scheduler.WithMaxConcurrentTasks(cfg.SchedulerMaxConcurrentTasks))
	sched.RegisterTaskHandler(scheduler.TaskHealthCheck, maintenance.HealthCheckHandler(g, broadcaster, broadcaster.Chains()))
	sched.RegisterTaskHandler(scheduler.TaskMetricsCollection, maintenance.MetricsHandler(g, processor))
	sched.RegisterTaskHandler(scheduler.TaskCleanup, maintenance.CleanupHandler(g, cfg.ErrorRetention, time.Now))

	tasks := []scheduler.ScheduledTask{
		{Name: "chain health check", Type: scheduler.TaskHealthCheck, CronExpression: cfg.HealthCheckCron, Priority: scheduler.PriorityHigh, Enabled: true, MaxRetries: 1, RetryDelay: time.Second},
		{Name: "metrics collection", Type: scheduler.TaskMetricsCollection, CronExpression: cfg.MetricsCron, Priority: scheduler.PriorityNormal, Enabled: true},
		{Name: "error record cleanup", Type: scheduler.TaskCleanup, CronExpression: cfg.CleanupCron, Priority: scheduler.PriorityLow, Enabled: true},
	}
	if sink != nil {
		sched.RegisterTaskHandler(scheduler.TaskBackup, maintenance.BackupHandler(g, processor, sink, time.Now))
		tasks = append(tasks, scheduler.ScheduledTask{
			Name: "state backup", Type: scheduler.TaskBackup, CronExpression: cfg.BackupCron, Priority: scheduler.PriorityNormal, Enabled: true, MaxRetries: 2, RetryDelay: 5 * time.Second,
		})
	}

	for _, task := range tasks {
		if _, err := sched.AddTask(task); err != nil {
			return nil, fmt.Errorf("scheduling %q: %w", task.Name, err)
		}
	}

	logger.Info(ctx, "relay configured",
		"chains", cfg.ChainEndpoints.IDs(),
		"workers", cfg.Workers,
		"redis", cfg.RedisEnabled(),
	)

	release := closer(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for i := len(cleanups) - 1; i >= 0; i-- {
			errs = append(errs, cleanups[i](ctx))
		}
		if err := errors.Join(errs...); err != nil {
			fmt.Fprintln(os.Stderr, "shutdown:", err)
		}
	})

	return cli.Group(release, processor, sched), nil
}

func main() {
	if err := cli.Run(context.Background(), os.Args, os.Stdout, newRelay); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
