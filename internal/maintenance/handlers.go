// Package maintenance provides the scheduler task handlers that keep the
// relay healthy: node health checks, metrics collection, error cleanup and
// state backups. Each handler runs its work through the guard path that
// matches the operation.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gabapcia/txrelay/internal/guard"
	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/scheduler"
	"github.com/gabapcia/txrelay/internal/txproc"
	"github.com/gabapcia/txrelay/internal/txqueue"
)

// Prober reports the latest block of a chain.
type Prober interface {
	Probe(ctx context.Context, chainID string) (uint64, error)
}

// Processor is the part of the transaction processor read by the handlers.
type Processor interface {
	QueueStatus() txproc.QueueStatus
	FailedTransactions() []txqueue.TransactionResult
}

// Snapshot is the state captured by a backup.
type Snapshot struct {
	TakenAt time.Time                   `json:"taken_at"`
	Queue   txproc.QueueStatus          `json:"queue"`
	Failed  []txqueue.TransactionResult `json:"failed"`
	Errors  []guard.ErrorRecord         `json:"errors"`
}

// SnapshotSink stores backups.
type SnapshotSink interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
}

// DefaultBackupErrorLimit is how many recent error records a backup keeps.
const DefaultBackupErrorLimit = 500

// HealthCheckHandler probes every chain through the HealthCheck path. The
// task fails when any chain fails.
func HealthCheckHandler(g *guard.Guard, prober Prober, chains []string) scheduler.Handler {
	return scheduler.HandlerFunc(func(ctx context.Context, task scheduler.ScheduledTask) error {
		var errs []error
		for _, chainID := range chains {
			height, err := guard.Execute(ctx, g, guard.HealthCheck, func(ctx context.Context) (uint64, error) {
				return prober.Probe(ctx, chainID)
			}, map[string]string{"chain_id": chainID, "task_id": task.ID})
			if err != nil {
				errs = append(errs, fmt.Errorf("chain %s: %w", chainID, err))
				continue
			}

			logger.Debug(ctx, "chain healthy", "chain.id", chainID, "chain.height", height)
		}

		return errors.Join(errs...)
	})
}

// MetricsHandler logs processor and guard metrics through the
// MonitoringMetrics path.
func MetricsHandler(g *guard.Guard, p Processor) scheduler.Handler {
	return scheduler.HandlerFunc(func(ctx context.Context, task scheduler.ScheduledTask) error {
		return g.Do(ctx, guard.MonitoringMetrics, func(ctx context.Context) error {
			status := p.QueueStatus()
			logger.Info(ctx, "processor metrics",
				"queue.size", status.QueueSize,
				"queue.processing", status.ProcessingCount,
				"queue.capacity", status.Capacity,
				"transactions.processed", status.Metrics.TotalProcessed,
				"transactions.successful", status.Metrics.Successful,
				"transactions.failed", status.Metrics.Failed,
				"transactions.retried", status.Metrics.Retried,
				"transactions.avg_processing_ms", status.Metrics.AverageProcessingTimeMs,
			)

			for path, m := range g.Metrics() {
				breaker := g.Breaker(path)
				logger.Info(ctx, "guard path metrics",
					"guard.path", path,
					"guard.operations", m.TotalOperations,
					"guard.failed", m.Failed,
					"guard.rejected", m.Rejected,
					"guard.avg_response_ms", m.AverageResponseTimeMs,
					"guard.breaker", breaker.Status,
				)
			}
			return nil
		}, map[string]string{"task_id": task.ID})
	})
}

// CleanupHandler resolves error records older than retention.
func CleanupHandler(g *guard.Guard, retention time.Duration, now func() time.Time) scheduler.Handler {
	if now == nil {
		now = time.Now
	}

	return scheduler.HandlerFunc(func(ctx context.Context, task scheduler.ScheduledTask) error {
		cutoff := now().Add(-retention)

		resolved := 0
		for _, record := range g.AllErrors() {
			if record.Resolved || record.Timestamp.After(cutoff) {
				continue
			}
			if err := g.ResolveError(record.ID); err != nil && !errors.Is(err, guard.ErrErrorNotFound) {
				return err
			}
			resolved++
		}

		if resolved > 0 {
			logger.Info(ctx, "stale errors resolved", "errors.resolved", resolved)
		}
		return nil
	})
}

// BackupHandler stores a Snapshot through the BackupOperation path.
func BackupHandler(g *guard.Guard, p Processor, sink SnapshotSink, now func() time.Time) scheduler.Handler {
	if now == nil {
		now = time.Now
	}

	return scheduler.HandlerFunc(func(ctx context.Context, task scheduler.ScheduledTask) error {
		snapshot := Snapshot{
			TakenAt: now(),
			Queue:   p.QueueStatus(),
			Failed:  p.FailedTransactions(),
			Errors:  g.RecentErrors(DefaultBackupErrorLimit),
		}

		err := g.Do(ctx, guard.BackupOperation, func(ctx context.Context) error {
			return sink.SaveSnapshot(ctx, snapshot)
		}, map[string]string{"task_id": task.ID})
		if err != nil {
			return err
		}

		logger.Info(ctx, "backup stored",
			"backup.failed_transactions", len(snapshot.Failed),
			"backup.errors", len(snapshot.Errors),
		)
		return nil
	})
}
