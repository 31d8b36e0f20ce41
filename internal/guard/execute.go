package guard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"runtime/debug"
	"time"

	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/pkg/resilience/retry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation is a unit of work protected by the guard. It should honor ctx,
// which carries the per-attempt timeout.
type Operation[T any] func(ctx context.Context) (T, error)

type outcome[T any] struct {
	val T
	err error
}

// call runs op once under timeout. A panic inside op is recovered and returned
// as a *panicError so it never takes the calling goroutine down.
func call[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	var zero T

	parent := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: &panicError{value: r, stack: debug.Stack()}}
			}
		}()

		val, err := op(ctx)
		done <- outcome[T]{val: val, err: err}
	}()

	select {
	case o := <-done:
		return o.val, o.err
	case <-ctx.Done():
		if parent.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}

// Execute runs op under the protection configured for path.
//
// Non-critical paths run op once and record any failure. Critical paths are
// rejected right away while the breaker is open, otherwise op is attempted up
// to 1+MaxRetries times with RetryDelay between attempts. Panics and, on
// FailFast paths, authentication, security and validation failures are not
// retried. A session that ends in failure counts once toward the breaker.
//
// The returned error is always an *ErrorRecord.
func Execute[T any](ctx context.Context, g *Guard, path CriticalPath, op Operation[T], meta map[string]string) (T, error) {
	var zero T

	ctx, span := tracer.Start(ctx, "guard."+string(path), trace.WithAttributes(
		attribute.String("guard.path", string(path)),
	))
	defer span.End()

	start := g.now()

	g.mu.Lock()
	cfg := g.configLocked(path)
	admitted := !cfg.IsCritical || g.breakerLocked(path).admit(start, cfg)
	g.mu.Unlock()

	if !admitted {
		err := g.reject(ctx, path, cfg, meta)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}

	var (
		val      T
		err      error
		attempts int
	)

	if !cfg.IsCritical {
		attempts = 1
		val, err = call(ctx, cfg.Timeout, op)
	} else {
		r := retry.New(
			retry.WithAttempts(uint(max(cfg.MaxRetries, 0))+1),
			retry.WithDelay(cfg.RetryDelay),
			retry.WithMaxDelay(cfg.RetryDelay),
			retry.WithFixedDelay(),
			retry.WithRetryIf(func(err error) bool {
				return ctx.Err() == nil && !noRetry(classify(err, true), cfg)
			}),
		)

		err = r.Execute(ctx, func() error {
			attempts++

			v, err := call(ctx, cfg.Timeout, op)
			if err != nil {
				return err
			}

			val = v
			return nil
		})
	}

	retries := max(attempts-1, 0)
	elapsed := g.now().Sub(start)
	span.SetAttributes(attribute.Int("guard.retries", retries))

	if err == nil {
		g.succeed(ctx, path, cfg, elapsed, retries)
		return val, nil
	}

	err = g.fail(ctx, path, cfg, err, elapsed, retries, meta)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return zero, err
}

// ExecuteWithFallback runs primary like Execute. When primary fails, fallback
// is invoked once, without retries, and its result replaces the failure.
// fallback never runs when primary succeeds.
func ExecuteWithFallback[T any](ctx context.Context, g *Guard, path CriticalPath, primary, fallback Operation[T], meta map[string]string) (T, error) {
	val, err := Execute(ctx, g, path, primary, meta)
	if err == nil {
		return val, nil
	}

	logger.Warn(ctx, "primary operation failed, using fallback",
		"guard.path", path,
		"error", err,
	)

	cfg := g.PathConfig(path)
	val, err = call(ctx, cfg.Timeout, fallback)
	if err != nil {
		var zero T
		record := g.RecordError(g.newRecord(path, cfg, fmt.Errorf("fallback: %w", err), 0, meta))
		g.notify(ctx, record, cfg)
		return zero, &record
	}

	return val, nil
}

// Do is Execute for operations without a result.
func (g *Guard) Do(ctx context.Context, path CriticalPath, op func(ctx context.Context) error, meta map[string]string) error {
	_, err := Execute(ctx, g, path, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, meta)
	return err
}

// newRecord classifies cause into an unrecorded ErrorRecord.
func (g *Guard) newRecord(path CriticalPath, cfg PathConfig, cause error, retries int, meta map[string]string) ErrorRecord {
	errType := classify(cause, cfg.IsCritical)

	record := ErrorRecord{
		Path:          path,
		Type:          errType,
		Message:       cause.Error(),
		Context:       maps.Clone(meta),
		Severity:      severityOf(errType, cfg.IsCritical),
		RetryCount:    retries,
		MaxRetries:    cfg.MaxRetries,
		CorrelationID: meta[ContextCorrelationID],
		TransactionID: meta[ContextTransactionID],
		DeviceID:      meta[ContextDeviceID],
		cause:         cause,
	}

	var p *panicError
	if errors.As(cause, &p) {
		if record.Context == nil {
			record.Context = make(map[string]string)
		}
		record.Context["panic.stack"] = string(p.stack)
	}

	return record
}

func (g *Guard) succeed(ctx context.Context, path CriticalPath, cfg PathConfig, elapsed time.Duration, retries int) {
	g.mu.Lock()
	var recovered bool
	if cfg.IsCritical {
		b := g.breakerLocked(path)
		recovered = b.state.Status == BreakerHalfOpen
		b.success(g.now())
	}
	g.observeLocked(path, elapsed, true, retries)
	g.mu.Unlock()

	g.instruments.record(ctx, path, "success", elapsed, retries)

	if recovered {
		logger.Info(ctx, "circuit breaker closed after successful trial", "guard.path", path)
	}
}

func (g *Guard) fail(ctx context.Context, path CriticalPath, cfg PathConfig, cause error, elapsed time.Duration, retries int, meta map[string]string) error {
	record := g.RecordError(g.newRecord(path, cfg, cause, retries, meta))

	g.mu.Lock()
	var opened bool
	if cfg.IsCritical {
		b := g.breakerLocked(path)
		if ctx.Err() != nil {
			// The caller gave up; the downstream did not necessarily fail.
			b.release()
		} else {
			opened = b.failure(g.now(), cfg)
		}
	}
	g.observeLocked(path, elapsed, false, retries)
	g.mu.Unlock()

	g.instruments.record(ctx, path, "failure", elapsed, retries)
	g.notify(ctx, record, cfg)

	if opened {
		g.instruments.breakerOpened(ctx, path)
		logger.Warn(ctx, "circuit breaker opened",
			"guard.path", path,
			"guard.cooldown", cfg.BreakerCooldown,
		)
	}

	return &record
}

func (g *Guard) reject(ctx context.Context, path CriticalPath, cfg PathConfig, meta map[string]string) error {
	record := g.RecordError(g.newRecord(path, cfg, fmt.Errorf("%w for path %s", ErrCircuitOpen, path), 0, meta))

	g.mu.Lock()
	m := g.metrics.Get(path)
	m.Rejected++
	m.LastOperation = g.now()
	g.mu.Unlock()

	g.instruments.record(ctx, path, "rejected", 0, 0)
	g.notify(ctx, record, cfg)
	return &record
}
