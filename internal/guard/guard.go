// Package guard protects named critical paths with a per-attempt timeout, a
// fixed-delay retry policy and a three state circuit breaker.
//
// Every failure is classified into an ErrorRecord, appended to a bounded ring
// buffer, reflected in the per-path metrics and returned to the caller. Locks
// are only held while reading or updating guard state, never while a guarded
// operation runs or while waiting between retries.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/pkg/types"

	"github.com/google/uuid"
)

// DefaultErrorCapacity is the number of error records kept in memory.
const DefaultErrorCapacity = 10000

// alertTimeout bounds a single notifier call.
const alertTimeout = 10 * time.Second

// Notifier receives alerts for Fatal and Critical error records.
type Notifier interface {
	Alert(ctx context.Context, record ErrorRecord) error
}

// nopNotifier discards alerts.
type nopNotifier struct{}

func (nopNotifier) Alert(context.Context, ErrorRecord) error { return nil }

// PathMetrics are the counters of a single path.
type PathMetrics struct {
	TotalOperations       int64     `json:"total_operations"`
	Successful            int64     `json:"successful"`
	Failed                int64     `json:"failed"`
	Rejected              int64     `json:"rejected"`
	Retries               int64     `json:"retries"`
	AverageResponseTimeMs float64   `json:"average_response_time_ms"`
	LastOperation         time.Time `json:"last_operation"`
}

// Guard is the CriticalPathGuard. Create it with New.
type Guard struct {
	mu       sync.Mutex
	configs  map[CriticalPath]PathConfig
	breakers map[CriticalPath]*breaker
	metrics  types.DefaultMap[CriticalPath, *PathMetrics]

	errMu  sync.Mutex
	errors *types.Ring[*ErrorRecord]

	notifier    Notifier
	instruments *instruments
	now         func() time.Time
}

type config struct {
	configs       map[CriticalPath]PathConfig
	notifier      Notifier
	errorCapacity int
	now           func() time.Time
}

// Option configures a Guard.
type Option func(*config)

// WithPathConfig overrides the configuration of path.
func WithPathConfig(path CriticalPath, cfg PathConfig) Option {
	return func(c *config) {
		c.configs[path] = cfg
	}
}

// WithNotifier sets the sink receiving Fatal and Critical alerts.
func WithNotifier(n Notifier) Option {
	return func(c *config) {
		c.notifier = n
	}
}

// WithErrorCapacity sets how many error records are retained.
// Default: DefaultErrorCapacity.
func WithErrorCapacity(n int) Option {
	return func(c *config) {
		c.errorCapacity = n
	}
}

// WithClock overrides the time source used for breaker cool-downs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a Guard. Paths without an explicit configuration use DefaultPathConfig.
func New(opts ...Option) *Guard {
	cfg := config{
		configs:       make(map[CriticalPath]PathConfig),
		notifier:      nopNotifier{},
		errorCapacity: DefaultErrorCapacity,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Guard{
		configs:  cfg.configs,
		breakers: make(map[CriticalPath]*breaker),
		metrics: types.NewDefaultMap[CriticalPath](func() *PathMetrics {
			return new(PathMetrics)
		}),
		errors:      types.NewRing[*ErrorRecord](cfg.errorCapacity),
		notifier:    cfg.notifier,
		instruments: newInstruments(),
		now:         cfg.now,
	}
}

// configLocked returns the configuration of path, materializing the default on first use.
func (g *Guard) configLocked(path CriticalPath) PathConfig {
	cfg, ok := g.configs[path]
	if !ok {
		cfg = DefaultPathConfig(path)
		g.configs[path] = cfg
	}
	return cfg
}

// breakerLocked returns the breaker of path, creating it on first use.
func (g *Guard) breakerLocked(path CriticalPath) *breaker {
	b, ok := g.breakers[path]
	if !ok {
		b = newBreaker()
		g.breakers[path] = b
	}
	return b
}

// PathConfig returns the configuration in effect for path.
func (g *Guard) PathConfig(path CriticalPath) PathConfig {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.configLocked(path)
}

// SetPathConfig replaces the configuration of path. The breaker state is kept.
func (g *Guard) SetPathConfig(path CriticalPath, cfg PathConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.configs[path] = cfg
}

// IsOpen reports whether calls on path are currently short-circuited.
func (g *Guard) IsOpen(path CriticalPath) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.breakerLocked(path).isOpen(g.now(), g.configLocked(path))
}

// Reset forces the breaker of path back to Closed and clears its counters.
func (g *Guard) Reset(path CriticalPath) {
	g.mu.Lock()
	g.breakerLocked(path).reset()
	g.mu.Unlock()

	logger.Info(context.Background(), "circuit breaker reset", "guard.path", path)
}

// Breaker returns a copy of the breaker state of path.
func (g *Guard) Breaker(path CriticalPath) BreakerState {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.breakerLocked(path).state
}

// PathMetrics returns a copy of the metrics of path.
func (g *Guard) PathMetrics(path CriticalPath) PathMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	if m, ok := g.metrics.Lookup(path); ok {
		return *m
	}
	return PathMetrics{}
}

// Metrics returns a copy of the metrics of every path used so far.
func (g *Guard) Metrics() map[CriticalPath]PathMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[CriticalPath]PathMetrics, g.metrics.Len())
	for path, m := range g.metrics.All() {
		out[path] = *m
	}
	return out
}

// observeLocked folds a terminal outcome into the metrics of path.
func (g *Guard) observeLocked(path CriticalPath, elapsed time.Duration, ok bool, retries int) {
	m := g.metrics.Get(path)
	m.TotalOperations++
	m.Retries += int64(retries)
	if ok {
		m.Successful++
	} else {
		m.Failed++
	}

	ms := float64(elapsed) / float64(time.Millisecond)
	m.AverageResponseTimeMs += (ms - m.AverageResponseTimeMs) / float64(m.TotalOperations)
	m.LastOperation = g.now()
}

// RecordError appends record to the error ring. ID and Timestamp are filled when empty.
func (g *Guard) RecordError(record ErrorRecord) ErrorRecord {
	if record.ID == "" {
		record.ID = uuid.Must(uuid.NewV7()).String()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = g.now()
	}

	stored := record
	g.errMu.Lock()
	g.errors.Push(&stored)
	g.errMu.Unlock()

	return record
}

// AllErrors returns the retained error records from oldest to newest.
func (g *Guard) AllErrors() []ErrorRecord {
	g.errMu.Lock()
	defer g.errMu.Unlock()

	records := g.errors.Slice()
	out := make([]ErrorRecord, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out
}

// RecentErrors returns up to limit error records, newest first.
func (g *Guard) RecentErrors(limit int) []ErrorRecord {
	return g.recentErrors(limit, nil)
}

// RecentErrorsByPath returns up to limit error records of path, newest first.
func (g *Guard) RecentErrorsByPath(path CriticalPath, limit int) []ErrorRecord {
	return g.recentErrors(limit, func(r *ErrorRecord) bool {
		return r.Path == path
	})
}

func (g *Guard) recentErrors(limit int, keep func(*ErrorRecord) bool) []ErrorRecord {
	g.errMu.Lock()
	defer g.errMu.Unlock()

	records := g.errors.Recent(limit, keep)
	out := make([]ErrorRecord, len(records))
	for i, r := range records {
		out[i] = *r
	}
	return out
}

// ResolveError marks the record with the given id as resolved.
func (g *Guard) ResolveError(id string) error {
	g.errMu.Lock()
	defer g.errMu.Unlock()

	for i := range g.errors.Len() {
		r := g.errors.At(i)
		if r.ID != id {
			continue
		}
		if !r.Resolved {
			now := g.now()
			r.Resolved = true
			r.ResolutionTime = &now
		}
		return nil
	}

	return fmt.Errorf("%w: %s", ErrErrorNotFound, id)
}

// notify logs record at a level matching its severity and dispatches alerts
// for Fatal records, and for Critical ones when the path asks for it. Alerts
// run on their own goroutine so the caller never waits on the notifier.
func (g *Guard) notify(ctx context.Context, record ErrorRecord, cfg PathConfig) {
	ctx = logger.Derive(ctx,
		"guard.path", record.Path,
		"error.id", record.ID,
		"error.type", record.Type,
		"error.severity", record.Severity.String(),
		"error.retry_count", record.RetryCount,
	)

	switch record.Severity {
	case SeverityFatal, SeverityCritical:
		logger.Error(ctx, "critical path failure", "error", record.Message)
	case SeverityHigh:
		logger.Error(ctx, "guarded operation failed", "error", record.Message)
	case SeverityMedium:
		logger.Warn(ctx, "guarded operation failed", "error", record.Message)
	default:
		logger.Debug(ctx, "guarded operation failed", "error", record.Message)
	}

	alert := record.Severity == SeverityFatal || (record.Severity == SeverityCritical && cfg.AlertOnFailure)
	if !alert {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
		defer cancel()

		if err := g.notifier.Alert(ctx, record); err != nil {
			logger.Warn(ctx, "failed to dispatch alert", "error", err)
		}
	}()
}
