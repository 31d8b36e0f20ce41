// Package txproc accepts transactions for broadcast and runs the worker pool
// that drains the transaction queue.
//
// Each worker pops the most urgent transaction, broadcasts it through the
// guard's BlockchainTransaction path and either records a terminal result or
// puts the transaction back on the queue after its retry delay.
package txproc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/gabapcia/txrelay/internal/guard"
	"github.com/gabapcia/txrelay/internal/payload"
	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/pkg/x/chflow"
	"github.com/gabapcia/txrelay/internal/txqueue"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQueueCapacity        = 10000
	DefaultMaxConcurrentWorkers = 4
	DefaultMaxRetries           = 3
	DefaultRetryDelay           = 5 * time.Second
	DefaultIdlePollInterval     = time.Second
)

// MetadataPayloadType is the metadata key holding the decoded payment type
// of transactions submitted without an explicit chain id.
const MetadataPayloadType = "payload.type"

var (
	ErrServiceAlreadyStarted = errors.New("service already started")
	ErrEmptyPayload          = errors.New("empty transaction payload")
	ErrMissingChainID        = errors.New("chain id is required for payloads that are not payment records")
	ErrTransactionNotFound   = errors.New("transaction not found")
)

// QueueStatus is a point-in-time view of the processor.
type QueueStatus struct {
	txqueue.Snapshot
	Running bool               `json:"running"`
	Workers int                `json:"workers"`
	Metrics TransactionMetrics `json:"metrics"`
}

type Service interface {
	Submit(ctx context.Context, payload []byte, priority txqueue.Priority, opts ...SubmitOption) (string, error)
	Status(ctx context.Context, id string) (txqueue.Status, error)
	QueueStatus() QueueStatus
	Metrics() TransactionMetrics
	FailedTransactions() []txqueue.TransactionResult
	CompletedTransactions(limit int) []txqueue.TransactionResult
	ClearQueue() int
	Start(ctx context.Context) error
	Stop()
}

type service struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc func()

	queue       *txqueue.Queue
	guard       *guard.Guard
	broadcaster Broadcaster
	store       ResultStore
	metrics     *metrics

	workers          int
	maxRetries       int
	retryDelay       time.Duration
	idlePollInterval time.Duration
	now              func() time.Time
}

var _ Service = (*service)(nil)

type config struct {
	queueCapacity    int
	workers          int
	maxRetries       int
	retryDelay       time.Duration
	idlePollInterval time.Duration
	store            ResultStore
	now              func() time.Time
}

type Option func(*config)

// WithQueueCapacity bounds the number of pending transactions.
// Default: DefaultQueueCapacity.
func WithQueueCapacity(n int) Option {
	return func(c *config) {
		c.queueCapacity = n
	}
}

// WithMaxConcurrentWorkers sets how many worker loops Start spawns.
// Default: DefaultMaxConcurrentWorkers.
func WithMaxConcurrentWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithDefaultMaxRetries sets the retry budget of transactions submitted
// without WithMaxRetries. Default: DefaultMaxRetries.
func WithDefaultMaxRetries(n int) Option {
	return func(c *config) {
		c.maxRetries = n
	}
}

// WithDefaultRetryDelay sets the retry delay of transactions submitted
// without WithRetryDelay. Default: DefaultRetryDelay.
func WithDefaultRetryDelay(d time.Duration) Option {
	return func(c *config) {
		c.retryDelay = d
	}
}

// WithIdlePollInterval bounds how long an idle worker waits for a wake-up
// signal before checking the queue again. Default: DefaultIdlePollInterval.
func WithIdlePollInterval(d time.Duration) Option {
	return func(c *config) {
		c.idlePollInterval = d
	}
}

// WithResultStore persists terminal results and serves Status lookups for
// results evicted from memory.
func WithResultStore(store ResultStore) Option {
	return func(c *config) {
		c.store = store
	}
}

// WithClock overrides the time source used for processing times.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a stopped processor that broadcasts through b, protected by g.
func New(b Broadcaster, g *guard.Guard, opts ...Option) *service {
	cfg := config{
		queueCapacity:    DefaultQueueCapacity,
		workers:          DefaultMaxConcurrentWorkers,
		maxRetries:       DefaultMaxRetries,
		retryDelay:       DefaultRetryDelay,
		idlePollInterval: DefaultIdlePollInterval,
		store:            nopResultStore{},
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		queue:            txqueue.New(cfg.queueCapacity, txqueue.WithClock(cfg.now)),
		guard:            g,
		broadcaster:      b,
		store:            cfg.store,
		metrics:          newMetrics(),
		workers:          max(cfg.workers, 1),
		maxRetries:       max(cfg.maxRetries, 0),
		retryDelay:       max(cfg.retryDelay, 0),
		idlePollInterval: cfg.idlePollInterval,
		now:              cfg.now,
	}
}

// Submit queues payload for broadcast and returns the transaction id.
//
// The payload is handed to the Broadcaster unchanged. Payment records
// submitted without WithChainID therefore need a Broadcaster that
// understands them; the EVM broadcaster only accepts signed transactions.
//
// Without WithChainID the payload must be a payment record accepted by
// payload.Decode; its chain id is used and its type is stored under
// MetadataPayloadType. ErrQueueFull is returned as is when the queue is at
// capacity.
func (s *service) Submit(ctx context.Context, data []byte, priority txqueue.Priority, opts ...SubmitOption) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyPayload
	}
	if priority < txqueue.PriorityLow || priority > txqueue.PriorityCritical {
		return "", fmt.Errorf("%w: %d", txqueue.ErrInvalidPriority, priority)
	}

	options := submitOptions{
		maxRetries: s.maxRetries,
		retryDelay: s.retryDelay,
	}
	for _, opt := range opts {
		opt(&options)
	}

	metadata := maps.Clone(options.metadata)
	if options.chainID == "" {
		p, err := payload.Decode(data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMissingChainID, err)
		}

		options.chainID = p.ChainID
		if metadata == nil {
			metadata = make(map[string]string, 1)
		}
		metadata[MetadataPayloadType] = string(p.Type)
	}

	tx := txqueue.QueuedTransaction{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Payload:    data,
		ChainID:    options.chainID,
		DeviceID:   options.deviceID,
		Priority:   priority,
		MaxRetries: max(options.maxRetries, 0),
		RetryDelay: max(options.retryDelay, 0),
		Metadata:   metadata,
	}

	if err := s.queue.Add(tx); err != nil {
		return "", err
	}

	logger.Debug(ctx, "transaction queued",
		"transaction.id", tx.ID,
		"transaction.chain_id", tx.ChainID,
		"transaction.priority", tx.Priority,
	)
	return tx.ID, nil
}

// Status reports where id is. Results no longer held in memory are looked up
// in the ResultStore.
func (s *service) Status(ctx context.Context, id string) (txqueue.Status, error) {
	if status, ok := s.queue.Status(id); ok {
		return status, nil
	}

	result, err := s.store.LoadResult(ctx, id)
	if errors.Is(err, ErrResultNotFound) {
		return txqueue.Status{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
	}
	if err != nil {
		return txqueue.Status{}, err
	}

	return txqueue.Status{State: txqueue.StateCompleted, Result: &result}, nil
}

func (s *service) QueueStatus() QueueStatus {
	s.mu.Lock()
	running := s.isStarted
	s.mu.Unlock()

	return QueueStatus{
		Snapshot: s.queue.Snapshot(),
		Running:  running,
		Workers:  s.workers,
		Metrics:  s.metrics.snapshot(),
	}
}

func (s *service) Metrics() TransactionMetrics {
	return s.metrics.snapshot()
}

// FailedTransactions returns the retained failed results, most recent first.
func (s *service) FailedTransactions() []txqueue.TransactionResult {
	return s.queue.Failed()
}

// CompletedTransactions returns up to limit terminal results, most recent first.
func (s *service) CompletedTransactions(limit int) []txqueue.TransactionResult {
	return s.queue.Completed(limit)
}

// ClearQueue drops pending and in-flight transactions and returns how many
// were removed. Broadcasts already running are not interrupted.
func (s *service) ClearQueue() int {
	return s.queue.Clear()
}

// Start spawns the worker loops. It returns ErrServiceAlreadyStarted when
// called twice without Stop.
func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	for i := range s.workers {
		g.Go(func() error {
			return s.work(logger.Derive(ctx, "worker.id", i))
		})
	}

	s.closeFunc = func() {
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "transaction worker stopped with error", "error", err)
		}
	}
	s.isStarted = true

	logger.Info(ctx, "transaction processor started", "processor.workers", s.workers)
	return nil
}

// Stop cancels the worker loops and waits for them. A broadcast in progress
// runs to completion; a worker waiting out a retry delay requeues right away.
func (s *service) Stop() {
	s.mu.Lock()
	closeFunc := s.closeFunc
	s.closeFunc = nil
	s.isStarted = false
	s.mu.Unlock()

	if closeFunc != nil {
		closeFunc()
	}
}

// work drains the queue until ctx is done.
func (s *service) work(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		tx, ok := s.queue.NextReady()
		if !ok {
			chflow.ReceiveTimeout(ctx, s.queue.Ready(), s.idlePollInterval)
			continue
		}

		s.process(ctx, tx)
	}
}

// process broadcasts one popped transaction and settles its outcome.
func (s *service) process(ctx context.Context, tx txqueue.QueuedTransaction) {
	ctx = logger.Derive(ctx,
		"transaction.id", tx.ID,
		"transaction.chain_id", tx.ChainID,
		"transaction.retry_count", tx.RetryCount,
	)

	if err := s.queue.MarkProcessing(tx.ID); err != nil {
		logger.Warn(ctx, "transaction dropped before processing", "error", err)
		return
	}

	meta := map[string]string{
		guard.ContextTransactionID: tx.ID,
		"chain_id":                 tx.ChainID,
	}
	if tx.DeviceID != "" {
		meta[guard.ContextDeviceID] = tx.DeviceID
	}

	start := s.now()
	receipt, err := guard.Execute(context.WithoutCancel(ctx), s.guard, guard.BlockchainTransaction, func(ctx context.Context) (Receipt, error) {
		return s.broadcaster.Broadcast(ctx, tx.Payload, tx.ChainID)
	}, meta)
	elapsed := s.now().Sub(start)

	if err != nil && tx.RetryCount < tx.MaxRetries && !isFatal(err) {
		s.retry(ctx, tx, err)
		return
	}

	result := txqueue.TransactionResult{
		TransactionID:    tx.ID,
		Success:          err == nil,
		ProcessingTimeMs: elapsed.Milliseconds(),
		RetryCount:       tx.RetryCount,
		ChainID:          tx.ChainID,
		DeviceID:         tx.DeviceID,
		Timestamp:        s.now(),
	}
	if err == nil {
		result.TxHash = receipt.TxHash
		result.GasUsed = receipt.GasUsed
		result.BlockNumber = receipt.BlockNumber
	} else {
		result.ErrorMessage = err.Error()
	}

	s.complete(ctx, result)
}

// isFatal reports whether the guard classified err as a panic, which is never retried.
func isFatal(err error) bool {
	var rec *guard.ErrorRecord
	return errors.As(err, &rec) && rec.Type == guard.ErrorSystemPanic
}

// retry puts tx back on the queue with one more retry consumed.
func (s *service) retry(ctx context.Context, tx txqueue.QueuedTransaction, cause error) {
	tx.RetryCount++
	s.metrics.retried(ctx, tx.ChainID)

	logger.Warn(ctx, "transaction broadcast failed, retrying",
		"transaction.next_retry", tx.RetryCount,
		"transaction.max_retries", tx.MaxRetries,
		"transaction.retry_delay", tx.RetryDelay,
		"error", cause,
	)

	chflow.Sleep(ctx, tx.RetryDelay)

	if err := s.queue.Requeue(tx); err != nil {
		logger.Warn(ctx, "transaction not requeued", "error", err)
	}
}

// complete records a terminal result once and persists it.
func (s *service) complete(ctx context.Context, result txqueue.TransactionResult) {
	if err := s.queue.MarkCompleted(result.TransactionID, result); err != nil {
		logger.Error(ctx, "transaction result discarded", "error", err)
		return
	}

	s.metrics.terminal(ctx, result.ChainID, result.Success, result.ProcessingTimeMs)

	if result.Success {
		logger.Info(ctx, "transaction broadcast", "transaction.hash", result.TxHash)
	} else {
		logger.Error(ctx, "transaction failed", "error", result.ErrorMessage)
	}

	storeCtx := context.WithoutCancel(ctx)
	err := s.guard.Do(storeCtx, guard.DatabaseOperation, func(ctx context.Context) error {
		return s.store.SaveResult(ctx, result)
	}, map[string]string{guard.ContextTransactionID: result.TransactionID})
	if err != nil {
		logger.Error(ctx, "transaction result not persisted", "error", err)
	}
}
