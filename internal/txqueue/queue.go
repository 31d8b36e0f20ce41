// Package txqueue implements the bounded, priority-ordered holding area for
// transactions waiting to be broadcast.
//
// A transaction moves through three sets: pending (a max-heap served by
// priority, then enqueue time), in-flight (popped and owned by a worker) and
// completed (a bounded ring of terminal results, oldest evicted first). An id
// is unique across the three sets at any moment.
//
// Every operation takes one short exclusive lock and performs no I/O while
// holding it.
package txqueue

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gabapcia/txrelay/internal/pkg/types"
)

// DefaultCompletedCapacity is the number of terminal results kept in memory.
const DefaultCompletedCapacity = 1000

var (
	// ErrQueueFull is returned by Add when the pending set reached its capacity.
	ErrQueueFull = errors.New("transaction queue is full")

	// ErrDuplicateTransaction is returned by Add when the id is already queued, in flight or completed.
	ErrDuplicateTransaction = errors.New("duplicate transaction id")

	// ErrNotInFlight is returned when an operation expects the transaction to be owned by a worker.
	ErrNotInFlight = errors.New("transaction is not in flight")

	// ErrAlreadyCompleted is returned by MarkCompleted on a second terminal write.
	ErrAlreadyCompleted = errors.New("transaction already completed")

	// ErrInvalidPriority is returned by ParsePriority for unknown names.
	ErrInvalidPriority = errors.New("invalid priority")
)

// inFlight tracks a transaction popped by NextReady.
type inFlight struct {
	tx        QueuedTransaction
	startedAt time.Time // zero until MarkProcessing
}

// Queue is the TransactionQueue. Create it with New; the zero value is not usable.
type Queue struct {
	mu sync.Mutex

	capacity int
	seq      uint64

	pending      txHeap
	pendingIndex types.Set[string]
	inFlight     map[string]*inFlight
	completed    *types.Ring[TransactionResult]
	completedIdx map[string]TransactionResult

	ready chan struct{}
	now   func() time.Time
}

type config struct {
	completedCapacity int
	now               func() time.Time
}

// Option configures a Queue.
type Option func(*config)

// WithCompletedCapacity sets how many terminal results are retained.
// Default: DefaultCompletedCapacity.
func WithCompletedCapacity(n int) Option {
	return func(c *config) {
		c.completedCapacity = n
	}
}

// WithClock overrides the time source used to stamp QueuedAt.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a Queue that admits at most capacity pending transactions.
// A non-positive capacity is treated as 1.
func New(capacity int, opts ...Option) *Queue {
	cfg := config{
		completedCapacity: DefaultCompletedCapacity,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Queue{
		capacity:     max(capacity, 1),
		pendingIndex: types.NewSet[string](),
		inFlight:     make(map[string]*inFlight),
		completed:    types.NewRing[TransactionResult](cfg.completedCapacity),
		completedIdx: make(map[string]TransactionResult),
		ready:        make(chan struct{}, 1),
		now:          cfg.now,
	}
}

// Capacity returns the maximum number of pending transactions.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Ready returns a channel that receives a value whenever work may be available.
// Signals are coalesced, so a receiver must drain the queue with NextReady
// until it reports no item.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// signal performs a non-blocking send on the ready channel.
func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// knownLocked reports whether id is present in any of the three sets.
func (q *Queue) knownLocked(id string) bool {
	if q.pendingIndex.Has(id) {
		return true
	}
	if _, ok := q.inFlight[id]; ok {
		return true
	}
	_, ok := q.completedIdx[id]
	return ok
}

func (q *Queue) pushLocked(tx QueuedTransaction) {
	q.seq++
	heap.Push(&q.pending, &entry{tx: tx, seq: q.seq})
	q.pendingIndex.Add(tx.ID)
}

// Add admits tx into the pending set. QueuedAt is stamped when zero.
//
// It returns ErrQueueFull when the pending set is at capacity and
// ErrDuplicateTransaction when the id is already known. The queue is left
// unchanged on error.
func (q *Queue) Add(tx QueuedTransaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Len() >= q.capacity {
		return fmt.Errorf("%w: capacity %d", ErrQueueFull, q.capacity)
	}

	if q.knownLocked(tx.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}

	if tx.QueuedAt.IsZero() {
		tx.QueuedAt = q.now()
	}

	q.pushLocked(tx)
	q.signal()
	return nil
}

// NextReady pops the highest-priority, longest-waiting transaction and
// reserves it as in flight. It returns false when nothing is pending.
func (q *Queue) NextReady() (QueuedTransaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pending.Len() == 0 {
		return QueuedTransaction{}, false
	}

	e := heap.Pop(&q.pending).(*entry)
	q.pendingIndex.Delete(e.tx.ID)
	q.inFlight[e.tx.ID] = &inFlight{tx: e.tx}

	// Hand the coalesced signal over to another waiting worker.
	if q.pending.Len() > 0 {
		q.signal()
	}

	return e.tx, true
}

// MarkProcessing records that a worker started working on the popped transaction id.
// It returns ErrNotInFlight when the reservation was dropped by Clear.
func (q *Queue) MarkProcessing(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	f, ok := q.inFlight[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInFlight, id)
	}

	f.startedAt = q.now()
	return nil
}

// Requeue moves an in-flight transaction back to the pending set with a fresh
// QueuedAt, so it does not overtake transactions of the same priority that
// have been waiting longer. The item was admitted before, so capacity is not
// checked again.
func (q *Queue) Requeue(tx QueuedTransaction) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.inFlight[tx.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotInFlight, tx.ID)
	}

	delete(q.inFlight, tx.ID)
	tx.QueuedAt = q.now()
	q.pushLocked(tx)
	q.signal()
	return nil
}

// MarkCompleted stores the terminal result of id and releases its in-flight
// reservation. A result is accepted even if Clear dropped the reservation,
// since the broadcast already happened. A second terminal write for the same
// id returns ErrAlreadyCompleted.
func (q *Queue) MarkCompleted(id string, result TransactionResult) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.completedIdx[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}

	delete(q.inFlight, id)

	result.TransactionID = id
	if old, evicted := q.completed.Push(result); evicted {
		delete(q.completedIdx, old.TransactionID)
	}
	q.completedIdx[id] = result
	return nil
}

// Status reports the current state of id. It returns false for unknown ids,
// including results already evicted from the completed ring.
func (q *Queue) Status(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pendingIndex.Has(id) {
		return Status{State: StateQueued}, true
	}
	if _, ok := q.inFlight[id]; ok {
		return Status{State: StateProcessing}, true
	}
	if result, ok := q.completedIdx[id]; ok {
		return Status{State: StateCompleted, Result: &result}, true
	}
	return Status{}, false
}

// Snapshot returns a consistent view of the queue counters.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	byPriority := make(map[Priority]int)
	for _, e := range q.pending {
		byPriority[e.tx.Priority]++
	}

	failed := 0
	for _, r := range q.completedIdx {
		if !r.Success {
			failed++
		}
	}

	return Snapshot{
		QueueSize:       q.pending.Len(),
		ProcessingCount: len(q.inFlight),
		CompletedCount:  q.completed.Len(),
		FailedCount:     failed,
		Capacity:        q.capacity,
		ByPriority:      byPriority,
	}
}

// Completed returns up to limit terminal results, most recent first.
// A non-positive limit returns every retained result.
func (q *Queue) Completed(limit int) []TransactionResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.completed.Recent(limit, nil)
}

// Failed returns the retained unsuccessful results, most recent first.
func (q *Queue) Failed() []TransactionResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.completed.Recent(0, func(r TransactionResult) bool {
		return !r.Success
	})
}

// Clear drops every pending and in-flight transaction and returns how many
// were removed. Completed results are kept. Workers already broadcasting a
// cleared transaction are not interrupted.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.pending.Len() + len(q.inFlight)

	q.pending = nil
	q.pendingIndex = types.NewSet[string]()
	q.inFlight = make(map[string]*inFlight)
	return n
}
