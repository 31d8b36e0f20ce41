package txqueue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a strictly increasing time on every call.
func fakeClock() func() time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Millisecond)
	}
}

func newTx(id string, p Priority) QueuedTransaction {
	return QueuedTransaction{
		ID:         id,
		Payload:    []byte("signed-" + id),
		ChainID:    "1",
		Priority:   p,
		MaxRetries: 3,
	}
}

func drain(t *testing.T, q *Queue) []string {
	t.Helper()

	var ids []string
	for {
		tx, ok := q.NextReady()
		if !ok {
			return ids
		}
		ids = append(ids, tx.ID)
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{
		"low":      PriorityLow,
		"Normal":   PriorityNormal,
		"":         PriorityNormal,
		" HIGH ":   PriorityHigh,
		"critical": PriorityCritical,
	} {
		t.Run(in, func(t *testing.T) {
			got, err := ParsePriority(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParsePriority("urgent")
		assert.ErrorIs(t, err, ErrInvalidPriority)
	})
}

func TestQueue_NextReady(t *testing.T) {
	t.Run("higher priority first regardless of insertion order", func(t *testing.T) {
		for _, order := range [][]Priority{{PriorityHigh, PriorityLow}, {PriorityLow, PriorityHigh}} {
			q := New(10, WithClock(fakeClock()))
			for i, p := range order {
				require.NoError(t, q.Add(newTx(fmt.Sprintf("tx-%d", i), p)))
			}

			tx, ok := q.NextReady()
			require.True(t, ok)
			assert.Equal(t, PriorityHigh, tx.Priority)
		}
	})

	t.Run("low high normal submission is served high normal low", func(t *testing.T) {
		q := New(10, WithClock(fakeClock()))
		require.NoError(t, q.Add(newTx("low", PriorityLow)))
		require.NoError(t, q.Add(newTx("high", PriorityHigh)))
		require.NoError(t, q.Add(newTx("normal", PriorityNormal)))

		assert.Equal(t, []string{"high", "normal", "low"}, drain(t, q))
	})

	t.Run("fifo within a priority tier", func(t *testing.T) {
		q := New(10, WithClock(fakeClock()))
		for i := range 5 {
			require.NoError(t, q.Add(newTx(fmt.Sprintf("tx-%d", i), PriorityNormal)))
		}

		assert.Equal(t, []string{"tx-0", "tx-1", "tx-2", "tx-3", "tx-4"}, drain(t, q))
	})

	t.Run("insertion order breaks equal timestamps", func(t *testing.T) {
		fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		q := New(10, WithClock(func() time.Time { return fixed }))
		for i := range 3 {
			require.NoError(t, q.Add(newTx(fmt.Sprintf("tx-%d", i), PriorityHigh)))
		}

		assert.Equal(t, []string{"tx-0", "tx-1", "tx-2"}, drain(t, q))
	})

	t.Run("empty queue", func(t *testing.T) {
		q := New(1)
		_, ok := q.NextReady()
		assert.False(t, ok)
	})

	t.Run("popped item is in flight", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))

		_, ok := q.NextReady()
		require.True(t, ok)

		status, ok := q.Status("a")
		require.True(t, ok)
		assert.Equal(t, StateProcessing, status.State)
	})
}

func TestQueue_Add(t *testing.T) {
	t.Run("rejects at capacity and leaves state unchanged", func(t *testing.T) {
		q := New(2)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))
		require.NoError(t, q.Add(newTx("b", PriorityLow)))

		before := q.Snapshot()
		err := q.Add(newTx("c", PriorityCritical))

		assert.ErrorIs(t, err, ErrQueueFull)
		assert.Equal(t, before, q.Snapshot())
		_, ok := q.Status("c")
		assert.False(t, ok)
	})

	t.Run("in-flight items do not count against capacity", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))
		_, ok := q.NextReady()
		require.True(t, ok)

		assert.NoError(t, q.Add(newTx("b", PriorityLow)))
	})

	t.Run("rejects duplicate ids in every set", func(t *testing.T) {
		q := New(10)
		require.NoError(t, q.Add(newTx("queued", PriorityLow)))
		assert.ErrorIs(t, q.Add(newTx("queued", PriorityLow)), ErrDuplicateTransaction)

		require.NoError(t, q.Add(newTx("flight", PriorityCritical)))
		tx, _ := q.NextReady()
		require.Equal(t, "flight", tx.ID)
		assert.ErrorIs(t, q.Add(newTx("flight", PriorityLow)), ErrDuplicateTransaction)

		require.NoError(t, q.MarkCompleted("flight", TransactionResult{Success: true}))
		assert.ErrorIs(t, q.Add(newTx("flight", PriorityLow)), ErrDuplicateTransaction)
	})

	t.Run("stamps queued at when missing", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		q := New(1, WithClock(func() time.Time { return now }))
		require.NoError(t, q.Add(newTx("a", PriorityLow)))

		tx, _ := q.NextReady()
		assert.Equal(t, now, tx.QueuedAt)
	})

	t.Run("signals readiness", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))

		select {
		case <-q.Ready():
		default:
			t.Fatal("expected a ready signal")
		}
	})
}

func TestQueue_Requeue(t *testing.T) {
	t.Run("retried item goes behind longer waiting peers", func(t *testing.T) {
		q := New(10, WithClock(fakeClock()))
		require.NoError(t, q.Add(newTx("first", PriorityNormal)))
		require.NoError(t, q.Add(newTx("second", PriorityNormal)))

		tx, _ := q.NextReady()
		require.Equal(t, "first", tx.ID)
		require.NoError(t, q.MarkProcessing(tx.ID))

		tx.RetryCount++
		require.NoError(t, q.Requeue(tx))

		assert.Equal(t, []string{"second", "first"}, drain(t, q))
	})

	t.Run("retried item still beats lower priorities", func(t *testing.T) {
		q := New(10, WithClock(fakeClock()))
		require.NoError(t, q.Add(newTx("high", PriorityHigh)))
		require.NoError(t, q.Add(newTx("low", PriorityLow)))

		tx, _ := q.NextReady()
		require.NoError(t, q.Requeue(tx))

		assert.Equal(t, []string{"high", "low"}, drain(t, q))
	})

	t.Run("ignores capacity", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))
		tx, _ := q.NextReady()
		require.NoError(t, q.Add(newTx("b", PriorityLow)))

		assert.NoError(t, q.Requeue(tx))
		assert.Equal(t, 2, q.Snapshot().QueueSize)
	})

	t.Run("fails after clear", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))
		tx, _ := q.NextReady()
		q.Clear()

		assert.ErrorIs(t, q.Requeue(tx), ErrNotInFlight)
		assert.ErrorIs(t, q.MarkProcessing(tx.ID), ErrNotInFlight)
	})
}

func TestQueue_MarkCompleted(t *testing.T) {
	t.Run("moves item to completed", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.Add(newTx("a", PriorityLow)))
		tx, _ := q.NextReady()
		require.NoError(t, q.MarkProcessing(tx.ID))

		require.NoError(t, q.MarkCompleted(tx.ID, TransactionResult{Success: true, TxHash: "0xabc"}))

		status, ok := q.Status("a")
		require.True(t, ok)
		assert.Equal(t, StateCompleted, status.State)
		require.NotNil(t, status.Result)
		assert.Equal(t, "0xabc", status.Result.TxHash)
		assert.Equal(t, "a", status.Result.TransactionID)
		assert.Zero(t, q.Snapshot().ProcessingCount)
	})

	t.Run("second terminal write fails", func(t *testing.T) {
		q := New(1)
		require.NoError(t, q.MarkCompleted("a", TransactionResult{Success: true}))

		err := q.MarkCompleted("a", TransactionResult{Success: false})
		assert.ErrorIs(t, err, ErrAlreadyCompleted)

		status, _ := q.Status("a")
		assert.True(t, status.Result.Success)
	})

	t.Run("evicts the oldest result", func(t *testing.T) {
		q := New(10, WithCompletedCapacity(2))
		require.NoError(t, q.MarkCompleted("a", TransactionResult{Success: true}))
		require.NoError(t, q.MarkCompleted("b", TransactionResult{Success: false}))
		require.NoError(t, q.MarkCompleted("c", TransactionResult{Success: true}))

		_, ok := q.Status("a")
		assert.False(t, ok)

		completed := q.Completed(0)
		require.Len(t, completed, 2)
		assert.Equal(t, "c", completed[0].TransactionID)
		assert.Equal(t, "b", completed[1].TransactionID)
	})
}

func TestQueue_Failed(t *testing.T) {
	q := New(10)
	require.NoError(t, q.MarkCompleted("ok", TransactionResult{Success: true}))
	require.NoError(t, q.MarkCompleted("bad-1", TransactionResult{Success: false, ErrorMessage: "boom"}))
	require.NoError(t, q.MarkCompleted("bad-2", TransactionResult{Success: false, ErrorMessage: "boom"}))

	failed := q.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "bad-2", failed[0].TransactionID)
	assert.Equal(t, "bad-1", failed[1].TransactionID)
	assert.Equal(t, 2, q.Snapshot().FailedCount)
}

func TestQueue_Clear(t *testing.T) {
	q := New(10)
	require.NoError(t, q.Add(newTx("pending", PriorityLow)))
	require.NoError(t, q.Add(newTx("flight", PriorityHigh)))
	_, _ = q.NextReady()
	require.NoError(t, q.MarkCompleted("done", TransactionResult{Success: true}))

	assert.Equal(t, 2, q.Clear())

	snapshot := q.Snapshot()
	assert.Zero(t, snapshot.QueueSize)
	assert.Zero(t, snapshot.ProcessingCount)
	assert.Equal(t, 1, snapshot.CompletedCount)

	_, ok := q.Status("pending")
	assert.False(t, ok)
	_, ok = q.Status("done")
	assert.True(t, ok)

	t.Run("cleared in-flight item can still complete", func(t *testing.T) {
		assert.NoError(t, q.MarkCompleted("flight", TransactionResult{Success: true}))
	})
}

func TestQueue_Snapshot(t *testing.T) {
	q := New(5)
	require.NoError(t, q.Add(newTx("a", PriorityLow)))
	require.NoError(t, q.Add(newTx("b", PriorityLow)))
	require.NoError(t, q.Add(newTx("c", PriorityCritical)))
	_, _ = q.NextReady()

	snapshot := q.Snapshot()
	assert.Equal(t, 2, snapshot.QueueSize)
	assert.Equal(t, 1, snapshot.ProcessingCount)
	assert.Equal(t, 5, snapshot.Capacity)
	assert.Equal(t, map[Priority]int{PriorityLow: 2}, snapshot.ByPriority)
}
