package txqueue

// entry wraps a pending transaction with its insertion sequence, which breaks
// ties between transactions sharing priority and QueuedAt.
type entry struct {
	tx  QueuedTransaction
	seq uint64
}

// txHeap is a container/heap max-heap: priority descending, then QueuedAt
// ascending, then insertion order.
type txHeap []*entry

func (h txHeap) Len() int { return len(h) }

func (h txHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.tx.Priority != b.tx.Priority {
		return a.tx.Priority > b.tx.Priority
	}
	if !a.tx.QueuedAt.Equal(b.tx.QueuedAt) {
		return a.tx.QueuedAt.Before(b.tx.QueuedAt)
	}
	return a.seq < b.seq
}

func (h txHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *txHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}

func (h *txHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
