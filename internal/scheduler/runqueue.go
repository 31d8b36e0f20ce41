package scheduler

// runQueue is a container/heap max-heap of due tasks: priority descending,
// then earliest NextRun, then enqueue order.
type runQueue []queuedTask

type queuedTask struct {
	task ScheduledTask
	seq  uint64
}

func (q runQueue) Len() int { return len(q) }

func (q runQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.task.Priority != b.task.Priority {
		return a.task.Priority > b.task.Priority
	}
	if !a.task.NextRun.Equal(b.task.NextRun) {
		return a.task.NextRun.Before(b.task.NextRun)
	}
	return a.seq < b.seq
}

func (q runQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *runQueue) Push(x any) {
	*q = append(*q, x.(queuedTask))
}

func (q *runQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
