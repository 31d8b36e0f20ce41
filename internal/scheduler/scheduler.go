// Package scheduler runs recurring background tasks.
//
// Every tick, enabled tasks whose NextRun has passed are pushed onto a
// priority run-queue (priority descending, then earliest due time) and up to
// MaxConcurrentTasks of them are dispatched to the handler registered for
// their type. Each dispatched invocation retries locally according to the
// task's MaxRetries and RetryDelay; retries never shift the task schedule.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/pkg/resilience/retry"
	"github.com/gabapcia/txrelay/internal/pkg/types"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	DefaultMaxConcurrentTasks = 4
	DefaultTickInterval       = time.Second
	DefaultHistoryCapacity    = 1000
)

var (
	ErrServiceAlreadyStarted = errors.New("scheduler already started")
	ErrTaskNotFound          = errors.New("task not found")
	ErrDuplicateTask         = errors.New("task already exists")
	ErrInvalidTask           = errors.New("invalid task")
	ErrHandlerNotFound       = errors.New("no handler registered for task type")
)

// cronParser accepts standard five field expressions, an optional leading
// seconds field and descriptors such as @hourly or @every 30s.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler owns the task registry and run-queue. Create it with New.
type Scheduler struct {
	mu        sync.Mutex
	isStarted bool
	closeFunc func()

	tasks     map[string]*ScheduledTask
	handlers  map[TaskType]Handler
	queue     runQueue
	queued    types.Set[string]
	running   map[string]int
	seq       uint64
	completed int
	history   *types.Ring[TaskResult]

	maxConcurrentTasks int
	tickInterval       time.Duration
	now                func() time.Time

	inflight sync.WaitGroup
}

type config struct {
	maxConcurrentTasks int
	tickInterval       time.Duration
	historyCapacity    int
	now                func() time.Time
}

// Option configures a Scheduler.
type Option func(*config)

// WithMaxConcurrentTasks sets how many queued tasks are dispatched per tick.
// Default: DefaultMaxConcurrentTasks.
func WithMaxConcurrentTasks(n int) Option {
	return func(c *config) {
		c.maxConcurrentTasks = n
	}
}

// WithTickInterval sets the tick cadence. Default: DefaultTickInterval.
func WithTickInterval(d time.Duration) Option {
	return func(c *config) {
		c.tickInterval = d
	}
}

// WithHistoryCapacity sets how many task results are retained.
// Default: DefaultHistoryCapacity.
func WithHistoryCapacity(n int) Option {
	return func(c *config) {
		c.historyCapacity = n
	}
}

// WithClock overrides the time source used to decide which tasks are due.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// New creates a stopped Scheduler with an empty registry.
func New(opts ...Option) *Scheduler {
	cfg := config{
		maxConcurrentTasks: DefaultMaxConcurrentTasks,
		tickInterval:       DefaultTickInterval,
		historyCapacity:    DefaultHistoryCapacity,
		now:                time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Scheduler{
		tasks:              make(map[string]*ScheduledTask),
		handlers:           make(map[TaskType]Handler),
		queued:             types.NewSet[string](),
		running:            make(map[string]int),
		history:            types.NewRing[TaskResult](cfg.historyCapacity),
		maxConcurrentTasks: max(cfg.maxConcurrentTasks, 1),
		tickInterval:       cfg.tickInterval,
		now:                cfg.now,
	}
}

// nextRun returns the first occurrence of expr strictly after from.
func nextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cron expression %q: %w", ErrInvalidTask, expr, err)
	}
	return schedule.Next(from), nil
}

// AddTask registers task and returns its id, generating one when empty.
// NextRun is computed from the cron expression when not set, so a new task
// never runs before its first scheduled occurrence.
func (s *Scheduler) AddTask(task ScheduledTask) (string, error) {
	if strings.TrimSpace(task.Name) == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidTask)
	}
	if task.Type == "" {
		return "", fmt.Errorf("%w: type is required", ErrInvalidTask)
	}
	if task.MaxRetries < 0 || task.RetryDelay < 0 {
		return "", fmt.Errorf("%w: negative retry policy", ErrInvalidTask)
	}

	next, err := nextRun(task.CronExpression, s.now())
	if err != nil {
		return "", err
	}

	if task.ID == "" {
		task.ID = uuid.Must(uuid.NewV7()).String()
	}
	if task.NextRun.IsZero() {
		task.NextRun = next
	}
	task.Metadata = maps.Clone(task.Metadata)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}

	s.tasks[task.ID] = &task
	return task.ID, nil
}

// RemoveTask deletes the task and drops it from the run-queue. Invocations
// already dispatched keep running.
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	delete(s.tasks, id)
	if s.queued.Has(id) {
		s.queue = slices.DeleteFunc(s.queue, func(q queuedTask) bool {
			return q.task.ID == id
		})
		heap.Init(&s.queue)
		s.queued.Delete(id)
	}
	return nil
}

// EnableTask enables the task and puts it on the run-queue so it is
// dispatched at the next tick.
func (s *Scheduler) EnableTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task.Enabled = true

	now := s.now()
	if !task.NextRun.After(now) {
		if next, err := nextRun(task.CronExpression, now); err == nil {
			task.NextRun = next
		}
	}

	s.enqueueLocked(*task)
	return nil
}

// DisableTask stops future enqueues of the task. Queued copies are skipped
// at dispatch; running invocations are not interrupted.
func (s *Scheduler) DisableTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	task.Enabled = false
	return nil
}

// Task returns a copy of the task with the given id.
func (s *Scheduler) Task(id string) (ScheduledTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ScheduledTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return *task, nil
}

// RegisterTaskHandler sets the handler of a task type. The last registration wins.
func (s *Scheduler) RegisterTaskHandler(taskType TaskType, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[taskType] = h
}

// TaskStatus returns a summary of the registry with tasks sorted by name.
func (s *Scheduler) TaskStatus() TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := TaskStatus{
		Total:     len(s.tasks),
		Completed: s.completed,
		Tasks:     make([]ScheduledTask, 0, len(s.tasks)),
	}
	for _, task := range s.tasks {
		if task.Enabled {
			status.Enabled++
		}
		status.Tasks = append(status.Tasks, *task)
	}
	for _, n := range s.running {
		status.Running += n
	}

	slices.SortFunc(status.Tasks, cmpTasks)
	return status
}

func cmpTasks(a, b ScheduledTask) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// TaskHistory returns up to limit results, most recent first. A non-positive
// limit returns the whole retained history.
func (s *Scheduler) TaskHistory(limit int) []TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Recent(limit, nil)
}

// enqueueLocked pushes a copy of task unless one is already waiting.
func (s *Scheduler) enqueueLocked(task ScheduledTask) {
	if s.queued.Has(task.ID) {
		return
	}

	s.seq++
	heap.Push(&s.queue, queuedTask{task: task, seq: s.seq})
	s.queued.Add(task.ID)
}

// Start launches the tick loop. It returns ErrServiceAlreadyStarted when
// called twice without Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.loop(ctx)
	}()

	s.closeFunc = func() {
		cancel()
		<-done
	}
	s.isStarted = true

	logger.Info(ctx, "scheduler started",
		"scheduler.tasks", len(s.tasks),
		"scheduler.tick_interval", s.tickInterval,
	)
	return nil
}

// Stop ends the tick loop and waits for dispatched invocations to return.
// Their context is cancelled. Stop on a stopped scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	closeFunc := s.closeFunc
	s.closeFunc = nil
	s.isStarted = false
	s.mu.Unlock()

	if closeFunc != nil {
		closeFunc()
	}
	s.inflight.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick enqueues due tasks and dispatches up to maxConcurrentTasks of them.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()

	var unschedulable []error

	s.mu.Lock()
	for _, task := range s.tasks {
		if !task.Enabled || s.queued.Has(task.ID) || task.NextRun.After(now) {
			continue
		}

		due := *task
		due.LastRun = now
		task.LastRun = now

		next, err := nextRun(task.CronExpression, now)
		if err != nil {
			// AddTask validated the expression; keep the task off the queue if it changed since.
			unschedulable = append(unschedulable, fmt.Errorf("task %s: %w", task.ID, err))
			continue
		}
		task.NextRun = next

		s.enqueueLocked(due)
	}

	batch := make([]ScheduledTask, 0, s.maxConcurrentTasks)
	for s.queue.Len() > 0 && len(batch) < s.maxConcurrentTasks {
		item := heap.Pop(&s.queue).(queuedTask)
		s.queued.Delete(item.task.ID)

		current, ok := s.tasks[item.task.ID]
		if !ok || !current.Enabled {
			continue
		}

		s.running[item.task.ID]++
		batch = append(batch, item.task)
	}
	s.mu.Unlock()

	for _, err := range unschedulable {
		logger.Error(ctx, "cannot compute next run", "error", err)
	}

	for _, task := range batch {
		s.inflight.Add(1)
		go s.run(ctx, task)
	}
}

// run executes one invocation of task with its local retry policy and
// records the outcome in the history.
func (s *Scheduler) run(ctx context.Context, task ScheduledTask) {
	defer s.inflight.Done()

	ctx = logger.Derive(ctx,
		"task.id", task.ID,
		"task.name", task.Name,
		"task.type", task.Type,
	)

	s.mu.Lock()
	h, ok := s.handlers[task.Type]
	s.mu.Unlock()

	start := s.now()
	attempts := 0

	var err error
	if !ok {
		err = fmt.Errorf("%w: %s", ErrHandlerNotFound, task.Type)
	} else {
		r := retry.New(
			retry.WithAttempts(uint(task.MaxRetries)+1),
			retry.WithDelay(task.RetryDelay),
			retry.WithMaxDelay(task.RetryDelay),
			retry.WithFixedDelay(),
			retry.WithOnRetry(func(attempt uint, err error) {
				logger.Warn(ctx, "task attempt failed",
					"task.attempt", attempt+1,
					"error", err,
				)
			}),
		)

		err = r.Execute(ctx, func() error {
			attempts++
			return invoke(ctx, h, task)
		})
	}

	result := TaskResult{
		TaskID:    task.ID,
		TaskName:  task.Name,
		Type:      task.Type,
		Success:   err == nil,
		Attempts:  attempts,
		StartedAt: start,
		Duration:  s.now().Sub(start),
	}
	if err != nil {
		result.Error = err.Error()
	}

	s.mu.Lock()
	s.history.Push(result)
	s.completed++
	if s.running[task.ID]--; s.running[task.ID] <= 0 {
		delete(s.running, task.ID)
	}
	if current, ok := s.tasks[task.ID]; ok {
		current.RetryCount = max(attempts-1, 0)
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error(ctx, "task failed", "task.attempts", attempts, "error", err)
		return
	}
	logger.Debug(ctx, "task completed", "task.attempts", attempts, "task.duration", result.Duration)
}

// invoke calls the handler. A panic becomes an error that is not retried.
func invoke(ctx context.Context, h Handler, task ScheduledTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = retry.Unrecoverable(fmt.Errorf("task handler panicked: %v", r))
		}
	}()

	return h.Execute(ctx, task)
}
