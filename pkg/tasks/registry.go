package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no task has the requested id.
	ErrNotFound = errors.New("task not found")

	// ErrTooManyTasks is returned by Launch when MaxRunning tasks are already running.
	ErrTooManyTasks = errors.New("too many running tasks")

	// ErrClosed is returned by Launch after Shutdown has been called.
	ErrClosed = errors.New("registry is shut down")
)

// State is the lifecycle state of a task.
type State string

const (
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

// Spec describes the workload being launched.
type Spec struct {
	Kind            string
	Label           string
	Percentage      float64
	DurationSeconds int
	Status          string
}

// Task is a point-in-time snapshot of a launched workload.
type Task struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	Percentage      float64    `json:"percentage"`
	DurationSeconds int        `json:"durationSeconds"`
	Status          string     `json:"status"`
	State           State      `json:"state"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
}

// Func is the body of a task. ctx is canceled by Cancel or Shutdown.
type Func func(ctx context.Context, taskID string) error

// Journal persists task lifecycle transitions.
type Journal interface {
	RecordStart(ctx context.Context, t Task) error
	RecordFinish(ctx context.Context, t Task) error
}

// Observer receives task lifecycle events, typically Prometheus collectors.
type Observer interface {
	TaskStarted(kind string)
	TaskFinished(kind, state string)
}

// Notifier is told about every finished task.
type Notifier interface {
	TaskFinished(ctx context.Context, t Task)
}

// Options configures a Registry.
type Options struct {
	// MaxRunning caps concurrently running tasks. Zero means unbounded.
	MaxRunning int

	// Retention is how many finished tasks are kept for List and Get.
	Retention int

	Journal  Journal
	Observer Observer
	Notifier Notifier
	Logger   *slog.Logger
}

const DefaultRetention = 200

type entry struct {
	task   Task
	label  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry launches workloads on their own goroutines and keeps track of them.
// Task contexts derive from the registry root, never from the launching request.
type Registry struct {
	opts   Options
	logger *slog.Logger

	root       context.Context
	cancelRoot context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	running int
	closed  bool

	wg sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Registry{
		opts:       opts,
		logger:     logger,
		root:       root,
		cancelRoot: cancel,
		entries:    make(map[string]*entry),
	}
}

// Launch starts fn in the background and returns the running task.
func (r *Registry) Launch(spec Spec, fn Func) (Task, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Task{}, ErrClosed
	}
	if r.opts.MaxRunning > 0 && r.running >= r.opts.MaxRunning {
		r.mu.Unlock()
		return Task{}, fmt.Errorf("%w: limit is %d", ErrTooManyTasks, r.opts.MaxRunning)
	}

	ctx, cancel := context.WithCancel(r.root)
	e := &entry{
		task: Task{
			ID:              uuid.NewString(),
			Kind:            spec.Kind,
			Percentage:      spec.Percentage,
			DurationSeconds: spec.DurationSeconds,
			Status:          spec.Status,
			State:           StateRunning,
			StartedAt:       time.Now().UTC(),
		},
		label:  spec.Label,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if e.label == "" {
		e.label = spec.Kind
	}
	r.entries[e.task.ID] = e
	r.order = append(r.order, e.task.ID)
	r.running++
	r.wg.Add(1)
	snapshot := e.task
	r.mu.Unlock()

	if r.opts.Observer != nil {
		r.opts.Observer.TaskStarted(spec.Kind)
	}
	if r.opts.Journal != nil {
		if err := r.opts.Journal.RecordStart(context.Background(), snapshot); err != nil {
			r.logger.Warn("task_journal_failed", "task_id", snapshot.ID, "error", err)
		}
	}

	go r.run(ctx, e, fn)

	r.logger.Debug("task_started", "task_id", snapshot.ID, "kind", spec.Kind, "percentage", spec.Percentage, "duration_seconds", spec.DurationSeconds)
	return snapshot, nil
}

func (r *Registry) run(ctx context.Context, e *entry, fn Func) {
	defer r.wg.Done()
	defer close(e.done)

	err := safeCall(ctx, e.task.ID, fn)

	state := StateCompleted
	switch {
	case ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)):
		state = StateCanceled
		err = nil
	case err != nil:
		state = StateFailed
		r.logger.Error(fmt.Sprintf("%s simulation error: %v", e.label, err), "task_id", e.task.ID)
	}
	e.cancel()

	finished := time.Now().UTC()
	r.mu.Lock()
	e.task.State = state
	e.task.FinishedAt = &finished
	if err != nil {
		e.task.Error = err.Error()
	}
	r.running--
	snapshot := e.task
	r.pruneLocked()
	r.mu.Unlock()

	if r.opts.Observer != nil {
		r.opts.Observer.TaskFinished(snapshot.Kind, string(state))
	}
	if r.opts.Journal != nil {
		if jErr := r.opts.Journal.RecordFinish(context.Background(), snapshot); jErr != nil {
			r.logger.Warn("task_journal_failed", "task_id", snapshot.ID, "error", jErr)
		}
	}
	if r.opts.Notifier != nil {
		r.opts.Notifier.TaskFinished(context.Background(), snapshot)
	}

	r.logger.Debug("task_finished", "task_id", snapshot.ID, "kind", snapshot.Kind, "state", state)
}

func safeCall(ctx context.Context, id string, fn Func) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, id)
}

// pruneLocked evicts the oldest finished tasks beyond Retention.
func (r *Registry) pruneLocked() {
	finished := 0
	for _, id := range r.order {
		if r.entries[id].task.State != StateRunning {
			finished++
		}
	}
	excess := finished - r.opts.Retention
	if excess <= 0 {
		return
	}

	kept := r.order[:0]
	for _, id := range r.order {
		if excess > 0 && r.entries[id].task.State != StateRunning {
			delete(r.entries, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
}

// Get returns the task with the given id.
func (r *Registry) Get(id string) (Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return e.task, nil
}

// List returns all known tasks, newest first.
func (r *Registry) List() []Task {
	r.mu.Lock()
	out := make([]Task, 0, len(r.entries))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.entries[r.order[i]].task)
	}
	r.mu.Unlock()
	return out
}

// Running returns the number of running tasks.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Cancel requests cancellation of a task. Canceling a finished task is a no-op.
func (r *Registry) Cancel(id string) (Task, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return Task{}, ErrNotFound
	}
	snapshot := e.task
	r.mu.Unlock()

	e.cancel()
	return snapshot, nil
}

// Wait blocks until the task finishes or ctx is done, then returns its snapshot.
func (r *Registry) Wait(ctx context.Context, id string) (Task, error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	r.mu.Unlock()
	if !ok {
		return Task{}, ErrNotFound
	}

	select {
	case <-e.done:
	case <-ctx.Done():
		return r.Get(id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return e.task, nil
}

// Shutdown stops accepting tasks, cancels the running ones and waits for them
// to return or for ctx to expire.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	r.cancelRoot()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d tasks: %w", r.Running(), ctx.Err())
	}
}
