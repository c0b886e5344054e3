// Package tasks runs named units of background work with a hard
// at-most-one-active-per-name guarantee. The name map is the sole arbiter of
// "is X already running": submitting a duplicate name returns the existing
// handle unchanged.
package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/commatea/Radiance-Link/pkg/logger"
)

// Func is one unit of background work. It must honor ctx cancellation.
type Func func(ctx context.Context) error

// Task is the handle for a running or settled named task.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Name returns the task's registry key.
func (t *Task) Name() string { return t.name }

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the task's outcome. It is only meaningful after Done is
// closed; cancellation surfaces as context.Canceled.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task settles or ctx expires.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry tracks active named tasks.
type Registry struct {
	mu     sync.Mutex
	active map[string]*Task
	log    *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Global()
	}
	return &Registry{
		active: make(map[string]*Task),
		log:    log,
	}
}

// Add starts fn under name. If a task with that name is already active, the
// existing handle is returned and fn does not run. Completion removes the
// entry; cancellations and errors are logged, and remain observable through
// the handle.
func (r *Registry) Add(ctx context.Context, name string, fn Func) *Task {
	r.mu.Lock()
	if existing, ok := r.active[name]; ok {
		r.mu.Unlock()
		r.log.Warn("Task already running, skipping duplicate", "task", name)
		return existing
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.active[name] = t
	r.mu.Unlock()

	go func() {
		defer cancel()
		err := fn(taskCtx)

		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)

		r.mu.Lock()
		if r.active[name] == t {
			delete(r.active, name)
		}
		r.mu.Unlock()

		switch {
		case errors.Is(err, context.Canceled):
			r.log.Info("Task was cancelled", "task", name)
		case err != nil:
			r.log.Error("Task failed", "task", name, "error", err)
		}
	}()

	return t
}

// Get returns the active task registered under name, or nil.
func (r *Registry) Get(name string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active[name]
}

// Cancel cancels the named task if present, awaits its settlement, and
// returns its outcome. Cancelling an unknown name is a no-op.
func (r *Registry) Cancel(name string) error {
	r.mu.Lock()
	t, ok := r.active[name]
	if ok {
		delete(r.active, name)
	}
	r.mu.Unlock()

	if !ok {
		return nil
	}

	r.log.Info("Cancelling task", "task", name)
	t.cancel()
	<-t.done
	return t.Err()
}

// CancelAll cancels every active task, awaits all settlements, and clears
// the registry. Cancellation outcomes are joined and surfaced to the caller.
func (r *Registry) CancelAll() error {
	r.mu.Lock()
	snapshot := make([]*Task, 0, len(r.active))
	for _, t := range r.active {
		snapshot = append(snapshot, t)
	}
	r.active = make(map[string]*Task)
	r.mu.Unlock()

	for _, t := range snapshot {
		t.cancel()
	}

	var errs []error
	for _, t := range snapshot {
		<-t.done
		if err := t.Err(); err != nil {
			errs = append(errs, err)
		}
	}

	r.log.Info("All tasks have been cancelled and cleared")
	return errors.Join(errs...)
}

// WaitAll awaits completion of every currently active task without
// cancelling any of them.
func (r *Registry) WaitAll() {
	r.mu.Lock()
	snapshot := make([]*Task, 0, len(r.active))
	for _, t := range r.active {
		snapshot = append(snapshot, t)
	}
	r.mu.Unlock()

	for _, t := range snapshot {
		<-t.done
	}
}
