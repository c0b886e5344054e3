package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddDeduplicates(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	var runs atomic.Int32
	release := make(chan struct{})

	fn := func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}

	first := r.Add(ctx, "worker", fn)
	second := r.Add(ctx, "worker", fn)

	if first != second {
		t.Error("duplicate Add should return the existing handle")
	}

	close(release)
	<-first.Done()

	if got := runs.Load(); got != 1 {
		t.Errorf("task ran %d times, want 1", got)
	}
}

func TestTaskCompletionRemovesEntry(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	task := r.Add(ctx, "short", func(ctx context.Context) error { return nil })
	<-task.Done()

	// Removal happens in the task goroutine right before the done channel
	// closes; give it a moment.
	deadline := time.After(time.Second)
	for r.Get("short") != nil {
		select {
		case <-deadline:
			t.Fatal("completed task still registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCancelPropagates(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	started := make(chan struct{})
	task := r.Add(ctx, "blocker", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started

	err := r.Cancel("blocker")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Cancel error = %v, want context.Canceled", err)
	}
	if !errors.Is(task.Err(), context.Canceled) {
		t.Errorf("task.Err() = %v, want context.Canceled", task.Err())
	}
}

func TestCancelUnknownIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Cancel("ghost"); err != nil {
		t.Errorf("Cancel(ghost) = %v, want nil", err)
	}
}

func TestCancelAll(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		started := make(chan struct{})
		r.Add(ctx, name, func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
		<-started
	}

	err := r.CancelAll()
	if !errors.Is(err, context.Canceled) {
		t.Errorf("CancelAll error = %v, want joined context.Canceled", err)
	}

	for _, name := range []string{"a", "b", "c"} {
		if r.Get(name) != nil {
			t.Errorf("task %q still registered after CancelAll", name)
		}
	}
}

func TestWaitBoundedByContext(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	task := r.Add(ctx, "forever", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()

	if err := task.Wait(waitCtx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait error = %v, want deadline exceeded", err)
	}

	r.CancelAll()
}
