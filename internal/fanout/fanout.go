// Package fanout runs a batch of independent tasks with bounded
// parallelism and a bounded wait: no single hung task can stall the batch
// past its per-task ceiling, and no result is ever dropped silently.
package fanout

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout marks a task that out-waited its per-task ceiling. The
// underlying work is abandoned, not interrupted; its late result is
// discarded when it eventually resolves.
var ErrTimeout = errors.New("task exceeded time ceiling")

// Task is one unit of fan-out work.
type Task[T any] func(ctx context.Context) (T, error)

// Result is the outcome of a single task.
type Result[T any] struct {
	Index int // Position in the submitted task slice
	Value T
	Err   error
}

// Progress describes batch progress at the moment a task completed.
type Progress struct {
	Completed int
	Total     int
	ETA       time.Duration // Estimated time remaining
}

const (
	defaultMaxWorkers  = 15
	defaultTaskTimeout = 30 * time.Second

	// Assumed per-task duration before the first completion lands.
	defaultTaskEstimate = 2 * time.Second
)

// Options configures a Run call.
type Options[T any] struct {
	// MaxWorkers bounds concurrent tasks. Defaults to 15, clamped to the
	// batch size.
	MaxWorkers int

	// TaskTimeout is the per-task ceiling. Defaults to 30s.
	TaskTimeout time.Duration

	// OnComplete is invoked after every task completion, success or
	// failure. Calls are serialized on the collector goroutine, so the
	// callback need not be reentrant-safe.
	OnComplete func(r Result[T], p Progress)
}

// Run executes all tasks and returns one result per task, indexed by
// submission order. A task failure or timeout never aborts its siblings.
// Run returns once every task is accounted for; total wall-clock time is
// bounded by roughly ceil(len(tasks)/MaxWorkers) * TaskTimeout.
func Run[T any](ctx context.Context, tasks []Task[T], opts Options[T]) []Result[T] {
	total := len(tasks)
	if total == 0 {
		return nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	if workers > total {
		workers = total
	}
	ceiling := opts.TaskTimeout
	if ceiling <= 0 {
		ceiling = defaultTaskTimeout
	}

	jobs := make(chan int)
	outcomes := make(chan Result[T])

	for w := 0; w < workers; w++ {
		go func() {
			for idx := range jobs {
				outcomes <- runOne(ctx, idx, tasks[idx], ceiling)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range tasks {
			jobs <- i
		}
	}()

	// Single-consumer collection loop. Progress callbacks happen here,
	// serialized, with the ETA derived from observed throughput.
	results := make([]Result[T], total)
	start := time.Now()
	for completed := 0; completed < total; {
		r := <-outcomes
		results[r.Index] = r
		completed++

		if opts.OnComplete != nil {
			remaining := total - completed
			avg := defaultTaskEstimate
			if completed > 0 {
				avg = time.Since(start) / time.Duration(completed)
			}
			opts.OnComplete(r, Progress{
				Completed: completed,
				Total:     total,
				ETA:       avg * time.Duration(remaining),
			})
		}
	}
	return results
}

// runOne executes a single task under the per-task ceiling. The task
// receives a context that expires at the ceiling; tasks stuck in
// uninterruptible I/O are abandoned to finish in the background, and their
// eventual result goes nowhere.
func runOne[T any](ctx context.Context, idx int, task Task[T], ceiling time.Duration) Result[T] {
	tctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	done := make(chan Result[T], 1) // Buffered: a late finisher must not block
	go func() {
		v, err := task(tctx)
		done <- Result[T]{Index: idx, Value: v, Err: err}
	}()

	select {
	case r := <-done:
		return r
	case <-tctx.Done():
		if ctx.Err() != nil {
			return Result[T]{Index: idx, Err: ctx.Err()}
		}
		return Result[T]{Index: idx, Err: ErrTimeout}
	}
}
