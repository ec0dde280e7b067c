// Package scheduler runs deferred callbacks one at a time on a single
// goroutine, so scheduled work never runs concurrently with other
// scheduled work.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rsvpdash/internal/observability"
)

// Handle cancels a pending callback. Cancel reports whether the callback was
// still pending.
type Handle interface {
	Cancel() bool
}

type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Handle
}

// Loop is the production Scheduler. Timers fire on their own goroutines but
// only enqueue; Run executes the callbacks serially.
type Loop struct {
	tasks chan *task
	done  chan struct{}
	once  sync.Once
}

const (
	taskPending int32 = iota
	taskFired
	taskCanceled
)

type task struct {
	fn    func()
	state atomic.Int32
	timer *time.Timer
}

func (t *task) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCanceled) {
		return false
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	return true
}

// claim marks the task fired; false means it was canceled first.
func (t *task) claim() bool {
	return t.state.CompareAndSwap(taskPending, taskFired)
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{tasks: make(chan *task, buffer), done: make(chan struct{})}
}

func (l *Loop) Now() time.Time { return time.Now().UTC() }

func (l *Loop) After(d time.Duration, fn func()) Handle {
	t := &task{fn: fn}
	t.timer = time.AfterFunc(d, func() {
		select {
		case l.tasks <- t:
		case <-l.done:
		}
	})
	return t
}

// Run executes callbacks until ctx is canceled. Pending timers are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.tasks:
			if !t.claim() {
				continue
			}
			runSafely(t.fn)
		}
	}
}

// runSafely keeps a panicking callback from taking the loop down.
func runSafely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			observability.SchedulerPanics.Inc()
			slog.Error("scheduled task panicked", "panic", r)
		}
	}()
	fn()
}
