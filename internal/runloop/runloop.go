// Package runloop provides a single-goroutine task loop. Sessions use one loop
// as their owning execution context: consumer calls and engine callbacks are
// all funneled onto it so they never run concurrently.
package runloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when a task is sent to a closed loop.
var ErrClosed = errors.New("runloop: closed")

// A Task runs on a loop. The context it receives identifies the loop, so
// nested Sends from within the task run inline.
type Task = func(ctx context.Context)

// A Poster accepts fire-and-forget tasks.
type Poster interface {
	Post(task Task)
}

type loopKey struct{}

// A Loop executes posted tasks one at a time in FIFO order.
type Loop struct {
	name string
	ctx  context.Context

	mu     sync.Mutex
	queue  []Task
	closed bool

	wake   chan struct{}
	closer chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New creates a Loop and starts its goroutine.
func New(name string) *Loop {
	l := &Loop{
		name:   name,
		wake:   make(chan struct{}, 1),
		closer: make(chan struct{}),
		done:   make(chan struct{}),
	}
	l.ctx = context.WithValue(context.Background(), loopKey{}, l)
	go l.run()
	return l
}

// Name returns the loop's name.
func (l *Loop) Name() string {
	return l.name
}

// IsCurrent reports whether ctx belongs to a task running on this loop.
func (l *Loop) IsCurrent(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	current, _ := ctx.Value(loopKey{}).(*Loop)
	return current == l
}

// Post queues task. It never blocks. Tasks posted after Close are dropped.
func (l *Loop) Post(task Task) {
	if !l.enqueue(task) {
		log.Debug().Str("loop", l.name).Msg("dropping task posted to closed loop")
	}
}

// PostDelayed queues task after d. The returned function cancels the task if
// it has not been queued yet and reports whether it did so.
func (l *Loop) PostDelayed(d time.Duration, task Task) (cancel func() bool) {
	timer := time.AfterFunc(d, func() {
		l.Post(task)
	})
	return timer.Stop
}

// Send runs task on the loop and waits for it to finish. When called from a
// task already running on this loop, task runs inline.
func (l *Loop) Send(ctx context.Context, task Task) error {
	if l.IsCurrent(ctx) {
		task(ctx)
		return nil
	}

	finished := make(chan struct{})
	if !l.enqueue(func(ctx context.Context) {
		defer close(finished)
		task(ctx)
	}) {
		return ErrClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Close stops the loop. Tasks still queued are discarded; a task that is
// already running finishes first. Wait on Done to observe the exit.
func (l *Loop) Close() error {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
		close(l.closer)
	})
	return nil
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) enqueue(task Task) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, task)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) next() (Task, bool) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return nil, false
		}
		if len(l.queue) > 0 {
			task := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return task, true
		}
		l.mu.Unlock()

		select {
		case <-l.wake:
		case <-l.closer:
		}
	}
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		task, ok := l.next()
		if !ok {
			return
		}
		l.exec(task)
	}
}

func (l *Loop) exec(task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("loop", l.name).Interface("panic", r).Msg("task panicked")
		}
	}()
	task(l.ctx)
}
