// Package mainloop provides the single-threaded cooperative event loop every
// softbright handler runs on. Work produced on other goroutines (D-Bus replies,
// file watches, timers) is posted here and executed in order.
package mainloop

import (
	"context"
	"sync"
	"time"
)

// Source is a cancellable pending callback.
type Source interface {
	Cancel()
}

// Loop runs posted functions one at a time on the goroutine calling Run.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
}

// New creates an idle loop.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues fn for execution on the loop goroutine. It is safe to call from
// any goroutine, including from inside a running handler.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run executes posted work until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Iterate runs at most one queued function and reports whether one ran.
func (l *Loop) Iterate() bool {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	l.mu.Unlock()

	fn()
	return true
}

// Drain runs queued functions, including ones queued while draining, until
// the queue is empty.
func (l *Loop) Drain() int {
	n := 0
	for l.Iterate() {
		n++
	}
	return n
}

// Pending returns the number of queued functions.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Invoke posts fn and blocks until it has run on the loop goroutine. It must
// not be called from the loop goroutine itself.
func (l *Loop) Invoke(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type source struct {
	mu        sync.Mutex
	cancelled bool
	timer     *time.Timer
}

func (s *source) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *source) isCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Timeout runs fn on the loop after d. When fn returns true it is rescheduled
// with the same interval, until it returns false or the source is cancelled.
func (l *Loop) Timeout(d time.Duration, fn func() bool) Source {
	s := &source{}
	var arm func()
	arm = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.cancelled {
			return
		}
		s.timer = time.AfterFunc(d, func() {
			l.Post(func() {
				if s.isCancelled() {
					return
				}
				if fn() {
					arm()
				}
			})
		})
	}
	arm()
	return s
}

// Idle runs fn once on a later loop iteration unless cancelled first.
func (l *Loop) Idle(fn func()) Source {
	s := &source{}
	l.Post(func() {
		if s.isCancelled() {
			return
		}
		fn()
	})
	return s
}
