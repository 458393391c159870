package player

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrLoopStopped = errors.New("player loop stopped")

// Timer is a pending callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks on the owner's goroutine.
type Scheduler interface {
	// AfterFunc runs f after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Go runs work on its own goroutine and then applies the returned
	// function, if any.
	Go(work func(ctx context.Context) func())
}

// Loop serializes every state mutation of a player onto one goroutine.
// Posting never blocks, including from the loop itself.
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	queue []func()
	wake  chan struct{}

	wg sync.WaitGroup
}

func NewLoop() *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}
}

// Context is cancelled by Stop.
func (l *Loop) Context() context.Context { return l.ctx }

// Run processes posted functions until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, f := range batch {
			f()
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			return
		case <-l.ctx.Done():
			return
		}
	}
}

// Post queues f, reporting false once the loop is stopped.
func (l *Loop) Post(f func()) bool {
	if l.ctx.Err() != nil {
		return false
	}

	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Call runs f on the loop and waits for it to return.
func (l *Loop) Call(ctx context.Context, f func()) error {
	done := make(chan struct{})
	if !l.Post(func() { f(); close(done) }) {
		return ErrLoopStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.ctx.Done():
		return ErrLoopStopped
	}
}

func (l *Loop) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, func() { l.Post(f) })
}

func (l *Loop) Go(work func(ctx context.Context) func()) {
	if l.ctx.Err() != nil {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if apply := work(l.ctx); apply != nil {
			l.Post(apply)
		}
	}()
}

// Stop cancels the loop context and waits for Go work to return.
func (l *Loop) Stop() {
	l.cancel()
	l.wg.Wait()
}
