package player

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func runLoop(t *testing.T) *Loop {
	t.Helper()
	l := NewLoop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Run(context.Background())
	}()
	t.Cleanup(func() {
		l.Stop()
		<-done
	})
	return l
}

func TestLoopOrdering(t *testing.T) {
	l := runLoop(t)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 100 {
		t.Fatalf("ran %d functions", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d ran %d", i, v)
		}
	}
}

func TestLoopPostFromLoop(t *testing.T) {
	l := runLoop(t)

	done := make(chan struct{})
	l.Post(func() {
		for i := 0; i < 1000; i++ {
			l.Post(func() {})
		}
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("nested posts did not run")
	}
}

func TestLoopAfterFuncAndGo(t *testing.T) {
	l := runLoop(t)

	fired := make(chan struct{})
	l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timer did not fire")
	}

	stopped := int32(0)
	tm := l.AfterFunc(time.Hour, func() { atomic.StoreInt32(&stopped, 1) })
	if !tm.Stop() {
		t.Fatal("stop reported the timer already fired")
	}

	applied := make(chan int, 1)
	l.Go(func(ctx context.Context) func() {
		v := 42
		return func() { applied <- v }
	})
	select {
	case v := <-applied:
		if v != 42 {
			t.Fatalf("applied %d", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("go result not applied")
	}
}

func TestLoopStop(t *testing.T) {
	l := NewLoop()
	go l.Run(context.Background())

	exited := make(chan struct{})
	l.Go(func(ctx context.Context) func() {
		<-ctx.Done()
		close(exited)
		return nil
	})

	l.Stop()
	select {
	case <-exited:
	default:
		t.Fatal("stop returned before work exited")
	}

	if l.Post(func() {}) {
		t.Fatal("post accepted after stop")
	}
	if err := l.Call(context.Background(), func() {}); !errors.Is(err, ErrLoopStopped) {
		t.Fatalf("call err = %v", err)
	}
}
