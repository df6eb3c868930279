package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
)

func TestPollerNeverOverlapsTicks(t *testing.T) {
	var running, maxRunning, calls atomic.Int64
	p := NewPoller("overlap")
	err := p.Start(20*time.Millisecond, func(context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		calls.Add(1)
		for {
			seen := maxRunning.Load()
			if n <= seen || maxRunning.CompareAndSwap(seen, n) {
				break
			}
		}
		time.Sleep(70 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	p.Stop()
	p.Wait()

	if got := maxRunning.Load(); got != 1 {
		t.Errorf("max concurrent ticks = %d, want 1", got)
	}
	stats := p.Stats()
	if stats.Dropped == 0 {
		t.Error("expected due ticks to be dropped while one was in flight")
	}
	if executed := stats.Fired - stats.Dropped; executed != calls.Load() {
		t.Errorf("executed = %d, calls = %d: dropped ticks must not be queued", executed, calls.Load())
	}
}

func TestPollerFiresImmediately(t *testing.T) {
	fired := make(chan time.Time, 1)
	p := NewPoller("immediate")
	start := time.Now()
	if err := p.Start(time.Hour, func(context.Context) error {
		select {
		case fired <- time.Now():
		default:
		}
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	defer p.Stop()

	select {
	case at := <-fired:
		if at.Sub(start) > 100*time.Millisecond {
			t.Errorf("first tick after %v", at.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("first tick never fired")
	}
}

func TestPollerStopIsIdempotentAndFinal(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller("stop")
	if err := p.Start(10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)
	p.Stop()
	p.Stop()
	p.Wait()

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Errorf("tick ran after Stop: %d -> %d", after, calls.Load())
	}

	if err := p.Start(10*time.Millisecond, func(context.Context) error { return nil }); !errors.Is(err, model.ErrSessionClosed) {
		t.Errorf("Start() after Stop error = %v, want ErrSessionClosed", err)
	}
}

func TestPollerRejectsBadStart(t *testing.T) {
	p := NewPoller("bad")
	defer p.Stop()

	if err := p.Start(0, func(context.Context) error { return nil }); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("zero interval error = %v, want ErrInvalidInput", err)
	}
	if err := p.Start(time.Second, nil); !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("nil tick error = %v, want ErrInvalidInput", err)
	}
	if err := p.Start(time.Second, func(context.Context) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(time.Second, func(context.Context) error { return nil }); !errors.Is(err, model.ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}
}

func TestPollerStopCancelsInFlightTick(t *testing.T) {
	entered := make(chan struct{})
	p := NewPoller("cancel")
	if err := p.Start(time.Hour, func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatal(err)
	}
	<-entered

	done := make(chan struct{})
	go func() {
		p.Stop()
		p.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the in-flight tick")
	}
}

func TestPollerKeepsRunningAfterTickError(t *testing.T) {
	var calls atomic.Int64
	p := NewPoller("errors")
	if err := p.Start(10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("boom")
	}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(80 * time.Millisecond)
	p.Stop()
	p.Wait()

	if calls.Load() < 3 {
		t.Errorf("calls = %d, poller should keep firing after errors", calls.Load())
	}
	if stats := p.Stats(); stats.Failed != stats.Completed {
		t.Errorf("stats = %+v", stats)
	}
}
