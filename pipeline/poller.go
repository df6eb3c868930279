package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

type PollerStats struct {
	Fired     int64
	Dropped   int64
	Completed int64
	Failed    int64
}

// Poller fires a tick immediately and then every interval. A firing that
// finds the previous tick still running is dropped, never queued, so at most
// one tick is in flight at any time.
type Poller struct {
	name string

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc

	inFlight atomic.Bool
	ticks    sync.WaitGroup

	fired     atomic.Int64
	dropped   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func NewPoller(name string) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		name:   name,
		stopCh: make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *Poller) Start(interval time.Duration, tick TickFunc) error {
	if interval <= 0 || tick == nil {
		return fmt.Errorf("%w: poller needs a positive interval and a tick", model.ErrInvalidInput)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("%w: poller %s was stopped", model.ErrSessionClosed, p.name)
	}
	if p.started {
		return fmt.Errorf("%w: poller %s", model.ErrAlreadyRunning, p.name)
	}
	p.started = true

	go p.run(interval, tick)
	return nil
}

func (p *Poller) run(interval time.Duration, tick TickFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.fire(tick)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.fire(tick)
		}
	}
}

func (p *Poller) fire(tick TickFunc) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.fired.Add(1)
	if !p.inFlight.CompareAndSwap(false, true) {
		p.dropped.Add(1)
		p.mu.Unlock()
		return
	}
	// Add under the lock so Stop's Wait can never miss a tick.
	p.ticks.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.ticks.Done()
		defer p.inFlight.Store(false)

		err := tick(p.ctx)
		p.completed.Add(1)
		if err != nil {
			p.failed.Add(1)
			lgr.Logger.Debug(
				"tick failed",
				slog.String("poller", p.name),
				slog.Any("error", err),
			)
		}
	}()
}

// Stop prevents any further tick from starting and cancels the context of
// the one in flight. It is safe to call more than once.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.cancel()
}

// Wait blocks until the in-flight tick, if any, has returned. Call it after
// Stop.
func (p *Poller) Wait() {
	p.ticks.Wait()
}

func (p *Poller) Stats() PollerStats {
	return PollerStats{
		Fired:     p.fired.Load(),
		Dropped:   p.dropped.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}
