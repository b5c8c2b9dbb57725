// Package scheduler implements the scheduler tick (C11) and recovery
// scanner (C10): a periodic invocation of the claim engine, fired once at
// startup and then on an interval. This is a direct adaptation of the
// teacher's internal/sync.BackgroundScheduler — same stopCh/doneCh shape
// and ticker loop, with the first tick fired immediately at startup and
// no initial delay — with the interval shortened from
// 24h to 60s and the tick-error policy tightened to match spec.md §4.9's
// guarantee that a tick error is logged but never propagated.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/pradok/birthday-scheduler/internal/birthday/metrics"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
)

// Config controls tick cadence and claim batch size.
type Config struct {
	Interval    time.Duration
	ClaimLimit  int
	StartupWait time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:   60 * time.Second,
		ClaimLimit: 100,
	}
}

// Ticker drives the claim engine on a schedule and pushes every claimed
// event onto a queue for the worker pool to pick up.
type Ticker struct {
	cfg    Config
	events ports.EventStore
	queue  ports.Queue
	clock  ports.Clock
	stopCh chan struct{}
	doneCh chan struct{}
}

func New(cfg Config, events ports.EventStore, queue ports.Queue, clock ports.Clock) *Ticker {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.ClaimLimit <= 0 {
		cfg.ClaimLimit = DefaultConfig().ClaimLimit
	}
	return &Ticker{
		cfg:    cfg,
		events: events,
		queue:  queue,
		clock:  clock,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start fires one tick immediately (the recovery pass: because the claim
// query selects target_utc <= now rather than = now, this single code
// path is mechanically identical whether it is draining a normal backlog
// or recovering from a multi-hour outage — see spec.md §4.9), then ticks
// every cfg.Interval until Stop or ctx cancellation.
func (t *Ticker) Start(ctx context.Context) {
	go func() {
		defer close(t.doneCh)

		t.tick(ctx)

		ticker := time.NewTicker(t.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.tick(ctx)
			case <-t.stopCh:
				log.Println("scheduler: tick loop stopped")
				return
			case <-ctx.Done():
				log.Println("scheduler: tick loop context cancelled")
				return
			}
		}
	}()
}

// Stop blocks until the tick loop has exited. No new claims are made
// after Stop is called; the tick is always stopped before the worker pool
// drain, per the shutdown ordering in spec.md §5.
func (t *Ticker) Stop() {
	close(t.stopCh)
	<-t.doneCh
}

// tick never propagates an error: it logs and lets the next tick retry,
// per spec.md §4.9's idempotent-tick guarantee.
func (t *Ticker) tick(ctx context.Context) {
	start := t.clock.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	claimed, err := t.events.ClaimDue(ctx, t.clock.Now(), t.cfg.ClaimLimit)
	if err != nil {
		log.Printf("scheduler: claim failed: %v", err)
		return
	}
	metrics.EventsClaimed.Add(float64(len(claimed)))

	for _, ev := range claimed {
		if err := t.queue.Enqueue(ctx, ev); err != nil {
			log.Printf("scheduler: enqueue failed for event %s: %v", ev.ID, err)
			return
		}
	}
}
