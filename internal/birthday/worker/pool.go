// Package worker implements the dispatch queue (C5) and worker pool (C6):
// a bounded in-process channel feeding a fixed-size goroutine pool. The
// per-item error isolation and claim->process->mark-terminal shape is
// grounded on the teacher's JobWorker.processJobs continue-on-error loop;
// the fixed concurrent pool consuming a channel with a sync.WaitGroup
// drain is grounded on the Geocoder89 event-hub worker, since the teacher
// itself only ever runs one poll goroutine at a time.
package worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/metrics"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
	"github.com/pradok/birthday-scheduler/internal/birthday/recurrence"
	"github.com/pradok/birthday-scheduler/internal/birthday/webhook"
)

// Config controls pool shape and validation defaults.
type Config struct {
	Concurrency       int
	DefaultWebhookURL string
}

func DefaultConfig() Config {
	return Config{Concurrency: 8}
}

// Pool consumes claimed events from a Queue and executes the per-event
// steps in spec.md §4.5: validate, deliver, transition, generate
// recurrence.
type Pool struct {
	cfg       Config
	queue     ports.Queue
	events    ports.EventStore
	webhook   ports.WebhookClient
	recur     *recurrence.Generator
	clock     ports.Clock
	wg        sync.WaitGroup
}

func NewPool(cfg Config, queue ports.Queue, events ports.EventStore, wh ports.WebhookClient, recur *recurrence.Generator, clock ports.Clock) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Pool{cfg: cfg, queue: queue, events: events, webhook: wh, recur: recur, clock: clock}
}

// Run starts cfg.Concurrency worker goroutines and returns immediately;
// Wait blocks until they have all returned. Each worker pulls from the
// queue until the queue is closed and drained or ctx is cancelled; an
// event it has already dequeued is processed to the end before it exits.
func (p *Pool) Run(ctx context.Context) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
}

// Wait blocks until every worker goroutine has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		ev, ok := p.queue.Dequeue(ctx)
		if !ok {
			return
		}
		if err := p.processOne(ctx, ev); err != nil {
			// Transient errors are expected (the row stays PROCESSING for
			// redelivery), and so is an optimistic lock conflict on the
			// final update (e.g. the row was deleted with its user); log
			// anything else.
			var transient *webhook.TransientDeliveryError
			var conflict *ports.OptimisticLockConflictError
			if !errors.As(err, &transient) && !errors.As(err, &conflict) {
				log.Printf("worker %d: event %s: %v", id, ev.ID, err)
			}
		}
	}
}

// processOne implements the per-event steps of spec.md §4.5. Independent
// of other items in the batch: a failure here never blocks or aborts
// sibling events, matching the teacher's processJobs continue-on-error
// loop.
func (p *Pool) processOne(ctx context.Context, ev domain.Event) error {
	payload, err := validatePayload(ev.Payload, p.cfg.DefaultWebhookURL)
	if err != nil {
		return p.fail(ctx, ev, err.Error())
	}

	result, err := p.webhook.Deliver(ctx, payload, ev.IdempotencyKey)
	if err != nil {
		var perm *webhook.PermanentDeliveryError
		if errors.As(err, &perm) {
			metrics.WebhookAttempts.WithLabelValues("permanent").Inc()
			return p.fail(ctx, ev, perm.Error())
		}
		metrics.WebhookAttempts.WithLabelValues("transient").Inc()
		metrics.EventsTransientRetry.Inc()
		return err
	}
	metrics.WebhookAttempts.WithLabelValues("success").Inc()

	return p.complete(ctx, ev, result)
}

func (p *Pool) fail(ctx context.Context, ev domain.Event, reason string) error {
	next, err := domain.Transition(ev, domain.StatusFailed, "deliver_permanent_failure", p.clock.Now())
	if err != nil {
		return err
	}
	next.FailureReason = &reason
	if _, err := p.events.Update(ctx, next); err != nil {
		return err
	}
	metrics.EventsFailed.Inc()
	return nil
}

func (p *Pool) complete(ctx context.Context, ev domain.Event, _ ports.WebhookResult) error {
	next, err := domain.Transition(ev, domain.StatusCompleted, "deliver_success", p.clock.Now())
	if err != nil {
		return err
	}
	completed, err := p.events.Update(ctx, next)
	if err != nil {
		return err
	}
	metrics.EventsCompleted.Inc()

	return p.recur.GenerateNext(ctx, completed)
}
