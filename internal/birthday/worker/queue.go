package worker

import (
	"context"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
)

// ChannelQueue is the in-process bounded-channel Queue adapter chosen to
// resolve the open question in SPEC_FULL.md §7/spec.md §9: the teacher's
// own architecture has no external broker anywhere, so the dispatch queue
// stays in-process and relies on the stuck-PROCESSING reclamation in
// EventStore.ClaimDue for crash recovery instead of broker-native
// redelivery.
type ChannelQueue struct {
	ch chan domain.Event
}

var _ ports.Queue = (*ChannelQueue)(nil)

// NewChannelQueue creates a queue with the given buffer size. Enqueue
// blocks once the buffer is full, which is the backpressure contract
// required of C5.
func NewChannelQueue(capacity int) *ChannelQueue {
	return &ChannelQueue{ch: make(chan domain.Event, capacity)}
}

func (q *ChannelQueue) Enqueue(ctx context.Context, ev domain.Event) error {
	select {
	case q.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Dequeue(ctx context.Context) (domain.Event, bool) {
	select {
	case ev, ok := <-q.ch:
		return ev, ok
	case <-ctx.Done():
		return domain.Event{}, false
	}
}

func (q *ChannelQueue) Close() {
	close(q.ch)
}
