// Package ports declares the small interfaces the scheduling core depends
// on, following the teacher's CalendarClient idiom: a narrow interface per
// external concern plus a compile-time assertion on the concrete adapter.
// Tests substitute fakes for these interfaces; production wiring supplies
// the real Postgres, HTTP, and channel-backed adapters.
package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
)

// DuplicateIdempotencyKeyError is returned by EventStore.Insert when the
// derived idempotency key already exists — an insert race, not a bug.
type DuplicateIdempotencyKeyError struct {
	Key string
}

func (e *DuplicateIdempotencyKeyError) Error() string {
	return fmt.Sprintf("duplicate idempotency key %q", e.Key)
}

// OptimisticLockConflictError is returned by EventStore.Update when the
// caller's expected version no longer matches the stored row.
type OptimisticLockConflictError struct {
	EventID uuid.UUID
}

func (e *OptimisticLockConflictError) Error() string {
	return fmt.Sprintf("optimistic lock conflict on event %s", e.EventID)
}

// Clock is the sole source of "now" for the scheduling core, so tests can
// advance time deterministically instead of racing the wall clock.
type Clock interface {
	Now() time.Time
}

// User is the user-context aggregate as seen by the scheduling core.
type User struct {
	ID          uuid.UUID
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Timezone    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserStore is the surface the core needs over the user aggregate. Full
// user CRUD (listing, search, profile fields beyond what scheduling needs)
// lives outside the core (see SPEC_FULL.md §1); Create exists because the
// core's own UserCreated reaction is the one place that must persist a row
// before it can seed that user's first event.
type UserStore interface {
	Create(ctx context.Context, u User) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// EventStore is the persistence port for Event rows, covering every
// operation C2/C4 need: CRUD, the optimistic-lock update, and the atomic
// claim.
type EventStore interface {
	Insert(ctx context.Context, ev domain.Event) (domain.Event, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Event, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error)
	Update(ctx context.Context, ev domain.Event) (domain.Event, error)
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
	FindMissed(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)
}

// Queue carries claimed events from the claim engine to the worker pool.
// Enqueue blocks when the underlying channel is full, providing the
// required backpressure; it never drops an item.
type Queue interface {
	Enqueue(ctx context.Context, ev domain.Event) error
	Dequeue(ctx context.Context) (domain.Event, bool)
	Close()
}

// WebhookResult classifies the outcome of one delivery attempt sequence.
type WebhookResult struct {
	StatusCode int
	Body       string
}

// WebhookClient delivers a rendered payload to its target URL.
type WebhookClient interface {
	Deliver(ctx context.Context, payload domain.DeliveryPayload, idempotencyKey string) (WebhookResult, error)
}
