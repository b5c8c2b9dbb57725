// Package recurrence seeds the next year's birthday event once the
// current one completes, re-reading the user the way the teacher's
// timeentry.Service re-derives state from the current persisted record
// rather than trusting a stale in-memory copy (see internal/timeentry's
// RecalculateForEvent) — so a birthday or timezone change mid-flight is
// honored rather than baked in from the completed event's snapshot.
package recurrence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/metrics"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
	"github.com/pradok/birthday-scheduler/internal/birthday/tz"
)

// Generator computes and inserts the next occurrence of a completed event.
type Generator struct {
	users  ports.UserStore
	events ports.EventStore
}

func New(users ports.UserStore, events ports.EventStore) *Generator {
	return &Generator{users: users, events: events}
}

// GenerateNext implements SPEC_FULL.md/spec.md §4.7. completed must already
// be persisted in COMPLETED state; GenerateNext does not mutate it.
func (g *Generator) GenerateNext(ctx context.Context, completed domain.Event) error {
	user, err := g.users.GetByID(ctx, completed.UserID)
	if err != nil {
		return fmt.Errorf("look up user for recurrence: %w", err)
	}
	if user == nil {
		log.Printf("recurrence: user %s no longer exists, skipping", completed.UserID)
		return nil
	}
	return g.insertOccurrence(ctx, user, completed.TargetLocal)
}

// GenerateInitial seeds the very first birthday event for a newly created
// user, reusing GenerateNext's next-occurrence math with "now" standing in
// for a prior completed event's target_local.
func (g *Generator) GenerateInitial(ctx context.Context, user *ports.User) error {
	return g.insertOccurrence(ctx, user, time.Now().UTC())
}

func (g *Generator) insertOccurrence(ctx context.Context, user *ports.User, reference time.Time) error {
	nextLocal, err := tz.NextOccurrence(user.DateOfBirth.Month(), user.DateOfBirth.Day(), reference, user.Timezone)
	if err != nil {
		return fmt.Errorf("compute next occurrence: %w", err)
	}
	targetUTC, err := tz.LocalToUTC(nextLocal.Year(), nextLocal.Month(), nextLocal.Day(), tz.DeliveryHour, tz.DeliveryMinute, user.Timezone)
	if err != nil {
		return fmt.Errorf("convert next occurrence to utc: %w", err)
	}

	key := IdempotencyKey(user.ID, targetUTC)
	next := domain.Event{
		ID:             uuid.New(),
		UserID:         user.ID,
		Type:           domain.BirthdayEvent,
		Status:         domain.StatusPending,
		TargetUTC:      targetUTC,
		TargetLocal:    nextLocal,
		TargetZone:     user.Timezone,
		Version:        1,
		IdempotencyKey: key,
		Payload:        renderPayload(user),
	}

	if _, err := g.events.Insert(ctx, next); err != nil {
		var dup *ports.DuplicateIdempotencyKeyError
		if errors.As(err, &dup) {
			log.Printf("recurrence: idempotency key %s already seeded, treating as success", key)
			metrics.RecurrenceDuplicateSwallowed.Inc()
			return nil
		}
		return fmt.Errorf("insert next occurrence: %w", err)
	}
	metrics.RecurrenceGenerated.Inc()
	return nil
}

// IdempotencyKey derives the deterministic key described in spec.md §4.7:
// event-<hex16(sha256(user_id || target_utc_iso))>.
func IdempotencyKey(userID uuid.UUID, targetUTC time.Time) string {
	h := sha256.Sum256([]byte(userID.String() + targetUTC.UTC().Format(time.RFC3339)))
	return "event-" + hex.EncodeToString(h[:])[:16]
}

func renderPayload(user *ports.User) domain.DeliveryPayload {
	return domain.DeliveryPayload{
		Message: fmt.Sprintf("Happy birthday, %s %s!", user.FirstName, user.LastName),
	}
}
