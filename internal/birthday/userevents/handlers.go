package userevents

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
	"github.com/pradok/birthday-scheduler/internal/birthday/recurrence"
	"github.com/pradok/birthday-scheduler/internal/birthday/tz"
)

// Handlers reacts to user-context domain events by mutating PENDING rows
// in the event store. Every batch operation below implements the "skip
// and log on conflict, never abort" rule from spec.md §4.8.
type Handlers struct {
	events ports.EventStore
	users  ports.UserStore
	seed   *recurrence.Generator
}

func New(events ports.EventStore, users ports.UserStore, seed *recurrence.Generator) *Handlers {
	return &Handlers{events: events, users: users, seed: seed}
}

// HandleUserCreated persists the user row (events.user_id carries a
// foreign key to it) and then seeds the user's first birthday event,
// sharing GenerateNext's next-occurrence computation via GenerateInitial.
func (h *Handlers) HandleUserCreated(ctx context.Context, ev UserCreated) error {
	user, err := h.users.Create(ctx, ports.User{
		ID:          ev.UserID,
		FirstName:   ev.FirstName,
		LastName:    ev.LastName,
		DateOfBirth: ev.DateOfBirth,
		Timezone:    ev.Timezone,
	})
	if err != nil {
		return fmt.Errorf("persist user %s: %w", ev.UserID, err)
	}
	if err := h.seed.GenerateInitial(ctx, user); err != nil {
		return fmt.Errorf("seed initial event for user %s: %w", ev.UserID, err)
	}
	return nil
}

// HandleUserBirthdayChanged recomputes every PENDING BIRTHDAY event's
// target using the new date of birth and the user's persisted timezone.
func (h *Handlers) HandleUserBirthdayChanged(ctx context.Context, ev UserBirthdayChanged) (RescheduleSummary, error) {
	pending, err := h.events.FindByUser(ctx, ev.UserID)
	if err != nil {
		return RescheduleSummary{}, err
	}

	var summary RescheduleSummary
	for _, e := range pending {
		if e.Status != domain.StatusPending || e.Type != domain.BirthdayEvent {
			summary.Skipped++
			summary.SkippedIDs = append(summary.SkippedIDs, e.ID)
			continue
		}

		nextLocal, err := tz.NextOccurrence(ev.NewDateOfBirth.Month(), ev.NewDateOfBirth.Day(), e.TargetLocal, ev.Timezone)
		if err != nil {
			return summary, err
		}
		targetUTC, err := tz.LocalToUTC(nextLocal.Year(), nextLocal.Month(), nextLocal.Day(), tz.DeliveryHour, tz.DeliveryMinute, ev.Timezone)
		if err != nil {
			return summary, err
		}

		e.TargetLocal = nextLocal
		e.TargetUTC = targetUTC
		e.TargetZone = ev.Timezone

		if err := h.reschedule(ctx, &summary, e); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// HandleUserTimezoneChanged keeps target_local constant and recomputes
// target_utc under the new zone, for every PENDING event of any type.
func (h *Handlers) HandleUserTimezoneChanged(ctx context.Context, ev UserTimezoneChanged) (RescheduleSummary, error) {
	pending, err := h.events.FindByUser(ctx, ev.UserID)
	if err != nil {
		return RescheduleSummary{}, err
	}

	var summary RescheduleSummary
	for _, e := range pending {
		if e.Status != domain.StatusPending {
			summary.Skipped++
			summary.SkippedIDs = append(summary.SkippedIDs, e.ID)
			continue
		}

		targetUTC, err := tz.LocalToUTC(e.TargetLocal.Year(), e.TargetLocal.Month(), e.TargetLocal.Day(), tz.DeliveryHour, tz.DeliveryMinute, ev.NewTimezone)
		if err != nil {
			return summary, err
		}
		e.TargetUTC = targetUTC
		e.TargetZone = ev.NewTimezone

		if err := h.reschedule(ctx, &summary, e); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

// reschedule applies the PENDING->PENDING transition and persists it,
// treating an OptimisticLockConflict as a skip rather than a batch
// failure — another process already won the race on this row.
func (h *Handlers) reschedule(ctx context.Context, summary *RescheduleSummary, e domain.Event) error {
	next, err := domain.Transition(e, domain.StatusPending, "reschedule", e.UpdatedAt)
	if err != nil {
		return err
	}

	if _, err := h.events.Update(ctx, next); err != nil {
		var conflict *ports.OptimisticLockConflictError
		if errors.As(err, &conflict) {
			log.Printf("userevents: optimistic lock conflict rescheduling event %s, skipping", e.ID)
			summary.Skipped++
			summary.SkippedIDs = append(summary.SkippedIDs, e.ID)
			return nil
		}
		return err
	}
	summary.Rescheduled++
	return nil
}

// HandleUserDeleted cascades deletion of every event owned by the user.
// Rows currently PROCESSING are deleted too; an in-flight worker finds no
// row on its completion update (an OptimisticLockConflictError, which the
// worker does not log) and stops without seeding recurrence (safe: idempotency
// keys are globally unique and the user no longer exists to notify).
func (h *Handlers) HandleUserDeleted(ctx context.Context, ev UserDeleted) (int, error) {
	return h.events.DeleteByUser(ctx, ev.UserID)
}
