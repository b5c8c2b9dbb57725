// Package userevents defines the inbound domain events from the user
// context as plain Go structs (the Go type stands in for the eventType
// tag; the structs define no JSON encoding) and the handlers that
// react to them. The per-row "skip on conflict, never abort the batch"
// loop is grounded on the teacher's JobWorker.processJobs continue-on-error
// shape, generalized from job failures to optimistic-lock conflicts.
package userevents

import (
	"time"

	"github.com/google/uuid"
)

// UserCreated carries the fields needed to seed a user's first birthday
// event. Handlers.HandleUserCreated delegates to the recurrence
// package's GenerateInitial, which shares GenerateNext's next-occurrence
// computation.
type UserCreated struct {
	UserID      uuid.UUID
	OccurredAt  time.Time
	FirstName   string
	LastName    string
	DateOfBirth time.Time
	Timezone    string
}

type UserBirthdayChanged struct {
	UserID        uuid.UUID
	OccurredAt    time.Time
	OldDateOfBirth time.Time
	NewDateOfBirth time.Time
	Timezone      string
}

type UserTimezoneChanged struct {
	UserID      uuid.UUID
	OccurredAt  time.Time
	OldTimezone string
	NewTimezone string
	DateOfBirth time.Time
}

type UserDeleted struct {
	UserID     uuid.UUID
	OccurredAt time.Time
}

// RescheduleSummary reports the outcome of a batch reschedule so one
// OptimisticLockConflict never fails the whole operation.
type RescheduleSummary struct {
	Rescheduled int
	Skipped     int
	SkippedIDs  []uuid.UUID
}
