// Package domain holds the pure event model: the birthday event's fields,
// its status enum, and the transition table that governs how it mutates.
// Nothing here touches the database, the clock, or the network.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an Event.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// EventType is a closed enum; BIRTHDAY is the only variant today, but the
// type tag exists so a new variant can be added without touching the
// scheduler core (see DESIGN.md's note on polymorphism by event type).
type EventType string

const BirthdayEvent EventType = "BIRTHDAY"

// DeliveryPayload is the JSON object POSTed to the webhook. WebhookURL is
// consumed by the client and never forwarded in the outbound body.
type DeliveryPayload struct {
	Message    string `json:"message"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// Event is a transient view over a persisted row. Stores own the
// authoritative copy; this struct is what flows through the pipeline.
type Event struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Type           EventType
	Status         Status
	TargetUTC      time.Time
	TargetLocal    time.Time
	TargetZone     string
	ExecutedAt     *time.Time
	FailureReason  *string
	RetryCount     int
	Version        int
	IdempotencyKey string
	Payload        DeliveryPayload
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// InvalidTransitionError reports an attempted transition the state machine
// does not allow.
type InvalidTransitionError struct {
	From    Status
	To      Status
	Trigger string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s (trigger %q)", e.From, e.To, e.Trigger)
}

// Transition validates and applies one row mutation of the state machine:
// claim (PENDING->PROCESSING), deliver_success (PROCESSING->COMPLETED),
// deliver_permanent_failure (PROCESSING->FAILED) and reschedule
// (PENDING->PENDING); any other combination is rejected. On success it returns a copy of ev with the new
// status, the relevant side effect fields set, and version bumped by
// exactly one. now is used only for the executed_at side effect. Callers
// persist the returned value; on error ev is returned unmodified.
func Transition(ev Event, to Status, trigger string, now time.Time) (Event, error) {
	next := ev
	switch {
	case ev.Status == StatusPending && to == StatusProcessing && trigger == "claim":
		// no extra side effects beyond the status change.
	case ev.Status == StatusProcessing && to == StatusCompleted && trigger == "deliver_success":
		next.ExecutedAt = &now
	case ev.Status == StatusProcessing && to == StatusFailed && trigger == "deliver_permanent_failure":
		next.RetryCount = ev.RetryCount + 1
	case ev.Status == StatusPending && to == StatusPending && trigger == "reschedule":
		// caller has already set TargetUTC/TargetLocal/TargetZone on ev
		// before calling Transition; this branch just validates that a
		// reschedule is legal from the current state.
	default:
		return ev, &InvalidTransitionError{From: ev.Status, To: to, Trigger: trigger}
	}
	next.Status = to
	next.Version = ev.Version + 1
	return next, nil
}

// IsTerminal reports whether s permits no further outbound transitions.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed
}

// MarshalPayload renders the delivery payload for storage as JSON.
func MarshalPayload(p DeliveryPayload) ([]byte, error) {
	return json.Marshal(p)
}

// UnmarshalPayload parses a stored delivery payload.
func UnmarshalPayload(raw []byte) (DeliveryPayload, error) {
	var p DeliveryPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return DeliveryPayload{}, fmt.Errorf("unmarshal delivery payload: %w", err)
	}
	return p, nil
}
