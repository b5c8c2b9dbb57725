package userevents

import (
	"context"
	"fmt"
)

// Bus dispatches an inbound user-context domain event to its typed
// handler via a type switch — the same "polymorphism on event type" shape
// the webhook client's classify() applies to outbound delivery outcomes,
// applied here one level up to inbound events instead.
type Bus struct {
	handlers *Handlers
}

func NewBus(handlers *Handlers) *Bus {
	return &Bus{handlers: handlers}
}

// Dispatch routes ev to the matching handler. The return value on success
// is handler-specific (RescheduleSummary, deleted count, or nil) and is
// mainly useful to callers that want to log or assert on it; cmd/seed
// prints it.
func (b *Bus) Dispatch(ctx context.Context, ev any) (any, error) {
	switch e := ev.(type) {
	case UserCreated:
		return nil, b.handlers.HandleUserCreated(ctx, e)
	case UserBirthdayChanged:
		return b.handlers.HandleUserBirthdayChanged(ctx, e)
	case UserTimezoneChanged:
		return b.handlers.HandleUserTimezoneChanged(ctx, e)
	case UserDeleted:
		return b.handlers.HandleUserDeleted(ctx, e)
	default:
		return nil, fmt.Errorf("userevents: unrecognized domain event type %T", ev)
	}
}
