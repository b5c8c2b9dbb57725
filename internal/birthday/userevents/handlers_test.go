package userevents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
	"github.com/pradok/birthday-scheduler/internal/birthday/recurrence"
)

type fakeUserStore struct {
	users map[uuid.UUID]*ports.User
}

func (f *fakeUserStore) Create(ctx context.Context, u ports.User) (*ports.User, error) {
	if f.users == nil {
		f.users = map[uuid.UUID]*ports.User{}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	f.users[u.ID] = &u
	return &u, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*ports.User, error) {
	return f.users[id], nil
}

type fakeEventStore struct {
	byUser  map[uuid.UUID][]domain.Event
	conflictIDs map[uuid.UUID]bool
	deleted int
	inserted []domain.Event
	updated  []domain.Event
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{byUser: map[uuid.UUID][]domain.Event{}, conflictIDs: map[uuid.UUID]bool{}}
}

func (f *fakeEventStore) Insert(ctx context.Context, ev domain.Event) (domain.Event, error) {
	f.inserted = append(f.inserted, ev)
	return ev, nil
}
func (f *fakeEventStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return nil, nil
}
func (f *fakeEventStore) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Event, error) {
	return f.byUser[userID], nil
}
func (f *fakeEventStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	n := len(f.byUser[userID])
	delete(f.byUser, userID)
	f.deleted += n
	return n, nil
}
func (f *fakeEventStore) Update(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if f.conflictIDs[ev.ID] {
		return domain.Event{}, &ports.OptimisticLockConflictError{EventID: ev.ID}
	}
	f.updated = append(f.updated, ev)
	return ev, nil
}
func (f *fakeEventStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	return nil, nil
}
func (f *fakeEventStore) FindMissed(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	return nil, nil
}

func TestHandleUserBirthdayChangedReschedulesPending(t *testing.T) {
	userID := uuid.New()
	store := newFakeEventStore()
	store.byUser[userID] = []domain.Event{
		{ID: uuid.New(), UserID: userID, Status: domain.StatusPending, Type: domain.BirthdayEvent, TargetLocal: time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)},
		{ID: uuid.New(), UserID: userID, Status: domain.StatusProcessing, Type: domain.BirthdayEvent},
	}
	users := &fakeUserStore{users: map[uuid.UUID]*ports.User{}}
	h := New(store, users, recurrence.New(users, store))

	summary, err := h.HandleUserBirthdayChanged(context.Background(), UserBirthdayChanged{
		UserID:         userID,
		NewDateOfBirth: time.Date(1990, time.April, 20, 0, 0, 0, 0, time.UTC),
		Timezone:       "UTC",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Rescheduled != 1 || summary.Skipped != 1 {
		t.Fatalf("got %+v", summary)
	}
}

func TestHandleUserBirthdayChangedSkipsOnConflict(t *testing.T) {
	userID := uuid.New()
	eventID := uuid.New()
	store := newFakeEventStore()
	store.byUser[userID] = []domain.Event{
		{ID: eventID, UserID: userID, Status: domain.StatusPending, Type: domain.BirthdayEvent, TargetLocal: time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)},
	}
	store.conflictIDs[eventID] = true
	users := &fakeUserStore{users: map[uuid.UUID]*ports.User{}}
	h := New(store, users, recurrence.New(users, store))

	summary, err := h.HandleUserBirthdayChanged(context.Background(), UserBirthdayChanged{
		UserID:         userID,
		NewDateOfBirth: time.Date(1990, time.April, 20, 0, 0, 0, 0, time.UTC),
		Timezone:       "UTC",
	})
	if err != nil {
		t.Fatalf("expected conflict to be swallowed, got error: %v", err)
	}
	if summary.Rescheduled != 0 || summary.Skipped != 1 || len(summary.SkippedIDs) != 1 {
		t.Fatalf("got %+v", summary)
	}
}

func TestHandleUserTimezoneChangedKeepsLocalConstant(t *testing.T) {
	userID := uuid.New()
	store := newFakeEventStore()
	store.byUser[userID] = []domain.Event{
		{ID: uuid.New(), UserID: userID, Status: domain.StatusPending, TargetLocal: time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)},
	}
	users := &fakeUserStore{users: map[uuid.UUID]*ports.User{}}
	h := New(store, users, recurrence.New(users, store))

	summary, err := h.HandleUserTimezoneChanged(context.Background(), UserTimezoneChanged{
		UserID:      userID,
		NewTimezone: "America/New_York",
		DateOfBirth: time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Rescheduled != 1 || len(store.updated) != 1 {
		t.Fatalf("expected 1 rescheduled event, got %+v (%d updates)", summary, len(store.updated))
	}
	got := store.updated[0]
	if !got.TargetLocal.Equal(time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("expected target_local unchanged, got %v", got.TargetLocal)
	}
	want := time.Date(2026, time.March, 15, 13, 0, 0, 0, time.UTC) // 09:00 EDT
	if !got.TargetUTC.Equal(want) {
		t.Errorf("got target_utc %v, want %v", got.TargetUTC, want)
	}
}

func TestHandleUserCreatedSeedsEvent(t *testing.T) {
	userID := uuid.New()
	store := newFakeEventStore()
	users := &fakeUserStore{users: map[uuid.UUID]*ports.User{}}
	h := New(store, users, recurrence.New(users, store))

	err := h.HandleUserCreated(context.Background(), UserCreated{
		UserID:      userID,
		FirstName:   "Ada",
		LastName:    "Lovelace",
		DateOfBirth: time.Date(1990, time.March, 15, 0, 0, 0, 0, time.UTC),
		Timezone:    "UTC",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.inserted) != 1 || store.inserted[0].UserID != userID {
		t.Fatalf("expected one seeded event for user %s, got %+v", userID, store.inserted)
	}
}

func TestHandleUserDeletedCascades(t *testing.T) {
	userID := uuid.New()
	store := newFakeEventStore()
	store.byUser[userID] = []domain.Event{{ID: uuid.New(), UserID: userID}, {ID: uuid.New(), UserID: userID}}
	users := &fakeUserStore{users: map[uuid.UUID]*ports.User{}}
	h := New(store, users, recurrence.New(users, store))

	n, err := h.HandleUserDeleted(context.Background(), UserDeleted{UserID: userID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}
}
