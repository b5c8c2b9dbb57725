package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
)

// DefaultVisibilityTimeout is how long a PROCESSING row may sit unreclaimed
// before ClaimDue treats it as crashed and reclaims it, per spec.md §4.5,
// used when NewEventStore is not given an override.
const DefaultVisibilityTimeout = 10 * time.Minute

// EventStore is the PostgreSQL-backed ports.EventStore adapter. Its claim
// query is a direct generalization of the teacher's SyncJobStore.ClaimNextJob
// (single-row FOR UPDATE SKIP LOCKED) widened to a LIMIT-bounded batch, the
// way ErlanBelekov-dist-job-scheduler's ScheduleRepository.ClaimAndFire
// claims many due rows in one statement before a caller iterates them.
type EventStore struct {
	pool              *pgxpool.Pool
	visibilityTimeout time.Duration
}

var _ ports.EventStore = (*EventStore)(nil)

// NewEventStore wires visibilityTimeout as the stuck-PROCESSING reclamation
// threshold ClaimDue applies; pass 0 to use DefaultVisibilityTimeout.
func NewEventStore(pool *pgxpool.Pool, visibilityTimeout time.Duration) *EventStore {
	if visibilityTimeout <= 0 {
		visibilityTimeout = DefaultVisibilityTimeout
	}
	return &EventStore{pool: pool, visibilityTimeout: visibilityTimeout}
}

// Insert persists a new event row. A unique_violation on idempotency_key
// surfaces as *ports.DuplicateIdempotencyKeyError.
func (s *EventStore) Insert(ctx context.Context, ev domain.Event) (domain.Event, error) {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	now := time.Now().UTC()
	ev.CreatedAt = now
	ev.UpdatedAt = now
	if ev.Version == 0 {
		ev.Version = 1
	}

	payload, err := domain.MarshalPayload(ev.Payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (
			id, user_id, type, status, target_utc, target_local, target_zone,
			executed_at, failure_reason, retry_count, version, idempotency_key,
			delivery_payload, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14, $14)
	`, ev.ID, ev.UserID, ev.Type, ev.Status, ev.TargetUTC, ev.TargetLocal, ev.TargetZone,
		ev.ExecutedAt, ev.FailureReason, ev.RetryCount, ev.Version, ev.IdempotencyKey,
		payload, now)
	if err != nil {
		if isDuplicateKeyError(err) {
			return domain.Event{}, &ports.DuplicateIdempotencyKeyError{Key: ev.IdempotencyKey}
		}
		return domain.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return ev, nil
}

// FindByID retrieves a single event, or (nil, nil) if it does not exist.
func (s *EventStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := s.pool.QueryRow(ctx, selectEventColumns+` FROM events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find event %s: %w", id, err)
	}
	return ev, nil
}

// FindByUser returns every event owned by userID, earliest target_utc first.
func (s *EventStore) FindByUser(ctx context.Context, userID uuid.UUID) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, selectEventColumns+` FROM events WHERE user_id = $1 ORDER BY target_utc ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("find events for user %s: %w", userID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DeleteByUser cascade-deletes every event owned by userID and reports
// the number of rows removed, including ones in PROCESSING (spec.md §4.8).
func (s *EventStore) DeleteByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete events for user %s: %w", userID, err)
	}
	return int(tag.RowsAffected()), nil
}

// Update persists ev conditional on (id, version) matching the stored
// row's current (id, expected-previous-version): ev.Version is the NEW
// version the caller wants to write, so the WHERE clause checks
// version = ev.Version - 1. A zero RowsAffected means either the row is
// gone or another writer already advanced it past our expectation, both
// of which are reported uniformly as *ports.OptimisticLockConflictError.
func (s *EventStore) Update(ctx context.Context, ev domain.Event) (domain.Event, error) {
	payload, err := domain.MarshalPayload(ev.Payload)
	if err != nil {
		return domain.Event{}, fmt.Errorf("marshal payload: %w", err)
	}
	now := time.Now().UTC()

	tag, err := s.pool.Exec(ctx, `
		UPDATE events SET
			status = $3, target_utc = $4, target_local = $5, target_zone = $6,
			executed_at = $7, failure_reason = $8, retry_count = $9, version = $10,
			delivery_payload = $11::jsonb, updated_at = $12
		WHERE id = $1 AND version = $2
	`, ev.ID, ev.Version-1, ev.Status, ev.TargetUTC, ev.TargetLocal, ev.TargetZone,
		ev.ExecutedAt, ev.FailureReason, ev.RetryCount, ev.Version, payload, now)
	if err != nil {
		return domain.Event{}, fmt.Errorf("update event %s: %w", ev.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Event{}, &ports.OptimisticLockConflictError{EventID: ev.ID}
	}
	ev.UpdatedAt = now
	return ev, nil
}

// ClaimDue is the atomic claim primitive (C4): it selects PENDING rows due
// now, plus stuck-PROCESSING rows past the visibility timeout, locking
// with FOR UPDATE SKIP LOCKED so concurrent callers never double-claim,
// and advances each to PROCESSING with version+1 inside one transaction.
func (s *EventStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		UPDATE events SET status = 'PROCESSING', version = version + 1, updated_at = $1
		WHERE id IN (
			SELECT id FROM events
			WHERE (status = 'PENDING' AND target_utc <= $1)
			   OR (status = 'PROCESSING' AND updated_at < $1 - ($2 * INTERVAL '1 second'))
			ORDER BY target_utc ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+eventColumns, now, s.visibilityTimeout.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("claim due events: %w", err)
	}
	claimed, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim transaction: %w", err)
	}
	return claimed, nil
}

// FindMissed is a read-only diagnostic: PENDING rows already past due,
// ordered ascending. It never mutates state; operators use it to answer
// "how far behind are we" without affecting the claim engine.
func (s *EventStore) FindMissed(ctx context.Context, now time.Time, limit int) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, selectEventColumns+`
		FROM events WHERE status = 'PENDING' AND target_utc < $1
		ORDER BY target_utc ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find missed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

const eventColumns = `
	id, user_id, type, status, target_utc, target_local, target_zone,
	executed_at, failure_reason, retry_count, version, idempotency_key,
	delivery_payload, created_at, updated_at`

const selectEventColumns = `SELECT ` + eventColumns

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	var ev domain.Event
	var payload []byte
	if err := row.Scan(
		&ev.ID, &ev.UserID, &ev.Type, &ev.Status, &ev.TargetUTC, &ev.TargetLocal, &ev.TargetZone,
		&ev.ExecutedAt, &ev.FailureReason, &ev.RetryCount, &ev.Version, &ev.IdempotencyKey,
		&payload, &ev.CreatedAt, &ev.UpdatedAt,
	); err != nil {
		return nil, err
	}
	decoded, err := domain.UnmarshalPayload(payload)
	if err != nil {
		return nil, err
	}
	ev.Payload = decoded
	return &ev, nil
}

func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
