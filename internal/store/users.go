package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
)

var ErrUserNotFound = errors.New("user not found")

// UserStore is the PostgreSQL-backed ports.UserStore adapter.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ ports.UserStore = (*UserStore)(nil)

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

// Create persists a new user, honoring a caller-supplied ID when given
// (the UserCreated reaction carries the upstream-assigned user id that
// events.user_id must match) and generating one otherwise. DateOfBirth and
// Timezone invariants (not-in-the-future, IANA-resolvable) are enforced by
// the caller (the user-context collaborator); this store only enforces
// uniqueness-free insertion — there is no natural unique key on a user
// beyond its id.
func (s *UserStore) Create(ctx context.Context, u ports.User) (*ports.User, error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, date_of_birth, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`, u.ID, u.FirstName, u.LastName, u.DateOfBirth, u.Timezone, now)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

// GetByID retrieves a user by ID
func (s *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*ports.User, error) {
	u := &ports.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, date_of_birth, timezone, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.FirstName, &u.LastName, &u.DateOfBirth, &u.Timezone, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

// UpdateBirthday sets a new date of birth and bumps updated_at.
func (s *UserStore) UpdateBirthday(ctx context.Context, id uuid.UUID, dob time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET date_of_birth = $2, updated_at = NOW() WHERE id = $1
	`, id, dob)
	if err != nil {
		return fmt.Errorf("update birthday for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateTimezone sets a new IANA timezone and bumps updated_at.
func (s *UserStore) UpdateTimezone(ctx context.Context, id uuid.UUID, zone string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET timezone = $2, updated_at = NOW() WHERE id = $1
	`, id, zone)
	if err != nil {
		return fmt.Errorf("update timezone for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes the user; owned events cascade via the FK constraint.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique_violation
// (code 23505), inspected structurally via pgconn.PgError rather than the
// teacher's string-matching helper, since pgconn is already an indirect
// pgx/v5 dependency and structural inspection cannot false-positive on an
// error message that happens to contain the substring "23505".
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
