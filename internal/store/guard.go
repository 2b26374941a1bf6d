package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/waypoint/internal/authguard"
)

var _ authguard.Storage = (*Store)(nil)

// LoadGuard implements authguard.Storage.
func (s *Store) LoadGuard(ctx context.Context) (authguard.State, bool, error) {
	var remaining int
	var lockUntil sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT remaining_attempts, lock_until FROM auth_guard WHERE id = 1
	`).Scan(&remaining, &lockUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return authguard.State{}, false, nil
	}
	if err != nil {
		return authguard.State{}, false, fmt.Errorf("load guard: %w", err)
	}

	st := authguard.State{RemainingAttempts: remaining}
	if lockUntil.Valid {
		t := time.UnixMilli(lockUntil.Int64).UTC()
		st.LockUntil = &t
	}
	return st, true, nil
}

// SaveGuard implements authguard.Storage. lock_until is stored as absolute
// unix milliseconds.
func (s *Store) SaveGuard(ctx context.Context, st authguard.State) error {
	var lockUntil sql.NullInt64
	if st.LockUntil != nil {
		lockUntil = sql.NullInt64{Int64: st.LockUntil.UnixMilli(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_guard (id, remaining_attempts, lock_until)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remaining_attempts = excluded.remaining_attempts,
			lock_until = excluded.lock_until
	`, st.RemainingAttempts, lockUntil)
	if err != nil {
		return fmt.Errorf("save guard: %w", err)
	}
	return nil
}
