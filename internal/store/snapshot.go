package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/waypoint/internal/session"
)

// SaveSnapshot replaces the cached profile/session pair.
// Returns the session digest that was stored.
func (s *Store) SaveSnapshot(ctx context.Context, snap session.Snapshot) (string, error) {
	profileJSON, err := json.Marshal(snap.Profile)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	sessionJSON, err := json.Marshal(snap.Session)
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	digest, err := snap.Session.Digest()
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshot (id, profile, session, digest, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			profile = excluded.profile,
			session = excluded.session,
			digest = excluded.digest,
			updated_at = excluded.updated_at
	`, string(profileJSON), string(sessionJSON), digest, time.Now().UnixMilli())
	if err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return digest, nil
}

// LoadSnapshot returns the cached snapshot, or ok=false if there is none.
func (s *Store) LoadSnapshot(ctx context.Context) (snap session.Snapshot, ok bool, err error) {
	var profileJSON, sessionJSON string
	err = s.db.QueryRowContext(ctx, `
		SELECT profile, session FROM snapshot WHERE id = 1
	`).Scan(&profileJSON, &sessionJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, false, nil
	}
	if err != nil {
		return session.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(profileJSON), &snap.Profile); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("load snapshot: profile: %w", err)
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(sessionJSON), &sess); err != nil {
		return session.Snapshot{}, false, fmt.Errorf("load snapshot: session: %w", err)
	}
	snap.Session = session.Replace(sess)
	return snap, true, nil
}

// ClearSnapshot removes the cached snapshot. Guard state is kept.
func (s *Store) ClearSnapshot(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshot`); err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}

// Forget clears all local state: snapshot, guard and journal.
func (s *Store) Forget(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("forget: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, table := range []string{"snapshot", "auth_guard", "journal"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("forget: %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("forget: commit: %w", err)
	}
	return nil
}
