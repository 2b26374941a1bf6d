package store

import (
	"context"
	"fmt"
	"time"
)

// Journal outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeCredential   = "credential_rejected"
	OutcomePrecondition = "precondition_failed"
	OutcomeTransient    = "transient"
	OutcomeNotFound     = "not_found"
	OutcomeRejected     = "rejected"
)

// JournalEntry records one sync round trip.
type JournalEntry struct {
	EventID   string    `json:"event_id"`
	Seq       int64     `json:"seq"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome"`
	Digest    string    `json:"digest,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AppendJournal inserts an entry.
// Uses ON CONFLICT(event_id) DO NOTHING for idempotency - a duplicate event
// id is silently ignored and inserted is false.
func (s *Store) AppendJournal(ctx context.Context, e JournalEntry) (inserted bool, err error) {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO journal (event_id, seq, kind, outcome, digest, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING
	`, e.EventID, e.Seq, e.Kind, e.Outcome, e.Digest, created.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("append journal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append journal: rows affected: %w", err)
	}
	return n > 0, nil
}

// Journal returns entries ordered by seq, then event id.
// limit <= 0 returns everything. Returns an empty slice (not nil) when empty.
func (s *Store) Journal(ctx context.Context, limit int) ([]JournalEntry, error) {
	return s.JournalByKind(ctx, "", limit)
}

// JournalByKind is Journal restricted to entries whose kind starts with
// prefix. An empty prefix matches every entry.
func (s *Store) JournalByKind(ctx context.Context, prefix string, limit int) ([]JournalEntry, error) {
	query := `
		SELECT event_id, seq, kind, outcome, digest, created_at
		FROM journal
	`
	args := []any{}
	if prefix != "" {
		query += ` WHERE substr(kind, 1, length(?)) = ?`
		args = append(args, prefix, prefix)
	}
	query += ` ORDER BY seq ASC, event_id COLLATE BINARY ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var created int64
		if err := rows.Scan(&e.EventID, &e.Seq, &e.Kind, &e.Outcome, &e.Digest, &created); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// LastSeq returns the highest journaled seq, or 0.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM journal`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
