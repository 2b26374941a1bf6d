// Package store provides durable client-side storage for the quest engine.
//
// It is the device cache: the last known profile/session snapshot, the auth
// guard state, and a journal of sync round trips. It is best effort; the
// remote authority owns the real state.
//
// SQLite is opened in WAL mode with a single connection, so every write is
// serialized. The credential is never written here.
//
// TABLES:
//   - snapshot: single row, profile + session JSON and its canonical digest
//   - auth_guard: single row, attempt counter and absolute lock deadline
//   - journal: one row per sync round trip, idempotent on event_id
package store
