// Package authguard rate-limits PIN submissions.
//
// A guard allows MaxAttempts failures per cycle. The failure that exhausts
// the cycle sets an absolute lock_until deadline and refills the counter for
// the next cycle; the lock, not the counter, is what refuses attempts.
// State lives in durable storage under its own key so a lockout survives
// reloads and process restarts.
//
// Operations are read-modify-persist and assume a single caller at a time.
package authguard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/waypoint/internal/clock"
)

// Defaults.
const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 1800 * time.Second
)

// State is the persisted guard snapshot.
type State struct {
	RemainingAttempts int        `json:"remaining_attempts"`
	LockUntil         *time.Time `json:"lock_until"`
}

// Storage persists guard state.
type Storage interface {
	// LoadGuard returns the stored state, or ok=false if none exists.
	LoadGuard(ctx context.Context) (state State, ok bool, err error)
	SaveGuard(ctx context.Context, state State) error
}

// Decision is the result of Check.
type Decision struct {
	Allowed           bool  `json:"allowed"`
	WaitSeconds       int64 `json:"wait_seconds,omitempty"`
	RemainingAttempts int   `json:"remaining_attempts"`
}

// LockedError is returned when an attempt is refused by an active lock.
type LockedError struct {
	Until time.Time
	Wait  time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many attempts: try again in %d seconds", waitSeconds(e.Wait))
}

// IsLocked reports whether err is a LockedError.
func IsLocked(err error) bool {
	var le *LockedError
	return errors.As(err, &le)
}

// Guard enforces the attempt policy.
type Guard struct {
	storage     Storage
	clock       clock.Clock
	maxAttempts int
	lockout     time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithMaxAttempts sets the attempts per cycle.
func WithMaxAttempts(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithLockout sets the lock duration.
func WithLockout(d time.Duration) Option {
	return func(g *Guard) {
		if d > 0 {
			g.lockout = d
		}
	}
}

// New creates a guard over storage.
func New(storage Storage, clk clock.Clock, opts ...Option) *Guard {
	g := &Guard{
		storage:     storage,
		clock:       clk,
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Default returns the state of a fresh guard.
func (g *Guard) Default() State {
	return State{RemainingAttempts: g.maxAttempts}
}

// State loads the current state, substituting the default when none is stored.
func (g *Guard) State(ctx context.Context) (State, error) {
	st, ok, err := g.storage.LoadGuard(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load guard: %w", err)
	}
	if !ok {
		return g.Default(), nil
	}
	if st.RemainingAttempts <= 0 || st.RemainingAttempts > g.maxAttempts {
		st.RemainingAttempts = g.maxAttempts
	}
	return st, nil
}

// Check reports whether an attempt may be made now. It never consumes an
// attempt. An elapsed lock is cleared and the default state persisted.
func (g *Guard) Check(ctx context.Context) (Decision, error) {
	st, err := g.State(ctx)
	if err != nil {
		return Decision{}, err
	}
	now := g.clock.Now()
	if st.LockUntil != nil {
		if now.Before(*st.LockUntil) {
			return Decision{
				Allowed:           false,
				WaitSeconds:       waitSeconds(st.LockUntil.Sub(now)),
				RemainingAttempts: st.RemainingAttempts,
			}, nil
		}
		st = g.Default()
		if err := g.save(ctx, st); err != nil {
			return Decision{}, err
		}
	}
	return Decision{Allowed: true, RemainingAttempts: st.RemainingAttempts}, nil
}

// Acquire is Check that returns a *LockedError when refused.
func (g *Guard) Acquire(ctx context.Context) error {
	d, err := g.Check(ctx)
	if err != nil {
		return err
	}
	if !d.Allowed {
		wait := time.Duration(d.WaitSeconds) * time.Second
		return &LockedError{Until: g.clock.Now().Add(wait), Wait: wait}
	}
	return nil
}

// Fail records a rejected PIN. The failure that exhausts the cycle locks
// the guard until now+lockout and refills the counter.
func (g *Guard) Fail(ctx context.Context) (State, error) {
	st, err := g.State(ctx)
	if err != nil {
		return State{}, err
	}
	now := g.clock.Now()
	if st.LockUntil != nil && !now.Before(*st.LockUntil) {
		st = g.Default()
	}
	st.RemainingAttempts--
	if st.RemainingAttempts <= 0 {
		until := now.Add(g.lockout).UTC()
		st = State{RemainingAttempts: g.maxAttempts, LockUntil: &until}
	}
	if err := g.save(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

// Succeed resets the guard after a successful authentication.
func (g *Guard) Succeed(ctx context.Context) error {
	return g.save(ctx, g.Default())
}

func (g *Guard) save(ctx context.Context, st State) error {
	if err := g.storage.SaveGuard(ctx, st); err != nil {
		return fmt.Errorf("save guard: %w", err)
	}
	return nil
}

func waitSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// MemoryStorage keeps guard state in memory. It does not survive restarts
// and is meant for tests and ephemeral clients.
type MemoryStorage struct {
	state *State
}

// LoadGuard implements Storage.
func (m *MemoryStorage) LoadGuard(context.Context) (State, bool, error) {
	if m.state == nil {
		return State{}, false, nil
	}
	st := *m.state
	if st.LockUntil != nil {
		t := *st.LockUntil
		st.LockUntil = &t
	}
	return st, true, nil
}

// SaveGuard implements Storage.
func (m *MemoryStorage) SaveGuard(_ context.Context, st State) error {
	m.state = &st
	return nil
}
