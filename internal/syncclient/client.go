// Package syncclient ties the local cache to the remote authority.
//
// Every session-mutating call follows the same protocol: require an active
// credential, take the busy flag, apply the delta optimistically to the
// displayed session, send it, and on success merge the authoritative reply
// into the committed session and persist it. A 401 evicts the credential
// and routes the player to re-authentication; any other failure reverts the
// displayed session to the committed one. The busy flag is released on
// every path.
//
// Sessions are replaced wholesale through atomic pointers, never mutated in
// place, so readers always see some complete prior state.
package syncclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/waypoint/internal/api"
	"github.com/roach88/waypoint/internal/authguard"
	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/store"
	"github.com/roach88/waypoint/internal/story"
)

// Cache is the durable client storage used by the client.
type Cache interface {
	SaveSnapshot(ctx context.Context, snap session.Snapshot) (string, error)
	LoadSnapshot(ctx context.Context) (session.Snapshot, bool, error)
	ClearSnapshot(ctx context.Context) error
	Forget(ctx context.Context) error
	AppendJournal(ctx context.Context, e store.JournalEntry) (bool, error)
	LastSeq(ctx context.Context) (int64, error)
}

var _ Cache = (*store.Store)(nil)

// Options controls one PostUpdate.
type Options struct {
	// KeepCurrentView keeps the locally displayed scene instead of the
	// authority's last_scene.
	KeepCurrentView bool
	// Event names the optional event record sent with the patch.
	Event string
	// Data is attached to the event record.
	Data map[string]any
	// Reset asks the authority to start the session over; the reply
	// replaces the local session wholesale.
	Reset bool
}

// Client is the sync client.
type Client struct {
	remote Remote
	cache  Cache
	guard  *authguard.Guard
	clock  clock.Clock
	ids    func() string
	logger *slog.Logger
	creds  Credentials

	committed atomic.Pointer[session.Snapshot]
	displayed atomic.Pointer[session.Snapshot]
	busy      atomic.Bool
	seq       atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithClock sets the clock used for journal timestamps.
func WithClock(c clock.Clock) Option {
	return func(cl *Client) { cl.clock = c }
}

// WithIDs sets the event id generator. Defaults to UUIDv7.
func WithIDs(gen func() string) Option {
	return func(cl *Client) { cl.ids = gen }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) { cl.logger = l }
}

// New returns a client. guard rate-limits Authenticate.
func New(remote Remote, cache Cache, guard *authguard.Guard, opts ...Option) *Client {
	c := &Client{
		remote: remote,
		cache:  cache,
		guard:  guard,
		clock:  clock.System{},
		ids:    func() string { return uuid.Must(uuid.NewV7()).String() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore loads the cached snapshot into memory. The credential is not
// restored; NeedsAuth stays true until Authenticate succeeds.
func (c *Client) Restore(ctx context.Context) (session.Snapshot, bool, error) {
	seq, err := c.cache.LastSeq(ctx)
	if err != nil {
		return session.Snapshot{}, false, fmt.Errorf("restore: %w", err)
	}
	c.seq.Store(seq)

	snap, ok, err := c.cache.LoadSnapshot(ctx)
	if err != nil || !ok {
		return session.Snapshot{}, false, err
	}
	c.install(snap)
	if _, _, active := c.creds.Get(); !active {
		c.creds.Evict(snap.Profile.TrainerName)
	}
	return snap, true, nil
}

// Enabled asks the authority whether the quest is switched on.
func (c *Client) Enabled(ctx context.Context) (bool, error) {
	st, err := c.remote.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Enabled, nil
}

// FetchStory downloads the story graph.
func (c *Client) FetchStory(ctx context.Context) (*story.Graph, error) {
	return c.remote.Story(ctx)
}

// Authenticate exchanges a trainer name and PIN for a profile. The guard is
// checked first; a 401 consumes an attempt and success resets the guard.
func (c *Client) Authenticate(ctx context.Context, name, pin string, create bool) (session.Snapshot, error) {
	if !validPIN(pin) {
		return session.Snapshot{}, ErrInvalidPIN
	}
	if err := c.guard.Acquire(ctx); err != nil {
		return session.Snapshot{}, err
	}

	snap, err := c.remote.Profile(ctx, api.ProfileRequest{
		TrainerName:     name,
		PIN:             pin,
		CreateIfMissing: create,
	})
	if err != nil {
		c.journal(ctx, c.nextEvent("profile"), err, "")
		if IsCredentialRejected(err) {
			c.creds.Evict(name)
			st, gerr := c.guard.Fail(ctx)
			if gerr != nil {
				return session.Snapshot{}, fmt.Errorf("authenticate: %w", gerr)
			}
			c.logger.Info("PIN rejected", "remaining_attempts", st.RemainingAttempts)
		}
		return session.Snapshot{}, err
	}

	if err := c.guard.Succeed(ctx); err != nil {
		return session.Snapshot{}, fmt.Errorf("authenticate: %w", err)
	}
	c.creds.Set(snap.Profile, pin)

	// Progress cached for the same profile is merged, not discarded.
	if local := c.committed.Load(); local != nil && local.Profile.ID == snap.Profile.ID {
		snap.Session = session.MergeSession(local.Session, snap.Session)
	} else {
		snap.Session = session.Replace(snap.Session)
	}
	digest := c.commit(ctx, snap)
	c.journal(ctx, c.nextEvent("profile"), nil, digest)
	c.logger.Info("authenticated", "profile_id", snap.Profile.ID, "act", snap.Session.CurrentAct)
	return snap, nil
}

// PostUpdate sends a state delta to the authority and reconciles the reply.
func (c *Client) PostUpdate(ctx context.Context, delta session.Update, opts Options) (session.Session, error) {
	return c.roundTrip(ctx, "session", delta, opts, func(p session.Profile, pin string, ev *api.Event) (session.Snapshot, error) {
		d := delta
		return c.remote.Session(ctx, api.SessionRequest{
			ProfileID: p.ID,
			PIN:       pin,
			State:     &d,
			Event:     ev,
			Reset:     opts.Reset,
		})
	})
}

// SubmitMinigame posts a challenge result. local is the locally validated
// outcome, shown optimistically until the authority answers.
func (c *Client) SubmitMinigame(ctx context.Context, kind story.Kind, req api.MinigameRequest, local session.Update) (session.Session, error) {
	opts := Options{KeepCurrentView: true, Event: "minigame." + string(kind)}
	return c.roundTrip(ctx, "minigame", local, opts, func(p session.Profile, pin string, ev *api.Event) (session.Snapshot, error) {
		r := req
		r.ProfileID, r.PIN, r.Event = p.ID, pin, ev
		return c.remote.Minigame(ctx, kind, r)
	})
}

type call func(p session.Profile, pin string, ev *api.Event) (session.Snapshot, error)

func (c *Client) roundTrip(ctx context.Context, kind string, delta session.Update, opts Options, send call) (session.Session, error) {
	profile, pin, active := c.creds.Get()
	committed := c.committed.Load()
	if !active || committed == nil {
		return session.Session{}, ErrNotAuthenticated
	}
	if !c.busy.CompareAndSwap(false, true) {
		return session.Session{}, ErrBusy
	}
	defer c.busy.Store(false)

	view := c.displayed.Load()
	if !opts.Reset {
		optimistic := session.Snapshot{
			Profile: committed.Profile,
			Session: session.ApplyLocal(view.Session, delta),
		}
		c.displayed.Store(&optimistic)
	}

	name := opts.Event
	if name == "" {
		name = kind
	}
	ev := c.nextEvent(name)
	ev.Data = opts.Data
	reply, err := send(profile, pin, &ev)
	if err != nil {
		c.displayed.Store(committed)
		c.journal(ctx, ev, err, "")
		if IsCredentialRejected(err) {
			c.creds.Evict(profile.TrainerName)
			c.logger.Info("credential evicted", "profile_id", profile.ID)
		} else {
			c.logger.Warn("sync failed", "kind", kind, "error", err)
		}
		return session.Session{}, err
	}

	next := session.Snapshot{Profile: reply.Profile}
	if opts.Reset {
		next.Session = session.Replace(reply.Session)
	} else {
		next.Session = session.MergeSession(committed.Session, reply.Session)
	}
	if opts.KeepCurrentView && view.Session.LastScene != nil {
		scene := *view.Session.LastScene
		next.Session.LastScene = &scene
	}
	digest := c.commit(ctx, next)
	c.journal(ctx, ev, nil, digest)
	return next.Session.Clone(), nil
}

// commit installs snap as committed and displayed state and persists it.
func (c *Client) commit(ctx context.Context, snap session.Snapshot) string {
	c.install(snap)
	digest, err := c.cache.SaveSnapshot(ctx, snap)
	if err != nil {
		c.logger.Warn("persist snapshot", "error", err)
	}
	return digest
}

func (c *Client) install(snap session.Snapshot) {
	committed := snap
	displayed := session.Snapshot{Profile: snap.Profile, Session: snap.Session.Clone()}
	c.committed.Store(&committed)
	c.displayed.Store(&displayed)
}

func (c *Client) nextEvent(name string) api.Event {
	return api.Event{ID: c.ids(), Seq: c.seq.Add(1), Type: name}
}

func (c *Client) journal(ctx context.Context, ev api.Event, err error, digest string) {
	_, jerr := c.cache.AppendJournal(ctx, store.JournalEntry{
		EventID:   ev.ID,
		Seq:       ev.Seq,
		Kind:      ev.Type,
		Outcome:   outcomeOf(err),
		Digest:    digest,
		CreatedAt: c.clock.Now(),
	})
	if jerr != nil {
		c.logger.Warn("journal append", "event_id", ev.ID, "error", jerr)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return store.OutcomeOK
	case IsCredentialRejected(err):
		return store.OutcomeCredential
	case IsPrecondition(err):
		return store.OutcomePrecondition
	case IsNotFound(err):
		return store.OutcomeNotFound
	case IsRejected(err):
		return store.OutcomeRejected
	default:
		return store.OutcomeTransient
	}
}

// Session returns the displayed session.
func (c *Client) Session() (session.Session, bool) {
	snap := c.displayed.Load()
	if snap == nil {
		return session.Session{}, false
	}
	return snap.Session.Clone(), true
}

// Committed returns the last authoritative snapshot.
func (c *Client) Committed() (session.Snapshot, bool) {
	snap := c.committed.Load()
	if snap == nil {
		return session.Snapshot{}, false
	}
	return session.Snapshot{Profile: snap.Profile, Session: snap.Session.Clone()}, true
}

// Busy reports whether a request is in flight.
func (c *Client) Busy() bool {
	return c.busy.Load()
}

// NeedsAuth reports whether the player must (re)enter a PIN.
func (c *Client) NeedsAuth() bool {
	_, _, active := c.creds.Get()
	return !active
}

// PendingTrainer returns the trainer name to prefill on the PIN prompt.
func (c *Client) PendingTrainer() string {
	return c.creds.Pending()
}

// Logout drops the credential and the cached snapshot. Guard state is kept.
func (c *Client) Logout(ctx context.Context) error {
	c.creds.Clear()
	c.committed.Store(nil)
	c.displayed.Store(nil)
	return c.cache.ClearSnapshot(ctx)
}

// Forget clears all local state: credential, snapshot, guard and journal.
func (c *Client) Forget(ctx context.Context) error {
	c.creds.Clear()
	c.committed.Store(nil)
	c.displayed.Store(nil)
	c.seq.Store(0)
	return c.cache.Forget(ctx)
}

// Guard returns the auth guard.
func (c *Client) Guard() *authguard.Guard {
	return c.guard
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
