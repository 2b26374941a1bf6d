package cli

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/waypoint/internal/authguard"
	"github.com/roach88/waypoint/internal/clock"
	"github.com/roach88/waypoint/internal/config"
	"github.com/roach88/waypoint/internal/engine"
	"github.com/roach88/waypoint/internal/nav"
	"github.com/roach88/waypoint/internal/store"
	"github.com/roach88/waypoint/internal/story"
	"github.com/roach88/waypoint/internal/syncclient"
)

// device is the player's side of the quest: the local store, the sync
// client talking to the authority and, once started, the engine loop.
type device struct {
	cfg    config.Config
	store  *store.Store
	client *syncclient.Client
	graph  *story.Graph

	engine *engine.Engine
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// openDevice opens the device database and restores the cached session.
// The credential is never cached, so mutating commands call authenticate.
func openDevice(ctx context.Context, opts *RootOptions) (*device, error) {
	cfg, err := opts.Config()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	slog.Debug("opening device database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open device database", err)
	}

	guard := authguard.New(st, clock.System{},
		authguard.WithMaxAttempts(cfg.MaxAttempts),
		authguard.WithLockout(cfg.Lockout),
	)
	client := syncclient.New(
		syncclient.NewHTTPRemote(cfg.AuthorityURL, cfg.HTTPTimeout), st, guard,
		syncclient.WithLogger(slog.Default()),
	)
	if _, _, err := client.Restore(ctx); err != nil {
		_ = st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to restore session", err)
	}

	return &device{cfg: cfg, store: st, client: client}, nil
}

// authenticate re-enters the PIN for the cached profile.
func (d *device) authenticate(ctx context.Context) error {
	if !d.client.NeedsAuth() {
		return nil
	}
	name := d.client.PendingTrainer()
	if name == "" {
		return NewExitError(ExitCommandError, "no profile on this device: run waypoint login --trainer NAME")
	}
	if d.cfg.PIN == "" {
		return syncclient.ErrNotAuthenticated
	}
	_, err := d.client.Authenticate(ctx, name, d.cfg.PIN, false)
	return err
}

// story downloads the story graph from the authority once per command.
func (d *device) story(ctx context.Context) (*story.Graph, error) {
	if d.graph != nil {
		return d.graph, nil
	}
	g, err := d.client.FetchStory(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to fetch story", err)
	}
	d.graph = g
	return g, nil
}

// render draws the displayed session without going through the engine.
func (d *device) render(ctx context.Context) (nav.RenderModel, error) {
	s, ok := d.client.Session()
	if !ok {
		return nav.RenderModel{}, NewExitError(ExitCommandError, "no profile on this device: run waypoint login --trainer NAME")
	}
	g, err := d.story(ctx)
	if err != nil {
		return nav.RenderModel{}, err
	}
	return nav.NewController(g).Render(s)
}

// start runs the engine loop until close. observer may be nil.
func (d *device) start(ctx context.Context, observer func(engine.Result)) error {
	g, err := d.story(ctx)
	if err != nil {
		return err
	}
	seq, err := d.store.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	opts := []engine.Option{
		engine.WithLogger(slog.Default()),
		engine.WithSeqStart(seq),
	}
	if observer != nil {
		opts = append(opts, engine.WithObserver(observer))
	}
	d.engine = engine.New(g, d.client, opts...)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.engine.Run(runCtx); err != nil && err != context.Canceled {
			slog.Error("engine stopped", "error", err)
		}
	}()
	return nil
}

func (d *device) close() {
	if d.cancel != nil {
		d.engine.Stop()
		d.wg.Wait()
		d.cancel()
	}
	if err := d.store.Close(); err != nil {
		slog.Error("error closing device database", "error", err)
	}
}
