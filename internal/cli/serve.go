package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/authority"
	"github.com/roach88/waypoint/internal/story"
)

// shutdownTimeout bounds how long in-flight requests may finish on stop.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	Disabled bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve [story-file]",
		Short: "Run the authority server",
		Long: `Run the authority: the profile and session service devices sync with.

The story is validated before the server starts. Profiles and
sessions are held in memory and are lost when the server stops.

Example:
  waypoint serve stories/lantern.yaml
  WAYPOINT_STORY=stories/lantern.yaml waypoint serve --listen :9000`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runServe(opts, path, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default $WAYPOINT_LISTEN)")
	cmd.Flags().BoolVar(&opts.Disabled, "disabled", false, "start with the quest switched off")

	return cmd
}

func runServe(opts *ServeOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.Config()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if path == "" {
		path = cfg.Story
	}
	if path == "" {
		return NewExitError(ExitCommandError, "a story file is required: pass it as an argument or set WAYPOINT_STORY")
	}
	addr := opts.Listen
	if addr == "" {
		addr = cfg.Listen
	}

	// Load and validate the story
	slog.Info("loading story", "path", path)
	g, err := loadStory(path)
	if err != nil {
		return err
	}
	if errs := story.Validate(g); len(errs) > 0 {
		return WrapExitError(ExitFailure, "invalid story", errs[0])
	}
	slog.Info("story ready", "acts", len(g.Acts), "scenes", len(g.Scenes))

	srv := authority.New(g,
		authority.WithLogger(slog.Default()),
		authority.WithEnabled(!opts.Disabled),
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpSrv.Serve(ln)
	}()

	slog.Info("authority starting", "addr", ln.Addr().String(), "enabled", !opts.Disabled)
	fmt.Fprintf(cmd.OutOrStdout(), "Authority listening on %s\n", ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
	case <-ctx.Done():
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return WrapExitError(ExitFailure, "shutdown failed", err)
		}
	}

	slog.Info("authority stopped gracefully")
	return nil
}
