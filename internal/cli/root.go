package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	DB        string // device database; falls back to WAYPOINT_DB
	Authority string // authority base URL; falls back to WAYPOINT_AUTHORITY_URL
	PIN       string // falls back to WAYPOINT_PIN

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the waypoint CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "waypoint",
		Short: "Waypoint - a location-based quest",
		Long: `Play and host a location-based quest.

A story is a graph of acts and scenes. Some scenes carry a challenge
(a code, a check-in, a reflex or pattern game, a riddle, a quiz or the
ending choice). Completing a challenge writes a progress flag, and
acts open once their flags are earned. Progress is kept on the device
and synced with an authority server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := opts.Config(); err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			configureLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "device database path (default $WAYPOINT_DB)")
	cmd.PersistentFlags().StringVar(&opts.Authority, "authority", "", "authority base URL (default $WAYPOINT_AUTHORITY_URL)")
	cmd.PersistentFlags().StringVar(&opts.PIN, "pin", "", "four-digit PIN (default $WAYPOINT_PIN)")

	// Add subcommands
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSceneCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts, "next"))
	cmd.AddCommand(NewMoveCommand(opts, "prev"))
	cmd.AddCommand(NewAdvanceCommand(opts))
	cmd.AddCommand(NewPlayCommand(opts))
	cmd.AddCommand(NewForgetCommand(opts))
	cmd.AddCommand(NewJournalCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// Config loads the environment configuration once and overlays the
// global flags on it.
func (o *RootOptions) Config() (config.Config, error) {
	if o.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return config.Config{}, err
		}
		o.cfg = &cfg
	}
	cfg := *o.cfg
	if o.DB != "" {
		cfg.DB = o.DB
	}
	if o.Authority != "" {
		cfg.AuthorityURL = o.Authority
	}
	if o.PIN != "" {
		cfg.PIN = o.PIN
	}
	return cfg, nil
}

// configureLogging installs the default slog handler. Logs go to stderr so
// JSON output on stdout stays parseable.
func configureLogging(w io.Writer, verbose bool) {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
