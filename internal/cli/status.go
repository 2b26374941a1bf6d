package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/authguard"
	"github.com/roach88/waypoint/internal/session"
)

// StatusResult describes the device and its authority.
type StatusResult struct {
	Authority string             `json:"authority"`
	Reachable bool               `json:"reachable"`
	Enabled   bool               `json:"enabled"`
	Profile   *session.Profile   `json:"profile,omitempty"`
	Act       int                `json:"act,omitempty"`
	LastScene string             `json:"last_scene,omitempty"`
	Ending    string             `json:"ending,omitempty"`
	Guard     authguard.Decision `json:"guard"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cached profile, PIN lockout and authority state",
		Long: `Show what this device knows: the cached profile and progress,
whether PIN entry is locked, and whether the authority is reachable
and has the quest switched on.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	d, err := openDevice(ctx, opts)
	if err != nil {
		return err
	}
	defer d.close()

	decision, err := d.client.Guard().Check(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read PIN guard", err)
	}
	res := StatusResult{Authority: d.cfg.AuthorityURL, Guard: decision}

	enabled, err := d.client.Enabled(ctx)
	if err != nil {
		slog.Debug("authority unreachable", "url", d.cfg.AuthorityURL, "error", err)
	} else {
		res.Reachable, res.Enabled = true, enabled
	}

	if snap, ok := d.client.Committed(); ok {
		p := snap.Profile
		res.Profile = &p
		res.Act = snap.Session.CurrentAct
		if snap.Session.LastScene != nil {
			res.LastScene = *snap.Session.LastScene
		}
		if snap.Session.EndingChoice != nil {
			res.Ending = *snap.Session.EndingChoice
		}
	}

	return f.Render(res, func(w io.Writer) { printStatus(w, res) })
}

func printStatus(w io.Writer, res StatusResult) {
	switch {
	case !res.Reachable:
		fmt.Fprintf(w, "Authority: %s (unreachable)\n", res.Authority)
	case !res.Enabled:
		fmt.Fprintf(w, "Authority: %s (quest switched off)\n", res.Authority)
	default:
		fmt.Fprintf(w, "Authority: %s\n", res.Authority)
	}

	if res.Profile == nil {
		fmt.Fprintln(w, "Profile: none")
	} else {
		fmt.Fprintf(w, "Profile: %s (act %d", res.Profile.TrainerName, res.Act)
		if res.LastScene != "" {
			fmt.Fprintf(w, ", scene %s", res.LastScene)
		}
		fmt.Fprintln(w, ")")
		if res.Ending != "" {
			fmt.Fprintf(w, "Ending: %s\n", res.Ending)
		}
	}

	if res.Guard.Allowed {
		fmt.Fprintf(w, "PIN attempts left: %d\n", res.Guard.RemainingAttempts)
	} else {
		fmt.Fprintf(w, "PIN entry locked for %d more seconds\n", res.Guard.WaitSeconds)
	}
}

// ForgetOptions holds flags for the forget command.
type ForgetOptions struct {
	*RootOptions
	All bool
}

// NewForgetCommand creates the forget command.
func NewForgetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ForgetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "forget",
		Short: "Sign out and drop the cached profile",
		Long: `Sign out and drop the cached profile and progress from this device.

The PIN lockout survives a sign-out. With --all the lockout and the
sync journal are cleared as well.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			d, err := openDevice(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer d.close()

			if opts.All {
				err = d.client.Forget(cmd.Context())
			} else {
				err = d.client.Logout(cmd.Context())
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to clear device", err)
			}
			return f.Render(map[string]bool{"forgotten": true, "all": opts.All}, func(w io.Writer) {
				fmt.Fprintln(w, "Device cleared.")
			})
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "also clear the PIN lockout and the sync journal")

	return cmd
}
