package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/waypoint/internal/engine"
	"github.com/roach88/waypoint/internal/geo"
	"github.com/roach88/waypoint/internal/minigame"
	"github.com/roach88/waypoint/internal/nav"
	"github.com/roach88/waypoint/internal/session"
	"github.com/roach88/waypoint/internal/story"
)

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Trainer string
	Create  bool
}

// LoginResult is the profile a login resumed or created.
type LoginResult struct {
	Profile   session.Profile `json:"profile"`
	Act       int             `json:"act"`
	LastScene string          `json:"last_scene,omitempty"`
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a trainer name and PIN",
		Long: `Sign in to the authority and cache the profile on this device.

Five wrong PINs lock the device for thirty minutes. A PIN that is not
four digits is refused locally and does not count.

Examples:
  waypoint login --trainer Ash --pin 1234 --create
  WAYPOINT_PIN=1234 waypoint login`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Trainer, "trainer", "", "trainer name (default: the cached profile)")
	cmd.Flags().BoolVar(&opts.Create, "create", false, "create the profile if it does not exist")

	return cmd
}

func runLogin(opts *LoginOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	d, err := openDevice(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer d.close()

	name := opts.Trainer
	if name == "" {
		name = d.client.PendingTrainer()
	}
	if name == "" {
		return NewExitError(ExitCommandError, "--trainer is required on a new device")
	}
	if d.cfg.PIN == "" {
		return NewExitError(ExitCommandError, "a PIN is required: pass --pin or set WAYPOINT_PIN")
	}

	snap, err := d.client.Authenticate(ctx, name, d.cfg.PIN, opts.Create)
	if err != nil {
		return refuse(f, err)
	}

	res := LoginResult{Profile: snap.Profile, Act: snap.Session.CurrentAct}
	if snap.Session.LastScene != nil {
		res.LastScene = *snap.Session.LastScene
	}
	return f.Render(res, func(w io.Writer) {
		fmt.Fprintf(w, "Signed in as %s (act %d)\n", res.Profile.TrainerName, res.Act)
	})
}

// NewSceneCommand creates the scene command.
func NewSceneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scene",
		Short: "Show the current scene",
		Long: `Show the current scene from the session cached on this device.

No PIN is needed; the story is fetched from the authority.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			d, err := openDevice(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer d.close()

			m, err := d.render(cmd.Context())
			if err != nil {
				return err
			}
			return f.Render(m, func(w io.Writer) { printScene(w, m) })
		},
	}
}

// NewMoveCommand creates the next or prev command.
func NewMoveCommand(rootOpts *RootOptions, dir string) *cobra.Command {
	direction, short := nav.Next, "Go to the next scene"
	if dir == "prev" {
		direction, short = nav.Prev, "Go back to the previous scene"
	}
	return &cobra.Command{
		Use:           dir,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvent(rootOpts, cmd, engine.Event{Type: engine.EventNavigate, Direction: direction})
		},
	}
}

// NewAdvanceCommand creates the advance command.
func NewAdvanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advance",
		Short: "Enter the next act",
		Long: `Enter the next act once its required progress flags are earned.

A locked act is refused without contacting the authority and the
missing flags are listed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvent(rootOpts, cmd, engine.Event{Type: engine.EventAdvance})
		},
	}
}

// runEvent authenticates, feeds one event to the engine and prints the
// scene it leaves the player on.
func runEvent(opts *RootOptions, cmd *cobra.Command, ev engine.Event) error {
	f := newFormatter(opts, cmd)
	ctx := cmd.Context()

	d, err := openDevice(ctx, opts)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.authenticate(ctx); err != nil {
		return refuseOrExit(f, err)
	}
	if err := d.start(ctx, nil); err != nil {
		return err
	}

	res, err := d.engine.Do(ctx, ev)
	if err != nil {
		return refuse(f, err)
	}
	return f.Render(res, func(w io.Writer) { printResult(w, res) })
}

// refuseOrExit passes command errors through and reports the rest as
// refusals.
func refuseOrExit(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return refuse(f, err)
}

// PlayOptions holds flags for the play command.
type PlayOptions struct {
	*RootOptions
	Code    string
	Lat     float64
	Lng     float64
	Choice  string
	Answers map[string]string
}

// NewPlayCommand creates the play command.
func NewPlayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Answer the current scene's challenge",
		Long: `Answer the challenge of the current scene.

Untimed challenges take their answer from flags. Reflex and pattern
games read one line per move from stdin: an empty line is a tap in a
reflex game, a symbol is an input in a pattern game, and "start"
restarts the game after a timeout.

Examples:
  waypoint play --code NORTH
  waypoint play --lat 53.5221 --lng -1.1281
  waypoint play --choice clock
  waypoint play --answer q1=q1a --answer q2=q2b --answer q3=q3a
  waypoint play < taps.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "artifact code")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "latitude for a location check-in")
	cmd.Flags().Float64Var(&opts.Lng, "lng", 0, "longitude for a location check-in")
	cmd.Flags().StringVar(&opts.Choice, "choice", "", "riddle answer or ending choice id")
	cmd.Flags().StringToStringVar(&opts.Answers, "answer", nil, "quiz answer as question=choice (repeatable)")

	return cmd
}

func runPlay(opts *PlayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	d, err := openDevice(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer d.close()

	if err := d.authenticate(ctx); err != nil {
		return refuseOrExit(f, err)
	}
	m, err := d.render(ctx)
	if err != nil {
		return err
	}

	timers := make(chan engine.Result, 8)
	if err := d.start(ctx, func(r engine.Result) {
		if r.Event != engine.EventTimerExpired.String() {
			return
		}
		select {
		case timers <- r:
		default:
		}
	}); err != nil {
		return err
	}

	if mg := m.Minigame; mg != nil && (mg.Kind == story.KindReflex || mg.Kind == story.KindPattern) {
		return playTimed(ctx, f, d, cmd.InOrStdin(), timers)
	}

	in := minigame.Input{Code: opts.Code, ChoiceID: opts.Choice, Answers: opts.Answers}
	if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
		in.Position = &geo.Point{Lat: opts.Lat, Lng: opts.Lng}
	}
	res, err := d.engine.Do(ctx, engine.Event{Type: engine.EventSubmit, Input: in})
	if err != nil {
		return refuse(f, err)
	}
	return f.Render(res, func(w io.Writer) { printResult(w, res) })
}

// playTimed drives a reflex or pattern game from input lines until the
// game is won or input ends.
func playTimed(ctx context.Context, f *OutputFormatter, d *device, in io.Reader, timers <-chan engine.Result) error {
	emit := func(res engine.Result) error {
		return f.Render(res, func(w io.Writer) { printResult(w, res) })
	}

	res, err := d.engine.Do(ctx, engine.Event{Type: engine.EventStartMinigame})
	if err != nil {
		return refuse(f, err)
	}
	if err := emit(res); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case r := <-timers:
			if err := emit(r); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				return NewExitError(ExitFailure, "game abandoned")
			}
			ev := engine.Event{Type: engine.EventHit, Symbol: line}
			if line == "start" {
				ev = engine.Event{Type: engine.EventStartMinigame}
			}

			res, err := d.engine.Do(ctx, ev)
			if err != nil {
				if engine.CodeOf(err) == "" && !errors.Is(err, minigame.ErrNotActive) && !minigame.IsRejection(err) {
					return refuse(f, err)
				}
				if err := f.Error(errorCode(err), err.Error(), nil); err != nil {
					return err
				}
				continue
			}
			if err := emit(res); err != nil {
				return err
			}
			if res.Game == nil {
				return nil
			}
		}
	}
}
