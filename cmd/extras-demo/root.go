package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// options holds the flags of the root command.
type options struct {
	TickRate float64
	Menu     string
	Scripts  string
	Watch    bool
	LogFile  string
}

func (o *options) validate() error {
	if o.TickRate <= 0 {
		return eris.New("tick rate must be positive")
	}
	if o.Watch && o.Menu == "" {
		return eris.New("--watch needs --menu")
	}
	return nil
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "extras-demo",
		Short: "Clickable terminal menu",
		Long: "Draws a menu of buttons in the terminal. Clicking a button runs its commands: the " +
			"built-in quit and say, or any tengo script loaded from --scripts.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			screen, err := tcell.NewScreen()
			if err != nil {
				return eris.Wrap(err, "failed to create screen")
			}
			return run(ctx, screen, *opts)
		},
	}

	cmd.Flags().Float64Var(&opts.TickRate, "tick-rate", 30, "ticks per second") //nolint:mnd // default
	cmd.Flags().StringVar(&opts.Menu, "menu", "", "menu spec (YAML); a built-in menu is used when empty")
	cmd.Flags().StringVar(&opts.Scripts, "scripts", "", "directory of .tengo scripts to load")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "reload the menu whenever its file changes")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "file to write logs to; logs are dropped when empty")

	return cmd
}

// run owns the screen until ctx is done or a quit command runs.
func run(ctx context.Context, screen tcell.Screen, opts options) error {
	if err := screen.Init(); err != nil {
		return eris.Wrap(err, "failed to initialize screen")
	}
	defer screen.Fini()
	screen.EnableMouse()

	var logOut io.Writer = io.Discard
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return eris.Wrapf(err, "failed to open log file %s", opts.LogFile)
		}
		defer f.Close()
		logOut = f
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d, err := newDemo(screen, opts, logOut, cancel)
	if err != nil {
		return err
	}
	defer d.close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.terminal.Listen(ctx, screen) })
	g.Go(func() error { return d.app.Run(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
