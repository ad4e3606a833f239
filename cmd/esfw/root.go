package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/console"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/mainboard"
	"github.com/robotarena/esfw/firmware/pilot"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/profile"
	"github.com/robotarena/esfw/telemetry"
)

// options are shared by every subcommand
type options struct {
	profilePath string
	verbose     bool
	team        string
	tick        string
	telemetry   string

	profile profile.Profile
	log     *logrus.Logger
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "esfw",
		Short:         "Run Events-and-Services board firmware on a host or in simulation",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.profilePath, "profile", "p", "", "TOML board profile")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")
	flags.StringVar(&opts.team, "team", "", "team color (red, blue); overrides the profile")
	flags.StringVar(&opts.tick, "tick", "", "scheduler tick period, e.g. 1ms; overrides the profile")
	flags.StringVar(&opts.telemetry, "telemetry", "", "match log server address; overrides the profile")

	root.AddCommand(
		newSimCommand(opts),
		newTugCommand(opts),
		newPilotCommand(opts),
		newMainCommand(opts),
		newPortsCommand(),
	)
	return root
}

func (o *options) load(cmd *cobra.Command) error {
	o.log = logrus.New()
	o.log.SetOutput(cmd.ErrOrStderr())
	o.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if o.verbose {
		o.log.SetLevel(logrus.DebugLevel)
	}

	p, err := profile.Load(o.profilePath)
	if err != nil {
		return err
	}

	// flags last
	overrides := map[string]string{}
	if o.team != "" {
		overrides[profile.EnvTeam] = o.team
	}
	if o.tick != "" {
		overrides[profile.EnvTick] = o.tick
	}
	if o.telemetry != "" {
		overrides[profile.EnvTelemetryAddr] = o.telemetry
	}
	err = p.ApplyEnv(func(k string) (string, bool) {
		v, ok := overrides[k]
		return v, ok
	})
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}
	o.profile = p
	return nil
}

// recorders share one match ID across the boards of a process
type recorders struct {
	addr  string
	match string
	log   logrus.FieldLogger
	all   []*telemetry.Recorder
}

func newRecorders(addr string, log logrus.FieldLogger) *recorders {
	return &recorders{addr: addr, match: telemetry.NewMatchID(), log: log}
}

func (r *recorders) sink(board esfw.BoardKind) telemetry.Sink {
	if r.addr == "" {
		return telemetry.Noop{}
	}
	rec := telemetry.NewRecorder(r.addr, r.match, board.String(), 0, r.log)
	r.all = append(r.all, rec)
	return rec
}

func (r *recorders) run(ctx context.Context) {
	for _, rec := range r.all {
		rec := rec
		go func() {
			if err := rec.Run(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Warn("telemetry stopped")
			}
		}()
	}
}

func observeMain(b *mainboard.Board, sink telemetry.Sink) {
	b.Game.SetObserver(sink.Record)
}

func observeTug(b *tug.Board, sink telemetry.Sink) {
	b.Session.SetObserver(func(from, to tug.SessionState) {
		sink.Record("session", from.String(), to.String())
	})
}

func observePilot(b *pilot.Board, sink telemetry.Sink) {
	b.Link.SetObserver(func(from, to pilot.LinkState) {
		sink.Record("link", from.String(), to.String())
	})
}

// runConsole serves the debug console on stdin. The board keeps running after stdin closes.
func runConsole(ctx context.Context, c *console.Console, in io.Reader, log logrus.FieldLogger) {
	go func() {
		if err := c.Run(ctx, in); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("console stopped")
		}
	}()
}

// runBoard steps one board in real time until interrupted
func runBoard(ctx context.Context, fw *es.Framework, c *console.Console, out io.Writer) error {
	fw.AddChecker("console", c.Checker())
	fmt.Fprintln(out, "press H for help")
	if err := fw.Run(ctx); ctx.Err() == nil {
		return err
	}
	return nil
}
