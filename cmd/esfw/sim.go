package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/console"
	"github.com/robotarena/esfw/firmware/pilot"
	"github.com/robotarena/esfw/firmware/robot"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/hal/sim"
)

func newSimCommand(opts *options) *cobra.Command {
	var noRadio bool
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run the Main and Drive boards, a Tug and a Pilot in one process over simulated links",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSim(cmd, opts, noRadio)
		},
	}
	cmd.Flags().BoolVar(&noRadio, "no-radio", false, "leave out the Tug and Pilot")
	return cmd
}

func runSim(cmd *cobra.Command, opts *options, noRadio bool) error {
	ctx := cmd.Context()
	p := opts.profile
	log := opts.log

	cfg := robot.DefaultConfig()
	cfg.Main = p.MainConfig()
	r, err := robot.New(cfg, log)
	if err != nil {
		return err
	}

	rec := newRecorders(p.Telemetry.Addr, log)
	observeMain(r.Main, rec.sink(esfw.BoardMain))
	pages := []console.Page{console.MainPage(r.Main), console.DrivePage(r.Drive)}

	if !noRadio {
		air := sim.NewAir(log)
		tugBoard, err := tug.NewBoard(p.TugConfig(), air.Attach(p.Radio.Tug), nil, &sim.Thrusters{}, log)
		if err != nil {
			return err
		}
		observeTug(tugBoard, rec.sink(esfw.BoardTug))

		stick := console.Stick{Thrust: &sim.ADC{}, Yaw: &sim.ADC{}, Mode3: &sim.Pin{}}
		stick.Thrust.Set(pilot.DefaultADCMax / 2)
		stick.Yaw.Set(pilot.DefaultADCMax / 2)
		pilotBoard, err := pilot.NewBoard(p.PilotConfig(), air.Attach(p.Radio.Pilot), pilot.Inputs{
			Thrust: stick.Thrust,
			Yaw:    stick.Yaw,
			Mode3:  stick.Mode3,
		}, log)
		if err != nil {
			return err
		}
		observePilot(pilotBoard, rec.sink(esfw.BoardPilot))

		r.Attach(tugBoard.FW)
		r.Attach(pilotBoard.FW)
		pages = append(pages, console.TugPage(tugBoard), console.PilotPage(pilotBoard, stick))
	}

	c := console.New(cmd.OutOrStdout(), log, pages...)
	r.Main.FW.AddChecker("console", c.Checker())
	if err := r.Start(); err != nil {
		log.WithError(err).Warn("running with failed services")
	}

	rec.run(ctx)
	runConsole(ctx, c, cmd.InOrStdin(), log)
	fmt.Fprintln(cmd.OutOrStdout(), "press H for help, N to switch boards")

	if err := r.Run(ctx); ctx.Err() == nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), r.Status())
	return nil
}
