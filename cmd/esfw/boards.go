package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/console"
	"github.com/robotarena/esfw/firmware/mainboard"
	"github.com/robotarena/esfw/firmware/pilot"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/hal/serialport"
	"github.com/robotarena/esfw/hal/sim"
	"github.com/robotarena/esfw/hal/spidev"
)

func addSerialFlags(cmd *cobra.Command, port *string, baud *int) {
	cmd.Flags().StringVar(port, "port", "", "serial port of the XBee; overrides the profile")
	cmd.Flags().IntVar(baud, "baud", 0, "baud rate; overrides the profile")
}

func openSerial(opts *options, port string, baud int) (*serialport.Port, error) {
	cfg := opts.profile.SerialConfig()
	if port != "" {
		cfg.Name = port
	}
	if baud > 0 {
		cfg.BaudRate = baud
	}
	return serialport.Open(cfg, opts.log.WithField("port", cfg.Name))
}

func newTugCommand(opts *options) *cobra.Command {
	var port string
	var baud int
	cmd := &cobra.Command{
		Use:   "tug",
		Short: "Run a Tug against an XBee on a serial port; thrust is reported on the console",
		RunE: func(cmd *cobra.Command, _ []string) error {
			uart, err := openSerial(opts, port, baud)
			if err != nil {
				return err
			}
			defer uart.Close()

			b, err := tug.NewBoard(opts.profile.TugConfig(), uart, nil, &sim.Thrusters{}, opts.log)
			if err != nil {
				return err
			}
			rec := newRecorders(opts.profile.Telemetry.Addr, opts.log)
			observeTug(b, rec.sink(esfw.BoardTug))
			rec.run(cmd.Context())

			c := console.New(cmd.OutOrStdout(), opts.log, console.TugPage(b))
			runConsole(cmd.Context(), c, cmd.InOrStdin(), opts.log)
			return runBoard(cmd.Context(), b.FW, c, cmd.OutOrStdout())
		},
	}
	addSerialFlags(cmd, &port, &baud)
	return cmd
}

func newPilotCommand(opts *options) *cobra.Command {
	var port string
	var baud int
	cmd := &cobra.Command{
		Use:   "pilot",
		Short: "Run a Pilot against an XBee on a serial port, steered from the keyboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			uart, err := openSerial(opts, port, baud)
			if err != nil {
				return err
			}
			defer uart.Close()

			stick := console.Stick{Thrust: &sim.ADC{}, Yaw: &sim.ADC{}, Mode3: &sim.Pin{}}
			stick.Thrust.Set(pilot.DefaultADCMax / 2)
			stick.Yaw.Set(pilot.DefaultADCMax / 2)
			b, err := pilot.NewBoard(opts.profile.PilotConfig(), uart, pilot.Inputs{
				Thrust: stick.Thrust,
				Yaw:    stick.Yaw,
				Mode3:  stick.Mode3,
			}, opts.log)
			if err != nil {
				return err
			}
			rec := newRecorders(opts.profile.Telemetry.Addr, opts.log)
			observePilot(b, rec.sink(esfw.BoardPilot))
			rec.run(cmd.Context())

			c := console.New(cmd.OutOrStdout(), opts.log, console.PilotPage(b, stick))
			runConsole(cmd.Context(), c, cmd.InOrStdin(), opts.log)
			return runBoard(cmd.Context(), b.FW, c, cmd.OutOrStdout())
		},
	}
	addSerialFlags(cmd, &port, &baud)
	return cmd
}

func newMainCommand(opts *options) *cobra.Command {
	var device string
	cmd := &cobra.Command{
		Use:   "main",
		Short: "Run the Main board as SPI leader to a Drive board on spidev",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.profile.SPIConfig()
			if device != "" {
				cfg.Device = device
			}
			dev, err := spidev.Open(cfg)
			if err != nil {
				return err
			}
			defer dev.Close()
			opts.log.WithField("spi", dev.String()).Info("connected")

			// the start button is pressed from the console
			b, err := mainboard.NewBoard(opts.profile.MainConfig(), hal.NewLeader(dev), &sim.Pin{}, opts.log)
			if err != nil {
				return err
			}
			rec := newRecorders(opts.profile.Telemetry.Addr, opts.log)
			observeMain(b, rec.sink(esfw.BoardMain))
			rec.run(cmd.Context())

			c := console.New(cmd.OutOrStdout(), opts.log, console.MainPage(b))
			runConsole(cmd.Context(), c, cmd.InOrStdin(), opts.log)
			return runBoard(cmd.Context(), b.FW, c, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&device, "spi", "", "spidev device, e.g. /dev/spidev0.0; overrides the profile")
	return cmd
}

func newPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		// no profile needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := serialport.List()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return nil
			}
			for _, p := range ports {
				if p.IsUSB {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.Name)
			}
			return nil
		},
	}
}
