//go:build tinygo

package main

import (
	"context"
	"machine"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw/console"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/hal/machinehal"
)

func main() {
	log := logrus.New()
	log.SetOutput(machine.Serial)

	uart, err := machinehal.NewUART(machine.UART0, machinehal.UARTConfig{
		BaudRate: 9600,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	if err != nil {
		panic(err)
	}

	thrusters, err := machinehal.NewThrusters(machinehal.ThrusterConfig{
		PWM:   machine.PWM2,
		Left:  machine.GP4,
		Right: machine.GP5,
	})
	if err != nil {
		panic(err)
	}

	// active low with the internal pull up
	cfg := tug.DefaultConfig()
	cfg.PairActive = gpio.Low
	b, err := tug.NewBoard(cfg, uart, machinehal.NewPin(machine.GP15, true), thrusters, log)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	c := console.New(machine.Serial, log, console.TugPage(b))
	b.FW.AddChecker("console", c.Checker())
	go c.Run(ctx, machine.Serial)

	err = b.FW.Run(ctx)
	if err != nil {
		panic(err)
	}
}
