//go:build tinygo

package main

import (
	"context"
	"machine"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw/firmware/pilot"
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

	cfg := pilot.DefaultConfig()
	cfg.RefuelActive = gpio.Low
	b, err := pilot.NewBoard(cfg, uart, pilot.Inputs{
		Thrust: machinehal.NewADC(machine.ADC0),
		Yaw:    machinehal.NewADC(machine.ADC1),
		Refuel: machinehal.NewPin(machine.GP14, true),
		Mode3:  machinehal.NewPin(machine.GP15, false),
	}, log)
	if err != nil {
		panic(err)
	}

	err = b.FW.Run(context.Background())
	if err != nil {
		panic(err)
	}
}
