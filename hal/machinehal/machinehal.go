//go:build tinygo

// Package machinehal adapts TinyGo's machine package to the hal interfaces so board images can run on a
// microcontroller.
package machinehal

import (
	"errors"
	"machine"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers/servo"

	"github.com/robotarena/esfw/hal"
)

// UARTConfig has values for setting up the XBee UART
type UARTConfig struct {
	BaudRate uint32
	TX, RX   machine.Pin
}

// UART polls a hardware UART's receive buffer
type UART struct {
	uart *machine.UART
}

var _ hal.UART = (*UART)(nil)

func NewUART(u *machine.UART, cfg UARTConfig) (*UART, error) {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	err := u.Configure(machine.UARTConfig{BaudRate: cfg.BaudRate, TX: cfg.TX, RX: cfg.RX})
	if err != nil {
		return nil, errors.New("error configuring uart: " + err.Error())
	}
	return &UART{uart: u}, nil
}

func (u *UART) RxAvailable() bool {
	return u.uart.Buffered() > 0
}

func (u *UART) ReadByte() (byte, error) {
	if u.uart.Buffered() == 0 {
		return 0, hal.ErrNoData
	}
	return u.uart.ReadByte()
}

// TxReady is always true; WriteByte waits for room in the transmit FIFO
func (u *UART) TxReady() bool {
	return true
}

func (u *UART) WriteByte(b byte) error {
	return u.uart.WriteByte(b)
}

// Pin is a digital input with an internal pull
type Pin struct {
	pin machine.Pin
}

var _ hal.Pin = Pin{}

// NewPin configures p as an input; pull up for active-low buttons
func NewPin(p machine.Pin, pullUp bool) Pin {
	mode := machine.PinInputPulldown
	if pullUp {
		mode = machine.PinInputPullup
	}
	p.Configure(machine.PinConfig{Mode: mode})
	return Pin{pin: p}
}

func (p Pin) Read() gpio.Level {
	return gpio.Level(p.pin.Get())
}

// ADC reads a joystick axis. The 16-bit machine reading is scaled to 10 bits.
type ADC struct {
	adc machine.ADC
	// MilliVoltsPerCount scales the 10-bit reading into the sample voltage
	MilliVoltsPerCount int32
}

var _ hal.ADC = (*ADC)(nil)

func NewADC(p machine.Pin) *ADC {
	machine.InitADC()
	a := machine.ADC{Pin: p}
	a.Configure(machine.ADCConfig{})
	// 3.3 V over 1024 counts
	return &ADC{adc: a, MilliVoltsPerCount: 3}
}

func (a *ADC) Read() (analog.Sample, error) {
	raw := int32(a.adc.Get() >> 6)
	return analog.Sample{
		V:   physic.ElectricPotential(raw*a.MilliVoltsPerCount) * physic.MilliVolt,
		Raw: raw,
	}, nil
}

// ThrusterConfig has the PWM slice and pins of the left and right ESCs
type ThrusterConfig struct {
	PWM         servo.PWM
	Left, Right machine.Pin
}

// Thrusters drives two ESCs with servo pulses
type Thrusters struct {
	left, right servo.Servo
}

var _ hal.Thrusters = (*Thrusters)(nil)

// NewThrusters arms both ESCs at neutral
func NewThrusters(cfg ThrusterConfig) (*Thrusters, error) {
	left, err := servo.New(cfg.PWM, cfg.Left)
	if err != nil {
		return nil, errors.New("error creating left esc: " + err.Error())
	}
	right, err := servo.New(cfg.PWM, cfg.Right)
	if err != nil {
		return nil, errors.New("error creating right esc: " + err.Error())
	}
	t := &Thrusters{left: left, right: right}
	t.Idle()
	return t, nil
}

func (t *Thrusters) Apply(th hal.Thrust) {
	l, r := th.Pulses()
	t.left.SetMicroseconds(l)
	t.right.SetMicroseconds(r)
}

func (t *Thrusters) Idle() {
	t.left.SetMicroseconds(hal.PulseNeutral)
	t.right.SetMicroseconds(hal.PulseNeutral)
}
