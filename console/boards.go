package console

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/driveboard"
	"github.com/robotarena/esfw/firmware/mainboard"
	"github.com/robotarena/esfw/firmware/pilot"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/hal/sim"
	"github.com/robotarena/esfw/spicmd"
)

// StickStep is how far one key press moves a simulated stick
const StickStep = 64

func postCommand(flag byte, description string, p es.Poster, dest es.Priority, e es.Event) *Command {
	return &Command{
		Flag:        flag,
		Description: description,
		Run: func(w io.Writer, _ []byte) error {
			if err := p.Post(dest, e); err != nil {
				return fmt.Errorf("error posting %s: %w", e, err)
			}
			fmt.Fprintf(w, "posted %s\n", e)
			return nil
		},
	}
}

func statusCommand(status func() string) *Command {
	return &Command{
		Flag:        'D',
		Description: "Print board status.",
		Run: func(w io.Writer, _ []byte) error {
			fmt.Fprintln(w, status())
			return nil
		},
	}
}

// keyCommand forwards the next key to a service as a NewKey event; the game maps it to a sensor event
func keyCommand(p es.Poster, dest es.Priority) *Command {
	return &Command{
		Flag:        'K',
		InputSize:   1,
		Description: "Post the next key to the game (b beacon, l lost, g goal, u bump, t tape, s stop ack).",
		Run: func(w io.Writer, in []byte) error {
			e := es.Event{Kind: es.NewKey, Param: uint16(in[0])}
			if err := p.Post(dest, e); err != nil {
				return fmt.Errorf("error posting %s: %w", e, err)
			}
			return nil
		},
	}
}

// MainPage drives the Main board: the start button, the SPI leader and raw command words
func MainPage(b *mainboard.Board) Page {
	return Page{
		Name: "main",
		Commands: []*Command{
			postCommand('S', "Press the start button.", b.FW, mainboard.PrioGame, es.Event{Kind: mainboard.EvStartPressed}),
			postCommand('R', "Reset the SPI leader.", b.FW, mainboard.PrioLeader, es.Event{Kind: mainboard.EvSPIReset}),
			{
				Flag:        'W',
				InputSize:   2,
				Description: "Send a raw command word to the Drive board (2 bytes, big endian).",
				Run: func(w io.Writer, in []byte) error {
					word := spicmd.Word(uint16(in[0])<<8 | uint16(in[1]))
					e := es.Event{Kind: mainboard.EvSendCommand, Param: uint16(word)}
					if err := b.FW.Post(mainboard.PrioLeader, e); err != nil {
						return fmt.Errorf("error posting %s: %w", e, err)
					}
					fmt.Fprintf(w, "queued %s\n", word)
					return nil
				},
			},
			keyCommand(b.FW, mainboard.PrioGame),
			statusCommand(b.Status),
		},
	}
}

// DrivePage reports on the Drive board
func DrivePage(b *driveboard.Board) Page {
	return Page{
		Name: "drive",
		Commands: []*Command{
			statusCommand(b.Status),
		},
	}
}

// TugPage drives a Tug: its pair button and the refuel station
func TugPage(b *tug.Board) Page {
	return Page{
		Name: "tug",
		Commands: []*Command{
			postCommand('P', "Press the pair button.", b.FW, tug.PrioSession, es.Event{Kind: tug.EvPairButton}),
			postCommand('F', "Refuel at the station.", b.FW, tug.PrioFuel, es.Event{Kind: tug.EvRefuel}),
			statusCommand(b.Status),
		},
	}
}

// Stick is a simulated Pilot control panel
type Stick struct {
	Thrust *sim.ADC
	Yaw    *sim.ADC
	Mode3  *sim.Pin
	Full   int32
}

func stickCommand(flag byte, description string, adc *sim.ADC, delta, full int32) *Command {
	return &Command{
		Flag:        flag,
		Description: description,
		Run: func(w io.Writer, _ []byte) error {
			fmt.Fprintf(w, "%d\n", adc.Nudge(delta, full))
			return nil
		},
	}
}

// PilotPage drives a Pilot from the keyboard: w/s thrust, a/d yaw, c centres the stick
func PilotPage(b *pilot.Board, stick Stick) Page {
	full := stick.Full
	if full <= 0 {
		full = pilot.DefaultADCMax
	}
	cmds := []*Command{
		postCommand('r', "Press the refuel button.", b.FW, pilot.PrioLink, es.Event{Kind: pilot.EvRefuelPressed}),
	}
	if stick.Thrust != nil {
		cmds = append(cmds,
			stickCommand('w', "More thrust.", stick.Thrust, StickStep, full),
			stickCommand('s', "Less thrust.", stick.Thrust, -StickStep, full),
		)
	}
	if stick.Yaw != nil {
		cmds = append(cmds,
			stickCommand('a', "Yaw left.", stick.Yaw, -StickStep, full),
			stickCommand('d', "Yaw right.", stick.Yaw, StickStep, full),
		)
	}
	cmds = append(cmds, &Command{
		Flag:        'c',
		Description: "Centre the stick.",
		Run: func(w io.Writer, _ []byte) error {
			for _, adc := range []*sim.ADC{stick.Thrust, stick.Yaw} {
				if adc != nil {
					adc.Set(full / 2)
				}
			}
			return nil
		},
	})
	if stick.Mode3 != nil {
		cmds = append(cmds, &Command{
			Flag:        'm',
			Description: "Toggle mode 3.",
			Run: func(w io.Writer, _ []byte) error {
				level := !stick.Mode3.Read()
				stick.Mode3.Set(level)
				fmt.Fprintf(w, "mode3=%s\n", gpio.Level(level))
				return nil
			},
		})
	}
	cmds = append(cmds, statusCommand(b.Status))
	return Page{Name: "pilot", Commands: cmds}
}
