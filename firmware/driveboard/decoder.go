package driveboard

import (
	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/spicmd"
)

const (
	// EvMotionDone is posted when a Translate or Rotate reaches its goal
	EvMotionDone es.EventKind = es.UserEvent + es.EventRange + iota
	EvBumped
	EvTapeFound
)

func init() {
	es.MustRegisterNames(map[es.EventKind]string{
		EvMotionDone: "MotionDone",
		EvBumped:     "Bumped",
		EvTapeFound:  "TapeFound",
	})
}

// DriveState is what the drive train is currently doing on the leader's behalf
type DriveState uint8

const (
	Idle DriveState = iota
	Moving
	SeekingBump
	SeekingTape
	Sweeping
)

func (s DriveState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Moving:
		return "Moving"
	case SeekingBump:
		return "SeekingBump"
	case SeekingTape:
		return "SeekingTape"
	case Sweeping:
		return "Sweeping"
	default:
		return "Unknown"
	}
}

// Decoder executes commands from the Main board and keeps the response register up to date. A terminal
// outcome stays in the register until one transfer has clocked it out.
type Decoder struct {
	port  hal.Follower
	drive hal.DriveTrain
	log   logrus.FieldLogger

	state DriveState
	// response is what the port will clock out on the next transfer
	response spicmd.Word
	// loadedAt is the transfer count when response was loaded
	loadedAt uint64

	sweepDir   spicmd.Direction
	sweepAngle uint16

	commands uint64
}

func NewDecoder(port hal.Follower, drive hal.DriveTrain, log logrus.FieldLogger) *Decoder {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Decoder{port: port, drive: drive, log: log}
}

func (d *Decoder) Init() error {
	d.drive.Stop()
	d.state = Idle
	d.respond(spicmd.StillWorkingWord)
	return nil
}

func (d *Decoder) Run(e es.Event) es.Event {
	switch e.Kind {
	case es.WordReceived:
		// a terminal outcome is cleared once a transfer after loading it has clocked it out
		if d.response != spicmd.StillWorkingWord && d.port.Transfers() > d.loadedAt {
			d.respond(spicmd.StillWorkingWord)
		}
		d.execute(spicmd.Word(e.Param))

	case EvMotionDone:
		if d.state == Moving {
			d.finish(spicmd.RespGoalReached)
		}

	case EvBumped:
		if d.state == SeekingBump {
			d.drive.Stop()
			d.finish(spicmd.RespBumpSuccess)
		}

	case EvTapeFound:
		if d.state == SeekingTape {
			d.drive.Stop()
			d.finish(spicmd.RespTapeSuccess)
		}
	}
	return es.None
}

func (d *Decoder) execute(w spicmd.Word) {
	c := spicmd.Decode(w)
	if c.Opcode == spicmd.OpPoll {
		return
	}
	d.commands++
	d.log.WithField("command", c.String()).Debug("command received")

	switch c.Opcode {
	case spicmd.OpStop:
		d.drive.Stop()
		d.finish(spicmd.RespStopAcknowledged)

	case spicmd.OpDriveDistance:
		kind := hal.MotionTranslate
		if c.DriveType == spicmd.Rotation {
			kind = hal.MotionRotate
		}
		d.start(Moving, hal.Motion{Kind: kind, Reverse: c.Direction == spicmd.Backward, Speed: uint8(c.Speed), Amount: uint16(c.Data)})

	case spicmd.OpDriveUntilBump:
		d.start(SeekingBump, hal.Motion{Kind: hal.MotionCreep, Reverse: c.Direction == spicmd.Backward, Speed: uint8(c.Speed)})

	case spicmd.OpTapeAlign:
		d.start(SeekingTape, hal.Motion{Kind: hal.MotionCreep, Reverse: c.Direction == spicmd.Backward, Speed: uint8(c.Speed)})

	case spicmd.OpBeaconSweep:
		d.sweepDir = c.Direction
		d.sweepAngle = 0
		d.start(Sweeping, hal.Motion{Kind: hal.MotionSpin, Reverse: c.Direction == spicmd.Backward, Speed: uint8(c.Speed)})

	case spicmd.OpBeaconFound:
		if d.state == Sweeping {
			d.sweepAngle = d.drive.Travelled()
		}
		d.drive.Stop()
		d.finish(spicmd.RespBeaconAcknowledged)

	case spicmd.OpUndoRotate:
		d.start(Moving, hal.Motion{
			Kind:    hal.MotionRotate,
			Reverse: d.sweepDir != spicmd.Backward,
			Speed:   uint8(c.Speed),
			Amount:  d.sweepAngle,
		})

	default:
		d.log.WithField("word", w.String()).Warn("unknown opcode ignored")
	}
}

func (d *Decoder) start(next DriveState, m hal.Motion) {
	d.state = next
	d.drive.Start(m)
}

func (d *Decoder) finish(r spicmd.Response) {
	d.state = Idle
	d.respond(spicmd.EncodeResponse(r, 0))
}

func (d *Decoder) respond(w spicmd.Word) {
	d.response = w
	d.loadedAt = d.port.LoadWord(uint16(w))
}

// State returns the drive state
func (d *Decoder) State() DriveState {
	return d.state
}

// Response returns the word that will be clocked out next
func (d *Decoder) Response() spicmd.Word {
	return d.response
}

// SweepAngle is the angle remembered at the last BeaconFound
func (d *Decoder) SweepAngle() uint16 {
	return d.sweepAngle
}

// Commands counts non-poll commands executed
func (d *Decoder) Commands() uint64 {
	return d.commands
}
