// Package spicmd encodes and decodes the 16-bit words exchanged between the Main board (leader) and the
// Drive board (follower).
//
//	bit  15..12   11         10          9..8    7..0
//	     opcode   drivetype  direction   speed   data
package spicmd

import "fmt"

// Word is one raw transfer on the link
type Word uint16

const (
	dataMask      = 0x00FF
	speedShift    = 8
	speedMask     = 0x3
	directionBit  = 10
	driveTypeBit  = 11
	opcodeShift   = 12
	opcodeMask    = 0xF
	noInformation = 0xF
)

// Opcode is the high nibble of a leader to follower word
type Opcode uint8

const (
	OpNone           Opcode = 0
	OpStop           Opcode = 1
	OpDriveDistance  Opcode = 2
	OpDriveUntilBump Opcode = 3
	OpTapeAlign      Opcode = 4
	OpBeaconSweep    Opcode = 5
	OpBeaconFound    Opcode = 6
	OpUndoRotate     Opcode = 7
	OpPoll           Opcode = noInformation
)

func (o Opcode) String() string {
	switch o {
	case OpStop:
		return "Stop"
	case OpDriveDistance:
		return "DriveDistance"
	case OpDriveUntilBump:
		return "DriveUntilBump"
	case OpTapeAlign:
		return "TapeAlign"
	case OpBeaconSweep:
		return "BeaconSweep"
	case OpBeaconFound:
		return "BeaconFound"
	case OpUndoRotate:
		return "UndoRotate"
	case OpPoll:
		return "Poll"
	default:
		return fmt.Sprintf("Opcode(%d)", uint8(o))
	}
}

// Response is the high nibble of a follower to leader word
type Response uint8

const (
	RespNone               Response = 0
	RespGoalReached        Response = 1
	RespBumpSuccess        Response = 2
	RespTapeSuccess        Response = 3
	RespStopAcknowledged   Response = 4
	RespBeaconAcknowledged Response = 5
	RespStillWorking       Response = noInformation
)

func (r Response) String() string {
	switch r {
	case RespGoalReached:
		return "GoalReached"
	case RespBumpSuccess:
		return "BumpSuccess"
	case RespTapeSuccess:
		return "TapeSuccess"
	case RespStopAcknowledged:
		return "StopAcknowledged"
	case RespBeaconAcknowledged:
		return "BeaconAcknowledged"
	case RespStillWorking:
		return "StillWorking"
	default:
		return fmt.Sprintf("Response(%d)", uint8(r))
	}
}

// Speed is the two-bit speed field
type Speed uint8

const (
	SpeedStopped Speed = iota
	SpeedLow
	SpeedMedium
	SpeedHigh
)

func (s Speed) String() string {
	return [...]string{"Stopped", "Low", "Medium", "High"}[s&speedMask]
}

// Direction is Forward/Backward for translations and CW/CCW for rotations
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

const (
	Clockwise        = Forward
	CounterClockwise = Backward
)

// DriveType selects what Data measures: centimetres or degrees
type DriveType uint8

const (
	Translation DriveType = iota
	Rotation
)

// Command is the decoded form of a leader word
type Command struct {
	Opcode    Opcode
	DriveType DriveType
	Direction Direction
	Speed     Speed
	Data      uint8
}

const (
	// PollWord asks the follower for its latest outcome without starting anything
	PollWord = Word(uint16(OpPoll) << opcodeShift)
	// StillWorkingWord is what an idle or busy follower clocks out
	StillWorkingWord = Word(uint16(RespStillWorking) << opcodeShift)
)

// Encode packs a command. Fields wider than their slot are truncated.
func Encode(c Command) Word {
	w := uint16(c.Data) & dataMask
	w |= (uint16(c.Speed) & speedMask) << speedShift
	w |= (uint16(c.Direction) & 1) << directionBit
	w |= (uint16(c.DriveType) & 1) << driveTypeBit
	w |= (uint16(c.Opcode) & opcodeMask) << opcodeShift
	return Word(w)
}

// Decode unpacks a leader word
func Decode(w Word) Command {
	return Command{
		Opcode:    w.Opcode(),
		DriveType: DriveType((w >> driveTypeBit) & 1),
		Direction: Direction((w >> directionBit) & 1),
		Speed:     Speed((w >> speedShift) & speedMask),
		Data:      uint8(w & dataMask),
	}
}

// EncodeResponse builds the word a follower leaves in its transmit register
func EncodeResponse(r Response, data uint8) Word {
	return Word(uint16(r&opcodeMask)<<opcodeShift | uint16(data))
}

// Opcode returns the high nibble interpreted as a command
func (w Word) Opcode() Opcode {
	return Opcode((w >> opcodeShift) & opcodeMask)
}

// Response returns the high nibble interpreted as an outcome
func (w Word) Response() Response {
	return Response((w >> opcodeShift) & opcodeMask)
}

// IsCommsError reports a literal zero word, which a working follower never sends
func IsCommsError(w Word) bool {
	return w == 0
}

// HasNews reports whether a response word carries an outcome the leader must act on
func HasNews(w Word) bool {
	return !IsCommsError(w) && w.Response() != RespStillWorking
}

func (w Word) String() string {
	return fmt.Sprintf("0x%04X", uint16(w))
}

func (c Command) String() string {
	return fmt.Sprintf("%s type=%d dir=%d speed=%s data=%d", c.Opcode, c.DriveType, c.Direction, c.Speed, c.Data)
}

// Helpers for the commands the Main board actually sends.

// Drive moves straight for cm centimetres
func Drive(dir Direction, speed Speed, cm uint8) Word {
	return Encode(Command{Opcode: OpDriveDistance, DriveType: Translation, Direction: dir, Speed: speed, Data: cm})
}

// Rotate turns in place by deg degrees
func Rotate(dir Direction, speed Speed, deg uint8) Word {
	return Encode(Command{Opcode: OpDriveDistance, DriveType: Rotation, Direction: dir, Speed: speed, Data: deg})
}

// Stop halts the drive train
func Stop() Word {
	return Encode(Command{Opcode: OpStop})
}

// UntilBump drives straight until a bump switch closes
func UntilBump(dir Direction, speed Speed) Word {
	return Encode(Command{Opcode: OpDriveUntilBump, Direction: dir, Speed: speed})
}

// TapeAlign creeps until both tape sensors see tape
func TapeAlign(dir Direction, speed Speed) Word {
	return Encode(Command{Opcode: OpTapeAlign, Direction: dir, Speed: speed})
}

// BeaconSweep rotates slowly until told the beacon was found
func BeaconSweep(dir Direction, speed Speed) Word {
	return Encode(Command{Opcode: OpBeaconSweep, DriveType: Rotation, Direction: dir, Speed: speed})
}

// BeaconFound stops a sweep and remembers the angle turned
func BeaconFound() Word {
	return Encode(Command{Opcode: OpBeaconFound})
}

// UndoRotate turns back by the angle remembered at BeaconFound
func UndoRotate(speed Speed) Word {
	return Encode(Command{Opcode: OpUndoRotate, DriveType: Rotation, Speed: speed})
}
