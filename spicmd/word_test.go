package spicmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want Word
	}{
		{
			"DriveForward",
			Command{Opcode: OpDriveDistance, DriveType: Translation, Direction: Forward, Speed: SpeedHigh, Data: 100},
			0x2364,
		},
		{
			"RotateCCW",
			Command{Opcode: OpDriveDistance, DriveType: Rotation, Direction: CounterClockwise, Speed: SpeedLow, Data: 90},
			0x2D5A,
		},
		{
			"Poll",
			Command{Opcode: OpPoll},
			PollWord,
		},
		{
			"UndoRotate",
			Command{Opcode: OpUndoRotate, DriveType: Rotation, Speed: SpeedMedium},
			0x7A00,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Encode(tt.cmd)
			assert.Equal(t, tt.want, w)
			assert.Equal(t, tt.cmd, Decode(w))
		})
	}
}

func TestEncodeTruncatesFields(t *testing.T) {
	w := Encode(Command{Opcode: 0x1F, Speed: 7, Direction: 3, DriveType: 2})
	c := Decode(w)
	assert.Equal(t, Opcode(0xF), c.Opcode)
	assert.Equal(t, SpeedHigh, c.Speed)
	assert.Equal(t, Backward, c.Direction)
	assert.Equal(t, Translation, c.DriveType)
}

func TestHasNews(t *testing.T) {
	for r := Response(0); r <= 0xF; r++ {
		w := EncodeResponse(r, 0)
		switch r {
		case RespNone:
			assert.False(t, HasNews(w), "zero word is a comms error")
			assert.True(t, IsCommsError(w))
		case RespStillWorking:
			assert.False(t, HasNews(w))
		default:
			assert.True(t, HasNews(w), r.String())
		}
	}

	// a zero nibble with data is garbled but not the literal zero word
	assert.False(t, IsCommsError(EncodeResponse(RespNone, 3)))
	assert.False(t, HasNews(StillWorkingWord|0x12))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, OpStop, Stop().Opcode())
	assert.Equal(t, OpBeaconFound, BeaconFound().Opcode())
	assert.Equal(t, Rotation, Decode(BeaconSweep(Clockwise, SpeedLow)).DriveType)
	assert.Equal(t, Command{Opcode: OpDriveUntilBump, Direction: Backward, Speed: SpeedMedium}, Decode(UntilBump(Backward, SpeedMedium)))
	assert.Equal(t, "GoalReached", RespGoalReached.String())
	assert.Equal(t, "Opcode(9)", Opcode(9).String())
	assert.Equal(t, "0xF000", PollWord.String())
}
