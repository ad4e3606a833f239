package xbee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedAll(r *Receiver, in []byte) [][]byte {
	var frames [][]byte
	for _, b := range in {
		if f, ok := r.Feed(b); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

func TestReceiverReassembly(t *testing.T) {
	frame, err := EncodeRx(0x2181, 0x20, 0, MsgControl, []byte{StartDelimiter, 1, StartDelimiter, 0, 9})
	require.NoError(t, err)
	require.Equal(t, []byte{0x7E, 0x00, 0x0B}, frame[:3])

	tests := []struct {
		name   string
		stream []byte
		want   int
	}{
		{"Exact", frame, 1},
		{"LeadingNoise", append([]byte{0x00, 0x13, 0xFF}, frame...), 1},
		{"BackToBack", append(append([]byte(nil), frame...), frame...), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Receiver
			frames := feedAll(&r, tt.stream)
			require.Len(t, frames, tt.want)
			for _, f := range frames {
				assert.Equal(t, frame, f)
			}
			assert.Equal(t, RxIdle, r.State())
		})
	}
}

func TestReceiverStates(t *testing.T) {
	frame, err := EncodeRx(1, 0, 0, MsgStatus, nil)
	require.NoError(t, err)

	var r Receiver
	_, done := r.Feed(frame[0])
	assert.False(t, done)
	assert.Equal(t, RxPrologue, r.State())
	r.Feed(frame[1])
	assert.Equal(t, RxPrologue, r.State())
	r.Feed(frame[2])
	assert.Equal(t, RxFrameData, r.State())

	for _, b := range frame[3 : FrameLen-1] {
		_, done = r.Feed(b)
		require.False(t, done)
	}
	out, done := r.Feed(frame[FrameLen-1])
	assert.True(t, done)
	assert.Equal(t, frame, out)
	assert.Equal(t, RxIdle, r.State())
}

func TestReceiverOversize(t *testing.T) {
	var r Receiver
	frames := feedAll(&r, []byte{0x7E, 0x01, 0x00, 1, 2, 3})
	assert.Empty(t, frames)
	assert.Equal(t, 1, r.Oversize())
	assert.Equal(t, RxIdle, r.State())

	feedAll(&r, []byte{0x7E, 0x00, 0x00})
	assert.Equal(t, 2, r.Oversize())
}

func TestReceiverAbort(t *testing.T) {
	frame, err := EncodeRx(1, 0, 0, MsgStatus, nil)
	require.NoError(t, err)

	var r Receiver
	// a truncated frame swallows the start of the next one until aborted
	feedAll(&r, frame[:8])
	assert.True(t, r.Busy())
	r.Abort()
	assert.Equal(t, [][]byte{frame}, feedAll(&r, frame))
}

func TestTransmitter(t *testing.T) {
	frame, err := EncodeTx(2, 0, MsgControl, nil)
	require.NoError(t, err)

	var tx Transmitter
	require.NoError(t, tx.Load(frame))
	assert.ErrorIs(t, tx.Load(frame), ErrBusy)

	var out []byte
	for {
		b, ok := tx.Next()
		if !ok {
			break
		}
		out = append(out, b)
	}
	assert.Equal(t, frame, out)
	assert.False(t, tx.Busy())
	assert.NoError(t, tx.Load(frame))

	assert.ErrorIs(t, (&Transmitter{}).Load(make([]byte, MaxFrameLen+1)), ErrFrameTooLong)
}
