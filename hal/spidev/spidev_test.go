package spidev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/robotarena/esfw/hal"
)

func TestLeaderOverDevice(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0xF0, 0x00}, R: []byte{0xF0, 0x00}},
				{W: []byte{0x23, 0x64}, R: []byte{0x10, 0x00}},
				{W: []byte{0xAA}, R: []byte{0x55}},
			},
		},
	}

	d, err := Connect(port, DefaultConfig())
	require.NoError(t, err)

	leader := hal.NewLeader(d)
	require.NoError(t, leader.SendWord(0xF000))
	assert.Equal(t, uint16(0xF000), leader.ReadWord())
	require.NoError(t, leader.SendWord(0x2364))
	assert.Equal(t, uint16(0x1000), leader.ReadWord())

	b, err := d.Transfer(0xAA)
	require.NoError(t, err)
	assert.Equal(t, byte(0x55), b)

	assert.NoError(t, d.Close())
}
