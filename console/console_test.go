package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/driveboard"
	"github.com/robotarena/esfw/firmware/mainboard"
	"github.com/robotarena/esfw/firmware/pilot"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/hal/sim"
)

func recordPage(name string, got *[]string) Page {
	return Page{
		Name: name,
		Commands: []*Command{
			{
				Flag:        'A',
				Description: "Record A.",
				Run: func(w io.Writer, _ []byte) error {
					*got = append(*got, name+":A")
					return nil
				},
			},
			{
				Flag:        'I',
				InputSize:   2,
				Description: "Record two bytes.",
				Run: func(w io.Writer, in []byte) error {
					*got = append(*got, name+":"+string(in))
					return nil
				},
			},
			{
				Flag:        0x01,
				Description: "Fail.",
				Run: func(io.Writer, []byte) error {
					return errors.New("boom")
				},
			},
		},
	}
}

func drain(c *Console) {
	check := c.Checker()
	for check() {
	}
}

func TestConsoleRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var out bytes.Buffer
	var got []string
	c := New(&out, logger, recordPage("one", &got), recordPage("two", &got))

	require.NoError(t, c.Run(context.Background(), strings.NewReader("AzIxyN\x01A")))
	assert.Empty(t, got, "board commands wait for the checker")
	assert.Equal(t, "two", c.Active())

	drain(c)
	assert.Equal(t, []string{"one:A", "one:xy", "two:A"}, got)
	assert.Contains(t, out.String(), "board: two")
	assert.Contains(t, out.String(), "error: boom")
}

func TestConsoleRunShortInput(t *testing.T) {
	logger, _ := test.NewNullLogger()
	var got []string
	c := New(io.Discard, logger, recordPage("one", &got))

	require.NoError(t, c.Run(context.Background(), strings.NewReader("Ix")))
	drain(c)
	assert.Empty(t, got)
}

func TestConsoleRunCancelled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	c := New(io.Discard, logger)

	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, r) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("console did not stop")
	}
}

func TestConsoleQueueFull(t *testing.T) {
	logger, hook := test.NewNullLogger()
	var got []string
	c := New(io.Discard, logger, recordPage("one", &got))

	require.NoError(t, c.Run(context.Background(), strings.NewReader(strings.Repeat("A", QueueSize+2))))
	drain(c)
	assert.Len(t, got, QueueSize)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "console busy, command dropped", hook.LastEntry().Message)
}

func TestConsoleHelp(t *testing.T) {
	var out bytes.Buffer
	var got []string
	c := New(&out, logrus.New(), recordPage("one", &got), recordPage("two", &got))

	require.NoError(t, c.Run(context.Background(), strings.NewReader("H")))
	assert.Equal(t, `Available Commands:
H: Show all available commands and their descriptions.
N: Switch to the next board.
V: Toggle verbose output.
[one]
A: Record A.
I: Record two bytes.
0x01: Fail.
`, out.String())
}

func TestConsoleVerbose(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	c := New(io.Discard, logger)

	require.NoError(t, c.Run(context.Background(), strings.NewReader("V")))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	require.NoError(t, c.Run(context.Background(), strings.NewReader("V")))
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestTugPage(t *testing.T) {
	logger, _ := test.NewNullLogger()
	air := sim.NewAir(logger)
	b, err := tug.NewBoard(tug.DefaultConfig(), air.Attach(esfw.DefaultTugAddress), nil, &sim.Thrusters{}, logger)
	require.NoError(t, err)

	var out bytes.Buffer
	c := New(&out, logger, TugPage(b))
	b.FW.AddChecker("console", c.Checker())
	require.NoError(t, b.FW.Start())

	require.NoError(t, c.Run(context.Background(), strings.NewReader("PD")))
	b.FW.StepN(2)
	assert.Contains(t, out.String(), "posted PairButton(0x0)")
	assert.Contains(t, out.String(), "session=WaitingForPairRequest")
}

func TestPilotPage(t *testing.T) {
	logger, _ := test.NewNullLogger()
	air := sim.NewAir(logger)
	stick := Stick{Thrust: &sim.ADC{}, Yaw: &sim.ADC{}, Mode3: &sim.Pin{}}
	b, err := pilot.NewBoard(pilot.DefaultConfig(), air.Attach(esfw.DefaultPilotAddress), pilot.Inputs{
		Thrust: stick.Thrust,
		Yaw:    stick.Yaw,
		Mode3:  stick.Mode3,
	}, logger)
	require.NoError(t, err)

	c := New(io.Discard, logger, PilotPage(b, stick))
	require.NoError(t, c.Run(context.Background(), strings.NewReader("wwam")))
	drain(c)
	assert.Equal(t, int32(2*StickStep), readRaw(t, stick.Thrust))
	assert.Zero(t, readRaw(t, stick.Yaw), "clamped at zero")
	assert.Equal(t, gpio.High, stick.Mode3.Read())

	require.NoError(t, c.Run(context.Background(), strings.NewReader("c")))
	drain(c)
	assert.Equal(t, int32(pilot.DefaultADCMax/2), readRaw(t, stick.Thrust))
	assert.Equal(t, int32(pilot.DefaultADCMax/2), readRaw(t, stick.Yaw))
}

func readRaw(t *testing.T, adc *sim.ADC) int32 {
	t.Helper()
	s, err := adc.Read()
	require.NoError(t, err)
	return s.Raw
}

func TestEventNamesAcrossBoards(t *testing.T) {
	tests := []struct {
		kind es.EventKind
		want string
	}{
		{mainboard.EvStartPressed, "StartPressed"},
		{mainboard.EvSendCommand, "SendCommand"},
		{driveboard.EvMotionDone, "MotionDone"},
		{tug.EvPairRequest, "PairRequest"},
		{tug.EvControlPacket, "ControlPacket"},
		{pilot.EvPairAcknowledged, "PairAcknowledged"},
		{pilot.EvRefuelPressed, "RefuelPressed"},
	}
	seen := map[es.EventKind]string{}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
			assert.NotContains(t, seen, tt.kind)
			seen[tt.kind] = tt.want
		})
	}
}
