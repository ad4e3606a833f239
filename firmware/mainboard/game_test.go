package mainboard

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/spicmd"
)

// commandLog stands in for the leader and records every command the game asks for
type commandLog struct {
	words []spicmd.Word
}

func (c *commandLog) Init() error { return nil }

func (c *commandLog) Run(e es.Event) es.Event {
	if e.Kind == EvSendCommand {
		c.words = append(c.words, spicmd.Word(e.Param))
	}
	return es.None
}

func (c *commandLog) last() spicmd.Word {
	if len(c.words) == 0 {
		return 0
	}
	return c.words[len(c.words)-1]
}

type transition struct{ machine, from, to string }

func newGameRig(t *testing.T) (*es.Framework, *Game, *commandLog, *[]transition) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := es.New(es.Config{Logger: logger})
	cfg := DefaultConfig()
	g, err := NewGame(f, GameConfig{
		GameTimer:    TimerGame,
		GameTicks:    1000,
		Leader:       PrioLeader,
		SweepSpeed:   cfg.SweepSpeed,
		AlignSpeed:   cfg.AlignSpeed,
		AdvanceSpeed: cfg.AdvanceSpeed,
		BackOffCM:    cfg.BackOffCM,
		TurnDegrees:  cfg.TurnDegrees,
	}, logger)
	require.NoError(t, err)

	var seen []transition
	g.SetObserver(func(m, from, to string) { seen = append(seen, transition{m, from, to}) })

	cmds := &commandLog{}
	require.NoError(t, f.Add(PrioGame, "game", g, 0))
	require.NoError(t, f.Add(PrioLeader, "leader", cmds, 0))
	require.NoError(t, f.BindTimer(TimerGame, PrioGame))
	require.NoError(t, f.Start())
	f.Step()
	return f, g, cmds, &seen
}

func post(t *testing.T, f *es.Framework, kind es.EventKind) {
	t.Helper()
	require.NoError(t, f.Post(PrioGame, es.Event{Kind: kind}))
	f.Step()
}

func TestGameStartupSequence(t *testing.T) {
	f, g, cmds, seen := newGameRig(t)
	assert.Equal(t, "Startup/WaitingForStart", g.State())
	assert.Equal(t, spicmd.Stop(), cmds.last())

	post(t, f, EvBeaconDetected)
	assert.Equal(t, WaitingForStart, g.Startup(), "beacon before start is ignored")

	post(t, f, EvStartPressed)
	assert.Equal(t, Sweeping, g.Startup())
	assert.Equal(t, spicmd.OpBeaconSweep, cmds.last().Opcode())
	assert.True(t, f.TimerActive(TimerGame), "start press reaches the game level")

	post(t, f, EvBeaconDetected)
	assert.Equal(t, Aligning, g.Startup())
	assert.Equal(t, spicmd.BeaconFound(), cmds.last())

	post(t, f, EvBeaconAcknowledged)
	assert.Equal(t, spicmd.OpTapeAlign, cmds.last().Opcode())
	n := len(cmds.words)
	post(t, f, EvBeaconAcknowledged)
	assert.Len(t, cmds.words, n, "duplicate ack does not resend")

	post(t, f, EvTapeAligned)
	assert.Equal(t, GamePlaying, g.Top())
	assert.Equal(t, "Playing/Advancing", g.State())
	assert.Equal(t, spicmd.OpDriveUntilBump, cmds.last().Opcode())

	assert.Equal(t, []transition{
		{"startup", "WaitingForStart", "Sweeping"},
		{"startup", "Sweeping", "Aligning"},
		{"game", "Startup", "Playing"},
	}, *seen)
}

func TestGameRehomingLoop(t *testing.T) {
	f, g, cmds, _ := newGameRig(t)
	for _, k := range []es.EventKind{EvStartPressed, EvBeaconDetected, EvBeaconAcknowledged, EvTapeAligned} {
		post(t, f, k)
	}
	require.Equal(t, GamePlaying, g.Top())

	post(t, f, EvBumpOccurred)
	assert.Equal(t, BackingOff, g.Playing())
	c := spicmd.Decode(cmds.last())
	assert.Equal(t, spicmd.OpDriveDistance, c.Opcode)
	assert.Equal(t, spicmd.Backward, c.Direction)
	assert.Equal(t, uint8(20), c.Data)

	post(t, f, EvDriveGoalReached)
	assert.Equal(t, Turning, g.Playing())
	c = spicmd.Decode(cmds.last())
	assert.Equal(t, spicmd.Rotation, c.DriveType)
	assert.Equal(t, uint8(90), c.Data)

	post(t, f, EvDriveGoalReached)
	assert.Equal(t, Advancing, g.Playing())
}

func TestGameTimerEndsMatch(t *testing.T) {
	f, g, cmds, seen := newGameRig(t)
	post(t, f, EvStartPressed)
	post(t, f, EvBeaconDetected)
	post(t, f, EvBeaconAcknowledged)
	post(t, f, EvTapeAligned)
	post(t, f, EvBumpOccurred)
	require.Equal(t, BackingOff, g.Playing())

	f.StepN(1000)
	assert.Equal(t, GameOver, g.Top())
	assert.Equal(t, spicmd.Stop(), cmds.last())
	assert.Contains(t, *seen, transition{"game", "Playing", "GameOver"})

	// the playing sub-machine was exited, later drive outcomes are ignored
	post(t, f, EvDriveGoalReached)
	assert.Equal(t, GameOver, g.Top())

	post(t, f, EvStartPressed)
	assert.Equal(t, "Startup/WaitingForStart", g.State())
	assert.False(t, f.TimerActive(TimerGame))
}

func TestGameTimerDuringStartup(t *testing.T) {
	f, g, _, _ := newGameRig(t)
	post(t, f, EvStartPressed)
	f.StepN(1000)
	assert.Equal(t, GameOver, g.Top())
}

func TestGameKeysStandInForSensors(t *testing.T) {
	f, g, _, _ := newGameRig(t)
	post(t, f, EvStartPressed)

	require.NoError(t, f.Post(PrioGame, es.Event{Kind: es.NewKey, Param: 'x'}))
	f.Step()
	assert.Equal(t, Sweeping, g.Startup(), "unmapped key")

	require.NoError(t, f.Post(PrioGame, es.Event{Kind: es.NewKey, Param: 'b'}))
	f.Step()
	assert.Equal(t, Aligning, g.Startup())
}
