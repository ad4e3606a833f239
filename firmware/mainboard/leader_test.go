package mainboard

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/spicmd"
)

// scriptedLink answers each send with the next scripted word, then with StillWorking
type scriptedLink struct {
	sent      []spicmd.Word
	responses []uint16
	latch     uint16
	full      bool
	sendErr   error
}

func (l *scriptedLink) SendWord(w uint16) error {
	if l.sendErr != nil {
		return l.sendErr
	}
	l.sent = append(l.sent, spicmd.Word(w))
	l.latch = uint16(spicmd.StillWorkingWord)
	if len(l.responses) > 0 {
		l.latch = l.responses[0]
		l.responses = l.responses[1:]
	}
	l.full = true
	return nil
}

func (l *scriptedLink) RxFull() bool { return l.full }

func (l *scriptedLink) ReadWord() uint16 {
	l.full = false
	return l.latch
}

type eventSink struct {
	events []es.Event
}

func (s *eventSink) Init() error { return nil }

func (s *eventSink) Run(e es.Event) es.Event {
	if e.Kind != es.Init {
		s.events = append(s.events, e)
	}
	return es.None
}

const (
	testPrioSink es.Priority = iota
	testPrioLeader
)

func newLeaderRig(t *testing.T, responses ...uint16) (*es.Framework, *scriptedLink, *Leader, *eventSink, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := es.New(es.Config{Logger: logger})
	link := &scriptedLink{responses: responses}
	sink := &eventSink{}
	l := NewLeader(f, link, LeaderConfig{PollTimer: TimerPoll, PollTicks: 10, Notify: testPrioSink}, logger)

	require.NoError(t, f.Add(testPrioSink, "sink", sink, 0))
	require.NoError(t, f.Add(testPrioLeader, "leader", l, 0))
	require.NoError(t, f.BindTimer(TimerPoll, testPrioLeader))
	f.AddChecker("spi-rx", LinkChecker(link, f, testPrioLeader))
	require.NoError(t, f.Start())
	return f, link, l, sink, hook
}

func TestResponseEventMapping(t *testing.T) {
	want := map[spicmd.Response]es.EventKind{
		spicmd.RespGoalReached:        EvDriveGoalReached,
		spicmd.RespBumpSuccess:        EvBumpOccurred,
		spicmd.RespTapeSuccess:        EvTapeAligned,
		spicmd.RespStopAcknowledged:   EvStopAcknowledged,
		spicmd.RespBeaconAcknowledged: EvBeaconAcknowledged,
	}

	seen := map[es.EventKind]bool{}
	for r := spicmd.Response(0); r <= 0xF; r++ {
		ev, ok := ResponseEvent(spicmd.EncodeResponse(r, 0x11))
		kind, defined := want[r]
		if !defined {
			assert.False(t, ok, "response %s must map to nothing", r)
			continue
		}
		require.True(t, ok, r.String())
		assert.Equal(t, kind, ev.Kind)
		assert.Equal(t, uint16(0x11), ev.Param)
		assert.False(t, seen[kind], "two responses map to %s", kind)
		seen[kind] = true
	}

	_, ok := ResponseEvent(0)
	assert.False(t, ok)
	_, ok = ResponseEvent(spicmd.StillWorkingWord)
	assert.False(t, ok)
}

func TestLeaderSendReceiveLoop(t *testing.T) {
	f, link, l, sink, _ := newLeaderRig(t)
	assert.Equal(t, LeaderInit, l.State())

	f.Step()
	assert.Equal(t, LeaderSend, l.State())
	assert.Equal(t, []spicmd.Word{spicmd.PollWord}, link.sent)

	f.Step()
	assert.Equal(t, LeaderReceive, l.State())

	// polls once per period
	f.StepN(10)
	assert.Len(t, link.sent, 2)
	f.StepN(11)
	assert.Len(t, link.sent, 3)
	assert.Empty(t, sink.events, "StillWorking is never delivered")
}

func TestLeaderDeliversOutcome(t *testing.T) {
	f, link, _, sink, _ := newLeaderRig(t,
		uint16(spicmd.StillWorkingWord),
		uint16(spicmd.EncodeResponse(spicmd.RespBumpSuccess, 0)),
	)
	f.Step()
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: EvSendCommand, Param: uint16(spicmd.UntilBump(spicmd.Forward, spicmd.SpeedHigh))}))

	f.StepN(30)
	require.GreaterOrEqual(t, len(link.sent), 3)
	assert.Equal(t, spicmd.PollWord, link.sent[0])
	assert.Equal(t, spicmd.UntilBump(spicmd.Forward, spicmd.SpeedHigh), link.sent[1], "pending command replaces the next poll")
	assert.Equal(t, spicmd.PollWord, link.sent[2])
	assert.Equal(t, []es.Event{{Kind: EvBumpOccurred}}, sink.events)
}

func TestLeaderSuppressesCommsError(t *testing.T) {
	f, _, l, sink, hook := newLeaderRig(t, 0, 0, 0)
	f.StepN(40)
	assert.Empty(t, sink.events)
	assert.Equal(t, uint64(3), l.CommsErrors())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "spi comms error: all-zero response" {
			warned = true
		}
	}
	assert.True(t, warned)
	assert.NotEqual(t, LeaderInit, l.State(), "comms errors never halt the leader")
}

func TestLeaderZeroWordInSendState(t *testing.T) {
	f, _, l, sink, _ := newLeaderRig(t)
	f.Step()
	require.Equal(t, LeaderSend, l.State())

	// a stray zero word injected in either state maps to nothing
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: es.WordReceived, Param: 0}))
	f.DispatchOnePass()
	assert.Equal(t, LeaderReceive, l.State())
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: es.WordReceived, Param: 0}))
	f.DispatchOnePass()
	f.DispatchOnePass()
	assert.Empty(t, sink.events)
}

func TestLeaderReset(t *testing.T) {
	f, link, l, _, _ := newLeaderRig(t)
	f.StepN(3)
	require.Equal(t, LeaderReceive, l.State())

	n := len(link.sent)
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: EvSPIReset}))
	f.DispatchOnePass()
	assert.Equal(t, LeaderSend, l.State())
	assert.Len(t, link.sent, n+1)
}

func TestLeaderSendFailureKeepsCommand(t *testing.T) {
	f, link, l, _, _ := newLeaderRig(t)
	link.sendErr = errors.New("bus fault")
	stop := spicmd.Stop()
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: EvSendCommand, Param: uint16(stop)}))
	f.StepN(5)
	assert.Equal(t, LeaderSend, l.State())
	assert.Empty(t, link.sent)

	link.sendErr = nil
	f.StepN(10)
	require.NotEmpty(t, link.sent)
	assert.Equal(t, stop, link.sent[0])
}

func TestLeaderReplacesPendingCommand(t *testing.T) {
	f, link, _, _, hook := newLeaderRig(t)
	f.Step()
	sweep := spicmd.BeaconSweep(spicmd.Clockwise, spicmd.SpeedLow)
	stop := spicmd.Stop()
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: EvSendCommand, Param: uint16(sweep)}))
	require.NoError(t, f.Post(testPrioLeader, es.Event{Kind: EvSendCommand, Param: uint16(stop)}))
	f.DispatchOnePass()

	var warned *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "pending command replaced before it was sent" {
			warned = e
		}
	}
	require.NotNil(t, warned)
	assert.Equal(t, sweep.String(), warned.Data["dropped"])
	assert.Equal(t, stop.String(), warned.Data["command"])

	f.StepN(20)
	assert.Contains(t, link.sent, stop)
	assert.NotContains(t, link.sent, sweep)
}
