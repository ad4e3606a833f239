package pilot

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal/sim"
	"github.com/robotarena/esfw/xbee"
)

const (
	testPrio        es.Priority = 0
	testCommsTimer  es.TimerID  = 0
	testTxTimer     es.TimerID  = 1
	testTugAddress              = esfw.DefaultTugAddress
	otherTugAddress uint16      = 0x2201
)

type frameLog struct {
	frames [][]byte
	err    error
}

func (f *frameLog) Send(frame []byte) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *frameLog) requests(t *testing.T) []xbee.TxRequest {
	t.Helper()
	var out []xbee.TxRequest
	for _, frame := range f.frames {
		r, err := xbee.ParseTx(frame)
		require.NoError(t, err)
		out = append(out, r)
	}
	return out
}

func (f *frameLog) last(t *testing.T) xbee.TxRequest {
	t.Helper()
	reqs := f.requests(t)
	require.NotEmpty(t, reqs)
	return reqs[len(reqs)-1]
}

type linkRig struct {
	fw     *es.Framework
	link   *Link
	sent   *frameLog
	thrust *sim.ADC
	yaw    *sim.ADC
	mode3  *sim.Pin
}

func newLinkRig(t *testing.T) *linkRig {
	t.Helper()
	logger, _ := test.NewNullLogger()
	r := &linkRig{
		fw:     es.New(es.Config{Logger: logger}),
		sent:   &frameLog{},
		thrust: &sim.ADC{},
		yaw:    &sim.ADC{},
		mode3:  &sim.Pin{},
	}
	var err error
	r.link, err = NewLink(r.fw, r.sent, Controls{Thrust: r.thrust, Yaw: r.yaw, Mode3: r.mode3}, LinkConfig{
		Tug:        testTugAddress,
		Team:       esfw.TeamBlue,
		CommsTimer: testCommsTimer,
		TxTimer:    testTxTimer,
		Self:       testPrio,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, r.fw.Add(testPrio, "link", r.link, 0))
	require.NoError(t, r.fw.BindTimer(testCommsTimer, testPrio))
	require.NoError(t, r.fw.BindTimer(testTxTimer, testPrio))
	require.NoError(t, r.fw.Start())
	r.fw.Step()
	return r
}

func (r *linkRig) post(t *testing.T, e es.Event) {
	t.Helper()
	require.NoError(t, r.fw.Post(testPrio, e))
	r.fw.Step()
}

func rxFrame(t *testing.T, src uint16, msg xbee.MessageType, payload []byte) []byte {
	t.Helper()
	frame, err := xbee.EncodeRx(src, 0x28, 0, msg, payload)
	require.NoError(t, err)
	return frame
}

func TestLinkRequestsPairing(t *testing.T) {
	r := newLinkRig(t)
	assert.Equal(t, AttemptingToPair, r.link.State())

	r.fw.StepN(DefaultTxPeriodTicks - 1)
	assert.Empty(t, r.sent.frames)
	r.fw.Step()
	req := r.sent.last(t)
	assert.Equal(t, xbee.MsgRequestToPair, req.Type)
	assert.Equal(t, testTugAddress, req.Dest)
	assert.Equal(t, esfw.TeamBlue, xbee.ParseRequestToPair(req.Payload).Team)

	// 5 Hz
	r.fw.StepN(4 * DefaultTxPeriodTicks)
	assert.Equal(t, uint64(5), r.link.Sent(xbee.MsgRequestToPair))
}

func TestLinkSendsControlOncePaired(t *testing.T) {
	r := newLinkRig(t)
	r.thrust.Set(DefaultADCMax)
	r.yaw.Set(0)
	r.mode3.Set(gpio.High)

	r.post(t, es.Event{Kind: EvPairAcknowledged, Param: testTugAddress})
	require.Equal(t, Paired, r.link.State())

	r.fw.StepN(DefaultTxPeriodTicks)
	req := r.sent.last(t)
	require.Equal(t, xbee.MsgControl, req.Type)
	assert.Equal(t, xbee.Control{ThrustX: 255, Yaw: 0, Mode3: true}, xbee.ParseControl(req.Payload))

	// refuel rides on exactly one control message
	r.post(t, es.Event{Kind: EvRefuelPressed})
	r.fw.StepN(DefaultTxPeriodTicks)
	assert.True(t, xbee.ParseControl(r.sent.last(t).Payload).Refuel)
	r.fw.StepN(DefaultTxPeriodTicks)
	assert.False(t, xbee.ParseControl(r.sent.last(t).Payload).Refuel)
}

func TestLinkKeepsRefuelWhenSendFails(t *testing.T) {
	r := newLinkRig(t)
	r.post(t, es.Event{Kind: EvPairAcknowledged, Param: testTugAddress})
	r.post(t, es.Event{Kind: EvRefuelPressed})

	r.sent.err = xbee.ErrBusy
	r.fw.StepN(DefaultTxPeriodTicks)
	assert.Zero(t, r.link.Sent(xbee.MsgControl))

	r.sent.err = nil
	r.fw.StepN(DefaultTxPeriodTicks)
	assert.True(t, xbee.ParseControl(r.sent.last(t).Payload).Refuel)
}

func TestLinkCommsTimeout(t *testing.T) {
	r := newLinkRig(t)
	r.post(t, es.Event{Kind: EvPairAcknowledged, Param: testTugAddress})

	r.fw.StepN(DefaultCommsTimeoutTicks - 2)
	r.post(t, es.Event{Kind: EvStatusReceived})
	r.fw.StepN(DefaultCommsTimeoutTicks - 1)
	assert.Equal(t, Paired, r.link.State())

	r.fw.Step()
	assert.Equal(t, AttemptingToPair, r.link.State())

	// the next transmission goes back to asking
	r.fw.StepN(DefaultTxPeriodTicks)
	assert.Equal(t, xbee.MsgRequestToPair, r.sent.last(t).Type)
}

func TestLinkHandleFrame(t *testing.T) {
	r := newLinkRig(t)

	r.link.HandleFrame(rxFrame(t, testTugAddress, xbee.MsgStatus, xbee.Status{Fuel: 10}.Payload()))
	assert.Equal(t, uint64(1), r.link.Rejected(), "status before pairing")

	r.link.HandleFrame(rxFrame(t, otherTugAddress, xbee.MsgPairingAcknowledged, nil))
	assert.Equal(t, uint64(2), r.link.Rejected(), "another tug's acknowledgement")

	r.link.HandleFrame(rxFrame(t, testTugAddress, xbee.MsgPairingAcknowledged, nil))
	r.fw.Step()
	assert.Equal(t, Paired, r.link.State())

	r.link.HandleFrame(rxFrame(t, testTugAddress, xbee.MsgStatus, xbee.Status{Fuel: 42, Paired: true, Team: esfw.TeamBlue}.Payload()))
	r.fw.Step()
	assert.Equal(t, uint8(42), r.link.Status().Fuel)
	assert.Equal(t, esfw.TeamBlue, r.link.Status().Team)
	assert.Equal(t, uint64(2), r.link.Rejected())
}

type brokenADC struct{}

func (brokenADC) Read() (analog.Sample, error) {
	return analog.Sample{}, errors.New("conversion failed")
}

func TestLinkAxisScaling(t *testing.T) {
	r := newLinkRig(t)
	for _, tc := range []struct {
		raw  int32
		want uint8
	}{
		{-5, 0},
		{0, 0},
		{512, 127},
		{DefaultADCMax, 255},
		{4000, 255},
	} {
		r.thrust.Set(tc.raw)
		assert.Equal(t, tc.want, r.link.axis(r.thrust), "raw %d", tc.raw)
	}
	assert.Equal(t, uint8(xbee.NeutralAxis), r.link.axis(nil))
	assert.Equal(t, uint8(xbee.NeutralAxis), r.link.axis(brokenADC{}))
}
