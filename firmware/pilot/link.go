package pilot

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal"
	"github.com/robotarena/esfw/xbee"
)

const (
	// EvPairAcknowledged carries the Tug's address
	EvPairAcknowledged es.EventKind = es.UserEvent + 3*es.EventRange + iota
	// EvStatusReceived carries the Tug's fuel level
	EvStatusReceived
	EvRefuelPressed
)

func init() {
	es.MustRegisterNames(map[es.EventKind]string{
		EvPairAcknowledged: "PairAcknowledged",
		EvStatusReceived:   "StatusReceived",
		EvRefuelPressed:    "RefuelPressed",
	})
}

// LinkState is the Pilot's side of the pairing protocol
type LinkState uint8

const (
	AttemptingToPair LinkState = iota
	Paired
)

func (s LinkState) String() string {
	switch s {
	case AttemptingToPair:
		return "AttemptingToPair"
	case Paired:
		return "Paired"
	default:
		return "Unknown"
	}
}

const (
	DefaultCommsTimeoutTicks = 5000
	DefaultTxPeriodTicks     = 200
	// DefaultADCMax is full scale for a 10-bit converter
	DefaultADCMax = 1023
)

// Sender takes a whole frame for transmission; xbee.TxService implements it
type Sender interface {
	Send(frame []byte) error
}

// Controls are the Pilot's inputs. Thrust and Yaw may be nil for a centred stick; Mode3 may be nil.
type Controls struct {
	Thrust hal.ADC
	Yaw    hal.ADC
	Mode3  hal.Pin
	// ADCMax is the raw reading at full deflection
	ADCMax int32
}

// LinkConfig has values for the link service
type LinkConfig struct {
	Tug               uint16
	Team              esfw.TeamColor
	CommsTimer        es.TimerID
	TxTimer           es.TimerID
	CommsTimeoutTicks int32
	TxPeriodTicks     int32
	// Self is the link's own priority; the frame handler posts to it
	Self es.Priority
}

// Link pairs with the configured Tug and then streams Control messages at the transmit rate. A Tug
// that goes quiet for the comms timeout is given up on and pairing starts again.
type Link struct {
	rt       es.Runtime
	tx       Sender
	controls Controls
	cfg      LinkConfig
	log      logrus.FieldLogger
	m        *es.Machine[LinkState]

	refuel   bool
	status   xbee.Status
	sent     map[xbee.MessageType]uint64
	rejected uint64
	observer func(from, to LinkState)
}

func NewLink(rt es.Runtime, tx Sender, controls Controls, cfg LinkConfig, log logrus.FieldLogger) (*Link, error) {
	if cfg.CommsTimeoutTicks <= 0 {
		cfg.CommsTimeoutTicks = DefaultCommsTimeoutTicks
	}
	if cfg.TxPeriodTicks <= 0 {
		cfg.TxPeriodTicks = DefaultTxPeriodTicks
	}
	if controls.ADCMax <= 0 {
		controls.ADCMax = DefaultADCMax
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	l := &Link{rt: rt, tx: tx, controls: controls, cfg: cfg, log: log, sent: map[xbee.MessageType]uint64{}}

	var err error
	l.m, err = es.NewMachine("link", AttemptingToPair, map[LinkState]es.During[LinkState]{
		AttemptingToPair: l.duringAttemptingToPair,
		Paired:           l.duringPaired,
	}, log)
	if err != nil {
		return nil, err
	}
	l.m.OnTransition = func(from, to LinkState) {
		if l.observer != nil {
			l.observer(from, to)
		}
	}
	return l, nil
}

// SetObserver installs a transition observer
func (l *Link) SetObserver(fn func(from, to LinkState)) {
	l.observer = fn
}

func (l *Link) Init() error {
	return nil
}

func (l *Link) Run(e es.Event) es.Event {
	switch {
	case e.Kind == es.Init:
		l.m.Start(es.Entry)
	case e.Kind == es.Timeout && e.Param == uint16(l.cfg.TxTimer):
		l.transmit()
		l.armTx()
	case e.Kind == EvRefuelPressed:
		// carried by the next Control message
		l.refuel = true
	default:
		l.m.Run(e)
	}
	return es.None
}

// State returns the current link state
func (l *Link) State() LinkState {
	return l.m.Current()
}

// Status returns the last Status received from the Tug
func (l *Link) Status() xbee.Status {
	return l.status
}

// Sent counts frames handed to the transmitter by message type
func (l *Link) Sent(msg xbee.MessageType) uint64 {
	return l.sent[msg]
}

// Rejected counts frames dropped by the parser
func (l *Link) Rejected() uint64 {
	return l.rejected
}

// HandleFrame is the receive service's frame handler
func (l *Link) HandleFrame(frame []byte) {
	pkt, err := xbee.Parse(frame, l.accepts)
	if err != nil {
		l.rejected++
		l.log.WithError(err).WithField("state", l.State().String()).Warn("frame dropped")
		return
	}
	if pkt.Source != l.cfg.Tug {
		l.rejected++
		l.log.WithField("source", fmt.Sprintf("0x%04X", pkt.Source)).Warn("frame from other tug dropped")
		return
	}

	switch pkt.Type {
	case xbee.MsgPairingAcknowledged:
		l.post(es.Event{Kind: EvPairAcknowledged, Param: pkt.Source})
	case xbee.MsgStatus:
		l.status = xbee.ParseStatus(pkt.Payload)
		l.post(es.Event{Kind: EvStatusReceived, Param: uint16(l.status.Fuel)})
	}
}

func (l *Link) accepts(msg xbee.MessageType) bool {
	if l.State() == Paired {
		return msg == xbee.MsgStatus
	}
	return msg == xbee.MsgPairingAcknowledged
}

func (l *Link) post(e es.Event) {
	if err := l.rt.Post(l.cfg.Self, e); err != nil {
		l.log.WithError(err).WithField("event", e.String()).Warn("event dropped")
	}
}

// transmit picks the message for the state the link is actually in
func (l *Link) transmit() {
	msg := xbee.MsgRequestToPair
	payload := xbee.RequestToPair{Team: l.cfg.Team}.Payload()
	if l.State() == Paired {
		msg = xbee.MsgControl
		payload = l.sample().Payload()
	}

	frame, err := xbee.EncodeTx(l.cfg.Tug, 0, msg, payload)
	if err != nil {
		l.log.WithError(err).WithField("message", msg.String()).Error("frame not built")
		return
	}
	if err := l.tx.Send(frame); err != nil {
		l.log.WithError(err).WithField("message", msg.String()).Debug("frame not sent")
		return
	}
	l.sent[msg]++
	if msg == xbee.MsgControl {
		l.refuel = false
	}
}

func (l *Link) sample() xbee.Control {
	c := xbee.Control{
		ThrustX: l.axis(l.controls.Thrust),
		Yaw:     l.axis(l.controls.Yaw),
		Refuel:  l.refuel,
	}
	if l.controls.Mode3 != nil {
		c.Mode3 = bool(l.controls.Mode3.Read())
	}
	return c
}

// axis scales a raw ADC reading into the offset binary joystick byte
func (l *Link) axis(adc hal.ADC) uint8 {
	if adc == nil {
		return xbee.NeutralAxis
	}
	s, err := adc.Read()
	if err != nil {
		l.log.WithError(err).Warn("adc read failed, axis centred")
		return xbee.NeutralAxis
	}
	raw := min(max(s.Raw, 0), l.controls.ADCMax)
	return uint8(raw * 255 / l.controls.ADCMax)
}

func (l *Link) armTimers() {
	if err := l.rt.InitTimer(l.cfg.CommsTimer, l.cfg.CommsTimeoutTicks); err != nil {
		l.log.WithError(err).Error("comms timer not armed")
	}
	l.armTx()
}

func (l *Link) armTx() {
	if err := l.rt.InitTimer(l.cfg.TxTimer, l.cfg.TxPeriodTicks); err != nil {
		l.log.WithError(err).Error("tx timer not armed")
	}
}

func (l *Link) isCommsTimeout(e es.Event) bool {
	return e.Kind == es.Timeout && e.Param == uint16(l.cfg.CommsTimer)
}

func (l *Link) duringAttemptingToPair(e es.Event) es.Result[LinkState] {
	switch {
	case e.Kind == es.Entry:
		l.status = xbee.Status{}
		l.armTimers()
	case e.Kind == EvPairAcknowledged:
		l.log.WithField("tug", fmt.Sprintf("0x%04X", e.Param)).Info("paired")
		return es.GoTo(Paired)
	case l.isCommsTimeout(e):
		// keep asking; the timer only matters once paired
		return es.GoTo(AttemptingToPair)
	}
	return es.Pass[LinkState](e)
}

func (l *Link) duringPaired(e es.Event) es.Result[LinkState] {
	switch {
	case e.Kind == es.Entry:
		l.armTimers()
	case e.Kind == EvStatusReceived:
		if err := l.rt.InitTimer(l.cfg.CommsTimer, l.cfg.CommsTimeoutTicks); err != nil {
			l.log.WithError(err).Error("comms timer not armed")
		}
		return es.Consume[LinkState]()
	case l.isCommsTimeout(e):
		l.log.WithField("tug", fmt.Sprintf("0x%04X", l.cfg.Tug)).Warn("comms timeout, pairing again")
		return es.GoTo(AttemptingToPair)
	}
	return es.Pass[LinkState](e)
}
