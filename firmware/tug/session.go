package tug

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/xbee"
)

// SessionState is the Tug's side of the pairing protocol
type SessionState uint8

const (
	WaitingForPairRequest SessionState = iota
	WaitingForControlPacket
	Paired
)

func (s SessionState) String() string {
	switch s {
	case WaitingForPairRequest:
		return "WaitingForPairRequest"
	case WaitingForControlPacket:
		return "WaitingForControlPacket"
	case Paired:
		return "Paired"
	default:
		return "Unknown"
	}
}

const (
	DefaultCommsTimeoutTicks = 5000
	DefaultTxPeriodTicks     = 200
)

// Sender takes a whole frame for transmission; xbee.TxService implements it
type Sender interface {
	Send(frame []byte) error
}

// FuelGauge reports the tank level sent in Status messages
type FuelGauge interface {
	Level() uint8
}

// SessionConfig has values for the session service
type SessionConfig struct {
	Team              esfw.TeamColor
	CommsTimer        es.TimerID
	TxTimer           es.TimerID
	CommsTimeoutTicks int32
	TxPeriodTicks     int32

	// Self is the session's own priority; the frame handler posts to it
	Self       es.Priority
	Propulsion es.Priority
	Fuel       es.Priority
}

// Session pairs with one Pilot at a time and keeps the link alive. Any comms timeout or press of the
// pairing button drops the session and idles propulsion.
type Session struct {
	rt    es.Runtime
	tx    Sender
	fuel  FuelGauge
	cfg   SessionConfig
	log   logrus.FieldLogger
	m     *es.Machine[SessionState]
	peer  uint16
	mode3 bool

	rejected  uint64
	teardowns uint64
	observer  func(from, to SessionState)
}

func NewSession(rt es.Runtime, tx Sender, fuel FuelGauge, cfg SessionConfig, log logrus.FieldLogger) (*Session, error) {
	if cfg.CommsTimeoutTicks <= 0 {
		cfg.CommsTimeoutTicks = DefaultCommsTimeoutTicks
	}
	if cfg.TxPeriodTicks <= 0 {
		cfg.TxPeriodTicks = DefaultTxPeriodTicks
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{rt: rt, tx: tx, fuel: fuel, cfg: cfg, log: log}

	var err error
	s.m, err = es.NewMachine("session", WaitingForPairRequest, map[SessionState]es.During[SessionState]{
		WaitingForPairRequest:   s.duringWaitingForPairRequest,
		WaitingForControlPacket: s.duringWaitingForControlPacket,
		Paired:                  s.duringPaired,
	}, log)
	if err != nil {
		return nil, err
	}
	s.m.OnTransition = func(from, to SessionState) {
		if s.observer != nil {
			s.observer(from, to)
		}
	}
	return s, nil
}

// SetObserver installs a transition observer
func (s *Session) SetObserver(fn func(from, to SessionState)) {
	s.observer = fn
}

func (s *Session) Init() error {
	return nil
}

func (s *Session) Run(e es.Event) es.Event {
	if e.Kind == es.Init {
		s.m.Start(es.Entry)
		return es.None
	}
	s.m.Run(e)
	return es.None
}

// State returns the current session state
func (s *Session) State() SessionState {
	return s.m.Current()
}

// Peer returns the paired Pilot's address, or 0
func (s *Session) Peer() uint16 {
	return s.peer
}

// Rejected counts frames dropped by the parser
func (s *Session) Rejected() uint64 {
	return s.rejected
}

// Teardowns counts sessions reset by timeout or the pairing button
func (s *Session) Teardowns() uint64 {
	return s.teardowns
}

// HandleFrame is the receive service's frame handler. It applies the acceptance gates for the current
// state and turns a valid message into local events.
func (s *Session) HandleFrame(frame []byte) {
	pkt, err := xbee.Parse(frame, s.accepts)
	if err != nil {
		s.rejected++
		entry := s.log.WithError(err).WithField("state", s.State().String())
		if errors.Is(err, xbee.ErrWrongAPI) {
			entry.Debug("frame dropped")
		} else {
			entry.Warn("frame dropped")
		}
		return
	}

	switch pkt.Type {
	case xbee.MsgRequestToPair:
		req := xbee.ParseRequestToPair(pkt.Payload)
		if req.Team != esfw.TeamUnknown && s.cfg.Team != esfw.TeamUnknown && req.Team != s.cfg.Team {
			s.rejected++
			s.log.WithField("source", fmt.Sprintf("0x%04X", pkt.Source)).WithField("team", req.Team.String()).
				Warn("pair request from other team dropped")
			return
		}
		s.post(s.cfg.Self, es.Event{Kind: EvPairRequest, Param: pkt.Source})

	case xbee.MsgControl:
		if pkt.Source != s.peer {
			s.rejected++
			s.log.WithField("source", fmt.Sprintf("0x%04X", pkt.Source)).
				WithField("peer", fmt.Sprintf("0x%04X", s.peer)).Warn("control from unpaired pilot dropped")
			return
		}
		c := xbee.ParseControl(pkt.Payload)
		s.mode3 = c.Mode3
		s.post(s.cfg.Self, es.Event{Kind: EvControlPacket, Param: pkt.Source})
		s.post(s.cfg.Propulsion, es.Event{Kind: EvMode3, Param: flag(c.Mode3)})
		s.post(s.cfg.Propulsion, es.Event{Kind: EvThrust, Param: uint16(c.ThrustX)<<8 | uint16(c.Yaw)})
		if c.Refuel {
			s.post(s.cfg.Fuel, es.Event{Kind: EvRefuel})
		}
	}
}

func (s *Session) accepts(msg xbee.MessageType) bool {
	if s.State() == WaitingForPairRequest {
		return msg == xbee.MsgRequestToPair
	}
	return msg == xbee.MsgControl
}

func (s *Session) post(p es.Priority, e es.Event) {
	if err := s.rt.Post(p, e); err != nil {
		s.log.WithError(err).WithField("event", e.String()).Warn("event dropped")
	}
}

func (s *Session) armTimers() {
	if err := s.rt.InitTimer(s.cfg.CommsTimer, s.cfg.CommsTimeoutTicks); err != nil {
		s.log.WithError(err).Error("comms timer not armed")
	}
	s.armTx()
}

func (s *Session) armTx() {
	if err := s.rt.InitTimer(s.cfg.TxTimer, s.cfg.TxPeriodTicks); err != nil {
		s.log.WithError(err).Error("tx timer not armed")
	}
}

func (s *Session) isTimeout(e es.Event, id es.TimerID) bool {
	return e.Kind == es.Timeout && e.Param == uint16(id)
}

// teardown handles the events that reset the session from any state
func (s *Session) teardown(e es.Event) (es.Result[SessionState], bool) {
	switch {
	case s.isTimeout(e, s.cfg.CommsTimer):
		if s.peer != 0 {
			s.log.WithField("peer", fmt.Sprintf("0x%04X", s.peer)).Warn("comms timeout, session dropped")
		}
	case e.Kind == EvPairButton:
		s.log.Info("pairing button pressed, session reset")
	default:
		return es.Result[SessionState]{}, false
	}
	if s.peer != 0 {
		s.teardowns++
	}
	s.post(s.cfg.Propulsion, es.Event{Kind: EvPropulsionIdle})
	return es.GoTo(WaitingForPairRequest), true
}

func (s *Session) send(msg xbee.MessageType, payload []byte) {
	frame, err := xbee.EncodeTx(s.peer, 0, msg, payload)
	if err != nil {
		s.log.WithError(err).WithField("message", msg.String()).Error("frame not built")
		return
	}
	if err := s.tx.Send(frame); err != nil {
		s.log.WithError(err).WithField("message", msg.String()).Warn("frame not sent")
	}
}

func (s *Session) duringWaitingForPairRequest(e es.Event) es.Result[SessionState] {
	if r, ok := s.teardown(e); ok {
		return r
	}
	switch {
	case e.Kind == es.Entry:
		s.peer = 0
		s.mode3 = false
		s.armTimers()
	case e.Kind == EvPairRequest:
		s.peer = e.Param
		s.log.WithField("peer", fmt.Sprintf("0x%04X", s.peer)).Info("pair request accepted")
		return es.GoTo(WaitingForControlPacket)
	case s.isTimeout(e, s.cfg.TxTimer):
		// nobody to talk to yet
		s.armTx()
	}
	return es.Pass[SessionState](e)
}

func (s *Session) duringWaitingForControlPacket(e es.Event) es.Result[SessionState] {
	if r, ok := s.teardown(e); ok {
		return r
	}
	switch {
	case e.Kind == es.Entry:
		s.armTimers()
	case e.Kind == EvControlPacket:
		return es.GoTo(Paired)
	case s.isTimeout(e, s.cfg.TxTimer):
		s.send(xbee.MsgPairingAcknowledged, []byte{byte(s.cfg.Team)})
		s.armTx()
	}
	return es.Pass[SessionState](e)
}

func (s *Session) duringPaired(e es.Event) es.Result[SessionState] {
	if r, ok := s.teardown(e); ok {
		return r
	}
	switch {
	case e.Kind == es.Entry:
		s.armTimers()
	case e.Kind == EvControlPacket:
		s.armTimers()
		return es.Consume[SessionState]()
	case s.isTimeout(e, s.cfg.TxTimer):
		var level uint8
		if s.fuel != nil {
			level = s.fuel.Level()
		}
		st := xbee.Status{Fuel: level, Paired: true, Mode3: s.mode3, Team: s.cfg.Team}
		s.send(xbee.MsgStatus, st.Payload())
		s.armTx()
	}
	return es.Pass[SessionState](e)
}
