package xbee

import (
	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/hal"
)

// FrameHandler receives every complete frame. It runs inside the receive service's Run.
type FrameHandler func(frame []byte)

// RxConfig configures the receive service
type RxConfig struct {
	// FrameTimer is armed while a frame is partially received
	FrameTimer es.TimerID
	// FrameTimeoutTicks discards a partial frame after this many ticks without a byte; 0 waits forever
	FrameTimeoutTicks int32
}

// RxService feeds ByteReceived events into a Receiver
type RxService struct {
	rt      es.Runtime
	log     logrus.FieldLogger
	cfg     RxConfig
	rx      Receiver
	handler FrameHandler

	frames   uint64
	timeouts uint64
}

func NewRxService(rt es.Runtime, cfg RxConfig, handler FrameHandler, log logrus.FieldLogger) *RxService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RxService{rt: rt, cfg: cfg, handler: handler, log: log}
}

func (s *RxService) Init() error {
	s.rx.Abort()
	return nil
}

func (s *RxService) Run(e es.Event) es.Event {
	switch e.Kind {
	case es.ByteReceived:
		frame, done := s.rx.Feed(byte(e.Param))
		if done {
			s.frames++
			s.rt.StopTimer(s.cfg.FrameTimer)
			if s.handler != nil {
				s.handler(frame)
			}
			return es.None
		}
		if s.rx.Busy() && s.cfg.FrameTimeoutTicks > 0 {
			if err := s.rt.InitTimer(s.cfg.FrameTimer, s.cfg.FrameTimeoutTicks); err != nil {
				return es.Event{Kind: es.Error, Param: uint16(s.cfg.FrameTimer)}
			}
		}

	case es.Timeout:
		if e.Param != uint16(s.cfg.FrameTimer) || !s.rx.Busy() {
			return es.None
		}
		s.timeouts++
		s.log.WithField("state", s.rx.State().String()).Warn("partial frame discarded")
		s.rx.Abort()
	}
	return es.None
}

// State returns the receive machine's state
func (s *RxService) State() RxState {
	return s.rx.State()
}

// Frames returns how many complete frames were handed to the handler
func (s *RxService) Frames() uint64 {
	return s.frames
}

// Timeouts returns how many partial frames were discarded by the frame timer
func (s *RxService) Timeouts() uint64 {
	return s.timeouts
}

// TxService writes a loaded frame to the UART one byte per TxEmpty event
type TxService struct {
	uart hal.UART
	log  logrus.FieldLogger
	tx   Transmitter
	sent uint64
}

func NewTxService(uart hal.UART, log logrus.FieldLogger) *TxService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TxService{uart: uart, log: log}
}

func (s *TxService) Init() error {
	s.tx.Reset()
	return nil
}

// Send queues a whole frame. It returns ErrBusy while the previous frame is still going out.
func (s *TxService) Send(frame []byte) error {
	return s.tx.Load(frame)
}

func (s *TxService) Run(e es.Event) es.Event {
	if e.Kind != es.TxEmpty {
		return es.None
	}
	b, ok := s.tx.Next()
	if !ok {
		return es.None
	}
	if err := s.uart.WriteByte(b); err != nil {
		s.log.WithError(err).Warn("uart write failed, frame abandoned")
		s.tx.Reset()
		return es.None
	}
	if !s.tx.Busy() {
		s.sent++
	}
	return es.None
}

// Busy reports whether a frame is in flight
func (s *TxService) Busy() bool {
	return s.tx.Busy()
}

// Sent returns how many frames have been written completely
func (s *TxService) Sent() uint64 {
	return s.sent
}

// RxChecker moves one received byte per pass from the UART into a ByteReceived event
func RxChecker(uart hal.UART, p es.Poster, dest es.Priority, log logrus.FieldLogger) es.Checker {
	return func() bool {
		if !uart.RxAvailable() {
			return false
		}
		b, err := uart.ReadByte()
		if err != nil {
			log.WithError(err).Warn("uart read failed")
			return false
		}
		return p.Post(dest, es.Event{Kind: es.ByteReceived, Param: uint16(b)}) == nil
	}
}

// TxChecker posts TxEmpty while the service has bytes left and the UART can take one
func TxChecker(uart hal.UART, svc *TxService, p es.Poster, dest es.Priority) es.Checker {
	return func() bool {
		if !svc.Busy() || !uart.TxReady() {
			return false
		}
		return p.Post(dest, es.Event{Kind: es.TxEmpty}) == nil
	}
}
