package mainboard

import (
	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/spicmd"
)

// Link is the leader end of the SPI bus. hal.Leader implements it.
type Link interface {
	SendWord(w uint16) error
	RxFull() bool
	ReadWord() uint16
}

// LeaderState is the state of the SPI leader machine
type LeaderState uint8

const (
	LeaderInit LeaderState = iota
	LeaderSend
	LeaderReceive
)

func (s LeaderState) String() string {
	switch s {
	case LeaderInit:
		return "Init"
	case LeaderSend:
		return "Send"
	case LeaderReceive:
		return "Receive"
	default:
		return "Unknown"
	}
}

// LeaderConfig has values for the SPI leader. The leader holds a single pending command: a second
// EvSendCommand that arrives before the next poll replaces the first, which is logged at Warn.
type LeaderConfig struct {
	PollTimer es.TimerID
	PollTicks int32
	// Notify receives the events decoded from the Drive board's responses
	Notify es.Priority
}

// Leader sends one word per poll period: the pending command if there is one, a poll otherwise. The
// word received in exchange is the Drive board's outcome for an earlier command.
type Leader struct {
	rt   es.Runtime
	link Link
	cfg  LeaderConfig
	log  logrus.FieldLogger

	state      LeaderState
	pending    spicmd.Word
	hasPending bool
	lastSent   spicmd.Word
	received   spicmd.Word

	commsErrors uint64
	delivered   uint64
}

func NewLeader(rt es.Runtime, link Link, cfg LeaderConfig, log logrus.FieldLogger) *Leader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Leader{rt: rt, link: link, cfg: cfg, log: log}
}

func (l *Leader) Init() error {
	l.state = LeaderInit
	l.hasPending = false
	return nil
}

func (l *Leader) Run(e es.Event) es.Event {
	// accepted in every state
	switch e.Kind {
	case EvSPIReset:
		l.log.Info("spi reset")
		l.transition(LeaderSend)
		return es.None
	case EvSendCommand:
		if l.hasPending {
			l.log.WithField("dropped", l.pending.String()).
				WithField("command", spicmd.Word(e.Param).String()).
				Warn("pending command replaced before it was sent")
		}
		l.pending = spicmd.Word(e.Param)
		l.hasPending = true
		return es.None
	}

	switch l.state {
	case LeaderInit:
		if e.Kind == es.Init {
			l.transition(LeaderSend)
		}

	case LeaderSend:
		switch {
		case e.Kind == es.WordReceived:
			l.received = spicmd.Word(e.Param)
			l.transition(LeaderReceive)
		case l.isPoll(e):
			// nothing came back from the last send; try again
			l.transition(LeaderSend)
		}

	case LeaderReceive:
		if l.isPoll(e) {
			l.transition(LeaderSend)
		}
	}
	return es.None
}

func (l *Leader) isPoll(e es.Event) bool {
	return e.Kind == es.Timeout && e.Param == uint16(l.cfg.PollTimer)
}

func (l *Leader) transition(next LeaderState) {
	l.state = next
	switch next {
	case LeaderSend:
		l.enterSend()
	case LeaderReceive:
		l.enterReceive()
	}
}

func (l *Leader) enterSend() {
	w := spicmd.PollWord
	if l.hasPending {
		w = l.pending
	}
	if err := l.link.SendWord(uint16(w)); err != nil {
		l.log.WithError(err).Warn("spi send failed")
	} else {
		l.hasPending = false
		l.lastSent = w
	}
	l.armPoll()
}

func (l *Leader) enterReceive() {
	w := l.received
	if spicmd.IsCommsError(w) {
		l.commsErrors++
		l.log.WithField("sent", l.lastSent.String()).Warn("spi comms error: all-zero response")
	} else if ev, ok := ResponseEvent(w); ok {
		l.delivered++
		l.log.WithField("response", w.Response().String()).Debug("drive outcome")
		if err := l.rt.Post(l.cfg.Notify, ev); err != nil {
			l.log.WithError(err).Warn("drive outcome dropped")
		}
	}
	l.armPoll()
}

func (l *Leader) armPoll() {
	if err := l.rt.InitTimer(l.cfg.PollTimer, l.cfg.PollTicks); err != nil {
		l.log.WithError(err).Error("poll timer not armed")
	}
}

// State returns the current state
func (l *Leader) State() LeaderState {
	return l.state
}

// CommsErrors counts all-zero responses
func (l *Leader) CommsErrors() uint64 {
	return l.commsErrors
}

// Delivered counts outcomes posted to the game
func (l *Leader) Delivered() uint64 {
	return l.delivered
}

// LinkChecker posts WordReceived when the bus has latched a word
func LinkChecker(link Link, p es.Poster, dest es.Priority) es.Checker {
	return func() bool {
		if !link.RxFull() {
			return false
		}
		return p.Post(dest, es.Event{Kind: es.WordReceived, Param: link.ReadWord()}) == nil
	}
}
