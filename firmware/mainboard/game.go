package mainboard

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/spicmd"
)

// GameState is the top level of the game machine
type GameState uint8

const (
	GameStartup GameState = iota
	GamePlaying
	GameOver
)

func (s GameState) String() string {
	switch s {
	case GameStartup:
		return "Startup"
	case GamePlaying:
		return "Playing"
	case GameOver:
		return "GameOver"
	default:
		return "Unknown"
	}
}

// StartupState is the startup sequence: wait for the start button, find the beacon, line up on tape
type StartupState uint8

const (
	WaitingForStart StartupState = iota
	Sweeping
	Aligning
)

func (s StartupState) String() string {
	switch s {
	case WaitingForStart:
		return "WaitingForStart"
	case Sweeping:
		return "Sweeping"
	case Aligning:
		return "Aligning"
	default:
		return "Unknown"
	}
}

// PlayingState is the re-homing loop run until the game timer expires
type PlayingState uint8

const (
	Advancing PlayingState = iota
	BackingOff
	Turning
)

func (s PlayingState) String() string {
	switch s {
	case Advancing:
		return "Advancing"
	case BackingOff:
		return "BackingOff"
	case Turning:
		return "Turning"
	default:
		return "Unknown"
	}
}

// GameConfig has values for the game machine
type GameConfig struct {
	GameTimer es.TimerID
	GameTicks int32
	Leader    es.Priority

	SweepSpeed   spicmd.Speed
	AlignSpeed   spicmd.Speed
	AdvanceSpeed spicmd.Speed
	BackOffCM    uint8
	TurnDegrees  uint8
}

// TransitionFunc observes every transition of every level of the game machine
type TransitionFunc func(machine, from, to string)

// Game is the Main board's top-level service
type Game struct {
	rt  es.Runtime
	cfg GameConfig
	log logrus.FieldLogger

	top     *es.Machine[GameState]
	startup *es.Machine[StartupState]
	playing *es.Machine[PlayingState]

	// aligning waits for the beacon acknowledgement before asking for tape alignment
	beaconAcked bool
	observer    TransitionFunc
}

func NewGame(rt es.Runtime, cfg GameConfig, log logrus.FieldLogger) (*Game, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	g := &Game{rt: rt, cfg: cfg, log: log}

	var err error
	g.startup, err = es.NewMachine("startup", WaitingForStart, map[StartupState]es.During[StartupState]{
		WaitingForStart: g.duringWaitingForStart,
		Sweeping:        g.duringSweeping,
		Aligning:        g.duringAligning,
	}, log)
	if err != nil {
		return nil, err
	}
	g.playing, err = es.NewMachine("playing", Advancing, map[PlayingState]es.During[PlayingState]{
		Advancing:  g.duringAdvancing,
		BackingOff: g.duringBackingOff,
		Turning:    g.duringTurning,
	}, log)
	if err != nil {
		return nil, err
	}
	g.top, err = es.NewMachine("game", GameStartup, map[GameState]es.During[GameState]{
		GameStartup: g.duringStartup,
		GamePlaying: g.duringPlaying,
		GameOver:    g.duringGameOver,
	}, log)
	if err != nil {
		return nil, err
	}

	g.top.OnTransition = func(from, to GameState) { g.observe("game", from, to) }
	g.startup.OnTransition = func(from, to StartupState) { g.observe("startup", from, to) }
	g.playing.OnTransition = func(from, to PlayingState) { g.observe("playing", from, to) }
	return g, nil
}

// SetObserver installs a transition observer, e.g. the telemetry recorder
func (g *Game) SetObserver(fn TransitionFunc) {
	g.observer = fn
}

func (g *Game) observe(machine string, from, to fmt.Stringer) {
	if g.observer != nil {
		g.observer(machine, from.String(), to.String())
	}
}

func (g *Game) Init() error {
	return nil
}

// Run always returns None; faults degrade to a safe state inside the machine
func (g *Game) Run(e es.Event) es.Event {
	if e.Kind == es.Init {
		g.top.Start(es.Entry)
		return es.None
	}
	if e.Kind == es.NewKey {
		kind, ok := keyEvents[byte(e.Param)]
		if !ok {
			g.log.WithField("key", string(rune(e.Param))).Debug("key ignored")
			return es.None
		}
		e = es.Event{Kind: kind}
	}
	g.top.Run(e)
	return es.None
}

// keyEvents stand in for sensors and Drive board responses from the debug console
var keyEvents = map[byte]es.EventKind{
	'b': EvBeaconDetected,
	'l': EvBeaconLost,
	'g': EvDriveGoalReached,
	'u': EvBumpOccurred,
	't': EvTapeAligned,
	's': EvStopAcknowledged,
}

// State describes the active leaf for the console
func (g *Game) State() string {
	switch g.top.Current() {
	case GameStartup:
		return "Startup/" + g.startup.Current().String()
	case GamePlaying:
		return "Playing/" + g.playing.Current().String()
	default:
		return g.top.Current().String()
	}
}

func (g *Game) Top() GameState {
	return g.top.Current()
}

func (g *Game) Startup() StartupState {
	return g.startup.Current()
}

func (g *Game) Playing() PlayingState {
	return g.playing.Current()
}

func (g *Game) send(w spicmd.Word) {
	if err := g.rt.Post(g.cfg.Leader, es.Event{Kind: EvSendCommand, Param: uint16(w)}); err != nil {
		g.log.WithError(err).WithField("command", spicmd.Decode(w).String()).Warn("command not queued")
	}
}

func (g *Game) isGameTimeout(e es.Event) bool {
	return e.Kind == es.Timeout && e.Param == uint16(g.cfg.GameTimer)
}

// top level

func (g *Game) duringStartup(e es.Event) es.Result[GameState] {
	switch e.Kind {
	case es.Entry, es.EntryHistory:
		g.startup.Start(e.Kind)
		return es.Consume[GameState]()
	case es.Exit:
		g.startup.Stop()
		return es.Consume[GameState]()
	}

	e = g.startup.Run(e)
	switch {
	case e.Kind == EvStartPressed:
		// passed up by WaitingForStart as it moved on
		if err := g.rt.InitTimer(g.cfg.GameTimer, g.cfg.GameTicks); err != nil {
			g.log.WithError(err).Error("game timer not armed")
		}
		g.log.Info("match started")
		return es.Consume[GameState]()
	case e.Kind == evStartupComplete:
		return es.GoTo(GamePlaying)
	case g.isGameTimeout(e):
		return es.GoTo(GameOver)
	}
	return es.Pass[GameState](e)
}

func (g *Game) duringPlaying(e es.Event) es.Result[GameState] {
	switch e.Kind {
	case es.Entry, es.EntryHistory:
		g.playing.Start(e.Kind)
		return es.Consume[GameState]()
	case es.Exit:
		g.playing.Stop()
		return es.Consume[GameState]()
	}

	e = g.playing.Run(e)
	if g.isGameTimeout(e) {
		return es.GoTo(GameOver)
	}
	return es.Pass[GameState](e)
}

func (g *Game) duringGameOver(e es.Event) es.Result[GameState] {
	switch e.Kind {
	case es.Entry:
		g.rt.StopTimer(g.cfg.GameTimer)
		g.send(spicmd.Stop())
		g.log.Info("game over")
	case EvStartPressed:
		return es.GoTo(GameStartup)
	}
	return es.Pass[GameState](e)
}

// startup level

func (g *Game) duringWaitingForStart(e es.Event) es.Result[StartupState] {
	switch e.Kind {
	case es.Entry:
		g.send(spicmd.Stop())
	case EvStartPressed:
		// let the game level see the press too
		return es.Result[StartupState]{Event: e, Next: Sweeping, Transition: true}
	}
	return es.Pass[StartupState](e)
}

func (g *Game) duringSweeping(e es.Event) es.Result[StartupState] {
	switch e.Kind {
	case es.Entry:
		g.send(spicmd.BeaconSweep(spicmd.Clockwise, g.cfg.SweepSpeed))
	case EvBeaconDetected:
		return es.GoTo(Aligning)
	}
	return es.Pass[StartupState](e)
}

func (g *Game) duringAligning(e es.Event) es.Result[StartupState] {
	switch e.Kind {
	case es.Entry:
		g.beaconAcked = false
		g.send(spicmd.BeaconFound())
	case EvBeaconAcknowledged:
		if !g.beaconAcked {
			g.beaconAcked = true
			g.send(spicmd.TapeAlign(spicmd.Forward, g.cfg.AlignSpeed))
		}
		return es.Consume[StartupState]()
	case EvTapeAligned:
		return es.Pass[StartupState](es.Event{Kind: evStartupComplete})
	}
	return es.Pass[StartupState](e)
}

// playing level

func (g *Game) duringAdvancing(e es.Event) es.Result[PlayingState] {
	switch e.Kind {
	case es.Entry:
		g.send(spicmd.UntilBump(spicmd.Forward, g.cfg.AdvanceSpeed))
	case EvBumpOccurred:
		return es.GoTo(BackingOff)
	}
	return es.Pass[PlayingState](e)
}

func (g *Game) duringBackingOff(e es.Event) es.Result[PlayingState] {
	switch e.Kind {
	case es.Entry:
		g.send(spicmd.Drive(spicmd.Backward, g.cfg.AdvanceSpeed, g.cfg.BackOffCM))
	case EvDriveGoalReached:
		return es.GoTo(Turning)
	}
	return es.Pass[PlayingState](e)
}

func (g *Game) duringTurning(e es.Event) es.Result[PlayingState] {
	switch e.Kind {
	case es.Entry:
		g.send(spicmd.Rotate(spicmd.Clockwise, g.cfg.AdvanceSpeed, g.cfg.TurnDegrees))
	case EvDriveGoalReached:
		return es.GoTo(Advancing)
	}
	return es.Pass[PlayingState](e)
}
