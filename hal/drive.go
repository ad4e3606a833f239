package hal

// MotionKind says how a drive train motion ends
type MotionKind uint8

const (
	MotionNone MotionKind = iota
	// MotionTranslate drives straight for Amount centimetres
	MotionTranslate
	// MotionRotate turns in place by Amount degrees
	MotionRotate
	// MotionCreep drives straight until stopped
	MotionCreep
	// MotionSpin turns in place until stopped
	MotionSpin
)

func (k MotionKind) String() string {
	switch k {
	case MotionTranslate:
		return "Translate"
	case MotionRotate:
		return "Rotate"
	case MotionCreep:
		return "Creep"
	case MotionSpin:
		return "Spin"
	default:
		return "None"
	}
}

// Motion is one drive train command. Reverse selects backward or counter-clockwise; Speed is 0..3.
type Motion struct {
	Kind    MotionKind
	Reverse bool
	Speed   uint8
	Amount  uint16
}

// DriveTrain is the motor side of the Drive board
type DriveTrain interface {
	Start(m Motion)
	Stop()
	// Done reports that a Translate or Rotate reached its goal
	Done() bool
	// Travelled returns centimetres or degrees covered since the last Start
	Travelled() uint16
}

// Thrust is one Tug propulsion setting. X and Yaw are signed around zero; Boost is the pilot's mode 3.
type Thrust struct {
	X     int8
	Yaw   int8
	Boost bool
}

func (t Thrust) IsZero() bool {
	return t.X == 0 && t.Yaw == 0
}

// Thrusters is the Tug's propulsion hardware
type Thrusters interface {
	Apply(t Thrust)
	Idle()
}

// ESC pulse widths in microseconds
const (
	PulseNeutral    = 1500
	PulseSpan       = 250
	PulseBoostSpan  = 500
	thrustFullScale = 127
)

// Pulses mixes a setting into left and right ESC pulse widths: X drives both sides, Yaw drives them
// apart. Boost widens the span around neutral.
func (t Thrust) Pulses() (left, right int16) {
	span := int32(PulseSpan)
	if t.Boost {
		span = PulseBoostSpan
	}
	mix := func(v int32) int16 {
		v = min(max(v, -thrustFullScale), thrustFullScale)
		return int16(PulseNeutral + v*span/thrustFullScale)
	}
	return mix(int32(t.X) + int32(t.Yaw)), mix(int32(t.X) - int32(t.Yaw))
}
