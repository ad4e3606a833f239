package xbee

import "github.com/robotarena/esfw"

// Joystick bytes are offset binary: NeutralAxis is centred, 0 is full negative, 255 full positive.
const NeutralAxis = 128

const (
	controlRefuel = 1 << 0
	controlMode3  = 1 << 1

	statusPaired = 1 << 0
	statusMode3  = 1 << 1
)

// Control is sent by a paired Pilot
type Control struct {
	ThrustX uint8
	Yaw     uint8
	Refuel  bool
	Mode3   bool
}

// Payload lays out [thrustX, yaw, flags, 0, 0]
func (c Control) Payload() []byte {
	var flags byte
	if c.Refuel {
		flags |= controlRefuel
	}
	if c.Mode3 {
		flags |= controlMode3
	}
	return []byte{c.ThrustX, c.Yaw, flags, 0, 0}
}

func ParseControl(p [PayloadLen]byte) Control {
	return Control{
		ThrustX: p[0],
		Yaw:     p[1],
		Refuel:  p[2]&controlRefuel != 0,
		Mode3:   p[2]&controlMode3 != 0,
	}
}

// Status is sent by a paired Tug
type Status struct {
	Fuel   uint8
	Paired bool
	Mode3  bool
	Team   esfw.TeamColor
}

// Payload lays out [fuel, flags, team, 0, 0]
func (s Status) Payload() []byte {
	var flags byte
	if s.Paired {
		flags |= statusPaired
	}
	if s.Mode3 {
		flags |= statusMode3
	}
	return []byte{s.Fuel, flags, byte(s.Team), 0, 0}
}

func ParseStatus(p [PayloadLen]byte) Status {
	return Status{
		Fuel:   p[0],
		Paired: p[1]&statusPaired != 0,
		Mode3:  p[1]&statusMode3 != 0,
		Team:   esfw.TeamColor(p[2]),
	}
}

// RequestToPair carries the team the Pilot plays for
type RequestToPair struct {
	Team esfw.TeamColor
}

func (r RequestToPair) Payload() []byte {
	return []byte{byte(r.Team), 0, 0, 0, 0}
}

func ParseRequestToPair(p [PayloadLen]byte) RequestToPair {
	return RequestToPair{Team: esfw.TeamColor(p[0])}
}
