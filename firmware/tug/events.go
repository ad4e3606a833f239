package tug

import "github.com/robotarena/esfw/es"

const (
	// EvPairRequest carries the requesting Pilot's address
	EvPairRequest es.EventKind = es.UserEvent + 2*es.EventRange + iota
	// EvControlPacket marks a valid Control message from the paired Pilot
	EvControlPacket
	// EvThrust carries the raw thrust byte in the high half of Param and the yaw byte in the low half
	EvThrust
	EvMode3
	EvRefuel
	EvPairButton
	EvPropulsionIdle
	EvBurn
	EvFuelEmpty
	EvFuelRestored
)

func init() {
	es.MustRegisterNames(map[es.EventKind]string{
		EvPairRequest:    "PairRequest",
		EvControlPacket:  "ControlPacket",
		EvThrust:         "Thrust",
		EvMode3:          "Mode3",
		EvRefuel:         "Refuel",
		EvPairButton:     "PairButton",
		EvPropulsionIdle: "PropulsionIdle",
		EvBurn:           "Burn",
		EvFuelEmpty:      "FuelEmpty",
		EvFuelRestored:   "FuelRestored",
	})
}

func flag(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}
