package mainboard

import (
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/spicmd"
)

const (
	EvStartPressed es.EventKind = es.UserEvent + iota
	// EvSendCommand carries an encoded spicmd.Word for the leader to send
	EvSendCommand
	// EvSPIReset forces the leader back to Send
	EvSPIReset
	EvDriveGoalReached
	EvBumpOccurred
	EvTapeAligned
	EvStopAcknowledged
	EvBeaconAcknowledged
	EvBeaconDetected
	EvBeaconLost
	// evStartupComplete is remapped by the startup sub-machine for the game level
	evStartupComplete
)

func init() {
	es.MustRegisterNames(map[es.EventKind]string{
		EvStartPressed:       "StartPressed",
		EvSendCommand:        "SendCommand",
		EvSPIReset:           "SPIReset",
		EvDriveGoalReached:   "DriveGoalReached",
		EvBumpOccurred:       "BumpOccurred",
		EvTapeAligned:        "TapeAligned",
		EvStopAcknowledged:   "StopAcknowledged",
		EvBeaconAcknowledged: "BeaconAcknowledged",
		EvBeaconDetected:     "BeaconDetected",
		EvBeaconLost:         "BeaconLost",
		evStartupComplete:    "StartupComplete",
	})
}

var responseEvents = map[spicmd.Response]es.EventKind{
	spicmd.RespGoalReached:        EvDriveGoalReached,
	spicmd.RespBumpSuccess:        EvBumpOccurred,
	spicmd.RespTapeSuccess:        EvTapeAligned,
	spicmd.RespStopAcknowledged:   EvStopAcknowledged,
	spicmd.RespBeaconAcknowledged: EvBeaconAcknowledged,
}

// ResponseEvent maps a word read from the Drive board to the event the game reacts to. StillWorking,
// the all-zero comms error and undefined outcomes map to nothing.
func ResponseEvent(w spicmd.Word) (es.Event, bool) {
	if !spicmd.HasNews(w) {
		return es.None, false
	}
	kind, ok := responseEvents[w.Response()]
	if !ok {
		return es.None, false
	}
	return es.Event{Kind: kind, Param: uint16(w) & 0xFF}, true
}
