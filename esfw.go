package esfw

// TeamColor is the side a robot plays for. It is compiled into each board's identity and is carried in
// pairing and status messages so operators can tell the tugs apart.
type TeamColor uint8

const (
	TeamUnknown TeamColor = iota
	TeamRed
	TeamBlue
)

func (tc TeamColor) String() string {
	switch tc {
	case TeamRed:
		return "Red"
	case TeamBlue:
		return "Blue"
	default:
		fallthrough
	case TeamUnknown:
		return "Unknown"
	}
}

// Next swaps to the opposing team
func (tc TeamColor) Next() TeamColor {
	if tc == TeamBlue {
		return TeamRed
	}
	return TeamBlue
}

// ParseTeamColor reads a team name as written in profiles and flags
func ParseTeamColor(s string) TeamColor {
	switch s {
	case "red", "Red", "RED", "r", "R":
		return TeamRed
	case "blue", "Blue", "BLUE", "b", "B":
		return TeamBlue
	default:
		return TeamUnknown
	}
}

// BoardKind identifies one of the cooperating firmware images
type BoardKind int

const (
	BoardUnknown BoardKind = iota
	BoardMain
	BoardDrive
	BoardTug
	BoardPilot
)

func (bk BoardKind) String() string {
	switch bk {
	case BoardMain:
		return "Main"
	case BoardDrive:
		return "Drive"
	case BoardTug:
		return "Tug"
	case BoardPilot:
		return "Pilot"
	default:
		return "Unknown"
	}
}

// Radio addresses compiled into the Tug and Pilot images
const (
	DefaultTugAddress   uint16 = 0x2101
	DefaultPilotAddress uint16 = 0x2102
)
