// Package profile loads the settings a host binary needs to run a board: defaults, then an optional TOML
// file, then ESFW_* environment variables. Command line flags are applied last by the caller.
package profile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"periph.io/x/conn/v3/physic"

	"github.com/robotarena/esfw"
	"github.com/robotarena/esfw/es"
	"github.com/robotarena/esfw/firmware/mainboard"
	"github.com/robotarena/esfw/firmware/pilot"
	"github.com/robotarena/esfw/firmware/tug"
	"github.com/robotarena/esfw/hal/serialport"
	"github.com/robotarena/esfw/hal/spidev"
)

// Environment variables read by ApplyEnv
const (
	EnvSerialPort    = "ESFW_SERIAL_PORT"
	EnvBaudRate      = "ESFW_BAUD_RATE"
	EnvSPIDevice     = "ESFW_SPI_DEVICE"
	EnvTeam          = "ESFW_TEAM"
	EnvTelemetryAddr = "ESFW_TELEMETRY_ADDR"
	EnvTick          = "ESFW_TICK"
)

var ErrUnknownKey = errors.New("unknown profile key")

type Serial struct {
	Port     string `toml:"port"`
	BaudRate int    `toml:"baud_rate"`
}

type SPI struct {
	Device      string `toml:"device"`
	FrequencyHz int64  `toml:"frequency_hz"`
}

type Radio struct {
	Tug   uint16 `toml:"tug"`
	Pilot uint16 `toml:"pilot"`
}

type Telemetry struct {
	Addr  string `toml:"addr"`
	Match string `toml:"match"`
}

type Profile struct {
	Team      string        `toml:"team"`
	Tick      time.Duration `toml:"tick"`
	GameTicks int32         `toml:"game_ticks"`
	Serial    Serial        `toml:"serial"`
	SPI       SPI           `toml:"spi"`
	Radio     Radio         `toml:"radio"`
	Telemetry Telemetry     `toml:"telemetry"`
}

func Default() Profile {
	return Profile{
		Team:      esfw.TeamRed.String(),
		Tick:      es.DefaultTickPeriod,
		GameTicks: mainboard.DefaultConfig().GameTicks,
		Serial: Serial{
			BaudRate: serialport.DefaultConfig().BaudRate,
		},
		SPI: SPI{
			FrequencyHz: int64(spidev.DefaultConfig().Frequency / physic.Hertz),
		},
		Radio: Radio{
			Tug:   esfw.DefaultTugAddress,
			Pilot: esfw.DefaultPilotAddress,
		},
	}
}

// Load reads the defaults, the file at path if one is given, then the environment
func Load(path string) (Profile, error) {
	p := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &p)
		if err != nil {
			return Profile{}, fmt.Errorf("error reading profile %q: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return Profile{}, fmt.Errorf("%w in %q: %s", ErrUnknownKey, path, strings.Join(keys, ", "))
		}
	}
	if err := p.ApplyEnv(os.LookupEnv); err != nil {
		return Profile{}, err
	}
	return p, p.Validate()
}

// ApplyEnv overrides fields from ESFW_* variables
func (p *Profile) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvSerialPort); ok {
		p.Serial.Port = v
	}
	if v, ok := lookup(EnvBaudRate); ok {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("error parsing %s: %w", EnvBaudRate, err)
		}
		p.Serial.BaudRate = baud
	}
	if v, ok := lookup(EnvSPIDevice); ok {
		p.SPI.Device = v
	}
	if v, ok := lookup(EnvTeam); ok {
		p.Team = v
	}
	if v, ok := lookup(EnvTelemetryAddr); ok {
		p.Telemetry.Addr = v
	}
	if v, ok := lookup(EnvTick); ok {
		tick, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("error parsing %s: %w", EnvTick, err)
		}
		p.Tick = tick
	}
	return nil
}

func (p Profile) Validate() error {
	if p.TeamColor() == esfw.TeamUnknown {
		return fmt.Errorf("invalid team %q", p.Team)
	}
	if p.Tick <= 0 {
		return fmt.Errorf("invalid tick %s", p.Tick)
	}
	if p.Serial.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", p.Serial.BaudRate)
	}
	if p.Radio.Tug == p.Radio.Pilot {
		return fmt.Errorf("tug and pilot share radio address 0x%04X", p.Radio.Tug)
	}
	return nil
}

func (p Profile) TeamColor() esfw.TeamColor {
	return esfw.ParseTeamColor(p.Team)
}

func (p Profile) SerialConfig() serialport.Config {
	cfg := serialport.DefaultConfig()
	cfg.Name = p.Serial.Port
	cfg.BaudRate = p.Serial.BaudRate
	return cfg
}

func (p Profile) SPIConfig() spidev.Config {
	cfg := spidev.DefaultConfig()
	cfg.Device = p.SPI.Device
	if p.SPI.FrequencyHz > 0 {
		cfg.Frequency = physic.Frequency(p.SPI.FrequencyHz) * physic.Hertz
	}
	return cfg
}

func (p Profile) MainConfig() mainboard.Config {
	cfg := mainboard.DefaultConfig()
	cfg.Team = p.TeamColor()
	cfg.TickPeriod = p.Tick
	if p.GameTicks > 0 {
		cfg.GameTicks = p.GameTicks
	}
	return cfg
}

func (p Profile) TugConfig() tug.Config {
	cfg := tug.DefaultConfig()
	cfg.Address = p.Radio.Tug
	cfg.Team = p.TeamColor()
	cfg.TickPeriod = p.Tick
	return cfg
}

func (p Profile) PilotConfig() pilot.Config {
	cfg := pilot.DefaultConfig()
	cfg.Address = p.Radio.Pilot
	cfg.Tug = p.Radio.Tug
	cfg.Team = p.TeamColor()
	cfg.TickPeriod = p.Tick
	return cfg
}
