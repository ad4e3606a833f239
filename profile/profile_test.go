package profile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/robotarena/esfw"
)

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "board.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, esfw.TeamRed, p.TeamColor())
	assert.Equal(t, esfw.DefaultTugAddress, p.TugConfig().Address)
	assert.Equal(t, esfw.DefaultTugAddress, p.PilotConfig().Tug)
}

func TestLoadFile(t *testing.T) {
	path := writeProfile(t, `
team = "blue"
tick = "2ms"
game_ticks = 6000

[serial]
port = "/dev/ttyUSB1"
baud_rate = 115200

[spi]
device = "SPI0.1"
frequency_hz = 500000

[radio]
tug = 0x2201
pilot = 0x2202
`)
	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, esfw.TeamBlue, p.TeamColor())
	assert.Equal(t, 2*time.Millisecond, p.Tick)
	assert.Equal(t, "/dev/ttyUSB1", p.SerialConfig().Name)
	assert.Equal(t, 115200, p.SerialConfig().BaudRate)
	assert.Equal(t, "SPI0.1", p.SPIConfig().Device)
	assert.Equal(t, 500*physic.KiloHertz, p.SPIConfig().Frequency)

	main := p.MainConfig()
	assert.Equal(t, int32(6000), main.GameTicks)
	assert.Equal(t, esfw.TeamBlue, main.Team)

	tugCfg := p.TugConfig()
	assert.Equal(t, uint16(0x2201), tugCfg.Address)
	assert.Equal(t, 2*time.Millisecond, tugCfg.TickPeriod)
	pilotCfg := p.PilotConfig()
	assert.Equal(t, uint16(0x2202), pilotCfg.Address)
	assert.Equal(t, uint16(0x2201), pilotCfg.Tug)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"UnknownKey", `colour = "red"`},
		{"BadTeam", `team = "green"`},
		{"SharedAddress", "[radio]\ntug = 1\npilot = 1\n"},
		{"Syntax", `team = `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeProfile(t, tt.body))
			require.Error(t, err)
		})
	}

	_, err := Load(writeProfile(t, `colour = "red"`))
	assert.ErrorIs(t, err, ErrUnknownKey)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvSerialPort:    "COM4",
		EnvBaudRate:      "57600",
		EnvSPIDevice:     "/dev/spidev0.0",
		EnvTeam:          "Blue",
		EnvTelemetryAddr: "http://localhost:8080",
		EnvTick:          "500us",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	p := Default()
	require.NoError(t, p.ApplyEnv(lookup))
	assert.Equal(t, "COM4", p.Serial.Port)
	assert.Equal(t, 57600, p.Serial.BaudRate)
	assert.Equal(t, "/dev/spidev0.0", p.SPI.Device)
	assert.Equal(t, esfw.TeamBlue, p.TeamColor())
	assert.Equal(t, "http://localhost:8080", p.Telemetry.Addr)
	assert.Equal(t, 500*time.Microsecond, p.Tick)

	env[EnvBaudRate] = "fast"
	assert.Error(t, p.ApplyEnv(lookup))
	env[EnvBaudRate] = "9600"
	env[EnvTick] = "soon"
	assert.Error(t, p.ApplyEnv(lookup))
}
