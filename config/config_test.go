package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, config.GetDefaultConfig(), cfg)

	capacity, err := cfg.Board.SessionCapacity()
	require.NoError(t, err)
	assert.Equal(t, aout.DefaultCapacity, capacity)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: JSON
board:
  variant: pearlriver
  pa_wait_timeout: 500ms
  external_pa: false
  dac:
    enabled: false
  i2stx:
    srd_timeout: 50ms
    bclk32: true
  dma:
    realtime: true
playback:
  channel: "i2stx|spdiftx"
  fifo: i2stx0
  volume: -30000
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	b := cfg.Board
	assert.Equal(t, "pearlriver", b.Variant)
	assert.Equal(t, 500*time.Millisecond, b.PAWaitTimeout)
	assert.Equal(t, 2*time.Millisecond, b.PAWaitInterval)
	assert.False(t, b.ExternalPA)
	assert.False(t, b.DAC.Enabled)
	assert.Equal(t, aout.DefaultDACName, b.DAC.Name)
	assert.Equal(t, 50*time.Millisecond, b.I2STX.SRDTimeout)
	assert.True(t, b.I2STX.BCLK32)
	assert.True(t, b.DMA.Realtime)
	assert.True(t, b.SPDIFTX.Enabled)

	capacity, err := b.SessionCapacity()
	require.NoError(t, err)
	assert.Equal(t, aout.PearlriverCapacity, capacity)

	assert.Equal(t, aout.AUDIO_CHANNEL_I2STX|aout.AUDIO_CHANNEL_SPDIFTX, cfg.Playback.Channel)
	assert.Equal(t, aout.AOUT_FIFO_I2STX0, cfg.Playback.Fifo)
	assert.Equal(t, int32(-30000), cfg.Playback.Volume)
}

func TestLoadCapacityOverride(t *testing.T) {
	path := writeConfig(t, `
board:
  capacity:
    dac: 1
    i2stx: 0
    spdiftx: 1
    pdmtx: 0
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	capacity, err := cfg.Board.SessionCapacity()
	require.NoError(t, err)
	assert.Equal(t, aout.Capacity{DAC: 1, SPDIFTX: 1}, capacity)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("AOUT_LOGGING_LEVEL", "warn")
	t.Setenv("AOUT_BOARD_DAC_DRAIN_TIMEOUT", "10ms")
	t.Setenv("AOUT_METRICS_ENABLED", "true")

	path := writeConfig(t, `
logging:
  level: INFO
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, 10*time.Millisecond, cfg.Board.DAC.DrainTimeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadInvalid(t *testing.T) {
	testCases := map[string]string{
		"level":       "logging:\n  level: LOUD\n",
		"variant":     "board:\n  variant: mars\n",
		"channel":     "playback:\n  channel: HDMI\n",
		"fifo":        "playback:\n  fifo: DAC7\n",
		"interval":    "board:\n  pa_wait_timeout: 1ms\n  pa_wait_interval: 5ms\n",
		"capacity":    "board:\n  capacity:\n    dac: 0\n",
		"metricsAddr": "metrics:\n  addr: nowhere\n",
		"duration":    "board:\n  pa_wait_timeout: soon\n",
	}

	for name, content := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Board.Capacity = &aout.Capacity{DAC: 1, I2STX: 1}
	cfg.Board.I2STX.SRDTimeout = 75 * time.Millisecond
	cfg.Playback.Channel = aout.AUDIO_CHANNEL_DAC | aout.AUDIO_CHANNEL_SPDIFTX
	cfg.Playback.Fifo = aout.AOUT_FIFO_DAC1
	cfg.Playback.Volume = -7500

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, config.SaveConfig(cfg, path))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoggerConfig(t *testing.T) {
	cfg := config.GetDefaultConfig()
	lc := cfg.LoggerConfig()

	assert.Equal(t, "INFO", lc.Level)
	assert.Equal(t, "text", lc.Format)
	assert.Equal(t, "stderr", lc.Output)
}
