package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/dma"
	"github.com/gen2brain/aout/phy"
)

const (
	defaultMetricsAddr    = "127.0.0.1:9090"
	defaultPAWaitTimeout  = 2 * time.Second
	defaultPAWaitInterval = 2 * time.Millisecond
	defaultPeriodSize     = 4096
)

// GetDefaultConfig returns the configuration of the default board with every block bound.
func GetDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Addr: defaultMetricsAddr,
		},
		Board: BoardConfig{
			Variant:        "default",
			PAWaitTimeout:  defaultPAWaitTimeout,
			PAWaitInterval: defaultPAWaitInterval,
			ExternalPA:     true,
			DMA: DMAConfig{
				Name:     phy.DefaultDMAName,
				Channels: dma.DefaultChannels,
			},
			DAC: DACConfig{
				Enabled:      true,
				Name:         aout.DefaultDACName,
				DrainTimeout: phy.DefaultDrainTimeout,
			},
			I2STX: I2STXConfig{
				Enabled:    true,
				Name:       aout.DefaultI2STXName,
				SRDTimeout: phy.DefaultSRDTimeout,
			},
			SPDIFTX: SPDIFTXConfig{
				Enabled: true,
				Name:    aout.DefaultSPDIFTXName,
			},
			PDMTX: PDMTXConfig{
				Enabled: true,
				Name:    aout.DefaultPDMTXName,
			},
		},
		Playback: PlaybackConfig{
			Channel:    aout.AUDIO_CHANNEL_DAC,
			Fifo:       aout.AOUT_FIFO_DAC0,
			PeriodSize: defaultPeriodSize,
		},
	}
}

// setViperDefaults registers every key with viper so that environment overrides apply
// even when the key is absent from the file.
func setViperDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)

	v.SetDefault("board.variant", d.Board.Variant)
	v.SetDefault("board.pa_wait_timeout", d.Board.PAWaitTimeout.String())
	v.SetDefault("board.pa_wait_interval", d.Board.PAWaitInterval.String())
	v.SetDefault("board.external_pa", d.Board.ExternalPA)

	v.SetDefault("board.dma.name", d.Board.DMA.Name)
	v.SetDefault("board.dma.channels", d.Board.DMA.Channels)
	v.SetDefault("board.dma.realtime", d.Board.DMA.Realtime)

	v.SetDefault("board.dac.enabled", d.Board.DAC.Enabled)
	v.SetDefault("board.dac.name", d.Board.DAC.Name)
	v.SetDefault("board.dac.drain_timeout", d.Board.DAC.DrainTimeout.String())
	v.SetDefault("board.dac.keep_enabled_on_pause", false)
	v.SetDefault("board.dac.dither", false)
	v.SetDefault("board.dac.auto_mute", false)
	v.SetDefault("board.dac.noise_detect_mute", false)
	v.SetDefault("board.dac.left_mute", false)
	v.SetDefault("board.dac.right_mute", false)

	v.SetDefault("board.i2stx.enabled", d.Board.I2STX.Enabled)
	v.SetDefault("board.i2stx.name", d.Board.I2STX.Name)
	v.SetDefault("board.i2stx.srd_timeout", d.Board.I2STX.SRDTimeout.String())
	v.SetDefault("board.i2stx.bclk32", false)

	v.SetDefault("board.spdiftx.enabled", d.Board.SPDIFTX.Enabled)
	v.SetDefault("board.spdiftx.name", d.Board.SPDIFTX.Name)

	v.SetDefault("board.pdmtx.enabled", d.Board.PDMTX.Enabled)
	v.SetDefault("board.pdmtx.name", d.Board.PDMTX.Name)

	v.SetDefault("playback.channel", d.Playback.Channel.String())
	v.SetDefault("playback.fifo", d.Playback.Fifo.String())
	v.SetDefault("playback.volume", d.Playback.Volume)
	v.SetDefault("playback.period_size", d.Playback.PeriodSize)
}

// ApplyDefaults fills zero values left by the file and normalizes case-insensitive fields.
func ApplyDefaults(cfg *Config) {
	d := GetDefaultConfig()

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	cfg.Logging.Format = strings.ToLower(cfg.Logging.Format)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = d.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = d.Logging.Output
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = d.Metrics.Addr
	}

	b := &cfg.Board
	b.Variant = strings.ToLower(b.Variant)
	if b.Variant == "" {
		b.Variant = d.Board.Variant
	}
	if b.PAWaitTimeout <= 0 {
		b.PAWaitTimeout = d.Board.PAWaitTimeout
	}
	if b.PAWaitInterval <= 0 {
		b.PAWaitInterval = d.Board.PAWaitInterval
	}
	if b.DMA.Name == "" {
		b.DMA.Name = d.Board.DMA.Name
	}
	if b.DMA.Channels == 0 {
		b.DMA.Channels = d.Board.DMA.Channels
	}
	if b.DAC.Name == "" {
		b.DAC.Name = d.Board.DAC.Name
	}
	if b.DAC.DrainTimeout == 0 {
		b.DAC.DrainTimeout = d.Board.DAC.DrainTimeout
	}
	if b.I2STX.Name == "" {
		b.I2STX.Name = d.Board.I2STX.Name
	}
	if b.I2STX.SRDTimeout == 0 {
		b.I2STX.SRDTimeout = d.Board.I2STX.SRDTimeout
	}
	if b.SPDIFTX.Name == "" {
		b.SPDIFTX.Name = d.Board.SPDIFTX.Name
	}
	if b.PDMTX.Name == "" {
		b.PDMTX.Name = d.Board.PDMTX.Name
	}

	if cfg.Playback.Channel == 0 {
		cfg.Playback.Channel = d.Playback.Channel
	}
	if cfg.Playback.PeriodSize == 0 {
		cfg.Playback.PeriodSize = d.Playback.PeriodSize
	}
}
