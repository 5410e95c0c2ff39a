// Package board assembles a simulated audio subsystem from configuration: the device bus,
// the DMA engine, the physical output blocks and the external power amplifier.
package board

import (
	"fmt"
	"io"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/config"
	"github.com/gen2brain/aout/dma"
	"github.com/gen2brain/aout/internal/logger"
	"github.com/gen2brain/aout/phy"
)

// Board is a simulated audio subsystem. Blocks disabled in the configuration are nil.
type Board struct {
	Bus      *aout.Bus
	DMA      *dma.Controller
	DAC      *phy.DAC
	I2STX    *phy.I2STX
	SPDIFTX  *phy.SPDIFTX
	PDMTX    *phy.PDMTX
	PA       *phy.PA
	Capacity aout.Capacity

	cfg config.BoardConfig
}

type options struct {
	dacOutput   io.Writer
	i2stxOutput io.Writer
	pacer       dma.Pacer
	adcBusy     func() bool
}

// Option configures a Board.
type Option func(*options)

// WithDACOutput sets the writer receiving the samples drained from the DAC FIFOs.
func WithDACOutput(w io.Writer) Option {
	return func(o *options) {
		o.dacOutput = w
	}
}

// WithI2STXOutput sets the writer receiving the samples drained from the I2STX FIFO.
func WithI2STXOutput(w io.Writer) Option {
	return func(o *options) {
		o.i2stxOutput = w
	}
}

// WithPacer paces DMA transfers. It overrides the realtime setting of the configuration.
func WithPacer(p dma.Pacer) Option {
	return func(o *options) {
		o.pacer = p
	}
}

// WithADCBusy reports capture activity to the DAC, which then keeps the shared analog reference up.
func WithADCBusy(fn func() bool) Option {
	return func(o *options) {
		o.adcBusy = fn
	}
}

// New builds the board described by cfg.
func New(cfg config.BoardConfig, opts ...Option) (*Board, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	capacity, err := cfg.SessionCapacity()
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	dmaOpts := []dma.Option{dma.WithChannels(cfg.DMA.Channels)}
	switch {
	case o.pacer != nil:
		dmaOpts = append(dmaOpts, dma.WithPacer(o.pacer))
	case cfg.DMA.Realtime:
		dmaOpts = append(dmaOpts, dma.WithPacer(dma.RealtimePacer(aout.SAMPLE_RATE_48KHZ, aout.CHANNEL_WIDTH_16BITS, 2)))
	}

	b := &Board{
		Bus:      aout.NewBus(),
		DMA:      dma.New(cfg.DMA.Name, dmaOpts...),
		Capacity: capacity,
		cfg:      cfg,
	}

	if err := b.Bus.RegisterDMA(b.DMA); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	if cfg.DAC.Enabled {
		b.DAC = phy.NewDAC(phy.DACConfig{
			Name:               cfg.DAC.Name,
			DMAName:            cfg.DMA.Name,
			KeepEnabledOnPause: cfg.DAC.KeepEnabledOnPause,
			DrainTimeout:       cfg.DAC.DrainTimeout,
			Dither:             cfg.DAC.Dither,
			AutoMute:           cfg.DAC.AutoMute,
			NoiseDetectMute:    cfg.DAC.NoiseDetectMute,
			LeftMute:           cfg.DAC.LeftMute,
			RightMute:          cfg.DAC.RightMute,
			ADCBusy:            o.adcBusy,
			Output:             o.dacOutput,
		})
		if err := b.Bus.Register(b.DAC); err != nil {
			return nil, fmt.Errorf("board: %w", err)
		}

		b.DMA.Attach(dma.DREQ_DAC_FIFO0, b.DAC.FifoWriter(aout.AOUT_FIFO_DAC0))
		b.DMA.Attach(dma.DREQ_DAC_FIFO1, b.DAC.FifoWriter(aout.AOUT_FIFO_DAC1))

		if cfg.ExternalPA {
			b.PA = phy.NewPA()
		}
	}

	if cfg.I2STX.Enabled {
		b.I2STX = phy.NewI2STX(phy.I2STXConfig{
			Name:       cfg.I2STX.Name,
			DMAName:    cfg.DMA.Name,
			SRDTimeout: cfg.I2STX.SRDTimeout,
			BCLK32:     cfg.I2STX.BCLK32,
			Output:     o.i2stxOutput,
		})
		if err := b.Bus.Register(b.I2STX); err != nil {
			return nil, fmt.Errorf("board: %w", err)
		}

		b.DMA.Attach(dma.DREQ_I2STX_FIFO, b.I2STX.FifoWriter())
	}

	if cfg.SPDIFTX.Enabled {
		b.SPDIFTX = phy.NewSPDIFTX(phy.SPDIFTXConfig{Name: cfg.SPDIFTX.Name})
		if err := b.Bus.Register(b.SPDIFTX); err != nil {
			return nil, fmt.Errorf("board: %w", err)
		}
	}

	if cfg.PDMTX.Enabled {
		pcfg := phy.PDMTXConfig{Name: cfg.PDMTX.Name}
		if b.I2STX != nil {
			pcfg.Fifo = b.I2STX
		}
		b.PDMTX = phy.NewPDMTX(pcfg)
		if err := b.Bus.Register(b.PDMTX); err != nil {
			return nil, fmt.Errorf("board: %w", err)
		}
	}

	logger.Debug("board ready", "variant", cfg.Variant, "dma", cfg.DMA.Name,
		"devices", b.Bus.Devices(), "external_pa", b.PA != nil)

	return b, nil
}

// ManagerConfig returns the session manager configuration bound to the board.
// A nil metrics disables collection.
func (b *Board) ManagerConfig(metrics aout.Metrics) aout.Config {
	cfg := aout.Config{
		Bus:            b.Bus,
		Capacity:       b.Capacity,
		DACName:        b.cfg.DAC.Name,
		I2STXName:      b.cfg.I2STX.Name,
		SPDIFTXName:    b.cfg.SPDIFTX.Name,
		PDMTXName:      b.cfg.PDMTX.Name,
		PAWaitTimeout:  b.cfg.PAWaitTimeout,
		PAWaitInterval: b.cfg.PAWaitInterval,
		Metrics:        metrics,
	}

	if b.PA != nil {
		cfg.PA = b.PA
	}

	return cfg
}

// NewManager returns a session manager bound to the board.
func (b *Board) NewManager(metrics aout.Metrics) (*aout.Manager, error) {
	return aout.New(b.ManagerConfig(metrics))
}
