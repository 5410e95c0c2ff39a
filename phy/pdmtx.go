package phy

import (
	"fmt"
	"sync"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/internal/logger"
)

// PDMTXConfig holds the static configuration of the PDM transmitter.
type PDMTXConfig struct {
	Name string

	// Fifo is the block whose FIFO feeds the modulator, normally the I2S transmitter.
	Fifo aout.PhyDevice
}

// PDMTXState is a snapshot of the PDM transmitter.
type PDMTXState struct {
	Refcount    int
	SampleRate  aout.SampleRate
	ChannelMode aout.ChannelMode
}

// PDMTX is the simulated PDM transmitter. It drains the I2STX FIFO.
type PDMTX struct {
	cfg PDMTXConfig

	mu    sync.Mutex
	state PDMTXState
}

var _ aout.PhyDevice = (*PDMTX)(nil)

// NewPDMTX returns a PDM transmitter block.
func NewPDMTX(cfg PDMTXConfig) *PDMTX {
	if cfg.Name == "" {
		cfg.Name = aout.DefaultPDMTXName
	}

	return &PDMTX{cfg: cfg}
}

// Name returns the bus name of the block.
func (d *PDMTX) Name() string {
	return d.cfg.Name
}

// State returns a snapshot of the block.
func (d *PDMTX) State() PDMTXState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// Enable starts the modulator.
func (d *PDMTX) Enable(p *aout.Param) error {
	if p == nil {
		return fmt.Errorf("%s: enable: %w", d.cfg.Name, aout.ErrInvalidArgument)
	}
	if !p.SampleRate.Valid() {
		return fmt.Errorf("%s: enable: sample rate %d: %w", d.cfg.Name, p.SampleRate, aout.ErrInvalidArgument)
	}

	mode := aout.STEREO_MODE
	if p.PDMTX != nil && p.PDMTX.ChannelMode != 0 {
		mode = p.PDMTX.ChannelMode
	}

	if d.cfg.Fifo != nil {
		if err := d.cfg.Fifo.Control(aout.PHY_CMD_FIFO_GET, p); err != nil {
			logger.Error("pdmtx fifo request failed", "device", d.cfg.Name, "fifo", d.cfg.Fifo.Name(), "error", err)

			return fmt.Errorf("%s: enable: %w", d.cfg.Name, err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.Refcount++
	d.state.SampleRate = p.SampleRate
	d.state.ChannelMode = mode

	logger.Debug("pdmtx enabled", "device", d.cfg.Name, "mode", mode, "refcount", d.state.Refcount)

	return nil
}

// Disable stops the modulator at its last holder.
func (d *PDMTX) Disable(p *aout.Param) error {
	if p == nil {
		return fmt.Errorf("%s: disable: %w", d.cfg.Name, aout.ErrInvalidArgument)
	}

	d.mu.Lock()
	if d.state.Refcount == 0 {
		d.mu.Unlock()

		return nil
	}

	d.state.Refcount--
	if d.state.Refcount == 0 {
		d.state = PDMTXState{}
	}
	d.mu.Unlock()

	if d.cfg.Fifo != nil {
		if err := d.cfg.Fifo.Control(aout.PHY_CMD_FIFO_PUT, p.OutFifo); err != nil {
			return fmt.Errorf("%s: disable: %w", d.cfg.Name, err)
		}
	}

	return nil
}

// Control implements the PDMTX commands.
func (d *PDMTX) Control(cmd aout.Command, arg any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd {
	case aout.AOUT_CMD_GET_SAMPLERATE:
		return setSampleRate(cmd, arg, d.state.SampleRate)
	case aout.PHY_CMD_DUMP_REGS:
		logger.Info("pdmtx registers", "device", d.cfg.Name, "state", fmt.Sprintf("%+v", d.state))

		return nil
	}

	return fmt.Errorf("%s: unsupported command %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
}
