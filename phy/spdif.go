package phy

import (
	"fmt"
	"sync"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/internal/logger"
)

// ClockSource is the FIFO clock domain the S/PDIF transmitter follows.
type ClockSource uint8

const (
	ClockSourceNone ClockSource = iota
	ClockSourceDAC
	ClockSourceI2STX
)

// String returns the clock source name.
func (c ClockSource) String() string {
	switch c {
	case ClockSourceDAC:
		return "dac"
	case ClockSourceI2STX:
		return "i2stx"
	default:
		return "none"
	}
}

// SPDIFTXConfig holds the static configuration of the S/PDIF transmitter.
type SPDIFTXConfig struct {
	Name string
}

// SPDIFTXState is a snapshot of the S/PDIF transmitter.
type SPDIFTXState struct {
	Refcount    int
	SampleRate  aout.SampleRate
	ClockSource ClockSource
	Status      aout.SPDIFChannelStatus
}

// SPDIFTX is the simulated S/PDIF transmitter. It has no FIFO of its own.
type SPDIFTX struct {
	cfg SPDIFTXConfig

	mu    sync.Mutex
	state SPDIFTXState
}

var _ aout.PhyDevice = (*SPDIFTX)(nil)

// NewSPDIFTX returns an S/PDIF transmitter block.
func NewSPDIFTX(cfg SPDIFTXConfig) *SPDIFTX {
	if cfg.Name == "" {
		cfg.Name = aout.DefaultSPDIFTXName
	}

	return &SPDIFTX{cfg: cfg}
}

// Name returns the bus name of the block.
func (s *SPDIFTX) Name() string {
	return s.cfg.Name
}

// State returns a snapshot of the block.
func (s *SPDIFTX) State() SPDIFTXState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Enable starts the transmitter on the clock of the FIFO in p.
func (s *SPDIFTX) Enable(p *aout.Param) error {
	if p == nil {
		return fmt.Errorf("%s: enable: %w", s.cfg.Name, aout.ErrInvalidArgument)
	}

	if !p.SampleRate.Valid() {
		return fmt.Errorf("%s: enable: sample rate %d: %w", s.cfg.Name, p.SampleRate, aout.ErrInvalidArgument)
	}

	src := ClockSourceDAC
	if p.OutFifo == aout.AOUT_FIFO_I2STX0 {
		src = ClockSourceI2STX
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Refcount > 0 && s.state.SampleRate != p.SampleRate {
		logger.Error("spdiftx running at another rate", "device", s.cfg.Name,
			"rate", s.state.SampleRate, "requested", p.SampleRate)

		return fmt.Errorf("%s: enable: running at %d kHz: %w", s.cfg.Name, s.state.SampleRate, aout.ErrBusy)
	}

	s.state.Refcount++
	s.state.SampleRate = p.SampleRate
	s.state.ClockSource = src
	if p.SPDIF != nil {
		s.state.Status = p.SPDIF.Status
	}

	logger.Debug("spdiftx enabled", "device", s.cfg.Name, "clock", src.String(), "refcount", s.state.Refcount)

	return nil
}

// Disable stops the transmitter at its last holder.
func (s *SPDIFTX) Disable(p *aout.Param) error {
	if p == nil {
		return fmt.Errorf("%s: disable: %w", s.cfg.Name, aout.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Refcount == 0 {
		logger.Warn("spdiftx disable without enable", "device", s.cfg.Name)

		return nil
	}

	s.state.Refcount--
	if s.state.Refcount == 0 {
		s.state = SPDIFTXState{}
	}

	return nil
}

// Control implements the S/PDIF commands.
func (s *SPDIFTX) Control(cmd aout.Command, arg any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd {
	case aout.AOUT_CMD_SPDIF_SET_CHANNEL_STATUS:
		switch v := arg.(type) {
		case aout.SPDIFChannelStatus:
			s.state.Status = v
		case *aout.SPDIFChannelStatus:
			if v == nil {
				return fmt.Errorf("%s: %s: %w", s.cfg.Name, cmd, aout.ErrInvalidArgument)
			}
			s.state.Status = *v
		default:
			return fmt.Errorf("%s: %s: argument %T: %w", s.cfg.Name, cmd, arg, aout.ErrInvalidArgument)
		}

	case aout.AOUT_CMD_SPDIF_GET_CHANNEL_STATUS:
		v, ok := arg.(*aout.SPDIFChannelStatus)
		if !ok || v == nil {
			return fmt.Errorf("%s: %s: argument %T: %w", s.cfg.Name, cmd, arg, aout.ErrInvalidArgument)
		}
		*v = s.state.Status

	case aout.AOUT_CMD_GET_SAMPLERATE:
		return setSampleRate(cmd, arg, s.state.SampleRate)

	case aout.AOUT_CMD_SET_SAMPLERATE:
		sr, err := sampleRateArg(cmd, arg)
		if err != nil {
			return err
		}
		s.state.SampleRate = sr

	case aout.PHY_CMD_DUMP_REGS:
		logger.Info("spdiftx registers", "device", s.cfg.Name, "state", fmt.Sprintf("%+v", s.state))

	default:
		return fmt.Errorf("%s: unsupported command %s: %w", s.cfg.Name, cmd, aout.ErrInvalidArgument)
	}

	return nil
}
