package phy

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/dma"
	"github.com/gen2brain/aout/internal/logger"
)

// I2STXConfig holds the static configuration of the I2S transmitter.
type I2STXConfig struct {
	Name    string
	DMAName string
	Slot    int

	// SRDTimeout is how long the detector waits for a qualifying edge before it reports a timeout.
	// Zero selects DefaultSRDTimeout, a negative value disables the timer.
	SRDTimeout time.Duration
	// BCLK32 starts the detector at 32 BCLK per LRCLK instead of 64.
	BCLK32 bool

	// Output receives the samples consumed from the I2STX FIFO.
	Output io.Writer
}

// I2STXState is a snapshot of the I2STX register model.
type I2STXState struct {
	Refcount   int
	Mode       aout.I2STXMode
	SampleRate aout.SampleRate
	FifoOwned  bool
	Borrowed   bool
	FifoResets int
	SRD        SRDState
}

// I2STX is the simulated I2S transmitter with its sample rate detector.
type I2STX struct {
	cfg I2STXConfig

	mu         sync.Mutex
	refcount   int
	mode       aout.I2STXMode
	sampleRate aout.SampleRate
	fifoOwned  bool
	borrowed   bool
	width      int
	errFlag    bool
	fifoResets int

	srd srd
}

var _ aout.PhyDevice = (*I2STX)(nil)

// NewI2STX returns an I2S transmitter block.
func NewI2STX(cfg I2STXConfig) *I2STX {
	if cfg.Name == "" {
		cfg.Name = aout.DefaultI2STXName
	}
	if cfg.DMAName == "" {
		cfg.DMAName = DefaultDMAName
	}
	if cfg.Slot == 0 {
		cfg.Slot = dma.DREQ_I2STX_FIFO
	}
	if cfg.SRDTimeout == 0 {
		cfg.SRDTimeout = DefaultSRDTimeout
	}

	return &I2STX{cfg: cfg}
}

// Name returns the bus name of the block.
func (i *I2STX) Name() string {
	return i.cfg.Name
}

// State returns a snapshot of the block.
func (i *I2STX) State() I2STXState {
	i.mu.Lock()
	defer i.mu.Unlock()

	return I2STXState{
		Refcount:   i.refcount,
		Mode:       i.mode,
		SampleRate: i.sampleRate,
		FifoOwned:  i.fifoOwned,
		Borrowed:   i.borrowed,
		FifoResets: i.fifoResets,
		SRD:        i.srd.state(),
	}
}

// FifoWriter returns the DMA side of the I2STX FIFO.
func (i *I2STX) FifoWriter() io.Writer {
	return i2stxFifoWriter{i}
}

type i2stxFifoWriter struct {
	i *I2STX
}

func (w i2stxFifoWriter) Write(p []byte) (int, error) {
	i := w.i

	i.mu.Lock()
	if !i.fifoOwned && !i.borrowed {
		i.errFlag = true
		i.mu.Unlock()
		logger.Debug("write to disabled i2stx fifo", "device", i.cfg.Name, "len", len(p))

		return len(p), nil
	}
	out := i.cfg.Output
	i.mu.Unlock()

	if out != nil {
		if _, err := out.Write(p); err != nil {
			return 0, fmt.Errorf("%s: output: %w", i.cfg.Name, err)
		}
	}

	return len(p), nil
}

// Enable starts the serial output for a session. A slave-mode session that is not linked with the DAC
// arms the sample rate detector with its callback.
func (i *I2STX) Enable(p *aout.Param) error {
	if p == nil || p.I2STX == nil && p.ChannelType&aout.AUDIO_CHANNEL_DAC == 0 {
		return fmt.Errorf("%s: enable: missing i2stx setting: %w", i.cfg.Name, aout.ErrInvalidArgument)
	}

	if !p.SampleRate.Valid() {
		return fmt.Errorf("%s: enable: sample rate %d: %w", i.cfg.Name, p.SampleRate, aout.ErrInvalidArgument)
	}

	mode := aout.I2S_MODE_MASTER
	if p.I2STX != nil {
		mode = p.I2STX.Mode
	}

	i.mu.Lock()

	if p.OutFifo == aout.AOUT_FIFO_I2STX0 {
		if i.fifoOwned || i.borrowed {
			i.mu.Unlock()
			logger.Error("i2stx fifo busy", "device", i.cfg.Name)

			return fmt.Errorf("%s: enable: fifo %s: %w", i.cfg.Name, p.OutFifo, aout.ErrBusy)
		}
		i.fifoOwned = true
		i.width = p.ChannelWidth.DMAWidth()
		i.errFlag = false
	}

	i.refcount++
	i.mode = mode
	i.sampleRate = p.SampleRate

	arm := mode == aout.I2S_MODE_SLAVE && p.ChannelType&aout.AUDIO_CHANNEL_DAC == 0 &&
		p.I2STX != nil && p.I2STX.SRDCallback != nil
	if arm {
		width := aout.SRDSTA_WL_64RATE
		if i.cfg.BCLK32 {
			width = aout.SRDSTA_WL_32RATE
		}
		i.srd.arm(p.I2STX.SRDCallback, p.I2STX.CallbackData, width)
		i.armSRDTimer()
	}
	refcount := i.refcount
	i.mu.Unlock()

	logger.Debug("i2stx enabled", "device", i.cfg.Name, "fifo", p.OutFifo.String(), "mode", mode,
		"srd", arm, "refcount", refcount)

	return nil
}

// Disable stops the serial output of a session and disarms the detector.
func (i *I2STX) Disable(p *aout.Param) error {
	if p == nil {
		return fmt.Errorf("%s: disable: %w", i.cfg.Name, aout.ErrInvalidArgument)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.refcount == 0 {
		logger.Warn("i2stx disable without enable", "device", i.cfg.Name)

		return nil
	}

	i.refcount--
	if p.OutFifo == aout.AOUT_FIFO_I2STX0 {
		i.fifoOwned = false
	}

	if p.I2STX != nil && p.I2STX.SRDCallback != nil {
		i.srd.disarm()
	}

	if i.refcount == 0 {
		i.srd.disarm()
		i.sampleRate = 0
		i.mode = aout.I2S_MODE_MASTER
	}

	logger.Debug("i2stx disabled", "device", i.cfg.Name, "refcount", i.refcount)

	return nil
}

// Control implements the I2STX commands.
func (i *I2STX) Control(cmd aout.Command, arg any) error {
	switch cmd {
	case aout.PHY_CMD_FIFO_GET:
		p, ok := arg.(*aout.Param)
		if !ok || p == nil {
			return fmt.Errorf("%s: %s: %w", i.cfg.Name, cmd, aout.ErrInvalidArgument)
		}

		i.mu.Lock()
		defer i.mu.Unlock()

		if i.fifoOwned || i.borrowed {
			logger.Error("i2stx fifo busy", "device", i.cfg.Name)

			return fmt.Errorf("%s: %s: %w", i.cfg.Name, cmd, aout.ErrBusy)
		}
		i.borrowed = true
		i.width = p.ChannelWidth.DMAWidth()
		i.errFlag = false

		return nil

	case aout.PHY_CMD_FIFO_PUT:
		i.mu.Lock()
		i.borrowed = false
		i.mu.Unlock()

		return nil

	case aout.PHY_CMD_I2STX_IS_OPENED:
		i.mu.Lock()
		opened := i.refcount > 0
		i.mu.Unlock()

		switch v := arg.(type) {
		case *bool:
			if v != nil {
				*v = opened

				return nil
			}
		case *uint8:
			if v != nil {
				*v = 0
				if opened {
					*v = 1
				}

				return nil
			}
		}

		return fmt.Errorf("%s: %s: argument %T: %w", i.cfg.Name, cmd, arg, aout.ErrInvalidArgument)

	case aout.PHY_CMD_GET_AOUT_DMA_INFO:
		req, err := dmaInfoArg(arg)
		if err != nil {
			return err
		}
		if req.Fifo != aout.AOUT_FIFO_I2STX0 {
			return fmt.Errorf("%s: %s: fifo %s: %w", i.cfg.Name, cmd, req.Fifo, aout.ErrInvalidArgument)
		}
		req.Info = aout.DMAInfo{DeviceName: i.cfg.DMAName, Slot: i.cfg.Slot}

		return nil

	case aout.AOUT_CMD_GET_SAMPLERATE:
		i.mu.Lock()
		sr := i.sampleRate
		i.mu.Unlock()

		return setSampleRate(cmd, arg, sr)

	case aout.AOUT_CMD_SET_SAMPLERATE:
		sr, err := sampleRateArg(cmd, arg)
		if err != nil {
			return err
		}

		i.mu.Lock()
		i.sampleRate = sr
		i.mu.Unlock()

		return nil

	case aout.AOUT_CMD_GET_CHANNEL_STATUS:
		v, ok := arg.(*uint8)
		if !ok || v == nil {
			return fmt.Errorf("%s: %s: %w", i.cfg.Name, cmd, aout.ErrInvalidArgument)
		}

		i.mu.Lock()
		*v = 0
		if i.errFlag {
			*v |= aout.AUDIO_CHANNEL_STATUS_ERROR
			i.errFlag = false
		}
		i.mu.Unlock()

		return nil

	case aout.PHY_CMD_DUMP_REGS:
		logger.Info("i2stx registers", "device", i.cfg.Name, "state", fmt.Sprintf("%+v", i.State()))

		return nil
	}

	return fmt.Errorf("%s: unsupported command %s: %w", i.cfg.Name, cmd, aout.ErrInvalidArgument)
}
