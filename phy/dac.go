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

const (
	// DefaultDrainTimeout bounds the wait for a DAC FIFO to drain before it is disabled.
	DefaultDrainTimeout = 130 * time.Millisecond

	// DACFifoDepth is the PCM buffer depth of a DAC FIFO in bytes.
	DACFifoDepth = 0x800

	dacDrainPoll        = time.Millisecond
	dacDRQLevelDefault  = 0x8
	dacDRQLevelMax      = 0xE
	dacFifoVolDefault   = 0x3 // 0 dB
	dacFifoVolMax       = 0xF
	dacMaxSampleRateKHz = 96
)

// DACConfig holds the static configuration of the DAC block.
type DACConfig struct {
	Name    string
	DMAName string

	// Peripheral request slots of FIFO0 and FIFO1.
	Fifo0Slot int
	Fifo1Slot int

	// KeepEnabledOnPause only mutes the analog path when the last FIFO is released.
	KeepEnabledOnPause bool
	// DrainTimeout bounds the FIFO drain wait on disable (DefaultDrainTimeout when zero).
	DrainTimeout time.Duration

	// Digital path features applied on enable.
	Dither          bool
	AutoMute        bool
	NoiseDetectMute bool

	LeftMute  bool
	RightMute bool

	// ADCBusy reports whether the capture path shares the analog reference.
	ADCBusy func() bool
	// Output receives the samples consumed from the FIFOs.
	Output io.Writer
}

// DACState is a snapshot of the DAC register model.
type DACState struct {
	Refcount   int
	Powered    bool
	AnalogOn   bool
	AnalogRef  bool
	Muted      bool
	VolMuted   bool
	FS128      bool
	PAOn       bool
	Mono       bool
	SampleRate aout.SampleRate
	Left       uint8
	Right      uint8
	SoftSteps  int
	TriggerSrc uint32
	Threshold  uint32

	// Digital path features, set while the path is enabled.
	Dither          bool
	AutoMute        bool
	NoiseDetectMute bool
}

type dacFifo struct {
	// enables counts Enable calls not yet balanced by Disable.
	enables  int
	working  bool
	borrowed bool
	width    int
	drqLevel uint32
	volume   uint32
	pending  int
	errFlag  bool

	cntEnabled  bool
	cntHW       uint16
	cntOverflow uint32
}

// DAC is the simulated stereo DAC block with two FIFOs.
type DAC struct {
	cfg DACConfig

	mu    sync.Mutex
	fifos [2]dacFifo
	state DACState
	stall bool
}

var _ aout.PhyDevice = (*DAC)(nil)

// NewDAC returns a DAC block.
func NewDAC(cfg DACConfig) *DAC {
	if cfg.Name == "" {
		cfg.Name = aout.DefaultDACName
	}
	if cfg.DMAName == "" {
		cfg.DMAName = DefaultDMAName
	}
	if cfg.Fifo0Slot == 0 {
		cfg.Fifo0Slot = dma.DREQ_DAC_FIFO0
	}
	if cfg.Fifo1Slot == 0 {
		cfg.Fifo1Slot = dma.DREQ_DAC_FIFO1
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}

	d := &DAC{cfg: cfg}
	d.state.Left = aout.VolumeLevel0dB
	d.state.Right = aout.VolumeLevel0dB

	return d
}

// Name returns the bus name of the block.
func (d *DAC) Name() string {
	return d.cfg.Name
}

// State returns a snapshot of the block.
func (d *DAC) State() DACState {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.state
}

// FifoWorking reports whether a FIFO is enabled.
func (d *DAC) FifoWorking(f aout.FifoType) bool {
	idx, ok := dacFifoIndex(f)
	if !ok {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return d.fifos[idx].working
}

// SetStall keeps written samples pending in the FIFOs until it is cleared.
func (d *DAC) SetStall(stall bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stall = stall
	if !stall {
		for i := range d.fifos {
			d.fifos[i].pending = 0
		}
	}
}

// FifoWriter returns the DMA side of a FIFO.
func (d *DAC) FifoWriter(f aout.FifoType) io.Writer {
	return dacFifoWriter{dac: d, fifo: f}
}

type dacFifoWriter struct {
	dac  *DAC
	fifo aout.FifoType
}

func (w dacFifoWriter) Write(p []byte) (int, error) {
	return w.dac.push(w.fifo, p)
}

func (d *DAC) push(f aout.FifoType, p []byte) (int, error) {
	idx, ok := dacFifoIndex(f)
	if !ok {
		return 0, fmt.Errorf("%s: fifo %s: %w", d.cfg.Name, f, aout.ErrInvalidArgument)
	}

	d.mu.Lock()
	fifo := &d.fifos[idx]
	if !fifo.working {
		fifo.errFlag = true
		d.mu.Unlock()
		logger.Debug("write to disabled dac fifo", "device", d.cfg.Name, "fifo", f.String(), "len", len(p))

		return len(p), nil
	}

	if fifo.cntEnabled && fifo.width > 0 {
		sum := uint32(fifo.cntHW) + uint32(len(p)/fifo.width)
		fifo.cntOverflow += sum >> 16
		fifo.cntHW = uint16(sum)
	}

	if d.stall {
		fifo.pending += len(p)
	}

	out := d.cfg.Output
	d.mu.Unlock()

	if out != nil {
		if _, err := out.Write(p); err != nil {
			return 0, fmt.Errorf("%s: output: %w", d.cfg.Name, err)
		}
	}

	return len(p), nil
}

// Enable powers the block and enables the FIFO named in p with the DAC digital path.
func (d *DAC) Enable(p *aout.Param) error {
	if p == nil || p.DAC == nil {
		return fmt.Errorf("%s: enable: missing dac setting: %w", d.cfg.Name, aout.ErrInvalidArgument)
	}

	idx, ok := dacFifoIndex(p.OutFifo)
	if !ok {
		return fmt.Errorf("%s: enable: fifo %s: %w", d.cfg.Name, p.OutFifo, aout.ErrInvalidArgument)
	}

	if !p.SampleRate.Valid() || int(p.SampleRate) > dacMaxSampleRateKHz {
		logger.Error("mapping sample rate to osr error", "device", d.cfg.Name, "rate", p.SampleRate)

		return fmt.Errorf("%s: enable: sample rate %d: %w", d.cfg.Name, p.SampleRate, aout.ErrInvalidArgument)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.SampleRate != 0 && d.state.SampleRate != p.SampleRate && d.state.Refcount > 0 {
		return fmt.Errorf("%s: enable: running at %d kHz: %w", d.cfg.Name, d.state.SampleRate, aout.ErrBusy)
	}

	if d.fifos[idx].enables > 0 {
		d.fifos[idx].enables++
		d.state.Refcount++
		logger.Debug("dac fifo already enabled", "device", d.cfg.Name, "fifo", p.OutFifo.String(),
			"enables", d.fifos[idx].enables)

		return nil
	}

	d.powerOn()
	d.enableFifo(idx, p.ChannelWidth)
	d.enableDigital(p)
	d.setVolume(p.DAC.Volume, false)

	d.fifos[idx].errFlag = false
	d.fifos[idx].enables = 1
	d.state.Refcount++

	logger.Debug("dac enabled", "device", d.cfg.Name, "fifo", p.OutFifo.String(), "refcount", d.state.Refcount)

	return nil
}

// Disable releases one enable of the FIFO named in p. The last holder drains and disables the FIFO,
// and the block powers down with its last FIFO.
func (d *DAC) Disable(p *aout.Param) error {
	if p == nil {
		return fmt.Errorf("%s: disable: %w", d.cfg.Name, aout.ErrInvalidArgument)
	}

	idx, ok := dacFifoIndex(p.OutFifo)
	if !ok {
		logger.Error("invalid fifo index", "device", d.cfg.Name, "fifo", p.OutFifo.String())

		return fmt.Errorf("%s: disable: fifo %s: %w", d.cfg.Name, p.OutFifo, aout.ErrInvalidArgument)
	}

	d.mu.Lock()
	if d.state.Refcount > 0 {
		d.state.Refcount--
	}
	if d.fifos[idx].enables > 1 {
		d.fifos[idx].enables--
		remain := d.fifos[idx].enables
		d.mu.Unlock()
		logger.Info("dac disable", "device", d.cfg.Name, "fifo", p.OutFifo.String(), "enables", remain)

		return nil
	}
	d.mu.Unlock()

	err := d.waitEmpty(idx)

	d.mu.Lock()
	d.fifos[idx] = dacFifo{}
	d.powerDownIfIdle()
	d.mu.Unlock()

	logger.Debug("dac disabled", "device", d.cfg.Name, "fifo", p.OutFifo.String())

	return err
}

// Control implements the DAC commands.
func (d *DAC) Control(cmd aout.Command, arg any) error {
	switch cmd {
	case aout.PHY_CMD_FIFO_GET:
		p, ok := arg.(*aout.Param)
		if !ok || p == nil {
			return fmt.Errorf("%s: %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
		}

		return d.fifoGet(p)

	case aout.PHY_CMD_FIFO_PUT:
		f, err := fifoArg(cmd, arg)
		if err != nil {
			return err
		}

		return d.fifoPut(f)

	case aout.PHY_CMD_DAC_WAIT_EMPTY:
		f, err := fifoArg(cmd, arg)
		if err != nil {
			return err
		}
		idx, ok := dacFifoIndex(f)
		if !ok {
			return fmt.Errorf("%s: %s: fifo %s: %w", d.cfg.Name, cmd, f, aout.ErrInvalidArgument)
		}

		return d.waitEmpty(idx)

	case aout.PHY_CMD_GET_AOUT_DMA_INFO:
		req, err := dmaInfoArg(arg)
		if err != nil {
			return err
		}

		switch req.Fifo.Physical() {
		case aout.AOUT_FIFO_DAC0:
			req.Info = aout.DMAInfo{DeviceName: d.cfg.DMAName, Slot: d.cfg.Fifo0Slot}
		case aout.AOUT_FIFO_DAC1:
			req.Info = aout.DMAInfo{DeviceName: d.cfg.DMAName, Slot: d.cfg.Fifo1Slot}
		default:
			return fmt.Errorf("%s: %s: fifo %s: %w", d.cfg.Name, cmd, req.Fifo, aout.ErrInvalidArgument)
		}

		return nil

	case aout.PHY_CMD_DUMP_REGS:
		d.mu.Lock()
		st := d.state
		fifos := d.fifos
		d.mu.Unlock()

		logger.Info("dac registers", "device", d.cfg.Name, "state", fmt.Sprintf("%+v", st),
			"fifo0", fmt.Sprintf("%+v", fifos[0]), "fifo1", fmt.Sprintf("%+v", fifos[1]))

		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd {
	case aout.PHY_CMD_CLAIM_WITH_128FS:
		d.state.FS128 = true

	case aout.PHY_CMD_CLAIM_WITHOUT_128FS:
		d.state.FS128 = false

	case aout.AOUT_CMD_OPEN_PA:
		d.powerOn()
		d.state.PAOn = true

	case aout.AOUT_CMD_CLOSE_PA:
		d.state.PAOn = false

	case aout.AOUT_CMD_OUT_MUTE:
		mute, err := flagArg(cmd, arg)
		if err != nil {
			return err
		}
		d.state.Muted = mute

	case aout.AOUT_CMD_GET_VOLUME:
		v, ok := arg.(*aout.VolumeSetting)
		if !ok || v == nil {
			return fmt.Errorf("%s: %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
		}
		v.Left = aout.LevelToVolume(d.state.Left)
		v.Right = aout.LevelToVolume(d.state.Right)

	case aout.AOUT_CMD_SET_VOLUME:
		var v aout.VolumeSetting
		switch a := arg.(type) {
		case aout.VolumeSetting:
			v = a
		case *aout.VolumeSetting:
			if a == nil {
				return fmt.Errorf("%s: %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
			}
			v = *a
		default:
			return fmt.Errorf("%s: %s: argument %T: %w", d.cfg.Name, cmd, arg, aout.ErrInvalidArgument)
		}
		d.setVolume(v, true)

	case aout.AOUT_CMD_GET_SAMPLERATE:
		return setSampleRate(cmd, arg, d.state.SampleRate)

	case aout.AOUT_CMD_SET_SAMPLERATE:
		sr, err := sampleRateArg(cmd, arg)
		if err != nil {
			return err
		}
		if int(sr) > dacMaxSampleRateKHz {
			return fmt.Errorf("%s: %s: %d kHz: %w", d.cfg.Name, cmd, sr, aout.ErrInvalidArgument)
		}
		d.state.SampleRate = sr

	case aout.AOUT_CMD_SET_DAC_TRIGGER_SRC:
		v, ok := arg.(uint32)
		if !ok {
			return fmt.Errorf("%s: %s: argument %T: %w", d.cfg.Name, cmd, arg, aout.ErrInvalidArgument)
		}
		d.state.TriggerSrc = v

	case aout.AOUT_CMD_SET_DAC_THRESHOLD:
		v, ok := arg.(uint32)
		if !ok {
			return fmt.Errorf("%s: %s: argument %T: %w", d.cfg.Name, cmd, arg, aout.ErrInvalidArgument)
		}
		d.state.Threshold = v

	case aout.AOUT_CMD_GET_CHANNEL_STATUS:
		v, ok := arg.(*uint32)
		if !ok || v == nil {
			return fmt.Errorf("%s: %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
		}
		idx, ok := dacFifoIndex(aout.FifoType(*v))
		if !ok {
			return fmt.Errorf("%s: %s: fifo %d: %w", d.cfg.Name, cmd, *v, aout.ErrInvalidArgument)
		}

		var status uint32
		if d.fifos[idx].pending > 0 {
			status |= uint32(aout.AUDIO_CHANNEL_STATUS_BUSY)
		}
		if d.fifos[idx].errFlag {
			status |= uint32(aout.AUDIO_CHANNEL_STATUS_ERROR)
			d.fifos[idx].errFlag = false
		}
		*v = status

	case aout.AOUT_CMD_GET_FIFO_LEN, aout.AOUT_CMD_GET_FIFO_AVAILABLE_LEN:
		fifo, idx, err := d.fifoCmd(cmd, arg)
		if err != nil {
			return err
		}

		n := uint32(DACFifoDepth)
		if cmd == aout.AOUT_CMD_GET_FIFO_AVAILABLE_LEN {
			n = uint32(max(DACFifoDepth-d.fifos[idx].pending, 0))
		}
		*fifo = aout.PhyFifoCmd(aout.PhyFifoCmdFifo(*fifo), n)

	case aout.PHY_CMD_FIFO_DRQ_LEVEL_GET:
		fifo, idx, err := d.fifoCmd(cmd, arg)
		if err != nil {
			return err
		}

		level := d.fifos[idx].drqLevel
		if !d.fifos[idx].working {
			level = dacDRQLevelDefault
		}
		*fifo = aout.PhyFifoCmd(aout.PhyFifoCmdFifo(*fifo), level)

	case aout.PHY_CMD_FIFO_DRQ_LEVEL_SET:
		fifo, idx, err := d.fifoCmd(cmd, arg)
		if err != nil {
			return err
		}
		if !d.fifos[idx].working {
			return fmt.Errorf("%s: %s: fifo %d not enabled: %w", d.cfg.Name, cmd, idx, aout.ErrNotPermitted)
		}
		d.fifos[idx].drqLevel = min(aout.PhyFifoCmdVal(*fifo), dacDRQLevelMax)

	case aout.PHY_CMD_DAC_FIFO_VOLUME_GET:
		fifo, idx, err := d.fifoCmd(cmd, arg)
		if err != nil {
			return err
		}
		*fifo = aout.PhyFifoCmd(aout.PhyFifoCmdFifo(*fifo), d.fifos[idx].volume)

	case aout.PHY_CMD_DAC_FIFO_VOLUME_SET:
		fifo, idx, err := d.fifoCmd(cmd, arg)
		if err != nil {
			return err
		}
		if !d.fifos[idx].working {
			return fmt.Errorf("%s: %s: fifo %d not enabled: %w", d.cfg.Name, cmd, idx, aout.ErrNotPermitted)
		}
		d.fifos[idx].volume = min(aout.PhyFifoCmdVal(*fifo), dacFifoVolMax)

	case aout.PHY_CMD_DAC_FIFO_GET_SAMPLE_CNT:
		v, ok := arg.(*uint32)
		if !ok || v == nil {
			return fmt.Errorf("%s: %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
		}
		idx, ok := dacFifoIndex(aout.FifoType(*v))
		if !ok {
			return fmt.Errorf("%s: %s: fifo %d: %w", d.cfg.Name, cmd, *v, aout.ErrInvalidArgument)
		}
		f := &d.fifos[idx]
		*v = f.cntOverflow<<16 | uint32(f.cntHW)

	case aout.PHY_CMD_DAC_FIFO_RESET_SAMPLE_CNT, aout.PHY_CMD_DAC_FIFO_ENABLE_SAMPLE_CNT,
		aout.PHY_CMD_DAC_FIFO_DISABLE_SAMPLE_CNT:
		fifo, err := fifoArg(cmd, arg)
		if err != nil {
			return err
		}
		idx, ok := dacFifoIndex(fifo)
		if !ok {
			return fmt.Errorf("%s: %s: fifo %s: %w", d.cfg.Name, cmd, fifo, aout.ErrInvalidArgument)
		}

		f := &d.fifos[idx]
		switch cmd {
		case aout.PHY_CMD_DAC_FIFO_RESET_SAMPLE_CNT:
			f.cntHW, f.cntOverflow = 0, 0
		case aout.PHY_CMD_DAC_FIFO_ENABLE_SAMPLE_CNT:
			f.cntEnabled = true
		default:
			f.cntEnabled = false
		}

	default:
		return fmt.Errorf("%s: unsupported command %s: %w", d.cfg.Name, cmd, aout.ErrInvalidArgument)
	}

	return nil
}

// fifoGet enables a DAC FIFO on behalf of another channel type.
func (d *DAC) fifoGet(p *aout.Param) error {
	if !p.OutFifo.IsDAC() {
		logger.Error("invalid fifo type", "device", d.cfg.Name, "fifo", p.OutFifo.String())

		return fmt.Errorf("%s: fifo get: fifo %s: %w", d.cfg.Name, p.OutFifo, aout.ErrInvalidArgument)
	}

	idx, _ := dacFifoIndex(p.OutFifo)

	d.mu.Lock()
	defer d.mu.Unlock()

	if p.OutFifo == aout.AOUT_FIFO_DAC1 && !d.fifos[0].working {
		logger.Error("DAC FIFO1 depends on DAC FIFO0 enabled", "device", d.cfg.Name)

		return fmt.Errorf("%s: fifo get: dac fifo1 needs fifo0: %w", d.cfg.Name, aout.ErrNotPermitted)
	}

	if d.fifos[idx].working {
		logger.Error("DAC FIFO now is using", "device", d.cfg.Name, "fifo", p.OutFifo.String())

		return fmt.Errorf("%s: fifo get: fifo %s: %w", d.cfg.Name, p.OutFifo, aout.ErrBusy)
	}

	if idx == 0 {
		d.fifos[0] = dacFifo{}
	}

	d.powerOn()
	d.enableFifo(idx, p.ChannelWidth)
	d.fifos[idx].borrowed = true

	if p.DAC != nil {
		if p.DAC.ChannelMode == aout.MONO_MODE {
			d.state.Mono = true
		}
		d.setVolume(p.DAC.Volume, true)
	}

	return nil
}

// fifoPut drains and disables a FIFO enabled through fifoGet.
func (d *DAC) fifoPut(f aout.FifoType) error {
	idx, ok := dacFifoIndex(f)
	if !ok {
		return fmt.Errorf("%s: fifo put: fifo %s: %w", d.cfg.Name, f, aout.ErrInvalidArgument)
	}

	d.mu.Lock()
	working := d.fifos[idx].working
	d.mu.Unlock()

	if !working {
		return nil
	}

	if err := d.waitEmpty(idx); err != nil {
		logger.Warn("dac fifo not drained", "device", d.cfg.Name, "fifo", f.String(), "error", err)
	}

	d.mu.Lock()
	d.fifos[idx] = dacFifo{}
	d.powerDownIfIdle()
	d.mu.Unlock()

	return nil
}

// waitEmpty polls a FIFO until it has drained or the drain timeout expires.
func (d *DAC) waitEmpty(idx int) error {
	deadline := time.Now().Add(d.cfg.DrainTimeout)

	for {
		d.mu.Lock()
		pending := d.fifos[idx].pending
		d.mu.Unlock()

		if pending == 0 {
			return nil
		}

		if time.Now().After(deadline) {
			logger.Error("wait dac fifo empty timeout", "device", d.cfg.Name, "fifo", idx, "pending", pending)

			return fmt.Errorf("%s: fifo%d drain: %w", d.cfg.Name, idx, aout.ErrTimeout)
		}

		time.Sleep(dacDrainPoll)
	}
}

// fifoCmd decodes a packed FIFO command argument. Must be called with mu held.
func (d *DAC) fifoCmd(cmd aout.Command, arg any) (*uint32, int, error) {
	fifo, err := fifoCmdArg(cmd, arg)
	if err != nil {
		return nil, 0, err
	}

	idx, ok := dacFifoIndex(aout.PhyFifoCmdFifo(*fifo))
	if !ok {
		return nil, 0, fmt.Errorf("%s: %s: fifo %d: %w", d.cfg.Name, cmd, aout.PhyFifoCmdFifo(*fifo), aout.ErrInvalidArgument)
	}

	return fifo, idx, nil
}

// powerOn must be called with mu held.
func (d *DAC) powerOn() {
	d.state.Powered = true
	d.state.AnalogOn = true
	d.state.AnalogRef = true
	if !d.state.VolMuted {
		d.state.Muted = false
	}
}

// enableFifo must be called with mu held.
func (d *DAC) enableFifo(idx int, width aout.ChannelWidth) {
	f := &d.fifos[idx]
	f.working = true
	f.width = width.DMAWidth()
	f.drqLevel = dacDRQLevelDefault
	f.volume = dacFifoVolDefault
}

// enableDigital sets up the digital path for p. Must be called with mu held.
func (d *DAC) enableDigital(p *aout.Param) {
	d.state.SampleRate = p.SampleRate
	d.state.Mono = p.DAC.ChannelMode == aout.MONO_MODE
	d.state.Dither = d.cfg.Dither
	d.state.AutoMute = d.cfg.AutoMute
	d.state.NoiseDetectMute = d.cfg.NoiseDetectMute
}

// powerDownIfIdle tears the block down once no FIFO is working. Must be called with mu held.
func (d *DAC) powerDownIfIdle() {
	if d.state.Refcount > 0 || d.fifos[0].working || d.fifos[1].working {
		return
	}

	d.state.SampleRate = 0
	d.state.Mono = false
	d.state.Dither = false
	d.state.AutoMute = false
	d.state.NoiseDetectMute = false

	if d.cfg.KeepEnabledOnPause {
		d.state.Muted = true
		logger.Debug("dac kept enabled muted", "device", d.cfg.Name)

		return
	}

	d.state.AnalogOn = false
	d.state.Powered = false
	if d.cfg.ADCBusy == nil || !d.cfg.ADCBusy() {
		d.state.AnalogRef = false
	}

	logger.Debug("dac powered down", "device", d.cfg.Name, "analog_ref", d.state.AnalogRef)
}

// setVolume applies a left/right volume. Must be called with mu held.
func (d *DAC) setVolume(v aout.VolumeSetting, fade bool) {
	if aout.IsMuteVolume(v.Left) || aout.IsMuteVolume(v.Right) {
		logger.Info("volume less than mute level", "device", d.cfg.Name,
			"left", v.Left, "right", v.Right, "mute", aout.VolumeMuteMin)
		d.state.Muted = true
		d.state.VolMuted = true
	} else if d.state.VolMuted {
		d.state.Muted = false
		d.state.VolMuted = false
	}

	left, right := aout.VolumeToLevel(v.Left), aout.VolumeToLevel(v.Right)
	changed := false
	if !d.cfg.LeftMute && v.Left != aout.VolumeInvalid && left != d.state.Left {
		d.state.Left = left
		changed = true
	}
	if !d.cfg.RightMute && v.Right != aout.VolumeInvalid && right != d.state.Right {
		d.state.Right = right
		changed = true
	}

	logger.Debug("set volume", "device", d.cfg.Name, "left", v.Left, "right", v.Right,
		"left_level", left, "right_level", right)

	if d.fifos[0].pending == 0 && d.fifos[1].pending == 0 {
		return
	}

	if fade && changed {
		d.state.SoftSteps++
	}
}

func dacFifoIndex(f aout.FifoType) (int, bool) {
	switch f.Physical() {
	case aout.AOUT_FIFO_DAC0:
		return 0, true
	case aout.AOUT_FIFO_DAC1:
		return 1, true
	default:
		return 0, false
	}
}
