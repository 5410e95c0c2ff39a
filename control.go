package aout

import (
	"fmt"

	"github.com/gen2brain/aout/internal/logger"
)

// Control issues a command on a session.
//
// OPEN_PA, CLOSE_PA, PA_CLASS_SEL and the *_ALL debug commands are global and accept the zero Handle.
// Commands flagged with AOUT_FIFO_CMD_FLAG are routed to the block owning the session's FIFO,
// every other command to the physical device of the session's primary channel type.
// Commands that return data take a pointer argument.
func (m *Manager) Control(h Handle, cmd Command, arg any) error {
	logger.Debug("control", "handle", h.String(), "cmd", cmd.String())

	switch cmd {
	case AOUT_CMD_OPEN_PA:
		return m.openPA(true)
	case AOUT_CMD_CLOSE_PA:
		return m.closePA()
	case AOUT_CMD_PA_CLASS_SEL:
		class, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}

		return m.selectPAClass(uint8(class))
	case AOUT_CMD_DEBUG_PERFORMANCE_CTL_ALL:
		enable, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}
		m.debugAll(func(s *session) { setDebugPerformance(s, enable != 0) })

		return nil
	case AOUT_CMD_DEBUG_DUMP_LENGTH_ALL:
		n, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}
		m.debugAll(func(s *session) { s.debug.dumpLen = int(n) })

		return nil
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()
		logger.Error("control on invalid handle", "handle", h.String(), "cmd", cmd.String())

		return fmt.Errorf("control %s %s: %w", h, cmd, ErrInvalidHandle)
	}

	switch cmd {
	case AOUT_CMD_DEBUG_PERFORMANCE_CTL:
		defer m.mu.Unlock()

		enable, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}
		setDebugPerformance(s, enable != 0)

		return nil
	case AOUT_CMD_DEBUG_DUMP_LENGTH:
		defer m.mu.Unlock()

		n, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}
		s.debug.dumpLen = int(n)

		return nil
	case AOUT_CMD_SET_SEPARATED_MODE:
		defer m.mu.Unlock()

		s.separated = true
		if s.flags&sessionConfigured != 0 {
			logger.Debug("separated mode applies to the next transfer setup", s.logArgs()...)
		}

		return nil
	}

	fifo := s.fifo
	channelType := s.channelType
	m.mu.Unlock()

	if cmd.IsFifoCmd() {
		return m.fifoControl(h, fifo, cmd, arg)
	}

	dev := m.channelDevice(channelType, cmd)
	if dev == nil {
		if channelType.Primary() == 0 {
			logger.Error("invalid channel type", "handle", h.String(), "type", channelType.String())

			return fmt.Errorf("control %s: channel type %s: %w", cmd, channelType, ErrInvalidArgument)
		}

		return fmt.Errorf("control %s: no %s device: %w", cmd, channelType.Primary(), ErrUnavailable)
	}

	if err := dev.Control(cmd, arg); err != nil {
		return fmt.Errorf("control %s on %s: %w", cmd, dev.Name(), err)
	}

	return nil
}

// channelDevice returns the device handling a non-FIFO command for a channel type.
// SPDIF channel status commands reach a linked SPDIFTX block even when it is not the primary type.
func (m *Manager) channelDevice(t ChannelType, cmd Command) PhyDevice {
	if t&AUDIO_CHANNEL_SPDIFTX != 0 && (cmd == AOUT_CMD_SPDIF_GET_CHANNEL_STATUS || cmd == AOUT_CMD_SPDIF_SET_CHANNEL_STATUS) {
		return m.spdif
	}

	switch t.Primary() {
	case AUDIO_CHANNEL_DAC:
		return m.dac
	case AUDIO_CHANNEL_I2STX:
		return m.i2stx
	case AUDIO_CHANNEL_SPDIFTX:
		return m.spdif
	case AUDIO_CHANNEL_PDMTX:
		return m.pdmtx
	default:
		return nil
	}
}

// fifoControl routes a FIFO-scoped command to the block that owns the FIFO.
func (m *Manager) fifoControl(h Handle, fifo FifoType, cmd Command, arg any) error {
	switch {
	case fifo.IsDAC():
		if m.dac == nil {
			return fmt.Errorf("control %s: no dac device: %w", cmd, ErrUnavailable)
		}

		return m.dacFifoControl(h, fifo.Physical(), cmd, arg)
	case fifo == AOUT_FIFO_I2STX0:
		if m.i2stx == nil {
			return fmt.Errorf("control %s: no i2stx device: %w", cmd, ErrUnavailable)
		}

		if cmd == AOUT_CMD_GET_CHANNEL_STATUS {
			var status uint8
			if err := m.i2stx.Control(cmd, &status); err != nil {
				return fmt.Errorf("control %s on %s: %w", cmd, m.i2stx.Name(), err)
			}

			return m.channelStatus(h, cmd, arg, status)
		}

		if err := m.i2stx.Control(cmd, arg); err != nil {
			return fmt.Errorf("control %s on %s: %w", cmd, m.i2stx.Name(), err)
		}

		return nil
	default:
		return fmt.Errorf("control %s: fifo %s: %w", cmd, fifo, ErrUnavailable)
	}
}

func (m *Manager) dacFifoControl(h Handle, fifo FifoType, cmd Command, arg any) error {
	dac := m.dac
	val := uint32(fifo)

	wrap := func(err error) error {
		return fmt.Errorf("control %s on %s: %w", cmd, dac.Name(), err)
	}

	switch cmd {
	case AOUT_CMD_GET_SAMPLE_CNT:
		err := dac.Control(PHY_CMD_DAC_FIFO_GET_SAMPLE_CNT, &val)
		if err != nil {
			val = 0
		}
		if serr := setUint(cmd, arg, val); serr != nil {
			return serr
		}
		if err != nil {
			return wrap(err)
		}

		return nil

	case AOUT_CMD_RESET_SAMPLE_CNT:
		if err := dac.Control(PHY_CMD_DAC_FIFO_RESET_SAMPLE_CNT, &val); err != nil {
			return wrap(err)
		}

		return nil

	case AOUT_CMD_ENABLE_SAMPLE_CNT:
		if err := dac.Control(PHY_CMD_DAC_FIFO_ENABLE_SAMPLE_CNT, &val); err != nil {
			return wrap(err)
		}

		return nil

	case AOUT_CMD_DISABLE_SAMPLE_CNT:
		if err := dac.Control(PHY_CMD_DAC_FIFO_DISABLE_SAMPLE_CNT, &val); err != nil {
			return wrap(err)
		}

		return nil

	case AOUT_CMD_GET_CHANNEL_STATUS:
		if err := dac.Control(AOUT_CMD_GET_CHANNEL_STATUS, &val); err != nil {
			return wrap(err)
		}

		return m.channelStatus(h, cmd, arg, uint8(val))

	case AOUT_CMD_GET_FIFO_LEN, AOUT_CMD_GET_FIFO_AVAILABLE_LEN:
		fifoCmd := PhyFifoCmd(fifo, 0)
		if err := dac.Control(cmd, &fifoCmd); err != nil {
			return wrap(err)
		}

		return setUint(cmd, arg, PhyFifoCmdVal(fifoCmd))

	case AOUT_CMD_GET_DAC_FIFO_DRQ_LEVEL:
		fifoCmd := PhyFifoCmd(fifo, 0)
		if err := dac.Control(PHY_CMD_FIFO_DRQ_LEVEL_GET, &fifoCmd); err != nil {
			return wrap(err)
		}

		return setUint(cmd, arg, PhyFifoCmdVal(fifoCmd))

	case AOUT_CMD_SET_DAC_FIFO_DRQ_LEVEL:
		level, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}

		fifoCmd := PhyFifoCmd(fifo, level)
		if err := dac.Control(PHY_CMD_FIFO_DRQ_LEVEL_SET, &fifoCmd); err != nil {
			return wrap(err)
		}

		return nil

	case AOUT_CMD_GET_DAC_FIFO_VOLUME:
		fifoCmd := PhyFifoCmd(fifo, 0)
		if err := dac.Control(PHY_CMD_DAC_FIFO_VOLUME_GET, &fifoCmd); err != nil {
			return wrap(err)
		}

		return setUint(cmd, arg, PhyFifoCmdVal(fifoCmd))

	case AOUT_CMD_SET_DAC_FIFO_VOLUME:
		vol, err := uintArg(cmd, arg)
		if err != nil {
			return err
		}

		fifoCmd := PhyFifoCmd(fifo, vol)
		if err := dac.Control(PHY_CMD_DAC_FIFO_VOLUME_SET, &fifoCmd); err != nil {
			return wrap(err)
		}

		return nil
	}

	if err := dac.Control(cmd, arg); err != nil {
		return wrap(err)
	}

	return nil
}

// channelStatus merges the hardware status, a pending direct transfer and the errors latched from
// interrupt context, and clears the latched errors.
func (m *Manager) channelStatus(h Handle, cmd Command, arg any, hw uint8) error {
	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("control %s %s: %w", h, cmd, ErrInvalidHandle)
	}
	ch := s.dmaChan
	dma := m.dma
	m.mu.Unlock()

	status := hw
	if dma != nil && ch >= 0 {
		st, err := dma.Status(ch)
		if err != nil {
			logger.Warn("dma status", "handle", h.String(), "channel", ch, "error", err)
		} else if st.Busy && st.PendingLength > 0 {
			status |= AUDIO_CHANNEL_STATUS_BUSY
		}
	}

	m.mu.Lock()
	s, ok = m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("control %s %s: %w", h, cmd, ErrInvalidHandle)
	}
	status |= s.status
	s.status &^= AUDIO_CHANNEL_STATUS_ERROR
	m.mu.Unlock()

	return setUint(cmd, arg, uint32(status))
}
