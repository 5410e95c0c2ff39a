package aout

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gen2brain/aout/internal/logger"
)

type claimKind uint8

const (
	claimOwner  claimKind = iota // Exclusive ownership of a physical FIFO.
	claimEnable                  // dev.Enable / dev.Disable.
	claimFifo                    // PHY_CMD_FIFO_GET / PHY_CMD_FIFO_PUT on another block's FIFO.
	claim128fs                   // DAC 128fs clock, reference counted.
)

// claim is one resource taken while opening a session. Claims are released in reverse order.
type claim struct {
	kind    claimKind
	dev     PhyDevice
	fifo    FifoType
	dacFifo bool
}

// channelRule lists the FIFOs and widths a primary channel type accepts.
type channelRule struct {
	fifos  []FifoType
	widths []ChannelWidth
}

var channelRules = map[ChannelType]channelRule{
	AUDIO_CHANNEL_DAC: {
		fifos:  []FifoType{AOUT_FIFO_DAC0, AOUT_FIFO_DAC1},
		widths: []ChannelWidth{CHANNEL_WIDTH_16BITS, CHANNEL_WIDTH_24BITS},
	},
	AUDIO_CHANNEL_I2STX: {
		fifos:  []FifoType{AOUT_FIFO_DAC0, AOUT_FIFO_DAC1, AOUT_FIFO_I2STX0},
		widths: []ChannelWidth{CHANNEL_WIDTH_16BITS, CHANNEL_WIDTH_20BITS, CHANNEL_WIDTH_24BITS},
	},
	AUDIO_CHANNEL_SPDIFTX: {
		fifos:  []FifoType{AOUT_FIFO_DAC0, AOUT_FIFO_DAC1, AOUT_FIFO_I2STX0, AOUT_FIFO_DAC1_ONLY_SPDIF},
		widths: []ChannelWidth{CHANNEL_WIDTH_16BITS, CHANNEL_WIDTH_24BITS},
	},
	AUDIO_CHANNEL_PDMTX: {
		fifos:  []FifoType{AOUT_FIFO_I2STX0},
		widths: []ChannelWidth{CHANNEL_WIDTH_16BITS},
	},
}

// checkRule validates the FIFO and width of p against the rule of its primary type.
func checkRule(primary ChannelType, p *Param) error {
	rule, ok := channelRules[primary]
	if !ok {
		return fmt.Errorf("channel type %s: %w", primary, ErrInvalidArgument)
	}

	if !slices.Contains(rule.fifos, p.OutFifo) {
		return fmt.Errorf("channel fifo type %s invalid for %s: %w", p.OutFifo, primary, ErrInvalidArgument)
	}

	if !slices.Contains(rule.widths, p.ChannelWidth) {
		return fmt.Errorf("channel width %d invalid for %s: %w", p.ChannelWidth.Bits(), primary, ErrInvalidArgument)
	}

	return nil
}

// claimChannel runs the arbitration rules of the session's primary type.
// It is called with lock held; on error the caller releases whatever was pushed to s.claims.
func (m *Manager) claimChannel(s *session) error {
	switch s.primary {
	case AUDIO_CHANNEL_DAC:
		return m.claimDAC(s)
	case AUDIO_CHANNEL_I2STX:
		return m.claimI2STX(s)
	case AUDIO_CHANNEL_SPDIFTX:
		return m.claimSPDIF(s)
	case AUDIO_CHANNEL_PDMTX:
		return m.claimPDMTX(s)
	default:
		return fmt.Errorf("channel type %s: %w", s.channelType, ErrInvalidArgument)
	}
}

func (m *Manager) claimDAC(s *session) error {
	p := &s.param

	if m.dac == nil {
		return fmt.Errorf("no dac device: %w", ErrUnavailable)
	}
	if p.DAC == nil {
		return fmt.Errorf("dac setting is nil: %w", ErrInvalidArgument)
	}
	if err := checkRule(AUDIO_CHANNEL_DAC, p); err != nil {
		return err
	}

	if err := m.takeOwner(s, p.OutFifo); err != nil {
		return err
	}

	// Linked with I2STX the DAC FIFO drains to the serial output and the analog path stays off.
	if s.channelType&AUDIO_CHANNEL_I2STX != 0 {
		if m.i2stx == nil {
			return fmt.Errorf("no i2stx device: %w", ErrUnavailable)
		}
		if err := m.takeFifo(s, m.dac, true); err != nil {
			return err
		}

		return m.enable(s, m.i2stx)
	}

	if s.channelType&AUDIO_CHANNEL_SPDIFTX != 0 {
		if m.spdif == nil {
			return fmt.Errorf("no spdiftx device: %w", ErrUnavailable)
		}
		if err := m.enable(s, m.spdif); err != nil {
			return err
		}
		if err := m.take128fs(s); err != nil {
			return err
		}
	}

	return m.enable(s, m.dac)
}

func (m *Manager) claimI2STX(s *session) error {
	p := &s.param

	if m.i2stx == nil {
		return fmt.Errorf("no i2stx device: %w", ErrUnavailable)
	}
	if p.I2STX == nil {
		return fmt.Errorf("i2stx setting is nil: %w", ErrInvalidArgument)
	}
	if err := checkRule(AUDIO_CHANNEL_I2STX, p); err != nil {
		return err
	}

	if err := m.takeOwner(s, p.OutFifo); err != nil {
		return err
	}

	if s.channelType&AUDIO_CHANNEL_SPDIFTX != 0 {
		if m.spdif == nil {
			return fmt.Errorf("no spdiftx device: %w", ErrUnavailable)
		}
		if err := m.enable(s, m.spdif); err != nil {
			return err
		}
		if err := m.take128fs(s); err != nil {
			return err
		}
	}

	if p.OutFifo.IsDAC() {
		if m.dac == nil {
			return fmt.Errorf("no dac device: %w", ErrUnavailable)
		}
		if err := m.takeFifo(s, m.dac, true); err != nil {
			return fmt.Errorf("take dac fifo: %w", err)
		}
	}

	return m.enable(s, m.i2stx)
}

func (m *Manager) claimSPDIF(s *session) error {
	p := &s.param

	if m.spdif == nil {
		return fmt.Errorf("no spdiftx device: %w", ErrUnavailable)
	}
	if p.SPDIF == nil {
		return fmt.Errorf("spdiftx setting is nil: %w", ErrInvalidArgument)
	}
	if err := checkRule(AUDIO_CHANNEL_SPDIFTX, p); err != nil {
		return err
	}

	if err := m.takeOwner(s, p.OutFifo); err != nil {
		return err
	}

	switch {
	case p.OutFifo.IsDAC():
		if m.dac == nil {
			return fmt.Errorf("no dac device: %w", ErrUnavailable)
		}
		if err := m.takeFifo(s, m.dac, true); err != nil {
			return fmt.Errorf("take dac fifo: %w", err)
		}
	case p.OutFifo == AOUT_FIFO_I2STX0:
		if m.i2stx == nil {
			return fmt.Errorf("no i2stx device: %w", ErrUnavailable)
		}
		if err := m.takeFifo(s, m.i2stx, false); err != nil {
			return fmt.Errorf("take i2stx fifo: %w", err)
		}
	}

	if err := m.take128fs(s); err != nil {
		return err
	}

	return m.enable(s, m.spdif)
}

func (m *Manager) claimPDMTX(s *session) error {
	p := &s.param

	if m.pdmtx == nil {
		return fmt.Errorf("no pdmtx device: %w", ErrUnavailable)
	}
	if s.channelType != AUDIO_CHANNEL_PDMTX {
		return fmt.Errorf("pdmtx cannot be linked with %s: %w", s.channelType, ErrInvalidArgument)
	}
	if err := checkRule(AUDIO_CHANNEL_PDMTX, p); err != nil {
		return err
	}

	if err := m.takeOwner(s, p.OutFifo); err != nil {
		return err
	}

	return m.enable(s, m.pdmtx)
}

// takeOwner records s as the exclusive user of a physical FIFO.
func (m *Manager) takeOwner(s *session, fifo FifoType) error {
	phys := fifo.Physical()

	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.owners[phys]; ok {
		return fmt.Errorf("fifo %s owned by slot %d: %w", phys, idx, ErrBusy)
	}

	m.owners[phys] = s.index
	s.claims = append(s.claims, claim{kind: claimOwner, fifo: phys})

	return nil
}

func (m *Manager) enable(s *session, dev PhyDevice) error {
	if err := dev.Enable(&s.param); err != nil {
		return fmt.Errorf("enable %s: %w", dev.Name(), err)
	}

	s.claims = append(s.claims, claim{kind: claimEnable, dev: dev})

	return nil
}

// takeFifo borrows the FIFO of another block. Borrowed DAC FIFOs are counted in dacFifoRef.
func (m *Manager) takeFifo(s *session, dev PhyDevice, dacFifo bool) error {
	if err := dev.Control(PHY_CMD_FIFO_GET, &s.param); err != nil {
		return fmt.Errorf("request %s fifo %s: %w", dev.Name(), s.fifo, err)
	}

	m.mu.Lock()
	if dacFifo {
		m.dacFifoRef++
	}
	m.reportClaims()
	m.mu.Unlock()

	s.claims = append(s.claims, claim{kind: claimFifo, dev: dev, fifo: s.fifo, dacFifo: dacFifo})

	return nil
}

// take128fs asserts the DAC 128fs clock on the first holder.
func (m *Manager) take128fs(s *session) error {
	if m.dac == nil {
		logger.Warn("no dac device for 128fs clock", s.logArgs()...)

		return nil
	}

	m.mu.Lock()
	first := m.fs128Ref == 0
	m.mu.Unlock()

	if first {
		if err := m.dac.Control(PHY_CMD_CLAIM_WITH_128FS, nil); err != nil {
			return fmt.Errorf("claim 128fs: %w", err)
		}
	}

	m.mu.Lock()
	m.fs128Ref++
	m.reportClaims()
	m.mu.Unlock()

	s.claims = append(s.claims, claim{kind: claim128fs, dev: m.dac})

	return nil
}

// releaseAll releases the session's claims in reverse order.
// It keeps going after a failure so that no counter is left elevated.
func (m *Manager) releaseAll(s *session) error {
	var errs []error

	for i := len(s.claims) - 1; i >= 0; i-- {
		if err := m.release(s, s.claims[i]); err != nil {
			errs = append(errs, err)
		}
	}
	s.claims = nil

	return errors.Join(errs...)
}

func (m *Manager) release(s *session, c claim) error {
	switch c.kind {
	case claimOwner:
		m.mu.Lock()
		delete(m.owners, c.fifo)
		m.mu.Unlock()

	case claimEnable:
		if err := c.dev.Disable(&s.param); err != nil {
			return fmt.Errorf("disable %s: %w", c.dev.Name(), err)
		}

	case claimFifo:
		m.mu.Lock()
		if c.dacFifo {
			m.dacFifoRef--
		}
		m.reportClaims()
		remain := m.dacFifoRef
		m.mu.Unlock()

		if c.dacFifo && remain > 0 {
			logger.Debug("dac fifo still in use", append(s.logArgs(), "remain", remain)...)
		}

		if err := c.dev.Control(PHY_CMD_FIFO_PUT, c.fifo); err != nil {
			return fmt.Errorf("release %s fifo %s: %w", c.dev.Name(), c.fifo, err)
		}

	case claim128fs:
		m.mu.Lock()
		m.fs128Ref--
		last := m.fs128Ref == 0
		m.reportClaims()
		m.mu.Unlock()

		if last {
			if err := c.dev.Control(PHY_CMD_CLAIM_WITHOUT_128FS, nil); err != nil {
				return fmt.Errorf("release 128fs: %w", err)
			}
		}
	}

	return nil
}
