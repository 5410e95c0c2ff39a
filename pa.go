package aout

import (
	"fmt"
	"time"

	"github.com/gen2brain/aout/internal/logger"
)

// paPrimeFrames is the number of zero frames written through the transient session before the PA is powered.
const paPrimeFrames = 16

// lockOpen takes the open lock once no transient power-amplifier session is active.
// On success the caller holds lock and must release it.
func (m *Manager) lockOpen() error {
	deadline := time.Now().Add(m.cfg.PAWaitTimeout)

	for {
		m.mu.Lock()
		active := m.paActive
		m.mu.Unlock()

		if !active {
			m.lock.Lock()

			m.mu.Lock()
			active = m.paActive
			m.mu.Unlock()

			if !active {
				return nil
			}
			m.lock.Unlock()
		}

		if time.Now().After(deadline) {
			logger.Error("wait pa session timeout", "timeout", m.cfg.PAWaitTimeout)

			return fmt.Errorf("open: wait pa session: %w", ErrTimeout)
		}

		time.Sleep(m.cfg.PAWaitInterval)
	}
}

// openPASession opens a mono DAC session that keeps the analog path charged while the PA is switched.
func (m *Manager) openPASession() (Handle, error) {
	p := &Param{
		ChannelType:  AUDIO_CHANNEL_DAC,
		OutFifo:      AOUT_FIFO_DAC0,
		SampleRate:   SAMPLE_RATE_48KHZ,
		ChannelWidth: CHANNEL_WIDTH_16BITS,
		Callback:     func(any, Reason) error { return nil },
		DAC:          &DACSetting{ChannelMode: MONO_MODE},
	}

	if err := m.lockOpen(); err != nil {
		return Handle{}, err
	}
	defer m.lock.Unlock()

	// Other opens wait from here until closePASession.
	m.mu.Lock()
	m.paActive = true
	m.mu.Unlock()

	h, err := m.open(p)
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ObserveOpen(p.ChannelType.Primary().String(), err)
	}
	if err != nil {
		m.mu.Lock()
		m.paActive = false
		m.mu.Unlock()

		return Handle{}, err
	}

	return h, nil
}

func (m *Manager) closePASession(h Handle) {
	if err := m.Close(h); err != nil {
		logger.Warn("close pa session", "handle", h.String(), "error", err)
	}

	m.mu.Lock()
	m.paActive = false
	m.mu.Unlock()
}

// openPA powers the internal DAC amplifier and, when withExternal is set, the external PA.
func (m *Manager) openPA(withExternal bool) error {
	if m.dac == nil {
		return fmt.Errorf("open pa: no dac device: %w", ErrUnavailable)
	}

	if err := m.dac.Control(AOUT_CMD_OPEN_PA, nil); err != nil {
		logger.Warn("dac open pa", "error", err)
	}

	h, err := m.openPASession()
	if err != nil {
		logger.Error("failed to open pa session", "error", err)

		return fmt.Errorf("open pa: %w", ErrUnavailable)
	}

	zero := make([]byte, 4)
	for range paPrimeFrames {
		if err := m.Write(h, zero); err != nil {
			logger.Warn("pa session write", "handle", h.String(), "error", err)

			break
		}
	}

	if withExternal {
		m.openExternalPA(true)
	}

	m.closePASession(h)

	logger.Info("open PA successfully")

	return nil
}

// closePA powers down the external PA and then the internal DAC amplifier.
func (m *Manager) closePA() error {
	if m.dac == nil {
		return fmt.Errorf("close pa: no dac device: %w", ErrUnavailable)
	}

	h, err := m.openPASession()
	if err != nil {
		logger.Error("failed to open pa session", "error", err)

		return fmt.Errorf("close pa: %w", ErrUnavailable)
	}

	m.closeExternalPA()
	m.closePASession(h)

	if err := m.dac.Control(AOUT_CMD_CLOSE_PA, nil); err != nil {
		logger.Warn("dac close pa", "error", err)
	}

	logger.Info("close PA successfully")

	return nil
}

// openExternalPA powers the external amplifier unless it is already on or a PA session is in progress.
// force skips both checks.
func (m *Manager) openExternalPA(force bool) {
	pa := m.cfg.PA
	if pa == nil {
		return
	}

	m.mu.Lock()
	skip := !force && (m.paOpened || m.paActive)
	m.mu.Unlock()

	if skip {
		return
	}

	if err := pa.Open(); err != nil {
		logger.Error("external pa open", "error", err)

		return
	}

	m.mu.Lock()
	m.paOpened = true
	m.mu.Unlock()
}

func (m *Manager) closeExternalPA() {
	pa := m.cfg.PA
	if pa == nil {
		return
	}

	m.mu.Lock()
	opened := m.paOpened
	m.mu.Unlock()

	if !opened {
		return
	}

	if err := pa.Close(); err != nil {
		logger.Error("external pa close", "error", err)

		return
	}

	m.mu.Lock()
	m.paOpened = false
	m.mu.Unlock()
}

// selectPAClass switches the external amplifier between class AB and class D.
func (m *Manager) selectPAClass(class uint8) error {
	if m.cfg.PA == nil {
		return fmt.Errorf("pa class select: no external pa: %w", ErrUnavailable)
	}

	if class != PA_CLASS_AB && class != PA_CLASS_D {
		return fmt.Errorf("pa class select: class %d: %w", class, ErrInvalidArgument)
	}

	if err := m.cfg.PA.SelectClass(class); err != nil {
		return fmt.Errorf("pa class select: %w", err)
	}

	logger.Info("external pa class", "class", class)

	return nil
}

// PAOpened reports whether the external power amplifier is powered.
func (m *Manager) PAOpened() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.paOpened
}
