package aout

import (
	"fmt"

	"github.com/gen2brain/aout/internal/logger"
)

const (
	defaultBurst = 8
	// A DRQ level below this value means a shallow FIFO that needs single transfers.
	singleBurstLevel = 3
)

// prepare programs a DMA channel for the session. It is idempotent once the session is configured.
func (m *Manager) prepare(h Handle) error {
	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("prepare %s: %w", h, ErrInvalidHandle)
	}
	if s.flags&sessionConfigured != 0 {
		m.mu.Unlock()

		return nil
	}

	fifo := s.fifo
	width := s.dmaWidth
	reloadEn := s.reloadEn
	reload := s.reload
	separated := s.separated
	hasCallback := s.callback != nil
	args := s.logArgs()
	m.mu.Unlock()

	cfg := DMAConfig{
		SourceBurst: defaultBurst,
		DestBurst:   defaultBurst,
		SourceWidth: width,
		Reload:      reloadEn,
		Separated:   separated,
	}

	req := DMAInfoRequest{Fifo: fifo}
	switch {
	case fifo.IsDAC():
		if m.dac == nil {
			return fmt.Errorf("prepare: no dac device: %w", ErrUnavailable)
		}
		if err := m.dac.Control(PHY_CMD_GET_AOUT_DMA_INFO, &req); err != nil {
			logger.Error("failed to get DAC DMA info", append(args, "error", err)...)

			return fmt.Errorf("prepare: dac dma info: %w", ErrHardware)
		}

		fifoCmd := PhyFifoCmd(fifo.Physical(), 0)
		if err := m.dac.Control(PHY_CMD_FIFO_DRQ_LEVEL_GET, &fifoCmd); err != nil {
			logger.Error("failed to get DRQ level", append(args, "error", err)...)

			return fmt.Errorf("prepare: drq level: %w", ErrHardware)
		}

		level := PhyFifoCmdVal(fifoCmd)
		logger.Debug("DRQ level", append(args, "level", level)...)
		if level < singleBurstLevel {
			cfg.DestBurst = 1
		}

	case fifo == AOUT_FIFO_I2STX0:
		if m.i2stx == nil {
			return fmt.Errorf("prepare: no i2stx device: %w", ErrUnavailable)
		}
		if err := m.i2stx.Control(PHY_CMD_GET_AOUT_DMA_INFO, &req); err != nil {
			logger.Error("failed to get I2STX DMA info", append(args, "error", err)...)

			return fmt.Errorf("prepare: i2stx dma info: %w", ErrHardware)
		}

	default:
		return fmt.Errorf("prepare: fifo %s: %w", fifo, ErrInvalidArgument)
	}

	dma, err := m.bindDMA(req.Info.DeviceName)
	if err != nil {
		logger.Error("bind DMA device failed", append(args, "dma", req.Info.DeviceName, "error", err)...)

		return err
	}

	ch, err := dma.Request()
	if err != nil {
		logger.Error("failed to request dma channel", append(args, "error", err)...)

		return fmt.Errorf("prepare: request dma channel: %w", ErrUnavailable)
	}

	cfg.Slot = req.Info.Slot
	if hasCallback {
		if reloadEn {
			cfg.Callback = m.reloadHandler(h)
		} else {
			cfg.Callback = m.directHandler(h)
		}
		cfg.CompleteIRQEn = true
	}

	if err := dma.Configure(ch, &cfg); err != nil {
		dma.Free(ch)
		logger.Error("DMA config error", append(args, "error", err)...)

		return fmt.Errorf("prepare: configure dma channel %d: %w", ch, ErrHardware)
	}

	if reloadEn {
		if err := dma.Reload(ch, reload); err != nil {
			dma.Free(ch)

			return fmt.Errorf("prepare: reload dma channel %d: %w", ch, ErrHardware)
		}
	}

	m.mu.Lock()
	s, ok = m.reg.lookup(h)
	if !ok || s.flags&sessionConfigured != 0 {
		m.mu.Unlock()
		dma.Free(ch)

		if !ok {
			return fmt.Errorf("prepare %s: %w", h, ErrInvalidHandle)
		}

		return nil
	}
	s.dmaChan = ch
	s.flags |= sessionConfigured
	m.mu.Unlock()

	logger.Debug("request DMA channel", append(args, "channel", ch, "slot", cfg.Slot, "burst", cfg.DestBurst)...)

	return nil
}

// bindDMA binds the shared DMA controller on first use.
func (m *Manager) bindDMA(name string) (DMAController, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dma != nil {
		return m.dma, nil
	}

	dma, err := m.cfg.Bus.DMA(name)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	m.dma = dma

	return dma, nil
}

// Start programs the session's DMA channel if needed, powers the external PA and starts the transfer.
// In reload mode starting an already started session is a no-op.
func (m *Manager) Start(h Handle) error {
	if err := m.prepare(h); err != nil {
		logger.Error("prepare session dma error", "handle", h.String(), "error", err)

		return fmt.Errorf("start: %w", err)
	}

	m.openExternalPA(false)

	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("start %s: %w", h, ErrInvalidHandle)
	}

	if s.reloadEn && s.flags&sessionStarted != 0 {
		m.mu.Unlock()

		return nil
	}

	if s.flags&sessionStarted == 0 {
		s.flags |= sessionStarted
		s.nextPhase = AOUT_DMA_IRQ_HF
	}
	ch := s.dmaChan
	dma := m.dma
	m.mu.Unlock()

	if err := dma.Start(ch); err != nil {
		return fmt.Errorf("start dma channel %d: %w", ch, err)
	}

	return nil
}

// Stop halts the session's DMA channel. Claims stay in place until Close.
func (m *Manager) Stop(h Handle) error {
	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("stop %s: %w", h, ErrInvalidHandle)
	}

	ch := s.dmaChan
	dma := m.dma
	configured := s.flags&sessionConfigured != 0
	m.mu.Unlock()

	if !configured || dma == nil || ch < 0 {
		return nil
	}

	logger.Info("audio out stop", "handle", h.String())

	if err := dma.Stop(ch); err != nil {
		return fmt.Errorf("stop dma channel %d: %w", ch, err)
	}

	m.mu.Lock()
	if s, ok := m.reg.lookup(h); ok {
		s.flags &^= sessionStarted
	}
	m.mu.Unlock()

	return nil
}

// directHandler forwards only completion events of one-shot transfers.
func (m *Manager) directHandler(h Handle) DMACallback {
	return func(ch int, status int) {
		if status != DMA_IRQ_TC {
			return
		}

		m.mu.Lock()
		s, ok := m.reg.lookup(h)
		if !ok {
			m.mu.Unlock()

			return
		}
		cb, data := s.callback, s.cbData
		name := s.primary.String()
		m.mu.Unlock()

		if m.cfg.Metrics != nil {
			m.cfg.Metrics.ObserveDMAEvent(name, AOUT_DMA_IRQ_TC.String())
		}

		if cb != nil {
			if err := cb(data, AOUT_DMA_IRQ_TC); err != nil {
				logger.Debug("direct callback error", "handle", h.String(), "error", err)
			}
		}
	}
}

// reloadHandler enforces the HF, TC, HF, ... order of reload events before forwarding them.
func (m *Manager) reloadHandler(h Handle) DMACallback {
	return func(ch int, status int) {
		var reason Reason
		switch status {
		case DMA_IRQ_HF:
			reason = AOUT_DMA_IRQ_HF
		case DMA_IRQ_TC:
			reason = AOUT_DMA_IRQ_TC
		default:
			logger.Error("unknown DMA reason", "handle", h.String(), "status", status)

			return
		}

		m.mu.Lock()
		s, ok := m.reg.lookup(h)
		if !ok {
			m.mu.Unlock()

			return
		}

		name := s.primary.String()
		if reason != s.nextPhase {
			expected := s.nextPhase
			s.phaseErrors++
			s.status |= AUDIO_CHANNEL_STATUS_ERROR
			m.mu.Unlock()

			logger.Error("reload phase out of sequence", "handle", h.String(), "channel", ch,
				"expected", expected.String(), "got", reason.String())
			if m.cfg.Metrics != nil {
				m.cfg.Metrics.ObservePhaseError(name)
			}

			return
		}

		if reason == AOUT_DMA_IRQ_HF {
			s.nextPhase = AOUT_DMA_IRQ_TC
		} else {
			s.nextPhase = AOUT_DMA_IRQ_HF
		}

		cb, data := s.callback, s.cbData
		half := len(s.reload) / 2
		var chunk []byte
		if reason == AOUT_DMA_IRQ_HF {
			chunk = s.reload[:half]
		} else {
			chunk = s.reload[half:]
		}
		m.debugPerf(s, chunk)
		m.mu.Unlock()

		if m.cfg.Metrics != nil {
			m.cfg.Metrics.ObserveDMAEvent(name, reason.String())
		}

		if cb != nil {
			if err := cb(data, reason); err != nil {
				logger.Debug("reload callback error", "handle", h.String(), "error", err)
			}
		}
	}
}
