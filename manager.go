package aout

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/aout/internal/logger"
)

// Config holds the construction parameters of a Manager.
type Config struct {
	Bus      *Bus
	Capacity Capacity

	DACName     string
	I2STXName   string
	SPDIFTXName string
	PDMTXName   string

	// PA is the optional external power amplifier.
	PA ExternalPA

	// PAWaitTimeout bounds how long Open waits for a transient power-amplifier session to close.
	PAWaitTimeout time.Duration
	// PAWaitInterval is the polling interval of that wait.
	PAWaitInterval time.Duration

	Metrics Metrics
}

const (
	defaultPAWaitTimeout  = 2000 * time.Millisecond
	defaultPAWaitInterval = 2 * time.Millisecond
)

// Manager owns the output session arena and arbitrates the physical resources shared by the sessions.
type Manager struct {
	// lock serializes open, close and configuration of the output direction.
	lock sync.Mutex
	// mu guards the arena and shared counters, and is the only lock taken from DMA callbacks.
	mu sync.Mutex

	cfg Config
	reg *registry

	dac   PhyDevice
	i2stx PhyDevice
	spdif PhyDevice
	pdmtx PhyDevice
	dma   DMAController

	owners     map[FifoType]int
	dacFifoRef int
	fs128Ref   int

	paActive bool
	paOpened bool
}

// New binds the physical devices named in cfg and returns a session manager.
// Devices missing from the bus are logged and reported as unavailable when a session needs them.
func New(cfg Config) (*Manager, error) {
	if cfg.Bus == nil {
		return nil, fmt.Errorf("new manager: nil bus: %w", ErrInvalidArgument)
	}

	if cfg.Capacity.Total() == 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.DACName == "" {
		cfg.DACName = DefaultDACName
	}
	if cfg.I2STXName == "" {
		cfg.I2STXName = DefaultI2STXName
	}
	if cfg.SPDIFTXName == "" {
		cfg.SPDIFTXName = DefaultSPDIFTXName
	}
	if cfg.PDMTXName == "" {
		cfg.PDMTXName = DefaultPDMTXName
	}
	if cfg.PAWaitTimeout <= 0 {
		cfg.PAWaitTimeout = defaultPAWaitTimeout
	}
	if cfg.PAWaitInterval <= 0 {
		cfg.PAWaitInterval = defaultPAWaitInterval
	}

	m := &Manager{
		cfg:    cfg,
		reg:    newRegistry(cfg.Capacity),
		owners: make(map[FifoType]int),
	}

	m.dac = m.bind(cfg.DACName, cfg.Capacity.DAC > 0)
	m.i2stx = m.bind(cfg.I2STXName, cfg.Capacity.I2STX > 0 || cfg.Capacity.PDMTX > 0)
	m.spdif = m.bind(cfg.SPDIFTXName, cfg.Capacity.SPDIFTX > 0)
	m.pdmtx = m.bind(cfg.PDMTXName, cfg.Capacity.PDMTX > 0)

	logger.Debug("audio out manager ready",
		"dac", m.dac != nil, "i2stx", m.i2stx != nil, "spdiftx", m.spdif != nil, "pdmtx", m.pdmtx != nil,
		"sessions", cfg.Capacity.Total())

	return m, nil
}

func (m *Manager) bind(name string, expected bool) PhyDevice {
	dev, err := m.cfg.Bus.Device(name)
	if err != nil {
		if expected {
			logger.Warn("physical device not bound", "device", name, "error", err)
		}

		return nil
	}

	return dev
}

// Open allocates a session, claims the physical resources its channel type needs and enables the hardware.
// Any failure rolls back every claim already taken.
func (m *Manager) Open(p *Param) (Handle, error) {
	if p == nil {
		return Handle{}, fmt.Errorf("open: nil parameter: %w", ErrInvalidArgument)
	}

	if err := m.lockOpen(); err != nil {
		return Handle{}, err
	}
	defer m.lock.Unlock()

	h, err := m.open(p)
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ObserveOpen(p.ChannelType.Primary().String(), err)
	}

	return h, err
}

func (m *Manager) open(p *Param) (Handle, error) {
	if p.Callback == nil {
		logger.Error("channel callback is nil", "type", p.ChannelType.String())

		return Handle{}, fmt.Errorf("open %s: nil callback: %w", p.ChannelType, ErrInvalidArgument)
	}

	if !p.SampleRate.Valid() {
		return Handle{}, fmt.Errorf("open %s: unsupported sample rate %d: %w", p.ChannelType, p.SampleRate, ErrInvalidArgument)
	}

	if p.Reload != nil && (len(p.Reload.Buf) == 0 || len(p.Reload.Buf)%(2*p.ChannelWidth.DMAWidth()) != 0) {
		logger.Error("invalid reload buffer", "len", len(p.Reload.Buf))

		return Handle{}, fmt.Errorf("open %s: reload buffer length %d: %w", p.ChannelType, len(p.Reload.Buf), ErrInvalidArgument)
	}

	m.mu.Lock()
	s, err := m.reg.acquire(p.ChannelType)
	if err != nil {
		m.mu.Unlock()
		logger.Error("failed to get audio session", "type", p.ChannelType.String(), "error", err)

		return Handle{}, fmt.Errorf("open: %w", err)
	}

	s.param = *p
	s.fifo = p.OutFifo
	s.dmaWidth = p.ChannelWidth.DMAWidth()
	s.callback = p.Callback
	s.cbData = p.CallbackData
	if p.Reload != nil {
		s.reloadEn = true
		s.reload = p.Reload.Buf
	}
	m.mu.Unlock()

	if err := m.claimChannel(s); err != nil {
		logger.Error("enable channel failed", append(s.logArgs(), "error", err)...)

		if rerr := m.releaseAll(s); rerr != nil {
			logger.Error("rollback incomplete", append(s.logArgs(), "error", rerr)...)
		}

		m.mu.Lock()
		m.reg.release(s)
		m.mu.Unlock()

		return Handle{}, fmt.Errorf("open %s on %s: %w", p.ChannelType, p.OutFifo, err)
	}

	m.mu.Lock()
	h := s.handle()
	m.reportOpenSessions(s.primary)
	m.mu.Unlock()

	logger.Info("channel opened", append(s.logArgs(), "rate", p.SampleRate, "reload", s.reloadEn)...)

	return h, nil
}

// Close stops the session's DMA channel, releases its claims in reverse order and frees the slot.
// The slot is freed even if a release step fails; the first failures are returned joined.
func (m *Manager) Close(h Handle) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()
		logger.Error("close on invalid handle", "handle", h.String())

		return fmt.Errorf("close %s: %w", h, ErrInvalidHandle)
	}

	// Callbacks and data-path calls stop resolving the handle from here on.
	s.flags &^= sessionOpen
	ch := s.dmaChan
	dma := m.dma
	primary := s.primary
	m.mu.Unlock()

	var errs []error
	if dma != nil && ch >= 0 {
		if err := dma.Stop(ch); err != nil {
			errs = append(errs, fmt.Errorf("stop dma channel %d: %w", ch, err))
		}
		dma.Free(ch)
	}

	if err := m.releaseAll(s); err != nil {
		errs = append(errs, err)
	}

	m.mu.Lock()
	m.reg.release(s)
	m.reportOpenSessions(primary)
	m.mu.Unlock()

	err := errors.Join(errs...)
	if err != nil {
		logger.Error("channel closed with errors", "handle", h.String(), "error", err)
	} else {
		logger.Info("channel closed", "handle", h.String(), "type", primary.String())
	}

	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ObserveClose(primary.String(), err)
	}

	return err
}

// OpenSessions returns the number of open sessions whose primary type is t.
func (m *Manager) OpenSessions(t ChannelType) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reg.open[t.Primary()]
}

// DACFifoRef returns the number of sessions borrowing a DAC FIFO from another channel type.
func (m *Manager) DACFifoRef() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dacFifoRef
}

// FS128Ref returns the number of holders of the DAC 128fs clock claim.
func (m *Manager) FS128Ref() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.fs128Ref
}

// FifoOwner returns the handle of the session owning a physical FIFO.
func (m *Manager) FifoOwner(fifo FifoType) (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.owners[fifo.Physical()]
	if !ok {
		return Handle{}, false
	}

	return m.reg.slots[idx].handle(), true
}

// PhaseErrors returns the number of out-of-sequence reload events detected on a session.
func (m *Manager) PhaseErrors(h Handle) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.reg.lookup(h)
	if !ok {
		return 0, fmt.Errorf("phase errors %s: %w", h, ErrInvalidHandle)
	}

	return s.phaseErrors, nil
}

// reportOpenSessions must be called with mu held.
func (m *Manager) reportOpenSessions(t ChannelType) {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SetOpenSessions(t.String(), m.reg.open[t])
	}
}

// reportClaims must be called with mu held.
func (m *Manager) reportClaims() {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.SetSharedClaims(ResourceDACFifo, m.dacFifoRef)
		m.cfg.Metrics.SetSharedClaims(ResourceFS128, m.fs128Ref)
	}
}
