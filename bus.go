package aout

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Default device names used to bind the physical blocks of a session manager.
const (
	DefaultDACName     = "DAC_0"
	DefaultI2STXName   = "I2STX_0"
	DefaultSPDIFTXName = "SPDIFTX_0"
	DefaultPDMTXName   = "PDMTX_0"
)

// Bus is a registry of named physical devices and DMA controllers, the way a board exposes its peripherals.
type Bus struct {
	mu      sync.RWMutex
	devices map[string]PhyDevice
	dmas    map[string]DMAController
}

// NewBus returns an empty device registry.
func NewBus() *Bus {
	return &Bus{
		devices: make(map[string]PhyDevice),
		dmas:    make(map[string]DMAController),
	}
}

// Register adds a physical device under its name.
func (b *Bus) Register(dev PhyDevice) error {
	if b == nil || dev == nil {
		return fmt.Errorf("register device: %w", ErrInvalidArgument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.devices[dev.Name()]; ok {
		return fmt.Errorf("device %s already registered: %w", dev.Name(), ErrBusy)
	}

	b.devices[dev.Name()] = dev

	return nil
}

// RegisterDMA adds a DMA controller under its name.
func (b *Bus) RegisterDMA(c DMAController) error {
	if b == nil || c == nil {
		return fmt.Errorf("register dma: %w", ErrInvalidArgument)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.dmas[c.Name()]; ok {
		return fmt.Errorf("dma %s already registered: %w", c.Name(), ErrBusy)
	}

	b.dmas[c.Name()] = c

	return nil
}

// Device looks up a physical device by name.
func (b *Bus) Device(name string) (PhyDevice, error) {
	if b == nil {
		return nil, fmt.Errorf("bind device %s: %w", name, ErrUnavailable)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	dev, ok := b.devices[name]
	if !ok {
		return nil, fmt.Errorf("bind device %s: %w", name, ErrUnavailable)
	}

	return dev, nil
}

// DMA looks up a DMA controller by name.
func (b *Bus) DMA(name string) (DMAController, error) {
	if b == nil {
		return nil, fmt.Errorf("bind dma %s: %w", name, ErrUnavailable)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.dmas[name]
	if !ok {
		return nil, fmt.Errorf("bind dma %s: %w", name, ErrUnavailable)
	}

	return c, nil
}

// Devices returns the sorted names of all registered physical devices.
func (b *Bus) Devices() []string {
	if b == nil {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.devices))
	for name := range b.devices {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// String returns a human-readable listing of the bus.
func (b *Bus) String() string {
	if b == nil {
		return ""
	}

	var sb strings.Builder

	sb.WriteString("Devices:\n")
	for _, name := range b.Devices() {
		sb.WriteString(fmt.Sprintf("  %s\n", name))
	}

	b.mu.RLock()
	dmas := make([]string, 0, len(b.dmas))
	for name := range b.dmas {
		dmas = append(dmas, name)
	}
	b.mu.RUnlock()
	sort.Strings(dmas)

	sb.WriteString("DMA controllers:\n")
	for _, name := range dmas {
		sb.WriteString(fmt.Sprintf("  %s\n", name))
	}

	return sb.String()
}
