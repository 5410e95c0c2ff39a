package phy

import (
	"fmt"
	"sync"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/internal/logger"
)

// PAState is a snapshot of the external power amplifier.
type PAState struct {
	Opened bool
	Opens  int
	Closes int
	Class  uint8
}

// PA is a simulated external power amplifier.
type PA struct {
	mu    sync.Mutex
	state PAState
}

var _ aout.ExternalPA = (*PA)(nil)

// NewPA returns a powered-down class AB amplifier.
func NewPA() *PA {
	return &PA{state: PAState{Class: aout.PA_CLASS_AB}}
}

// Open powers the amplifier.
func (p *PA) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Opened = true
	p.state.Opens++
	logger.Debug("external pa on", "class", p.state.Class)

	return nil
}

// Close powers the amplifier down.
func (p *PA) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Opened = false
	p.state.Closes++
	logger.Debug("external pa off")

	return nil
}

// SelectClass switches between class AB and class D operation.
func (p *PA) SelectClass(class uint8) error {
	if class != aout.PA_CLASS_AB && class != aout.PA_CLASS_D {
		return fmt.Errorf("pa class %d: %w", class, aout.ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.Class = class

	return nil
}

// State returns a snapshot of the amplifier.
func (p *PA) State() PAState {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}
