// Package dma simulates the shared data-mover engine that feeds the audio output FIFOs.
//
// A transfer copies the source buffer into the writer attached to its peripheral request slot.
// Without a pacer transfers complete instantly: a direct transfer completes inside Start and
// a reload transfer only advances when Interrupt is called. With a pacer every running channel
// is driven by its own goroutine at the rate the pacer returns.
package dma

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/internal/logger"
)

// Peripheral request slots of the audio output FIFOs.
const (
	DREQ_DAC_FIFO0  = 0xb
	DREQ_DAC_FIFO1  = 0xc
	DREQ_I2STX_FIFO = 0xe
)

// DefaultChannels is the number of channels of the engine.
const DefaultChannels = 8

// Pacer returns how long the transfer of n bytes to a request slot takes.
type Pacer func(slot, n int) time.Duration

// RealtimePacer paces transfers at the byte rate of a PCM stream.
func RealtimePacer(rate aout.SampleRate, width aout.ChannelWidth, channels int) Pacer {
	bps := int(rate.Hz()) * width.DMAWidth() * channels

	return func(_, n int) time.Duration {
		if bps <= 0 {
			return 0
		}

		return time.Duration(n) * time.Second / time.Duration(bps)
	}
}

// channel is one engine channel.
type channel struct {
	used    bool
	cfg     aout.DMAConfig
	buf     []byte
	running bool
	half    int // Next half of the reload ring, 0 or 1.
	stop    chan struct{}
	moved   uint64
}

// Controller is a simulated DMA engine. It implements aout.DMAController.
type Controller struct {
	name string

	mu       sync.Mutex
	channels []channel
	sinks    map[int]io.Writer
	pacer    Pacer
}

var _ aout.DMAController = (*Controller)(nil)

// Option configures a Controller.
type Option func(*Controller)

// WithPacer drives running channels from goroutines paced by p.
func WithPacer(p Pacer) Option {
	return func(c *Controller) {
		c.pacer = p
	}
}

// WithChannels sets the number of engine channels.
func WithChannels(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.channels = make([]channel, n)
		}
	}
}

// New returns an engine registered under name.
func New(name string, opts ...Option) *Controller {
	c := &Controller{
		name:     name,
		channels: make([]channel, DefaultChannels),
		sinks:    make(map[int]io.Writer),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the bus name of the engine.
func (c *Controller) Name() string {
	return c.name
}

// Attach binds the writer fed by transfers on a request slot.
// Transfers to a slot without a writer are discarded.
func (c *Controller) Attach(slot int, w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w == nil {
		delete(c.sinks, slot)

		return
	}

	c.sinks[slot] = w
}

// Request allocates the first free channel.
func (c *Controller) Request() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.channels {
		if !c.channels[i].used {
			c.channels[i] = channel{used: true}

			return i, nil
		}
	}

	return -1, fmt.Errorf("%s: no free channel: %w", c.name, aout.ErrBusy)
}

// Configure programs the transfer descriptor of a channel.
func (c *Controller) Configure(ch int, cfg *aout.DMAConfig) error {
	if cfg == nil {
		return fmt.Errorf("%s: nil config: %w", c.name, aout.ErrInvalidArgument)
	}

	if cfg.SourceWidth != 2 && cfg.SourceWidth != 4 {
		return fmt.Errorf("%s: source width %d: %w", c.name, cfg.SourceWidth, aout.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chn, err := c.channel(ch)
	if err != nil {
		return err
	}

	if chn.running {
		return fmt.Errorf("%s: channel %d running: %w", c.name, ch, aout.ErrBusy)
	}

	chn.cfg = *cfg

	return nil
}

// Reload sets the source buffer of a channel.
func (c *Controller) Reload(ch int, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("%s: empty buffer: %w", c.name, aout.ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chn, err := c.channel(ch)
	if err != nil {
		return err
	}

	if chn.cfg.Reload && len(buf)%2 != 0 {
		return fmt.Errorf("%s: odd reload ring length %d: %w", c.name, len(buf), aout.ErrInvalidArgument)
	}

	if !chn.cfg.Reload && chn.running {
		return fmt.Errorf("%s: channel %d busy: %w", c.name, ch, aout.ErrBusy)
	}

	chn.buf = buf

	return nil
}

// Start sets the run bit of a channel.
func (c *Controller) Start(ch int) error {
	c.mu.Lock()

	chn, err := c.channel(ch)
	if err != nil {
		c.mu.Unlock()

		return err
	}

	if chn.buf == nil {
		c.mu.Unlock()

		return fmt.Errorf("%s: channel %d has no buffer: %w", c.name, ch, aout.ErrInvalidArgument)
	}

	if chn.running {
		reload := chn.cfg.Reload
		c.mu.Unlock()
		if reload {
			return nil
		}

		return fmt.Errorf("%s: channel %d busy: %w", c.name, ch, aout.ErrBusy)
	}

	chn.running = true
	chn.half = 0
	chn.stop = make(chan struct{})
	stop := chn.stop
	reload := chn.cfg.Reload
	pacer := c.pacer
	c.mu.Unlock()

	switch {
	case pacer != nil:
		go c.run(ch, stop)
	case !reload:
		c.complete(ch, stop)
	}

	return nil
}

// Stop clears the run bit of a channel. It does not wait for an event being delivered.
func (c *Controller) Stop(ch int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	chn, err := c.channel(ch)
	if err != nil {
		return err
	}

	c.halt(chn)

	return nil
}

// Free stops and releases a channel.
func (c *Controller) Free(ch int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chn, err := c.channel(ch)
	if err != nil {
		return
	}

	c.halt(chn)
	*chn = channel{}
}

// Status reports whether a channel is running and how many bytes of a direct transfer are pending.
func (c *Controller) Status(ch int) (aout.DMAStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	chn, err := c.channel(ch)
	if err != nil {
		return aout.DMAStatus{}, err
	}

	st := aout.DMAStatus{Busy: chn.running}
	if chn.running && !chn.cfg.Reload {
		st.PendingLength = len(chn.buf)
	}

	return st, nil
}

// Transferred returns the number of bytes a channel has moved since it was requested.
func (c *Controller) Transferred(ch int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	chn, err := c.channel(ch)
	if err != nil {
		return 0
	}

	return chn.moved
}

// Interrupt raises an event on a running reload channel, as the hardware does when the engine
// crosses the middle (aout.DMA_IRQ_HF) or the end (aout.DMA_IRQ_TC) of the ring.
// The matching half is moved to the sink before the callback runs. Events are not checked
// against the ring position so that out-of-order delivery can be exercised.
func (c *Controller) Interrupt(ch int, status int) error {
	if status != aout.DMA_IRQ_HF && status != aout.DMA_IRQ_TC {
		return fmt.Errorf("%s: irq status %d: %w", c.name, status, aout.ErrInvalidArgument)
	}

	c.mu.Lock()
	chn, err := c.channel(ch)
	if err != nil {
		c.mu.Unlock()

		return err
	}

	if !chn.running || !chn.cfg.Reload {
		c.mu.Unlock()

		return fmt.Errorf("%s: channel %d not running in reload mode: %w", c.name, ch, aout.ErrNotPermitted)
	}

	half := 0
	if status == aout.DMA_IRQ_TC {
		half = 1
	}
	chn.half = 1 - half
	stop := chn.stop
	c.mu.Unlock()

	c.deliver(ch, stop, half, status)

	return nil
}

// run drives a channel until it is stopped.
func (c *Controller) run(ch int, stop chan struct{}) {
	for {
		c.mu.Lock()
		chn, err := c.channel(ch)
		if err != nil || chn.stop != stop || !chn.running {
			c.mu.Unlock()

			return
		}

		reload := chn.cfg.Reload
		half := chn.half
		n := len(chn.buf)
		if reload {
			n /= 2
		}
		wait := c.pacer(chn.cfg.Slot, c.expanded(chn, n))
		c.mu.Unlock()

		select {
		case <-stop:
			return
		case <-time.After(wait):
		}

		if !reload {
			c.complete(ch, stop)

			return
		}

		status := aout.DMA_IRQ_HF
		if half == 1 {
			status = aout.DMA_IRQ_TC
		}

		c.mu.Lock()
		if chn.stop == stop && chn.running {
			chn.half = 1 - half
		}
		c.mu.Unlock()

		c.deliver(ch, stop, half, status)
	}
}

// complete finishes a direct transfer and raises the completion event.
func (c *Controller) complete(ch int, stop chan struct{}) {
	c.mu.Lock()
	chn, err := c.channel(ch)
	if err != nil || chn.stop != stop || !chn.running {
		c.mu.Unlock()

		return
	}

	data := c.payload(chn, chn.buf)
	sink := c.sinks[chn.cfg.Slot]
	cb := chn.cfg.Callback
	irq := chn.cfg.CompleteIRQEn
	chn.moved += uint64(len(data))
	c.halt(chn)
	c.mu.Unlock()

	c.emit(sink, data)

	if cb != nil && irq {
		cb(ch, aout.DMA_IRQ_TC)
	}
}

// deliver moves one half of a reload ring to the sink and raises the event.
func (c *Controller) deliver(ch int, stop chan struct{}, half, status int) {
	c.mu.Lock()
	chn, err := c.channel(ch)
	if err != nil || chn.stop != stop || !chn.running {
		c.mu.Unlock()

		return
	}

	size := len(chn.buf) / 2
	data := c.payload(chn, chn.buf[half*size:(half+1)*size])
	sink := c.sinks[chn.cfg.Slot]
	cb := chn.cfg.Callback
	chn.moved += uint64(len(data))
	c.mu.Unlock()

	c.emit(sink, data)

	if cb != nil {
		cb(ch, status)
	}
}

func (c *Controller) emit(sink io.Writer, data []byte) {
	if sink == nil {
		return
	}

	if _, err := sink.Write(data); err != nil {
		logger.Warn("dma sink write", "dma", c.name, "error", err)
	}
}

// payload returns what reaches the FIFO for src. In separated mode every sample is sent twice.
// Must be called with mu held.
func (c *Controller) payload(chn *channel, src []byte) []byte {
	if !chn.cfg.Separated {
		out := make([]byte, len(src))
		copy(out, src)

		return out
	}

	w := chn.cfg.SourceWidth
	out := make([]byte, 0, 2*len(src))
	for i := 0; i+w <= len(src); i += w {
		out = append(out, src[i:i+w]...)
		out = append(out, src[i:i+w]...)
	}

	return out
}

func (c *Controller) expanded(chn *channel, n int) int {
	if chn.cfg.Separated {
		return 2 * n
	}

	return n
}

// halt must be called with mu held.
func (c *Controller) halt(chn *channel) {
	if chn.running {
		close(chn.stop)
		chn.running = false
	}
}

// channel must be called with mu held.
func (c *Controller) channel(ch int) (*channel, error) {
	if ch < 0 || ch >= len(c.channels) || !c.channels[ch].used {
		return nil, fmt.Errorf("%s: channel %d: %w", c.name, ch, aout.ErrInvalidArgument)
	}

	return &c.channels[ch], nil
}
