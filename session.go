package aout

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sessionMagic tags a live session slot.
const sessionMagic = 0x1a2b3c4d

type sessionFlag uint8

const (
	sessionOpen sessionFlag = 1 << iota
	sessionConfigured
	sessionStarted
)

// Handle is an opaque reference to an open session.
// The zero Handle never refers to a session.
type Handle struct {
	index uint16
	gen   uint32
}

// String returns a short representation of the handle for logs.
func (h Handle) String() string {
	return fmt.Sprintf("session#%d.%d", h.index, h.gen)
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// debugState holds the dynamic debug controls of a session.
type debugState struct {
	performance   bool
	perSecondSize int
	timestamp     time.Time
	dumpLen       int
}

// session is one slot of the session arena.
type session struct {
	magic uint32
	gen   uint32
	index int
	id    uuid.UUID

	param       Param
	channelType ChannelType
	primary     ChannelType
	fifo        FifoType
	dmaWidth    int
	dmaChan     int
	flags       sessionFlag

	callback Callback
	cbData   any

	reload    []byte
	reloadEn  bool
	separated bool

	claims []claim

	nextPhase   Reason
	phaseErrors uint64
	status      uint8

	debug debugState
}

func (s *session) handle() Handle {
	return Handle{index: uint16(s.index), gen: s.gen}
}

func (s *session) logArgs() []any {
	return []any{"sid", s.id.String(), "slot", s.index, "type", s.channelType.String(), "fifo", s.fifo.String()}
}

// Capacity is the maximum number of simultaneously open sessions per primary channel type.
type Capacity struct {
	DAC     int `mapstructure:"dac" yaml:"dac"`
	I2STX   int `mapstructure:"i2stx" yaml:"i2stx"`
	SPDIFTX int `mapstructure:"spdiftx" yaml:"spdiftx"`
	PDMTX   int `mapstructure:"pdmtx" yaml:"pdmtx"`
}

// Total returns the arena size implied by the per-type limits.
func (c Capacity) Total() int {
	return c.DAC + c.I2STX + c.SPDIFTX + c.PDMTX
}

// Of returns the limit for a primary channel type.
func (c Capacity) Of(t ChannelType) int {
	switch t {
	case AUDIO_CHANNEL_DAC:
		return c.DAC
	case AUDIO_CHANNEL_I2STX:
		return c.I2STX
	case AUDIO_CHANNEL_SPDIFTX:
		return c.SPDIFTX
	case AUDIO_CHANNEL_PDMTX:
		return c.PDMTX
	default:
		return 0
	}
}

var (
	// DefaultCapacity is the session table of the default hardware variant.
	DefaultCapacity = Capacity{DAC: 2, I2STX: 2, SPDIFTX: 2, PDMTX: 0}
	// PearlriverCapacity is the session table of the pearlriver variant, which routes its serial output through PDM.
	PearlriverCapacity = Capacity{DAC: 0, I2STX: 1, SPDIFTX: 0, PDMTX: 1}
)

// CapacityForVariant returns the session table of a named hardware variant.
func CapacityForVariant(name string) (Capacity, error) {
	switch name {
	case "", "default":
		return DefaultCapacity, nil
	case "pearlriver":
		return PearlriverCapacity, nil
	default:
		return Capacity{}, fmt.Errorf("unknown hardware variant %q: %w", name, ErrInvalidArgument)
	}
}

// registry is the fixed-size session arena.
// All methods must be called with the manager's state mutex held.
type registry struct {
	slots    []session
	capacity Capacity
	open     map[ChannelType]int
}

func newRegistry(c Capacity) *registry {
	return &registry{
		slots:    make([]session, c.Total()),
		capacity: c,
		open:     make(map[ChannelType]int),
	}
}

// acquire takes the first free slot for a session whose primary type is t.
func (r *registry) acquire(t ChannelType) (*session, error) {
	primary := t.Primary()
	if primary == 0 {
		return nil, fmt.Errorf("invalid channel type 0x%x: %w", uint8(t), ErrInvalidArgument)
	}

	limit := r.capacity.Of(primary)
	if limit == 0 {
		return nil, fmt.Errorf("channel type %s not supported on this variant: %w", primary, ErrUnavailable)
	}

	if r.open[primary] >= limit {
		return nil, fmt.Errorf("all %d %s sessions in use: %w", limit, primary, ErrBusy)
	}

	for i := range r.slots {
		s := &r.slots[i]
		if s.magic == sessionMagic {
			continue
		}

		gen := s.gen + 1
		*s = session{
			magic:       sessionMagic,
			gen:         gen,
			index:       i,
			id:          uuid.New(),
			channelType: t,
			primary:     primary,
			dmaChan:     -1,
			flags:       sessionOpen,
			nextPhase:   AOUT_DMA_IRQ_HF,
		}
		r.open[primary]++

		return s, nil
	}

	return nil, fmt.Errorf("session table full: %w", ErrBusy)
}

// release zeroes the slot, keeping only its generation so stale handles stay invalid.
func (r *registry) release(s *session) {
	if s.magic == sessionMagic && r.open[s.primary] > 0 {
		r.open[s.primary]--
	}

	gen := s.gen
	*s = session{gen: gen}
}

// lookup returns the live session referenced by h.
func (r *registry) lookup(h Handle) (*session, bool) {
	if h.gen == 0 || int(h.index) >= len(r.slots) {
		return nil, false
	}

	s := &r.slots[h.index]
	if s.magic != sessionMagic || s.gen != h.gen || s.flags&sessionOpen == 0 {
		return nil, false
	}

	return s, true
}

// lookupAny returns the slot referenced by h even if the session is closing.
func (r *registry) lookupAny(h Handle) *session {
	if h.gen == 0 || int(h.index) >= len(r.slots) {
		return nil
	}

	s := &r.slots[h.index]
	if s.magic != sessionMagic || s.gen != h.gen {
		return nil
	}

	return s
}

// each calls fn for every live session.
func (r *registry) each(fn func(s *session)) {
	for i := range r.slots {
		s := &r.slots[i]
		if s.magic == sessionMagic && s.flags&sessionOpen != 0 {
			fn(s)
		}
	}
}
