package phy

import (
	"time"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/internal/logger"
)

// DefaultSRDTimeout is the detector timeout when none is configured.
const DefaultSRDTimeout = 500 * time.Millisecond

// SRD status register fields.
const (
	SRDSTA_CNT_SHIFT = 12
	SRDSTA_CNT_MASK  = 0x1FFF << SRDSTA_CNT_SHIFT
	SRDSTA_TO_PD     = 1 << 11
	SRDSTA_SRC_PD    = 1 << 10
	SRDSTA_CHW_PD    = 1 << 8
	SRDSTA_WL_MASK   = 0x7
)

// SRDReferenceClock is the frequency of the counter clock of the detector.
const SRDReferenceClock = 32000000

// srdBand is an exclusive detection window around a supported rate.
type srdBand struct {
	lo, hi uint32
	rate   aout.SampleRate
}

var srdBands = []srdBand{
	{7920, 8080, aout.SAMPLE_RATE_8KHZ},
	{10915, 11135, aout.SAMPLE_RATE_11KHZ},
	{11880, 12120, aout.SAMPLE_RATE_12KHZ},
	{15840, 16160, aout.SAMPLE_RATE_16KHZ},
	{21830, 22270, aout.SAMPLE_RATE_22KHZ},
	{23760, 24240, aout.SAMPLE_RATE_24KHZ},
	{31680, 32320, aout.SAMPLE_RATE_32KHZ},
	{43659, 44541, aout.SAMPLE_RATE_44KHZ},
	{47520, 48480, aout.SAMPLE_RATE_48KHZ},
	{63360, 64640, aout.SAMPLE_RATE_64KHZ},
	{87318, 89082, aout.SAMPLE_RATE_88KHZ},
	{95040, 96960, aout.SAMPLE_RATE_96KHZ},
	{174636, 178164, aout.SAMPLE_RATE_176KHZ},
	{190080, 193920, aout.SAMPLE_RATE_192KHZ},
}

// SRDRate matches a detected frequency in Hz against the supported rates.
func SRDRate(fs uint32) (aout.SampleRate, bool) {
	for _, b := range srdBands {
		if fs > b.lo && fs < b.hi {
			return b.rate, true
		}
	}

	return 0, false
}

// SRDCount returns the counter value the detector latches for a frequency in Hz.
func SRDCount(fs uint32) uint32 {
	if fs == 0 {
		return 0
	}

	return SRDReferenceClock / fs
}

// SRDStatus builds a status register value reporting a rate (SRC_PD) detected at fs Hz.
func SRDStatus(fs uint32) uint32 {
	return (SRDCount(fs)<<SRDSTA_CNT_SHIFT)&SRDSTA_CNT_MASK | SRDSTA_SRC_PD
}

// SRDWidthStatus builds a status register value reporting a width change (CHW_PD).
func SRDWidthStatus(w aout.SRDWidth) uint32 {
	return SRDSTA_CHW_PD | uint32(w)&SRDSTA_WL_MASK
}

// SRDTimeoutStatus is the status register value of a detector timeout (TO_PD).
const SRDTimeoutStatus = SRDSTA_TO_PD

// SRDState is a snapshot of the detector.
type SRDState struct {
	Armed  bool
	Locked bool
	Rate   aout.SampleRate
	Width  aout.SRDWidth
}

// srd is guarded by the mutex of the I2STX block that owns it.
type srd struct {
	armed    bool
	callback aout.SRDCallback
	data     any
	rate     aout.SampleRate
	width    aout.SRDWidth

	timer *time.Timer
	gen   uint64
}

type srdEvent struct {
	event   aout.SRDEvent
	payload any
}

func (s *srd) arm(cb aout.SRDCallback, data any, width aout.SRDWidth) {
	s.stopTimer()
	s.armed = true
	s.callback = cb
	s.data = data
	s.rate = 0
	s.width = width
}

func (s *srd) disarm() {
	s.stopTimer()
	*s = srd{gen: s.gen}
}

func (s *srd) state() SRDState {
	return SRDState{Armed: s.armed, Locked: s.rate != 0, Rate: s.rate, Width: s.width}
}

func (s *srd) stopTimer() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// SRDState returns a snapshot of the sample rate detector.
func (i *I2STX) SRDState() SRDState {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.srd.state()
}

// RaiseSRD delivers a detector interrupt with the given status register value.
// Callbacks run after the block state has been updated and without the block lock held.
func (i *I2STX) RaiseSRD(stat uint32) {
	i.mu.Lock()

	s := &i.srd
	if !s.armed {
		i.mu.Unlock()
		logger.Debug("srd interrupt while disarmed", "device", i.cfg.Name, "stat", stat)

		return
	}

	var events []srdEvent

	if stat&SRDSTA_TO_PD != 0 {
		s.stopTimer()
		s.rate = 0
		events = append(events, srdEvent{event: aout.I2STX_SRD_TIMEOUT})
		logger.Info("srd timeout", "device", i.cfg.Name)
	}

	if stat&SRDSTA_SRC_PD != 0 {
		if ev, ok := i.srdRateLocked(stat); ok {
			events = append(events, ev)
		}
	}

	if stat&SRDSTA_CHW_PD != 0 {
		wl := aout.SRDWidth(stat & SRDSTA_WL_MASK)
		if (wl == aout.SRDSTA_WL_32RATE || wl == aout.SRDSTA_WL_64RATE) && wl != s.width {
			s.width = wl
			events = append(events, srdEvent{event: aout.I2STX_SRD_WL_CHANGE, payload: wl})
			logger.Info("srd width change", "device", i.cfg.Name, "width", wl)
		}
	}

	cb, data := s.callback, s.data
	i.mu.Unlock()

	for _, ev := range events {
		cb(data, ev.event, ev.payload)
	}
}

// srdRateLocked handles a rate detection. Must be called with mu held.
func (i *I2STX) srdRateLocked(stat uint32) (srdEvent, bool) {
	s := &i.srd

	cnt := (stat & SRDSTA_CNT_MASK) >> SRDSTA_CNT_SHIFT
	if cnt == 0 {
		logger.Error("srd invalid count", "device", i.cfg.Name, "stat", stat)

		return srdEvent{}, false
	}

	fs := SRDReferenceClock / cnt
	rate, ok := SRDRate(fs)
	if !ok {
		logger.Error("srd invalid sample rate", "device", i.cfg.Name, "fs", fs, "cnt", cnt)

		return srdEvent{}, false
	}

	i.armSRDTimer()

	if rate == s.rate {
		return srdEvent{}, false
	}

	// Reset the FIFO before switching the divider, otherwise the channels can come out swapped.
	if i.fifoOwned || i.borrowed {
		i.fifoResets++
	}
	i.sampleRate = rate
	s.rate = rate

	logger.Info("srd sample rate change", "device", i.cfg.Name, "fs", fs, "rate", rate)

	return srdEvent{event: aout.I2STX_SRD_FS_CHANGE, payload: rate}, true
}

// armSRDTimer restarts the detector timeout. Must be called with mu held.
func (i *I2STX) armSRDTimer() {
	if i.cfg.SRDTimeout < 0 {
		return
	}

	s := &i.srd
	s.stopTimer()
	gen := s.gen
	s.timer = time.AfterFunc(i.cfg.SRDTimeout, func() { i.srdExpired(gen) })
}

func (i *I2STX) srdExpired(gen uint64) {
	i.mu.Lock()

	s := &i.srd
	if !s.armed || s.gen != gen {
		i.mu.Unlock()

		return
	}

	s.timer = nil
	s.rate = 0
	cb, data := s.callback, s.data
	i.mu.Unlock()

	logger.Info("srd timeout", "device", i.cfg.Name)
	cb(data, aout.I2STX_SRD_TIMEOUT, nil)
}
