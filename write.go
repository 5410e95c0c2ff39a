package aout

import (
	"encoding/binary"
	"fmt"

	"github.com/go-audio/audio"

	"github.com/gen2brain/aout/internal/logger"
)

// Write queues buf as a one-shot DMA transfer and starts it.
// In reload mode the ring is refilled through the callback and Write only signals that playback may begin.
func (m *Manager) Write(h Handle, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("write: empty buffer: %w", ErrInvalidArgument)
	}

	m.mu.Lock()
	s := m.reg.lookupAny(h)
	if s == nil {
		m.mu.Unlock()
		logger.Error("write on invalid handle", "handle", h.String())

		return fmt.Errorf("write %s: %w", h, ErrInvalidHandle)
	}

	if s.reloadEn {
		m.mu.Unlock()
		logger.Debug("reload mode can start directly", "handle", h.String())

		return nil
	}

	if s.flags&sessionOpen == 0 {
		m.mu.Unlock()
		logger.Error("session not opened", "handle", h.String())

		return fmt.Errorf("write %s: %w", h, ErrNotPermitted)
	}
	m.mu.Unlock()

	if err := m.prepare(h); err != nil {
		logger.Error("prepare session dma error", "handle", h.String(), "error", err)

		return fmt.Errorf("write: %w", err)
	}

	m.mu.Lock()
	s, open := m.reg.lookup(h)
	if !open {
		m.mu.Unlock()

		return fmt.Errorf("write %s: %w", h, ErrInvalidHandle)
	}
	ch := s.dmaChan
	dma := m.dma
	m.mu.Unlock()

	if err := dma.Reload(ch, buf); err != nil {
		logger.Error("dma reload error", "handle", h.String(), "error", err)

		return fmt.Errorf("write: reload dma channel %d: %w", ch, err)
	}

	if err := m.Start(h); err != nil {
		logger.Error("dma start error", "handle", h.String(), "error", err)

		return err
	}

	m.mu.Lock()
	if s, ok := m.reg.lookup(h); ok {
		m.debugPerf(s, buf)
	}
	m.mu.Unlock()

	return nil
}

// WriteFrames packs an interleaved go-audio buffer into the session's sample width and writes it.
// 16-bit sessions take little-endian int16 samples; wider sessions take int32 samples left-justified
// to the channel width the way the FIFO expects them.
func (m *Manager) WriteFrames(h Handle, buf *audio.IntBuffer) error {
	if buf == nil || len(buf.Data) == 0 {
		return fmt.Errorf("write frames: empty buffer: %w", ErrInvalidArgument)
	}

	m.mu.Lock()
	s, ok := m.reg.lookup(h)
	if !ok {
		m.mu.Unlock()

		return fmt.Errorf("write frames %s: %w", h, ErrInvalidHandle)
	}
	width := s.param.ChannelWidth
	m.mu.Unlock()

	data, err := PackFrames(buf, width)
	if err != nil {
		return fmt.Errorf("write frames: %w", err)
	}

	return m.Write(h, data)
}

// PackFrames converts go-audio samples to the byte layout of a FIFO of the given channel width.
// Samples are rescaled from buf.SourceBitDepth (16 when unset) to the channel width.
func PackFrames(buf *audio.IntBuffer, width ChannelWidth) ([]byte, error) {
	bits := width.Bits()
	if bits == 0 {
		return nil, fmt.Errorf("channel width %d: %w", width, ErrInvalidArgument)
	}

	src := buf.SourceBitDepth
	if src == 0 {
		src = 16
	}

	shift := bits - src
	if width == CHANNEL_WIDTH_16BITS {
		out := make([]byte, len(buf.Data)*2)
		for i, v := range buf.Data {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(scale(v, shift))))
		}

		return out, nil
	}

	out := make([]byte, len(buf.Data)*4)
	for i, v := range buf.Data {
		// FIFO samples are MSB aligned in a 32-bit word.
		binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(scale(v, shift))<<(32-bits)))
	}

	return out, nil
}

func scale(v, shift int) int {
	if shift >= 0 {
		return v << shift
	}

	return v >> -shift
}
