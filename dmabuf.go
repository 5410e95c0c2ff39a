package aout

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Ring is a page-aligned buffer for DMA reload mode, backed by an anonymous memory mapping.
type Ring struct {
	mem []byte
	buf []byte
}

// AllocRing maps a ring that holds two halves of the requested size.
// halfSize must be a positive multiple of the DMA width of the channel.
func AllocRing(halfSize int, width ChannelWidth) (*Ring, error) {
	if halfSize <= 0 || halfSize%width.DMAWidth() != 0 {
		return nil, fmt.Errorf("alloc ring: half size %d: %w", halfSize, ErrInvalidArgument)
	}

	size := 2 * halfSize
	page := os.Getpagesize()
	mapped := (size + page - 1) / page * page

	buf, err := unix.Mmap(-1, 0, mapped, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("alloc ring: mmap %d bytes: %w", mapped, err)
	}

	return &Ring{mem: buf, buf: buf[:size:size]}, nil
}

// Bytes returns the whole ring.
func (r *Ring) Bytes() []byte {
	if r == nil {
		return nil
	}

	return r.buf
}

// Half returns the first (0) or second (1) half of the ring.
func (r *Ring) Half(i int) []byte {
	if r == nil || r.buf == nil {
		return nil
	}

	half := len(r.buf) / 2
	if i == 0 {
		return r.buf[:half]
	}

	return r.buf[half:]
}

// HalfFor returns the half the DMA engine has just consumed and that may be refilled for a reload event.
func (r *Ring) HalfFor(reason Reason) []byte {
	if reason == AOUT_DMA_IRQ_HF {
		return r.Half(0)
	}

	return r.Half(1)
}

// Setting returns a ReloadSetting for Param.Reload.
func (r *Ring) Setting() *ReloadSetting {
	return &ReloadSetting{Buf: r.Bytes()}
}

// Close unmaps the ring.
func (r *Ring) Close() error {
	if r == nil || r.mem == nil {
		return nil
	}

	err := unix.Munmap(r.mem)
	r.mem = nil
	r.buf = nil

	return err
}
