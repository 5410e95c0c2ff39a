package main

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/gen2brain/aout"
)

// recorder is an io.Writer attached to a FIFO sink that encodes the FIFO words into a WAV file.
type recorder struct {
	mu    sync.Mutex
	f     *os.File
	enc   *wav.Encoder
	width aout.ChannelWidth
	buf   audio.IntBuffer
}

func newRecorder(path string, rate int, width aout.ChannelWidth, chans int) (*recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	bits := width.Bits()

	return &recorder{
		f:     f,
		enc:   wav.NewEncoder(f, rate, bits, chans, 1),
		width: width,
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: chans, SampleRate: rate},
			SourceBitDepth: bits,
		},
	}, nil
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.width.DMAWidth()
	n := len(p) / size
	if cap(r.buf.Data) < n {
		r.buf.Data = make([]int, n)
	}
	r.buf.Data = r.buf.Data[:n]

	for i := range n {
		if size == 2 {
			r.buf.Data[i] = int(int16(binary.LittleEndian.Uint16(p[i*2:])))

			continue
		}
		// Wide samples are MSB aligned in the FIFO word.
		r.buf.Data[i] = int(int32(binary.LittleEndian.Uint32(p[i*4:])) >> (32 - r.width.Bits()))
	}

	if err := r.enc.Write(&r.buf); err != nil {
		return 0, err
	}

	return len(p), nil
}

// Close finalizes the WAV header and closes the file.
func (r *recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.enc.Close()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}

	return err
}
