package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/gen2brain/aout"
)

// source is a decoded PCM stream fed to an output session.
type source interface {
	// Read fills buf.Data with interleaved samples and returns how many it wrote.
	Read(buf *audio.IntBuffer) (int, error)
	Duration() (time.Duration, error)
	NumChans() int
	SampleRate() uint32
	BitDepth() int
	Close() error
}

// openSource picks a decoder by file extension.
func openSource(path string) (source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var src source
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		src, err = newMp3Source(f)
	default:
		src, err = newWavSource(f)
	}
	if err != nil {
		f.Close()

		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return src, nil
}

// sessionRate maps the stream rate to a session sample rate.
func sessionRate(src source) (aout.SampleRate, error) {
	rate, ok := aout.SampleRateFromHz(src.SampleRate())
	if !ok {
		return 0, fmt.Errorf("unsupported sample rate %d Hz: %w", src.SampleRate(), aout.ErrInvalidArgument)
	}

	return rate, nil
}

type wavSource struct {
	f   *os.File
	dec *wav.Decoder
}

func newWavSource(f *os.File) (source, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid WAV file")
	}

	if dec.WavAudioFormat == 3 {
		return nil, errors.New("floating point WAV is not supported")
	}

	return &wavSource{f: f, dec: dec}, nil
}

func (w *wavSource) Read(buf *audio.IntBuffer) (int, error) {
	n, err := w.dec.PCMBuffer(buf)
	if err == nil && n == 0 {
		err = io.EOF
	}

	return n, err
}

func (w *wavSource) Duration() (time.Duration, error) { return w.dec.Duration() }
func (w *wavSource) NumChans() int                    { return int(w.dec.NumChans) }
func (w *wavSource) SampleRate() uint32               { return w.dec.SampleRate }
func (w *wavSource) BitDepth() int                    { return int(w.dec.BitDepth) }
func (w *wavSource) Close() error                     { return w.f.Close() }

// mp3Source always decodes to 16-bit stereo.
type mp3Source struct {
	f      *os.File
	dec    *mp3.Decoder
	length int64
	raw    []byte
}

func newMp3Source(f *os.File) (source, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, err
	}

	return &mp3Source{f: f, dec: dec, length: dec.Length()}, nil
}

func (m *mp3Source) Read(buf *audio.IntBuffer) (int, error) {
	need := len(buf.Data) * 2
	if cap(m.raw) < need {
		m.raw = make([]byte, need)
	}
	raw := m.raw[:need]

	read, err := io.ReadFull(m.dec, raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}

	n := read / 2
	for i := range n {
		buf.Data[i] = int(int16(binary.LittleEndian.Uint16(raw[i*2:])))
	}

	if n > 0 && errors.Is(err, io.EOF) {
		err = nil
	}

	return n, err
}

func (m *mp3Source) Duration() (time.Duration, error) {
	if m.length <= 0 {
		return 0, errors.New("unknown stream length")
	}

	frames := m.length / 4

	return time.Duration(frames) * time.Second / time.Duration(m.dec.SampleRate()), nil
}

func (m *mp3Source) NumChans() int      { return 2 }
func (m *mp3Source) SampleRate() uint32 { return uint32(m.dec.SampleRate()) }
func (m *mp3Source) BitDepth() int      { return 16 }
func (m *mp3Source) Close() error       { return m.f.Close() }
