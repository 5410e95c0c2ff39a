package dma_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/dma"
)

type events struct {
	mu  sync.Mutex
	got []int
}

func (e *events) callback(_ int, status int) {
	e.mu.Lock()
	e.got = append(e.got, status)
	e.mu.Unlock()
}

func (e *events) snapshot() []int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]int(nil), e.got...)
}

func TestRequestExhaustion(t *testing.T) {
	c := dma.New("DMA_0", dma.WithChannels(2))

	a, err := c.Request()
	require.NoError(t, err)
	b, err := c.Request()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	_, err = c.Request()
	assert.True(t, errors.Is(err, aout.ErrBusy))

	c.Free(a)
	ch, err := c.Request()
	require.NoError(t, err)
	assert.Equal(t, a, ch)
}

func TestDirectTransfer(t *testing.T) {
	c := dma.New("DMA_0")
	var sink bytes.Buffer
	c.Attach(dma.DREQ_DAC_FIFO0, &sink)

	var ev events
	ch, err := c.Request()
	require.NoError(t, err)
	require.NoError(t, c.Configure(ch, &aout.DMAConfig{
		Slot: dma.DREQ_DAC_FIFO0, SourceWidth: 2, Callback: ev.callback, CompleteIRQEn: true,
	}))

	require.NoError(t, c.Reload(ch, []byte{1, 2, 3, 4}))
	require.NoError(t, c.Start(ch))

	assert.Equal(t, []byte{1, 2, 3, 4}, sink.Bytes())
	assert.Equal(t, []int{aout.DMA_IRQ_TC}, ev.snapshot())
	assert.EqualValues(t, 4, c.Transferred(ch))

	st, err := c.Status(ch)
	require.NoError(t, err)
	assert.False(t, st.Busy)
}

func TestSeparatedMode(t *testing.T) {
	c := dma.New("DMA_0")
	var sink bytes.Buffer
	c.Attach(dma.DREQ_DAC_FIFO0, &sink)

	ch, err := c.Request()
	require.NoError(t, err)
	require.NoError(t, c.Configure(ch, &aout.DMAConfig{Slot: dma.DREQ_DAC_FIFO0, SourceWidth: 2, Separated: true}))
	require.NoError(t, c.Reload(ch, []byte{1, 2, 3, 4}))
	require.NoError(t, c.Start(ch))

	assert.Equal(t, []byte{1, 2, 1, 2, 3, 4, 3, 4}, sink.Bytes())
}

func TestReloadInterrupts(t *testing.T) {
	c := dma.New("DMA_0")
	var sink bytes.Buffer
	c.Attach(dma.DREQ_I2STX_FIFO, &sink)

	var ev events
	ch, err := c.Request()
	require.NoError(t, err)
	require.NoError(t, c.Configure(ch, &aout.DMAConfig{
		Slot: dma.DREQ_I2STX_FIFO, SourceWidth: 2, Reload: true, Callback: ev.callback,
	}))
	require.NoError(t, c.Reload(ch, []byte{1, 2, 3, 4}))

	err = c.Interrupt(ch, aout.DMA_IRQ_HF)
	assert.True(t, errors.Is(err, aout.ErrNotPermitted), "not running")

	require.NoError(t, c.Start(ch))
	assert.Empty(t, ev.snapshot())

	require.NoError(t, c.Interrupt(ch, aout.DMA_IRQ_HF))
	require.NoError(t, c.Interrupt(ch, aout.DMA_IRQ_TC))

	assert.Equal(t, []int{aout.DMA_IRQ_HF, aout.DMA_IRQ_TC}, ev.snapshot())
	assert.Equal(t, []byte{1, 2, 3, 4}, sink.Bytes())

	require.NoError(t, c.Stop(ch))
	assert.Error(t, c.Interrupt(ch, aout.DMA_IRQ_HF))
	assert.Error(t, c.Interrupt(ch, 7))
}

func TestPacedReload(t *testing.T) {
	c := dma.New("DMA_0", dma.WithPacer(func(int, int) time.Duration { return time.Millisecond }))

	var ev events
	ch, err := c.Request()
	require.NoError(t, err)
	require.NoError(t, c.Configure(ch, &aout.DMAConfig{
		Slot: dma.DREQ_DAC_FIFO0, SourceWidth: 4, Reload: true, Callback: ev.callback,
	}))
	require.NoError(t, c.Reload(ch, make([]byte, 64)))
	require.NoError(t, c.Start(ch))

	require.Eventually(t, func() bool { return len(ev.snapshot()) >= 6 }, 2*time.Second, time.Millisecond)
	require.NoError(t, c.Stop(ch))

	got := ev.snapshot()
	for i, status := range got {
		want := aout.DMA_IRQ_HF
		if i%2 == 1 {
			want = aout.DMA_IRQ_TC
		}
		assert.Equal(t, want, status, "event %d", i)
	}
}

func TestRealtimePacer(t *testing.T) {
	p := dma.RealtimePacer(aout.SAMPLE_RATE_48KHZ, aout.CHANNEL_WIDTH_16BITS, 2)

	// 48000 frames * 2 channels * 2 bytes per second.
	assert.Equal(t, time.Second, p(0, 192000))
	assert.Equal(t, time.Millisecond, p(0, 192))
}

func TestInvalidChannel(t *testing.T) {
	c := dma.New("DMA_0")

	assert.Error(t, c.Start(3))
	assert.Error(t, c.Configure(0, &aout.DMAConfig{SourceWidth: 2}))
	assert.Error(t, c.Configure(0, nil))
	assert.NotPanics(t, func() { c.Free(42) })
}
