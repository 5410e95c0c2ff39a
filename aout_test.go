package aout_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/phy"
)

func TestChannelType(t *testing.T) {
	ct, err := aout.ParseChannelType("dac | SPDIFTX")
	require.NoError(t, err)
	assert.Equal(t, aout.AUDIO_CHANNEL_DAC|aout.AUDIO_CHANNEL_SPDIFTX, ct)
	assert.Equal(t, "DAC|SPDIFTX", ct.String())
	assert.Equal(t, aout.AUDIO_CHANNEL_DAC, ct.Primary())

	ct, err = aout.ParseChannelType("SPDIFTX|I2STX")
	require.NoError(t, err)
	assert.Equal(t, aout.AUDIO_CHANNEL_I2STX, ct.Primary())

	assert.Equal(t, aout.AUDIO_CHANNEL_PDMTX, aout.AUDIO_CHANNEL_PDMTX.Primary())
	assert.Equal(t, aout.ChannelType(0), aout.ChannelType(0x08).Primary())
	assert.Equal(t, "UNKNOWN(0x8)", aout.ChannelType(0x08).String())

	_, err = aout.ParseChannelType("DAC|HDMI")
	assert.ErrorIs(t, err, aout.ErrInvalidArgument)
}

func TestFifoType(t *testing.T) {
	f, err := aout.ParseFifoType("dac1_only_spdif")
	require.NoError(t, err)
	assert.Equal(t, aout.AOUT_FIFO_DAC1_ONLY_SPDIF, f)
	assert.Equal(t, aout.AOUT_FIFO_DAC1, f.Physical())
	assert.True(t, f.IsDAC())

	assert.False(t, aout.AOUT_FIFO_I2STX0.IsDAC())
	assert.Equal(t, aout.AOUT_FIFO_I2STX0, aout.AOUT_FIFO_I2STX0.Physical())
	assert.Equal(t, "UNKNOWN(9)", aout.FifoType(9).String())

	_, err = aout.ParseFifoType("DAC2")
	assert.ErrorIs(t, err, aout.ErrInvalidArgument)
}

func TestSampleRate(t *testing.T) {
	testCases := []struct {
		rate aout.SampleRate
		hz   uint32
	}{
		{aout.SAMPLE_RATE_8KHZ, 8000},
		{aout.SAMPLE_RATE_11KHZ, 11025},
		{aout.SAMPLE_RATE_22KHZ, 22050},
		{aout.SAMPLE_RATE_44KHZ, 44100},
		{aout.SAMPLE_RATE_48KHZ, 48000},
		{aout.SAMPLE_RATE_88KHZ, 88200},
		{aout.SAMPLE_RATE_176KHZ, 176400},
		{aout.SAMPLE_RATE_192KHZ, 192000},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.hz), func(t *testing.T) {
			assert.True(t, tc.rate.Valid())
			assert.Equal(t, tc.hz, tc.rate.Hz())

			r, ok := aout.SampleRateFromHz(tc.hz)
			require.True(t, ok)
			assert.Equal(t, tc.rate, r)
		})
	}

	assert.False(t, aout.SampleRate(47).Valid())
	assert.Zero(t, aout.SampleRate(47).Hz())

	_, ok := aout.SampleRateFromHz(47000)
	assert.False(t, ok)
}

func TestChannelWidth(t *testing.T) {
	assert.Equal(t, 16, aout.CHANNEL_WIDTH_16BITS.Bits())
	assert.Equal(t, 2, aout.CHANNEL_WIDTH_16BITS.DMAWidth())
	assert.Equal(t, 20, aout.CHANNEL_WIDTH_20BITS.Bits())
	assert.Equal(t, 4, aout.CHANNEL_WIDTH_20BITS.DMAWidth())
	assert.Equal(t, 24, aout.CHANNEL_WIDTH_24BITS.Bits())
	assert.Equal(t, 4, aout.CHANNEL_WIDTH_24BITS.DMAWidth())
	assert.Zero(t, aout.ChannelWidth(7).Bits())
}

func TestVolumeLevel(t *testing.T) {
	testCases := []struct {
		vol   int32
		level uint8
	}{
		{0, aout.VolumeLevel0dB},
		{-375, aout.VolumeLevel0dB - 1},
		{-3750, 0xB4},
		{-1, aout.VolumeLevel0dB - 1}, // rounds away from 0 dB
		{375, aout.VolumeLevel0dB + 1},
		{30000, aout.VolumeLevelMax},
		{100000, aout.VolumeLevelMax},
		{-71250, 0},
		{-500000, 0},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprint(tc.vol), func(t *testing.T) {
			assert.Equal(t, tc.level, aout.VolumeToLevel(tc.vol))
		})
	}

	for _, level := range []uint8{0, 0x10, 0xB4, aout.VolumeLevel0dB, 0xC0, aout.VolumeLevelMax} {
		assert.Equal(t, level, aout.VolumeToLevel(aout.LevelToVolume(level)), "level 0x%02x", level)
	}

	assert.Equal(t, int32(-aout.VolumeLevel0dB*aout.VolumeStep), aout.LevelToVolume(0))
	assert.True(t, aout.IsMuteVolume(aout.VolumeMuteMin))
	assert.True(t, aout.IsMuteVolume(aout.VolumeMuteMin-1))
	assert.False(t, aout.IsMuteVolume(aout.VolumeMuteMin+1))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "HF", aout.AOUT_DMA_IRQ_HF.String())
	assert.Equal(t, "TC", aout.AOUT_DMA_IRQ_TC.String())
	assert.Equal(t, "UNKNOWN(8)", aout.Reason(8).String())
}

func TestCommand(t *testing.T) {
	assert.True(t, aout.AOUT_CMD_GET_SAMPLE_CNT.IsFifoCmd())
	assert.True(t, aout.AOUT_CMD_SET_DAC_FIFO_VOLUME.IsFifoCmd())
	assert.False(t, aout.AOUT_CMD_OPEN_PA.IsFifoCmd())
	assert.False(t, aout.PHY_CMD_FIFO_GET.IsFifoCmd())

	assert.Equal(t, "GET_SAMPLERATE", aout.AOUT_CMD_GET_SAMPLERATE.String())

	x := aout.PhyFifoCmd(aout.AOUT_FIFO_DAC1, 0x1234)
	assert.Equal(t, aout.AOUT_FIFO_DAC1, aout.PhyFifoCmdFifo(x))
	assert.Equal(t, uint32(0x1234), aout.PhyFifoCmdVal(x))
}

func TestStatus(t *testing.T) {
	assert.Zero(t, aout.Status(nil))
	assert.Equal(t, -16, aout.Status(aout.ErrBusy))
	assert.Equal(t, -6, aout.Status(fmt.Errorf("open: %w", aout.ErrUnavailable)))
	assert.Equal(t, -110, aout.Status(errors.Join(errors.New("first"), aout.ErrTimeout)))
	assert.Equal(t, -5, aout.Status(errors.New("plain")))
}

func TestHandle(t *testing.T) {
	var h aout.Handle
	assert.True(t, h.IsZero())
	assert.Equal(t, "session#0.0", h.String())

	tb := newTestBoard(t, nil, nil)

	h, err := tb.m.Open(dacParam(aout.AOUT_FIFO_DAC0))
	require.NoError(t, err)
	assert.False(t, h.IsZero())
	assert.Equal(t, "session#0.1", h.String())

	require.NoError(t, tb.m.Close(h))
}

func TestCapacityForVariant(t *testing.T) {
	c, err := aout.CapacityForVariant("")
	require.NoError(t, err)
	assert.Equal(t, aout.DefaultCapacity, c)
	assert.Equal(t, 6, c.Total())
	assert.Zero(t, c.Of(aout.AUDIO_CHANNEL_PDMTX))

	c, err = aout.CapacityForVariant("pearlriver")
	require.NoError(t, err)
	assert.Equal(t, aout.PearlriverCapacity, c)
	assert.Equal(t, 1, c.Of(aout.AUDIO_CHANNEL_PDMTX))
	assert.Zero(t, c.Of(aout.AUDIO_CHANNEL_DAC))

	_, err = aout.CapacityForVariant("lark")
	assert.ErrorIs(t, err, aout.ErrInvalidArgument)
}

func TestBus(t *testing.T) {
	bus := aout.NewBus()

	require.NoError(t, bus.Register(phy.NewSPDIFTX(phy.SPDIFTXConfig{})))
	require.NoError(t, bus.Register(phy.NewDAC(phy.DACConfig{})))

	err := bus.Register(phy.NewDAC(phy.DACConfig{}))
	assert.ErrorIs(t, err, aout.ErrBusy, "duplicate name")
	assert.ErrorIs(t, bus.Register(nil), aout.ErrInvalidArgument)

	assert.Equal(t, []string{aout.DefaultDACName, aout.DefaultSPDIFTXName}, bus.Devices())

	dev, err := bus.Device(aout.DefaultDACName)
	require.NoError(t, err)
	assert.Equal(t, aout.DefaultDACName, dev.Name())

	_, err = bus.Device(aout.DefaultI2STXName)
	assert.ErrorIs(t, err, aout.ErrUnavailable)

	_, err = bus.DMA(phy.DefaultDMAName)
	assert.ErrorIs(t, err, aout.ErrUnavailable)

	assert.Contains(t, bus.String(), aout.DefaultSPDIFTXName)
}
