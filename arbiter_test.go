package aout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/config"
	"github.com/gen2brain/aout/phy"
)

func TestI2STXOnDACFifo(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	h, err := tb.m.Open(i2stxParam(aout.AOUT_FIFO_DAC0))
	require.NoError(t, err)

	assert.Equal(t, 1, tb.m.DACFifoRef())
	assert.True(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC0))
	assert.Equal(t, 0, tb.DAC.State().Refcount, "the dac analog path is not enabled")
	assert.Equal(t, 1, tb.I2STX.State().Refcount)
	assert.False(t, tb.I2STX.State().FifoOwned)

	// The borrowed FIFO is not available to a DAC session.
	_, err = tb.m.Open(dacParam(aout.AOUT_FIFO_DAC0))
	assert.ErrorIs(t, err, aout.ErrBusy)

	require.NoError(t, tb.m.Close(h))

	assert.Equal(t, 0, tb.m.DACFifoRef())
	assert.False(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC0))
	assert.Equal(t, 0, tb.I2STX.State().Refcount)
}

func TestI2STXOnBothDACFifos(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	h0, err := tb.m.Open(i2stxParam(aout.AOUT_FIFO_DAC0))
	require.NoError(t, err)

	h1, err := tb.m.Open(i2stxParam(aout.AOUT_FIFO_DAC1))
	require.NoError(t, err)

	assert.Equal(t, 2, tb.m.DACFifoRef())
	assert.Equal(t, 2, tb.I2STX.State().Refcount)

	require.NoError(t, tb.m.Close(h1))

	assert.Equal(t, 1, tb.m.DACFifoRef())
	assert.True(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC0), "the remaining session keeps its fifo")
	assert.False(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC1))
	assert.True(t, tb.DAC.State().Powered)
	assert.Equal(t, 1, tb.I2STX.State().Refcount)

	// The remaining session still drains through its DAC FIFO.
	require.NoError(t, tb.m.Write(h0, []byte{1, 2, 3, 4}))
	assert.Equal(t, []byte{1, 2, 3, 4}, tb.dacOut.Bytes())

	require.NoError(t, tb.m.Close(h0))

	assert.Equal(t, 0, tb.m.DACFifoRef())
	assert.False(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC0))
	assert.False(t, tb.DAC.State().Powered)
}

func TestDACLinkedSPDIF(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	p := dacParam(aout.AOUT_FIFO_DAC0)
	p.ChannelType |= aout.AUDIO_CHANNEL_SPDIFTX
	p.SPDIF = &aout.SPDIFTXSetting{Status: aout.SPDIFChannelStatus{Csl: 0x1234, Csh: 0x5}}

	h0, err := tb.m.Open(p)
	require.NoError(t, err)

	assert.Equal(t, 1, tb.m.OpenSessions(aout.AUDIO_CHANNEL_DAC))
	assert.Equal(t, 0, tb.m.OpenSessions(aout.AUDIO_CHANNEL_SPDIFTX), "counted under the primary type")
	assert.Equal(t, 1, tb.m.FS128Ref())
	assert.True(t, tb.DAC.State().FS128)

	st := tb.SPDIFTX.State()
	assert.Equal(t, 1, st.Refcount)
	assert.Equal(t, phy.ClockSourceDAC, st.ClockSource)
	assert.Equal(t, p.SPDIF.Status, st.Status)

	// DAC FIFO1 can be borrowed now that FIFO0 runs; the 128fs claim is shared.
	h1, err := tb.m.Open(spdifParam(aout.AOUT_FIFO_DAC1))
	require.NoError(t, err)
	assert.Equal(t, 2, tb.m.FS128Ref())
	assert.Equal(t, 1, tb.m.DACFifoRef())
	assert.Equal(t, 2, tb.SPDIFTX.State().Refcount)

	require.NoError(t, tb.m.Close(h0))
	assert.Equal(t, 1, tb.m.FS128Ref())
	assert.True(t, tb.DAC.State().FS128, "still held by the second session")

	require.NoError(t, tb.m.Close(h1))
	assert.Equal(t, 0, tb.m.FS128Ref())
	assert.False(t, tb.DAC.State().FS128)
	assert.Equal(t, 0, tb.SPDIFTX.State().Refcount)
}

func TestSPDIFRateConflict(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	h, err := tb.m.Open(spdifParam(aout.AOUT_FIFO_DAC0))
	require.NoError(t, err)

	// DAC1 borrow and the 128fs claim succeed before the transmitter refuses the second rate.
	p := spdifParam(aout.AOUT_FIFO_DAC1)
	p.SampleRate = aout.SAMPLE_RATE_44KHZ

	_, err = tb.m.Open(p)
	require.ErrorIs(t, err, aout.ErrBusy)

	assert.Equal(t, 1, tb.m.FS128Ref())
	assert.Equal(t, 1, tb.m.DACFifoRef())
	assert.False(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC1))
	_, owned := tb.m.FifoOwner(aout.AOUT_FIFO_DAC1)
	assert.False(t, owned)
	assert.Equal(t, 1, tb.SPDIFTX.State().Refcount)

	require.NoError(t, tb.m.Close(h))
}

func TestDAC1OnlySPDIF(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	h0, err := tb.m.Open(dacParam(aout.AOUT_FIFO_DAC0))
	require.NoError(t, err)

	h1, err := tb.m.Open(spdifParam(aout.AOUT_FIFO_DAC1_ONLY_SPDIF))
	require.NoError(t, err)

	owner, ok := tb.m.FifoOwner(aout.AOUT_FIFO_DAC1)
	require.True(t, ok, "DAC1_ONLY_SPDIF occupies the DAC1 FIFO")
	assert.Equal(t, h1, owner)

	_, err = tb.m.Open(dacParam(aout.AOUT_FIFO_DAC1))
	assert.ErrorIs(t, err, aout.ErrBusy)

	require.NoError(t, tb.m.Close(h1))
	require.NoError(t, tb.m.Close(h0))
}

func TestDACLinkedI2STX(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	p := dacParam(aout.AOUT_FIFO_DAC0)
	p.ChannelType |= aout.AUDIO_CHANNEL_I2STX

	h, err := tb.m.Open(p)
	require.NoError(t, err)

	assert.Equal(t, 1, tb.m.DACFifoRef())
	assert.True(t, tb.DAC.FifoWorking(aout.AOUT_FIFO_DAC0))
	assert.Equal(t, 0, tb.DAC.State().Refcount, "output goes to the serial port only")
	assert.Equal(t, 1, tb.I2STX.State().Refcount)

	// The I2STX FIFO itself stays free.
	h2, err := tb.m.Open(i2stxParam(aout.AOUT_FIFO_I2STX0))
	require.NoError(t, err)
	assert.True(t, tb.I2STX.State().FifoOwned)

	require.NoError(t, tb.m.Close(h2))
	require.NoError(t, tb.m.Close(h))

	assert.Equal(t, 0, tb.m.DACFifoRef())
	assert.Equal(t, 0, tb.I2STX.State().Refcount)
}

func TestSPDIFOnI2STXFifo(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	h, err := tb.m.Open(spdifParam(aout.AOUT_FIFO_I2STX0))
	require.NoError(t, err)

	assert.True(t, tb.I2STX.State().Borrowed)
	assert.Equal(t, 0, tb.m.DACFifoRef(), "the i2stx fifo is not a dac fifo")
	assert.Equal(t, phy.ClockSourceI2STX, tb.SPDIFTX.State().ClockSource)

	_, err = tb.m.Open(i2stxParam(aout.AOUT_FIFO_I2STX0))
	assert.ErrorIs(t, err, aout.ErrBusy)

	require.NoError(t, tb.m.Close(h))
	assert.False(t, tb.I2STX.State().Borrowed)
	assert.Equal(t, 0, tb.m.FS128Ref())
}

func TestPDMTX(t *testing.T) {
	tb := newTestBoard(t, func(c *config.BoardConfig) { c.Variant = "pearlriver" }, nil)

	p := &aout.Param{
		ChannelType:  aout.AUDIO_CHANNEL_PDMTX,
		OutFifo:      aout.AOUT_FIFO_I2STX0,
		SampleRate:   aout.SAMPLE_RATE_48KHZ,
		ChannelWidth: aout.CHANNEL_WIDTH_16BITS,
		Callback:     nopCallback,
		PDMTX:        &aout.PDMTXSetting{ChannelMode: aout.MONO_MODE},
	}

	h, err := tb.m.Open(p)
	require.NoError(t, err)

	st := tb.PDMTX.State()
	assert.Equal(t, 1, st.Refcount)
	assert.Equal(t, aout.MONO_MODE, st.ChannelMode)
	assert.True(t, tb.I2STX.State().Borrowed, "the modulator drains the i2stx fifo")

	_, err = tb.m.Open(p)
	assert.ErrorIs(t, err, aout.ErrBusy, "single pdmtx session")

	_, err = tb.m.Open(i2stxParam(aout.AOUT_FIFO_I2STX0))
	assert.ErrorIs(t, err, aout.ErrBusy)

	var rate aout.SampleRate
	require.NoError(t, tb.m.Control(h, aout.AOUT_CMD_GET_SAMPLERATE, &rate))
	assert.Equal(t, aout.SAMPLE_RATE_48KHZ, rate)

	require.NoError(t, tb.m.Close(h))
	assert.False(t, tb.I2STX.State().Borrowed)
	assert.Equal(t, 0, tb.PDMTX.State().Refcount)
}

func TestPDMTXInvalid(t *testing.T) {
	tb := newTestBoard(t, func(c *config.BoardConfig) { c.Variant = "pearlriver" }, nil)

	p := &aout.Param{
		ChannelType:  aout.AUDIO_CHANNEL_PDMTX,
		OutFifo:      aout.AOUT_FIFO_I2STX0,
		SampleRate:   aout.SAMPLE_RATE_48KHZ,
		ChannelWidth: aout.CHANNEL_WIDTH_24BITS,
		Callback:     nopCallback,
	}

	_, err := tb.m.Open(p)
	assert.ErrorIs(t, err, aout.ErrInvalidArgument, "pdmtx is 16 bit only")

	p.ChannelWidth = aout.CHANNEL_WIDTH_16BITS
	p.OutFifo = aout.AOUT_FIFO_DAC0
	_, err = tb.m.Open(p)
	assert.ErrorIs(t, err, aout.ErrInvalidArgument)

	assert.Equal(t, 0, tb.m.OpenSessions(aout.AUDIO_CHANNEL_PDMTX))
	assert.False(t, tb.I2STX.State().Borrowed)
}

func TestFifoRules(t *testing.T) {
	tb := newTestBoard(t, nil, nil)

	testCases := []struct {
		name  string
		param *aout.Param
		edit  func(p *aout.Param)
		err   error
	}{
		{
			name:  "dac 24 bit",
			param: dacParam(aout.AOUT_FIFO_DAC0),
			edit:  func(p *aout.Param) { p.ChannelWidth = aout.CHANNEL_WIDTH_24BITS },
		},
		{
			name:  "i2stx 20 bit",
			param: i2stxParam(aout.AOUT_FIFO_I2STX0),
			edit:  func(p *aout.Param) { p.ChannelWidth = aout.CHANNEL_WIDTH_20BITS },
		},
		{
			name:  "spdif 20 bit",
			param: spdifParam(aout.AOUT_FIFO_DAC0),
			edit:  func(p *aout.Param) { p.ChannelWidth = aout.CHANNEL_WIDTH_20BITS },
			err:   aout.ErrInvalidArgument,
		},
		{
			name:  "i2stx on dac1 only spdif",
			param: i2stxParam(aout.AOUT_FIFO_DAC1_ONLY_SPDIF),
			err:   aout.ErrInvalidArgument,
		},
		{
			name:  "nil i2stx setting",
			param: i2stxParam(aout.AOUT_FIFO_I2STX0),
			edit:  func(p *aout.Param) { p.I2STX = nil },
			err:   aout.ErrInvalidArgument,
		},
		{
			name:  "nil spdif setting",
			param: spdifParam(aout.AOUT_FIFO_DAC0),
			edit:  func(p *aout.Param) { p.SPDIF = nil },
			err:   aout.ErrInvalidArgument,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.edit != nil {
				tc.edit(tc.param)
			}

			h, err := tb.m.Open(tc.param)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}

			require.NoError(t, err)
			require.NoError(t, tb.m.Close(h))
		})
	}
}
