package phy_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/phy"
)

func dacParam(fifo aout.FifoType) *aout.Param {
	return &aout.Param{
		ChannelType:  aout.AUDIO_CHANNEL_DAC,
		OutFifo:      fifo,
		SampleRate:   aout.SAMPLE_RATE_48KHZ,
		ChannelWidth: aout.CHANNEL_WIDTH_16BITS,
		DAC:          &aout.DACSetting{ChannelMode: aout.STEREO_MODE},
	}
}

func TestDACEnableDisable(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})
	assert.Equal(t, aout.DefaultDACName, dac.Name())

	p := dacParam(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Enable(p))

	st := dac.State()
	assert.True(t, st.Powered)
	assert.True(t, st.AnalogRef)
	assert.Equal(t, 1, st.Refcount)
	assert.Equal(t, aout.SAMPLE_RATE_48KHZ, st.SampleRate)
	assert.Equal(t, uint8(aout.VolumeLevel0dB), st.Left)
	assert.True(t, dac.FifoWorking(aout.AOUT_FIFO_DAC0))

	require.NoError(t, dac.Disable(p))

	st = dac.State()
	assert.False(t, st.Powered)
	assert.False(t, st.AnalogRef)
	assert.Equal(t, 0, st.Refcount)
	assert.False(t, dac.FifoWorking(aout.AOUT_FIFO_DAC0))
}

func TestDACRecursiveEnable(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})
	p := dacParam(aout.AOUT_FIFO_DAC0)

	require.NoError(t, dac.Enable(p))

	cmd := aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 5)
	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_DRQ_LEVEL_SET, &cmd))

	require.NoError(t, dac.Enable(p))
	assert.Equal(t, 2, dac.State().Refcount)

	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0)
	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_DRQ_LEVEL_GET, &cmd))
	assert.Equal(t, uint32(5), aout.PhyFifoCmdVal(cmd), "a second enable keeps the fifo setup")

	// One holder remains, so the FIFO and the block stay up.
	require.NoError(t, dac.Disable(p))

	st := dac.State()
	assert.Equal(t, 1, st.Refcount)
	assert.True(t, st.Powered)
	assert.Equal(t, aout.SAMPLE_RATE_48KHZ, st.SampleRate)
	assert.True(t, dac.FifoWorking(aout.AOUT_FIFO_DAC0))

	require.NoError(t, dac.Disable(p))

	st = dac.State()
	assert.Equal(t, 0, st.Refcount)
	assert.False(t, st.Powered)
	assert.False(t, dac.FifoWorking(aout.AOUT_FIFO_DAC0))
}

func TestDACDigitalFeatures(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{Dither: true, AutoMute: true, NoiseDetectMute: true})
	p := dacParam(aout.AOUT_FIFO_DAC0)

	st := dac.State()
	assert.False(t, st.Dither)
	assert.False(t, st.AutoMute)
	assert.False(t, st.NoiseDetectMute)

	require.NoError(t, dac.Enable(p))

	st = dac.State()
	assert.True(t, st.Dither)
	assert.True(t, st.AutoMute)
	assert.True(t, st.NoiseDetectMute)

	require.NoError(t, dac.Disable(p))

	st = dac.State()
	assert.False(t, st.Dither)
	assert.False(t, st.AutoMute)
	assert.False(t, st.NoiseDetectMute)

	plain := phy.NewDAC(phy.DACConfig{AutoMute: true})
	require.NoError(t, plain.Enable(p))

	st = plain.State()
	assert.False(t, st.Dither)
	assert.True(t, st.AutoMute)
	assert.False(t, st.NoiseDetectMute)
}

func TestDACTeardownPolicy(t *testing.T) {
	t.Run("KeepEnabledOnPause", func(t *testing.T) {
		dac := phy.NewDAC(phy.DACConfig{KeepEnabledOnPause: true})
		p := dacParam(aout.AOUT_FIFO_DAC0)

		require.NoError(t, dac.Enable(p))
		require.NoError(t, dac.Disable(p))

		st := dac.State()
		assert.True(t, st.Powered)
		assert.True(t, st.Muted)
	})

	t.Run("ADCBusy", func(t *testing.T) {
		dac := phy.NewDAC(phy.DACConfig{ADCBusy: func() bool { return true }})
		p := dacParam(aout.AOUT_FIFO_DAC0)

		require.NoError(t, dac.Enable(p))
		require.NoError(t, dac.Disable(p))

		st := dac.State()
		assert.False(t, st.Powered)
		assert.True(t, st.AnalogRef, "shared reference must stay up for the ADC")
	})
}

func TestDACUnsupportedRate(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})

	for _, sr := range []aout.SampleRate{aout.SAMPLE_RATE_176KHZ, aout.SAMPLE_RATE_192KHZ, 0} {
		p := dacParam(aout.AOUT_FIFO_DAC0)
		p.SampleRate = sr
		assert.ErrorIs(t, dac.Enable(p), aout.ErrInvalidArgument)
	}

	assert.Equal(t, 0, dac.State().Refcount)
}

func TestDACFifoGet(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})

	p1 := dacParam(aout.AOUT_FIFO_DAC1)
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_FIFO_GET, p1), aout.ErrNotPermitted)

	p0 := dacParam(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_GET, p0))
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_FIFO_GET, p0), aout.ErrBusy)

	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_GET, p1))
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_FIFO_GET, dacParam(aout.AOUT_FIFO_DAC1_ONLY_SPDIF)), aout.ErrBusy)
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_FIFO_GET, dacParam(aout.AOUT_FIFO_I2STX0)), aout.ErrInvalidArgument)

	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_PUT, aout.AOUT_FIFO_DAC1))
	assert.False(t, dac.FifoWorking(aout.AOUT_FIFO_DAC1))
	assert.True(t, dac.FifoWorking(aout.AOUT_FIFO_DAC0))
	assert.True(t, dac.State().Powered)

	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_PUT, aout.AOUT_FIFO_DAC0))
	assert.False(t, dac.State().Powered)

	// Releasing an idle FIFO is a no-op.
	assert.NoError(t, dac.Control(aout.PHY_CMD_FIFO_PUT, aout.AOUT_FIFO_DAC0))
}

func TestDACDrainTimeout(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{DrainTimeout: 5 * time.Millisecond})
	p := dacParam(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Enable(p))

	dac.SetStall(true)
	_, err := dac.FifoWriter(aout.AOUT_FIFO_DAC0).Write(make([]byte, 64))
	require.NoError(t, err)

	var avail uint32 = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0)
	require.NoError(t, dac.Control(aout.AOUT_CMD_GET_FIFO_AVAILABLE_LEN, &avail))
	assert.Equal(t, uint32(phy.DACFifoDepth-64), aout.PhyFifoCmdVal(avail))

	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_DAC_WAIT_EMPTY, aout.AOUT_FIFO_DAC0), aout.ErrTimeout)
	assert.ErrorIs(t, dac.Disable(p), aout.ErrTimeout)

	// The FIFO is torn down even when the drain timed out.
	assert.False(t, dac.FifoWorking(aout.AOUT_FIFO_DAC0))
	assert.False(t, dac.State().Powered)
}

func TestDACFifoWriter(t *testing.T) {
	var out bytes.Buffer
	dac := phy.NewDAC(phy.DACConfig{Output: &out})
	w := dac.FifoWriter(aout.AOUT_FIFO_DAC0)

	// Writing to a disabled FIFO latches the error status.
	_, err := w.Write([]byte{1, 2})
	require.NoError(t, err)
	assert.Zero(t, out.Len())

	var status uint32 = uint32(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.AOUT_CMD_GET_CHANNEL_STATUS, &status))
	assert.Equal(t, uint32(aout.AUDIO_CHANNEL_STATUS_ERROR), status)

	require.NoError(t, dac.Enable(dacParam(aout.AOUT_FIFO_DAC0)))
	_, err = w.Write([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, out.Bytes())

	status = uint32(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.AOUT_CMD_GET_CHANNEL_STATUS, &status))
	assert.Zero(t, status)
}

func TestDACSampleCounter(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})
	require.NoError(t, dac.Enable(dacParam(aout.AOUT_FIFO_DAC0)))

	fifo := uint32(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_ENABLE_SAMPLE_CNT, &fifo))

	// 0x10004 16-bit samples wrap the 16-bit hardware counter once.
	_, err := dac.FifoWriter(aout.AOUT_FIFO_DAC0).Write(make([]byte, 2*0x10004))
	require.NoError(t, err)

	cnt := uint32(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_GET_SAMPLE_CNT, &cnt))
	assert.Equal(t, uint32(0x10004), cnt)

	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_RESET_SAMPLE_CNT, &fifo))
	cnt = uint32(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_GET_SAMPLE_CNT, &cnt))
	assert.Zero(t, cnt)

	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_DISABLE_SAMPLE_CNT, &fifo))
	_, err = dac.FifoWriter(aout.AOUT_FIFO_DAC0).Write(make([]byte, 8))
	require.NoError(t, err)
	cnt = uint32(aout.AOUT_FIFO_DAC0)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_GET_SAMPLE_CNT, &cnt))
	assert.Zero(t, cnt)
}

func TestDACVolume(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})
	require.NoError(t, dac.Enable(dacParam(aout.AOUT_FIFO_DAC0)))

	set := aout.VolumeSetting{Left: -3750, Right: 3750}
	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_VOLUME, set))

	var got aout.VolumeSetting
	require.NoError(t, dac.Control(aout.AOUT_CMD_GET_VOLUME, &got))
	assert.Equal(t, set, got)
	assert.Equal(t, uint8(aout.VolumeLevel0dB-10), dac.State().Left)
	assert.Equal(t, uint8(aout.VolumeLevel0dB+10), dac.State().Right)

	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_VOLUME, &aout.VolumeSetting{Left: aout.VolumeMuteMin, Right: 0}))
	assert.True(t, dac.State().Muted)

	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_VOLUME, aout.VolumeSetting{}))
	assert.False(t, dac.State().Muted)

	assert.ErrorIs(t, dac.Control(aout.AOUT_CMD_SET_VOLUME, 5), aout.ErrInvalidArgument)

	// An invalid channel volume leaves that channel untouched.
	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_VOLUME, aout.VolumeSetting{Left: -3750, Right: aout.VolumeInvalid}))
	assert.Equal(t, uint8(aout.VolumeLevel0dB-10), dac.State().Left)
	assert.Equal(t, uint8(aout.VolumeLevel0dB), dac.State().Right)

	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_VOLUME, aout.VolumeSetting{Left: aout.VolumeInvalid, Right: 3750}))
	assert.Equal(t, uint8(aout.VolumeLevel0dB-10), dac.State().Left)
	assert.Equal(t, uint8(aout.VolumeLevel0dB+10), dac.State().Right)
	assert.False(t, dac.State().Muted)
}

func TestDACPackedFifoCommands(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})

	cmd := aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 4)
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_FIFO_DRQ_LEVEL_SET, &cmd), aout.ErrNotPermitted)

	require.NoError(t, dac.Enable(dacParam(aout.AOUT_FIFO_DAC0)))

	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0)
	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_DRQ_LEVEL_GET, &cmd))
	assert.Equal(t, uint32(8), aout.PhyFifoCmdVal(cmd))

	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0x20)
	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_DRQ_LEVEL_SET, &cmd))
	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0)
	require.NoError(t, dac.Control(aout.PHY_CMD_FIFO_DRQ_LEVEL_GET, &cmd))
	assert.Equal(t, uint32(0xE), aout.PhyFifoCmdVal(cmd), "drq level clamps to the hardware maximum")

	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_VOLUME_GET, &cmd))
	assert.Equal(t, uint32(3), aout.PhyFifoCmdVal(cmd))

	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0x1F)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_VOLUME_SET, &cmd))
	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_DAC0, 0)
	require.NoError(t, dac.Control(aout.PHY_CMD_DAC_FIFO_VOLUME_GET, &cmd))
	assert.Equal(t, uint32(0xF), aout.PhyFifoCmdVal(cmd))

	cmd = aout.PhyFifoCmd(aout.AOUT_FIFO_I2STX0, 0)
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_DAC_FIFO_VOLUME_GET, &cmd), aout.ErrInvalidArgument)
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_DAC_FIFO_VOLUME_GET, cmd), aout.ErrInvalidArgument)
}

func TestDACControl(t *testing.T) {
	dac := phy.NewDAC(phy.DACConfig{})

	req := aout.DMAInfoRequest{Fifo: aout.AOUT_FIFO_DAC1_ONLY_SPDIF}
	require.NoError(t, dac.Control(aout.PHY_CMD_GET_AOUT_DMA_INFO, &req))
	assert.Equal(t, aout.DMAInfo{DeviceName: phy.DefaultDMAName, Slot: 0xc}, req.Info)

	req = aout.DMAInfoRequest{Fifo: aout.AOUT_FIFO_I2STX0}
	assert.ErrorIs(t, dac.Control(aout.PHY_CMD_GET_AOUT_DMA_INFO, &req), aout.ErrInvalidArgument)

	require.NoError(t, dac.Control(aout.PHY_CMD_CLAIM_WITH_128FS, nil))
	assert.True(t, dac.State().FS128)
	require.NoError(t, dac.Control(aout.PHY_CMD_CLAIM_WITHOUT_128FS, nil))
	assert.False(t, dac.State().FS128)

	require.NoError(t, dac.Control(aout.AOUT_CMD_OPEN_PA, nil))
	assert.True(t, dac.State().PAOn)
	require.NoError(t, dac.Control(aout.AOUT_CMD_CLOSE_PA, nil))
	assert.False(t, dac.State().PAOn)

	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_SAMPLERATE, aout.SAMPLE_RATE_44KHZ))
	var hz uint32
	require.NoError(t, dac.Control(aout.AOUT_CMD_GET_SAMPLERATE, &hz))
	assert.Equal(t, uint32(44100), hz)
	assert.ErrorIs(t, dac.Control(aout.AOUT_CMD_SET_SAMPLERATE, aout.SAMPLE_RATE_192KHZ), aout.ErrInvalidArgument)

	require.NoError(t, dac.Control(aout.AOUT_CMD_OUT_MUTE, true))
	assert.True(t, dac.State().Muted)

	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_DAC_TRIGGER_SRC, uint32(2)))
	require.NoError(t, dac.Control(aout.AOUT_CMD_SET_DAC_THRESHOLD, uint32(0x100)))
	assert.Equal(t, uint32(2), dac.State().TriggerSrc)
	assert.Equal(t, uint32(0x100), dac.State().Threshold)

	require.NoError(t, dac.Control(aout.PHY_CMD_DUMP_REGS, nil))
	assert.ErrorIs(t, dac.Control(aout.AOUT_CMD_ANC_CONTROL, nil), aout.ErrInvalidArgument)
}
