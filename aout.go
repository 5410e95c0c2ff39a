// Package aout manages audio output channel sessions on an SoC audio subsystem, modeled after
// the audio-out layer of embedded RTOS audio stacks.
// It arbitrates the output FIFOs, DMA channels and reference clocks shared by the DAC, I2STX, SPDIFTX and PDMTX channels.
package aout

import (
	"fmt"
	"strings"
)

// ChannelType is a bitmask of output channel types.
// A session has exactly one primary type and may carry a linked type (e.g. DAC|SPDIFTX).
type ChannelType uint8

const (
	AUDIO_CHANNEL_DAC     ChannelType = 1 << 0
	AUDIO_CHANNEL_I2STX   ChannelType = 1 << 1
	AUDIO_CHANNEL_SPDIFTX ChannelType = 1 << 2
	AUDIO_CHANNEL_PDMTX   ChannelType = 1 << 6
)

// channelPriority is the order in which the primary type of a mask is resolved.
var channelPriority = []ChannelType{
	AUDIO_CHANNEL_DAC,
	AUDIO_CHANNEL_I2STX,
	AUDIO_CHANNEL_SPDIFTX,
	AUDIO_CHANNEL_PDMTX,
}

// ChannelTypeNames provides human-readable names for the channel type bits.
var ChannelTypeNames = map[ChannelType]string{
	AUDIO_CHANNEL_DAC:     "DAC",
	AUDIO_CHANNEL_I2STX:   "I2STX",
	AUDIO_CHANNEL_SPDIFTX: "SPDIFTX",
	AUDIO_CHANNEL_PDMTX:   "PDMTX",
}

// Primary returns the primary channel type of the mask, or 0 if no known bit is set.
func (t ChannelType) Primary() ChannelType {
	for _, p := range channelPriority {
		if t&p != 0 {
			return p
		}
	}

	return 0
}

// String returns the channel mask as names joined by '|'.
func (t ChannelType) String() string {
	s := ""
	for _, p := range channelPriority {
		if t&p == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += ChannelTypeNames[p]
	}

	if s == "" {
		return fmt.Sprintf("UNKNOWN(0x%x)", uint8(t))
	}

	return s
}

// ParseChannelType parses a channel mask written as names joined by '|', e.g. "DAC|SPDIFTX".
// Names are case-insensitive.
func ParseChannelType(s string) (ChannelType, error) {
	var t ChannelType

	for _, part := range strings.Split(s, "|") {
		name := strings.ToUpper(strings.TrimSpace(part))

		found := false
		for bit, n := range ChannelTypeNames {
			if n == name {
				t |= bit
				found = true

				break
			}
		}
		if !found {
			return 0, fmt.Errorf("channel type %q: %w", part, ErrInvalidArgument)
		}
	}

	return t, nil
}

// SampleRate is a sample rate in kHz, with the fractional 11.025/22.05/44.1/88.2/176.4 kHz
// family encoded by the integer part.
type SampleRate uint8

const (
	SAMPLE_RATE_8KHZ   SampleRate = 8
	SAMPLE_RATE_11KHZ  SampleRate = 11
	SAMPLE_RATE_12KHZ  SampleRate = 12
	SAMPLE_RATE_16KHZ  SampleRate = 16
	SAMPLE_RATE_22KHZ  SampleRate = 22
	SAMPLE_RATE_24KHZ  SampleRate = 24
	SAMPLE_RATE_32KHZ  SampleRate = 32
	SAMPLE_RATE_44KHZ  SampleRate = 44
	SAMPLE_RATE_48KHZ  SampleRate = 48
	SAMPLE_RATE_64KHZ  SampleRate = 64
	SAMPLE_RATE_88KHZ  SampleRate = 88
	SAMPLE_RATE_96KHZ  SampleRate = 96
	SAMPLE_RATE_176KHZ SampleRate = 176
	SAMPLE_RATE_192KHZ SampleRate = 192
)

var sampleRateHz = map[SampleRate]uint32{
	SAMPLE_RATE_8KHZ:   8000,
	SAMPLE_RATE_11KHZ:  11025,
	SAMPLE_RATE_12KHZ:  12000,
	SAMPLE_RATE_16KHZ:  16000,
	SAMPLE_RATE_22KHZ:  22050,
	SAMPLE_RATE_24KHZ:  24000,
	SAMPLE_RATE_32KHZ:  32000,
	SAMPLE_RATE_44KHZ:  44100,
	SAMPLE_RATE_48KHZ:  48000,
	SAMPLE_RATE_64KHZ:  64000,
	SAMPLE_RATE_88KHZ:  88200,
	SAMPLE_RATE_96KHZ:  96000,
	SAMPLE_RATE_176KHZ: 176400,
	SAMPLE_RATE_192KHZ: 192000,
}

// Hz returns the sample rate in Hz, or 0 for an unsupported value.
func (r SampleRate) Hz() uint32 {
	return sampleRateHz[r]
}

// Valid reports whether r is one of the supported sample rates.
func (r SampleRate) Valid() bool {
	_, ok := sampleRateHz[r]

	return ok
}

// SampleRateFromHz returns the SampleRate for an exact rate in Hz.
func SampleRateFromHz(hz uint32) (SampleRate, bool) {
	for r, v := range sampleRateHz {
		if v == hz {
			return r, true
		}
	}

	return 0, false
}

// ChannelWidth is the effective sample width of a channel.
type ChannelWidth uint8

const (
	CHANNEL_WIDTH_16BITS ChannelWidth = 0
	CHANNEL_WIDTH_18BITS ChannelWidth = 1
	CHANNEL_WIDTH_20BITS ChannelWidth = 2
	CHANNEL_WIDTH_24BITS ChannelWidth = 3
)

// ChannelWidthNames provides human-readable names for channel widths.
var ChannelWidthNames = map[ChannelWidth]string{
	CHANNEL_WIDTH_16BITS: "16BITS",
	CHANNEL_WIDTH_18BITS: "18BITS",
	CHANNEL_WIDTH_20BITS: "20BITS",
	CHANNEL_WIDTH_24BITS: "24BITS",
}

// Bits returns the number of significant bits per sample.
func (w ChannelWidth) Bits() int {
	switch w {
	case CHANNEL_WIDTH_16BITS:
		return 16
	case CHANNEL_WIDTH_18BITS:
		return 18
	case CHANNEL_WIDTH_20BITS:
		return 20
	case CHANNEL_WIDTH_24BITS:
		return 24
	default:
		return 0
	}
}

// DMAWidth returns the number of bytes the DMA engine moves per sample.
func (w ChannelWidth) DMAWidth() int {
	if w == CHANNEL_WIDTH_16BITS {
		return 2
	}

	return 4
}

// FifoType selects a physical output FIFO.
type FifoType uint8

const (
	AOUT_FIFO_DAC0            FifoType = 0
	AOUT_FIFO_DAC1            FifoType = 1
	AOUT_FIFO_I2STX0          FifoType = 2
	AOUT_FIFO_DAC1_ONLY_SPDIF FifoType = 3
)

// FifoTypeNames provides human-readable names for the output FIFOs.
var FifoTypeNames = map[FifoType]string{
	AOUT_FIFO_DAC0:            "DAC0",
	AOUT_FIFO_DAC1:            "DAC1",
	AOUT_FIFO_I2STX0:          "I2STX0",
	AOUT_FIFO_DAC1_ONLY_SPDIF: "DAC1_ONLY_SPDIF",
}

// String returns the FIFO name.
func (f FifoType) String() string {
	if n, ok := FifoTypeNames[f]; ok {
		return n
	}

	return fmt.Sprintf("UNKNOWN(%d)", uint8(f))
}

// ParseFifoType parses a FIFO name such as "DAC0" or "I2STX0". Names are case-insensitive.
func ParseFifoType(s string) (FifoType, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for f, n := range FifoTypeNames {
		if n == name {
			return f, nil
		}
	}

	return 0, fmt.Errorf("fifo %q: %w", s, ErrInvalidArgument)
}

// IsDAC reports whether the FIFO belongs to the DAC block.
func (f FifoType) IsDAC() bool {
	return f == AOUT_FIFO_DAC0 || f == AOUT_FIFO_DAC1 || f == AOUT_FIFO_DAC1_ONLY_SPDIF
}

// Physical returns the hardware FIFO index; DAC1_ONLY_SPDIF shares the DAC1 FIFO.
func (f FifoType) Physical() FifoType {
	if f == AOUT_FIFO_DAC1_ONLY_SPDIF {
		return AOUT_FIFO_DAC1
	}

	return f
}

// ChannelMode selects mono or stereo output on the DAC.
type ChannelMode uint8

const (
	MONO_MODE   ChannelMode = 1
	STEREO_MODE ChannelMode = 2
)

// I2STXMode selects the I2STX clock role.
type I2STXMode uint8

const (
	I2S_MODE_MASTER I2STXMode = 0
	I2S_MODE_SLAVE  I2STXMode = 1
)

// SRDWidth is the LRCLK-to-BCLK ratio detected by the sample rate detector.
type SRDWidth uint8

const (
	SRDSTA_WL_32RATE SRDWidth = 0
	SRDSTA_WL_64RATE SRDWidth = 1
)

// SRDEvent identifies a sample rate detector notification.
type SRDEvent uint8

const (
	I2STX_SRD_FS_CHANGE SRDEvent = 1 << 0
	I2STX_SRD_WL_CHANGE SRDEvent = 1 << 1
	I2STX_SRD_TIMEOUT   SRDEvent = 1 << 2
)

// Reason is the DMA completion reason passed to the session callback.
type Reason uint8

const (
	AOUT_DMA_IRQ_HF Reason = 1 << 0 // First half of the reload ring consumed.
	AOUT_DMA_IRQ_TC Reason = 1 << 1 // Transfer (or second half) complete.
)

// String returns the short name of the reason.
func (r Reason) String() string {
	switch r {
	case AOUT_DMA_IRQ_HF:
		return "HF"
	case AOUT_DMA_IRQ_TC:
		return "TC"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(r))
	}
}

// DMA controller status codes delivered to completion handlers.
const (
	DMA_IRQ_TC = 0
	DMA_IRQ_HF = 1
)

// Channel status bits returned by AOUT_CMD_GET_CHANNEL_STATUS.
const (
	AUDIO_CHANNEL_STATUS_BUSY  uint8 = 1 << 0
	AUDIO_CHANNEL_STATUS_ERROR uint8 = 1 << 1
)

// External power amplifier classes accepted by AOUT_CMD_PA_CLASS_SEL.
const (
	PA_CLASS_AB uint8 = 0
	PA_CLASS_D  uint8 = 1
)

// VolumeMuteMin is the volume (in 1/10000 dB) at or below which the output is hard-muted.
const VolumeMuteMin = -800000

// VolumeInvalid leaves a channel volume unchanged when passed in a VolumeSetting.
const VolumeInvalid int32 = -1
