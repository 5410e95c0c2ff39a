package aout

import "fmt"

// Command is a control request issued through Control or passed down to a physical device.
type Command uint32

// AOUT_FIFO_CMD_FLAG marks commands that address whichever FIFO the session owns.
const AOUT_FIFO_CMD_FLAG Command = 1 << 7

// IsFifoCmd reports whether the command is routed by FIFO rather than by channel type.
func (c Command) IsFifoCmd() bool {
	return c < PHY_CMD_BASE && c&AOUT_FIFO_CMD_FLAG != 0
}

const (
	AOUT_CMD_GET_SAMPLERATE Command = 1
	AOUT_CMD_SET_SAMPLERATE Command = 2
	AOUT_CMD_OPEN_PA        Command = 3
	AOUT_CMD_CLOSE_PA       Command = 4
	AOUT_CMD_PA_CLASS_SEL   Command = 5
	AOUT_CMD_OUT_MUTE       Command = 6

	AOUT_CMD_GET_SAMPLE_CNT         Command = AOUT_FIFO_CMD_FLAG | 7
	AOUT_CMD_RESET_SAMPLE_CNT       Command = AOUT_FIFO_CMD_FLAG | 8
	AOUT_CMD_ENABLE_SAMPLE_CNT      Command = AOUT_FIFO_CMD_FLAG | 9
	AOUT_CMD_DISABLE_SAMPLE_CNT     Command = AOUT_FIFO_CMD_FLAG | 10
	AOUT_CMD_GET_VOLUME             Command = AOUT_FIFO_CMD_FLAG | 11
	AOUT_CMD_SET_VOLUME             Command = AOUT_FIFO_CMD_FLAG | 12
	AOUT_CMD_GET_FIFO_LEN           Command = AOUT_FIFO_CMD_FLAG | 13
	AOUT_CMD_GET_FIFO_AVAILABLE_LEN Command = AOUT_FIFO_CMD_FLAG | 14
	AOUT_CMD_GET_CHANNEL_STATUS     Command = AOUT_FIFO_CMD_FLAG | 15
	AOUT_CMD_GET_APS                Command = AOUT_FIFO_CMD_FLAG | 16
	AOUT_CMD_SET_APS                Command = AOUT_FIFO_CMD_FLAG | 17

	AOUT_CMD_SPDIF_SET_CHANNEL_STATUS Command = 18
	AOUT_CMD_SPDIF_GET_CHANNEL_STATUS Command = 19
	AOUT_CMD_OPEN_I2STX_DEVICE        Command = 20
	AOUT_CMD_CLOSE_I2STX_DEVICE       Command = 21

	AOUT_CMD_SET_DAC_THRESHOLD      Command = AOUT_FIFO_CMD_FLAG | 22
	AOUT_CMD_GET_DAC_FIFO_DRQ_LEVEL Command = AOUT_FIFO_CMD_FLAG | 23
	AOUT_CMD_SET_DAC_FIFO_DRQ_LEVEL Command = AOUT_FIFO_CMD_FLAG | 24
	AOUT_CMD_GET_DAC_FIFO_VOLUME    Command = AOUT_FIFO_CMD_FLAG | 25
	AOUT_CMD_SET_DAC_FIFO_VOLUME    Command = AOUT_FIFO_CMD_FLAG | 26

	AOUT_CMD_DEBUG_PERFORMANCE_CTL     Command = 27
	AOUT_CMD_DEBUG_PERFORMANCE_CTL_ALL Command = 28
	AOUT_CMD_DEBUG_DUMP_LENGTH         Command = 29
	AOUT_CMD_DEBUG_DUMP_LENGTH_ALL     Command = 30

	AOUT_CMD_SET_DAC_TRIGGER_SRC       Command = 36
	AOUT_CMD_SELECT_DAC_ENABLE_CHANNEL Command = 37
	AOUT_CMD_DAC_FORCE_START           Command = 38
	AOUT_CMD_EXTERNAL_PA_CONTROL       Command = 39
	AOUT_CMD_DAC_TRIGGER_CONTROL       Command = 40
	AOUT_CMD_SET_SEPARATED_MODE        Command = 41
	AOUT_CMD_ANC_CONTROL               Command = 42
)

// Physical device command space. Commands below PHY_CMD_BASE are passed through unchanged.
const (
	PHY_CMD_BASE Command = 0xFF

	PHY_CMD_DUMP_REGS          = PHY_CMD_BASE + 1
	PHY_CMD_FIFO_GET           = PHY_CMD_BASE + 2
	PHY_CMD_FIFO_PUT           = PHY_CMD_BASE + 3
	PHY_CMD_FIFO_DRQ_LEVEL_GET = PHY_CMD_BASE + 16
	PHY_CMD_FIFO_DRQ_LEVEL_SET = PHY_CMD_BASE + 17
	PHY_CMD_GET_AOUT_DMA_INFO  = PHY_CMD_BASE + 19

	PHY_CMD_DAC_BASE                    = PHY_CMD_BASE + 64
	PHY_CMD_DAC_WAIT_EMPTY              = PHY_CMD_DAC_BASE + 1
	PHY_CMD_DAC_FIFO_GET_SAMPLE_CNT     = PHY_CMD_DAC_BASE + 2
	PHY_CMD_DAC_FIFO_RESET_SAMPLE_CNT   = PHY_CMD_DAC_BASE + 3
	PHY_CMD_DAC_FIFO_DISABLE_SAMPLE_CNT = PHY_CMD_DAC_BASE + 4
	PHY_CMD_DAC_FIFO_ENABLE_SAMPLE_CNT  = PHY_CMD_DAC_BASE + 5
	PHY_CMD_DAC_FIFO_VOLUME_GET         = PHY_CMD_DAC_BASE + 6
	PHY_CMD_DAC_FIFO_VOLUME_SET         = PHY_CMD_DAC_BASE + 7
	PHY_CMD_CLAIM_WITH_128FS            = PHY_CMD_DAC_BASE + 8
	PHY_CMD_CLAIM_WITHOUT_128FS         = PHY_CMD_DAC_BASE + 9

	PHY_CMD_I2STX_BASE      = PHY_CMD_DAC_BASE + 64
	PHY_CMD_I2STX_IS_OPENED = PHY_CMD_I2STX_BASE + 1
)

// PhyFifoCmd packs a FIFO index and a 16-bit value into one command word.
func PhyFifoCmd(fifo FifoType, val uint32) uint32 {
	return uint32(fifo)<<16 | (val & 0xFFFF)
}

// PhyFifoCmdFifo extracts the FIFO index from a packed FIFO command word.
func PhyFifoCmdFifo(x uint32) FifoType {
	return FifoType(x >> 16)
}

// PhyFifoCmdVal extracts the value from a packed FIFO command word.
func PhyFifoCmdVal(x uint32) uint32 {
	return x & 0xFFFF
}

// CommandNames provides human-readable names for the generic and FIFO commands.
var CommandNames = map[Command]string{
	AOUT_CMD_GET_SAMPLERATE:            "GET_SAMPLERATE",
	AOUT_CMD_SET_SAMPLERATE:            "SET_SAMPLERATE",
	AOUT_CMD_OPEN_PA:                   "OPEN_PA",
	AOUT_CMD_CLOSE_PA:                  "CLOSE_PA",
	AOUT_CMD_PA_CLASS_SEL:              "PA_CLASS_SEL",
	AOUT_CMD_OUT_MUTE:                  "OUT_MUTE",
	AOUT_CMD_GET_SAMPLE_CNT:            "GET_SAMPLE_CNT",
	AOUT_CMD_RESET_SAMPLE_CNT:          "RESET_SAMPLE_CNT",
	AOUT_CMD_ENABLE_SAMPLE_CNT:         "ENABLE_SAMPLE_CNT",
	AOUT_CMD_DISABLE_SAMPLE_CNT:        "DISABLE_SAMPLE_CNT",
	AOUT_CMD_GET_VOLUME:                "GET_VOLUME",
	AOUT_CMD_SET_VOLUME:                "SET_VOLUME",
	AOUT_CMD_GET_FIFO_LEN:              "GET_FIFO_LEN",
	AOUT_CMD_GET_FIFO_AVAILABLE_LEN:    "GET_FIFO_AVAILABLE_LEN",
	AOUT_CMD_GET_CHANNEL_STATUS:        "GET_CHANNEL_STATUS",
	AOUT_CMD_SPDIF_SET_CHANNEL_STATUS:  "SPDIF_SET_CHANNEL_STATUS",
	AOUT_CMD_SPDIF_GET_CHANNEL_STATUS:  "SPDIF_GET_CHANNEL_STATUS",
	AOUT_CMD_SET_DAC_THRESHOLD:         "SET_DAC_THRESHOLD",
	AOUT_CMD_GET_DAC_FIFO_DRQ_LEVEL:    "GET_DAC_FIFO_DRQ_LEVEL",
	AOUT_CMD_SET_DAC_FIFO_DRQ_LEVEL:    "SET_DAC_FIFO_DRQ_LEVEL",
	AOUT_CMD_GET_DAC_FIFO_VOLUME:       "GET_DAC_FIFO_VOLUME",
	AOUT_CMD_SET_DAC_FIFO_VOLUME:       "SET_DAC_FIFO_VOLUME",
	AOUT_CMD_DEBUG_PERFORMANCE_CTL:     "DEBUG_PERFORMANCE_CTL",
	AOUT_CMD_DEBUG_PERFORMANCE_CTL_ALL: "DEBUG_PERFORMANCE_CTL_ALL",
	AOUT_CMD_DEBUG_DUMP_LENGTH:         "DEBUG_DUMP_LENGTH",
	AOUT_CMD_DEBUG_DUMP_LENGTH_ALL:     "DEBUG_DUMP_LENGTH_ALL",
	AOUT_CMD_SET_DAC_TRIGGER_SRC:       "SET_DAC_TRIGGER_SRC",
	AOUT_CMD_SET_SEPARATED_MODE:        "SET_SEPARATED_MODE",
}

// String returns the command name, or its number for commands without one.
func (c Command) String() string {
	if name, ok := CommandNames[c]; ok {
		return name
	}

	return fmt.Sprintf("CMD(0x%x)", uint32(c))
}
