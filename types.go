package aout

// Callback is invoked from the DMA interrupt producer when a transfer event occurs.
// In reload mode it receives AOUT_DMA_IRQ_HF and AOUT_DMA_IRQ_TC alternately; in direct mode only AOUT_DMA_IRQ_TC.
type Callback func(data any, reason Reason) error

// SRDCallback receives sample rate detector events.
// The payload is a SampleRate for I2STX_SRD_FS_CHANGE, an SRDWidth for I2STX_SRD_WL_CHANGE and nil for I2STX_SRD_TIMEOUT.
type SRDCallback func(data any, event SRDEvent, payload any)

// VolumeSetting holds the left and right channel volume in 1/10000 dB.
type VolumeSetting struct {
	Left  int32
	Right int32
}

// DACSetting carries the DAC specific open parameters.
type DACSetting struct {
	ChannelMode ChannelMode
	Volume      VolumeSetting
}

// I2STXSetting carries the I2STX specific open parameters.
type I2STXSetting struct {
	Mode         I2STXMode
	SRDCallback  SRDCallback
	CallbackData any
}

// SPDIFChannelStatus is the 48-bit IEC 60958 channel status block, split into the low and high words.
type SPDIFChannelStatus struct {
	Csl uint32
	Csh uint16
}

// SPDIFTXSetting carries the SPDIFTX specific open parameters.
type SPDIFTXSetting struct {
	Status SPDIFChannelStatus
}

// PDMTXSetting carries the PDMTX specific open parameters.
type PDMTXSetting struct {
	ChannelMode ChannelMode
}

// ReloadSetting describes the caller-owned ring buffer used in DMA reload mode.
// The DMA engine walks the buffer forever, raising a half-full event at the midpoint and a completion event at the end.
type ReloadSetting struct {
	Buf []byte
}

// Param encapsulates the parameters of a session open request.
type Param struct {
	ChannelType  ChannelType
	OutFifo      FifoType
	SampleRate   SampleRate
	ChannelWidth ChannelWidth
	Callback     Callback
	CallbackData any
	Reload       *ReloadSetting

	DAC   *DACSetting
	I2STX *I2STXSetting
	SPDIF *SPDIFTXSetting
	PDMTX *PDMTXSetting
}

// DMAInfo describes the DMA request line of a physical FIFO.
type DMAInfo struct {
	DeviceName string // Name of the DMA controller on the bus.
	Slot       int    // Peripheral request slot.
}

// DMAInfoRequest is the argument of PHY_CMD_GET_AOUT_DMA_INFO.
type DMAInfoRequest struct {
	Fifo FifoType
	Info DMAInfo
}

// DMACallback is invoked by a DMA controller on half-full and completion events.
type DMACallback func(ch int, status int)

// DMAConfig is the transfer descriptor passed to a DMA controller.
type DMAConfig struct {
	Slot          int
	SourceBurst   int
	DestBurst     int
	SourceWidth   int // Bytes per sample.
	Reload        bool
	Separated     bool // Duplicate a mono stream to both FIFO channels.
	Callback      DMACallback
	CompleteIRQEn bool
}

// DMAStatus reports the progress of a DMA channel.
type DMAStatus struct {
	Busy          bool
	PendingLength int
}
