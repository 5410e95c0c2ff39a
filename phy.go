package aout

// PhyDevice is a physical audio output block (DAC, I2STX, SPDIFTX or PDMTX).
// Enable and Disable must be balanced per session; the device powers down at the last Disable.
// Control implements the PHY_CMD_* and passthrough AOUT_CMD_* requests; arg is a value or a pointer
// for commands that return data.
type PhyDevice interface {
	Name() string
	Enable(p *Param) error
	Disable(p *Param) error
	Control(cmd Command, arg any) error
}

// DMAController is a data-mover engine shared by all sessions.
type DMAController interface {
	Name() string
	// Request allocates a free channel.
	Request() (int, error)
	// Configure programs the transfer descriptor of a channel.
	Configure(ch int, cfg *DMAConfig) error
	// Reload sets the source buffer. In reload mode the buffer is walked as a two-half ring.
	Reload(ch int, buf []byte) error
	Start(ch int) error
	Stop(ch int) error
	Free(ch int)
	Status(ch int) (DMAStatus, error)
}

// ExternalPA is the board power amplifier driven around the DAC output.
type ExternalPA interface {
	Open() error
	Close() error
	SelectClass(class uint8) error
}
