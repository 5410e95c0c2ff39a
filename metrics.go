package aout

// Metrics receives session manager observations.
// A nil Metrics disables collection.
type Metrics interface {
	ObserveOpen(channel string, err error)
	ObserveClose(channel string, err error)
	SetOpenSessions(channel string, n int)
	ObserveDMAEvent(channel string, reason string)
	ObservePhaseError(channel string)
	SetSharedClaims(resource string, n int)
}

// Shared resource names reported through Metrics.SetSharedClaims.
const (
	ResourceDACFifo = "dac_fifo"
	ResourceFS128   = "dac_128fs"
)
