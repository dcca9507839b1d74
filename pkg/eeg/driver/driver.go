package driver

import "time"

// Board is the capability contract every ADC front end satisfies.
// Callers never branch on the concrete board: selecting a Type and
// talking through Board is all the orchestrator ever does.
//
// Configure must be called before Start and validates the requested
// session against the physical board's envelope. ReadBatch blocks for
// at most timeout and returns one batch with Channels()==cfg.Channels
// and equal-length rows; a Timeout error means no data arrived in time
// and the call may simply be repeated. Stop releases the hardware and
// is idempotent. Status never blocks and is safe to call from any
// goroutine while the acquisition loop owns the rest of the interface.
type Board interface {
	Configure(cfg AdcConfig) error
	Start() error
	ReadBatch(timeout time.Duration) (RawBatch, error)
	Stop() error
	Status() Status
}
