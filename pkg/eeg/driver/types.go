package driver

import "fmt"

// Type identifies which concrete board implementation to instantiate.
type Type string

const (
	TypeMock     Type = "mock"
	TypePlayback Type = "playback"
	TypeAds1299  Type = "ads1299"
)

// State is the coarse health of a driver.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// MarshalText renders the state by name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time snapshot of driver health. Transitions are
// driver-owned; callers only ever read copies.
type Status struct {
	State State  `json:"state"`
	Error string `json:"error,omitempty"`
}

// AdcConfig describes one acquisition session. It is fixed for the
// lifetime of the session: channel count and resolution never change
// while a driver is running.
type AdcConfig struct {
	SampleRate int     // samples per second, per channel
	Channels   int     // number of electrodes sampled in parallel
	Resolution int     // ADC code width in bits
	Vref       float64 // reference voltage in volts
	Gain       float64 // programmable amplifier gain
	BatchSize  int     // samples per channel in one ReadBatch result
}

// Validate reports whether the config is internally consistent,
// independent of any particular board's envelope.
func (c AdcConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Channels <= 0:
		return fmt.Errorf("channel count must be positive, got %d", c.Channels)
	case c.Resolution <= 0 || c.Resolution > 32:
		return fmt.Errorf("resolution must be in (0, 32] bits, got %d", c.Resolution)
	case c.Vref <= 0:
		return fmt.Errorf("reference voltage must be positive, got %g", c.Vref)
	case c.Gain <= 0:
		return fmt.Errorf("gain must be positive, got %g", c.Gain)
	case c.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// RawBatch is one synchronized acquisition: one code sequence per
// channel, all the same length.
type RawBatch [][]int32

// Channels returns the number of channels in the batch.
func (b RawBatch) Channels() int { return len(b) }

// SamplesPerChannel returns the per-channel sample count, or 0 for an
// empty batch.
func (b RawBatch) SamplesPerChannel() int {
	if len(b) == 0 {
		return 0
	}
	return len(b[0])
}
