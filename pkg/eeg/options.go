package eeg

import (
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"

	"github.com/neuracq/neuracq/pkg/dsp"
)

const (
	defaultMaxConsecutiveTimeouts = 40
	defaultRecordBuffer           = 16
)

// Options configures one acquisition session.
type Options struct {
	// Outputs receive every emitted record (best effort, non-blocking).
	Outputs []Output

	// Spectral enables per-record frequency analysis when non-nil.
	Spectral *dsp.SpectralConfig

	// MaxConsecutiveTimeouts bounds how long a silent board is retried
	// before the session is declared fatally stalled. Zero means the
	// default of 40.
	MaxConsecutiveTimeouts int

	// RecordBuffer is the capacity of the Records channel. Zero means
	// the default of 16.
	RecordBuffer int

	// Driver construction knobs, used only by the matching Type.
	PlaybackLocation string
	SerialPort       string
	SerialBaudRate   uint
	MockSeed         int64
}

type SystemOption func(s *System) error

func WithLogger(logger zerolog.Logger) SystemOption {
	return func(s *System) error {
		s.logger = logger
		return nil
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) SystemOption {
	return func(s *System) error {
		s.writeAPI = writeAPI
		return nil
	}
}

func WithObserver(obs Observer) SystemOption {
	return func(s *System) error {
		s.observer = obs
		return nil
	}
}
