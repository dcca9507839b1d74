// Package eeg contains the acquisition orchestrator. A System owns one
// board driver for the lifetime of a session, drives the sampling
// cadence, runs the DSP stage on every batch, and publishes timestamped
// ProcessedData records in read order.
package eeg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/neuracq/neuracq/pkg/dsp"
	"github.com/neuracq/neuracq/pkg/eeg/driver"
	"github.com/neuracq/neuracq/pkg/eeg/driver/ads1299"
	"github.com/neuracq/neuracq/pkg/eeg/driver/mock"
	"github.com/neuracq/neuracq/pkg/eeg/driver/playback"
	"github.com/neuracq/neuracq/pkg/util"
)

// SystemState tracks the session lifecycle:
// Uninitialized -> Configured -> Running -> Stopped, with a transit
// through Error when the driver fails fatally.
type SystemState int

const (
	StateUninitialized SystemState = iota
	StateConfigured
	StateRunning
	StateError
	StateStopped
)

func (s SystemState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateError:
		return "error"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// SystemStatus is a point-in-time snapshot for monitoring.
type SystemStatus struct {
	State          string        `json:"state"`
	Driver         driver.Status `json:"driver"`
	SampleRate     int           `json:"sample_rate"`
	Channels       int           `json:"channels"`
	RecordsEmitted uint64        `json:"records_emitted"`
	DSPErrors      uint64        `json:"dsp_errors"`
	LastError      string        `json:"last_error,omitempty"`
}

type System struct {
	board    driver.Board
	cfg      driver.AdcConfig
	opts     Options
	stage    *dsp.Stage
	logger   zerolog.Logger
	writeAPI api.WriteAPI
	observer Observer
	records  chan *ProcessedData

	mu        sync.Mutex
	state     SystemState
	cancel    context.CancelFunc
	lastError string
	lastTS    uint64

	boardStop sync.Once

	recordCount uint64
	dspErrCount uint64
}

// New instantiates the driver matching typ, configures it, and returns
// a System ready to Start. A configuration failure leaves nothing
// behind: the error is returned and no driver is retained.
func New(typ driver.Type, cfg driver.AdcConfig, options Options, opts ...SystemOption) (*System, error) {
	var board driver.Board
	switch typ {
	case driver.TypeMock:
		board = mock.New(options.MockSeed)
	case driver.TypePlayback:
		if options.PlaybackLocation == "" {
			return nil, errors.New("playback driver requires a capture file location")
		}
		board = playback.New(options.PlaybackLocation)
	case driver.TypeAds1299:
		if options.SerialPort == "" {
			return nil, errors.New("ads1299 driver requires a serial port")
		}
		board = ads1299.New(ads1299.Config{Port: options.SerialPort, BaudRate: options.SerialBaudRate})
	default:
		return nil, fmt.Errorf("unknown driver type %q", typ)
	}

	return NewWithBoard(board, cfg, options, opts...)
}

// NewWithBoard is New for callers that bring their own Board
// implementation, e.g. a transport not in the built-in Type set.
func NewWithBoard(board driver.Board, cfg driver.AdcConfig, options Options, opts ...SystemOption) (*System, error) {
	// The config is validated here, not just by the board: a session is
	// only constructed around a well-formed AdcConfig regardless of how
	// permissive the board's own Configure is.
	if err := cfg.Validate(); err != nil {
		return nil, &driver.Error{Kind: driver.UnsupportedConfig, Op: "configure", Err: err}
	}
	if err := board.Configure(cfg); err != nil {
		return nil, err
	}

	if options.MaxConsecutiveTimeouts <= 0 {
		options.MaxConsecutiveTimeouts = defaultMaxConsecutiveTimeouts
	}
	if options.RecordBuffer <= 0 {
		options.RecordBuffer = defaultRecordBuffer
	}

	s := &System{
		board:    board,
		cfg:      cfg,
		opts:     options,
		stage:    dsp.NewStage(cfg, options.Spectral),
		logger:   log.Logger,
		writeAPI: &util.MockWriteAPI{}, // overwritten with option
		records:  make(chan *ProcessedData, options.RecordBuffer),
		state:    StateConfigured,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Records is the primary consumer channel. Records arrive in the exact
// order their batches were read; if the consumer falls behind, the
// oldest buffered record is dropped so the cadence never stalls.
func (s *System) Records() <-chan *ProcessedData { return s.records }

// Status may be called from any goroutine.
func (s *System) Status() SystemStatus {
	s.mu.Lock()
	state := s.state
	lastErr := s.lastError
	s.mu.Unlock()
	return SystemStatus{
		State:          state.String(),
		Driver:         s.board.Status(),
		SampleRate:     s.cfg.SampleRate,
		Channels:       s.cfg.Channels,
		RecordsEmitted: atomic.LoadUint64(&s.recordCount),
		DSPErrors:      atomic.LoadUint64(&s.dspErrCount),
		LastError:      lastErr,
	}
}

// Start runs the session until the context is cancelled, Stop is
// called, or the driver fails fatally. It returns nil on a clean stop
// and the terminal error otherwise. The driver's Stop is invoked
// exactly once on every exit path.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConfigured {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start from state %s", state)
	}
	if err := s.board.Start(); err != nil {
		s.state = StateError
		s.lastError = err.Error()
		s.mu.Unlock()
		s.stopBoard()
		s.setState(StateStopped)
		return err
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info().
		Int("sample_rate", s.cfg.SampleRate).
		Int("channels", s.cfg.Channels).
		Int("batch_size", s.cfg.BatchSize).
		Bool("spectral", s.stage.SpectralEnabled()).
		Msg("acquisition starting")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return s.acquire(ctx)
	})
	for _, output := range s.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	err := eg.Wait()
	s.stopBoard()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.mu.Lock()
		s.state = StateError
		s.lastError = err.Error()
		s.mu.Unlock()
		s.setState(StateStopped)
		s.logger.Error().Err(err).Msg("acquisition terminated")
		return err
	}
	s.setState(StateStopped)
	s.logger.Info().Uint64("records", atomic.LoadUint64(&s.recordCount)).Msg("acquisition stopped")
	return nil
}

// Stop may be called from any goroutine, any number of times. It
// signals the acquisition loop to exit after its in-flight iteration
// and never blocks on it.
func (s *System) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	if s.state == StateConfigured || s.state == StateUninitialized {
		s.state = StateStopped
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	} else {
		// Never started: still release the (idle) driver.
		s.stopBoard()
	}
	return nil
}

func (s *System) setState(state SystemState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// stopBoard tears down the driver exactly once per session. Stop errors
// are surfaced in the log and the status snapshot but never block
// teardown.
func (s *System) stopBoard() {
	s.boardStop.Do(func() {
		if err := s.board.Stop(); err != nil {
			s.mu.Lock()
			if s.lastError == "" {
				s.lastError = err.Error()
			}
			s.mu.Unlock()
			s.logger.Warn().Err(err).Msg("driver stop reported an error")
		}
	})
}

// readTimeout bounds a single ReadBatch call: four batch periods,
// clamped so very fast sessions still wait a useful amount and very
// slow ones cannot hang for minutes.
func readTimeout(cfg driver.AdcConfig) time.Duration {
	period := time.Duration(float64(cfg.BatchSize) / float64(cfg.SampleRate) * float64(time.Second))
	timeout := 4 * period
	if timeout < 50*time.Millisecond {
		timeout = 50 * time.Millisecond
	}
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return timeout
}

func (s *System) acquire(ctx context.Context) error {
	timeout := readTimeout(s.cfg)
	consecutiveTimeouts := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := s.board.ReadBatch(timeout)
		if err != nil {
			if driver.IsTimeout(err) {
				consecutiveTimeouts++
				s.logger.Debug().Int("consecutive", consecutiveTimeouts).Msg("read timed out, retrying")
				if consecutiveTimeouts >= s.opts.MaxConsecutiveTimeouts {
					return driver.Errorf(driver.HardwareFault, "read_batch",
						"no data after %d consecutive timeouts", consecutiveTimeouts)
				}
				continue
			}
			return err
		}
		consecutiveTimeouts = 0

		var res dsp.Result
		dspMicros := util.TimeOperationMicroseconds(func() {
			res = s.stage.Process(batch)
		})

		rec := &ProcessedData{
			Timestamp:      s.nextTimestamp(),
			RawSamples:     batch,
			VoltageSamples: res.Voltages,
			Spectra:        res.Spectra,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
			atomic.AddUint64(&s.dspErrCount, 1)
			s.logger.Warn().Err(res.Err).Uint64("timestamp", rec.Timestamp).Msg("dsp failed for record")
		}

		skipped := s.publish(rec)
		atomic.AddUint64(&s.recordCount, 1)

		go s.writeAPI.WritePoint(influxdb2.NewPoint("eeg.record",
			map[string]string{
				"spectral": fmt.Sprintf("%t", rec.Spectra != nil),
			},
			map[string]interface{}{
				"samples_per_channel": batch.SamplesPerChannel(),
				"dsp_duration_us":     dspMicros,
				"dsp_failed":          boolToInt(res.Err != nil),
				"skipped_outputs":     skipped,
			}, time.Now()))
	}
}

// nextTimestamp returns monotonic nanoseconds, strictly increasing
// even if the clock reports the same instant twice.
func (s *System) nextTimestamp() uint64 {
	now := uint64(time.Now().UnixNano())
	s.mu.Lock()
	if now <= s.lastTS {
		now = s.lastTS + 1
	}
	s.lastTS = now
	s.mu.Unlock()
	return now
}

// publish hands the record to the Records channel, the observer, and
// every output without ever blocking the cadence. Returns how many
// outputs were skipped because their buffers were full.
func (s *System) publish(rec *ProcessedData) int {
	select {
	case s.records <- rec:
	default:
		// Consumer is behind: make room by discarding the oldest
		// buffered record, keeping emission order intact.
		select {
		case <-s.records:
		default:
		}
		select {
		case s.records <- rec:
		default:
		}
	}

	if s.observer != nil {
		s.observer.Observe(rec)
	}

	skipped := 0
	for _, output := range s.opts.Outputs {
		select {
		case output.Receive() <- rec:
			// We will not wait on blocked channels.
		default:
			skipped++
		}
	}
	return skipped
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
