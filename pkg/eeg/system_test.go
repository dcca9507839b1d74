package eeg

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuracq/neuracq/pkg/dsp"
	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

// scriptedBoard replays a fixed sequence of ReadBatch outcomes and
// counts lifecycle calls, standing in for real hardware.
type scriptedBoard struct {
	mu     sync.Mutex
	script []scriptStep
	idx    int

	cfg          driver.AdcConfig
	configureErr error
	startErr     error
	stops        int32
}

type scriptStep struct {
	batch driver.RawBatch
	err   error
}

func goodBatch(channels, samples int) scriptStep {
	batch := make(driver.RawBatch, channels)
	for ch := range batch {
		row := make([]int32, samples)
		for i := range row {
			row[i] = int32(ch*1000 + i)
		}
		batch[ch] = row
	}
	return scriptStep{batch: batch}
}

func timeoutStep() scriptStep {
	return scriptStep{err: &driver.Error{Kind: driver.Timeout, Op: "read_batch"}}
}

func faultStep() scriptStep {
	return scriptStep{err: driver.Errorf(driver.HardwareFault, "read_batch", "connection lost")}
}

func (b *scriptedBoard) Configure(cfg driver.AdcConfig) error {
	b.cfg = cfg
	return b.configureErr
}

func (b *scriptedBoard) Start() error { return b.startErr }

func (b *scriptedBoard) ReadBatch(timeout time.Duration) (driver.RawBatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.idx >= len(b.script) {
		// Script exhausted: behave like a silent board.
		time.Sleep(time.Millisecond)
		return nil, &driver.Error{Kind: driver.Timeout, Op: "read_batch"}
	}
	step := b.script[b.idx]
	b.idx++
	return step.batch, step.err
}

func (b *scriptedBoard) Stop() error {
	atomic.AddInt32(&b.stops, 1)
	return nil
}

func (b *scriptedBoard) Status() driver.Status {
	return driver.Status{State: driver.StateRunning}
}

func testAdcConfig() driver.AdcConfig {
	return driver.AdcConfig{
		SampleRate: 250,
		Channels:   2,
		Resolution: 16,
		Vref:       5.0,
		Gain:       1.0,
		BatchSize:  8,
	}
}

func drainRecords(s *System) []*ProcessedData {
	var recs []*ProcessedData
	for {
		select {
		case rec := <-s.Records():
			recs = append(recs, rec)
		default:
			return recs
		}
	}
}

func TestSystemEmitsRecordsInOrder(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{
		goodBatch(2, 8), goodBatch(2, 8), goodBatch(2, 8), faultStep(),
	}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, driver.IsFatal(err))

	recs := drainRecords(s)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Len(t, rec.RawSamples, 2, "record %d channel count", i)
		assert.Len(t, rec.VoltageSamples, 2, "record %d voltage channels", i)
		assert.Empty(t, rec.Error, "record %d", i)
		assert.Nil(t, rec.Spectra, "spectral analysis is disabled")
		if i > 0 {
			assert.Greater(t, rec.Timestamp, recs[i-1].Timestamp, "timestamps strictly increase")
		}
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&board.stops), "driver stopped exactly once")
	assert.Equal(t, "stopped", s.Status().State)
}

func TestSystemTimeoutsAreRetriedTransparently(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{
		timeoutStep(), timeoutStep(), timeoutStep(), goodBatch(2, 8), faultStep(),
	}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)

	recs := drainRecords(s)
	require.Len(t, recs, 1, "timeouts produce no records")
	assert.Empty(t, recs[0].Error)
}

func TestSystemFaultEmitsNothingAndStopsOnce(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{faultStep()}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, driver.IsFatal(err))

	assert.Empty(t, drainRecords(s))
	assert.Equal(t, int32(1), atomic.LoadInt32(&board.stops))

	status := s.Status()
	assert.Equal(t, "stopped", status.State)
	assert.NotEmpty(t, status.LastError, "fatal error is distinguishable from a clean stop")
}

func TestSystemConsecutiveTimeoutsBecomeFatal(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{
		timeoutStep(), timeoutStep(), timeoutStep(), timeoutStep(), timeoutStep(),
	}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{MaxConsecutiveTimeouts: 5})
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.True(t, driver.IsFatal(err))
	assert.Empty(t, drainRecords(s))
}

func TestSystemDSPFaultDoesNotStopStream(t *testing.T) {
	cfg := testAdcConfig()
	cfg.Channels = 1

	bad := scriptStep{batch: driver.RawBatch{{1, 2}, {3, 4}}} // two channels, one configured
	board := &scriptedBoard{script: []scriptStep{
		goodBatch(1, 8), bad, goodBatch(1, 8), faultStep(),
	}}
	s, err := NewWithBoard(board, cfg, Options{})
	require.NoError(t, err)

	require.Error(t, s.Start(context.Background()))

	recs := drainRecords(s)
	require.Len(t, recs, 3)

	assert.Empty(t, recs[0].Error)

	assert.NotEmpty(t, recs[1].Error, "shape mismatch is captured on the record")
	assert.Len(t, recs[1].RawSamples, 2, "raw samples are never dropped")
	assert.Nil(t, recs[1].VoltageSamples)

	assert.Empty(t, recs[2].Error, "subsequent batches recover")
	assert.Len(t, recs[2].VoltageSamples, 1)

	assert.Equal(t, uint64(1), s.Status().DSPErrors)
}

func TestSystemSpectraOnEveryRecordWhenEnabled(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{
		goodBatch(2, 8), goodBatch(2, 8), faultStep(),
	}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{
		Spectral: &dsp.SpectralConfig{Window: dsp.Hann},
	})
	require.NoError(t, err)

	require.Error(t, s.Start(context.Background()))

	recs := drainRecords(s)
	require.Len(t, recs, 2)
	for i, rec := range recs {
		require.NotNil(t, rec.Spectra, "record %d", i)
		assert.Len(t, rec.Spectra.Power, 2)
		assert.Len(t, rec.Spectra.Bins, 2)
	}
}

func TestSystemCleanStop(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{
		goodBatch(2, 8), goodBatch(2, 8),
	}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{MaxConsecutiveTimeouts: 1 << 30})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()

	var got int
	for got < 2 {
		select {
		case <-s.Records():
			got++
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for records")
		}
	}

	require.NoError(t, s.Stop())

	select {
	case err := <-done:
		assert.NoError(t, err, "clean stop is not an error")
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&board.stops))
	assert.Equal(t, "stopped", s.Status().State)

	// A second Stop is a no-op.
	require.NoError(t, s.Stop())
	assert.Equal(t, int32(1), atomic.LoadInt32(&board.stops))
}

func TestSystemObserverSeesRecords(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{
		goodBatch(2, 8), faultStep(),
	}}

	var seen int32
	obs := observerFunc(func(*ProcessedData) { atomic.AddInt32(&seen, 1) })

	s, err := NewWithBoard(board, testAdcConfig(), Options{}, WithObserver(obs))
	require.NoError(t, err)
	require.Error(t, s.Start(context.Background()))

	assert.Equal(t, int32(1), atomic.LoadInt32(&seen))
}

type observerFunc func(*ProcessedData)

func (f observerFunc) Observe(rec *ProcessedData) { f(rec) }

func TestNewRejectsUnknownDriverType(t *testing.T) {
	_, err := New("ouija", testAdcConfig(), Options{})
	require.Error(t, err)
}

func TestNewSurfacesConfigureFailure(t *testing.T) {
	cfg := testAdcConfig()
	cfg.Channels = 100 // beyond the mock board's envelope

	_, err := New(driver.TypeMock, cfg, Options{})
	require.Error(t, err)
	var de *driver.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, driver.UnsupportedConfig, de.Kind)
}

func TestNewWithBoardRejectsInvalidConfig(t *testing.T) {
	// The scripted board's Configure accepts anything; the constructor
	// must still insist on a well-formed config.
	tests := []struct {
		name   string
		mutate func(*driver.AdcConfig)
	}{
		{"zero channels", func(c *driver.AdcConfig) { c.Channels = 0 }},
		{"zero sample rate", func(c *driver.AdcConfig) { c.SampleRate = 0 }},
		{"zero batch size", func(c *driver.AdcConfig) { c.BatchSize = 0 }},
		{"non-positive vref", func(c *driver.AdcConfig) { c.Vref = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAdcConfig()
			tt.mutate(&cfg)
			_, err := NewWithBoard(&scriptedBoard{}, cfg, Options{})
			require.Error(t, err)
			var de *driver.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, driver.UnsupportedConfig, de.Kind)
		})
	}
}

func TestSystemCannotStartTwice(t *testing.T) {
	board := &scriptedBoard{script: []scriptStep{faultStep()}}
	s, err := NewWithBoard(board, testAdcConfig(), Options{})
	require.NoError(t, err)

	require.Error(t, s.Start(context.Background()))
	err = s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start")
}
