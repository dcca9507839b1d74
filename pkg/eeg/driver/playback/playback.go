// Package playback replays raw EEG captures from disk at the configured
// acquisition cadence. Capture files hold little-endian int32 codes,
// channel-interleaved: one int32 per channel per sample frame.
package playback

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

type Driver struct {
	path string

	mu         sync.Mutex
	file       *os.File
	cfg        driver.AdcConfig
	configured bool
	running    bool
	lastErr    string
	nextDue    time.Time
}

func New(path string) *Driver {
	return &Driver{path: path}
}

func (d *Driver) Configure(cfg driver.AdcConfig) error {
	if err := cfg.Validate(); err != nil {
		return &driver.Error{Kind: driver.UnsupportedConfig, Op: "configure", Err: err}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return &driver.Error{Kind: driver.AlreadyRunning, Op: "configure"}
	}
	d.cfg = cfg
	d.configured = true
	return nil
}

func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.configured {
		return driver.Errorf(driver.UnsupportedConfig, "start", "Configure must be called before Start")
	}
	if d.running {
		return &driver.Error{Kind: driver.AlreadyRunning, Op: "start"}
	}
	f, err := os.Open(d.path)
	if err != nil {
		d.lastErr = err.Error()
		return &driver.Error{Kind: driver.HardwareFault, Op: "start", Err: err}
	}
	d.file = f
	d.running = true
	d.lastErr = ""
	d.nextDue = time.Time{}
	return nil
}

func (d *Driver) ReadBatch(timeout time.Duration) (driver.RawBatch, error) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil, driver.Errorf(driver.HardwareFault, "read_batch", "playback not running")
	}
	cfg := d.cfg
	f := d.file
	d.mu.Unlock()

	// Pace the replay so downstream consumers see real-time cadence.
	period := time.Duration(float64(cfg.BatchSize) / float64(cfg.SampleRate) * float64(time.Second))
	now := time.Now()
	if d.nextDue.IsZero() {
		d.nextDue = now
	}
	if wait := d.nextDue.Sub(now); wait > 0 {
		if wait > timeout {
			time.Sleep(timeout)
			return nil, &driver.Error{Kind: driver.Timeout, Op: "read_batch"}
		}
		time.Sleep(wait)
	}
	d.nextDue = d.nextDue.Add(period)

	buf := make([]byte, cfg.BatchSize*cfg.Channels*4)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = errors.New("end of capture")
		}
		d.setError(err)
		return nil, &driver.Error{Kind: driver.HardwareFault, Op: "read_batch", Err: err}
	}

	batch := make(driver.RawBatch, cfg.Channels)
	for ch := range batch {
		batch[ch] = make([]int32, cfg.BatchSize)
	}
	for i := 0; i < cfg.BatchSize; i++ {
		for ch := 0; ch < cfg.Channels; ch++ {
			off := (i*cfg.Channels + ch) * 4
			batch[ch][i] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		}
	}
	return batch, nil
}

func (d *Driver) setError(err error) {
	d.mu.Lock()
	d.lastErr = err.Error()
	d.mu.Unlock()
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return nil
	}
	d.running = false
	f := d.file
	d.file = nil
	if f != nil {
		return f.Close()
	}
	return nil
}

func (d *Driver) Status() driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.lastErr != "":
		return driver.Status{State: driver.StateError, Error: d.lastErr}
	case d.running:
		return driver.Status{State: driver.StateRunning}
	}
	return driver.Status{State: driver.StateIdle}
}
