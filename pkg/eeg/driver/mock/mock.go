// Package mock implements a synthetic EEG board used for bring-up and
// tests. Each channel carries a sinusoid at a characteristic EEG band
// frequency plus seeded noise, so output is deterministic for a given
// seed and spectra show an obvious per-channel peak.
package mock

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

const (
	maxChannels   = 32
	maxSampleRate = 16000
)

// One band center per channel, cycled: delta, theta, alpha, beta, gamma.
var bandFreqs = []float64{2.5, 6, 10, 21, 38}

type Driver struct {
	mu         sync.Mutex
	cfg        driver.AdcConfig
	configured bool
	running    bool
	rng        *rand.Rand
	sampleIdx  int
	nextDue    time.Time
}

// New returns a mock board. The seed fixes the generated noise so two
// drivers with the same seed and config emit identical batches.
func New(seed int64) *Driver {
	return &Driver{rng: rand.New(rand.NewSource(seed))}
}

func (d *Driver) Configure(cfg driver.AdcConfig) error {
	if err := cfg.Validate(); err != nil {
		return &driver.Error{Kind: driver.UnsupportedConfig, Op: "configure", Err: err}
	}
	if cfg.Channels > maxChannels || cfg.SampleRate > maxSampleRate {
		return driver.Errorf(driver.UnsupportedConfig, "configure",
			"mock board supports at most %d channels at %d Hz", maxChannels, maxSampleRate)
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
	d.running = true
	d.sampleIdx = 0
	d.nextDue = time.Time{}
	return nil
}

func (d *Driver) ReadBatch(timeout time.Duration) (driver.RawBatch, error) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil, driver.Errorf(driver.HardwareFault, "read_batch", "board not running")
	}
	cfg := d.cfg
	d.mu.Unlock()

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

	return d.synthesize(cfg), nil
}

// synthesize produces one batch of codes centered at quarter scale,
// which the calibration maps to zero volts, with ~1/5 range tones and a
// little noise.
func (d *Driver) synthesize(cfg driver.AdcConfig) driver.RawBatch {
	fullScale := math.Exp2(float64(cfg.Resolution - 1))
	mid := fullScale / 2
	amp := fullScale / 5

	batch := make(driver.RawBatch, cfg.Channels)
	base := d.sampleIdx
	for ch := range batch {
		freq := bandFreqs[ch%len(bandFreqs)]
		row := make([]int32, cfg.BatchSize)
		for i := range row {
			t := float64(base+i) / float64(cfg.SampleRate)
			v := mid + amp*math.Sin(2*math.Pi*freq*t) + amp/50*d.rng.NormFloat64()
			if v < 0 {
				v = 0
			}
			if v > fullScale-1 {
				v = fullScale - 1
			}
			row[i] = int32(v)
		}
		batch[ch] = row
	}
	d.sampleIdx = base + cfg.BatchSize
	return batch
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	// Stopping an already-stopped board is a no-op.
	d.running = false
	return nil
}

func (d *Driver) Status() driver.Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return driver.Status{State: driver.StateRunning}
	}
	return driver.Status{State: driver.StateIdle}
}
