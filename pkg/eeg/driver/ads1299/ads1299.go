// Package ads1299 drives a TI ADS1299 EEG front end streamed over a
// serial bridge. The bridge firmware starts continuous conversion on
// the 'b' command and emits one frame per conversion (see frame.go).
package ads1299

import (
	"io"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

const maxChannels = 8

var supportedRates = map[int]struct{}{
	250: {}, 500: {}, 1000: {}, 2000: {}, 4000: {}, 8000: {}, 16000: {},
}

// Config locates the serial bridge.
type Config struct {
	Port     string
	BaudRate uint
}

type Driver struct {
	pcfg Config

	mu         sync.Mutex
	cfg        driver.AdcConfig
	configured bool
	running    bool
	lastErr    string

	port    io.ReadWriteCloser
	batches chan driver.RawBatch
	fault   chan error
	wg      sync.WaitGroup
}

func New(pcfg Config) *Driver {
	if pcfg.BaudRate == 0 {
		pcfg.BaudRate = 921600
	}
	return &Driver{pcfg: pcfg}
}

func (d *Driver) Configure(cfg driver.AdcConfig) error {
	if err := cfg.Validate(); err != nil {
		return &driver.Error{Kind: driver.UnsupportedConfig, Op: "configure", Err: err}
	}
	if cfg.Channels > maxChannels {
		return driver.Errorf(driver.UnsupportedConfig, "configure",
			"ADS1299 has %d channels, %d requested", maxChannels, cfg.Channels)
	}
	if cfg.Resolution != 24 {
		return driver.Errorf(driver.UnsupportedConfig, "configure",
			"ADS1299 is a 24-bit converter, %d-bit requested", cfg.Resolution)
	}
	if _, ok := supportedRates[cfg.SampleRate]; !ok {
		return driver.Errorf(driver.UnsupportedConfig, "configure",
			"unsupported sample rate %d (must be 250*2^k up to 16k)", cfg.SampleRate)
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

	port, err := serial.Open(serial.OpenOptions{
		PortName:        d.pcfg.Port,
		BaudRate:        d.pcfg.BaudRate,
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
	if err != nil {
		d.lastErr = err.Error()
		return &driver.Error{Kind: driver.HardwareFault, Op: "start", Err: err}
	}
	if _, err := port.Write([]byte{cmdStream}); err != nil {
		port.Close()
		d.lastErr = err.Error()
		return &driver.Error{Kind: driver.HardwareFault, Op: "start", Err: err}
	}

	d.port = port
	d.batches = make(chan driver.RawBatch, 4)
	d.fault = make(chan error, 1)
	d.running = true
	d.lastErr = ""

	d.wg.Add(1)
	go d.readLoop(port, d.cfg, d.batches, d.fault)
	return nil
}

// readLoop owns the serial port for the duration of the session. It
// resynchronizes on the frame header after any corrupt frame rather
// than failing: a noisy link loses individual frames, not the session.
func (d *Driver) readLoop(port io.Reader, cfg driver.AdcConfig, batches chan driver.RawBatch, fault chan<- error) {
	defer d.wg.Done()

	fsize := frameSize(cfg.Channels)
	buf := make([]byte, 0, 4*fsize)
	rd := make([]byte, 4096)

	pending := make(driver.RawBatch, cfg.Channels)
	for ch := range pending {
		pending[ch] = make([]int32, 0, cfg.BatchSize)
	}

	for {
		n, err := port.Read(rd)
		if err != nil {
			fault <- &driver.Error{Kind: driver.HardwareFault, Op: "read_batch", Err: err}
			return
		}
		buf = append(buf, rd[:n]...)

		for len(buf) >= fsize {
			if buf[0] != frameHeader {
				buf = buf[1:]
				continue
			}
			codes, _, err := parseFrame(buf[:fsize], cfg.Channels)
			if err != nil {
				// Corrupt frame: skip the header byte and resync.
				buf = buf[1:]
				continue
			}
			buf = buf[fsize:]

			for ch := range pending {
				pending[ch] = append(pending[ch], codes[ch])
			}
			if len(pending[0]) == cfg.BatchSize {
				out := make(driver.RawBatch, cfg.Channels)
				for ch := range pending {
					out[ch] = append([]int32(nil), pending[ch]...)
					pending[ch] = pending[ch][:0]
				}
				select {
				case batches <- out:
				default:
					// Reader is behind; stale samples are worthless
					// in a live session, so drop the oldest batch.
					select {
					case <-batches:
					default:
					}
					batches <- out
				}
			}
		}
	}
}

func (d *Driver) ReadBatch(timeout time.Duration) (driver.RawBatch, error) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil, driver.Errorf(driver.HardwareFault, "read_batch", "board not running")
	}
	batches, fault := d.batches, d.fault
	d.mu.Unlock()

	select {
	case batch := <-batches:
		return batch, nil
	case err := <-fault:
		d.mu.Lock()
		d.lastErr = err.Error()
		d.mu.Unlock()
		return nil, err
	case <-time.After(timeout):
		return nil, &driver.Error{Kind: driver.Timeout, Op: "read_batch"}
	}
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	port := d.port
	d.port = nil
	d.mu.Unlock()

	// Best effort: ask the bridge to stop streaming, then close the
	// port, which also unblocks the read loop.
	port.Write([]byte{cmdStopStream})
	err := port.Close()
	d.wg.Wait()
	return err
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
