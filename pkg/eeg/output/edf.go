package output

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/rs/zerolog/log"

	"github.com/neuracq/neuracq/pkg/eeg"
	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

// EDFOutput records the processed voltages to a standard EDF file, one
// EDF data record per acquisition batch, so sessions are readable by
// ordinary EEG review tools.
type EDFOutput struct {
	path     string
	cfg      driver.AdcConfig
	recvChan chan *eeg.ProcessedData
}

func NewEDFOutput(path string, cfg driver.AdcConfig) *EDFOutput {
	return &EDFOutput{
		path:     path,
		cfg:      cfg,
		recvChan: make(chan *eeg.ProcessedData, recordBufferLength),
	}
}

func (e *EDFOutput) Receive() chan<- *eeg.ProcessedData {
	return e.recvChan
}

func (e *EDFOutput) Start(ctx context.Context) error {
	f, err := os.Create(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Wide enough for both offset-binary and signed code spaces under
	// the linear calibration.
	pmin := -3 * e.cfg.Vref / (2 * e.cfg.Gain)
	pmax := 3 * e.cfg.Vref / (2 * e.cfg.Gain)

	signals := make([]edf.SignalHeader, e.cfg.Channels)
	for ch := range signals {
		signals[ch] = edf.SignalHeader{
			Label:             fmt.Sprintf("EEG %d", ch+1),
			TransducerType:    "AgAgCl electrode",
			PhysicalDimension: "V",
			PhysicalMin:       pmin,
			PhysicalMax:       pmax,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  e.cfg.BatchSize,
		}
	}

	w, err := edf.Create(f, edf.Header{
		Version:            edf.Version0,
		RecordingID:        "neuracq session",
		StartTime:          time.Now(),
		DataRecordDuration: time.Duration(float64(e.cfg.BatchSize) / float64(e.cfg.SampleRate) * float64(time.Second)),
		SignalCount:        e.cfg.Channels,
		Signals:            signals,
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := w.Close(); err != nil {
				log.Warn().Err(err).Msg("error finalizing EDF file")
			}
			return ctx.Err()
		case rec := <-e.recvChan:
			// EDF data records have a fixed shape; records whose DSP
			// stage produced no voltages cannot be written.
			if len(rec.VoltageSamples) != e.cfg.Channels {
				log.Warn().Uint64("timestamp", rec.Timestamp).Msg("skipping record without voltages")
				continue
			}
			channels := make([][]float64, len(rec.VoltageSamples))
			for ch, row := range rec.VoltageSamples {
				out := make([]float64, len(row))
				for i, v := range row {
					out[i] = float64(v)
				}
				channels[ch] = out
			}
			if err := w.WriteRecord(channels); err != nil {
				return err
			}
		}
	}
}
