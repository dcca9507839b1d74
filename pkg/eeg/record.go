package eeg

import (
	"encoding/json"
	"errors"

	"github.com/neuracq/neuracq/pkg/dsp"
	"github.com/neuracq/neuracq/pkg/eeg/driver"
)

// ProcessedData is the record emitted once per acquisition batch. It is
// never mutated after publication. RawSamples is always populated when
// acquisition succeeded, even if the DSP stage failed for this batch;
// in that case Error carries the failure and the downstream fields hold
// whatever was computed before it.
//
// Spectra is a single composite: power spectra and frequency bins are
// structurally either both present or both absent.
type ProcessedData struct {
	Timestamp      uint64          // monotonic nanoseconds, strictly increasing per session
	RawSamples     driver.RawBatch // channels x samples, ADC codes
	VoltageSamples [][]float32     // same shape, calibrated volts
	Spectra        *dsp.Spectra    // nil when spectral analysis is disabled or failed
	Error          string          // non-empty when DSP partially failed for this record
}

// wireRecord is the serialized form. The joint presence rule for
// power_spectrums/frequency_bins is enforced on both directions.
type wireRecord struct {
	Timestamp      uint64      `json:"timestamp"`
	RawSamples     [][]int32   `json:"raw_samples"`
	VoltageSamples [][]float32 `json:"processed_voltage_samples"`
	PowerSpectrums [][]float32 `json:"power_spectrums,omitempty"`
	FrequencyBins  [][]float32 `json:"frequency_bins,omitempty"`
	Error          string      `json:"error,omitempty"`
}

func (p *ProcessedData) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Timestamp:      p.Timestamp,
		RawSamples:     p.RawSamples,
		VoltageSamples: p.VoltageSamples,
		Error:          p.Error,
	}
	if p.Spectra != nil {
		w.PowerSpectrums = p.Spectra.Power
		w.FrequencyBins = p.Spectra.Bins
	}
	return json.Marshal(w)
}

func (p *ProcessedData) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if (w.PowerSpectrums == nil) != (w.FrequencyBins == nil) {
		return errors.New("record has power_spectrums or frequency_bins without the other")
	}
	*p = ProcessedData{
		Timestamp:      w.Timestamp,
		RawSamples:     w.RawSamples,
		VoltageSamples: w.VoltageSamples,
		Error:          w.Error,
	}
	if w.PowerSpectrums != nil {
		p.Spectra = &dsp.Spectra{Power: w.PowerSpectrums, Bins: w.FrequencyBins}
	}
	return nil
}
