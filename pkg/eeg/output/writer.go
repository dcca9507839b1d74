// Package output provides record sinks for the acquisition pipeline:
// JSON lines to an io.Writer, wire-form datagrams over UDP, and EDF
// recordings on disk. All sinks implement eeg.Output and tolerate the
// orchestrator skipping them when their buffers are full.
package output

import (
	"context"
	"encoding/json"
	"io"

	"github.com/neuracq/neuracq/pkg/eeg"
)

const recordBufferLength = 8

// WriterOutput streams records as JSON lines to an arbitrary writer,
// typically stdout or a log file.
type WriterOutput struct {
	dest     io.Writer
	recvChan chan *eeg.ProcessedData
}

func NewWriterOutput(dest io.Writer) *WriterOutput {
	return &WriterOutput{
		dest:     dest,
		recvChan: make(chan *eeg.ProcessedData, recordBufferLength),
	}
}

func (w *WriterOutput) Receive() chan<- *eeg.ProcessedData {
	return w.recvChan
}

func (w *WriterOutput) Start(ctx context.Context) error {
	enc := json.NewEncoder(w.dest)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec := <-w.recvChan:
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	}
}
