package eeg

import "context"

// Output consumes emitted records. The orchestrator hands records over
// with a non-blocking send: a sink that falls behind misses records
// rather than stalling the acquisition cadence.
type Output interface {
	Receive() chan<- *ProcessedData
	Start(ctx context.Context) error
}

// Observer sees every emitted record synchronously. Implementations
// must return quickly; the monitor server is the intended consumer.
type Observer interface {
	Observe(*ProcessedData)
}
