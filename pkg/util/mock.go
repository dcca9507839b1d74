package util

import "github.com/influxdata/influxdb-client-go/api/write"

// MockWriteAPI is the no-op metrics sink used when no InfluxDB client
// is configured, so instrumented code never has to nil-check.
type MockWriteAPI struct{}

// WriteRecord discards the line protocol record.
func (m *MockWriteAPI) WriteRecord(line string) {}

// WritePoint discards the point.
func (m *MockWriteAPI) WritePoint(point *write.Point) {}

// Flush is a no-op.
func (m *MockWriteAPI) Flush() {}

// Close is a no-op.
func (m *MockWriteAPI) Close() {}

// Errors returns a nil channel; the mock never produces write errors.
func (m *MockWriteAPI) Errors() <-chan error { return nil }
