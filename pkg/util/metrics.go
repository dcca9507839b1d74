package util

import "time"

// TimeOperationMicroseconds runs op and returns its wall-clock duration
// in microseconds, for attaching to metrics points.
func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}
