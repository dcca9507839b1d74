package ads1299

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFrame assembles a well-formed frame for the given codes,
// computing the checksum the way the bridge firmware does.
func buildFrame(counter byte, codes []int32) []byte {
	buf := []byte{frameHeader, counter}
	for _, code := range codes {
		buf = append(buf, byte(code>>16), byte(code>>8), byte(code))
	}
	var sum byte
	for _, b := range buf[1:] {
		sum ^= b
	}
	return append(buf, sum)
}

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name    string
		counter byte
		codes   []int32
	}{
		{"two channels positive", 0, []int32{0x123456, 0x000001}},
		{"negative sign extension", 42, []int32{-1, -8388608}},
		{"full positive scale", 255, []int32{8388607}},
		{"zeros", 7, []int32{0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := buildFrame(tt.counter, tt.codes)
			require.Len(t, frame, frameSize(len(tt.codes)))

			codes, counter, err := parseFrame(frame, len(tt.codes))
			require.NoError(t, err)
			assert.Equal(t, tt.counter, counter)
			assert.Equal(t, tt.codes, codes)
		})
	}
}

func TestParseFrameBadHeader(t *testing.T) {
	frame := buildFrame(0, []int32{100, -100})
	frame[0] = 0xC0

	_, _, err := parseFrame(frame, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header")
}

func TestParseFrameCorruptPayload(t *testing.T) {
	frame := buildFrame(0, []int32{100, -100})
	frame[3] ^= 0xFF // flip a payload byte, checksum no longer matches

	_, _, err := parseFrame(frame, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 6, frameSize(1))
	assert.Equal(t, 27, frameSize(8))
}
