package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowType
		wantErr bool
	}{
		{"", Hann, false},
		{"hann", Hann, false},
		{"hamming", Hamming, false},
		{"blackman", Blackman, false},
		{"kaiser", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWindowTaps(t *testing.T) {
	const n = 65

	for _, w := range []WindowType{Hann, Hamming, Blackman} {
		taps := w.Taps(n)
		require.Len(t, taps, n)

		// Symmetric about the center, peak at the center.
		for i := 0; i < n/2; i++ {
			assert.InDelta(t, taps[i], taps[n-1-i], 1e-12, "%s tap %d", w, i)
			assert.LessOrEqual(t, taps[i], taps[n/2], "%s tap %d", w, i)
		}
	}

	// Hann and Blackman endpoints go to (near) zero, Hamming does not.
	assert.InDelta(t, 0, Hann.Taps(n)[0], 1e-12)
	assert.InDelta(t, 0, Blackman.Taps(n)[0], 1e-12)
	assert.InDelta(t, 0.08, Hamming.Taps(n)[0], 1e-12)
}

func TestWindowTapsSingleSample(t *testing.T) {
	for _, w := range []WindowType{Hann, Hamming, Blackman} {
		taps := w.Taps(1)
		require.Len(t, taps, 1)
		assert.False(t, taps[0] != taps[0], "NaN tap") // no 0/0 from M=0
	}
}
