package dsp

import (
	"fmt"
	"math"
)

type WindowType int

const (
	Hann WindowType = iota
	Hamming
	Blackman
)

// ParseWindow maps a config string to a WindowType.
func ParseWindow(s string) (WindowType, error) {
	switch s {
	case "", "hann":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	}
	return 0, fmt.Errorf("unknown window type %q", s)
}

func (w WindowType) String() string {
	switch w {
	case Hann:
		return "hann"
	case Hamming:
		return "hamming"
	case Blackman:
		return "blackman"
	}
	return fmt.Sprintf("unknown(%d)", int(w))
}

// Taps returns the window coefficients for an n-sample frame.
func (w WindowType) Taps(n int) []float64 {
	switch w {
	case Hamming:
		return cosWindow(n, 0.54, 0.46, 0)
	case Blackman:
		return cosWindow(n, 0.42, 0.5, 0.08)
	default:
		return cosWindow(n, 0.5, 0.5, 0)
	}
}

func cosWindow(n int, c0, c1, c2 float64) []float64 {
	ret := make([]float64, n)
	if n == 1 {
		ret[0] = c0
		return ret
	}
	M := float64(n - 1)
	for i := 0; i < n; i++ {
		fi := float64(i)
		ret[i] = c0 - c1*math.Cos((2*math.Pi*fi)/M) + c2*math.Cos((4*math.Pi*fi)/M)
	}
	return ret
}
