package dsp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies DSP failures. Both kinds are recovered locally
// by the orchestrator: the record is still emitted with whatever
// fields were computed before the failure.
type ErrorKind int

const (
	ShapeMismatch ErrorKind = iota
	SpectralAnalysisFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ShapeMismatch:
		return "shape mismatch"
	case SpectralAnalysisFailed:
		return "spectral analysis failed"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return "dsp: " + e.Kind.String()
	}
	return fmt.Sprintf("dsp: %s: %s", e.Kind, e.Msg)
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}
