package metadata

import (
	"errors"
	"fmt"
)

type ProbeStage int

const (
	OpenStage ProbeStage = iota
	StreamStage
)

var (
	ErrProbeOpen         = errors.New("container could not be opened")
	ErrProbeStreams      = errors.New("stream information could not be resolved")
	ErrNoPrimaryResource = errors.New("target has no primary resource")
)

// ProbeError is returned by the Extractor when the file could not
// be probed. These are soft failures: the target has not been modified,
// and the caller is free to try the same item again later.
type ProbeError struct {
	error
	Stage ProbeStage
	Path  string
}

func newProbeError(stage ProbeStage, path string, cause error) *ProbeError {
	return &ProbeError{error: cause, Stage: stage, Path: path}
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe of '%s' failed during %s: %s", e.Path, e.Stage, e.error)
}

func (e *ProbeError) Unwrap() error { return e.error }

// Is allows errors.Is to match a ProbeError against the sentinel
// error for the stage it failed in.
func (e *ProbeError) Is(target error) bool {
	switch e.Stage {
	case OpenStage:
		return target == ErrProbeOpen
	case StreamStage:
		return target == ErrProbeStreams
	}

	return false
}

func (s ProbeStage) String() string {
	switch s {
	case OpenStage:
		return fmt.Sprintf("OPEN[%d]", s)
	case StreamStage:
		return fmt.Sprintf("STREAMS[%d]", s)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", s)
	}
}
