package ffmpeg

import (
	"fmt"
	"os"

	"github.com/hbomb79/Tome/internal/metadata"
)

const (
	FfprobeBackend    = "ffprobe"
	TranscoderBackend = "transcoder"
)

// Config controls which probing backend is used to inspect media
// files, and where the binaries it relies on can be found.
type Config struct {
	FfprobeBinaryPath string `yaml:"ffprobe_binary" env:"PROBE_FFPROBE_BINARY_PATH" env-default:"/usr/bin/ffprobe" validate:"required"`
	Backend           string `yaml:"backend" env:"PROBE_BACKEND" env-default:"ffprobe" validate:"oneof=ffprobe transcoder"`

	// Verbose forwards the diagnostic output of ffprobe (or the transcoder
	// library) to stderr, instead of discarding it. Only useful when
	// debugging a misbehaving file.
	Verbose bool `yaml:"verbose" env:"PROBE_VERBOSE" env-default:"false"`
}

// NewProber constructs the MediaProber selected by the configuration. The
// diagnostic output of the prober is configured here, once, so that
// callers of the prober never have to.
func NewProber(config Config) (metadata.MediaProber, error) {
	switch config.Backend {
	case FfprobeBackend, "":
		prober := NewFfprobeProber(config)
		if config.Verbose {
			prober.SetDiagnosticOutput(os.Stderr)
		}

		return prober, nil
	case TranscoderBackend:
		prober := NewTranscoderProber(config)
		if config.Verbose {
			prober.SetDiagnosticOutput(os.Stderr)
		}

		return prober, nil
	default:
		return nil, fmt.Errorf("unknown probe backend '%s'", config.Backend)
	}
}
