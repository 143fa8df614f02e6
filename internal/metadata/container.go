package metadata

import "fmt"

// TimeBase is the number of duration units in one second. Container
// durations reported by a MediaProber must be expressed in this base.
const TimeBase int64 = 1_000_000

type (
	StreamKind int

	// Stream describes a single elementary stream inside of a
	// container. Width/Height are only meaningful for video streams, and
	// SampleRate only for audio streams.
	Stream struct {
		Kind       StreamKind
		Width      int
		Height     int
		SampleRate int
	}

	// Container is the container-level description of a probed
	// media file. Zero values (empty strings, 0) mean 'absent'. The
	// Streams slice is in container order and must not be re-ordered.
	Container struct {
		Title   string
		Author  string
		Album   string
		Genre   string
		Comment string
		Year    int
		Track   int

		// Duration in TimeBase units
		Duration int64

		// BitRate in bits/second
		BitRate int64

		Streams []Stream
	}
)

const (
	OtherStream StreamKind = iota
	VideoStream
	AudioStream
)

func (k StreamKind) String() string {
	switch k {
	case VideoStream:
		return fmt.Sprintf("VIDEO[%d]", k)
	case AudioStream:
		return fmt.Sprintf("AUDIO[%d]", k)
	case OtherStream:
		return fmt.Sprintf("OTHER[%d]", k)
	default:
		return fmt.Sprintf("UNKNOWN[%d]", k)
	}
}

// ParseStreamKind maps a codec type name, as reported by
// ffprobe ('video', 'audio', 'subtitle', 'data', ...), to a StreamKind.
func ParseStreamKind(codecType string) StreamKind {
	switch codecType {
	case "video":
		return VideoStream
	case "audio":
		return AudioStream
	default:
		return OtherStream
	}
}
