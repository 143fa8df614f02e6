package metadata

import (
	"strconv"

	"github.com/hbomb79/Tome/pkg/logger"
)

// addResourceAttributes writes the technical attributes of the container
// on to the resource provided. A single pass is made over the streams:
//   - the first video stream with a usable size provides the RESOLUTION
//   - the first audio stream with a usable sample rate provides the SAMPLEFREQUENCY
//   - every audio stream counts towards NRAUDIOCHANNELS, regardless of validity
func addResourceAttributes(resource Resource, container *Container) {
	if duration, ok := FormatDuration(container.Duration); ok {
		log.Emit(logger.VERBOSE, "Added duration: %s\n", duration)
		resource.AddAttribute(DurationAttribute, duration)
	} else {
		log.Emit(logger.VERBOSE, "Skipping duration: %d units does not satisfy write condition\n", container.Duration)
	}

	if bitrate, ok := FormatBitrate(container.BitRate); ok {
		log.Emit(logger.VERBOSE, "Added overall bitrate: %s kb/s\n", bitrate)
		resource.AddAttribute(BitrateAttribute, bitrate)
	}

	videoSet, audioSet := false, false
	audioStreams := 0
	for _, stream := range container.Streams {
		switch stream.Kind {
		case VideoStream:
			if videoSet {
				continue
			}

			if resolution, ok := FormatResolution(stream.Width, stream.Height); ok {
				log.Emit(logger.VERBOSE, "Added resolution: %s pixel\n", resolution)
				resource.AddAttribute(ResolutionAttribute, resolution)
				videoSet = true
			}
		case AudioStream:
			audioStreams++
			if audioSet {
				continue
			}

			if rate, ok := formatPositive(stream.SampleRate); ok {
				log.Emit(logger.VERBOSE, "Added sample frequency: %s Hz\n", rate)
				resource.AddAttribute(SampleFrequencyAttribute, rate)
				audioSet = true
			}
		}
	}

	// NB: this is the number of audio *streams*, not decoded channels.
	if audioStreams > 0 {
		log.Emit(logger.VERBOSE, "Added number of audio channels: %d\n", audioStreams)
		resource.AddAttribute(AudioChannelCountAttribute, strconv.Itoa(audioStreams))
	}
}
