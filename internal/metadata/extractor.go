// Package metadata extracts descriptive tags and technical attributes from
// media files and normalises them on to catalog items under a closed,
// canonical vocabulary of keys.
package metadata

import (
	"context"
	"io"
	"strings"

	"github.com/hbomb79/Tome/pkg/logger"
)

var log = logger.Get("Extractor")

type nopConverter struct{}

func (nopConverter) Convert(s string) (string, error) { return s, nil }

// Extractor populates catalog items using a MediaProber. An Extractor holds
// no per-call state, so a single instance may be shared between goroutines
// as long as each call is given a different target.
type Extractor struct {
	prober    MediaProber
	converter Converter
}

// NewExtractor creates an Extractor. If converter is nil, text values are
// written exactly as the prober reports them.
func NewExtractor(prober MediaProber, converter Converter) *Extractor {
	if converter == nil {
		converter = nopConverter{}
	}

	return &Extractor{prober: prober, converter: converter}
}

// FillMetadata probes the file at the targets location and writes the
// descriptive tags followed by the resource attributes on to the target.
//
// The target must already have a resource at index 0, else ErrNoPrimaryResource
// is returned. If the file cannot be opened, or its streams cannot be
// resolved, a *ProbeError is returned and the target is left unmodified.
func (extractor *Extractor) FillMetadata(ctx context.Context, target Target) error {
	resource := target.Resource(0)
	if resource == nil {
		return ErrNoPrimaryResource
	}

	path := target.Location()
	log.Emit(logger.DEBUG, "Probing %s\n", path)

	handle, err := extractor.prober.Open(ctx, path)
	if err != nil {
		log.Emit(logger.DEBUG, "Failed to open %s: %v\n", path, err)
		return newProbeError(OpenStage, path, err)
	}
	defer func() {
		if err := handle.Close(); err != nil {
			log.Emit(logger.WARNING, "Failed to close probe handle for %s: %v\n", path, err)
		}
	}()

	if err := handle.ResolveStreams(); err != nil {
		log.Emit(logger.DEBUG, "Failed to resolve streams of %s: %v\n", path, err)
		return newProbeError(StreamStage, path, err)
	}

	container := handle.Container()
	if container == nil {
		return newProbeError(StreamStage, path, ErrProbeStreams)
	}

	addDescriptiveTags(target, container, extractor.converter)
	addResourceAttributes(resource, container)

	log.Emit(logger.DEBUG, "Extracted metadata for %s\n", path)
	return nil
}

// ServeContent exists for parity with other content handlers of the
// catalog; metadata extraction never serves the bytes of a resource, so
// no reader is returned and the size is reported as unknown (-1).
func (extractor *Extractor) ServeContent(_ Target, _ int) (io.ReadCloser, int64, error) {
	return nil, -1, nil
}

// WarrantsInspection reports whether an item of the given mimetype
// should be deep-inspected by the Extractor (audio and video only).
func WarrantsInspection(mimetype string) bool {
	return strings.HasPrefix(mimetype, "audio/") || strings.HasPrefix(mimetype, "video/")
}
