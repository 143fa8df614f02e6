package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/floostack/transcoder"
	"github.com/floostack/transcoder/ffmpeg"
	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/hbomb79/Tome/pkg/logger"
)

type (
	// metadataReader reads the metadata of the file at the path provided.
	metadataReader func(path string) (transcoder.Metadata, error)

	// TranscoderProber is a metadata.MediaProber backed by the transcoder
	// library. The library's metadata model does not expose format tags
	// or audio sample rates, so these are always reported as absent;
	// durations, bit rates, stream kinds and video sizes are available.
	TranscoderProber struct {
		sync.RWMutex
		diagnostics io.Writer
		read        metadataReader
	}

	transcoderHandle struct {
		metadata  transcoder.Metadata
		container *metadata.Container
		closed    bool
	}

	readResult struct {
		metadata transcoder.Metadata
		err      error
	}
)

func NewTranscoderProber(config Config) *TranscoderProber {
	cfg := ffmpeg.Config{FfprobeBinPath: config.FfprobeBinaryPath}
	return &TranscoderProber{
		diagnostics: io.Discard,
		read: func(path string) (transcoder.Metadata, error) {
			return ffmpeg.New(&cfg).Input(path).GetMetadata()
		},
	}
}

// SetDiagnosticOutput replaces the sink that failures reported by the
// transcoder library are written to (discarded by default). The library
// includes ffprobe's own output in it's errors, which must not reach
// the catalog.
func (prober *TranscoderProber) SetDiagnosticOutput(w io.Writer) {
	prober.Lock()
	defer prober.Unlock()

	if w == nil {
		w = io.Discard
	}
	prober.diagnostics = w
}

// Open reads the metadata of the file using the transcoder library. The
// library gives no way to interrupt ffprobe, so if the context is done
// first Open returns immediately and the read is left to finish in
// the background.
func (prober *TranscoderProber) Open(ctx context.Context, path string) (metadata.ProbeHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	resultChan := make(chan readResult, 1)
	go func() {
		meta, err := prober.read(path)
		resultChan <- readResult{meta, err}
	}()

	var result readResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-resultChan:
	}

	if result.err != nil {
		prober.RLock()
		fmt.Fprintf(prober.diagnostics, "transcoder failed to read %s: %v\n", path, result.err)
		prober.RUnlock()

		return nil, fmt.Errorf("transcoder failed: %w", ErrUnreadableContainer)
	} else if result.metadata == nil || result.metadata.GetFormat() == nil {
		return nil, ErrNoFormat
	}

	format := result.metadata.GetFormat()
	bitRate, _ := strconv.ParseInt(format.GetBitRate(), 10, 64)
	log.Emit(logger.VERBOSE, "Opened %s using transcoder\n", path)
	return &transcoderHandle{
		metadata: result.metadata,
		container: &metadata.Container{
			Duration: parseTimestamp(format.GetDuration()),
			BitRate:  bitRate,
		},
	}, nil
}

func (handle *transcoderHandle) ResolveStreams() error {
	if handle.closed {
		return ErrHandleClosed
	}

	streams := handle.metadata.GetStreams()
	if expected := handle.metadata.GetFormat().GetNbStreams(); expected > 0 && len(streams) != expected {
		return fmt.Errorf("%w: expected %d, found %d", ErrStreamCount, expected, len(streams))
	}

	handle.container.Streams = make([]metadata.Stream, 0, len(streams))
	for _, s := range streams {
		handle.container.Streams = append(handle.container.Streams, metadata.Stream{
			Kind:   metadata.ParseStreamKind(s.GetCodecType()),
			Width:  s.GetWidth(),
			Height: s.GetHeight(),
		})
	}

	return nil
}

func (handle *transcoderHandle) Container() *metadata.Container {
	if handle.closed {
		return nil
	}

	return handle.container
}

func (handle *transcoderHandle) Close() error {
	handle.closed = true
	handle.metadata = nil
	handle.container = nil
	return nil
}
