package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/floostack/transcoder"
	tffmpeg "github.com/floostack/transcoder/ffmpeg"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const transcoderOutput = `{
    "streams": [
        { "codec_type": "video", "width": 1280, "height": 720 },
        { "codec_type": "audio" },
        { "codec_type": "subtitle" }
    ],
    "format": { "nb_streams": 3, "duration": "2700.250000", "bit_rate": "192000" }
}`

// errLibraryChatter mimics the transcoder library, which embeds everything
// ffprobe printed in to the error it returns.
var errLibraryChatter = errors.New("exit status 1 | message:  ffprobe version 6.0 Copyright (c) [mov,mp4 @ 0x55] moov atom not found")

func decodeTranscoderMetadata(t *testing.T, out string) transcoder.Metadata {
	meta := &tffmpeg.Metadata{}
	require.NoError(t, json.Unmarshal([]byte(out), meta))
	return meta
}

func newTestTranscoderProber(read metadataReader) *TranscoderProber {
	prober := NewTranscoderProber(Config{FfprobeBinaryPath: "/opt/ffprobe"})
	prober.read = read
	return prober
}

func Test_TranscoderProber_DecodesContainer(t *testing.T) {
	path := tempMediaFile(t)
	meta := decodeTranscoderMetadata(t, transcoderOutput)

	var readPath string
	prober := newTestTranscoderProber(func(p string) (transcoder.Metadata, error) {
		readPath = p
		return meta, nil
	})

	handle, err := prober.Open(context.Background(), path)
	require.NoError(t, err)
	defer handle.Close()
	assert.Equal(t, path, readPath)

	container := handle.Container()
	require.NotNil(t, container)
	assert.Equal(t, int64(2_700_250_000), container.Duration)
	assert.Equal(t, int64(192_000), container.BitRate)
	assert.Empty(t, container.Streams, "streams are not decoded until resolved")
	assert.Empty(t, container.Title, "the library does not expose tags")

	require.NoError(t, handle.ResolveStreams())
	assert.Equal(t, []metadata.Stream{
		{Kind: metadata.VideoStream, Width: 1280, Height: 720},
		{Kind: metadata.AudioStream},
		{Kind: metadata.OtherStream},
	}, handle.Container().Streams)

	assert.NoError(t, handle.Close())
	assert.Nil(t, handle.Container())
	assert.ErrorIs(t, handle.ResolveStreams(), ErrHandleClosed)
}

func Test_TranscoderProber_StreamCountMismatch(t *testing.T) {
	meta := decodeTranscoderMetadata(t, `{"format": {"nb_streams": 2}, "streams": [{"codec_type": "audio"}]}`)
	prober := newTestTranscoderProber(func(string) (transcoder.Metadata, error) { return meta, nil })

	handle, err := prober.Open(context.Background(), tempMediaFile(t))
	require.NoError(t, err)
	defer handle.Close()

	assert.ErrorIs(t, handle.ResolveStreams(), ErrStreamCount)
}

func Test_TranscoderProber_FailureDetailOnlyInDiagnostics(t *testing.T) {
	path := tempMediaFile(t)
	prober := newTestTranscoderProber(func(string) (transcoder.Metadata, error) { return nil, errLibraryChatter })

	tests := []struct {
		summary string
		sink    *bytes.Buffer
	}{
		{"Diagnostics discarded", nil},
		{"Diagnostics captured", &bytes.Buffer{}},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			if tt.sink != nil {
				prober.SetDiagnosticOutput(tt.sink)
			}

			handle, err := prober.Open(context.Background(), path)
			assert.Nil(t, handle)
			require.ErrorIs(t, err, ErrUnreadableContainer)
			assert.NotContains(t, err.Error(), "ffprobe version")
			assert.NotContains(t, err.Error(), "moov atom")

			if tt.sink != nil {
				assert.Contains(t, tt.sink.String(), "moov atom not found")
			}
		})
	}
}

func Test_TranscoderProber_OpenHonoursDeadline(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	prober := newTestTranscoderProber(func(string) (transcoder.Metadata, error) {
		<-release
		return nil, errors.New("read abandoned")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	handle, err := prober.Open(ctx, tempMediaFile(t))
	assert.Nil(t, handle)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "Open must not wait for the library once the deadline passes")
}

func Test_TranscoderProber_OpenFailsFast(t *testing.T) {
	reads := 0
	prober := newTestTranscoderProber(func(string) (transcoder.Metadata, error) {
		reads++
		return nil, nil
	})

	_, err := prober.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mkv"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = prober.Open(ctx, tempMediaFile(t))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, reads)
}

func Test_TranscoderProber_ThroughExtractor(t *testing.T) {
	path := tempMediaFile(t)
	prober := newTestTranscoderProber(func(string) (transcoder.Metadata, error) { return nil, errLibraryChatter })

	err := metadata.NewExtractor(prober, nil).FillMetadata(context.Background(), catalog.NewItem(path, "video/mp4"))
	var probeErr *metadata.ProbeError
	require.ErrorAs(t, err, &probeErr)
	assert.Equal(t, metadata.OpenStage, probeErr.Stage)
	assert.NotContains(t, err.Error(), "moov atom")
}
