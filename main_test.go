package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/stretchr/testify/assert"
)

type scriptedFiller struct{}

func (scriptedFiller) FillMetadata(_ context.Context, target metadata.Target) error {
	if strings.HasSuffix(target.Location(), ".bad") {
		return errors.New("unsupported container")
	}

	target.SetMetadata(metadata.TitleKey, "A Song")
	target.SetMetadata(metadata.TrackNumberKey, "2")
	target.Resource(0).AddAttribute(metadata.SampleFrequencyAttribute, "44100")
	return nil
}

func Test_ProbeFiles(t *testing.T) {
	tests := []struct {
		summary  string
		upnp     bool
		expected string
	}{
		{"Canonical keys", false, "/media/song.flac\n  TITLE: A Song\n  TRACKNUMBER: 2\n  res[0] SAMPLEFREQUENCY: 44100\n"},
		{"UPnP keys", true, "/media/song.flac\n  dc:title: A Song\n  upnp:originalTrackNumber: 2\n  res[0] sampleFrequency: 44100\n"},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
			err := probeFiles(context.Background(), scriptedFiller{}, []string{"/media/song.flac"}, out, errOut, tt.upnp)

			assert.NoError(t, err)
			assert.Equal(t, tt.expected, out.String())
			assert.Empty(t, errOut.String())
		})
	}
}

func Test_ProbeFiles_ReportsFailures(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	err := probeFiles(context.Background(), scriptedFiller{}, []string{"/media/a.bad", "/media/b.flac"}, out, errOut, false)

	assert.EqualError(t, err, "1 of 2 files could not be probed")
	assert.Equal(t, "/media/a.bad: unsupported container\n", errOut.String())
	assert.True(t, strings.HasPrefix(out.String(), "/media/b.flac\n"), "remaining files must still be probed")
}
