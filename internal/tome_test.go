package internal

import (
	"context"
	"testing"
	"time"

	"github.com/hbomb79/Tome/internal/api"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/ffmpeg"
	"gotest.tools/v3/assert"
)

func testConfig(t *testing.T, hostAddr string) TomeConfig {
	return TomeConfig{
		Library:    catalog.Config{LibraryPath: t.TempDir(), ForceSyncSeconds: 60, Parallelism: 1, ProbeTimeoutSeconds: 5},
		Probe:      ffmpeg.Config{Backend: ffmpeg.FfprobeBackend, FfprobeBinaryPath: "ffprobe"},
		RestConfig: api.RestConfig{HostAddr: hostAddr},
		Charset:    "utf-8",
		LogLevel:   "error",
	}
}

func Test_Tome_RunsUntilCancelled(t *testing.T) {
	tome, err := New(testConfig(t, "127.0.0.1:0"))
	assert.NilError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	assert.NilError(t, tome.Run(ctx))
}

func Test_Tome_ServiceCrashStopsAll(t *testing.T) {
	tome, err := New(testConfig(t, "not-an-address"))
	assert.NilError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = tome.Run(ctx)
	assert.ErrorContains(t, err, "rest-gateway")
	assert.Assert(t, ctx.Err() == nil, "crash must stop Tome before the parent context expires")
}

func Test_New_InvalidConfig(t *testing.T) {
	config := testConfig(t, "127.0.0.1:0")
	config.Charset = "not-a-charset"
	_, err := New(config)
	assert.ErrorContains(t, err, "charset")

	config = testConfig(t, "127.0.0.1:0")
	config.Probe.Backend = "libav"
	_, err = New(config)
	assert.ErrorContains(t, err, "prober")
}
