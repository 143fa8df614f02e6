package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hbomb79/Tome/internal"
	"github.com/hbomb79/Tome/internal/api"
	"github.com/hbomb79/Tome/internal/api/items"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/ffmpeg"
	"github.com/stretchr/testify/require"
)

const (
	ServerBasePathTemplate = "%s://127.0.0.1:%d/api/tome/v1/"
	ActivityPath           = "activity/ws/"

	// The integration tests exercise the service plumbing, not ffprobe, so
	// probing is pointed at a binary that does not exist. Every media file
	// therefore fails to open, deterministically.
	missingFfprobe = "/nonexistent/tome/ffprobe"
)

// TestService holds information about an in-process
// Tome service which a test can make requests against.
type TestService struct {
	Port        int
	LibraryPath string
}

// RequireTome starts Tome, watching the library directory provided, on a
// free port. The service is stopped when the test completes.
func RequireTome(t *testing.T, libraryPath string) *TestService {
	port := freePort(t)
	config := internal.TomeConfig{
		Library:    catalog.Config{LibraryPath: libraryPath, ForceSyncSeconds: 1, Parallelism: 1, ProbeTimeoutSeconds: 10},
		Probe:      ffmpeg.Config{Backend: ffmpeg.FfprobeBackend, FfprobeBinaryPath: missingFfprobe},
		RestConfig: api.RestConfig{HostAddr: fmt.Sprintf("127.0.0.1:%d", port)},
		Charset:    "utf-8",
		LogLevel:   "warning",
	}

	tome, err := internal.New(config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tome.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	service := &TestService{Port: port, LibraryPath: libraryPath}
	require.NoError(t, service.waitForHealthy(50*time.Millisecond, 5*time.Second), "Tome never became healthy")
	return service
}

func (service *TestService) GetServerBasePath() string {
	return fmt.Sprintf(ServerBasePathTemplate, "http", service.Port)
}

func (service *TestService) GetActivityURL() string {
	return fmt.Sprintf(ServerBasePathTemplate, "ws", service.Port) + ActivityPath
}

func (service *TestService) ConnectToActivitySocket(t *testing.T) *websocket.Conn {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	ws, _, err := dialer.Dial(service.GetActivityURL(), nil)
	require.NoError(t, err, "failed to connect to activity socket")
	t.Cleanup(func() { ws.Close() })

	return ws
}

// ListItems fetches the catalog from the REST API.
func (service *TestService) ListItems(t *testing.T) []items.Dto {
	var dtos []items.Dto
	service.getJSON(t, "items/", &dtos)
	return dtos
}

func (service *TestService) GetItem(t *testing.T, id fmt.Stringer) items.Dto {
	var dto items.Dto
	service.getJSON(t, fmt.Sprintf("items/%s/", id), &dto)
	return dto
}

func (service *TestService) Post(t *testing.T, path string) int {
	resp, err := http.Post(service.GetServerBasePath()+path, "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	return resp.StatusCode
}

func (service *TestService) getJSON(t *testing.T, path string, out any) {
	resp, err := http.Get(service.GetServerBasePath() + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func (service *TestService) String() string {
	return fmt.Sprintf("TestService{port=%d library=%s}", service.Port, service.LibraryPath)
}

// waitForHealthy will ping the service (every pollFrequency) until the timeout is reached.
// If no successful request has been made when the timeout is reached, then the most
// recent error is returned to the caller.
func (service *TestService) waitForHealthy(pollFrequency time.Duration, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		resp, err := http.Get(service.GetServerBasePath() + "items/")
		if err == nil {
			resp.Body.Close()
			return nil
		}

		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(pollFrequency)
	}
}

func freePort(t *testing.T) int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
