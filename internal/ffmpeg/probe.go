package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/hbomb79/Tome/pkg/logger"
)

var log = logger.Get("Probe")

// timeBaseDigits is the number of fractional digits representable
// in metadata.TimeBase units.
const timeBaseDigits = 6

var (
	ErrNoFormat     = errors.New("ffprobe output contains no format information")
	ErrNoStreams    = errors.New("ffprobe output contains no stream information")
	ErrStreamCount  = errors.New("number of streams reported does not match the container")
	ErrHandleClosed = errors.New("probe handle has been closed")

	// ErrUnreadableContainer is reported when ffprobe rejects a file. The
	// reason ffprobe gives is only written to the diagnostic output.
	ErrUnreadableContainer = errors.New("container could not be read")
)

type (
	// commandRunner executes the binary provided, returning the contents of stdout. Anything
	// the command writes to stderr must be sent to the writer provided.
	commandRunner func(ctx context.Context, binary string, args []string, stderr io.Writer) ([]byte, error)

	ffprobeOutput struct {
		Format  *ffprobeFormat  `json:"format"`
		Streams json.RawMessage `json:"streams"`
		Error   *ffprobeError   `json:"error"`
	}

	ffprobeFormat struct {
		Filename   string            `json:"filename"`
		NbStreams  int               `json:"nb_streams"`
		FormatName string            `json:"format_name"`
		Duration   string            `json:"duration"`
		BitRate    string            `json:"bit_rate"`
		Tags       map[string]string `json:"tags"`
	}

	ffprobeStream struct {
		Index      int    `json:"index"`
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		SampleRate string `json:"sample_rate"`
	}

	ffprobeError struct {
		Code   int    `json:"code"`
		String string `json:"string"`
	}

	// FfprobeProber is a metadata.MediaProber which inspects files by running
	// the ffprobe binary and decoding it's JSON output.
	FfprobeProber struct {
		sync.RWMutex
		binaryPath  string
		diagnostics io.Writer
		run         commandRunner
	}

	ffprobeHandle struct {
		path      string
		nbStreams int
		streams   json.RawMessage
		container *metadata.Container
		closed    bool
	}
)

func NewFfprobeProber(config Config) *FfprobeProber {
	return &FfprobeProber{
		binaryPath:  config.FfprobeBinaryPath,
		diagnostics: io.Discard,
		run:         execCommand,
	}
}

// SetDiagnosticOutput replaces the sink that ffprobe's own diagnostic output
// is written to (discarded by default). This is process-wide configuration
// for the prober and should be performed once, before any probing begins.
func (prober *FfprobeProber) SetDiagnosticOutput(w io.Writer) {
	prober.Lock()
	defer prober.Unlock()

	if w == nil {
		w = io.Discard
	}
	prober.diagnostics = w
}

// Open runs ffprobe against the file and decodes the container-level
// information. The stream information is retained, but not decoded
// until ResolveStreams is called on the returned handle.
func (prober *FfprobeProber) Open(ctx context.Context, path string) (metadata.ProbeHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	prober.RLock()
	diagnostics := prober.diagnostics
	prober.RUnlock()

	verbosity := "quiet"
	if diagnostics != io.Discard {
		verbosity = "error"
	}

	args := []string{
		"-v", verbosity,
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-show_error",
		path,
	}

	out, runErr := prober.run(ctx, prober.binaryPath, args, diagnostics)

	var output ffprobeOutput
	if err := json.Unmarshal(out, &output); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("ffprobe failed: %w", runErr)
		}

		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	if output.Error != nil {
		fmt.Fprintf(diagnostics, "ffprobe failed to read %s: %s\n", path, output.Error.String)
		return nil, fmt.Errorf("ffprobe failed (code %d): %w", output.Error.Code, ErrUnreadableContainer)
	} else if runErr != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", runErr)
	} else if output.Format == nil {
		return nil, ErrNoFormat
	}

	log.Emit(logger.VERBOSE, "Opened %s (format %s)\n", path, output.Format.FormatName)
	return &ffprobeHandle{
		path:      path,
		nbStreams: output.Format.NbStreams,
		streams:   output.Streams,
		container: containerFromFormat(output.Format),
	}, nil
}

func (handle *ffprobeHandle) ResolveStreams() error {
	if handle.closed {
		return ErrHandleClosed
	}
	if len(handle.streams) == 0 {
		return ErrNoStreams
	}

	var streams []ffprobeStream
	if err := json.Unmarshal(handle.streams, &streams); err != nil {
		return fmt.Errorf("failed to parse ffprobe streams: %w", err)
	}
	if handle.nbStreams > 0 && len(streams) != handle.nbStreams {
		return fmt.Errorf("%w: expected %d, found %d", ErrStreamCount, handle.nbStreams, len(streams))
	}

	handle.container.Streams = make([]metadata.Stream, 0, len(streams))
	for _, s := range streams {
		handle.container.Streams = append(handle.container.Streams, metadata.Stream{
			Kind:       metadata.ParseStreamKind(s.CodecType),
			Width:      s.Width,
			Height:     s.Height,
			SampleRate: parseLeadingInt(s.SampleRate),
		})
	}

	return nil
}

func (handle *ffprobeHandle) Container() *metadata.Container {
	if handle.closed {
		return nil
	}

	return handle.container
}

func (handle *ffprobeHandle) Close() error {
	if handle.closed {
		return nil
	}

	handle.closed = true
	handle.streams = nil
	handle.container = nil
	return nil
}

func containerFromFormat(format *ffprobeFormat) *metadata.Container {
	tags := make(map[string]string, len(format.Tags))
	for k, v := range format.Tags {
		tags[strings.ToLower(k)] = strings.TrimSpace(v)
	}

	bitRate, _ := strconv.ParseInt(format.BitRate, 10, 64)
	return &metadata.Container{
		Title:    lookupTag(tags, "title"),
		Author:   lookupTag(tags, "artist", "author"),
		Album:    lookupTag(tags, "album"),
		Genre:    lookupTag(tags, "genre"),
		Comment:  lookupTag(tags, "comment"),
		Year:     parseLeadingInt(lookupTag(tags, "date", "year")),
		Track:    parseLeadingInt(lookupTag(tags, "track")),
		Duration: parseTimestamp(format.Duration),
		BitRate:  bitRate,
	}
}

// lookupTag returns the value of the first tag found, in the order
// of the names provided. Tag names are expected to be lowercase.
func lookupTag(tags map[string]string, names ...string) string {
	for _, name := range names {
		if v, ok := tags[name]; ok && v != "" {
			return v
		}
	}

	return ""
}

// parseTimestamp converts a decimal seconds value as printed by
// ffprobe (e.g. '3661.400000') in to metadata.TimeBase units without
// going through a float. Unparseable or negative values (such as 'N/A'
// or '-0.5') yield 0.
func parseTimestamp(value string) int64 {
	if value == "" {
		return 0
	}

	if strings.HasPrefix(value, "-") {
		return 0
	}

	whole, frac, _ := strings.Cut(value, ".")
	secs, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || secs < 0 {
		return 0
	}

	units := secs * metadata.TimeBase
	if frac == "" {
		return units
	}

	if len(frac) > timeBaseDigits {
		frac = frac[:timeBaseDigits]
	} else {
		frac += strings.Repeat("0", timeBaseDigits-len(frac))
	}

	fracUnits, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || fracUnits < 0 {
		return 0
	}

	return units + fracUnits
}

// parseLeadingInt parses the leading run of digits in the value
// provided, so that '3/12' yields 3 and '2023-05-01' yields 2023.
func parseLeadingInt(value string) int {
	end := 0
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}

	v, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0
	}

	return v
}

func execCommand(ctx context.Context, binary string, args []string, stderr io.Writer) ([]byte, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	return stdout.Bytes(), err
}
