package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/event"
	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/hbomb79/Tome/pkg/logger"
	"github.com/hbomb79/Tome/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCorrupt = errors.New("test: corrupt container")

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

// fakeProber serves containers keyed by the file extension
// of the path being opened.
type fakeProber struct {
	sync.Mutex
	containers map[string]metadata.Container
	opens      map[string]int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		containers: map[string]metadata.Container{
			".mkv": {
				Title:    "A Film",
				Duration: 3_661_500_000,
				BitRate:  4_000_000,
				Streams: []metadata.Stream{
					{Kind: metadata.VideoStream, Width: 1280, Height: 720},
					{Kind: metadata.AudioStream, SampleRate: 48000},
				},
			},
			".mp3": {
				Title:  "A Song",
				Author: "Someone",
				Track:  4,
				Streams: []metadata.Stream{
					{Kind: metadata.AudioStream, SampleRate: 44100},
				},
			},
		},
		opens: make(map[string]int),
	}
}

func (prober *fakeProber) Open(ctx context.Context, path string) (metadata.ProbeHandle, error) {
	prober.Lock()
	defer prober.Unlock()

	prober.opens[path]++
	container, ok := prober.containers[filepath.Ext(path)]
	if !ok {
		return nil, errCorrupt
	}

	return &fakeHandle{container: &container}, nil
}

func (prober *fakeProber) openCount(path string) int {
	prober.Lock()
	defer prober.Unlock()
	return prober.opens[path]
}

type fakeHandle struct{ container *metadata.Container }

func (handle *fakeHandle) ResolveStreams() error           { return nil }
func (handle *fakeHandle) Container() *metadata.Container { return handle.container }
func (handle *fakeHandle) Close() error                    { return nil }

func detectByExtension(path string) (string, error) {
	switch filepath.Ext(path) {
	case ".mkv":
		return "video/x-matroska", nil
	case ".mp3":
		return "audio/mpeg", nil
	case ".flac":
		return "audio/flac", nil
	case ".bin":
		return "", errors.New("test: unreadable")
	}

	return "text/plain; charset=utf-8", nil
}

// eventRecorder collects the IDs dispatched for each event.
type eventRecorder struct {
	sync.Mutex
	received map[event.Event][]uuid.UUID
}

func recordEvents(bus event.EventHandler) *eventRecorder {
	recorder := &eventRecorder{received: make(map[event.Event][]uuid.UUID)}
	for _, ev := range []event.Event{event.ITEM_UPDATE, event.ITEM_COMPLETE, event.ITEM_REMOVE} {
		bus.RegisterHandlerFunction(ev, func(ev event.Event, payload event.Payload) {
			recorder.Lock()
			defer recorder.Unlock()
			recorder.received[ev] = append(recorder.received[ev], payload.(uuid.UUID))
		})
	}

	return recorder
}

func (recorder *eventRecorder) get(ev event.Event) []uuid.UUID {
	recorder.Lock()
	defer recorder.Unlock()
	return append([]uuid.UUID{}, recorder.received[ev]...)
}

func newPopulator(t *testing.T, config catalog.Config, prober metadata.MediaProber, bus event.EventDispatcher) (*catalog.Populator, *catalog.Store) {
	store := catalog.NewStore()
	populator, err := catalog.NewPopulator(config, metadata.NewExtractor(prober, nil), store, bus)
	require.NoError(t, err)
	populator.SetMimetypeDetector(detectByExtension)

	return populator, store
}

// drainWorkQueue runs the populators worker task until it reports
// there is no more work to be done.
func drainWorkQueue(t *testing.T, populator *catalog.Populator) {
	for i := 0; ; i++ {
		require.Less(t, i, 100, "worker task never ran out of work")

		more, err := populator.PerformItemExtraction(nil)
		require.NoError(t, err)
		if !more {
			return
		}
	}
}

func Test_Populator_ExtractsDiscoveredFiles(t *testing.T) {
	dir, files := helpers.TempDirWithFiles(t, []string{".mkv", ".mp3", ".flac", ".txt", ".bin"})
	bus := event.New()
	events := recordEvents(bus)
	prober := newFakeProber()

	populator, store := newPopulator(t, catalog.Config{LibraryPath: dir, ProbeTimeoutSeconds: 5}, prober, bus)
	populator.DiscoverNewFiles()
	require.Len(t, store.All(), 5)
	drainWorkQueue(t, populator)

	film := store.GetByLocation(files[0])
	require.NotNil(t, film)
	assert.Equal(t, catalog.COMPLETE, film.State())
	assert.Equal(t, []catalog.MetadataEntry{{Key: metadata.TitleKey, Value: "A Film"}}, film.Metadata())
	assert.Equal(t, []catalog.AttributeEntry{
		{Attribute: metadata.DurationAttribute, Value: "01:01:01.5"},
		{Attribute: metadata.BitrateAttribute, Value: "4000"},
		{Attribute: metadata.ResolutionAttribute, Value: "1280x720"},
		{Attribute: metadata.SampleFrequencyAttribute, Value: "48000"},
		{Attribute: metadata.AudioChannelCountAttribute, Value: "1"},
	}, film.GetResource(0).Attributes())

	song := store.GetByLocation(files[1])
	require.NotNil(t, song)
	assert.Equal(t, catalog.COMPLETE, song.State())
	assert.Equal(t, []catalog.MetadataEntry{
		{Key: metadata.TitleKey, Value: "A Song"},
		{Key: metadata.ArtistKey, Value: "Someone"},
		{Key: metadata.TrackNumberKey, Value: "4"},
	}, song.Metadata())

	corrupt := store.GetByLocation(files[2])
	require.NotNil(t, corrupt)
	assert.Equal(t, catalog.FAILED, corrupt.State())
	assert.Empty(t, corrupt.Metadata())
	assert.Empty(t, corrupt.GetResource(0).Attributes())
	var probeErr *metadata.ProbeError
	assert.ErrorAs(t, corrupt.Trouble(), &probeErr)
	assert.ErrorIs(t, corrupt.Trouble(), metadata.ErrProbeOpen)

	text := store.GetByLocation(files[3])
	require.NotNil(t, text)
	assert.Equal(t, catalog.SKIPPED, text.State())
	assert.Zero(t, prober.openCount(files[3]), "non-media files must not be probed")

	unreadable := store.GetByLocation(files[4])
	require.NotNil(t, unreadable)
	assert.Equal(t, "application/octet-stream", unreadable.Mimetype())
	assert.Equal(t, catalog.SKIPPED, unreadable.State())

	assert.ElementsMatch(t, []uuid.UUID{film.ID, song.ID}, events.get(event.ITEM_COMPLETE))
	assert.Contains(t, events.get(event.ITEM_UPDATE), corrupt.ID)
}

func Test_Populator_Blacklist(t *testing.T) {
	dir, files := helpers.TempDirWithFiles(t, []string{".mkv", ".mkv.part"})
	populator, store := newPopulator(t, catalog.Config{LibraryPath: dir, Blacklist: []string{`\.part$`}}, newFakeProber(), event.New())

	populator.DiscoverNewFiles()
	assert.NotNil(t, store.GetByLocation(files[0]))
	assert.Nil(t, store.GetByLocation(files[1]))
}

func Test_Populator_InvalidConfig(t *testing.T) {
	_, err := catalog.NewPopulator(catalog.Config{LibraryPath: t.TempDir(), Blacklist: []string{"("}}, nil, catalog.NewStore(), event.New())
	assert.Error(t, err)

	_, file := helpers.TempDirWithFiles(t, []string{".mkv"})
	_, err = catalog.NewPopulator(catalog.Config{LibraryPath: file[0]}, nil, catalog.NewStore(), event.New())
	assert.Error(t, err, "library path pointing at a file must be rejected")

	missing := filepath.Join(t.TempDir(), "library")
	_, err = catalog.NewPopulator(catalog.Config{LibraryPath: missing}, nil, catalog.NewStore(), event.New())
	assert.NoError(t, err)
	assert.DirExists(t, missing)
}

func Test_Populator_RemovesVanishedFiles(t *testing.T) {
	dir, files := helpers.TempDirWithFiles(t, []string{".mkv", ".mp3"})
	bus := event.New()
	events := recordEvents(bus)
	populator, store := newPopulator(t, catalog.Config{LibraryPath: dir}, newFakeProber(), bus)

	populator.DiscoverNewFiles()
	removed := store.GetByLocation(files[1])
	require.NotNil(t, removed)

	require.NoError(t, os.Remove(files[1]))
	populator.DiscoverNewFiles()

	assert.Nil(t, store.GetByLocation(files[1]))
	assert.NotNil(t, store.GetByLocation(files[0]))
	assert.Equal(t, []uuid.UUID{removed.ID}, events.get(event.ITEM_REMOVE))
}

func Test_Populator_Refresh(t *testing.T) {
	dir, files := helpers.TempDirWithFiles(t, []string{".mkv", ".txt"})
	prober := newFakeProber()
	populator, store := newPopulator(t, catalog.Config{LibraryPath: dir}, prober, event.New())

	populator.DiscoverNewFiles()
	drainWorkQueue(t, populator)

	film := store.GetByLocation(files[0])
	require.NotNil(t, film)
	require.Equal(t, catalog.COMPLETE, film.State())

	t.Run("Unknown item", func(t *testing.T) {
		assert.ErrorIs(t, populator.Refresh(uuid.New()), catalog.ErrItemNotFound)
	})

	t.Run("Item without media", func(t *testing.T) {
		text := store.GetByLocation(files[1])
		require.NotNil(t, text)
		assert.ErrorIs(t, populator.Refresh(text.ID), catalog.ErrItemNotInspectable)
	})

	t.Run("Media item is probed again", func(t *testing.T) {
		require.NoError(t, populator.Refresh(film.ID))
		assert.Equal(t, catalog.PENDING, film.State())
		assert.Empty(t, film.Metadata())

		drainWorkQueue(t, populator)
		assert.Equal(t, catalog.COMPLETE, film.State())
		assert.Equal(t, 2, prober.openCount(files[0]))
		assert.Len(t, film.GetResource(0).Attributes(), 5, "re-extraction must not duplicate attributes")
	})
}

func Test_Populator_Run(t *testing.T) {
	dir, files := helpers.TempDirWithFiles(t, []string{".mp3"})
	bus := event.New()
	events := recordEvents(bus)
	populator, store := newPopulator(t, catalog.Config{LibraryPath: dir, ForceSyncSeconds: 1, Parallelism: 2, ProbeTimeoutSeconds: 5}, newFakeProber(), bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- populator.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("populator did not stop after its context was cancelled")
		}
	})

	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		item := store.GetByLocation(files[0])
		if assert.NotNil(c, item) {
			assert.Equal(c, catalog.COMPLETE, item.State())
		}
	}, 3*time.Second, 50*time.Millisecond)

	late := helpers.TempFile(t, dir, ".mkv")
	assert.EventuallyWithT(t, func(c *assert.CollectT) {
		item := store.GetByLocation(late)
		if assert.NotNil(c, item) {
			assert.Equal(c, catalog.COMPLETE, item.State())
		}
	}, 5*time.Second, 50*time.Millisecond, "files added while running must be discovered")

	assert.Eventually(t, func() bool { return len(events.get(event.ITEM_COMPLETE)) == 2 }, time.Second, 10*time.Millisecond)
}

// id3Header is enough of an MP3 file for content sniffing to recognise it.
var id3Header = []byte("ID3\x04\x00\x00\x00\x00\x00\x00")

// newSniffingPopulator creates a populator which detects content types
// from the contents of files, rather than their extension.
func newSniffingPopulator(t *testing.T, config catalog.Config, prober metadata.MediaProber, bus event.EventDispatcher) (*catalog.Populator, *catalog.Store) {
	store := catalog.NewStore()
	populator, err := catalog.NewPopulator(config, metadata.NewExtractor(prober, nil), store, bus)
	require.NoError(t, err)

	return populator, store
}

func setModTime(t *testing.T, path string, when time.Time) {
	require.NoError(t, os.Chtimes(path, when, when))
}

func Test_Populator_HoldsFilesStillBeingWritten(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	prober := newFakeProber()
	populator, store := newSniffingPopulator(t, catalog.Config{LibraryPath: dir, RequiredModTimeAgeSeconds: 60}, prober, event.New())

	populator.DiscoverNewFiles()
	item := store.GetByLocation(path)
	require.NotNil(t, item)
	assert.Equal(t, catalog.HELD, item.State())
	assert.Empty(t, item.Mimetype(), "held files must not be sniffed")
	assert.ErrorIs(t, populator.Refresh(item.ID), catalog.ErrItemHeld)

	drainWorkQueue(t, populator)
	assert.Zero(t, prober.openCount(path))

	// The copy finishes, and some time passes
	require.NoError(t, os.WriteFile(path, id3Header, 0o644))
	setModTime(t, path, time.Now().Add(-2*time.Minute))
	populator.DiscoverNewFiles()

	assert.Equal(t, "audio/mpeg", item.Mimetype())
	assert.Equal(t, catalog.PENDING, item.State())

	drainWorkQueue(t, populator)
	assert.Equal(t, catalog.COMPLETE, item.State())
	assert.Equal(t, 1, prober.openCount(path))
}

func Test_Populator_ReleasesHoldOnceFileSettles(t *testing.T) {
	dir := t.TempDir()
	settled := filepath.Join(dir, "settled.mp3")
	vanished := filepath.Join(dir, "vanished.mp3")
	require.NoError(t, os.WriteFile(settled, id3Header, 0o644))
	require.NoError(t, os.WriteFile(vanished, id3Header, 0o644))

	bus := event.New()
	events := recordEvents(bus)
	populator, store := newSniffingPopulator(t, catalog.Config{LibraryPath: dir, RequiredModTimeAgeSeconds: 1}, newFakeProber(), bus)

	populator.DiscoverNewFiles()
	item := store.GetByLocation(settled)
	require.NotNil(t, item)
	gone := store.GetByLocation(vanished)
	require.NotNil(t, gone)
	require.Equal(t, catalog.HELD, item.State())
	require.Equal(t, catalog.HELD, gone.State())

	require.NoError(t, os.Remove(vanished))

	assert.Eventually(t, func() bool { return item.State() == catalog.PENDING }, 5*time.Second, 20*time.Millisecond,
		"hold must be released without another sync")
	assert.Equal(t, "audio/mpeg", item.Mimetype())

	assert.Eventually(t, func() bool { return store.Get(gone.ID) == nil }, 5*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]uuid.UUID{gone.ID}, events.get(event.ITEM_REMOVE))
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, events.get(event.ITEM_UPDATE), item.ID)
}

func Test_Populator_ReevaluatesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "song.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	firstSeen := time.Now().Add(-10 * time.Minute)
	setModTime(t, path, firstSeen)

	prober := newFakeProber()
	populator, store := newSniffingPopulator(t, catalog.Config{LibraryPath: dir}, prober, event.New())

	populator.DiscoverNewFiles()
	item := store.GetByLocation(path)
	require.NotNil(t, item)
	assert.Equal(t, catalog.SKIPPED, item.State(), "an empty file does not look like media")
	assert.ErrorIs(t, populator.Refresh(item.ID), catalog.ErrItemNotInspectable)

	t.Run("Refresh sniffs the file again", func(t *testing.T) {
		// Content changes, but the modtime does not, so a sync cannot notice
		require.NoError(t, os.WriteFile(path, id3Header, 0o644))
		setModTime(t, path, firstSeen)
		populator.DiscoverNewFiles()
		require.Equal(t, catalog.SKIPPED, item.State())

		require.NoError(t, populator.Refresh(item.ID))
		assert.Equal(t, "audio/mpeg", item.Mimetype())
		assert.Equal(t, catalog.PENDING, item.State())

		drainWorkQueue(t, populator)
		assert.Equal(t, catalog.COMPLETE, item.State())
		assert.Equal(t, 1, prober.openCount(path))
	})

	t.Run("Modified file is probed again", func(t *testing.T) {
		setModTime(t, path, firstSeen.Add(time.Minute))
		populator.DiscoverNewFiles()
		assert.Equal(t, catalog.PENDING, item.State())

		drainWorkQueue(t, populator)
		assert.Equal(t, catalog.COMPLETE, item.State())
		assert.Equal(t, 2, prober.openCount(path))
	})

	t.Run("Unchanged file is left alone", func(t *testing.T) {
		populator.DiscoverNewFiles()
		drainWorkQueue(t, populator)
		assert.Equal(t, catalog.COMPLETE, item.State())
		assert.Equal(t, 2, prober.openCount(path))
	})
}
