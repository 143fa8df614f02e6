package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/event"
	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/hbomb79/Tome/pkg/logger"
	"github.com/hbomb79/Tome/pkg/worker"
	"github.com/rjeczalik/notify"
)

var log = logger.Get("Populator")

const fallbackMimetype = "application/octet-stream"

var (
	ErrItemNotFound       = errors.New("no catalog item could be found")
	ErrItemBusy           = errors.New("catalog item is currently being probed")
	ErrItemHeld           = errors.New("catalog item is held until its file stops changing")
	ErrItemNotInspectable = errors.New("catalog item does not contain audio or video")
)

type (
	extractor interface {
		FillMetadata(context.Context, metadata.Target) error
	}

	// MimetypeDetector returns the content type of the file at the path provided.
	MimetypeDetector func(path string) (string, error)

	// Populator is responsible for keeping the catalog in sync with the
	// library on disk. Files discovered are:
	// - Checked against a blacklist to ensure they should be catalogued
	// - Held until their modtime is old enough that they are unlikely to still be written
	// - Sniffed to determine their content type
	// - Probed for their metadata if they contain audio or video
	// A file which changes on disk is put through the same steps again.
	Populator struct {
		*sync.Mutex
		extractor extractor
		store     *Store
		eventBus  event.EventDispatcher
		detect    MimetypeDetector

		config     Config
		blacklist  []*regexp.Regexp
		workerPool *worker.WorkerPool
		holdTimers map[uuid.UUID]*time.Timer
		ctx        context.Context
	}

	syncResult struct {
		added   []uuid.UUID
		updated []uuid.UUID
		removed []uuid.UUID
	}
)

// NewPopulator creates a Populator, using the provided config for
// subsequent calls to 'Run'.
//
// The configs 'LibraryPath' is validated to be an existing directory.
// If the directory is missing it will be created, if the path
// provided points to an existing FILE, an error is returned.
func NewPopulator(config Config, extractor extractor, store *Store, eventBus event.EventDispatcher) (*Populator, error) {
	if info, err := os.Stat(config.LibraryPath); err == nil {
		if !info.IsDir() {
			return nil, fmt.Errorf("library path '%s' is not a directory", config.LibraryPath)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(config.LibraryPath, os.ModeDir|os.ModePerm); err != nil {
			return nil, fmt.Errorf("library path '%s' could not be created: %w", config.LibraryPath, err)
		}
	} else {
		return nil, fmt.Errorf("library path '%s' could not be accessed: %w", config.LibraryPath, err)
	}

	blacklist := make([]*regexp.Regexp, 0, len(config.Blacklist))
	for _, expr := range config.Blacklist {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("blacklist expression '%s' is invalid: %w", expr, err)
		}

		blacklist = append(blacklist, re)
	}

	service := &Populator{
		Mutex:      &sync.Mutex{},
		extractor:  extractor,
		store:      store,
		eventBus:   eventBus,
		detect:     sniffMimetype,
		config:     config,
		blacklist:  blacklist,
		workerPool: worker.NewWorkerPool(),
		holdTimers: make(map[uuid.UUID]*time.Timer),
		ctx:        context.Background(),
	}

	parallelism := config.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	for i := 0; i < parallelism; i++ {
		label := fmt.Sprintf("probe-worker-%d", i)
		service.workerPool.PushWorker(worker.NewWorker(label, service.PerformItemExtraction))
	}

	return service, nil
}

// SetMimetypeDetector replaces the content type detection used
// for newly discovered files.
func (service *Populator) SetMimetypeDetector(detector MimetypeDetector) {
	service.Lock()
	defer service.Unlock()
	service.detect = detector
}

// Run is the main entry point of this service. It's responsible
// for listening to the OS file system and responding to change events,
// as well as regularly polling the file system irrespective of the
// watcher.
// To kill the service, the calling code should cancel the context
// provided. Run returns once all in-flight probes have finished.
func (service *Populator) Run(ctx context.Context) error {
	service.Lock()
	service.ctx = ctx
	service.Unlock()

	fsNotifyChannel := make(chan notify.EventInfo, 1)
	watchPath := filepath.Join(service.config.LibraryPath, "...")
	if err := notify.Watch(watchPath, fsNotifyChannel, notify.Create, notify.Remove, notify.Rename, notify.Write); err != nil {
		log.Emit(logger.WARNING, "Failed to watch library %s, relying on forced sync: %v\n", service.config.LibraryPath, err)
	} else {
		defer notify.Stop(fsNotifyChannel)
	}

	var forceSyncChannel <-chan time.Time
	if service.config.ForceSyncSeconds > 0 {
		ticker := time.NewTicker(service.config.ForceSyncDuration())
		defer ticker.Stop()
		forceSyncChannel = ticker.C
	}

	if err := service.workerPool.Start(); err != nil {
		return err
	}
	defer service.workerPool.Close()
	defer service.clearAllHoldTimers()

	log.Emit(logger.NEW, "Catalog populator started for %s\n", service.config.LibraryPath)
	service.DiscoverNewFiles()

	for {
		select {
		case <-fsNotifyChannel:
			service.DiscoverNewFiles()
		case <-forceSyncChannel:
			service.DiscoverNewFiles()
		case <-ctx.Done():
			log.Emit(logger.STOP, "Catalog populator stopping\n")
			return nil
		}
	}
}

// PerformItemExtraction is the worker function for the Populator, which is called
// by the services WorkerPool.
// This function will claim the first PENDING item it finds and probe it. A
// failure to probe the file is an expected outcome for a damaged or unsupported
// file and only marks the item as FAILED.
func (service *Populator) PerformItemExtraction(w worker.Worker) (bool, error) {
	item := service.claimPendingItem()
	if item == nil {
		return false, nil
	}
	service.eventBus.Dispatch(event.ITEM_UPDATE, item.ID)

	ctx, cancel := service.probeContext()
	defer cancel()

	err := service.extractor.FillMetadata(ctx, item)
	if err == nil {
		item.setState(COMPLETE)
		log.Emit(logger.SUCCESS, "Extracted metadata for %s\n", item.Location())
		service.eventBus.Dispatch(event.ITEM_COMPLETE, item.ID)
		return true, nil
	}

	item.fail(err)
	service.eventBus.Dispatch(event.ITEM_UPDATE, item.ID)

	var probeErr *metadata.ProbeError
	if errors.As(err, &probeErr) {
		log.Emit(logger.DEBUG, "Probe of %s failed: %v\n", item.Location(), err)
		return true, nil
	}

	return true, fmt.Errorf("extraction of %s failed: %w", item, err)
}

// Refresh discards the metadata held for the item with the ID provided
// and queues it to be probed again. The content type of the file is
// detected again first, as the file may have changed since it was
// catalogued.
func (service *Populator) Refresh(id uuid.UUID) error {
	service.Lock()
	item := service.store.Get(id)
	if item == nil {
		service.Unlock()
		return ErrItemNotFound
	}

	switch item.State() {
	case EXTRACTING:
		service.Unlock()
		return ErrItemBusy
	case HELD:
		service.Unlock()
		return ErrItemHeld
	}

	wasInspectable := metadata.WarrantsInspection(item.Mimetype())
	item.classify(service.detectMimetype(item.Location()), item.lastModified())
	skipped := item.State() == SKIPPED
	service.Unlock()

	if skipped {
		if wasInspectable {
			service.eventBus.Dispatch(event.ITEM_UPDATE, id)
		}
		return ErrItemNotInspectable
	}

	log.Emit(logger.INFO, "Refreshing %s\n", item)
	service.eventBus.Dispatch(event.ITEM_UPDATE, id)
	service.wakeupWorkerPool()
	return nil
}

func (service *Populator) GetItem(id uuid.UUID) *Item { return service.store.Get(id) }

func (service *Populator) GetAllItems() []*Item { return service.store.All() }

// DiscoverNewFiles will scan the host file system at the path
// configured, cataloguing any files which are not yet known, re-evaluating
// those which have changed and removing any items whose files have disappeared.
// Any paths found that match with any configured blacklists will
// be ignored.
func (service *Populator) DiscoverNewFiles() {
	result, err := service.syncLibrary()
	if err != nil {
		log.Emit(logger.ERROR, "file system polling failed: %v\n", err)
		return
	}

	for _, id := range result.removed {
		service.eventBus.Dispatch(event.ITEM_REMOVE, id)
	}
	for _, id := range append(result.added, result.updated...) {
		service.eventBus.Dispatch(event.ITEM_UPDATE, id)
	}

	if len(result.added) > 0 || len(result.updated) > 0 {
		service.wakeupWorkerPool()
	}
}

// syncLibrary reconciles the store with the library on disk.
//
// Note: This function will take ownership of the mutex, and releases it when returning
func (service *Populator) syncLibrary() (*syncResult, error) {
	service.Lock()
	defer service.Unlock()

	found, err := recursivelyWalkFileSystem(service.config.LibraryPath, service.isBlacklisted)
	if err != nil {
		return nil, err
	}

	result := &syncResult{added: make([]uuid.UUID, 0), updated: make([]uuid.UUID, 0), removed: make([]uuid.UUID, 0)}
	known := service.store.Locations()
	for path, id := range known {
		if _, ok := found[path]; ok {
			continue
		}

		// An item being probed is left for the next sync
		if item := service.store.Get(id); item != nil && item.State() != EXTRACTING {
			service.removeItem(id)
			result.removed = append(result.removed, id)
			log.Emit(logger.REMOVE, "Removed %s from catalog as its file has gone away\n", path)
		}
	}

	for path, modTime := range found {
		if id, ok := known[path]; ok {
			if item := service.store.Get(id); item != nil && service.reconcileItem(item, modTime) {
				result.updated = append(result.updated, id)
			}

			continue
		}

		item := NewItem(path, "")
		if err := service.store.Add(item); err != nil {
			log.Emit(logger.WARNING, "Failed to catalogue %s: %v\n", path, err)
			continue
		}

		service.admitItem(item, modTime)
		result.added = append(result.added, item.ID)
		log.Emit(logger.NEW, "Catalogued %s (%s)\n", path, item.State())
	}

	return result, nil
}

// admitItem places the item on hold if its file was modified too recently
// to be inspected safely. Otherwise, the content type of the file is
// detected and the item classified.
//
// Note: the caller must hold the mutex
func (service *Populator) admitItem(item *Item, modTime time.Time) {
	if remaining := service.config.RequiredModTimeAgeDuration() - time.Since(modTime); remaining > 0 {
		item.hold(modTime)
		service.scheduleHoldTimer(item.ID, remaining)
		return
	}

	service.clearHoldTimer(item.ID)
	item.classify(service.detectMimetype(item.Location()), modTime)
}

// reconcileItem re-admits a known item if its file has been modified
// since the item was classified, or if it is HELD and its file has
// since settled. Returns true if the item was changed.
//
// Note: the caller must hold the mutex
func (service *Populator) reconcileItem(item *Item, modTime time.Time) bool {
	switch item.State() {
	case EXTRACTING:
		return false
	case HELD:
		service.admitItem(item, modTime)
		return item.State() != HELD
	}

	if item.lastModified().Equal(modTime) {
		return false
	}

	log.Emit(logger.INFO, "%s has changed on disk since it was catalogued\n", item.Location())
	service.admitItem(item, modTime)
	return true
}

// evaluateItemHold accepts the ID of an item that is HELD, and checks
// the modtime of its file to see if the hold can be released. If the
// file has gone away, the item is removed from the catalog.
//
// Note: this function takes ownership of the mutex, and releases it when returning
func (service *Populator) evaluateItemHold(id uuid.UUID) {
	service.Lock()
	item := service.store.Get(id)
	if item == nil || item.State() != HELD {
		service.Unlock()
		return
	}

	info, err := os.Stat(item.Location())
	if err != nil {
		service.removeItem(id)
		service.Unlock()

		log.Emit(logger.REMOVE, "Removed held item %s as its file has gone away\n", item.Location())
		service.eventBus.Dispatch(event.ITEM_REMOVE, id)
		return
	}

	service.admitItem(item, info.ModTime())
	released := item.State() != HELD
	service.Unlock()

	if released {
		service.eventBus.Dispatch(event.ITEM_UPDATE, id)
		service.wakeupWorkerPool()
	}
}

// scheduleHoldTimer will call evaluateItemHold for the item provided
// after the delay specified has elapsed. Any existing hold timer for
// the item is cancelled first.
//
// Note: the caller must hold the mutex
func (service *Populator) scheduleHoldTimer(id uuid.UUID, delay time.Duration) {
	service.clearHoldTimer(id)
	service.holdTimers[id] = time.AfterFunc(delay, func() {
		service.evaluateItemHold(id)
	})
}

func (service *Populator) clearHoldTimer(id uuid.UUID) {
	if timer, ok := service.holdTimers[id]; ok {
		timer.Stop()
		delete(service.holdTimers, id)
	}
}

func (service *Populator) clearAllHoldTimers() {
	service.Lock()
	defer service.Unlock()

	for id, timer := range service.holdTimers {
		timer.Stop()
		delete(service.holdTimers, id)
	}
}

func (service *Populator) removeItem(id uuid.UUID) {
	service.clearHoldTimer(id)
	service.store.Remove(id)
}

// detectMimetype returns the content type of the file at the path
// provided, falling back to a generic binary type if it cannot be read.
func (service *Populator) detectMimetype(path string) string {
	mime, err := service.detect(path)
	if err != nil {
		log.Emit(logger.WARNING, "Failed to detect content type of %s: %v\n", path, err)
		return fallbackMimetype
	}

	return mime
}

func (service *Populator) isBlacklisted(path string) bool {
	name := filepath.Base(path)
	for _, re := range service.blacklist {
		if re.MatchString(name) {
			return true
		}
	}

	return false
}

// claimPendingItem will try and find a PENDING item in the catalog,
// and set it's state to 'EXTRACTING' to prevent another
// worker from claiming it once the mutex lock is released.
//
// Note: This function takes ownership of the mutex, and releases it when returning
func (service *Populator) claimPendingItem() *Item {
	service.Lock()
	defer service.Unlock()

	for _, item := range service.store.All() {
		if item.claim() {
			return item
		}
	}

	return nil
}

func (service *Populator) runContext() context.Context {
	service.Lock()
	defer service.Unlock()
	return service.ctx
}

// probeContext derives the context for a single probe from the context
// the service is running under, bounded by the configured probe timeout.
func (service *Populator) probeContext() (context.Context, context.CancelFunc) {
	parent := service.runContext()
	if service.config.ProbeTimeoutSeconds <= 0 {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, service.config.ProbeTimeout())
}

func (service *Populator) wakeupWorkerPool() {
	if err := service.workerPool.WakeupWorkers(); err != nil {
		log.Emit(logger.DEBUG, "Skipping worker wakeup: %v\n", err)
	}
}

func sniffMimetype(path string) (string, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "", err
	}

	return mime.String(), nil
}

// recursivelyWalkFileSystem will walk the file system, starting at the directory provided,
// and construct a lookup of all the files inside (including any inside of nested directories)
// to their modtime. Files for which 'ignore' returns true are not included in the result.
func recursivelyWalkFileSystem(rootDirPath string, ignore func(string) bool) (map[string]time.Time, error) {
	foundItems := make(map[string]time.Time)
	err := filepath.WalkDir(rootDirPath, func(path string, dir fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !dir.Type().IsRegular() || ignore(path) {
			return nil
		}

		info, err := dir.Info()
		if err != nil {
			// Removed since the directory was read
			return nil
		}

		foundItems[path] = info.ModTime()
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk file system: %w", err)
	}

	return foundItems, nil
}
