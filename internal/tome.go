package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/api"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/charset"
	"github.com/hbomb79/Tome/internal/event"
	"github.com/hbomb79/Tome/internal/ffmpeg"
	"github.com/hbomb79/Tome/internal/metadata"
	"github.com/hbomb79/Tome/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}

	RestGateway interface {
		RunnableService
		BroadcastItemUpdate(uuid.UUID) error
		BroadcastItemRemove(uuid.UUID) error
	}
)

// Tome represents the top-level object for the server, and is responsible
// for initialising the catalog, its populator, event handling and the
// REST gateway.
type tomeImpl struct {
	eventBus        event.EventCoordinator
	activityService *activityService
	config          TomeConfig

	store       *catalog.Store
	populator   *catalog.Populator
	restGateway RestGateway
}

// NewExtractor constructs the metadata extractor described by the
// configuration provided.
func NewExtractor(config TomeConfig) (*metadata.Extractor, error) {
	prober, err := ffmpeg.NewProber(config.Probe)
	if err != nil {
		return nil, fmt.Errorf("failed to construct media prober: %w", err)
	}

	converter, err := charset.New(config.Charset)
	if err != nil {
		return nil, fmt.Errorf("failed to construct charset converter: %w", err)
	}

	return metadata.NewExtractor(prober, converter), nil
}

func New(config TomeConfig) (*tomeImpl, error) {
	logger.SetMinLoggingLevel(logger.ParseLevel(config.LogLevel).Level())
	log.Emit(logger.DEBUG, "Bootstrapping Tome services using config: %#v\n", config)

	extractor, err := NewExtractor(config)
	if err != nil {
		return nil, err
	}

	tome := &tomeImpl{
		eventBus: event.New(),
		config:   config,
		store:    catalog.NewStore(),
	}

	if serv, err := catalog.NewPopulator(config.Library, extractor, tome.store, tome.eventBus); err == nil {
		tome.populator = serv
	} else {
		return nil, fmt.Errorf("failed to construct catalog populator: %w", err)
	}

	tome.restGateway = api.NewRestGateway(&config.RestConfig, tome.populator)
	tome.activityService = newActivityService(tome.restGateway, tome.eventBus)

	return tome, nil
}

// Run will start all of Tome's services. This function will not return until
// Tome is stopped.
// To stop Tome, the provided context must be cancelled. Errors from which Tome cannot recover
// will also cause Tome to stop, and the first such error is returned.
func (tome *tomeImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(fmt.Errorf("%s: %w", label, err))
	}

	wg := &sync.WaitGroup{}
	tome.spawnAsyncService(ctx, wg, tome.activityService, "activity-service", crashHandler)
	tome.spawnAsyncService(ctx, wg, tome.populator, "catalog-populator", crashHandler)
	tome.spawnAsyncService(ctx, wg, tome.restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Tome services spawned!\n")

	wg.Wait()
	if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
		return cause
	}

	return nil
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the Tome service waitgroup is updated correctly
func (tome *tomeImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
