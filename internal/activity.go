package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/event"
	"github.com/hbomb79/Tome/pkg/logger"
)

const (
	DEBOUNCE_DURATION  time.Duration = time.Millisecond * 500
	MAX_TIMER_DURATION time.Duration = time.Second * 2
)

type (
	broadcastHandler func(uuid.UUID) error

	broadcaster interface {
		BroadcastItemUpdate(uuid.UUID) error
		BroadcastItemRemove(uuid.UUID) error
	}

	// activityService listens for catalog events and forwards them to
	// the broadcaster. Bursts of updates for the same item are debounced
	// so that clients are not flooded while an item is being probed.
	activityService struct {
		*sync.Mutex
		broadcaster
		messageChan    event.HandlerChannel
		debounceTimers map[uuid.UUID]*time.Timer
		maxTimers      map[uuid.UUID]*time.Timer
		debounce       time.Duration
		maxWait        time.Duration
	}
)

func newActivityService(broadcaster broadcaster, eventBus event.EventHandler) *activityService {
	messageChan := make(event.HandlerChannel, 100)
	eventBus.RegisterHandlerChannel(messageChan, event.ITEM_UPDATE, event.ITEM_COMPLETE, event.ITEM_REMOVE)

	return &activityService{
		Mutex:          &sync.Mutex{},
		broadcaster:    broadcaster,
		messageChan:    messageChan,
		debounceTimers: make(map[uuid.UUID]*time.Timer),
		maxTimers:      make(map[uuid.UUID]*time.Timer),
		debounce:       DEBOUNCE_DURATION,
		maxWait:        MAX_TIMER_DURATION,
	}
}

func (service *activityService) Run(ctx context.Context) error {
	log.Emit(logger.NEW, "Activity service started\n")
	defer service.clearAllTimers()
	for {
		select {
		case ev := <-service.messageChan:
			if err := service.handleEvent(ev); err != nil {
				log.Emit(logger.ERROR, "Handling of event %v failed: %v\n", ev, err)
			}
		case <-ctx.Done():
			log.Emit(logger.STOP, "Activity service closed\n")
			return nil
		}
	}
}

func (service *activityService) handleEvent(ev event.HandlerEvent) error {
	itemID, ok := ev.Payload.(uuid.UUID)
	if !ok {
		return errors.New("illegal payload (expected UUID)")
	}

	switch ev.Event {
	case event.ITEM_UPDATE, event.ITEM_COMPLETE:
		service.scheduleEventBroadcast(itemID, service.BroadcastItemUpdate)
	case event.ITEM_REMOVE:
		// Pending updates for a removed item are pointless
		service.clearTimers(itemID)
		return service.BroadcastItemRemove(itemID)
	default:
		return errors.New("unknown event type")
	}

	return nil
}

func (service *activityService) scheduleEventBroadcast(id uuid.UUID, handler broadcastHandler) {
	service.Lock()
	defer service.Unlock()

	broadcaster := func() { service.broadcast(id, handler) }

	// Cancel and re-set a debounce timer
	if t, ok := service.debounceTimers[id]; ok {
		t.Stop()
	}
	service.debounceTimers[id] = time.AfterFunc(service.debounce, broadcaster)

	// Set a max timer if not already set
	if _, ok := service.maxTimers[id]; !ok {
		service.maxTimers[id] = time.AfterFunc(service.maxWait, broadcaster)
	}
}

func (service *activityService) broadcast(id uuid.UUID, handler broadcastHandler) {
	service.clearTimers(id)

	if err := handler(id); err != nil {
		log.Emit(logger.ERROR, "Broadcast for item %s failed: %v\n", id, err)
	}
}

func (service *activityService) clearTimers(id uuid.UUID) {
	service.Lock()
	defer service.Unlock()

	if t, ok := service.debounceTimers[id]; ok {
		t.Stop()
		delete(service.debounceTimers, id)
	}

	if t, ok := service.maxTimers[id]; ok {
		t.Stop()
		delete(service.maxTimers, id)
	}
}

func (service *activityService) clearAllTimers() {
	service.Lock()
	defer service.Unlock()

	for id, t := range service.debounceTimers {
		t.Stop()
		delete(service.debounceTimers, id)
	}
	for id, t := range service.maxTimers {
		t.Stop()
		delete(service.maxTimers, id)
	}
}
