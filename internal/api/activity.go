package api

import (
	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/api/items"
	"github.com/hbomb79/Tome/internal/http/websocket"
)

const (
	TITLE_ITEM_UPDATE = "ITEM_UPDATE"
	TITLE_ITEM_REMOVE = "ITEM_REMOVE"
)

type (
	ItemUpdate struct {
		ItemID uuid.UUID  `json:"item_id"`
		Item   *items.Dto `json:"item"`
	}

	broadcaster struct {
		socketHub   *websocket.SocketHub
		itemService items.Service
	}
)

func newBroadcaster(socketHub *websocket.SocketHub, itemService items.Service) *broadcaster {
	return &broadcaster{socketHub, itemService}
}

// BroadcastItemUpdate sends the current state of the item to all connected
// clients. If the item no longer exists, a removal is broadcast instead.
func (hub *broadcaster) BroadcastItemUpdate(id uuid.UUID) error {
	item := hub.itemService.GetItem(id)
	if item == nil {
		return hub.BroadcastItemRemove(id)
	}

	hub.broadcast(TITLE_ITEM_UPDATE, ItemUpdate{ItemID: id, Item: items.NewDto(item)})
	return nil
}

func (hub *broadcaster) BroadcastItemRemove(id uuid.UUID) error {
	hub.broadcast(TITLE_ITEM_REMOVE, ItemUpdate{ItemID: id})
	return nil
}

func (hub *broadcaster) broadcast(title string, update ItemUpdate) {
	hub.socketHub.Send(&websocket.SocketMessage{
		Title: title,
		Body:  map[string]interface{}{"item_id": update.ItemID, "item": update.Item},
		Type:  websocket.Update,
	})
}
