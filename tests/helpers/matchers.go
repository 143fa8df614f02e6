package helpers

import (
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/hbomb79/Tome/internal/api/items"
	"github.com/hbomb79/Tome/internal/http/websocket"
	"github.com/hbomb79/go-chanassert"
	"github.com/stretchr/testify/require"
)

// MatchSocketMessage returns a matcher which will match messages which have
// the title and message type provided.
func MatchSocketMessage(title string, typ websocket.MessageType) chanassert.Matcher[websocket.SocketMessage] {
	return chanassert.MatchStructPartial(websocket.SocketMessage{Title: title, Type: typ})
}

// MatchItemUpdate returns a chanassert matcher which will
// match any websocket messages regarding catalog item updates
// for the given file in the given state.
func MatchItemUpdate(path string, state items.StateDto) chanassert.Matcher[websocket.SocketMessage] {
	return chanassert.MatchPredicate(func(message websocket.SocketMessage) bool {
		if message.Title != "ITEM_UPDATE" {
			return false
		}

		updatedItem, ok := message.Body["item"].(map[string]any)
		if !ok {
			return false
		}

		return updatedItem["location"] == path && updatedItem["state"] == string(state)
	})
}

// AwaitSocketMessage reads messages from the socket until one satisfies the
// matcher provided, failing the test if none arrives before the timeout.
func AwaitSocketMessage(t *testing.T, ws *gorilla.Conn, matcher chanassert.Matcher[websocket.SocketMessage], timeout time.Duration) websocket.SocketMessage {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(timeout)))
	defer ws.SetReadDeadline(time.Time{})

	for {
		var message websocket.SocketMessage
		require.NoError(t, ws.ReadJSON(&message), "expected socket message never arrived")

		if matcher.DoesMatch(message) {
			return message
		}
	}
}
