package websocket_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hbomb79/Tome/internal/http/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SocketMessage_ValidateArguments(t *testing.T) {
	id := uuid.New()
	required := map[string]websocket.ArgumentKind{
		"id":    websocket.UUIDArgument,
		"name":  websocket.StringArgument,
		"count": websocket.NumberArgument,
	}

	tests := []struct {
		summary string
		body    map[string]interface{}
		valid   bool
	}{
		{"All valid", map[string]interface{}{"id": id.String(), "name": "x", "count": float64(2)}, true},
		{"Missing key", map[string]interface{}{"id": id.String(), "name": "x"}, false},
		{"Empty string", map[string]interface{}{"id": id.String(), "name": "", "count": float64(2)}, false},
		{"Number as string", map[string]interface{}{"id": id.String(), "name": "x", "count": "2"}, false},
		{"Malformed UUID", map[string]interface{}{"id": "not-a-uuid", "name": "x", "count": float64(2)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.summary, func(t *testing.T) {
			message := &websocket.SocketMessage{Body: tt.body}
			err := message.ValidateArguments(required)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, websocket.ErrInvalidArgument)
			}
		})
	}
}

func Test_SocketMessage_UUIDArgument(t *testing.T) {
	id := uuid.New()
	message := &websocket.SocketMessage{Body: map[string]interface{}{"id": id.String(), "bad": 12.0}}

	parsed, err := message.UUIDArgument("id")
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = message.UUIDArgument("bad")
	assert.ErrorIs(t, err, websocket.ErrInvalidArgument)
}

func Test_SocketMessage_FormReply(t *testing.T) {
	origin := uuid.New()
	message := &websocket.SocketMessage{Title: "ITEM_REFRESH", Id: 7, Body: map[string]interface{}{"id": "x"}, Origin: &origin}

	reply := message.FormReply("ITEM_REFRESH_QUEUED", nil, websocket.Response)
	assert.Equal(t, 7, reply.Id)
	assert.Equal(t, &origin, reply.Target)
	assert.Equal(t, websocket.Response, reply.Type)
	assert.Equal(t, message.Body, reply.Body["command"])
}
