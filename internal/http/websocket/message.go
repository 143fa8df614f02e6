package websocket

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type (
	MessageType int

	// ArgumentKind describes the shape a command argument must take
	// for the command to be accepted.
	ArgumentKind int

	// SocketMessage is a single frame exchanged with a socket client. Replies
	// carry the Id of the command they answer. Origin is the client the
	// message arrived from, and Target (when set) restricts delivery to a
	// single client.
	SocketMessage struct {
		Title  string                 `json:"title"`
		Body   map[string]interface{} `json:"body"`
		Id     int                    `json:"id"`
		Type   MessageType            `json:"type"`
		Origin *uuid.UUID             `json:"-"`
		Target *uuid.UUID             `json:"-"`
	}
)

const (
	Update MessageType = iota
	Command
	Response
	ErrorResponse
	Welcome
)

const (
	StringArgument ArgumentKind = iota
	NumberArgument
	UUIDArgument
)

var ErrInvalidArgument = errors.New("invalid command argument")

func (kind ArgumentKind) String() string {
	switch kind {
	case StringArgument:
		return "string"
	case NumberArgument:
		return "number"
	case UUIDArgument:
		return "uuid"
	default:
		return fmt.Sprintf("ArgumentKind(%d)", int(kind))
	}
}

// ValidateArguments ensures every argument named in required is present
// in the message body with the kind given.
func (message *SocketMessage) ValidateArguments(required map[string]ArgumentKind) error {
	for key, kind := range required {
		v, ok := message.Body[key]
		if !ok {
			return fmt.Errorf("%w: '%s' is missing", ErrInvalidArgument, key)
		}

		if !argumentMatches(v, kind) {
			return fmt.Errorf("%w: '%s' must be a %s, found %#v", ErrInvalidArgument, key, kind, v)
		}
	}

	return nil
}

// UUIDArgument returns the argument named as a UUID. Callers should have
// validated the message body beforehand.
func (message *SocketMessage) UUIDArgument(key string) (uuid.UUID, error) {
	s, ok := message.Body[key].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: '%s' is not a string", ErrInvalidArgument, key)
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: '%s' is not a valid UUID", ErrInvalidArgument, key)
	}

	return id, nil
}

// FormReply returns a new message addressed to the client that sent
// this one, sharing its Id. The original body is echoed back under
// the 'command' key of the reply body.
func (message *SocketMessage) FormReply(replyTitle string, replyBody map[string]interface{}, replyType MessageType) *SocketMessage {
	if replyBody == nil {
		replyBody = make(map[string]interface{}, 1)
	}
	replyBody["command"] = message.Body

	return &SocketMessage{
		Title:  replyTitle,
		Body:   replyBody,
		Type:   replyType,
		Id:     message.Id,
		Target: message.Origin,
	}
}

func argumentMatches(v interface{}, kind ArgumentKind) bool {
	switch kind {
	case NumberArgument:
		// JSON numbers always decode to float64
		_, ok := v.(float64)
		return ok
	case StringArgument:
		s, ok := v.(string)
		return ok && s != ""
	case UUIDArgument:
		s, ok := v.(string)
		if !ok {
			return false
		}

		_, err := uuid.Parse(s)
		return err == nil
	default:
		return false
	}
}
