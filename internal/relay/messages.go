package relay

import "time"

// Literal heartbeat frames exchanged on the viewer channel. Everything else
// on that channel is JSON.
const (
	pingFrame = "ping"
	pongFrame = "pong"
)

// CaptionMessage is broadcast verbatim to every recipient of a room.
type CaptionMessage struct {
	Type        string  `json:"type"`
	TS          float64 `json:"ts"`
	Original    string  `json:"original"`
	Translation string  `json:"translation"`
}

// NewCaption builds a caption message stamped with the current time.
func NewCaption(original, translation string) CaptionMessage {
	return CaptionMessage{
		Type:        "caption",
		TS:          float64(time.Now().UnixNano()) / float64(time.Second),
		Original:    original,
		Translation: translation,
	}
}

// StatusMessage reports connection lifecycle events to a client.
type StatusMessage struct {
	Type    string `json:"type"` // connection_established or error
	RoomID  string `json:"room_id,omitempty"`
	Message string `json:"message"`
}

// Command is a JSON message from a viewer.
type Command struct {
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
}
