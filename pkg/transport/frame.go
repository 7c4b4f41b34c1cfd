package transport

import (
	"encoding/json"
	"time"
)

const (
	eventJoinRoom   = "joinRoom"
	eventNewMessage = "newMessage"
)

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// MessagePayload is the newMessage event body pushed by the server.
type MessagePayload struct {
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"message"`
	ID         string    `json:"_id"`
	Timestamp  time.Time `json:"timestamp"`
}

func joinFrame(roomKey string) (Frame, error) {
	data, err := json.Marshal(roomKey)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: eventJoinRoom, Data: data}, nil
}
