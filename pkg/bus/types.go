package bus

import "time"

// StoreKind classifies a message-store mutation.
type StoreKind string

const (
	StoreHistoryLoaded StoreKind = "history_loaded"
	StoreAppended      StoreKind = "appended"
	StoreConfirmed     StoreKind = "confirmed"
	StoreRemoved       StoreKind = "removed"
)

// StoreEvent announces an applied message-store mutation to subscribers
// (the terminal view, primarily). It carries enough to render inbound
// lines without reaching back into the store.
type StoreEvent struct {
	Room      string    `json:"room"`
	Kind      StoreKind `json:"kind"`
	MessageID string    `json:"message_id,omitempty"`
	SenderID  string    `json:"sender_id,omitempty"`
	Body      string    `json:"body,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	Count     int       `json:"count,omitempty"` // history size for StoreHistoryLoaded
}

// ConnectionEvent announces a transport connection state change for a room.
type ConnectionEvent struct {
	Room  string `json:"room"`
	State string `json:"state"`
}
