// Package chat holds the conversation data model and the per-conversation
// message store.
package chat

import (
	"sort"
	"strings"
	"time"
)

// DeliveryState tracks a message's progress from local send to server
// confirmation.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliveryConfirmed DeliveryState = "confirmed"
	DeliveryFailed    DeliveryState = "failed"
)

// Message is one entry in a 1:1 conversation. ID is either a server-assigned
// id or, for optimistic entries awaiting confirmation, a client-generated
// local id.
type Message struct {
	ID         string        `json:"_id"`
	SenderID   string        `json:"senderId"`
	ReceiverID string        `json:"receiverId"`
	Body       string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
	Delivery   DeliveryState `json:"-"`
}

// RoomKey derives the stable room identifier for a 1:1 conversation. It is
// order-independent: both participants compute the same key.
func RoomKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "_")
}
