package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agrigrow/agrichat/pkg/bus"
)

// Store is the ordered, de-duplicated message collection for one open
// conversation. It reconciles three sources: the REST history fetch,
// locally created optimistic entries, and the live stream. All methods are
// safe for concurrent use.
type Store struct {
	mu sync.Mutex

	localUserID   string
	participantID string
	room          string

	// matchWindow bounds how far apart an optimistic entry and its server
	// echo may be timestamped and still be treated as the same message.
	// Zero or negative disables the time bound.
	matchWindow time.Duration

	messages []Message
	events   *bus.EventBus
}

// NewStore creates a store scoped to the (localUser, participant) pair.
// events may be nil; when set, every applied mutation is published on it.
func NewStore(localUserID, participantID string, matchWindow time.Duration, events *bus.EventBus) *Store {
	return &Store{
		localUserID:   localUserID,
		participantID: participantID,
		room:          RoomKey(localUserID, participantID),
		matchWindow:   matchWindow,
		events:        events,
	}
}

// Room returns the conversation's room key.
func (s *Store) Room() string {
	return s.room
}

// LoadHistory replaces the store contents wholesale with the server-ordered
// history. Any prior optimistic entries are discarded; a fresh session
// starts clean.
func (s *Store) LoadHistory(history []Message) {
	s.mu.Lock()
	s.messages = make([]Message, 0, len(history))
	for _, m := range history {
		if !s.belongsLocked(m) {
			continue
		}
		m.Delivery = DeliveryConfirmed
		s.messages = append(s.messages, m)
	}
	n := len(s.messages)
	s.mu.Unlock()

	s.publish(bus.StoreEvent{Room: s.room, Kind: bus.StoreHistoryLoaded, Count: n})
}

// AppendOptimistic appends a pending entry for a locally sent message and
// returns its local id, so the caller can later confirm or roll it back.
func (s *Store) AppendOptimistic(senderID, receiverID, body string) string {
	msg := Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       strings.TrimSpace(body),
		Timestamp:  time.Now(),
		Delivery:   DeliveryPending,
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(bus.StoreEvent{
		Room:      s.room,
		Kind:      bus.StoreAppended,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	})
	return msg.ID
}

// ConfirmOrInsert applies a server-confirmed message from the live stream
// or a send acknowledgment. If a pending entry matches it is replaced in
// place, preserving position; a message whose server id is already present
// is dropped; anything else is appended. Messages that do not belong to
// this conversation are rejected. Returns true when the store changed.
func (s *Store) ConfirmOrInsert(msg Message) bool {
	s.mu.Lock()

	if !s.belongsLocked(msg) {
		s.mu.Unlock()
		return false
	}

	// Duplicate delivery (reconnect replay) leaves the store unchanged.
	for i := range s.messages {
		if s.messages[i].ID == msg.ID {
			s.mu.Unlock()
			return false
		}
	}

	msg.Body = strings.TrimSpace(msg.Body)
	msg.Delivery = DeliveryConfirmed

	// Resolve the send-echo race: the earliest pending entry with the same
	// pair and body is the optimistic copy of this message.
	for i := range s.messages {
		m := &s.messages[i]
		if m.Delivery != DeliveryPending {
			continue
		}
		if m.SenderID != msg.SenderID || m.ReceiverID != msg.ReceiverID || m.Body != msg.Body {
			continue
		}
		if s.matchWindow > 0 && absDuration(msg.Timestamp.Sub(m.Timestamp)) > s.matchWindow {
			continue
		}
		*m = msg
		s.mu.Unlock()
		s.publish(bus.StoreEvent{
			Room:      s.room,
			Kind:      bus.StoreConfirmed,
			MessageID: msg.ID,
			SenderID:  msg.SenderID,
			Body:      msg.Body,
			Timestamp: msg.Timestamp,
		})
		return true
	}

	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	s.publish(bus.StoreEvent{
		Room:      s.room,
		Kind:      bus.StoreAppended,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
	})
	return true
}

// Rollback removes a pending entry whose send failed. Confirmed entries are
// never removed.
func (s *Store) Rollback(localID string) bool {
	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].ID == localID && s.messages[i].Delivery == DeliveryPending {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			s.mu.Unlock()
			s.publish(bus.StoreEvent{Room: s.room, Kind: bus.StoreRemoved, MessageID: localID})
			return true
		}
	}
	s.mu.Unlock()
	return false
}

// Messages returns a snapshot of the visible sequence in insertion order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// belongsLocked reports whether msg is part of this conversation: its
// sender/receiver pair must be exactly the (localUser, participant) pair,
// in either direction.
func (s *Store) belongsLocked(msg Message) bool {
	return (msg.SenderID == s.localUserID && msg.ReceiverID == s.participantID) ||
		(msg.SenderID == s.participantID && msg.ReceiverID == s.localUserID)
}

func (s *Store) publish(ev bus.StoreEvent) {
	if s.events == nil {
		return
	}
	_ = s.events.PublishStore(context.TODO(), ev)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
