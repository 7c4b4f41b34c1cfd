package api

import (
	"encoding/json"
	"time"

	"github.com/agrigrow/agrichat/pkg/chat"
)

// envelope is the response wrapper used by every backend endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Token   string          `json:"token,omitempty"`
	User    json.RawMessage `json:"user,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// User is an account profile as returned by the auth endpoints.
type User struct {
	ID           string `json:"_id"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"isAdmin,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// Participant is a chat participant summary from /chat/participants.
type Participant struct {
	ID           string `json:"_id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	IsAdmin      bool   `json:"isAdmin"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// DisplayName returns the participant's name, falling back to the email.
func (p Participant) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

// Product is a marketplace listing.
type Product struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description,omitempty"`
	Image       string  `json:"image,omitempty"`
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// wireMessage is a chat message as serialized by the backend. History rows
// use sender/receiver while the stream and send ack use senderId/receiverId;
// both forms are accepted.
type wireMessage struct {
	ID         string    `json:"_id"`
	Sender     string    `json:"sender,omitempty"`
	SenderID   string    `json:"senderId,omitempty"`
	Receiver   string    `json:"receiver,omitempty"`
	ReceiverID string    `json:"receiverId,omitempty"`
	Body       string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

func (m wireMessage) toMessage() chat.Message {
	sender := m.SenderID
	if sender == "" {
		sender = m.Sender
	}
	receiver := m.ReceiverID
	if receiver == "" {
		receiver = m.Receiver
	}
	return chat.Message{
		ID:         m.ID,
		SenderID:   sender,
		ReceiverID: receiver,
		Body:       m.Body,
		Timestamp:  m.Timestamp,
		Delivery:   chat.DeliveryConfirmed,
	}
}
