// Package session binds a (local user, participant) pair to one transport
// adapter and one message store, and owns the session lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agrigrow/agrichat/pkg/bus"
	"github.com/agrigrow/agrichat/pkg/chat"
	"github.com/agrigrow/agrichat/pkg/logger"
	"github.com/agrigrow/agrichat/pkg/transport"
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateOpening State = "opening"
	StateActive  State = "active"
	StateClosing State = "closing"
)

var (
	// ErrEmptyMessage rejects a send whose body is empty or whitespace.
	ErrEmptyMessage = errors.New("message body is empty")
	// ErrNoSession rejects operations outside an active session.
	ErrNoSession = errors.New("no active session")
	// ErrSuperseded is returned by Open when the session was replaced or
	// closed while its history fetch was still in flight.
	ErrSuperseded = errors.New("session superseded")
)

// ChatAPI is the REST collaborator the controller fetches history from and
// sends messages through.
type ChatAPI interface {
	Messages(ctx context.Context, participantID string) ([]chat.Message, error)
	SendMessage(ctx context.Context, receiverID, body string) (chat.Message, error)
}

// Transport is the live-stream collaborator. One instance is created per
// session and exclusively owned by it.
type Transport interface {
	Open(ctx context.Context, roomKey string)
	Close()
	OnMessage(func(transport.MessagePayload))
	OnStateChange(func(transport.State))
	State() transport.State
}

// TransportFactory builds the transport for a new session.
type TransportFactory func() Transport

// Option configures a Controller.
type Option func(*Controller)

// WithEchoMatchWindow sets the store's optimistic-echo match window.
func WithEchoMatchWindow(d time.Duration) Option {
	return func(c *Controller) { c.matchWindow = d }
}

// Controller is the single integration point the surrounding UI calls
// into. At most one session is live at a time; opening a new participant
// completes the close of the previous session first.
type Controller struct {
	localUserID  string
	api          ChatAPI
	newTransport TransportFactory
	events       *bus.EventBus
	matchWindow  time.Duration

	mu              sync.Mutex
	state           State
	epoch           uint64
	participantID   string
	store           *chat.Store
	transport       Transport
	transportClosed bool
	historyLoaded   bool
	connState       transport.State
}

func New(localUserID string, chatAPI ChatAPI, factory TransportFactory, events *bus.EventBus, opts ...Option) *Controller {
	c := &Controller{
		localUserID:  localUserID,
		api:          chatAPI,
		newTransport: factory,
		events:       events,
		matchWindow:  2 * time.Minute,
		state:        StateIdle,
		connState:    transport.StateDisconnected,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open starts a session with participantID: fetches history, loads the
// store and connects the transport. Any previous session is closed first.
// A history fetch failure is recoverable; the controller returns to idle
// and the caller may retry.
func (c *Controller) Open(ctx context.Context, participantID string) error {
	c.mu.Lock()
	if c.state == StateActive && c.participantID == participantID {
		c.mu.Unlock()
		return nil
	}
	prev := c.epoch
	needClose := c.state != StateIdle
	c.mu.Unlock()

	if needClose {
		c.closeEpoch(prev)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("open %s: session busy", participantID)
	}
	c.epoch++
	epoch := c.epoch
	c.state = StateOpening
	c.participantID = participantID
	c.historyLoaded = false
	c.connState = transport.StateDisconnected

	store := chat.NewStore(c.localUserID, participantID, c.matchWindow, c.events)
	tr := c.newTransport()
	c.store = store
	c.transport = tr
	c.transportClosed = false
	c.mu.Unlock()

	// Handlers are tagged with the session epoch: anything arriving after
	// this session is closed is discarded, never applied to a stale store.
	tr.OnMessage(func(p transport.MessagePayload) {
		if !c.isCurrent(epoch) {
			return
		}
		store.ConfirmOrInsert(chat.Message{
			ID:         p.ID,
			SenderID:   p.SenderID,
			ReceiverID: p.ReceiverID,
			Body:       p.Body,
			Timestamp:  p.Timestamp,
		})
	})
	tr.OnStateChange(func(s transport.State) {
		c.handleConnState(epoch, s)
	})

	history, err := c.api.Messages(ctx, participantID)
	if !c.isCurrent(epoch) {
		return ErrSuperseded
	}
	if err != nil {
		c.closeEpoch(epoch)
		return fmt.Errorf("fetching history for %s: %w", participantID, err)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.historyLoaded = true
	c.mu.Unlock()

	store.LoadHistory(history)
	tr.Open(ctx, store.Room())

	// A Close racing the tail of this open may have torn the session down
	// before the transport dialed; it cannot reach a connection that did
	// not exist yet, so the orphan is reaped here.
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		tr.Close()
		return ErrSuperseded
	}
	c.mu.Unlock()

	logger.InfoCF("session", "Session opening", map[string]any{
		"participant": participantID,
		"room":        store.Room(),
		"history":     len(history),
	})
	return nil
}

// Send validates and sends body to the session's participant: optimistic
// append, REST send, then confirmation — tolerating the stream echo
// arriving before or after the send response. On failure the optimistic
// entry is rolled back and the error returned for display.
func (c *Controller) Send(ctx context.Context, body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNoSession
	}
	epoch := c.epoch
	store := c.store
	participant := c.participantID
	c.mu.Unlock()

	localID := store.AppendOptimistic(c.localUserID, participant, trimmed)

	msg, err := c.api.SendMessage(ctx, participant, trimmed)
	if err != nil {
		if c.isCurrent(epoch) {
			store.Rollback(localID)
		}
		return fmt.Errorf("sending message: %w", err)
	}

	// ConfirmOrInsert is idempotent, so it does not matter whether the
	// stream echo beat this acknowledgment.
	if c.isCurrent(epoch) {
		store.ConfirmOrInsert(msg)
	}
	return nil
}

// Close ends the current session. The transport is closed exactly once;
// calling Close with no session (or twice) is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	epoch := c.epoch
	c.mu.Unlock()
	c.closeEpoch(epoch)
}

// State returns the controller lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionState returns the transport state of the current session.
func (c *Controller) ConnectionState() transport.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Participant returns the participant id of the current session, or empty.
func (c *Controller) Participant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

// Messages returns a snapshot of the current session's message sequence.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	store := c.store
	c.mu.Unlock()
	if store == nil {
		return nil
	}
	return store.Messages()
}

// closeEpoch tears down the session identified by epoch. Stale epochs are
// ignored, which makes close idempotent and safe against racing opens.
func (c *Controller) closeEpoch(epoch uint64) {
	c.mu.Lock()
	if c.epoch != epoch || c.state == StateIdle || c.state == StateClosing {
		c.mu.Unlock()
		return
	}
	c.state = StateClosing
	c.epoch++
	tr := c.transport
	alreadyClosed := c.transportClosed
	c.transportClosed = true
	c.transport = nil
	c.store = nil
	c.historyLoaded = false
	participant := c.participantID
	c.participantID = ""
	c.connState = transport.StateDisconnected
	c.mu.Unlock()

	if tr != nil && !alreadyClosed {
		tr.Close()
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()

	logger.InfoCF("session", "Session closed", map[string]any{"participant": participant})
}

func (c *Controller) isCurrent(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

// handleConnState records transport state changes and completes the
// opening transition. Retry exhaustion degrades the session instead of
// ending it: sends still go over REST, live updates stop.
func (c *Controller) handleConnState(epoch uint64, s transport.State) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	c.connState = s
	room := ""
	if c.store != nil {
		room = c.store.Room()
	}
	if c.state == StateOpening && c.historyLoaded &&
		(s == transport.StateConnected || s == transport.StateFailed) {
		c.state = StateActive
	}
	c.mu.Unlock()

	if s == transport.StateFailed {
		logger.ErrorCF("session", "Live updates unavailable", map[string]any{"room": room})
	}

	if c.events != nil {
		_ = c.events.PublishConnection(context.TODO(), bus.ConnectionEvent{
			Room:  room,
			State: string(s),
		})
	}
}
