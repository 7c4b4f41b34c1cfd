// Package transport maintains the persistent websocket connection to the
// chat service for one active conversation session.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agrigrow/agrichat/pkg/logger"
)

// State is the connection lifecycle state surfaced to the session layer.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateFailed is reported once the reconnect budget is exhausted. The
	// adapter stops on its own; only a fresh Open restarts the sequence.
	StateFailed State = "failed"
)

const writeWait = 10 * time.Second

// Option configures an Adapter.
type Option func(*Adapter)

// WithReconnect bounds automatic reconnection: at most attempts redials,
// each after a fixed delay.
func WithReconnect(attempts int, delay time.Duration) Option {
	return func(a *Adapter) {
		a.maxAttempts = attempts
		a.delay = delay
	}
}

// WithDialer overrides the websocket dialer, primarily for tests.
func WithDialer(d *websocket.Dialer) Option {
	return func(a *Adapter) { a.dialer = d }
}

// Adapter owns one live connection to the chat service. Connection errors
// are never returned synchronously; they surface through the state-change
// callback, and the adapter recovers transparently up to the retry bound.
type Adapter struct {
	endpoint    string
	maxAttempts int
	delay       time.Duration
	dialer      *websocket.Dialer

	mu        sync.Mutex
	running   bool
	roomKey   string
	state     State
	conn      *websocket.Conn
	done      chan struct{}
	onMessage func(MessagePayload)
	onState   func(State)
}

func NewAdapter(endpoint string, opts ...Option) *Adapter {
	a := &Adapter{
		endpoint:    endpoint,
		maxAttempts: 5,
		delay:       time.Second,
		dialer:      websocket.DefaultDialer,
		state:       StateDisconnected,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnMessage registers the handler invoked once per inbound newMessage
// event. It must be set before Open.
func (a *Adapter) OnMessage(fn func(MessagePayload)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onMessage = fn
}

// OnStateChange registers the connection state callback.
func (a *Adapter) OnStateChange(fn func(State)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onState = fn
}

// State returns the current connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Open establishes the connection and joins roomKey once connected. It is
// idempotent: calling Open while already running for the same room is a
// no-op. Opening a different room tears the previous connection down
// first.
func (a *Adapter) Open(ctx context.Context, roomKey string) {
	a.mu.Lock()
	if a.running && a.roomKey == roomKey {
		a.mu.Unlock()
		return
	}
	if a.running {
		a.mu.Unlock()
		a.Close()
		a.mu.Lock()
	}

	done := make(chan struct{})
	a.running = true
	a.roomKey = roomKey
	a.done = done
	a.mu.Unlock()

	go a.run(ctx, roomKey, done)
}

// Close tears the connection down unconditionally. It is safe to call on
// an adapter that was never opened, and safe to call more than once.
func (a *Adapter) Close() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.done)
	conn := a.conn
	a.conn = nil
	a.state = StateDisconnected
	a.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
}

// run drives the connect / join / read cycle until Close or retry
// exhaustion. A successful connection resets the reconnect budget.
func (a *Adapter) run(ctx context.Context, roomKey string, done chan struct{}) {
	first := true
	for {
		conn := a.connect(ctx, roomKey, done, first)
		if conn == nil {
			return
		}
		first = false

		a.readLoop(conn, done)

		a.mu.Lock()
		if a.conn == conn {
			a.conn = nil
		}
		a.mu.Unlock()
		_ = conn.Close()

		select {
		case <-done:
			return
		case <-ctx.Done():
			a.setState(StateDisconnected)
			return
		default:
		}
	}
}

// connect dials until the attempt budget runs out. The first attempt
// reports connecting, retries report reconnecting; exhaustion reports
// failed and returns nil.
func (a *Adapter) connect(ctx context.Context, roomKey string, done chan struct{}, first bool) *websocket.Conn {
	for attempt := 0; attempt <= a.maxAttempts; attempt++ {
		if attempt == 0 && first {
			a.setState(StateConnecting)
		} else {
			a.setState(StateReconnecting)
			select {
			case <-time.After(a.delay):
			case <-done:
				return nil
			case <-ctx.Done():
				a.setState(StateDisconnected)
				return nil
			}
		}

		conn, resp, err := a.dialer.DialContext(ctx, a.endpoint, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			logger.WarnCF("transport", "Dial failed", map[string]any{
				"endpoint": a.endpoint,
				"attempt":  attempt,
				"error":    err.Error(),
			})
			continue
		}

		if err := a.join(conn, roomKey); err != nil {
			logger.WarnCF("transport", "Room join failed", map[string]any{
				"room":  roomKey,
				"error": err.Error(),
			})
			_ = conn.Close()
			continue
		}

		a.mu.Lock()
		if !a.running {
			// Closed while dialing; do not resurrect the connection.
			a.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		a.conn = conn
		a.mu.Unlock()

		a.setState(StateConnected)
		logger.InfoCF("transport", "Joined room", map[string]any{"room": roomKey})
		return conn
	}

	a.setState(StateFailed)
	logger.ErrorCF("transport", "Reconnect attempts exhausted", map[string]any{
		"room":     roomKey,
		"attempts": a.maxAttempts,
	})
	return nil
}

func (a *Adapter) join(conn *websocket.Conn, roomKey string) error {
	frame, err := joinFrame(roomKey)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// readLoop dispatches inbound frames until the connection drops or the
// adapter is closed. Malformed frames are logged and skipped.
func (a *Adapter) readLoop(conn *websocket.Conn, done chan struct{}) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			select {
			case <-done:
			default:
				logger.DebugCF("transport", "Read error", map[string]any{"error": err.Error()})
			}
			return
		}

		if frame.Event != eventNewMessage {
			continue
		}

		var payload MessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			logger.WarnCF("transport", "Malformed message payload", map[string]any{"error": err.Error()})
			continue
		}

		a.mu.Lock()
		handler := a.onMessage
		a.mu.Unlock()
		if handler != nil {
			handler(payload)
		}
	}
}

func (a *Adapter) setState(s State) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	handler := a.onState
	a.mu.Unlock()

	if handler != nil {
		handler(s)
	}
}
