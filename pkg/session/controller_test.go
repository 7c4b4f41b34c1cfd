package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agrigrow/agrichat/pkg/chat"
	"github.com/agrigrow/agrichat/pkg/transport"
)

const (
	localUser    = "user-local"
	participantB = "user-b"
	participantC = "user-c"
)

type fakeTransport struct {
	mu        sync.Mutex
	opened    []string
	closed    int
	running   bool
	onMessage func(transport.MessagePayload)
	onState   func(transport.State)
	openState transport.State
	openHook  func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{openState: transport.StateConnected}
}

func (f *fakeTransport) Open(ctx context.Context, roomKey string) {
	f.mu.Lock()
	f.opened = append(f.opened, roomKey)
	f.running = true
	cb := f.onState
	state := f.openState
	hook := f.openHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if cb != nil {
		cb(state)
	}
}

func (f *fakeTransport) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	f.running = false
}

func (f *fakeTransport) OnMessage(cb func(transport.MessagePayload)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onMessage = cb
}

func (f *fakeTransport) OnStateChange(cb func(transport.State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onState = cb
}

func (f *fakeTransport) State() transport.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openState
}

func (f *fakeTransport) deliver(p transport.MessagePayload) {
	f.mu.Lock()
	cb := f.onMessage
	f.mu.Unlock()
	if cb != nil {
		cb(p)
	}
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) isRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

type fakeAPI struct {
	mu           sync.Mutex
	history      []chat.Message
	historyErr   error
	messagesHook func()
	sendFn       func(receiverID, body string) (chat.Message, error)
}

func (f *fakeAPI) Messages(ctx context.Context, participantID string) ([]chat.Message, error) {
	f.mu.Lock()
	hook := f.messagesHook
	history := f.history
	err := f.historyErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return history, err
}

func (f *fakeAPI) SendMessage(ctx context.Context, receiverID, body string) (chat.Message, error) {
	f.mu.Lock()
	fn := f.sendFn
	f.mu.Unlock()
	if fn != nil {
		return fn(receiverID, body)
	}
	return chat.Message{
		ID: "srv-1", SenderID: localUser, ReceiverID: receiverID,
		Body: body, Timestamp: time.Now(),
	}, nil
}

func newTestController(api *fakeAPI) (*Controller, *fakeTransport) {
	tr := newFakeTransport()
	ctrl := New(localUser, api, func() Transport { return tr }, nil)
	return ctrl, tr
}

func TestController_OpenBecomesActive(t *testing.T) {
	api := &fakeAPI{history: []chat.Message{
		{ID: "m1", SenderID: participantB, ReceiverID: localUser, Body: "hi", Timestamp: time.Now()},
	}}
	ctrl, tr := newTestController(api)

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if ctrl.State() != StateActive {
		t.Errorf("expected active, got %s", ctrl.State())
	}
	if got := chat.RoomKey(localUser, participantB); len(tr.opened) != 1 || tr.opened[0] != got {
		t.Errorf("expected transport opened with room %s, got %v", got, tr.opened)
	}
	if len(ctrl.Messages()) != 1 {
		t.Errorf("expected 1 history message, got %d", len(ctrl.Messages()))
	}
}

func TestController_OpenSameParticipantIsNoOp(t *testing.T) {
	api := &fakeAPI{}
	tr := newFakeTransport()
	factoryCalls := 0
	ctrl := New(localUser, api, func() Transport {
		factoryCalls++
		return tr
	}, nil)

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if factoryCalls != 1 {
		t.Errorf("expected a single transport, got %d", factoryCalls)
	}
}

func TestController_HistoryErrorRecovers(t *testing.T) {
	boom := errors.New("boom")
	api := &fakeAPI{historyErr: boom}
	ctrl, tr := newTestController(api)

	err := ctrl.Open(context.Background(), participantB)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped history error, got %v", err)
	}
	if ctrl.State() != StateIdle {
		t.Errorf("expected idle after failed open, got %s", ctrl.State())
	}

	// The failure is recoverable: a retry succeeds.
	api.mu.Lock()
	api.historyErr = nil
	api.mu.Unlock()
	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	_ = tr
}

func TestController_CloseIsIdempotent(t *testing.T) {
	api := &fakeAPI{}
	ctrl, tr := newTestController(api)

	// Closing with no session is safe.
	ctrl.Close()

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctrl.Close()
	ctrl.Close()

	if tr.closeCount() != 1 {
		t.Errorf("transport must be closed exactly once, got %d", tr.closeCount())
	}
	if ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", ctrl.State())
	}
}

func TestController_SendConfirmsOptimisticEntry(t *testing.T) {
	api := &fakeAPI{}
	ctrl, _ := newTestController(api)

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := ctrl.Send(context.Background(), "  hello  "); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	msgs := ctrl.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].ID != "srv-1" || msgs[0].Delivery != chat.DeliveryConfirmed {
		t.Errorf("expected confirmed srv-1, got %+v", msgs[0])
	}
	if msgs[0].Body != "hello" {
		t.Errorf("expected trimmed body, got %q", msgs[0].Body)
	}
}

func TestController_SendEchoBeforeAck(t *testing.T) {
	api := &fakeAPI{}
	ctrl, tr := newTestController(api)

	server := chat.Message{
		ID: "srv-2", SenderID: localUser, ReceiverID: participantB,
		Body: "ping", Timestamp: time.Now(),
	}
	api.sendFn = func(receiverID, body string) (chat.Message, error) {
		// The stream echo lands before the REST response does.
		tr.deliver(transport.MessagePayload{
			ID: server.ID, SenderID: server.SenderID, ReceiverID: server.ReceiverID,
			Body: server.Body, Timestamp: server.Timestamp,
		})
		return server, nil
	}

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := ctrl.Send(context.Background(), "ping"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got := len(ctrl.Messages()); got != 1 {
		t.Errorf("echo plus acknowledgment must yield exactly 1 entry, got %d", got)
	}
}

func TestController_SendFailureRollsBack(t *testing.T) {
	api := &fakeAPI{}
	ctrl, _ := newTestController(api)
	api.sendFn = func(receiverID, body string) (chat.Message, error) {
		return chat.Message{}, errors.New("503")
	}

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := ctrl.Send(context.Background(), "doomed"); err == nil {
		t.Fatal("expected send error")
	}
	if got := len(ctrl.Messages()); got != 0 {
		t.Errorf("optimistic entry must be rolled back, got %d messages", got)
	}
	if ctrl.State() != StateActive {
		t.Errorf("a failed send must not end the session, got %s", ctrl.State())
	}
}

func TestController_SendRejections(t *testing.T) {
	api := &fakeAPI{}
	ctrl, _ := newTestController(api)

	if err := ctrl.Send(context.Background(), "hi"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := ctrl.Send(context.Background(), "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestController_SupersededOpen(t *testing.T) {
	fetching := make(chan struct{})
	release := make(chan struct{})

	apiB := &fakeAPI{}
	apiB.messagesHook = func() {
		close(fetching)
		<-release
	}

	trB := newFakeTransport()
	trC := newFakeTransport()
	transports := []*fakeTransport{trB, trC}
	next := 0
	ctrl := New(localUser, apiB, func() Transport {
		tr := transports[next]
		next++
		return tr
	}, nil)

	errc := make(chan error, 1)
	go func() {
		errc <- ctrl.Open(context.Background(), participantB)
	}()
	<-fetching

	// Switch participants while B's history fetch is still in flight.
	apiB.mu.Lock()
	apiB.messagesHook = nil
	apiB.mu.Unlock()
	if err := ctrl.Open(context.Background(), participantC); err != nil {
		t.Fatalf("open C failed: %v", err)
	}
	close(release)

	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Errorf("expected ErrSuperseded for B, got %v", err)
	}
	if ctrl.Participant() != participantC {
		t.Errorf("expected session with C, got %q", ctrl.Participant())
	}
	if len(trB.opened) != 0 {
		t.Errorf("stale transport must never be opened, got %v", trB.opened)
	}
}

func TestController_CloseDuringTransportOpen(t *testing.T) {
	api := &fakeAPI{}
	ctrl, tr := newTestController(api)

	// Close lands while the transport is opening; its teardown cannot
	// reach a connection that has not dialed yet, so the open path must
	// reap it.
	tr.openHook = func() { ctrl.Close() }

	err := ctrl.Open(context.Background(), participantB)
	if !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if tr.isRunning() {
		t.Error("transport must not be left open")
	}
	if ctrl.State() != StateIdle {
		t.Errorf("expected idle, got %s", ctrl.State())
	}
}

func TestController_LateStreamMessageDiscarded(t *testing.T) {
	api := &fakeAPI{}
	ctrl, tr := newTestController(api)

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	ctrl.Close()

	tr.deliver(transport.MessagePayload{
		ID: "late-1", SenderID: participantB, ReceiverID: localUser,
		Body: "too late", Timestamp: time.Now(),
	})

	if msgs := ctrl.Messages(); msgs != nil {
		t.Errorf("closed session must drop stream messages, got %v", msgs)
	}
}

func TestController_DegradedActiveAfterRetryExhaustion(t *testing.T) {
	api := &fakeAPI{}
	ctrl, tr := newTestController(api)
	tr.openState = transport.StateFailed

	if err := ctrl.Open(context.Background(), participantB); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if ctrl.State() != StateActive {
		t.Errorf("expected degraded active session, got %s", ctrl.State())
	}
	if ctrl.ConnectionState() != transport.StateFailed {
		t.Errorf("expected failed connection state, got %s", ctrl.ConnectionState())
	}

	// Sends still work over REST.
	if err := ctrl.Send(context.Background(), "still here"); err != nil {
		t.Fatalf("send in degraded session failed: %v", err)
	}
}
