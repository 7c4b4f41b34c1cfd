package bus

import (
	"context"
	"testing"
	"time"
)

func TestEventBus_PublishConsume(t *testing.T) {
	eb := NewEventBus()
	defer eb.Close()

	ctx := context.Background()
	if err := eb.PublishStore(ctx, StoreEvent{Room: "a_b", Kind: StoreAppended, MessageID: "m1"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	ev, ok := eb.ConsumeStore(ctx)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Kind != StoreAppended || ev.MessageID != "m1" {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestEventBus_Close(t *testing.T) {
	eb := NewEventBus()
	eb.Close()
	eb.Close()

	if err := eb.PublishStore(context.Background(), StoreEvent{}); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, ok := eb.ConsumeConnection(ctx); ok {
		t.Error("consume on a closed bus must report not ok")
	}
}
