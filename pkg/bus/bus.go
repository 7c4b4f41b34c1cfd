// Package bus carries store and connection events from the chat core to
// its observers over buffered channels.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
)

// ErrBusClosed is returned when publishing to a closed EventBus.
var ErrBusClosed = errors.New("event bus closed")

type EventBus struct {
	store      chan StoreEvent
	connection chan ConnectionEvent
	done       chan struct{}
	closed     atomic.Bool
}

func NewEventBus() *EventBus {
	return &EventBus{
		store:      make(chan StoreEvent, 100),
		connection: make(chan ConnectionEvent, 100),
		done:       make(chan struct{}),
	}
}

func (eb *EventBus) PublishStore(ctx context.Context, ev StoreEvent) error {
	if eb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case eb.store <- ev:
		return nil
	case <-eb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (eb *EventBus) ConsumeStore(ctx context.Context) (StoreEvent, bool) {
	select {
	case ev, ok := <-eb.store:
		return ev, ok
	case <-eb.done:
		return StoreEvent{}, false
	case <-ctx.Done():
		return StoreEvent{}, false
	}
}

func (eb *EventBus) PublishConnection(ctx context.Context, ev ConnectionEvent) error {
	if eb.closed.Load() {
		return ErrBusClosed
	}
	select {
	case eb.connection <- ev:
		return nil
	case <-eb.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (eb *EventBus) ConsumeConnection(ctx context.Context) (ConnectionEvent, bool) {
	select {
	case ev, ok := <-eb.connection:
		return ev, ok
	case <-eb.done:
		return ConnectionEvent{}, false
	case <-ctx.Done():
		return ConnectionEvent{}, false
	}
}

func (eb *EventBus) Close() {
	if eb.closed.CompareAndSwap(false, true) {
		close(eb.done)
	}
}
