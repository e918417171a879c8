package saver

import (
	"fmt"
	"sync/atomic"
	"time"
)

// FsOp classifies a filesystem notification.
type FsOp int

const (
	OpCreated FsOp = iota
	OpModified
	OpDeleted
)

func (op FsOp) String() string {
	switch op {
	case OpCreated:
		return "created"
	case OpModified:
		return "modified"
	case OpDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FsEvent is a single filesystem notification, normalized away from the
// underlying watcher library's flag set.
type FsEvent struct {
	Op    FsOp
	Path  string
	IsDir bool
}

// StatusEvent is one human-readable status line pushed by the engine.
// A presentation layer may consume these on its own schedule.
type StatusEvent struct {
	Time    time.Time
	Target  string
	Message string
}

// EventBus carries StatusEvents from the engine to an optional consumer.
// Delivery is best-effort: when the buffer is full the event is dropped,
// so the engine never blocks on a slow or absent consumer. One bus is
// shared by every session, so Publish must be safe for concurrent use.
type EventBus struct {
	ch      chan StatusEvent
	clock   Clock
	dropped atomic.Int64
}

// NewEventBus creates a bus with the given buffer capacity.
func NewEventBus(capacity int, clock Clock) *EventBus {
	if capacity <= 0 {
		capacity = 64
	}
	return &EventBus{ch: make(chan StatusEvent, capacity), clock: clock}
}

// Publish formats and enqueues a status line. Never blocks.
func (b *EventBus) Publish(target, format string, args ...any) {
	if b == nil {
		return
	}
	ev := StatusEvent{
		Time:    b.clock.Now(),
		Target:  target,
		Message: fmt.Sprintf(format, args...),
	}
	select {
	case b.ch <- ev:
	default:
		b.dropped.Add(1)
	}
}

// Events returns the receive side of the bus.
func (b *EventBus) Events() <-chan StatusEvent { return b.ch }

// Dropped reports how many events were discarded because the buffer was full.
func (b *EventBus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}
