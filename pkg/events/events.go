// Package events implements the server's lifecycle event bus: typed event
// channels keyed by event kind, replacing the function-field callback style
// (one OnXEvent struct per callback field) with a single Subscribe() that
// fans out every kind to every subscriber.
package events

import (
	"sync"
	"time"

	"github.com/hearthai/hearth/pkg/modeltypes"
	"github.com/hearthai/hearth/pkg/task"
)

// Kind identifies one of the lifecycle event payload types.
type Kind string

const (
	KindReady            Kind = "ready"
	KindInstanceCreated  Kind = "instance-created"
	KindInstanceDisposed Kind = "instance-disposed"
	KindTaskCompleted    Kind = "task-completed"
)

// Event is implemented by every lifecycle event payload.
type Event interface {
	Kind() Kind
}

// ReadyEvent is emitted once, when the server has finished constructing its
// Store and Pool and is ready to accept requests.
type ReadyEvent struct {
	Time time.Time
}

func (ReadyEvent) Kind() Kind { return KindReady }

// InstanceCreatedEvent is emitted whenever the pool loads a new instance.
type InstanceCreatedEvent struct {
	ModelID string
	UID     string
	GPU     bool
	Time    time.Time
}

func (InstanceCreatedEvent) Kind() Kind { return KindInstanceCreated }

// InstanceDisposedEvent is emitted whenever the pool tears an instance down
// (TTL eviction, GPU-residency eviction, or pool shutdown).
type InstanceDisposedEvent struct {
	ModelID string
	UID     string
	Time    time.Time
}

func (InstanceDisposedEvent) Kind() Kind { return KindInstanceDisposed }

// TaskCompletedEvent is emitted whenever a task reaches a terminal state.
type TaskCompletedEvent struct {
	ModelID      string
	InstanceUID  string
	TaskID       string
	State        task.State
	FinishReason modeltypes.FinishReason
	Usage        modeltypes.Usage
	Time         time.Time
}

func (TaskCompletedEvent) Kind() Kind { return KindTaskCompleted }

// Bus fans out published events to every current subscriber.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
}

// NewBus constructs an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber with the given channel buffer size
// and returns its receive channel along with an unsubscribe func. The
// channel is closed when unsubscribe is called or the bus is closed.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, buffer)
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if existing, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(existing)
			}
			b.mu.Unlock()
		})
	}
	return ch, unsubscribe
}

// Publish fans ev out to every current subscriber. A subscriber whose
// buffer is full has this event dropped for it rather than blocking the
// publisher: lifecycle events are best-effort observability, not a
// delivery-guaranteed queue.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close unsubscribes and closes every subscriber's channel. Publish after
// Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		delete(b.subscribers, id)
		close(ch)
	}
}
