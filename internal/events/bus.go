package events

import "sync"

// Topics published by the chat core. UI layers subscribe to repaint or to
// surface notifications; nothing in the core ever blocks on a slow consumer.
const (
	ThreadsUpdated  = "threads_updated"
	MessagesUpdated = "messages_updated"
	RoomClosed      = "room_closed"
	Notice          = "notice"
	Failure         = "failure"
)

type Event struct {
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

type Handler func(ev Event)

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	stream      chan Event
}

func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string][]Handler),
		stream:      make(chan Event, 100),
	}
}

// Publish delivers ev to every subscriber of its topic and, best-effort, to
// the stream channel. Delivery is synchronous for handlers and lossy for the
// stream: if nobody drains it the event is dropped rather than blocking a
// synchronizer tick.
func (b *Bus) Publish(topic string, data any) {
	ev := Event{Topic: topic, Data: data}

	b.mu.RLock()
	handlers := b.subscribers[topic]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ev)
	}

	select {
	case b.stream <- ev:
	default:
	}
}

func (b *Bus) Subscribe(topic string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[topic] = append(b.subscribers[topic], h)
}

// Stream exposes the shared event channel for loop-style consumers.
func (b *Bus) Stream() <-chan Event {
	return b.stream
}
