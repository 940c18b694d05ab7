package chat

import (
	"sync"

	"github.com/yourusername/lingo-service/internal/unread"
)

// Bus fans message events out to the handlers subscribed to their channel.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]map[uint64]unread.Handler
	nextID   uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string]map[uint64]unread.Handler)}
}

// Subscribe registers h for events on channelID. The returned function
// removes it and is safe to call more than once.
func (b *Bus) Subscribe(channelID string, h unread.Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[channelID] == nil {
		b.handlers[channelID] = make(map[uint64]unread.Handler)
	}
	b.handlers[channelID][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[channelID]
		delete(hs, id)
		if len(hs) == 0 {
			delete(b.handlers, channelID)
		}
	}
}

// Publish delivers ev to the handlers of its channel. Handlers run on the
// caller's goroutine, outside the bus lock.
func (b *Bus) Publish(ev unread.MessageEvent) {
	b.mu.RLock()
	hs := make([]unread.Handler, 0, len(b.handlers[ev.ChannelID]))
	for _, h := range b.handlers[ev.ChannelID] {
		hs = append(hs, h)
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// Subscribers returns the number of handlers on channelID.
func (b *Bus) Subscribers(channelID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[channelID])
}
