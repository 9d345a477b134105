// Package realtime defines the publish/subscribe transport the leaderboard
// listens on and the pieces shared by its drivers.
package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrNotConnected is returned when subscribing before Connect.
var ErrNotConnected = errors.New("realtime transport not connected")

// Handler receives the raw JSON payload of an event. Handlers run on the
// transport's goroutine.
type Handler func(data []byte)

// Channel is a subscription to one named channel.
type Channel interface {
	Name() string
	Bind(event string, h Handler)
	UnbindAll()
	Unsubscribe() error
}

// Transport is a connection to a push service. It is constructed and owned
// by the caller; nothing here is a process-wide singleton.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, channel string) (Channel, error)
	Disconnect() error
}

// Bindings is a concurrency-safe event name to handlers table.
type Bindings struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// Bind adds a handler for event.
func (b *Bindings) Bind(event string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers == nil {
		b.handlers = make(map[string][]Handler)
	}
	b.handlers[event] = append(b.handlers[event], h)
}

// UnbindAll drops every handler.
func (b *Bindings) UnbindAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = nil
}

// Dispatch calls the handlers bound to event and reports how many ran.
func (b *Bindings) Dispatch(channel, event string, data []byte) int {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		log.Debug().
			Str("channel", channel).
			Str("event", event).
			Msg("no handler bound for event")
		return 0
	}

	for _, h := range handlers {
		h(data)
	}
	return len(handlers)
}
