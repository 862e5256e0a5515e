package websocket

import (
	"context"
	"sync"
)

// Hub is a registry of live MessageStreams supporting broadcast to all of
// them at once. It is the one type in this package safe for concurrent use:
// every connection's goroutine registers, unregisters, and triggers
// broadcasts through it, and the Hub serializes the resulting mutation
// through its own event-loop goroutine and channels (spec.md §5), adapted
// from the teacher's *Conn-based Hub to operate on *MessageStream instead.
//
// Example usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	defer hub.Close()
//
//	ms := websocket.NewMessageStream(stream, headers)
//	hub.Register(ms)
//	defer hub.Unregister(ms)
type Hub struct {
	clients map[*MessageStream]bool

	register   chan *MessageStream
	unregister chan *MessageStream
	broadcast  chan string

	done   chan struct{}
	closed bool
	wg     sync.WaitGroup

	mu sync.RWMutex
}

// NewHub returns an idle Hub. Run must be started in its own goroutine
// before Register/Unregister/Broadcast have any effect.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*MessageStream]bool),
		register:   make(chan *MessageStream),
		unregister: make(chan *MessageStream),
		broadcast:  make(chan string, 256),
		done:       make(chan struct{}),
	}
}

// Run is the Hub's event loop. It blocks until ctx is done or Close is
// called, and should be started in its own goroutine:
//
//	go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	h.wg.Add(1)
	defer h.wg.Done()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				_ = client.closeTransport()
			}
			h.mu.Unlock()

		case payload := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				// Send in its own goroutine: a slow or wedged peer must
				// never block the event loop's single goroutine.
				go func(c *MessageStream, msg string) {
					if err := c.SendMessage(ctx, msg); err != nil {
						h.Unregister(c)
					}
				}(client, payload)
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		case <-h.done:
			return
		}
	}
}

// Register adds a stream to the Hub; it will receive every subsequent
// Broadcast. A no-op once the Hub is closed.
func (h *Hub) Register(s *MessageStream) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.register <- s
}

// Unregister removes a stream from the Hub and closes it. Safe to call
// multiple times for the same stream; a no-op once the Hub is closed.
func (h *Hub) Unregister(s *MessageStream) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.unregister <- s
}

// Broadcast queues payload for delivery to every currently registered
// stream. Delivery happens asynchronously in the event loop; a stream whose
// SendMessage fails is automatically unregistered.
func (h *Hub) Broadcast(payload string) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.mu.RUnlock()

	h.broadcast <- payload
}

// Count returns the number of currently registered streams.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the event loop, closes every registered stream, and waits
// for Run to return. Safe to call multiple times.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*MessageStream, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*MessageStream]bool)
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()

	for _, c := range clients {
		_ = c.closeTransport()
	}
	return nil
}
