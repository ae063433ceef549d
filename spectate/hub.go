// Package spectate streams tick reports and generation summaries to
// browsers over WebSocket.
package spectate

import (
	"context"
	"sync/atomic"

	"github.com/pthm-cable/flappy/game"
)

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients may also send restart or quit requests, which the simulation
// picks up through Poll.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	signals    chan game.Signals
	done       chan struct{}
	count      atomic.Int32
}

// NewHub creates a hub. Call Run before serving connections.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		signals:    make(chan game.Signals, 8),
		done:       make(chan struct{}),
	}
}

// Run handles registration and fan-out until ctx is done, then closes
// every client. A hub runs once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.count.Store(0)
			return
		case c := <-h.register:
			h.clients[c] = true
			h.count.Store(int32(len(h.clients)))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.count.Store(int32(len(h.clients)))
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow client: drop the frame rather than stall the hub.
				}
			}
		}
	}
}

// Publish queues msg for every client. It never blocks; when the queue is
// full the message is dropped.
func (h *Hub) Publish(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Poll implements game.Controls with the requests received from clients.
func (h *Hub) Poll() game.Signals {
	var sig game.Signals
	for {
		select {
		case s := <-h.signals:
			sig.Quit = sig.Quit || s.Quit
			sig.Restart = sig.Restart || s.Restart
			sig.ToggleOverlay = sig.ToggleOverlay || s.ToggleOverlay
		default:
			return sig
		}
	}
}

func (h *Hub) request(s game.Signals) bool {
	select {
	case h.signals <- s:
		return true
	default:
		return false
	}
}
