// Package stream serves rendered frames to viewers over WebSocket and
// forwards viewer commands to the dispatcher.
package stream

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	ws "github.com/gorilla/websocket"

	"github.com/azurexth/LimSim/internal/channel"
	"github.com/azurexth/LimSim/internal/dispatcher"
	"github.com/azurexth/LimSim/internal/sim"
	"github.com/azurexth/LimSim/pkg/core"
	"github.com/azurexth/LimSim/pkg/streaming"
)

// Commander executes viewer commands. *dispatcher.Dispatcher implements it.
type Commander interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Hub fans frames out to every connected viewer. A slow viewer loses
// messages instead of holding up the others.
type Hub struct {
	logger    *slog.Logger
	commander Commander
	upgrader  ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	hello   []byte // cached run_started for late joiners
	closed  bool

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a hub. commander may be nil, in which case viewer commands
// are rejected.
func NewHub(commander Commander, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger,
		commander: commander,
		upgrader: ws.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := newClient(h, conn, r.RemoteAddr)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	hello := h.hello
	h.mu.Unlock()

	if hello != nil {
		c.enqueue(hello)
	}
	h.logger.Info("Viewer connected", "remote", c.remote)

	go c.writeLoop()
	go c.readLoop()
}

// Announce tells every viewer, present and future, which run is playing.
func (h *Hub) Announce(mode string, run *core.RunInfo) error {
	data, err := streaming.Marshal(streaming.TypeRunStarted, streaming.RunStartedPayload{Mode: mode, Run: run})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.hello = data
	h.mu.Unlock()
	h.broadcast(data)
	return nil
}

// Broadcast sends one message to every viewer.
func (h *Hub) Broadcast(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// ObserveTick forwards the run status to viewers. It never blocks.
func (h *Hub) ObserveTick(s sim.Status) {
	if err := h.Broadcast(streaming.TypeStatus, s); err != nil {
		h.logger.Warn("Failed to encode status", "error", err)
	}
}

// Pump broadcasts frames until ctx is done or the frame channel is closed.
// A closed channel ends the run for viewers.
func (h *Hub) Pump(ctx context.Context, frames channel.Receiver[core.Frame]) {
	src := frames.Receive()
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-src:
			if !ok {
				if err := h.Broadcast(streaming.TypeRunEnded, nil); err != nil {
					h.logger.Warn("Failed to encode run end", "error", err)
				}
				return
			}
			data, err := streaming.FrameMessage(f)
			if err != nil {
				h.logger.Warn("Failed to encode frame", "tick", f.Scene.Tick, "error", err)
				continue
			}
			h.broadcast(data)
		}
	}
}

func (h *Hub) broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.enqueue(data)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.logger.Info("Viewer disconnected", "remote", c.remote)
	}
}

// Clients returns the number of connected viewers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Sent returns how many messages were queued to viewers.
func (h *Hub) Sent() uint64 { return h.sent.Load() }

// Dropped returns how many messages were discarded for slow viewers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every viewer and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

var _ sim.Observer = (*Hub)(nil)
