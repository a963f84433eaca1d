package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pagewatch/pagewatch/server/internal/metrics"
)

// EventReload instructs a browser to reload itself. It is also the only
// invocation target clients may call.
const EventReload = "Reload"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 512,
	// Development tool: pages are served by the same host, accept any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope pushed to clients.
type Message struct {
	Event string `json:"event"`
}

// Invocation is the JSON envelope clients send to call a hub operation.
type Invocation struct {
	Target string `json:"target"`
}

// Peer is one live-update connection as seen by the Hub.
type Peer interface {
	// ID returns the opaque connection identifier.
	ID() string
	// Send queues msg for delivery. It must not block.
	Send(msg []byte) error
	// Close terminates the connection.
	Close() error
}

// SendError reports a failed delivery to a single client during a broadcast.
type SendError struct {
	ClientID string
	Err      error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("ws: send to client %s: %v", e.ClientID, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Hub tracks live client connections and fans events out to them.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	peers map[string]Peer
}

// New creates a Hub. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		metrics: m,
		peers:   make(map[string]Peer),
	}
}

// Run blocks until ctx is cancelled, then disconnects and closes every peer.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// ServeHTTP upgrades the HTTP connection to WebSocket and serves the client
// until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		h.logger.Debug("ws: upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(uuid.NewString(), conn, h)
	h.Connect(c)
	defer func() {
		h.Disconnect(c.id)
		c.Close() //nolint:errcheck
	}()

	go c.writePump()
	c.readPump() // blocks until connection closes
}

// Connect adds p to the live set.
func (h *Hub) Connect(p Peer) {
	h.mu.Lock()
	_, exists := h.peers[p.ID()]
	h.peers[p.ID()] = p
	n := len(h.peers)
	h.mu.Unlock()

	if !exists {
		h.metrics.ClientConnected()
	}
	h.logger.Debug("ws: client connected", "client", p.ID(), "clients", n)
}

// Disconnect removes the peer with the given id. Removing an unknown id is
// a no-op.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	_, ok := h.peers[id]
	delete(h.peers, id)
	n := len(h.peers)
	h.mu.Unlock()

	if ok {
		h.metrics.ClientDisconnected()
		h.logger.Debug("ws: client disconnected", "client", id, "clients", n)
	}
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// BroadcastAll sends event to every connected client and returns the number
// of successful sends.
func (h *Hub) BroadcastAll(event string) int {
	return h.broadcast(event, "", metrics.ScopeAll)
}

// BroadcastOthers sends event to every connected client except senderID and
// returns the number of successful sends.
func (h *Hub) BroadcastOthers(senderID, event string) int {
	return h.broadcast(event, senderID, metrics.ScopeOthers)
}

// --- internal ---------------------------------------------------------------

func (h *Hub) broadcast(event, skip, scope string) int {
	data, err := json.Marshal(Message{Event: event})
	if err != nil {
		h.logger.Error("ws: encode message", "event", event, "err", err)
		return 0
	}

	h.mu.RLock()
	targets := make([]Peer, 0, len(h.peers))
	for id, p := range h.peers {
		if id != skip {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	var delivered, failed int
	for _, p := range targets {
		if err := p.Send(data); err != nil {
			failed++
			h.logger.Warn("ws: broadcast send failed", "event", event,
				"err", &SendError{ClientID: p.ID(), Err: err})
			continue
		}
		delivered++
	}

	h.metrics.Broadcast(scope, failed)
	h.logger.Debug("ws: broadcast", "event", event, "scope", scope,
		"delivered", delivered, "failed", failed)
	return delivered
}

// invoke dispatches a client invocation frame.
func (h *Hub) invoke(senderID string, frame []byte) {
	var inv Invocation
	if err := json.Unmarshal(frame, &inv); err != nil {
		h.logger.Debug("ws: malformed invocation", "client", senderID, "err", err)
		return
	}
	switch inv.Target {
	case EventReload:
		h.BroadcastOthers(senderID, EventReload)
	default:
		h.logger.Debug("ws: unknown invocation target", "client", senderID, "target", inv.Target)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]Peer)
	h.mu.Unlock()

	for id, p := range peers {
		h.metrics.ClientDisconnected()
		if err := p.Close(); err != nil {
			h.logger.Debug("ws: close client", "client", id, "err", err)
		}
	}
}
