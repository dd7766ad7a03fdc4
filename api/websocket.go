package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS does not apply to upgrades; the token guards the route
	},
}

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Workbooks travel inline.
	maxMessageSize = 1 << 20

	// Minimum gap between progress messages of one run.
	progressInterval = 100 * time.Millisecond
)

// ============================================================
// Hub
// ============================================================

// WSMessage is a message sent over WebSocket connections.
//
// Client to server: "simulate" (data: SimulateRequest), "cancel", "ping".
// Server to client: "progress" ({done, total}), "result", "error",
// "cancelled", "pong", and the broadcast "run_complete" (RunSummary).
type WSMessage struct {
	Type string          `json:"type"`
	Data interface{}     `json:"data,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the data payload raw so it can be decoded by type.
func (m *WSMessage) UnmarshalJSON(b []byte) error {
	var wire struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	m.Type, m.Raw, m.Data = wire.Type, wire.Data, nil
	return nil
}

// WSHub manages WebSocket connections and message broadcasting.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	broadcast  chan WSMessage
	register   chan *WSClient
	unregister chan *WSClient
	done       chan struct{} // closed when Run returns
}

// WSClient represents a single WebSocket connection.
type WSClient struct {
	hub  *WSHub
	send chan WSMessage

	mu     sync.Mutex
	closed bool

	// cancel stops the client's in-flight simulation, if any.
	runMu  sync.Mutex
	cancel context.CancelFunc
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		broadcast:  make(chan WSMessage, 256),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		done:       make(chan struct{}),
	}
}

// NewWSClient creates a client attached to h.
func NewWSClient(h *WSHub) *WSClient {
	return &WSClient{hub: h, send: make(chan WSMessage, 256)}
}

// Run starts the hub event loop and returns when ctx is done.
func (h *WSHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.trySend(msg) {
					// Slow client; disconnect
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected WebSocket clients.
func (h *WSHub) Broadcast(msg WSMessage) {
	select {
	case h.broadcast <- msg:
	default:
		// Drop message if broadcast channel is full
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub.
func (h *WSHub) Register(client *WSClient) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes a client from the hub.
func (h *WSHub) Unregister(client *WSClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *WSClient) trySend(msg WSMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// startRun installs cancel as the client's current run, reporting false
// when a run is already in flight.
func (c *WSClient) startRun(cancel context.CancelFunc) bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return false
	}
	c.cancel = cancel
	return true
}

func (c *WSClient) finishRun() {
	c.runMu.Lock()
	c.cancel = nil
	c.runMu.Unlock()
}

func (c *WSClient) cancelRun() bool {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// ============================================================
// Connection handling
// ============================================================

// handleWebSocket upgrades HTTP connections to WebSocket. Clients submit
// simulations and receive progress and results; run completions from any
// client are broadcast to all.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := NewWSClient(s.wsHub)
	s.wsHub.Register(client)

	go s.wsWritePump(conn, client)
	go s.wsReadPump(conn, client)
}

// wsReadPump pumps messages from the WebSocket connection to the server.
func (s *Server) wsReadPump(conn *websocket.Conn, client *WSClient) {
	defer func() {
		client.cancelRun()
		client.hub.Unregister(client)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			client.trySend(WSMessage{Type: "error", Data: "invalid message"})
			continue
		}

		switch msg.Type {
		case "simulate":
			var req SimulateRequest
			if err := json.Unmarshal(msg.Raw, &req); err != nil {
				client.trySend(WSMessage{Type: "error", Data: "invalid simulate payload"})
				continue
			}
			s.startWSRun(client, &req)
		case "cancel":
			if !client.cancelRun() {
				client.trySend(WSMessage{Type: "error", Data: "no simulation in progress"})
			}
		case "ping":
			client.trySend(WSMessage{Type: "pong"})
		default:
			client.trySend(WSMessage{Type: "error", Data: "unknown message type " + msg.Type})
		}
	}
}

// startWSRun runs req in the background, streaming progress to client.
// A throttled run waits for its turn and can be cancelled while waiting.
func (s *Server) startWSRun(client *WSClient, req *SimulateRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	if !client.startRun(cancel) {
		cancel()
		client.trySend(WSMessage{Type: "error", Data: "a simulation is already running"})
		return
	}

	go func() {
		defer func() {
			client.finishRun()
			cancel()
		}()

		var mu sync.Mutex
		var last time.Time
		progress := func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			if done < total && time.Since(last) < progressInterval {
				return
			}
			last = time.Now()
			client.trySend(WSMessage{Type: "progress", Data: map[string]int{"done": done, "total": total}})
		}

		if err := s.limiter.Wait(ctx); err != nil {
			client.trySend(WSMessage{Type: "cancelled"})
			return
		}
		result, err := s.simulate(ctx, req, progress)
		switch {
		case err == nil:
			client.trySend(WSMessage{Type: "result", Data: result})
		case ctx.Err() != nil:
			client.trySend(WSMessage{Type: "cancelled"})
		default:
			payload := map[string]interface{}{"status": simulationStatus(err), "message": err.Error()}
			if simulationStatus(err) == http.StatusUnprocessableEntity {
				payload["diagnostics"] = diagnosticsOf(err)
			}
			client.trySend(WSMessage{Type: "error", Data: payload})
		}
	}()
}

// wsWritePump pumps messages from the client's queue to the connection.
func (s *Server) wsWritePump(conn *websocket.Conn, client *WSClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debug().Err(err).Msg("WebSocket write error")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
