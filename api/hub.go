/*
hub.go - Websocket feed of portfolio totals

PURPOSE:
  Pushes fresh portfolio stats to connected dashboards whenever the
  portfolio is recomputed (after a settle, a plan edit, or a scheduled
  overdue scan), and tells them which plans were edited.

PROTOCOL:
  Server to client only. Messages are either a PortfolioUpdateDTO:
    {"type": "portfolio", "asOf": "...", "stats": {...}}
  or a PlanUpdateDTO:
    {"type": "plan", "auctionId": "...", "bidderId": "...", "at": "...", "plan": {...}}
  A new client immediately receives the latest portfolio update, if any.
  Plan updates are not kept for later clients.
  Messages from the client are read and discarded.

SLOW CLIENTS:
  Each client has a buffered send queue. A client whose queue is full is
  disconnected rather than blocking the broadcast.

SEE ALSO:
  - events/bus.go: PortfolioChanged and PlanChanged topics
  - scheduler.go: Periodic recomputation
*/
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/warp/arrears-engine/events"
)

const (
	sendQueueSize = 16
	writeWait     = 10 * time.Second
)

// Client is one websocket connection.
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte // outgoing messages
	closed bool
	mu     sync.Mutex
}

// trySend queues msg without blocking. It reports false when the client is
// closed or its queue is full.
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

// ReadMessages drains incoming frames until the connection fails, then
// calls onClose.
func (c *Client) ReadMessages(onClose func(*Client)) {
	defer onClose(c)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WriteMessages sends queued messages until Send is closed.
func (c *Client) WriteMessages() {
	defer c.Conn.Close()
	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Disconnect closes the send queue and the connection. Safe to call twice.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
	c.mu.Unlock()
	c.Conn.Close()
}

// =============================================================================
// HUB
// =============================================================================

// Hub tracks websocket clients and broadcasts portfolio updates to them.
type Hub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	last    []byte
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger: logger.WithPrefix("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// Attach subscribes the hub to portfolio updates and plan edits.
func (h *Hub) Attach(bus *events.Bus) (detach func()) {
	cancelPortfolio := bus.PortfolioChanged.Subscribe(h.onPortfolioChanged)
	cancelPlan := bus.PlanChanged.Subscribe(h.onPlanChanged)
	return func() {
		cancelPortfolio()
		cancelPlan()
	}
}

func (h *Hub) onPlanChanged(e events.PlanChanged) {
	msg, err := json.Marshal(PlanUpdateDTO{
		Type:      "plan",
		AuctionID: string(e.AuctionID),
		BidderID:  string(e.BidderID),
		At:        e.At.UTC().Format(time.RFC3339),
		Plan:      toPlanDTO(e.Plan),
	})
	if err != nil {
		h.logger.Error("encode plan update", "err", err)
		return
	}
	h.send(msg, false)
}

func (h *Hub) onPortfolioChanged(e events.PortfolioChanged) {
	msg, err := json.Marshal(PortfolioUpdateDTO{
		Type:  "portfolio",
		AsOf:  e.AsOf.UTC().Format(time.RFC3339),
		Stats: toStatsDTO(e.Stats),
	})
	if err != nil {
		h.logger.Error("encode portfolio update", "err", err)
		return
	}
	h.Broadcast(msg)
}

// Broadcast sends msg to every client and remembers it for new clients.
func (h *Hub) Broadcast(msg []byte) {
	h.send(msg, true)
}

func (h *Hub) send(msg []byte, keep bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if keep {
		h.last = msg
	}
	for c := range h.clients {
		if !c.trySend(msg) {
			delete(h.clients, c)
			go c.Disconnect()
			h.logger.Debug("dropped slow client", "client", c.ID)
		}
	}
}

// ServeWS upgrades the request and registers the client.
// GET /api/ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, sendQueueSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.trySend(h.last)
	}
	h.mu.Unlock()

	h.logger.Debug("client connected", "client", c.ID)

	go c.WriteMessages()
	go c.ReadMessages(h.remove)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Disconnect()
	h.logger.Debug("client disconnected", "client", c.ID)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.Disconnect()
	}
}
