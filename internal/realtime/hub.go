// Package realtime pushes tracker summaries to websocket subscribers.
package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 8
)

// Client is one websocket subscription to a tracker.
type Client struct {
	trackerID string
	conn      *websocket.Conn
	send      chan []byte
	once      sync.Once
}

// Hub fans messages out to the subscribers of each tracker.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]map[*Client]struct{}
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewHub constructs a Hub. allowedOrigin restricts browser origins; empty or
// "*" accepts any.
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  log.New(log.Writer(), "[realtime] ", log.LstdFlags),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if allowedOrigin == "" || allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == allowedOrigin
		},
	}
	return h
}

// Subscribe upgrades the request and streams messages for trackerID until the
// peer disconnects. initial, when non-nil, is sent first.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, trackerID string, initial any) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &Client{trackerID: trackerID, conn: conn, send: make(chan []byte, sendBuffer)}
	// Queued before register so it precedes broadcasts and never races Close.
	if initial != nil {
		if msg, err := json.Marshal(initial); err == nil {
			c.send <- msg
		}
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
	return nil
}

// Broadcast sends payload to every subscriber of trackerID. Slow subscribers
// whose buffer is full are dropped.
func (h *Hub) Broadcast(trackerID string, payload any) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("marshal broadcast for tracker %s: %v", trackerID, err)
		return
	}

	h.mu.RLock()
	var slow []*Client
	for c := range h.clients[trackerID] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

// Close disconnects every subscriber of trackerID.
func (h *Hub) Close(trackerID string) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients[trackerID]))
	for c := range h.clients[trackerID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}

// Subscribers returns the number of live subscriptions for trackerID.
func (h *Hub) Subscribers(trackerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[trackerID])
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.trackerID] == nil {
		h.clients[c.trackerID] = make(map[*Client]struct{})
	}
	h.clients[c.trackerID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set := h.clients[c.trackerID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.trackerID)
		}
	}
	h.mu.Unlock()
	c.once.Do(func() { close(c.send) })
}

// readPump discards inbound frames and unregisters on close or error.
func (h *Hub) readPump(c *Client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on the connection.
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
