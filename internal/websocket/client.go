package websocket

import (
	"encoding/json"
	"log"
	"time"

	"hotstepper-backend/internal/tracker"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 2048 // Room for position_update payloads
)

// Client represents a WebSocket client connection
type Client struct {
	UserID   string
	UserRole string // "member" or "admin"
	conn     *websocket.Conn
	hub      *Hub
	send     chan []byte
	registry *tracker.Registry
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewClient creates a new WebSocket client
func NewClient(userID, userRole string, conn *websocket.Conn, hub *Hub, registry *tracker.Registry) *Client {
	return &Client{
		UserID:   userID,
		UserRole: userRole,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		registry: registry,
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("Invalid message format: %v", err)
			continue
		}

		switch msg.Type {
		case "ping":
			response := map[string]interface{}{
				"type":      "pong",
				"timestamp": time.Now().Format(time.RFC3339),
			}
			responseData, _ := json.Marshal(response)
			c.send <- responseData

		case "position_update":
			c.handlePositionUpdate(msg.Data)

		case "steps_update":
			c.handleStepsUpdate(msg.Data)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handlePositionUpdate feeds a streamed position sample into the user's
// route accumulator. Live stats fan out from the session manager's publish
// callback, so nothing is echoed from here.
func (c *Client) handlePositionUpdate(data json.RawMessage) {
	var sample tracker.PositionSample
	if err := json.Unmarshal(data, &sample); err != nil {
		log.Printf("❌ Invalid position_update from %s: %v", c.UserID, err)
		return
	}
	if sample.Latitude == 0 && sample.Longitude == 0 {
		log.Printf("❌ Invalid coordinates in position_update from %s", c.UserID)
		return
	}
	if sample.Timestamp == 0 {
		sample.Timestamp = time.Now().UnixMilli()
	}

	manager := c.registry.Manager(c.UserID)
	if !manager.Feed(sample) {
		log.Printf("⚠️ Position sample from %s dropped: no active GPS watch", c.UserID)
	}
}

// handleStepsUpdate merges a pedometer count into the user's active session.
func (c *Client) handleStepsUpdate(data json.RawMessage) {
	var payload struct {
		Steps int `json:"steps"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Printf("❌ Invalid steps_update from %s: %v", c.UserID, err)
		return
	}
	if payload.Steps < 0 {
		return
	}

	c.registry.Manager(c.UserID).UpdateSteps(payload.Steps)
}
