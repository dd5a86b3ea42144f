// internal/server/handlers/live.go

package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"buzztrack/internal/domain/trend"
)

// liveClient is one connected trending-board subscriber
type liveClient struct {
	conn      *websocket.Conn
	send      chan []byte
	natsSub   *nats.Subscription
	closeOnce sync.Once
}

// WebSocketConfig contains configuration for WebSocket connections
type WebSocketConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer
	PongWait time.Duration

	// Send pings to peer with this period
	PingPeriod time.Duration

	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultWebSocketConfig returns the default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     (60 * time.Second * 9) / 10,
		MaxMessageSize: 1024 * 1024, // 1MB
	}
}

// WebSocketUpgrader is used to upgrade HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, this should be more restrictive
		return true
	},
}

// TrendWebSocketHandler streams each published snapshot to connected
// clients, fanned out through NATS so every replica serves the same stream.
// The stream is one-way; inbound payloads are discarded. Without a NATS
// connection the endpoint responds 503.
func TrendWebSocketHandler(snapshots trend.SnapshotSource, natsConn *nats.Conn, topic string, threshold float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if natsConn == nil {
			http.Error(w, "live updates disabled: no event bus configured", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Failed to upgrade to WebSocket: %v", err)
			return
		}

		client := &liveClient{
			conn: conn,
			send: make(chan []byte, 16),
		}

		// Seed the client with the current state so it does not wait a full
		// scan interval for its first frame. Pumps are not running yet, the
		// buffered channel holds it.
		snap := snapshots.Current()
		snap.Entries = snap.Visible(threshold)
		if snap.Entries == nil {
			snap.Entries = []trend.Entry{}
		}
		if data, err := json.Marshal(snap); err == nil {
			client.send <- data
		}

		sub, err := natsConn.Subscribe(fmt.Sprintf("%s.snapshot", topic), func(msg *nats.Msg) {
			select {
			case client.send <- msg.Data:
			default:
				// Slow consumer: drop the frame, the next snapshot supersedes it
			}
		})
		if err != nil {
			log.Printf("Failed to subscribe to snapshot events: %v", err)
			conn.Close()
			return
		}
		client.natsSub = sub

		go client.writePump()
		go client.readPump()

		log.Printf("New WebSocket connection for trending updates")
	}
}

// readPump drains the connection so close frames and pong replies are
// processed. Message payloads are ignored.
func (c *liveClient) readPump() {
	config := DefaultWebSocketConfig()

	defer c.closeConnection()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump forwards snapshot frames to the peer and keeps the connection
// alive with pings.
func (c *liveClient) writePump() {
	config := DefaultWebSocketConfig()
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeConnection tears the client down once, whichever pump exits first.
// The send channel stays open: after the connection closes, writePump exits
// on its next write and the channel is collected with the client.
func (c *liveClient) closeConnection() {
	c.closeOnce.Do(func() {
		if c.natsSub != nil {
			c.natsSub.Unsubscribe()
		}
		c.conn.Close()
		log.Printf("WebSocket connection closed")
	})
}
