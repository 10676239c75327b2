package services

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Constants for stream configuration
const (
	MaxStreamClients     = 100 // Maximum concurrent WebSocket clients
	StreamWriteTimeout   = 10 * time.Second
	StreamPongTimeout    = 60 * time.Second
	StreamPingInterval   = 30 * time.Second
	StreamSendBufferSize = 16
)

// StreamMessage is the envelope pushed to connected clients
type StreamMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time string      `json:"time"`
}

// StreamClient is one connected WebSocket client
type StreamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub fans market updates out to WebSocket clients
type StreamHub struct {
	clients    map[*StreamClient]bool
	broadcast  chan []byte
	register   chan *StreamClient
	unregister chan *StreamClient
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
}

// GlobalStreamHub is the process-wide hub instance
var GlobalStreamHub *StreamHub

// InitStreamHub initializes the global stream hub and starts its loop
func InitStreamHub() {
	GlobalStreamHub = NewStreamHub()
	go GlobalStreamHub.run()
	log.Println("Market stream hub initialized")
}

// NewStreamHub creates a stream hub
func NewStreamHub() *StreamHub {
	return &StreamHub{
		clients:    make(map[*StreamClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *StreamClient),
		unregister: make(chan *StreamClient),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *StreamHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxStreamClients {
				h.mu.Unlock()
				close(client.send)
				client.conn.Close()
				continue
			}
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				client.conn.Close()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop the frame
				}
			}
			h.mu.RUnlock()

		case <-h.shutdown:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				client.conn.Close()
			}
			h.clients = make(map[*StreamClient]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends a typed message to all connected clients
func (h *StreamHub) Broadcast(messageType string, data interface{}) {
	msg := StreamMessage{
		Type: messageType,
		Data: data,
		Time: time.Now().Format(time.RFC3339),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal stream message: %v", err)
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		log.Println("Stream broadcast buffer full, dropping message")
	}
}

// Shutdown closes all client connections and stops the hub loop
func (h *StreamHub) Shutdown() {
	close(h.shutdown)
	log.Println("Market stream hub stopped")
}

// ServeWS upgrades an HTTP request to a WebSocket subscription
func (h *StreamHub) ServeWS(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := &StreamClient{
		conn: conn,
		send: make(chan []byte, StreamSendBufferSize),
	}
	h.register <- client

	go client.writePump()
	go client.readPump(h)
	return nil
}

func (c *StreamClient) writePump() {
	ticker := time.NewTicker(StreamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(StreamWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *StreamClient) readPump(h *StreamHub) {
	defer func() {
		h.unregister <- c
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(StreamPongTimeout))
		return nil
	})

	// Clients only listen; any read error tears the connection down
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
