package web

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 5 * time.Second
	clientBacklog = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The display page is served from a different origin than the relay.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans live messages out to connected websocket clients. A client that
// cannot keep up has messages dropped rather than stalling the broadcast.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *Hub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}

	send := make(chan []byte, clientBacklog)
	h.mu.Lock()
	h.clients[conn] = send
	h.mu.Unlock()

	go h.writeLoop(conn, send)
	go h.readLoop(conn)
}

// writeLoop delivers broadcasts to one client until its channel closes.
func (h *Hub) writeLoop(conn *websocket.Conn, send <-chan []byte) {
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(conn)
			return
		}
	}
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
}

// readLoop discards client frames; its only job is detecting disconnects.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
			// Slow client: drop this message, keep the connection.
		}
	}
	h.mu.Unlock()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if send, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
	conn.Close()
}

// closeAll disconnects every client, used during shutdown. Closing the
// send channel lets each write loop flush, send a close frame, and hang up.
func (h *Hub) closeAll() {
	h.mu.Lock()
	for conn, send := range h.clients {
		delete(h.clients, conn)
		close(send)
	}
	h.mu.Unlock()
}

// clientCount reports the number of connected clients, for tests.
func (h *Hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
