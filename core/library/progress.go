package library

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"EchoFM/logger"
)

// ProgressEvent is one step of a playlist download, pushed to connected
// websocket clients.
type ProgressEvent struct {
	Playlist string `json:"playlist"`
	Track    string `json:"track,omitempty"`
	Index    int    `json:"index"`
	Total    int    `json:"total"`
	Status   string `json:"status"` // downloading, done, skipped, failed, finished
	Error    string `json:"error,omitempty"`
}

// ProgressHub fans download progress out to websocket subscribers.
// Slow clients are dropped rather than allowed to stall a download.
type ProgressHub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan ProgressEvent
	upgrader websocket.Upgrader
}

// NewProgressHub creates a hub with an open origin check, matching the
// server's CORS policy.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: make(map[*websocket.Conn]chan ProgressEvent),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and streams events until the client
// disconnects.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	events := make(chan ProgressEvent, 64)
	h.mu.Lock()
	h.clients[conn] = events
	h.mu.Unlock()
	logger.Info("progress subscriber connected", logger.String("remote", r.RemoteAddr))

	// Reader goroutine notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			h.remove(conn)
			return
		case event := <-events:
			if err := conn.WriteJSON(event); err != nil {
				h.remove(conn)
				return
			}
		}
	}
}

// Broadcast sends an event to all subscribers, dropping any whose
// buffer is full.
func (h *ProgressHub) Broadcast(event ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, events := range h.clients {
		select {
		case events <- event:
		default:
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (h *ProgressHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	conn.Close()
}
