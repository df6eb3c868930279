package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

const (
	broadcastBuffer = 16
	writeWait       = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type hubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	dropped    atomic.Int64
}

func NewHub() IService {
	return newHub()
}

func newHub() *hubService {
	return &hubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
	}
}

// Run owns every websocket write. It returns, closing all viewers, when ctx
// is cancelled.
func (h *hubService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			lgr.Logger.Info("viewer connected", slog.Int("viewers", count))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			lgr.Logger.Info("viewer disconnected", slog.Int("viewers", count))

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					lgr.Logger.Warn("dropping viewer", slog.Any("error", err))
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// ServeWS upgrades the request and keeps reading until the viewer goes away.
func (h *hubService) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		lgr.Logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	select {
	case h.register <- conn:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case h.unregister <- conn:
	case <-r.Context().Done():
		conn.Close()
	}
}

func (h *hubService) Broadcast(msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		lgr.Logger.Error("marshalling broadcast message", slog.Any("error", err))
		return false
	}

	select {
	case h.broadcast <- data:
		return true
	default:
		h.dropped.Add(1)
		return false
	}
}

func (h *hubService) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
