// Package wsbus is the live operator event stream (§6 GET /admin/stream,
// a SPEC_FULL supplement). It generalizes the teacher's
// internal/api/websocket.go Hub -- the same broadcast-to-all-clients
// loop with a write-deadline guard against a slow client -- from raw
// CoinJoin-alert bytes to typed discovery-engine events.
package wsbus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // operator dashboard only, not a public endpoint
	},
}

// EventType names the events this engine emits over the stream.
type EventType string

const (
	EventLoopDiscovered EventType = "loop_discovered"
	EventTenantDirty    EventType = "tenant_dirty"
	EventCacheEvicted   EventType = "cache_evicted"
)

// Event is one envelope broadcast to every connected client.
type Event struct {
	Type     EventType   `json:"type"`
	TenantID string      `json:"tenantId"`
	Data     interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active websocket clients and broadcasts
// events to all of them. Purely observational: nothing on the query hot
// path depends on a Hub ever running (§5 no I/O under a tenant lock).
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mu        sync.Mutex
	log       *logrus.Entry
}

// NewHub builds an idle Hub; call Run to start broadcasting.
func NewHub(log *logrus.Entry) *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
		log:       log,
	}
}

// Run drains the broadcast channel until it is closed. Call it in its
// own goroutine.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mu.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				if h.log != nil {
					h.log.WithError(err).Debug("websocket write failed, dropping client")
				}
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mu.Unlock()
	}
}

// Subscribe upgrades an HTTP request to a websocket connection and
// registers it as a broadcast recipient.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.WithError(err).Warn("failed to upgrade websocket")
		}
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.log != nil {
		h.log.WithField("clients", count).Info("operator stream client connected")
	}

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.mu.Unlock()
			conn.Close()
			if h.log != nil {
				h.log.WithField("clients", remaining).Info("operator stream client disconnected")
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Publish marshals and broadcasts an event. It never blocks: a full
// broadcast buffer means a tenant-dirty or loop-discovered notification
// is dropped rather than stalling the caller (these events are
// best-effort observability, never required for correctness).
func (h *Hub) Publish(evt Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		if h.log != nil {
			h.log.Warn("operator stream buffer full, dropping event")
		}
	}
}
