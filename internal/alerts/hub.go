package alerts

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jballard86/frigate-push-gateway/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Devices connect from app webviews; no browser origin to pin.
	},
}

const (
	writeWait      = 10 * time.Second
	clientSendSize = 32
)

// TokenValidator authenticates the ?token= query parameter on the feed.
type TokenValidator interface {
	ValidateDevice(tokenString string) (deviceID string, err error)
}

// Frame is one message on the alert feed: "notify" carries an alert for a
// slot, "cancel" clears it.
type Frame struct {
	Type  string `json:"type"`
	Slot  int32  `json:"slot"`
	Alert *Alert `json:"alert,omitempty"`
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	deviceID string
}

// Hub fans alert frames out to connected devices and is the gateway's
// Notifier implementation. It retains the current alert per slot so a device
// connecting mid-event receives the active set immediately; Post on an
// occupied slot replaces the retained frame (last write wins), which is how
// later phases overwrite earlier ones.
type Hub struct {
	tokens TokenValidator

	mu      sync.Mutex
	clients map[*client]struct{}
	active  map[int32][]byte
}

func NewHub(tokens TokenValidator) *Hub {
	return &Hub{
		tokens:  tokens,
		clients: make(map[*client]struct{}),
		active:  make(map[int32][]byte),
	}
}

// Post implements Notifier.
func (h *Hub) Post(slot int32, a Alert) {
	data, err := json.Marshal(Frame{Type: "notify", Slot: slot, Alert: &a})
	if err != nil {
		log.Printf("[ERROR] Alert hub: marshal frame for slot %d: %v", slot, err)
		return
	}
	h.mu.Lock()
	h.active[slot] = data
	h.broadcastLocked(data)
	h.mu.Unlock()
}

// Cancel implements Notifier. Cancelling an absent slot is a no-op for
// clients but the cancel frame is still broadcast so a device that saw the
// alert before the gateway restarted can drop it.
func (h *Hub) Cancel(slot int32) {
	data, _ := json.Marshal(Frame{Type: "cancel", Slot: slot})
	h.mu.Lock()
	delete(h.active, slot)
	h.broadcastLocked(data)
	h.mu.Unlock()
}

// ActiveSlots returns the slots currently holding an alert.
func (h *Hub) ActiveSlots() []int32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	slots := make([]int32, 0, len(h.active))
	for s := range h.active {
		slots = append(slots, s)
	}
	return slots
}

// ClientCount returns the number of connected devices.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcastLocked(data []byte) {
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Slow consumer; drop it rather than block the dispatcher.
			h.dropLocked(c)
		}
	}
}

func (h *Hub) dropLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	metrics.WSClients.Set(float64(len(h.clients)))
}

// ServeWS upgrades the request and streams alert frames. Auth is a device
// JWT in the token query parameter, the usual scheme for websockets.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	deviceID, err := h.tokens.ValidateDevice(tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ERROR] Alert hub: upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendSize), deviceID: deviceID}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	metrics.WSClients.Set(float64(len(h.clients)))
	// Replay the active slot set so the device converges immediately.
	replay := make([][]byte, 0, len(h.active))
	for _, f := range h.active {
		replay = append(replay, f)
	}
	h.mu.Unlock()

	log.Printf("[DEBUG] Alert hub: device %s connected", deviceID)
	for _, f := range replay {
		select {
		case c.send <- f:
		default:
		}
	}

	go c.writePump()
	c.readPump(h)
}

// readPump discards inbound messages (the feed is one-way) and unregisters
// on error.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.mu.Lock()
		h.dropLocked(c)
		h.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
