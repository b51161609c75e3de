package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/qrdine/qrdine/models"
)

// Event types carried on the realtime channel. The ordersync client
// matches on the same names.
const (
	EventNewOrder           = "new-order"
	EventOrderStatusUpdated = "orderStatusUpdated"
	EventOrderUpdated       = "orderUpdated"
	EventTableUpdate        = "table_update"
	EventSessionUpdate      = "session_update"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub fans realtime events out to every connected dashboard/kitchen
// client. One instance is created in main and injected wherever events
// originate; nothing reads it from package state.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]string // conn -> role
	log     *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]string),
		log:     log,
	}
}

// Register adds a connection to the set with its role.
func (h *Hub) Register(conn *websocket.Conn, role string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = role
}

// Unregister drops a connection and closes it.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastNewOrder announces a freshly confirmed order.
func (h *Hub) BroadcastNewOrder(order models.Order) {
	h.broadcast(Message{Event: EventNewOrder, Data: order})
}

// BroadcastOrderStatus announces a status change on a single order.
func (h *Hub) BroadcastOrderStatus(order models.Order) {
	h.broadcast(Message{Event: EventOrderStatusUpdated, Data: order})
}

// BroadcastOrdersUpdated announces item-level changes. A single touched
// order goes out as an object, several as an array.
func (h *Hub) BroadcastOrdersUpdated(orders []models.Order) {
	if len(orders) == 0 {
		return
	}
	if len(orders) == 1 {
		h.broadcast(Message{Event: EventOrderUpdated, Data: orders[0]})
		return
	}
	h.broadcast(Message{Event: EventOrderUpdated, Data: orders})
}

// BroadcastTableUpdate announces a table status change.
func (h *Hub) BroadcastTableUpdate(table models.Table) {
	h.broadcast(Message{Event: EventTableUpdate, Data: table})
}

// BroadcastSessionUpdate announces a session open/close.
func (h *Hub) BroadcastSessionUpdate(session models.DiningSession) {
	h.broadcast(Message{Event: EventSessionUpdate, Data: session})
}

func (h *Hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("realtime: marshal %s event: %v", msg.Event, err)
		return
	}

	for conn, role := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Errorf("realtime: send to %s client: %v", role, err)
			continue
		}
	}
}
