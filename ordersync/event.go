package ordersync

import (
	"encoding/json"
	"fmt"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/realtime"
)

// Event is the normalized form of a push message. The wire payload for
// orderUpdated is duck-typed (sometimes one order, sometimes an array);
// it is folded into a slice here so nothing past this boundary has to
// care.
type Event struct {
	Type   string
	Orders []models.Order
}

// OrderEvent reports whether the event carries order payloads at all.
// Table and session events flow on the same channel and are skipped by
// the store.
func (e Event) OrderEvent() bool {
	switch e.Type {
	case realtime.EventNewOrder, realtime.EventOrderStatusUpdated, realtime.EventOrderUpdated:
		return true
	}
	return false
}

type wireMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEvent parses one raw websocket message into an Event. An order
// payload without an id yields ErrMalformedPayload.
func DecodeEvent(raw []byte) (Event, error) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Event{}, fmt.Errorf("decode push message: %w", err)
	}

	ev := Event{Type: msg.Event}
	if !ev.OrderEvent() {
		return ev, nil
	}

	switch msg.Event {
	case realtime.EventOrderUpdated:
		// object or array, normalized to a slice
		var many []models.Order
		if err := json.Unmarshal(msg.Data, &many); err == nil {
			ev.Orders = many
			break
		}
		var one models.Order
		if err := json.Unmarshal(msg.Data, &one); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", msg.Event, err)
		}
		ev.Orders = []models.Order{one}
	default:
		var one models.Order
		if err := json.Unmarshal(msg.Data, &one); err != nil {
			return Event{}, fmt.Errorf("decode %s payload: %w", msg.Event, err)
		}
		ev.Orders = []models.Order{one}
	}

	for _, order := range ev.Orders {
		if order.ID == 0 {
			return Event{}, ErrMalformedPayload
		}
	}
	return ev, nil
}
