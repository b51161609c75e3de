package ordersync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/statemachine"
)

// Store is the client-side mirror of the server's order list. It is
// fed from two sources that may race: bulk refreshes and incremental
// push events. Upsert is idempotent so the same final state is reached
// whichever arrives last.
type Store struct {
	mu     sync.RWMutex
	orders []models.Order
	index  map[uint]int // order id -> position
	log    *logrus.Logger
	notify chan struct{}
}

func NewStore(log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.New()
	}
	return &Store{
		index:  make(map[uint]int),
		log:    log,
		notify: make(chan struct{}, 1),
	}
}

// ReplaceAll swaps in the result of a full fetch, newest first.
func (s *Store) ReplaceAll(orders []models.Order) {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	s.mu.Lock()
	s.orders = sorted
	s.index = make(map[uint]int, len(sorted))
	for i, order := range sorted {
		s.index[order.ID] = i
	}
	s.mu.Unlock()
	s.notifyChanged()
}

// Upsert merges one pushed order. A known id is replaced in place so a
// live list doesn't jump around; an unknown one is prepended. At most
// one entry per id afterwards.
func (s *Store) Upsert(order models.Order) {
	s.mu.Lock()
	s.upsertLocked(order)
	s.mu.Unlock()
	s.notifyChanged()
}

func (s *Store) upsertLocked(order models.Order) {
	if pos, ok := s.index[order.ID]; ok {
		s.orders[pos] = order
		return
	}
	s.orders = append([]models.Order{order}, s.orders...)
	for id, pos := range s.index {
		s.index[id] = pos + 1
	}
	s.index[order.ID] = 0
}

// Apply merges every order carried by a normalized push event.
func (s *Store) Apply(ev Event) {
	if !ev.OrderEvent() {
		return
	}
	s.mu.Lock()
	for _, order := range ev.Orders {
		s.upsertLocked(order)
	}
	s.mu.Unlock()
	s.notifyChanged()
}

// UpdateItemStatus is the optimistic local merge used by cancel flows
// when the server response carries no full order. Only transitions the
// table permits are applied.
func (s *Store) UpdateItemStatus(orderID, itemID uint, status statemachine.Status, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.index[orderID]
	if !ok {
		return &NotFoundError{Resource: "order"}
	}
	order := s.orders[pos]

	itemIdx := -1
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			itemIdx = i
			break
		}
	}
	if itemIdx == -1 {
		return &NotFoundError{Resource: "order item"}
	}
	item := order.Items[itemIdx]

	if !statemachine.CanTransition(statemachine.Status(item.Status), status) {
		return &ValidationError{Reason: "item is already " + item.Status}
	}
	if quantity < 0 || quantity > item.Quantity {
		return &ValidationError{Reason: "quantity out of range"}
	}

	// copy items so readers holding an old snapshot are not mutated
	items := make([]models.OrderItem, len(order.Items))
	copy(items, order.Items)

	now := time.Now()
	items[itemIdx].Status = string(status)
	items[itemIdx].UpdatedAt = now
	if status == statemachine.StatusCancelled {
		items[itemIdx].CancelledAt = &now
	}
	if quantity > 0 {
		items[itemIdx].Quantity = quantity
	}
	order.Items = items
	order.Recalculate()
	s.orders[pos] = order

	s.notifyChanged()
	return nil
}

// Snapshot returns a copy of the current order list, newest first.
func (s *Store) Snapshot() []models.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Order, len(s.orders))
	copy(out, s.orders)
	return out
}

// Get looks one order up by id.
func (s *Store) Get(id uint) (models.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[id]
	if !ok {
		return models.Order{}, false
	}
	return s.orders[pos], true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Changes delivers a coalesced tick after every mutation; UI consumers
// re-read Snapshot when it fires.
func (s *Store) Changes() <-chan struct{} {
	return s.notify
}

func (s *Store) notifyChanged() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// RefreshFunc re-syncs the store from the query endpoint. Used as the
// fallback when a push payload cannot be trusted.
type RefreshFunc func(ctx context.Context) error

// Subscribe owns the single realtime subscription for this store: it
// dials wsURL, applies events in arrival order and falls back to a
// full refresh on a malformed payload. Blocks until ctx is cancelled
// or the connection drops.
func (s *Store) Subscribe(ctx context.Context, wsURL string, refresh RefreshFunc) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return &NetworkError{Op: "dial realtime channel", Err: err}
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &NetworkError{Op: "read realtime channel", Err: err}
		}

		ev, err := DecodeEvent(raw)
		if errors.Is(err, ErrMalformedPayload) {
			s.log.Warnf("ordersync: malformed push payload, forcing refresh")
			if refresh != nil {
				if rerr := refresh(ctx); rerr != nil {
					s.log.Errorf("ordersync: fallback refresh: %v", rerr)
				}
			}
			continue
		}
		if err != nil {
			s.log.Warnf("ordersync: skipping undecodable push message: %v", err)
			continue
		}

		s.Apply(ev)
	}
}
