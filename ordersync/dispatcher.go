package ordersync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/statemachine"
)

// Dispatcher turns user actions into outbound requests. It validates
// locally first (a ValidationError never reaches the network), sends
// exactly one request per action, and merges whatever order the server
// echoes back — the push channel delivering the same update again is
// harmless because Upsert is idempotent.
type Dispatcher struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Store      *Store

	log *logrus.Logger

	mu          sync.Mutex
	cancelFetch context.CancelFunc
	fetchGen    uint64
}

func NewDispatcher(baseURL string, store *Store, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{
		BaseURL:    baseURL,
		HTTPClient: http.DefaultClient,
		Store:      store,
		log:        log,
	}
}

// ItemCancel names a quantity of one food to cancel.
type ItemCancel struct {
	FoodID   uint `json:"food_id"`
	Quantity int  `json:"quantity"`
}

// Refresh re-fetches the full order list and replaces the store. Last
// request wins: starting a new refresh cancels any in-flight one, and a
// superseded response is discarded instead of clobbering newer state.
func (d *Dispatcher) Refresh(ctx context.Context) error {
	d.mu.Lock()
	if d.cancelFetch != nil {
		d.cancelFetch()
	}
	fetchCtx, cancel := context.WithCancel(ctx)
	d.cancelFetch = cancel
	d.fetchGen++
	gen := d.fetchGen
	d.mu.Unlock()
	defer cancel()

	var orders []models.Order
	err := d.do(fetchCtx, http.MethodGet, "/api/order", nil, &orders)

	d.mu.Lock()
	superseded := gen != d.fetchGen
	d.mu.Unlock()
	if superseded {
		return nil
	}
	if err != nil {
		return err
	}

	d.Store.ReplaceAll(orders)
	return nil
}

// CancelItems cancels quantities of specific foods on one order.
// Quantity beyond what is still cancellable fails locally with a
// ValidationError; no request is sent.
func (d *Dispatcher) CancelItems(ctx context.Context, orderID uint, cancels []ItemCancel) error {
	order, ok := d.Store.Get(orderID)
	if !ok {
		return &NotFoundError{Resource: "order"}
	}
	if len(cancels) == 0 {
		return &ValidationError{Reason: "nothing selected"}
	}

	for _, cancel := range cancels {
		if cancel.Quantity <= 0 {
			return &ValidationError{Reason: "quantity must be positive"}
		}
		available := 0
		for _, item := range order.Items {
			if item.FoodID == cancel.FoodID &&
				statemachine.Cancellable(statemachine.Status(item.Status)) {
				available += item.Quantity
			}
		}
		if cancel.Quantity > available {
			return &ValidationError{
				Reason: fmt.Sprintf("cannot cancel %d of food %d, only %d remaining", cancel.Quantity, cancel.FoodID, available),
			}
		}
	}

	body := map[string]interface{}{
		"order_id":        orderID,
		"items_to_cancel": cancels,
	}
	path := fmt.Sprintf("/api/public/order/%d/cancel", order.Table.TableNumber)

	var updated []models.Order
	if err := d.send(ctx, http.MethodPost, path, body, &updated); err != nil {
		return err
	}
	for _, o := range updated {
		d.Store.Upsert(o)
	}
	return nil
}

// CancelEntireOrder cancels everything still cancellable on the order;
// items already served or completed are left untouched.
func (d *Dispatcher) CancelEntireOrder(ctx context.Context, orderID uint) error {
	order, ok := d.Store.Get(orderID)
	if !ok {
		return &NotFoundError{Resource: "order"}
	}

	byFood := map[uint]int{}
	for _, item := range order.Items {
		if statemachine.Cancellable(statemachine.Status(item.Status)) {
			byFood[item.FoodID] += item.Quantity
		}
	}
	if len(byFood) == 0 {
		return &ValidationError{Reason: statemachine.ErrNoEligibleItems.Error()}
	}

	cancels := make([]ItemCancel, 0, len(byFood))
	for foodID, qty := range byFood {
		cancels = append(cancels, ItemCancel{FoodID: foodID, Quantity: qty})
	}
	return d.CancelItems(ctx, orderID, cancels)
}

// AdvanceStatus moves the selected items toward target. A selection
// where nothing may legally transition is rejected locally — no request
// goes out. Otherwise the legal subset is sent.
func (d *Dispatcher) AdvanceStatus(ctx context.Context, orderID uint, itemIDs []uint, target statemachine.Status) error {
	order, ok := d.Store.Get(orderID)
	if !ok {
		return &NotFoundError{Resource: "order"}
	}
	if !statemachine.Valid(target) {
		return &ValidationError{Reason: fmt.Sprintf("unknown status %q", target)}
	}

	// empty selection = whole-order transition
	if len(itemIDs) == 0 {
		statuses := make([]statemachine.Status, len(order.Items))
		for i, item := range order.Items {
			statuses[i] = statemachine.Status(item.Status)
		}
		if _, err := statemachine.FilterEligible(statuses, target); err != nil {
			return &ValidationError{Reason: err.Error()}
		}

		var updated models.Order
		path := fmt.Sprintf("/api/order/%d/status", orderID)
		if err := d.send(ctx, http.MethodPut, path, map[string]string{"status": string(target)}, &updated); err != nil {
			return err
		}
		d.Store.Upsert(updated)
		return nil
	}

	byID := map[uint]models.OrderItem{}
	for _, item := range order.Items {
		byID[item.ID] = item
	}

	type itemUpdate struct {
		ItemID uint   `json:"item_id"`
		Status string `json:"status"`
	}
	var updates []itemUpdate
	for _, id := range itemIDs {
		item, ok := byID[id]
		if !ok {
			return &NotFoundError{Resource: "order item"}
		}
		if statemachine.CanTransition(statemachine.Status(item.Status), target) {
			updates = append(updates, itemUpdate{ItemID: id, Status: string(target)})
		}
	}
	if len(updates) == 0 {
		return &ValidationError{Reason: statemachine.ErrNoEligibleItems.Error()}
	}

	var updated models.Order
	path := fmt.Sprintf("/api/order/%d", orderID)
	if err := d.send(ctx, http.MethodPut, path, map[string]interface{}{"item_updates": updates}, &updated); err != nil {
		return err
	}
	d.Store.Upsert(updated)
	return nil
}

// send performs one command request. A 409 forces a full re-sync before
// the ConflictError is handed back.
func (d *Dispatcher) send(ctx context.Context, method, path string, body, out interface{}) error {
	err := d.do(ctx, method, path, body, out)
	if _, conflict := err.(*ConflictError); conflict {
		if rerr := d.Refresh(ctx); rerr != nil {
			d.log.Errorf("ordersync: refresh after conflict: %v", rerr)
		}
	}
	return err
}

type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (d *Dispatcher) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: envelope.Message}
	case resp.StatusCode == http.StatusConflict:
		return &ConflictError{Reason: envelope.Message}
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return &ValidationError{Reason: envelope.Message}
	case resp.StatusCode >= 400:
		return &NetworkError{Op: method + " " + path, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, envelope.Message)}
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &NetworkError{Op: method + " " + path, Err: err}
		}
	}
	return nil
}
