package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/config"
	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/ordersync"
	"github.com/qrdine/qrdine/realtime"
	"github.com/qrdine/qrdine/router"
	"github.com/qrdine/qrdine/statemachine"
	"github.com/qrdine/qrdine/utils"
)

// Spins up the whole backend on an in-memory database and drives it
// through a client-side Store/Dispatcher pair over real HTTP and
// websocket connections: the same wiring a kitchen display runs.

type integrationEnv struct {
	server *httptest.Server
	db     *gorm.DB
	hub    *realtime.Hub
	token  string
}

func setupIntegration(t *testing.T) *integrationEnv {
	t.Helper()
	utils.InitLogger()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Table{}, &models.DiningSession{},
		&models.Food{}, &models.Order{}, &models.OrderItem{},
	))

	hub := realtime.NewHub(logrus.New())
	cfg := &config.Config{PublicBaseURL: "http://restaurant.local", CORSOrigin: "*"}

	server := httptest.NewServer(router.SetupRouter(db, hub, cfg))
	t.Cleanup(server.Close)

	env := &integrationEnv{server: server, db: db, hub: hub}
	env.register(t, "kitchen@qrdine.example.com", "kitchen")
	env.token = env.login(t, "kitchen@qrdine.example.com")
	return env
}

func (e *integrationEnv) post(t *testing.T, path string, payload interface{}, out interface{}) int {
	t.Helper()
	return e.request(t, "POST", path, payload, out)
}

func (e *integrationEnv) request(t *testing.T, method, path string, payload, out interface{}) int {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	if out != nil && len(envelope.Data) > 0 {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return resp.StatusCode
}

func (e *integrationEnv) register(t *testing.T, email, role string) {
	t.Helper()
	code := e.post(t, "/api/auth/register", map[string]string{
		"name": "Integration", "email": email, "password": "super-secret-1", "role": role,
	}, nil)
	require.Equal(t, http.StatusCreated, code)
}

func (e *integrationEnv) login(t *testing.T, email string) string {
	t.Helper()
	var out struct {
		Token string `json:"token"`
	}
	code := e.post(t, "/api/auth/login", map[string]string{
		"email": email, "password": "super-secret-1",
	}, &out)
	require.Equal(t, http.StatusOK, code)
	require.NotEmpty(t, out.Token)
	return out.Token
}

func (e *integrationEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws?token=" + e.token
}

// seedDiningTable opens a table with an active session and a small menu.
func (e *integrationEnv) seedDiningTable(t *testing.T) {
	t.Helper()
	require.NoError(t, e.db.Create(&models.Table{TableNumber: 1, Status: "available"}).Error)
	require.NoError(t, e.db.Create(&models.Food{Name: "Momo", Category: "Snacks", Price: 120, Availability: true}).Error)
	require.NoError(t, e.db.Create(&models.Food{Name: "Lassi", Category: "Drinks", Price: 60, Availability: true}).Error)

	code := e.post(t, "/api/public/table/1/session", nil, nil)
	require.Equal(t, http.StatusCreated, code)
}

// waitForClient blocks until the websocket subscriber is registered on
// the hub, so no broadcast fired by the test can be lost mid-dial.
func (e *integrationEnv) waitForClient(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for e.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("realtime client never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForStore(t *testing.T, store *ordersync.Store, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-store.Changes():
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("store never reached the expected state")
		}
	}
}

func TestPushReconciliationEndToEnd(t *testing.T) {
	env := setupIntegration(t)
	env.seedDiningTable(t)

	store := ordersync.NewStore(logrus.New())
	dispatcher := ordersync.NewDispatcher(env.server.URL, store, logrus.New())
	dispatcher.Token = env.token

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subDone := make(chan error, 1)
	go func() {
		subDone <- store.Subscribe(ctx, env.wsURL(), dispatcher.Refresh)
	}()

	env.waitForClient(t)
	require.NoError(t, dispatcher.Refresh(ctx))
	assert.Zero(t, store.Len())

	// a customer orders; the new-order push should land in the store
	// without any refresh
	var created models.Order
	code := env.post(t, "/api/public/order/1", map[string]interface{}{
		"items": []map[string]interface{}{
			{"food_id": 1, "quantity": 2},
			{"food_id": 2, "quantity": 1},
		},
	}, &created)
	require.Equal(t, http.StatusCreated, code)

	waitForStore(t, store, func() bool { return store.Len() == 1 })
	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "pending", got.Status)
	assert.Equal(t, 300.0, got.TotalAmount)

	// the kitchen advances the whole order; server echo and push both
	// carry the same state, so the double delivery must be harmless
	require.NoError(t, dispatcher.AdvanceStatus(ctx, created.ID, nil, statemachine.StatusPreparing))
	waitForStore(t, store, func() bool {
		o, ok := store.Get(created.ID)
		return ok && o.Status == "preparing"
	})
	assert.Equal(t, 1, store.Len())

	// illegal whole-order jump fails locally, nothing reaches the wire
	err := dispatcher.AdvanceStatus(ctx, created.ID, nil, statemachine.StatusCompleted)
	var verr *ordersync.ValidationError
	require.ErrorAs(t, err, &verr)

	cancel()
	select {
	case <-subDone:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not shut down")
	}
}

func TestCancelFlowEndToEnd(t *testing.T) {
	env := setupIntegration(t)
	env.seedDiningTable(t)

	store := ordersync.NewStore(logrus.New())
	dispatcher := ordersync.NewDispatcher(env.server.URL, store, logrus.New())
	dispatcher.Token = env.token

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go store.Subscribe(ctx, env.wsURL(), dispatcher.Refresh)
	env.waitForClient(t)

	var created models.Order
	code := env.post(t, "/api/public/order/1", map[string]interface{}{
		"items": []map[string]interface{}{
			{"food_id": 1, "quantity": 2},
			{"food_id": 2, "quantity": 1},
		},
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	waitForStore(t, store, func() bool { return store.Len() == 1 })

	// over-asking fails locally
	err := dispatcher.CancelItems(ctx, created.ID, []ordersync.ItemCancel{{FoodID: 1, Quantity: 5}})
	var verr *ordersync.ValidationError
	require.ErrorAs(t, err, &verr)

	// a real cancel lands on the server and in the store
	require.NoError(t, dispatcher.CancelItems(ctx, created.ID, []ordersync.ItemCancel{{FoodID: 1, Quantity: 2}}))
	waitForStore(t, store, func() bool {
		o, ok := store.Get(created.ID)
		return ok && o.TotalAmount == 60.0
	})

	// the rest of the order is still billable
	got, _ := store.Get(created.ID)
	assert.Equal(t, 60.0, ordersync.BillableTotal(got))

	// cancelling the remainder empties the bill and cancels the order
	require.NoError(t, dispatcher.CancelEntireOrder(ctx, created.ID))
	waitForStore(t, store, func() bool {
		o, ok := store.Get(created.ID)
		return ok && o.Status == "cancelled"
	})

	// nothing cancellable is left
	err = dispatcher.CancelEntireOrder(ctx, created.ID)
	require.ErrorAs(t, err, &verr)
}

func TestStaleClientConflictForcesResync(t *testing.T) {
	env := setupIntegration(t)
	env.seedDiningTable(t)

	// stale client: no websocket, only an initial refresh
	store := ordersync.NewStore(logrus.New())
	dispatcher := ordersync.NewDispatcher(env.server.URL, store, logrus.New())
	dispatcher.Token = env.token

	ctx := context.Background()

	var created models.Order
	code := env.post(t, "/api/public/order/1", map[string]interface{}{
		"items": []map[string]interface{}{{"food_id": 1, "quantity": 1}},
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	require.NoError(t, dispatcher.Refresh(ctx))

	// another terminal serves and completes the item behind our back
	var item models.OrderItem
	require.NoError(t, env.db.First(&item, "order_id = ?", created.ID).Error)
	for _, status := range []string{"preparing", "served", "completed"} {
		code = env.request(t, "PUT", fmt.Sprintf("/api/order/%d", created.ID), map[string]interface{}{
			"item_updates": []map[string]interface{}{{"item_id": item.ID, "status": status}},
		}, nil)
		require.Equal(t, http.StatusOK, code)
	}

	// our snapshot still says pending, so the cancel goes out and the
	// server rejects it; the conflict forces a resync
	err := dispatcher.CancelItems(ctx, created.ID, []ordersync.ItemCancel{{FoodID: 1, Quantity: 1}})
	var cerr *ordersync.ConflictError
	require.ErrorAs(t, err, &cerr)

	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, "completed", got.Status)
}
