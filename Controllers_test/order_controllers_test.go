package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/controllers"
	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/realtime"
	"github.com/qrdine/qrdine/utils"
)

func setupTestDBForOrders(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	err = db.AutoMigrate(&models.Table{}, &models.DiningSession{}, &models.Food{},
		&models.Order{}, &models.OrderItem{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	// Seed: one occupied table with an active session, two foods
	table := models.Table{TableNumber: 4, Status: "occupied"}
	db.Create(&table)
	db.Create(&models.DiningSession{SessionKey: "sess-test", TableID: table.ID, Status: "active"})
	db.Create(&models.Food{Name: "Momo", Category: "Snacks", Price: 120, Availability: true})
	db.Create(&models.Food{Name: "Lassi", Category: "Drinks", Price: 60, Availability: true})
	return db
}

func setupOrderRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	hub := realtime.NewHub(logrus.New())
	r := gin.New()

	publicCtrl := controllers.NewPublicOrderController(db, hub)
	orderCtrl := controllers.NewOrderController(db, hub)

	r.POST("/api/public/order/:table_no", publicCtrl.CreateOrder)
	r.POST("/api/public/order/:table_no/cancel", publicCtrl.CancelItems)
	r.GET("/api/public/order/session/:session_key", publicCtrl.GetSessionOrders)
	r.GET("/api/order", orderCtrl.GetAllOrders)
	r.GET("/api/order/:order_id", orderCtrl.GetOrderByID)
	r.PUT("/api/order/:order_id", orderCtrl.UpdateOrderItems)
	r.PUT("/api/order/:order_id/status", orderCtrl.UpdateOrderStatus)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, url string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		assert.NoError(t, err)
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, body)
	assert.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var resp struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if out != nil {
		assert.NoError(t, json.Unmarshal(resp.Data, out))
	}
}

func createTestOrder(t *testing.T, r *gin.Engine) models.Order {
	t.Helper()
	w := doJSON(t, r, "POST", "/api/public/order/4", map[string]interface{}{
		"items": []map[string]interface{}{
			{"food_id": 1, "quantity": 2},
			{"food_id": 2, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var order models.Order
	decodeData(t, w, &order)
	return order
}

func TestMain(m *testing.M) {
	utils.InitLogger()
	m.Run()
}

func TestCreateOrderSnapshotsPrices(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, 300.0, order.TotalAmount) // 2*120 + 1*60
	assert.Len(t, order.Items, 2)
	assert.Equal(t, "Momo", order.Items[0].Name)
	assert.Equal(t, 120.0, order.Items[0].Price)

	// menu price changes must not touch the order snapshot
	db.Model(&models.Food{}).Where("id = ?", 1).Update("price", 999)
	w := doJSON(t, r, "GET", fmt.Sprintf("/api/order/%d", order.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got models.Order
	decodeData(t, w, &got)
	assert.Equal(t, 120.0, got.Items[0].Price)
}

func TestCreateOrderWithoutSessionFails(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	db.Create(&models.Table{TableNumber: 9, Status: "available"})

	w := doJSON(t, r, "POST", "/api/public/order/9", map[string]interface{}{
		"items": []map[string]interface{}{{"food_id": 1, "quantity": 1}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAllOrdersFilterAndSort(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	first := createTestOrder(t, r)
	second := createTestOrder(t, r)

	w := doJSON(t, r, "PUT", fmt.Sprintf("/api/order/%d/status", first.ID),
		map[string]string{"status": "preparing"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, "GET", "/api/order?status=preparing", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var filtered []models.Order
	decodeData(t, w, &filtered)
	assert.Len(t, filtered, 1)
	assert.Equal(t, first.ID, filtered[0].ID)

	w = doJSON(t, r, "GET", "/api/order", nil)
	var all []models.Order
	decodeData(t, w, &all)
	assert.Len(t, all, 2)
	_ = second

	w = doJSON(t, r, "GET", "/api/order?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateOrderStatusDerivesFromItems(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	w := doJSON(t, r, "PUT", fmt.Sprintf("/api/order/%d/status", order.ID),
		map[string]string{"status": "preparing"})
	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Order
	decodeData(t, w, &updated)
	assert.Equal(t, "preparing", updated.Status)
	for _, item := range updated.Items {
		assert.Equal(t, "preparing", item.Status)
	}
}

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	// pending -> served skips preparing
	w := doJSON(t, r, "PUT", fmt.Sprintf("/api/order/%d/status", order.ID),
		map[string]string{"status": "served"})
	assert.Equal(t, http.StatusConflict, w.Code)

	// order untouched
	w = doJSON(t, r, "GET", fmt.Sprintf("/api/order/%d", order.ID), nil)
	var got models.Order
	decodeData(t, w, &got)
	assert.Equal(t, "pending", got.Status)
}

func TestUpdateOrderItemsPartialAdvance(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	w := doJSON(t, r, "PUT", fmt.Sprintf("/api/order/%d", order.ID), map[string]interface{}{
		"item_updates": []map[string]interface{}{
			{"item_id": order.Items[0].ID, "status": "preparing"},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var updated models.Order
	decodeData(t, w, &updated)
	// one item preparing, one still pending -> order stays pending
	assert.Equal(t, "pending", updated.Status)
}

func TestUpdateOrderItemsQuantityOutOfRange(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	w := doJSON(t, r, "PUT", fmt.Sprintf("/api/order/%d", order.ID), map[string]interface{}{
		"item_updates": []map[string]interface{}{
			{"item_id": order.Items[0].ID, "quantity": 10},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCancelItemsRecomputesBill(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	w := doJSON(t, r, "POST", "/api/public/order/4/cancel", map[string]interface{}{
		"order_id": order.ID,
		"items_to_cancel": []map[string]interface{}{
			{"food_id": 1, "quantity": 2},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var updated []models.Order
	decodeData(t, w, &updated)
	assert.Len(t, updated, 1)
	assert.Equal(t, 60.0, updated[0].TotalAmount) // only the lassi remains billable
	assert.Equal(t, "cancelled", updated[0].Items[0].Status)
	assert.NotNil(t, updated[0].Items[0].CancelledAt)
}

func TestCancelItemsQuantityTooHigh(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	w := doJSON(t, r, "POST", "/api/public/order/4/cancel", map[string]interface{}{
		"order_id": order.ID,
		"items_to_cancel": []map[string]interface{}{
			{"food_id": 1, "quantity": 5},
		},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// nothing was written
	w = doJSON(t, r, "GET", fmt.Sprintf("/api/order/%d", order.ID), nil)
	var got models.Order
	decodeData(t, w, &got)
	assert.Equal(t, 300.0, got.TotalAmount)
}

func TestCancelAllItemsCancelsOrder(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	w := doJSON(t, r, "POST", "/api/public/order/4/cancel", map[string]interface{}{
		"order_id": order.ID,
		"items_to_cancel": []map[string]interface{}{
			{"food_id": 1, "quantity": 2},
			{"food_id": 2, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	var updated []models.Order
	decodeData(t, w, &updated)
	assert.Equal(t, "cancelled", updated[0].Status)
	assert.Zero(t, updated[0].TotalAmount)
}

func TestCancelServedItemConflicts(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	order := createTestOrder(t, r)

	// walk the momo items to served
	for _, status := range []string{"preparing", "served"} {
		w := doJSON(t, r, "PUT", fmt.Sprintf("/api/order/%d", order.ID), map[string]interface{}{
			"item_updates": []map[string]interface{}{
				{"item_id": order.Items[0].ID, "status": status},
			},
		})
		assert.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, r, "POST", "/api/public/order/4/cancel", map[string]interface{}{
		"order_id": order.ID,
		"items_to_cancel": []map[string]interface{}{
			{"food_id": 1, "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetSessionOrders(t *testing.T) {
	db := setupTestDBForOrders(t)
	r := setupOrderRouter(db)

	createTestOrder(t, r)
	createTestOrder(t, r)

	w := doJSON(t, r, "GET", "/api/public/order/session/sess-test", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var orders []models.Order
	decodeData(t, w, &orders)
	assert.Len(t, orders, 2)
}
