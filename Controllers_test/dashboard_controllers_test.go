package Controllers_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/controllers"
	"github.com/qrdine/qrdine/models"
)

func setupDashboardFixture(t *testing.T) (*gorm.DB, *gin.Engine) {
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

	gin.SetMode(gin.TestMode)
	r := gin.New()
	dashCtrl := controllers.NewDashboardController(db)
	r.GET("/api/dashboard/revenue", dashCtrl.GetRevenue)
	r.GET("/api/dashboard/most-ordered", dashCtrl.GetMostOrdered)
	r.GET("/api/dashboard/least-ordered", dashCtrl.GetLeastOrdered)
	return db, r
}

func TestRevenueExcludesCancelledItems(t *testing.T) {
	db, r := setupDashboardFixture(t)

	momo := models.Food{Name: "Momo", Category: "Snacks", Price: 120, Availability: true}
	chiya := models.Food{Name: "Chiya", Category: "Drinks", Price: 25, Availability: true}
	db.Create(&momo)
	db.Create(&chiya)

	now := time.Now()
	order := models.Order{
		TableID: 1, SessionID: 1, Status: "completed", TotalAmount: 240,
		CreatedAt: now, UpdatedAt: now,
		Items: []models.OrderItem{
			{FoodID: momo.ID, Name: "Momo", Price: 120, Quantity: 2, Status: "completed"},
			{FoodID: chiya.ID, Name: "Chiya", Price: 25, Quantity: 3, Status: "cancelled", CancelledAt: &now},
		},
	}
	db.Create(&order)

	// still open, must not count toward revenue
	db.Create(&models.Order{
		TableID: 1, SessionID: 1, Status: "preparing", TotalAmount: 120,
		CreatedAt: now, UpdatedAt: now,
		Items: []models.OrderItem{
			{FoodID: momo.ID, Name: "Momo", Price: 120, Quantity: 1, Status: "preparing"},
		},
	})

	w := doJSON(t, r, "GET", "/api/dashboard/revenue", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]struct {
		TotalRevenue      float64            `json:"total_revenue"`
		OrderCount        int                `json:"order_count"`
		RevenueByCategory map[string]float64 `json:"revenue_by_category"`
	}
	decodeData(t, w, &resp)

	win := resp["30days"]
	assert.Equal(t, 240.0, win.TotalRevenue)
	assert.Equal(t, 1, win.OrderCount)
	assert.Equal(t, 240.0, win.RevenueByCategory["Snacks"])
	assert.Zero(t, win.RevenueByCategory["Drinks"])
}

func TestMostOrderedRanksByQuantity(t *testing.T) {
	db, r := setupDashboardFixture(t)

	now := time.Now()
	db.Create(&models.Order{
		TableID: 1, SessionID: 1, Status: "completed", TotalAmount: 0,
		CreatedAt: now, UpdatedAt: now,
		Items: []models.OrderItem{
			{FoodID: 1, Name: "Momo", Price: 120, Quantity: 5, Status: "completed"},
			{FoodID: 2, Name: "Chiya", Price: 25, Quantity: 2, Status: "completed"},
			{FoodID: 3, Name: "Lassi", Price: 60, Quantity: 4, Status: "cancelled", CancelledAt: &now},
		},
	})

	w := doJSON(t, r, "GET", "/api/dashboard/most-ordered", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var counts []struct {
		Name     string `json:"name"`
		Quantity int    `json:"quantity"`
	}
	decodeData(t, w, &counts)
	assert.Len(t, counts, 2) // cancelled lassi never shows up
	assert.Equal(t, "Momo", counts[0].Name)
	assert.Equal(t, 5, counts[0].Quantity)

	w = doJSON(t, r, "GET", "/api/dashboard/least-ordered", nil)
	decodeData(t, w, &counts)
	assert.Equal(t, "Chiya", counts[0].Name)
}
