package controllers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/statemachine"
	"github.com/qrdine/qrdine/utils"
)

// DashboardController serves the analytics JSON the admin dashboard
// charts are drawn from. Aggregation happens in Go over gorm queries so
// the same code runs on MySQL and the SQLite test database.
type DashboardController struct {
	DB *gorm.DB
}

func NewDashboardController(db *gorm.DB) *DashboardController {
	return &DashboardController{DB: db}
}

type revenueWindow struct {
	TotalRevenue      float64            `json:"total_revenue"`
	OrderCount        int                `json:"order_count"`
	RevenueByCategory map[string]float64 `json:"revenue_by_category"`
	RevenuePerDay     map[string]float64 `json:"revenue_per_day"`
}

func (dc *DashboardController) completedOrdersSince(since time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := dc.DB.Preload("Items").
		Where("status = ? AND created_at >= ?", string(statemachine.StatusCompleted), since).
		Find(&orders).Error
	return orders, err
}

func (dc *DashboardController) revenueWindowSince(since time.Time) (revenueWindow, error) {
	win := revenueWindow{
		RevenueByCategory: map[string]float64{},
		RevenuePerDay:     map[string]float64{},
	}

	orders, err := dc.completedOrdersSince(since)
	if err != nil {
		return win, err
	}

	foodCategory := map[uint]string{}
	var foods []models.Food
	if err := dc.DB.Find(&foods).Error; err != nil {
		return win, err
	}
	for _, f := range foods {
		foodCategory[f.ID] = f.Category
	}

	for _, order := range orders {
		day := order.CreatedAt.Format("2006-01-02")
		for _, item := range order.Items {
			if item.Status == string(statemachine.StatusCancelled) {
				continue
			}
			win.TotalRevenue += item.Subtotal()
			win.RevenuePerDay[day] += item.Subtotal()
			category := foodCategory[item.FoodID]
			if category == "" {
				category = "uncategorized"
			}
			win.RevenueByCategory[category] += item.Subtotal()
		}
	}
	win.OrderCount = len(orders)
	return win, nil
}

// GetRevenue -> totals for the 30-day, 6-month and 1-year windows
func (dc *DashboardController) GetRevenue(c *gin.Context) {
	now := time.Now()
	windows := map[string]time.Time{
		"30days":  now.AddDate(0, 0, -30),
		"6months": now.AddDate(0, -6, 0),
		"1year":   now.AddDate(-1, 0, 0),
	}

	resp := map[string]revenueWindow{}
	for name, since := range windows {
		win, err := dc.revenueWindowSince(since)
		if err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		resp[name] = win
	}

	utils.RespondJSON(c, http.StatusOK, "Revenue", resp)
}

type foodCount struct {
	FoodID   uint    `json:"food_id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

func (dc *DashboardController) orderedFoodCounts(since time.Time) ([]foodCount, error) {
	var items []models.OrderItem
	err := dc.DB.
		Where("created_at >= ? AND status != ?", since, string(statemachine.StatusCancelled)).
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	byFood := map[uint]*foodCount{}
	for _, item := range items {
		fcnt, ok := byFood[item.FoodID]
		if !ok {
			fcnt = &foodCount{FoodID: item.FoodID, Name: item.Name}
			byFood[item.FoodID] = fcnt
		}
		fcnt.Quantity += item.Quantity
		fcnt.Revenue += item.Subtotal()
	}

	counts := make([]foodCount, 0, len(byFood))
	for _, fcnt := range byFood {
		counts = append(counts, *fcnt)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Quantity != counts[j].Quantity {
			return counts[i].Quantity > counts[j].Quantity
		}
		return counts[i].Name < counts[j].Name
	})
	return counts, nil
}

// GetMostOrdered -> top sellers of the last 30 days
func (dc *DashboardController) GetMostOrdered(c *gin.Context) {
	counts, err := dc.orderedFoodCounts(time.Now().AddDate(0, 0, -30))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if len(counts) > 5 {
		counts = counts[:5]
	}
	utils.RespondJSON(c, http.StatusOK, "Most ordered", counts)
}

// GetLeastOrdered -> slowest movers of the last 30 days
func (dc *DashboardController) GetLeastOrdered(c *gin.Context) {
	counts, err := dc.orderedFoodCounts(time.Now().AddDate(0, 0, -30))
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	// reverse: least first
	for i, j := 0, len(counts)-1; i < j; i, j = i+1, j-1 {
		counts[i], counts[j] = counts[j], counts[i]
	}
	if len(counts) > 5 {
		counts = counts[:5]
	}
	utils.RespondJSON(c, http.StatusOK, "Least ordered", counts)
}

// GetPeakHours -> order counts per hour-of-day over the last 30 days
func (dc *DashboardController) GetPeakHours(c *gin.Context) {
	var orders []models.Order
	if err := dc.DB.Where("created_at >= ?", time.Now().AddDate(0, 0, -30)).Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	counts := make([]int, 24)
	for _, order := range orders {
		counts[order.CreatedAt.Local().Hour()]++
	}

	type hourCount struct {
		Hour  int `json:"hour"`
		Count int `json:"count"`
	}
	resp := make([]hourCount, 24)
	for h := range counts {
		resp[h] = hourCount{Hour: h, Count: counts[h]}
	}
	utils.RespondJSON(c, http.StatusOK, "Peak hours", resp)
}

// GetTableUtilization -> sessions per table over the last 30 days
func (dc *DashboardController) GetTableUtilization(c *gin.Context) {
	var sessions []models.DiningSession
	if err := dc.DB.Preload("Table").
		Where("created_at >= ?", time.Now().AddDate(0, 0, -30)).
		Find(&sessions).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	type tableUse struct {
		TableNumber int `json:"table_number"`
		Sessions    int `json:"sessions"`
	}
	byTable := map[int]int{}
	for _, s := range sessions {
		byTable[s.Table.TableNumber]++
	}

	resp := make([]tableUse, 0, len(byTable))
	for number, count := range byTable {
		resp = append(resp, tableUse{TableNumber: number, Sessions: count})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].TableNumber < resp[j].TableNumber })

	utils.RespondJSON(c, http.StatusOK, "Table utilization", resp)
}
