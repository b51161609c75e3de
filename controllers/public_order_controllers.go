package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/qrdine/qrdine/models"
	"github.com/qrdine/qrdine/realtime"
	"github.com/qrdine/qrdine/statemachine"
	"github.com/qrdine/qrdine/utils"
)

// PublicOrderController serves the customer-facing ordering flow: no
// auth, scoped to the caller's table session.
type PublicOrderController struct {
	DB  *gorm.DB
	Hub *realtime.Hub
}

func NewPublicOrderController(db *gorm.DB, hub *realtime.Hub) *PublicOrderController {
	return &PublicOrderController{DB: db, Hub: hub}
}

func (pc *PublicOrderController) activeSession(tableNo string) (*models.DiningSession, *models.Table, error) {
	var table models.Table
	if err := pc.DB.First(&table, "table_number = ?", tableNo).Error; err != nil {
		return nil, nil, err
	}
	var session models.DiningSession
	if err := pc.DB.Where("table_id = ? AND status = ?", table.ID, "active").First(&session).Error; err != nil {
		return nil, &table, ErrNoActiveSession
	}
	return &session, &table, nil
}

// CreateOrder -> confirm the cart for the table's active session
// (status=pending, server snapshots name/price and computes the total)
func (pc *PublicOrderController) CreateOrder(c *gin.Context) {
	session, table, err := pc.activeSession(c.Param("table_no"))
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type itemReq struct {
		FoodID   uint `json:"food_id" binding:"required"`
		Quantity int  `json:"quantity" binding:"required"`
	}
	type reqBody struct {
		Items []itemReq `json:"items" binding:"required,min=1"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	var items []models.OrderItem
	var total float64
	for _, it := range body.Items {
		if it.Quantity <= 0 {
			utils.RespondError(c, http.StatusUnprocessableEntity, fmt.Errorf("quantity must be positive"))
			return
		}
		var food models.Food
		if err := pc.DB.First(&food, it.FoodID).Error; err != nil {
			utils.RespondError(c, http.StatusNotFound, fmt.Errorf("food %d not found", it.FoodID))
			return
		}
		if !food.Availability {
			utils.RespondError(c, http.StatusConflict, fmt.Errorf("%s is currently unavailable", food.Name))
			return
		}
		items = append(items, models.OrderItem{
			FoodID:    food.ID,
			Name:      food.Name,
			Price:     food.Price,
			Quantity:  it.Quantity,
			Status:    string(statemachine.StatusPending),
			CreatedAt: now,
			UpdatedAt: now,
		})
		total += food.Price * float64(it.Quantity)
	}

	order := models.Order{
		TableID:     table.ID,
		Table:       *table,
		SessionID:   session.ID,
		Status:      string(statemachine.StatusPending),
		TotalAmount: total,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       items,
	}

	if err := pc.DB.Create(&order).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	pc.Hub.BroadcastNewOrder(order)

	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetSessionOrders -> all orders of one dining session, newest first
func (pc *PublicOrderController) GetSessionOrders(c *gin.Context) {
	var session models.DiningSession
	if err := pc.DB.First(&session, "session_key = ?", c.Param("session_key")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var orders []models.Order
	if err := pc.DB.Preload("Items").Preload("Table").
		Where("session_id = ?", session.ID).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Session orders", orders)
}

type cancelItemReq struct {
	FoodID   uint `json:"food_id" binding:"required"`
	Quantity int  `json:"quantity" binding:"required"`
}

type cancelReq struct {
	OrderID       uint            `json:"order_id"`
	ItemsToCancel []cancelItemReq `json:"items_to_cancel" binding:"required,min=1"`
}

// CancelItems cancels (or reduces) items across the session's open
// orders. The whole request is validated before anything is written:
// a bad quantity or an item that already left the cancellable window
// rejects the entire batch.
func (pc *PublicOrderController) CancelItems(c *gin.Context) {
	session, _, err := pc.activeSession(c.Param("table_no"))
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	var req cancelReq
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	query := pc.DB.Preload("Items").Preload("Table").Where("session_id = ?", session.ID)
	if req.OrderID != 0 {
		query = query.Where("id = ?", req.OrderID)
	}
	var orders []models.Order
	if err := query.Order("created_at asc").Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if len(orders) == 0 {
		utils.RespondError(c, http.StatusNotFound, fmt.Errorf("order not found in this session"))
		return
	}

	now := time.Now()
	touched := map[uint]bool{}

	for _, cancel := range req.ItemsToCancel {
		if cancel.Quantity <= 0 {
			utils.RespondError(c, http.StatusUnprocessableEntity, fmt.Errorf("quantity must be positive"))
			return
		}

		remaining := cancel.Quantity
		available := 0
		blocked := false

		for oi := range orders {
			for ii := range orders[oi].Items {
				item := &orders[oi].Items[ii]
				if item.FoodID != cancel.FoodID || item.Status == string(statemachine.StatusCancelled) {
					continue
				}
				if !statemachine.Cancellable(statemachine.Status(item.Status)) {
					blocked = true
					continue
				}
				available += item.Quantity
			}
		}

		if available == 0 {
			if blocked {
				utils.RespondError(c, http.StatusConflict,
					fmt.Errorf("food %d can no longer be cancelled, please refresh", cancel.FoodID))
			} else {
				utils.RespondError(c, http.StatusNotFound, fmt.Errorf("food %d not found in open orders", cancel.FoodID))
			}
			return
		}
		if remaining > available {
			utils.RespondError(c, http.StatusUnprocessableEntity,
				fmt.Errorf("cannot cancel %d of food %d, only %d remaining", remaining, cancel.FoodID, available))
			return
		}

		for oi := range orders {
			for ii := range orders[oi].Items {
				item := &orders[oi].Items[ii]
				if remaining == 0 {
					break
				}
				if item.FoodID != cancel.FoodID ||
					!statemachine.Cancellable(statemachine.Status(item.Status)) {
					continue
				}
				if item.Quantity <= remaining {
					remaining -= item.Quantity
					item.Status = string(statemachine.StatusCancelled)
					item.CancelledAt = &now
				} else {
					item.Quantity -= remaining
					remaining = 0
				}
				item.UpdatedAt = now
				touched[orders[oi].ID] = true
			}
		}
	}

	var updated []models.Order
	tx := pc.DB.Begin()
	for oi := range orders {
		if !touched[orders[oi].ID] {
			continue
		}
		orders[oi].Recalculate()
		orders[oi].UpdatedAt = now
		for ii := range orders[oi].Items {
			if err := tx.Save(&orders[oi].Items[ii]).Error; err != nil {
				tx.Rollback()
				utils.RespondError(c, http.StatusInternalServerError, err)
				return
			}
		}
		if err := tx.Save(&orders[oi]).Error; err != nil {
			tx.Rollback()
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		updated = append(updated, orders[oi])
	}
	tx.Commit()

	pc.Hub.BroadcastOrdersUpdated(updated)

	utils.RespondJSON(c, http.StatusOK, "Items cancelled", updated)
}
