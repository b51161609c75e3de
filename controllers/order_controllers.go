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

type OrderController struct {
	DB  *gorm.DB
	Hub *realtime.Hub
}

func NewOrderController(db *gorm.DB, hub *realtime.Hub) *OrderController {
	return &OrderController{DB: db, Hub: hub}
}

// GetAllOrders -> list orders with items, newest first, optional ?status= filter
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	query := oc.DB.Preload("Items").Preload("Table").Order("created_at desc")

	if status := c.Query("status"); status != "" && status != "all" {
		if !statemachine.Valid(statemachine.Status(status)) {
			utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("unknown status %q", status))
			return
		}
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", orders)
}

// GetOrderByID -> detail of one order
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	var order models.Order
	if err := oc.DB.Preload("Items").Preload("Table").First(&order, "id = ?", c.Param("order_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// UpdateOrderStatus moves the whole order toward the target status. The
// transition is applied to every item for which it is legal; if nothing
// in the order is eligible the request is rejected rather than silently
// doing nothing.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var order models.Order
	if err := oc.DB.Preload("Items").Preload("Table").First(&order, "id = ?", c.Param("order_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type reqBody struct {
		Status string `json:"status" binding:"required"`
	}
	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	target := statemachine.Status(req.Status)
	if !statemachine.Valid(target) {
		utils.RespondError(c, http.StatusUnprocessableEntity, fmt.Errorf("unknown status %q", req.Status))
		return
	}

	statuses := make([]statemachine.Status, len(order.Items))
	for i, item := range order.Items {
		statuses[i] = statemachine.Status(item.Status)
	}

	eligible, err := statemachine.FilterEligible(statuses, target)
	if err != nil {
		utils.RespondError(c, http.StatusConflict, err)
		return
	}

	now := time.Now()
	for _, idx := range eligible {
		order.Items[idx].Status = string(target)
		order.Items[idx].UpdatedAt = now
		if target == statemachine.StatusCancelled {
			order.Items[idx].CancelledAt = &now
		}
	}
	order.Recalculate()
	order.UpdatedAt = now

	tx := oc.DB.Begin()
	for i := range order.Items {
		if err := tx.Save(&order.Items[i]).Error; err != nil {
			tx.Rollback()
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	if err := tx.Save(&order).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	tx.Commit()

	oc.Hub.BroadcastOrderStatus(order)

	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

// UpdateOrderItems applies item-level updates (status advance, quantity
// reduction). Every update is validated against the transition table
// before anything is written.
func (oc *OrderController) UpdateOrderItems(c *gin.Context) {
	var order models.Order
	if err := oc.DB.Preload("Items").Preload("Table").First(&order, "id = ?", c.Param("order_id")).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	type itemUpdate struct {
		ItemID   uint    `json:"item_id" binding:"required"`
		Status   *string `json:"status"`
		Quantity *int    `json:"quantity"`
	}
	type reqBody struct {
		ItemUpdates []itemUpdate `json:"item_updates" binding:"required,min=1"`
	}

	var req reqBody
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	byID := make(map[uint]*models.OrderItem, len(order.Items))
	for i := range order.Items {
		byID[order.Items[i].ID] = &order.Items[i]
	}

	// validate everything up front so a bad update never leaves the
	// order half-written
	for _, upd := range req.ItemUpdates {
		item, ok := byID[upd.ItemID]
		if !ok {
			utils.RespondError(c, http.StatusNotFound, fmt.Errorf("item %d not found in order %d", upd.ItemID, order.ID))
			return
		}
		if upd.Status != nil && *upd.Status != item.Status {
			from, to := statemachine.Status(item.Status), statemachine.Status(*upd.Status)
			if !statemachine.Valid(to) {
				utils.RespondError(c, http.StatusUnprocessableEntity, fmt.Errorf("unknown status %q", *upd.Status))
				return
			}
			if !statemachine.CanTransition(from, to) {
				utils.RespondError(c, http.StatusConflict, fmt.Errorf("item %d is already %s", item.ID, item.Status))
				return
			}
		}
		if upd.Quantity != nil {
			if *upd.Quantity <= 0 || *upd.Quantity > item.Quantity {
				utils.RespondError(c, http.StatusUnprocessableEntity,
					fmt.Errorf("quantity %d out of range for item %d (have %d)", *upd.Quantity, item.ID, item.Quantity))
				return
			}
		}
	}

	now := time.Now()
	for _, upd := range req.ItemUpdates {
		item := byID[upd.ItemID]
		if upd.Status != nil && *upd.Status != item.Status {
			item.Status = *upd.Status
			if *upd.Status == string(statemachine.StatusCancelled) {
				item.CancelledAt = &now
			}
		}
		if upd.Quantity != nil {
			item.Quantity = *upd.Quantity
		}
		item.UpdatedAt = now
	}
	order.Recalculate()
	order.UpdatedAt = now

	tx := oc.DB.Begin()
	for i := range order.Items {
		if err := tx.Save(&order.Items[i]).Error; err != nil {
			tx.Rollback()
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
	}
	if err := tx.Save(&order).Error; err != nil {
		tx.Rollback()
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	tx.Commit()

	oc.Hub.BroadcastOrdersUpdated([]models.Order{order})

	utils.RespondJSON(c, http.StatusOK, "Order updated", order)
}
