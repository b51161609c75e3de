package models

import (
	"time"

	"github.com/qrdine/qrdine/statemachine"
)

type Order struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	TableID     uint          `gorm:"not null;index" json:"table_id"`
	Table       Table         `gorm:"foreignKey:TableID" json:"table"`
	SessionID   uint          `gorm:"not null;index" json:"session_id"`
	Session     DiningSession `gorm:"foreignKey:SessionID" json:"-"`
	Status      string        `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TotalAmount float64       `gorm:"type:decimal(10,2);not null;default:0.00" json:"total_amount"`
	CreatedAt   time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"not null" json:"updated_at"`
	Items       []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
}

// Recalculate re-derives order status from item statuses and recomputes
// the bill total. Cancelled items never contribute to the total.
func (o *Order) Recalculate() {
	statuses := make([]statemachine.Status, len(o.Items))
	var total float64
	for i, item := range o.Items {
		statuses[i] = statemachine.Status(item.Status)
		if item.Status != string(statemachine.StatusCancelled) {
			total += item.Price * float64(item.Quantity)
		}
	}
	o.Status = string(statemachine.DeriveOrderStatus(statuses))
	o.TotalAmount = total
}
