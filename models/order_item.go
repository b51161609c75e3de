package models

import (
	"time"
)

type OrderItem struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OrderID uint `gorm:"not null;index" json:"order_id"`
	// Omitting Order field from JSON to avoid recursive nesting
	Order  Order `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	FoodID uint  `gorm:"not null" json:"food_id"`
	Food   Food  `gorm:"foreignKey:FoodID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"`
	// Name and Price are snapshots taken at order time; later menu edits
	// must not change an existing bill.
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Price       float64    `gorm:"type:decimal(10,2);not null" json:"price"`
	Quantity    int        `gorm:"not null" json:"quantity"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
}

func (i OrderItem) Subtotal() float64 {
	return i.Price * float64(i.Quantity)
}
