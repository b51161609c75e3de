package models

import "time"

// DiningSession groups the orders placed during one visit to a table.
type DiningSession struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SessionKey string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"session_key"`
	TableID    uint       `gorm:"not null;index" json:"table_id"`
	Table      Table      `gorm:"foreignKey:TableID" json:"table"`
	Status     string     `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	CreatedAt  time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null" json:"updated_at"`
}
