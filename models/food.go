package models

import "time"

type Food struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(255);not null" json:"name"`
	Category     string    `gorm:"type:varchar(100);not null;index" json:"category"`
	Price        float64   `gorm:"type:decimal(10,2);not null" json:"price"`
	Description  string    `gorm:"type:text" json:"description"`
	Availability bool      `gorm:"not null;default:true" json:"availability"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}
