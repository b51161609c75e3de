package models

import (
	"fmt"
	"time"
)

type Table struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TableNumber int       `gorm:"not null;uniqueIndex" json:"table_number"`
	Status      string    `gorm:"type:varchar(50);not null;default:'available'" json:"status"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// QRPayload is the URL encoded into the printed table QR code. Image
// rendering is left to the client.
func (t Table) QRPayload(baseURL string) string {
	return fmt.Sprintf("%s/menu/%d", baseURL, t.TableNumber)
}
