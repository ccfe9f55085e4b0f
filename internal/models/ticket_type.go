package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TicketType holds bounded inventory for one priced admission category.
// AvailableQuantity only ever moves down, exactly once per completed order.
type TicketType struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	EventID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"event_id"`
	Event             *Event          `json:"-"`
	Name              string          `gorm:"not null" json:"name"`
	Price             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	AvailableQuantity int             `gorm:"not null" json:"available_quantity"`
	TotalQuantity     int             `gorm:"not null" json:"total_quantity"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (tt *TicketType) BeforeCreate(tx *gorm.DB) (err error) {
	if tt.ID == uuid.Nil {
		tt.ID = uuid.New()
	}
	return
}
