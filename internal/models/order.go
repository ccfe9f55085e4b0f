package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// Order tracks one purchase intent for exactly one ticket. The status
// transition pending->completed and the is_scanned transition false->true
// are both monotonic; they are only ever written through conditional
// updates that re-check the previous value.
type Order struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	OrderNumber       string          `gorm:"unique;not null" json:"order_number"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	User              *User           `json:"user,omitempty"`
	EventID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"event_id"`
	Event             *Event          `json:"event,omitempty"`
	TicketTypeID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"ticket_type_id"`
	TicketType        *TicketType     `json:"ticket_type,omitempty"`
	Amount            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Status            string          `gorm:"not null;default:'pending';index" json:"status"`
	ProviderReference string          `gorm:"index" json:"provider_reference"`
	ProviderPaymentID string          `json:"provider_payment_id"`
	PayURL            string          `json:"pay_url,omitempty"`
	QRPayload         string          `json:"qr_payload"`
	QRImage           string          `json:"-"`
	IsScanned         bool            `gorm:"not null;default:false" json:"is_scanned"`
	ScannedAt         *time.Time      `json:"scanned_at"`
	ScannedBy         string          `json:"scanned_by"`
	SessionToken      string          `gorm:"index" json:"-"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (order *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return
}

// Terminal reports whether the order is in an absorbing state.
func (order *Order) Terminal() bool {
	switch order.Status {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	}
	return false
}
