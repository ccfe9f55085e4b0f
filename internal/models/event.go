package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is never hard-deleted once orders reference it; IsActive is the
// soft-delete flag checked by every customer-facing query.
type Event struct {
	ID          uuid.UUID    `gorm:"type:uuid;primary_key" json:"id"`
	Name        string       `gorm:"not null" json:"name"`
	Code        string       `gorm:"unique" json:"code"`
	Date        time.Time    `gorm:"not null" json:"date"`
	EventTime   string       `json:"event_time"`
	Venue       string       `gorm:"not null" json:"venue"`
	Description string       `json:"description"`
	ImageURL    string       `json:"image_url"`
	QRData      string       `json:"qr_data"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	TicketTypes []TicketType `json:"ticket_types,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (event *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return
}
