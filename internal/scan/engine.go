// Package scan validates and redeems ticket credentials at the venue door.
// The protocol is two-phase: Validate is read-only and repeatable, Confirm
// is the single mutating call and enforces at-most-one redemption with a
// conditional update, so a double-tapped or retried confirm can never
// grant entry twice.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/monitoring"
)

var (
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrPaymentIncomplete = errors.New("ticket payment not completed")
	ErrAlreadyScanned    = errors.New("ticket already scanned")
)

type Engine struct {
	db *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{db: db}
}

// TicketDetail is what the door operator reviews between validate and
// confirm.
type TicketDetail struct {
	OrderID      uuid.UUID       `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
	Status       string          `json:"status"`
	CustomerName string          `json:"customer_name"`
	PhoneNumber  string          `json:"phone_number"`
	Email        string          `json:"email"`
	EventName    string          `json:"event_name"`
	EventDate    time.Time       `json:"event_date"`
	EventTime    string          `json:"event_time"`
	Venue        string          `json:"venue"`
	TicketType   string          `json:"ticket_type"`
	Amount       decimal.Decimal `json:"amount"`
	Scanned      bool            `json:"scanned"`
	ScannedAt    *time.Time      `json:"scanned_at,omitempty"`
	ScannedBy    string          `json:"scanned_by,omitempty"`
}

// Validate parses the presented credential and returns the ticket detail
// without mutating anything. A scanned=true detail is a successful lookup,
// not an error: the operator is shown who redeemed the ticket and when.
func (e *Engine) Validate(ctx context.Context, qrData string) (*TicketDetail, error) {
	credential, err := ParseCredential(qrData)
	if err != nil {
		monitoring.TrackScan("validate", "invalid_credential")
		return nil, err
	}
	if credential.Form != FormCanonical {
		log.Printf("legacy %s credential scanned for order %s", credential.Form, credential.OrderNumber)
	}

	var order models.Order
	err = e.db.WithContext(ctx).
		Preload("User").Preload("Event").Preload("TicketType").
		Where("order_number = ?", credential.OrderNumber).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		monitoring.TrackScan("validate", "not_found")
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}

	detail := detailFromOrder(&order)
	if order.Status != models.OrderStatusCompleted {
		monitoring.TrackScan("validate", "payment_incomplete")
		return detail, ErrPaymentIncomplete
	}
	if order.IsScanned {
		monitoring.TrackScan("validate", "already_scanned")
	} else {
		monitoring.TrackScan("validate", "ok")
	}
	return detail, nil
}

// Confirm marks the order scanned. The precondition on status and
// is_scanned lives in the WHERE clause; an update touching zero rows means
// another scanner won the race (or the state changed since validation) and
// is reported, never silently absorbed.
func (e *Engine) Confirm(ctx context.Context, orderID uuid.UUID, operator string) (*TicketDetail, error) {
	now := time.Now()
	result := e.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND is_scanned = ?", orderID, models.OrderStatusCompleted, false).
		Updates(map[string]interface{}{
			"is_scanned": true,
			"scanned_at": now,
			"scanned_by": operator,
		})
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		var order models.Order
		err := e.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			monitoring.TrackScan("confirm", "not_found")
			return nil, ErrTicketNotFound
		}
		if err != nil {
			return nil, err
		}
		if order.Status != models.OrderStatusCompleted {
			monitoring.TrackScan("confirm", "payment_incomplete")
			return detailFromOrder(&order), ErrPaymentIncomplete
		}
		monitoring.TrackScan("confirm", "already_scanned")
		return detailFromOrder(&order), ErrAlreadyScanned
	}

	var order models.Order
	if err := e.db.WithContext(ctx).
		Preload("User").Preload("Event").Preload("TicketType").
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, fmt.Errorf("reloading confirmed order %s: %w", orderID, err)
	}
	monitoring.TrackScan("confirm", "ok")
	return detailFromOrder(&order), nil
}

func detailFromOrder(order *models.Order) *TicketDetail {
	detail := &TicketDetail{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		Amount:      order.Amount,
		Scanned:     order.IsScanned,
		ScannedAt:   order.ScannedAt,
		ScannedBy:   normalizeScannedBy(order.ScannedBy),
	}
	if order.User != nil {
		detail.CustomerName = order.User.FullName
		detail.PhoneNumber = order.User.PhoneNumber
		detail.Email = order.User.Email
	}
	if order.Event != nil {
		detail.EventName = order.Event.Name
		detail.EventDate = order.Event.Date
		detail.EventTime = order.Event.EventTime
		detail.Venue = order.Event.Venue
	}
	if order.TicketType != nil {
		detail.TicketType = order.TicketType.Name
	}
	return detail
}
