// Package ordering owns the order lifecycle: creation against bounded
// inventory, the idempotent pending->completed transition, and terminal
// demotion. All mutation goes through conditional updates so any number of
// concurrent success signals converge on a single effective transition.
package ordering

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/helpers"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/monitoring"
	"github.com/sutenshah/ultra-events/internal/payment"
	"github.com/sutenshah/ultra-events/internal/whatsapp"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrTicketTypeNotFound = errors.New("ticket type not found")
	ErrInventoryExhausted = errors.New("tickets sold out")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

type Manager struct {
	db       *gorm.DB
	gateway  payment.Gateway
	notifier whatsapp.Notifier
}

// NewManager wires the lifecycle manager. notifier may be nil; payment
// confirmations are then skipped entirely.
func NewManager(db *gorm.DB, gateway payment.Gateway, notifier whatsapp.Notifier) *Manager {
	return &Manager{db: db, gateway: gateway, notifier: notifier}
}

type CreateParams struct {
	UserID       uuid.UUID
	EventID      uuid.UUID
	TicketTypeID uuid.UUID
	// SessionToken keys idempotent creation: a retried request carrying
	// the same token returns the order already opened for it instead of
	// buying a second payment link.
	SessionToken string
}

func (m *Manager) Create(ctx context.Context, params CreateParams) (*models.Order, error) {
	var ticketType models.TicketType
	err := m.db.WithContext(ctx).Preload("Event").First(&ticketType, "id = ?", params.TicketTypeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, err
	}
	if ticketType.AvailableQuantity <= 0 {
		return nil, ErrInventoryExhausted
	}

	if params.SessionToken != "" {
		var existing models.Order
		err := m.db.WithContext(ctx).
			Where("user_id = ? AND ticket_type_id = ? AND session_token = ? AND status = ?",
				params.UserID, params.TicketTypeID, params.SessionToken, models.OrderStatusPending).
			First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var user models.User
	if err := m.db.WithContext(ctx).First(&user, "id = ?", params.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user %s: %w", params.UserID, gorm.ErrRecordNotFound)
		}
		return nil, err
	}

	orderNumber := helpers.GenerateOrderNumber()

	eventName := ""
	if ticketType.Event != nil {
		eventName = ticketType.Event.Name
	}

	// The gateway call happens before the insert: a gateway failure must
	// not leave a pending row with no usable provider reference behind.
	handle, err := m.gateway.CreatePaymentRequest(ctx, payment.Request{
		Amount:      ticketType.Price,
		Currency:    "INR",
		Reference:   orderNumber,
		Description: fmt.Sprintf("Event Ticket Purchase - Order %s", orderNumber),
		Customer: payment.Customer{
			Name:    user.FullName,
			Email:   user.Email,
			Contact: "+" + user.PhoneNumber,
		},
		Notes: map[string]string{
			"order_number":   orderNumber,
			"user_id":        user.ID.String(),
			"event_id":       params.EventID.String(),
			"ticket_type_id": params.TicketTypeID.String(),
			"event_name":     eventName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	order := models.Order{
		OrderNumber:       orderNumber,
		UserID:            params.UserID,
		EventID:           params.EventID,
		TicketTypeID:      params.TicketTypeID,
		Amount:            ticketType.Price,
		Status:            models.OrderStatusPending,
		ProviderReference: handle.ProviderReference,
		PayURL:            handle.PayURL,
		SessionToken:      params.SessionToken,
	}
	if err := m.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}

	monitoring.TrackOrderCreated()
	return &order, nil
}

// ApplyPaymentSuccess is the single entry point for every success signal
// (webhook, callback, verify, reconciliation poll). It is idempotent: only
// the caller whose conditional update moves the row out of pending issues
// the QR, decrements inventory, and notifies the customer.
func (m *Manager) ApplyPaymentSuccess(ctx context.Context, orderID uuid.UUID, paymentID string) error {
	var order models.Order
	err := m.db.WithContext(ctx).First(&order, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusCompleted {
		return nil
	}
	if order.Terminal() {
		// failed/cancelled are absorbing; a late success signal is logged
		// and dropped rather than resurrecting the order.
		log.Printf("payment signal for terminal order %s (status %s), ignoring", order.OrderNumber, order.Status)
		return nil
	}

	payload, image, err := BuildCredential(order.ID, order.OrderNumber, time.Now())
	if err != nil {
		return fmt.Errorf("building credential for %s: %w", order.OrderNumber, err)
	}

	// The conditional write is the commit point. Losing the race means
	// another signal already completed the order.
	result := m.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]interface{}{
			"status":              models.OrderStatusCompleted,
			"provider_payment_id": paymentID,
			"qr_payload":          payload,
			"qr_image":            image,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var current models.Order
		if err := m.db.WithContext(ctx).First(&current, "id = ?", order.ID).Error; err != nil {
			return err
		}
		if current.Status == models.OrderStatusCompleted {
			return nil
		}
		return fmt.Errorf("order %s moved to %s while applying payment", order.OrderNumber, current.Status)
	}

	decrement := m.db.WithContext(ctx).Model(&models.TicketType{}).
		Where("id = ? AND available_quantity > 0", order.TicketTypeID).
		UpdateColumn("available_quantity", gorm.Expr("available_quantity - 1"))
	if decrement.Error != nil {
		return decrement.Error
	}
	if decrement.RowsAffected == 0 {
		log.Printf("inventory already at zero for ticket type %s (order %s)", order.TicketTypeID, order.OrderNumber)
	}

	monitoring.TrackOrderCompleted()
	m.sendConfirmation(ctx, order.ID, image)
	return nil
}

// ApplyPaymentSuccessByReference resolves the provider correlation id used
// by webhook and callback payloads before applying the transition.
func (m *Manager) ApplyPaymentSuccessByReference(ctx context.Context, providerReference, paymentID string) error {
	var order models.Order
	err := m.db.WithContext(ctx).
		Where("provider_reference = ?", providerReference).
		Order("created_at DESC").
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	return m.ApplyPaymentSuccess(ctx, order.ID, paymentID)
}

// MarkFailed demotes a pending order to failed. Returns false when the
// order already left pending, in which case nothing was written.
func (m *Manager) MarkFailed(ctx context.Context, orderID uuid.UUID) (bool, error) {
	result := m.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Update("status", models.OrderStatusFailed)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		monitoring.TrackOrderFailed()
	}
	return result.RowsAffected > 0, nil
}

// GetByOrderNumber loads an order with its customer, event and ticket type.
func (m *Manager) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := m.db.WithContext(ctx).
		Preload("User").Preload("Event").Preload("TicketType").
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (m *Manager) sendConfirmation(ctx context.Context, orderID uuid.UUID, image string) {
	if m.notifier == nil {
		return
	}

	var order models.Order
	err := m.db.WithContext(ctx).
		Preload("User").Preload("Event").Preload("TicketType").
		First(&order, "id = ?", orderID).Error
	if err != nil {
		log.Printf("loading order %s for confirmation: %v", orderID, err)
		return
	}
	if order.User == nil || order.Event == nil || order.TicketType == nil {
		log.Printf("order %s missing relations, skipping confirmation", order.OrderNumber)
		return
	}

	message := fmt.Sprintf(
		"🎉 *Payment Successful!*\n\n"+
			"✅ Your ticket has been confirmed!\n\n"+
			"📦 *Order Details:*\n"+
			"Order Number: %s\n"+
			"Event: %s\n"+
			"Ticket: %s\n"+
			"Date: %s\n"+
			"%s"+
			"Venue: %s\n\n"+
			"🎫 *Your QR Code:*\n"+
			"Show this QR code at the venue for entry.\n\n"+
			"Thank you for choosing Ultra Events! 🎊",
		order.OrderNumber,
		order.Event.Name,
		order.TicketType.Name,
		order.Event.Date.Format("2 Jan 2006"),
		timeLine(order.Event.EventTime),
		order.Event.Venue,
	)

	if err := m.notifier.SendText(ctx, order.User.PhoneNumber, message); err != nil {
		log.Printf("sending payment confirmation for %s: %v", order.OrderNumber, err)
		return
	}
	if err := m.notifier.SendImage(ctx, order.User.PhoneNumber, image, "Your Event Ticket QR Code"); err != nil {
		log.Printf("sending QR image for %s: %v", order.OrderNumber, err)
	}
}

func timeLine(eventTime string) string {
	if eventTime == "" {
		return ""
	}
	return fmt.Sprintf("Time: %s\n", eventTime)
}
