package scan

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sutenshah/ultra-events/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Event{}, &models.TicketType{}, &models.Order{},
	))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status string) *models.Order {
	t.Helper()
	user := &models.User{FullName: "Ravi Kumar", PhoneNumber: "919812345678", Email: "ravi@example.com"}
	require.NoError(t, db.Create(user).Error)
	event := &models.Event{
		Name:      "Indie Night",
		Code:      "EVT-9F3C21",
		Date:      time.Now().Add(48 * time.Hour),
		EventTime: "8:00 PM",
		Venue:     "Blue Note Hall",
		IsActive:  true,
	}
	require.NoError(t, db.Create(event).Error)
	tt := &models.TicketType{
		EventID:           event.ID,
		Name:              "VIP",
		Price:             decimal.NewFromInt(1500),
		AvailableQuantity: 10,
		TotalQuantity:     10,
	}
	require.NoError(t, db.Create(tt).Error)

	order := &models.Order{
		OrderNumber:  "UE1714651234567123",
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		Amount:       tt.Price,
		Status:       status,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func canonicalQR(order *models.Order) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"orderNumber": order.OrderNumber,
		"orderId":     order.ID.String(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
	return string(raw)
}

func TestValidateCompletedTicket(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusCompleted)

	detail, err := engine.Validate(context.Background(), canonicalQR(order))
	require.NoError(t, err)

	assert.Equal(t, order.ID, detail.OrderID)
	assert.Equal(t, "Ravi Kumar", detail.CustomerName)
	assert.Equal(t, "Indie Night", detail.EventName)
	assert.Equal(t, "VIP", detail.TicketType)
	assert.False(t, detail.Scanned)

	// Validation never mutates.
	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.False(t, reloaded.IsScanned)
}

func TestValidateLegacyBareCredential(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusCompleted)

	detail, err := engine.Validate(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, detail.OrderID)
}

func TestValidatePendingTicket(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusPending)

	detail, err := engine.Validate(context.Background(), canonicalQR(order))
	assert.ErrorIs(t, err, ErrPaymentIncomplete)
	require.NotNil(t, detail)
	assert.Equal(t, models.OrderStatusPending, detail.Status)
}

func TestValidateUnknownTicket(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)

	_, err := engine.Validate(context.Background(), "UE9999999999999999")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestConfirmOnce(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusCompleted)

	detail, err := engine.Confirm(context.Background(), order.ID, "gate1")
	require.NoError(t, err)
	assert.True(t, detail.Scanned)
	assert.Equal(t, "gate1", detail.ScannedBy)
	require.NotNil(t, detail.ScannedAt)

	// Second confirm loses the conditional update and reports the first
	// redemption instead of granting entry again.
	detail, err = engine.Confirm(context.Background(), order.ID, "gate2")
	assert.ErrorIs(t, err, ErrAlreadyScanned)
	require.NotNil(t, detail)
	assert.Equal(t, "gate1", detail.ScannedBy)
}

func TestConfirmPendingTicket(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusPending)

	_, err := engine.Confirm(context.Background(), order.ID, "gate1")
	assert.ErrorIs(t, err, ErrPaymentIncomplete)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.False(t, reloaded.IsScanned)
}

func TestConfirmUnknownTicket(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)

	_, err := engine.Confirm(context.Background(), uuid.New(), "gate1")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestValidateAlreadyScannedShowsOperator(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusCompleted)

	_, err := engine.Confirm(context.Background(), order.ID, "gate1")
	require.NoError(t, err)

	detail, err := engine.Validate(context.Background(), canonicalQR(order))
	require.NoError(t, err)
	assert.True(t, detail.Scanned)
	assert.Equal(t, "gate1", detail.ScannedBy)
}

func TestValidateLegacyScannedByArray(t *testing.T) {
	db := openTestDB(t)
	engine := NewEngine(db)
	order := seedOrder(t, db, models.OrderStatusCompleted)

	require.NoError(t, db.Model(order).Updates(map[string]interface{}{
		"is_scanned": true,
		"scanned_by": `["gate1","gate4"]`,
	}).Error)

	detail, err := engine.Validate(context.Background(), canonicalQR(order))
	require.NoError(t, err)
	assert.Equal(t, "gate4", detail.ScannedBy)
}
