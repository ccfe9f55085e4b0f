package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sutenshah/ultra-events/internal/cache"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/ordering"
	"github.com/sutenshah/ultra-events/internal/payment"
)

type scriptedGateway struct {
	checks int
	paid   bool
	status string
	err    error
}

func (s *scriptedGateway) CreatePaymentRequest(_ context.Context, _ payment.Request) (*payment.Handle, error) {
	return nil, errors.New("not used")
}

func (s *scriptedGateway) CheckStatus(_ context.Context, _ string) (*payment.StatusResult, error) {
	s.checks++
	if s.err != nil {
		return nil, s.err
	}
	return &payment.StatusResult{Paid: s.paid, PaymentID: "pay_poll", Status: s.status}, nil
}

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

func seedPendingOrder(t *testing.T, db *gorm.DB, age time.Duration) *models.Order {
	t.Helper()
	user := &models.User{FullName: "Meera Iyer", PhoneNumber: "919811122233", Email: "meera@example.com"}
	require.NoError(t, db.Create(user).Error)
	event := &models.Event{
		Name: "Jazz Evening", Code: "EVT-4B8A17",
		Date: time.Now().Add(120 * time.Hour), Venue: "Amphitheatre", IsActive: true,
	}
	require.NoError(t, db.Create(event).Error)
	tt := &models.TicketType{
		EventID: event.ID, Name: "Standard",
		Price: decimal.NewFromInt(650), AvailableQuantity: 8, TotalQuantity: 8,
	}
	require.NoError(t, db.Create(tt).Error)

	order := &models.Order{
		OrderNumber:       "UE1714650000000321",
		UserID:            user.ID,
		EventID:           event.ID,
		TicketTypeID:      tt.ID,
		Amount:            tt.Price,
		Status:            models.OrderStatusPending,
		ProviderReference: "plink_sweep_1",
	}
	require.NoError(t, db.Create(order).Error)
	require.NoError(t, db.Model(order).UpdateColumn("created_at", time.Now().Add(-age)).Error)
	return order
}

func TestSweepAppliesPaidOrder(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{paid: true, status: "paid"}
	orders := ordering.NewManager(db, gateway, nil)
	loop := NewLoop(db, gateway, orders, cache.NewMemory())
	order := seedPendingOrder(t, db, 5*time.Minute)

	require.NoError(t, loop.RunSweep(context.Background()))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCompleted, reloaded.Status)
	assert.Equal(t, "pay_poll", reloaded.ProviderPaymentID)
	assert.Equal(t, 1, gateway.checks)
}

func TestSweepFailsOrderAfterMaxAttempts(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{paid: false, status: "created"}
	orders := ordering.NewManager(db, gateway, nil)
	store := cache.NewMemory()
	loop := NewLoop(db, gateway, orders, store)
	order := seedPendingOrder(t, db, 5*time.Minute)

	for i := 0; i < maxAttempts; i++ {
		require.NoError(t, loop.RunSweep(context.Background()))
	}

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusFailed, reloaded.Status)
	assert.Equal(t, maxAttempts, gateway.checks)

	// A failed order leaves the sweep entirely.
	require.NoError(t, loop.RunSweep(context.Background()))
	assert.Equal(t, maxAttempts, gateway.checks)

	_, found, err := store.Get(context.Background(), attemptKeyPrefix+order.ID.String())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSweepFailsOrderOnTerminalProviderStatus(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{paid: false, status: "expired"}
	orders := ordering.NewManager(db, gateway, nil)
	loop := NewLoop(db, gateway, orders, cache.NewMemory())
	order := seedPendingOrder(t, db, 5*time.Minute)

	require.NoError(t, loop.RunSweep(context.Background()))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusFailed, reloaded.Status)
}

func TestSweepSkipsFreshOrders(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{paid: true, status: "paid"}
	orders := ordering.NewManager(db, gateway, nil)
	loop := NewLoop(db, gateway, orders, cache.NewMemory())
	seedPendingOrder(t, db, 10*time.Second)

	require.NoError(t, loop.RunSweep(context.Background()))
	assert.Equal(t, 0, gateway.checks)
}

func TestSweepSkipsOrdersPastHorizon(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{paid: true, status: "paid"}
	orders := ordering.NewManager(db, gateway, nil)
	loop := NewLoop(db, gateway, orders, cache.NewMemory())
	order := seedPendingOrder(t, db, 25*time.Hour)

	require.NoError(t, loop.RunSweep(context.Background()))
	assert.Equal(t, 0, gateway.checks)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, reloaded.Status)
}

func TestSweepSkipsNonPaymentLinkReferences(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{paid: true, status: "paid"}
	orders := ordering.NewManager(db, gateway, nil)
	loop := NewLoop(db, gateway, orders, cache.NewMemory())
	order := seedPendingOrder(t, db, 5*time.Minute)
	require.NoError(t, db.Model(order).Update("provider_reference", "manual_1").Error)

	require.NoError(t, loop.RunSweep(context.Background()))
	assert.Equal(t, 0, gateway.checks)
}

func TestSweepToleratesProviderErrors(t *testing.T) {
	db := openTestDB(t)
	gateway := &scriptedGateway{err: errors.New("gateway timeout")}
	orders := ordering.NewManager(db, gateway, nil)
	loop := NewLoop(db, gateway, orders, cache.NewMemory())
	order := seedPendingOrder(t, db, 5*time.Minute)

	require.NoError(t, loop.RunSweep(context.Background()))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusPending, reloaded.Status)
}
