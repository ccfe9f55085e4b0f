package ordering

import (
	"context"
	"errors"
	"fmt"
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
	"github.com/sutenshah/ultra-events/internal/payment"
	"github.com/sutenshah/ultra-events/internal/whatsapp"
)

type fakeGateway struct {
	createCalls int
	checkCalls  int
	failCreate  bool
	statusPaid  bool
}

func (f *fakeGateway) CreatePaymentRequest(_ context.Context, req payment.Request) (*payment.Handle, error) {
	f.createCalls++
	if f.failCreate {
		return nil, errors.New("connection refused")
	}
	return &payment.Handle{
		ProviderReference: fmt.Sprintf("plink_test_%d", f.createCalls),
		PayURL:            "https://rzp.io/l/test" + req.Reference,
	}, nil
}

func (f *fakeGateway) CheckStatus(_ context.Context, _ string) (*payment.StatusResult, error) {
	f.checkCalls++
	if f.statusPaid {
		return &payment.StatusResult{Paid: true, PaymentID: "pay_test", Status: "paid"}, nil
	}
	return &payment.StatusResult{Paid: false, Status: "created"}, nil
}

type fakeNotifier struct {
	texts  []string
	images []string
}

func (f *fakeNotifier) SendText(_ context.Context, _, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeNotifier) SendImage(_ context.Context, _, imageDataURL, _ string) error {
	f.images = append(f.images, imageDataURL)
	return nil
}

func (f *fakeNotifier) SendButtons(_ context.Context, _, body string, _ []whatsapp.Button) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeNotifier) SendList(_ context.Context, _, body, _ string, _ []whatsapp.ListSection) error {
	f.texts = append(f.texts, body)
	return nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Event{}, &models.TicketType{},
		&models.Order{}, &models.ConversationState{}, &models.Admin{},
	))
	return db
}

func seedInventory(t *testing.T, db *gorm.DB, quantity int) (*models.User, *models.Event, *models.TicketType) {
	t.Helper()
	user := &models.User{FullName: "Asha Rao", PhoneNumber: "919876543210", Email: "asha@example.com"}
	require.NoError(t, db.Create(user).Error)

	event := &models.Event{
		Name:     "Sunburn Arena",
		Code:     "EVT-A1B2C3",
		Date:     time.Now().Add(72 * time.Hour),
		Venue:    "Phoenix Grounds",
		IsActive: true,
	}
	require.NoError(t, db.Create(event).Error)

	tt := &models.TicketType{
		EventID:           event.ID,
		Name:              "General",
		Price:             decimal.NewFromInt(499),
		AvailableQuantity: quantity,
		TotalQuantity:     quantity,
	}
	require.NoError(t, db.Create(tt).Error)
	return user, event, tt
}

func TestCreateOrder(t *testing.T) {
	db := openTestDB(t)
	gateway := &fakeGateway{}
	mgr := NewManager(db, gateway, nil)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.Amount.Equal(decimal.NewFromInt(499)))
	assert.Contains(t, order.ProviderReference, "plink_")
	assert.NotEmpty(t, order.PayURL)
	assert.Regexp(t, `^UE\d+$`, order.OrderNumber)

	// Inventory is only consumed on payment, not on order creation.
	var reloaded models.TicketType
	require.NoError(t, db.First(&reloaded, "id = ?", tt.ID).Error)
	assert.Equal(t, 5, reloaded.AvailableQuantity)
}

func TestCreateOrderSessionTokenIdempotent(t *testing.T) {
	db := openTestDB(t)
	gateway := &fakeGateway{}
	mgr := NewManager(db, gateway, nil)
	user, event, tt := seedInventory(t, db, 5)

	params := CreateParams{
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
		SessionToken: "tok-abc123",
	}
	first, err := mgr.Create(context.Background(), params)
	require.NoError(t, err)
	second, err := mgr.Create(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PayURL, second.PayURL)
	assert.Equal(t, 1, gateway.createCalls)

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCreateOrderSoldOut(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, &fakeGateway{}, nil)
	user, event, tt := seedInventory(t, db, 0)

	_, err := mgr.Create(context.Background(), CreateParams{
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
	})
	assert.ErrorIs(t, err, ErrInventoryExhausted)
}

func TestCreateOrderGatewayFailureLeavesNoRow(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, &fakeGateway{failCreate: true}, nil)
	user, event, tt := seedInventory(t, db, 5)

	_, err := mgr.Create(context.Background(), CreateParams{
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: tt.ID,
	})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	var count int64
	db.Model(&models.Order{}).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestCreateOrderUnknownTicketType(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, &fakeGateway{}, nil)
	user, event, _ := seedInventory(t, db, 5)

	_, err := mgr.Create(context.Background(), CreateParams{
		UserID:       user.ID,
		EventID:      event.ID,
		TicketTypeID: uuid.New(),
	})
	assert.ErrorIs(t, err, ErrTicketTypeNotFound)
}

func TestApplyPaymentSuccess(t *testing.T) {
	db := openTestDB(t)
	notifier := &fakeNotifier{}
	mgr := NewManager(db, &fakeGateway{}, notifier)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID: user.ID, EventID: event.ID, TicketTypeID: tt.ID,
	})
	require.NoError(t, err)

	require.NoError(t, mgr.ApplyPaymentSuccess(context.Background(), order.ID, "pay_xyz"))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCompleted, reloaded.Status)
	assert.Equal(t, "pay_xyz", reloaded.ProviderPaymentID)
	assert.Contains(t, reloaded.QRPayload, reloaded.OrderNumber)
	assert.Contains(t, reloaded.QRImage, "data:image/png;base64,")

	var inv models.TicketType
	require.NoError(t, db.First(&inv, "id = ?", tt.ID).Error)
	assert.Equal(t, 4, inv.AvailableQuantity)

	require.Len(t, notifier.texts, 1)
	assert.Contains(t, notifier.texts[0], reloaded.OrderNumber)
	assert.Contains(t, notifier.texts[0], "Sunburn Arena")
	require.Len(t, notifier.images, 1)
}

func TestApplyPaymentSuccessIdempotent(t *testing.T) {
	db := openTestDB(t)
	notifier := &fakeNotifier{}
	mgr := NewManager(db, &fakeGateway{}, notifier)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID: user.ID, EventID: event.ID, TicketTypeID: tt.ID,
	})
	require.NoError(t, err)

	// Webhook, callback and reconciliation may all report the same
	// payment; only the first application takes effect.
	require.NoError(t, mgr.ApplyPaymentSuccess(context.Background(), order.ID, "pay_1"))
	require.NoError(t, mgr.ApplyPaymentSuccess(context.Background(), order.ID, "pay_2"))
	require.NoError(t, mgr.ApplyPaymentSuccess(context.Background(), order.ID, "pay_3"))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, "pay_1", reloaded.ProviderPaymentID)

	var inv models.TicketType
	require.NoError(t, db.First(&inv, "id = ?", tt.ID).Error)
	assert.Equal(t, 4, inv.AvailableQuantity)

	assert.Len(t, notifier.texts, 1)
	assert.Len(t, notifier.images, 1)
}

func TestApplyPaymentSuccessByReference(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, &fakeGateway{}, nil)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID: user.ID, EventID: event.ID, TicketTypeID: tt.ID,
	})
	require.NoError(t, err)

	require.NoError(t, mgr.ApplyPaymentSuccessByReference(context.Background(), order.ProviderReference, "pay_ref"))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCompleted, reloaded.Status)

	err = mgr.ApplyPaymentSuccessByReference(context.Background(), "plink_unknown", "pay_ref")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestApplyPaymentSuccessOnFailedOrder(t *testing.T) {
	db := openTestDB(t)
	notifier := &fakeNotifier{}
	mgr := NewManager(db, &fakeGateway{}, notifier)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID: user.ID, EventID: event.ID, TicketTypeID: tt.ID,
	})
	require.NoError(t, err)

	marked, err := mgr.MarkFailed(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, marked)

	// A success signal arriving after the order failed is dropped.
	require.NoError(t, mgr.ApplyPaymentSuccess(context.Background(), order.ID, "pay_late"))

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusFailed, reloaded.Status)
	assert.Empty(t, reloaded.QRPayload)
	assert.Empty(t, notifier.texts)
}

func TestMarkFailedOnlyFromPending(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, &fakeGateway{}, nil)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID: user.ID, EventID: event.ID, TicketTypeID: tt.ID,
	})
	require.NoError(t, err)
	require.NoError(t, mgr.ApplyPaymentSuccess(context.Background(), order.ID, "pay_1"))

	marked, err := mgr.MarkFailed(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, marked)

	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, "id = ?", order.ID).Error)
	assert.Equal(t, models.OrderStatusCompleted, reloaded.Status)
}

func TestGetByOrderNumber(t *testing.T) {
	db := openTestDB(t)
	mgr := NewManager(db, &fakeGateway{}, nil)
	user, event, tt := seedInventory(t, db, 5)

	order, err := mgr.Create(context.Background(), CreateParams{
		UserID: user.ID, EventID: event.ID, TicketTypeID: tt.ID,
	})
	require.NoError(t, err)

	got, err := mgr.GetByOrderNumber(context.Background(), order.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	require.NotNil(t, got.Event)
	assert.Equal(t, "Sunburn Arena", got.Event.Name)

	_, err = mgr.GetByOrderNumber(context.Background(), "UE0000000000000000")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
