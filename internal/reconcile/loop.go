// Package reconcile polls the payment provider for orders stuck in
// pending. Webhooks and redirect callbacks are the fast paths; this loop
// is the safety net that catches payments whose signals never arrived,
// and the only component that moves an order to failed.
package reconcile

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/sutenshah/ultra-events/internal/cache"
	"github.com/sutenshah/ultra-events/internal/models"
	"github.com/sutenshah/ultra-events/internal/monitoring"
	"github.com/sutenshah/ultra-events/internal/ordering"
	"github.com/sutenshah/ultra-events/internal/payment"
)

const (
	defaultInterval = time.Minute
	// minAge keeps the loop off orders the customer is still paying for.
	minAge  = time.Minute
	horizon = 24 * time.Hour
	// maxAttempts bounds provider polling per order; after the last
	// not-paid answer the order is marked failed and leaves the sweep.
	maxAttempts = 10

	attemptKeyPrefix = "reconcile:attempts:"
	attemptTTL       = 48 * time.Hour
)

type Loop struct {
	db       *gorm.DB
	gateway  payment.Gateway
	orders   *ordering.Manager
	attempts cache.Store
	interval time.Duration
}

func NewLoop(db *gorm.DB, gateway payment.Gateway, orders *ordering.Manager, attempts cache.Store) *Loop {
	return &Loop{
		db:       db,
		gateway:  gateway,
		orders:   orders,
		attempts: attempts,
		interval: defaultInterval,
	}
}

// Start runs the sweep on a ticker until the context is cancelled.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log.Printf("reconcile: loop started, interval %s", l.interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("reconcile: loop stopped")
			return
		case <-ticker.C:
			if err := l.RunSweep(ctx); err != nil {
				log.Printf("reconcile: sweep: %v", err)
			}
		}
	}
}

// RunSweep checks every eligible pending order once. Eligible means
// pending, older than a minute, younger than the 24h payment-link expiry,
// and created through a payment link.
func (l *Loop) RunSweep(ctx context.Context) error {
	now := time.Now()
	var orders []models.Order
	err := l.db.WithContext(ctx).
		Where("status = ?", models.OrderStatusPending).
		Where("provider_reference LIKE ?", "plink_%").
		Where("created_at <= ?", now.Add(-minAge)).
		Where("created_at >= ?", now.Add(-horizon)).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return err
	}

	for _, order := range orders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.checkOrder(ctx, &order)
	}
	return nil
}

func (l *Loop) checkOrder(ctx context.Context, order *models.Order) {
	monitoring.TrackReconcileCheck()
	key := attemptKeyPrefix + order.ID.String()

	count, err := l.attempts.Increment(ctx, key, attemptTTL)
	if err != nil {
		log.Printf("reconcile: attempt counter for %s: %v", order.OrderNumber, err)
		count = 1
	}

	result, err := l.gateway.CheckStatus(ctx, order.ProviderReference)
	if err != nil {
		log.Printf("reconcile: check %s (attempt %d): %v", order.OrderNumber, count, err)
		if count >= maxAttempts {
			l.giveUp(ctx, order, key)
		}
		return
	}

	if result.Paid {
		if err := l.orders.ApplyPaymentSuccess(ctx, order.ID, result.PaymentID); err != nil {
			if !errors.Is(err, ordering.ErrOrderNotFound) {
				log.Printf("reconcile: apply success for %s: %v", order.OrderNumber, err)
				return
			}
		}
		monitoring.TrackPaymentSignal("reconcile")
		if err := l.attempts.Delete(ctx, key); err != nil {
			log.Printf("reconcile: clear counter for %s: %v", order.OrderNumber, err)
		}
		log.Printf("reconcile: order %s confirmed paid via poll", order.OrderNumber)
		return
	}

	if isTerminalStatus(result.Status) || count >= maxAttempts {
		l.giveUp(ctx, order, key)
		return
	}
	log.Printf("reconcile: order %s still %s (attempt %d/%d)",
		order.OrderNumber, result.Status, count, maxAttempts)
}

func (l *Loop) giveUp(ctx context.Context, order *models.Order, key string) {
	marked, err := l.orders.MarkFailed(ctx, order.ID)
	if err != nil {
		log.Printf("reconcile: mark failed %s: %v", order.OrderNumber, err)
		return
	}
	if marked {
		log.Printf("reconcile: order %s marked failed after exhausting checks", order.OrderNumber)
	}
	if err := l.attempts.Delete(ctx, key); err != nil {
		log.Printf("reconcile: clear counter for %s: %v", order.OrderNumber, err)
	}
}

// isTerminalStatus reports provider states that will never become paid.
func isTerminalStatus(status string) bool {
	switch strings.ToLower(status) {
	case "expired", "cancelled":
		return true
	}
	return false
}
