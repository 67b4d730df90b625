package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/inventory"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	"github.com/craftline/storefront-backend/pkg/logger"
)

const expiryBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiryNotifier interface {
	NotifyOrderCancelled(ctx context.Context, order *models.Order, refundIssued bool)
}

// PaymentExpiryJobParams configure the unpaid order sweeper.
type PaymentExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Orders    orders.Repository
	Inventory inventory.Manager
	Notifier  expiryNotifier
	TTL       time.Duration
}

// NewPaymentExpiryJob builds the cron job that cancels online orders
// whose payment never arrived, releasing their stock holds.
func NewPaymentExpiryJob(params PaymentExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory manager required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &paymentExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		orders:    params.Orders,
		inventory: params.Inventory,
		notifier:  params.Notifier,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

type paymentExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	orders    orders.Repository
	inventory inventory.Manager
	notifier  expiryNotifier
	ttl       time.Duration
	now       func() time.Time
}

func (j *paymentExpiryJob) Name() string { return "payment-expiry" }

func (j *paymentExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.FindUnpaidOnlineBefore(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var errs []error
	expired := 0
	for i := range stale {
		order := &stale[i]
		ok, err := j.expireOrder(ctx, order)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		if ok {
			expired++
			if j.notifier != nil {
				j.notifier.NotifyOrderCancelled(ctx, order, false)
			}
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"candidates": len(stale), "expired": expired})
	j.logg.Info(logCtx, "payment expiry sweep complete")
	return multierr.Combine(errs...)
}

// expireOrder releases the hold and cancels one order. The conditional
// status flips mean a payment verified mid-sweep wins and the order is
// left alone.
func (j *paymentExpiryJob) expireOrder(ctx context.Context, order *models.Order) (bool, error) {
	expired := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.orders.WithTx(tx)

		failed, err := repo.MarkPaymentFailed(ctx, order.ID)
		if err != nil {
			return err
		}
		if !failed {
			// Paid while the sweep was scanning.
			return nil
		}

		if err := j.inventory.Release(ctx, tx, order.ID); err != nil {
			return err
		}

		changed, err := repo.UpdateWhereStatus(ctx, order.ID, enums.FulfillmentStatusUnfulfilled, map[string]any{
			"fulfillment_status": enums.FulfillmentStatusCancelled,
			"cancelled_at":       j.now().UTC(),
		})
		if err != nil {
			return err
		}
		expired = changed
		return nil
	})
	return expired, err
}
