package cancellation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/inventory"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/internal/payments"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type refunder interface {
	Refund(ctx context.Context, input payments.RefundInput) (*models.Refund, error)
}

type cancelNotifier interface {
	NotifyOrderCancelled(ctx context.Context, order *models.Order, refundIssued bool)
}

// Result reports what a cancellation actually did. Warnings carries
// non-fatal step failures, such as a gateway refund that needs a manual
// retry; the order is cancelled either way.
type Result struct {
	Order        *models.Order
	RefundIssued bool
	Warnings     error
}

// Orchestrator runs the cancellation sequence: refund the captured
// payment, return reserved or committed stock, and move the order to
// cancelled. Only the final status flip is fatal; everything before it
// degrades to a warning so a flaky gateway cannot strand an order.
type Orchestrator struct {
	tx        txRunner
	repo      orders.Repository
	inventory inventory.Manager
	refunds   refunder
	notifier  cancelNotifier
	log       *logger.Logger
}

// NewOrchestrator wires order cancellation. The refund service and
// notifier are optional.
func NewOrchestrator(
	tx txRunner,
	repo orders.Repository,
	inventoryManager inventory.Manager,
	refunds refunder,
	notifier cancelNotifier,
	log *logger.Logger,
) (*Orchestrator, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inventoryManager == nil {
		return nil, fmt.Errorf("inventory manager required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Orchestrator{
		tx:        tx,
		repo:      repo,
		inventory: inventoryManager,
		refunds:   refunds,
		notifier:  notifier,
		log:       log,
	}, nil
}

// cancellable lists the fulfillment statuses an order may be cancelled
// from. Once a parcel is with the carrier the path is a return, not a
// cancellation.
var cancellable = map[enums.FulfillmentStatus]struct{}{
	enums.FulfillmentStatusUnfulfilled: {},
	enums.FulfillmentStatusProcessing:  {},
	enums.FulfillmentStatusPacked:      {},
}

// Cancel cancels the order, refunding and restocking as needed.
func (o *Orchestrator) Cancel(ctx context.Context, orderID uuid.UUID, reason *string) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	ctx = o.log.WithOrderID(ctx, orderID.String())

	order, err := o.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if _, ok := cancellable[order.FulfillmentStatus]; !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order cannot be cancelled while %s", order.FulfillmentStatus)).
			WithDetails(map[string]any{"current": order.FulfillmentStatus.String()})
	}

	var warnings error
	refundIssued := false
	if order.PaymentStatus == enums.PaymentStatusPaid {
		refundIssued, err = o.refundCaptured(ctx, order, reason)
		if err != nil {
			warnings = multierr.Append(warnings, err)
		}
	}

	err = o.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := o.inventory.Release(ctx, tx, order.ID); err != nil {
			return err
		}
		if err := o.inventory.RestoreCommitted(ctx, tx, order.ID); err != nil {
			return err
		}

		changed, err := o.repo.WithTx(tx).UpdateWhereStatus(ctx, order.ID, order.FulfillmentStatus, map[string]any{
			"fulfillment_status": enums.FulfillmentStatusCancelled,
			"cancelled_at":       time.Now().UTC(),
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	cancelled, err := o.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}

	ctx = o.log.WithField(ctx, "refund_issued", refundIssued)
	o.log.Info(ctx, "order cancelled")
	if warnings != nil {
		o.log.Warn(o.log.WithField(ctx, "warnings", warnings.Error()),
			"order cancelled with incomplete cleanup")
	}

	if o.notifier != nil {
		o.notifier.NotifyOrderCancelled(ctx, cancelled, refundIssued)
	}

	return &Result{Order: cancelled, RefundIssued: refundIssued, Warnings: warnings}, nil
}

// refundCaptured issues a full refund for the captured payment. A
// failure is reported as a warning; the cancellation proceeds and the
// refund is retried manually.
func (o *Orchestrator) refundCaptured(ctx context.Context, order *models.Order, reason *string) (bool, error) {
	if order.RemotePaymentID == nil {
		return false, fmt.Errorf("payment captured without gateway payment id; manual refund required")
	}
	if o.refunds == nil {
		return false, fmt.Errorf("no refund service configured; manual refund required")
	}

	_, err := o.refunds.Refund(ctx, payments.RefundInput{OrderID: order.ID, Reason: reason})
	if err != nil {
		return false, fmt.Errorf("refund failed, retry manually: %w", err)
	}
	return true, nil
}
