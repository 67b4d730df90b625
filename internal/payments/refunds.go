package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

// RefundInput describes a requested refund. A zero amount refunds the
// remaining balance.
type RefundInput struct {
	OrderID     uuid.UUID
	AmountCents int
	Reason      *string
}

// RefundService issues partial and full refunds against captured payments.
// The cumulative non-failed amount for an order never exceeds its total.
type RefundService interface {
	Refund(ctx context.Context, input RefundInput) (*models.Refund, error)
}

type refundService struct {
	tx         txRunner
	ordersRepo orders.Repository
	gateway    Gateway
	stores     storeLoader
	resolver   *CredentialResolver
	log        *logger.Logger
}

// NewRefundService wires refund processing.
func NewRefundService(
	tx txRunner,
	ordersRepo orders.Repository,
	gateway Gateway,
	stores storeLoader,
	resolver *CredentialResolver,
	log *logger.Logger,
) (RefundService, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store loader required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("credential resolver required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &refundService{
		tx:         tx,
		ordersRepo: ordersRepo,
		gateway:    gateway,
		stores:     stores,
		resolver:   resolver,
		log:        log,
	}, nil
}

// refundedCents sums the order's refunds that did not fail.
func refundedCents(order *models.Order) int {
	total := 0
	for _, refund := range order.Refunds {
		if refund.Status != enums.RefundStatusFailed {
			total += refund.AmountCents
		}
	}
	return total
}

func (s *refundService) Refund(ctx context.Context, input RefundInput) (*models.Refund, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AmountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount cannot be negative")
	}

	order, err := s.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s, cannot refund", order.PaymentStatus))
	}
	if order.RemotePaymentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order has no captured payment to refund")
	}

	already := refundedCents(order)
	remaining := order.TotalCents - already
	amount := input.AmountCents
	if amount == 0 {
		amount = remaining
	}
	if amount <= 0 || amount > remaining {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("refund amount must be between 1 and %d", remaining)).
			WithDetails(map[string]any{
				"order_total_cents":      order.TotalCents,
				"already_refunded_cents": already,
			})
	}

	now := time.Now().UTC()
	refund := &models.Refund{
		ID:          uuid.New(),
		OrderID:     order.ID,
		AmountCents: amount,
		Reason:      input.Reason,
		Status:      enums.RefundStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	// The cap is re-checked inside the insert itself: two refunds racing
	// on the same order cannot both pass a read-then-write check, so the
	// sum condition and the row land in one statement.
	var recorded bool
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.WithContext(ctx).Exec(
			`INSERT INTO refunds (id, order_id, amount_cents, reason, status, created_at, updated_at)
			 SELECT ?, ?, ?, ?, ?, ?, ?
			 WHERE (SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE order_id = ? AND status <> ?) + ? <= ?`,
			refund.ID, refund.OrderID, refund.AmountCents, refund.Reason, refund.Status, refund.CreatedAt, refund.UpdatedAt,
			order.ID, enums.RefundStatusFailed, amount, order.TotalCents,
		)
		if res.Error != nil {
			return res.Error
		}
		recorded = res.RowsAffected == 1
		return nil
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund")
	}
	if !recorded {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "refund exceeds remaining balance").
			WithDetails(map[string]any{
				"order_total_cents": order.TotalCents,
			})
	}

	store, err := s.stores.FindStore(ctx, order.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	creds, err := s.resolver.ForStore(store)
	if err != nil {
		return nil, err
	}

	notes := map[string]string{"order_number": order.OrderNumber}
	remoteRefundID, gatewayErr := s.gateway.Refund(ctx, creds, RefundRequest{
		RemotePaymentID: *order.RemotePaymentID,
		AmountCents:     amount,
		Notes:           notes,
	})
	if gatewayErr != nil {
		markErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return tx.WithContext(ctx).
				Model(&models.Refund{}).
				Where("id = ?", refund.ID).
				Update("status", enums.RefundStatusFailed).Error
		})
		if markErr != nil {
			s.log.Error(s.log.WithOrderID(ctx, order.ID.String()), "marking refund failed", markErr)
		}
		return nil, gatewayErr
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).
			Model(&models.Refund{}).
			Where("id = ?", refund.ID).
			Updates(map[string]any{
				"status":           enums.RefundStatusProcessed,
				"remote_refund_id": remoteRefundID,
			}).Error; err != nil {
			return err
		}
		return tx.WithContext(ctx).
			Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", order.ID, enums.PaymentStatusPaid).
			Where("(SELECT COALESCE(SUM(amount_cents), 0) FROM refunds WHERE order_id = ? AND status <> ?) = total_cents",
				order.ID, enums.RefundStatusFailed).
			Update("payment_status", enums.PaymentStatusRefunded).Error
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize refund")
	}

	refund.Status = enums.RefundStatusProcessed
	refund.RemoteRefundID = &remoteRefundID
	logCtx := s.log.WithOrderID(ctx, order.ID.String())
	s.log.Info(s.log.WithField(logCtx, "amount_cents", amount), "refund processed")
	return refund, nil
}
