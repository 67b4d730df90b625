package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/inventory"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type storeLoader interface {
	FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
}

type paymentNotifier interface {
	NotifyPaymentReceived(ctx context.Context, order *models.Order)
}

// ShipmentDispatcher hands a paid order to the shipment pipeline without
// blocking the caller.
type ShipmentDispatcher interface {
	Dispatch(orderID uuid.UUID)
}

// VerifyInput is the gateway callback payload presented by the storefront.
type VerifyInput struct {
	OrderID         uuid.UUID
	RemoteOrderID   string
	RemotePaymentID string
	Signature       string
}

// VerificationService settles online payments. Verify is safe to replay:
// the conditional payment flip decides which caller wins.
type VerificationService interface {
	Verify(ctx context.Context, input VerifyInput) (*models.Order, error)
}

type verificationService struct {
	tx         txRunner
	ordersRepo orders.Repository
	inventory  inventory.Manager
	stores     storeLoader
	resolver   *CredentialResolver
	notifier   paymentNotifier
	shipper    ShipmentDispatcher
	log        *logger.Logger
}

// NewVerificationService wires payment verification. The notifier and
// shipper are optional.
func NewVerificationService(
	tx txRunner,
	ordersRepo orders.Repository,
	inv inventory.Manager,
	stores storeLoader,
	resolver *CredentialResolver,
	notifier paymentNotifier,
	shipper ShipmentDispatcher,
	log *logger.Logger,
) (VerificationService, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory manager required")
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
	return &verificationService{
		tx:         tx,
		ordersRepo: ordersRepo,
		inventory:  inv,
		stores:     stores,
		resolver:   resolver,
		notifier:   notifier,
		shipper:    shipper,
		log:        log,
	}, nil
}

func (s *verificationService) Verify(ctx context.Context, input VerifyInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.RemoteOrderID == "" || input.RemotePaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote order id, payment id and signature are required")
	}

	order, err := s.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	store, err := s.stores.FindStore(ctx, order.StoreID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	creds, err := s.resolver.ForStore(store)
	if err != nil {
		return nil, err
	}

	if !VerifySignature(creds.KeySecret, input.RemoteOrderID, input.RemotePaymentID, input.Signature) {
		logCtx := s.log.WithOrderID(ctx, order.ID.String())
		s.log.Warn(s.log.WithField(logCtx, "remote_order_id", input.RemoteOrderID),
			"payment signature verification failed")
		return nil, pkgerrors.New(pkgerrors.CodeSignatureMismatch, "payment verification failed")
	}

	if order.RemoteOrderID == nil || *order.RemoteOrderID != input.RemoteOrderID {
		return nil, pkgerrors.New(pkgerrors.CodeOrderMismatch, "payment verification failed")
	}

	// Replay of an already settled payment is a success with no side
	// effects.
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return order, nil
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s, cannot verify", order.PaymentStatus))
	}

	won := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)
		changed, err := repo.MarkPaid(ctx, order.ID, input.RemotePaymentID, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
		}
		if !changed {
			// Another verification settled first; the post-tx reload
			// decides whether that is a replayed success.
			return nil
		}
		won = true
		if err := s.inventory.Commit(ctx, tx, order.ID); err != nil {
			// Orders made entirely of untracked products never took a
			// reservation; there is nothing to commit.
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	settled, err := s.ordersRepo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if settled.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("payment is %s, cannot verify", settled.PaymentStatus))
	}

	if won {
		s.log.Info(s.log.WithOrderID(ctx, order.ID.String()), "payment verified and settled")
		if s.notifier != nil {
			s.notifier.NotifyPaymentReceived(ctx, settled)
		}
		if s.shipper != nil {
			s.shipper.Dispatch(settled.ID)
		}
	}
	return settled, nil
}
