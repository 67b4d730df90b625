package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TransitionInput carries a requested fulfillment move plus the optional
// tracking fields that may accompany a shipped transition.
type TransitionInput struct {
	OrderID     uuid.UUID
	Target      enums.FulfillmentStatus
	AWBNumber   *string
	CourierName *string
}

// ListParams configures store order listings.
type ListParams struct {
	StoreID uuid.UUID
	Limit   int
	Cursor  string
	Filters ListFilters
}

// ListResult wraps returned orders and the cursor for the next page.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// Ledger owns order rows and the fulfillment state machine.
type Ledger interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	// Transition moves the order to the target fulfillment status,
	// rejecting moves outside the state machine. Entering shipped,
	// delivered or cancelled stamps the matching timestamp.
	Transition(ctx context.Context, input TransitionInput) (*models.Order, error)
}

type ledger struct {
	repo Repository
	tx   txRunner
	log  *logger.Logger
}

// NewLedger wires the order ledger.
func NewLedger(repo Repository, tx txRunner, log *logger.Logger) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ledger{repo: repo, tx: tx, log: log}, nil
}

func (l *ledger) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := l.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (l *ledger) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}

	rows, next, err := l.repo.ListStoreOrders(ctx, params.StoreID,
		pagination.Params{Limit: params.Limit, Cursor: params.Cursor}, params.Filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (l *ledger) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown fulfillment status %q", input.Target))
	}

	var updated *models.Order
	err := l.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := l.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.FulfillmentStatus == input.Target {
			updated = order
			return nil
		}
		if !CanTransition(order.FulfillmentStatus, input.Target) {
			return TransitionError(order.FulfillmentStatus, input.Target)
		}

		updates := map[string]any{"fulfillment_status": input.Target}
		now := time.Now().UTC()
		switch input.Target {
		case enums.FulfillmentStatusShipped:
			updates["shipped_at"] = now
		case enums.FulfillmentStatusDelivered:
			updates["delivered_at"] = now
		case enums.FulfillmentStatusCancelled:
			updates["cancelled_at"] = now
		}
		if input.AWBNumber != nil {
			updates["awb_number"] = *input.AWBNumber
		}
		if input.CourierName != nil {
			updates["courier_name"] = *input.CourierName
		}

		changed, err := repo.UpdateWhereStatus(ctx, order.ID, order.FulfillmentStatus, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			// Lost a race with another transition.
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}

		updated, err = repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = l.log.WithOrderID(ctx, input.OrderID.String())
	ctx = l.log.WithField(ctx, "target", input.Target.String())
	l.log.Info(ctx, "order fulfillment transition applied")
	return updated, nil
}
