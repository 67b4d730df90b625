package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/cart"
	"github.com/craftline/storefront-backend/internal/inventory"
	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/internal/payments"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/types"
)

const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type storeLoader interface {
	FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
}

type confirmNotifier interface {
	NotifyOrderConfirmed(ctx context.Context, order *models.Order)
}

// Input is one checkout request: the customer snapshot plus the cart.
type Input struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   *string
	ShippingAddress types.Address
	Lines           []cart.Line
	DiscountCents   int
	PaymentMethod   enums.PaymentMethod
}

// Confirmation is the checkout outcome. For online payment the remote
// order id and the publishable gateway key are returned so the client
// can open the payment flow; the order stays pending until the gateway
// callback verifies.
type Confirmation struct {
	Order         *models.Order
	RemoteOrderID string
	GatewayKeyID  string
}

// Service executes checkout orchestration: validate the cart, create
// the order with its price snapshot, hold stock, and either confirm
// immediately (cash on delivery) or open a gateway order (online).
type Service interface {
	Execute(ctx context.Context, storeID uuid.UUID, input Input) (*Confirmation, error)
}

type service struct {
	tx        txRunner
	validator cart.Validator
	repo      orders.Repository
	inventory inventory.Manager
	stores    storeLoader
	gateway   payments.Gateway
	resolver  *payments.CredentialResolver
	notifier  confirmNotifier
	shipper   payments.ShipmentDispatcher
	log       *logger.Logger
}

// NewService wires checkout. The notifier and shipment dispatcher are
// optional.
func NewService(
	tx txRunner,
	validator cart.Validator,
	repo orders.Repository,
	inventoryManager inventory.Manager,
	stores storeLoader,
	gateway payments.Gateway,
	resolver *payments.CredentialResolver,
	notifier confirmNotifier,
	shipper payments.ShipmentDispatcher,
	log *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if validator == nil {
		return nil, fmt.Errorf("cart validator required")
	}
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if inventoryManager == nil {
		return nil, fmt.Errorf("inventory manager required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store loader required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("credential resolver required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        tx,
		validator: validator,
		repo:      repo,
		inventory: inventoryManager,
		stores:    stores,
		gateway:   gateway,
		resolver:  resolver,
		notifier:  notifier,
		shipper:   shipper,
		log:       log,
	}, nil
}

func (s *service) Execute(ctx context.Context, storeID uuid.UUID, input Input) (*Confirmation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	validated, err := s.validator.Validate(ctx, storeID, cart.Input{
		Lines:         input.Lines,
		DiscountCents: input.DiscountCents,
	})
	if err != nil {
		return nil, err
	}

	store, err := s.stores.FindStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}

	var (
		order         *models.Order
		remoteOrderID string
		gatewayKeyID  string
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		number, err := s.uniqueOrderNumber(ctx, repo)
		if err != nil {
			return err
		}

		order = &models.Order{
			StoreID:           storeID,
			OrderNumber:       number,
			CustomerName:      strings.TrimSpace(input.CustomerName),
			CustomerEmail:     strings.TrimSpace(input.CustomerEmail),
			CustomerPhone:     input.CustomerPhone,
			ShippingAddress:   input.ShippingAddress.Normalize(),
			Currency:          validated.Currency,
			SubtotalCents:     validated.SubtotalCents,
			ShippingCents:     validated.ShippingCents,
			TaxCents:          validated.TaxCents,
			DiscountCents:     validated.DiscountCents,
			TotalCents:        validated.TotalCents,
			PaymentMethod:     input.PaymentMethod,
			PaymentStatus:     enums.PaymentStatusPending,
			FulfillmentStatus: enums.FulfillmentStatusUnfulfilled,
		}
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		if _, err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateItems(ctx, orderItems(order.ID, validated.Lines)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		// Untracked products have no stock rows to hold.
		reserved := reservationItems(validated.Lines)
		if len(reserved) > 0 {
			if err := s.inventory.Reserve(ctx, tx, order.ID, reserved); err != nil {
				return err
			}
		}

		switch input.PaymentMethod {
		case enums.PaymentMethodCashOnDelivery:
			// Nothing to collect up front; the hold converts to a
			// decrement immediately.
			if len(reserved) == 0 {
				return nil
			}
			return s.inventory.Commit(ctx, tx, order.ID)
		case enums.PaymentMethodOnline:
			creds, err := s.resolver.ForStore(store)
			if err != nil {
				return err
			}
			remoteOrderID, err = s.gateway.CreateRemoteOrder(ctx, creds, payments.RemoteOrderRequest{
				AmountCents: validated.TotalCents,
				Currency:    string(validated.Currency),
				Receipt:     order.OrderNumber,
				Notes:       map[string]string{"order_id": order.ID.String()},
			})
			if err != nil {
				return err
			}
			gatewayKeyID = creds.KeyID
			return repo.Update(ctx, order.ID, map[string]any{"remote_order_id": remoteOrderID})
		default:
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unsupported payment method %q", input.PaymentMethod))
		}
	})
	if err != nil {
		return nil, err
	}

	order, err = s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}

	ctx = s.log.WithOrderID(ctx, order.ID.String())
	ctx = s.log.WithStoreID(ctx, storeID.String())
	ctx = s.log.WithField(ctx, "payment_method", order.PaymentMethod.String())
	s.log.Info(ctx, "checkout completed")

	if order.PaymentMethod == enums.PaymentMethodCashOnDelivery {
		if s.notifier != nil {
			s.notifier.NotifyOrderConfirmed(ctx, order)
		}
		if s.shipper != nil {
			s.shipper.Dispatch(order.ID)
		}
	}

	return &Confirmation{
		Order:         order,
		RemoteOrderID: remoteOrderID,
		GatewayKeyID:  gatewayKeyID,
	}, nil
}

// uniqueOrderNumber generates an order number and retries on the rare
// collision with an existing row.
func (s *service) uniqueOrderNumber(ctx context.Context, repo orders.Repository) (string, error) {
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number := orders.GenerateOrderNumber(time.Now().UTC())
		_, err := repo.FindByNumber(ctx, number)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return number, nil
		}
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order number")
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate order number")
}

func validateInput(input Input) error {
	if strings.TrimSpace(input.CustomerName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}
	if strings.TrimSpace(input.CustomerEmail) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}
	return nil
}

func orderItems(orderID uuid.UUID, lines []cart.ValidatedLine) []models.OrderItem {
	items := make([]models.OrderItem, len(lines))
	for i, line := range lines {
		items[i] = models.OrderItem{
			OrderID:           orderID,
			ProductID:         line.ProductID,
			VariantID:         line.VariantID,
			Title:             line.Title,
			ImageURL:          line.ImageURL,
			SKU:               line.SKU,
			VariantAttributes: line.Attributes,
			UnitPriceCents:    line.UnitPriceCents,
			Qty:               line.Qty,
			TotalCents:        line.TotalCents,
		}
	}
	return items
}

func reservationItems(lines []cart.ValidatedLine) []inventory.Item {
	items := make([]inventory.Item, 0, len(lines))
	for _, line := range lines {
		if !line.TrackStock {
			continue
		}
		variantID := uuid.Nil
		if line.VariantID != nil {
			variantID = *line.VariantID
		}
		items = append(items, inventory.Item{ProductID: line.ProductID, VariantID: variantID, Qty: line.Qty})
	}
	return items
}
