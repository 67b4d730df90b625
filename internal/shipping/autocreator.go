package shipping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/craftline/storefront-backend/internal/orders"
	"github.com/craftline/storefront-backend/pkg/config"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/metrics"
)

const bookingTimeout = 2 * time.Minute

type storeLoader interface {
	FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
}

type shipmentNotifier interface {
	NotifyShipmentBooked(ctx context.Context, order *models.Order, awb, courier string)
	NotifyShipmentFailed(ctx context.Context, order *models.Order, lastError string, attempts int)
}

type emailSink interface {
	Send(ctx context.Context, to, template string, data map[string]any)
}

// AutoCreator books carrier shipments for paid orders in the background,
// retrying with exponential backoff and escalating to the merchant when
// every attempt fails. Booking never returns an error to checkout or
// payment verification; the order stays actionable either way.
type AutoCreator struct {
	repo     Repository
	orders   orders.Repository
	ledger   orders.Ledger
	carrier  CarrierAdapter
	stores   storeLoader
	notifier shipmentNotifier
	email    emailSink
	metrics  *metrics.ShippingMetrics
	log      *logger.Logger

	maxAttempts    int
	initialBackoff time.Duration

	wg sync.WaitGroup
}

// NewAutoCreator wires the background shipment booker. The notifier,
// email sink and metrics are optional.
func NewAutoCreator(
	cfg config.ShippingConfig,
	repo Repository,
	ordersRepo orders.Repository,
	ledger orders.Ledger,
	carrier CarrierAdapter,
	stores storeLoader,
	notifier shipmentNotifier,
	email emailSink,
	shippingMetrics *metrics.ShippingMetrics,
	log *logger.Logger,
) (*AutoCreator, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipment repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("order ledger required")
	}
	if carrier == nil {
		return nil, fmt.Errorf("carrier adapter required")
	}
	if stores == nil {
		return nil, fmt.Errorf("store loader required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = 2 * time.Second
	}

	return &AutoCreator{
		repo:           repo,
		orders:         ordersRepo,
		ledger:         ledger,
		carrier:        carrier,
		stores:         stores,
		notifier:       notifier,
		email:          email,
		metrics:        shippingMetrics,
		log:            log,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
	}, nil
}

// Dispatch schedules booking for the order and returns immediately.
func (a *AutoCreator) Dispatch(orderID uuid.UUID) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), bookingTimeout)
		defer cancel()
		a.Book(ctx, orderID)
	}()
}

// Wait blocks until all dispatched bookings finish. Used during shutdown.
func (a *AutoCreator) Wait() {
	a.wg.Wait()
}

// Book runs the full booking attempt loop for one order synchronously.
func (a *AutoCreator) Book(ctx context.Context, orderID uuid.UUID) {
	ctx = a.log.WithOrderID(ctx, orderID.String())

	order, err := a.orders.FindByID(ctx, orderID)
	if err != nil {
		a.log.Error(ctx, "load order for shipment booking", err)
		return
	}
	if order.FulfillmentStatus.IsTerminal() {
		a.log.Warn(a.log.WithField(ctx, "fulfillment_status", order.FulfillmentStatus.String()),
			"skipping shipment booking for terminal order")
		return
	}
	if order.AWBNumber != nil {
		return
	}

	shipment := &models.Shipment{OrderID: order.ID}
	if err := a.repo.Create(ctx, shipment); err != nil {
		a.log.Error(ctx, "create shipment record", err)
		return
	}

	info, attempts, lastErr := a.attemptLoop(ctx, order, shipment)
	if info == nil {
		a.escalate(ctx, order, shipment, attempts, lastErr)
		return
	}

	now := time.Now().UTC()
	if err := a.repo.Update(ctx, shipment.ID, map[string]any{
		"awb_number":   info.AWBNumber,
		"courier_name": info.CourierName,
		"attempts":     attempts,
		"last_error":   nil,
		"booked_at":    now,
	}); err != nil {
		a.log.Error(ctx, "record booked shipment", err)
	}

	if _, err := a.ledger.Transition(ctx, orders.TransitionInput{
		OrderID:     order.ID,
		Target:      enums.FulfillmentStatusProcessing,
		AWBNumber:   &info.AWBNumber,
		CourierName: &info.CourierName,
	}); err != nil {
		// The order may have been cancelled while we were booking.
		// The shipment row keeps the AWB for manual follow-up.
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
			a.log.Warn(ctx, "order moved while booking shipment; awb recorded on shipment only")
		} else {
			a.log.Error(ctx, "advance order after shipment booking", err)
		}
		return
	}

	a.metrics.IncBooked()
	ctx = a.log.WithField(ctx, "awb_number", info.AWBNumber)
	a.log.Info(ctx, "shipment booked")

	// Pickup scheduling must not block the order moving to processing.
	if err := a.carrier.SchedulePickup(ctx, info.AWBNumber); err != nil {
		a.log.Warn(a.log.WithField(ctx, "error", err.Error()), "schedule pickup failed")
	}

	if a.notifier != nil {
		a.notifier.NotifyShipmentBooked(ctx, order, info.AWBNumber, info.CourierName)
	}
}

func (a *AutoCreator) attemptLoop(ctx context.Context, order *models.Order, shipment *models.Shipment) (*ShipmentInfo, int, error) {
	req := bookingRequest(order)

	var (
		info     *ShipmentInfo
		attempts int
		lastErr  error
	)
	backoff := retry.WithMaxRetries(uint64(a.maxAttempts-1), retry.NewExponential(a.initialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		booked, err := a.carrier.CreateShipment(ctx, req)
		if err != nil {
			lastErr = err
			a.metrics.IncAttempt("failure")
			a.recordAttempt(ctx, shipment.ID, attempts, err)
			a.log.Warn(a.log.WithField(ctx, "attempt", attempts), "carrier booking attempt failed")
			return retry.RetryableError(err)
		}
		a.metrics.IncAttempt("success")
		info = booked
		return nil
	})
	if err != nil && lastErr == nil {
		lastErr = err
	}
	if info == nil {
		return nil, attempts, lastErr
	}
	return info, attempts, nil
}

func (a *AutoCreator) recordAttempt(ctx context.Context, shipmentID uuid.UUID, attempts int, attemptErr error) {
	if err := a.repo.Update(ctx, shipmentID, map[string]any{
		"attempts":   attempts,
		"last_error": attemptErr.Error(),
	}); err != nil {
		a.log.Error(ctx, "record shipment attempt", err)
	}
}

func (a *AutoCreator) escalate(ctx context.Context, order *models.Order, shipment *models.Shipment, attempts int, lastErr error) {
	a.metrics.IncExhausted()

	msg := "carrier unavailable"
	if lastErr != nil {
		msg = lastErr.Error()
	}
	if err := a.repo.Update(ctx, shipment.ID, map[string]any{
		"attempts":   attempts,
		"last_error": msg,
	}); err != nil {
		a.log.Error(ctx, "record exhausted shipment", err)
	}

	ctx = a.log.WithField(ctx, "attempts", attempts)
	a.log.Error(ctx, "shipment booking exhausted retries", lastErr)

	if a.notifier != nil {
		a.notifier.NotifyShipmentFailed(ctx, order, msg, attempts)
	}
	if a.email != nil {
		store, err := a.stores.FindStore(ctx, order.StoreID)
		if err != nil {
			a.log.Error(ctx, "load store for escalation email", err)
			return
		}
		a.email.Send(ctx, store.Email, "shipment_booking_failed", map[string]any{
			"order_number": order.OrderNumber,
			"attempts":     attempts,
			"last_error":   msg,
		})
	}
}

func bookingRequest(order *models.Order) ShipmentRequest {
	req := ShipmentRequest{
		OrderNumber:  order.OrderNumber,
		CustomerName: order.CustomerName,
		Address:      order.ShippingAddress,
		AmountCents:  order.TotalCents,
	}
	if order.CustomerPhone != nil {
		req.CustomerPhone = *order.CustomerPhone
	}
	if order.PaymentMethod == enums.PaymentMethodCashOnDelivery {
		req.CODAmountCents = order.TotalCents
	}
	return req
}
