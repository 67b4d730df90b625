package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
	"github.com/craftline/storefront-backend/pkg/pagination"
)

// Service persists dashboard notifications and exposes list/read
// operations. The Notify methods are fire-and-forget: failures are logged
// and never propagate to the operation that triggered them.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, storeID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, storeID uuid.UUID) (int64, error)

	NotifyOrderConfirmed(ctx context.Context, order *models.Order)
	NotifyPaymentReceived(ctx context.Context, order *models.Order)
	NotifyOrderCancelled(ctx context.Context, order *models.Order, refundIssued bool)
	NotifyShipmentBooked(ctx context.Context, order *models.Order, awb, courier string)
	NotifyShipmentFailed(ctx context.Context, order *models.Order, lastError string, attempts int)
}

type service struct {
	repo Repository
	log  *logger.Logger
}

// ListParams configures pagination for notifications.
type ListParams struct {
	StoreID    uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, log: log}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.StoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}

	query := listNotificationsParams{
		StoreID:    params.StoreID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, storeID, notificationID uuid.UUID) error {
	if storeID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, storeID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, storeID uuid.UUID) (int64, error) {
	if storeID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}

	count, err := s.repo.MarkAllRead(ctx, storeID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) NotifyOrderConfirmed(ctx context.Context, order *models.Order) {
	s.persist(ctx, &models.Notification{
		StoreID:  order.StoreID,
		Type:     enums.NotificationTypeOrderConfirmed,
		Priority: enums.NotificationPriorityNormal,
		Title:    "New order placed",
		Message:  fmt.Sprintf("Order %s was placed by %s.", order.OrderNumber, order.CustomerName),
	})
}

func (s *service) NotifyPaymentReceived(ctx context.Context, order *models.Order) {
	s.persist(ctx, &models.Notification{
		StoreID:  order.StoreID,
		Type:     enums.NotificationTypePaymentReceived,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Payment received",
		Message:  fmt.Sprintf("Payment for order %s was received.", order.OrderNumber),
	})
}

func (s *service) NotifyOrderCancelled(ctx context.Context, order *models.Order, refundIssued bool) {
	message := fmt.Sprintf("Order %s was cancelled.", order.OrderNumber)
	if refundIssued {
		message = fmt.Sprintf("Order %s was cancelled and a refund was issued.", order.OrderNumber)
	}
	s.persist(ctx, &models.Notification{
		StoreID:  order.StoreID,
		Type:     enums.NotificationTypeOrderCancelled,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Order cancelled",
		Message:  message,
	})
}

func (s *service) NotifyShipmentBooked(ctx context.Context, order *models.Order, awb, courier string) {
	s.persist(ctx, &models.Notification{
		StoreID:  order.StoreID,
		Type:     enums.NotificationTypeShipmentBooked,
		Priority: enums.NotificationPriorityNormal,
		Title:    "Shipment booked",
		Message:  fmt.Sprintf("Order %s shipped with %s, AWB %s.", order.OrderNumber, courier, awb),
	})
}

func (s *service) NotifyShipmentFailed(ctx context.Context, order *models.Order, lastError string, attempts int) {
	s.persist(ctx, &models.Notification{
		StoreID:  order.StoreID,
		Type:     enums.NotificationTypeShipmentFailed,
		Priority: enums.NotificationPriorityHigh,
		Title:    "Shipment booking needs attention",
		Message: fmt.Sprintf("Shipment for order %s failed after %d attempts: %s",
			order.OrderNumber, attempts, lastError),
	})
}

func (s *service) persist(ctx context.Context, notification *models.Notification) {
	if err := s.repo.Create(ctx, notification); err != nil {
		fields := map[string]any{
			"store_id": notification.StoreID.String(),
			"type":     notification.Type,
		}
		s.log.Error(s.log.WithFields(ctx, fields), "persisting notification", err)
	}
}
