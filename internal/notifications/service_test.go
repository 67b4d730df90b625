package notifications

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/pkg/db/dbtest"
	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

func newNotificationsDB(t *testing.T) *gorm.DB {
	t.Helper()
	return dbtest.Open(t)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard}))
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestNotifyPersistsRow(t *testing.T) {
	t.Parallel()

	db := newNotificationsDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	order := &models.Order{StoreID: storeID, OrderNumber: "ORD-20260314-AAAAAA", CustomerName: "Asha Rao"}

	svc.NotifyShipmentFailed(ctx, order, "carrier timeout", 3)

	var row models.Notification
	if err := db.First(&row, "store_id = ?", storeID).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if row.Type != enums.NotificationTypeShipmentFailed {
		t.Fatalf("unexpected type %s", row.Type)
	}
	if row.Priority != enums.NotificationPriorityHigh {
		t.Fatalf("shipment failure must be high priority, got %s", row.Priority)
	}
}

func TestListUnreadAndMarkRead(t *testing.T) {
	t.Parallel()

	db := newNotificationsDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	storeID := uuid.New()
	order := &models.Order{StoreID: storeID, OrderNumber: "ORD-20260314-BBBBBB"}

	svc.NotifyOrderConfirmed(ctx, order)
	svc.NotifyPaymentReceived(ctx, order)

	list, err := svc.List(ctx, ListParams{StoreID: storeID, UnreadOnly: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 unread got %d", len(list.Items))
	}

	if err := svc.MarkRead(ctx, storeID, list.Items[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	list, err = svc.List(ctx, ListParams{StoreID: storeID, UnreadOnly: true})
	if err != nil {
		t.Fatalf("list after mark: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 unread got %d", len(list.Items))
	}

	count, err := svc.MarkAllRead(ctx, storeID)
	if err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 marked got %d", count)
	}
}

func TestMarkReadUnknownNotification(t *testing.T) {
	t.Parallel()

	db := newNotificationsDB(t)
	svc := newTestService(t, db)

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found got %v", err)
	}
}
