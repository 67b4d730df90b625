package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/enums"
)

// Refund belongs to exactly one order. The cumulative non-failed amount for
// an order never exceeds the order total.
type Refund struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	AmountCents    int                `gorm:"column:amount_cents;not null"`
	Reason         *string            `gorm:"column:reason"`
	Status         enums.RefundStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RemoteRefundID *string            `gorm:"column:remote_refund_id"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
