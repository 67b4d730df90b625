package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/enums"
	"github.com/craftline/storefront-backend/pkg/types"
)

// Order owns the money totals, the customer snapshot taken at checkout, and
// the two independent status fields. Orders are never deleted; cancellation
// is a status.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID     uuid.UUID `gorm:"column:store_id;type:uuid;not null;index"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex"`

	CustomerName    string        `gorm:"column:customer_name;not null"`
	CustomerEmail   string        `gorm:"column:customer_email;not null"`
	CustomerPhone   *string       `gorm:"column:customer_phone"`
	ShippingAddress types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`

	Currency      enums.Currency `gorm:"column:currency;type:text;not null;default:'INR'"`
	SubtotalCents int            `gorm:"column:subtotal_cents;not null"`
	ShippingCents int            `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents      int            `gorm:"column:tax_cents;not null;default:0"`
	DiscountCents int            `gorm:"column:discount_cents;not null;default:0"`
	TotalCents    int            `gorm:"column:total_cents;not null"`

	PaymentMethod     enums.PaymentMethod     `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus     enums.PaymentStatus     `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	FulfillmentStatus enums.FulfillmentStatus `gorm:"column:fulfillment_status;type:text;not null;default:'unfulfilled'"`

	RemoteOrderID   *string `gorm:"column:remote_order_id"`
	RemotePaymentID *string `gorm:"column:remote_payment_id"`

	AWBNumber   *string `gorm:"column:awb_number"`
	CourierName *string `gorm:"column:courier_name"`

	PaidAt      *time.Time `gorm:"column:paid_at"`
	ShippedAt   *time.Time `gorm:"column:shipped_at"`
	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	Items   []OrderItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Refunds []Refund    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
