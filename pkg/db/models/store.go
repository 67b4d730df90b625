package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/craftline/storefront-backend/pkg/enums"
)

// Store is the merchant storefront that owns products and orders.
type Store struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string          `gorm:"column:name;not null"`
	Email           string          `gorm:"column:email;not null"`
	Phone           *string         `gorm:"column:phone"`
	Currency        enums.Currency  `gorm:"column:currency;type:text;not null;default:'INR'"`
	TaxRatePercent  decimal.Decimal `gorm:"column:tax_rate_percent;type:numeric(5,2);not null;default:0"`
	FlatShippingFee int             `gorm:"column:flat_shipping_fee_cents;not null;default:0"`

	// Optional per-store gateway credentials. The secret is AES-GCM
	// encrypted at rest; platform credentials apply when absent.
	GatewayKeyID     *string `gorm:"column:gateway_key_id"`
	GatewayKeySecret *string `gorm:"column:gateway_key_secret_enc"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
