package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/types"
)

// ProductVariant carries variant-level price/SKU overrides.
type ProductVariant struct {
	ID         uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID     `gorm:"column:product_id;type:uuid;not null"`
	Title      string        `gorm:"column:title;not null"`
	SKU        *string       `gorm:"column:sku"`
	Attributes types.JSONMap `gorm:"column:attributes;type:jsonb;serializer:json"`
	PriceCents *int          `gorm:"column:price_cents"`
	Active     bool          `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}
