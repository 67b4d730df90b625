package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/types"
)

// OrderItem is the denormalized line snapshot taken at order time. Catalog
// changes after checkout must not alter it.
type OrderItem struct {
	ID                uuid.UUID     `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID     `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID     `gorm:"column:product_id;type:uuid;not null"`
	VariantID         *uuid.UUID    `gorm:"column:variant_id;type:uuid"`
	Title             string        `gorm:"column:title;not null"`
	ImageURL          *string       `gorm:"column:image_url"`
	SKU               *string       `gorm:"column:sku"`
	VariantAttributes types.JSONMap `gorm:"column:variant_attributes;type:jsonb;serializer:json"`
	UnitPriceCents    int           `gorm:"column:unit_price_cents;not null"`
	Qty               int           `gorm:"column:qty;not null"`
	TotalCents        int           `gorm:"column:total_cents;not null"`
	CreatedAt         time.Time     `gorm:"column:created_at;autoCreateTime"`
}
