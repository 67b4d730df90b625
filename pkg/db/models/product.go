package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/enums"
)

// Product is the minimal catalog surface the fulfillment pipeline reads.
// Catalog CRUD lives elsewhere; this model is consumed read-only.
type Product struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID    uuid.UUID           `gorm:"column:store_id;type:uuid;not null"`
	Title      string              `gorm:"column:title;not null"`
	ImageURL   *string             `gorm:"column:image_url"`
	Status     enums.ProductStatus `gorm:"column:status;type:text;not null;default:'active'"`
	PriceCents int                 `gorm:"column:price_cents;not null"`
	TrackStock bool                `gorm:"column:track_stock;not null"`
	Variants   []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
