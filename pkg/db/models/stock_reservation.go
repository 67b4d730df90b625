package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/enums"
)

// ReservationLine is one (product/variant, qty) hold within a reservation.
type ReservationLine struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id"`
	Qty       int       `json:"qty"`
}

// StockReservation associates an order with its inventory holds. Exactly one
// reservation exists per order; exactly one terminal status transition ever
// happens to it.
type StockReservation struct {
	ID        uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID               `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Status    enums.ReservationStatus `gorm:"column:status;type:text;not null;default:'held'"`
	Lines     []ReservationLine       `gorm:"column:lines;type:jsonb;serializer:json"`
	CreatedAt time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
