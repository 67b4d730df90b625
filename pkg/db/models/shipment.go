package models

import (
	"time"

	"github.com/google/uuid"
)

// Shipment records carrier booking attempts for an order, including the
// trail left behind when booking keeps failing and escalates to an operator.
type Shipment struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	AWBNumber   *string    `gorm:"column:awb_number"`
	CourierName *string    `gorm:"column:courier_name"`
	Attempts    int        `gorm:"column:attempts;not null;default:0"`
	LastError   *string    `gorm:"column:last_error"`
	BookedAt    *time.Time `gorm:"column:booked_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
