package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftline/storefront-backend/pkg/enums"
)

// Notification stores dashboard notification payloads scoped to stores.
type Notification struct {
	ID        uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID   uuid.UUID                  `gorm:"type:uuid;not null"`
	Type      enums.NotificationType     `gorm:"type:text;not null"`
	Priority  enums.NotificationPriority `gorm:"type:text;not null;default:'normal'"`
	Title     string                     `gorm:"type:text;not null"`
	Message   string                     `gorm:"type:text;not null"`
	Link      *string                    `gorm:"type:text"`
	ReadAt    *time.Time                 `gorm:"type:timestamptz"`
	CreatedAt time.Time                  `gorm:"type:timestamptz;default:now()"`
}
