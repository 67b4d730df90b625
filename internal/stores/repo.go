package stores

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/repo"
	"github.com/craftline/storefront-backend/pkg/db/models"
)

// Repository handles store persistence. It satisfies the store loader
// interfaces the checkout, payments and shipping packages declare.
type Repository struct {
	repo.Base
}

// NewRepository binds a GORM DB to store operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// FindStore loads a store by its UUID.
func (r *Repository) FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	var store models.Store
	if err := r.DB(ctx).
		Where("id = ?", storeID).
		First(&store).Error; err != nil {
		return nil, err
	}
	return &store, nil
}

// UpdateGatewayCredentials stores the encrypted key pair a store uses
// instead of the platform gateway account.
func (r *Repository) UpdateGatewayCredentials(ctx context.Context, storeID uuid.UUID, keyID, encryptedSecret string) error {
	return r.DB(ctx).
		Model(&models.Store{}).
		Where("id = ?", storeID).
		Updates(map[string]any{
			"gateway_key_id":         keyID,
			"gateway_key_secret_enc": encryptedSecret,
		}).Error
}
