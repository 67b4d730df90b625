package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/pkg/db/models"
)

// Reader exposes the read-only catalog surface the fulfillment pipeline
// needs. Catalog CRUD lives outside this service.
type Reader interface {
	FindProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error)
	FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error)
	FindInventory(ctx context.Context, productID, variantID uuid.UUID) (*models.InventoryItem, error)
	FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error)
}

type reader struct {
	db *gorm.DB
}

// NewReader builds a catalog reader bound to the provided DB.
func NewReader(db *gorm.DB) Reader {
	return &reader{db: db}
}

func (r *reader) FindProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND store_id = ?", productID, storeID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *reader) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", variantID, productID).
		First(&variant).Error
	if err != nil {
		return nil, err
	}
	return &variant, nil
}

// FindInventory resolves the stock row for a product or variant. Product
// level rows use the nil UUID as variant id.
func (r *reader) FindInventory(ctx context.Context, productID, variantID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id = ?", productID, variantID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *reader) FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	var store models.Store
	err := r.db.WithContext(ctx).
		Where("id = ?", storeID).
		First(&store).Error
	if err != nil {
		return nil, err
	}
	return &store, nil
}
