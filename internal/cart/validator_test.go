package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
)

type stubCatalog struct {
	store     *models.Store
	products  map[uuid.UUID]*models.Product
	variants  map[uuid.UUID]*models.ProductVariant
	inventory map[uuid.UUID]*models.InventoryItem
}

func (s *stubCatalog) FindStore(ctx context.Context, storeID uuid.UUID) (*models.Store, error) {
	if s.store == nil || s.store.ID != storeID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.store, nil
}

func (s *stubCatalog) FindProduct(ctx context.Context, storeID, productID uuid.UUID) (*models.Product, error) {
	p, ok := s.products[productID]
	if !ok || p.StoreID != storeID {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (s *stubCatalog) FindVariant(ctx context.Context, productID, variantID uuid.UUID) (*models.ProductVariant, error) {
	v, ok := s.variants[variantID]
	if !ok || v.ProductID != productID {
		return nil, gorm.ErrRecordNotFound
	}
	return v, nil
}

func (s *stubCatalog) FindInventory(ctx context.Context, productID, variantID uuid.UUID) (*models.InventoryItem, error) {
	item, ok := s.inventory[productID]
	if !ok || item.VariantID != variantID {
		return nil, gorm.ErrRecordNotFound
	}
	return item, nil
}

func newTestCatalog() (*stubCatalog, uuid.UUID, uuid.UUID) {
	storeID := uuid.New()
	productID := uuid.New()
	catalog := &stubCatalog{
		store: &models.Store{
			ID:              storeID,
			Currency:        enums.CurrencyINR,
			TaxRatePercent:  decimal.NewFromInt(18),
			FlatShippingFee: 5000,
		},
		products: map[uuid.UUID]*models.Product{
			productID: {
				ID:         productID,
				StoreID:    storeID,
				Title:      "Ceramic Mug",
				Status:     enums.ProductStatusActive,
				PriceCents: 25000,
				TrackStock: true,
			},
		},
		inventory: map[uuid.UUID]*models.InventoryItem{
			productID: {ProductID: productID, VariantID: uuid.Nil, AvailableQty: 10},
		},
	}
	return catalog, storeID, productID
}

func TestValidateComputesTotals(t *testing.T) {
	catalog, storeID, productID := newTestCatalog()
	v, err := NewValidator(catalog)
	if err != nil {
		t.Fatalf("construct validator: %v", err)
	}

	cart, err := v.Validate(context.Background(), storeID, Input{
		Lines: []Line{{ProductID: productID, Qty: 2}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}

	if cart.SubtotalCents != 50000 {
		t.Fatalf("expected subtotal 50000 got %d", cart.SubtotalCents)
	}
	if cart.TaxCents != 9000 {
		t.Fatalf("expected tax 9000 got %d", cart.TaxCents)
	}
	// subtotal + shipping - discount + tax
	if cart.TotalCents != 50000+5000+9000 {
		t.Fatalf("unexpected total %d", cart.TotalCents)
	}
	if cart.Lines[0].UnitPriceCents != 25000 {
		t.Fatalf("expected server price 25000 got %d", cart.Lines[0].UnitPriceCents)
	}
}

func TestValidateVariantPriceOverride(t *testing.T) {
	catalog, storeID, productID := newTestCatalog()
	variantID := uuid.New()
	price := 30000
	catalog.variants = map[uuid.UUID]*models.ProductVariant{
		variantID: {ID: variantID, ProductID: productID, Title: "Large", Active: true, PriceCents: &price},
	}
	catalog.inventory[productID] = &models.InventoryItem{ProductID: productID, VariantID: variantID, AvailableQty: 3}

	v, _ := NewValidator(catalog)
	cart, err := v.Validate(context.Background(), storeID, Input{
		Lines: []Line{{ProductID: productID, VariantID: &variantID, Qty: 1}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cart.Lines[0].UnitPriceCents != 30000 {
		t.Fatalf("expected variant price 30000 got %d", cart.Lines[0].UnitPriceCents)
	}
}

func TestValidateRejectsWholeCartWithIssueList(t *testing.T) {
	catalog, storeID, productID := newTestCatalog()
	missingID := uuid.New()

	v, _ := NewValidator(catalog)
	_, err := v.Validate(context.Background(), storeID, Input{
		Lines: []Line{
			{ProductID: productID, Qty: 1},
			{ProductID: missingID, Qty: 1},
			{ProductID: productID, Qty: 0},
		},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}

	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code got %v", err)
	}
	details, ok := coded.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected detail map got %#v", coded.Details())
	}
	issues, ok := details["issues"].([]LineIssue)
	if !ok {
		t.Fatalf("expected issue details got %#v", details)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues got %d", len(issues))
	}
	if issues[0].Reason != ReasonProductNotFound || issues[1].Reason != ReasonInvalidQty {
		t.Fatalf("unexpected reasons %q %q", issues[0].Reason, issues[1].Reason)
	}
}

func TestValidateInsufficientTrackedStock(t *testing.T) {
	catalog, storeID, productID := newTestCatalog()
	catalog.inventory[productID].AvailableQty = 1

	v, _ := NewValidator(catalog)
	_, err := v.Validate(context.Background(), storeID, Input{
		Lines: []Line{{ProductID: productID, Qty: 2}},
	})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	coded := pkgerrors.As(err)
	issues := coded.Details().(map[string]any)["issues"].([]LineIssue)
	if issues[0].Reason != ReasonInsufficientStock {
		t.Fatalf("expected insufficient_stock got %q", issues[0].Reason)
	}
}

func TestValidateUntrackedStockSkipsInventory(t *testing.T) {
	catalog, storeID, productID := newTestCatalog()
	catalog.products[productID].TrackStock = false
	delete(catalog.inventory, productID)

	v, _ := NewValidator(catalog)
	_, err := v.Validate(context.Background(), storeID, Input{
		Lines: []Line{{ProductID: productID, Qty: 50}},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
}

func TestValidateDiscountBounds(t *testing.T) {
	catalog, storeID, productID := newTestCatalog()

	v, _ := NewValidator(catalog)
	_, err := v.Validate(context.Background(), storeID, Input{
		Lines:         []Line{{ProductID: productID, Qty: 1}},
		DiscountCents: 30000,
	})
	if err == nil {
		t.Fatalf("expected discount validation error")
	}

	cart, err := v.Validate(context.Background(), storeID, Input{
		Lines:         []Line{{ProductID: productID, Qty: 1}},
		DiscountCents: 5000,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if cart.TotalCents != 25000+5000-5000+4500 {
		t.Fatalf("unexpected total %d", cart.TotalCents)
	}
}
