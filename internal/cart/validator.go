package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/internal/catalog"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/types"
)

// Line is a single requested cart entry as submitted by the storefront.
// Quantities and identity only; prices are always resolved server-side.
type Line struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Qty       int
}

// LineIssue describes why one requested line failed validation.
type LineIssue struct {
	Index     int        `json:"index"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Reason    string     `json:"reason"`
}

// Issue reasons returned inside the validation error details.
const (
	ReasonInvalidQty        = "invalid_qty"
	ReasonProductNotFound   = "product_not_found"
	ReasonProductInactive   = "product_inactive"
	ReasonVariantNotFound   = "variant_not_found"
	ReasonVariantInactive   = "variant_inactive"
	ReasonInsufficientStock = "insufficient_stock"
)

// ValidatedLine is a cart line after catalog resolution, carrying the
// price snapshot the order will be built from.
type ValidatedLine struct {
	ProductID      uuid.UUID
	VariantID      *uuid.UUID
	Title          string
	ImageURL       *string
	SKU            *string
	Attributes     types.JSONMap
	UnitPriceCents int
	Qty            int
	TotalCents     int
	TrackStock     bool
}

// ValidatedCart carries the resolved lines and the money totals computed
// at validation time.
type ValidatedCart struct {
	Lines         []ValidatedLine
	Currency      enums.Currency
	SubtotalCents int
	ShippingCents int
	TaxCents      int
	DiscountCents int
	TotalCents    int
}

// Input bundles the data Validate needs beyond the store id.
type Input struct {
	Lines         []Line
	DiscountCents int
}

// Validator resolves requested cart lines against the catalog.
type Validator interface {
	Validate(ctx context.Context, storeID uuid.UUID, input Input) (*ValidatedCart, error)
}

type validator struct {
	catalog catalog.Reader
}

// NewValidator builds a cart validator over the catalog reader.
func NewValidator(reader catalog.Reader) (Validator, error) {
	if reader == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &validator{catalog: reader}, nil
}

func (v *validator) Validate(ctx context.Context, storeID uuid.UUID, input Input) (*ValidatedCart, error) {
	if storeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}
	if input.DiscountCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount cannot be negative")
	}

	store, err := v.catalog.FindStore(ctx, storeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}

	var issues []LineIssue
	validated := make([]ValidatedLine, 0, len(input.Lines))

	for i, line := range input.Lines {
		if line.Qty < 1 {
			issues = append(issues, LineIssue{Index: i, ProductID: line.ProductID, VariantID: line.VariantID, Reason: ReasonInvalidQty})
			continue
		}

		resolved, issue, err := v.resolveLine(ctx, storeID, i, line)
		if err != nil {
			return nil, err
		}
		if issue != nil {
			issues = append(issues, *issue)
			continue
		}
		validated = append(validated, *resolved)
	}

	if len(issues) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("%d cart line(s) failed validation", len(issues))).
			WithDetails(map[string]any{"issues": issues})
	}

	cart := &ValidatedCart{
		Lines:         validated,
		Currency:      store.Currency,
		ShippingCents: store.FlatShippingFee,
		DiscountCents: input.DiscountCents,
	}
	for _, line := range cart.Lines {
		cart.SubtotalCents += line.TotalCents
	}
	if cart.DiscountCents > cart.SubtotalCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal")
	}
	cart.TaxCents = taxCents(cart.SubtotalCents, store.TaxRatePercent)
	cart.TotalCents = cart.SubtotalCents + cart.ShippingCents - cart.DiscountCents + cart.TaxCents
	return cart, nil
}

func (v *validator) resolveLine(ctx context.Context, storeID uuid.UUID, index int, line Line) (*ValidatedLine, *LineIssue, error) {
	issue := func(reason string) *LineIssue {
		return &LineIssue{Index: index, ProductID: line.ProductID, VariantID: line.VariantID, Reason: reason}
	}

	product, err := v.catalog.FindProduct(ctx, storeID, line.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, issue(ReasonProductNotFound), nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.Status != enums.ProductStatusActive {
		return nil, issue(ReasonProductInactive), nil
	}

	resolved := ValidatedLine{
		ProductID:      product.ID,
		Title:          product.Title,
		ImageURL:       product.ImageURL,
		UnitPriceCents: product.PriceCents,
		Qty:            line.Qty,
		TrackStock:     product.TrackStock,
	}

	inventoryVariantID := uuid.Nil
	if line.VariantID != nil {
		variant, err := v.catalog.FindVariant(ctx, product.ID, *line.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, issue(ReasonVariantNotFound), nil
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if !variant.Active {
			return nil, issue(ReasonVariantInactive), nil
		}
		resolved.VariantID = &variant.ID
		resolved.SKU = variant.SKU
		resolved.Attributes = variant.Attributes
		if variant.PriceCents != nil {
			resolved.UnitPriceCents = *variant.PriceCents
		}
		inventoryVariantID = variant.ID
	}

	if product.TrackStock {
		item, err := v.catalog.FindInventory(ctx, product.ID, inventoryVariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, issue(ReasonInsufficientStock), nil
			}
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
		}
		if item.AvailableQty < line.Qty {
			return nil, issue(ReasonInsufficientStock), nil
		}
	}

	resolved.TotalCents = resolved.UnitPriceCents * resolved.Qty
	return &resolved, nil, nil
}

// taxCents applies the store tax rate to the subtotal and rounds half-up
// to whole cents.
func taxCents(subtotalCents int, ratePercent decimal.Decimal) int {
	if ratePercent.IsZero() || subtotalCents == 0 {
		return 0
	}
	tax := decimal.NewFromInt(int64(subtotalCents)).
		Mul(ratePercent).
		Div(decimal.NewFromInt(100)).
		Round(0)
	return int(tax.IntPart())
}
