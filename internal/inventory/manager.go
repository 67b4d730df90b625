package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftline/storefront-backend/pkg/db/models"
	"github.com/craftline/storefront-backend/pkg/enums"
	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
)

// Item identifies one stock row and the quantity to hold or return.
// VariantID is the nil UUID for product-level stock.
type Item struct {
	ProductID uuid.UUID
	VariantID uuid.UUID
	Qty       int
}

// UnavailableLine is reported when a hold cannot be taken.
type UnavailableLine struct {
	ProductID uuid.UUID `json:"product_id"`
	VariantID uuid.UUID `json:"variant_id,omitempty"`
	Requested int       `json:"requested"`
}

// Manager owns stock holds. All operations run inside the caller's
// transaction; the conditional updates carry the concurrency guarantees,
// not row locks.
type Manager interface {
	// Reserve takes a hold per item and records one reservation row for
	// the order. Any line failure releases the holds taken in the same
	// call before returning.
	Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []Item) error
	// Commit converts the order's holds into permanent decrements.
	// Committing an already committed reservation is a no-op.
	Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	// Release returns the order's held stock to availability. Releasing
	// a reservation that already reached a terminal status is a no-op.
	Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
	// Restore adds quantities back after a committed decrement, used
	// when a paid order is cancelled.
	Restore(ctx context.Context, tx *gorm.DB, items []Item) error
	// RestoreCommitted returns the stock a committed reservation
	// decremented. The reservation status flip makes it run at most
	// once per order; any other reservation status is a no-op.
	RestoreCommitted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type manager struct{}

// NewManager builds the reservation manager.
func NewManager() Manager {
	return manager{}
}

func (manager) Reserve(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, items []Item) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if len(items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no items to reserve")
	}

	taken := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Qty <= 0 {
			rollbackHolds(ctx, tx, taken)
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}

		res := tx.WithContext(ctx).Exec(
			`UPDATE inventory_items
			 SET available_qty = available_qty - ?, reserved_qty = reserved_qty + ?
			 WHERE product_id = ? AND variant_id = ? AND available_qty >= ?`,
			item.Qty, item.Qty, item.ProductID, item.VariantID, item.Qty,
		)
		if res.Error != nil {
			rollbackHolds(ctx, tx, taken)
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "take inventory hold")
		}
		if res.RowsAffected == 0 {
			rollbackHolds(ctx, tx, taken)
			return pkgerrors.New(pkgerrors.CodeInventoryUnavailable, "insufficient stock").
				WithDetails(map[string]any{
					"line": UnavailableLine{ProductID: item.ProductID, VariantID: item.VariantID, Requested: item.Qty},
				})
		}
		taken = append(taken, item)
	}

	lines := make([]models.ReservationLine, len(items))
	for i, item := range items {
		lines[i] = models.ReservationLine{ProductID: item.ProductID, VariantID: item.VariantID, Qty: item.Qty}
	}
	reservation := models.StockReservation{
		OrderID: orderID,
		Status:  enums.ReservationStatusHeld,
		Lines:   lines,
	}
	if err := tx.WithContext(ctx).Create(&reservation).Error; err != nil {
		rollbackHolds(ctx, tx, taken)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record reservation")
	}
	return nil
}

// rollbackHolds undoes holds taken earlier in the same Reserve call. Errors
// here are ignored; the surrounding transaction rollback covers the rest.
func rollbackHolds(ctx context.Context, tx *gorm.DB, taken []Item) {
	for i := len(taken) - 1; i >= 0; i-- {
		item := taken[i]
		tx.WithContext(ctx).Exec(
			`UPDATE inventory_items
			 SET available_qty = available_qty + ?, reserved_qty = reserved_qty - ?
			 WHERE product_id = ? AND variant_id = ? AND reserved_qty >= ?`,
			item.Qty, item.Qty, item.ProductID, item.VariantID, item.Qty,
		)
	}
}

func (manager) Commit(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}

	reservation, err := findReservation(ctx, tx, orderID)
	if err != nil {
		return err
	}

	flip := tx.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusHeld).
		Update("status", enums.ReservationStatusCommitted)
	if flip.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, flip.Error, "commit reservation")
	}
	if flip.RowsAffected == 0 {
		if reservation.Status == enums.ReservationStatusCommitted {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("reservation is %s, cannot commit", reservation.Status))
	}

	for _, line := range reservation.Lines {
		res := tx.WithContext(ctx).Exec(
			`UPDATE inventory_items
			 SET reserved_qty = reserved_qty - ?
			 WHERE product_id = ? AND variant_id = ? AND reserved_qty >= ?`,
			line.Qty, line.ProductID, line.VariantID, line.Qty,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "finalize inventory hold")
		}
	}
	return nil
}

func (manager) Release(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}

	reservation, err := findReservation(ctx, tx, orderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}

	flip := tx.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusHeld).
		Update("status", enums.ReservationStatusReleased)
	if flip.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, flip.Error, "release reservation")
	}
	if flip.RowsAffected == 0 {
		// Already committed, released, or restored. Stock must not move twice.
		return nil
	}

	for _, line := range reservation.Lines {
		res := tx.WithContext(ctx).Exec(
			`UPDATE inventory_items
			 SET available_qty = available_qty + ?, reserved_qty = reserved_qty - ?
			 WHERE product_id = ? AND variant_id = ? AND reserved_qty >= ?`,
			line.Qty, line.ProductID, line.VariantID, line.Qty,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "return inventory hold")
		}
	}
	return nil
}

func (manager) Restore(ctx context.Context, tx *gorm.DB, items []Item) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}

	for _, item := range items {
		if item.Qty <= 0 {
			continue
		}
		res := tx.WithContext(ctx).Exec(
			`UPDATE inventory_items
			 SET available_qty = available_qty + ?
			 WHERE product_id = ? AND variant_id = ?`,
			item.Qty, item.ProductID, item.VariantID,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore inventory")
		}
	}
	return nil
}

func (manager) RestoreCommitted(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}

	reservation, err := findReservation(ctx, tx, orderID)
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			return nil
		}
		return err
	}

	flip := tx.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationStatusCommitted).
		Update("status", enums.ReservationStatusRestored)
	if flip.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, flip.Error, "restore reservation")
	}
	if flip.RowsAffected == 0 {
		return nil
	}

	for _, line := range reservation.Lines {
		res := tx.WithContext(ctx).Exec(
			`UPDATE inventory_items
			 SET available_qty = available_qty + ?
			 WHERE product_id = ? AND variant_id = ?`,
			line.Qty, line.ProductID, line.VariantID,
		)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore inventory")
		}
	}
	return nil
}

func findReservation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	err := tx.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reservation")
	}
	return &reservation, nil
}
