package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
)

// LockProduct loads the product row under FOR UPDATE inside tx.
func LockProduct(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := db.LockForUpdate(tx.WithContext(ctx)).First(&product, "id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}
	if err != nil {
		if db.IsLockTimeout(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "product row lock timed out")
		}
		return nil, err
	}
	return &product, nil
}

// ApplyInput describes one stock change for the ledger.
type ApplyInput struct {
	Product       *models.Product
	ActorID       uuid.UUID
	Type          enums.MovementType
	Delta         int
	Reason        string
	ReferenceID   *uuid.UUID
	ReferenceType string
}

// Apply appends an immutable movement and updates the product's stock.
// The product must already be locked inside tx; callers enforce any
// negativity policy before applying.
func Apply(ctx context.Context, tx *gorm.DB, input ApplyInput) (*models.InventoryMovement, error) {
	if input.Product == nil {
		return nil, fmt.Errorf("product is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid movement type %q", input.Type)
	}
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "movement delta cannot be zero")
	}

	previous := input.Product.CurrentStock
	next := previous + input.Delta

	movement := &models.InventoryMovement{
		ID:            uuid.New(),
		ProductID:     input.Product.ID,
		UserID:        input.ActorID,
		Type:          input.Type,
		Quantity:      input.Delta,
		PreviousStock: previous,
		NewStock:      next,
		ReferenceID:   input.ReferenceID,
	}
	if input.Reason != "" {
		movement.Reason = &input.Reason
	}
	if input.ReferenceType != "" {
		movement.ReferenceType = &input.ReferenceType
	}

	if err := tx.WithContext(ctx).Create(movement).Error; err != nil {
		return nil, fmt.Errorf("creating movement: %w", err)
	}
	if err := tx.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", input.Product.ID).
		Update("current_stock", next).Error; err != nil {
		return nil, fmt.Errorf("updating stock: %w", err)
	}

	input.Product.CurrentStock = next
	return movement, nil
}
