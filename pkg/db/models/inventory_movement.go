package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dromeroc/tiendapos-backend/pkg/enums"
)

// InventoryMovement is an immutable ledger entry for a stock change.
// Quantity is signed: positive for entries, negative for outflows.
type InventoryMovement struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductID     uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index" json:"product_id"`
	UserID        uuid.UUID          `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Type          enums.MovementType `gorm:"column:type;not null" json:"type"`
	Quantity      int                `gorm:"column:quantity;not null" json:"quantity"`
	PreviousStock int                `gorm:"column:previous_stock;not null" json:"previous_stock"`
	NewStock      int                `gorm:"column:new_stock;not null" json:"new_stock"`
	Reason        *string            `gorm:"column:reason" json:"reason,omitempty"`
	ReferenceID   *uuid.UUID         `gorm:"column:reference_id;type:uuid" json:"reference_id,omitempty"`
	ReferenceType *string            `gorm:"column:reference_type" json:"reference_type,omitempty"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}
