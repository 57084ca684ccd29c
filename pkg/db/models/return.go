package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Return records a partial or full refund against a sale.
type Return struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SaleID      uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index" json:"sale_id"`
	UserID      uuid.UUID       `gorm:"column:user_id;type:uuid;not null" json:"user_id"`
	Reason      string          `gorm:"column:reason;not null" json:"reason"`
	TotalRefund decimal.Decimal `gorm:"column:total_refund;type:numeric(12,2);not null" json:"total_refund"`
	Items       []ReturnItem    `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName keeps the plural form since "return" is a reserved word.
func (Return) TableName() string {
	return "returns"
}

// ReturnItem links a returned quantity back to the original sale line.
type ReturnItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ReturnID     uuid.UUID       `gorm:"column:return_id;type:uuid;not null;index" json:"return_id"`
	SaleItemID   uuid.UUID       `gorm:"column:sale_item_id;type:uuid;not null" json:"sale_item_id"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	RefundAmount decimal.Decimal `gorm:"column:refund_amount;type:numeric(12,2);not null" json:"refund_amount"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
