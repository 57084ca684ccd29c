package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dromeroc/tiendapos-backend/pkg/enums"
)

// Sale is the header of a register transaction. Monetary fields are
// stored rounded to two decimals so that
// total = subtotal - discount_amount + tax_amount holds exactly.
type Sale struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ReceiptNumber   string              `gorm:"column:receipt_number;not null;uniqueIndex" json:"receipt_number"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	Status          enums.SaleStatus    `gorm:"column:status;not null;default:'COMPLETED'" json:"status"`
	Subtotal        decimal.Decimal     `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount       decimal.Decimal     `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount  decimal.Decimal     `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0" json:"discount_amount"`
	DiscountPercent decimal.Decimal     `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0" json:"discount_percent"`
	Total           decimal.Decimal     `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;not null" json:"payment_method"`
	AmountPaid      decimal.Decimal     `gorm:"column:amount_paid;type:numeric(12,2);not null" json:"amount_paid"`
	ChangeAmount    decimal.Decimal     `gorm:"column:change_amount;type:numeric(12,2);not null;default:0" json:"change_amount"`
	Notes           *string             `gorm:"column:notes" json:"notes,omitempty"`
	VoidReason      *string             `gorm:"column:void_reason" json:"void_reason,omitempty"`
	VoidedAt        *time.Time          `gorm:"column:voided_at" json:"voided_at,omitempty"`
	VoidedByID      *uuid.UUID          `gorm:"column:voided_by_id;type:uuid" json:"voided_by_id,omitempty"`
	Items           []SaleItem          `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// SaleItem snapshots product data at the moment of sale.
type SaleItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SaleID          uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index" json:"sale_id"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	ProductSKU      string          `gorm:"column:product_sku;not null" json:"product_sku"`
	ProductName     string          `gorm:"column:product_name;not null" json:"product_name"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null" json:"unit_price"`
	CostPrice       decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0" json:"cost_price"`
	TaxRate         decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,4);not null;default:0" json:"tax_rate"`
	Quantity        int             `gorm:"column:quantity;not null" json:"quantity"`
	DiscountPercent decimal.Decimal `gorm:"column:discount_percent;type:numeric(5,2);not null;default:0" json:"discount_percent"`
	DiscountAmount  decimal.Decimal `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0" json:"discount_amount"`
	Subtotal        decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null" json:"subtotal"`
	TaxAmount       decimal.Decimal `gorm:"column:tax_amount;type:numeric(12,2);not null;default:0" json:"tax_amount"`
	Total           decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	ReturnedQty     int             `gorm:"column:returned_qty;not null;default:0" json:"returned_qty"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
