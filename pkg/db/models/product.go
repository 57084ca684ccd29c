package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a catalog item sold at the register.
//
// CurrentStock is derived from inventory movements and must only change
// through the inventory ledger, never through a plain product update.
type Product struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SKU          string          `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Barcode      *string         `gorm:"column:barcode;uniqueIndex" json:"barcode,omitempty"`
	Name         string          `gorm:"column:name;not null;index" json:"name"`
	Description  *string         `gorm:"column:description" json:"description,omitempty"`
	CategoryID   uuid.UUID       `gorm:"column:category_id;type:uuid;not null" json:"category_id"`
	Brand        *string         `gorm:"column:brand" json:"brand,omitempty"`
	Size         *string         `gorm:"column:size" json:"size,omitempty"`
	Color        *string         `gorm:"column:color" json:"color,omitempty"`
	SalePrice    decimal.Decimal `gorm:"column:sale_price;type:numeric(12,2);not null" json:"sale_price"`
	CostPrice    decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null;default:0" json:"cost_price"`
	TaxRate      decimal.Decimal `gorm:"column:tax_rate;type:numeric(5,4);not null;default:0" json:"tax_rate"`
	Unit         string          `gorm:"column:unit;not null;default:'unidad'" json:"unit"`
	ImageURL     *string         `gorm:"column:image_url" json:"image_url,omitempty"`
	MinStock     int             `gorm:"column:min_stock;not null;default:0" json:"min_stock"`
	CurrentStock int             `gorm:"column:current_stock;not null;default:0" json:"current_stock"`
	IsActive     bool            `gorm:"column:is_active;not null" json:"is_active"`
	Category     *Category       `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
