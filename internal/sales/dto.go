package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dromeroc/tiendapos-backend/pkg/enums"
)

// CreateSaleInput is the validated payload to register a sale.
type CreateSaleInput struct {
	Items           []SaleItemInput     `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required"`
	AmountPaid      decimal.Decimal     `json:"amount_paid"`
	DiscountPercent decimal.Decimal     `json:"discount_percent"`
	Notes           string              `json:"notes" validate:"max=1000"`
}

// SaleItemInput is one line of a sale request.
type SaleItemInput struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	Quantity        int             `json:"quantity" validate:"required,min=1"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// VoidInput cancels a completed sale.
type VoidInput struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// ReturnInput processes a partial or full return against a sale.
type ReturnInput struct {
	Reason string            `json:"reason" validate:"required,min=3,max=500"`
	Items  []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
}

// ReturnItemInput identifies one sale line and the quantity coming back.
type ReturnItemInput struct {
	SaleItemID uuid.UUID `json:"sale_item_id" validate:"required"`
	Quantity   int       `json:"quantity" validate:"required,min=1"`
}

// ListFilters narrow the sales listing.
type ListFilters struct {
	Status    enums.SaleStatus
	UserID    *uuid.UUID
	StartDate *time.Time
	EndDate   *time.Time
}
