package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
)

// Service exposes manual stock operations and inventory read paths.
type Service interface {
	Entry(ctx context.Context, actor Actor, productID uuid.UUID, input EntryInput) (*models.InventoryMovement, error)
	Adjust(ctx context.Context, actor Actor, productID uuid.UUID, input AdjustInput) (*models.InventoryMovement, error)
	Movements(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[models.InventoryMovement], error)
	LowStock(ctx context.Context) ([]models.Product, error)
	Report(ctx context.Context) (*Report, error)
}

// Actor identifies who performed a mutation, for the audit trail.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}

// EntryInput receives new stock into the store.
type EntryInput struct {
	Quantity int    `json:"quantity" validate:"required,min=1"`
	Reason   string `json:"reason" validate:"required,min=3,max=500"`
}

// AdjustInput sets an absolute stock level after a physical count.
type AdjustInput struct {
	NewStock int    `json:"new_stock" validate:"min=0"`
	Reason   string `json:"reason" validate:"required,min=3,max=500"`
}

// Report summarizes the valuation and health of the inventory.
type Report struct {
	TotalProducts   int64           `json:"total_products"`
	TotalStockUnits int64           `json:"total_stock_units"`
	CostValue       decimal.Decimal `json:"cost_value"`
	SaleValue       decimal.Decimal `json:"sale_value"`
	LowStockCount   int64           `json:"low_stock_count"`
	OutOfStockCount int64           `json:"out_of_stock_count"`
}

type service struct {
	dbClient *db.Client
	recorder *audit.Recorder
}

// NewService constructs the inventory service.
func NewService(dbClient *db.Client, recorder *audit.Recorder) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{dbClient: dbClient, recorder: recorder}, nil
}

// Entry receives stock and records an ENTRY movement.
func (s *service) Entry(ctx context.Context, actor Actor, productID uuid.UUID, input EntryInput) (*models.InventoryMovement, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var movement *models.InventoryMovement
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := LockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		movement, err = Apply(ctx, tx, ApplyInput{
			Product: product,
			ActorID: actor.UserID,
			Type:    enums.MovementTypeEntry,
			Delta:   input.Quantity,
			Reason:  input.Reason,
		})
		return err
	})
	if err != nil {
		return nil, asServiceError(err, "recording stock entry")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionStockEntry,
		Entity:      "PRODUCT",
		EntityID:    &productID,
		Description: input.Reason,
		NewValues:   movement,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return movement, nil
}

// Adjust reconciles stock to an absolute level via an ADJUSTMENT movement.
func (s *service) Adjust(ctx context.Context, actor Actor, productID uuid.UUID, input AdjustInput) (*models.InventoryMovement, error) {
	if input.NewStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "new_stock cannot be negative")
	}

	var movement *models.InventoryMovement
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := LockProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		delta := input.NewStock - product.CurrentStock
		if delta == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "new_stock equals current stock")
		}
		movement, err = Apply(ctx, tx, ApplyInput{
			Product: product,
			ActorID: actor.UserID,
			Type:    enums.MovementTypeAdjustment,
			Delta:   delta,
			Reason:  input.Reason,
		})
		return err
	})
	if err != nil {
		return nil, asServiceError(err, "recording stock adjustment")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionStockAdjust,
		Entity:      "PRODUCT",
		EntityID:    &productID,
		Description: input.Reason,
		NewValues:   movement,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return movement, nil
}

// Movements lists the kardex for a product, newest first.
func (s *service) Movements(ctx context.Context, productID uuid.UUID, params pagination.Params) (pagination.Page[models.InventoryMovement], error) {
	var empty pagination.Page[models.InventoryMovement]
	conn := s.dbClient.DB().WithContext(ctx)

	var exists int64
	if err := conn.Model(&models.Product{}).Where("id = ?", productID).Count(&exists).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checking product")
	}
	if exists == 0 {
		return empty, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", productID))
	}

	filtered := func() *gorm.DB {
		return conn.Model(&models.InventoryMovement{}).Where("product_id = ?", productID)
	}
	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting movements")
	}
	var rows []models.InventoryMovement
	if err := filtered().
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing movements")
	}
	return pagination.NewPage(rows, total, params), nil
}

// LowStock lists active products at or below their minimum stock.
func (s *service) LowStock(ctx context.Context) ([]models.Product, error) {
	var rows []models.Product
	err := s.dbClient.DB().WithContext(ctx).
		Where("is_active = ?", true).
		Where("current_stock <= min_stock").
		Order("current_stock ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing low stock")
	}
	return rows, nil
}

// Report aggregates stock counts and valuation over active products.
func (s *service) Report(ctx context.Context) (*Report, error) {
	conn := s.dbClient.DB().WithContext(ctx)
	active := func() *gorm.DB {
		return conn.Model(&models.Product{}).Where("is_active = ?", true)
	}

	var report Report
	if err := active().Count(&report.TotalProducts).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting products")
	}

	var totals struct {
		Units     int64
		CostValue decimal.Decimal
		SaleValue decimal.Decimal
	}
	err := active().
		Select("COALESCE(SUM(current_stock), 0) AS units, " +
			"COALESCE(SUM(cost_price * current_stock), 0) AS cost_value, " +
			"COALESCE(SUM(sale_price * current_stock), 0) AS sale_value").
		Scan(&totals).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "computing valuation")
	}
	report.TotalStockUnits = totals.Units
	report.CostValue = totals.CostValue.Round(2)
	report.SaleValue = totals.SaleValue.Round(2)

	if err := active().Where("current_stock <= min_stock").Count(&report.LowStockCount).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting low stock")
	}
	if err := active().Where("current_stock <= 0").Count(&report.OutOfStockCount).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting out of stock")
	}
	return &report, nil
}

func asServiceError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
