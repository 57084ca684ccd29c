package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/internal/inventory"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
)

// Service manages the product catalog. Stock never changes here: catalog
// writes go through this service, stock changes go through the ledger.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetByBarcode(ctx context.Context, barcode string) (*models.Product, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Product], error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
}

// Actor identifies who performed a mutation.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}

// CreateInput is the payload to register a product. InitialStock, when
// positive, is received through an ENTRY movement so the ledger stays
// complete from day one.
type CreateInput struct {
	SKU          string          `json:"sku" validate:"required,min=1,max=50"`
	Barcode      *string         `json:"barcode" validate:"omitempty,min=1,max=50"`
	Name         string          `json:"name" validate:"required,min=1,max=200"`
	Description  *string         `json:"description" validate:"omitempty,max=1000"`
	CategoryID   uuid.UUID       `json:"category_id" validate:"required"`
	Brand        *string         `json:"brand" validate:"omitempty,max=100"`
	Size         *string         `json:"size" validate:"omitempty,max=50"`
	Color        *string         `json:"color" validate:"omitempty,max=50"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Unit         string          `json:"unit" validate:"omitempty,max=20"`
	ImageURL     *string         `json:"image_url" validate:"omitempty,url,max=500"`
	MinStock     int             `json:"min_stock" validate:"min=0"`
	InitialStock int             `json:"initial_stock" validate:"min=0"`
}

// UpdateInput carries optional catalog changes. CurrentStock is absent on
// purpose.
type UpdateInput struct {
	SKU         *string          `json:"sku" validate:"omitempty,min=1,max=50"`
	Barcode     *string          `json:"barcode" validate:"omitempty,min=1,max=50"`
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=1000"`
	CategoryID  *uuid.UUID       `json:"category_id"`
	Brand       *string          `json:"brand" validate:"omitempty,max=100"`
	Size        *string          `json:"size" validate:"omitempty,max=50"`
	Color       *string          `json:"color" validate:"omitempty,max=50"`
	SalePrice   *decimal.Decimal `json:"sale_price"`
	CostPrice   *decimal.Decimal `json:"cost_price"`
	TaxRate     *decimal.Decimal `json:"tax_rate"`
	Unit        *string          `json:"unit" validate:"omitempty,max=20"`
	ImageURL    *string          `json:"image_url" validate:"omitempty,url,max=500"`
	MinStock    *int             `json:"min_stock" validate:"omitempty,min=0"`
	IsActive    *bool            `json:"is_active"`
}

// ListFilters narrow the catalog listing. Search matches name, SKU, and
// barcode.
type ListFilters struct {
	Search          string
	CategoryID      *uuid.UUID
	IncludeInactive bool
	LowStockOnly    bool
}

type service struct {
	dbClient *db.Client
	recorder *audit.Recorder
}

// NewService constructs the product service.
func NewService(dbClient *db.Client, recorder *audit.Recorder) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{dbClient: dbClient, recorder: recorder}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Product, error) {
	if err := validatePrices(input.SalePrice, input.CostPrice, input.TaxRate); err != nil {
		return nil, err
	}
	if input.InitialStock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "initial_stock cannot be negative")
	}

	product := &models.Product{
		ID:          uuid.New(),
		SKU:         input.SKU,
		Barcode:     input.Barcode,
		Name:        input.Name,
		Description: input.Description,
		CategoryID:  input.CategoryID,
		Brand:       input.Brand,
		Size:        input.Size,
		Color:       input.Color,
		SalePrice:   input.SalePrice.Round(2),
		CostPrice:   input.CostPrice.Round(2),
		TaxRate:     input.TaxRate.Round(4),
		Unit:        input.Unit,
		ImageURL:    input.ImageURL,
		MinStock:    input.MinStock,
		IsActive:    true,
	}
	if product.Unit == "" {
		product.Unit = "unidad"
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var categories int64
		if err := tx.WithContext(ctx).Model(&models.Category{}).
			Where("id = ? AND is_active = ?", input.CategoryID, true).
			Count(&categories).Error; err != nil {
			return err
		}
		if categories == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}

		if err := tx.WithContext(ctx).Create(product).Error; err != nil {
			return err
		}
		if input.InitialStock > 0 {
			_, err := inventory.Apply(ctx, tx, inventory.ApplyInput{
				Product: product,
				ActorID: actor.UserID,
				Type:    enums.MovementTypeEntry,
				Delta:   input.InitialStock,
				Reason:  "stock inicial",
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err, "creating product")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionCreate,
		Entity:      "PRODUCT",
		EntityID:    &product.ID,
		Description: fmt.Sprintf("product %s created", product.SKU),
		NewValues:   product,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return product, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.dbClient.DB().WithContext(ctx).
		Preload("Category").
		First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	return &product, nil
}

// GetByBarcode is the register's scan path. Only active products resolve.
func (s *service) GetByBarcode(ctx context.Context, barcode string) (*models.Product, error) {
	if barcode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "barcode is required")
	}
	var product models.Product
	err := s.dbClient.DB().WithContext(ctx).
		Where("barcode = ? AND is_active = ?", barcode, true).
		First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no product with barcode %s", barcode))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product by barcode")
	}
	return &product, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Product], error) {
	var empty pagination.Page[models.Product]
	conn := s.dbClient.DB().WithContext(ctx)

	filtered := func() *gorm.DB {
		query := conn.Model(&models.Product{})
		if !filters.IncludeInactive {
			query = query.Where("is_active = ?", true)
		}
		if filters.CategoryID != nil {
			query = query.Where("category_id = ?", *filters.CategoryID)
		}
		if filters.LowStockOnly {
			query = query.Where("current_stock <= min_stock")
		}
		if filters.Search != "" {
			like := "%" + filters.Search + "%"
			query = query.Where("name LIKE ? OR sku LIKE ? OR barcode LIKE ?", like, like, like)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting products")
	}
	var rows []models.Product
	if err := filtered().
		Preload("Category").
		Order("name ASC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing products")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	var product *models.Product
	var before models.Product
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := inventory.LockProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		before = *row

		if input.CategoryID != nil && *input.CategoryID != row.CategoryID {
			var categories int64
			if err := tx.WithContext(ctx).Model(&models.Category{}).
				Where("id = ? AND is_active = ?", *input.CategoryID, true).
				Count(&categories).Error; err != nil {
				return err
			}
			if categories == 0 {
				return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
			}
			row.CategoryID = *input.CategoryID
		}
		applyUpdate(row, input)
		if err := validatePrices(row.SalePrice, row.CostPrice, row.TaxRate); err != nil {
			return err
		}

		if err := tx.WithContext(ctx).Save(row).Error; err != nil {
			return err
		}
		product = row
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err, "updating product")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionUpdate,
		Entity:      "PRODUCT",
		EntityID:    &id,
		Description: fmt.Sprintf("product %s updated", product.SKU),
		OldValues:   before,
		NewValues:   product,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return product, nil
}

// Delete deactivates a product. History referencing it stays intact.
func (s *service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	var sku string
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		row, err := inventory.LockProduct(ctx, tx, id)
		if err != nil {
			return err
		}
		if !row.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is already inactive")
		}
		sku = row.SKU
		return tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", id).
			Update("is_active", false).Error
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting product")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionDelete,
		Entity:      "PRODUCT",
		EntityID:    &id,
		Description: fmt.Sprintf("product %s deactivated", sku),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return nil
}

func (s *service) mapWriteError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsUniqueViolation(err, "sku") {
		return pkgerrors.New(pkgerrors.CodeConflict, "a product with that SKU already exists")
	}
	if db.IsUniqueViolation(err, "barcode") {
		return pkgerrors.New(pkgerrors.CodeConflict, "a product with that barcode already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

func applyUpdate(row *models.Product, input UpdateInput) {
	if input.SKU != nil {
		row.SKU = *input.SKU
	}
	if input.Barcode != nil {
		row.Barcode = input.Barcode
	}
	if input.Name != nil {
		row.Name = *input.Name
	}
	if input.Description != nil {
		row.Description = input.Description
	}
	if input.Brand != nil {
		row.Brand = input.Brand
	}
	if input.Size != nil {
		row.Size = input.Size
	}
	if input.Color != nil {
		row.Color = input.Color
	}
	if input.SalePrice != nil {
		row.SalePrice = input.SalePrice.Round(2)
	}
	if input.CostPrice != nil {
		row.CostPrice = input.CostPrice.Round(2)
	}
	if input.TaxRate != nil {
		row.TaxRate = input.TaxRate.Round(4)
	}
	if input.Unit != nil {
		row.Unit = *input.Unit
	}
	if input.ImageURL != nil {
		row.ImageURL = input.ImageURL
	}
	if input.MinStock != nil {
		row.MinStock = *input.MinStock
	}
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}
}

func validatePrices(salePrice, costPrice, taxRate decimal.Decimal) error {
	if salePrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "sale_price cannot be negative")
	}
	if costPrice.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost_price cannot be negative")
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "tax_rate must be between 0 and 1")
	}
	return nil
}
