package categories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
)

// Service manages the product category catalog.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Category, error)
	List(ctx context.Context, includeInactive bool) ([]models.Category, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*models.Category, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
}

// Actor identifies who performed a mutation.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}

// CreateInput is the payload to create a category.
type CreateInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateInput carries optional category changes.
type UpdateInput struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

type service struct {
	dbClient *db.Client
	recorder *audit.Recorder
}

// NewService constructs the category service.
func NewService(dbClient *db.Client, recorder *audit.Recorder) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{dbClient: dbClient, recorder: recorder}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.Category, error) {
	category := &models.Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Description: input.Description,
		IsActive:    true,
	}
	err := s.dbClient.DB().WithContext(ctx).Create(category).Error
	if db.IsUniqueViolation(err, "name") {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("category %q already exists", input.Name))
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating category")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionCreate,
		Entity:      "CATEGORY",
		EntityID:    &category.ID,
		Description: fmt.Sprintf("category %q created", category.Name),
		NewValues:   category,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return category, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := s.dbClient.DB().WithContext(ctx).First(&category, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading category")
	}
	return &category, nil
}

// List returns categories ordered by name. Inactive ones are hidden
// unless requested.
func (s *service) List(ctx context.Context, includeInactive bool) ([]models.Category, error) {
	query := s.dbClient.DB().WithContext(ctx).Order("name ASC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.Category
	if err := query.Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing categories")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*models.Category, error) {
	var category *models.Category
	var before models.Category
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.Category
		err := db.LockForUpdate(tx.WithContext(ctx)).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		if err != nil {
			return err
		}
		before = row

		if input.Name != nil {
			row.Name = *input.Name
		}
		if input.Description != nil {
			row.Description = input.Description
		}
		if input.IsActive != nil {
			row.IsActive = *input.IsActive
		}
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			if db.IsUniqueViolation(err, "name") {
				return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("category %q already exists", row.Name))
			}
			return err
		}
		category = &row
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating category")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionUpdate,
		Entity:      "CATEGORY",
		EntityID:    &id,
		Description: fmt.Sprintf("category %q updated", category.Name),
		OldValues:   before,
		NewValues:   category,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return category, nil
}

// Delete deactivates a category. It is refused while active products
// still reference it.
func (s *service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	var name string
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.Category
		err := db.LockForUpdate(tx.WithContext(ctx)).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		if err != nil {
			return err
		}
		name = row.Name

		var inUse int64
		if err := tx.WithContext(ctx).Model(&models.Product{}).
			Where("category_id = ? AND is_active = ?", id, true).
			Count(&inUse).Error; err != nil {
			return err
		}
		if inUse > 0 {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("category has %d active products", inUse))
		}

		return tx.WithContext(ctx).Model(&models.Category{}).
			Where("id = ?", id).
			Update("is_active", false).Error
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting category")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionDelete,
		Entity:      "CATEGORY",
		EntityID:    &id,
		Description: fmt.Sprintf("category %q deactivated", name),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return nil
}
