package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
)

// Entry describes one auditable action.
type Entry struct {
	UserID      *uuid.UUID
	Action      enums.AuditAction
	Entity      string
	EntityID    *uuid.UUID
	Description string
	OldValues   any
	NewValues   any
	IPAddress   string
	UserAgent   string
}

// ListFilters narrow the audit trail listing.
type ListFilters struct {
	UserID    *uuid.UUID
	Action    string
	Entity    string
	StartDate *time.Time
	EndDate   *time.Time
}

// Repository persists and queries audit log rows.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create appends one audit row.
func (r *Repository) Create(ctx context.Context, row *models.AuditLog) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// List returns audit rows newest first with the given filters.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.AuditLog, int64, error) {
	filtered := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.AuditLog{})
		if filters.UserID != nil {
			query = query.Where("user_id = ?", *filters.UserID)
		}
		if filters.Action != "" {
			query = query.Where("action = ?", filters.Action)
		}
		if filters.Entity != "" {
			query = query.Where("entity = ?", filters.Entity)
		}
		if filters.StartDate != nil {
			query = query.Where("created_at >= ?", *filters.StartDate)
		}
		if filters.EndDate != nil {
			query = query.Where("created_at <= ?", *filters.EndDate)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AuditLog
	if err := filtered().
		Order("created_at DESC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Recorder writes audit entries best-effort, after the mutating
// transaction has committed. Failures are logged, never propagated.
type Recorder struct {
	repo *Repository
	logg *logger.Logger
}

// NewRecorder constructs an audit recorder.
func NewRecorder(repo *Repository, logg *logger.Logger) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Recorder{repo: repo, logg: logg}, nil
}

// Record persists the entry outside any caller transaction.
func (rec *Recorder) Record(ctx context.Context, entry Entry) {
	row := &models.AuditLog{
		ID:       uuid.New(),
		UserID:   entry.UserID,
		Action:   entry.Action.String(),
		Entity:   entry.Entity,
		EntityID: entry.EntityID,
	}
	if entry.Description != "" {
		row.Description = &entry.Description
	}
	if entry.IPAddress != "" {
		row.IPAddress = &entry.IPAddress
	}
	if entry.UserAgent != "" {
		row.UserAgent = &entry.UserAgent
	}
	row.OldValues = marshalValues(ctx, rec.logg, entry.OldValues)
	row.NewValues = marshalValues(ctx, rec.logg, entry.NewValues)

	if err := rec.repo.Create(ctx, row); err != nil {
		fields := map[string]any{"action": row.Action, "entity": row.Entity}
		rec.logg.Error(rec.logg.WithFields(ctx, fields), "audit.record.failed", err)
	}
}

func marshalValues(ctx context.Context, logg *logger.Logger, values any) json.RawMessage {
	if values == nil {
		return nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		logg.Warn(ctx, "audit.marshal.failed")
		return nil
	}
	return raw
}
