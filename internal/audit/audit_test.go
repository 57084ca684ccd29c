package audit

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestRecorderPersistsEntry(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	rec, err := NewRecorder(repo, newTestLogger())
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	userID := uuid.New()
	entityID := uuid.New()
	rec.Record(context.Background(), Entry{
		UserID:      &userID,
		Action:      enums.AuditActionSale,
		Entity:      "SALE",
		EntityID:    &entityID,
		Description: "sale completed",
		NewValues:   map[string]any{"total": "1190.00"},
		IPAddress:   "10.0.0.1",
		UserAgent:   "register/1.0",
	})

	var row models.AuditLog
	if err := db.First(&row).Error; err != nil {
		t.Fatalf("load audit row: %v", err)
	}
	if row.Action != "SALE" || row.Entity != "SALE" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.UserID == nil || *row.UserID != userID {
		t.Fatal("user id not persisted")
	}
	if len(row.NewValues) == 0 {
		t.Fatal("new values not persisted")
	}
}

func TestListFiltersAndPaginates(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userA := uuid.New()
	userB := uuid.New()
	for i := 0; i < 3; i++ {
		if err := repo.Create(ctx, &models.AuditLog{
			ID:     uuid.New(),
			UserID: &userA,
			Action: "CREATE",
			Entity: "PRODUCT",
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := repo.Create(ctx, &models.AuditLog{
		ID:     uuid.New(),
		UserID: &userB,
		Action: "VOID",
		Entity: "SALE",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rows, total, err := repo.List(ctx, ListFilters{UserID: &userA}, pagination.Params{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected total 3, got %d", total)
	}
	if len(rows) != 2 {
		t.Fatalf("expected page of 2, got %d", len(rows))
	}

	rows, total, err = repo.List(ctx, ListFilters{Action: "VOID", Entity: "SALE"}, pagination.Params{})
	if err != nil {
		t.Fatalf("list voids: %v", err)
	}
	if total != 1 || len(rows) != 1 {
		t.Fatalf("expected single void row, got total=%d len=%d", total, len(rows))
	}

	future := time.Now().Add(time.Hour)
	_, total, err = repo.List(ctx, ListFilters{StartDate: &future}, pagination.Params{})
	if err != nil {
		t.Fatalf("list future: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no rows after future start date, got %d", total)
	}
}
