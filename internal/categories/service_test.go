package categories

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:categories_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Category{}, &models.Product{}, &models.AuditLog{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	recorder, err := audit.NewRecorder(audit.NewRepository(conn), logg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	svc, err := NewService(db.NewFromConn(conn), recorder)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateAndDuplicateName(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	actor := Actor{UserID: uuid.New()}
	ctx := context.Background()

	created, err := svc.Create(ctx, actor, CreateInput{Name: "Bebidas"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.IsActive {
		t.Fatalf("expected new category active")
	}

	_, err = svc.Create(ctx, actor, CreateInput{Name: "Bebidas"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestListHidesInactiveByDefault(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	actor := Actor{UserID: uuid.New()}
	ctx := context.Background()

	if _, err := svc.Create(ctx, actor, CreateInput{Name: "Abarrotes"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	hidden, err := svc.Create(ctx, actor, CreateInput{Name: "Descontinuados"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, actor, hidden.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	active, err := svc.List(ctx, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].Name != "Abarrotes" {
		t.Fatalf("unexpected active list: %+v", active)
	}

	all, err := svc.List(ctx, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(all))
	}
}

func TestUpdateRenamesAndToggles(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	actor := Actor{UserID: uuid.New()}
	ctx := context.Background()

	created, err := svc.Create(ctx, actor, CreateInput{Name: "Lacteos"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "Lácteos y Huevos"
	inactive := false
	updated, err := svc.Update(ctx, actor, created.ID, UpdateInput{Name: &name, IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != name || updated.IsActive {
		t.Fatalf("unexpected category: %+v", updated)
	}

	_, err = svc.Update(ctx, actor, uuid.New(), UpdateInput{Name: &name})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDeleteBlockedByActiveProducts(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	actor := Actor{UserID: uuid.New()}
	ctx := context.Background()

	category, err := svc.Create(ctx, actor, CreateInput{Name: "Snacks"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	product := &models.Product{
		ID:         uuid.New(),
		SKU:        "SKU-" + uuid.NewString(),
		Name:       "Papas Fritas",
		CategoryID: category.ID,
		SalePrice:  decimal.RequireFromString("1500.00"),
		Unit:       "unidad",
		IsActive:   true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}

	err = svc.Delete(ctx, actor, category.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT while products reference it, got %v", err)
	}

	if err := conn.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}
	if err := svc.Delete(ctx, actor, category.ID); err != nil {
		t.Fatalf("delete after deactivating products: %v", err)
	}

	reloaded, err := svc.Get(ctx, category.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.IsActive {
		t.Fatalf("expected category inactive after delete")
	}
}
