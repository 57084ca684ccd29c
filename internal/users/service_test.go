package users

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/pkg/config"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/logger"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
	"github.com/dromeroc/tiendapos-backend/pkg/security"
)

func testPasswordConfig() config.PasswordConfig {
	// Low-cost parameters keep the argon2 hashing fast in tests.
	return config.PasswordConfig{
		ArgonMemoryKB:    8,
		ArgonTime:        1,
		ArgonParallelism: 1,
		ArgonSaltLen:     16,
		ArgonKeyLen:      32,
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.User{}, &models.AuditLog{}); err != nil {
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
	svc, err := NewService(db.NewFromConn(conn), recorder, testPasswordConfig())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func baseInput() CreateInput {
	suffix := uuid.NewString()[:8]
	return CreateInput{
		Email:     "seller-" + suffix + "@tienda.cl",
		Username:  "seller_" + suffix,
		Password:  "correct horse battery",
		FirstName: "Ana",
		LastName:  "Rojas",
		Role:      enums.UserRoleSeller,
	}
}

func TestCreateHashesPasswordAndConflicts(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	actor := Actor{UserID: uuid.New()}
	ctx := context.Background()

	input := baseInput()
	user, err := svc.Create(ctx, actor, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.PasswordHash == input.Password {
		t.Fatalf("password stored in clear")
	}
	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify: ok=%v err=%v", ok, err)
	}

	dup := baseInput()
	dup.Username = input.Username
	_, err = svc.Create(ctx, actor, dup)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected CONFLICT for duplicate username, got %v", err)
	}
}

func TestUpdateGuardsSelfDemotion(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	adminInput := baseInput()
	adminInput.Role = enums.UserRoleAdmin
	admin, err := svc.Create(ctx, Actor{UserID: uuid.New()}, adminInput)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	self := Actor{UserID: admin.ID}

	seller := enums.UserRoleSeller
	_, err = svc.Update(ctx, self, admin.ID, UpdateInput{Role: &seller})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for self-demotion, got %v", err)
	}

	inactive := false
	_, err = svc.Update(ctx, self, admin.ID, UpdateInput{IsActive: &inactive})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for self-deactivation, got %v", err)
	}

	name := "Anita"
	updated, err := svc.Update(ctx, self, admin.ID, UpdateInput{FirstName: &name})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.FirstName != name {
		t.Fatalf("unexpected user: %+v", updated)
	}
}

func TestResetPasswordClearsLockout(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	actor := Actor{UserID: uuid.New()}
	ctx := context.Background()

	user, err := svc.Create(ctx, actor, baseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := conn.Model(&models.User{}).Where("id = ?", user.ID).
		Update("failed_attempts", 5).Error; err != nil {
		t.Fatalf("seed failed attempts: %v", err)
	}

	temp, err := svc.ResetPassword(ctx, actor, user.ID)
	if err != nil {
		t.Fatalf("reset password: %v", err)
	}
	if len(temp) != 12 {
		t.Fatalf("unexpected temp password length %d", len(temp))
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if reloaded.FailedAttempts != 0 || reloaded.LockedUntil != nil {
		t.Fatalf("lockout not cleared: %+v", reloaded)
	}
	ok, err := security.VerifyPassword(temp, reloaded.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("temp password does not verify: ok=%v err=%v", ok, err)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()

	input := baseInput()
	user, err := svc.Create(ctx, Actor{UserID: uuid.New()}, input)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	self := Actor{UserID: user.ID}

	err = svc.ChangePassword(ctx, self, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "new password 99"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}

	if err := svc.ChangePassword(ctx, self, ChangePasswordInput{
		CurrentPassword: input.Password,
		NewPassword:     "new password 99",
	}); err != nil {
		t.Fatalf("change password: %v", err)
	}

	var reloaded models.User
	if err := conn.First(&reloaded, "id = ?", user.ID).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	ok, err := security.VerifyPassword("new password 99", reloaded.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("new password does not verify: ok=%v err=%v", ok, err)
	}
}

func TestDeleteGuardsAndDeactivates(t *testing.T) {
	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	actor := Actor{UserID: uuid.New()}

	user, err := svc.Create(ctx, actor, baseInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = svc.Delete(ctx, Actor{UserID: user.ID}, user.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR for self-delete, got %v", err)
	}

	if err := svc.Delete(ctx, actor, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = svc.Delete(ctx, actor, user.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected STATE_CONFLICT on repeat delete, got %v", err)
	}

	page, err := svc.List(ctx, ListFilters{}, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 0 {
		t.Fatalf("expected deactivated user hidden, got %d", page.Total)
	}
}
