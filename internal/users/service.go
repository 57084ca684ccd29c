package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/internal/audit"
	"github.com/dromeroc/tiendapos-backend/pkg/config"
	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
	"github.com/dromeroc/tiendapos-backend/pkg/enums"
	pkgerrors "github.com/dromeroc/tiendapos-backend/pkg/errors"
	"github.com/dromeroc/tiendapos-backend/pkg/pagination"
	"github.com/dromeroc/tiendapos-backend/pkg/security"
)

const tempPasswordLength = 12

// Service manages staff accounts. All operations here are admin-only;
// route middleware enforces the role.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateInput) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.User], error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*models.User, error)
	ResetPassword(ctx context.Context, actor Actor, id uuid.UUID) (string, error)
	ChangePassword(ctx context.Context, actor Actor, input ChangePasswordInput) error
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
}

// Actor identifies who performed a mutation.
type Actor struct {
	UserID    uuid.UUID
	IPAddress string
	UserAgent string
}

// CreateInput registers a staff account.
type CreateInput struct {
	Email     string         `json:"email" validate:"required,email,max=255"`
	Username  string         `json:"username" validate:"required,min=3,max=50"`
	Password  string         `json:"password" validate:"required,min=8,max=128"`
	FirstName string         `json:"first_name" validate:"required,min=1,max=100"`
	LastName  string         `json:"last_name" validate:"required,min=1,max=100"`
	Role      enums.UserRole `json:"role" validate:"required"`
}

// UpdateInput carries optional account changes. Passwords change through
// ResetPassword or ChangePassword, never here.
type UpdateInput struct {
	Email     *string         `json:"email" validate:"omitempty,email,max=255"`
	FirstName *string         `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string         `json:"last_name" validate:"omitempty,min=1,max=100"`
	Role      *enums.UserRole `json:"role"`
	IsActive  *bool           `json:"is_active"`
}

// ChangePasswordInput lets a user rotate their own password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// ListFilters narrow the account listing.
type ListFilters struct {
	Role            enums.UserRole
	IncludeInactive bool
}

type service struct {
	dbClient    *db.Client
	recorder    *audit.Recorder
	passwordCfg config.PasswordConfig
}

// NewService constructs the user service.
func NewService(dbClient *db.Client, recorder *audit.Recorder, passwordCfg config.PasswordConfig) (Service, error) {
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	return &service{dbClient: dbClient, recorder: recorder, passwordCfg: passwordCfg}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateInput) (*models.User, error) {
	if !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", input.Role))
	}
	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         input.Role,
		IsActive:     true,
	}
	if err := s.dbClient.DB().WithContext(ctx).Create(user).Error; err != nil {
		return nil, s.mapWriteError(err, "creating user")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionCreate,
		Entity:      "USER",
		EntityID:    &user.ID,
		Description: fmt.Sprintf("user %s created with role %s", user.Username, user.Role),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return user, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.dbClient.DB().WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}
	return &user, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.User], error) {
	var empty pagination.Page[models.User]
	conn := s.dbClient.DB().WithContext(ctx)

	filtered := func() *gorm.DB {
		query := conn.Model(&models.User{})
		if !filters.IncludeInactive {
			query = query.Where("is_active = ?", true)
		}
		if filters.Role != "" {
			query = query.Where("role = ?", filters.Role)
		}
		return query
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "counting users")
	}
	var rows []models.User
	if err := filtered().
		Order("username ASC").
		Offset(params.Offset()).
		Limit(params.Limit()).
		Find(&rows).Error; err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing users")
	}
	return pagination.NewPage(rows, total, params), nil
}

func (s *service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (*models.User, error) {
	if input.Role != nil && !input.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid role %q", *input.Role))
	}
	// Admins cannot demote or deactivate themselves; another admin must.
	if id == actor.UserID {
		if input.Role != nil && *input.Role != enums.UserRoleAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot change own role")
		}
		if input.IsActive != nil && !*input.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot deactivate own account")
		}
	}

	var user *models.User
	var before models.User
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.User
		err := db.LockForUpdate(tx.WithContext(ctx)).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		before = row

		if input.Email != nil {
			row.Email = *input.Email
		}
		if input.FirstName != nil {
			row.FirstName = *input.FirstName
		}
		if input.LastName != nil {
			row.LastName = *input.LastName
		}
		if input.Role != nil {
			row.Role = *input.Role
		}
		if input.IsActive != nil {
			row.IsActive = *input.IsActive
		}
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		user = &row
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err, "updating user")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionUpdate,
		Entity:      "USER",
		EntityID:    &id,
		Description: fmt.Sprintf("user %s updated", user.Username),
		OldValues:   auditView(before),
		NewValues:   auditView(*user),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return user, nil
}

// ResetPassword issues a temporary password and clears any lockout.
func (s *service) ResetPassword(ctx context.Context, actor Actor, id uuid.UUID) (string, error) {
	temp, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating password")
	}
	hash, err := security.HashPassword(temp, s.passwordCfg)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	var username string
	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.User
		err := db.LockForUpdate(tx.WithContext(ctx)).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		username = row.Username
		return tx.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"password_hash":   hash,
				"failed_attempts": 0,
				"locked_until":    nil,
			}).Error
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return "", typed
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resetting password")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionUpdate,
		Entity:      "USER",
		EntityID:    &id,
		Description: fmt.Sprintf("password reset for %s", username),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return temp, nil
}

// ChangePassword rotates the actor's own password after verifying the
// current one.
func (s *service) ChangePassword(ctx context.Context, actor Actor, input ChangePasswordInput) error {
	var user models.User
	err := s.dbClient.DB().WithContext(ctx).First(&user, "id = ?", actor.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading user")
	}

	ok, err := security.VerifyPassword(input.CurrentPassword, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password is incorrect")
	}

	hash, err := security.HashPassword(input.NewPassword, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}
	if err := s.dbClient.DB().WithContext(ctx).Model(&models.User{}).
		Where("id = ?", actor.UserID).
		Update("password_hash", hash).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "updating password")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionUpdate,
		Entity:      "USER",
		EntityID:    &actor.UserID,
		Description: "password changed",
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return nil
}

// Delete deactivates an account. Sales history referencing it stays.
func (s *service) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if id == actor.UserID {
		return pkgerrors.New(pkgerrors.CodeValidation, "cannot deactivate own account")
	}

	var username string
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		var row models.User
		err := db.LockForUpdate(tx.WithContext(ctx)).First(&row, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		if !row.IsActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "user is already inactive")
		}
		username = row.Username
		return tx.WithContext(ctx).Model(&models.User{}).
			Where("id = ?", id).
			Update("is_active", false).Error
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return typed
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deleting user")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:      &actor.UserID,
		Action:      enums.AuditActionDelete,
		Entity:      "USER",
		EntityID:    &id,
		Description: fmt.Sprintf("user %s deactivated", username),
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
	})
	return nil
}

func (s *service) mapWriteError(err error, message string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if db.IsUniqueViolation(err, "email") {
		return pkgerrors.New(pkgerrors.CodeConflict, "email already in use")
	}
	if db.IsUniqueViolation(err, "username") {
		return pkgerrors.New(pkgerrors.CodeConflict, "username already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}

// auditView strips the password hash from audit snapshots.
func auditView(user models.User) map[string]any {
	return map[string]any{
		"email":      user.Email,
		"username":   user.Username,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"role":       user.Role,
		"is_active":  user.IsActive,
	}
}
