package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dromeroc/tiendapos-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email          string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	Username       string         `gorm:"column:username;not null;uniqueIndex" json:"username"`
	PasswordHash   string         `gorm:"column:password_hash;not null" json:"-"`
	FirstName      string         `gorm:"column:first_name;not null" json:"first_name"`
	LastName       string         `gorm:"column:last_name;not null" json:"last_name"`
	Role           enums.UserRole `gorm:"column:role;not null;default:'SELLER'" json:"role"`
	IsActive       bool           `gorm:"column:is_active;not null" json:"is_active"`
	FailedAttempts int            `gorm:"column:failed_attempts;not null;default:0" json:"failed_attempts"`
	LockedUntil    *time.Time     `gorm:"column:locked_until" json:"locked_until,omitempty"`
	LastLogin      *time.Time     `gorm:"column:last_login" json:"last_login,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
