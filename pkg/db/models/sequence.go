package models

import (
	"time"

	"github.com/google/uuid"
)

// Sequence backs gapless document numbering (receipts). Rows are
// incremented under a row lock inside the caller's transaction.
type Sequence struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Prefix       string    `gorm:"column:prefix;not null;default:''" json:"prefix"`
	CurrentValue int64     `gorm:"column:current_value;not null;default:0" json:"current_value"`
	Padding      int       `gorm:"column:padding;not null" json:"padding"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
