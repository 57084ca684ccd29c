package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is an append-only record of a mutating operation.
type AuditLog struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID      *uuid.UUID      `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	Action      string          `gorm:"column:action;not null;index" json:"action"`
	Entity      string          `gorm:"column:entity;not null;index" json:"entity"`
	EntityID    *uuid.UUID      `gorm:"column:entity_id;type:uuid;index" json:"entity_id,omitempty"`
	Description *string         `gorm:"column:description" json:"description,omitempty"`
	OldValues   json.RawMessage `gorm:"column:old_values;type:jsonb" json:"old_values"`
	NewValues   json.RawMessage `gorm:"column:new_values;type:jsonb" json:"new_values"`
	IPAddress   *string         `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent   *string         `gorm:"column:user_agent" json:"user_agent,omitempty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
}
