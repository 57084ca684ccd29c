package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/pkg/db"
	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
)

// Generator hands out gapless document numbers. Next must run inside the
// caller's transaction so a rollback also rolls the increment back.
type Generator struct {
	defaults map[string]Defaults
}

// Defaults seed a sequence row the first time a name is used.
type Defaults struct {
	Prefix  string
	Padding int
}

// NewGenerator builds a generator with per-sequence seed defaults.
func NewGenerator(defaults map[string]Defaults) *Generator {
	if defaults == nil {
		defaults = map[string]Defaults{}
	}
	return &Generator{defaults: defaults}
}

// Next locks the named sequence row, increments it, and returns the
// formatted number. The row is created lazily on first use.
func (g *Generator) Next(ctx context.Context, tx *gorm.DB, name string) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("sequence name is required")
	}

	var seq models.Sequence
	err := db.LockForUpdate(tx.WithContext(ctx)).
		First(&seq, "name = ?", name).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		defaults := g.defaults[name]
		seq = models.Sequence{
			ID:           uuid.New(),
			Name:         name,
			Prefix:       defaults.Prefix,
			CurrentValue: 0,
			Padding:      defaults.Padding,
		}
		if seq.Padding <= 0 {
			seq.Padding = 8
		}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			return "", fmt.Errorf("creating sequence %q: %w", name, err)
		}
		// Re-acquire under lock so concurrent first uses serialize.
		if err := db.LockForUpdate(tx.WithContext(ctx)).
			First(&seq, "name = ?", name).Error; err != nil {
			return "", fmt.Errorf("locking sequence %q: %w", name, err)
		}
	case err != nil:
		return "", fmt.Errorf("locking sequence %q: %w", name, err)
	}

	seq.CurrentValue++
	if err := tx.WithContext(ctx).Model(&models.Sequence{}).
		Where("id = ?", seq.ID).
		Update("current_value", seq.CurrentValue).Error; err != nil {
		return "", fmt.Errorf("incrementing sequence %q: %w", name, err)
	}

	return Format(seq.Prefix, seq.CurrentValue, seq.Padding), nil
}

// Format renders a sequence value as prefix plus zero-padded number.
func Format(prefix string, value int64, padding int) string {
	if padding <= 0 {
		return fmt.Sprintf("%s%d", prefix, value)
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, value)
}
