package sequence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dromeroc/tiendapos-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:seq_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Sequence{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestNextCreatesAndIncrements(t *testing.T) {
	db := newTestDB(t)
	gen := NewGenerator(map[string]Defaults{
		"receipt": {Prefix: "R", Padding: 8},
	})
	ctx := context.Background()

	var first, second string
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = gen.Next(ctx, tx, "receipt")
		return err
	}); err != nil {
		t.Fatalf("first next: %v", err)
	}
	if first != "R00000001" {
		t.Fatalf("expected R00000001, got %q", first)
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = gen.Next(ctx, tx, "receipt")
		return err
	}); err != nil {
		t.Fatalf("second next: %v", err)
	}
	if second != "R00000002" {
		t.Fatalf("expected R00000002, got %q", second)
	}
}

func TestNextRollsBackWithTransaction(t *testing.T) {
	db := newTestDB(t)
	gen := NewGenerator(nil)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := gen.Next(ctx, tx, "receipt"); err != nil {
			return err
		}
		return context.Canceled
	})
	if err == nil {
		t.Fatal("expected transaction error")
	}

	var issued string
	if txErr := db.Transaction(func(tx *gorm.DB) error {
		var err error
		issued, err = gen.Next(ctx, tx, "receipt")
		return err
	}); txErr != nil {
		t.Fatalf("next after rollback: %v", txErr)
	}
	if issued != "00000001" {
		t.Fatalf("rolled-back increment should not consume a number, got %q", issued)
	}
}

func TestNextUsesUnknownNameDefaults(t *testing.T) {
	db := newTestDB(t)
	gen := NewGenerator(nil)
	ctx := context.Background()

	var got string
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		got, err = gen.Next(ctx, tx, "quote")
		return err
	}); err != nil {
		t.Fatalf("next: %v", err)
	}
	if got != "00000001" {
		t.Fatalf("expected default padding 8 with no prefix, got %q", got)
	}
}

func TestFormat(t *testing.T) {
	if got := Format("R", 42, 8); got != "R00000042" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := Format("", 7, 0); got != "7" {
		t.Fatalf("unexpected format %q", got)
	}
}
