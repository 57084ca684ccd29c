package db

import (
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockForUpdate adds a FOR UPDATE row lock on dialects that support it.
// sqlite serializes writers at the database level, so the clause is skipped.
func LockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// SetLocalLockTimeout bounds row-lock waits for the current transaction.
// Postgres only; SET LOCAL has no effect outside a transaction block.
func SetLocalLockTimeout(tx *gorm.DB, timeout time.Duration) error {
	if tx.Dialector.Name() != "postgres" || timeout <= 0 {
		return nil
	}
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", timeout.Milliseconds())
	return tx.Exec(stmt).Error
}
