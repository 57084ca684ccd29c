package migrate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestValidateDirAcceptsWellFormedMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20250101120000_create_products.sql", "-- +goose Up\nCREATE TABLE products (id uuid);\n-- +goose Down\nDROP TABLE products;\n")
	writeMigration(t, dir, "20250102120000_create_sales.sql", "-- +goose Up\nCREATE TABLE sales (id uuid);\n-- +goose Down\nDROP TABLE sales;\n")

	assert.NoError(t, ValidateDir(dir))
}

func TestValidateDirEmptyIsAllowed(t *testing.T) {
	assert.NoError(t, ValidateDir(t.TempDir()))
}

func TestValidateDirRequiresDir(t *testing.T) {
	require.Error(t, ValidateDir(""))
}

func TestValidateDirReportsAllProblems(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "bad-name.sql", "-- +goose Up\n-- +goose Down\n")
	writeMigration(t, dir, "20250101120000_missing_down.sql", "-- +goose Up\nSELECT 1;\n")
	writeMigration(t, dir, "20250102120000_missing_up.sql", "-- +goose Down\nSELECT 1;\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
	assert.Contains(t, err.Error(), "missing \"-- +goose Down\"")
	assert.Contains(t, err.Error(), "missing \"-- +goose Up\"")
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20250101120000_first.sql", "-- +goose Up\n-- +goose Down\n")
	writeMigration(t, dir, "20250101120000_second.sql", "-- +goose Up\n-- +goose Down\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version 20250101120000")
}
