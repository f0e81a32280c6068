package migrate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDir = "migrations"

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	require.NoError(t, ValidateDir(testDir))
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "create_orders.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.Error(t, ValidateDir(dir))
}

func TestValidateDirRejectsEmptyDir(t *testing.T) {
	require.Error(t, ValidateDir(t.TempDir()))
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Order Notes!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_order_notes.sql"), path)
	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationBumpsPastNewestVersion(t *testing.T) {
	dir := t.TempDir()
	future := "29991231235959_later.sql"
	require.NoError(t, os.WriteFile(filepath.Join(dir, future), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))

	path, err := CreateSQLMigration(dir, "next step")
	require.NoError(t, err)
	require.Equal(t, "30000101000000_next_step.sql", filepath.Base(path))
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260301090000_b.sql"), body, 0o644))
	require.ErrorContains(t, ValidateDir(dir), "duplicate")
}

func TestOrdersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join(testDir, "*_create_orders_table.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no orders migration file found")

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	content := string(data)

	for _, sub := range []string{
		"CREATE TABLE IF NOT EXISTS orders",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_payment_id",
		"FOREIGN KEY (vendor_id) REFERENCES vendors(id)",
		"DROP TABLE IF EXISTS orders",
	} {
		require.Contains(t, content, sub)
	}
}

func TestRunUpAndDownOnSQLite(t *testing.T) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx := context.Background()
	out := &bytes.Buffer{}
	require.NoError(t, Run(ctx, sqlDB, "sqlite", testDir, "up", out))
	require.Contains(t, out.String(), "create_outbox_events_table")

	for _, table := range []string{"users", "vendors", "products", "orders", "order_items", "outbox_events"} {
		require.True(t, conn.Migrator().HasTable(table), "missing table %s", table)
	}

	require.NoError(t, MigrateToVersion(ctx, sqlDB, "sqlite", testDir, "20260301090100"))
	require.False(t, conn.Migrator().HasTable("orders"))
	require.True(t, conn.Migrator().HasTable("products"))

	out.Reset()
	require.NoError(t, Run(ctx, sqlDB, "sqlite", testDir, "status", out))
	require.Contains(t, out.String(), "pending")
	require.Error(t, Run(ctx, sqlDB, "sqlite", testDir, "redo", nil))
}

func TestDialectFor(t *testing.T) {
	d, err := dialectFor("")
	require.NoError(t, err)
	require.Equal(t, goose.DialectPostgres, d)

	d, err = dialectFor("SQLite")
	require.NoError(t, err)
	require.Equal(t, goose.DialectSQLite3, d)

	_, err = dialectFor("mysql")
	require.Error(t, err)
}
