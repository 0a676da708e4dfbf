package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// sqliteBusyTimeout is the number of milliseconds a writer waits on a locked
// database file before giving up.
const sqliteBusyTimeout = 5000

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// sqliteDSN resolves the connection string for cfg. Every in-memory database
// gets its own name so handles opened by different callers never share data.
func sqliteDSN(cfg Config) (string, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn, nil
	}

	if sqliteInMemory(cfg) {
		return fmt.Sprintf("file:introhub-%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString()), nil
	}

	path := strings.TrimSpace(cfg.Path)
	if err := ensureDir(path); err != nil {
		return "", fmt.Errorf("create sqlite directory: %w", err)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", filepath.ToSlash(path), sqliteBusyTimeout), nil
}

// sqliteInMemory reports whether cfg selects a private in-memory database.
func sqliteInMemory(cfg Config) bool {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:")
	}
	path := strings.TrimSpace(cfg.Path)
	return path == "" || strings.EqualFold(path, ":memory:")
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
