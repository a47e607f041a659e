package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions is used when creating the database directory.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore keeps receipts and dedup records in a SQLite file.
type SQLiteStore struct {
	*sqlStore
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the SQLite file named by the DSN option.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := ApplyOptions(opts...)
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := openSQL(sqliteDialect, cfg.DSN, sqliteMigrations, func(db *sql.DB) {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("SQLiteStore opened", "path", cfg.DSN)
	return &SQLiteStore{s}, nil
}
