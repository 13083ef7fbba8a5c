package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/notekit/notekit/internal/config"
	"github.com/notekit/notekit/internal/logger"
)

type DB struct {
	conn *sql.DB
	cfg  *config.Config
}

func New(cfg *config.Config) (*DB, error) {
	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.GetDatabasePath())
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	logger.Debug("Database path: %s", cfg.GetDatabasePath())

	conn, err := sql.Open("sqlite3", cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection keeps
	// concurrent transactions from tripping over each other's file locks.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

func (db *DB) initialize() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			is_deleted BOOLEAN NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL DEFAULT 'system',
			updated_by TEXT NOT NULL DEFAULT 'system',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notes table: %w", err)
	}

	// Covers the active-row filter used by list, search and stats.
	_, err = db.conn.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notes_is_deleted ON notes(is_deleted)
	`)
	if err != nil {
		return fmt.Errorf("failed to create notes index: %w", err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) Conn() *sql.DB {
	return db.conn
}
