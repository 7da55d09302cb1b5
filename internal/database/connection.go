package database

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/gocrm-io/gocrm-ce/internal/config"
)

var (
	db   *sql.DB
	dbMu sync.RWMutex
)

// ErrNotConnected is returned when the shared handle was never initialized.
var ErrNotConnected = errors.New("database not connected")

// Connect opens the PostgreSQL pool described by cfg and installs it as the
// shared handle.
func Connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	conn, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	if cfg.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	SetDB(conn)
	return conn, nil
}

// GetDB returns the shared database handle.
func GetDB() (*sql.DB, error) {
	dbMu.RLock()
	defer dbMu.RUnlock()
	if db == nil {
		return nil, ErrNotConnected
	}
	return db, nil
}

// SetDB swaps the shared handle; tests use this to install sqlmock.
func SetDB(conn *sql.DB) {
	dbMu.Lock()
	defer dbMu.Unlock()
	db = conn
}
