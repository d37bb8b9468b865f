package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed sql/*
var ddl embed.FS

const (
	// SQLiteFileName is the database file created inside the store path
	SQLiteFileName = "models.db"

	insertModelState = `INSERT INTO model_state (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = ?, updated_at = ?
	`

	selectModelState = `SELECT data FROM model_state WHERE key = ?`

	deleteModelState = `DELETE FROM model_state WHERE key = ?`
)

// SQLiteStore implements persistent storage in a single SQLite table
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite path not specified")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	b, err := ddl.ReadFile("sql/ddl.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("read schema creation file: %w", err)
	}
	if _, err := db.Exec(string(b)); err != nil {
		db.Close()
		return nil, fmt.Errorf("create database schema in %s: %w", path, err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get retrieves a value from the database
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(selectModelState, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("select model state: %w", err)
	}
	return data, true, nil
}

// Set upserts the value
func (s *SQLiteStore) Set(key string, value []byte) error {
	now := time.Now().UTC().Unix()
	if _, err := s.db.Exec(insertModelState, key, value, now, value, now); err != nil {
		return fmt.Errorf("upsert model state: %w", err)
	}
	return nil
}

// Delete removes the value
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(deleteModelState, key); err != nil {
		return fmt.Errorf("delete model state: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
