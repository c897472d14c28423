// Package localstore persists client state as JSON values under fixed keys
// in a local SQLite file.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/pos/internal/cart"
	_ "modernc.org/sqlite"
)

const (
	KeyCartItems        = "cartItems"
	KeyCurrentOrder     = "currentOrder"
	KeyCurrentSaleItems = "currentSaleItems"
)

const writeTimeout = 5 * time.Second

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

type Store struct {
	db *sql.DB
}

// Open opens or creates the store at path. ":memory:" keeps it in memory.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store %s: %w", path, err)
	}
	// ":memory:" databases live on a single connection
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create local store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value of key into dst. It reports false if key is absent.
func (s *Store) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Put stores v as JSON under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(raw), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// LoadLines returns the cart lines saved under key, nil if none.
func (s *Store) LoadLines(ctx context.Context, key string) ([]cart.Line, error) {
	var lines []cart.Line
	if _, err := s.Get(ctx, key, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// CartPersister saves cart snapshots under key.
func (s *Store) CartPersister(key string) cart.Persister {
	return &cartPersister{store: s, key: key}
}

type cartPersister struct {
	store *Store
	key   string
}

func (p *cartPersister) SaveLines(lines []cart.Line) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if len(lines) == 0 {
		return p.store.Put(ctx, p.key, []cart.Line{})
	}
	return p.store.Put(ctx, p.key, lines)
}
