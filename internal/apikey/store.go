package apikey

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"strings"
	"sync"
)

// NOTE: PostgresStore assumes:
//
//	api_keys (
//	  app_name TEXT NOT NULL,
//	  key TEXT NOT NULL UNIQUE
//	)

const maxKeyLen = 256

// PostgresStore resolves application keys sent in the API key header.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Lookup returns the app name registered for key. Unknown keys are not an error.
func (s *PostgresStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLen {
		return "", false, nil
	}

	const q = `
SELECT app_name
FROM api_keys
WHERE key = $1
LIMIT 1
`
	var app string
	if err := s.db.QueryRowContext(ctx, q, key).Scan(&app); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return app, true, nil
}

// MemoryStore is an in-memory key table useful for tests and local runs.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]string)}
}

func (s *MemoryStore) Put(appName, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = appName
}

func (s *MemoryStore) Lookup(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLen {
		return "", false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, app := range s.keys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return app, true, nil
		}
	}
	return "", false, nil
}
