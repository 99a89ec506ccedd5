package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/raine/vintifi/internal/session"
)

var _ session.Store = (*SQLiteStore)(nil)

// GetValue returns the decrypted value for key. Expired entries read as
// missing.
func (s *SQLiteStore) GetValue(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	var expiresAt int64
	err := s.db.QueryRow("SELECT value, expires_at FROM kv WHERE key = ?", key).Scan(&encrypted, &expiresAt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query value: %w", err)
	}
	if expiresAt > 0 && expiresAt <= s.now().Unix() {
		return "", false, nil
	}

	plain, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plain), true, nil
}

// SetValue stores value under key. A zero ttl never expires.
func (s *SQLiteStore) SetValue(key, value string, ttl time.Duration) error {
	encrypted, err := Encrypt([]byte(value), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt value: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).Unix()
	}
	_, err = s.db.Exec(`
		INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at
	`, key, encrypted, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save value: %w", err)
	}
	return nil
}

// DeleteValue removes key.
func (s *SQLiteStore) DeleteValue(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete value: %w", err)
	}
	return nil
}

// PruneExpired deletes entries that expired before now and returns how
// many were removed.
func (s *SQLiteStore) PruneExpired(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM kv WHERE expires_at > 0 AND expires_at <= ?", now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired values: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// GetOptimiseCache returns a cached optimisation result (JSON) for the item
// hash, or "" when there is none.
func (s *SQLiteStore) GetOptimiseCache(itemHash string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result string
	err := s.db.QueryRow("SELECT result FROM optimise_cache WHERE item_hash = ?", itemHash).Scan(&result)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query optimise cache: %w", err)
	}
	return result, nil
}

// SetOptimiseCache stores an optimisation result for the item hash.
func (s *SQLiteStore) SetOptimiseCache(itemHash, result string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO optimise_cache (item_hash, result, created_at) VALUES (?, ?, ?)
		ON CONFLICT(item_hash) DO UPDATE SET
			result = excluded.result,
			created_at = excluded.created_at
	`, itemHash, result, s.now())
	if err != nil {
		return fmt.Errorf("failed to cache optimise result: %w", err)
	}
	return nil
}
