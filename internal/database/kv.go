package database

import (
	"database/sql"
	"fmt"
)

// KVStore is a byte-valued key/value store backed by the kv_store table.
// It satisfies tracker.Store.
type KVStore struct {
	db *DB
}

// KV returns the key/value store of this database.
func (db *DB) KV() *KVStore {
	return &KVStore{db: db}
}

// Get returns the value for key and whether it exists.
func (s *KVStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.conn.QueryRow("SELECT value FROM kv_store WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *KVStore) Set(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// Delete removes all given keys in a single transaction.
func (s *KVStore) Delete(keys ...string) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.Exec("DELETE FROM kv_store WHERE key = ?", k); err != nil {
			return fmt.Errorf("deleting key %q: %w", k, err)
		}
	}
	return tx.Commit()
}

// Keys returns all stored keys in order.
func (s *KVStore) Keys() ([]string, error) {
	rows, err := s.db.conn.Query("SELECT key FROM kv_store ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
