// Package store caches fetched building collections on disk so repeated
// loads of the same zone don't hammer the Overpass API. Payloads are stored
// gzip-compressed JSON in a single SQLite file.
package store

import (
	"bytes"
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/gridmap/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS zone_buildings (
	zone_id    TEXT PRIMARY KEY,
	fetched_at INTEGER NOT NULL,
	count      INTEGER NOT NULL,
	payload    BLOB NOT NULL
);
`

// Store is a disk cache of per-zone building collections.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open creates or opens the store at path and initializes the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set performance pragmas
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Put stores buildings for a zone, replacing any previous entry.
func (s *Store) Put(zoneID string, buildings []types.Building) error {
	payload, err := compress(buildings)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO zone_buildings (zone_id, fetched_at, count, payload) VALUES (?, ?, ?, ?)`,
		zoneID, time.Now().Unix(), len(buildings), payload,
	)
	if err != nil {
		return fmt.Errorf("failed to store buildings for %s: %w", zoneID, err)
	}
	return nil
}

// Get returns the cached buildings for a zone when the entry is younger
// than maxAge. A zero maxAge accepts any age.
func (s *Store) Get(zoneID string, maxAge time.Duration) ([]types.Building, bool, error) {
	s.mu.Lock()
	row := s.db.QueryRow(
		`SELECT fetched_at, payload FROM zone_buildings WHERE zone_id = ?`, zoneID)
	var fetchedAt int64
	var payload []byte
	err := row.Scan(&fetchedAt, &payload)
	s.mu.Unlock()

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read buildings for %s: %w", zoneID, err)
	}

	if maxAge > 0 && time.Since(time.Unix(fetchedAt, 0)) > maxAge {
		return nil, false, nil
	}

	buildings, err := decompress(payload)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode cached buildings for %s: %w", zoneID, err)
	}
	return buildings, true, nil
}

// Delete removes a zone's cache entry.
func (s *Store) Delete(zoneID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM zone_buildings WHERE zone_id = ?`, zoneID)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func compress(buildings []types.Building) ([]byte, error) {
	raw, err := json.Marshal(buildings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode buildings: %w", err)
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress payload: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(payload []byte) ([]types.Building, error) {
	gz, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	var buildings []types.Building
	if err := json.Unmarshal(raw, &buildings); err != nil {
		return nil, err
	}
	return buildings, nil
}
