// Package resourcestore provides the SQLite-backed resource cache.
// Entries are immutable Resource values keyed by identifier; expired
// entries are evicted lazily on access rather than by a background sweep.
package resourcestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datengrube/context-orchestrator/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed resource caching with per-entry TTL
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a resource with the given TTL. Writes are last-writer-wins.
func (s *Store) Put(res *domain.Resource, ttl time.Duration) error {
	linksJSON, err := json.Marshal(res.LinksFound)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO resources (identifier, content, content_type, fetch_status, links_found, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			fetch_status = excluded.fetch_status,
			links_found = excluded.links_found,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`,
		res.Identifier,
		res.Content,
		string(res.ContentType),
		string(res.FetchStatus),
		string(linksJSON),
		res.FetchedAt,
		res.FetchedAt.Add(ttl),
	)
	return err
}

// Get returns the cached resource for an identifier, or nil on a miss.
// An expired entry is deleted and reported as a miss; a miss is a normal
// outcome, not an error.
func (s *Store) Get(identifier string) (*domain.Resource, error) {
	row := s.db.QueryRow(`
		SELECT identifier, content, content_type, fetch_status, links_found, fetched_at, expires_at
		FROM resources WHERE identifier = ?
	`, identifier)

	res, expiresAt, err := scanResource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.now().After(expiresAt) {
		// Lazy eviction
		if err := s.Invalidate(identifier); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return res, nil
}

// Invalidate removes an entry regardless of expiry
func (s *Store) Invalidate(identifier string) error {
	_, err := s.db.Exec(`DELETE FROM resources WHERE identifier = ?`, identifier)
	return err
}

// Count returns the number of stored entries, expired or not
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM resources`).Scan(&n)
	return n, err
}

func scanResource(row *sql.Row) (*domain.Resource, time.Time, error) {
	var res domain.Resource
	var contentType, fetchStatus string
	var linksJSON sql.NullString
	var expiresAt time.Time

	err := row.Scan(&res.Identifier, &res.Content, &contentType, &fetchStatus, &linksJSON, &res.FetchedAt, &expiresAt)
	if err != nil {
		return nil, time.Time{}, err
	}

	res.ContentType = domain.ContentType(contentType)
	res.FetchStatus = domain.FetchStatus(fetchStatus)

	if linksJSON.Valid && linksJSON.String != "" && linksJSON.String != "null" {
		var links []string
		if err := json.Unmarshal([]byte(linksJSON.String), &links); err != nil {
			return nil, time.Time{}, err
		}
		res.LinksFound = links
	}

	return &res, expiresAt, nil
}
