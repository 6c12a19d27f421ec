package store

import (
	"context"
	"database/sql"
	"log"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rahul/browsekit/internal/observability"
)

// Cache persists extraction results so a repeated extraction against the same
// page skips the model round trip. Rows are keyed by URL, instruction and the
// schema fingerprint, and expire after a TTL enforced by Prune.
type Cache struct {
	DB  *sql.DB
	TTL time.Duration

	// Logger, when set, receives a cache event per hit.
	Logger *observability.Logger
}

const DefaultCacheTTL = 24 * time.Hour

func NewCache(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	query := `CREATE TABLE IF NOT EXISTS extractions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT,
		instruction TEXT,
		schema_hash TEXT,
		payload TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(url, instruction, schema_hash)
	);`
	if _, err := db.Exec(query); err != nil {
		return nil, err
	}

	return &Cache{DB: db, TTL: DefaultCacheTTL}, nil
}

// Get returns the cached payload for the key, if a fresh row exists.
func (c *Cache) Get(url, instruction, schemaHash string) (string, bool, error) {
	query := `
		SELECT payload FROM extractions
		WHERE url = ? AND instruction = ? AND schema_hash = ?
		AND (julianday('now') - julianday(created_at)) * 86400 < ?`
	row := c.DB.QueryRow(query, url, instruction, schemaHash, c.TTL.Seconds())

	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	observability.CountCacheHit()
	if c.Logger != nil {
		c.Logger.LogCache("hit", url)
	}
	return payload, true, nil
}

// Put stores (or refreshes) the payload for the key.
func (c *Cache) Put(url, instruction, schemaHash, payload string) error {
	query := `
		INSERT INTO extractions (url, instruction, schema_hash, payload, created_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(url, instruction, schema_hash)
		DO UPDATE SET payload = excluded.payload, created_at = datetime('now')`
	_, err := c.DB.Exec(query, url, instruction, schemaHash, payload)
	return err
}

// Prune deletes rows older than the TTL and returns how many were removed.
func (c *Cache) Prune() (int64, error) {
	query := `DELETE FROM extractions WHERE (julianday('now') - julianday(created_at)) * 86400 >= ?`
	res, err := c.DB.Exec(query, c.TTL.Seconds())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// StartJanitor prunes expired rows on a fixed interval until ctx is done.
func (c *Cache) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("Cache janitor started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := c.Prune()
			if err != nil {
				log.Printf("Error pruning extraction cache: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Pruned %d expired extraction(s) from cache", removed)
			}
		}
	}
}

func (c *Cache) Close() error {
	return c.DB.Close()
}
