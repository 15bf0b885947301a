package registry

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/do49/swarminput/internal/promptlang"
)

// modelSchemaVersion is the current models-table schema version.
const modelSchemaVersion = "1"

// SQLiteModelRegistry is a promptlang.ModelRegistry backed by a
// modernc.org/sqlite database, schema-versioned with the same
// CREATE-TABLE-IF-NOT-EXISTS-plus-metadata-row pattern used elsewhere in
// this codebase's persistence layer. Entries are cached in memory after
// load so every BestMatch/ListNames/Get call is lock-free past startup
// aside from the RWMutex guarding concurrent refreshes.
type SQLiteModelRegistry struct {
	db *sql.DB

	mu      sync.RWMutex
	cache   map[string]entry
}

// NewSQLiteModelRegistry opens (creating if needed) the database at path
// and loads its model table into memory.
func NewSQLiteModelRegistry(path string) (*SQLiteModelRegistry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: opening %s: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS models (
			canonical      TEXT PRIMARY KEY,
			subtype        TEXT NOT NULL,
			trigger_phrase TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: creating schema: %w", err)
	}

	r := &SQLiteModelRegistry{db: db, cache: make(map[string]entry)}
	if err := r.checkSchemaVersion(); err != nil {
		db.Close()
		return nil, err
	}
	if err := r.Reload(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *SQLiteModelRegistry) checkSchemaVersion() error {
	var version string
	err := r.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err := r.db.Exec(`INSERT INTO metadata (key, value) VALUES ('schema_version', ?)`, modelSchemaVersion)
		return err
	case err != nil:
		return err
	case version != modelSchemaVersion:
		return fmt.Errorf("registry: unsupported models schema version %q (expected %q)", version, modelSchemaVersion)
	}
	return nil
}

// Register inserts or replaces a canonical name's entry, both in the
// database and in the in-memory cache.
func (r *SQLiteModelRegistry) Register(subtype, canonical, triggerPhrase string) error {
	if _, err := r.db.Exec(`
		INSERT INTO models (canonical, subtype, trigger_phrase) VALUES (?, ?, ?)
		ON CONFLICT(canonical) DO UPDATE SET subtype = excluded.subtype, trigger_phrase = excluded.trigger_phrase
	`, canonical, subtype, triggerPhrase); err != nil {
		return fmt.Errorf("registry: registering %q: %w", canonical, err)
	}

	r.mu.Lock()
	r.cache[canonical] = entry{subtype: subtype, info: promptlang.ModelInfo{Canonical: canonical, TriggerPhrase: triggerPhrase}}
	r.mu.Unlock()
	return nil
}

// Reload re-reads the entire models table into the in-memory cache.
func (r *SQLiteModelRegistry) Reload() error {
	rows, err := r.db.Query("SELECT canonical, subtype, trigger_phrase FROM models")
	if err != nil {
		return fmt.Errorf("registry: loading models: %w", err)
	}
	defer rows.Close()

	cache := make(map[string]entry)
	for rows.Next() {
		var canonical, subtype, trigger string
		if err := rows.Scan(&canonical, &subtype, &trigger); err != nil {
			return fmt.Errorf("registry: scanning model row: %w", err)
		}
		cache[canonical] = entry{subtype: subtype, info: promptlang.ModelInfo{Canonical: canonical, TriggerPhrase: trigger}}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()
	return nil
}

// BestMatch fuzzy-resolves query against candidates.
func (r *SQLiteModelRegistry) BestMatch(query string, candidates []string) (string, bool) {
	return FuzzyBestMatch(query, candidates)
}

// ListNames returns every canonical name cached under subtype.
func (r *SQLiteModelRegistry) ListNames(subtype string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for canonical, e := range r.cache {
		if e.subtype == subtype {
			names = append(names, canonical)
		}
	}
	return names
}

// Get returns the cached info for canonical.
func (r *SQLiteModelRegistry) Get(canonical string) (promptlang.ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[canonical]
	return e.info, ok
}

// Close closes the underlying database handle.
func (r *SQLiteModelRegistry) Close() error {
	return r.db.Close()
}
