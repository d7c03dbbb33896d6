package vectorstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"newsdesk/internal/core"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
)

// SQLitePersister persists index entries in their own SQLite database next to
// the article store, keyed by highlight_id. Embeddings are stored as JSON;
// the index is small (bounded highlights per category) so no vector extension
// is needed.
type SQLitePersister struct {
	db *sql.DB
}

// NewSQLitePersister opens (or creates) the index database under dataDir.
func NewSQLitePersister(dataDir string) (*SQLitePersister, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS index_entries (
		highlight_id TEXT PRIMARY KEY,
		embedding TEXT NOT NULL,
		text_for_retrieval TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize index database: %w", err)
	}

	return &SQLitePersister{db: db}, nil
}

// Close closes the underlying database.
func (p *SQLitePersister) Close() error { return p.db.Close() }

// SaveEntry inserts or replaces the entry for its highlight.
func (p *SQLitePersister) SaveEntry(entry core.IndexEntry) error {
	embedding, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("marshaling embedding: %w", err)
	}

	query, args, err := sq.Replace("index_entries").
		Columns("highlight_id", "embedding", "text_for_retrieval", "created_at").
		Values(entry.HighlightID, string(embedding), entry.Text, entry.CreatedAt.UTC().Format(time.RFC3339Nano)).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := p.db.Exec(query, args...); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteEntry removes the entry; deleting an absent row is a no-op.
func (p *SQLitePersister) DeleteEntry(highlightID string) error {
	query, args, err := sq.Delete("index_entries").
		Where(sq.Eq{"highlight_id": highlightID}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := p.db.Exec(query, args...); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// LoadEntries returns every persisted entry.
func (p *SQLitePersister) LoadEntries() ([]core.IndexEntry, error) {
	query, args, err := sq.Select("highlight_id", "embedding", "text_for_retrieval", "created_at").
		From("index_entries").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var entries []core.IndexEntry
	for rows.Next() {
		var entry core.IndexEntry
		var embedding, createdAt string
		if err := rows.Scan(&entry.HighlightID, &embedding, &entry.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &entry.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding for %s: %w", entry.HighlightID, err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			entry.CreatedAt = ts
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
