package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"newsdesk/internal/core"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Store persists articles and highlights in SQLite. Article identity is
// (source, url): re-extracted articles are upserted, never duplicated.
// Highlight replacement for a category happens in a single transaction so a
// torn-down run can never leave a category half superseded.
type Store struct {
	db   *sql.DB
	path string
}

// New creates a store instance backed by a SQLite database under dataDir.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "newsdesk.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		body_text TEXT NOT NULL,
		author TEXT,
		published_at DATETIME,
		url TEXT NOT NULL,
		embedding TEXT,
		extracted_at DATETIME NOT NULL,
		UNIQUE(source, url)
	);`

	highlightsTable := `
	CREATE TABLE IF NOT EXISTS highlights (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		summary TEXT NOT NULL,
		frequency INTEGER NOT NULL DEFAULT 1,
		priority INTEGER NOT NULL DEFAULT 0,
		sources TEXT NOT NULL,
		urls TEXT NOT NULL,
		representative_id TEXT,
		created_at DATETIME NOT NULL,
		superseded INTEGER NOT NULL DEFAULT 0
	);`

	indexes := `
	CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);
	CREATE INDEX IF NOT EXISTS idx_highlights_category ON highlights(category, superseded);`

	for _, stmt := range []string{articlesTable, highlightsTable, indexes} {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// UpsertArticle inserts the article or replaces the prior extraction of the
// same (source, url). The stored ID is kept stable across re-extractions.
func (s *Store) UpsertArticle(ctx context.Context, article core.Article) (string, error) {
	if article.ID == "" {
		article.ID = uuid.NewString()
	}

	// Keep the original row ID when this (source, url) was seen before.
	existingQuery, args, err := sq.Select("id").From("articles").
		Where(sq.Eq{"source": article.Source, "url": article.URL}).
		ToSql()
	if err != nil {
		return "", err
	}
	var existingID string
	err = s.db.QueryRowContext(ctx, existingQuery, args...).Scan(&existingID)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return "", fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	default:
		article.ID = existingID
	}

	embedding, err := json.Marshal(article.Embedding)
	if err != nil {
		return "", fmt.Errorf("marshaling embedding: %w", err)
	}

	query, args, err := sq.Replace("articles").
		Columns("id", "source", "category", "title", "body_text", "author",
			"published_at", "url", "embedding", "extracted_at").
		Values(article.ID, article.Source, article.Category, article.Title,
			article.BodyText, article.Author, formatTime(article.PublishedAt),
			article.URL, string(embedding), formatTime(article.ExtractedAt)).
		ToSql()
	if err != nil {
		return "", err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return article.ID, nil
}

// GetArticles returns articles, optionally filtered by category and by
// minimum extraction time. Results order by published_at ascending so batch
// consumers see a deterministic sequence.
func (s *Store) GetArticles(ctx context.Context, category string, since time.Time) ([]core.Article, error) {
	builder := sq.Select("id", "source", "category", "title", "body_text", "author",
		"published_at", "url", "embedding", "extracted_at").
		From("articles").
		OrderBy("published_at ASC", "url ASC")
	if category != "" {
		builder = builder.Where(sq.Eq{"category": category})
	}
	if !since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"extracted_at": formatTime(since)})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var articles []core.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

// GetArticle returns one article by ID.
func (s *Store) GetArticle(ctx context.Context, id string) (core.Article, error) {
	query, args, err := sq.Select("id", "source", "category", "title", "body_text", "author",
		"published_at", "url", "embedding", "extracted_at").
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return core.Article{}, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Article{}, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return core.Article{}, fmt.Errorf("article %s not found", id)
	}
	return scanArticle(rows)
}

// UpsertHighlight inserts or replaces a single highlight row.
func (s *Store) UpsertHighlight(ctx context.Context, highlight core.Highlight) (string, error) {
	if highlight.ID == "" {
		highlight.ID = uuid.NewString()
	}

	query, args, err := buildHighlightReplace(highlight)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return highlight.ID, nil
}

// ListHighlights returns non-superseded highlights, optionally filtered by
// category, best first.
func (s *Store) ListHighlights(ctx context.Context, category string, limit int) ([]core.Highlight, error) {
	if limit <= 0 {
		return []core.Highlight{}, nil
	}

	builder := sq.Select("id", "category", "title", "summary", "frequency", "priority",
		"sources", "urls", "representative_id", "created_at").
		From("highlights").
		Where(sq.Eq{"superseded": 0}).
		OrderBy("priority DESC", "frequency DESC", "created_at DESC", "title ASC").
		Limit(uint64(limit))
	if category != "" {
		builder = builder.Where(sq.Eq{"category": category})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var highlights []core.Highlight
	for rows.Next() {
		highlight, err := scanHighlight(rows)
		if err != nil {
			return nil, err
		}
		highlights = append(highlights, highlight)
	}
	return highlights, rows.Err()
}

// GetHighlights returns the highlights for the given IDs, preserving the
// input order. Missing IDs are skipped, not errors.
func (s *Store) GetHighlights(ctx context.Context, ids []string) ([]core.Highlight, error) {
	if len(ids) == 0 {
		return []core.Highlight{}, nil
	}

	query, args, err := sq.Select("id", "category", "title", "summary", "frequency", "priority",
		"sources", "urls", "representative_id", "created_at").
		From("highlights").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]core.Highlight, len(ids))
	for rows.Next() {
		highlight, err := scanHighlight(rows)
		if err != nil {
			return nil, err
		}
		byID[highlight.ID] = highlight
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ordered := make([]core.Highlight, 0, len(ids))
	for _, id := range ids {
		if h, ok := byID[id]; ok {
			ordered = append(ordered, h)
		}
	}
	return ordered, nil
}

// SupersededHighlightIDs returns the IDs of a category's stale highlights so
// the semantic index can drop their entries.
func (s *Store) SupersededHighlightIDs(ctx context.Context, category string) ([]string, error) {
	query, args, err := sq.Select("id").From("highlights").
		Where(sq.Eq{"category": category, "superseded": 1}).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SupersedeHighlights marks all current highlights for the category stale.
func (s *Store) SupersedeHighlights(ctx context.Context, category string) error {
	query, args, err := sq.Update("highlights").
		Set("superseded", 1).
		Where(sq.Eq{"category": category, "superseded": 0}).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return nil
}

// ReplaceHighlights supersedes the category's prior highlights and writes the
// fresh set in one transaction: either the whole replacement becomes visible
// or none of it does. It returns the IDs the replacement made stale.
func (s *Store) ReplaceHighlights(ctx context.Context, category string, highlights []core.Highlight) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	staleQuery, staleArgs, err := sq.Select("id").From("highlights").
		Where(sq.Eq{"category": category, "superseded": 0}).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, staleQuery, staleArgs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		stale = append(stale, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	supersede, supersedeArgs, err := sq.Update("highlights").
		Set("superseded", 1).
		Where(sq.Eq{"category": category, "superseded": 0}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, supersede, supersedeArgs...); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	for _, highlight := range highlights {
		if highlight.ID == "" {
			highlight.ID = uuid.NewString()
		}
		query, args, err := buildHighlightReplace(highlight)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return stale, nil
}

// Counts returns article and highlight totals, per category and overall.
func (s *Store) Counts(ctx context.Context) (articles, highlights int, byCategory map[string]int, err error) {
	byCategory = make(map[string]int)

	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles")
	if err = row.Scan(&articles); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	row = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM highlights WHERE superseded = 0")
	if err = row.Scan(&highlights); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM articles GROUP BY category")
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return 0, 0, nil, err
		}
		byCategory[category] = count
	}
	return articles, highlights, byCategory, rows.Err()
}

func buildHighlightReplace(highlight core.Highlight) (string, []interface{}, error) {
	sources, err := json.Marshal(highlight.Sources)
	if err != nil {
		return "", nil, err
	}
	urls, err := json.Marshal(highlight.URLs)
	if err != nil {
		return "", nil, err
	}

	return sq.Replace("highlights").
		Columns("id", "category", "title", "summary", "frequency", "priority",
			"sources", "urls", "representative_id", "created_at", "superseded").
		Values(highlight.ID, highlight.Category, highlight.Title, highlight.Summary,
			highlight.Frequency, boolToInt(highlight.Priority), string(sources),
			string(urls), highlight.RepresentativeID, formatTime(highlight.CreatedAt), 0).
		ToSql()
}

func scanArticle(rows *sql.Rows) (core.Article, error) {
	var article core.Article
	var author, embedding sql.NullString
	var publishedAt, extractedAt sql.NullString

	if err := rows.Scan(&article.ID, &article.Source, &article.Category, &article.Title,
		&article.BodyText, &author, &publishedAt, &article.URL, &embedding, &extractedAt); err != nil {
		return core.Article{}, fmt.Errorf("scanning article: %w", err)
	}

	article.Author = author.String
	article.PublishedAt = parseTime(publishedAt.String)
	article.ExtractedAt = parseTime(extractedAt.String)
	if embedding.Valid && embedding.String != "" && embedding.String != "null" {
		if err := json.Unmarshal([]byte(embedding.String), &article.Embedding); err != nil {
			return core.Article{}, fmt.Errorf("unmarshaling embedding: %w", err)
		}
	}
	return article, nil
}

func scanHighlight(rows *sql.Rows) (core.Highlight, error) {
	var highlight core.Highlight
	var priority int
	var sources, urls, representativeID, createdAt sql.NullString

	if err := rows.Scan(&highlight.ID, &highlight.Category, &highlight.Title, &highlight.Summary,
		&highlight.Frequency, &priority, &sources, &urls, &representativeID, &createdAt); err != nil {
		return core.Highlight{}, fmt.Errorf("scanning highlight: %w", err)
	}

	highlight.Priority = priority != 0
	highlight.RepresentativeID = representativeID.String
	highlight.CreatedAt = parseTime(createdAt.String)
	if sources.Valid && sources.String != "" {
		if err := json.Unmarshal([]byte(sources.String), &highlight.Sources); err != nil {
			return core.Highlight{}, fmt.Errorf("unmarshaling sources: %w", err)
		}
	}
	if urls.Valid && urls.String != "" {
		if err := json.Unmarshal([]byte(urls.String), &highlight.URLs); err != nil {
			return core.Highlight{}, fmt.Errorf("unmarshaling urls: %w", err)
		}
	}
	return highlight, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
