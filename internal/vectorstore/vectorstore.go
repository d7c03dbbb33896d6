package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"newsdesk/internal/clustering"
	"newsdesk/internal/core"
)

// Embedder converts query or highlight text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Match is one query result: a highlight and its similarity score.
type Match struct {
	HighlightID string  `json:"highlight_id"`
	Score       float64 `json:"score"`
}

// Index is the semantic index over generated highlights. Implementations must
// tolerate concurrent Upsert/Remove/Query calls; Query may observe pre- or
// post-write state for any entry but never a torn entry. The interface is
// deliberately small so an approximate-nearest-neighbor backend can slot in
// later.
type Index interface {
	Upsert(ctx context.Context, highlight core.Highlight) error
	Remove(ctx context.Context, highlightID string) error
	Query(ctx context.Context, text string, topK int) ([]Match, error)
}

// Persister is the optional durable backing for a MemoryIndex. Writes go
// through on every mutation; entries are loaded once at startup.
type Persister interface {
	SaveEntry(entry core.IndexEntry) error
	DeleteEntry(highlightID string) error
	LoadEntries() ([]core.IndexEntry, error)
}

// MemoryIndex is a mutex-guarded in-memory index with brute-force cosine
// scoring. Per-run batches stay in the hundreds, so a linear scan is cheap.
type MemoryIndex struct {
	embedder Embedder
	persist  Persister

	mu      sync.RWMutex
	entries map[string]core.IndexEntry
}

// NewMemoryIndex creates an index. persist may be nil for a purely in-memory
// index; when set, previously persisted entries are loaded.
func NewMemoryIndex(embedder Embedder, persist Persister) (*MemoryIndex, error) {
	idx := &MemoryIndex{
		embedder: embedder,
		persist:  persist,
		entries:  make(map[string]core.IndexEntry),
	}
	if persist != nil {
		entries, err := persist.LoadEntries()
		if err != nil {
			return nil, fmt.Errorf("loading persisted index entries: %w", err)
		}
		for _, entry := range entries {
			idx.entries[entry.HighlightID] = entry
		}
	}
	return idx, nil
}

// Len returns the number of indexed highlights.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Upsert stores or replaces the entry for the highlight, embedding its title
// and summary. Re-upserting identical content is a no-op and does not
// re-embed.
func (m *MemoryIndex) Upsert(ctx context.Context, highlight core.Highlight) error {
	text := retrievalText(highlight)

	m.mu.RLock()
	existing, ok := m.entries[highlight.ID]
	m.mu.RUnlock()
	if ok && existing.Text == text {
		return nil
	}

	embedding, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return err
	}

	entry := core.IndexEntry{
		HighlightID: highlight.ID,
		Embedding:   embedding,
		Text:        text,
		CreatedAt:   highlight.CreatedAt,
	}

	m.mu.Lock()
	m.entries[highlight.ID] = entry
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist.SaveEntry(entry); err != nil {
			return fmt.Errorf("persisting index entry: %w", err)
		}
	}
	return nil
}

// Remove deletes the entry if present; removing an absent entry is a no-op.
func (m *MemoryIndex) Remove(_ context.Context, highlightID string) error {
	m.mu.Lock()
	delete(m.entries, highlightID)
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist.DeleteEntry(highlightID); err != nil {
			return fmt.Errorf("deleting persisted index entry: %w", err)
		}
	}
	return nil
}

// Query embeds the text and returns the topK entries by descending
// similarity, ties broken by the most recent highlight. topK larger than the
// index returns everything.
func (m *MemoryIndex) Query(ctx context.Context, text string, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", core.ErrInvalidArgument, topK)
	}

	queryVec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	type scoredEntry struct {
		match   Match
		created int64
	}
	results := make([]scoredEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		results = append(results, scoredEntry{
			match: Match{
				HighlightID: entry.HighlightID,
				Score:       clustering.Similarity(queryVec, entry.Embedding),
			},
			created: entry.CreatedAt.UnixNano(),
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].match.Score != results[j].match.Score {
			return results[i].match.Score > results[j].match.Score
		}
		if results[i].created != results[j].created {
			return results[i].created > results[j].created
		}
		return results[i].match.HighlightID < results[j].match.HighlightID
	})

	if len(results) > topK {
		results = results[:topK]
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		matches = append(matches, r.match)
	}
	return matches, nil
}

// retrievalText is the canonical document stored per highlight.
func retrievalText(h core.Highlight) string {
	return h.Title + "\n" + h.Summary
}
