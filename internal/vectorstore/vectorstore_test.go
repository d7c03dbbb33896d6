package vectorstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
)

type countingEmbedder struct {
	inner *llm.HashEmbedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func testHighlight(id, title, summary string, created time.Time) core.Highlight {
	return core.Highlight{
		ID:        id,
		Category:  "sports",
		Title:     title,
		Summary:   summary,
		Frequency: 1,
		CreatedAt: created,
	}
}

func TestMemoryIndex_UpsertAndQuery(t *testing.T) {
	idx, err := NewMemoryIndex(llm.NewHashEmbedder(256), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	now := time.Now().UTC()
	ctx := context.Background()

	highlights := []core.Highlight{
		testHighlight("h1", "City wins grand final", "The city team claimed the grand final after extra time.", now),
		testHighlight("h2", "Central bank holds rates", "The cash rate was held steady at the monthly board meeting.", now),
		testHighlight("h3", "Festival lineup announced", "Organizers revealed the headline acts for the summer festival.", now),
	}
	for _, h := range highlights {
		if err := idx.Upsert(ctx, h); err != nil {
			t.Fatalf("Upsert(%s) failed: %v", h.ID, err)
		}
	}
	if idx.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", idx.Len())
	}

	matches, err := idx.Query(ctx, "who won the grand final?", 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].HighlightID != "h1" {
		t.Errorf("expected h1 as best match, got %s (score %v)", matches[0].HighlightID, matches[0].Score)
	}
}

func TestMemoryIndex_UpsertIdempotent(t *testing.T) {
	embedder := &countingEmbedder{inner: llm.NewHashEmbedder(64)}
	idx, err := NewMemoryIndex(embedder, nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	h := testHighlight("h1", "Title", "Summary text.", time.Now().UTC())
	ctx := context.Background()

	if err := idx.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(ctx, h); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if embedder.calls != 1 {
		t.Errorf("identical re-upsert must not re-embed, got %d calls", embedder.calls)
	}

	// Changed content does re-embed and replaces the entry.
	h.Summary = "A different summary entirely."
	if err := idx.Upsert(ctx, h); err != nil {
		t.Fatalf("Upsert after change failed: %v", err)
	}
	if embedder.calls != 2 {
		t.Errorf("changed content should re-embed, got %d calls", embedder.calls)
	}
	if idx.Len() != 1 {
		t.Errorf("upsert should replace, not add: %d entries", idx.Len())
	}
}

func TestMemoryIndex_RemoveAbsentIsNoop(t *testing.T) {
	idx, err := NewMemoryIndex(llm.NewHashEmbedder(64), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	if err := idx.Remove(context.Background(), "never-existed"); err != nil {
		t.Errorf("removing an absent entry should be a no-op, got %v", err)
	}
}

func TestMemoryIndex_QueryValidation(t *testing.T) {
	idx, err := NewMemoryIndex(llm.NewHashEmbedder(64), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	for _, topK := range []int{0, -3} {
		_, err := idx.Query(context.Background(), "anything", topK)
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("topK=%d: expected ErrInvalidArgument, got %v", topK, err)
		}
	}
}

func TestMemoryIndex_QueryTopKLargerThanIndex(t *testing.T) {
	idx, err := NewMemoryIndex(llm.NewHashEmbedder(64), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	if err := idx.Upsert(ctx, testHighlight("h1", "Only entry", "The only summary.", now)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := idx.Query(ctx, "entry", 10)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("topK above index size should return everything, got %d", len(matches))
	}
}

func TestMemoryIndex_EmptyQueryTextStillMatches(t *testing.T) {
	idx, err := NewMemoryIndex(llm.NewHashEmbedder(64), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	for _, h := range []core.Highlight{
		testHighlight("h1", "One", "First summary sentence.", now),
		testHighlight("h2", "Two", "Second summary sentence.", now),
	} {
		if err := idx.Upsert(ctx, h); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	matches, err := idx.Query(ctx, "", 2)
	if err != nil {
		t.Fatalf("empty query text should embed validly: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}
}

func TestMemoryIndex_QueryTiesBreakByRecency(t *testing.T) {
	idx, err := NewMemoryIndex(llm.NewHashEmbedder(64), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	ctx := context.Background()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// Identical text scores identically; the newer highlight must win.
	older := testHighlight("older", "Same headline", "Same summary.", base)
	newer := testHighlight("newer", "Same headline", "Same summary.", base.Add(time.Hour))
	if err := idx.Upsert(ctx, older); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(ctx, newer); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := idx.Query(ctx, "Same headline", 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if matches[0].HighlightID != "newer" {
		t.Errorf("tie should break toward the newer highlight, got %s", matches[0].HighlightID)
	}
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	persister, err := NewSQLitePersister(dir)
	if err != nil {
		t.Fatalf("NewSQLitePersister failed: %v", err)
	}

	idx, err := NewMemoryIndex(llm.NewHashEmbedder(64), persister)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	if err := idx.Upsert(ctx, testHighlight("h1", "Persisted headline", "Persisted summary.", now)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(ctx, testHighlight("h2", "Dropped headline", "Dropped summary.", now)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Remove(ctx, "h2"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := persister.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// A fresh index over the same directory sees the surviving entry.
	reopened, err := NewSQLitePersister(dir)
	if err != nil {
		t.Fatalf("reopening persister failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	restored, err := NewMemoryIndex(llm.NewHashEmbedder(64), reopened)
	if err != nil {
		t.Fatalf("NewMemoryIndex over persisted data failed: %v", err)
	}
	if restored.Len() != 1 {
		t.Fatalf("expected 1 restored entry, got %d", restored.Len())
	}

	matches, err := restored.Query(ctx, "Persisted headline", 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if matches[0].HighlightID != "h1" {
		t.Errorf("expected restored entry h1, got %s", matches[0].HighlightID)
	}
}
