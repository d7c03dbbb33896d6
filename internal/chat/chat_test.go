package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/vectorstore"
)

type stubGenerator struct {
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.reply, g.err
}

type stubLoader struct {
	highlights map[string]core.Highlight
	err        error
}

func (l *stubLoader) GetHighlights(_ context.Context, ids []string) ([]core.Highlight, error) {
	if l.err != nil {
		return nil, l.err
	}
	var out []core.Highlight
	for _, id := range ids {
		if h, ok := l.highlights[id]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func seededIndex(t *testing.T, highlights ...core.Highlight) (*vectorstore.MemoryIndex, *stubLoader) {
	t.Helper()
	idx, err := vectorstore.NewMemoryIndex(llm.NewHashEmbedder(256), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}
	loader := &stubLoader{highlights: make(map[string]core.Highlight)}
	for _, h := range highlights {
		if err := idx.Upsert(context.Background(), h); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		loader.highlights[h.ID] = h
	}
	return idx, loader
}

func chatHighlight(id, title, summary string) core.Highlight {
	return core.Highlight{
		ID:        id,
		Category:  "sports",
		Title:     title,
		Summary:   summary,
		Frequency: 2,
		Sources:   []string{"one.example.com"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	idx, loader := seededIndex(t)
	bot := NewBot(idx, loader, nil, 3)

	for _, q := range []string{"", "   "} {
		_, err := bot.Answer(context.Background(), q)
		if !errors.Is(err, core.ErrInvalidArgument) {
			t.Errorf("question %q: expected ErrInvalidArgument, got %v", q, err)
		}
	}
}

func TestAnswer_EmptyIndexGetsFallbackReply(t *testing.T) {
	idx, loader := seededIndex(t)
	bot := NewBot(idx, loader, nil, 3)

	answer, err := bot.Answer(context.Background(), "what happened in sports?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != noContextReply {
		t.Errorf("empty index should produce the no-context reply, got %q", answer)
	}
}

func TestAnswer_UsesGeneratorWithContext(t *testing.T) {
	idx, loader := seededIndex(t,
		chatHighlight("h1", "City wins grand final", "The city team claimed the grand final after extra time."),
	)
	gen := &stubGenerator{reply: "The city team won the grand final in extra time."}
	bot := NewBot(idx, loader, gen, 3)

	answer, err := bot.Answer(context.Background(), "who won the grand final?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != gen.reply {
		t.Errorf("expected generated answer, got %q", answer)
	}
	if gen.calls != 1 {
		t.Errorf("expected 1 generator call, got %d", gen.calls)
	}
}

func TestAnswer_GeneratorFailureFallsBackExtractive(t *testing.T) {
	idx, loader := seededIndex(t,
		chatHighlight("h1", "City wins grand final", "The city team claimed the grand final after extra time."),
		chatHighlight("h2", "Festival lineup announced", "Organizers revealed the summer festival headline acts."),
	)
	gen := &stubGenerator{err: core.ErrGenerationUnavailable}
	bot := NewBot(idx, loader, gen, 3)

	answer, err := bot.Answer(context.Background(), "who won the grand final?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.Contains(answer, "City wins grand final") {
		t.Errorf("extractive answer should quote the best-matching highlight, got %q", answer)
	}
	if !strings.HasPrefix(answer, "Based on the news highlights:") {
		t.Errorf("unexpected extractive answer shape: %q", answer)
	}
}

func TestAnswer_NilGeneratorIsExtractive(t *testing.T) {
	idx, loader := seededIndex(t,
		chatHighlight("h1", "Central bank holds rates", "The cash rate stayed unchanged at the monthly meeting."),
	)
	bot := NewBot(idx, loader, nil, 3)

	answer, err := bot.Answer(context.Background(), "what did the central bank decide about rates?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !strings.Contains(answer, "Central bank holds rates") {
		t.Errorf("expected extractive answer, got %q", answer)
	}
}

func TestAnswer_LoaderFailureFallsBackToNoContext(t *testing.T) {
	idx, loader := seededIndex(t,
		chatHighlight("h1", "City wins grand final", "The city team claimed the grand final."),
	)
	loader.err = core.ErrStoreUnavailable
	bot := NewBot(idx, loader, &stubGenerator{reply: "should not run"}, 3)

	answer, err := bot.Answer(context.Background(), "who won the grand final?")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if answer != noContextReply {
		t.Errorf("loader failure should degrade to the no-context reply, got %q", answer)
	}
}
