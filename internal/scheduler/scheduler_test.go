package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/ranking"
	"newsdesk/internal/store"
	"newsdesk/internal/summarize"
	"newsdesk/internal/vectorstore"
)

type countingExtractor struct {
	calls int32
}

func (e *countingExtractor) ExtractCategory(_ context.Context, _ string, _ []string) []core.Article {
	atomic.AddInt32(&e.calls, 1)
	return nil
}

func TestScheduler_SubmitsRefreshes(t *testing.T) {
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	defer func() { _ = st.Close() }()

	idx, err := vectorstore.NewMemoryIndex(llm.NewHashEmbedder(64), nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex failed: %v", err)
	}

	summarizer := summarize.NewWithDefaults(nil)
	extractor := &countingExtractor{}
	runner := pipeline.NewRunner(st, extractor, llm.NewHashEmbedder(64),
		ranking.NewRanker(ranking.DefaultWeights(), nil, summarizer), idx,
		config.Pipeline{SimilarityThreshold: 0.85, CategoryLimit: 20, EmbedConcurrency: 1},
		config.Sources{Categories: map[string][]string{"sports": {"https://one.example.com/sport"}}})

	sched := New(runner)
	if err := sched.Start(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	deadline := time.After(3 * time.Second)
	for atomic.LoadInt32(&extractor.calls) == 0 {
		select {
		case <-deadline:
			t.Fatal("scheduler never triggered a refresh")
		case <-time.After(10 * time.Millisecond):
		}
	}

	sched.Stop()
	runner.Wait()
}
