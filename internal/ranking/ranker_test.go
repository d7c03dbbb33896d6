package ranking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/summarize"
)

func newTestRanker(keywords []string) *Ranker {
	// Nil generator keeps summaries extractive and deterministic.
	return NewRanker(DefaultWeights(), keywords, summarize.NewWithDefaults(nil))
}

func clusterOf(articles ...core.Article) (core.Cluster, []core.Article) {
	ids := make([]string, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	return core.Cluster{
		MemberIDs:        ids,
		RepresentativeID: articles[0].ID,
		Category:         articles[0].Category,
	}, articles
}

func rankArticle(id, title string, published time.Time) core.Article {
	return core.Article{
		ID:          id,
		Source:      fmt.Sprintf("%s.example.com", id),
		Category:    "finance",
		Title:       title,
		BodyText:    "A routine market report covering the trading session in detail for readers.",
		URL:         fmt.Sprintf("https://%s.example.com/story", id),
		PublishedAt: published,
	}
}

func TestRank_EmptyInput(t *testing.T) {
	ranker := newTestRanker(nil)

	highlights, _, err := ranker.Rank(context.Background(), nil, nil, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(highlights) != 0 {
		t.Errorf("expected empty result, got %d highlights", len(highlights))
	}

	c, arts := clusterOf(rankArticle("a1", "Markets steady", time.Now()))
	highlights, _, err = ranker.Rank(context.Background(), []core.Cluster{c}, arts, 0)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(highlights) != 0 {
		t.Errorf("non-positive limit should yield empty result, got %d", len(highlights))
	}
}

func TestRank_FrequencyOrdersClusters(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	big, bigArts := clusterOf(
		rankArticle("b1", "Rate decision dominates coverage", base),
		rankArticle("b2", "Rate decision dominates coverage", base.Add(time.Minute)),
		rankArticle("b3", "Rate decision dominates coverage", base.Add(2*time.Minute)),
	)
	small, smallArts := clusterOf(rankArticle("s1", "Minor earnings update", base))

	articles := append(bigArts, smallArts...)
	ranker := newTestRanker(nil)

	highlights, _, err := ranker.Rank(context.Background(), []core.Cluster{small, big}, articles, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(highlights))
	}
	if highlights[0].Frequency != 3 || highlights[1].Frequency != 1 {
		t.Errorf("expected frequency order [3 1], got [%d %d]", highlights[0].Frequency, highlights[1].Frequency)
	}
}

func TestRank_PriorityKeywordPromotes(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	// A 5-member routine cluster against a 2-member breaking cluster. With
	// default weights (1, 10) the breaking cluster scores 12 against 5.
	var bigArts []core.Article
	for i := 0; i < 5; i++ {
		bigArts = append(bigArts, rankArticle(fmt.Sprintf("r%d", i), "Quarterly results roundup", base))
	}
	big, _ := clusterOf(bigArts...)

	urgent1 := rankArticle("u1", "Bank collapse shakes markets", base)
	urgent1.BodyText = "Breaking news: the regional bank entered administration overnight, regulators said."
	urgent2 := rankArticle("u2", "Regional bank enters administration", base.Add(time.Minute))
	urgentCluster, urgentArts := clusterOf(urgent1, urgent2)

	articles := append(bigArts, urgentArts...)
	ranker := newTestRanker([]string{"breaking news", "urgent"})

	highlights, _, err := ranker.Rank(context.Background(), []core.Cluster{big, urgentCluster}, articles, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if len(highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(highlights))
	}
	if !highlights[0].Priority {
		t.Error("priority cluster should rank first")
	}
	if highlights[0].Frequency != 2 {
		t.Errorf("expected the 2-member priority cluster on top, got frequency %d", highlights[0].Frequency)
	}
}

func TestRank_KeywordMatchesWholeWordsOnly(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	a := rankArticle("a1", "Groundbreaking ceremony for new bridge", base)
	a.BodyText = "The groundbreaking ceremony was attended by local officials and residents."
	c, arts := clusterOf(a)

	ranker := newTestRanker([]string{"breaking"})
	highlights, _, err := ranker.Rank(context.Background(), []core.Cluster{c}, arts, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if highlights[0].Priority {
		t.Error("substring \"breaking\" inside \"groundbreaking\" must not match")
	}

	b := rankArticle("b1", "BREAKING: bridge closed after inspection", base)
	c2, arts2 := clusterOf(b)
	highlights, _, err = ranker.Rank(context.Background(), []core.Cluster{c2}, arts2, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if !highlights[0].Priority {
		t.Error("keyword matching should be case-insensitive")
	}
}

func TestRank_TruncatesToLimit(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	var clusters []core.Cluster
	var articles []core.Article
	for i := 0; i < 6; i++ {
		c, arts := clusterOf(rankArticle(fmt.Sprintf("a%d", i), fmt.Sprintf("Story number %d", i), base.Add(time.Duration(i)*time.Minute)))
		clusters = append(clusters, c)
		articles = append(articles, arts...)
	}

	ranker := newTestRanker(nil)
	highlights, _, err := ranker.Rank(context.Background(), clusters, articles, 3)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(highlights) != 3 {
		t.Errorf("expected 3 highlights after truncation, got %d", len(highlights))
	}
}

func TestRank_TieBreaksByRecencyThenTitle(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	older, olderArts := clusterOf(rankArticle("o1", "Alpha story", base))
	newer, newerArts := clusterOf(rankArticle("n1", "Beta story", base.Add(time.Hour)))
	sameTimeA, sameA := clusterOf(rankArticle("t1", "Aardvark exhibit opens", base))
	sameTimeZ, sameZ := clusterOf(rankArticle("t2", "Zoo expansion approved", base))

	articles := append(append(append(olderArts, newerArts...), sameA...), sameZ...)
	ranker := newTestRanker(nil)

	highlights, _, err := ranker.Rank(context.Background(),
		[]core.Cluster{sameTimeZ, older, sameTimeA, newer}, articles, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	if highlights[0].Title != "Beta story" {
		t.Errorf("most recent representative should rank first, got %q", highlights[0].Title)
	}
	// The three base-time clusters tie on score and recency; title ascending
	// settles their order.
	wantOrder := []string{"Aardvark exhibit opens", "Alpha story", "Zoo expansion approved"}
	for i, want := range wantOrder {
		if highlights[i+1].Title != want {
			t.Errorf("position %d: want %q, got %q", i+1, want, highlights[i+1].Title)
		}
	}
}

func TestRank_FallbackCountIsPerCall(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	ranker := newTestRanker(nil)

	first, firstArts := clusterOf(rankArticle("a1", "Morning report", base))
	c2, arts2 := clusterOf(rankArticle("b1", "Evening report", base))
	third, thirdArts := clusterOf(rankArticle("b2", "Closing report", base))

	// The nil generator forces an extractive fallback for every summary.
	_, fallbacks, err := ranker.Rank(context.Background(), []core.Cluster{first}, firstArts, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if fallbacks != 1 {
		t.Errorf("expected 1 fallback for a single highlight, got %d", fallbacks)
	}

	// A later call reports only its own fallbacks, not a running total.
	_, fallbacks, err = ranker.Rank(context.Background(), []core.Cluster{c2, third},
		append(arts2, thirdArts...), 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if fallbacks != 2 {
		t.Errorf("expected 2 fallbacks for the second call, got %d", fallbacks)
	}
}

func TestRank_UnresolvableMemberFails(t *testing.T) {
	c := core.Cluster{MemberIDs: []string{"missing"}, RepresentativeID: "missing", Category: "finance"}
	ranker := newTestRanker(nil)

	_, _, err := ranker.Rank(context.Background(), []core.Cluster{c}, nil, 10)
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for unresolvable member, got %v", err)
	}
}

func TestRank_HighlightCarriesSourcesAndURLs(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

	a := rankArticle("a1", "Shared story", base)
	b := rankArticle("a2", "Shared story copy", base.Add(time.Minute))
	b.Source = a.Source // same outlet twice
	c, arts := clusterOf(a, b)

	ranker := newTestRanker(nil)
	highlights, _, err := ranker.Rank(context.Background(), []core.Cluster{c}, arts, 10)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	h := highlights[0]
	if len(h.Sources) != 1 {
		t.Errorf("duplicate sources should be collapsed, got %v", h.Sources)
	}
	if len(h.URLs) != 2 {
		t.Errorf("expected both member URLs, got %v", h.URLs)
	}
	if h.Summary == "" {
		t.Error("highlight should carry an extractive summary")
	}
	if h.RepresentativeID != "a1" {
		t.Errorf("expected representative a1, got %s", h.RepresentativeID)
	}
}
