package clustering

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"unicode/utf8"

	"newsdesk/internal/core"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
)

// EmbeddingProvider converts text into a fixed-length vector. Implementations
// report failures with core.ErrEmbeddingUnavailable; the engine degrades
// per-article instead of aborting the batch.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Engine partitions a batch of same-category articles into near-duplicate
// clusters. An article joins the first existing cluster whose representative
// it exceeds the similarity threshold against; otherwise it seeds a new
// cluster. Input is processed in a stable order so repeated runs over the
// same batch produce identical partitions.
type Engine struct {
	provider EmbeddingProvider
	log      *slog.Logger

	embedFailures int
}

// NewEngine creates a clustering engine using the given embedding provider.
func NewEngine(provider EmbeddingProvider) *Engine {
	return &Engine{
		provider: provider,
		log:      logger.Get(),
	}
}

// EmbedFailures returns how many articles fell back to singleton clusters
// because no embedding could be obtained during the last Cluster call.
func (e *Engine) EmbedFailures() int { return e.embedFailures }

// workingCluster carries member articles during a run so representatives can
// be re-elected as members join.
type workingCluster struct {
	members        []core.Article
	representative core.Article
}

// Cluster partitions articles into duplicate clusters. All articles must
// share one category and threshold must be in (0,1].
func (e *Engine) Cluster(ctx context.Context, articles []core.Article, threshold float64) ([]core.Cluster, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: similarity threshold %v outside (0,1]", core.ErrInvalidArgument, threshold)
	}
	if len(articles) == 0 {
		return []core.Cluster{}, nil
	}

	category := articles[0].Category
	for _, a := range articles[1:] {
		if a.Category != category {
			return nil, fmt.Errorf("%w: clustering never merges across categories (got %q and %q)",
				core.ErrInvalidArgument, category, a.Category)
		}
	}

	// Stable processing order: published ascending, URL as the final tiebreak.
	ordered := make([]core.Article, len(articles))
	copy(ordered, articles)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].PublishedAt.Equal(ordered[j].PublishedAt) {
			return ordered[i].PublishedAt.Before(ordered[j].PublishedAt)
		}
		return ordered[i].URL < ordered[j].URL
	})

	e.embedFailures = 0
	embeddings := make(map[string][]float64, len(ordered))
	for i := range ordered {
		vec, err := e.embedArticle(ctx, ordered[i])
		if err != nil {
			e.embedFailures++
			e.log.Warn("embedding unavailable, article becomes singleton cluster",
				"article_id", ordered[i].ID, "error", err.Error())
			continue
		}
		embeddings[ordered[i].ID] = vec
	}

	var clusters []workingCluster
	for _, article := range ordered {
		vec, ok := embeddings[article.ID]
		if !ok {
			// No embedding: the article can neither join nor be joined.
			clusters = append(clusters, newWorkingCluster(article))
			continue
		}

		joined := false
		for i := range clusters {
			repVec, ok := embeddings[clusters[i].representative.ID]
			if !ok {
				continue
			}
			if Similarity(vec, repVec) > threshold {
				clusters[i].add(article)
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, newWorkingCluster(article))
		}
	}

	result := make([]core.Cluster, 0, len(clusters))
	for _, wc := range clusters {
		memberIDs := make([]string, 0, len(wc.members))
		for _, m := range wc.members {
			memberIDs = append(memberIDs, m.ID)
		}
		result = append(result, core.Cluster{
			MemberIDs:        memberIDs,
			RepresentativeID: wc.representative.ID,
			Category:         category,
		})
	}
	return result, nil
}

func newWorkingCluster(article core.Article) workingCluster {
	return workingCluster{
		members:        []core.Article{article},
		representative: article,
	}
}

// add appends a member and re-elects the representative: earliest published,
// ties broken by longest body text, then lowest URL.
func (wc *workingCluster) add(article core.Article) {
	wc.members = append(wc.members, article)
	if moreRepresentative(article, wc.representative) {
		wc.representative = article
	}
}

func moreRepresentative(a, b core.Article) bool {
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	if len(a.BodyText) != len(b.BodyText) {
		return len(a.BodyText) > len(b.BodyText)
	}
	return a.URL < b.URL
}

// embedArticle returns the cached embedding when present, otherwise asks the
// provider for one over the title and leading body text.
func (e *Engine) embedArticle(ctx context.Context, article core.Article) ([]float64, error) {
	if len(article.Embedding) > 0 {
		return article.Embedding, nil
	}
	if e.provider == nil {
		return nil, core.ErrEmbeddingUnavailable
	}
	return e.provider.Embed(ctx, EmbeddingText(article))
}

// EmbeddingText is the canonical text articles are embedded over: the title
// plus the leading slice of the body, cut on a rune boundary.
func EmbeddingText(article core.Article) string {
	body := article.BodyText
	if len(body) > 500 {
		cut := 500
		for cut > 0 && !utf8.RuneStart(body[cut]) {
			cut--
		}
		body = body[:cut]
	}
	return article.Title + " " + body
}

// Similarity is cosine similarity clamped to [0,1]; negative similarity is
// treated as no similarity at all.
func Similarity(a, b []float64) float64 {
	sim := llm.CosineSimilarity(a, b)
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
