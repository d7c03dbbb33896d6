package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"newsdesk/internal/clustering"
	"newsdesk/internal/config"
	"newsdesk/internal/core"
	"newsdesk/internal/logger"
	"newsdesk/internal/ranking"
	"newsdesk/internal/vectorstore"

	"golang.org/x/sync/errgroup"
)

// reuseWindow is how fresh stored articles must be for a non-forced run to
// skip scraping and re-process what is already extracted.
const reuseWindow = time.Hour

// Extractor supplies a category's raw article batch.
type Extractor interface {
	ExtractCategory(ctx context.Context, category string, sources []string) []core.Article
}

// Storage is the narrow slice of the article store the pipeline needs.
type Storage interface {
	UpsertArticle(ctx context.Context, article core.Article) (string, error)
	GetArticles(ctx context.Context, category string, since time.Time) ([]core.Article, error)
	ReplaceHighlights(ctx context.Context, category string, highlights []core.Highlight) (stale []string, err error)
}

// Runner executes extraction-and-indexing runs. Stages run in order within a
// run; runs for different categories proceed fully in parallel while runs for
// the same category are serialized behind a per-category lock. Submission
// returns immediately; progress is visible through the status registry.
type Runner struct {
	store     Storage
	extractor Extractor
	provider  clustering.EmbeddingProvider
	ranker    *ranking.Ranker
	index     vectorstore.Index
	cfg       config.Pipeline
	sources   config.Sources
	log       *slog.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	status map[string]*core.RunStatus
	wg     sync.WaitGroup
}

// NewRunner wires a pipeline runner.
func NewRunner(store Storage, extractor Extractor, provider clustering.EmbeddingProvider,
	ranker *ranking.Ranker, index vectorstore.Index,
	cfg config.Pipeline, sources config.Sources) *Runner {
	return &Runner{
		store:     store,
		extractor: extractor,
		provider:  provider,
		ranker:    ranker,
		index:     index,
		cfg:       cfg,
		sources:   sources,
		log:       logger.Get(),
		locks:     make(map[string]*sync.Mutex),
		status:    make(map[string]*core.RunStatus),
	}
}

// Submit validates the requested categories and starts a background run per
// category. It returns the accepted categories immediately; nil categories
// means every configured category.
func (r *Runner) Submit(ctx context.Context, categories []string, force bool) ([]string, error) {
	if len(categories) == 0 {
		categories = r.sources.CategoryNames()
	}
	for _, category := range categories {
		if !r.sources.Has(category) {
			return nil, fmt.Errorf("%w: unknown category %q", core.ErrInvalidArgument, category)
		}
	}

	for _, category := range categories {
		category := category
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.RunCategory(ctx, category, force); err != nil {
				r.log.Error("extraction run failed", "category", category, "error", err.Error())
			}
		}()
	}
	return categories, nil
}

// Wait blocks until every submitted run has finished. Intended for CLI use
// and tests; the server never calls it.
func (r *Runner) Wait() { r.wg.Wait() }

// RunCategory executes one category's pipeline synchronously: fetch, embed,
// cluster, rank, persist, index. Embedding or generation trouble degrades
// the run; only store failures abort it.
func (r *Runner) RunCategory(ctx context.Context, category string, force bool) error {
	lock := r.categoryLock(category)
	lock.Lock()
	defer lock.Unlock()

	r.setStatus(category, func(st *core.RunStatus) {
		*st = core.RunStatus{
			Category:  category,
			State:     core.RunStateRunning,
			StartedAt: time.Now().UTC(),
		}
	})

	err := r.run(ctx, category, force)
	if err != nil {
		r.setStatus(category, func(st *core.RunStatus) {
			st.State = core.RunStateFailed
			st.Error = err.Error()
			st.FinishedAt = time.Now().UTC()
		})
		return err
	}

	r.setStatus(category, func(st *core.RunStatus) {
		st.State = core.RunStateCompleted
		st.FinishedAt = time.Now().UTC()
	})
	return nil
}

func (r *Runner) run(ctx context.Context, category string, force bool) error {
	articles, err := r.articleBatch(ctx, category, force)
	if err != nil {
		return err
	}
	r.setStatus(category, func(st *core.RunStatus) { st.ArticleCount = len(articles) })
	if len(articles) == 0 {
		r.log.Warn("no articles extracted", "category", category)
		return nil
	}

	embedFailures := r.embedStage(ctx, articles)
	if embedFailures > 0 {
		r.setStatus(category, func(st *core.RunStatus) { st.Degraded = true })
	}

	engine := clustering.NewEngine(r.provider)
	clusters, err := engine.Cluster(ctx, articles, r.cfg.SimilarityThreshold)
	if err != nil {
		return fmt.Errorf("clustering %s: %w", category, err)
	}
	if engine.EmbedFailures() > 0 {
		r.setStatus(category, func(st *core.RunStatus) { st.Degraded = true })
	}
	r.setStatus(category, func(st *core.RunStatus) { st.ClusterCount = len(clusters) })

	highlights, summaryFallbacks, err := r.ranker.Rank(ctx, clusters, articles, r.cfg.CategoryLimit)
	if err != nil {
		return fmt.Errorf("ranking %s: %w", category, err)
	}
	if summaryFallbacks > 0 {
		r.setStatus(category, func(st *core.RunStatus) { st.Degraded = true })
	}
	r.setStatus(category, func(st *core.RunStatus) { st.HighlightCount = len(highlights) })

	// Persist atomically: prior highlights for the category are superseded
	// and the fresh set written in one transaction.
	stale, err := r.store.ReplaceHighlights(ctx, category, highlights)
	if err != nil {
		return fmt.Errorf("persisting highlights for %s: %w", category, err)
	}

	r.indexStage(ctx, category, stale, highlights)

	r.log.Info("extraction run completed", "category", category,
		"articles", len(articles), "clusters", len(clusters), "highlights", len(highlights))
	return nil
}

// articleBatch scrapes fresh articles, or re-uses recently extracted ones
// when the run was not forced. Every scraped article is written through to
// the store so re-extractions upsert instead of duplicating.
func (r *Runner) articleBatch(ctx context.Context, category string, force bool) ([]core.Article, error) {
	if !force {
		recent, err := r.store.GetArticles(ctx, category, time.Now().UTC().Add(-reuseWindow))
		if err != nil {
			return nil, fmt.Errorf("loading recent articles: %w", err)
		}
		if len(recent) > 0 {
			r.log.Info("reusing recently extracted articles", "category", category, "count", len(recent))
			return recent, nil
		}
	}

	scraped := r.extractor.ExtractCategory(ctx, category, r.sources.Categories[category])
	stored := make([]core.Article, 0, len(scraped))
	for _, article := range scraped {
		id, err := r.store.UpsertArticle(ctx, article)
		if err != nil {
			return nil, fmt.Errorf("storing article %s: %w", article.URL, err)
		}
		article.ID = id
		stored = append(stored, article)
	}
	return stored, nil
}

// embedStage fills in missing article embeddings concurrently, bounded by
// the configured parallelism, and caches them write-through. Failures leave
// the embedding nil; clustering turns those articles into singletons.
func (r *Runner) embedStage(ctx context.Context, articles []core.Article) int {
	concurrency := r.cfg.EmbedConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var mu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range articles {
		if len(articles[i].Embedding) > 0 {
			continue
		}
		i := i
		g.Go(func() error {
			vec, err := r.provider.Embed(gctx, clustering.EmbeddingText(articles[i]))
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				r.log.Warn("embedding failed", "article_id", articles[i].ID, "error", err.Error())
				return nil // degrade, never abort the batch
			}
			articles[i].Embedding = vec
			if _, err := r.store.UpsertArticle(gctx, articles[i]); err != nil {
				r.log.Warn("caching embedding failed", "article_id", articles[i].ID, "error", err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()
	return failures
}

// indexStage removes superseded entries and upserts the fresh highlights.
// Index writes are atomic per highlight; individual failures degrade.
func (r *Runner) indexStage(ctx context.Context, category string, stale []string, highlights []core.Highlight) {
	for _, id := range stale {
		if err := r.index.Remove(ctx, id); err != nil {
			r.log.Warn("removing index entry failed", "highlight_id", id, "error", err.Error())
		}
	}
	for _, highlight := range highlights {
		if err := r.index.Upsert(ctx, highlight); err != nil {
			r.setStatus(category, func(st *core.RunStatus) { st.Degraded = true })
			if errors.Is(err, core.ErrEmbeddingUnavailable) {
				r.log.Warn("skipping index entry, embedding unavailable", "highlight_id", highlight.ID)
				continue
			}
			r.log.Warn("indexing highlight failed", "highlight_id", highlight.ID, "error", err.Error())
		}
	}
}

// Status returns a snapshot of every known category's run status. Categories
// that never ran report idle.
func (r *Runner) Status() []core.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make([]core.RunStatus, 0, len(r.sources.Categories))
	for _, category := range r.sources.CategoryNames() {
		if st, ok := r.status[category]; ok {
			statuses = append(statuses, *st)
			continue
		}
		statuses = append(statuses, core.RunStatus{Category: category, State: core.RunStateIdle})
	}
	return statuses
}

func (r *Runner) categoryLock(category string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locks[category]; !ok {
		r.locks[category] = &sync.Mutex{}
	}
	return r.locks[category]
}

func (r *Runner) setStatus(category string, update func(*core.RunStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.status[category]
	if !ok {
		st = &core.RunStatus{Category: category, State: core.RunStateIdle}
		r.status[category] = st
	}
	update(st)
}
