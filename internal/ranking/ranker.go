package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/logger"
	"newsdesk/internal/summarize"

	"github.com/google/uuid"
)

// Weights configures the cluster scoring function. Values come from
// configuration, never from code.
type Weights struct {
	Frequency float64
	Priority  float64
}

// DefaultWeights favor frequency but let a priority keyword promote a
// low-frequency cluster past the cutoff.
func DefaultWeights() Weights {
	return Weights{Frequency: 1.0, Priority: 10.0}
}

// Ranker converts duplicate clusters into ranked, capped highlight lists.
type Ranker struct {
	weights    Weights
	keywords   []*regexp.Regexp
	summarizer *summarize.Summarizer
	log        *slog.Logger
}

// NewRanker creates a ranker. Priority keywords are matched case-insensitive
// and whole-word against member titles and bodies.
func NewRanker(weights Weights, priorityKeywords []string, summarizer *summarize.Summarizer) *Ranker {
	keywords := make([]*regexp.Regexp, 0, len(priorityKeywords))
	for _, kw := range priorityKeywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		keywords = append(keywords, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return &Ranker{
		weights:    weights,
		keywords:   keywords,
		summarizer: summarizer,
		log:        logger.Get(),
	}
}

// scored pairs a cluster with everything needed to order and emit it.
type scored struct {
	cluster        core.Cluster
	representative core.Article
	members        []core.Article
	priority       bool
	score          float64
}

// Rank scores clusters and returns at most limit highlights in rank order,
// plus how many of their summaries fell back to extraction during this call.
// Empty input or a non-positive limit yields an empty result, not an error.
// Cluster member IDs must resolve through the articles slice.
func (r *Ranker) Rank(ctx context.Context, clusters []core.Cluster, articles []core.Article, limit int) ([]core.Highlight, int, error) {
	if len(clusters) == 0 || limit <= 0 {
		return []core.Highlight{}, 0, nil
	}

	byID := make(map[string]core.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	entries := make([]scored, 0, len(clusters))
	for _, cluster := range clusters {
		rep, ok := byID[cluster.RepresentativeID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: cluster representative %q not in article batch",
				core.ErrInvalidArgument, cluster.RepresentativeID)
		}

		members := make([]core.Article, 0, len(cluster.MemberIDs))
		for _, id := range cluster.MemberIDs {
			member, ok := byID[id]
			if !ok {
				return nil, 0, fmt.Errorf("%w: cluster member %q not in article batch", core.ErrInvalidArgument, id)
			}
			members = append(members, member)
		}

		priority := r.priorityMatch(members)
		score := r.weights.Frequency*float64(len(members)) + r.weights.Priority*boolToFloat(priority)
		entries = append(entries, scored{
			cluster:        cluster,
			representative: rep,
			members:        members,
			priority:       priority,
			score:          score,
		})
	}

	// Score descending; ties go to the more recent representative, then to
	// lexical title order so the ranking is deterministic.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].score != entries[j].score {
			return entries[i].score > entries[j].score
		}
		pi, pj := entries[i].representative.PublishedAt, entries[j].representative.PublishedAt
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return entries[i].representative.Title < entries[j].representative.Title
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	now := time.Now().UTC()
	fallbacks := 0
	highlights := make([]core.Highlight, 0, len(entries))
	for _, entry := range entries {
		rep := entry.representative
		summary, fellBack := r.summarizer.Summarize(ctx, rep.Title, rep.BodyText, 0)
		if fellBack {
			fallbacks++
		}

		highlights = append(highlights, core.Highlight{
			ID:               uuid.NewString(),
			Category:         entry.cluster.Category,
			Title:            rep.Title,
			Summary:          summary,
			Frequency:        len(entry.members),
			Priority:         entry.priority,
			Sources:          uniqueSources(entry.members),
			URLs:             memberURLs(entry.members),
			RepresentativeID: rep.ID,
			CreatedAt:        now,
		})
	}
	return highlights, fallbacks, nil
}

// priorityMatch reports whether any member's title or body contains a
// configured priority keyword.
func (r *Ranker) priorityMatch(members []core.Article) bool {
	for _, member := range members {
		text := member.Title + " " + member.BodyText
		for _, keyword := range r.keywords {
			if keyword.MatchString(text) {
				return true
			}
		}
	}
	return false
}

func uniqueSources(members []core.Article) []string {
	seen := make(map[string]bool, len(members))
	sources := make([]string, 0, len(members))
	for _, m := range members {
		if m.Source == "" || seen[m.Source] {
			continue
		}
		seen[m.Source] = true
		sources = append(sources, m.Source)
	}
	return sources
}

func memberURLs(members []core.Article) []string {
	urls := make([]string, 0, len(members))
	for _, m := range members {
		urls = append(urls, m.URL)
	}
	return urls
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
