package core

import "time"

// Article represents a single news article extracted from an outlet.
type Article struct {
	ID          string    `json:"id"`           // Unique identifier for the article
	Source      string    `json:"source"`       // Outlet the article came from (e.g., "abc.net.au")
	Category    string    `json:"category"`     // News category (e.g., "sports", "finance")
	Title       string    `json:"title"`        // Article headline
	BodyText    string    `json:"body_text"`    // Cleaned article text
	Author      string    `json:"author"`       // Author byline (may be empty)
	PublishedAt time.Time `json:"published_at"` // Publication timestamp
	URL         string    `json:"url"`          // Canonical article URL
	Embedding   []float64 `json:"embedding"`    // Vector embedding, computed lazily and cached
	ExtractedAt time.Time `json:"extracted_at"` // When the article was extracted
}

// Cluster groups near-duplicate articles within one category and run.
// Clusters are transient: they exist only for the duration of a pipeline run.
type Cluster struct {
	MemberIDs        []string `json:"member_ids"`        // IDs of articles in this cluster, in join order
	RepresentativeID string   `json:"representative_id"` // ID of the representative article
	Category         string   `json:"category"`          // Category shared by every member
}

// Size returns the number of member articles.
func (c Cluster) Size() int { return len(c.MemberIDs) }

// Highlight is a ranked, deduplicated news item derived from a cluster.
type Highlight struct {
	ID               string    `json:"id"`                // Unique identifier for the highlight
	Category         string    `json:"category"`          // Category the highlight belongs to
	Title            string    `json:"title"`             // Representative article's headline
	Summary          string    `json:"summary"`           // Generated or extractive summary
	Frequency        int       `json:"frequency"`         // Cluster member count
	Priority         bool      `json:"priority"`          // True when a priority keyword matched
	Sources          []string  `json:"sources"`           // Outlets that reported the story
	URLs             []string  `json:"urls"`              // Member article URLs
	RepresentativeID string    `json:"representative_id"` // ID of the representative article
	CreatedAt        time.Time `json:"created_at"`        // When the highlight was generated
}

// IndexEntry is what the semantic index stores per highlight. Its lifecycle is
// tied 1:1 to the highlight: upserted together, removed when superseded.
type IndexEntry struct {
	HighlightID string    `json:"highlight_id"`
	Embedding   []float64 `json:"embedding"`
	Text        string    `json:"text"`       // Text the embedding was computed from
	CreatedAt   time.Time `json:"created_at"` // CreatedAt of the underlying highlight
}

// RunState describes where a category's extraction run currently is.
type RunState string

const (
	RunStateIdle      RunState = "idle"
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStateFailed    RunState = "failed"
)

// RunStatus is the poll-able status of one category's extraction run.
type RunStatus struct {
	Category       string    `json:"category"`
	State          RunState  `json:"state"`
	ArticleCount   int       `json:"article_count"`
	ClusterCount   int       `json:"cluster_count"`
	HighlightCount int       `json:"highlight_count"`
	Degraded       bool      `json:"degraded"` // True when a fallback fired during the run
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	FinishedAt     time.Time `json:"finished_at,omitempty"`
}
