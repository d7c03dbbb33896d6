package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/internal/core"
	"newsdesk/internal/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

// linkSelectors are common patterns for article links on outlet index pages,
// tried in order before falling back to scanning every anchor.
var linkSelectors = []string{
	`a[href*="/news/"]`,
	`a[href*="/article/"]`,
	`a[href*="/story/"]`,
	`a[href*="/sport/"]`,
	`a[href*="/business/"]`,
	`a[href*="/lifestyle/"]`,
	`a[href*="/entertainment/"]`,
	"article a",
	".article a",
	".story a",
	".news-item a",
}

// Extractor scrapes outlet category pages and pulls clean article text. It is
// deliberately generic: a selector cascade with a scan-everything fallback,
// no outlet-specific logic.
type Extractor struct {
	client      *http.Client
	maxPerPage  int
	PolitePause time.Duration
	log         *slog.Logger
}

// NewExtractor creates an extractor that keeps at most maxPerPage articles
// per source page.
func NewExtractor(maxPerPage int) *Extractor {
	if maxPerPage <= 0 {
		maxPerPage = 10
	}
	return &Extractor{
		client:      &http.Client{Timeout: 15 * time.Second},
		maxPerPage:  maxPerPage,
		PolitePause: time.Second,
		log:         logger.Get(),
	}
}

// ExtractCategory scrapes every source page configured for the category.
// Individual source failures are logged and skipped; the batch never aborts.
func (e *Extractor) ExtractCategory(ctx context.Context, category string, sources []string) []core.Article {
	var articles []core.Article
	for _, src := range sources {
		fromSource, err := e.extractFromSource(ctx, src, category)
		if err != nil {
			e.log.Warn("source extraction failed", "source", src, "category", category, "error", err.Error())
			continue
		}
		articles = append(articles, fromSource...)

		select {
		case <-ctx.Done():
			return articles
		case <-time.After(e.PolitePause):
		}
	}
	return articles
}

func (e *Extractor) extractFromSource(ctx context.Context, pageURL, category string) ([]core.Article, error) {
	doc, err := e.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	links := discoverArticleLinks(doc, pageURL)
	if len(links) > e.maxPerPage {
		links = links[:e.maxPerPage]
	}
	e.log.Debug("discovered article links", "source", pageURL, "count", len(links))

	source := hostName(pageURL)
	now := time.Now().UTC()

	var articles []core.Article
	for _, link := range links {
		article, err := e.extractArticle(ctx, link.url, link.title)
		if err != nil {
			e.log.Debug("article extraction failed", "url", link.url, "error", err.Error())
			continue
		}
		article.ID = uuid.NewString()
		article.Source = source
		article.Category = category
		article.ExtractedAt = now
		if article.PublishedAt.IsZero() {
			article.PublishedAt = now
		}
		articles = append(articles, article)
	}
	return articles, nil
}

type discoveredLink struct {
	url   string
	title string
}

// discoverArticleLinks walks the selector cascade over the index page and
// falls back to every anchor when nothing matched.
func discoverArticleLinks(doc *goquery.Document, pageURL string) []discoveredLink {
	seen := make(map[string]bool)
	var links []discoveredLink

	collect := func(sel *goquery.Selection) {
		sel.Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			text := strings.TrimSpace(s.Text())
			if href == "" || len(text) <= 20 || !looksLikeArticle(href) {
				return
			}
			full := absoluteURL(pageURL, href)
			if full == "" || seen[full] {
				return
			}
			seen[full] = true
			links = append(links, discoveredLink{url: full, title: text})
		})
	}

	for _, selector := range linkSelectors {
		collect(doc.Find(selector))
	}
	if len(links) == 0 {
		collect(doc.Find("a[href]"))
	}
	return links
}

// looksLikeArticle filters navigation, index, and media links.
func looksLikeArticle(href string) bool {
	lower := strings.ToLower(href)
	for _, skip := range []string{"video", "gallery", "photos", "live-blog", "podcast", "#", "mailto:", "javascript:"} {
		if strings.Contains(lower, skip) {
			return false
		}
	}
	// Article URLs tend to carry a dated or slugged path segment.
	return strings.Count(strings.Trim(lower, "/"), "/") >= 1
}

// extractArticle fetches one article page and strips it down to clean text.
func (e *Extractor) extractArticle(ctx context.Context, articleURL, fallbackTitle string) (core.Article, error) {
	doc, err := e.fetchDocument(ctx, articleURL)
	if err != nil {
		return core.Article{}, err
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = fallbackTitle
	}

	text := mainContentText(doc)
	if len(text) < 100 {
		return core.Article{}, fmt.Errorf("no meaningful text content in %s", articleURL)
	}

	return core.Article{
		Title:       title,
		BodyText:    text,
		Author:      strings.TrimSpace(doc.Find(`[rel="author"], .author, .byline`).First().Text()),
		PublishedAt: publishedTime(doc),
		URL:         articleURL,
	}, nil
}

// mainContentText prefers common main-content selectors over the whole body.
func mainContentText(doc *goquery.Document) string {
	var text string
	for _, selector := range []string{"article", "main", ".content", "#content", ".post-body", ".entry-content"} {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text += s.Text() + " "
		})
		if strings.TrimSpace(text) != "" {
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}
	return strings.Join(strings.Fields(text), " ")
}

// publishedTime reads standard publication metadata from the page head.
func publishedTime(doc *goquery.Document) time.Time {
	for _, selector := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="article:published_time"]`,
		`meta[itemprop="datePublished"]`,
		`time[datetime]`,
	} {
		var value string
		node := doc.Find(selector).First()
		if v, ok := node.Attr("content"); ok {
			value = v
		} else if v, ok := node.Attr("datetime"); ok {
			value = v
		}
		if value == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func (e *Extractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}
	return doc, nil
}

func absoluteURL(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return ""
	}
	rel, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := baseURL.ResolveReference(rel)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

func hostName(pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return pageURL
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
