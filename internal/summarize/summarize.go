package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

const summaryPromptTemplate = `You are a news summarizer. Create a concise, informative summary of the following article in 2-3 sentences. Write only the summary.

Title: %s

Content: %s`

// Generator produces text from a prompt. Failures are reported with
// core.ErrGenerationUnavailable.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures the summarizer behavior.
type Options struct {
	MaxLen          int // Character budget for a summary
	MaxPromptChars  int // How much article text is sent to the model
	MinSentenceLen  int // Sentences shorter than this are skipped by the fallback
	FallbackLeadLen int // How many leading sentences the fallback keeps
}

// DefaultOptions returns sensible defaults matching the production deployment.
func DefaultOptions() Options {
	return Options{
		MaxLen:          300,
		MaxPromptChars:  2000,
		MinSentenceLen:  20,
		FallbackLeadLen: 3,
	}
}

// Stats reports how often the summarizer reached for the extractive fallback.
type Stats struct {
	LLMCalls  int64
	Fallbacks int64
}

// Summarizer generates article summaries via an LLM with a mandatory
// extractive fallback. Summarize never fails: when the generator is missing
// or unavailable the fallback result is returned instead.
type Summarizer struct {
	generator Generator
	options   Options

	llmCalls  atomic.Int64
	fallbacks atomic.Int64
}

// New creates a summarizer. A nil generator is allowed and routes every call
// straight to the extractive fallback.
func New(generator Generator, options Options) *Summarizer {
	if options.MaxLen <= 0 {
		options = DefaultOptions()
	}
	return &Summarizer{generator: generator, options: options}
}

// NewWithDefaults creates a summarizer with default options.
func NewWithDefaults(generator Generator) *Summarizer {
	return New(generator, DefaultOptions())
}

// Summarize produces a summary for the titled text, at most maxLen bytes
// plus an ellipsis. maxLen <= 0 uses the configured default. The second
// return value reports whether this call used the extractive fallback.
func (s *Summarizer) Summarize(ctx context.Context, title, text string, maxLen int) (string, bool) {
	if maxLen <= 0 {
		maxLen = s.options.MaxLen
	}

	if s.generator != nil {
		prompt := fmt.Sprintf(summaryPromptTemplate, title, cutAtRune(text, s.options.MaxPromptChars))

		s.llmCalls.Add(1)
		summary, err := s.generator.Generate(ctx, prompt)
		if err == nil && summary != "" {
			return truncate(summary, maxLen), false
		}
	}

	s.fallbacks.Add(1)
	return truncate(s.ExtractiveSummary(text), maxLen), true
}

// ExtractiveSummary builds a summary from the first substantial sentences of
// the text. It cannot fail regardless of external-service availability.
func (s *Summarizer) ExtractiveSummary(text string) string {
	var sentences []string
	for _, raw := range strings.Split(text, ".") {
		sentence := strings.TrimSpace(raw)
		if len(sentence) > s.options.MinSentenceLen {
			sentences = append(sentences, sentence)
		}
		if len(sentences) == s.options.FallbackLeadLen {
			break
		}
	}

	if len(sentences) == 0 {
		// No substantial sentences at all; fall back to a leading slice.
		if len(text) > 200 {
			return cutAtRune(text, 200) + "..."
		}
		return text
	}

	return strings.Join(sentences, ". ") + "."
}

// Stats returns cumulative call counters.
func (s *Summarizer) Stats() Stats {
	return Stats{
		LLMCalls:  s.llmCalls.Load(),
		Fallbacks: s.fallbacks.Load(),
	}
}

func truncate(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return cutAtRune(text, maxLen) + "..."
}

// cutAtRune shortens text to at most max bytes without splitting a rune.
func cutAtRune(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
