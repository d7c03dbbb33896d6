package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"newsdesk/internal/core"
	"newsdesk/internal/logger"
	"newsdesk/internal/vectorstore"
)

const answerPromptTemplate = `You are a helpful assistant that answers questions about news highlights. Use the provided context to answer accurately. If the context doesn't contain relevant information, say so.

Context from news highlights:

%s

User question: %s

Please provide a helpful answer based on the context above.`

const noContextReply = "I don't have enough information about recent news highlights to answer your question. Try triggering an extraction run first, or ask about one of the configured news categories."

// Generator produces text from a prompt; failures carry
// core.ErrGenerationUnavailable.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// HighlightLoader resolves highlight IDs retrieved from the semantic index.
type HighlightLoader interface {
	GetHighlights(ctx context.Context, ids []string) ([]core.Highlight, error)
}

// Bot answers user questions about highlights using retrieval-augmented
// generation, degrading to an extractive answer whenever the generative
// backend is unavailable. Answer always returns a reply.
type Bot struct {
	index      vectorstore.Index
	highlights HighlightLoader
	generator  Generator
	topK       int
	log        *slog.Logger
}

// NewBot creates a chat bot over the semantic index. A nil generator routes
// every answer through the extractive fallback.
func NewBot(index vectorstore.Index, highlights HighlightLoader, generator Generator, topK int) *Bot {
	if topK <= 0 {
		topK = 3
	}
	return &Bot{
		index:      index,
		highlights: highlights,
		generator:  generator,
		topK:       topK,
		log:        logger.Get(),
	}
}

// Answer responds to a user question. The error return is reserved for
// caller mistakes (empty question); retrieval or generation trouble degrades
// to a fallback reply instead.
func (b *Bot) Answer(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question must not be empty", core.ErrInvalidArgument)
	}

	matches, err := b.index.Query(ctx, question, b.topK)
	if err != nil {
		b.log.Warn("semantic retrieval failed, answering without context", "error", err.Error())
		return noContextReply, nil
	}
	if len(matches) == 0 {
		return noContextReply, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.HighlightID)
	}
	highlights, err := b.highlights.GetHighlights(ctx, ids)
	if err != nil || len(highlights) == 0 {
		if err != nil {
			b.log.Warn("loading retrieved highlights failed", "error", err.Error())
		}
		return noContextReply, nil
	}

	if b.generator != nil {
		prompt := fmt.Sprintf(answerPromptTemplate, contextBlock(highlights), question)
		answer, genErr := b.generator.Generate(ctx, prompt)
		if genErr == nil && answer != "" {
			return answer, nil
		}
		b.log.Warn("generation unavailable, using extractive answer", "error", fmt.Sprint(genErr))
	}

	return extractiveAnswer(highlights, question), nil
}

// contextBlock renders retrieved highlights as numbered context snippets.
func contextBlock(highlights []core.Highlight) string {
	var sb strings.Builder
	for i, h := range highlights {
		fmt.Fprintf(&sb, "News Highlight %d:\nTitle: %s\nCategory: %s\nSummary: %s\nSources: %s\nReported by %d articles\n\n",
			i+1, h.Title, h.Category, h.Summary, strings.Join(h.Sources, ", "), h.Frequency)
	}
	return strings.TrimSpace(sb.String())
}

// extractiveAnswer picks the snippet sharing the most question terms and
// returns its title and summary. Mandatory fallback: it cannot fail.
func extractiveAnswer(highlights []core.Highlight, question string) string {
	best := highlights[0]
	bestScore := -1
	terms := questionTerms(question)

	for _, h := range highlights {
		text := strings.ToLower(h.Title + " " + h.Summary)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > bestScore {
			best = h
			bestScore = score
		}
	}

	return fmt.Sprintf("Based on the news highlights:\n\n%s (%s): %s", best.Title, best.Category, best.Summary)
}

func questionTerms(question string) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(question)) {
		if len(word) > 3 {
			terms = append(terms, word)
		}
	}
	return terms
}
