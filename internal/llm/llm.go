package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"newsdesk/internal/config"
	"newsdesk/internal/core"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	// DefaultModel is the default Gemini model used for summaries and answers.
	DefaultModel = "gemini-1.5-flash"
	// DefaultEmbeddingModel is the default model for generating embeddings.
	DefaultEmbeddingModel = "text-embedding-004"
	// maxEmbeddingChars is a conservative input limit for the embedding model.
	maxEmbeddingChars = 8000
)

// Client wraps the Gemini API for embeddings and text generation. All
// failures are mapped onto the shared error taxonomy so callers can degrade
// uniformly.
type Client struct {
	gClient        *genai.Client
	modelName      string
	embeddingModel string
	maxTokens      int32
	temperature    float32
}

// NewClient creates a Gemini-backed client from configuration. The API key
// comes from GEMINI_API_KEY or ai.gemini.api_key.
func NewClient(ctx context.Context, cfg config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required; set GEMINI_API_KEY or ai.gemini.api_key")
	}

	gClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	return &Client{
		gClient:        gClient,
		modelName:      modelName,
		embeddingModel: embeddingModel,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	if c.gClient != nil {
		return c.gClient.Close()
	}
	return nil
}

// Embed generates a vector embedding for the given text. Long inputs are
// truncated to the model's practical limit.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if len(text) > maxEmbeddingChars {
		cut := maxEmbeddingChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}

	em := c.gClient.EmbeddingModel(c.embeddingModel)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrEmbeddingUnavailable, err)
	}
	if resp == nil || resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding values returned", core.ErrEmbeddingUnavailable)
	}

	values := resp.Embedding.Values
	embedding := make([]float64, len(values))
	for i, v := range values {
		embedding[i] = float64(v)
	}
	return embedding, nil
}

// Generate produces text for the given prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	model := c.gClient.GenerativeModel(c.modelName)
	if c.maxTokens > 0 {
		model.SetMaxOutputTokens(c.maxTokens)
	}
	model.SetTemperature(c.temperature)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrGenerationUnavailable, err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty response from model", core.ErrGenerationUnavailable)
	}
	return text, nil
}

// responseText concatenates the text parts of the first-pass candidates.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// CosineSimilarity calculates the cosine similarity between two embeddings.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
