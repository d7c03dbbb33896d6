package handlers

import (
	"context"
	"fmt"

	"newsdesk/internal/chat"
	"newsdesk/internal/clustering"
	"newsdesk/internal/config"
	"newsdesk/internal/fetch"
	"newsdesk/internal/llm"
	"newsdesk/internal/logger"
	"newsdesk/internal/pipeline"
	"newsdesk/internal/ranking"
	"newsdesk/internal/store"
	"newsdesk/internal/summarize"
	"newsdesk/internal/vectorstore"
)

// services bundles the wired application components shared by the serve,
// extract, and chat commands.
type services struct {
	cfg       *config.Config
	store     *store.Store
	persister *vectorstore.SQLitePersister
	index     *vectorstore.MemoryIndex
	llmClient *llm.Client // nil when running without an API key
	runner    *pipeline.Runner
	bot       *chat.Bot
}

// buildServices wires the full component graph from configuration. When no
// Gemini API key is configured it falls back to the deterministic hashing
// embedder and the extractive summarizer/chat paths, so every command still
// works offline.
func buildServices(ctx context.Context) (*services, error) {
	cfg := config.Get()
	log := logger.Get()

	st, err := store.New(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize article store: %w", err)
	}

	persister, err := vectorstore.NewSQLitePersister(cfg.App.DataDir)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize index persistence: %w", err)
	}

	var (
		client   *llm.Client
		provider clustering.EmbeddingProvider
		sumGen   summarize.Generator
		chatGen  chat.Generator
	)
	if cfg.AI.Gemini.APIKey != "" {
		client, err = llm.NewClient(ctx, cfg.AI.Gemini)
		if err != nil {
			persister.Close()
			st.Close()
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		provider, sumGen, chatGen = client, client, client
	} else {
		log.Warn("no Gemini API key configured, using offline hashing embedder and extractive summaries")
		provider = llm.NewHashEmbedder(0)
	}

	index, err := vectorstore.NewMemoryIndex(provider, persister)
	if err != nil {
		if client != nil {
			client.Close()
		}
		persister.Close()
		st.Close()
		return nil, fmt.Errorf("failed to load semantic index: %w", err)
	}

	summarizer := summarize.NewWithDefaults(sumGen)
	ranker := ranking.NewRanker(
		ranking.Weights{Frequency: cfg.Pipeline.FrequencyWeight, Priority: cfg.Pipeline.PriorityWeight},
		cfg.Pipeline.PriorityKeywords,
		summarizer,
	)
	extractor := fetch.NewExtractor(cfg.Pipeline.MaxArticlesPerPage)
	runner := pipeline.NewRunner(st, extractor, provider, ranker, index, cfg.Pipeline, cfg.Sources)
	bot := chat.NewBot(index, st, chatGen, cfg.Chat.TopK)

	return &services{
		cfg:       cfg,
		store:     st,
		persister: persister,
		index:     index,
		llmClient: client,
		runner:    runner,
		bot:       bot,
	}, nil
}

// Close releases every resource the service graph holds.
func (s *services) Close() {
	log := logger.Get()
	if s.llmClient != nil {
		if err := s.llmClient.Close(); err != nil {
			log.Error("failed to close Gemini client", "error", err.Error())
		}
	}
	if err := s.persister.Close(); err != nil {
		log.Error("failed to close index persistence", "error", err.Error())
	}
	if err := s.store.Close(); err != nil {
		log.Error("failed to close article store", "error", err.Error())
	}
}
