package core

import "errors"

// Error taxonomy shared across the pipeline. Embedding and generation failures
// are recovered locally with deterministic fallbacks and never fail a run;
// invalid arguments reject the call immediately; store failures abort the run.
var (
	// ErrEmbeddingUnavailable indicates the embedding provider could not
	// produce a vector. Callers degrade (singleton clusters, skipped index
	// entries) instead of propagating this as a run failure.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrGenerationUnavailable indicates the LLM could not produce text.
	// Callers fall back to extractive summarization or answering.
	ErrGenerationUnavailable = errors.New("text generation unavailable")

	// ErrInvalidArgument indicates a caller error (bad threshold, bad top_k).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable indicates the persistence layer is unreachable.
	// Fatal to the current run.
	ErrStoreUnavailable = errors.New("store unavailable")
)
