package cli

import (
	"fmt"
	"time"

	"github.com/nickbits/docvec/internal/chunker"
	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/embeddings"
	"github.com/nickbits/docvec/internal/retrieval"
)

// openService loads the snapshot, constructs the embedding gateway, and
// wires both into a retrieval service per the active configuration.
func openService(cfg *config.Config) (*retrieval.Service, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding service: %w", err)
	}

	store := retrieval.OpenStore(cfg.Snapshot.Path)

	opts := retrieval.Options{
		Chunking: chunker.Options{
			MaxChunkSize: cfg.Chunking.ChunkSize,
			Overlap:      cfg.Chunking.ChunkOverlap,
		},
		BatchSize:      cfg.Ingestion.BatchSize,
		MaxAttempts:    cfg.Embeddings.MaxAttempts,
		RetryBaseDelay: time.Duration(cfg.Embeddings.RetryBaseDelayMS) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.Embeddings.RequestTimeoutSec) * time.Second,
		SnapshotPath:   cfg.Snapshot.Path,
	}

	return retrieval.New(store, emb, opts), nil
}

// newEmbedder builds the configured embedding gateway.
func newEmbedder(cfg *config.Config) (embeddings.Service, error) {
	switch embeddings.Provider(cfg.Embeddings.Provider) {
	case embeddings.ProviderOllama:
		return embeddings.NewService(embeddings.Config{
			Provider: embeddings.ProviderOllama,
			Model:    cfg.Embeddings.Ollama.Model,
			BaseURL:  cfg.Embeddings.Ollama.URL,
		})
	case embeddings.ProviderOpenAI:
		return embeddings.NewService(embeddings.Config{
			Provider:   embeddings.ProviderOpenAI,
			Model:      cfg.Embeddings.OpenAI.Model,
			BaseURL:    cfg.Embeddings.OpenAI.BaseURL,
			APIKey:     cfg.Embeddings.OpenAI.APIKey,
			Dimensions: cfg.Embeddings.OpenAI.Dimensions,
		})
	default:
		return embeddings.NewService(embeddings.Config{
			Provider: embeddings.Provider(cfg.Embeddings.Provider),
		})
	}
}
