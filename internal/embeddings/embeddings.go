// Package embeddings provides the gateway to external embedding
// providers. The retrieval engine depends only on the Service interface;
// providers may suspend on network I/O and fail transiently, and callers
// own the retry policy.
package embeddings

import "context"

// Provider identifies an embedding provider type.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// Service converts text into fixed-dimension vectors. EmbedBatch returns
// one vector per input, in input order.
type Service interface {
	// Embed generates an embedding for document text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedQuery generates an embedding for a query (some models use a
	// different task prefix for queries).
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// order and cardinality.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality for this model.
	Dimensions() int

	// Provider returns the provider name.
	Provider() Provider

	// ModelName returns the model name.
	ModelName() string
}

// Config selects and configures a provider.
type Config struct {
	Provider   Provider
	Model      string
	BaseURL    string // provider endpoint; optional for OpenAI
	APIKey     string // required for OpenAI
	Dimensions int    // 0 means look up or infer from the first response
}

// Known model dimensions
var modelDimensions = map[string]int{
	// Ollama models
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,

	// OpenAI models
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// GetModelDimensions returns the known dimensions for a model, or 0 if
// unknown.
func GetModelDimensions(model string) int {
	return modelDimensions[model]
}

// NewService creates an embedding service for the configured provider.
func NewService(cfg Config) (Service, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaService(cfg.BaseURL, cfg.Model)
	case ProviderOpenAI:
		return NewOpenAIService(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Dimensions)
	default:
		return nil, &UnsupportedProviderError{Provider: string(cfg.Provider)}
	}
}

// UnsupportedProviderError reports an unrecognized provider name.
type UnsupportedProviderError struct {
	Provider string
}

func (e *UnsupportedProviderError) Error() string {
	return "unsupported embedding provider: " + e.Provider
}
