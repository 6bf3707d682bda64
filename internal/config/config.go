// Package config handles configuration loading and validation for docvec.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// Config represents the complete docvec configuration.
type Config struct {
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Snapshot   SnapshotConfig   `mapstructure:"snapshot"`
	Chunking   ChunkingConfig   `mapstructure:"chunking"`
	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Ignore     []string         `mapstructure:"ignore"`
}

// EmbeddingsConfig configures the embedding service.
type EmbeddingsConfig struct {
	Provider string            `mapstructure:"provider"`
	Ollama   OllamaEmbedConfig `mapstructure:"ollama"`
	OpenAI   OpenAIEmbedConfig `mapstructure:"openai"`

	// Retry behavior for transient provider failures.
	MaxAttempts       int `mapstructure:"max_attempts"`
	RetryBaseDelayMS  int `mapstructure:"retry_base_delay_ms"`
	RequestTimeoutSec int `mapstructure:"request_timeout_sec"`
}

// OllamaEmbedConfig configures Ollama embeddings.
type OllamaEmbedConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

// OpenAIEmbedConfig configures OpenAI embeddings.
type OpenAIEmbedConfig struct {
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Dimensions int    `mapstructure:"dimensions"`
}

// SnapshotConfig configures store persistence.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// ChunkingConfig configures document chunking.
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// IngestionConfig configures the corpus ingestion process.
type IngestionConfig struct {
	MaxFileSize  int64 `mapstructure:"max_file_size"`
	MaxFileCount int   `mapstructure:"max_file_count"`
	BatchSize    int   `mapstructure:"batch_size"`
}

// RetrievalConfig configures query behavior.
type RetrievalConfig struct {
	TopK     int     `mapstructure:"top_k"`
	MinScore float64 `mapstructure:"min_score"`
}

// Global configuration instance
var cfg *Config

// Get returns the current configuration.
func Get() *Config {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Embeddings: EmbeddingsConfig{
			Provider: DefaultEmbeddingProvider,
			Ollama: OllamaEmbedConfig{
				URL:   DefaultOllamaURL,
				Model: DefaultOllamaEmbedModel,
			},
			OpenAI: OpenAIEmbedConfig{
				Model: DefaultOpenAIEmbedModel,
			},
			MaxAttempts:       DefaultMaxAttempts,
			RetryBaseDelayMS:  DefaultRetryBaseDelayMS,
			RequestTimeoutSec: DefaultRequestTimeoutSec,
		},
		Snapshot: SnapshotConfig{
			Path: DefaultSnapshotPath(),
		},
		Chunking: ChunkingConfig{
			ChunkSize:    DefaultChunkSize,
			ChunkOverlap: DefaultChunkOverlap,
		},
		Ingestion: IngestionConfig{
			MaxFileSize:  DefaultMaxFileSize,
			MaxFileCount: DefaultMaxFileCount,
			BatchSize:    DefaultBatchSize,
		},
		Retrieval: RetrievalConfig{
			TopK:     DefaultTopK,
			MinScore: DefaultMinScore,
		},
		Ignore: DefaultIgnorePatterns(),
	}
}

// Load reads configuration from file and environment variables.
func Load(configFile string) error {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(DefaultConfigDir())
		viper.AddConfigPath(".")

		// Also check for .docvecrc.yaml in current directory and parents
		if rcPath := findRCFile(); rcPath != "" {
			viper.SetConfigFile(rcPath)
		}
	}

	// Environment variables
	viper.SetEnvPrefix("DOCVEC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug("No config file found, using defaults")
	} else {
		log.Debug("Loaded config from", "file", viper.ConfigFileUsed())
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error parsing config: %w", err)
	}

	loadAPIKeysFromEnv()

	return cfg.Validate()
}

// Validate rejects configurations that cannot produce a working service.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 {
		return fmt.Errorf("chunking.chunk_overlap must not be negative, got %d", c.Chunking.ChunkOverlap)
	}
	if c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap (%d) must be smaller than chunking.chunk_size (%d)",
			c.Chunking.ChunkOverlap, c.Chunking.ChunkSize)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("retrieval.min_score must be within [-1, 1], got %g", c.Retrieval.MinScore)
	}
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion.batch_size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if c.Embeddings.MaxAttempts <= 0 {
		return fmt.Errorf("embeddings.max_attempts must be positive, got %d", c.Embeddings.MaxAttempts)
	}
	return nil
}

// setDefaults sets default values in viper.
func setDefaults() {
	// Embeddings
	viper.SetDefault("embeddings.provider", DefaultEmbeddingProvider)
	viper.SetDefault("embeddings.ollama.url", DefaultOllamaURL)
	viper.SetDefault("embeddings.ollama.model", DefaultOllamaEmbedModel)
	viper.SetDefault("embeddings.openai.model", DefaultOpenAIEmbedModel)
	viper.SetDefault("embeddings.max_attempts", DefaultMaxAttempts)
	viper.SetDefault("embeddings.retry_base_delay_ms", DefaultRetryBaseDelayMS)
	viper.SetDefault("embeddings.request_timeout_sec", DefaultRequestTimeoutSec)

	// Snapshot
	viper.SetDefault("snapshot.path", DefaultSnapshotPath())

	// Chunking
	viper.SetDefault("chunking.chunk_size", DefaultChunkSize)
	viper.SetDefault("chunking.chunk_overlap", DefaultChunkOverlap)

	// Ingestion
	viper.SetDefault("ingestion.max_file_size", DefaultMaxFileSize)
	viper.SetDefault("ingestion.max_file_count", DefaultMaxFileCount)
	viper.SetDefault("ingestion.batch_size", DefaultBatchSize)

	// Retrieval
	viper.SetDefault("retrieval.top_k", DefaultTopK)
	viper.SetDefault("retrieval.min_score", DefaultMinScore)

	// Ignore patterns
	viper.SetDefault("ignore", DefaultIgnorePatterns())
}

// findRCFile searches for .docvecrc.yaml starting from current directory.
func findRCFile() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		rcPath := filepath.Join(dir, ".docvecrc.yaml")
		if _, err := os.Stat(rcPath); err == nil {
			return rcPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// loadAPIKeysFromEnv loads API keys from environment variables if not already set.
func loadAPIKeysFromEnv() {
	if cfg.Embeddings.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Embeddings.OpenAI.APIKey = key
		}
	}
}

// ConfigFilePath returns the path of the loaded config file, or empty string if none.
func ConfigFilePath() string {
	return viper.ConfigFileUsed()
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}
