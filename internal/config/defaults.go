package config

import (
	"os"
	"path/filepath"
)

// Default configuration values
const (
	// Embedding defaults
	DefaultEmbeddingProvider = "ollama"
	DefaultOllamaURL         = "http://localhost:11434"
	DefaultOllamaEmbedModel  = "nomic-embed-text"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"

	// Chunking defaults
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	// Ingestion defaults
	DefaultMaxFileSize  = 16 << 20 // 16MB
	DefaultMaxFileCount = 10000
	DefaultBatchSize    = 100

	// Retrieval defaults
	DefaultTopK     = 5
	DefaultMinScore = 0.3

	// Provider retry defaults
	DefaultMaxAttempts       = 3
	DefaultRetryBaseDelayMS  = 500
	DefaultRequestTimeoutSec = 30

	// Snapshot
	DefaultSnapshotFileName = "snapshot.json"
)

// DefaultIgnorePatterns returns the default list of file patterns to ignore.
func DefaultIgnorePatterns() []string {
	return []string{
		// Dependencies and build outputs
		"node_modules/",
		"vendor/",
		"dist/",
		"build/",
		"out/",
		"target/",
		".venv/",
		"venv/",
		"__pycache__/",

		// IDE/Editor
		".idea/",
		".vscode/",
		"*.swp",
		"*.swo",
		"*~",

		// Version control
		".git/",
		".svn/",
		".hg/",

		// Misc
		".DS_Store",
		"Thumbs.db",
		".env",
		".env.*",
		"*.log",
	}
}

// DefaultConfigDir returns the default configuration directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/docvec"
	}
	return filepath.Join(home, ".config", "docvec")
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share/docvec"
	}
	return filepath.Join(home, ".local", "share", "docvec")
}

// DefaultSnapshotPath returns the default snapshot file path.
func DefaultSnapshotPath() string {
	return filepath.Join(DefaultDataDir(), DefaultSnapshotFileName)
}
