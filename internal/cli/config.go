package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/ui"
)

var configShowPath bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Display current configuration settings and config file locations.

Examples:
  # Show current configuration
  docvec config

  # Show config file paths
  docvec config --path`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "show config file paths")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configShowPath {
		fmt.Println(ui.Header.Render("Configuration Paths"))
		fmt.Println()
		fmt.Printf("Global config: %s\n", config.GlobalConfigPath())
		fmt.Printf("Local config:  .docvecrc.yaml (searched from cwd upward)\n")
		fmt.Printf("Active config: %s\n", config.ConfigFilePath())
		fmt.Printf("Snapshot:      %s\n", config.Get().Snapshot.Path)
		return nil
	}

	cfg := config.Get()

	fmt.Println(ui.Header.Render("Current Configuration"))
	fmt.Println()

	fmt.Println(ui.Bold.Render("Embeddings:"))
	fmt.Printf("  Provider: %s\n", cfg.Embeddings.Provider)
	fmt.Printf("  Ollama URL: %s\n", cfg.Embeddings.Ollama.URL)
	fmt.Printf("  Ollama Model: %s\n", cfg.Embeddings.Ollama.Model)
	fmt.Printf("  OpenAI Model: %s\n", cfg.Embeddings.OpenAI.Model)
	if cfg.Embeddings.OpenAI.BaseURL != "" {
		fmt.Printf("  OpenAI Base URL: %s\n", cfg.Embeddings.OpenAI.BaseURL)
	}
	fmt.Printf("  Max Attempts: %d\n", cfg.Embeddings.MaxAttempts)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Chunking:"))
	fmt.Printf("  Chunk Size: %d\n", cfg.Chunking.ChunkSize)
	fmt.Printf("  Chunk Overlap: %d\n", cfg.Chunking.ChunkOverlap)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Ingestion:"))
	fmt.Printf("  Max File Size: %d bytes\n", cfg.Ingestion.MaxFileSize)
	fmt.Printf("  Max File Count: %d\n", cfg.Ingestion.MaxFileCount)
	fmt.Printf("  Batch Size: %d\n", cfg.Ingestion.BatchSize)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Retrieval:"))
	fmt.Printf("  Top K: %d\n", cfg.Retrieval.TopK)
	fmt.Printf("  Min Score: %g\n", cfg.Retrieval.MinScore)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Snapshot:"))
	fmt.Printf("  Path: %s\n", cfg.Snapshot.Path)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Ignore Patterns:"))
	fmt.Printf("  %d patterns configured\n", len(cfg.Ignore))

	return nil
}
