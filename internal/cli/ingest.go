package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/ingest"
	"github.com/nickbits/docvec/internal/ui"
)

var (
	ingestForce  bool
	ingestIgnore []string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest <path>",
	Short: "Ingest documents for retrieval",
	Long: `Ingest a file or every document under a directory.

This command will:
1. Discover text, markdown, and PDF files
2. Split each document into overlapping chunks
3. Generate embeddings for each chunk
4. Store vectors in memory and persist a JSON snapshot

Unchanged files are skipped on re-ingestion unless --force is given.

Examples:
  # Ingest a directory
  docvec ingest ./docs

  # Ingest a single file
  docvec ingest ./docs/handbook.pdf

  # Force re-ingest everything
  docvec ingest ./docs --force

  # Skip additional patterns
  docvec ingest ./docs --ignore "drafts/"`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVarP(&ingestForce, "force", "f", false, "re-ingest files even when unchanged")
	ingestCmd.Flags().StringSliceVarP(&ingestIgnore, "ignore", "i", nil, "additional patterns to ignore")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if _, err := os.Stat(absPath); err != nil {
		return fmt.Errorf("path does not exist: %s", absPath)
	}

	cfg := config.Get()

	log.Debug("Starting ingest", "path", absPath, "force", ingestForce)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nInterrupted, cleaning up...")
		cancel()
	}()

	svc, err := openService(cfg)
	if err != nil {
		return err
	}

	fmt.Println(ui.Header.Render("Ingesting " + filepath.Base(absPath)))
	fmt.Printf("Path: %s\n", absPath)
	fmt.Printf("Provider: %s (%s)\n", cfg.Embeddings.Provider, svc.Embedder().ModelName())
	fmt.Println()

	startTime := time.Now()
	lastUpdate := time.Now()

	ing := ingest.New(svc, ingest.Options{
		MaxFileSize:    cfg.Ingestion.MaxFileSize,
		MaxFileCount:   cfg.Ingestion.MaxFileCount,
		IgnorePatterns: append(cfg.Ignore, ingestIgnore...),
		Force:          ingestForce,
		OnProgress: func(p ingest.Progress) {
			// Throttle updates to every 100ms
			if time.Since(lastUpdate) < 100*time.Millisecond {
				return
			}
			lastUpdate = time.Now()

			fmt.Printf("\r\033[K")
			if p.TotalFiles > 0 {
				pct := float64(p.ProcessedFiles+p.SkippedFiles) / float64(p.TotalFiles) * 100
				fmt.Printf("Progress: %d/%d files (%.0f%%) | Chunks: %d | %s",
					p.ProcessedFiles+p.SkippedFiles, p.TotalFiles, pct, p.TotalChunks,
					truncatePath(p.CurrentFile, 40))
			}
		},
	})

	progress, err := ing.IngestPath(ctx, absPath)

	// Clear progress line
	fmt.Printf("\r\033[K")

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println(ui.Warning.Render("Ingestion cancelled"))
			return nil
		}
		return fmt.Errorf("ingestion failed: %w", err)
	}

	duration := time.Since(startTime).Round(time.Millisecond)

	fmt.Println(ui.Success.Render("Ingestion complete!"))
	fmt.Println()
	fmt.Printf("  Files:    %d\n", progress.ProcessedFiles)
	fmt.Printf("  Skipped:  %d\n", progress.SkippedFiles)
	fmt.Printf("  Chunks:   %d\n", progress.TotalChunks)
	if progress.Errors > 0 {
		fmt.Printf("  Errors:   %d\n", progress.Errors)
	}
	fmt.Printf("  Duration: %s\n", duration)

	return nil
}

// truncatePath shortens a path for single-line progress display.
func truncatePath(path string, max int) string {
	if len(path) <= max {
		return path
	}
	return "..." + path[len(path)-max+3:]
}
