package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nickbits/docvec/internal/config"
	"github.com/nickbits/docvec/internal/ingest"
	"github.com/nickbits/docvec/internal/ui"
	"github.com/nickbits/docvec/internal/watcher"
)

var watchNoInitial bool

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Watch a corpus directory and keep the store in sync",
	Long: `Watch a directory for document changes and update the store in real time.

This command first ingests the directory (unless --no-initial is
specified), then watches for changes: new and modified documents are
re-ingested, deleted documents are removed.

Examples:
  # Watch a corpus
  docvec watch ./docs

  # Skip the initial sync
  docvec watch ./docs --no-initial`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchCmd,
}

func init() {
	watchCmd.Flags().BoolVar(&watchNoInitial, "no-initial", false, "skip initial ingest sync")
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	path := args[0]

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", absPath)
	}

	cfg := config.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	svc, err := openService(cfg)
	if err != nil {
		return err
	}

	ing := ingest.New(svc, ingest.Options{
		MaxFileSize:    cfg.Ingestion.MaxFileSize,
		MaxFileCount:   cfg.Ingestion.MaxFileCount,
		IgnorePatterns: cfg.Ignore,
	})

	if !watchNoInitial {
		fmt.Println(ui.Header.Render("Initial sync"))
		progress, err := ing.IngestPath(ctx, absPath)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("initial sync failed: %w", err)
		}
		fmt.Printf("Synced %d files (%d unchanged)\n\n",
			progress.ProcessedFiles, progress.SkippedFiles)
	}

	w, err := watcher.New(absPath, ing,
		watcher.WithMaxFileSize(cfg.Ingestion.MaxFileSize),
		watcher.WithEventCallback(func(event, relPath string) {
			fmt.Printf("%s %s\n", ui.Dim.Render(event+":"), relPath)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
