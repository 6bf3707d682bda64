// Package ingest orchestrates loading documents from disk into the
// retrieval service.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickbits/docvec/internal/document"
	"github.com/nickbits/docvec/internal/extract"
	"github.com/nickbits/docvec/internal/fs"
	"github.com/nickbits/docvec/internal/retrieval"
)

// Progress tracks corpus ingestion progress.
type Progress struct {
	TotalFiles     int
	ProcessedFiles int
	SkippedFiles   int
	TotalChunks    int
	Errors         int
	StartTime      time.Time
	CurrentFile    string
}

// ProgressFunc is called to report progress during ingestion.
type ProgressFunc func(Progress)

// Options configures corpus ingestion.
type Options struct {
	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64

	// MaxFileCount stops walking after this many files.
	MaxFileCount int

	// IgnorePatterns are additional gitignore-style patterns to skip.
	IgnorePatterns []string

	// Force re-ingests files even when their content is unchanged.
	Force bool

	// OnProgress is called after each file is handled.
	OnProgress ProgressFunc
}

// DefaultOptions returns sensible corpus defaults.
func DefaultOptions() Options {
	walk := fs.DefaultWalkOptions()
	return Options{
		MaxFileSize:  walk.MaxFileSize,
		MaxFileCount: walk.MaxFileCount,
	}
}

// Ingestor loads files and directories into a retrieval service.
type Ingestor struct {
	svc  *retrieval.Service
	opts Options

	progress Progress
	mu       sync.Mutex
}

// New creates an Ingestor on top of svc.
func New(svc *retrieval.Service, opts Options) *Ingestor {
	return &Ingestor{svc: svc, opts: opts}
}

// IngestPath ingests a single file or every document under a directory.
func (ing *Ingestor) IngestPath(ctx context.Context, path string) (Progress, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Progress{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return Progress{}, fmt.Errorf("path does not exist: %w", err)
	}

	ing.mu.Lock()
	ing.progress = Progress{StartTime: time.Now()}
	ing.mu.Unlock()

	if !info.IsDir() {
		ing.setTotal(1)
		if err := ing.ingestFile(ctx, absPath); err != nil {
			return ing.Progress(), err
		}
		return ing.Progress(), nil
	}

	walker, err := fs.NewDocumentWalker(fs.WalkOptions{
		Root:           absPath,
		MaxFileSize:    ing.opts.MaxFileSize,
		MaxFileCount:   ing.opts.MaxFileCount,
		IgnorePatterns: ing.opts.IgnorePatterns,
		UseGitignore:   true,
	})
	if err != nil {
		return ing.Progress(), err
	}

	var files []fs.FileInfo
	if err := walker.Walk(func(fi fs.FileInfo) error {
		files = append(files, fi)
		return nil
	}); err != nil {
		return ing.Progress(), err
	}
	ing.setTotal(len(files))

	for _, fi := range files {
		select {
		case <-ctx.Done():
			return ing.Progress(), ctx.Err()
		default:
		}

		if err := ing.ingestFile(ctx, fi.Path); err != nil {
			// Provider failures abort the run; per-file extraction
			// problems are logged and counted.
			var provErr *retrieval.ProviderError
			if errors.As(err, &provErr) {
				return ing.Progress(), err
			}
			log.Warn("Failed to ingest file", "path", fi.RelPath, "error", err)
			ing.mu.Lock()
			ing.progress.Errors++
			ing.mu.Unlock()
			ing.report()
		}
	}

	return ing.Progress(), nil
}

// ingestFile extracts, chunks, and embeds a single file. Unchanged files
// are skipped unless Force is set; changed files are replaced whole.
func (ing *Ingestor) ingestFile(ctx context.Context, absPath string) error {
	ing.mu.Lock()
	ing.progress.CurrentFile = absPath
	ing.mu.Unlock()

	text, docType, err := extract.FromFile(absPath)
	if err != nil {
		return err
	}
	text = extract.Clean(text)

	hash := retrieval.ContentHash(text)
	if oldID, oldHash, ok := ing.svc.FindBySource(absPath); ok {
		if oldHash == hash && !ing.opts.Force {
			log.Debug("Skipping unchanged file", "path", absPath)
			ing.mu.Lock()
			ing.progress.SkippedFiles++
			ing.mu.Unlock()
			ing.report()
			return nil
		}
		ing.svc.RemoveDocument(oldID)
	}

	doc := document.New(filepath.Base(absPath), docType, text)
	doc.Metadata = document.Metadata{
		retrieval.MetaSourcePath: document.String(absPath),
	}

	res, err := ing.svc.Ingest(ctx, doc)
	if err != nil {
		return err
	}

	ing.mu.Lock()
	ing.progress.ProcessedFiles++
	ing.progress.TotalChunks += res.ChunkCount
	ing.mu.Unlock()
	ing.report()

	log.Debug("Ingested file", "path", absPath, "chunks", res.ChunkCount)
	return nil
}

// RemovePath removes the document ingested from absPath, if any.
// Returns the removed document ID and true when something was deleted.
func (ing *Ingestor) RemovePath(path string) (string, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	docID, _, ok := ing.svc.FindBySource(absPath)
	if !ok {
		return "", false
	}
	ing.svc.RemoveDocument(docID)
	return docID, true
}

// Progress returns a copy of the current progress.
func (ing *Ingestor) Progress() Progress {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	return ing.progress
}

func (ing *Ingestor) setTotal(n int) {
	ing.mu.Lock()
	ing.progress.TotalFiles = n
	ing.mu.Unlock()
}

func (ing *Ingestor) report() {
	if ing.opts.OnProgress == nil {
		return
	}
	ing.opts.OnProgress(ing.Progress())
}
