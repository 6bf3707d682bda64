// Package watcher provides file system watching with automatic re-ingestion.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/nickbits/docvec/internal/extract"
	"github.com/nickbits/docvec/internal/ingest"
)

// Watcher watches a corpus directory and keeps the store in sync.
type Watcher struct {
	root     string
	ingestor *ingest.Ingestor

	maxFileSize int64

	// debounce holds pending file events to batch process
	debounce     map[string]fsnotify.Op
	debounceMu   sync.Mutex
	debounceTime time.Duration

	// callback for status updates
	onEvent func(event string, path string)
}

// Option configures the watcher.
type Option func(*Watcher)

// WithDebounceTime sets the debounce duration for batching events.
func WithDebounceTime(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounceTime = d
	}
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(w *Watcher) {
		w.maxFileSize = n
	}
}

// WithEventCallback sets a callback for file events.
func WithEventCallback(fn func(event string, path string)) Option {
	return func(w *Watcher) {
		w.onEvent = fn
	}
}

// New creates a watcher over root that feeds changes to ing.
func New(root string, ing *ingest.Ingestor, opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:         absRoot,
		ingestor:     ing,
		debounce:     make(map[string]fsnotify.Op),
		debounceTime: 500 * time.Millisecond,
		onEvent:      func(string, string) {}, // noop default
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching for file changes. Blocks until context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addDirectories(watcher); err != nil {
		return err
	}

	log.Info("Watching for document changes", "root", w.root)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event, watcher)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("Watcher error", "error", err)
		}
	}
}

// addDirectories recursively adds all directories to the watcher.
func (w *Watcher) addDirectories(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip errors
		}

		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != w.root {
			return filepath.SkipDir
		}

		if err := watcher.Add(path); err != nil {
			log.Debug("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// handleEvent processes a single file system event.
func (w *Watcher) handleEvent(event fsnotify.Event, watcher *fsnotify.Watcher) {
	path := event.Name

	// Skip hidden files
	if strings.HasPrefix(filepath.Base(path), ".") {
		return
	}

	// For new directories, add to watcher
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			watcher.Add(path)
			log.Debug("Added directory to watch", "path", path)
			return
		}
	}

	// Skip directories for file operations
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return
	}

	// Deletes must pass through even though the file no longer stats;
	// everything else is filtered to ingestable documents.
	if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) && !w.isDocumentFile(path) {
		return
	}

	w.debounceMu.Lock()
	w.debounce[path] = w.debounce[path] | event.Op
	w.debounceMu.Unlock()
}

// isDocumentFile checks if a file is worth ingesting.
func (w *Watcher) isDocumentFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := extract.TypeForExt(ext); !ok {
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if w.maxFileSize > 0 && info.Size() > w.maxFileSize {
		return false
	}

	return true
}

// processDebounced processes debounced file events periodically.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flushDebounced(ctx)
		}
	}
}

// flushDebounced processes all pending debounced events.
func (w *Watcher) flushDebounced(ctx context.Context) {
	w.debounceMu.Lock()
	if len(w.debounce) == 0 {
		w.debounceMu.Unlock()
		return
	}

	events := make(map[string]fsnotify.Op)
	for k, v := range w.debounce {
		events[k] = v
	}
	w.debounce = make(map[string]fsnotify.Op)
	w.debounceMu.Unlock()

	for path, op := range events {
		select {
		case <-ctx.Done():
			return
		default:
		}

		relPath, _ := filepath.Rel(w.root, path)

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			if _, ok := w.ingestor.RemovePath(path); ok {
				w.onEvent("remove", relPath)
				log.Info("Removed from store", "file", relPath)
			}
		} else if op.Has(fsnotify.Create) || op.Has(fsnotify.Write) {
			if _, err := w.ingestor.IngestPath(ctx, path); err != nil {
				log.Error("Failed to re-ingest", "path", relPath, "error", err)
			} else {
				w.onEvent("ingest", relPath)
				log.Info("Ingested", "file", relPath)
			}
		}
	}
}
