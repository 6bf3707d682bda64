package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/nickbits/docvec/internal/extract"
)

// Ignorer defines the interface for ignore-pattern matching.
type Ignorer interface {
	MatchesPath(path string) bool
}

// combinedIgnorer wraps a .gitignore file matcher with extra patterns.
type combinedIgnorer struct {
	file     *gitignore.GitIgnore
	patterns *gitignore.GitIgnore
}

func (c *combinedIgnorer) MatchesPath(path string) bool {
	return c.file.MatchesPath(path) || c.patterns.MatchesPath(path)
}

// DocumentWalker traverses a corpus directory and yields document files
// the extractor can handle.
type DocumentWalker struct {
	opts    WalkOptions
	ignorer Ignorer
	stats   WalkStats
}

// NewDocumentWalker creates a walker rooted at opts.Root.
func NewDocumentWalker(opts WalkOptions) (*DocumentWalker, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	opts.Root = root

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	w := &DocumentWalker{opts: opts}
	w.initIgnorer()
	return w, nil
}

// initIgnorer builds the ignore matcher from configured patterns and,
// when enabled, a root-level .gitignore.
func (w *DocumentWalker) initIgnorer() {
	patterns := gitignore.CompileIgnoreLines(w.opts.IgnorePatterns...)

	if w.opts.UseGitignore {
		gitignorePath := filepath.Join(w.opts.Root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			gi, err := gitignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				log.Warn("Failed to parse .gitignore", "path", gitignorePath, "error", err)
			} else {
				w.ignorer = &combinedIgnorer{file: gi, patterns: patterns}
				return
			}
		}
	}

	w.ignorer = patterns
}

// Walk traverses the corpus and calls fn for each ingestible document
// file. The walk stops early if fn returns an error.
func (w *DocumentWalker) Walk(fn func(FileInfo) error) error {
	w.stats = WalkStats{}

	return filepath.WalkDir(w.opts.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			log.Debug("Error accessing path", "path", path, "error", err)
			return nil
		}

		relPath, err := filepath.Rel(w.opts.Root, path)
		if err != nil {
			relPath = path
		}

		if d.IsDir() {
			if w.shouldSkipDir(d.Name(), relPath) {
				w.stats.DirsSkipped++
				return filepath.SkipDir
			}
			return nil
		}

		if w.opts.MaxFileCount > 0 && w.stats.FilesFound >= w.opts.MaxFileCount {
			return filepath.SkipAll
		}

		if w.shouldSkipFile(d.Name(), relPath) {
			w.stats.FilesSkipped++
			return nil
		}

		docType, ok := extract.TypeForExt(filepath.Ext(path))
		if !ok {
			w.stats.FilesSkipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			log.Debug("Failed to get file info", "path", path, "error", err)
			return nil
		}

		if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
			w.stats.FilesSkipped++
			w.stats.SkippedBytes += info.Size()
			return nil
		}

		w.stats.FilesFound++
		w.stats.TotalBytes += info.Size()

		return fn(FileInfo{
			Path:    path,
			RelPath: relPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Type:    docType,
		})
	})
}

// Stats returns statistics from the last walk.
func (w *DocumentWalker) Stats() WalkStats {
	return w.stats
}

// shouldSkipDir checks if a directory should be skipped.
func (w *DocumentWalker) shouldSkipDir(name, relPath string) bool {
	if relPath == "." {
		return false
	}
	if name == ".git" {
		return true
	}
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if w.ignorer != nil && w.ignorer.MatchesPath(relPath+"/") {
		return true
	}
	return false
}

// shouldSkipFile checks if a file should be skipped.
func (w *DocumentWalker) shouldSkipFile(name, relPath string) bool {
	if !w.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}
	if w.ignorer != nil && w.ignorer.MatchesPath(relPath) {
		return true
	}
	return false
}
