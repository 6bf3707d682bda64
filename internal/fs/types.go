// Package fs walks document corpora on disk for batch ingestion.
package fs

import (
	"time"

	"github.com/nickbits/docvec/internal/document"
)

// FileInfo describes one document file found during a walk.
type FileInfo struct {
	Path    string        // Absolute path to the file
	RelPath string        // Path relative to the walk root
	Size    int64         // File size in bytes
	ModTime time.Time     // Last modification time
	Type    document.Type // Document type derived from the extension
}

// WalkOptions configures the document walker.
type WalkOptions struct {
	// Root is the directory to start walking from.
	Root string

	// MaxFileSize is the maximum file size to process (in bytes).
	MaxFileSize int64

	// MaxFileCount is the maximum number of files to process.
	MaxFileCount int

	// IgnorePatterns are additional patterns to ignore (gitignore syntax).
	IgnorePatterns []string

	// IncludeHidden includes hidden files and directories.
	IncludeHidden bool

	// UseGitignore respects a .gitignore file at the root.
	UseGitignore bool
}

// DefaultWalkOptions returns sensible defaults for walking.
func DefaultWalkOptions() WalkOptions {
	return WalkOptions{
		MaxFileSize:  16 << 20, // 16MB, PDFs run large
		MaxFileCount: 10000,
		UseGitignore: true,
	}
}

// WalkStats contains statistics from a corpus walk.
type WalkStats struct {
	FilesFound   int   // Document files found
	FilesSkipped int   // Files skipped due to size/pattern/type
	DirsSkipped  int   // Directories skipped
	TotalBytes   int64 // Total bytes of found files
	SkippedBytes int64 // Total bytes of oversized files
}
