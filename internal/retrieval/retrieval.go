// Package retrieval orchestrates the document retrieval engine: it turns
// documents into embedded chunks in the vector store and answers ranked
// similarity queries over them. It is the only boundary the surrounding
// request layer needs: Ingest, Retrieve, RemoveDocument.
package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"

	"github.com/nickbits/docvec/internal/chunker"
	"github.com/nickbits/docvec/internal/document"
	"github.com/nickbits/docvec/internal/embeddings"
	"github.com/nickbits/docvec/internal/vectorstore"
)

// Metadata keys the service stamps onto every chunk.
const (
	MetaFilename    = "filename"
	MetaDocType     = "doc_type"
	MetaContentHash = "content_hash"
	MetaSourcePath  = "source_path"
	MetaCharCount   = "char_count"
	MetaWordCount   = "word_count"
)

// ProviderError reports that the embedding gateway failed after
// exhausting the retry budget. The operation that produced it had no
// effect on the vector store.
type ProviderError struct {
	Attempts int
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Options configures the retrieval service.
type Options struct {
	// Chunking controls how document text is split.
	Chunking chunker.Options

	// BatchSize bounds how many texts go to the gateway per call.
	BatchSize int

	// MaxAttempts is the total number of tries per gateway call.
	MaxAttempts int

	// RetryBaseDelay is the first backoff delay; it doubles per attempt.
	RetryBaseDelay time.Duration

	// RequestTimeout bounds each individual gateway attempt.
	RequestTimeout time.Duration

	// SnapshotPath is where the store is persisted after mutations.
	// Empty disables persistence; persistence failures are soft warnings.
	SnapshotPath string
}

// DefaultOptions returns the service defaults.
func DefaultOptions() Options {
	return Options{
		Chunking:       chunker.DefaultOptions(),
		BatchSize:      100,
		MaxAttempts:    3,
		RetryBaseDelay: 500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}

// Service wires the chunker, the embedding gateway and the vector store.
type Service struct {
	store    *vectorstore.Store
	embedder embeddings.Service
	opts     Options
}

// New creates a retrieval service over an explicitly owned store. The
// store is expected to live for the process lifetime and be shared
// across requests; the service adds no hidden global state.
func New(store *vectorstore.Store, embedder embeddings.Service, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions().MaxAttempts
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = DefaultOptions().RetryBaseDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultOptions().RequestTimeout
	}
	return &Service{store: store, embedder: embedder, opts: opts}
}

// Store exposes the underlying vector store for inspection (stats,
// snapshots). Mutation goes through the service.
func (s *Service) Store() *vectorstore.Store { return s.store }

// Embedder exposes the configured embedding gateway.
func (s *Service) Embedder() embeddings.Service { return s.embedder }

// IngestResult reports the outcome of an Ingest call.
type IngestResult struct {
	DocumentID string
	ChunkCount int
	// Warning carries a non-fatal persistence failure, empty otherwise.
	Warning string
}

// Ingest chunks the document, embeds all chunk texts through the
// gateway, and inserts the embedded chunks into the store as one atomic
// batch. If embedding fails after retries, nothing is inserted and a
// *ProviderError is returned. A document with no chunkable text yields
// an empty result, not an error.
func (s *Service) Ingest(ctx context.Context, doc document.Document) (*IngestResult, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("document ID is required")
	}

	spans, err := chunker.Chunk(doc.Text, s.opts.Chunking)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		log.Debug("Document produced no chunks", "document", doc.ID)
		return &IngestResult{DocumentID: doc.ID}, nil
	}

	texts := make([]string, len(spans))
	for i, sp := range spans {
		texts[i] = sp.Text
	}

	// All embedding happens before the store is touched, so the write
	// lock is never held across network I/O and a failed batch leaves
	// the store untouched.
	vectors, err := s.embedAll(ctx, texts)
	if err != nil {
		return nil, err
	}

	baseMeta := s.chunkMetadata(doc)
	batch := make([]vectorstore.EmbeddedChunk, len(spans))
	for i, sp := range spans {
		meta := baseMeta.Clone()
		meta[MetaCharCount] = document.Number(float64(len([]rune(sp.Text))))
		meta[MetaWordCount] = document.Number(float64(len(strings.Fields(sp.Text))))
		batch[i] = vectorstore.EmbeddedChunk{
			Chunk: document.Chunk{
				ID:         doc.ID + "-" + strconv.Itoa(i),
				DocumentID: doc.ID,
				Index:      i,
				Text:       sp.Text,
				StartChar:  sp.Start,
				EndChar:    sp.End,
				Metadata:   meta,
			},
			Vector: vectors[i],
		}
	}

	// Replace any prior version of the document wholesale. Inserting
	// alone only overwrites colliding chunk IDs and would leave stale
	// higher-index chunks behind when the new text is shorter. The new
	// batch is validated against the store's dimension first so a
	// rejected batch cannot destroy the prior version.
	if s.store.HasDocument(doc.ID) {
		if dim := s.store.Dimension(); dim != 0 {
			for _, v := range vectors {
				if len(v) != dim {
					return nil, &vectorstore.DimensionError{Want: dim, Got: len(v)}
				}
			}
		}
		s.store.DeleteDocument(doc.ID)
	}

	if err := s.store.Insert(doc.ID, batch); err != nil {
		return nil, err
	}

	log.Info("Ingested document", "document", doc.ID, "filename", doc.Filename, "chunks", len(batch))

	result := &IngestResult{DocumentID: doc.ID, ChunkCount: len(batch)}
	result.Warning = s.persist()
	return result, nil
}

// Retrieve embeds the query and returns the topK highest-scoring chunks
// at or above minScore. Gateway failures propagate as *ProviderError
// rather than an empty result, so "provider down" is never mistaken for
// "no relevant content".
func (s *Service) Retrieve(ctx context.Context, query string, topK int, minScore float64) ([]vectorstore.Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", vectorstore.ErrInvalidConfig, topK)
	}
	if s.store.Len() == 0 {
		return nil, nil
	}

	var queryVector []float32
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var embedErr error
		queryVector, embedErr = s.embedder.EmbedQuery(ctx, query)
		return embedErr
	})
	if err != nil {
		return nil, err
	}

	results, err := s.store.Search(queryVector, topK, minScore)
	if err != nil {
		return nil, err
	}

	log.Debug("Query answered", "topK", topK, "minScore", minScore, "results", len(results))
	return results, nil
}

// RemoveResult reports the outcome of a RemoveDocument call.
type RemoveResult struct {
	ChunksRemoved int
	Warning       string
}

// RemoveDocument deletes every chunk of documentID from the store.
// Removing an unknown document is an idempotent no-op.
func (s *Service) RemoveDocument(documentID string) *RemoveResult {
	removed := s.store.DeleteDocument(documentID)
	if removed > 0 {
		log.Info("Removed document", "document", documentID, "chunks", removed)
	}

	result := &RemoveResult{ChunksRemoved: removed}
	if removed > 0 {
		result.Warning = s.persist()
	}
	return result
}

// Clear drops every document from the store and persists the empty
// snapshot. Clearing an empty store is a no-op.
func (s *Service) Clear() *RemoveResult {
	removed := s.store.Reset()
	if removed > 0 {
		log.Info("Cleared store", "chunks", removed)
	}

	result := &RemoveResult{ChunksRemoved: removed}
	if removed > 0 {
		result.Warning = s.persist()
	}
	return result
}

// FindBySource returns the document ID and content hash previously
// ingested from sourcePath, if any. Used by corpus ingestion to skip
// unchanged files and to replace changed ones.
func (s *Service) FindBySource(sourcePath string) (docID, contentHash string, ok bool) {
	for _, info := range s.store.Documents() {
		chunks := s.store.DocumentChunks(info.ID)
		if len(chunks) == 0 {
			continue
		}
		meta := chunks[0].Metadata
		if meta[MetaSourcePath].Str() != sourcePath {
			continue
		}
		return info.ID, meta[MetaContentHash].Str(), true
	}
	return "", "", false
}

// ContentHash computes the content hash stored in chunk metadata.
func ContentHash(text string) string {
	return fmt.Sprintf("xxh64:%016x", xxhash.Sum64String(text))
}

// chunkMetadata builds the metadata inherited by every chunk of doc.
func (s *Service) chunkMetadata(doc document.Document) document.Metadata {
	meta := doc.Metadata.Clone()
	if meta == nil {
		meta = document.Metadata{}
	}
	meta[MetaFilename] = document.String(doc.Filename)
	meta[MetaDocType] = document.String(string(doc.Type))
	meta[MetaContentHash] = document.String(ContentHash(doc.Text))
	return meta
}

// embedAll runs the gateway over texts in batches of at most BatchSize,
// preserving order. Any batch failing after retries fails the whole
// call; partial results are discarded.
func (s *Service) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.opts.BatchSize {
		end := start + s.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var batchVectors [][]float32
		err := s.withRetry(ctx, func(ctx context.Context) error {
			var embedErr error
			batchVectors, embedErr = s.embedder.EmbedBatch(ctx, batch)
			if embedErr != nil {
				return embedErr
			}
			if len(batchVectors) != len(batch) {
				return fmt.Errorf("gateway returned %d vectors for %d texts", len(batchVectors), len(batch))
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batchVectors...)
	}
	return vectors, nil
}

// withRetry runs fn with a per-attempt timeout and exponential backoff,
// up to MaxAttempts tries. Exhaustion or caller cancellation is wrapped
// in *ProviderError.
func (s *Service) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error
	delay := s.opts.RetryBaseDelay

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
		err := fn(attemptCtx)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// Caller canceled; retrying would only spin.
			return &ProviderError{Attempts: attempt, Err: ctx.Err()}
		}
		if attempt == s.opts.MaxAttempts {
			break
		}

		log.Warn("Embedding request failed, retrying",
			"attempt", attempt,
			"maxAttempts", s.opts.MaxAttempts,
			"backoff", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return &ProviderError{Attempts: attempt, Err: ctx.Err()}
		}
		delay *= 2
	}

	return &ProviderError{Attempts: s.opts.MaxAttempts, Err: lastErr}
}

// persist snapshots the store best-effort. A failure never fails the
// triggering operation; it is logged and returned as a warning string.
func (s *Service) persist() string {
	if s.opts.SnapshotPath == "" {
		return ""
	}
	if err := s.store.SaveFile(s.opts.SnapshotPath); err != nil {
		log.Warn("Failed to persist snapshot", "path", s.opts.SnapshotPath, "error", err)
		return fmt.Sprintf("snapshot not persisted: %v", err)
	}
	log.Debug("Snapshot persisted", "path", s.opts.SnapshotPath, "chunks", s.store.Len())
	return ""
}

// OpenStore loads the store from snapshotPath, falling back to an empty
// store when the snapshot is missing or unreadable. Startup never fails
// on a bad snapshot.
func OpenStore(snapshotPath string) *vectorstore.Store {
	if snapshotPath == "" {
		return vectorstore.New(0)
	}
	store, err := vectorstore.LoadFile(snapshotPath)
	if err != nil {
		log.Warn("Failed to load snapshot, starting empty", "path", snapshotPath, "error", err)
		return vectorstore.New(0)
	}
	if store.Len() > 0 {
		log.Info("Restored snapshot", "path", snapshotPath, "chunks", store.Len())
	}
	return store
}
