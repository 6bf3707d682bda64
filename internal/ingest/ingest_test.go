package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickbits/docvec/internal/embeddings"
	"github.com/nickbits/docvec/internal/retrieval"
	"github.com/nickbits/docvec/internal/vectorstore"
)

// hashEmbedder returns a deterministic vector per input text.
type hashEmbedder struct {
	batchCalls int
}

func (h *hashEmbedder) vector(text string) []float32 {
	sum := xxhash.Sum64String(text)
	return []float32{
		float32(sum%997) + 1,
		float32((sum>>16)%997) + 1,
		float32((sum>>32)%997) + 1,
	}
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return h.vector(text), nil
}

func (h *hashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	h.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.vector(t)
	}
	return out, nil
}

func (h *hashEmbedder) Dimensions() int               { return 3 }
func (h *hashEmbedder) Provider() embeddings.Provider { return "mock" }
func (h *hashEmbedder) ModelName() string             { return "mock-model" }

func newTestIngestor(t *testing.T, opts Options) (*Ingestor, *retrieval.Service) {
	t.Helper()
	store := vectorstore.New(3)
	svcOpts := retrieval.DefaultOptions()
	svcOpts.SnapshotPath = "" // no persistence in tests
	svc := retrieval.New(store, &hashEmbedder{}, svcOpts)
	return New(svc, opts), svc
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestPathDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha document about billing")
	writeFile(t, dir, "sub/b.md", "# beta\n\nnotes on refunds")
	writeFile(t, dir, "c.png", "not a document")

	ing, svc := newTestIngestor(t, DefaultOptions())

	progress, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.TotalFiles)
	assert.Equal(t, 2, progress.ProcessedFiles)
	assert.Equal(t, 0, progress.SkippedFiles)
	assert.Len(t, svc.Store().Documents(), 2)
}

func TestIngestPathSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "standalone document")

	ing, svc := newTestIngestor(t, DefaultOptions())

	progress, err := ing.IngestPath(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.ProcessedFiles)
	assert.Len(t, svc.Store().Documents(), 1)
}

func TestIngestSkipsUnchangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "stable content")

	ing, svc := newTestIngestor(t, DefaultOptions())

	_, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	docsBefore := svc.Store().Documents()
	require.Len(t, docsBefore, 1)

	progress, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.SkippedFiles)
	assert.Equal(t, 0, progress.ProcessedFiles)

	// Same document, not replaced
	docsAfter := svc.Store().Documents()
	require.Len(t, docsAfter, 1)
	assert.Equal(t, docsBefore[0].ID, docsAfter[0].ID)
}

func TestIngestReplacesChangedFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "first version")

	ing, svc := newTestIngestor(t, DefaultOptions())

	_, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	oldID := svc.Store().Documents()[0].ID

	writeFile(t, dir, "a.txt", "second version with different content")

	progress, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.ProcessedFiles)
	docs := svc.Store().Documents()
	require.Len(t, docs, 1)
	assert.NotEqual(t, oldID, docs[0].ID)
}

func TestIngestForceReingests(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "stable content")

	opts := DefaultOptions()
	opts.Force = true
	ing, svc := newTestIngestor(t, opts)

	_, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)

	progress, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.ProcessedFiles)
	assert.Equal(t, 0, progress.SkippedFiles)
	assert.Len(t, svc.Store().Documents(), 1)
}

func TestRemovePath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.txt", "to be removed")

	ing, svc := newTestIngestor(t, DefaultOptions())

	_, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)

	docID, ok := ing.RemovePath(path)
	assert.True(t, ok)
	assert.NotEmpty(t, docID)
	assert.Empty(t, svc.Store().Documents())

	// Removing again is a no-op
	_, ok = ing.RemovePath(path)
	assert.False(t, ok)
}

func TestIngestPathMissing(t *testing.T) {
	ing, _ := newTestIngestor(t, DefaultOptions())

	_, err := ing.IngestPath(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIngestReportsProgress(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha")
	writeFile(t, dir, "b.txt", "beta")

	var calls int
	opts := DefaultOptions()
	opts.OnProgress = func(p Progress) {
		calls++
		assert.Equal(t, 2, p.TotalFiles)
	}
	ing, _ := newTestIngestor(t, opts)

	_, err := ing.IngestPath(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
