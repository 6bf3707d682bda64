package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickbits/docvec/internal/chunker"
	"github.com/nickbits/docvec/internal/document"
	"github.com/nickbits/docvec/internal/embeddings"
	"github.com/nickbits/docvec/internal/vectorstore"
)

// mockEmbedder is a scripted gateway: vectors come from a lookup table
// and failures can be injected per call.
type mockEmbedder struct {
	mu         sync.Mutex
	dim        int
	vectors    map[string][]float32
	failNext   int   // fail this many calls before succeeding
	failBatch  int   // permanently fail the Nth EmbedBatch call (1-based, 0 = never)
	batchCalls int
	queryCalls int
}

func newMockEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{dim: dim, vectors: make(map[string][]float32)}
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	if v, ok := m.vectors[text]; ok {
		return v
	}
	v := make([]float32, m.dim)
	v[0] = 1
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.failNext > 0 {
		m.failNext--
		return nil, errors.New("provider unavailable")
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.failNext > 0 {
		m.failNext--
		return nil, errors.New("provider unavailable")
	}
	if m.failBatch > 0 && m.batchCalls >= m.failBatch {
		return nil, errors.New("provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int               { return m.dim }
func (m *mockEmbedder) Provider() embeddings.Provider { return "mock" }
func (m *mockEmbedder) ModelName() string             { return "mock-model" }

func testOptions() Options {
	opts := DefaultOptions()
	opts.Chunking = chunker.Options{MaxChunkSize: 50, Overlap: 10}
	opts.RetryBaseDelay = time.Millisecond
	opts.RequestTimeout = time.Second
	return opts
}

func testDoc(id, text string) document.Document {
	return document.Document{
		ID:       id,
		Filename: id + ".txt",
		Type:     document.TypeText,
		Text:     text,
	}
}

func TestIngestAndRetrieve(t *testing.T) {
	emb := newMockEmbedder(3)
	store := vectorstore.New(0)
	svc := New(store, emb, testOptions())

	result, err := svc.Ingest(context.Background(), testDoc("doc-1", "hello retrieval world"))
	require.NoError(t, err)
	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Empty(t, result.Warning)

	results, err := svc.Retrieve(context.Background(), "hello", 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].Chunk.DocumentID)
	assert.Equal(t, "hello retrieval world", results[0].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)

	// Chunk metadata carries document attributes
	meta := results[0].Chunk.Metadata
	assert.Equal(t, "doc-1.txt", meta[MetaFilename].Str())
	assert.Equal(t, "txt", meta[MetaDocType].Str())
	assert.Equal(t, ContentHash("hello retrieval world"), meta[MetaContentHash].Str())
	assert.Equal(t, float64(3), meta[MetaWordCount].Num())
}

func TestIngestReplacesDocumentWholesale(t *testing.T) {
	emb := newMockEmbedder(3)
	store := vectorstore.New(0)
	svc := New(store, emb, testOptions())

	// Long enough for several chunks at MaxChunkSize 50.
	long := "The first version of this document runs on and on, across several chunks of text, so its chunk count is well above one."
	_, err := svc.Ingest(context.Background(), testDoc("doc-1", long))
	require.NoError(t, err)
	require.Greater(t, len(store.DocumentChunks("doc-1")), 1)

	// Re-ingesting the same ID with shorter text must not leave stale
	// higher-index chunks behind.
	result, err := svc.Ingest(context.Background(), testDoc("doc-1", "short now"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)

	chunks := store.DocumentChunks("doc-1")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short now", chunks[0].Text)
	assert.Equal(t, 1, store.Len())
}

func TestIngestEmptyDocument(t *testing.T) {
	emb := newMockEmbedder(3)
	svc := New(vectorstore.New(0), emb, testOptions())

	result, err := svc.Ingest(context.Background(), testDoc("doc-empty", ""))
	require.NoError(t, err)
	assert.Equal(t, 0, result.ChunkCount)
	assert.Equal(t, 0, svc.Store().Len())
	assert.Equal(t, 0, emb.batchCalls)
}

func TestIngestRequiresDocumentID(t *testing.T) {
	svc := New(vectorstore.New(0), newMockEmbedder(3), testOptions())
	_, err := svc.Ingest(context.Background(), document.Document{Text: "text"})
	assert.Error(t, err)
}

func TestIngestBatchAtomicity(t *testing.T) {
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.BatchSize = 2
	opts.MaxAttempts = 1
	svc := New(vectorstore.New(0), emb, opts)

	// ~5 chunks at size 50 with overlap 10; the second gateway batch
	// fails permanently, so zero chunks may land in the store.
	text := ""
	for i := 0; i < 5; i++ {
		text += "This sentence pads the document out to chunk five. "
	}
	emb.failBatch = 2

	_, err := svc.Ingest(context.Background(), testDoc("doc-atomic", text))
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 0, svc.Store().Len())
	assert.False(t, svc.Store().HasDocument("doc-atomic"))
}

func TestRetryRecoversFromTransientFailure(t *testing.T) {
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.MaxAttempts = 3
	svc := New(vectorstore.New(0), emb, opts)

	emb.failNext = 2 // first two calls fail, third succeeds
	result, err := svc.Ingest(context.Background(), testDoc("doc-retry", "short text"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount)
	assert.Equal(t, 3, emb.batchCalls)
}

func TestRetryExhaustionSurfacesProviderError(t *testing.T) {
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.MaxAttempts = 2
	svc := New(vectorstore.New(0), emb, opts)

	emb.failNext = 10
	_, err := svc.Ingest(context.Background(), testDoc("doc-fail", "short text"))
	require.Error(t, err)

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 2, provErr.Attempts)
	assert.Equal(t, 2, emb.batchCalls)
}

func TestRetrievePropagatesProviderFailure(t *testing.T) {
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.MaxAttempts = 2
	svc := New(vectorstore.New(0), emb, opts)

	_, err := svc.Ingest(context.Background(), testDoc("doc-1", "some content here"))
	require.NoError(t, err)

	emb.failNext = 10
	_, err = svc.Retrieve(context.Background(), "query", 5, 0)
	require.Error(t, err)

	var provErr *ProviderError
	assert.ErrorAs(t, err, &provErr)
}

func TestRetrieveEmptyStoreSkipsGateway(t *testing.T) {
	emb := newMockEmbedder(3)
	svc := New(vectorstore.New(0), emb, testOptions())

	results, err := svc.Retrieve(context.Background(), "anything", 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, emb.queryCalls)
}

func TestRetrieveInvalidTopK(t *testing.T) {
	emb := newMockEmbedder(3)
	svc := New(vectorstore.New(0), emb, testOptions())

	_, err := svc.Retrieve(context.Background(), "query", 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
	assert.Equal(t, 0, emb.queryCalls)
}

func TestRetrieveRanking(t *testing.T) {
	emb := newMockEmbedder(2)
	opts := testOptions()
	opts.Chunking = chunker.Options{MaxChunkSize: 1000, Overlap: 0}
	svc := New(vectorstore.New(0), emb, opts)

	emb.vectors["north facing passage"] = []float32{1, 0}
	emb.vectors["east facing passage"] = []float32{0, 1}
	emb.vectors["north"] = []float32{1, 0}

	_, err := svc.Ingest(context.Background(), testDoc("doc-n", "north facing passage"))
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), testDoc("doc-e", "east facing passage"))
	require.NoError(t, err)

	results, err := svc.Retrieve(context.Background(), "north", 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-n", results[0].Chunk.DocumentID)

	// Threshold filters the orthogonal passage out
	results, err = svc.Retrieve(context.Background(), "north", 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-n", results[0].Chunk.DocumentID)
}

func TestRemoveDocumentIdempotent(t *testing.T) {
	emb := newMockEmbedder(3)
	svc := New(vectorstore.New(0), emb, testOptions())

	_, err := svc.Ingest(context.Background(), testDoc("doc-1", "content to remove"))
	require.NoError(t, err)

	result := svc.RemoveDocument("doc-1")
	assert.Equal(t, 1, result.ChunksRemoved)
	assert.Equal(t, 0, svc.Store().Len())

	// Repeated and unknown removals are quiet no-ops
	assert.Equal(t, 0, svc.RemoveDocument("doc-1").ChunksRemoved)
	assert.Equal(t, 0, svc.RemoveDocument("ghost").ChunksRemoved)
}

func TestClearEmptiesStoreAndSnapshot(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.SnapshotPath = snapPath

	svc := New(vectorstore.New(0), emb, opts)
	_, err := svc.Ingest(context.Background(), testDoc("doc-1", "first"))
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), testDoc("doc-2", "second"))
	require.NoError(t, err)

	result := svc.Clear()
	assert.Equal(t, 2, result.ChunksRemoved)
	assert.Empty(t, result.Warning)
	assert.Equal(t, 0, svc.Store().Len())

	// Clearing an empty store is a no-op.
	assert.Equal(t, 0, svc.Clear().ChunksRemoved)

	// The persisted snapshot is empty too.
	restored := OpenStore(snapPath)
	assert.Equal(t, 0, restored.Len())
}

func TestSnapshotPersistenceAcrossRestart(t *testing.T) {
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.SnapshotPath = snapPath

	svc := New(vectorstore.New(0), emb, opts)
	result, err := svc.Ingest(context.Background(), testDoc("doc-1", "persistent content"))
	require.NoError(t, err)
	assert.Empty(t, result.Warning)

	// Simulated restart: reopen from the snapshot
	restored := OpenStore(snapPath)
	assert.Equal(t, 1, restored.Len())

	svc2 := New(restored, emb, opts)
	results, err := svc2.Retrieve(context.Background(), "persistent", 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "persistent content", results[0].Chunk.Text)
}

func TestSnapshotFailureIsSoftWarning(t *testing.T) {
	tmp := t.TempDir()
	// Parent "dir" is a regular file, so snapshot writes must fail.
	blocker := filepath.Join(tmp, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.SnapshotPath = filepath.Join(blocker, "snapshot.json")
	svc := New(vectorstore.New(0), emb, opts)

	result, err := svc.Ingest(context.Background(), testDoc("doc-1", "content"))
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warning)
	// The ingest itself succeeded
	assert.Equal(t, 1, svc.Store().Len())
}

func TestOpenStoreCorruptSnapshotFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte("{corrupt"), 0o644))

	store := OpenStore(path)
	assert.Equal(t, 0, store.Len())
}

func TestFindBySource(t *testing.T) {
	emb := newMockEmbedder(3)
	svc := New(vectorstore.New(0), emb, testOptions())

	doc := testDoc("doc-1", "tracked file content")
	doc.Metadata = document.Metadata{MetaSourcePath: document.String("/corpus/a.txt")}
	_, err := svc.Ingest(context.Background(), doc)
	require.NoError(t, err)

	id, hash, ok := svc.FindBySource("/corpus/a.txt")
	require.True(t, ok)
	assert.Equal(t, "doc-1", id)
	assert.Equal(t, ContentHash("tracked file content"), hash)

	_, _, ok = svc.FindBySource("/corpus/missing.txt")
	assert.False(t, ok)
}

func TestChunkSpansAndIndexes(t *testing.T) {
	emb := newMockEmbedder(3)
	opts := testOptions()
	opts.Chunking = chunker.Options{MaxChunkSize: 40, Overlap: 5}
	svc := New(vectorstore.New(0), emb, opts)

	text := "First sentence here. Second sentence here. Third sentence here. Fourth one."
	_, err := svc.Ingest(context.Background(), testDoc("doc-1", text))
	require.NoError(t, err)

	chunks := svc.Store().DocumentChunks("doc-1")
	require.Greater(t, len(chunks), 1)

	runes := []rune(text)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, string(runes[c.StartChar:c.EndChar]), c.Text)
	}
}
