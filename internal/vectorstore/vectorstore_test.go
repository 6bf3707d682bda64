package vectorstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickbits/docvec/internal/document"
)

func chunkOf(id, docID string, index int) document.Chunk {
	return document.Chunk{
		ID:         id,
		DocumentID: docID,
		Index:      index,
		Text:       "chunk " + id,
	}
}

func TestInsertEstablishesDimension(t *testing.T) {
	s := New(0)
	assert.Equal(t, 0, s.Dimension())

	err := s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-1", 0), Vector: []float32{1, 0, 0}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Dimension())
	assert.Equal(t, 1, s.Len())
}

func TestInsertDimensionMismatchIsAtomic(t *testing.T) {
	s := New(2)
	err := s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-1", 0), Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	// Batch where the second vector has the wrong length: nothing lands.
	err = s.Insert("doc-2", []EmbeddedChunk{
		{Chunk: chunkOf("c2", "doc-2", 0), Vector: []float32{0, 1}},
		{Chunk: chunkOf("c3", "doc-2", 1), Vector: []float32{0, 1, 2}},
	})
	require.Error(t, err)

	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)

	assert.Equal(t, 1, s.Len())
	assert.False(t, s.HasDocument("doc-2"))
}

func TestSearchRankingAndTieBreak(t *testing.T) {
	s := New(2)
	err := s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("a", "doc-1", 0), Vector: []float32{1, 0}},
		{Chunk: chunkOf("b", "doc-1", 1), Vector: []float32{0, 1}},
		{Chunk: chunkOf("c", "doc-1", 2), Vector: []float32{1, 0}},
	})
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// a and c both score 1.0; a was inserted first so it ranks first.
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "c", results[1].Chunk.ID)
	assert.Equal(t, "b", results[2].Chunk.ID)

	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 1.0, results[1].Score, 1e-9)
	assert.InDelta(t, 0.0, results[2].Score, 1e-9)
}

func TestSearchThresholdFiltering(t *testing.T) {
	s := New(2)
	// Best match against [1,0] scores ~0.3.
	err := s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-1", 0), Vector: []float32{0.3, 0.9539392}},
	})
	require.NoError(t, err)

	results, err := s.Search([]float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search([]float32{1, 0}, 5, 0.2)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearchTopKLimit(t *testing.T) {
	s := New(2)
	var chunks []EmbeddedChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, EmbeddedChunk{
			Chunk:  chunkOf(fmt.Sprintf("c%d", i), "doc-1", i),
			Vector: []float32{1, float32(i) * 0.1},
		})
	}
	require.NoError(t, s.Insert("doc-1", chunks))

	results, err := s.Search([]float32{1, 0}, 3, -1)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	// c0 aligns exactly with the query.
	assert.Equal(t, "c0", results[0].Chunk.ID)
}

func TestSearchInvalidTopK(t *testing.T) {
	s := New(2)
	_, err := s.Search([]float32{1, 0}, 0, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = s.Search([]float32{1, 0}, -5, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSearchEmptyStore(t *testing.T) {
	s := New(0)
	results, err := s.Search([]float32{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-1", 0), Vector: []float32{1, 0}},
	}))

	_, err := s.Search([]float32{1, 0, 0}, 5, 0)
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)
}

func TestZeroMagnitudeVectors(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("zero", "doc-1", 0), Vector: []float32{0, 0}},
		{Chunk: chunkOf("unit", "doc-1", 1), Vector: []float32{1, 0}},
	}))

	// Zero-magnitude stored vector scores 0, it never divides by zero.
	results, err := s.Search([]float32{1, 0}, 5, -1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "unit", results[0].Chunk.ID)
	assert.Equal(t, 0.0, results[1].Score)

	// Zero-magnitude query scores 0 against everything.
	results, err = s.Search([]float32{0, 0}, 5, -1)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestDeleteDocumentCascades(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-1", 0), Vector: []float32{1, 0}},
		{Chunk: chunkOf("c2", "doc-1", 1), Vector: []float32{0, 1}},
	}))
	require.NoError(t, s.Insert("doc-2", []EmbeddedChunk{
		{Chunk: chunkOf("c3", "doc-2", 0), Vector: []float32{1, 1}},
	}))

	removed := s.DeleteDocument("doc-1")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.HasDocument("doc-1"))

	results, err := s.Search([]float32{1, 0}, 10, -1)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc-1", r.Chunk.DocumentID)
	}

	// Repeated delete is a no-op, not an error.
	assert.Equal(t, 0, s.DeleteDocument("doc-1"))
	assert.Equal(t, 0, s.DeleteDocument("never-existed"))
}

func TestResetEmptiesStore(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Insert("doc-1", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-1", 0), Vector: []float32{1, 0}},
		{Chunk: chunkOf("c2", "doc-1", 1), Vector: []float32{0, 1}},
	}))

	removed := s.Reset()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Documents())
	assert.False(t, s.HasDocument("doc-1"))

	// Resetting again is a no-op.
	assert.Equal(t, 0, s.Reset())

	// The dimension is forgotten, so a fresh collection may use a new one.
	require.NoError(t, s.Insert("doc-2", []EmbeddedChunk{
		{Chunk: chunkOf("c3", "doc-2", 0), Vector: []float32{1, 0, 0}},
	}))
	assert.Equal(t, 3, s.Dimension())
}

func TestDocumentsListing(t *testing.T) {
	s := New(2)
	require.NoError(t, s.Insert("doc-b", []EmbeddedChunk{
		{Chunk: chunkOf("c1", "doc-b", 0), Vector: []float32{1, 0}},
	}))
	require.NoError(t, s.Insert("doc-a", []EmbeddedChunk{
		{Chunk: chunkOf("c2", "doc-a", 0), Vector: []float32{0, 1}},
		{Chunk: chunkOf("c3", "doc-a", 1), Vector: []float32{1, 1}},
	}))

	docs := s.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, DocumentInfo{ID: "doc-a", ChunkCount: 2}, docs[0])
	assert.Equal(t, DocumentInfo{ID: "doc-b", ChunkCount: 1}, docs[1])

	chunks := s.DocumentChunks("doc-a")
	require.Len(t, chunks, 2)
	assert.Equal(t, "c2", chunks[0].ID)
	assert.Equal(t, "c3", chunks[1].ID)
}

func TestConcurrentSearchesAndWrites(t *testing.T) {
	s := New(4)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				docID := fmt.Sprintf("doc-%d-%d", w, i)
				err := s.Insert(docID, []EmbeddedChunk{
					{Chunk: chunkOf(docID+"-c", docID, 0), Vector: []float32{1, 0, 0, float32(i)}},
				})
				assert.NoError(t, err)
				if i%3 == 0 {
					s.DeleteDocument(docID)
				}
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_, err := s.Search([]float32{1, 0, 0, 0}, 5, 0)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
