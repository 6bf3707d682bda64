// Package vectorstore holds chunk embedding vectors and metadata in
// memory and answers exact cosine-similarity top-K queries over them.
//
// The store is the single shared mutable resource of the retrieval
// engine: searches run concurrently under a read lock while inserts and
// deletes are serialized under the write lock, so a search observes
// either the pre-mutation or post-mutation state, never a half-applied
// batch.
package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/nickbits/docvec/internal/document"
)

// ErrInvalidConfig is returned for invalid search parameters.
var ErrInvalidConfig = errors.New("invalid search configuration")

// DimensionError reports a vector whose length disagrees with the
// store's established dimensionality.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: store holds %d-dimensional vectors, got %d", e.Want, e.Got)
}

// EmbeddedChunk pairs a chunk with its embedding vector for insertion.
type EmbeddedChunk struct {
	Chunk  document.Chunk
	Vector []float32
}

// Result is one ranked search hit.
type Result struct {
	Chunk document.Chunk `json:"chunk"`
	Score float64        `json:"score"`
}

// DocumentInfo summarizes one document's presence in the store.
type DocumentInfo struct {
	ID         string `json:"id"`
	ChunkCount int    `json:"chunk_count"`
}

// entry is the stored record for one chunk.
type entry struct {
	chunk  document.Chunk
	vector []float32
	norm   float64 // precomputed L2 norm
	seq    uint64  // insertion order, used for deterministic tie-breaking
}

// Store is an in-memory vector index keyed by chunk ID with a reverse
// index from document ID to chunk IDs for cascading deletes.
type Store struct {
	mu      sync.RWMutex
	dim     int // 0 until established by the first insert or New
	entries map[string]*entry
	byDoc   map[string][]string
	nextSeq uint64
}

// New creates an empty store. dimension may be 0, in which case the
// dimensionality is inferred from the first inserted vector.
func New(dimension int) *Store {
	return &Store{
		dim:     dimension,
		entries: make(map[string]*entry),
		byDoc:   make(map[string][]string),
	}
}

// Insert adds a batch of embedded chunks belonging to one document.
// The batch is all-or-nothing: if any vector's dimension disagrees with
// the store's, no chunk from the batch is added and a *DimensionError
// is returned. A chunk ID already present is overwritten in place.
func (s *Store) Insert(documentID string, chunks []EmbeddedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching any state.
	dim := s.dim
	if dim == 0 {
		dim = len(chunks[0].Vector)
		if dim == 0 {
			return &DimensionError{Want: 0, Got: 0}
		}
	}
	for _, ec := range chunks {
		if len(ec.Vector) != dim {
			return &DimensionError{Want: dim, Got: len(ec.Vector)}
		}
	}
	s.dim = dim

	for _, ec := range chunks {
		id := ec.Chunk.ID
		if old, ok := s.entries[id]; ok {
			s.removeFromDocIndex(old.chunk.DocumentID, id)
		}
		s.nextSeq++
		s.entries[id] = &entry{
			chunk:  ec.Chunk,
			vector: ec.Vector,
			norm:   vectorNorm(ec.Vector),
			seq:    s.nextSeq,
		}
		s.byDoc[documentID] = append(s.byDoc[documentID], id)
	}
	return nil
}

// DeleteDocument removes every chunk owned by documentID and returns how
// many were removed. Deleting an unknown document is a no-op, not an
// error.
func (s *Store) DeleteDocument(documentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.byDoc[documentID]
	if !ok {
		return 0
	}
	for _, id := range ids {
		delete(s.entries, id)
	}
	delete(s.byDoc, documentID)
	return len(ids)
}

// Reset removes every document and chunk and forgets the established
// dimension, returning how many chunks were dropped. The next insert
// starts a fresh collection.
func (s *Store) Reset() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.entries)
	s.entries = make(map[string]*entry)
	s.byDoc = make(map[string][]string)
	s.dim = 0
	s.nextSeq = 0
	return removed
}

// Search returns up to topK chunks scoring at least threshold against
// queryVector, ordered by descending cosine similarity. Equal scores are
// broken by ascending insertion order so results are deterministic. An
// empty store yields an empty result.
func (s *Store) Search(queryVector []float32, topK int, threshold float64) ([]Result, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", ErrInvalidConfig, topK)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(queryVector) != s.dim {
		return nil, &DimensionError{Want: s.dim, Got: len(queryVector)}
	}

	queryNorm := vectorNorm(queryVector)

	type scored struct {
		ent   *entry
		score float64
	}
	candidates := make([]scored, 0, len(s.entries))
	for _, ent := range s.entries {
		score := cosine(queryVector, queryNorm, ent.vector, ent.norm)
		if score >= threshold {
			candidates = append(candidates, scored{ent: ent, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].ent.seq < candidates[j].ent.seq
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{Chunk: c.ent.chunk, Score: c.score}
	}
	return results, nil
}

// Dimension returns the store's established dimensionality, or 0 if no
// vector has been inserted yet.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// HasDocument reports whether any chunk of documentID is stored.
func (s *Store) HasDocument(documentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byDoc[documentID]
	return ok
}

// Documents lists the stored documents sorted by ID.
func (s *Store) Documents() []DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]DocumentInfo, 0, len(s.byDoc))
	for id, chunkIDs := range s.byDoc {
		infos = append(infos, DocumentInfo{ID: id, ChunkCount: len(chunkIDs)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// DocumentChunks returns the chunks of documentID in insertion order.
func (s *Store) DocumentChunks(documentID string) []document.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byDoc[documentID]
	chunks := make([]document.Chunk, 0, len(ids))
	for _, id := range ids {
		if ent, ok := s.entries[id]; ok {
			chunks = append(chunks, ent.chunk)
		}
	}
	return chunks
}

// removeFromDocIndex drops chunkID from a document's chunk list.
// Caller must hold the write lock.
func (s *Store) removeFromDocIndex(documentID, chunkID string) {
	ids := s.byDoc[documentID]
	for i, id := range ids {
		if id == chunkID {
			s.byDoc[documentID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byDoc[documentID]) == 0 {
		delete(s.byDoc, documentID)
	}
}

// vectorNorm computes the L2 norm of a vector.
func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosine computes cosine similarity given precomputed norms. A
// zero-magnitude vector scores 0 against everything rather than
// dividing by zero.
func cosine(a []float32, normA float64, b []float32, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}
