package vectorstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/nickbits/docvec/internal/document"
)

// snapshotFormat versions the snapshot encoding.
const snapshotFormat = 1

// snapshotRecord is one chunk entry in the serialized snapshot. Records
// are written in insertion order so a reloaded store ranks ties exactly
// like the original.
type snapshotRecord struct {
	ChunkID    string            `json:"chunk_id"`
	DocumentID string            `json:"document_id"`
	Index      int               `json:"index"`
	Text       string            `json:"text"`
	StartChar  int               `json:"start_char"`
	EndChar    int               `json:"end_char"`
	Vector     []float32         `json:"vector"`
	Metadata   document.Metadata `json:"metadata,omitempty"`
}

// snapshot is the serialized form of a Store.
type snapshot struct {
	Format    int              `json:"format"`
	Dimension int              `json:"dimension"`
	Records   []snapshotRecord `json:"records"`
}

// Save writes the store's contents to w as indented JSON so snapshots
// stay human-inspectable for debugging.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()

	entries := make([]*entry, 0, len(s.entries))
	for _, ent := range s.entries {
		entries = append(entries, ent)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	snap := snapshot{
		Format:    snapshotFormat,
		Dimension: s.dim,
		Records:   make([]snapshotRecord, len(entries)),
	}
	for i, ent := range entries {
		snap.Records[i] = snapshotRecord{
			ChunkID:    ent.chunk.ID,
			DocumentID: ent.chunk.DocumentID,
			Index:      ent.chunk.Index,
			Text:       ent.chunk.Text,
			StartChar:  ent.chunk.StartChar,
			EndChar:    ent.chunk.EndChar,
			Vector:     ent.vector,
			Metadata:   ent.chunk.Metadata,
		}
	}
	s.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// Load reconstructs a store from a snapshot written by Save. The loaded
// store returns identical search results, in identical order, to the
// store that produced the snapshot.
func Load(r io.Reader) (*Store, error) {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Format != snapshotFormat {
		return nil, fmt.Errorf("unsupported snapshot format %d", snap.Format)
	}

	s := New(snap.Dimension)
	for _, rec := range snap.Records {
		if snap.Dimension > 0 && len(rec.Vector) != snap.Dimension {
			return nil, &DimensionError{Want: snap.Dimension, Got: len(rec.Vector)}
		}
		s.nextSeq++
		s.entries[rec.ChunkID] = &entry{
			chunk: document.Chunk{
				ID:         rec.ChunkID,
				DocumentID: rec.DocumentID,
				Index:      rec.Index,
				Text:       rec.Text,
				StartChar:  rec.StartChar,
				EndChar:    rec.EndChar,
				Metadata:   rec.Metadata,
			},
			vector: rec.Vector,
			norm:   vectorNorm(rec.Vector),
			seq:    s.nextSeq,
		}
		s.byDoc[rec.DocumentID] = append(s.byDoc[rec.DocumentID], rec.ChunkID)
	}
	return s, nil
}

// SaveFile writes a snapshot to path atomically via a temp file rename,
// creating parent directories as needed.
func (s *Store) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot from path. A missing file is not an error:
// it yields an empty store, matching first-run startup.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(0), nil
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()
	return Load(f)
}
