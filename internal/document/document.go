// Package document defines the document and chunk model shared by the
// retrieval engine.
package document

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the source format of an uploaded document.
type Type string

const (
	TypeText     Type = "txt"
	TypeMarkdown Type = "markdown"
	TypePDF      Type = "pdf"
	TypeDocx     Type = "docx"
)

// Document is a unit of uploaded content. Its text is immutable once
// created; re-uploading produces a new Document with a new ID.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Type      Type      `json:"type"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  Metadata  `json:"metadata,omitempty"`
}

// New creates a Document with a generated ID and creation timestamp.
func New(filename string, docType Type, text string) Document {
	return Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		Type:      docType,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Chunk is a contiguous slice of a document's text, the unit indexed and
// retrieved. StartChar/EndChar are character offsets into the source text.
type Chunk struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Index      int      `json:"index"`
	Text       string   `json:"text"`
	StartChar  int      `json:"start_char"`
	EndChar    int      `json:"end_char"`
	Metadata   Metadata `json:"metadata,omitempty"`
}
