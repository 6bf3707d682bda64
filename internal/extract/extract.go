// Package extract turns uploaded files into cleaned plain text ready
// for chunking.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nickbits/docvec/internal/document"
)

// UnsupportedTypeError reports a file extension the extractor cannot
// handle.
type UnsupportedTypeError struct {
	Ext string
}

func (e *UnsupportedTypeError) Error() string {
	return "unsupported document type: " + e.Ext
}

// TypeForExt maps a file extension to a document type. Returns false
// for unsupported extensions.
func TypeForExt(ext string) (document.Type, bool) {
	switch strings.ToLower(ext) {
	case ".txt", ".text":
		return document.TypeText, true
	case ".md", ".markdown":
		return document.TypeMarkdown, true
	case ".pdf":
		return document.TypePDF, true
	case ".docx":
		return document.TypeDocx, true
	default:
		return "", false
	}
}

// FromFile extracts and cleans the text content of the file at path.
func FromFile(path string) (string, document.Type, error) {
	ext := filepath.Ext(path)
	docType, ok := TypeForExt(ext)
	if !ok {
		return "", "", &UnsupportedTypeError{Ext: ext}
	}

	var text string
	var err error
	switch docType {
	case document.TypePDF:
		text, err = fromPDF(path)
	case document.TypeDocx:
		text, err = fromDocx(path)
	default:
		text, err = fromPlainText(path)
	}
	if err != nil {
		return "", "", err
	}

	return Clean(text), docType, nil
}

// fromPlainText reads a text or markdown file as-is.
func fromPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// fromPDF extracts the plain text of every page.
func fromPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	content, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

// fromDocx extracts paragraph text from the WordprocessingML body. A
// .docx file is a zip archive; the document text lives in
// word/document.xml as runs of w:t elements grouped into w:p paragraphs.
func fromDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("failed to extract docx text: no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("failed to extract docx text: %w", err)
	}
	defer rc.Close()

	return docxBodyText(rc)
}

// docxBodyText streams the WordprocessingML markup and joins paragraphs
// with newlines, the way the original document reads.
func docxBodyText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return b.String(), nil
}

// Clean normalizes extracted text: collapses runs of spaces and tabs,
// trims trailing whitespace per line, and squeezes blank-line runs down
// to a single paragraph break so chunk boundaries stay meaningful.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	var out []string
	blankRun := 0
	for _, line := range lines {
		line = strings.TrimRight(collapseSpaces(line), " ")
		if line == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}

// collapseSpaces squeezes runs of spaces and tabs into single spaces.
func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if r == ' ' || r == '\t' {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}
