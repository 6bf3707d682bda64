// Package chunker splits document text into overlapping passages suitable
// for embedding. Chunking is a pure function of (text, options): identical
// inputs always produce identical output.
package chunker

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when chunking options fail validation.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// Options configures the chunker. Sizes and offsets are in characters
// (Unicode code points), not bytes.
type Options struct {
	// MaxChunkSize is the maximum chunk length. Must be positive.
	MaxChunkSize int

	// Overlap is how many trailing characters of a chunk are repeated at
	// the start of the next one. Must be non-negative and < MaxChunkSize.
	Overlap int

	// BoundaryWindow is how far back from the size limit to look for a
	// paragraph or sentence boundary before hard-splitting. Zero selects
	// a default derived from MaxChunkSize.
	BoundaryWindow int
}

// DefaultOptions returns the chunking defaults used across the engine.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: 1000,
		Overlap:      200,
	}
}

// Validate checks the options before any text is processed.
func (o Options) Validate() error {
	if o.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: maxChunkSize must be positive, got %d", ErrInvalidConfig, o.MaxChunkSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, o.Overlap)
	}
	if o.Overlap >= o.MaxChunkSize {
		return fmt.Errorf("%w: overlap %d must be smaller than maxChunkSize %d", ErrInvalidConfig, o.Overlap, o.MaxChunkSize)
	}
	if o.BoundaryWindow < 0 {
		return fmt.Errorf("%w: boundaryWindow must be non-negative, got %d", ErrInvalidConfig, o.BoundaryWindow)
	}
	return nil
}

// boundaryWindow resolves the effective look-back window.
func (o Options) boundaryWindow() int {
	w := o.BoundaryWindow
	if w == 0 {
		w = o.MaxChunkSize / 5
	}
	if w >= o.MaxChunkSize {
		w = o.MaxChunkSize - 1
	}
	return w
}

// Span is one chunk of the input text. Start and End are character
// offsets into the source text; Text == source[Start:End] in characters.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunk splits text into spans no longer than opts.MaxChunkSize, each
// overlapping its predecessor by opts.Overlap characters. Splits prefer
// paragraph breaks, then sentence ends, then whitespace within the
// boundary window; otherwise the text is hard-split at the size limit.
// Empty text yields no spans and no error.
func Chunk(text string, opts Options) ([]Span, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= opts.MaxChunkSize {
		return []Span{{Start: 0, End: len(runes), Text: text}}, nil
	}

	window := opts.boundaryWindow()

	var spans []Span
	pos := 0
	for pos < len(runes) {
		end := pos + opts.MaxChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = splitPoint(runes, pos, end, window)
		}

		spans = append(spans, Span{
			Start: pos,
			End:   end,
			Text:  string(runes[pos:end]),
		})

		if end == len(runes) {
			break
		}

		next := end - opts.Overlap
		if next <= pos {
			// Overlap would stall the scan; advance without it.
			next = end
		}
		pos = next
	}

	return spans, nil
}

// splitPoint picks the cut position for a chunk spanning [start, limit).
// It scans backwards from limit through the boundary window, preferring a
// paragraph break, then a sentence end, then any whitespace. Falls back
// to the hard limit when the window contains no boundary.
func splitPoint(runes []rune, start, limit, window int) int {
	floor := limit - window
	if floor <= start {
		floor = start + 1
	}

	sentence := -1
	space := -1
	for i := limit - 1; i >= floor; i-- {
		switch {
		case runes[i] == '\n' && i > 0 && runes[i-1] == '\n':
			// Paragraph break wins outright; cut just after it.
			return i + 1
		case sentence < 0 && isSentenceEnd(runes, i):
			sentence = i + 1
		case space < 0 && isSpace(runes[i]):
			space = i + 1
		}
	}

	if sentence > start {
		return sentence
	}
	if space > start {
		return space
	}
	return limit
}

// isSentenceEnd reports whether position i terminates a sentence: a
// terminal punctuation mark followed by whitespace.
func isSentenceEnd(runes []rune, i int) bool {
	if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
		return false
	}
	return i+1 < len(runes) && isSpace(runes[i+1])
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
