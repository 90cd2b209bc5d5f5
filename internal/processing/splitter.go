// Package processing prepares extracted text for the model: chunking and
// token counting.
package processing

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in order, coarsest first.
var DefaultSeparators = []string{"\n\n", "\n", ".", ""}

// Splitter cuts text into chunks of at most ChunkSize characters, trying
// each separator in turn and carrying ChunkOverlap characters between
// neighbouring chunks. Separators stay attached to the start of the piece
// that follows them.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &Splitter{ChunkSize: size, ChunkOverlap: overlap, Separators: DefaultSeparators}, nil
}

// SplitPages splits every page and concatenates the chunks.
func (s *Splitter) SplitPages(pages []string) []string {
	var out []string
	for _, p := range pages {
		out = append(out, s.Split(p)...)
	}
	return out
}

func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, c := range seps {
		if c == "" {
			sep = c
			break
		}
		if strings.Contains(text, c) {
			sep = c
			rest = seps[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeep(text, sep) {
		if length(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge packs consecutive pieces into chunks, keeping a tail of up to
// ChunkOverlap characters from the previous chunk.
func (s *Splitter) merge(pieces []string) []string {
	var (
		docs    []string
		current []string
		total   int
	)
	for _, p := range pieces {
		n := length(p)
		if total+n > s.ChunkSize && len(current) > 0 {
			if doc := join(current); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= length(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := join(current); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func join(pieces []string) string {
	return strings.TrimSpace(strings.Join(pieces, ""))
}

// splitKeep splits text on sep, prefixing every piece but the first with
// the separator. An empty sep splits into characters.
func splitKeep(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = sep + p
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func length(s string) int { return utf8.RuneCountInString(s) }
