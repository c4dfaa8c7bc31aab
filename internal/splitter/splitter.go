// Package splitter provides recursive separator-priority text chunking.
package splitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/junyang168/smart-answer/internal/core/domain"
)

// DefaultMaxChunkSize is the default number of characters per chunk.
const DefaultMaxChunkSize = 2000

// DefaultOverlapSize is the default number of overlapping characters.
const DefaultOverlapSize = 200

// defaultSeparators orders split points from coarsest to finest:
// paragraph, line, sentence, word. A piece that none of these can break
// is treated as a single unsplittable token.
var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter deterministically splits normalised text into overlapping,
// size-bounded chunks. Identical (text, metadata, maxSize, overlap)
// always yields an identical ordered chunk sequence.
type Splitter struct {
	maxSize    int
	overlap    int
	separators []string
}

// New creates a splitter. overlap must be smaller than maxSize; violating
// this is a configuration error rejected before any work begins.
func New(maxSize, overlap int) (*Splitter, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("%w: max_chunk_size must be positive, got %d", domain.ErrConfig, maxSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap_size must not be negative, got %d", domain.ErrConfig, overlap)
	}
	if overlap >= maxSize {
		return nil, fmt.Errorf("%w: overlap_size %d must be smaller than max_chunk_size %d",
			domain.ErrConfig, overlap, maxSize)
	}
	return &Splitter{
		maxSize:    maxSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}, nil
}

// Split breaks text into chunks for the given collection and content id.
// Consecutive chunks share a window of overlap characters: the window is
// a contiguous substring appearing at the end of chunk i and the start of
// chunk i+1, measured against final emitted chunk boundaries. Each
// chunk's metadata records its actual leading overlap under "overlap" so
// the original text can be reconstructed by stripping it.
//
// A single unsplittable token longer than maxSize is emitted whole as one
// flagged oversized chunk; content is never dropped or truncated.
func (s *Splitter) Split(collection, contentID, text string, meta *domain.Metadata) []domain.Chunk {
	if text == "" {
		return nil
	}

	budget := s.maxSize - s.overlap
	pieces := s.splitRecursive(text, s.separators, budget)
	groups := packPieces(pieces, budget)

	chunks := make([]domain.Chunk, 0, len(groups))
	prev := ""
	for i, group := range groups {
		tailLen := 0
		if i > 0 {
			tailLen = s.overlap
			if len(group) > budget {
				// Oversized group: shrink the window so the chunk
				// stays within maxSize where possible.
				tailLen = s.maxSize - len(group)
			}
			if tailLen > len(prev) {
				tailLen = len(prev)
			}
			if tailLen < 0 {
				tailLen = 0
			}
		}

		chunkText := prev[len(prev)-tailLen:] + group

		m := meta.Clone()
		if m == nil {
			m = domain.NewMetadata()
		}
		m.Set("overlap", strconv.Itoa(tailLen))

		chunks = append(chunks, domain.Chunk{
			Collection: collection,
			ContentID:  contentID,
			Index:      i,
			Text:       chunkText,
			Metadata:   m,
			Oversized:  len(group) > s.maxSize,
		})
		prev = chunkText
	}

	return chunks
}

// MaxSize returns the configured maximum chunk size.
func (s *Splitter) MaxSize() int {
	return s.maxSize
}

// Overlap returns the configured overlap window size.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// splitRecursive breaks text along the coarsest separator first; any
// piece still exceeding budget is split with the next separator. A piece
// no separator can break is returned whole as an atomic token.
// Separators stay attached to the preceding piece so concatenating the
// pieces reproduces the input exactly.
func (s *Splitter) splitRecursive(text string, seps []string, budget int) []string {
	if len(text) <= budget {
		return []string{text}
	}
	if len(seps) == 0 {
		// Atomic token (an unsplittable URL, identifier or code run).
		return []string{text}
	}

	parts := strings.SplitAfter(text, seps[0])
	if len(parts) == 1 {
		return s.splitRecursive(text, seps[1:], budget)
	}

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) <= budget {
			out = append(out, part)
			continue
		}
		out = append(out, s.splitRecursive(part, seps[1:], budget)...)
	}
	return out
}

// packPieces greedily merges adjacent pieces into groups no larger than
// budget. A single piece exceeding budget becomes its own group.
func packPieces(pieces []string, budget int) []string {
	var groups []string
	var cur strings.Builder

	for _, piece := range pieces {
		if cur.Len() > 0 && cur.Len()+len(piece) > budget {
			groups = append(groups, cur.String())
			cur.Reset()
		}
		cur.WriteString(piece)
		if cur.Len() > budget {
			groups = append(groups, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		groups = append(groups, cur.String())
	}
	return groups
}

// Stitch reconstructs the original text from a chunk sequence by removing
// each chunk's declared leading overlap. Inverse of Split.
func Stitch(chunks []domain.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		skip := 0
		if v, ok := c.Metadata.Get("overlap"); ok {
			if n, err := strconv.Atoi(v); err == nil {
				skip = n
			}
		}
		if skip > len(c.Text) {
			skip = len(c.Text)
		}
		b.WriteString(c.Text[skip:])
	}
	return b.String()
}
