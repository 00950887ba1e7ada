// Package chunker splits parsed text blocks into overlapping, token-bounded
// chunks ready for embedding.
package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/selimova/docsift/internal/parser"
)

const (
	// DefaultMaxTokens bounds the token length of a single chunk.
	DefaultMaxTokens = 1024
	// DefaultOverlapTokens is carried from the tail of each chunk into the
	// head of the next one.
	DefaultOverlapTokens = 256
)

// chunkNamespace seeds deterministic chunk ids. Never change it: ids derive
// from it, and stable ids are what makes re-ingestion an upsert.
var chunkNamespace = uuid.MustParse("8f1e9c52-3a0b-4a6e-9d47-2f6b1c5e8a31")

// Chunk is a contiguous token-bounded span of document text.
type Chunk struct {
	// ID is deterministic for a given (document, ordinal, text) triple.
	ID string
	// DocumentID identifies the source document.
	DocumentID string
	// Ordinal is the chunk position within the document, starting at 0.
	Ordinal int
	// Text is the chunk content with whitespace normalized to single spaces.
	Text string
	// TokenCount is the token length of Text.
	TokenCount int
	// HierarchyPath is the hierarchy of the block that starts this chunk.
	HierarchyPath []string
}

// ConfigError reports invalid chunking parameters.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "chunker: " + e.Reason }

// Chunker assembles blocks into chunks under a token budget.
type Chunker struct {
	maxTokens     int
	overlapTokens int
}

// New validates the token budget and returns a Chunker.
func New(maxTokens, overlapTokens int) (*Chunker, error) {
	switch {
	case maxTokens <= 0:
		return nil, &ConfigError{Reason: fmt.Sprintf("max tokens must be positive, got %d", maxTokens)}
	case overlapTokens < 0:
		return nil, &ConfigError{Reason: fmt.Sprintf("overlap tokens must not be negative, got %d", overlapTokens)}
	case overlapTokens >= maxTokens:
		return nil, &ConfigError{Reason: fmt.Sprintf("overlap (%d) must be smaller than max tokens (%d)", overlapTokens, maxTokens)}
	}
	return &Chunker{maxTokens: maxTokens, overlapTokens: overlapTokens}, nil
}

// Chunk splits blocks in document order. The output is fully deterministic
// for a fixed input: same boundaries, same ids. An empty block list yields
// an empty result; blocks with empty text are skipped. A single block
// larger than the budget is split at token boundaries, with the usual
// overlap carried across each split.
func (c *Chunker) Chunk(blocks []parser.TextBlock) ([]Chunk, error) {
	var (
		chunks  []Chunk
		cur     []string // tokens of the chunk being assembled
		seedLen int      // leading tokens of cur that are overlap carry-over
		curPath []string
		docID   string
	)

	flush := func(nextPath []string) {
		text := strings.Join(cur, " ")
		chunks = append(chunks, Chunk{
			ID:            ChunkID(docID, len(chunks), text),
			DocumentID:    docID,
			Ordinal:       len(chunks),
			Text:          text,
			TokenCount:    len(cur),
			HierarchyPath: curPath,
		})

		tail := cur
		if len(tail) > c.overlapTokens {
			tail = tail[len(tail)-c.overlapTokens:]
		}
		cur = append([]string(nil), tail...)
		seedLen = len(cur)
		curPath = nextPath
	}

	for _, block := range blocks {
		rem := Tokenize(block.Text)
		if len(rem) == 0 {
			continue
		}
		if docID == "" {
			docID = block.DocumentID
		}
		if len(cur) == seedLen && curPath == nil {
			curPath = block.HierarchyPath
		}

		for len(rem) > 0 {
			if len(cur)+len(rem) <= c.maxTokens {
				cur = append(cur, rem...)
				rem = nil
				break
			}
			if len(cur) > seedLen {
				// The block does not fit next to earlier content: close the
				// chunk at the block boundary and retry against the seeded
				// successor.
				flush(block.HierarchyPath)
				continue
			}
			// Oversized block: fill to the budget and split at the token
			// boundary.
			space := c.maxTokens - len(cur)
			cur = append(cur, rem[:space]...)
			rem = rem[space:]
			flush(block.HierarchyPath)
		}
	}

	// A trailing chunk that is nothing but overlap carry-over would
	// duplicate the previous chunk's tail; drop it.
	if len(cur) > seedLen {
		flush(nil)
	}
	return chunks, nil
}

// ChunkID derives the stable chunk identifier. It is a name-based UUID so
// the vector index accepts it as a point id, and it is reproducible from
// the document id, chunk ordinal and chunk text alone.
func ChunkID(docID string, ordinal int, text string) string {
	name := fmt.Sprintf("%s:%d:%s", docID, ordinal, text)
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}
