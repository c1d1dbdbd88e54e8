// Package chunker splits extracted source text into retrieval-sized pieces.
//
// Splitting is sentence-aware: a chunk never ends mid-sentence, and a
// configurable tail of each chunk is carried into the next one so that
// context spanning a boundary is still retrievable.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Default sizing, tuned for embedding models that work best around
// 500 tokens (~4 characters per token).
const (
	DefaultTargetSize = 2000
	DefaultOverlap    = 200
)

// Chunker splits text into overlapping, sentence-aligned chunks.
type Chunker struct {
	targetSize int
	overlap    int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTargetSize sets the target chunk size in bytes.
func WithTargetSize(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.targetSize = n
		}
	}
}

// WithOverlap sets how many trailing bytes of a chunk are carried into
// the next chunk. The effective overlap may be slightly larger to avoid
// splitting a multi-byte rune.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		targetSize: DefaultTargetSize,
		overlap:    DefaultOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.targetSize {
		c.overlap = c.targetSize / 2
	}
	return c
}

// Chunk splits text into chunks of at most the target size, never
// breaking inside a sentence. A sentence longer than the target size
// becomes a chunk of its own. Empty or whitespace-only input yields nil.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var (
		chunks []string
		buf    strings.Builder
		inBuf  int // sentences accumulated since the last emit
	)

	for _, sent := range splitSentences(text) {
		if len(sent) > c.targetSize {
			// Oversized sentence: flush whatever is pending, then emit
			// the sentence as its own chunk.
			if inBuf > 0 {
				chunks = append(chunks, buf.String())
			}
			chunks = append(chunks, sent)
			buf.Reset()
			buf.WriteString(c.tail(sent))
			inBuf = 0
			continue
		}

		if inBuf > 0 && buf.Len()+len(sent) > c.targetSize {
			chunk := buf.String()
			chunks = append(chunks, chunk)
			buf.Reset()
			buf.WriteString(c.tail(chunk))
			inBuf = 0
		}

		buf.WriteString(sent)
		inBuf++
	}

	if inBuf > 0 {
		chunks = append(chunks, buf.String())
	}

	return chunks
}

// tail returns the overlap window at the end of chunk, extended forward
// if needed so it starts on a rune boundary. Chunks no longer than the
// overlap carry nothing, otherwise the next chunk would contain this one
// entirely.
func (c *Chunker) tail(chunk string) string {
	if c.overlap <= 0 || len(chunk) <= c.overlap {
		return ""
	}
	i := len(chunk) - c.overlap
	for i < len(chunk) && !utf8.RuneStart(chunk[i]) {
		i++
	}
	return chunk[i:]
}

// splitSentences splits text after each terminator (. ! ?), attaching the
// following whitespace run to the sentence it ends. The concatenation of
// the returned segments is exactly the input.
func splitSentences(text string) []string {
	var sentences []string
	start, i := 0, 0

	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		for i < len(text) {
			next, nextSize := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(next) {
				break
			}
			i += nextSize
		}
		sentences = append(sentences, text[start:i])
		start = i
	}

	if start < len(text) {
		sentences = append(sentences, text[start:])
	}

	return sentences
}
