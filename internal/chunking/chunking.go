// Package chunking splits document text into bounded, overlapping
// spans for embedding and retrieval.
package chunking

import (
	"context"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultChunkSize is the bound, in approximate tokens (words),
	// applied when the caller passes a non-positive size.
	DefaultChunkSize = 500
	// DefaultOverlap is the approximate token overlap carried between
	// consecutive chunks.
	DefaultOverlap = 50
)

// Chunk is one bounded span of source text. Heading carries the
// markdown section title when the markdown strategy produced it.
type Chunk struct {
	Text    string
	Heading string
}

// Chunker is a single text-splitting strategy.
type Chunker interface {
	Chunk(ctx context.Context, text string, chunkSize, overlap int) ([]Chunk, error)
}

// ForContentType picks a strategy from a MIME type or file extension
// hint. Markdown gets heading-aware splitting; everything else uses
// the fallback splitter.
func ForContentType(contentType string) Chunker {
	if strings.Contains(strings.ToLower(contentType), "markdown") {
		return NewMarkdownChunker()
	}
	return NewFallbackChunker()
}

func normalizeParams(chunkSize, overlap int) (int, int) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	return chunkSize, overlap
}

// wordCount approximates token count for packing decisions.
func wordCount(text string) int {
	return len(strings.Fields(text))
}

var sentenceTokenizer *sentences.DefaultSentenceTokenizer

func init() {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		log.WithError(err).Warn("sentence tokenizer unavailable, chunk overlap falls back to words")
		return
	}
	sentenceTokenizer = t
}

// sentenceOverlap picks whole sentences off the end of text until the
// requested overlap is reached. When even the final sentence exceeds
// the budget it is taken alone, so overlap never silently disappears
// on long sentences.
func sentenceOverlap(text string, overlapTokens int) string {
	if overlapTokens <= 0 || text == "" {
		return ""
	}

	if sentenceTokenizer == nil {
		words := strings.Fields(text)
		if overlapTokens > len(words) {
			overlapTokens = len(words)
		}
		if overlapTokens <= 0 {
			return ""
		}
		return strings.Join(words[len(words)-overlapTokens:], " ") + " "
	}

	sents := sentenceTokenizer.Tokenize(text)
	if len(sents) == 0 {
		return ""
	}

	var picked []string
	accumulated := 0
	for i := len(sents) - 1; i >= 0; i-- {
		sentence := strings.TrimSpace(sents[i].Text)
		if sentence == "" {
			continue
		}
		n := wordCount(sentence)
		if accumulated+n > overlapTokens {
			if len(picked) == 0 {
				picked = []string{sentence}
			}
			break
		}
		picked = append([]string{sentence}, picked...)
		accumulated += n
	}

	if len(picked) == 0 {
		return ""
	}
	return strings.Join(picked, " ") + " "
}

// packPieces greedily packs ordered text pieces into chunks of at most
// chunkSize approximate tokens, seeding each new chunk with sentence
// overlap from the previous one.
func packPieces(pieces []string, chunkSize, overlap int, heading string) []Chunk {
	var out []Chunk
	current := ""
	currentTokens := 0

	for _, piece := range pieces {
		pieceTokens := wordCount(piece)
		if currentTokens > 0 && currentTokens+pieceTokens > chunkSize {
			text := strings.TrimSpace(current)
			out = append(out, Chunk{Text: text, Heading: heading})

			current = sentenceOverlap(text, overlap)
			currentTokens = wordCount(current)
			if currentTokens > 0 && currentTokens+pieceTokens > chunkSize {
				// Overlap plus an oversized piece would blow the
				// bound; drop the overlap rather than emit it alone.
				current = ""
				currentTokens = 0
			}
		}

		if current != "" && !strings.HasSuffix(current, " ") {
			current += " "
		}
		current += piece
		currentTokens += pieceTokens
	}

	if text := strings.TrimSpace(current); text != "" {
		out = append(out, Chunk{Text: text, Heading: heading})
	}

	log.WithFields(log.Fields{"pieces": len(pieces), "chunks": len(out)}).Debug("packed chunk pieces")
	return out
}
