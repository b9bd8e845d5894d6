package chunking

import (
	"context"
	"regexp"
	"strings"
)

// --- Fallback chunker ---

// FallbackChunker splits plain text by paragraphs, then lines, then
// words, and packs the pieces into bounded chunks.
type FallbackChunker struct{}

var _ Chunker = (*FallbackChunker)(nil)

func NewFallbackChunker() *FallbackChunker {
	return &FallbackChunker{}
}

func (c *FallbackChunker) Chunk(ctx context.Context, text string, chunkSize, overlap int) ([]Chunk, error) {
	chunkSize, overlap = normalizeParams(chunkSize, overlap)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return packPieces(splitPieces(text, chunkSize), chunkSize, overlap, ""), nil
}

// splitPieces breaks text into pieces no larger than chunkSize,
// preferring paragraph boundaries, then line boundaries, then raw word
// windows for pathological lines.
func splitPieces(text string, chunkSize int) []string {
	var pieces []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if wordCount(para) <= chunkSize {
			pieces = append(pieces, para)
			continue
		}
		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if wordCount(line) <= chunkSize {
				pieces = append(pieces, line)
				continue
			}
			words := strings.Fields(line)
			for start := 0; start < len(words); start += chunkSize {
				end := start + chunkSize
				if end > len(words) {
					end = len(words)
				}
				pieces = append(pieces, strings.Join(words[start:end], " "))
			}
		}
	}
	return pieces
}

// --- Markdown chunker ---

// MarkdownChunker splits on second-level-and-deeper headings so chunks
// stay within one document section, then packs each section like the
// fallback chunker. The section heading is attached to its chunks.
type MarkdownChunker struct{}

var _ Chunker = (*MarkdownChunker)(nil)

func NewMarkdownChunker() *MarkdownChunker {
	return &MarkdownChunker{}
}

var markdownHeadingRe = regexp.MustCompile(`(?m)^#{2,}\s+(.*)$`)

func (c *MarkdownChunker) Chunk(ctx context.Context, text string, chunkSize, overlap int) ([]Chunk, error) {
	chunkSize, overlap = normalizeParams(chunkSize, overlap)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	matches := markdownHeadingRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return packPieces(splitPieces(text, chunkSize), chunkSize, overlap, ""), nil
	}

	var out []Chunk
	appendSection := func(section, heading string) {
		section = strings.TrimSpace(section)
		if section == "" {
			return
		}
		out = append(out, packPieces(splitPieces(section, chunkSize), chunkSize, overlap, heading)...)
	}

	appendSection(text[:matches[0][0]], "")
	for i, m := range matches {
		heading := strings.TrimSpace(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		appendSection(text[m[1]:end], heading)
	}
	return out, nil
}
