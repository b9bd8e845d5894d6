package chunking

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForContentType(t *testing.T) {
	cases := []struct {
		contentType string
		want        Chunker
	}{
		{"text/markdown", &MarkdownChunker{}},
		{"text/plain", &FallbackChunker{}},
		{"application/pdf", &FallbackChunker{}},
		{"", &FallbackChunker{}},
	}

	for _, tc := range cases {
		t.Run(tc.contentType, func(t *testing.T) {
			assert.IsType(t, tc.want, ForContentType(tc.contentType))
		})
	}
}

func TestFallbackChunkerEmptyText(t *testing.T) {
	chunks, err := NewFallbackChunker().Chunk(context.Background(), "   \n\n  ", 100, 10)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestFallbackChunkerShortTextSingleChunk(t *testing.T) {
	text := "A short note about deployment procedures."
	chunks, err := NewFallbackChunker().Chunk(context.Background(), text, 100, 10)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
}

func TestFallbackChunkerRespectsBound(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "Paragraph number %d talks about topic %d in detail.\n\n", i, i)
	}

	const chunkSize = 25
	chunks, err := NewFallbackChunker().Chunk(context.Background(), b.String(), chunkSize, 5)
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, wordCount(c.Text), chunkSize)
	}
}

func TestFallbackChunkerCarriesSentenceOverlap(t *testing.T) {
	text := "Alpha beta gamma delta.\n\nEpsilon zeta eta theta.\n\nIota kappa lambda mu."
	chunks, err := NewFallbackChunker().Chunk(context.Background(), text, 8, 4)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "Alpha beta gamma delta. Epsilon zeta eta theta.", chunks[0].Text)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Epsilon zeta eta theta."),
		"second chunk should start with overlap from the first, got %q", chunks[1].Text)
	assert.True(t, strings.HasSuffix(chunks[1].Text, "Iota kappa lambda mu."))
}

func TestFallbackChunkerSplitsOversizedLine(t *testing.T) {
	words := make([]string, 50)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	line := strings.Join(words, " ")

	chunks, err := NewFallbackChunker().Chunk(context.Background(), line, 10, 0)
	require.NoError(t, err)

	require.Len(t, chunks, 5)
	assert.True(t, strings.HasPrefix(chunks[0].Text, "w0 "))
	assert.True(t, strings.HasPrefix(chunks[4].Text, "w40 "))
}

func TestMarkdownChunkerSections(t *testing.T) {
	text := strings.Join([]string{
		"Intro paragraph before any heading.",
		"",
		"## Setup",
		"",
		"Install the binary and run it once.",
		"",
		"## Usage",
		"",
		"Point it at your documents directory.",
	}, "\n")

	chunks, err := NewMarkdownChunker().Chunk(context.Background(), text, 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "", chunks[0].Heading)
	assert.Contains(t, chunks[0].Text, "Intro paragraph")
	assert.Equal(t, "Setup", chunks[1].Heading)
	assert.Contains(t, chunks[1].Text, "Install the binary")
	assert.Equal(t, "Usage", chunks[2].Heading)
	assert.Contains(t, chunks[2].Text, "documents directory")
}

func TestMarkdownChunkerNoHeadingsFallsThrough(t *testing.T) {
	chunks, err := NewMarkdownChunker().Chunk(context.Background(), "Just a plain paragraph.", 100, 10)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0].Heading)
}

func TestNormalizeParams(t *testing.T) {
	size, overlap := normalizeParams(0, -1)
	assert.Equal(t, DefaultChunkSize, size)
	assert.Equal(t, DefaultOverlap, overlap)

	size, overlap = normalizeParams(10, 20)
	assert.Equal(t, 10, size)
	assert.Equal(t, 9, overlap)
}

func TestSentenceOverlapPicksTrailingSentences(t *testing.T) {
	got := sentenceOverlap("First part here. Second part here.", 3)
	assert.Equal(t, "Second part here. ", got)

	assert.Equal(t, "", sentenceOverlap("", 10))
	assert.Equal(t, "", sentenceOverlap("anything at all", 0))
}
