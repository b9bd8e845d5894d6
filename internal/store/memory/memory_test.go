package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/models"
)

func chunk(id, docID string, seq int, text string, embedding []float32) models.StoredChunk {
	return models.StoredChunk{ID: id, DocumentID: docID, Seq: seq, Text: text, Embedding: embedding}
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	err := ix.Add(ctx, []models.StoredChunk{
		chunk("c1", "d1", 0, "exact match", []float32{1, 0, 0}),
		chunk("c2", "d1", 1, "orthogonal", []float32{0, 1, 0}),
		chunk("c3", "d2", 0, "close match", []float32{1, 0.2, 0}),
	})
	require.NoError(t, err)

	matches, err := ix.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "c1", matches[0].ChunkID)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, "c3", matches[1].ChunkID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestSearchClampsNegativeScores(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, []models.StoredChunk{
		chunk("c1", "d1", 0, "opposite direction", []float32{-1, 0}),
	}))

	matches, err := ix.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 0.0, matches[0].Score)
}

func TestSearchKLargerThanIndex(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, []models.StoredChunk{
		chunk("c1", "d1", 0, "only one", []float32{1, 1}),
	}))

	matches, err := ix.Search(ctx, []float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestSearchEmptyQueryFails(t *testing.T) {
	ix := NewIndex()
	_, err := ix.Search(context.Background(), nil, 3)
	assert.Error(t, err)
}

func TestAddRejectsChunkWithoutEmbedding(t *testing.T) {
	ix := NewIndex()
	err := ix.Add(context.Background(), []models.StoredChunk{
		chunk("c1", "d1", 0, "no vector", nil),
	})
	assert.Error(t, err)
}

func TestDeleteByDocument(t *testing.T) {
	ix := NewIndex()
	ctx := context.Background()

	require.NoError(t, ix.Add(ctx, []models.StoredChunk{
		chunk("c1", "d1", 0, "keep", []float32{1, 0}),
		chunk("c2", "d2", 0, "drop", []float32{0, 1}),
		chunk("c3", "d2", 1, "drop too", []float32{1, 1}),
	}))

	require.NoError(t, ix.DeleteByDocument(ctx, "d2"))

	count, err := ix.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	matches, err := ix.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c1", matches[0].ChunkID)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}
