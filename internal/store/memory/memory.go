// Package memory provides a process-local vector index. It is the
// default backend: embeddings live in RAM and are rebuilt from the
// document store at startup.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"copilot/internal/models"
	"copilot/internal/store"
)

type indexedChunk struct {
	id         string
	documentID string
	seq        int
	text       string
	embedding  []float32
}

// Index is a thread-safe brute-force cosine index.
type Index struct {
	mu     sync.RWMutex
	chunks []indexedChunk
}

var _ store.VectorIndex = (*Index)(nil)

func NewIndex() *Index {
	return &Index{}
}

func (ix *Index) Add(ctx context.Context, chunks []models.StoredChunk) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		ix.chunks = append(ix.chunks, indexedChunk{
			id:         c.ID,
			documentID: c.DocumentID,
			seq:        c.Seq,
			text:       c.Text,
			embedding:  c.Embedding,
		})
	}
	return nil
}

// Search scores every chunk against the query and returns the top k by
// cosine similarity, clamped to [0, 1] and ordered descending.
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]models.ChunkMatch, error) {
	if len(query) == 0 {
		return nil, fmt.Errorf("query embedding cannot be empty")
	}
	if k <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	matches := make([]models.ChunkMatch, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		matches = append(matches, models.ChunkMatch{
			ChunkID:    c.id,
			DocumentID: c.documentID,
			Seq:        c.seq,
			Text:       c.text,
			Score:      clampScore(cosineSimilarity(query, c.embedding)),
		})
	}
	ix.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (ix *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	kept := ix.chunks[:0]
	for _, c := range ix.chunks {
		if c.documentID != documentID {
			kept = append(kept, c)
		}
	}
	ix.chunks = kept
	return nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks), nil
}

func (ix *Index) Ping(ctx context.Context) error { return nil }

func (ix *Index) Close() error { return nil }

// cosineSimilarity returns the cosine of the angle between two vectors,
// 0 when either vector is degenerate or the dimensions disagree.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
