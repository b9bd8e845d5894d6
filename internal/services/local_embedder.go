package services

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalEmbedder is a deterministic, key-less embedding provider. Words
// are hashed into dimension buckets and the vector is L2-normalized.
// Retrieval quality is rough but stable, which is what development and
// tests need.
type LocalEmbedder struct {
	dim int
}

var _ EmbeddingProvider = (*LocalEmbedder)(nil)

func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &LocalEmbedder{dim: dim}
}

func (p *LocalEmbedder) Name() string      { return "local" }
func (p *LocalEmbedder) ModelName() string { return "local-hash" }
func (p *LocalEmbedder) Dimension() int    { return p.dim }

func (p *LocalEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, p.dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[int(h.Sum32()%uint32(p.dim))]++
	}
	return l2Normalize(vec), nil
}

func (p *LocalEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := p.GenerateEmbedding(ctx, t)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func l2Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}
