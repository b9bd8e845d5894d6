package store

import (
	"context"

	"copilot/internal/models"
)

// --- Document Store ---

// DocumentStore persists documents and their chunks. Chunk embeddings are
// stored alongside the text so a memory-backed index can be rebuilt at
// startup without re-embedding anything.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int, error)
	UpdateDocumentSummary(ctx context.Context, id, summary string) error

	SaveChunks(ctx context.Context, chunks []models.StoredChunk) error
	GetChunksByDocument(ctx context.Context, documentID string) ([]models.StoredChunk, error)
	AllChunks(ctx context.Context) ([]models.StoredChunk, error)

	Ping(ctx context.Context) error
	Close() error
}

// --- Vector Index ---

// VectorIndex answers nearest-neighbour queries over chunk embeddings.
// Scores are cosine similarity clamped to [0, 1], ordered descending.
type VectorIndex interface {
	Add(ctx context.Context, chunks []models.StoredChunk) error
	Search(ctx context.Context, query []float32, k int) ([]models.ChunkMatch, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	Count(ctx context.Context) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

// --- Job Client ---

// JobClient enqueues background work. Implementations must tolerate a nil
// receiver so callers can skip wiring when no queue is configured.
type JobClient interface {
	EnqueueSummarizeDocument(ctx context.Context, documentID string) error
	Close() error
}
