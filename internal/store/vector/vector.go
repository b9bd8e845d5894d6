// Package vector provides a PostgreSQL + pgvector backed index for
// deployments where the corpus outgrows process memory.
package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	log "github.com/sirupsen/logrus"

	"copilot/internal/models"
	"copilot/internal/store"
)

type Index struct {
	db  *pgxpool.Pool
	dim int
}

var _ store.VectorIndex = (*Index)(nil)

// NewIndex connects to PostgreSQL and ensures the chunks table exists
// with an embedding column of the given dimension.
func NewIndex(ctx context.Context, dsn string, dim int) (*Index, error) {
	if dsn == "" {
		return nil, fmt.Errorf("vector index DSN cannot be empty")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector index dimension must be positive, got %d", dim)
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse vector index DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping vector index: %w", err)
	}

	ix := &Index{db: pool, dim: dim}
	if err := ix.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info("Connected to PostgreSQL vector index")
	return ix, nil
}

func (ix *Index) ensureSchema(ctx context.Context) error {
	if _, err := ix.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS chunks (
			id          TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			seq         INTEGER NOT NULL,
			chunk_text  TEXT NOT NULL,
			embedding   vector(%d) NOT NULL
		)`, ix.dim)
	if _, err := ix.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}
	if _, err := ix.db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`); err != nil {
		return fmt.Errorf("create chunks document index: %w", err)
	}
	return nil
}

func (ix *Index) Close() error {
	if ix.db != nil {
		ix.db.Close()
	}
	return nil
}

func (ix *Index) Ping(ctx context.Context) error {
	if ix.db == nil {
		return fmt.Errorf("vector index connection is not initialized")
	}
	return ix.db.Ping(ctx)
}

func (ix *Index) Add(ctx context.Context, chunks []models.StoredChunk) error {
	query := `
		INSERT INTO chunks (id, document_id, seq, chunk_text, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET chunk_text = EXCLUDED.chunk_text, embedding = EXCLUDED.embedding`
	for _, c := range chunks {
		if len(c.Embedding) != ix.dim {
			return fmt.Errorf("chunk %s embedding has dimension %d, index expects %d", c.ID, len(c.Embedding), ix.dim)
		}
		if _, err := ix.db.Exec(ctx, query,
			c.ID, c.DocumentID, c.Seq, c.Text, pgvector.NewVector(c.Embedding),
		); err != nil {
			return fmt.Errorf("add chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Search orders by cosine distance and reports 1 - distance as the
// similarity score, clamped to [0, 1].
func (ix *Index) Search(ctx context.Context, query []float32, k int) ([]models.ChunkMatch, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query embedding has dimension %d, index expects %d", len(query), ix.dim)
	}
	if k <= 0 {
		return nil, nil
	}
	sql := `
		SELECT id, document_id, seq, chunk_text, (embedding <=> $1) AS distance
		FROM chunks
		ORDER BY embedding <=> $1
		LIMIT $2`
	rows, err := ix.db.Query(ctx, sql, pgvector.NewVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("similarity search query: %w", err)
	}
	defer rows.Close()

	var matches []models.ChunkMatch
	for rows.Next() {
		var m models.ChunkMatch
		var distance float64
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Seq, &m.Text, &distance); err != nil {
			return nil, fmt.Errorf("scan similarity search row: %w", err)
		}
		m.Score = clampScore(1 - distance)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similarity search rows: %w", err)
	}
	return matches, nil
}

func (ix *Index) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := ix.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks for document %s: %w", documentID, err)
	}
	return nil
}

func (ix *Index) Count(ctx context.Context) (int, error) {
	var count int
	if err := ix.db.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
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
