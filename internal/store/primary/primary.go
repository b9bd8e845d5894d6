package primary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"copilot/internal/models"
	"copilot/internal/store"
)

// StoreImpl implements the store.DocumentStore interface using SQLite.
type StoreImpl struct {
	db *sql.DB
}

var _ store.DocumentStore = (*StoreImpl)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	content_type TEXT NOT NULL,
	size_bytes   INTEGER NOT NULL,
	chunk_count  INTEGER NOT NULL DEFAULT 0,
	summary      TEXT,
	created_at   TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	embedding   BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
`

// NewDocumentStore opens (or creates) the SQLite database at dsn and
// applies the schema. Use ":memory:" for an ephemeral store.
func NewDocumentStore(ctx context.Context, dsn string) (*StoreImpl, error) {
	if dsn == "" {
		return nil, errors.New("document store DSN cannot be empty")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open document store: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping document store: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply document store schema: %w", err)
	}
	return &StoreImpl{db: db}, nil
}

// Ping checks the database connection.
func (s *StoreImpl) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database handle.
func (s *StoreImpl) Close() error {
	return s.db.Close()
}

// --- Documents ---

func (s *StoreImpl) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO documents (id, filename, content_type, size_bytes, chunk_count, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.ContentType, doc.SizeBytes, doc.ChunkCount, doc.Summary, doc.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("document %s already exists: %w", doc.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *StoreImpl) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	query := `
		SELECT id, filename, content_type, size_bytes, chunk_count, summary, created_at
		FROM documents
		WHERE id = ?`
	doc := &models.Document{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Filename, &doc.ContentType, &doc.SizeBytes, &doc.ChunkCount, &doc.Summary, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// ListDocuments returns documents ordered newest first. A limit <= 0
// means no limit.
func (s *StoreImpl) ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded
	}
	if offset < 0 {
		offset = 0
	}
	query := `
		SELECT id, filename, content_type, size_bytes, chunk_count, summary, created_at
		FROM documents
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc := &models.Document{}
		if err := rows.Scan(
			&doc.ID, &doc.Filename, &doc.ContentType, &doc.SizeBytes, &doc.ChunkCount, &doc.Summary, &doc.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document and all of its chunks in one
// transaction.
func (s *StoreImpl) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete document: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("delete chunks for document %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *StoreImpl) CountDocuments(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

func (s *StoreImpl) UpdateDocumentSummary(ctx context.Context, id, summary string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET summary = ? WHERE id = ?`, summary, id)
	if err != nil {
		return fmt.Errorf("update summary for document %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update summary for document %s: %w", id, err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// --- Chunks ---

// SaveChunks inserts all chunks in one transaction. Embeddings are
// encoded as little-endian float32 blobs.
func (s *StoreImpl) SaveChunks(ctx context.Context, chunks []models.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save chunks: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, seq, text, embedding)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx,
			chunk.ID, chunk.DocumentID, chunk.Seq, chunk.Text, encodeEmbedding(chunk.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", chunk.ID, err)
		}
	}
	return tx.Commit()
}

func (s *StoreImpl) GetChunksByDocument(ctx context.Context, documentID string) ([]models.StoredChunk, error) {
	query := `
		SELECT id, document_id, seq, text, embedding
		FROM chunks
		WHERE document_id = ?
		ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks for document %s: %w", documentID, err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// AllChunks streams every stored chunk, used to rebuild the in-memory
// vector index at startup.
func (s *StoreImpl) AllChunks(ctx context.Context) ([]models.StoredChunk, error) {
	query := `
		SELECT id, document_id, seq, text, embedding
		FROM chunks
		ORDER BY document_id, seq`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load all chunks: %w", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// --- Helper Functions ---

func scanChunks(rows *sql.Rows) ([]models.StoredChunk, error) {
	var chunks []models.StoredChunk
	for rows.Next() {
		var chunk models.StoredChunk
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Seq, &chunk.Text, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunk.Embedding = decodeEmbedding(blob)
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunk rows: %w", err)
	}
	return chunks, nil
}
