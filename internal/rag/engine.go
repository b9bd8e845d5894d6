// Package rag is the retrieval engine: it turns extracted document text
// into embedded chunks, persists them, and answers similarity queries
// for the chat orchestrator.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"copilot/internal/chunking"
	"copilot/internal/models"
	"copilot/internal/services"
	"copilot/internal/store"
	"copilot/internal/util"
)

// IngestResult reports what AddDocument created.
type IngestResult struct {
	DocumentID    string
	Filename      string
	ChunksCreated int
}

// EngineDeps are the engine's collaborators. Jobs may be nil when no
// queue is configured; everything else is required.
type EngineDeps struct {
	Store    store.DocumentStore
	Index    store.VectorIndex
	Embedder services.EmbeddingProvider
	Ledger   services.RequestLedger
	Jobs     store.JobClient
}

// EngineOptions tune chunking and background summarization.
type EngineOptions struct {
	ChunkSize         int
	Overlap           int
	SummarizeOnIngest bool
}

// Engine implements ingestion and retrieval over a document store and a
// vector index. It satisfies services.Retriever.
type Engine struct {
	store     store.DocumentStore
	index     store.VectorIndex
	embedder  services.EmbeddingProvider
	ledger    services.RequestLedger
	jobs      store.JobClient
	chunkSize int
	overlap   int
	summarize bool
}

var _ services.Retriever = (*Engine)(nil)

func NewEngine(deps EngineDeps, opts EngineOptions) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("rag engine requires a document store")
	}
	if deps.Index == nil {
		return nil, fmt.Errorf("rag engine requires a vector index")
	}
	if deps.Embedder == nil {
		return nil, fmt.Errorf("rag engine requires an embedding provider")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("rag engine requires a request ledger")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = chunking.DefaultChunkSize
	}
	if opts.Overlap < 0 {
		opts.Overlap = chunking.DefaultOverlap
	}
	return &Engine{
		store:     deps.Store,
		index:     deps.Index,
		embedder:  deps.Embedder,
		ledger:    deps.Ledger,
		jobs:      deps.Jobs,
		chunkSize: opts.ChunkSize,
		overlap:   opts.Overlap,
		summarize: opts.SummarizeOnIngest,
	}, nil
}

// --- Ingestion ---

// AddDocument runs the ingestion pipeline for one extracted document:
// clean, chunk, embed, persist, index, and optionally enqueue a
// background summary. The embedding batch is cost-tracked under the
// embedder's model name.
func (e *Engine) AddDocument(ctx context.Context, filename, contentType, text string) (*IngestResult, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", models.ErrValidation)
	}

	cleaned, err := util.CleanText([]byte(text), filename)
	if err != nil {
		return nil, fmt.Errorf("failed to clean document text: %w", err)
	}
	if strings.TrimSpace(cleaned) == "" {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, filename)
	}

	chunker := chunking.ForContentType(contentType)
	chunks, err := chunker.Chunk(ctx, cleaned, e.chunkSize, e.overlap)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk document: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrEmptyDocument, filename)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	requestID := e.ledger.Start(e.embedder.ModelName(), strings.Join(texts, " "), models.RequestTypeEmbedding)
	vectors, err := e.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		e.ledger.End(requestID, "", false, err.Error())
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingFailed, err)
	}
	e.ledger.End(requestID, "", true, "")

	doc := &models.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(text)),
		ChunkCount:  len(chunks),
	}

	stored := make([]models.StoredChunk, len(chunks))
	for i, c := range chunks {
		stored[i] = models.StoredChunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Seq:        i,
			Text:       c.Text,
			Embedding:  vectors[i],
		}
	}

	if err := e.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}
	if err := e.store.SaveChunks(ctx, stored); err != nil {
		e.compensateDocument(ctx, doc.ID)
		return nil, fmt.Errorf("failed to save document chunks: %w", err)
	}
	if err := e.index.Add(ctx, stored); err != nil {
		e.compensateDocument(ctx, doc.ID)
		return nil, fmt.Errorf("failed to index document chunks: %w", err)
	}

	log.WithFields(log.Fields{
		"document_id": doc.ID,
		"filename":    filename,
		"chunks":      len(stored),
	}).Info("document ingested")

	if e.summarize && e.jobs != nil {
		if err := e.jobs.EnqueueSummarizeDocument(ctx, doc.ID); err != nil {
			// The document is already searchable; a missing summary is
			// not worth failing the upload over.
			log.WithError(err).WithField("document_id", doc.ID).Warn("failed to enqueue summarize task")
		}
	}

	return &IngestResult{
		DocumentID:    doc.ID,
		Filename:      filename,
		ChunksCreated: len(stored),
	}, nil
}

// compensateDocument best-effort removes a half-ingested document so a
// failed upload does not leave an unsearchable record behind.
func (e *Engine) compensateDocument(ctx context.Context, documentID string) {
	if err := e.store.DeleteDocument(ctx, documentID); err != nil {
		log.WithError(err).WithField("document_id", documentID).Warn("failed to roll back partial ingest")
	}
}

// --- Retrieval ---

// Retrieve embeds the query and returns the topK nearest chunks with
// filename metadata, ordered by descending score. No confidence
// filtering happens here; callers apply their own thresholds.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	vector, err := e.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingFailed, err)
	}

	matches, err := e.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector index: %w", err)
	}

	filenames := make(map[string]string, len(matches))
	results := make([]models.RetrievalResult, 0, len(matches))
	for _, m := range matches {
		name, ok := filenames[m.DocumentID]
		if !ok {
			doc, err := e.store.GetDocument(ctx, m.DocumentID)
			if err != nil {
				// A concurrently deleted document can leave stale index
				// entries briefly; skip its matches.
				log.WithError(err).WithField("document_id", m.DocumentID).Warn("match references unknown document")
				filenames[m.DocumentID] = ""
				continue
			}
			name = doc.Filename
			filenames[m.DocumentID] = name
		}
		if name == "" {
			continue
		}
		results = append(results, models.RetrievalResult{
			Text:  m.Text,
			Score: m.Score,
			Metadata: map[string]string{
				"filename":    name,
				"document_id": m.DocumentID,
			},
		})
	}
	return results, nil
}

// DocumentNames lists every ingested document's filename, for the
// clarification prompt shown on low-confidence queries.
func (e *Engine) DocumentNames(ctx context.Context) ([]string, error) {
	docs, err := e.store.ListDocuments(ctx, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Filename
	}
	return names, nil
}

// --- Document management ---

func (e *Engine) ListDocuments(ctx context.Context, limit, offset int) ([]*models.Document, error) {
	return e.store.ListDocuments(ctx, limit, offset)
}

func (e *Engine) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return e.store.GetDocument(ctx, id)
}

func (e *Engine) DocumentCount(ctx context.Context) (int, error) {
	return e.store.CountDocuments(ctx)
}

// DeleteDocument removes a document from the store and its vectors from
// the index. The store is authoritative; an index failure after the
// store delete is returned so callers know searches may briefly return
// stale matches.
func (e *Engine) DeleteDocument(ctx context.Context, id string) error {
	if err := e.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := e.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to remove document vectors: %w", err)
	}
	log.WithField("document_id", id).Info("document deleted")
	return nil
}

// ReloadIndex repopulates the vector index from persisted chunks. Used
// at startup with the in-memory backend, whose contents do not survive
// restarts. Chunks persisted without an embedding are skipped.
func (e *Engine) ReloadIndex(ctx context.Context) (int, error) {
	chunks, err := e.store.AllChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load chunks for index rebuild: %w", err)
	}

	indexable := chunks[:0]
	skipped := 0
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			skipped++
			continue
		}
		indexable = append(indexable, c)
	}
	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("chunks without embeddings excluded from index rebuild")
	}
	if len(indexable) == 0 {
		return 0, nil
	}

	if err := e.index.Add(ctx, indexable); err != nil {
		return 0, fmt.Errorf("failed to rebuild vector index: %w", err)
	}
	return len(indexable), nil
}
