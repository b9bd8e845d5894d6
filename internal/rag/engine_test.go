package rag

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/costtracker"
	"copilot/internal/models"
	"copilot/internal/services"
	"copilot/internal/store"
	"copilot/internal/store/memory"
	"copilot/internal/store/primary"
)

type recordingJobClient struct {
	enqueued []string
	err      error
}

func (r *recordingJobClient) EnqueueSummarizeDocument(ctx context.Context, documentID string) error {
	if r.err != nil {
		return r.err
	}
	r.enqueued = append(r.enqueued, documentID)
	return nil
}

func (r *recordingJobClient) Close() error { return nil }

type failingEmbedder struct{}

func (failingEmbedder) Name() string      { return "failing" }
func (failingEmbedder) ModelName() string { return "failing-model" }
func (failingEmbedder) Dimension() int    { return 8 }

func (failingEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("provider down")
}

func (failingEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("provider down")
}

type engineFixture struct {
	engine *Engine
	store  store.DocumentStore
	index  store.VectorIndex
	ledger *costtracker.Ledger
	jobs   *recordingJobClient
}

func newEngineFixture(t *testing.T, opts EngineOptions) *engineFixture {
	t.Helper()
	ctx := context.Background()

	docStore, err := primary.NewDocumentStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { docStore.Close() })

	index := memory.NewIndex()
	ledger := costtracker.NewLedger(costtracker.DefaultPricingTable(),
		costtracker.NewJSONLSink(filepath.Join(t.TempDir(), "costs.jsonl")))
	jobs := &recordingJobClient{}

	engine, err := NewEngine(EngineDeps{
		Store:    docStore,
		Index:    index,
		Embedder: services.NewLocalEmbedder(32),
		Ledger:   ledger,
		Jobs:     jobs,
	}, opts)
	require.NoError(t, err)

	return &engineFixture{engine: engine, store: docStore, index: index, ledger: ledger, jobs: jobs}
}

func TestAddDocumentPersistsAndIndexes(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	result, err := f.engine.AddDocument(ctx, "widgets.md", "text/markdown",
		"# Widgets\n\nWidgets are configured in widgets.yaml. Set retries under the widget block.")
	require.NoError(t, err)
	require.NotEmpty(t, result.DocumentID)
	assert.Equal(t, "widgets.md", result.Filename)
	assert.Greater(t, result.ChunksCreated, 0)

	doc, err := f.store.GetDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "widgets.md", doc.Filename)
	assert.Equal(t, result.ChunksCreated, doc.ChunkCount)

	chunks, err := f.store.GetChunksByDocument(ctx, result.DocumentID)
	require.NoError(t, err)
	assert.Len(t, chunks, result.ChunksCreated)
	for _, c := range chunks {
		assert.NotEmpty(t, c.Embedding)
	}

	indexed, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ChunksCreated, indexed)

	// Exactly one embedding request accounted, and it succeeded.
	stats := f.ledger.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 0, stats.ErrorCount)
}

func TestAddDocumentRejectsEmptyText(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})

	_, err := f.engine.AddDocument(context.Background(), "empty.txt", "text/plain", "   \n\t  ")
	assert.ErrorIs(t, err, models.ErrEmptyDocument)

	count, err := f.store.CountDocuments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAddDocumentRejectsMissingFilename(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})

	_, err := f.engine.AddDocument(context.Background(), "  ", "text/plain", "some text")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestAddDocumentEmbeddingFailureIsAccounted(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	failing, err := NewEngine(EngineDeps{
		Store:    f.store,
		Index:    f.index,
		Embedder: failingEmbedder{},
		Ledger:   f.ledger,
	}, EngineOptions{})
	require.NoError(t, err)

	_, err = failing.AddDocument(ctx, "doomed.txt", "text/plain", "this will not embed")
	assert.ErrorIs(t, err, models.ErrEmbeddingFailed)

	stats := f.ledger.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.ErrorCount)

	count, err := f.store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestAddDocumentEnqueuesSummarizeTask(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{SummarizeOnIngest: true})

	result, err := f.engine.AddDocument(context.Background(), "notes.txt", "text/plain", "summarize me later")
	require.NoError(t, err)
	assert.Equal(t, []string{result.DocumentID}, f.jobs.enqueued)
}

func TestAddDocumentEnqueueFailureDoesNotFailIngest(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{SummarizeOnIngest: true})
	f.jobs.err = fmt.Errorf("redis unreachable")

	_, err := f.engine.AddDocument(context.Background(), "notes.txt", "text/plain", "still ingested")
	require.NoError(t, err)
}

func TestRetrieveFindsRelevantDocument(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	_, err := f.engine.AddDocument(ctx, "kubernetes.md", "text/markdown",
		"Kubernetes pods are scheduled onto nodes by the kube-scheduler.")
	require.NoError(t, err)
	_, err = f.engine.AddDocument(ctx, "baking.md", "text/markdown",
		"Sourdough bread needs a mature starter and a long cold proof.")
	require.NoError(t, err)

	results, err := f.engine.Retrieve(ctx, "how are kubernetes pods scheduled onto nodes", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "kubernetes.md", results[0].Metadata["filename"])
	assert.NotEmpty(t, results[0].Metadata["document_id"])
	for i, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, results[i-1].Score)
		}
	}
}

func TestRetrieveHonorsTopK(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.engine.AddDocument(ctx, fmt.Sprintf("doc%d.txt", i), "text/plain",
			fmt.Sprintf("shared topic words plus variant %d", i))
		require.NoError(t, err)
	}

	results, err := f.engine.Retrieve(ctx, "shared topic words", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestDeleteDocumentRemovesStoreAndIndexEntries(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	result, err := f.engine.AddDocument(ctx, "transient.txt", "text/plain", "here today gone tomorrow")
	require.NoError(t, err)

	require.NoError(t, f.engine.DeleteDocument(ctx, result.DocumentID))

	_, err = f.store.GetDocument(ctx, result.DocumentID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	indexed, err := f.index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, indexed)
}

func TestDeleteDocumentUnknownID(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})

	err := f.engine.DeleteDocument(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDocumentNames(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	_, err := f.engine.AddDocument(ctx, "first.md", "text/markdown", "first document body")
	require.NoError(t, err)
	_, err = f.engine.AddDocument(ctx, "second.txt", "text/plain", "second document body")
	require.NoError(t, err)

	names, err := f.engine.DocumentNames(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"first.md", "second.txt"}, names)
}

func TestReloadIndexRebuildsFromStore(t *testing.T) {
	f := newEngineFixture(t, EngineOptions{})
	ctx := context.Background()

	result, err := f.engine.AddDocument(ctx, "persisted.txt", "text/plain",
		"index contents are rebuilt from sqlite at startup")
	require.NoError(t, err)

	// Simulate a restart: a fresh index fed from the same store.
	fresh := memory.NewIndex()
	restarted, err := NewEngine(EngineDeps{
		Store:    f.store,
		Index:    fresh,
		Embedder: services.NewLocalEmbedder(32),
		Ledger:   f.ledger,
	}, EngineOptions{})
	require.NoError(t, err)

	loaded, err := restarted.ReloadIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, result.ChunksCreated, loaded)

	results, err := restarted.Retrieve(ctx, "rebuilt from sqlite", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "persisted.txt", results[0].Metadata["filename"])
}
