package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/costtracker"
	"copilot/internal/models"
	"copilot/internal/services"
	"copilot/internal/store/primary"
	"copilot/internal/tasks"
)

type scriptedCompletion struct {
	prompt string
	reply  string
	err    error
}

func (s *scriptedCompletion) Name() string { return "scripted" }

func (s *scriptedCompletion) Complete(ctx context.Context, prompt, model string) (string, error) {
	s.prompt = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func (s *scriptedCompletion) StreamCompletion(ctx context.Context, prompt, model string) (<-chan services.CompletionChunk, error) {
	return nil, fmt.Errorf("not used")
}

func newSummarizeFixture(t *testing.T, completion *scriptedCompletion) (SummarizeDeps, *costtracker.Ledger) {
	t.Helper()
	docStore, err := primary.NewDocumentStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { docStore.Close() })

	ledger := costtracker.NewLedger(costtracker.DefaultPricingTable(),
		costtracker.NewJSONLSink(filepath.Join(t.TempDir(), "costs.jsonl")))

	return SummarizeDeps{
		Store:      docStore,
		Completion: completion,
		Ledger:     ledger,
		Model:      "claude-sonnet-4",
	}, ledger
}

func seedDocument(t *testing.T, deps SummarizeDeps, id string, chunkTexts ...string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, deps.Store.CreateDocument(ctx, &models.Document{
		ID:          id,
		Filename:    id + ".txt",
		ContentType: "text/plain",
		ChunkCount:  len(chunkTexts),
	}))
	chunks := make([]models.StoredChunk, len(chunkTexts))
	for i, text := range chunkTexts {
		chunks[i] = models.StoredChunk{
			ID:         fmt.Sprintf("%s-c%d", id, i),
			DocumentID: id,
			Seq:        i,
			Text:       text,
			Embedding:  []float32{1, 0},
		}
	}
	require.NoError(t, deps.Store.SaveChunks(ctx, chunks))
}

func summarizeTask(t *testing.T, documentID string) *asynq.Task {
	t.Helper()
	task, err := tasks.NewSummarizeTask(documentID)
	require.NoError(t, err)
	return task
}

func TestHandleSummarizeDocument(t *testing.T) {
	completion := &scriptedCompletion{reply: "A concise summary."}
	deps, ledger := newSummarizeFixture(t, completion)
	seedDocument(t, deps, "doc-1", "first chunk text", "second chunk text")

	handler := HandleSummarizeDocument(deps)
	require.NoError(t, handler(context.Background(), summarizeTask(t, "doc-1")))

	assert.True(t, strings.HasPrefix(completion.prompt, summarizePromptPrefix))
	assert.Contains(t, completion.prompt, "first chunk text\n\nsecond chunk text")

	doc, err := deps.Store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc.Summary)
	assert.Equal(t, "A concise summary.", *doc.Summary)

	stats := ledger.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 0, stats.ErrorCount)
}

func TestHandleSummarizeDocumentMissingDocument(t *testing.T) {
	completion := &scriptedCompletion{reply: "unused"}
	deps, ledger := newSummarizeFixture(t, completion)

	handler := HandleSummarizeDocument(deps)
	// A deleted document is not a failure; the task must not retry.
	require.NoError(t, handler(context.Background(), summarizeTask(t, "gone")))
	assert.Empty(t, completion.prompt)
	assert.Equal(t, 0, ledger.Stats().TotalRequests)
}

func TestHandleSummarizeDocumentCompletionFailure(t *testing.T) {
	completion := &scriptedCompletion{err: fmt.Errorf("model overloaded")}
	deps, ledger := newSummarizeFixture(t, completion)
	seedDocument(t, deps, "doc-1", "chunk text")

	handler := HandleSummarizeDocument(deps)
	err := handler(context.Background(), summarizeTask(t, "doc-1"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	doc, getErr := deps.Store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, getErr)
	assert.Nil(t, doc.Summary)

	stats := ledger.Stats()
	assert.Equal(t, 1, stats.TotalRequests)
	assert.Equal(t, 1, stats.ErrorCount)
}

func TestHandleSummarizeDocumentMalformedPayload(t *testing.T) {
	completion := &scriptedCompletion{}
	deps, _ := newSummarizeFixture(t, completion)

	handler := HandleSummarizeDocument(deps)
	err := handler(context.Background(), asynq.NewTask(tasks.TypeSummarizeDocument, []byte("{}")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestRegisterHandlers(t *testing.T) {
	completion := &scriptedCompletion{reply: "summary"}
	deps, _ := newSummarizeFixture(t, completion)
	seedDocument(t, deps, "doc-1", "chunk text")

	mux := asynq.NewServeMux()
	RegisterHandlers(mux, deps)

	// Dispatch through the mux to prove the task type is routed.
	err := mux.ProcessTask(context.Background(), summarizeTask(t, "doc-1"))
	require.NoError(t, err)

	doc, err := deps.Store.GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc.Summary)
}
