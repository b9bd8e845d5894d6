package tests

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/app"
	"copilot/internal/config"
	"copilot/internal/models"
	"copilot/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.AllowOrigins = []string{"http://localhost:3000"}
	cfg.Log.Level = "info"
	cfg.Chat.Model = "claude-sonnet-4"
	cfg.Chat.TopK = 5
	cfg.Chat.ConfidenceThreshold = 0.7
	cfg.Chat.MaxContextChars = 4000
	cfg.Completion.Provider = "mock"
	cfg.Embedding.Provider = "local"
	cfg.Embedding.Dimension = 64
	cfg.Chunking.ChunkSize = 500
	cfg.Chunking.Overlap = 50
	cfg.Database.Primary.DSN = ":memory:"
	cfg.Database.Vector.Backend = "memory"
	cfg.CostLog.Path = filepath.Join(t.TempDir(), "costs.jsonl")
	return cfg
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	a, err := app.NewAppWithRegisterer(testConfig(t), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	if mock, ok := a.Completion.(*services.MockProvider); ok {
		mock.StreamDelay = 0
	}
	return a
}

func TestAppInitialization(t *testing.T) {
	a := newTestApp(t)

	require.NotNil(t, a.DocumentStore)
	require.NotNil(t, a.VectorIndex)
	require.NotNil(t, a.Embedder)
	require.NotNil(t, a.Completion)
	require.NotNil(t, a.Ledger)
	require.NotNil(t, a.Analyzer)
	require.NotNil(t, a.Advisor)
	require.NotNil(t, a.Engine)
	require.NotNil(t, a.Chat)

	ctx := context.Background()
	require.NoError(t, a.DocumentStore.Ping(ctx))
	require.NoError(t, a.VectorIndex.Ping(ctx))
}

func TestAppRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Completion.Provider = "nonsense"

	_, err := app.NewAppWithRegisterer(cfg, prometheus.NewRegistry())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion.provider")
}

// TestIngestThenChatFlow runs the whole pipeline in process: ingest a
// document, ask a question that matches it, and verify that both the
// answer and the cost accounting come out the other end.
func TestIngestThenChatFlow(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	doc := strings.Repeat("The deployment pipeline builds, tests and releases the service. ", 20)
	result, err := a.Engine.AddDocument(ctx, "deploy.md", "text/markdown", doc)
	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentID)
	assert.Greater(t, result.ChunksCreated, 0)

	// Ingestion accounts the embedding batch.
	stats := a.Ledger.Stats()
	require.Equal(t, 1, stats.TotalRequests)

	resp, err := a.Chat.Chat(ctx, models.ChatRequest{
		Messages: []models.Message{
			{Role: "user", Content: "How does the deployment pipeline release the service?"},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Response)

	stats = a.Ledger.Stats()
	assert.Equal(t, 2, stats.TotalRequests)
	assert.Zero(t, stats.ErrorCount)

	// Both completions landed in the persisted log.
	data, err := os.ReadFile(a.Config.CostLog.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)

	analysis, err := a.Analyzer.Analyze("")
	require.NoError(t, err)
	assert.Equal(t, 2, analysis.TotalRequests)
}

func TestDeleteDocumentRemovesItFromRetrieval(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	result, err := a.Engine.AddDocument(ctx, "notes.txt", "text/plain",
		"Redis connection pooling keeps a fixed number of connections warm.")
	require.NoError(t, err)

	require.NoError(t, a.Engine.DeleteDocument(ctx, result.DocumentID))

	count, err := a.Engine.DocumentCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	matches, err := a.Engine.Retrieve(ctx, "redis connection pooling", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}
