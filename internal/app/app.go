// Package app wires configuration, stores, providers and services into
// one container shared by the HTTP server, the worker and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"copilot/internal/config"
	"copilot/internal/costtracker"
	"copilot/internal/metrics"
	"copilot/internal/rag"
	"copilot/internal/services"
	"copilot/internal/store"
	"copilot/internal/store/memory"
	"copilot/internal/store/primary"
	"copilot/internal/store/vector"
)

type App struct {
	Config *config.Config

	DocumentStore store.DocumentStore
	VectorIndex   store.VectorIndex
	JobClient     store.JobClient

	Embedder   services.EmbeddingProvider
	Completion services.CompletionService
	Prompts    *services.PromptBuilder

	Ledger   *costtracker.Ledger
	Analyzer *costtracker.Analyzer
	Advisor  *costtracker.Advisor
	Metrics  *metrics.Collector

	Engine *rag.Engine
	Chat   *services.ChatService
}

func NewApp(cfg *config.Config) (*App, error) {
	return NewAppWithRegisterer(cfg, prometheus.DefaultRegisterer)
}

// NewAppWithRegisterer exists so tests can hand in a fresh Prometheus
// registry; registering the collectors twice on the default one panics.
func NewAppWithRegisterer(cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := context.Background()
	app := &App{Config: cfg}

	app.initAccounting(reg)
	if err := app.initDocumentStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initEmbedder(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initVectorIndex(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initCompletion(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initPrompts(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initEngine(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initChatService(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}

	log.Info("application initialization complete")
	return app, nil
}

// --- Private Helper Methods ---

func (a *App) initAccounting(reg prometheus.Registerer) {
	overrides := make(map[string]costtracker.Pricing, len(a.Config.Pricing))
	for model, p := range a.Config.Pricing {
		overrides[model] = costtracker.Pricing{Input: p.Input, Output: p.Output}
	}

	sink := costtracker.NewJSONLSink(a.Config.CostLog.Path)
	a.Ledger = costtracker.NewLedger(costtracker.NewPricingTable(overrides), sink)
	a.Analyzer = costtracker.NewAnalyzer(a.Ledger, a.Config.CostLog.Path)
	a.Advisor = costtracker.NewAdvisor(a.Analyzer)

	a.Metrics = metrics.NewCollector(reg)
	a.Ledger.AttachRecorder(a.Metrics)
}

func (a *App) initDocumentStore(ctx context.Context) error {
	ds, err := primary.NewDocumentStore(ctx, a.Config.Database.Primary.DSN)
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}
	a.DocumentStore = ds
	return nil
}

func (a *App) initEmbedder() error {
	cfg := a.Config
	var providers []services.EmbeddingProvider

	switch cfg.Embedding.Provider {
	case "openai":
		openaiEmbedder, err := services.NewOpenAIEmbedder(cfg.Embedding.OpenaiApiKey, cfg.Embedding.Model)
		if err != nil {
			return fmt.Errorf("init openai embedder: %w", err)
		}
		// The local fallback must produce vectors of the same dimension
		// or searches would mix incompatible spaces.
		providers = []services.EmbeddingProvider{
			openaiEmbedder,
			services.NewLocalEmbedder(openaiEmbedder.Dimension()),
		}
	case "local":
		providers = []services.EmbeddingProvider{services.NewLocalEmbedder(cfg.Embedding.Dimension)}
	default:
		return fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	embedder, err := services.NewFallbackEmbedder(providers, nil)
	if err != nil {
		return fmt.Errorf("init embedding fallback chain: %w", err)
	}
	a.Embedder = embedder
	log.WithFields(log.Fields{
		"provider":  cfg.Embedding.Provider,
		"dimension": embedder.Dimension(),
	}).Info("embedding provider initialized")
	return nil
}

func (a *App) initVectorIndex(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Database.Vector.Backend {
	case "memory":
		a.VectorIndex = memory.NewIndex()
	case "pgvector":
		idx, err := vector.NewIndex(ctx, cfg.Database.Vector.DSN, a.Embedder.Dimension())
		if err != nil {
			return fmt.Errorf("init pgvector index: %w", err)
		}
		a.VectorIndex = idx
	default:
		return fmt.Errorf("unknown vector backend: %s", cfg.Database.Vector.Backend)
	}
	return nil
}

func (a *App) initCompletion(ctx context.Context) error {
	cfg := a.Config
	switch cfg.Completion.Provider {
	case "mock":
		a.Completion = services.NewMockProvider()
	case "openai":
		provider, err := services.NewOpenAIProvider(cfg.Completion.OpenaiApiKey, cfg.CompletionModel())
		if err != nil {
			return fmt.Errorf("init openai completion provider: %w", err)
		}
		a.Completion = provider
	case "gemini":
		provider, err := services.NewGeminiProvider(ctx, cfg.Completion.GoogleApiKey, cfg.CompletionModel())
		if err != nil {
			return fmt.Errorf("init gemini completion provider: %w", err)
		}
		a.Completion = provider
	default:
		return fmt.Errorf("unknown completion provider: %s", cfg.Completion.Provider)
	}
	log.WithField("provider", a.Completion.Name()).Info("completion provider initialized")
	return nil
}

func (a *App) initPrompts() error {
	promptText, err := config.LoadSystemPrompt(a.Config.Chat.SystemPromptFile)
	if err != nil {
		return fmt.Errorf("load system prompt: %w", err)
	}
	a.Prompts = services.NewPromptBuilder(promptText)
	return nil
}

func (a *App) initJobClient() error {
	if a.Config.Redis.Address == "" {
		log.Info("redis not configured; background summarization disabled")
		return nil
	}
	jc, err := store.NewAsynqJobClient(a.Config.Redis.Address)
	if err != nil {
		return fmt.Errorf("init job client: %w", err)
	}
	a.JobClient = jc
	return nil
}

func (a *App) initEngine(ctx context.Context) error {
	engine, err := rag.NewEngine(rag.EngineDeps{
		Store:    a.DocumentStore,
		Index:    a.VectorIndex,
		Embedder: a.Embedder,
		Ledger:   a.Ledger,
		Jobs:     a.JobClient,
	}, rag.EngineOptions{
		ChunkSize:         a.Config.Chunking.ChunkSize,
		Overlap:           a.Config.Chunking.Overlap,
		SummarizeOnIngest: a.Config.Summarization.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init retrieval engine: %w", err)
	}
	a.Engine = engine

	// The in-memory index is empty after every restart; feed it the
	// persisted chunks.
	if a.Config.Database.Vector.Backend == "memory" {
		loaded, err := engine.ReloadIndex(ctx)
		if err != nil {
			return fmt.Errorf("rebuild vector index: %w", err)
		}
		log.WithField("chunks", loaded).Info("vector index rebuilt from document store")
	}
	return nil
}

func (a *App) initChatService() error {
	chat, err := services.NewChatService(services.ChatServiceDeps{
		Retriever:  a.Engine,
		Completion: a.Completion,
		Prompts:    a.Prompts,
		Ledger:     a.Ledger,
	}, services.ChatServiceOptions{
		DefaultModel:        a.Config.Chat.Model,
		TopK:                a.Config.Chat.TopK,
		ConfidenceThreshold: &a.Config.Chat.ConfidenceThreshold,
		MaxContextChars:     a.Config.Chat.MaxContextChars,
	})
	if err != nil {
		return fmt.Errorf("init chat service: %w", err)
	}
	a.Chat = chat
	return nil
}

func (a *App) cleanupPartialInit() {
	if a.JobClient != nil {
		a.JobClient.Close()
	}
	if a.VectorIndex != nil {
		a.VectorIndex.Close()
	}
	if a.DocumentStore != nil {
		a.DocumentStore.Close()
	}
	if closer, ok := a.Completion.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("failed to close completion provider")
		}
	}
}

// Close releases every resource the app holds. Safe to call once after
// a successful NewApp.
func (a *App) Close() {
	a.cleanupPartialInit()
}
