package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	switch c.Completion.Provider {
	case "mock":
	case "openai":
		if c.Completion.OpenaiApiKey == "" {
			return errors.New("completion.openai_api_key is required when completion.provider is openai")
		}
	case "gemini":
		if c.Completion.GoogleApiKey == "" {
			return errors.New("completion.google_api_key is required when completion.provider is gemini")
		}
	default:
		return fmt.Errorf("completion.provider must be one of mock, openai, gemini (got %q)", c.Completion.Provider)
	}

	switch c.Embedding.Provider {
	case "local":
		if c.Embedding.Dimension <= 0 {
			return errors.New("embedding.dimension must be a positive integer")
		}
	case "openai":
		if c.Embedding.OpenaiApiKey == "" {
			return errors.New("embedding.openai_api_key is required when embedding.provider is openai")
		}
	default:
		return fmt.Errorf("embedding.provider must be one of local, openai (got %q)", c.Embedding.Provider)
	}

	switch c.Database.Vector.Backend {
	case "memory":
	case "pgvector":
		if c.Database.Vector.DSN == "" {
			return errors.New("database.vector.dsn is required when database.vector.backend is pgvector")
		}
	default:
		return fmt.Errorf("database.vector.backend must be one of memory, pgvector (got %q)", c.Database.Vector.Backend)
	}

	if c.Database.Primary.DSN == "" {
		return errors.New("database.primary.dsn is required")
	}
	if c.CostLog.Path == "" {
		return errors.New("cost_log.path is required")
	}

	if c.Chat.TopK <= 0 {
		return errors.New("chat.top_k must be a positive integer")
	}
	if c.Chat.ConfidenceThreshold < 0 || c.Chat.ConfidenceThreshold > 1 {
		return fmt.Errorf("chat.confidence_threshold must be within [0, 1] (got %g)", c.Chat.ConfidenceThreshold)
	}
	if c.Chat.MaxContextChars <= 0 {
		return errors.New("chat.max_context_chars must be positive")
	}

	if c.Chunking.ChunkSize <= 0 {
		return errors.New("chunking.chunk_size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.overlap (%d) must be non-negative and less than chunk_size (%d)", c.Chunking.Overlap, c.Chunking.ChunkSize)
	}

	// Worker settings only matter when a broker is configured.
	if c.Redis.Address != "" {
		if c.Worker.Concurrency <= 0 {
			return errors.New("worker.concurrency must be a positive integer")
		}
		if len(c.Worker.Queues) == 0 {
			return errors.New("worker.queues must define at least one queue")
		}
		for name, priority := range c.Worker.Queues {
			if name == "" {
				return errors.New("worker.queues contains an empty queue name")
			}
			if priority <= 0 {
				return fmt.Errorf("worker.queues priority for queue %q must be positive", name)
			}
		}
	}

	for model, p := range c.Pricing {
		if model == "" {
			return errors.New("pricing contains an empty model name")
		}
		if p.Input < 0 || p.Output < 0 {
			return fmt.Errorf("pricing for model %q has a negative rate", model)
		}
	}

	return nil
}
