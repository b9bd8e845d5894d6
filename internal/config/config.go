package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// PricingInfo holds USD cost per 1000 tokens for a model. Models absent
// from the pricing map cost zero; lookups never fail.
type PricingInfo struct {
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

type Config struct {
	Server struct {
		Addr         string   `mapstructure:"addr"`
		AllowOrigins []string `mapstructure:"allow_origins"`
	} `mapstructure:"server"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	Chat struct {
		Model               string  `mapstructure:"model"`
		TopK                int     `mapstructure:"top_k"`
		ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
		MaxContextChars     int     `mapstructure:"max_context_chars"`
		SystemPromptFile    string  `mapstructure:"system_prompt_file"`
	} `mapstructure:"chat"`

	Completion struct {
		Provider     string `mapstructure:"provider"` // "mock", "openai" or "gemini"
		Model        string `mapstructure:"model"`
		OpenaiApiKey string `mapstructure:"openai_api_key"`
		GoogleApiKey string `mapstructure:"google_api_key"`
	} `mapstructure:"completion"`

	Embedding struct {
		Provider     string `mapstructure:"provider"` // "local" or "openai"
		Model        string `mapstructure:"model"`
		OpenaiApiKey string `mapstructure:"openai_api_key"`
		Dimension    int    `mapstructure:"dimension"`
	} `mapstructure:"embedding"`

	Chunking struct {
		ChunkSize int `mapstructure:"chunk_size"`
		Overlap   int `mapstructure:"overlap"`
	} `mapstructure:"chunking"`

	Summarization struct {
		Enabled bool   `mapstructure:"enabled"`
		Model   string `mapstructure:"model"`
	} `mapstructure:"summarization"`

	Database struct {
		Primary struct {
			DSN string `mapstructure:"dsn"` // SQLite file path
		} `mapstructure:"primary"`
		Vector struct {
			Backend string `mapstructure:"backend"` // "memory" or "pgvector"
			DSN     string `mapstructure:"dsn"`
		} `mapstructure:"vector"`
	} `mapstructure:"database"`

	CostLog struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"cost_log"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`

	// Pricing: model name -> USD per 1000 tokens. Merged over the
	// built-in table, so config only needs entries that differ.
	Pricing map[string]PricingInfo `mapstructure:"pricing"`
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8000")
	viper.SetDefault("server.allow_origins", []string{"http://localhost:3000"})
	viper.SetDefault("log.level", "info")

	viper.SetDefault("chat.model", "claude-sonnet-4")
	viper.SetDefault("chat.top_k", 5)
	viper.SetDefault("chat.confidence_threshold", 0.7)
	viper.SetDefault("chat.max_context_chars", 4000)

	viper.SetDefault("completion.provider", "mock")
	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "text-embedding-ada-002")
	viper.SetDefault("embedding.dimension", 256)

	viper.SetDefault("chunking.chunk_size", 500)
	viper.SetDefault("chunking.overlap", 50)

	viper.SetDefault("summarization.enabled", true)

	viper.SetDefault("database.primary.dsn", "copilot.db")
	viper.SetDefault("database.vector.backend", "memory")
	viper.SetDefault("cost_log.path", "cost_logs.jsonl")

	viper.SetDefault("worker.concurrency", 5)
	viper.SetDefault("worker.queues", map[string]int{"default": 5})
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.copilot")

	setDefaults()

	viper.SetEnvPrefix("COPILOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Conventional env vars work without the COPILOT_ prefix.
	viper.BindEnv("completion.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("embedding.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("completion.google_api_key", "GOOGLE_API_KEY")
	viper.BindEnv("database.vector.dsn", "DATABASE_URL")
	viper.BindEnv("redis.address", "REDIS_ADDR")

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; defaults and env vars carry it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// CompletionModel returns the configured completion model, falling back
// to the default chat model.
func (c *Config) CompletionModel() string {
	if c.Completion.Model != "" {
		return c.Completion.Model
	}
	return c.Chat.Model
}

// SummarizationModel returns the model used for background document
// summaries, falling back to the completion model.
func (c *Config) SummarizationModel() string {
	if c.Summarization.Model != "" {
		return c.Summarization.Model
	}
	return c.CompletionModel()
}
