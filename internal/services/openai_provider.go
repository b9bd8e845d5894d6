package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"
)

// --- Completion ---

// OpenAIProvider implements CompletionService using the OpenAI API.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

var _ CompletionService = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI completion provider.
func NewOpenAIProvider(apiKey, model string) (*OpenAIProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}
	if model == "" {
		model = openai.GPT4
	}
	log.Infof("OpenAI completion provider initialized with model %s", model)
	return &OpenAIProvider{client: openai.NewClient(apiKey), model: model}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

// resolveModel keeps the request's model when OpenAI can serve it.
// Claude-style accounting names have no OpenAI equivalent and fall back
// to the configured model.
func (p *OpenAIProvider) resolveModel(model string) string {
	if model == "" || strings.HasPrefix(model, "claude") {
		return p.model
	}
	return model
}

func (p *OpenAIProvider) Complete(ctx context.Context, prompt, model string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.resolveModel(model),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) StreamCompletion(ctx context.Context, prompt, model string) (<-chan CompletionChunk, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: p.resolveModel(model),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	out := make(chan CompletionChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case out <- CompletionChunk{Err: fmt.Errorf("openai stream recv: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- CompletionChunk{Text: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// --- Embeddings ---

// OpenAIEmbedder implements EmbeddingProvider using the OpenAI API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dim    int
}

var _ EmbeddingProvider = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates a new OpenAI embedding provider.
func NewOpenAIEmbedder(apiKey, modelID string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not provided")
	}

	var dim int
	switch modelID {
	case string(openai.AdaEmbeddingV2):
		dim = 1536
	case "text-embedding-3-small":
		dim = 1536
	case "text-embedding-3-large":
		dim = 3072
	default:
		log.Warnf("Unknown OpenAI embedding model '%s', defaulting dimension to 1536 (AdaV2). Accuracy may be affected.", modelID)
		modelID = string(openai.AdaEmbeddingV2)
		dim = 1536
	}

	log.Infof("OpenAI embedder initialized with model %s (dimension %d)", modelID, dim)
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(modelID),
		dim:    dim,
	}, nil
}

func (p *OpenAIEmbedder) Name() string { return "openai" }

func (p *OpenAIEmbedder) ModelName() string { return string(p.model) }

func (p *OpenAIEmbedder) Dimension() int { return p.dim }

func (p *OpenAIEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		log.Warn("GenerateEmbedding called with empty text for OpenAI")
		return make([]float32, p.dim), nil
	}
	vecs, err := p.GenerateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OpenAIEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// The API rejects empty inputs; substitute zero vectors for them.
	validTexts := make([]string, 0, len(texts))
	originalIndices := make([]int, 0, len(texts))
	for i, t := range texts {
		if t != "" {
			originalIndices = append(originalIndices, i)
			validTexts = append(validTexts, t)
		} else {
			log.Warnf("GenerateEmbeddings called with empty text at index %d for OpenAI", i)
		}
	}

	results := make([][]float32, len(texts))
	for i := range results {
		results[i] = make([]float32, p.dim)
	}
	if len(validTexts) == 0 {
		return results, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: validTexts,
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error generating embeddings: %w", err)
	}
	if len(resp.Data) != len(validTexts) {
		return nil, fmt.Errorf("OpenAI API returned %d embeddings, expected %d", len(resp.Data), len(validTexts))
	}

	for i, data := range resp.Data {
		if len(data.Embedding) != p.dim {
			return nil, fmt.Errorf("OpenAI API returned unexpected embedding dimension: got %d, want %d", len(data.Embedding), p.dim)
		}
		results[originalIndices[i]] = data.Embedding
	}
	return results, nil
}
