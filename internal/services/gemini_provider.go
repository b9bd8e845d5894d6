package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiProvider implements CompletionService using the Google Gemini API.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ CompletionService = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini completion provider.
func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY") // Fallback to env var
	}
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key not provided")
	}
	if model == "" {
		model = "gemini-1.5-flash"
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	log.Infof("Gemini completion provider initialized with model %s", model)
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

// resolveModel keeps the request's model when Gemini can serve it.
func (p *GeminiProvider) resolveModel(model string) string {
	if strings.HasPrefix(model, "gemini") {
		return model
	}
	return p.model
}

func (p *GeminiProvider) Complete(ctx context.Context, prompt, model string) (string, error) {
	gm := p.client.GenerativeModel(p.resolveModel(model))
	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return text, nil
}

func (p *GeminiProvider) StreamCompletion(ctx context.Context, prompt, model string) (<-chan CompletionChunk, error) {
	gm := p.client.GenerativeModel(p.resolveModel(model))
	iter := gm.GenerateContentStream(ctx, genai.Text(prompt))

	out := make(chan CompletionChunk)
	go func() {
		defer close(out)
		for {
			resp, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				select {
				case out <- CompletionChunk{Err: fmt.Errorf("gemini stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			text := responseText(resp)
			if text == "" {
				continue
			}
			select {
			case out <- CompletionChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close cleans up the Gemini client resources.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
