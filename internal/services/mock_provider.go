package services

import (
	"context"
	"time"
)

const (
	mockSyncPrefix   = "Response based on: "
	mockStreamPrefix = "Based on the provided documentation, here's what I found: "

	defaultStreamDelay = 10 * time.Millisecond
)

// MockProvider is the key-less default completion provider. Responses
// echo a prefix of the prompt so the whole pipeline works end to end
// without an external API.
type MockProvider struct {
	// StreamDelay is the pause between streamed characters. Tests
	// shorten it; zero means no pause.
	StreamDelay time.Duration
}

var _ CompletionService = (*MockProvider)(nil)

func NewMockProvider() *MockProvider {
	return &MockProvider{StreamDelay: defaultStreamDelay}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Complete(ctx context.Context, prompt, model string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return mockSyncPrefix + firstRunes(prompt, 200) + "...", nil
}

// StreamCompletion emits the canned answer character by character to
// exercise real streaming consumers.
func (p *MockProvider) StreamCompletion(ctx context.Context, prompt, model string) (<-chan CompletionChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	response := mockStreamPrefix + firstRunes(prompt, 100) + "..."

	out := make(chan CompletionChunk)
	go func() {
		defer close(out)
		for _, r := range response {
			select {
			case out <- CompletionChunk{Text: string(r)}:
			case <-ctx.Done():
				return
			}
			if p.StreamDelay > 0 {
				time.Sleep(p.StreamDelay)
			}
		}
	}()
	return out, nil
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
