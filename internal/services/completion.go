package services

import "context"

// CompletionChunk is one fragment of a streamed completion. Err is set
// on the final chunk when generation fails mid-stream.
type CompletionChunk struct {
	Text string
	Err  error
}

// CompletionService defines the interface for generating text
// completions. The model argument is the public model name from the
// request; providers map it onto their backend models and may ignore
// it when they serve a single model.
type CompletionService interface {
	Complete(ctx context.Context, prompt, model string) (string, error)

	// StreamCompletion returns a channel of fragments. The channel is
	// closed when generation finishes; producers stop sending when ctx
	// is cancelled.
	StreamCompletion(ctx context.Context, prompt, model string) (<-chan CompletionChunk, error)

	// Name returns the provider name (e.g. "mock", "openai", "gemini").
	Name() string
}
