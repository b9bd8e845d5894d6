package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"copilot/internal/models"
)

const summarizePromptPrefix = "Summarize the following context concisely:\n\n"

// Retriever is the slice of the retrieval engine the orchestrator
// consumes: scored context for a query and the document names used to
// steer clarification.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error)
	DocumentNames(ctx context.Context) ([]string, error)
}

// RequestLedger is the cost-accounting surface the orchestrator needs.
// *costtracker.Ledger satisfies it.
type RequestLedger interface {
	Start(model, inputText string, requestType models.RequestType) string
	End(requestID, outputText string, success bool, errMsg string) *models.CostLogEntry
	Elapsed(requestID string) string
}

// StreamSink receives the ordered events of one streamed chat response.
// A write error means the client is gone.
type StreamSink interface {
	Content(text string) error
	Metadata(meta models.StreamMetadata) error
	Error(msg string) error
}

// ChatServiceDeps are the collaborators a ChatService orchestrates.
type ChatServiceDeps struct {
	Retriever  Retriever
	Completion CompletionService
	Prompts    *PromptBuilder
	Ledger     RequestLedger
}

// ChatServiceOptions are config-backed policy knobs. Zero values select
// the service defaults. ConfidenceThreshold is a pointer so an explicit
// 0.0, which disables the gate, stays distinct from unset.
type ChatServiceOptions struct {
	DefaultModel        string
	TopK                int
	ConfidenceThreshold *float64
	MaxContextChars     int
}

// ChatService runs a chat request through retrieve, confidence gate,
// context sizing, prompt build and generation, accounting every
// terminal outcome in the ledger exactly once.
type ChatService struct {
	retriever  Retriever
	completion CompletionService
	prompts    *PromptBuilder
	ledger     RequestLedger

	defaultModel        string
	topK                int
	confidenceThreshold float64
	maxContextChars     int
}

func NewChatService(deps ChatServiceDeps, opts ChatServiceOptions) (*ChatService, error) {
	if deps.Retriever == nil {
		return nil, fmt.Errorf("chat service requires a retriever")
	}
	if deps.Completion == nil {
		return nil, fmt.Errorf("chat service requires a completion provider")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("chat service requires a ledger")
	}
	if deps.Prompts == nil {
		deps.Prompts = NewPromptBuilder("")
	}
	if opts.DefaultModel == "" {
		opts.DefaultModel = "claude-sonnet-4"
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	threshold := 0.7
	if opts.ConfidenceThreshold != nil {
		threshold = *opts.ConfidenceThreshold
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 4000
	}
	return &ChatService{
		retriever:           deps.Retriever,
		completion:          deps.Completion,
		prompts:             deps.Prompts,
		ledger:              deps.Ledger,
		defaultModel:        opts.DefaultModel,
		topK:                opts.TopK,
		confidenceThreshold: threshold,
		maxContextChars:     opts.MaxContextChars,
	}, nil
}

func (s *ChatService) model(req models.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return s.defaultModel
}

// lowConfidence reports whether retrieval failed the gate: no results,
// or a top score strictly below the threshold.
func (s *ChatService) lowConfidence(results []models.RetrievalResult) bool {
	return len(results) == 0 || results[0].Score < s.confidenceThreshold
}

// joinContext glues retrieved texts the way the prompt expects them.
func joinContext(results []models.RetrievalResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}

func sourceNames(results []models.RetrievalResult) []string {
	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, r.Metadata["filename"])
	}
	return sources
}

// shrinkContext summarizes oversized context with one synchronous
// generation call. The call shares the parent request's accounting.
func (s *ChatService) shrinkContext(ctx context.Context, context, model string) (string, error) {
	summary, err := s.completion.Complete(ctx, summarizePromptPrefix+context, model)
	if err != nil {
		return "", fmt.Errorf("context summarization: %w", err)
	}
	return summary, nil
}

// --- Non-streaming ---

// Chat answers a request in one JSON response.
func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	query := req.LastUserMessage()
	if query == "" {
		return nil, fmt.Errorf("%w: messages cannot be empty", models.ErrValidation)
	}
	model := s.model(req)
	requestID := s.ledger.Start(model, query, models.RequestTypeCompletion)

	results, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		s.ledger.End(requestID, "", false, err.Error())
		return nil, fmt.Errorf("retrieval: %w", err)
	}

	if s.lowConfidence(results) {
		response := s.prompts.LowConfidenceResponse()
		s.ledger.End(requestID, response, true, "")
		return &models.ChatResponse{
			Response:   response,
			Sources:    []string{},
			Confidence: 0.0,
			Metadata:   map[string]any{"reason": "low_retrieval_confidence"},
		}, nil
	}

	context := joinContext(results)
	if len(context) > s.maxContextChars {
		context, err = s.shrinkContext(ctx, context, model)
		if err != nil {
			s.ledger.End(requestID, "", false, err.Error())
			return nil, err
		}
	}

	prompt := s.prompts.Build(s.prompts.SystemPrompt(), context, req.History(), query)
	answer, err := s.completion.Complete(ctx, prompt, model)
	if err != nil {
		s.ledger.End(requestID, "", false, err.Error())
		return nil, fmt.Errorf("generation: %w", err)
	}

	s.ledger.End(requestID, answer, true, "")
	return &models.ChatResponse{
		Response:   answer,
		Sources:    sourceNames(results),
		Confidence: results[0].Score,
		Metadata: map[string]any{
			"model":       model,
			"chunks_used": len(results),
		},
	}, nil
}

// --- Streaming ---

// ChatStream answers a request as an ordered event stream on sink:
// zero or more content events, then exactly one metadata event on the
// success path, or one terminal error event instead. Every path ends
// the ledger entry exactly once. A non-nil return means the request
// was rejected before any event was written; once events flow, all
// failures are delivered through the sink and ChatStream returns nil.
func (s *ChatService) ChatStream(ctx context.Context, req models.ChatRequest, sink StreamSink) error {
	query := req.LastUserMessage()
	if query == "" {
		return fmt.Errorf("%w: messages cannot be empty", models.ErrValidation)
	}
	model := s.model(req)
	requestID := s.ledger.Start(model, query, models.RequestTypeCompletion)

	results, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		s.failStream(requestID, sink, fmt.Errorf("retrieval: %w", err))
		return nil
	}

	if s.lowConfidence(results) {
		s.streamClarification(ctx, requestID, query, model, sink)
		return nil
	}

	context := joinContext(results)
	if len(context) > s.maxContextChars {
		context, err = s.shrinkContext(ctx, context, model)
		if err != nil {
			s.failStream(requestID, sink, err)
			return nil
		}
	}

	prompt := s.prompts.Build(s.prompts.SystemPrompt(), context, req.History(), query)
	chunks, err := s.completion.StreamCompletion(ctx, prompt, model)
	if err != nil {
		s.failStream(requestID, sink, fmt.Errorf("generation: %w", err))
		return nil
	}

	full, done := s.forward(ctx, requestID, chunks, sink)
	if done {
		return nil
	}

	meta := models.StreamMetadata{
		Sources:        sourceNames(results),
		Confidence:     results[0].Score,
		Model:          model,
		ProcessingTime: s.ledger.Elapsed(requestID),
	}
	if err := sink.Metadata(meta); err != nil {
		s.ledger.End(requestID, full, false, "client disconnected")
		return nil
	}

	s.ledger.End(requestID, full, true, "")
	return nil
}

// streamClarification handles the low-confidence branch of a streamed
// request: the clarification prompt is run through the generator and
// its answer streamed as content events, with no metadata event. The
// clarification itself is what gets accounted as output.
func (s *ChatService) streamClarification(ctx context.Context, requestID, query, model string, sink StreamSink) {
	docNames, err := s.retriever.DocumentNames(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not list documents for clarification prompt")
	}
	clarification := s.prompts.Clarification(query, docNames)

	chunks, err := s.completion.StreamCompletion(ctx, clarification, model)
	if err != nil {
		s.failStream(requestID, sink, fmt.Errorf("generation: %w", err))
		return
	}
	if _, done := s.forward(ctx, requestID, chunks, sink); done {
		return
	}

	s.ledger.End(requestID, clarification, true, "")
}

// forward drains chunks into the sink, accumulating the full text. It
// owns the two mid-stream terminal paths: a generation error (error
// event + failed entry) and a client disconnect (failed entry, nothing
// more to send). done reports that the request has already been
// finalized and the caller must stop.
func (s *ChatService) forward(ctx context.Context, requestID string, chunks <-chan CompletionChunk, sink StreamSink) (full string, done bool) {
	var acc strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			s.failStreamPartial(requestID, sink, chunk.Err, acc.String())
			return "", true
		}
		acc.WriteString(chunk.Text)
		if err := sink.Content(chunk.Text); err != nil {
			s.ledger.End(requestID, acc.String(), false, "client disconnected")
			return "", true
		}
	}
	if ctx.Err() != nil {
		// Producer stopped early because the client went away.
		s.ledger.End(requestID, acc.String(), false, "client disconnected")
		return "", true
	}
	return acc.String(), false
}

func (s *ChatService) failStream(requestID string, sink StreamSink, cause error) {
	s.failStreamPartial(requestID, sink, cause, "")
}

func (s *ChatService) failStreamPartial(requestID string, sink StreamSink, cause error, partial string) {
	if err := sink.Error(cause.Error()); err != nil {
		log.WithError(err).Debug("Could not deliver error event")
	}
	s.ledger.End(requestID, partial, false, cause.Error())
}
