package models

import (
	"time"
)

// RequestType classifies a tracked API request for cost accounting.
type RequestType string

const (
	RequestTypeCompletion RequestType = "completion"
	RequestTypeEmbedding  RequestType = "embedding"
)

// CostLogEntry is one immutable line of the append-only cost log.
// Field names match the JSONL wire format exactly.
type CostLogEntry struct {
	RequestID      string      `json:"request_id"`
	Timestamp      string      `json:"timestamp"`
	Model          string      `json:"model"`
	RequestType    RequestType `json:"request_type"`
	InputTokens    int         `json:"input_tokens"`
	OutputTokens   int         `json:"output_tokens"`
	TotalTokens    int         `json:"total_tokens"`
	InputCost      float64     `json:"input_cost"`
	OutputCost     float64     `json:"output_cost"`
	TotalCost      float64     `json:"total_cost"`
	LatencySeconds float64     `json:"latency_seconds"`
	Success        bool        `json:"success"`
	Error          string      `json:"error,omitempty"`
}

// Document is an ingested file tracked by the retrieval engine.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ChunkCount  int       `json:"chunk_count"`
	Summary     *string   `json:"summary,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// StoredChunk is one indexed span of document text. The embedding is
// persisted alongside the text so the in-memory index can be rebuilt
// at startup without re-embedding.
type StoredChunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// ChunkMatch is a scored index hit. Score is cosine similarity clamped
// to [0, 1], higher is better.
type ChunkMatch struct {
	ChunkID    string
	DocumentID string
	Seq        int
	Text       string
	Score      float64
}

// RetrievalResult is what the chat orchestrator consumes: chunk text,
// a [0, 1] relevance score, and open metadata (at minimum "filename").
// Results are ordered by descending score.
type RetrievalResult struct {
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

// Message is a single turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the POST /chat body. Stream defaults to true when
// omitted, matching the original API contract.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
	Stream   *bool     `json:"stream"`
}

// Streaming reports whether the caller asked for SSE delivery.
func (r ChatRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// LastUserMessage returns the content of the final message, which is
// the query the orchestrator answers. Empty when there are no messages.
func (r ChatRequest) LastUserMessage() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// History returns every message except the last one.
func (r ChatRequest) History() []Message {
	if len(r.Messages) == 0 {
		return nil
	}
	return r.Messages[:len(r.Messages)-1]
}

// ChatResponse is the non-streaming POST /chat body.
type ChatResponse struct {
	Response   string         `json:"response"`
	Sources    []string       `json:"sources"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
}

// StreamMetadata is the terminal metadata event of a successful SSE
// chat stream.
type StreamMetadata struct {
	Sources        []string `json:"sources"`
	Confidence     float64  `json:"confidence"`
	Model          string   `json:"model"`
	ProcessingTime string   `json:"processing_time"`
}
