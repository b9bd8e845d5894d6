package tasks

// Defines constants and payloads for task types used in Asynq.

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TypeSummarizeDocument is the task type for generating document summaries.
	TypeSummarizeDocument = "summarize:document"
)

// SummarizePayload identifies the document a summarize task operates on.
type SummarizePayload struct {
	DocumentID string `json:"document_id"`
}

// NewSummarizeTask builds an asynq task that summarizes one document.
func NewSummarizeTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(SummarizePayload{DocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("marshal summarize payload: %w", err)
	}
	return asynq.NewTask(TypeSummarizeDocument, payload), nil
}

// ParseSummarizePayload decodes a summarize task payload.
func ParseSummarizePayload(data []byte) (SummarizePayload, error) {
	var p SummarizePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("unmarshal summarize payload: %w", err)
	}
	if p.DocumentID == "" {
		return p, fmt.Errorf("summarize payload missing document_id")
	}
	return p, nil
}
