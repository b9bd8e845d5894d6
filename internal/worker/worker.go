// Package worker holds the asynq task handlers for background jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"copilot/internal/models"
	"copilot/internal/services"
	"copilot/internal/store"
	"copilot/internal/tasks"
)

const summarizePromptPrefix = "Summarize the following document concisely:\n\n"

// maxSummaryInputRunes caps how much document text goes into one
// summary prompt.
const maxSummaryInputRunes = 12000

// SummarizeDeps are the collaborators of the document summary handler.
type SummarizeDeps struct {
	Store      store.DocumentStore
	Completion services.CompletionService
	Ledger     services.RequestLedger
	Model      string
}

// RegisterHandlers attaches every task handler to mux.
func RegisterHandlers(mux *asynq.ServeMux, deps SummarizeDeps) {
	mux.HandleFunc(tasks.TypeSummarizeDocument, HandleSummarizeDocument(deps))
}

// HandleSummarizeDocument returns the handler for summarize:document
// tasks: it loads the document's chunk text, asks the completion
// provider for a concise summary, accounts the call in the ledger and
// stores the result on the document.
//
// A document deleted between enqueue and execution is not an error;
// the task completes without effect. A malformed payload is dropped
// via asynq.SkipRetry since retrying cannot fix it.
func HandleSummarizeDocument(deps SummarizeDeps) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		payload, err := tasks.ParseSummarizePayload(task.Payload())
		if err != nil {
			return fmt.Errorf("invalid summarize payload: %v: %w", err, asynq.SkipRetry)
		}

		doc, err := deps.Store.GetDocument(ctx, payload.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.WithField("document_id", payload.DocumentID).Info("document deleted before summarization ran")
				return nil
			}
			return fmt.Errorf("failed to load document %s: %w", payload.DocumentID, err)
		}

		chunks, err := deps.Store.GetChunksByDocument(ctx, doc.ID)
		if err != nil {
			return fmt.Errorf("failed to load chunks for document %s: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			log.WithField("document_id", doc.ID).Warn("document has no chunks to summarize")
			return nil
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		prompt := summarizePromptPrefix + truncateRunes(strings.Join(texts, "\n\n"), maxSummaryInputRunes)

		requestID := deps.Ledger.Start(deps.Model, prompt, models.RequestTypeCompletion)
		summary, err := deps.Completion.Complete(ctx, prompt, deps.Model)
		if err != nil {
			deps.Ledger.End(requestID, "", false, err.Error())
			return fmt.Errorf("failed to generate summary for document %s: %w", doc.ID, err)
		}
		deps.Ledger.End(requestID, summary, true, "")

		if err := deps.Store.UpdateDocumentSummary(ctx, doc.ID, summary); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				log.WithField("document_id", doc.ID).Info("document deleted while summarization ran")
				return nil
			}
			return fmt.Errorf("failed to store summary for document %s: %w", doc.ID, err)
		}

		log.WithFields(log.Fields{
			"document_id": doc.ID,
			"filename":    doc.Filename,
			"summary_len": len(summary),
		}).Info("document summarized")
		return nil
	}
}

func truncateRunes(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}
