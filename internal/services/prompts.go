package services

import (
	"fmt"
	"strings"

	"copilot/internal/models"
)

// PromptBuilderVersion tags the prompt template generation so answer
// regressions can be correlated with template changes.
const PromptBuilderVersion = "v1.2.0"

const defaultSystemPrompt = "You are Knowledge Copilot, an assistant that answers questions using the provided documentation context. Ground every answer in the context and say so when the context does not contain the answer."

// lowConfidenceText is the canned non-streaming reply when retrieval
// confidence is too low to attempt an answer.
const lowConfidenceText = "I don't have enough context to answer that confidently. Could you provide more details or rephrase your question?"

// PromptBuilder assembles the prompts sent to completion providers.
type PromptBuilder struct {
	version      string
	systemPrompt string
}

// NewPromptBuilder builds a prompt builder. An empty systemPrompt
// selects the built-in default.
func NewPromptBuilder(systemPrompt string) *PromptBuilder {
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &PromptBuilder{version: PromptBuilderVersion, systemPrompt: systemPrompt}
}

func (b *PromptBuilder) Version() string { return b.version }

func (b *PromptBuilder) SystemPrompt() string { return b.systemPrompt }

// LowConfidenceResponse is the direct reply for non-streaming requests
// that fail the retrieval confidence gate.
func (b *PromptBuilder) LowConfidenceResponse() string { return lowConfidenceText }

// Build assembles the final generation prompt from the system prompt,
// retrieved context, prior conversation turns and the current query.
func (b *PromptBuilder) Build(system, context string, history []models.Message, query string) string {
	var sb strings.Builder
	sb.WriteString(system)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(context)
	if len(history) > 0 {
		sb.WriteString("\n\nConversation so far:\n")
		for _, m := range history {
			sb.WriteString(m.Role)
			sb.WriteString(": ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n\nUser: ")
	sb.WriteString(query)
	sb.WriteString("\nAssistant:")
	return sb.String()
}

// Clarification builds the prompt streamed through the generator when
// retrieval confidence is too low: it carries the canned explanation,
// the query, and which documents exist so the model can steer the user.
func (b *PromptBuilder) Clarification(query string, docNames []string) string {
	available := "none"
	if len(docNames) > 0 {
		available = strings.Join(docNames, ", ")
	}
	return fmt.Sprintf("%s\n\nThe user asked: %q\nAvailable documents: %s\nAsk one clarifying question that would help narrow down what the user needs.",
		lowConfidenceText, query, available)
}
