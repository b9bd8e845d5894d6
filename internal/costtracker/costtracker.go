// Package costtracker is the request accounting core: it tracks
// in-flight API requests, prices completed ones, appends them to the
// cost log, and derives session and per-model statistics from the
// accumulated data.
package costtracker

import (
	"copilot/internal/models"
)

// EstimateTokens approximates the token count of text as one token per
// four bytes. It is a heuristic, not a tokenizer; pricing built on it
// is an estimate by construction.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Recorder receives every completed entry, e.g. to feed metrics.
// Implementations must not block.
type Recorder interface {
	Record(entry models.CostLogEntry)
}
