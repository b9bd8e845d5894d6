package costtracker

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot/internal/models"
)

func newAdvisorFixture(t *testing.T, entries ...models.CostLogEntry) (*Advisor, *Ledger) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cost_logs.jsonl")
	writeEntries(t, path, entries...)
	ledger := NewLedger(DefaultPricingTable(), nil)
	return NewAdvisor(NewAnalyzer(ledger, path)), ledger
}

func TestAdvisorSuggestsSonnetForExpensiveOpus(t *testing.T) {
	advisor, _ := newAdvisorFixture(t,
		models.CostLogEntry{RequestID: "1", Model: "claude-opus-4", TotalCost: 0.02, Success: true},
		models.CostLogEntry{RequestID: "2", Model: "claude-opus-4", TotalCost: 0.02, Success: true},
	)

	report, err := advisor.Suggest()
	require.NoError(t, err)

	require.Len(t, report.Suggestions, 1)
	assert.Equal(t,
		"Consider using Sonnet instead of Opus for claude-opus-4. Current avg cost: $0.0200/request",
		report.Suggestions[0])

	saving, ok := report.PotentialSavings["claude-opus-4"]
	require.True(t, ok)
	assert.Equal(t, "claude-opus-4", saving.From)
	assert.Equal(t, "claude-sonnet-4", saving.To)
	assert.InDelta(t, 0.032, saving.EstimatedSavings, 1e-9)
	assert.Equal(t, 80, saving.Percentage)
}

func TestAdvisorCheapOpusStaysQuiet(t *testing.T) {
	advisor, _ := newAdvisorFixture(t,
		models.CostLogEntry{RequestID: "1", Model: "claude-opus-4", TotalCost: 0.005, Success: true},
	)

	report, err := advisor.Suggest()
	require.NoError(t, err)

	// No suggestion below the per-request threshold, but the savings
	// projection is still reported for the Opus model.
	assert.Equal(t, []string{"System is running efficiently"}, report.Suggestions)
	saving, ok := report.PotentialSavings["claude-opus-4"]
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4", saving.To)
	assert.InDelta(t, 0.004, saving.EstimatedSavings, 1e-9)
}

func TestAdvisorMatchesOpusCaseInsensitively(t *testing.T) {
	advisor, _ := newAdvisorFixture(t,
		models.CostLogEntry{RequestID: "1", Model: "Claude-Opus-4", TotalCost: 0.02, Success: true},
	)

	report, err := advisor.Suggest()
	require.NoError(t, err)

	require.Len(t, report.Suggestions, 1)
	saving, ok := report.PotentialSavings["Claude-Opus-4"]
	require.True(t, ok)
	assert.Equal(t, "Claude-Opus-4", saving.From)
	assert.InDelta(t, 0.016, saving.EstimatedSavings, 1e-9)
}

func TestAdvisorFlagsHighLatency(t *testing.T) {
	advisor, ledger := newAdvisorFixture(t,
		models.CostLogEntry{RequestID: "1", Model: "claude-sonnet-4", TotalCost: 0.001, Success: true},
	)
	ledger.stats = SessionStats{
		TotalRequests: 3,
		Latencies:     []float64{6, 7, 8},
	}

	report, err := advisor.Suggest()
	require.NoError(t, err)

	require.Len(t, report.Suggestions, 1)
	assert.Equal(t,
		"High average latency (7.0s). Consider: (1) reducing context size, (2) using streaming, (3) implementing caching",
		report.Suggestions[0])
}

func TestAdvisorFlagsHighErrorRate(t *testing.T) {
	advisor, ledger := newAdvisorFixture(t,
		models.CostLogEntry{RequestID: "1", Model: "claude-sonnet-4", TotalCost: 0.001, Success: true},
	)
	ledger.stats = SessionStats{
		TotalRequests: 10,
		Latencies:     []float64{0.1},
		ErrorCount:    1,
	}

	report, err := advisor.Suggest()
	require.NoError(t, err)

	require.Len(t, report.Suggestions, 1)
	assert.Equal(t, "Error rate is 10.0%. Investigate failures and add retry logic.", report.Suggestions[0])
}

func TestAdvisorNoLogs(t *testing.T) {
	ledger := NewLedger(DefaultPricingTable(), nil)
	advisor := NewAdvisor(NewAnalyzer(ledger, filepath.Join(t.TempDir(), "missing.jsonl")))

	report, err := advisor.Suggest()
	assert.Nil(t, report)
	assert.ErrorIs(t, err, models.ErrNoCostLogs)
}
