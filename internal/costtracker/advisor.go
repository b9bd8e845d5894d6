package costtracker

import (
	"fmt"
	"sort"
	"strings"
)

// SavingsEstimate is a fixed-heuristic projection of what switching a
// high-cost model to its cheaper tier would save. It is an estimate,
// not a measurement.
type SavingsEstimate struct {
	From             string  `json:"from"`
	To               string  `json:"to"`
	EstimatedSavings float64 `json:"estimated_savings"`
	Percentage       int     `json:"percentage"`
}

// OptimizationReport combines the current cost analysis with
// rule-based suggestions.
type OptimizationReport struct {
	CurrentCosts     *CostAnalysis              `json:"current_costs"`
	Suggestions      []string                   `json:"suggestions"`
	PotentialSavings map[string]SavingsEstimate `json:"potential_savings"`
}

// Advisor applies a small set of independent heuristics over the
// analyzer's output. Every rule that matches contributes a suggestion;
// when none match, a single all-clear suggestion is returned.
type Advisor struct {
	analyzer *Analyzer
}

func NewAdvisor(analyzer *Analyzer) *Advisor {
	return &Advisor{analyzer: analyzer}
}

const (
	opusCostThreshold  = 0.01
	highLatencySeconds = 5.0
	highErrorRate      = 0.05
	savingsPercent     = 80
	efficientMessage   = "System is running efficiently"
)

// Suggest analyzes the persisted log and the session state. When the
// log is empty it returns models.ErrNoCostLogs, like Analyze.
func (a *Advisor) Suggest() (*OptimizationReport, error) {
	analysis, err := a.analyzer.Analyze("")
	if err != nil {
		return nil, err
	}

	report := &OptimizationReport{
		CurrentCosts:     analysis,
		PotentialSavings: make(map[string]SavingsEstimate),
	}

	// Map order is randomized; sort for stable output.
	modelNames := make([]string, 0, len(analysis.CostByModel))
	for model := range analysis.CostByModel {
		modelNames = append(modelNames, model)
	}
	sort.Strings(modelNames)

	for _, model := range modelNames {
		stats := analysis.CostByModel[model]
		if !strings.Contains(strings.ToLower(model), "opus") {
			continue
		}
		// The suggestion only fires once the model is actually
		// expensive per request; the savings projection is reported
		// for every Opus-tier model regardless.
		if stats.AvgCostPerRequest > opusCostThreshold {
			report.Suggestions = append(report.Suggestions, fmt.Sprintf(
				"Consider using Sonnet instead of Opus for %s. Current avg cost: $%.4f/request",
				model, stats.AvgCostPerRequest))
		}
		report.PotentialSavings[model] = SavingsEstimate{
			From:             model,
			To:               strings.ReplaceAll(model, "opus", "sonnet"),
			EstimatedSavings: roundTo(stats.TotalCost*float64(savingsPercent)/100, 4),
			Percentage:       savingsPercent,
		}
	}

	session := a.analyzer.SessionSnapshot()
	if session.AvgLatency > highLatencySeconds {
		report.Suggestions = append(report.Suggestions, fmt.Sprintf(
			"High average latency (%.1fs). Consider: (1) reducing context size, (2) using streaming, (3) implementing caching",
			session.AvgLatency))
	}
	if session.ErrorRate > highErrorRate {
		report.Suggestions = append(report.Suggestions, fmt.Sprintf(
			"Error rate is %.1f%%. Investigate failures and add retry logic.",
			session.ErrorRate*100))
	}

	if len(report.Suggestions) == 0 {
		report.Suggestions = []string{efficientMessage}
	}
	return report, nil
}
