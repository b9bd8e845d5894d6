package costtracker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	log "github.com/sirupsen/logrus"

	"copilot/internal/models"
)

// SessionSnapshot is the derived view of the current session's
// aggregates.
type SessionSnapshot struct {
	TotalRequests      int     `json:"total_requests"`
	SuccessfulRequests int     `json:"successful_requests"`
	FailedRequests     int     `json:"failed_requests"`
	TotalCost          float64 `json:"total_cost"`
	TotalTokens        int     `json:"total_tokens"`
	AvgLatency         float64 `json:"avg_latency"`
	MinLatency         float64 `json:"min_latency"`
	MaxLatency         float64 `json:"max_latency"`
	P95Latency         float64 `json:"p95_latency"`
	ErrorRate          float64 `json:"error_rate"`
}

// ModelCostSummary aggregates the persisted log for one model.
type ModelCostSummary struct {
	Requests          int     `json:"requests"`
	TotalCost         float64 `json:"total_cost"`
	AvgCostPerRequest float64 `json:"avg_cost_per_request"`
	TotalTokens       int     `json:"total_tokens"`
	AvgLatency        float64 `json:"avg_latency"`
}

// CostAnalysis is the result of reading the full persisted log.
type CostAnalysis struct {
	TotalRequests int                         `json:"total_requests"`
	TotalCost     float64                     `json:"total_cost"`
	CostByModel   map[string]ModelCostSummary `json:"cost_by_model"`
}

// Analyzer derives statistics from the ledger's session state and from
// the persisted cost log. It is a read-only consumer; it never mutates
// ledger state.
type Analyzer struct {
	ledger  *Ledger
	logPath string
}

func NewAnalyzer(ledger *Ledger, logPath string) *Analyzer {
	return &Analyzer{ledger: ledger, logPath: logPath}
}

// SessionSnapshot computes latency and error statistics over the
// current session. All fields are zero when no request has completed;
// the error rate divides by max(total, 1) so it is defined from the
// first moment.
func (a *Analyzer) SessionSnapshot() SessionSnapshot {
	stats := a.ledger.Stats()

	snap := SessionSnapshot{
		TotalRequests:      stats.TotalRequests,
		SuccessfulRequests: stats.TotalRequests - stats.ErrorCount,
		FailedRequests:     stats.ErrorCount,
		TotalCost:          roundTo(stats.TotalCost, 4),
		TotalTokens:        stats.TotalTokens,
	}

	total := stats.TotalRequests
	if total < 1 {
		total = 1
	}
	snap.ErrorRate = roundTo(float64(stats.ErrorCount)/float64(total), 4)

	if len(stats.Latencies) == 0 {
		return snap
	}

	sorted := append([]float64(nil), stats.Latencies...)
	sort.Float64s(sorted)

	var sum float64
	for _, l := range sorted {
		sum += l
	}
	snap.AvgLatency = roundTo(sum/float64(len(sorted)), 3)
	snap.MinLatency = roundTo(sorted[0], 3)
	snap.MaxLatency = roundTo(sorted[len(sorted)-1], 3)
	snap.P95Latency = roundTo(percentile(sorted, 0.95), 3)
	return snap
}

// Analyze reads the whole persisted log and aggregates it per model.
// A missing or empty log yields models.ErrNoCostLogs, a reported
// condition rather than a fault. The window parameter is accepted for
// forward compatibility but not applied yet; passing one logs a
// warning instead of silently filtering wrong.
func (a *Analyzer) Analyze(window string) (*CostAnalysis, error) {
	if window != "" {
		log.WithField("window", window).Warn("time-window filtering is not implemented; analyzing the full log")
	}

	entries, err := a.readEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.ErrNoCostLogs
	}

	analysis := &CostAnalysis{CostByModel: make(map[string]ModelCostSummary)}
	latencySums := make(map[string]float64)

	for _, e := range entries {
		analysis.TotalRequests++
		analysis.TotalCost += e.TotalCost

		s := analysis.CostByModel[e.Model]
		s.Requests++
		s.TotalCost += e.TotalCost
		s.TotalTokens += e.TotalTokens
		latencySums[e.Model] += e.LatencySeconds
		analysis.CostByModel[e.Model] = s
	}

	analysis.TotalCost = roundTo(analysis.TotalCost, 4)
	for model, s := range analysis.CostByModel {
		s.AvgCostPerRequest = roundTo(s.TotalCost/float64(s.Requests), 6)
		s.AvgLatency = roundTo(latencySums[model]/float64(s.Requests), 3)
		s.TotalCost = roundTo(s.TotalCost, 4)
		analysis.CostByModel[model] = s
	}
	return analysis, nil
}

// RecentEntries returns persisted entries newest first, for paging
// through the log from the CLI.
func (a *Analyzer) RecentEntries(limit, offset int) ([]models.CostLogEntry, error) {
	entries, err := a.readEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, models.ErrNoCostLogs
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (a *Analyzer) readEntries() ([]models.CostLogEntry, error) {
	f, err := os.Open(a.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, models.ErrNoCostLogs
		}
		return nil, fmt.Errorf("failed to open cost log %q: %w", a.logPath, err)
	}
	defer f.Close()

	var entries []models.CostLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e models.CostLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			log.WithError(err).Debug("skipping malformed cost log line")
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cost log %q: %w", a.logPath, err)
	}
	return entries, nil
}

// percentile selects by nearest rank from an ascending-sorted slice:
// index = floor(n * p), clamped to the last element. Not interpolated.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(v*factor) / factor
}
