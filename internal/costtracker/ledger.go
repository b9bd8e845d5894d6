package costtracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"copilot/internal/models"
)

// previewLimit bounds how much of the input text is kept with a
// pending request.
const previewLimit = 200

type pendingRequest struct {
	id           string
	model        string
	requestType  models.RequestType
	inputTokens  int
	startTime    time.Time
	inputPreview string
}

// SessionStats are process-lifetime aggregates, mutated only by
// Ledger.End and reset only by process restart.
type SessionStats struct {
	TotalRequests int
	TotalCost     float64
	TotalTokens   int
	Latencies     []float64
	ErrorCount    int
}

// Ledger tracks in-flight requests and turns each completed one into a
// CostLogEntry. It is safe for concurrent use: one mutex guards the
// pending map and the session aggregates as a unit, and the sink
// serializes its own writes.
//
// A request that is started but never ended stays pending for the life
// of the process; there is no eviction. End on an unknown or
// already-ended id is a deliberate no-op.
type Ledger struct {
	mu       sync.Mutex
	pending  map[string]pendingRequest
	stats    SessionStats
	pricing  PricingTable
	sink     EntrySink
	recorder Recorder
}

func NewLedger(pricing PricingTable, sink EntrySink) *Ledger {
	return &Ledger{
		pending: make(map[string]pendingRequest),
		pricing: pricing,
		sink:    sink,
	}
}

// AttachRecorder registers a metrics recorder for completed entries.
// Call during wiring, before the ledger sees traffic.
func (l *Ledger) AttachRecorder(r Recorder) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recorder = r
}

// Start registers a new in-flight request and returns its id.
func (l *Ledger) Start(model, inputText string, requestType models.RequestType) string {
	p := pendingRequest{
		id:           uuid.NewString(),
		model:        model,
		requestType:  requestType,
		inputTokens:  EstimateTokens(inputText),
		startTime:    time.Now(),
		inputPreview: preview(inputText, previewLimit),
	}

	l.mu.Lock()
	l.pending[p.id] = p
	l.mu.Unlock()

	return p.id
}

// End completes the request: computes latency and cost, folds the
// result into the session aggregates, appends it to the sink, and
// returns the entry. Unknown ids return nil without touching any
// state. Sink failures are logged and swallowed; the in-memory
// accounting has already happened and the entry is still returned.
func (l *Ledger) End(requestID, outputText string, success bool, errMsg string) *models.CostLogEntry {
	now := time.Now()

	l.mu.Lock()
	p, ok := l.pending[requestID]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	delete(l.pending, requestID)

	latency := roundTo(now.Sub(p.startTime).Seconds(), 3)
	outputTokens := EstimateTokens(outputText)
	totalTokens := p.inputTokens + outputTokens

	rates := l.pricing.Lookup(p.model)
	inputCost := float64(p.inputTokens) / 1000 * rates.Input
	outputCost := float64(outputTokens) / 1000 * rates.Output

	entry := &models.CostLogEntry{
		RequestID:      p.id,
		Timestamp:      now.UTC().Format(time.RFC3339),
		Model:          p.model,
		RequestType:    p.requestType,
		InputTokens:    p.inputTokens,
		OutputTokens:   outputTokens,
		TotalTokens:    totalTokens,
		InputCost:      roundTo(inputCost, 6),
		OutputCost:     roundTo(outputCost, 6),
		TotalCost:      roundTo(inputCost+outputCost, 6),
		LatencySeconds: latency,
		Success:        success,
		Error:          errMsg,
	}

	l.stats.TotalRequests++
	l.stats.TotalCost += inputCost + outputCost
	l.stats.TotalTokens += totalTokens
	l.stats.Latencies = append(l.stats.Latencies, latency)
	if !success {
		l.stats.ErrorCount++
	}
	recorder := l.recorder
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Append(*entry); err != nil {
			log.WithError(err).WithField("request_id", requestID).Warn("failed to persist cost log entry")
		}
	}
	if recorder != nil {
		recorder.Record(*entry)
	}
	return entry
}

// Elapsed reports how long a request has been in flight, formatted to
// one decimal, e.g. "1.2s". Unknown ids report "0.0s".
func (l *Ledger) Elapsed(requestID string) string {
	l.mu.Lock()
	p, ok := l.pending[requestID]
	l.mu.Unlock()

	if !ok {
		return "0.0s"
	}
	return fmt.Sprintf("%.1fs", time.Since(p.startTime).Seconds())
}

// Stats returns a copy of the session aggregates.
func (l *Ledger) Stats() SessionStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.stats
	out.Latencies = append([]float64(nil), l.stats.Latencies...)
	return out
}

// Pending reports how many requests are currently in flight.
func (l *Ledger) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

func preview(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}
