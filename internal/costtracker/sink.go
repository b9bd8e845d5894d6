package costtracker

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"copilot/internal/models"
)

// EntrySink persists completed cost log entries.
type EntrySink interface {
	Append(entry models.CostLogEntry) error
}

// JSONLSink appends entries to a line-delimited JSON file, one object
// per line. Writes are serialized by a mutex scoped to the sink so a
// slow append never blocks the ledger's in-memory bookkeeping.
type JSONLSink struct {
	mu   sync.Mutex
	path string
}

var _ EntrySink = (*JSONLSink)(nil)

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

func (s *JSONLSink) Append(entry models.CostLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cost log entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open cost log %q: %w", s.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append to cost log %q: %w", s.path, err)
	}
	return nil
}

// Path returns the file the sink appends to.
func (s *JSONLSink) Path() string {
	return s.path
}
