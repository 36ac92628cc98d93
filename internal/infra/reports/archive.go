// Package reports archives finished evaluation reports.
package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yanqian/interview-evaluator/internal/domain/evaluation"
)

// Key returns the object key of an interview's report.
func Key(interviewID int64) string {
	return fmt.Sprintf("reports/interview-%d.json", interviewID)
}

func encode(report evaluation.Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// MemoryArchive keeps encoded reports in memory.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryArchive constructs an empty archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

// Save stores the report, replacing any earlier copy.
func (a *MemoryArchive) Save(_ context.Context, report evaluation.Report) error {
	data, err := encode(report)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[Key(report.Interview.ID)] = data
	return nil
}

// Load returns the stored bytes for key.
func (a *MemoryArchive) Load(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	data, ok := a.objects[key]
	return append([]byte(nil), data...), ok
}

var _ evaluation.ReportArchive = (*MemoryArchive)(nil)
