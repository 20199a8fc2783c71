package changelog

import (
	"context"
	"sync"

	"github.com/alimasry/coedit/edit"
)

// MemoryLog is an in-memory Log, used in tests and single-node
// development.
type MemoryLog struct {
	mu      sync.RWMutex
	entries map[string][]edit.Operation
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{entries: make(map[string][]edit.Operation)}
}

func (l *MemoryLog) Append(_ context.Context, docID string, op edit.Operation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[docID] = append(l.entries[docID], op)
	return nil
}

// Entries returns a copy of the operations recorded for a document.
func (l *MemoryLog) Entries(docID string) []edit.Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ops := make([]edit.Operation, len(l.entries[docID]))
	copy(ops, l.entries[docID])
	return ops
}
