// Package memory is an in-process JournalExporter for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"playbox/internal/core"
	"playbox/internal/sheets"
)

var _ sheets.JournalExporter = (*Exporter)(nil)

type Exporter struct {
	mu       sync.Mutex
	rows     []core.JournalEntry
	failIDs  map[int64]error
	attempts int
}

func New() *Exporter {
	return &Exporter{failIDs: make(map[int64]error)}
}

// FailOn makes the next appends of id return err until cleared with a nil err.
func (x *Exporter) FailOn(id int64, err error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err == nil {
		delete(x.failIDs, id)
		return
	}
	x.failIDs[id] = err
}

// AppendEntry stores the entry and returns a synthetic row reference.
func (x *Exporter) AppendEntry(_ context.Context, e core.JournalEntry) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.attempts++
	if err, ok := x.failIDs[e.ID]; ok {
		return "", err
	}
	x.rows = append(x.rows, e)
	return fmt.Sprintf("mem:%d", len(x.rows)), nil
}

func (x *Exporter) Rows() []core.JournalEntry {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.rows)
}

// Attempts counts every AppendEntry call, failed ones included.
func (x *Exporter) Attempts() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.attempts
}
