package sheets

import (
	"context"

	"playbox/internal/core"
)

// JournalExporter writes journal entries to an external spreadsheet.
type JournalExporter interface {
	AppendEntry(ctx context.Context, e core.JournalEntry) (rowRef string, err error)
}
