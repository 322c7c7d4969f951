package google

import (
	"fmt"
	"strings"
	"time"

	"playbox/internal/core"
)

// Header is the column layout written by journalRow.
var Header = []string{"ID", "Date", "Time", "Kind", "Card UID", "User", "Amount", "Admin", "Description", "Balance After"}

func journalRow(e core.JournalEntry, loc *time.Location) []any {
	at := e.CreatedAt.In(loc)
	return []any{
		e.ID,
		at.Format("2006-01-02"),
		at.Format("15:04:05"),
		string(e.Kind),
		e.CardUID,
		e.UserName,
		e.Amount,
		e.AdminName,
		e.Description,
		e.BalanceAfter,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if len(base) >= 5 && base[4] == ' ' {
		var y int
		if _, err := fmt.Sscanf(base[:4], "%d", &y); err == nil {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}

// sheetRange quotes the tab name so spaces and apostrophes are safe.
func sheetRange(sheet, cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(sheet, "'", "''"), cells)
}
