// Package analytics is the aggregation and filter engine behind the owner
// dashboard. Every function is pure: inputs are never mutated and malformed
// values degrade to exclusion or zero instead of errors.
package analytics

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"playbox/internal/core"
)

const dateLayout = "2006-01-02"

// Criteria narrows a transaction list. Zero-valued fields do not constrain.
type Criteria struct {
	StartDate   string                `json:"startDate,omitempty"`
	EndDate     string                `json:"endDate,omitempty"`
	Type        *core.TransactionType `json:"type,omitempty"`
	UserID      *int64                `json:"userId,omitempty"`
	AdminName   string                `json:"adminName,omitempty"`
	SearchQuery string                `json:"searchQuery,omitempty"`
}

func (c Criteria) IsEmpty() bool {
	return c.StartDate == "" && c.EndDate == "" && c.Type == nil && c.UserID == nil &&
		c.AdminName == "" && strings.TrimSpace(c.SearchQuery) == ""
}

// ServerFilter returns the subset of criteria the backend filter endpoint can evaluate.
func (c Criteria) ServerFilter() core.TransactionFilter {
	return core.TransactionFilter{
		UserID:    c.UserID,
		AdminName: c.AdminName,
		StartDate: c.StartDate,
		EndDate:   c.EndDate,
	}
}

// FilterTransactions applies c in the process's local time zone.
func FilterTransactions(txs []core.Transaction, c Criteria) []core.Transaction {
	return FilterTransactionsIn(txs, c, time.Local)
}

// FilterTransactionsIn returns the transactions matching every criterion, in
// input order. Date bounds are inclusive whole days in loc.
func FilterTransactionsIn(txs []core.Transaction, c Criteria, loc *time.Location) []core.Transaction {
	if loc == nil {
		loc = time.Local
	}
	m := newMatcher(c, loc)
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if m.match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

type bound struct {
	set   bool
	valid bool
	at    time.Time
}

type matcher struct {
	c     Criteria
	loc   *time.Location
	start bound
	end   bound
	admin string
	query string
}

func newMatcher(c Criteria, loc *time.Location) matcher {
	m := matcher{
		c:     c,
		loc:   loc,
		admin: strings.ToLower(c.AdminName),
		query: strings.ToLower(strings.TrimSpace(c.SearchQuery)),
	}
	if c.StartDate != "" {
		m.start.set = true
		if d, err := time.ParseInLocation(dateLayout, c.StartDate, loc); err == nil {
			m.start.valid, m.start.at = true, d
		}
	}
	if c.EndDate != "" {
		m.end.set = true
		if d, err := time.ParseInLocation(dateLayout, c.EndDate, loc); err == nil {
			y, mo, day := d.Date()
			m.end.valid, m.end.at = true, time.Date(y, mo, day, 23, 59, 59, 999_000_000, loc)
		}
	}
	return m
}

func (m matcher) match(tx core.Transaction) bool {
	if m.start.set || m.end.set {
		if !m.inRange(tx) {
			return false
		}
	}
	if m.c.Type != nil && tx.Type != *m.c.Type {
		return false
	}
	if m.c.UserID != nil && tx.UserID != *m.c.UserID {
		return false
	}
	if m.admin != "" && !strings.Contains(strings.ToLower(tx.AdminName), m.admin) {
		return false
	}
	if m.query != "" && !matchesQuery(tx, m.query) {
		return false
	}
	return true
}

func (m matcher) inRange(tx core.Transaction) bool {
	if (m.start.set && !m.start.valid) || (m.end.set && !m.end.valid) {
		return false
	}
	ts, ok := tx.Time(m.loc)
	if !ok {
		return false
	}
	if m.start.set && ts.Before(m.start.at) {
		return false
	}
	if m.end.set && ts.After(m.end.at) {
		return false
	}
	return true
}

// matchesQuery expects q already lower-cased.
func matchesQuery(tx core.Transaction, q string) bool {
	return strings.Contains(strings.ToLower(tx.DisplayName()), q) ||
		strings.Contains(strings.ToLower(tx.AdminName), q) ||
		strings.Contains(strings.ToLower(tx.Description), q) ||
		strings.Contains(strconv.FormatInt(tx.ID, 10), q) ||
		strings.Contains(strconv.FormatInt(tx.UserID, 10), q)
}

// RecentTransactions returns up to limit transactions, newest first.
// Entries without a readable timestamp sort last in input order.
func RecentTransactions(txs []core.Transaction, limit int) []core.Transaction {
	type stamped struct {
		tx core.Transaction
		at time.Time
		ok bool
	}
	items := make([]stamped, len(txs))
	for i, tx := range txs {
		at, ok := tx.Time(time.Local)
		items[i] = stamped{tx: tx, at: at, ok: ok}
	}
	slices.SortStableFunc(items, func(a, b stamped) int {
		switch {
		case a.ok && !b.ok:
			return -1
		case !a.ok && b.ok:
			return 1
		case !a.ok && !b.ok:
			return 0
		}
		return b.at.Compare(a.at)
	})
	if limit <= 0 || limit > len(items) {
		limit = len(items)
	}
	out := make([]core.Transaction, limit)
	for i := range out {
		out[i] = items[i].tx
	}
	return out
}
