package analytics

import (
	"fmt"
	"slices"
	"time"

	"playbox/internal/core"
)

// MaxLeaders is how many staff and users the daily revenue card ranks.
const MaxLeaders = 3

// ComputeDailyRevenue summarises the transactions falling on day's calendar
// date in day's location. Unreadable timestamps are skipped.
func ComputeDailyRevenue(txs []core.Transaction, day time.Time) core.DailyRevenue {
	loc := day.Location()
	y, m, d := day.Date()
	rev := core.DailyRevenue{Date: day.Format(dateLayout)}

	staff := newCounter()
	users := newCounter()
	for _, tx := range txs {
		ts, ok := tx.Time(loc)
		if !ok {
			continue
		}
		if ty, tm, td := ts.In(loc).Date(); ty != y || tm != m || td != d {
			continue
		}
		switch tx.Type {
		case core.TxAdd:
			rev.TotalDeposited += tx.Amount
		case core.TxDeduct:
			rev.TotalDeducted += tx.Amount
		}
		if tx.AdminName != "" {
			staff.add(tx.AdminName)
		}
		if name := userLabel(tx); name != "" {
			users.add(name)
		}
	}
	rev.NetCashflow = rev.TotalDeposited - rev.TotalDeducted
	rev.MostActiveStaff = staff.top(MaxLeaders)
	rev.MostActiveUsers = users.top(MaxLeaders)
	return rev
}

func userLabel(tx core.Transaction) string {
	if name := tx.DisplayName(); name != "" {
		return name
	}
	if tx.UserID != 0 {
		return fmt.Sprintf("User #%d", tx.UserID)
	}
	return ""
}

// counter tallies names preserving first-seen order for ties.
type counter struct {
	idx   map[string]int
	items []core.NameCount
}

func newCounter() *counter {
	return &counter{idx: make(map[string]int), items: make([]core.NameCount, 0)}
}

func (c *counter) add(name string) {
	i, ok := c.idx[name]
	if !ok {
		i = len(c.items)
		c.idx[name] = i
		c.items = append(c.items, core.NameCount{Name: name})
	}
	c.items[i].Count++
}

func (c *counter) top(n int) []core.NameCount {
	out := slices.Clone(c.items)
	if out == nil {
		out = []core.NameCount{}
	}
	slices.SortStableFunc(out, func(a, b core.NameCount) int { return b.Count - a.Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
