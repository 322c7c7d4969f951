package analytics

import (
	"math"
	"slices"

	"playbox/internal/core"
)

// MaxTopAdmins caps the leaderboard on the dashboard.
const MaxTopAdmins = 5

// AdminActivity aggregates the transactions handled by one operator.
type AdminActivity struct {
	Name   string `json:"name"`
	Count  int    `json:"count"`
	Amount int64  `json:"amount"`
}

// Statistics summarises a transaction list for the dashboard cards.
type Statistics struct {
	TotalAdd          int64           `json:"totalAdd"`
	TotalDeduct       int64           `json:"totalDeduct"`
	TotalNewUser      int             `json:"totalNewUser"`
	NetBalance        int64           `json:"netBalance"`
	TotalTransactions int             `json:"totalTransactions"`
	UniqueUsers       int             `json:"uniqueUsers"`
	AvgTransaction    float64         `json:"avgTransaction"`
	TopAdmins         []AdminActivity `json:"topAdmins"`
}

// ComputeStatistics aggregates txs in a single pass. A zero UserID counts as
// "no user" and is left out of UniqueUsers.
func ComputeStatistics(txs []core.Transaction) Statistics {
	var s Statistics
	users := make(map[int64]struct{})
	admins := make([]AdminActivity, 0)
	adminIdx := make(map[string]int)

	for _, tx := range txs {
		switch tx.Type {
		case core.TxAdd:
			s.TotalAdd += tx.Amount
		case core.TxDeduct:
			s.TotalDeduct += tx.Amount
		case core.TxNewUser:
			s.TotalNewUser++
		}
		if tx.UserID != 0 {
			users[tx.UserID] = struct{}{}
		}
		if tx.AdminName != "" {
			i, ok := adminIdx[tx.AdminName]
			if !ok {
				i = len(admins)
				adminIdx[tx.AdminName] = i
				admins = append(admins, AdminActivity{Name: tx.AdminName})
			}
			admins[i].Count++
			admins[i].Amount += tx.Amount
		}
	}

	s.TotalTransactions = len(txs)
	s.NetBalance = s.TotalAdd - s.TotalDeduct
	s.UniqueUsers = len(users)
	if s.TotalTransactions > 0 {
		s.AvgTransaction = float64(s.TotalAdd+s.TotalDeduct) / float64(s.TotalTransactions)
	}

	slices.SortStableFunc(admins, func(a, b AdminActivity) int { return b.Count - a.Count })
	if len(admins) > MaxTopAdmins {
		admins = admins[:MaxTopAdmins]
	}
	s.TopAdmins = admins
	return s
}

// ShareOfTotal is the rounded percentage part represents of all money moved.
func ShareOfTotal(part, totalAdd, totalDeduct int64) int {
	total := totalAdd + totalDeduct
	if total <= 0 || part <= 0 {
		return 0
	}
	return int(math.Floor(float64(part)*100/float64(total) + 0.5))
}
