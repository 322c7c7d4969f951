package analytics

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"playbox/internal/core"
)

const (
	SortByName     SortKey = "NAME"
	SortByBalance  SortKey = "BALANCE"
	SortByRecharge SortKey = "RECHARGE"
	SortByVisits   SortKey = "VISITS"

	StatusAll      StatusFilter = "all"
	StatusActive   StatusFilter = "active"
	StatusInactive StatusFilter = "inactive"

	BalanceAll  BalanceBand = "ALL"
	BalanceLow  BalanceBand = "LOW"
	BalanceHigh BalanceBand = "HIGH"
)

type (
	SortKey      string
	StatusFilter string
	BalanceBand  string
)

// Thresholds bound the LOW and HIGH balance bands (exclusive).
type Thresholds struct {
	Low  int64
	High int64
}

var DefaultThresholds = Thresholds{Low: 500, High: 1000}

// ParseSortKey is case-insensitive; anything unknown maps to SortByName.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(strings.ToUpper(strings.TrimSpace(s))); k {
	case SortByBalance, SortByRecharge, SortByVisits:
		return k
	default:
		return SortByName
	}
}

func ParseStatusFilter(s string) StatusFilter {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case StatusActive, StatusInactive:
		return f
	default:
		return StatusAll
	}
}

func ParseBalanceBand(s string) BalanceBand {
	switch b := BalanceBand(strings.ToUpper(strings.TrimSpace(s))); b {
	case BalanceLow, BalanceHigh:
		return b
	default:
		return BalanceAll
	}
}

// SortUsers returns a sorted copy. Names ascend by collation order, the
// numeric keys descend. Equal keys keep their input order.
func SortUsers(users []core.User, key SortKey) []core.User {
	out := slices.Clone(users)
	switch key {
	case SortByBalance:
		slices.SortStableFunc(out, func(a, b core.User) int { return cmp.Compare(b.CurrentBalance, a.CurrentBalance) })
	case SortByRecharge:
		slices.SortStableFunc(out, func(a, b core.User) int { return cmp.Compare(b.TotalRecharge, a.TotalRecharge) })
	case SortByVisits:
		slices.SortStableFunc(out, func(a, b core.User) int { return cmp.Compare(b.TotalVisits, a.TotalVisits) })
	default:
		// collate.Collator is not safe for concurrent use
		col := collate.New(language.English)
		slices.SortStableFunc(out, func(a, b core.User) int { return col.CompareString(a.Name, b.Name) })
	}
	return out
}

// SearchUsers matches query against name, id, phone and email, ignoring case.
func SearchUsers(users []core.User, query string) []core.User {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]core.User, 0, len(users))
	for _, u := range users {
		if q == "" ||
			strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strconv.FormatInt(u.ID, 10), q) ||
			strings.Contains(strings.ToLower(u.Phone), q) ||
			strings.Contains(strings.ToLower(u.Email), q) {
			out = append(out, u)
		}
	}
	return out
}

func FilterUsersByStatus(users []core.User, status StatusFilter) []core.User {
	out := make([]core.User, 0, len(users))
	for _, u := range users {
		if status == StatusAll || status == "" || string(u.Status) == string(status) {
			out = append(out, u)
		}
	}
	return out
}

func FilterUsersByBalance(users []core.User, band BalanceBand, th Thresholds) []core.User {
	out := make([]core.User, 0, len(users))
	for _, u := range users {
		switch band {
		case BalanceLow:
			if u.CurrentBalance >= th.Low {
				continue
			}
		case BalanceHigh:
			if u.CurrentBalance <= th.High {
				continue
			}
		}
		out = append(out, u)
	}
	return out
}

// UserQuery combines the controls of the users list page.
type UserQuery struct {
	Search     string
	Status     StatusFilter
	Balance    BalanceBand
	Sort       SortKey
	Thresholds Thresholds
}

// QueryUsers applies search, status, balance band and ordering in that order.
func QueryUsers(users []core.User, q UserQuery) []core.User {
	th := q.Thresholds
	if th == (Thresholds{}) {
		th = DefaultThresholds
	}
	out := SearchUsers(users, q.Search)
	out = FilterUsersByStatus(out, q.Status)
	out = FilterUsersByBalance(out, q.Balance, th)
	return SortUsers(out, q.Sort)
}

// ComputeUserStats summarises users; NewUsersToday compares registration
// dates with now's calendar day in now's location.
func ComputeUserStats(users []core.User, now time.Time) core.UserStats {
	var s core.UserStats
	var balance int64
	y, m, d := now.Date()
	for _, u := range users {
		s.TotalUsers++
		if u.Status == core.UserActive {
			s.ActiveUsers++
		}
		s.TotalRecharge += u.TotalRecharge
		s.TotalDeduction += u.TotalDeduction
		balance += u.CurrentBalance
		if reg, ok := core.ParseTimestamp(u.RegistrationDate, now.Location()); ok {
			ry, rm, rd := reg.In(now.Location()).Date()
			if ry == y && rm == m && rd == d {
				s.NewUsersToday++
			}
		}
	}
	if s.TotalUsers > 0 {
		s.AvgBalance = float64(balance) / float64(s.TotalUsers)
	}
	return s
}
