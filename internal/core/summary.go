package core

import (
	"errors"
	"strings"
)

const (
	RoleStaff Role = "staff"
	RoleOwner Role = "owner"
)

type Role string

// Admin identifies the operator behind a session.
type Admin struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (a Admin) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return errors.New("admin username is required")
	}
	if a.Role != RoleStaff && a.Role != RoleOwner {
		return errors.New("admin role must be staff or owner")
	}
	return nil
}

func (a Admin) IsOwner() bool { return a.Role == RoleOwner }

// NameCount is a ranked entry in an activity leaderboard.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DailyRevenue summarises one local calendar day of cash movement.
type DailyRevenue struct {
	Date            string      `json:"date"`
	TotalDeposited  int64       `json:"totalDeposited"`
	TotalDeducted   int64       `json:"totalDeducted"`
	NetCashflow     int64       `json:"netCashflow"`
	MostActiveStaff []NameCount `json:"mostActiveStaff"`
	MostActiveUsers []NameCount `json:"mostActiveUsers"`
}

// UserStats is the population summary shown above the users list.
type UserStats struct {
	TotalUsers     int     `json:"totalUsers"`
	ActiveUsers    int     `json:"activeUsers"`
	TotalRecharge  int64   `json:"totalRecharge"`
	TotalDeduction int64   `json:"totalDeduction"`
	AvgBalance     float64 `json:"avgBalance"`
	NewUsersToday  int     `json:"newUsersToday"`
}

// UserDetails is a user profile together with its transaction history.
type UserDetails struct {
	User         User          `json:"user"`
	Transactions []Transaction `json:"transactions"`
}

const (
	BannerInfo    BannerType = "info"
	BannerSuccess BannerType = "success"
	BannerWarning BannerType = "warning"
	BannerError   BannerType = "error"
)

type BannerType string

// Banner is the one-line status message shown to the operator after an action.
type Banner struct {
	Text string     `json:"text"`
	Type BannerType `json:"type"`
}

func Info(text string) Banner    { return Banner{Text: text, Type: BannerInfo} }
func Success(text string) Banner { return Banner{Text: text, Type: BannerSuccess} }
func Warning(text string) Banner { return Banner{Text: text, Type: BannerWarning} }
func Failure(text string) Banner { return Banner{Text: text, Type: BannerError} }
