package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TxAdd     TransactionType = "ADD"
	TxDeduct  TransactionType = "DEDUCT"
	TxNewUser TransactionType = "NEW_USER"

	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"

	ScanNewCard      ScanStatus = "NEW_CARD"
	ScanExistingUser ScanStatus = "EXISTING_USER"
)

type (
	TransactionType string
	UserStatus      string
	ScanStatus      string

	// Transaction is a balance movement as reported by the PlayBox backend.
	// Timestamp is kept verbatim; use Time to interpret it.
	Transaction struct {
		ID              int64           `json:"id"`
		UserID          int64           `json:"userId"`
		UserName        *string         `json:"userName"`
		Type            TransactionType `json:"type"`
		Amount          int64           `json:"amount"`
		Description     string          `json:"description,omitempty"`
		Timestamp       string          `json:"timestamp"`
		AdminName       string          `json:"adminName,omitempty"`
		PreviousBalance *int64          `json:"previousBalance,omitempty"`
		BalanceAfter    *int64          `json:"balanceAfter,omitempty"`
	}

	// User is the profile view used by the owner pages.
	User struct {
		ID               int64      `json:"id"`
		Name             string     `json:"name"`
		Phone            string     `json:"phone,omitempty"`
		Email            string     `json:"email,omitempty"`
		CardUID          string     `json:"cardUid,omitempty"`
		RegistrationDate string     `json:"registrationDate,omitempty"`
		LastVisit        string     `json:"lastVisit,omitempty"`
		TotalVisits      int64      `json:"totalVisits"`
		TotalRecharge    int64      `json:"totalRecharge"`
		TotalDeduction   int64      `json:"totalDeduction"`
		CurrentBalance   int64      `json:"currentBalance"`
		Status           UserStatus `json:"status"`
	}

	// CardHolder is the compact record returned by the POS endpoints.
	CardHolder struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email,omitempty"`
		CardUID string `json:"cardUid"`
		Balance int64  `json:"balance"`
	}

	ScanResult struct {
		Status  ScanStatus `json:"status"`
		Name    string     `json:"name,omitempty"`
		Balance *int64     `json:"balance,omitempty"`
	}

	NewUser struct {
		CardUID string `json:"cardUid"`
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Email   string `json:"email,omitempty"`
	}

	// TransactionFilter holds the criteria the backend filter endpoint understands.
	TransactionFilter struct {
		UserID    *int64
		AdminName string
		StartDate string
		EndDate   string
	}
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrAmountBelowMinimum  = errors.New("amount below minimum")
	ErrEmptyCardUID        = errors.New("empty card uid")
	ErrEmptyName           = errors.New("empty name")
	ErrEmptyPhone          = errors.New("empty phone")
	ErrEmptyDeductor       = errors.New("empty deductor name")
	ErrEmptyDescription    = errors.New("empty description")
	ErrNotFound            = errors.New("not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrCardAlreadyLinked   = errors.New("card already linked to a user")
	ErrBackendUnavailable  = errors.New("backend unavailable")
)

// timestampLayouts lists the formats the backend has been seen to emit.
// Zone-less layouts are read in the caller's location.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

// Time parses the transaction timestamp. ok is false when it is missing or malformed.
func (t Transaction) Time(loc *time.Location) (time.Time, bool) {
	return ParseTimestamp(t.Timestamp, loc)
}

// DisplayName returns the user name or an empty string for anonymous entries.
func (t Transaction) DisplayName() string {
	if t.UserName == nil {
		return ""
	}
	return *t.UserName
}

// ParseTimestamp accepts RFC 3339 instants and the zone-less ISO forms the
// backend produces for local times.
func ParseTimestamp(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, true
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, true
		}
	}
	if ts, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

func (t TransactionType) IsValid() bool {
	switch t {
	case TxAdd, TxDeduct, TxNewUser:
		return true
	default:
		return false
	}
}

// ParseTransactionType is case-insensitive; ok is false for unknown types.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.IsValid()
}

func (s UserStatus) IsValid() bool {
	return s == UserActive || s == UserInactive
}

func (f TransactionFilter) IsEmpty() bool {
	return f.UserID == nil && f.AdminName == "" && f.StartDate == "" && f.EndDate == ""
}

func (n NewUser) Validate() error {
	if strings.TrimSpace(n.CardUID) == "" {
		return ErrEmptyCardUID
	}
	if strings.TrimSpace(n.Name) == "" {
		return ErrEmptyName
	}
	if len(n.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if strings.TrimSpace(n.Phone) == "" {
		return ErrEmptyPhone
	}
	return nil
}
