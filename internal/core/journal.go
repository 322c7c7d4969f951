package core

import "time"

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncDone    SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

// JournalEntry records one balance or registration operation performed at
// this front-end, independently of what the backend keeps.
type JournalEntry struct {
	ID           int64           `json:"id"`
	Kind         TransactionType `json:"kind"`
	CardUID      string          `json:"cardUid"`
	UserName     string          `json:"userName,omitempty"`
	Amount       int64           `json:"amount"`
	AdminName    string          `json:"adminName"`
	Description  string          `json:"description,omitempty"`
	BalanceAfter int64           `json:"balanceAfter"`
	CreatedAt    time.Time       `json:"createdAt"`
	SyncStatus   SyncStatus      `json:"syncStatus"`
	SyncAttempts int             `json:"syncAttempts,omitempty"`
	SyncError    string          `json:"syncError,omitempty"`
}
