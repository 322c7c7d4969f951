package analytics

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"playbox/internal/core"
)

var transactionHeader = []string{
	"ID", "Timestamp", "Type", "User ID", "User Name", "Amount",
	"Admin", "Description", "Previous Balance", "Balance After",
}

// WriteTransactionsCSV writes one row per transaction after a header row.
func WriteTransactionsCSV(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, tx := range txs {
		row := []string{
			strconv.FormatInt(tx.ID, 10),
			tx.Timestamp,
			string(tx.Type),
			strconv.FormatInt(tx.UserID, 10),
			tx.DisplayName(),
			strconv.FormatInt(tx.Amount, 10),
			tx.AdminName,
			tx.Description,
			optionalInt(tx.PreviousBalance),
			optionalInt(tx.BalanceAfter),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write transaction %d: %w", tx.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUserCSV exports a single user profile with a header row.
func WriteUserCSV(w io.Writer, u core.User) error {
	lastVisit := u.LastVisit
	if lastVisit == "" {
		lastVisit = "N/A"
	}
	cw := csv.NewWriter(w)
	rows := [][]string{
		{"User ID", "Name", "Total Recharge", "Total Deduction", "Balance", "Visits", "Last Visit"},
		{
			strconv.FormatInt(u.ID, 10),
			u.Name,
			strconv.FormatInt(u.TotalRecharge, 10),
			strconv.FormatInt(u.TotalDeduction, 10),
			strconv.FormatInt(u.CurrentBalance, 10),
			strconv.FormatInt(u.TotalVisits, 10),
			lastVisit,
		},
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write user %d: %w", u.ID, err)
	}
	return nil
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
