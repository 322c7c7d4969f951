// Package ports declares what the services need from a PlayBox backend.
package ports

import (
	"context"

	"playbox/internal/core"
)

// Ports for outbound adapters.
type (
	CardScanner interface {
		ScanCard(ctx context.Context, cardUID string) (core.ScanResult, error)
	}

	UserWriter interface {
		CreateUser(ctx context.Context, u core.NewUser) (core.CardHolder, error)
	}

	BalanceWriter interface {
		AddBalance(ctx context.Context, cardUID string, amount int64, adminName string) (core.CardHolder, error)
		DeductBalance(ctx context.Context, cardUID string, amount int64, deductor, description string) (core.CardHolder, error)
	}

	UserReader interface {
		ListUsers(ctx context.Context) ([]core.User, error)
		FindByPhone(ctx context.Context, phone string) (core.CardHolder, error)
		UserDetails(ctx context.Context, id int64) (core.UserDetails, error)
		UserStats(ctx context.Context) (core.UserStats, error)
	}

	TransactionReader interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		// FilterTransactions evaluates the server-side subset of criteria.
		FilterTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
		RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
	}

	DashboardReader interface {
		TodayRevenue(ctx context.Context) (core.DailyRevenue, error)
	}

	// Backend is everything the front-end consumes.
	Backend interface {
		CardScanner
		UserWriter
		BalanceWriter
		UserReader
		TransactionReader
		DashboardReader
	}

	// Pinger is implemented by backends that can report their reachability.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
