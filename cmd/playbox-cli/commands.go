package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"playbox/internal/analytics"
	"playbox/internal/cli"
	"playbox/internal/config"
	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/ports"
	"playbox/internal/session"
)

// openBackend is swapped in tests.
type openBackend func(ctx context.Context, backendType, url string) (ports.Backend, error)

type rootOptions struct {
	backend string
	url     string
	admin   string
	timeout time.Duration
}

func newRootCmd(open openBackend) *cobra.Command {
	opts := &rootOptions{}
	if open == nil {
		open = defaultBackend
	}

	root := &cobra.Command{
		Use:   "playbox-cli",
		Short: "Operate PlayBox cards and inspect transactions from the terminal",
		Long: `playbox-cli talks to the PlayBox backend directly. It scans cards,
tops up and charges balances, and prints user lists and transaction statistics.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.backend, "backend", envOr("DATA_BACKEND", config.BackendREST), "backend type (rest or memory)")
	root.PersistentFlags().StringVar(&opts.url, "url", envOr("PLAYBOX_API_URL", "http://localhost:8080"), "PlayBox API base URL")
	root.PersistentFlags().StringVar(&opts.admin, "operator", envOr("USER", "cli"), "operator name recorded on balance changes")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "overall command timeout")

	run := func(fn func(ctx context.Context, b ports.Backend, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			b, err := open(ctx, opts.backend, opts.url)
			if err != nil {
				return err
			}
			return fn(ctx, b, cmd, args)
		}
	}

	root.AddCommand(
		newScanCmd(run),
		newAddCmd(run, opts),
		newDeductCmd(run, opts),
		newUsersCmd(run),
		newStatsCmd(run),
		newHashPasswordCmd(),
	)
	return root
}

type runner func(fn func(ctx context.Context, b ports.Backend, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newScanCmd(run runner) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <card-uid>",
		Short: "Look up a card",
		Args:  cobra.ExactArgs(1),
		RunE: run(func(ctx context.Context, b ports.Backend, cmd *cobra.Command, args []string) error {
			res, err := b.ScanCard(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Status == core.ScanNewCard {
				fmt.Fprintln(out, "New card: not linked to any user")
				return nil
			}
			var balance int64
			if res.Balance != nil {
				balance = *res.Balance
			}
			fmt.Fprintf(out, "%s\tbalance %s\n", res.Name, core.FormatRupees(balance))
			return nil
		}),
	}
}

func newAddCmd(run runner, opts *rootOptions) *cobra.Command {
	var minimum int64
	cmd := &cobra.Command{
		Use:   "add <card-uid> <amount>",
		Short: "Top up a card",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, b ports.Backend, cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			if err := core.ValidateTopUp(amount, minimum); err != nil {
				return fmt.Errorf("minimum amount is %s: %w", core.FormatRupees(minimum), err)
			}
			h, err := b.AddBalance(ctx, strings.TrimSpace(args[0]), amount, opts.admin)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s. New balance %s\n",
				core.FormatRupees(amount), h.Name, core.FormatRupees(h.Balance))
			return nil
		}),
	}
	cmd.Flags().Int64Var(&minimum, "min", 500, "minimum top-up amount")
	return cmd
}

func newDeductCmd(run runner, opts *rootOptions) *cobra.Command {
	var by, desc string
	cmd := &cobra.Command{
		Use:   "deduct <card-uid> <amount>",
		Short: "Charge a card",
		Args:  cobra.ExactArgs(2),
		RunE: run(func(ctx context.Context, b ports.Backend, cmd *cobra.Command, args []string) error {
			amount, err := core.ParseAmount(args[1])
			if err != nil {
				return err
			}
			deductor := strings.TrimSpace(by)
			if deductor == "" {
				deductor = opts.admin
			}
			if err := core.ValidateDeduction(amount, deductor, desc); err != nil {
				return err
			}
			h, err := b.DeductBalance(ctx, strings.TrimSpace(args[0]), amount, deductor, strings.TrimSpace(desc))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deducted %s from %s. Remaining balance %s\n",
				core.FormatRupees(amount), h.Name, core.FormatRupees(h.Balance))
			return nil
		}),
	}
	cmd.Flags().StringVar(&by, "by", "", "staff member charging the card (defaults to --operator)")
	cmd.Flags().StringVar(&desc, "desc", "", "what the charge is for")
	_ = cmd.MarkFlagRequired("desc")
	return cmd
}

func newUsersCmd(run runner) *cobra.Command {
	var sortKey, query, status, balance string
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, b ports.Backend, cmd *cobra.Command, _ []string) error {
			users, err := b.ListUsers(ctx)
			if err != nil {
				return err
			}
			users = analytics.QueryUsers(users, analytics.UserQuery{
				Search:  query,
				Status:  analytics.ParseStatusFilter(status),
				Balance: analytics.ParseBalanceBand(balance),
				Sort:    analytics.ParseSortKey(sortKey),
			})
			return printUsers(cmd.OutOrStdout(), users)
		}),
	}
	cmd.Flags().StringVar(&sortKey, "sort", "name", "name, balance, recharge or visits")
	cmd.Flags().StringVar(&query, "q", "", "search name, id, phone or email")
	cmd.Flags().StringVar(&status, "status", "all", "all, active or inactive")
	cmd.Flags().StringVar(&balance, "balance", "all", "all, low or high")
	return cmd
}

func printUsers(w io.Writer, users []core.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPHONE\tBALANCE\tVISITS\tSTATUS")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			u.ID, u.Name, u.Phone, core.FormatRupees(u.CurrentBalance), u.TotalVisits, u.Status)
	}
	fmt.Fprintf(tw, "\n%d users\n", len(users))
	return tw.Flush()
}

func newStatsCmd(run runner) *cobra.Command {
	var from, to, txType, admin, query string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise transactions",
		Args:  cobra.NoArgs,
		RunE: run(func(ctx context.Context, b ports.Backend, cmd *cobra.Command, _ []string) error {
			c := analytics.Criteria{StartDate: from, EndDate: to, AdminName: admin, SearchQuery: query}
			if txType != "" {
				t, ok := core.ParseTransactionType(txType)
				if !ok {
					return fmt.Errorf("unknown transaction type %q", txType)
				}
				c.Type = &t
			}
			txs, err := b.ListTransactions(ctx)
			if err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), analytics.ComputeStatistics(analytics.FilterTransactions(txs, c)))
		}),
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD")
	cmd.Flags().StringVar(&txType, "type", "", "ADD, DEDUCT or NEW_USER")
	cmd.Flags().StringVar(&admin, "admin", "", "only transactions by this operator")
	cmd.Flags().StringVar(&query, "q", "", "search text")
	return cmd
}

func printStats(w io.Writer, s analytics.Statistics) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Transactions\t%d\n", s.TotalTransactions)
	fmt.Fprintf(tw, "Added\t%s\n", core.FormatRupees(s.TotalAdd))
	fmt.Fprintf(tw, "Deducted\t%s\n", core.FormatRupees(s.TotalDeduct))
	fmt.Fprintf(tw, "Net\t%s\n", core.FormatRupees(s.NetBalance))
	fmt.Fprintf(tw, "New users\t%d\n", s.TotalNewUser)
	fmt.Fprintf(tw, "Unique users\t%d\n", s.UniqueUsers)
	fmt.Fprintf(tw, "Average\t%.2f\n", s.AvgTransaction)
	fmt.Fprintf(tw, "Add share\t%d%%\n", analytics.ShareOfTotal(s.TotalAdd, s.TotalAdd, s.TotalDeduct))
	for i, a := range s.TopAdmins {
		fmt.Fprintf(tw, "Top operator %d\t%s (%d, %s)\n", i+1, a.Name, a.Count, core.FormatRupees(a.Amount))
	}
	return tw.Flush()
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for the OPERATORS setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := session.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func defaultBackend(ctx context.Context, backendType, url string) (ports.Backend, error) {
	logger := cli.SetupLogger(envOr("LOG_LEVEL", "warn"))
	cli.LoadEnvFile(logger)
	cfg := config.Load()
	cfg.DataBackend = strings.ToLower(backendType)
	cfg.PlayBoxAPIURL = strings.TrimRight(url, "/")
	if cfg.DataBackend != config.BackendREST && cfg.DataBackend != config.BackendMemory {
		return nil, fmt.Errorf("unknown backend %q", backendType)
	}
	return cli.InitBackend(ctx, logger.WithComponent(log.ComponentBackend), cfg, nil).Backend, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
