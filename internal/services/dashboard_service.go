package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"playbox/internal/analytics"
	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/metrics"
	"playbox/internal/ports"
	"playbox/internal/session"
)

// DashboardBackend is what the owner pages read from the backend.
type DashboardBackend interface {
	ports.UserReader
	ports.TransactionReader
	ports.DashboardReader
}

type (
	// TransactionPage is one render of the transactions dashboard.
	TransactionPage struct {
		session.TransactionView
		Stats     analytics.Statistics `json:"stats"`
		Banner    core.Banner          `json:"status"`
		UpdatedAt time.Time            `json:"updatedAt"`
	}

	// Overview combines the statistics of the current view with today's revenue.
	Overview struct {
		Stats       analytics.Statistics `json:"stats"`
		AddShare    int                  `json:"addShare"`
		DeductShare int                  `json:"deductShare"`
		Today       core.DailyRevenue    `json:"today"`
		Banner      core.Banner          `json:"status"`
	}

	UserPage struct {
		Users  []core.User    `json:"users"`
		Stats  core.UserStats `json:"stats"`
		Total  int            `json:"total"`
		Banner core.Banner    `json:"status"`
	}
)

type DashboardConfig struct {
	Location   *time.Location
	Thresholds analytics.Thresholds
	Logger     *log.Logger
	Metrics    *metrics.Collector
	Now        func() time.Time
}

const sharedLoadTimeout = 30 * time.Second

// DashboardService loads backend data into a session's snapshots and runs
// the analytics engine over them.
type DashboardService struct {
	backend    DashboardBackend
	loc        *time.Location
	thresholds analytics.Thresholds
	logger     *log.Logger
	metrics    *metrics.Collector
	now        func() time.Time
	group      singleflight.Group
}

func NewDashboardService(backend DashboardBackend, cfg DashboardConfig) *DashboardService {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Thresholds == (analytics.Thresholds{}) {
		cfg.Thresholds = analytics.DefaultThresholds
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &DashboardService{
		backend:    backend,
		loc:        cfg.Location,
		thresholds: cfg.Thresholds,
		logger:     cfg.Logger.WithComponent(log.ComponentDashboard),
		metrics:    cfg.Metrics,
		now:        cfg.Now,
	}
}

// LoadTransactions fetches the full list into the session and resets the view.
func (d *DashboardService) LoadTransactions(ctx context.Context, s *session.Session) (TransactionPage, error) {
	txs, err := d.fetchTransactions(ctx, s)
	if err != nil {
		return TransactionPage{Banner: BannerFor(err)}, err
	}
	view := session.TransactionView{Items: txs}
	s.View.Set(view)
	return d.page(view, s.View.UpdatedAt(), core.Success(fmt.Sprintf("Loaded %d transactions", len(txs)))), nil
}

func (d *DashboardService) fetchTransactions(ctx context.Context, s *session.Session) ([]core.Transaction, error) {
	ctx, t := s.Transactions.Begin(ctx)
	defer s.Transactions.Finish(t)

	txs, err := d.backend.ListTransactions(ctx)
	if !s.Transactions.Current(t) {
		return nil, session.ErrSuperseded
	}
	if err != nil {
		d.logger.WarnContext(ctx, "Failed to load transactions",
			log.FieldSessionID, s.ID,
			log.FieldError, err.Error())
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	if !s.Transactions.Commit(t, txs) {
		return nil, session.ErrSuperseded
	}
	return txs, nil
}

// transactions returns the session snapshot, loading it on first use.
func (d *DashboardService) transactions(ctx context.Context, s *session.Session) ([]core.Transaction, error) {
	if txs, ok := s.Transactions.Get(); ok {
		return txs, nil
	}
	return d.fetchTransactions(ctx, s)
}

// ApplyFilter narrows the dashboard. User, admin and date criteria go to the
// backend filter endpoint; type and search are applied locally. When the
// backend filter fails the engine evaluates all criteria over the session
// snapshot and the banner turns into a warning.
func (d *DashboardService) ApplyFilter(ctx context.Context, s *session.Session, c analytics.Criteria) (TransactionPage, error) {
	server := c.ServerFilter()
	if server.IsEmpty() {
		all, err := d.transactions(ctx, s)
		if err != nil {
			return TransactionPage{Banner: BannerFor(err)}, err
		}
		return d.publishView(s, session.TransactionView{Items: analytics.FilterTransactionsIn(all, c, d.loc), Criteria: c}, core.Info("Filters applied"))
	}

	ctx, t := s.View.Begin(ctx)
	defer s.View.Finish(t)

	banner := core.Info("Filters applied")
	got, err := d.backend.FilterTransactions(ctx, server)
	if !s.View.Current(t) {
		return TransactionPage{}, session.ErrSuperseded
	}
	var items []core.Transaction
	if err != nil {
		all, ok := s.Transactions.Get()
		if !ok {
			return TransactionPage{Banner: BannerFor(err)}, fmt.Errorf("filter transactions: %w", err)
		}
		d.logger.WarnContext(ctx, "Server filter failed, filtering loaded transactions",
			log.FieldOperation, log.OpFilter,
			log.FieldSessionID, s.ID,
			log.FieldError, err.Error())
		d.metrics.RecordStale("transactions")
		items = analytics.FilterTransactionsIn(all, c, d.loc)
		banner = core.Warning("Server filter unavailable. Showing results from the last loaded list.")
	} else {
		local := analytics.Criteria{Type: c.Type, SearchQuery: c.SearchQuery}
		items = analytics.FilterTransactionsIn(got, local, d.loc)
	}

	view := session.TransactionView{Items: items, Criteria: c}
	if !s.View.Commit(t, view) {
		return TransactionPage{}, session.ErrSuperseded
	}
	return d.page(view, s.View.UpdatedAt(), banner), nil
}

// Search matches query against the loaded list, keeping the active criteria.
func (d *DashboardService) Search(ctx context.Context, s *session.Session, query string) (TransactionPage, error) {
	all, err := d.transactions(ctx, s)
	if err != nil {
		return TransactionPage{Banner: BannerFor(err)}, err
	}
	current, _ := s.View.Get()
	c := current.Criteria
	c.SearchQuery = query
	view := session.TransactionView{Items: analytics.FilterTransactionsIn(all, c, d.loc), Criteria: c, Query: query}
	return d.publishView(s, view, core.Info(fmt.Sprintf("%d matching transactions", len(view.Items))))
}

// View returns what the dashboard currently shows, loading it on first use.
func (d *DashboardService) View(ctx context.Context, s *session.Session) (TransactionPage, error) {
	if view, ok := s.View.Get(); ok {
		return d.page(view, s.View.UpdatedAt(), core.Banner{}), nil
	}
	return d.LoadTransactions(ctx, s)
}

// Overview computes statistics of the current view. Today's revenue comes
// from the backend, or from the loaded transactions when that call fails.
func (d *DashboardService) Overview(ctx context.Context, s *session.Session) (Overview, error) {
	page, err := d.View(ctx, s)
	if err != nil {
		return Overview{Banner: page.Banner}, err
	}
	out := Overview{
		Stats:       page.Stats,
		AddShare:    analytics.ShareOfTotal(page.Stats.TotalAdd, page.Stats.TotalAdd, page.Stats.TotalDeduct),
		DeductShare: analytics.ShareOfTotal(page.Stats.TotalDeduct, page.Stats.TotalAdd, page.Stats.TotalDeduct),
		Banner:      core.Info("Dashboard updated"),
	}

	today, err := d.backend.TodayRevenue(ctx)
	if err != nil {
		all, _ := s.Transactions.Get()
		d.logger.WarnContext(ctx, "Failed to load today's revenue, computing locally",
			log.FieldSessionID, s.ID,
			log.FieldError, err.Error())
		d.metrics.RecordStale("revenue")
		today = analytics.ComputeDailyRevenue(all, d.now().In(d.loc))
		out.Banner = core.Warning("Today's revenue computed from the last loaded list")
	}
	out.Today = today
	return out, nil
}

// ExportCSV writes the current view.
func (d *DashboardService) ExportCSV(ctx context.Context, s *session.Session, w io.Writer) error {
	page, err := d.View(ctx, s)
	if err != nil {
		return err
	}
	return analytics.WriteTransactionsCSV(w, page.Items)
}

// LoadUsers fetches users and their summary in parallel. Concurrent loads
// for the same session share one backend round, which outlives any single
// caller up to sharedLoadTimeout.
func (d *DashboardService) LoadUsers(ctx context.Context, s *session.Session) (session.UserView, error) {
	ch := d.group.DoChan(s.ID+":users", func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()
		return d.fetchUsers(ctx, s)
	})
	select {
	case <-ctx.Done():
		return session.UserView{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			d.logger.DebugContext(ctx, "Shared users load", log.FieldSessionID, s.ID)
		}
		if res.Err != nil {
			return session.UserView{}, res.Err
		}
		return res.Val.(session.UserView), nil
	}
}

func (d *DashboardService) fetchUsers(ctx context.Context, s *session.Session) (session.UserView, error) {
	ctx, t := s.Users.Begin(ctx)
	defer s.Users.Finish(t)

	var view session.UserView
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users, err := d.backend.ListUsers(gctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		view.Users = users
		return nil
	})
	g.Go(func() error {
		stats, err := d.backend.UserStats(gctx)
		if err != nil {
			return fmt.Errorf("user stats: %w", err)
		}
		view.Stats = stats
		return nil
	})
	err := g.Wait()
	if !s.Users.Current(t) {
		return session.UserView{}, session.ErrSuperseded
	}
	if err != nil {
		d.logger.WarnContext(ctx, "Failed to load users",
			log.FieldSessionID, s.ID,
			log.FieldError, err.Error())
		return session.UserView{}, err
	}
	if view.Users == nil {
		view.Users = []core.User{}
	}
	if !s.Users.Commit(t, view) {
		return session.UserView{}, session.ErrSuperseded
	}
	return view, nil
}

// UserList filters and sorts the loaded users, loading them on first use.
func (d *DashboardService) UserList(ctx context.Context, s *session.Session, q analytics.UserQuery) (UserPage, error) {
	view, ok := s.Users.Get()
	if !ok {
		var err error
		if view, err = d.LoadUsers(ctx, s); err != nil {
			return UserPage{Banner: BannerFor(err)}, err
		}
	}
	if q.Thresholds == (analytics.Thresholds{}) {
		q.Thresholds = d.thresholds
	}
	users := analytics.QueryUsers(view.Users, q)
	return UserPage{
		Users:  users,
		Stats:  view.Stats,
		Total:  len(view.Users),
		Banner: core.Info(fmt.Sprintf("Showing %d of %d users", len(users), len(view.Users))),
	}, nil
}

func (d *DashboardService) UserDetails(ctx context.Context, id int64) (core.UserDetails, error) {
	if id <= 0 {
		return core.UserDetails{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
	}
	details, err := d.backend.UserDetails(ctx, id)
	if err != nil {
		return core.UserDetails{}, fmt.Errorf("user details: %w", err)
	}
	return details, nil
}

func (d *DashboardService) ExportUserCSV(ctx context.Context, id int64, w io.Writer) error {
	details, err := d.UserDetails(ctx, id)
	if err != nil {
		return err
	}
	return analytics.WriteUserCSV(w, details.User)
}

func (d *DashboardService) publishView(s *session.Session, view session.TransactionView, banner core.Banner) (TransactionPage, error) {
	s.View.Set(view)
	return d.page(view, s.View.UpdatedAt(), banner), nil
}

func (d *DashboardService) page(view session.TransactionView, at time.Time, banner core.Banner) TransactionPage {
	if view.Items == nil {
		view.Items = []core.Transaction{}
	}
	return TransactionPage{
		TransactionView: view,
		Stats:           analytics.ComputeStatistics(view.Items),
		Banner:          banner,
		UpdatedAt:       at,
	}
}

// IsSuperseded reports whether err only means a newer request replaced this one.
func IsSuperseded(err error) bool {
	return errors.Is(err, session.ErrSuperseded)
}
