// Package memory is an in-process PlayBox backend for local development and tests.
package memory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"playbox/internal/analytics"
	"playbox/internal/core"
	"playbox/internal/ports"
)

var _ ports.Backend = (*Store)(nil)
var _ ports.Pinger = (*Store)(nil)

// Seed describes a user loaded at start-up.
type Seed struct {
	CardUID string
	Name    string
	Phone   string
	Email   string
	Balance int64
}

// DefaultSeeds is used when no seed file is configured.
var DefaultSeeds = []Seed{
	{CardUID: "ABC123DEF456", Name: "John Doe", Phone: "9876543210", Email: "john@example.com", Balance: 1500},
	{CardUID: "DEF456GHI789", Name: "Jane Smith", Phone: "9876543211", Email: "jane@example.com", Balance: 2500},
	{CardUID: "GHI789JKL012", Name: "Bob Wilson", Phone: "9876543212", Email: "bob@example.com", Balance: 500},
}

type Store struct {
	mu     sync.Mutex
	now    func() time.Time
	users  []*core.User
	byCard map[string]*core.User
	txs    []core.Transaction // oldest first
	nextTx int64
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds a store holding seeds. Seeded balances are recorded as an
// initial NEW_USER plus ADD pair attributed to "seed".
func New(seeds []Seed, opts ...Option) *Store {
	s := &Store{now: time.Now, byCard: make(map[string]*core.User)}
	for _, opt := range opts {
		opt(s)
	}
	for _, sd := range seeds {
		u := s.insert(core.NewUser{CardUID: sd.CardUID, Name: sd.Name, Phone: sd.Phone, Email: sd.Email}, "seed")
		if sd.Balance > 0 {
			s.credit(u, sd.Balance, "seed", "Opening balance")
		}
	}
	return s
}

// NewFromFile loads seeds from a CSV file with the columns
// cardUid,name,phone,email,balance. An empty path means DefaultSeeds; a
// configured path must exist.
func NewFromFile(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return New(DefaultSeeds, opts...), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	seeds, err := ReadSeeds(f)
	if err != nil {
		return nil, err
	}
	return New(seeds, opts...), nil
}

// ReadSeeds parses seed rows, skipping a header row and lines starting with '#'.
func ReadSeeds(r io.Reader) ([]Seed, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Seed
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "cardUid") {
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("seed line %d: need at least cardUid,name,phone", line)
		}
		sd := Seed{CardUID: strings.TrimSpace(rec[0]), Name: strings.TrimSpace(rec[1]), Phone: strings.TrimSpace(rec[2])}
		if len(rec) > 3 {
			sd.Email = strings.TrimSpace(rec[3])
		}
		if len(rec) > 4 && strings.TrimSpace(rec[4]) != "" {
			b, err := strconv.ParseInt(strings.TrimSpace(rec[4]), 10, 64)
			if err != nil || b < 0 {
				return nil, fmt.Errorf("seed line %d: invalid balance %q", line, rec[4])
			}
			sd.Balance = b
		}
		out = append(out, sd)
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) ScanCard(_ context.Context, cardUID string) (core.ScanResult, error) {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return core.ScanResult{}, core.ErrEmptyCardUID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byCard[cardUID]
	if !ok {
		return core.ScanResult{Status: core.ScanNewCard}, nil
	}
	balance := u.CurrentBalance
	return core.ScanResult{Status: core.ScanExistingUser, Name: u.Name, Balance: &balance}, nil
}

func (s *Store) CreateUser(_ context.Context, n core.NewUser) (core.CardHolder, error) {
	n.CardUID = strings.TrimSpace(n.CardUID)
	if err := n.Validate(); err != nil {
		return core.CardHolder{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byCard[n.CardUID]; exists {
		return core.CardHolder{}, core.ErrCardAlreadyLinked
	}
	return holder(s.insert(n, "")), nil
}

func (s *Store) AddBalance(_ context.Context, cardUID string, amount int64, adminName string) (core.CardHolder, error) {
	if amount <= 0 {
		return core.CardHolder{}, core.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byCard[strings.TrimSpace(cardUID)]
	if !ok {
		return core.CardHolder{}, fmt.Errorf("card %s: %w", cardUID, core.ErrNotFound)
	}
	s.credit(u, amount, adminName, "Balance top-up")
	return holder(u), nil
}

func (s *Store) DeductBalance(_ context.Context, cardUID string, amount int64, deductor, description string) (core.CardHolder, error) {
	if err := core.ValidateDeduction(amount, deductor, description); err != nil {
		return core.CardHolder{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byCard[strings.TrimSpace(cardUID)]
	if !ok {
		return core.CardHolder{}, fmt.Errorf("card %s: %w", cardUID, core.ErrNotFound)
	}
	if u.CurrentBalance < amount {
		return core.CardHolder{}, core.ErrInsufficientBalance
	}
	prev := u.CurrentBalance
	u.CurrentBalance -= amount
	u.TotalDeduction += amount
	u.TotalVisits++
	u.LastVisit = s.stamp()
	s.appendTx(u, core.TxDeduct, amount, deductor, description, &prev)
	return holder(u), nil
}

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.User, len(s.users))
	for i, u := range s.users {
		out[i] = *u
	}
	return out, nil
}

func (s *Store) FindByPhone(_ context.Context, phone string) (core.CardHolder, error) {
	phone = strings.TrimSpace(phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Phone == phone {
			return holder(u), nil
		}
	}
	return core.CardHolder{}, fmt.Errorf("phone %s: %w", phone, core.ErrNotFound)
}

func (s *Store) UserDetails(_ context.Context, id int64) (core.UserDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID != id {
			continue
		}
		uid := id
		txs := analytics.FilterTransactions(s.newestFirst(), analytics.Criteria{UserID: &uid})
		return core.UserDetails{User: *u, Transactions: txs}, nil
	}
	return core.UserDetails{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
}

func (s *Store) UserStats(ctx context.Context) (core.UserStats, error) {
	users, _ := s.ListUsers(ctx)
	return analytics.ComputeUserStats(users, s.now()), nil
}

func (s *Store) ListTransactions(context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestFirst(), nil
}

func (s *Store) FilterTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return analytics.FilterTransactions(s.newestFirst(), analytics.Criteria{
		UserID:    f.UserID,
		AdminName: f.AdminName,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}), nil
}

func (s *Store) RecentTransactions(_ context.Context, limit int) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return analytics.RecentTransactions(s.txs, limit), nil
}

func (s *Store) TodayRevenue(context.Context) (core.DailyRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return analytics.ComputeDailyRevenue(s.txs, s.now().In(time.Local)), nil
}

// insert expects s.mu held or the store not yet shared.
func (s *Store) insert(n core.NewUser, admin string) *core.User {
	u := &core.User{
		ID:               int64(len(s.users) + 1),
		Name:             strings.TrimSpace(n.Name),
		Phone:            strings.TrimSpace(n.Phone),
		Email:            strings.TrimSpace(n.Email),
		CardUID:          n.CardUID,
		RegistrationDate: s.stamp(),
		Status:           core.UserActive,
	}
	s.users = append(s.users, u)
	s.byCard[u.CardUID] = u
	s.appendTx(u, core.TxNewUser, 0, admin, "New user registered", nil)
	return u
}

func (s *Store) credit(u *core.User, amount int64, admin, description string) {
	prev := u.CurrentBalance
	u.CurrentBalance += amount
	u.TotalRecharge += amount
	u.LastVisit = s.stamp()
	s.appendTx(u, core.TxAdd, amount, admin, description, &prev)
}

func (s *Store) appendTx(u *core.User, typ core.TransactionType, amount int64, admin, description string, prev *int64) {
	s.nextTx++
	name := u.Name
	after := u.CurrentBalance
	s.txs = append(s.txs, core.Transaction{
		ID:              s.nextTx,
		UserID:          u.ID,
		UserName:        &name,
		Type:            typ,
		Amount:          amount,
		Description:     description,
		Timestamp:       s.stamp(),
		AdminName:       admin,
		PreviousBalance: prev,
		BalanceAfter:    &after,
	})
}

func (s *Store) newestFirst() []core.Transaction {
	out := slices.Clone(s.txs)
	slices.Reverse(out)
	return out
}

func (s *Store) stamp() string {
	return s.now().Format(time.RFC3339)
}

func holder(u *core.User) core.CardHolder {
	return core.CardHolder{
		ID:      u.ID,
		Name:    u.Name,
		Phone:   u.Phone,
		Email:   u.Email,
		CardUID: u.CardUID,
		Balance: u.CurrentBalance,
	}
}
