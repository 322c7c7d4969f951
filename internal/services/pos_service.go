package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"playbox/internal/core"
	"playbox/internal/log"
	"playbox/internal/metrics"
	"playbox/internal/ports"
)

const DefaultMinAddAmount int64 = 500

// POSBackend is what the scanner screen needs from the backend.
type POSBackend interface {
	ports.CardScanner
	ports.UserWriter
	ports.BalanceWriter
	FindByPhone(ctx context.Context, phone string) (core.CardHolder, error)
	RecentTransactions(ctx context.Context, limit int) ([]core.Transaction, error)
}

type (
	ScanOutcome struct {
		Result core.ScanResult `json:"result"`
		Banner core.Banner     `json:"status"`
	}

	HolderOutcome struct {
		User   core.CardHolder `json:"user"`
		Banner core.Banner     `json:"status"`
	}
)

type POSConfig struct {
	MinAddAmount int64
	Journal      *JournalService
	Logger       *log.Logger
	Metrics      *metrics.Collector
}

// POSService runs the staff operations: scan, register, top up and deduct.
type POSService struct {
	backend POSBackend
	minAdd  int64
	journal *JournalService
	logger  *log.Logger
	metrics *metrics.Collector
}

func NewPOSService(backend POSBackend, cfg POSConfig) *POSService {
	if cfg.MinAddAmount <= 0 {
		cfg.MinAddAmount = DefaultMinAddAmount
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	return &POSService{
		backend: backend,
		minAdd:  cfg.MinAddAmount,
		journal: cfg.Journal,
		logger:  cfg.Logger.WithComponent(log.ComponentPOS),
		metrics: cfg.Metrics,
	}
}

func (s *POSService) MinAddAmount() int64 { return s.minAdd }

func (s *POSService) Scan(ctx context.Context, cardUID string) (ScanOutcome, error) {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return ScanOutcome{Banner: BannerFor(core.ErrEmptyCardUID)}, core.ErrEmptyCardUID
	}
	res, err := s.backend.ScanCard(ctx, cardUID)
	s.metrics.RecordPOS(log.OpScan, err == nil)
	if err != nil {
		s.logFailure(ctx, log.OpScan, cardUID, err)
		return ScanOutcome{Banner: BannerFor(err)}, fmt.Errorf("scan card: %w", err)
	}

	out := ScanOutcome{Result: res}
	switch res.Status {
	case core.ScanExistingUser:
		text := "Welcome back, " + res.Name
		if res.Balance != nil {
			text += ". Balance " + core.FormatRupees(*res.Balance)
		}
		out.Banner = core.Success(text)
	default:
		out.Banner = core.Info("New card detected. Register a user to link it.")
	}
	return out, nil
}

func (s *POSService) CreateUser(ctx context.Context, admin core.Admin, n core.NewUser) (HolderOutcome, error) {
	n.CardUID = strings.TrimSpace(n.CardUID)
	n.Name = strings.TrimSpace(n.Name)
	n.Phone = strings.TrimSpace(n.Phone)
	n.Email = strings.TrimSpace(n.Email)
	if err := n.Validate(); err != nil {
		return HolderOutcome{Banner: BannerFor(err)}, err
	}

	h, err := s.backend.CreateUser(ctx, n)
	s.metrics.RecordPOS(log.OpCreate, err == nil)
	if err != nil {
		s.logFailure(ctx, log.OpCreate, n.CardUID, err)
		return HolderOutcome{Banner: BannerFor(err)}, fmt.Errorf("create user: %w", err)
	}

	s.record(ctx, core.JournalEntry{
		Kind:         core.TxNewUser,
		CardUID:      n.CardUID,
		UserName:     h.Name,
		AdminName:    admin.Username,
		Description:  "Card registered",
		BalanceAfter: h.Balance,
	})
	return HolderOutcome{User: h, Banner: core.Success("User " + h.Name + " created")}, nil
}

// AddBalance tops up a card. The admin name sent to the backend is the
// session operator.
func (s *POSService) AddBalance(ctx context.Context, admin core.Admin, cardUID string, amount int64) (HolderOutcome, error) {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return HolderOutcome{Banner: BannerFor(core.ErrEmptyCardUID)}, core.ErrEmptyCardUID
	}
	if err := core.ValidateTopUp(amount, s.minAdd); err != nil {
		if errors.Is(err, core.ErrAmountBelowMinimum) {
			return HolderOutcome{Banner: core.Failure("Minimum amount is " + core.FormatRupees(s.minAdd))}, err
		}
		return HolderOutcome{Banner: BannerFor(err)}, err
	}

	h, err := s.backend.AddBalance(ctx, cardUID, amount, admin.Username)
	s.metrics.RecordPOS(log.OpAdd, err == nil)
	if err != nil {
		s.logFailure(ctx, log.OpAdd, cardUID, err)
		return HolderOutcome{Banner: BannerFor(err)}, fmt.Errorf("add balance: %w", err)
	}

	s.logger.InfoContext(ctx, "Balance added",
		log.NewFields().
			WithOperation(log.OpAdd).
			WithAdmin(admin.Username, string(admin.Role)).
			WithBalanceOp(cardUID, string(core.TxAdd), amount).
			ToSlice()...)
	s.record(ctx, core.JournalEntry{
		Kind:         core.TxAdd,
		CardUID:      cardUID,
		UserName:     h.Name,
		Amount:       amount,
		AdminName:    admin.Username,
		Description:  "Balance top-up",
		BalanceAfter: h.Balance,
	})
	text := fmt.Sprintf("Added %s. New balance %s", core.FormatRupees(amount), core.FormatRupees(h.Balance))
	return HolderOutcome{User: h, Banner: core.Success(text)}, nil
}

// DeductBalance charges a card. A blank deductor defaults to the session operator.
func (s *POSService) DeductBalance(ctx context.Context, admin core.Admin, cardUID string, amount int64, deductor, description string) (HolderOutcome, error) {
	cardUID = strings.TrimSpace(cardUID)
	if cardUID == "" {
		return HolderOutcome{Banner: BannerFor(core.ErrEmptyCardUID)}, core.ErrEmptyCardUID
	}
	deductor = strings.TrimSpace(deductor)
	if deductor == "" {
		deductor = admin.Username
	}
	description = strings.TrimSpace(description)
	if err := core.ValidateDeduction(amount, deductor, description); err != nil {
		return HolderOutcome{Banner: BannerFor(err)}, err
	}

	h, err := s.backend.DeductBalance(ctx, cardUID, amount, deductor, description)
	s.metrics.RecordPOS(log.OpDeduct, err == nil)
	if err != nil {
		s.logFailure(ctx, log.OpDeduct, cardUID, err)
		return HolderOutcome{Banner: BannerFor(err)}, fmt.Errorf("deduct balance: %w", err)
	}

	s.logger.InfoContext(ctx, "Balance deducted",
		log.NewFields().
			WithOperation(log.OpDeduct).
			WithAdmin(admin.Username, string(admin.Role)).
			WithBalanceOp(cardUID, string(core.TxDeduct), amount).
			ToSlice()...)
	s.record(ctx, core.JournalEntry{
		Kind:         core.TxDeduct,
		CardUID:      cardUID,
		UserName:     h.Name,
		Amount:       amount,
		AdminName:    deductor,
		Description:  description,
		BalanceAfter: h.Balance,
	})
	text := fmt.Sprintf("Deducted %s. Remaining balance %s", core.FormatRupees(amount), core.FormatRupees(h.Balance))
	return HolderOutcome{User: h, Banner: core.Success(text)}, nil
}

func (s *POSService) FindByPhone(ctx context.Context, phone string) (core.CardHolder, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return core.CardHolder{}, core.ErrEmptyPhone
	}
	h, err := s.backend.FindByPhone(ctx, phone)
	if err != nil {
		return core.CardHolder{}, fmt.Errorf("find by phone: %w", err)
	}
	return h, nil
}

// Recent returns the latest transactions for the scanner screen.
func (s *POSService) Recent(ctx context.Context, limit int) ([]core.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	txs, err := s.backend.RecentTransactions(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	return txs, nil
}

// record writes to the journal. The backend already committed the
// operation, so a journal failure is only logged.
func (s *POSService) record(ctx context.Context, e core.JournalEntry) {
	if s.journal == nil {
		return
	}
	e.CreatedAt = time.Now()
	if _, err := s.journal.Record(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record journal entry",
			log.FieldOperation, log.OpRecord,
			log.FieldCardUID, e.CardUID,
			log.FieldError, err.Error())
	}
}

func (s *POSService) logFailure(ctx context.Context, op, cardUID string, err error) {
	s.logger.WarnContext(ctx, "POS operation failed",
		log.FieldOperation, op,
		log.FieldCardUID, cardUID,
		log.FieldError, err.Error())
}
