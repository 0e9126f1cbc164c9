package cashsession

import (
	"context"
	"fmt"
	"time"

	"tpv/internal/core/apperror"
	appctx "tpv/internal/core/context"
	"tpv/internal/core/id"
	"tpv/internal/core/tx"
	"tpv/internal/core/types"
	"tpv/internal/domain"
	"tpv/pkg/logger"
	"tpv/pkg/numerator"
)

// NumberAllocator hands out session numbers atomically.
type NumberAllocator interface {
	GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error)
}

// Service manages the cash drawer session lifecycle.
//
// Counter writes are additive and commutative, so concurrent cash sales
// only need the atomic UPDATE; close is the single serialization point
// and takes a row lock.
type Service struct {
	repo      Repository
	txManager tx.Manager
	numbers   NumberAllocator
}

// NewService creates a new cash session service.
func NewService(repo Repository, txManager tx.Manager, numbers NumberAllocator) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
		numbers:   numbers,
	}
}

// Open starts a new drawer session. A second open while one session is
// running is rejected with a conflict by the store-level uniqueness
// constraint; there is no check-then-open window.
func (s *Service) Open(ctx context.Context, openingBalance types.Money) (*Session, error) {
	session := NewSession(openingBalance, appctx.GetUserID(ctx))
	if err := session.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("SES"), nil, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("allocate session number: %w", err)
	}
	session.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cash session opened",
		"session_id", session.ID,
		"number", session.Number,
		"opening_balance", session.OpeningBalance.String(),
	)
	return session, nil
}

// Current returns the open session, NotFound when the drawer is closed.
func (s *Service) Current(ctx context.Context) (*Session, error) {
	return s.repo.GetOpen(ctx)
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, sessionID id.ID) (*Session, error) {
	return s.repo.GetByID(ctx, sessionID)
}

// AddCashSale adds a cash-tendered sale total to the open session.
// Hard failure when no session is open: a cash sale cannot complete with
// the drawer closed.
func (s *Service) AddCashSale(ctx context.Context, amount types.Money) (id.ID, error) {
	if !amount.IsPositive() {
		return id.Nil(), apperror.NewValidation("amount must be positive")
	}

	sessionID, ok, err := s.repo.AddCashSale(ctx, amount)
	if err != nil {
		return id.Nil(), fmt.Errorf("add cash sale: %w", err)
	}
	if !ok {
		return id.Nil(), apperror.NewConflict("no open cash session")
	}
	return sessionID, nil
}

// AddCashRefund adds a cash refund to the open session.
func (s *Service) AddCashRefund(ctx context.Context, amount types.Money) (id.ID, error) {
	if !amount.IsPositive() {
		return id.Nil(), apperror.NewValidation("amount must be positive")
	}

	sessionID, ok, err := s.repo.AddCashRefund(ctx, amount)
	if err != nil {
		return id.Nil(), fmt.Errorf("add cash refund: %w", err)
	}
	if !ok {
		return id.Nil(), apperror.NewConflict("no open cash session")
	}
	return sessionID, nil
}

// Adjust records a manual cash in/out (drops, change runs) with a motive.
func (s *Service) Adjust(ctx context.Context, amount types.Money, motive string) (*Adjustment, error) {
	if amount.IsZero() {
		return nil, apperror.NewValidation("amount must not be zero")
	}
	if motive == "" {
		return nil, apperror.NewValidation("motive is required").WithDetail("field", "motive")
	}

	var adj *Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		sessionID, ok, err := s.repo.AddCashInOut(ctx, amount)
		if err != nil {
			return fmt.Errorf("add cash in/out: %w", err)
		}
		if !ok {
			return apperror.NewConflict("no open cash session")
		}

		adj = &Adjustment{
			ID:        id.New(),
			SessionID: sessionID,
			Amount:    amount,
			Motive:    motive,
			CreatedBy: appctx.GetUserID(ctx),
			CreatedAt: time.Now().UTC(),
		}
		return s.repo.InsertAdjustment(ctx, adj)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cash adjustment recorded",
		"session_id", adj.SessionID,
		"amount", adj.Amount.String(),
		"motive", adj.Motive,
	)
	return adj, nil
}

// CloseInput carries the counted state of the drawer at close.
type CloseInput struct {
	ActualCash types.Money
	CloseType  CloseType
	Tender     *TenderBreakdown
	Notes      string
	// DiscrepancyReason is required when the count does not match.
	DiscrepancyReason string
}

// Close reconciles and terminates the session:
// expected = opening + cashSales - cashRefunds + cashInOut,
// discrepancy = actual - expected. Closing twice is rejected; the first
// close's discrepancy is immutable afterwards.
func (s *Service) Close(ctx context.Context, sessionID id.ID, input CloseInput) (*Session, error) {
	if input.ActualCash.IsNegative() {
		return nil, apperror.NewValidation("actual cash must not be negative")
	}
	switch input.CloseType {
	case CloseTypeX, CloseTypeZ:
	default:
		return nil, apperror.NewValidation("close type must be X or Z").
			WithDetail("close_type", string(input.CloseType))
	}

	var session *Session
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		session, err = s.repo.GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.IsClosed {
			return apperror.NewSessionClosed(sessionID.String())
		}

		expected := session.Expected()
		discrepancy := input.ActualCash.Sub(expected)
		if !discrepancy.IsZero() && input.DiscrepancyReason == "" {
			return apperror.NewValidation("discrepancy reason is required when counted cash differs").
				WithDetail("discrepancy", discrepancy.String())
		}

		now := time.Now().UTC()
		closeType := input.CloseType
		actual := input.ActualCash

		session.ExpectedCash = &expected
		session.ActualCash = &actual
		session.Discrepancy = &discrepancy
		session.DiscrepancyReason = input.DiscrepancyReason
		session.Tender = input.Tender
		session.Notes = input.Notes
		session.IsClosed = true
		session.CloseType = &closeType
		session.ClosedBy = appctx.GetUserID(ctx)
		session.ClosedAt = &now
		session.Touch()

		return s.repo.Close(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "cash session closed",
		"session_id", session.ID,
		"close_type", string(*session.CloseType),
		"expected", session.ExpectedCash.String(),
		"actual", session.ActualCash.String(),
		"discrepancy", session.Discrepancy.String(),
	)
	return session, nil
}

// AttachSale links a sale id to a session for reconciliation traceability.
// At-least-once safe: the append is idempotent by sale id.
func (s *Service) AttachSale(ctx context.Context, sessionID, saleID id.ID, amount types.Money) error {
	return s.repo.AttachSale(ctx, &SaleLink{
		SessionID:  sessionID,
		SaleID:     saleID,
		Amount:     amount,
		AttachedAt: time.Now().UTC(),
	})
}

// Report returns a session with its adjustments and attached sales.
type Report struct {
	Session     *Session      `json:"session"`
	Adjustments []*Adjustment `json:"adjustments"`
	Sales       []*SaleLink   `json:"sales"`
}

// GetReport assembles the reconciliation report for a session.
func (s *Service) GetReport(ctx context.Context, sessionID id.ID) (*Report, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	adjustments, err := s.repo.ListAdjustments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list adjustments: %w", err)
	}
	sales, err := s.repo.ListAttachedSales(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attached sales: %w", err)
	}
	return &Report{Session: session, Adjustments: adjustments, Sales: sales}, nil
}

// List returns sessions matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Session], error) {
	return s.repo.List(ctx, filter)
}
