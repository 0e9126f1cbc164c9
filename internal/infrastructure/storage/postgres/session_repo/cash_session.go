// Package session_repo provides the PostgreSQL implementation of the cash
// session repository. The single-open-session rule lives here as a partial
// unique index, not as application-level checks.
package session_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain"
	"tpv/internal/domain/cashsession"
	"tpv/internal/infrastructure/storage/postgres"
	"tpv/internal/infrastructure/storage/postgres/document_repo"
)

const (
	sessionsTable    = "cash_sessions"
	adjustmentsTable = "cash_session_adjustments"
	sessionSaleTable = "cash_session_sales"

	// Partial unique index over open sessions, see migrations.
	singleOpenConstraint = "cash_sessions_single_open_idx"
)

var sessionColumns = []string{
	"id", "deletion_mark", "version",
	"created_at", "updated_at", "created_by", "updated_by",
	"number", "opening_balance",
	"cash_sales", "cash_refunds", "cash_in_out",
	"expected_cash", "actual_cash", "discrepancy", "discrepancy_reason", "tender",
	"is_closed", "close_type", "notes",
	"opened_by", "opened_at", "closed_by", "closed_at",
}

// SessionRepo implements cashsession.Repository.
type SessionRepo struct {
	*document_repo.BaseDocumentRepo[*cashsession.Session]
}

// NewSessionRepo creates a new cash session repository.
func NewSessionRepo(txManager *postgres.TxManager) *SessionRepo {
	return &SessionRepo{
		BaseDocumentRepo: document_repo.NewBaseDocumentRepo(
			txManager,
			sessionsTable,
			sessionColumns,
			func() *cashsession.Session { return &cashsession.Session{} },
		),
	}
}

// Create inserts a session. A concurrent open session trips the partial
// unique index; that is the authoritative single-open check.
func (r *SessionRepo) Create(ctx context.Context, s *cashsession.Session) error {
	if err := r.BaseDocumentRepo.Create(ctx, s); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if pgErr.ConstraintName == singleOpenConstraint {
				return apperror.NewConflict("another cash session is already open").WithCause(err)
			}
			return apperror.NewDuplicate("cash session", "number", s.Number).WithCause(err)
		}
		return err
	}
	return nil
}

// GetOpen returns the currently open session, NotFound when none.
func (r *SessionRepo) GetOpen(ctx context.Context) (*cashsession.Session, error) {
	q := r.Builder().
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"is_closed": false}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	s := &cashsession.Session{}
	if err := pgxscan.Get(ctx, r.Querier(ctx), s, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("cash session", "open")
		}
		return nil, fmt.Errorf("get open session: %w", err)
	}

	return s, nil
}

// AddCashSale bumps the cash sales counter of the open session.
func (r *SessionRepo) AddCashSale(ctx context.Context, amount types.Money) (id.ID, bool, error) {
	return r.addCash(ctx, "cash_sales", amount)
}

// AddCashRefund bumps the cash refunds counter of the open session.
func (r *SessionRepo) AddCashRefund(ctx context.Context, amount types.Money) (id.ID, bool, error) {
	return r.addCash(ctx, "cash_refunds", amount)
}

// AddCashInOut applies a signed manual adjustment to the open session.
func (r *SessionRepo) AddCashInOut(ctx context.Context, amount types.Money) (id.ID, bool, error) {
	return r.addCash(ctx, "cash_in_out", amount)
}

// addCash is one atomic UPDATE against whichever session is open.
// ok=false when no session is open.
func (r *SessionRepo) addCash(ctx context.Context, column string, amount types.Money) (id.ID, bool, error) {
	sql := fmt.Sprintf(`
		UPDATE cash_sessions
		SET %s = %s + $1,
		    updated_at = NOW(),
		    version = version + 1
		WHERE is_closed = FALSE AND deletion_mark = FALSE
		RETURNING id
	`, column, column)

	var sessionID id.ID
	err := r.Querier(ctx).QueryRow(ctx, sql, amount).Scan(&sessionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return id.Nil(), false, nil
	}
	if err != nil {
		return id.Nil(), false, fmt.Errorf("add %s: %w", column, err)
	}

	return sessionID, true, nil
}

// Close persists the reconciliation outcome. The is_closed guard is a
// backstop behind the row lock the service already holds.
func (r *SessionRepo) Close(ctx context.Context, s *cashsession.Session) error {
	q := r.Builder().
		Update(sessionsTable).
		Set("expected_cash", s.ExpectedCash).
		Set("actual_cash", s.ActualCash).
		Set("discrepancy", s.Discrepancy).
		Set("discrepancy_reason", s.DiscrepancyReason).
		Set("tender", s.Tender).
		Set("is_closed", true).
		Set("close_type", s.CloseType).
		Set("notes", s.Notes).
		Set("closed_by", s.ClosedBy).
		Set("closed_at", s.ClosedAt).
		Set("updated_at", squirrel.Expr("NOW()")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": s.ID}).
		Where(squirrel.Eq{"is_closed": false})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewSessionClosed(s.ID.String())
	}

	return nil
}

// InsertAdjustment records a manual cash in/out entry.
func (r *SessionRepo) InsertAdjustment(ctx context.Context, adj *cashsession.Adjustment) error {
	q := r.Builder().
		Insert(adjustmentsTable).
		Columns("id", "session_id", "amount", "motive", "created_by", "created_at").
		Values(adj.ID, adj.SessionID, adj.Amount, adj.Motive, adj.CreatedBy, adj.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert adjustment: %w", err)
	}

	return nil
}

// ListAdjustments returns the manual entries of a session in order.
func (r *SessionRepo) ListAdjustments(ctx context.Context, sessionID id.ID) ([]*cashsession.Adjustment, error) {
	q := r.Builder().
		Select("id", "session_id", "amount", "motive", "created_by", "created_at").
		From(adjustmentsTable).
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var adjustments []*cashsession.Adjustment
	if err := pgxscan.Select(ctx, r.Querier(ctx), &adjustments, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustments: %w", err)
	}

	return adjustments, nil
}

// AttachSale links a sale for traceability. A replayed event hits the
// unique sale_id and becomes a no-op.
func (r *SessionRepo) AttachSale(ctx context.Context, link *cashsession.SaleLink) error {
	q := r.Builder().
		Insert(sessionSaleTable).
		Columns("session_id", "sale_id", "amount", "attached_at").
		Values(link.SessionID, link.SaleID, link.Amount, link.AttachedAt).
		Suffix("ON CONFLICT (sale_id) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("attach sale: %w", err)
	}

	return nil
}

// ListAttachedSales returns the sales linked to a session in order.
func (r *SessionRepo) ListAttachedSales(ctx context.Context, sessionID id.ID) ([]*cashsession.SaleLink, error) {
	q := r.Builder().
		Select("session_id", "sale_id", "amount", "attached_at").
		From(sessionSaleTable).
		Where(squirrel.Eq{"session_id": sessionID}).
		OrderBy("attached_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var links []*cashsession.SaleLink
	if err := pgxscan.Select(ctx, r.Querier(ctx), &links, sql, args...); err != nil {
		return nil, fmt.Errorf("select attached sales: %w", err)
	}

	return links, nil
}

// List returns session headers matching the filter.
func (r *SessionRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*cashsession.Session], error) {
	return r.BaseDocumentRepo.List(ctx, filter)
}

// Ensure interface compliance.
var _ cashsession.Repository = (*SessionRepo)(nil)
