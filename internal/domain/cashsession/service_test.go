package cashsession

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv/internal/core/apperror"
	appctx "tpv/internal/core/context"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain"
	"tpv/pkg/numerator"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeNumbers struct {
	next int
}

func (f *fakeNumbers) GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
	f.next++
	return fmt.Sprintf("%s-20250101-%04d", cfg.Prefix, f.next), nil
}

// fakeSessionRepo enforces the single-open-session rule the partial
// unique index provides in the store.
type fakeSessionRepo struct {
	sessions    map[id.ID]*Session
	openID      *id.ID
	adjustments []*Adjustment
	links       map[id.ID]*SaleLink // by sale id
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions: make(map[id.ID]*Session),
		links:    make(map[id.ID]*SaleLink),
	}
}

func (r *fakeSessionRepo) Create(ctx context.Context, s *Session) error {
	if r.openID != nil {
		return apperror.NewConflict("a cash session is already open")
	}
	r.sessions[s.ID] = s
	sid := s.ID
	r.openID = &sid
	return nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, sessionID id.ID) (*Session, error) {
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, apperror.NewNotFound("cash session", sessionID)
	}
	return s, nil
}

func (r *fakeSessionRepo) GetForUpdate(ctx context.Context, sessionID id.ID) (*Session, error) {
	return r.GetByID(ctx, sessionID)
}

func (r *fakeSessionRepo) GetOpen(ctx context.Context) (*Session, error) {
	if r.openID == nil {
		return nil, apperror.NewNotFound("cash session", "open")
	}
	return r.sessions[*r.openID], nil
}

func (r *fakeSessionRepo) AddCashSale(ctx context.Context, amount types.Money) (id.ID, bool, error) {
	if r.openID == nil {
		return id.Nil(), false, nil
	}
	s := r.sessions[*r.openID]
	s.CashSales = s.CashSales.Add(amount)
	return s.ID, true, nil
}

func (r *fakeSessionRepo) AddCashRefund(ctx context.Context, amount types.Money) (id.ID, bool, error) {
	if r.openID == nil {
		return id.Nil(), false, nil
	}
	s := r.sessions[*r.openID]
	s.CashRefunds = s.CashRefunds.Add(amount)
	return s.ID, true, nil
}

func (r *fakeSessionRepo) AddCashInOut(ctx context.Context, amount types.Money) (id.ID, bool, error) {
	if r.openID == nil {
		return id.Nil(), false, nil
	}
	s := r.sessions[*r.openID]
	s.CashInOut = s.CashInOut.Add(amount)
	return s.ID, true, nil
}

func (r *fakeSessionRepo) Close(ctx context.Context, s *Session) error {
	r.sessions[s.ID] = s
	if r.openID != nil && *r.openID == s.ID {
		r.openID = nil
	}
	return nil
}

func (r *fakeSessionRepo) InsertAdjustment(ctx context.Context, adj *Adjustment) error {
	r.adjustments = append(r.adjustments, adj)
	return nil
}

func (r *fakeSessionRepo) ListAdjustments(ctx context.Context, sessionID id.ID) ([]*Adjustment, error) {
	var out []*Adjustment
	for _, a := range r.adjustments {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) AttachSale(ctx context.Context, link *SaleLink) error {
	if _, exists := r.links[link.SaleID]; exists {
		return nil
	}
	r.links[link.SaleID] = link
	return nil
}

func (r *fakeSessionRepo) ListAttachedSales(ctx context.Context, sessionID id.ID) ([]*SaleLink, error) {
	var out []*SaleLink
	for _, l := range r.links {
		if l.SessionID == sessionID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Session], error) {
	return domain.ListResult[*Session]{}, nil
}

func testContext() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: id.New().String(),
		Email:  "cashier@example.com",
	})
}

func newTestService(repo *fakeSessionRepo) *Service {
	return NewService(repo, fakeTxManager{}, &fakeNumbers{})
}

func TestOpen(t *testing.T) {
	ctx := testContext()

	t.Run("opens with a float and a session number", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)

		session, err := svc.Open(ctx, types.MustMoney("500.00"))
		require.NoError(t, err)

		assert.Equal(t, "SES-20250101-0001", session.Number)
		assert.False(t, session.IsClosed)
		assert.True(t, session.OpeningBalance.Equal(types.MustMoney("500.00")))
		assert.NotEmpty(t, session.OpenedBy)
	})

	t.Run("second open is a conflict", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)

		_, err := svc.Open(ctx, types.MustMoney("500.00"))
		require.NoError(t, err)

		_, err = svc.Open(ctx, types.MustMoney("300.00"))
		require.Error(t, err)
		assert.True(t, apperror.IsConflict(err))
	})

	t.Run("negative float rejected", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)

		_, err := svc.Open(ctx, types.MustMoney("-1.00"))
		require.Error(t, err)
	})
}

func TestClose(t *testing.T) {
	ctx := testContext()

	open := func(t *testing.T) (*Service, *fakeSessionRepo, *Session) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)
		session, err := svc.Open(ctx, types.MustMoney("500.00"))
		require.NoError(t, err)
		return svc, repo, session
	}

	t.Run("matching count closes clean", func(t *testing.T) {
		svc, _, session := open(t)

		_, err := svc.AddCashSale(ctx, types.MustMoney("120.00"))
		require.NoError(t, err)

		closed, err := svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("620.00"),
			CloseType:  CloseTypeZ,
		})
		require.NoError(t, err)

		assert.True(t, closed.IsClosed)
		assert.True(t, closed.ExpectedCash.Equal(types.MustMoney("620.00")))
		assert.True(t, closed.Discrepancy.IsZero())
		assert.NotNil(t, closed.ClosedAt)
	})

	t.Run("shortage requires a reason", func(t *testing.T) {
		svc, _, session := open(t)

		_, err := svc.AddCashSale(ctx, types.MustMoney("120.00"))
		require.NoError(t, err)

		_, err = svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("600.00"),
			CloseType:  CloseTypeZ,
		})
		require.Error(t, err)

		closed, err := svc.Close(ctx, session.ID, CloseInput{
			ActualCash:        types.MustMoney("600.00"),
			CloseType:         CloseTypeZ,
			DiscrepancyReason: "change error during rush",
		})
		require.NoError(t, err)
		assert.True(t, closed.Discrepancy.Equal(types.MustMoney("-20.00")), "discrepancy %s", closed.Discrepancy)
	})

	t.Run("expected folds refunds and manual movements in", func(t *testing.T) {
		svc, _, session := open(t)

		_, err := svc.AddCashSale(ctx, types.MustMoney("200.00"))
		require.NoError(t, err)
		_, err = svc.AddCashRefund(ctx, types.MustMoney("50.00"))
		require.NoError(t, err)
		_, err = svc.Adjust(ctx, types.MustMoney("-100.00"), "cash drop to safe")
		require.NoError(t, err)

		// 500 + 200 - 50 - 100 = 550
		closed, err := svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("550.00"),
			CloseType:  CloseTypeZ,
		})
		require.NoError(t, err)
		assert.True(t, closed.ExpectedCash.Equal(types.MustMoney("550.00")))
		assert.True(t, closed.Discrepancy.IsZero())
	})

	t.Run("second close rejected", func(t *testing.T) {
		svc, _, session := open(t)

		_, err := svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("500.00"),
			CloseType:  CloseTypeZ,
		})
		require.NoError(t, err)

		_, err = svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("500.00"),
			CloseType:  CloseTypeZ,
		})
		require.Error(t, err)
	})

	t.Run("close type must be X or Z", func(t *testing.T) {
		svc, _, session := open(t)

		_, err := svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("500.00"),
			CloseType:  CloseType("Y"),
		})
		require.Error(t, err)
	})

	t.Run("negative count rejected", func(t *testing.T) {
		svc, _, session := open(t)

		_, err := svc.Close(ctx, session.ID, CloseInput{
			ActualCash: types.MustMoney("-10.00"),
			CloseType:  CloseTypeX,
		})
		require.Error(t, err)
	})
}

func TestCashCounters(t *testing.T) {
	ctx := testContext()

	t.Run("counter bumps require an open session", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)

		_, err := svc.AddCashSale(ctx, types.MustMoney("10.00"))
		require.Error(t, err)
		assert.True(t, apperror.IsConflict(err))

		_, err = svc.AddCashRefund(ctx, types.MustMoney("10.00"))
		assert.True(t, apperror.IsConflict(err))
	})

	t.Run("amounts must be positive", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)
		_, err := svc.Open(ctx, types.Zero())
		require.NoError(t, err)

		_, err = svc.AddCashSale(ctx, types.MustMoney("-5.00"))
		require.Error(t, err)
		_, err = svc.AddCashSale(ctx, types.Zero())
		require.Error(t, err)
	})
}

func TestAdjust(t *testing.T) {
	ctx := testContext()

	t.Run("records signed entries against the open session", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)
		session, err := svc.Open(ctx, types.MustMoney("500.00"))
		require.NoError(t, err)

		adj, err := svc.Adjust(ctx, types.MustMoney("-200.00"), "cash drop")
		require.NoError(t, err)
		assert.Equal(t, session.ID, adj.SessionID)
		assert.True(t, adj.Amount.Equal(types.MustMoney("-200.00")))

		_, err = svc.Adjust(ctx, types.MustMoney("50.00"), "change run")
		require.NoError(t, err)

		current, err := svc.Current(ctx)
		require.NoError(t, err)
		assert.True(t, current.CashInOut.Equal(types.MustMoney("-150.00")))
	})

	t.Run("motive is required", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)
		_, err := svc.Open(ctx, types.Zero())
		require.NoError(t, err)

		_, err = svc.Adjust(ctx, types.MustMoney("10.00"), "")
		require.Error(t, err)
	})

	t.Run("zero amount rejected", func(t *testing.T) {
		repo := newFakeSessionRepo()
		svc := newTestService(repo)
		_, err := svc.Open(ctx, types.Zero())
		require.NoError(t, err)

		_, err = svc.Adjust(ctx, types.Zero(), "noop")
		require.Error(t, err)
	})
}

func TestAttachSaleIsIdempotent(t *testing.T) {
	ctx := testContext()
	repo := newFakeSessionRepo()
	svc := newTestService(repo)

	session, err := svc.Open(ctx, types.Zero())
	require.NoError(t, err)

	saleID := id.New()
	require.NoError(t, svc.AttachSale(ctx, session.ID, saleID, types.MustMoney("99.00")))
	// Relay delivery is at-least-once; the replay must be a no-op.
	require.NoError(t, svc.AttachSale(ctx, session.ID, saleID, types.MustMoney("99.00")))

	report, err := svc.GetReport(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, report.Sales, 1)
}
