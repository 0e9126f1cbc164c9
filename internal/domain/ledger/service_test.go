package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (fakeTxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeRepo keeps one product's counters in memory and applies the same
// guards the SQL statements enforce. The mutex stands in for the row-level
// atomicity of the conditional UPDATEs.
type fakeRepo struct {
	mu        sync.Mutex
	productID id.ID
	stock     int64
	reserved  int64
	unitCost  types.Money
	movements []*Movement
}

func newFakeRepo(stock, reserved int64) *fakeRepo {
	return &fakeRepo{
		productID: id.New(),
		stock:     stock,
		reserved:  reserved,
		unitCost:  types.MustMoney("10.00"),
	}
}

func (r *fakeRepo) snapshot(prev int64) *CounterSnapshot {
	return &CounterSnapshot{
		PreviousStock: prev,
		NewStock:      r.stock,
		Reserved:      r.reserved,
		UnitCost:      r.unitCost,
	}
}

func (r *fakeRepo) DecrementIfAvailable(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stock-r.reserved < qty {
		return nil, false, nil
	}
	prev := r.stock
	r.stock -= qty
	return r.snapshot(prev), true, nil
}

func (r *fakeRepo) Increment(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.stock
	r.stock += qty
	return r.snapshot(prev), nil
}

func (r *fakeRepo) Reserve(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stock-r.reserved < qty {
		return nil, false, nil
	}
	prev := r.stock
	r.reserved += qty
	return r.snapshot(prev), true, nil
}

func (r *fakeRepo) Release(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved < qty {
		return nil, false, nil
	}
	prev := r.stock
	r.reserved -= qty
	return r.snapshot(prev), true, nil
}

func (r *fakeRepo) ConsumeReservation(ctx context.Context, productID id.ID, qty int64) (*CounterSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reserved < qty {
		return nil, false, nil
	}
	prev := r.stock
	r.stock -= qty
	r.reserved -= qty
	return r.snapshot(prev), true, nil
}

func (r *fakeRepo) SetStock(ctx context.Context, productID id.ID, newQty int64) (*CounterSnapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if newQty < r.reserved {
		return nil, false, nil
	}
	prev := r.stock
	r.stock = newQty
	return r.snapshot(prev), true, nil
}

func (r *fakeRepo) Counters(ctx context.Context, productID id.ID) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock, r.reserved, nil
}

func (r *fakeRepo) InsertMovements(ctx context.Context, movements []*Movement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *fakeRepo) ListMovements(ctx context.Context, productID id.ID, filter domain.ListFilter) (domain.ListResult[*Movement], error) {
	return domain.ListResult[*Movement]{Items: r.movements, TotalCount: int64(len(r.movements))}, nil
}

func (r *fakeRepo) ReplayStock(ctx context.Context, productID id.ID) (int64, error) {
	var total int64
	for _, m := range r.movements {
		total += m.SignedQuantity()
	}
	return total, nil
}

func (r *fakeRepo) UpdateMovementNote(ctx context.Context, movementID id.ID, note string) error {
	for _, m := range r.movements {
		if m.ID == movementID {
			m.Note = note
			return nil
		}
	}
	return apperror.NewNotFound("movement", movementID)
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, fakeTxManager{})
}

func TestDecrement(t *testing.T) {
	ctx := context.Background()

	t.Run("records paired out movement", func(t *testing.T) {
		repo := newFakeRepo(10, 0)
		svc := newTestService(repo)

		m, err := svc.Decrement(ctx, repo.productID, 3, ReasonSale, Reference{})
		require.NoError(t, err)
		require.NotNil(t, m)

		assert.Equal(t, MovementOut, m.Type)
		assert.Equal(t, int64(3), m.Quantity)
		assert.Equal(t, int64(10), m.PreviousStock)
		assert.Equal(t, int64(7), m.NewStock)
		assert.Equal(t, int64(7), repo.stock)
		require.Len(t, repo.movements, 1)
	})

	t.Run("insufficient stock is a typed rejection", func(t *testing.T) {
		repo := newFakeRepo(5, 0)
		svc := newTestService(repo)

		_, err := svc.Decrement(ctx, repo.productID, 6, ReasonSale, Reference{})
		require.Error(t, err)
		assert.True(t, apperror.IsInsufficientStock(err))
		// Nothing moved, nothing recorded.
		assert.Equal(t, int64(5), repo.stock)
		assert.Empty(t, repo.movements)
	})

	t.Run("reservations reduce availability", func(t *testing.T) {
		repo := newFakeRepo(10, 8)
		svc := newTestService(repo)

		_, err := svc.Decrement(ctx, repo.productID, 3, ReasonSale, Reference{})
		assert.True(t, apperror.IsInsufficientStock(err))
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		repo := newFakeRepo(10, 0)
		svc := newTestService(repo)

		_, err := svc.Decrement(ctx, repo.productID, 0, ReasonSale, Reference{})
		require.Error(t, err)
	})
}

func TestConcurrentDecrementsAdmitExactlyOne(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(10, 0)
	svc := newTestService(repo)

	// Combined demand exceeds availability: the guard must admit one
	// decrement and reject the other, never both.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Decrement(ctx, repo.productID, 10, ReasonSale, Reference{})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.IsInsufficientStock(err):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, int64(0), repo.stock)
	require.Len(t, repo.movements, 1)
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(2, 0)
	svc := newTestService(repo)

	m, err := svc.Increment(ctx, repo.productID, 5, ReasonPurchase, PurchaseOrderRef(id.New()))
	require.NoError(t, err)

	assert.Equal(t, MovementIn, m.Type)
	assert.Equal(t, int64(2), m.PreviousStock)
	assert.Equal(t, int64(7), m.NewStock)
	require.NotNil(t, m.ReferenceKind)
	assert.Equal(t, RefPurchaseOrder, *m.ReferenceKind)
	assert.Equal(t, int64(7), repo.stock)
}

func TestReserveReleaseConsume(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(10, 0)
	svc := newTestService(repo)

	require.NoError(t, svc.Reserve(ctx, repo.productID, 4))
	assert.Equal(t, int64(4), repo.reserved)
	assert.Equal(t, int64(10), repo.stock)
	// Reservations are bookkeeping, not ledger events.
	assert.Empty(t, repo.movements)

	err := svc.Reserve(ctx, repo.productID, 7)
	assert.True(t, apperror.IsInsufficientStock(err))

	require.NoError(t, svc.Release(ctx, repo.productID, 1))
	assert.Equal(t, int64(3), repo.reserved)

	err = svc.Release(ctx, repo.productID, 5)
	require.Error(t, err)
	assert.Equal(t, int64(3), repo.reserved)

	m, err := svc.ConsumeReservation(ctx, repo.productID, 3, ReasonSale, Reference{})
	require.NoError(t, err)
	assert.Equal(t, MovementOut, m.Type)
	assert.Equal(t, int64(7), repo.stock)
	assert.Equal(t, int64(0), repo.reserved)

	_, err = svc.ConsumeReservation(ctx, repo.productID, 1, ReasonSale, Reference{})
	require.Error(t, err)
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()

	t.Run("records adjustment with both snapshots", func(t *testing.T) {
		repo := newFakeRepo(10, 0)
		svc := newTestService(repo)

		m, err := svc.Adjust(ctx, repo.productID, 4, ReasonManual, "cycle count", Reference{})
		require.NoError(t, err)
		require.NotNil(t, m)

		assert.Equal(t, MovementAdjustment, m.Type)
		assert.Equal(t, int64(6), m.Quantity)
		assert.Equal(t, int64(10), m.PreviousStock)
		assert.Equal(t, int64(4), m.NewStock)
		assert.Equal(t, "cycle count", m.Note)
		assert.Equal(t, int64(4), repo.stock)
	})

	t.Run("no delta means no movement", func(t *testing.T) {
		repo := newFakeRepo(10, 0)
		svc := newTestService(repo)

		m, err := svc.Adjust(ctx, repo.productID, 10, ReasonManual, "", Reference{})
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Empty(t, repo.movements)
	})

	t.Run("cannot fall below reserved", func(t *testing.T) {
		repo := newFakeRepo(10, 5)
		svc := newTestService(repo)

		_, err := svc.Adjust(ctx, repo.productID, 3, ReasonDamaged, "", Reference{})
		require.Error(t, err)
		assert.Equal(t, int64(10), repo.stock)
	})

	t.Run("negative target rejected", func(t *testing.T) {
		repo := newFakeRepo(10, 0)
		svc := newTestService(repo)

		_, err := svc.Adjust(ctx, repo.productID, -1, ReasonManual, "", Reference{})
		require.Error(t, err)
	})

	t.Run("sale is not an adjustment reason", func(t *testing.T) {
		repo := newFakeRepo(10, 0)
		svc := newTestService(repo)

		_, err := svc.Adjust(ctx, repo.productID, 4, ReasonSale, "", Reference{})
		require.Error(t, err)
	})
}

func TestCurrentStockReplaysMovements(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(0, 0)
	svc := newTestService(repo)

	_, err := svc.Increment(ctx, repo.productID, 10, ReasonPurchase, Reference{})
	require.NoError(t, err)
	_, err = svc.Decrement(ctx, repo.productID, 4, ReasonSale, Reference{})
	require.NoError(t, err)
	_, err = svc.Adjust(ctx, repo.productID, 5, ReasonDamaged, "breakage", Reference{})
	require.NoError(t, err)

	replayed, err := svc.CurrentStock(ctx, repo.productID)
	require.NoError(t, err)
	assert.Equal(t, repo.stock, replayed)
	assert.Equal(t, int64(5), replayed)
}

func TestAnnotateMovement(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(10, 0)
	svc := newTestService(repo)

	m, err := svc.Decrement(ctx, repo.productID, 1, ReasonSale, Reference{})
	require.NoError(t, err)

	require.NoError(t, svc.AnnotateMovement(ctx, m.ID, "till 3"))
	assert.Equal(t, "till 3", repo.movements[0].Note)

	err = svc.AnnotateMovement(ctx, id.New(), "x")
	assert.True(t, apperror.IsNotFound(err))
}
