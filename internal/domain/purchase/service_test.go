package purchase

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
	"tpv/internal/domain/ledger"
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

type fakeOrderRepo struct {
	orders map[id.ID]*Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[id.ID]*Order)}
}

func (r *fakeOrderRepo) Create(ctx context.Context, o *Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, apperror.NewNotFound("purchase order", orderID)
	}
	return o, nil
}

func (r *fakeOrderRepo) UpdateStatus(ctx context.Context, o *Order, from Status) (bool, error) {
	stored, ok := r.orders[o.ID]
	if !ok {
		return false, apperror.NewNotFound("purchase order", o.ID)
	}
	if stored.Status != from && stored.Status != o.Status {
		return false, nil
	}
	r.orders[o.ID] = o
	return true, nil
}

func (r *fakeOrderRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Order], error) {
	return domain.ListResult[*Order]{}, nil
}

type increment struct {
	productID id.ID
	qty       int64
	reason    ledger.MovementReason
	ref       ledger.Reference
}

type fakeStock struct {
	increments []increment
	failFor    map[id.ID]bool
}

func (f *fakeStock) Increment(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error) {
	if f.failFor[productID] {
		return nil, apperror.NewValidation("product not found")
	}
	f.increments = append(f.increments, increment{productID, qty, reason, ref})
	return &ledger.Movement{ID: id.New()}, nil
}

func testContext() context.Context {
	return appctx.WithUser(context.Background(), &appctx.UserContext{
		UserID: id.New().String(),
		Email:  "buyer@example.com",
	})
}

func newFixture() (*Service, *fakeOrderRepo, *fakeStock) {
	repo := newFakeOrderRepo()
	stock := &fakeStock{failFor: make(map[id.ID]bool)}
	svc := NewService(repo, stock, &fakeNumbers{}, fakeTxManager{})
	return svc, repo, stock
}

func TestCreate(t *testing.T) {
	ctx := testContext()

	t.Run("numbers lines and computes the total", func(t *testing.T) {
		svc, _, _ := newFixture()

		order, err := svc.Create(ctx, CreateInput{
			SupplierID: id.New(),
			Lines: []Item{
				{ProductID: id.New(), Quantity: 10, UnitCost: types.MustMoney("8.50")},
				{ProductID: id.New(), Quantity: 3, UnitCost: types.MustMoney("2.00")},
			},
			Notes: "weekly restock",
		})
		require.NoError(t, err)

		assert.Equal(t, "OC-20250101-0001", order.Number)
		assert.Equal(t, StatusPending, order.Status)
		assert.Equal(t, 1, order.Items[0].LineNo)
		assert.Equal(t, 2, order.Items[1].LineNo)
		// 10*8.50 + 3*2.00 = 91.00
		assert.True(t, order.TotalCost.Equal(types.MustMoney("91.00")), "total %s", order.TotalCost)
		assert.NotEmpty(t, order.CreatedBy)
	})

	t.Run("requires at least one line", func(t *testing.T) {
		svc, _, _ := newFixture()

		_, err := svc.Create(ctx, CreateInput{SupplierID: id.New()})
		require.Error(t, err)
	})

	t.Run("rejects non-positive quantities", func(t *testing.T) {
		svc, _, _ := newFixture()

		_, err := svc.Create(ctx, CreateInput{
			SupplierID: id.New(),
			Lines:      []Item{{ProductID: id.New(), Quantity: 0, UnitCost: types.MustMoney("1.00")}},
		})
		require.Error(t, err)
	})

	t.Run("rejects negative cost", func(t *testing.T) {
		svc, _, _ := newFixture()

		_, err := svc.Create(ctx, CreateInput{
			SupplierID: id.New(),
			Lines:      []Item{{ProductID: id.New(), Quantity: 1, UnitCost: types.MustMoney("-0.01")}},
		})
		require.Error(t, err)
	})
}

func TestReceive(t *testing.T) {
	ctx := testContext()

	create := func(t *testing.T, svc *Service, lines ...Item) *Order {
		order, err := svc.Create(ctx, CreateInput{SupplierID: id.New(), Lines: lines})
		require.NoError(t, err)
		return order
	}

	t.Run("books one in movement per line", func(t *testing.T) {
		svc, _, stock := newFixture()
		productA, productB := id.New(), id.New()
		order := create(t, svc,
			Item{ProductID: productA, Quantity: 10, UnitCost: types.MustMoney("8.50")},
			Item{ProductID: productB, Quantity: 3, UnitCost: types.MustMoney("2.00")},
		)

		received, err := svc.Receive(ctx, order.ID)
		require.NoError(t, err)

		assert.Equal(t, StatusReceived, received.Status)
		require.NotNil(t, received.ReceivedAt)
		assert.NotEmpty(t, received.ReceivedBy)

		require.Len(t, stock.increments, 2)
		assert.Equal(t, productA, stock.increments[0].productID)
		assert.Equal(t, int64(10), stock.increments[0].qty)
		assert.Equal(t, ledger.ReasonPurchase, stock.increments[0].reason)
		assert.Equal(t, ledger.RefPurchaseOrder, stock.increments[0].ref.Kind)
		assert.Equal(t, order.ID, stock.increments[0].ref.ID)
		assert.Equal(t, int64(3), stock.increments[1].qty)
	})

	t.Run("received order cannot be received again", func(t *testing.T) {
		svc, _, stock := newFixture()
		order := create(t, svc, Item{ProductID: id.New(), Quantity: 1, UnitCost: types.MustMoney("1.00")})

		_, err := svc.Receive(ctx, order.ID)
		require.NoError(t, err)

		_, err = svc.Receive(ctx, order.ID)
		require.Error(t, err)
		assert.Len(t, stock.increments, 1)
	})

	t.Run("ledger failure aborts the receipt", func(t *testing.T) {
		svc, repo, stock := newFixture()
		badProduct := id.New()
		stock.failFor[badProduct] = true
		order := create(t, svc, Item{ProductID: badProduct, Quantity: 1, UnitCost: types.MustMoney("1.00")})

		_, err := svc.Receive(ctx, order.ID)
		require.Error(t, err)

		stored, err := repo.GetByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, stored.Status)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		svc, _, _ := newFixture()

		_, err := svc.Receive(ctx, id.New())
		assert.True(t, apperror.IsNotFound(err))
	})
}

func TestCancel(t *testing.T) {
	ctx := testContext()

	t.Run("pending order can be cancelled", func(t *testing.T) {
		svc, _, stock := newFixture()
		order, err := svc.Create(ctx, CreateInput{
			SupplierID: id.New(),
			Lines:      []Item{{ProductID: id.New(), Quantity: 1, UnitCost: types.MustMoney("1.00")}},
		})
		require.NoError(t, err)

		cancelled, err := svc.Cancel(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Empty(t, stock.increments)
	})

	t.Run("received order is immutable", func(t *testing.T) {
		svc, _, _ := newFixture()
		order, err := svc.Create(ctx, CreateInput{
			SupplierID: id.New(),
			Lines:      []Item{{ProductID: id.New(), Quantity: 1, UnitCost: types.MustMoney("1.00")}},
		})
		require.NoError(t, err)

		_, err = svc.Receive(ctx, order.ID)
		require.NoError(t, err)

		_, err = svc.Cancel(ctx, order.ID)
		require.Error(t, err)
	})
}
