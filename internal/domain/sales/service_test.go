package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpv/internal/core/apperror"
	"tpv/internal/core/id"
	"tpv/internal/core/types"
	"tpv/internal/domain"
	"tpv/internal/domain/catalog/product"
	"tpv/internal/domain/ledger"
	"tpv/pkg/numerator"
)

type fakeTxManager struct{}

func (fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeSaleRepo struct {
	sales   map[id.ID]*Sale
	created []*Sale
}

func newFakeSaleRepo() *fakeSaleRepo {
	return &fakeSaleRepo{sales: make(map[id.ID]*Sale)}
}

func (r *fakeSaleRepo) Create(ctx context.Context, s *Sale) error {
	r.sales[s.ID] = s
	r.created = append(r.created, s)
	return nil
}

func (r *fakeSaleRepo) GetByID(ctx context.Context, saleID id.ID) (*Sale, error) {
	s, ok := r.sales[saleID]
	if !ok {
		return nil, apperror.NewNotFound("sale", saleID)
	}
	return s, nil
}

func (r *fakeSaleRepo) GetByNumber(ctx context.Context, number string) (*Sale, error) {
	for _, s := range r.sales {
		if s.Number == number {
			return s, nil
		}
	}
	return nil, apperror.NewNotFound("sale", number)
}

func (r *fakeSaleRepo) UpdateStatus(ctx context.Context, saleID id.ID, from, to Status) (bool, error) {
	s, ok := r.sales[saleID]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	return true, nil
}

func (r *fakeSaleRepo) MarkCancelled(ctx context.Context, s *Sale, from Status) (bool, error) {
	stored, ok := r.sales[s.ID]
	if !ok || stored.Status != from && stored.Status != StatusCancelled {
		return false, nil
	}
	r.sales[s.ID] = s
	return true, nil
}

func (r *fakeSaleRepo) SetPaymentStatus(ctx context.Context, saleID id.ID, status PaymentStatus) error {
	if s, ok := r.sales[saleID]; ok {
		s.PaymentStatus = status
	}
	return nil
}

func (r *fakeSaleRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Sale], error) {
	return domain.ListResult[*Sale]{}, nil
}

// fakeStock records ledger calls and can fail per product to exercise
// the all-or-nothing path.
type fakeStock struct {
	failFor    map[id.ID]bool
	decrements []id.ID
	increments []id.ID
	reserved   []id.ID
	released   []id.ID
	consumed   []id.ID
}

func newFakeStock() *fakeStock {
	return &fakeStock{failFor: make(map[id.ID]bool)}
}

func (f *fakeStock) movement(productID id.ID, qty int64, mType ledger.MovementType) *ledger.Movement {
	return &ledger.Movement{ID: id.New(), ProductID: productID, Type: mType, Quantity: qty}
}

func (f *fakeStock) Decrement(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error) {
	if f.failFor[productID] {
		return nil, apperror.NewInsufficientStock(productID.String(), qty, 0)
	}
	f.decrements = append(f.decrements, productID)
	return f.movement(productID, qty, ledger.MovementOut), nil
}

func (f *fakeStock) Increment(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error) {
	f.increments = append(f.increments, productID)
	return f.movement(productID, qty, ledger.MovementIn), nil
}

func (f *fakeStock) Reserve(ctx context.Context, productID id.ID, qty int64) error {
	if f.failFor[productID] {
		return apperror.NewInsufficientStock(productID.String(), qty, 0)
	}
	f.reserved = append(f.reserved, productID)
	return nil
}

func (f *fakeStock) Release(ctx context.Context, productID id.ID, qty int64) error {
	f.released = append(f.released, productID)
	return nil
}

func (f *fakeStock) ConsumeReservation(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error) {
	f.consumed = append(f.consumed, productID)
	return f.movement(productID, qty, ledger.MovementOut), nil
}

type fakeDrawer struct {
	open      bool
	sessionID id.ID
	sales     []types.Money
	refunds   []types.Money
}

func (f *fakeDrawer) AddCashSale(ctx context.Context, amount types.Money) (id.ID, error) {
	if !f.open {
		return id.Nil(), apperror.NewConflict("no open cash session")
	}
	f.sales = append(f.sales, amount)
	return f.sessionID, nil
}

func (f *fakeDrawer) AddCashRefund(ctx context.Context, amount types.Money) (id.ID, error) {
	if !f.open {
		return id.Nil(), apperror.NewConflict("no open cash session")
	}
	f.refunds = append(f.refunds, amount)
	return f.sessionID, nil
}

type fakeCatalog struct {
	products map[id.ID]*product.Product
}

func (f *fakeCatalog) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, apperror.NewNotFound("product", productID)
	}
	return p, nil
}

type fakeCustomers struct {
	defaultID id.ID
}

func (f *fakeCustomers) DefaultCustomerID(ctx context.Context) (id.ID, error) {
	return f.defaultID, nil
}

type fakeNumbers struct {
	next int
}

func (f *fakeNumbers) GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error) {
	f.next++
	return fmt.Sprintf("%s-20250101-%04d", cfg.Prefix, f.next), nil
}

type fakeEvents struct {
	published []Event
}

func (f *fakeEvents) Publish(ctx context.Context, event Event) error {
	f.published = append(f.published, event)
	return nil
}

type fixture struct {
	svc       *Service
	repo      *fakeSaleRepo
	stock     *fakeStock
	drawer    *fakeDrawer
	catalog   *fakeCatalog
	events    *fakeEvents
	productA  *product.Product
	productB  *product.Product
	customers *fakeCustomers
}

func newFixture() *fixture {
	productA := product.New("SKU-A", "Coffee beans 1kg")
	productA.CostPrice = types.MustMoney("8.00")
	productB := product.New("SKU-B", "Paper filters")
	productB.CostPrice = types.MustMoney("1.00")

	f := &fixture{
		repo:      newFakeSaleRepo(),
		stock:     newFakeStock(),
		drawer:    &fakeDrawer{open: true, sessionID: id.New()},
		catalog:   &fakeCatalog{products: map[id.ID]*product.Product{productA.ID: productA, productB.ID: productB}},
		events:    &fakeEvents{},
		customers: &fakeCustomers{defaultID: id.New()},
		productA:  productA,
		productB:  productB,
	}
	f.svc = NewService(
		f.repo, f.stock, f.drawer, f.catalog, f.customers,
		&fakeNumbers{}, f.events, fakeTxManager{},
		Config{TaxRate: types.MustMoney("0.16")},
	)
	return f
}

func (f *fixture) sellInput(method PaymentMethod, lines ...Line) SellInput {
	if len(lines) == 0 {
		lines = []Line{{ProductID: f.productA.ID, Quantity: 2, UnitPrice: types.MustMoney("15.00")}}
	}
	return SellInput{PaymentMethod: method, Lines: lines}
}

func TestSell(t *testing.T) {
	ctx := context.Background()

	t.Run("cash sale completes and bumps the drawer", func(t *testing.T) {
		f := newFixture()

		sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCash))
		require.NoError(t, err)

		assert.Equal(t, StatusConfirmed, sale.Status)
		assert.Equal(t, PaymentStatusCompleted, sale.PaymentStatus)
		assert.Equal(t, "VTA-20250101-0001", sale.Number)
		assert.Equal(t, f.customers.defaultID, sale.CustomerID)

		require.Len(t, f.stock.decrements, 1)
		require.Len(t, f.drawer.sales, 1)
		assert.True(t, f.drawer.sales[0].Equal(sale.TotalAmount))

		require.Len(t, f.events.published, 1)
		event := f.events.published[0]
		assert.Equal(t, EventSaleCompleted, event.EventType)
		payload := event.Payload.(SaleCompletedPayload)
		assert.True(t, payload.Cash)
		require.NotNil(t, payload.SessionID)
		assert.Equal(t, f.drawer.sessionID, *payload.SessionID)
	})

	t.Run("card sale never touches the drawer", func(t *testing.T) {
		f := newFixture()
		f.drawer.open = false

		sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCard))
		require.NoError(t, err)

		assert.Empty(t, f.drawer.sales)
		payload := f.events.published[0].Payload.(SaleCompletedPayload)
		assert.False(t, payload.Cash)
		assert.Nil(t, payload.SessionID)
		assert.Equal(t, StatusConfirmed, sale.Status)
	})

	t.Run("any shortfall aborts the whole sale", func(t *testing.T) {
		f := newFixture()
		f.stock.failFor[f.productB.ID] = true

		input := f.sellInput(PaymentCash,
			Line{ProductID: f.productA.ID, Quantity: 1, UnitPrice: types.MustMoney("15.00")},
			Line{ProductID: f.productB.ID, Quantity: 5, UnitPrice: types.MustMoney("2.00")},
		)

		_, err := f.svc.Sell(ctx, input)
		require.Error(t, err)
		assert.True(t, apperror.IsInsufficientStock(err))

		assert.Empty(t, f.repo.created)
		assert.Empty(t, f.drawer.sales)
		assert.Empty(t, f.events.published)
	})

	t.Run("cash sale requires an open drawer", func(t *testing.T) {
		f := newFixture()
		f.drawer.open = false

		_, err := f.svc.Sell(ctx, f.sellInput(PaymentCash))
		require.Error(t, err)
		assert.True(t, apperror.IsConflict(err))
	})

	t.Run("unit price below cost is rejected before any mutation", func(t *testing.T) {
		f := newFixture()

		input := f.sellInput(PaymentCash,
			Line{ProductID: f.productA.ID, Quantity: 1, UnitPrice: types.MustMoney("7.99")},
		)

		_, err := f.svc.Sell(ctx, input)
		require.Error(t, err)
		assert.Empty(t, f.stock.decrements)
		assert.Empty(t, f.repo.created)
	})

	t.Run("explicit customer wins over the default", func(t *testing.T) {
		f := newFixture()
		customerID := id.New()

		input := f.sellInput(PaymentCash)
		input.CustomerID = &customerID

		sale, err := f.svc.Sell(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, customerID, sale.CustomerID)
	})

	t.Run("unknown tender rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.Sell(ctx, f.sellInput(PaymentMethod("iou")))
		require.Error(t, err)
	})
}

func TestDraftLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("draft reserves without shipping", func(t *testing.T) {
		f := newFixture()

		sale, err := f.svc.CreateDraft(ctx, f.sellInput(PaymentCard))
		require.NoError(t, err)

		assert.Equal(t, StatusPending, sale.Status)
		assert.Equal(t, PaymentStatusPending, sale.PaymentStatus)
		require.Len(t, f.stock.reserved, 1)
		assert.Empty(t, f.stock.decrements)
		assert.Empty(t, f.events.published)
	})

	t.Run("confirm consumes the reservations", func(t *testing.T) {
		f := newFixture()

		draft, err := f.svc.CreateDraft(ctx, f.sellInput(PaymentCash))
		require.NoError(t, err)

		confirmed, err := f.svc.Confirm(ctx, draft.ID)
		require.NoError(t, err)

		assert.Equal(t, StatusConfirmed, confirmed.Status)
		assert.Equal(t, PaymentStatusCompleted, confirmed.PaymentStatus)
		require.Len(t, f.stock.consumed, 1)
		require.Len(t, f.drawer.sales, 1)
		require.Len(t, f.events.published, 1)
	})

	t.Run("confirm rejects a delivered sale", func(t *testing.T) {
		f := newFixture()

		sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCard))
		require.NoError(t, err)
		require.NoError(t, f.svc.MarkDelivered(ctx, sale.ID))

		_, err = f.svc.Confirm(ctx, sale.ID)
		require.Error(t, err)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("pending sale only releases reservations", func(t *testing.T) {
		f := newFixture()

		draft, err := f.svc.CreateDraft(ctx, f.sellInput(PaymentCash))
		require.NoError(t, err)

		cancelled, err := f.svc.Cancel(ctx, draft.ID, "customer walked away")
		require.NoError(t, err)

		assert.Equal(t, StatusCancelled, cancelled.Status)
		require.Len(t, f.stock.released, 1)
		assert.Empty(t, f.stock.increments)
		assert.Empty(t, f.drawer.refunds)
	})

	t.Run("confirmed cash sale restores stock and refunds", func(t *testing.T) {
		f := newFixture()

		sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCash))
		require.NoError(t, err)

		cancelled, err := f.svc.Cancel(ctx, sale.ID, "defective item")
		require.NoError(t, err)

		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Equal(t, PaymentStatusRefunded, cancelled.PaymentStatus)
		assert.Equal(t, "defective item", cancelled.CancellationReason)
		require.Len(t, f.stock.increments, 1)
		require.Len(t, f.drawer.refunds, 1)
		assert.True(t, f.drawer.refunds[0].Equal(sale.TotalAmount))
	})

	t.Run("refund with closed drawer does not block the cancellation", func(t *testing.T) {
		f := newFixture()

		sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCash))
		require.NoError(t, err)

		f.drawer.open = false

		cancelled, err := f.svc.Cancel(ctx, sale.ID, "returned next day")
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, cancelled.Status)
		assert.Empty(t, f.drawer.refunds)
		require.Len(t, f.stock.increments, 1)
	})

	t.Run("delivered sale cannot be cancelled", func(t *testing.T) {
		f := newFixture()

		sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCard))
		require.NoError(t, err)
		require.NoError(t, f.svc.MarkDelivered(ctx, sale.ID))

		_, err = f.svc.Cancel(ctx, sale.ID, "too late")
		require.Error(t, err)
	})
}

func TestNumbersAreNeverReused(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.stock.failFor[f.productA.ID] = true

	// A failed sale burns its number.
	_, err := f.svc.Sell(ctx, f.sellInput(PaymentCash))
	require.Error(t, err)

	f.stock.failFor[f.productA.ID] = false
	sale, err := f.svc.Sell(ctx, f.sellInput(PaymentCash))
	require.NoError(t, err)
	assert.Equal(t, "VTA-20250101-0002", sale.Number)
}
