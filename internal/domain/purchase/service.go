package purchase

import (
	"context"
	"fmt"
	"time"

	"tpv/internal/core/apperror"
	appctx "tpv/internal/core/context"
	"tpv/internal/core/id"
	"tpv/internal/core/tx"
	"tpv/internal/domain"
	"tpv/internal/domain/ledger"
	"tpv/pkg/logger"
	"tpv/pkg/numerator"
)

// StockLedger is the restock contract driven on receipt.
type StockLedger interface {
	Increment(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error)
}

// NumberAllocator hands out order numbers atomically.
type NumberAllocator interface {
	GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error)
}

// Service manages purchase orders.
type Service struct {
	repo      Repository
	stock     StockLedger
	numbers   NumberAllocator
	txManager tx.Manager
}

// NewService creates a new purchase order service.
func NewService(repo Repository, stock StockLedger, numbers NumberAllocator, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		stock:     stock,
		numbers:   numbers,
		txManager: txManager,
	}
}

// CreateInput is a new purchase order request.
type CreateInput struct {
	SupplierID id.ID
	Lines      []Item
	Notes      string
}

// Create validates and persists a pending order.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Order, error) {
	order := NewOrder(input.SupplierID)
	order.Notes = input.Notes
	order.CreatedBy = appctx.GetUserID(ctx)
	order.UpdatedBy = order.CreatedBy
	for i, line := range input.Lines {
		order.Items = append(order.Items, Item{
			ID:        id.New(),
			OrderID:   order.ID,
			LineNo:    i + 1,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  line.UnitCost,
		})
	}
	order.ComputeTotal()

	if err := order.Validate(ctx); err != nil {
		return nil, err
	}

	number, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("OC"), nil, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}
	order.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order created", "order_id", order.ID, "number", order.Number)
	return order, nil
}

// Receive books the goods into stock: one in/purchase movement per line
// and the status flip, all in a single transaction.
func (s *Service) Receive(ctx context.Context, orderID id.ID) (*Order, error) {
	var order *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				fmt.Sprintf("order in status %s cannot be received", order.Status),
			).WithDetail("order_id", orderID.String())
		}

		for _, item := range order.Items {
			if _, err := s.stock.Increment(ctx, item.ProductID, item.Quantity, ledger.ReasonPurchase, ledger.PurchaseOrderRef(order.ID)); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		order.Status = StatusReceived
		order.ReceivedBy = appctx.GetUserID(ctx)
		order.ReceivedAt = &now
		order.Touch()

		ok, err := s.repo.UpdateStatus(ctx, order, StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewConcurrentModification("purchase order", orderID.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase order received", "order_id", order.ID, "number", order.Number)
	return order, nil
}

// Cancel voids a pending order. Received orders are immutable.
func (s *Service) Cancel(ctx context.Context, orderID id.ID) (*Order, error) {
	var order *Order
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.repo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != StatusPending {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				fmt.Sprintf("order in status %s cannot be cancelled", order.Status),
			).WithDetail("order_id", orderID.String())
		}

		order.Status = StatusCancelled
		order.UpdatedBy = appctx.GetUserID(ctx)
		order.Touch()

		ok, err := s.repo.UpdateStatus(ctx, order, StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewConcurrentModification("purchase order", orderID.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get loads an order with items.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.repo.GetByID(ctx, orderID)
}

// List returns order headers matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}
