package sales

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tpv/internal/core/apperror"
	appctx "tpv/internal/core/context"
	"tpv/internal/core/id"
	"tpv/internal/core/tx"
	"tpv/internal/core/types"
	"tpv/internal/domain"
	"tpv/internal/domain/catalog/product"
	"tpv/internal/domain/ledger"
	"tpv/pkg/logger"
	"tpv/pkg/numerator"
)

var tracer = otel.Tracer("tpv/sales")

// Event names published through the transactional outbox.
const (
	EventSaleCompleted = "sale.completed"
	EventSaleCancelled = "sale.cancelled"
)

// Event is a domain event handed to the outbox inside the sale
// transaction and relayed after commit.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// SaleCompletedPayload carries what the relay needs to attach the sale
// to its cash session, idempotent by sale id.
type SaleCompletedPayload struct {
	SaleID    id.ID       `json:"saleId"`
	SessionID *id.ID      `json:"sessionId,omitempty"`
	Number    string      `json:"number"`
	Total     types.Money `json:"total"`
	Cash      bool        `json:"cash"`
}

// EventPublisher writes events to the outbox within the current transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// StockLedger is the inventory contract the orchestrator drives.
type StockLedger interface {
	Decrement(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error)
	Increment(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error)
	Reserve(ctx context.Context, productID id.ID, qty int64) error
	Release(ctx context.Context, productID id.ID, qty int64) error
	ConsumeReservation(ctx context.Context, productID id.ID, qty int64, reason ledger.MovementReason, ref ledger.Reference) (*ledger.Movement, error)
}

// CashDrawer is the cash session contract for tender bookkeeping.
type CashDrawer interface {
	AddCashSale(ctx context.Context, amount types.Money) (id.ID, error)
	AddCashRefund(ctx context.Context, amount types.Money) (id.ID, error)
}

// ProductCatalog resolves products for line validation and cost snapshots.
type ProductCatalog interface {
	GetByID(ctx context.Context, productID id.ID) (*product.Product, error)
}

// CustomerResolver supplies the walk-in default when a sale omits a customer.
type CustomerResolver interface {
	DefaultCustomerID(ctx context.Context) (id.ID, error)
}

// NumberAllocator hands out sale numbers atomically.
type NumberAllocator interface {
	GetNextNumber(ctx context.Context, cfg numerator.Config, opts *numerator.Options, period time.Time) (string, error)
}

// Config holds orchestrator settings.
type Config struct {
	// TaxRate applied to the discounted base, e.g. 0.16.
	TaxRate types.Money
}

// Service executes the sell use case as one indivisible unit of work
// spanning the stock ledger, the sale aggregate and the cash session.
type Service struct {
	repo      Repository
	stock     StockLedger
	drawer    CashDrawer
	catalog   ProductCatalog
	customers CustomerResolver
	numbers   NumberAllocator
	events    EventPublisher
	txManager tx.Manager
	cfg       Config
}

// NewService creates the sale orchestrator.
func NewService(
	repo Repository,
	stock StockLedger,
	drawer CashDrawer,
	catalog ProductCatalog,
	customers CustomerResolver,
	numbers NumberAllocator,
	events EventPublisher,
	txManager tx.Manager,
	cfg Config,
) *Service {
	return &Service{
		repo:      repo,
		stock:     stock,
		drawer:    drawer,
		catalog:   catalog,
		customers: customers,
		numbers:   numbers,
		events:    events,
		txManager: txManager,
		cfg:       cfg,
	}
}

// Line is one requested sale line.
type Line struct {
	ProductID id.ID
	Quantity  int64
	UnitPrice types.Money
	Discount  types.Money
}

// SellInput is the POS entry point request.
type SellInput struct {
	CustomerID       *id.ID
	PaymentMethod    PaymentMethod
	PaymentReference string
	Lines            []Line
	Notes            string
}

// Sell executes a completed POS sale:
// validate every line, then in a single transaction decrement stock per
// line (any shortfall aborts the whole sale), persist the sale with its
// items and out-movements, bump the open cash session for cash tenders,
// and enqueue the session-attach event. The sale number is allocated
// before the transaction, so an aborted attempt leaves a gap but a retry
// can never reuse a number.
func (s *Service) Sell(ctx context.Context, input SellInput) (*Sale, error) {
	ctx, span := tracer.Start(ctx, "sales.sell",
		trace.WithAttributes(attribute.Int("sale.lines", len(input.Lines))))
	defer span.End()

	sale, err := s.buildSale(ctx, input)
	if err != nil {
		return nil, err
	}
	sale.Status = StatusConfirmed
	sale.PaymentStatus = PaymentStatusCompleted

	number, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("VTA"), nil, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("allocate sale number: %w", err)
	}
	sale.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// All-or-nothing across the whole sale: the first failing line
		// aborts the transaction and every prior decrement rolls back.
		for _, item := range sale.Items {
			if _, err := s.stock.Decrement(ctx, item.ProductID, item.Quantity, ledger.ReasonSale, ledger.SaleRef(sale.ID)); err != nil {
				return err
			}
		}

		if err := s.repo.Create(ctx, sale); err != nil {
			return fmt.Errorf("persist sale: %w", err)
		}

		payload := SaleCompletedPayload{
			SaleID: sale.ID,
			Number: sale.Number,
			Total:  sale.TotalAmount,
			Cash:   sale.IsCash(),
		}
		if sale.IsCash() {
			sessionID, err := s.drawer.AddCashSale(ctx, sale.TotalAmount)
			if err != nil {
				return err
			}
			payload.SessionID = &sessionID
		}

		return s.events.Publish(ctx, Event{
			AggregateType: "Sale",
			AggregateID:   sale.ID,
			EventType:     EventSaleCompleted,
			Payload:       payload,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale completed",
		"sale_id", sale.ID,
		"number", sale.Number,
		"total", sale.TotalAmount.String(),
		"payment_method", string(sale.PaymentMethod),
	)
	return sale, nil
}

// CreateDraft records a pending sale that reserves stock instead of
// shipping it. Used by back-office orders awaiting payment.
func (s *Service) CreateDraft(ctx context.Context, input SellInput) (*Sale, error) {
	sale, err := s.buildSale(ctx, input)
	if err != nil {
		return nil, err
	}

	number, err := s.numbers.GetNextNumber(ctx, numerator.DefaultConfig("VTA"), nil, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("allocate sale number: %w", err)
	}
	sale.Number = number

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, item := range sale.Items {
			if err := s.stock.Reserve(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "draft sale created", "sale_id", sale.ID, "number", sale.Number)
	return sale, nil
}

// Confirm settles a pending sale: its reservations become decrements with
// out-movements, and cash tenders hit the open session.
func (s *Service) Confirm(ctx context.Context, saleID id.ID) (*Sale, error) {
	var sale *Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.repo.GetByID(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.CanTransitionTo(StatusConfirmed) {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				fmt.Sprintf("sale in status %s cannot be confirmed", sale.Status),
			).WithDetail("sale_id", saleID.String())
		}

		for _, item := range sale.Items {
			if _, err := s.stock.ConsumeReservation(ctx, item.ProductID, item.Quantity, ledger.ReasonSale, ledger.SaleRef(sale.ID)); err != nil {
				return err
			}
		}

		ok, err := s.repo.UpdateStatus(ctx, saleID, StatusPending, StatusConfirmed)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewConcurrentModification("sale", saleID.String())
		}
		if err := s.repo.SetPaymentStatus(ctx, saleID, PaymentStatusCompleted); err != nil {
			return err
		}
		sale.Status = StatusConfirmed
		sale.PaymentStatus = PaymentStatusCompleted

		payload := SaleCompletedPayload{
			SaleID: sale.ID,
			Number: sale.Number,
			Total:  sale.TotalAmount,
			Cash:   sale.IsCash(),
		}
		if sale.IsCash() {
			sessionID, err := s.drawer.AddCashSale(ctx, sale.TotalAmount)
			if err != nil {
				return err
			}
			payload.SessionID = &sessionID
		}
		return s.events.Publish(ctx, Event{
			AggregateType: "Sale",
			AggregateID:   sale.ID,
			EventType:     EventSaleCompleted,
			Payload:       payload,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale confirmed", "sale_id", sale.ID, "number", sale.Number)
	return sale, nil
}

// MarkDelivered finishes the happy path.
func (s *Service) MarkDelivered(ctx context.Context, saleID id.ID) error {
	ok, err := s.repo.UpdateStatus(ctx, saleID, StatusConfirmed, StatusDelivered)
	if err != nil {
		return err
	}
	if !ok {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"only confirmed sales can be delivered",
		).WithDetail("sale_id", saleID.String())
	}
	return nil
}

// Cancel voids a sale. A pending sale only releases its reservations; a
// confirmed sale restores stock with in/return movements and, for cash
// tenders, books a refund against the open session.
func (s *Service) Cancel(ctx context.Context, saleID id.ID, reason string) (*Sale, error) {
	ctx, span := tracer.Start(ctx, "sales.cancel")
	defer span.End()

	var sale *Sale
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		sale, err = s.repo.GetByID(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.CanTransitionTo(StatusCancelled) {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				fmt.Sprintf("sale in status %s cannot be cancelled", sale.Status),
			).WithDetail("sale_id", saleID.String())
		}

		from := sale.Status
		switch from {
		case StatusPending:
			// Inventory was only reserved, free it without ledger entries.
			for _, item := range sale.Items {
				if err := s.stock.Release(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
		case StatusConfirmed:
			// Stock already shipped: restore with compensating movements.
			for _, item := range sale.Items {
				if _, err := s.stock.Increment(ctx, item.ProductID, item.Quantity, ledger.ReasonReturn, ledger.SaleRef(sale.ID)); err != nil {
					return err
				}
			}
			if sale.IsCash() && sale.PaymentStatus == PaymentStatusCompleted {
				if _, err := s.drawer.AddCashRefund(ctx, sale.TotalAmount); err != nil {
					// Refund bookkeeping requires an open drawer; without
					// one the cash never left a tracked session, so record
					// the cancellation and leave counters untouched.
					if !apperror.IsConflict(err) {
						return err
					}
					logger.Warn(ctx, "cancelled cash sale with no open session",
						"sale_id", sale.ID, "amount", sale.TotalAmount.String())
				}
			}
		}

		now := time.Now().UTC()
		sale.Status = StatusCancelled
		sale.CancelledAt = &now
		sale.CancelledBy = appctx.GetUserID(ctx)
		sale.CancellationReason = reason
		if sale.PaymentStatus == PaymentStatusCompleted {
			sale.PaymentStatus = PaymentStatusRefunded
		}

		ok, err := s.repo.MarkCancelled(ctx, sale, from)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewConcurrentModification("sale", saleID.String())
		}

		return s.events.Publish(ctx, Event{
			AggregateType: "Sale",
			AggregateID:   sale.ID,
			EventType:     EventSaleCancelled,
			Payload: map[string]any{
				"saleId": sale.ID,
				"number": sale.Number,
				"reason": reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "sale cancelled", "sale_id", sale.ID, "number", sale.Number, "reason", reason)
	return sale, nil
}

// Get loads a sale with items.
func (s *Service) Get(ctx context.Context, saleID id.ID) (*Sale, error) {
	return s.repo.GetByID(ctx, saleID)
}

// GetByNumber loads a sale by its human-facing number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Sale, error) {
	return s.repo.GetByNumber(ctx, number)
}

// List returns sale headers matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Sale], error) {
	return s.repo.List(ctx, filter)
}

// buildSale validates the request and assembles the aggregate with
// price/cost snapshots and computed totals. Rejections here happen
// before any mutation.
func (s *Service) buildSale(ctx context.Context, input SellInput) (*Sale, error) {
	if len(input.Lines) == 0 {
		return nil, apperror.NewValidation("sale requires at least one item")
	}
	if !input.PaymentMethod.Valid() {
		return nil, apperror.NewValidation("unknown payment method").
			WithDetail("payment_method", string(input.PaymentMethod))
	}

	customerID := id.Nil()
	if input.CustomerID != nil && !id.IsNil(*input.CustomerID) {
		customerID = *input.CustomerID
	} else {
		var err error
		customerID, err = s.customers.DefaultCustomerID(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve default customer: %w", err)
		}
	}

	sale := NewSale(customerID, input.PaymentMethod, input.PaymentReference)
	sale.Notes = input.Notes
	sale.CreatedBy = appctx.GetUserID(ctx)
	sale.UpdatedBy = sale.CreatedBy

	for i, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, apperror.NewValidation("item quantity must be positive").
				WithDetail("line", i).WithDetail("quantity", line.Quantity)
		}
		if line.UnitPrice.IsNegative() || line.Discount.IsNegative() {
			return nil, apperror.NewValidation("item amounts must not be negative").
				WithDetail("line", i)
		}

		p, err := s.catalog.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if line.UnitPrice.LessThan(p.CostPrice) {
			return nil, apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"unit price below product cost",
			).WithDetail("line", i).
				WithDetail("product_id", p.ID.String()).
				WithDetail("unit_price", line.UnitPrice.String()).
				WithDetail("cost_price", p.CostPrice.String())
		}

		sale.Items = append(sale.Items, Item{
			ID:          id.New(),
			SaleID:      sale.ID,
			LineNo:      i + 1,
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			UnitCost:    p.CostPrice,
			Discount:    line.Discount,
		})
	}

	sale.ComputeTotals(s.cfg.TaxRate)
	if err := sale.Validate(ctx); err != nil {
		return nil, err
	}
	return sale, nil
}
