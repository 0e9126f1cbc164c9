package ledger

import (
	"context"
	"fmt"
	"time"

	"tpv/internal/core/apperror"
	appctx "tpv/internal/core/context"
	"tpv/internal/core/id"
	"tpv/internal/core/tx"
	"tpv/internal/domain"
	"tpv/pkg/logger"
)

// Service is the single point of truth for inventory counters.
// It guarantees no operation can drive stock negative or violate the
// reserved-within-stock bound, and pairs every counter change with a
// movement record written in the same transaction.
type Service struct {
	repo      Repository
	txManager tx.ReadOnlyManager
}

// NewService creates a new stock ledger service.
func NewService(repo Repository, txManager tx.ReadOnlyManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Decrement conditionally removes qty units, failing with a typed
// insufficient-stock rejection when availability is too low. The guard
// and the decrement are one atomic statement, so two concurrent callers
// competing for the last units cannot both succeed.
func (s *Service) Decrement(ctx context.Context, productID id.ID, qty int64, reason MovementReason, ref Reference) (*Movement, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	var movement *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		snap, ok, err := s.repo.DecrementIfAvailable(ctx, productID, qty)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if !ok {
			return s.insufficient(ctx, productID, qty)
		}

		movement, err = s.recordMovement(ctx, productID, MovementOut, qty, reason, ref, "", snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// Increment adds qty units unconditionally (restocks, returns, rollback
// compensation) and appends the paired in-movement.
func (s *Service) Increment(ctx context.Context, productID id.ID, qty int64, reason MovementReason, ref Reference) (*Movement, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	var movement *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		snap, err := s.repo.Increment(ctx, productID, qty)
		if err != nil {
			return fmt.Errorf("increment stock: %w", err)
		}

		movement, err = s.recordMovement(ctx, productID, MovementIn, qty, reason, ref, "", snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// Reserve earmarks qty units without reducing on-hand stock.
// Reserving beyond availability fails without mutation. Reservations are
// not ledger events; no movement is written.
func (s *Service) Reserve(ctx context.Context, productID id.ID, qty int64) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, ok, err := s.repo.Reserve(ctx, productID, qty)
		if err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if !ok {
			return s.insufficient(ctx, productID, qty)
		}
		logger.Debug(ctx, "stock reserved", "product_id", productID, "quantity", qty)
		return nil
	})
}

// Release frees previously reserved units. Releasing more than is
// reserved fails without mutation.
func (s *Service) Release(ctx context.Context, productID id.ID, qty int64) error {
	if qty <= 0 {
		return apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		_, ok, err := s.repo.Release(ctx, productID, qty)
		if err != nil {
			return fmt.Errorf("release stock: %w", err)
		}
		if !ok {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"release exceeds reserved quantity",
			).WithDetail("product_id", productID.String()).WithDetail("quantity", qty)
		}
		logger.Debug(ctx, "stock released", "product_id", productID, "quantity", qty)
		return nil
	})
}

// ConsumeReservation converts a reservation into a shipment: stock and
// reserved both drop by qty in one atomic statement, with the paired
// out-movement.
func (s *Service) ConsumeReservation(ctx context.Context, productID id.ID, qty int64, reason MovementReason, ref Reference) (*Movement, error) {
	if qty <= 0 {
		return nil, apperror.NewValidation("quantity must be positive").WithDetail("quantity", qty)
	}

	var movement *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		snap, ok, err := s.repo.ConsumeReservation(ctx, productID, qty)
		if err != nil {
			return fmt.Errorf("consume reservation: %w", err)
		}
		if !ok {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"reservation smaller than requested quantity",
			).WithDetail("product_id", productID.String()).WithDetail("quantity", qty)
		}

		movement, err = s.recordMovement(ctx, productID, MovementOut, qty, reason, ref, "", snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// Adjust overwrites the on-hand count (cycle count, damage write-off) and
// records an adjustment movement carrying both snapshots.
func (s *Service) Adjust(ctx context.Context, productID id.ID, newQty int64, reason MovementReason, note string, ref Reference) (*Movement, error) {
	if newQty < 0 {
		return nil, apperror.NewValidation("stock cannot be negative").WithDetail("quantity", newQty)
	}
	switch reason {
	case ReasonManual, ReasonDamaged, ReasonExpired:
	default:
		return nil, apperror.NewValidation("adjustment reason must be manual, damaged or expired").
			WithDetail("reason", string(reason))
	}

	var movement *Movement
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		snap, ok, err := s.repo.SetStock(ctx, productID, newQty)
		if err != nil {
			return fmt.Errorf("set stock: %w", err)
		}
		if !ok {
			return apperror.NewBusinessRule(
				apperror.CodeBusinessRule,
				"adjusted stock cannot fall below reserved quantity",
			).WithDetail("product_id", productID.String()).WithDetail("new_quantity", newQty)
		}
		if snap.NewStock == snap.PreviousStock {
			// No delta, nothing to record.
			return nil
		}

		qty := snap.NewStock - snap.PreviousStock
		if qty < 0 {
			qty = -qty
		}
		movement, err = s.recordMovement(ctx, productID, MovementAdjustment, qty, reason, ref, note, snap)
		return err
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// CurrentStock replays the movement log for a product, independent of the
// live counter. Used for reconciliation, not the hot path.
func (s *Service) CurrentStock(ctx context.Context, productID id.ID) (int64, error) {
	var replayed int64
	err := s.txManager.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		replayed, err = s.repo.ReplayStock(ctx, productID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("replay stock: %w", err)
	}
	return replayed, nil
}

// History returns the ordered movement trail for a product.
func (s *Service) History(ctx context.Context, productID id.ID, filter domain.ListFilter) (domain.ListResult[*Movement], error) {
	return s.repo.ListMovements(ctx, productID, filter)
}

// AnnotateMovement edits a movement note, the only mutable field of a
// ledger entry.
func (s *Service) AnnotateMovement(ctx context.Context, movementID id.ID, note string) error {
	return s.repo.UpdateMovementNote(ctx, movementID, note)
}

// recordMovement appends the ledger entry paired with a counter mutation.
// Internal only: exposing a bare movement insert would allow orphaned
// entries that no counter change backs.
func (s *Service) recordMovement(ctx context.Context, productID id.ID, mType MovementType, qty int64, reason MovementReason, ref Reference, note string, snap *CounterSnapshot) (*Movement, error) {
	movement := &Movement{
		ID:                 id.New(),
		ProductID:          productID,
		Type:               mType,
		Quantity:           qty,
		Reason:             reason,
		PreviousStock:      snap.PreviousStock,
		NewStock:           snap.NewStock,
		ReservedAtMovement: snap.Reserved,
		UnitCostAtMovement: snap.UnitCost,
		Note:               note,
		CreatedBy:          appctx.GetUserID(ctx),
		CreatedAt:          time.Now().UTC(),
	}
	movement.SetReference(ref)

	if err := movement.Validate(ctx); err != nil {
		return nil, err
	}
	if err := s.repo.InsertMovements(ctx, []*Movement{movement}); err != nil {
		return nil, fmt.Errorf("insert movement: %w", err)
	}

	logger.Debug(ctx, "stock movement recorded",
		"product_id", productID,
		"type", string(mType),
		"quantity", qty,
		"reason", string(reason),
	)
	return movement, nil
}

// insufficient builds the typed shortage rejection with current
// availability attached for the client.
func (s *Service) insufficient(ctx context.Context, productID id.ID, qty int64) error {
	stock, reserved, err := s.repo.Counters(ctx, productID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return err
		}
		return apperror.NewInsufficientStock(productID.String(), qty, 0).WithCause(err)
	}
	return apperror.NewInsufficientStock(productID.String(), qty, stock-reserved)
}
