package product

import (
	"context"
	"fmt"

	"tpv/internal/core/id"
	"tpv/internal/core/tx"
	"tpv/internal/domain"
	"tpv/pkg/logger"
)

// Service provides catalog operations for products.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new product service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create validates and persists a new product.
func (s *Service) Create(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		logger.Info(ctx, "product created", "product_id", p.ID, "sku", p.SKU)
		return nil
	})
}

// Update modifies catalog fields of an existing product.
// Stock counters on the incoming value are ignored; only the ledger moves them.
func (s *Service) Update(ctx context.Context, p *Product) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, p); err != nil {
			return fmt.Errorf("update product: %w", err)
		}
		return nil
	})
}

// Get returns a product by ID.
func (s *Service) Get(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// GetBySKU returns a product by its SKU.
func (s *Service) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return s.repo.GetBySKU(ctx, sku)
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	return s.repo.List(ctx, filter)
}

// SetDeletionMark soft-deletes or restores a product.
func (s *Service) SetDeletionMark(ctx context.Context, productID id.ID, marked bool) error {
	return s.repo.SetDeletionMark(ctx, productID, marked)
}
