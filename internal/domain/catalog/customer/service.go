package customer

import (
	"context"

	"tpv/internal/core/id"
	"tpv/internal/core/tx"
	"tpv/internal/domain"
)

// Service provides catalog operations for customers.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new customer service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Create validates and persists a new customer.
func (s *Service) Create(ctx context.Context, c *Customer) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
}

// Update modifies an existing customer.
func (s *Service) Update(ctx context.Context, c *Customer) error {
	if err := c.Validate(ctx); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Update(ctx, c)
	})
}

// Get returns a customer by ID.
func (s *Service) Get(ctx context.Context, customerID id.ID) (*Customer, error) {
	return s.repo.GetByID(ctx, customerID)
}

// DefaultCustomerID resolves the walk-in customer used when a sale
// omits an explicit customer.
func (s *Service) DefaultCustomerID(ctx context.Context) (id.ID, error) {
	c, err := s.repo.GetDefault(ctx)
	if err != nil {
		return id.Nil(), err
	}
	return c.ID, nil
}

// List returns customers matching the filter.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Customer], error) {
	return s.repo.List(ctx, filter)
}

// SetDeletionMark soft-deletes or restores a customer.
func (s *Service) SetDeletionMark(ctx context.Context, customerID id.ID, marked bool) error {
	return s.repo.SetDeletionMark(ctx, customerID, marked)
}
