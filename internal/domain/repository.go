// Package domain provides shared business-layer types.
package domain

import (
	"time"

	"tpv/internal/core/id"
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search performs text search on searchable fields
	Search string

	// IDs filters by specific IDs
	IDs []id.ID

	// Status filters by document status when applicable
	Status string

	// DateFrom/DateTo bound the business date (inclusive)
	DateFrom *time.Time
	DateTo   *time.Time

	// IncludeDeleted includes soft-deleted records
	IncludeDeleted bool

	// OrderBy specifies sorting (e.g., "created_at", "-created_at")
	OrderBy string

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
