// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"tpv/internal/core/id"
	"tpv/internal/domain"
)

// --- List query ---

// ListQuery contains common list parameters.
type ListQuery struct {
	Search         string     `form:"search"`
	Status         string     `form:"status"`
	DateFrom       *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo         *time.Time `form:"dateTo" time_format:"2006-01-02"`
	IncludeDeleted bool       `form:"includeDeleted"`
	OrderBy        string     `form:"orderBy"`
	Limit          int        `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset         int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query into a domain list filter. OrderBy is left
// empty unless given so each repository applies its own default ordering.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.ListFilter{
		Search:         q.Search,
		Status:         q.Status,
		DateFrom:       q.DateFrom,
		DateTo:         q.DateTo,
		IncludeDeleted: q.IncludeDeleted,
		OrderBy:        q.OrderBy,
		Limit:          50,
		Offset:         q.Offset,
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	return f
}

// --- List Response ---

// ListResponse wraps list results with pagination.
type ListResponse struct {
	Items      any   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}

// NewListResponse builds a ListResponse from mapped items and a domain result.
func NewListResponse[T any](items any, result domain.ListResult[T]) ListResponse {
	return ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID string `json:"id"`
}

// NewIDResponse creates ID response.
func NewIDResponse(i id.ID) IDResponse {
	return IDResponse{ID: i.String()}
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// --- Deletion ---

type SetDeletionMarkRequest struct {
	Marked bool `json:"marked"`
}
