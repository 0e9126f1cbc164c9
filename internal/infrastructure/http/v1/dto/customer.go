package dto

import (
	"tpv/internal/domain/catalog/customer"
)

// --- Request DTOs ---

// CreateCustomerRequest is the request body for creating a customer.
type CreateCustomerRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
}

// ToEntity converts DTO to domain entity.
func (r *CreateCustomerRequest) ToEntity() *customer.Customer {
	c := customer.New(r.Name)
	c.Email = r.Email
	c.Phone = r.Phone
	c.IsDefault = r.IsDefault
	return c
}

// UpdateCustomerRequest is the request body for updating a customer.
type UpdateCustomerRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"omitempty,email"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"isDefault"`
	Version   int    `json:"version" binding:"required"`
}

// ApplyTo applies update DTO to existing entity.
func (r *UpdateCustomerRequest) ApplyTo(c *customer.Customer) {
	c.Name = r.Name
	c.Email = r.Email
	c.Phone = r.Phone
	c.IsDefault = r.IsDefault
	c.Version = r.Version
}

// --- Response DTOs ---

// CustomerResponse is the response body for a customer.
type CustomerResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	IsDefault    bool   `json:"isDefault"`
	DeletionMark bool   `json:"deletionMark"`
	Version      int    `json:"version"`
}

// FromCustomer creates response DTO from domain entity.
func FromCustomer(c *customer.Customer) *CustomerResponse {
	return &CustomerResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		IsDefault:    c.IsDefault,
		DeletionMark: c.DeletionMark,
		Version:      c.Version,
	}
}

// FromCustomers maps a slice of customers to response DTOs.
func FromCustomers(items []*customer.Customer) []*CustomerResponse {
	out := make([]*CustomerResponse, len(items))
	for i, c := range items {
		out[i] = FromCustomer(c)
	}
	return out
}
