// Copyright 2025 Mercadia
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store defines the downstream data collaborators consumed by the
// tool layer: customer, product and order lookups. Business entities are
// owned elsewhere; only these read operations are exposed to the gateway.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by the by-id lookups when no entity matches.
var ErrNotFound = errors.New("entity not found")

// Customer is the projection of a customer the gateway works with.
// Neighborhood and city carry denormalized names, not foreign keys.
type Customer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	IsActive     bool   `json:"isActive"`
}

// Product is the projection of a product the gateway works with.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	IsActive    bool    `json:"isActive"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Order is the projection of a sale order the gateway works with.
type Order struct {
	ID           string      `json:"id"`
	CustomerName string      `json:"customerName"`
	Items        []OrderItem `json:"items"`
	Total        float64     `json:"total"`
	Status       string      `json:"status"`
	Date         time.Time   `json:"date"`
}

// Pagination normalizes page/limit inputs for the list operations.
type Pagination struct {
	Page  int
	Limit int
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// NewPagination validates and normalizes pagination parameters. Zero values
// take the defaults; negative values are rejected.
func NewPagination(page, limit int) (Pagination, error) {
	if page < 0 {
		return Pagination{}, fmt.Errorf("page must be a positive number, got %d", page)
	}
	if limit < 0 {
		return Pagination{}, fmt.Errorf("limit must be a positive number, got %d", limit)
	}
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Pagination{Page: page, Limit: limit}, nil
}

// Offset returns the number of records to skip for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// CustomerQuery is a validated keyword/field search over customers.
type CustomerQuery struct {
	Pagination
	Term string // matched against name and email, case-insensitive
}

// NewCustomerQuery builds a customer search query. The term is required.
func NewCustomerQuery(term string, page, limit int) (CustomerQuery, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return CustomerQuery{}, errors.New("el término de búsqueda es requerido")
	}
	p, err := NewPagination(page, limit)
	if err != nil {
		return CustomerQuery{}, err
	}
	return CustomerQuery{Pagination: p, Term: term}, nil
}

// ProductQuery is a validated keyword search over products.
type ProductQuery struct {
	Pagination
	Term string // matched against name and description, case-insensitive
}

// NewProductQuery builds a product search query. The term is required.
func NewProductQuery(term string, page, limit int) (ProductQuery, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return ProductQuery{}, errors.New("el término de búsqueda es requerido")
	}
	p, err := NewPagination(page, limit)
	if err != nil {
		return ProductQuery{}, err
	}
	return ProductQuery{Pagination: p, Term: term}, nil
}

// CustomerStore exposes the customer collaborator.
type CustomerStore interface {
	List(ctx context.Context, p Pagination) ([]Customer, int64, error)
	GetByID(ctx context.Context, id string) (*Customer, error)
	Search(ctx context.Context, q CustomerQuery) ([]Customer, int64, error)
}

// ProductStore exposes the product collaborator.
type ProductStore interface {
	List(ctx context.Context, p Pagination) ([]Product, int64, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Search(ctx context.Context, q ProductQuery) ([]Product, int64, error)
}

// OrderStore exposes the order collaborator. Orders only support paginated
// listing; there is no by-id or search operation downstream.
type OrderStore interface {
	List(ctx context.Context, p Pagination) ([]Order, int64, error)
}
