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

package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"mercadia/gateway/store"
)

// customerView is the whitelisted projection of a customer returned to
// callers. Only contact fields and denormalized location names are exposed.
type customerView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	IsActive     bool   `json:"isActive"`
}

func toCustomerView(c store.Customer) customerView {
	return customerView{
		ID:           c.ID,
		Name:         c.Name,
		Email:        c.Email,
		Phone:        c.Phone,
		Address:      c.Address,
		Neighborhood: c.Neighborhood,
		City:         c.City,
		IsActive:     c.IsActive,
	}
}

func toCustomerViews(customers []store.Customer) []customerView {
	views := make([]customerView, 0, len(customers))
	for _, c := range customers {
		views = append(views, toCustomerView(c))
	}
	return views
}

// customerPage is the serialized payload of the customer listing tools.
type customerPage struct {
	Page      int            `json:"page"`
	Limit     int            `json:"limit"`
	Total     int64          `json:"total"`
	Customers []customerView `json:"customers"`
}

func (s *Service) getCustomers(ctx context.Context, args map[string]interface{}) (*Result, error) {
	p, err := store.NewPagination(argInt(args, "page"), argInt(args, "limit"))
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	customers, total, err := s.customers.List(ctx, p)
	if err != nil {
		return nil, NewInternalError("error al obtener clientes", err)
	}

	return jsonResult(customerPage{
		Page:      p.Page,
		Limit:     p.Limit,
		Total:     total,
		Customers: toCustomerViews(customers),
	})
}

func (s *Service) searchCustomers(ctx context.Context, args map[string]interface{}) (*Result, error) {
	q, err := store.NewCustomerQuery(argString(args, "query"), argInt(args, "page"), argInt(args, "limit"))
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	customers, total, err := s.customers.Search(ctx, q)
	if err != nil {
		return nil, NewInternalError("error al buscar clientes", err)
	}

	return jsonResult(customerPage{
		Page:      q.Page,
		Limit:     q.Limit,
		Total:     total,
		Customers: toCustomerViews(customers),
	})
}

func (s *Service) getCustomerByID(ctx context.Context, args map[string]interface{}) (*Result, error) {
	id := argString(args, "id")
	if id == "" {
		return nil, NewValidationError("ID del cliente es requerido")
	}

	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		// The registry soft-fails this into a "no encontrado" result
		return nil, NewInternalError("error al obtener cliente", err)
	}

	return jsonResult(toCustomerView(*customer))
}

func customerNotFoundMessage(args map[string]interface{}) string {
	return fmt.Sprintf("Cliente con ID '%s' no encontrado", argString(args, "id"))
}

// jsonResult serializes a payload into a single text content block.
func jsonResult(v interface{}) (*Result, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, NewInternalError("error al serializar el resultado", err)
	}
	return NewTextResult(string(data)), nil
}
