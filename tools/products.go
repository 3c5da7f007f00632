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
	"fmt"

	"mercadia/gateway/store"
)

type productView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Unit        string  `json:"unit"`
	IsActive    bool    `json:"isActive"`
}

func toProductView(p store.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		Unit:        p.Unit,
		IsActive:    p.IsActive,
	}
}

func toProductViews(products []store.Product) []productView {
	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, toProductView(p))
	}
	return views
}

type productPage struct {
	Page     int           `json:"page"`
	Limit    int           `json:"limit"`
	Total    int64         `json:"total"`
	Products []productView `json:"products"`
}

func (s *Service) getProducts(ctx context.Context, args map[string]interface{}) (*Result, error) {
	p, err := store.NewPagination(argInt(args, "page"), argInt(args, "limit"))
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	products, total, err := s.products.List(ctx, p)
	if err != nil {
		return nil, NewInternalError("error al obtener productos", err)
	}

	return jsonResult(productPage{
		Page:     p.Page,
		Limit:    p.Limit,
		Total:    total,
		Products: toProductViews(products),
	})
}

func (s *Service) searchProducts(ctx context.Context, args map[string]interface{}) (*Result, error) {
	q, err := store.NewProductQuery(argString(args, "query"), argInt(args, "page"), argInt(args, "limit"))
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	products, total, err := s.products.Search(ctx, q)
	if err != nil {
		return nil, NewInternalError("error al buscar productos", err)
	}

	return jsonResult(productPage{
		Page:     q.Page,
		Limit:    q.Limit,
		Total:    total,
		Products: toProductViews(products),
	})
}

func (s *Service) getProductByID(ctx context.Context, args map[string]interface{}) (*Result, error) {
	id := argString(args, "id")
	if id == "" {
		return nil, NewValidationError("ID del producto es requerido")
	}

	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, NewInternalError("error al obtener producto", err)
	}

	return jsonResult(toProductView(*product))
}

func productNotFoundMessage(args map[string]interface{}) string {
	return fmt.Sprintf("Producto con ID '%s' no encontrado", argString(args, "id"))
}
