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
	"strings"

	"mercadia/gateway/store"
)

type orderItemView struct {
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unitPrice"`
}

type orderView struct {
	ID           string          `json:"id"`
	CustomerName string          `json:"customerName"`
	Items        []orderItemView `json:"items"`
	Total        float64         `json:"total"`
	Status       string          `json:"status"`
	Date         string          `json:"date"`
}

func toOrderView(o store.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemView{
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return orderView{
		ID:           o.ID,
		CustomerName: o.CustomerName,
		Items:        items,
		Total:        o.Total,
		Status:       o.Status,
		Date:         o.Date.Format("2006-01-02"),
	}
}

type orderPage struct {
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
	Total  int64       `json:"total"`
	Orders []orderView `json:"orders"`
}

// getOrders lists recent orders. Optional "status" and "date" arguments
// narrow the returned page; the date is matched as YYYY-MM-DD.
func (s *Service) getOrders(ctx context.Context, args map[string]interface{}) (*Result, error) {
	p, err := store.NewPagination(argInt(args, "page"), argInt(args, "limit"))
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	orders, total, err := s.orders.List(ctx, p)
	if err != nil {
		return nil, NewInternalError("error al obtener pedidos", err)
	}

	status := strings.ToLower(argString(args, "status"))
	date := argString(args, "date")

	views := make([]orderView, 0, len(orders))
	for _, o := range orders {
		if status != "" && strings.ToLower(o.Status) != status {
			continue
		}
		v := toOrderView(o)
		if date != "" && v.Date != date {
			continue
		}
		views = append(views, v)
	}

	return jsonResult(orderPage{
		Page:   p.Page,
		Limit:  p.Limit,
		Total:  total,
		Orders: views,
	})
}
