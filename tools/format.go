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
	"encoding/json"
	"fmt"
	"strings"
)

// FormatResult renders a tool result as user-facing Spanish text. Results
// whose payload is not the expected JSON shape (for example a soft-fail
// "no encontrado" message) are passed through unchanged.
func FormatResult(toolName string, res *Result) string {
	text := res.Text()

	switch toolName {
	case "get_products", "search_products":
		var page productPage
		if err := json.Unmarshal([]byte(text), &page); err != nil {
			return text
		}
		return formatProductPage(page)
	case "get_customers", "search_customers":
		var page customerPage
		if err := json.Unmarshal([]byte(text), &page); err != nil {
			return text
		}
		return formatCustomerPage(page)
	case "get_orders":
		var page orderPage
		if err := json.Unmarshal([]byte(text), &page); err != nil {
			return text
		}
		return formatOrderPage(page)
	case "get_product_by_id":
		var view productView
		if err := json.Unmarshal([]byte(text), &view); err != nil || view.ID == "" {
			return text
		}
		return formatProductDetail(view)
	case "get_customer_by_id":
		var view customerView
		if err := json.Unmarshal([]byte(text), &view); err != nil || view.ID == "" {
			return text
		}
		return formatCustomerDetail(view)
	case "search_database":
		return formatSearchResults(text)
	default:
		return text
	}
}

func formatProductPage(page productPage) string {
	if len(page.Products) == 0 {
		return "No encontré productos que coincidan con tu consulta."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d producto(s) (total: %d):\n", len(page.Products), page.Total)
	for _, p := range page.Products {
		fmt.Fprintf(&b, "• %s: $%.2f", p.Name, p.Price)
		if p.Stock > 0 {
			fmt.Fprintf(&b, " (stock: %d)", p.Stock)
		} else {
			b.WriteString(" (sin stock)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatProductDetail(p productView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: $%.2f", p.Name, p.Price)
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s", p.Description)
	}
	if p.Category != "" {
		fmt.Fprintf(&b, "\nCategoría: %s", p.Category)
	}
	if p.Stock > 0 {
		fmt.Fprintf(&b, "\nStock disponible: %d", p.Stock)
	} else {
		b.WriteString("\nSin stock por el momento")
	}
	return b.String()
}

func formatCustomerPage(page customerPage) string {
	if len(page.Customers) == 0 {
		return "No encontré clientes que coincidan con tu consulta."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d cliente(s) (total: %d):\n", len(page.Customers), page.Total)
	for _, c := range page.Customers {
		fmt.Fprintf(&b, "• %s", c.Name)
		if c.Email != "" {
			fmt.Fprintf(&b, " (%s)", c.Email)
		}
		if c.City != "" {
			fmt.Fprintf(&b, " - %s", c.City)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCustomerDetail(c customerView) string {
	var b strings.Builder
	b.WriteString(c.Name)
	if c.Email != "" {
		fmt.Fprintf(&b, "\nEmail: %s", c.Email)
	}
	if c.Phone != "" {
		fmt.Fprintf(&b, "\nTeléfono: %s", c.Phone)
	}
	if c.Address != "" {
		fmt.Fprintf(&b, "\nDirección: %s", c.Address)
		if c.Neighborhood != "" {
			fmt.Fprintf(&b, ", %s", c.Neighborhood)
		}
		if c.City != "" {
			fmt.Fprintf(&b, ", %s", c.City)
		}
	}
	return b.String()
}

func formatOrderPage(page orderPage) string {
	if len(page.Orders) == 0 {
		return "No encontré pedidos que coincidan con tu consulta."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Encontré %d pedido(s) (total: %d):\n", len(page.Orders), page.Total)
	for _, o := range page.Orders {
		fmt.Fprintf(&b, "• %s - %s: $%.2f (%s)\n", o.Date, o.CustomerName, o.Total, o.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSearchResults(text string) string {
	var payload struct {
		Products  []productView  `json:"products"`
		Customers []customerView `json:"customers"`
		Errors    []string       `json:"errors"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return text
	}
	if len(payload.Products) == 0 && len(payload.Customers) == 0 {
		return "No encontré resultados para tu búsqueda."
	}

	var b strings.Builder
	b.WriteString("Esto es lo que encontré:")
	for _, p := range payload.Products {
		fmt.Fprintf(&b, "\n• Producto: %s ($%.2f)", p.Name, p.Price)
	}
	for _, c := range payload.Customers {
		fmt.Fprintf(&b, "\n• Cliente: %s", c.Name)
	}
	return b.String()
}
