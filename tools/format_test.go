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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercadia/gateway/store"
)

func TestFormatResult_ProductListing(t *testing.T) {
	products := &stubProductStore{products: []store.Product{
		{ID: "p1", Name: "Pizza Muzzarella", Price: 12.5, Stock: 4},
		{ID: "p2", Name: "Empanadas", Price: 1.2, Stock: 0},
	}}
	r := testCatalog(t, nil, products, nil)

	res, err := r.Call(context.Background(), "get_products", nil)
	require.NoError(t, err)

	text := FormatResult("get_products", res)
	assert.Contains(t, text, "Pizza Muzzarella")
	assert.Contains(t, text, "$12.50")
	assert.Contains(t, text, "stock: 4")
	assert.Contains(t, text, "sin stock")
}

func TestFormatResult_EmptyListing(t *testing.T) {
	r := testCatalog(t, nil, nil, nil)

	res, err := r.Call(context.Background(), "get_products", nil)
	require.NoError(t, err)
	assert.Contains(t, FormatResult("get_products", res), "No encontré productos")
}

func TestFormatResult_CustomerDetail(t *testing.T) {
	customers := &stubCustomerStore{customers: []store.Customer{
		{ID: "c1", Name: "Ana Pérez", Email: "ana@example.com", Phone: "351-555-0101"},
	}}
	r := testCatalog(t, customers, nil, nil)

	res, err := r.Call(context.Background(), "get_customer_by_id", map[string]interface{}{"id": "c1"})
	require.NoError(t, err)

	text := FormatResult("get_customer_by_id", res)
	assert.Contains(t, text, "Ana Pérez")
	assert.Contains(t, text, "ana@example.com")
}

func TestFormatResult_SoftFailTextPassesThrough(t *testing.T) {
	r := testCatalog(t, &stubCustomerStore{}, nil, nil)

	res, err := r.Call(context.Background(), "get_customer_by_id", map[string]interface{}{"id": "x1"})
	require.NoError(t, err)

	text := FormatResult("get_customer_by_id", res)
	assert.Contains(t, text, "no encontrado")
}

func TestFormatResult_SearchDatabase(t *testing.T) {
	products := &stubProductStore{products: []store.Product{{ID: "p1", Name: "Pizza", Price: 10}}}
	r := testCatalog(t, nil, products, nil)

	res, err := r.Call(context.Background(), "search_database", map[string]interface{}{"query": "pizza"})
	require.NoError(t, err)
	assert.Contains(t, FormatResult("search_database", res), "Producto: Pizza")

	empty, err := r.Call(context.Background(), "search_database", map[string]interface{}{
		"query":    "pizza",
		"entities": []interface{}{},
	})
	require.NoError(t, err)
	assert.Contains(t, FormatResult("search_database", empty), "No encontré resultados")
}

func TestFormatResult_UnknownToolPassesThrough(t *testing.T) {
	res := NewTextResult("texto crudo")
	assert.Equal(t, "texto crudo", FormatResult("otra_cosa", res))
}
