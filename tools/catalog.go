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
	"mercadia/gateway/store"
)

// Service binds the tool handlers to their backing stores.
type Service struct {
	customers store.CustomerStore
	products  store.ProductStore
	orders    store.OrderStore
}

func NewService(customers store.CustomerStore, products store.ProductStore, orders store.OrderStore) *Service {
	return &Service{
		customers: customers,
		products:  products,
		orders:    orders,
	}
}

var paginationProperties = map[string]Property{
	"page":  {Type: "integer", Description: "Número de página (desde 1)"},
	"limit": {Type: "integer", Description: "Cantidad de resultados por página (máximo 100)"},
}

func withPagination(extra map[string]Property) map[string]Property {
	props := make(map[string]Property, len(extra)+len(paginationProperties))
	for k, v := range paginationProperties {
		props[k] = v
	}
	for k, v := range extra {
		props[k] = v
	}
	return props
}

// Catalog builds the fixed tool registry served to the LLM and to the
// direct tool-call endpoint.
func Catalog(svc *Service) (*Registry, error) {
	r := NewRegistry()

	type registration struct {
		descriptor Descriptor
		handler    Handler
		softFail   bool
		notFound   NotFoundMessage
	}

	registrations := []registration{
		{
			descriptor: Descriptor{
				Name:        "get_customers",
				Description: "Obtiene la lista paginada de clientes registrados",
				InputSchema: InputSchema{
					Type:       "object",
					Properties: withPagination(nil),
				},
			},
			handler: svc.getCustomers,
		},
		{
			descriptor: Descriptor{
				Name:        "search_customers",
				Description: "Busca clientes por nombre o email",
				InputSchema: InputSchema{
					Type: "object",
					Properties: withPagination(map[string]Property{
						"query": {Type: "string", Description: "Término de búsqueda (nombre o email)"},
					}),
					Required: []string{"query"},
				},
			},
			handler: svc.searchCustomers,
		},
		{
			descriptor: Descriptor{
				Name:        "get_customer_by_id",
				Description: "Obtiene un cliente por su ID",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"id": {Type: "string", Description: "ID del cliente"},
					},
					Required: []string{"id"},
				},
			},
			handler:  svc.getCustomerByID,
			softFail: true,
			notFound: customerNotFoundMessage,
		},
		{
			descriptor: Descriptor{
				Name:        "get_products",
				Description: "Obtiene la lista paginada de productos del catálogo",
				InputSchema: InputSchema{
					Type:       "object",
					Properties: withPagination(nil),
				},
			},
			handler: svc.getProducts,
		},
		{
			descriptor: Descriptor{
				Name:        "search_products",
				Description: "Busca productos por nombre o descripción",
				InputSchema: InputSchema{
					Type: "object",
					Properties: withPagination(map[string]Property{
						"query": {Type: "string", Description: "Término de búsqueda (nombre o descripción)"},
					}),
					Required: []string{"query"},
				},
			},
			handler: svc.searchProducts,
		},
		{
			descriptor: Descriptor{
				Name:        "get_product_by_id",
				Description: "Obtiene un producto por su ID",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"id": {Type: "string", Description: "ID del producto"},
					},
					Required: []string{"id"},
				},
			},
			handler:  svc.getProductByID,
			softFail: true,
			notFound: productNotFoundMessage,
		},
		{
			descriptor: Descriptor{
				Name:        "get_orders",
				Description: "Obtiene la lista paginada de pedidos recientes",
				InputSchema: InputSchema{
					Type: "object",
					Properties: withPagination(map[string]Property{
						"status": {Type: "string", Description: "Filtra por estado del pedido"},
						"date":   {Type: "string", Description: "Filtra por fecha (YYYY-MM-DD)"},
					}),
				},
			},
			handler: svc.getOrders,
		},
		{
			descriptor: Descriptor{
				Name:        "search_database",
				Description: "Busca un término en varias entidades de la base de datos a la vez",
				InputSchema: InputSchema{
					Type: "object",
					Properties: map[string]Property{
						"query": {Type: "string", Description: "Término de búsqueda"},
						"entities": {
							Type:        "array",
							Description: "Entidades a consultar: products, customers",
						},
					},
					Required: []string{"query"},
				},
			},
			handler: svc.searchDatabase,
		},
	}

	for _, reg := range registrations {
		var err error
		if reg.softFail {
			err = r.RegisterSoftFail(reg.descriptor, reg.handler, reg.notFound)
		} else {
			err = r.Register(reg.descriptor, reg.handler)
		}
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}
