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
	"strings"
	"sync"

	"mercadia/gateway/store"
)

const (
	searchPageSize   = 5
	searchMaxMatches = 5
)

var defaultSearchEntities = []string{"products", "customers"}

// searchDatabase runs a cross-entity lookup: each requested entity is
// fetched concurrently and filtered by a case-insensitive substring match.
// Entities that fail contribute an error entry instead of aborting the
// whole search; unrecognized entity names are ignored.
func (s *Service) searchDatabase(ctx context.Context, args map[string]interface{}) (*Result, error) {
	query := strings.TrimSpace(argString(args, "query"))
	if query == "" {
		return nil, NewValidationError("el término de búsqueda es requerido")
	}

	entities, ok := argStringSlice(args, "entities")
	if !ok {
		entities = defaultSearchEntities
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		products  []productView
		customers []customerView
		errs      []string
	)

	needle := strings.ToLower(query)
	page := store.Pagination{Page: store.DefaultPage, Limit: searchPageSize}

	// each entity kind is fetched at most once
	seen := make(map[string]bool, len(entities))
	for _, entity := range entities {
		if seen[entity] {
			continue
		}
		seen[entity] = true
		switch entity {
		case "products":
			wg.Add(1)
			go func() {
				defer wg.Done()
				found, _, err := s.products.List(ctx, page)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Sprintf("products: %v", err))
					return
				}
				for _, p := range found {
					if len(products) >= searchMaxMatches {
						break
					}
					if strings.Contains(strings.ToLower(p.Name), needle) ||
						strings.Contains(strings.ToLower(p.Description), needle) {
						products = append(products, toProductView(p))
					}
				}
			}()
		case "customers":
			wg.Add(1)
			go func() {
				defer wg.Done()
				found, _, err := s.customers.List(ctx, page)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, fmt.Sprintf("customers: %v", err))
					return
				}
				for _, c := range found {
					if len(customers) >= searchMaxMatches {
						break
					}
					if strings.Contains(strings.ToLower(c.Name), needle) ||
						strings.Contains(strings.ToLower(c.Email), needle) {
						customers = append(customers, toCustomerView(c))
					}
				}
			}()
		}
	}
	wg.Wait()

	payload := map[string]interface{}{}
	if len(products) > 0 {
		payload["products"] = products
	}
	if len(customers) > 0 {
		payload["customers"] = customers
	}
	if len(errs) > 0 {
		payload["errors"] = errs
	}

	return jsonResult(payload)
}
