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
	"log"
	"os"
	"sync"
)

// Handler executes one tool call against its downstream collaborator.
type Handler func(ctx context.Context, args map[string]interface{}) (*Result, error)

// NotFoundMessage renders the soft-fail text for a by-id miss.
type NotFoundMessage func(args map[string]interface{}) string

// entry couples a descriptor with its handler and failure semantics.
type entry struct {
	descriptor Descriptor
	handler    Handler

	// softFailNotFound converts any non-validation handler failure into a
	// successful result carrying a human-readable "not found" message, so a
	// calling LLM always receives parseable content instead of a transport
	// error.
	softFailNotFound bool
	notFoundMessage  NotFoundMessage
}

// Registry holds the fixed, immutable tool catalog and dispatches calls by
// exact name match. Thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	logger  *log.Logger
}

// NewRegistry creates an empty registry. Use Register to populate it; the
// catalog is expected to be fixed after startup.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		logger:  log.New(os.Stdout, "[TOOLS] ", log.LstdFlags),
	}
}

// Register adds a tool to the catalog. Names are unique: registering a
// duplicate returns an error so catalog defects surface at startup instead of
// shadowing a handler.
func (r *Registry) Register(d Descriptor, h Handler) error {
	return r.register(d, h, false, nil)
}

// RegisterSoftFail adds a by-id lookup tool whose downstream failures are
// converted into successful "not found" results.
func (r *Registry) RegisterSoftFail(d Descriptor, h Handler, notFound NotFoundMessage) error {
	return r.register(d, h, true, notFound)
}

func (r *Registry) register(d Descriptor, h Handler, softFail bool, notFound NotFoundMessage) error {
	if d.Name == "" {
		return fmt.Errorf("tool descriptor requires a name")
	}
	if h == nil {
		return fmt.Errorf("tool %q requires a handler", d.Name)
	}
	if softFail && notFound == nil {
		return fmt.Errorf("soft-fail tool %q requires a not-found message", d.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}

	r.entries[d.Name] = &entry{
		descriptor:       d,
		handler:          h,
		softFailNotFound: softFail,
		notFoundMessage:  notFound,
	}
	r.order = append(r.order, d.Name)

	return nil
}

// List returns the catalog in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].descriptor)
	}
	return out
}

// Has reports whether a tool with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// Call dispatches a tool invocation by exact name match. Unknown names and
// argument validation problems surface as validation errors; for soft-fail
// tools every other failure becomes a successful not-found result.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (*Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, NewValidationError(fmt.Sprintf("herramienta desconocida: %s", name))
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := e.handler(ctx, args)
	if err != nil {
		if e.softFailNotFound && !IsValidation(err) {
			r.logger.Printf("Tool %s soft-failed: %v", name, err)
			return NewTextResult(e.notFoundMessage(args)), nil
		}
		return nil, err
	}

	return result, nil
}
