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

// Package tools exposes the gateway's fixed catalog of internal
// data-retrieval tools behind a uniform dispatch contract. Tool inputs are
// described with JSON-schema-shaped descriptors so an LLM (or a direct API
// caller) can discover and invoke them.
package tools

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies tool failures for the HTTP layer.
type ErrorKind string

const (
	// KindValidation marks bad input: malformed call requests, missing
	// required arguments, unknown tool names.
	KindValidation ErrorKind = "validation"
	// KindNotFound marks a downstream miss on a by-id lookup.
	KindNotFound ErrorKind = "not_found"
	// KindInternal marks any other downstream failure.
	KindInternal ErrorKind = "internal"
)

// Error is the tool layer's error type.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a bad-input error with a caller-facing message.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NewInternalError wraps an unexpected downstream failure.
func NewInternalError(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Cause: cause}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == KindValidation
}

// Descriptor describes one tool in the catalog.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema is the JSON-schema shape of a tool's arguments. The top-level
// type is always "object".
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes a single argument.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// CallRequest is a validated request to invoke a named tool.
type CallRequest struct {
	ToolName  string
	Arguments map[string]interface{}
}

// NewCallRequest is the validating factory for tool call requests. The tool
// name must be a non-blank string; arguments, when present, must be an
// object. Argument values are kept as decoded JSON.
func NewCallRequest(name interface{}, args interface{}) (*CallRequest, error) {
	nameStr, ok := name.(string)
	if !ok {
		return nil, NewValidationError(fmt.Sprintf("el nombre de la herramienta debe ser un string, se recibió %T", name))
	}
	nameStr = strings.TrimSpace(nameStr)
	if nameStr == "" {
		return nil, NewValidationError("el nombre de la herramienta es requerido")
	}

	var argMap map[string]interface{}
	switch a := args.(type) {
	case nil:
		argMap = map[string]interface{}{}
	case map[string]interface{}:
		argMap = a
	default:
		return nil, NewValidationError(fmt.Sprintf("los argumentos deben ser un objeto, se recibió %T", args))
	}

	return &CallRequest{ToolName: nameStr, Arguments: argMap}, nil
}

// Content block types for tool results.
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeResource = "resource"
)

// ContentBlock is a tagged unit of tool output. Every current tool returns
// exactly one text block holding a serialized payload.
type ContentBlock struct {
	Type string      `json:"type"`
	Text string      `json:"text,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// Result is the uniform envelope returned by every tool call.
type Result struct {
	Content []ContentBlock `json:"content"`
}

// NewTextResult wraps a serialized payload in a single text content block.
func NewTextResult(text string) *Result {
	return &Result{Content: []ContentBlock{{Type: ContentTypeText, Text: text}}}
}

// Text returns the concatenated text blocks of the result.
func (r *Result) Text() string {
	var b strings.Builder
	for _, block := range r.Content {
		if block.Type == ContentTypeText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// Argument accessors. Tool arguments arrive as decoded JSON, so numbers are
// float64 and everything is loosely typed.

func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func argStringSlice(args map[string]interface{}, key string) ([]string, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
