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

// Package gateway assembles the HTTP surface of the Mercadia Gateway: the
// guardrailed Anthropic proxy, the direct chat endpoint, the tool catalog
// and the guardrail management API.
package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mercadia/gateway/gateway/llm/anthropic"
	"mercadia/gateway/guardrails"
	"mercadia/gateway/intent"
	"mercadia/gateway/shared/logger"
	"mercadia/gateway/tools"
)

// LLMClient is the upstream surface the proxy needs, satisfied by
// *anthropic.Client and by fakes in tests.
type LLMClient interface {
	CreateMessage(ctx context.Context, req *anthropic.MessagesRequest) (*anthropic.MessagesResponse, error)
	IsHealthy() bool
}

// Server holds every collaborator of the HTTP handlers.
type Server struct {
	engine     *guardrails.Engine
	classifier *intent.Classifier
	registry   *tools.Registry
	llm        LLMClient
	processor  *Processor
	metrics    *Metrics
	audit      *AuditLogger
	jwtSecret  []byte
	log        *logger.Logger
}

// NewServer wires the handler dependencies. llm may be nil when no API
// key is configured; the proxy endpoint then answers 503.
func NewServer(engine *guardrails.Engine, registry *tools.Registry, llm LLMClient, audit *AuditLogger, jwtSecret string) *Server {
	classifier := intent.NewClassifier()
	metrics := NewMetrics()
	return &Server{
		engine:     engine,
		classifier: classifier,
		registry:   registry,
		llm:        llm,
		processor:  NewProcessor(classifier, registry, metrics),
		metrics:    metrics,
		audit:      audit,
		jwtSecret:  []byte(jwtSecret),
		log:        logger.New("gateway"),
	}
}

// Router builds the gorilla/mux router with every gateway route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")
	r.Handle("/prometheus", promhttp.Handler()).Methods("GET")

	r.HandleFunc("/anthropic", s.handleAnthropicProxy).Methods("POST")
	r.HandleFunc("/chat", s.handleChatMessage).Methods("POST")

	r.HandleFunc("/api/v1/tools", s.handleListTools).Methods("GET")
	r.HandleFunc("/api/v1/tools/call", s.handleCallTool).Methods("POST")

	admin := r.PathPrefix("/api/v1/guardrails").Subrouter()
	admin.Use(s.jwtMiddleware)
	admin.HandleFunc("/config", s.handleGuardrailConfig).Methods("GET")
	admin.HandleFunc("/sessions", s.handleSessionStats).Methods("GET")
	admin.HandleFunc("/sessions/{id}", s.handleResetSession).Methods("DELETE")
	admin.HandleFunc("/sessions/expired", s.handleCleanExpiredSessions).Methods("POST")

	return r
}

// sessionIDFrom derives the session key: explicit header, then the caller
// address, then a generated fallback.
func sessionIDFrom(r *http.Request) string {
	if id := r.Header.Get("X-Session-Id"); id != "" {
		return id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "anon-" + uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": message})
}
