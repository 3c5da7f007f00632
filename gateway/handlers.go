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

package gateway

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"mercadia/gateway/tools"
)

// handleHealth reports service health, including whether the upstream LLM
// is configured and how many sessions the guardrail ledger holds.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetSessionStats(r.Context())
	activeSessions := 0
	if err == nil {
		activeSessions = stats.ActiveSessions
	}
	promActiveSessions.Set(float64(activeSessions))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":               "ok",
		"service":              "mercadia-gateway",
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
		"anthropic_configured": s.llm != nil,
		"anthropic_healthy":    s.llm != nil && s.llm.IsHealthy(),
		"guardrails": map[string]interface{}{
			"enabled":        s.engine.Config().Enabled,
			"activeSessions": activeSessions,
		},
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleListTools serves the fixed tool catalog.
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tools": s.registry.List(),
	})
}

// handleCallTool invokes one tool directly, mirroring the dispatch used
// during post-processing.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ToolName  interface{} `json:"toolName"`
		Arguments interface{} `json:"arguments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	call, err := tools.NewCallRequest(body.ToolName, body.Arguments)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.registry.Call(r.Context(), call.ToolName, call.Arguments)
	if err != nil {
		s.metrics.recordToolCall(call.ToolName, false)
		if tools.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.ErrWithCode(sessionIDFrom(r), "", "tool call failed", http.StatusInternalServerError, err, map[string]interface{}{
			"tool": call.ToolName,
		})
		writeError(w, http.StatusInternalServerError, "error interno al ejecutar la herramienta")
		return
	}

	s.metrics.recordToolCall(call.ToolName, true)
	writeJSON(w, http.StatusOK, res)
}

// ============================================================
// Guardrail management endpoints
// ============================================================

func (s *Server) handleGuardrailConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Config())
}

func (s *Server) handleSessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.engine.GetSessionStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error al consultar las sesiones")
		return
	}
	promActiveSessions.Set(float64(stats.ActiveSessions))
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.engine.ResetSession(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "error al reiniciar la sesión")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reset":     true,
		"sessionId": id,
	})
}

func (s *Server) handleCleanExpiredSessions(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.CleanExpiredSessions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "error al limpiar las sesiones")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
	})
}

// jwtMiddleware protects the management endpoints with a bearer token when
// a secret is configured. Without a secret the endpoints stay open, which
// is the expected setup for local development.
func (s *Server) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "token de autorización requerido")
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, "token inválido")
			return
		}

		next.ServeHTTP(w, r)
	})
}
