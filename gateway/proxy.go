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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"mercadia/gateway/gateway/llm/anthropic"
)

const upstreamTimeout = 30 * time.Second

// rejectionSuggestions accompany a guardrail rejection so chat clients can
// offer the user a way forward.
var rejectionSuggestions = []string{
	"Consultá por los productos del catálogo",
	"Preguntá por el estado de un pedido",
	"Buscá un cliente por nombre o email",
}

// handleAnthropicProxy is the main entry point: validate, run guardrails,
// forward upstream, post-process.
func (s *Server) handleAnthropicProxy(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := sessionIDFrom(r)

	var req anthropic.MessagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}

	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "model es requerido")
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages es requerido")
		return
	}
	if !anthropic.IsValidModel(req.Model) {
		writeError(w, http.StatusBadRequest, "modelo no soportado: "+req.Model)
		return
	}
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "el servicio de LLM no está configurado")
		return
	}

	result, err := s.engine.ValidateAndProcessRequest(r.Context(), &req, sessionID)
	if err != nil {
		s.log.ErrWithCode(sessionID, "", "guardrail validation failed", http.StatusInternalServerError, err, nil)
		s.metrics.recordRequest("anthropic", true, true, "", time.Since(start))
		writeError(w, http.StatusInternalServerError, "error interno del gateway")
		return
	}

	if !result.Allowed {
		s.metrics.recordRequest("anthropic", false, false, result.Reason, time.Since(start))
		s.audit.Log(&AuditEntry{
			SessionID:      sessionID,
			Endpoint:       "anthropic",
			Model:          req.Model,
			Decision:       "blocked",
			Reason:         result.Reason,
			MessagePreview: previewOf(req.LastUserText()),
			ResponseTimeMs: time.Since(start).Milliseconds(),
		})
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"error":       "solicitud rechazada por las políticas del gateway",
			"reason":      result.Reason,
			"message":     result.SuggestedResponse,
			"suggestions": rejectionSuggestions,
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	resp, err := s.llm.CreateMessage(ctx, result.ModifiedRequest)
	if err != nil {
		s.metrics.recordLLMCall(false)
		s.metrics.recordRequest("anthropic", true, true, "", time.Since(start))
		s.audit.Log(&AuditEntry{
			SessionID:      sessionID,
			Endpoint:       "anthropic",
			Model:          req.Model,
			Decision:       "error",
			MessagePreview: previewOf(req.LastUserText()),
			ResponseTimeMs: time.Since(start).Milliseconds(),
			ErrorMessage:   err.Error(),
		})

		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			writeJSON(w, apiErr.StatusCode, map[string]interface{}{
				"error": apiErr.Message,
				"type":  apiErr.Type,
			})
			return
		}
		writeError(w, http.StatusBadGateway, "error al contactar el servicio de LLM")
		return
	}
	s.metrics.recordLLMCall(true)

	processed := s.processor.Process(r.Context(), resp, req.Messages, sessionID)
	if len(result.Warnings) > 0 {
		processed.Guardrails["warnings"] = result.Warnings
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.OutputTokens
	}
	toolsUsed, _ := processed.Guardrails["toolsUsed"].([]string)
	s.audit.Log(&AuditEntry{
		SessionID:      sessionID,
		Endpoint:       "anthropic",
		Model:          req.Model,
		Decision:       "allowed",
		MessagePreview: previewOf(req.LastUserText()),
		ToolsUsed:      toolsUsed,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		TokensUsed:     tokens,
	})

	s.metrics.recordRequest("anthropic", true, false, "", time.Since(start))
	writeJSON(w, http.StatusOK, processed)
}
