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

	"mercadia/gateway/tools"
)

const clarificationMessage = "No entendí qué dato de la tienda necesitás. Podés preguntarme por productos, clientes o pedidos."

// handleChatMessage answers a message with tool data directly, without an
// LLM round trip. It runs the intent classifier on the message and
// executes the first detected tool.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sessionID := sessionIDFrom(r)

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo de la petición inválido")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message es requerido")
		return
	}

	intents := s.classifier.Classify(body.Message)
	if len(intents) == 0 {
		s.metrics.recordRequest("chat", true, false, "", time.Since(start))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"response":  clarificationMessage,
			"toolUsed":  nil,
			"sessionId": sessionID,
		})
		return
	}

	detected := intents[0]
	res, err := s.registry.Call(r.Context(), detected.ToolName, detected.Parameters)
	if err != nil {
		s.metrics.recordToolCall(detected.ToolName, false)
		s.metrics.recordRequest("chat", true, true, "", time.Since(start))
		if tools.IsValidation(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.ErrWithCode(sessionID, "", "chat tool execution failed", http.StatusInternalServerError, err, map[string]interface{}{
			"tool": detected.ToolName,
		})
		writeError(w, http.StatusInternalServerError, "error interno al responder el mensaje")
		return
	}
	s.metrics.recordToolCall(detected.ToolName, true)

	s.audit.Log(&AuditEntry{
		SessionID:      sessionID,
		Endpoint:       "chat",
		Decision:       "allowed",
		MessagePreview: previewOf(body.Message),
		ToolsUsed:      []string{detected.ToolName},
		ResponseTimeMs: time.Since(start).Milliseconds(),
	})
	s.metrics.recordRequest("chat", true, false, "", time.Since(start))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"response":  tools.FormatResult(detected.ToolName, res),
		"toolUsed":  detected.ToolName,
		"sessionId": sessionID,
	})
}
