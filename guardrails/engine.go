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

package guardrails

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mercadia/gateway/gateway/llm/anthropic"
	"mercadia/gateway/shared/logger"
)

// Rejection reason codes. These are stable machine-readable identifiers
// surfaced to clients alongside a canned human-facing message.
const (
	ReasonSessionMessageLimit = "session_message_limit"
	ReasonSessionTimeLimit    = "session_time_limit"
	ReasonBlockedContent      = "blocked_content"
	ReasonNoBusinessContent   = "no_business_content"
	ReasonToolsRequired       = "tools_required"
	ReasonUnauthorizedTool    = "unauthorized_tool"
)

// Result is the outcome of validating one request.
type Result struct {
	Allowed           bool                       `json:"allowed"`
	Reason            string                     `json:"reason,omitempty"`
	SuggestedResponse string                     `json:"suggestedResponse,omitempty"`
	Detail            string                     `json:"detail,omitempty"`
	Warnings          []string                   `json:"warnings,omitempty"`
	ModifiedRequest   *anthropic.MessagesRequest `json:"-"`
}

// SessionInfo is one entry of a session stats snapshot.
type SessionInfo struct {
	ID              string  `json:"id"`
	MessageCount    int     `json:"messageCount"`
	DurationMinutes float64 `json:"durationMinutes"`
	LastActivity    string  `json:"lastActivity"`
}

// SessionStats is the management-API view of the session ledger.
type SessionStats struct {
	ActiveSessions int           `json:"activeSessions"`
	Sessions       []SessionInfo `json:"sessions"`
}

// Engine runs the policy checks in order. Each check can short-circuit
// the request with a rejection; only a request that passes every check is
// forwarded upstream.
type Engine struct {
	cfg      *Config
	sessions SessionStore
	log      *logger.Logger
}

// NewEngine builds an engine over the given policy and session store.
func NewEngine(cfg *Config, sessions SessionStore) *Engine {
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		log:      logger.New("guardrails"),
	}
}

// Config returns the active policy.
func (e *Engine) Config() *Config {
	return e.cfg
}

func (e *Engine) maxSessionAge() time.Duration {
	return time.Duration(e.cfg.Limits.MaxSessionDurationMinutes) * time.Minute
}

func reject(reason, suggested, detail string) *Result {
	return &Result{
		Allowed:           false,
		Reason:            reason,
		SuggestedResponse: suggested,
		Detail:            detail,
	}
}

// ValidateAndProcessRequest applies the policy to one chat request. On
// success the returned result carries the request mutated with the
// injected system prompt and clamped token budget.
func (e *Engine) ValidateAndProcessRequest(ctx context.Context, req *anthropic.MessagesRequest, sessionID string) (*Result, error) {
	if !e.cfg.Enabled {
		return &Result{Allowed: true, ModifiedRequest: req}, nil
	}

	// 1. session limits
	outcome, err := e.sessions.Check(ctx, sessionID, e.cfg.Limits.MaxMessagesPerSession, e.maxSessionAge())
	if err != nil {
		return nil, fmt.Errorf("session check: %w", err)
	}
	switch outcome {
	case OutcomeMessageLimit:
		e.log.Warn(sessionID, "", "session rejected: message limit reached", nil)
		return reject(ReasonSessionMessageLimit, e.cfg.Responses.Limit, ""), nil
	case OutcomeExpired:
		e.log.Warn(sessionID, "", "session rejected: time limit exceeded", nil)
		return reject(ReasonSessionTimeLimit, e.cfg.Responses.Limit, ""), nil
	}

	// 2. content rules
	var warnings []string
	topicFound := false
	for _, msg := range req.Messages {
		if msg.Role != "user" {
			continue
		}
		text := strings.ToLower(msg.Text())
		for _, blocked := range e.cfg.Limits.BlockedKeywords {
			if strings.Contains(text, strings.ToLower(blocked)) {
				e.log.Warn(sessionID, "", "message rejected: blocked keyword", map[string]interface{}{
					"keyword": blocked,
				})
				return reject(ReasonBlockedContent, e.cfg.Responses.Blocked, fmt.Sprintf("palabra bloqueada: %s", blocked)), nil
			}
		}
		if !topicFound {
			for _, topic := range e.cfg.Limits.AllowedTopics {
				if strings.Contains(text, strings.ToLower(topic)) {
					topicFound = true
					break
				}
			}
		}
	}
	if e.cfg.StrictMode && !topicFound {
		if e.cfg.Limits.RequiredTools {
			return reject(ReasonNoBusinessContent, e.cfg.Responses.OutOfScope, ""), nil
		}
		warnings = append(warnings, "el mensaje no menciona temas de la tienda")
	}

	// 3. tool authorization
	if len(req.Tools) == 0 {
		if e.cfg.Limits.RequiredTools {
			return reject(ReasonToolsRequired, e.cfg.Responses.ToolRequired, ""), nil
		}
	} else {
		for _, tool := range req.Tools {
			if !e.cfg.IsToolAllowed(tool.Name) {
				e.log.Warn(sessionID, "", "message rejected: unauthorized tool", map[string]interface{}{
					"tool": tool.Name,
				})
				return reject(ReasonUnauthorizedTool, e.cfg.Responses.Blocked,
					fmt.Sprintf("herramienta no autorizada: %s", tool.Name)), nil
			}
		}
	}

	// 4. prompt injection and token clamp
	system := strings.Join(e.cfg.SystemPromptParts, "\n\n")
	if req.System != "" {
		system = system + "\n\n" + req.System
	}
	req.System = system

	requested := req.MaxTokens
	if requested <= 0 {
		requested = anthropic.DefaultMaxTokens
	}
	if requested > e.cfg.Limits.MaxTokens {
		requested = e.cfg.Limits.MaxTokens
	}
	req.MaxTokens = requested

	// 5. count the message. A session created in step 1 already counts
	// this request, so only pre-existing sessions are incremented here.
	if outcome == OutcomeNew {
		if err := e.sessions.Touch(ctx, sessionID); err != nil {
			return nil, fmt.Errorf("session touch: %w", err)
		}
	} else {
		if err := e.sessions.Commit(ctx, sessionID, e.cfg.Limits.MaxMessagesPerSession); err != nil {
			if errors.Is(err, ErrMessageLimit) {
				return reject(ReasonSessionMessageLimit, e.cfg.Responses.Limit, ""), nil
			}
			return nil, fmt.Errorf("session commit: %w", err)
		}
	}

	return &Result{
		Allowed:         true,
		Warnings:        warnings,
		ModifiedRequest: req,
	}, nil
}

// CleanExpiredSessions removes every session past its maximum age.
func (e *Engine) CleanExpiredSessions(ctx context.Context) (int, error) {
	removed, err := e.sessions.SweepExpired(ctx, e.maxSessionAge())
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		e.log.Info("", "", "expired sessions removed", map[string]interface{}{
			"count": removed,
		})
	}
	return removed, nil
}

// GetSessionStats snapshots the session ledger.
func (e *Engine) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	sessions, err := e.sessions.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	stats := &SessionStats{
		ActiveSessions: len(sessions),
		Sessions:       make([]SessionInfo, 0, len(sessions)),
	}
	for _, s := range sessions {
		stats.Sessions = append(stats.Sessions, SessionInfo{
			ID:              s.ID,
			MessageCount:    s.MessageCount,
			DurationMinutes: s.Age(now).Minutes(),
			LastActivity:    s.LastActivity.UTC().Format(time.RFC3339),
		})
	}
	return stats, nil
}

// ResetSession deletes a session unconditionally.
func (e *Engine) ResetSession(ctx context.Context, id string) error {
	return e.sessions.Delete(ctx, id)
}
