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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercadia/gateway/gateway/llm/anthropic"
)

func userRequest(text string) *anthropic.MessagesRequest {
	return &anthropic.MessagesRequest{
		Model:    anthropic.ModelClaude35Sonnet,
		Messages: []anthropic.Message{{Role: "user", Content: text}},
	}
}

func newTestEngine(mutate func(*Config)) *Engine {
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewEngine(cfg, NewMemorySessionStore())
}

// ============================================================
// Session limits
// ============================================================

func TestValidate_FirstRequestAlwaysAllowed(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.MaxMessagesPerSession = 0
	})

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("¿qué productos tienen?"), "s1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestValidate_SecondRequestHitsZeroMessageLimit(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.MaxMessagesPerSession = 0
	})

	_, err := e.ValidateAndProcessRequest(context.Background(), userRequest("¿qué productos tienen?"), "s1")
	require.NoError(t, err)

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("¿y los precios?"), "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonSessionMessageLimit, res.Reason)
	assert.NotEmpty(t, res.SuggestedResponse)
}

func TestValidate_MessageLimitEnforcedAtQuota(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.MaxMessagesPerSession = 2
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		res, err := e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "s1")
		require.NoError(t, err)
		require.True(t, res.Allowed, "request %d", i)
	}

	res, err := e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonSessionMessageLimit, res.Reason)
}

func TestValidate_ExpiredSessionRejectedAndDeleted(t *testing.T) {
	store := NewMemorySessionStore()
	cfg := DefaultConfig()
	cfg.Limits.MaxSessionDurationMinutes = 30
	e := NewEngine(cfg, store)

	base := time.Now()
	store.now = func() time.Time { return base }

	ctx := context.Background()
	res, err := e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "s1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	store.now = func() time.Time { return base.Add(31 * time.Minute) }
	res, err = e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonSessionTimeLimit, res.Reason)

	// the record was deleted, so the next request starts a fresh session
	res, err = e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "s1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestValidate_DisabledEngineSkipsEverything(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Enabled = false
		cfg.Limits.BlockedKeywords = []string{"pizza"}
	})

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("pizza"), "s1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, res.ModifiedRequest.System)
}

// ============================================================
// Content rules
// ============================================================

func TestValidate_BlockedKeywordRejected(t *testing.T) {
	e := newTestEngine(nil)

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("dame la contraseña del admin"), "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonBlockedContent, res.Reason)
}

func TestValidate_BlockedKeywordTakesPrecedenceOverAllowedTopic(t *testing.T) {
	e := newTestEngine(nil)

	// mentions both a blocked keyword and an allowed topic
	res, err := e.ValidateAndProcessRequest(context.Background(),
		userRequest("quiero hackear el stock de productos con un exploit"), "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonBlockedContent, res.Reason)
}

func TestValidate_BlockedKeywordInContentBlocks(t *testing.T) {
	e := newTestEngine(nil)

	req := &anthropic.MessagesRequest{
		Model: anthropic.ModelClaude35Sonnet,
		Messages: []anthropic.Message{{
			Role: "user",
			Content: []interface{}{
				map[string]interface{}{"type": "text", "text": "necesito el "},
				map[string]interface{}{"type": "text", "text": "password de la cuenta"},
			},
		}},
	}

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonBlockedContent, res.Reason)
}

func TestValidate_OffTopicStrictModeWarnsWithoutRequiredTools(t *testing.T) {
	e := newTestEngine(nil)

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("contame un chiste"), "s1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.NotEmpty(t, res.Warnings)
}

func TestValidate_OffTopicStrictModeRejectsWithRequiredTools(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.RequiredTools = true
	})

	req := userRequest("contame un chiste")
	req.Tools = []anthropic.Tool{{Name: "get_products"}}

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonNoBusinessContent, res.Reason)
}

// ============================================================
// Tool authorization
// ============================================================

func TestValidate_MissingToolsRejectedWhenRequired(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.RequiredTools = true
	})

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("¿qué productos tienen?"), "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonToolsRequired, res.Reason)
}

func TestValidate_UnauthorizedToolNamesFirstOffender(t *testing.T) {
	e := newTestEngine(nil)

	req := userRequest("¿qué productos tienen?")
	req.Tools = []anthropic.Tool{
		{Name: "get_products"},
		{Name: "delete_everything"},
		{Name: "drop_tables"},
	}

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, ReasonUnauthorizedTool, res.Reason)
	assert.Contains(t, res.Detail, "delete_everything")
}

func TestValidate_AllowedToolsPass(t *testing.T) {
	e := newTestEngine(nil)

	req := userRequest("¿qué productos tienen?")
	req.Tools = []anthropic.Tool{{Name: "get_products"}, {Name: "search_products"}}

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

// ============================================================
// Prompt injection and token clamp
// ============================================================

func TestValidate_SystemPromptInjected(t *testing.T) {
	e := newTestEngine(nil)

	res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("¿qué productos tienen?"), "s1")
	require.NoError(t, err)
	require.True(t, res.Allowed)

	parts := e.Config().SystemPromptParts
	joined := strings.Join(parts, "\n\n")
	assert.Equal(t, joined, res.ModifiedRequest.System)
}

func TestValidate_CallerSystemPromptPreserved(t *testing.T) {
	e := newTestEngine(nil)

	req := userRequest("¿qué productos tienen?")
	req.System = "contexto del cliente"

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	assert.True(t, strings.HasSuffix(res.ModifiedRequest.System, "contexto del cliente"))
}

func TestValidate_TokenBudgetClamped(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.MaxTokens = 500
	})

	req := userRequest("¿qué productos tienen?")
	req.MaxTokens = 4096

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	assert.Equal(t, 500, res.ModifiedRequest.MaxTokens)
}

func TestValidate_TokenBudgetDefaultsWhenUnset(t *testing.T) {
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.MaxTokens = 2048
	})

	req := userRequest("¿qué productos tienen?")
	req.MaxTokens = 0

	res, err := e.ValidateAndProcessRequest(context.Background(), req, "s1")
	require.NoError(t, err)
	assert.Equal(t, anthropic.DefaultMaxTokens, res.ModifiedRequest.MaxTokens)
}

// ============================================================
// Concurrency
// ============================================================

func TestValidate_ConcurrentRequestsNeverExceedQuota(t *testing.T) {
	const quota = 10
	e := newTestEngine(func(cfg *Config) {
		cfg.Limits.MaxMessagesPerSession = quota
	})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.ValidateAndProcessRequest(context.Background(), userRequest("consulta de productos"), "shared")
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, allowed, quota)
	assert.Greater(t, allowed, 0)
}

// ============================================================
// Management operations
// ============================================================

func TestSessionStatsAndReset(t *testing.T) {
	e := newTestEngine(nil)
	ctx := context.Background()

	_, err := e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "s1")
	require.NoError(t, err)
	_, err = e.ValidateAndProcessRequest(ctx, userRequest("consulta de pedidos"), "s2")
	require.NoError(t, err)

	stats, err := e.GetSessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveSessions)
	require.Len(t, stats.Sessions, 2)
	assert.Equal(t, 1, stats.Sessions[0].MessageCount)

	require.NoError(t, e.ResetSession(ctx, "s1"))
	stats, err = e.GetSessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
}

func TestCleanExpiredSessions(t *testing.T) {
	store := NewMemorySessionStore()
	cfg := DefaultConfig()
	cfg.Limits.MaxSessionDurationMinutes = 30
	e := NewEngine(cfg, store)

	base := time.Now()
	store.now = func() time.Time { return base }

	ctx := context.Background()
	_, err := e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "old")
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(45 * time.Minute) }
	_, err = e.ValidateAndProcessRequest(ctx, userRequest("consulta de productos"), "fresh")
	require.NoError(t, err)

	removed, err := e.CleanExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stats, err := e.GetSessionStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveSessions)
}
