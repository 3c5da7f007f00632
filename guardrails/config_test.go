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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.StrictMode)
	assert.NotEmpty(t, cfg.SystemPromptParts)
	assert.Len(t, cfg.AllowedTools, 8)
	assert.NotEmpty(t, cfg.Responses.Blocked)
	assert.NotEmpty(t, cfg.Responses.Limit)
	assert.Greater(t, cfg.Limits.MaxTokens, 0)
}

func TestLoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardrails.yaml")
	yaml := `
strictMode: false
limits:
  maxTokens: 512
  maxMessagesPerSession: 5
  maxSessionDurationMinutes: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.StrictMode)
	assert.Equal(t, 512, cfg.Limits.MaxTokens)
	assert.Equal(t, 5, cfg.Limits.MaxMessagesPerSession)
	// untouched fields keep their defaults
	assert.True(t, cfg.Enabled)
	assert.Len(t, cfg.AllowedTools, 8)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/guardrails.yaml")
	require.Error(t, err)
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits: [broken"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestIsToolAllowed(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.IsToolAllowed("get_products"))
	assert.True(t, cfg.IsToolAllowed("search_database"))
	assert.False(t, cfg.IsToolAllowed("delete_everything"))
}
