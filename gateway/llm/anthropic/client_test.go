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

package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockHTTPClient is a mock implementation of HTTPClient
type MockHTTPClient struct {
	mock.Mock
}

func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*http.Response), args.Error(1)
}

func jsonResponse(status int, body interface{}) *http.Response {
	data, _ := json.Marshal(body)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
	}
}

// =============================================================================
// Client creation
// =============================================================================

func TestNewClient_Success(t *testing.T) {
	client, err := NewClient(Config{APIKey: "test-api-key"})

	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultAPIVersion, client.apiVersion)
	assert.True(t, client.IsHealthy())
}

func TestNewClient_MissingAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

// =============================================================================
// Model allow-list
// =============================================================================

func TestIsValidModel(t *testing.T) {
	assert.True(t, IsValidModel(ModelClaude35Sonnet))
	assert.True(t, IsValidModel(ModelClaude4Opus))
	assert.True(t, IsValidModel("claude-3-7-sonnet-20250219"))
	assert.False(t, IsValidModel("gpt-4o"))
	assert.False(t, IsValidModel(""))
}

// =============================================================================
// Message content handling
// =============================================================================

func TestMessageText_StringContent(t *testing.T) {
	m := Message{Role: "user", Content: "hola"}
	assert.Equal(t, "hola", m.Text())
}

func TestMessageText_BlockContent(t *testing.T) {
	m := Message{Role: "user", Content: []interface{}{
		map[string]interface{}{"type": "text", "text": "hola "},
		map[string]interface{}{"type": "image", "source": "ignored"},
		map[string]interface{}{"type": "text", "text": "mundo"},
	}}
	assert.Equal(t, "hola mundo", m.Text())
}

func TestMessageText_UnknownContent(t *testing.T) {
	m := Message{Role: "user", Content: 42}
	assert.Equal(t, "", m.Text())
}

func TestLastUserText(t *testing.T) {
	req := &MessagesRequest{Messages: []Message{
		{Role: "user", Content: "primera"},
		{Role: "assistant", Content: "respuesta"},
		{Role: "user", Content: "última"},
	}}
	assert.Equal(t, "última", req.LastUserText())

	empty := &MessagesRequest{Messages: []Message{{Role: "assistant", Content: "x"}}}
	assert.Equal(t, "", empty.LastUserText())
}

// =============================================================================
// CreateMessage
// =============================================================================

func TestCreateMessage_Success(t *testing.T) {
	mockClient := new(MockHTTPClient)
	client, err := NewClient(Config{APIKey: "test-api-key", Client: mockClient})
	require.NoError(t, err)

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		return req.Method == "POST" &&
			req.URL.Path == "/v1/messages" &&
			req.Header.Get("x-api-key") == "test-api-key" &&
			req.Header.Get("anthropic-version") == DefaultAPIVersion
	})).Return(jsonResponse(http.StatusOK, MessagesResponse{
		ID:      "msg_01",
		Type:    "message",
		Role:    "assistant",
		Model:   ModelClaude35Sonnet,
		Content: []ContentBlock{{Type: "text", Text: "Tenemos pizza muzzarella."}},
		Usage:   &Usage{InputTokens: 12, OutputTokens: 8},
	}), nil)

	resp, err := client.CreateMessage(context.Background(), &MessagesRequest{
		Model:    ModelClaude35Sonnet,
		Messages: []Message{{Role: "user", Content: "¿Tenés pizza?"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Tenemos pizza muzzarella.", resp.FirstText())
	assert.Equal(t, 8, resp.Usage.OutputTokens)
	assert.True(t, client.IsHealthy())
	mockClient.AssertExpectations(t)
}

func TestCreateMessage_DefaultsMaxTokens(t *testing.T) {
	mockClient := new(MockHTTPClient)
	client, err := NewClient(Config{APIKey: "test-api-key", Client: mockClient})
	require.NoError(t, err)

	mockClient.On("Do", mock.MatchedBy(func(req *http.Request) bool {
		body, _ := io.ReadAll(req.Body)
		req.Body = io.NopCloser(bytes.NewReader(body))
		var sent MessagesRequest
		if err := json.Unmarshal(body, &sent); err != nil {
			return false
		}
		return sent.MaxTokens == DefaultMaxTokens
	})).Return(jsonResponse(http.StatusOK, MessagesResponse{
		Content: []ContentBlock{{Type: "text", Text: "ok"}},
	}), nil)

	_, err = client.CreateMessage(context.Background(), &MessagesRequest{
		Model:    ModelClaude35Sonnet,
		Messages: []Message{{Role: "user", Content: "hola"}},
	})
	require.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestCreateMessage_APIError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	client, err := NewClient(Config{APIKey: "bad-key", Client: mockClient})
	require.NoError(t, err)

	mockClient.On("Do", mock.Anything).Return(jsonResponse(http.StatusUnauthorized, map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    "authentication_error",
			"message": "invalid x-api-key",
		},
	}), nil)

	_, err = client.CreateMessage(context.Background(), &MessagesRequest{
		Model:    ModelClaude35Sonnet,
		Messages: []Message{{Role: "user", Content: "hola"}},
	})

	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "authentication_error", apiErr.Type)
	assert.Equal(t, "invalid x-api-key", apiErr.Message)
}

func TestCreateMessage_ServerErrorMarksUnhealthy(t *testing.T) {
	mockClient := new(MockHTTPClient)
	client, err := NewClient(Config{APIKey: "test-api-key", Client: mockClient})
	require.NoError(t, err)

	mockClient.On("Do", mock.Anything).Return(jsonResponse(http.StatusInternalServerError, map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    "api_error",
			"message": "overloaded",
		},
	}), nil)

	_, err = client.CreateMessage(context.Background(), &MessagesRequest{
		Model:    ModelClaude35Sonnet,
		Messages: []Message{{Role: "user", Content: "hola"}},
	})

	require.Error(t, err)
	assert.False(t, client.IsHealthy())
}

func TestCreateMessage_TransportError(t *testing.T) {
	mockClient := new(MockHTTPClient)
	client, err := NewClient(Config{APIKey: "test-api-key", Client: mockClient})
	require.NoError(t, err)

	mockClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused"))

	_, err = client.CreateMessage(context.Background(), &MessagesRequest{
		Model:    ModelClaude35Sonnet,
		Messages: []Message{{Role: "user", Content: "hola"}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, client.IsHealthy())
}
