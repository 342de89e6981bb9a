// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tinyPNG is a 1x1 transparent PNG.
const tinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func chatCompletion(content string) string {
	body, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})

	return string(body)
}

func TestOpenAIClientRequestShape(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))

		_, _ = io.WriteString(w, chatCompletion(`{"name":"Pizzeria A","rating":4.2,"address":"1 Market St, SF"}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL})

	data, err := client.Analyze(context.Background(), tinyPNG)
	require.NoError(t, err)
	assert.Equal(t, "Pizzeria A", data.Name)

	assert.Equal(t, "gpt-4o", got["model"])
	assert.InDelta(t, 500, got["max_tokens"], 0)
	assert.Equal(t, map[string]any{"type": "json_object"}, got["response_format"])

	messages := got["messages"].([]any)
	require.Len(t, messages, 2)

	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, SystemPrompt, system["content"])

	user := messages[1].(map[string]any)
	assert.Equal(t, "user", user["role"])

	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"type": "text", "text": UserPrompt}, parts[0])
	assert.Equal(t, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": "data:image/jpeg;base64," + tinyPNG},
	}, parts[1])
}

func TestOpenAIClientErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non success status",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"bad key"}}`,
			check: func(t *testing.T, err error) {
				var transportErr *TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, http.StatusUnauthorized, transportErr.StatusCode)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				var schemaErr *SchemaError
				require.ErrorAs(t, err, &schemaErr)
			},
		},
		{
			name:   "missing content",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant"}}]}`,
			check: func(t *testing.T, err error) {
				var schemaErr *SchemaError
				require.ErrorAs(t, err, &schemaErr)
			},
		},
		{
			name:   "body not json",
			status: http.StatusOK,
			body:   `<html>gateway</html>`,
			check: func(t *testing.T, err error) {
				var schemaErr *SchemaError
				require.ErrorAs(t, err, &schemaErr)
			},
		},
		{
			name:   "incomplete content",
			status: http.StatusOK,
			body:   chatCompletion(`{"name":"Pizzeria A","rating":4.2}`),
			check: func(t *testing.T, err error) {
				var incomplete *IncompleteDataError
				require.ErrorAs(t, err, &incomplete)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: srv.URL})

			_, err := client.Analyze(context.Background(), tinyPNG)
			tt.check(t, err)
		})
	}
}

func TestOpenAIClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewOpenAIClient(OpenAIOptions{APIKey: "k", BaseURL: url})

	_, err := client.Analyze(context.Background(), tinyPNG)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.StatusCode)
}

func TestOpenAIClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)

			return
		}

		_, _ = io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	require.NoError(t, NewOpenAIClient(OpenAIOptions{APIKey: "good", BaseURL: srv.URL}).Ping(context.Background()))
	require.Error(t, NewOpenAIClient(OpenAIOptions{APIKey: "bad", BaseURL: srv.URL}).Ping(context.Background()))
}
