// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiResponse(texts ...string) string {
	candidates := []any{}
	for _, text := range texts {
		candidates = append(candidates, map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
			"finishReason": "STOP",
		})
	}

	body, _ := json.Marshal(map[string]any{"candidates": candidates})

	return string(body)
}

func newTestGeminiClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewGeminiClient(context.Background(), GeminiOptions{
		APIKey:     "gemini-test",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	require.NoError(t, err)

	return client
}

func TestGeminiClientAnalyze(t *testing.T) {
	var got map[string]any

	client := newTestGeminiClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, GeminiModel+":generateContent"), r.URL.Path)
		assert.Equal(t, "gemini-test", r.Header.Get("X-Goog-Api-Key"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiResponse(`{"name":"Tartine","cuisine":"Bakery","rating":"4.6","address":"600 Guerrero St"}`))
	})

	data, err := client.Analyze(context.Background(), tinyPNG)
	require.NoError(t, err)
	assert.Equal(t, "Tartine", data.Name)
	assert.Equal(t, "Bakery", data.Cuisine)
	assert.Equal(t, "600 Guerrero St", data.Address)
	require.NotNil(t, data.Rating)
	assert.InDelta(t, 4.6, *data.Rating, 1e-9)

	contents := got["contents"].([]any)
	require.Len(t, contents, 1)

	parts := contents[0].(map[string]any)["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "image/png", parts[1].(map[string]any)["inlineData"].(map[string]any)["mimeType"])
}

func TestGeminiClientStatusError(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"code":503,"message":"model overloaded","status":"UNAVAILABLE"}}`)
	})

	_, err := client.Analyze(context.Background(), tinyPNG)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "gemini", transportErr.Provider)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
}

func TestGeminiClientNoCandidates(t *testing.T) {
	client := newTestGeminiClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiResponse())
	})

	_, err := client.Analyze(context.Background(), tinyPNG)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
}
