// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiModel is the default Gemini model for extraction.
const GeminiModel = "gemini-2.5-flash"

// GeminiClient extracts restaurant data with the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

// GeminiOptions configures NewGeminiClient.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewGeminiClient creates a client backed by the Gemini developer API.
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	if opts.Model == "" {
		opts.Model = GeminiModel
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("initializing genai client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		model:     opts.Model,
		maxTokens: int32(opts.MaxTokens), // #nosec G115 - bounded by configuration
	}, nil
}

// Name implements Analyzer.
func (c *GeminiClient) Name() string {
	return "gemini"
}

// Analyze implements Analyzer.
func (c *GeminiClient) Analyze(ctx context.Context, imageBase64 string) (*RestaurantData, error) {
	data, mediaType, err := DecodeImage(imageBase64)
	if err != nil {
		return nil, &TransportError{Provider: c.Name(), Err: err}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(UserPrompt),
			genai.NewPartFromBytes(data, mediaType),
		}, genai.RoleUser),
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		MaxOutputTokens:   c.maxTokens,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &TransportError{Provider: c.Name(), StatusCode: apiErr.Code, Err: err}
		}

		return nil, &TransportError{Provider: c.Name(), Err: err}
	}

	var content strings.Builder

	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}

			for _, part := range candidate.Content.Parts {
				content.WriteString(part.Text)
			}

			if content.Len() > 0 {
				break
			}
		}
	}

	if content.Len() == 0 {
		return nil, &SchemaError{Reason: "no candidates with text content"}
	}

	return ParseRestaurantData(content.String())
}
