// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicModel is the default Claude model for extraction.
const AnthropicModel = "claude-sonnet-4-5"

// AnthropicClient extracts restaurant data with the Claude Messages API.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicOptions configures NewAnthropicClient.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

// NewAnthropicClient creates a client. Retries are disabled: a failed call
// falls back to manual entry instead.
func NewAnthropicClient(opts AnthropicOptions) *AnthropicClient {
	if opts.Model == "" {
		opts.Model = AnthropicModel
	}

	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: int64(opts.MaxTokens),
	}
}

// Name implements Analyzer.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Analyze implements Analyzer.
func (c *AnthropicClient) Analyze(ctx context.Context, imageBase64 string) (*RestaurantData, error) {
	payload, _ := splitDataURL(imageBase64)

	_, mediaType, err := DecodeImage(payload)
	if err != nil {
		return nil, &TransportError{Provider: c.Name(), Err: err}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(UserPrompt),
				anthropic.NewImageBlockBase64(mediaType, payload),
			),
		},
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &TransportError{Provider: c.Name(), StatusCode: apiErr.StatusCode, Err: err}
		}

		return nil, &TransportError{Provider: c.Name(), Err: err}
	}

	var content strings.Builder

	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	if content.Len() == 0 {
		return nil, &SchemaError{Reason: fmt.Sprintf("no text content in response (stop reason %q)", resp.StopReason)}
	}

	return ParseRestaurantData(content.String())
}
