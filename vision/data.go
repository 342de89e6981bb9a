// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SystemPrompt fixes the output schema for every backend.
const SystemPrompt = `You are an expert restaurant data extractor. Analyze the image and extract restaurant information in JSON format with these exact fields:
{
  "name": "restaurant name",
  "rating": numerical_rating,
  "address": "full address",
  "cuisine": "cuisine type",
  "priceRange": "$ or $$ or $$$ or $$$$",
  "phoneNumber": "phone if visible",
  "website": "website if visible",
  "reviewCount": number_of_reviews
}
Return only valid JSON. If no restaurant found, return null.`

// UserPrompt accompanies the image.
const UserPrompt = "Extract restaurant information from this screenshot"

// RestaurantData is the structured answer of the vision model.
type RestaurantData struct {
	Name        string   `json:"name"`
	Rating      *float64 `json:"rating"`
	Address     string   `json:"address"`
	Cuisine     string   `json:"cuisine"`
	PriceRange  string   `json:"priceRange"`
	PhoneNumber string   `json:"phoneNumber,omitempty"`
	Website     string   `json:"website,omitempty"`
	ReviewCount *int     `json:"reviewCount,omitempty"`
}

// wireData is the raw answer; numbers are decoded later because models
// sometimes quote them.
type wireData struct {
	Name        string          `json:"name"`
	Rating      json.RawMessage `json:"rating"`
	Address     string          `json:"address"`
	Cuisine     string          `json:"cuisine"`
	PriceRange  string          `json:"priceRange"`
	PhoneNumber string          `json:"phoneNumber"`
	Website     string          `json:"website"`
	ReviewCount json.RawMessage `json:"reviewCount"`
}

// stripFences removes a markdown code fence some models wrap JSON in.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if nl := strings.IndexByte(content, '\n'); nl >= 0 {
		content = content[nl+1:] // drop the language tag line
	}

	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(content), "```"))
}

// numeric accepts a JSON number or a quoted number; "" means absent.
func numeric(raw json.RawMessage) (json.Number, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}

		s = strings.TrimSpace(s)
		if s == "" {
			return "", nil
		}

		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", fmt.Errorf("not a number: %q", s)
		}

		return json.Number(s), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}

	return n, nil
}

// ParseRestaurantData validates the message content returned by a model
// against the declared schema.
func ParseRestaurantData(content string) (*RestaurantData, error) {
	content = stripFences(content)
	if content == "" {
		return nil, &SchemaError{Reason: "empty content"}
	}

	if content == "null" {
		return nil, &SchemaError{Reason: "model returned null", Err: ErrNoRestaurant}
	}

	if !strings.HasPrefix(content, "{") {
		return nil, &SchemaError{Reason: "content is not a JSON object"}
	}

	var w wireData

	dec := json.NewDecoder(strings.NewReader(content))
	if err := dec.Decode(&w); err != nil {
		return nil, &SchemaError{Reason: "content does not match schema", Err: err}
	}

	data := &RestaurantData{
		Name:        strings.TrimSpace(w.Name),
		Address:     strings.TrimSpace(w.Address),
		Cuisine:     strings.TrimSpace(w.Cuisine),
		PriceRange:  strings.TrimSpace(w.PriceRange),
		PhoneNumber: strings.TrimSpace(w.PhoneNumber),
		Website:     strings.TrimSpace(w.Website),
	}

	rating, err := numeric(w.Rating)
	if err != nil {
		return nil, &SchemaError{Reason: "rating", Err: err}
	}

	if rating != "" {
		value, err := rating.Float64()
		if err != nil || math.IsNaN(value) || value < 0 || value > 5 {
			return nil, &SchemaError{Reason: fmt.Sprintf("rating %s out of range [0,5]", rating), Err: err}
		}

		data.Rating = &value
	}

	reviews, err := numeric(w.ReviewCount)
	if err != nil {
		return nil, &SchemaError{Reason: "reviewCount", Err: err}
	}

	if reviews != "" {
		count, err := strconv.ParseFloat(string(reviews), 64)
		if err != nil || math.IsNaN(count) || count < 0 || count > math.MaxInt32 || count != math.Trunc(count) {
			return nil, &SchemaError{Reason: fmt.Sprintf("reviewCount %s is not a count", reviews), Err: err}
		}

		n := int(count)
		data.ReviewCount = &n
	}

	if err := data.checkRequired(); err != nil {
		return nil, err
	}

	return data, nil
}

func (d *RestaurantData) checkRequired() error {
	var missing []string

	if d.Name == "" {
		missing = append(missing, "name")
	}

	if d.Rating == nil {
		missing = append(missing, "rating")
	}

	if d.Address == "" {
		missing = append(missing, "address")
	}

	if len(missing) > 0 {
		return &IncompleteDataError{Missing: missing}
	}

	return nil
}
