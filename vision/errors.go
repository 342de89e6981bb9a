// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package vision

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoRestaurant is wrapped in a SchemaError when the model answered null.
var ErrNoRestaurant = errors.New("no restaurant found in image")

// TransportError reports that the HTTP call failed or returned a non-success status.
type TransportError struct {
	Provider   string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// SchemaError reports a response that does not have the declared shape.
type SchemaError struct {
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response: %s: %v", e.Reason, e.Err)
	}

	return "invalid response: " + e.Reason
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// IncompleteDataError reports a well formed answer missing required fields.
type IncompleteDataError struct {
	Missing []string
}

func (e *IncompleteDataError) Error() string {
	return "incomplete restaurant data, missing: " + strings.Join(e.Missing, ", ")
}
