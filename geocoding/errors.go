// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package geocoding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrGeocodingExhausted is recorded when every provider failed and the
	// default coordinate was used. It never leaves the Resolver.
	ErrGeocodingExhausted = errors.New("all geocoding providers failed")

	// ErrEmptyAddress is recorded when there is nothing to geocode.
	ErrEmptyAddress = errors.New("empty address")
)

// ProviderError is a classified geocoding provider failure.
type ProviderError struct {
	Type    ErrorType
	Message string
	Err     error
}

// ErrorType classifies geocoding failures.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeRateLimit
	ErrorTypeQuotaExceeded
	ErrorTypeTimeout
	ErrorTypeNotFound
	ErrorTypeInvalidRequest
	ErrorTypeNetworkError
	ErrorTypeInvalidResponse
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeUnknown:         "unknown",
	ErrorTypeRateLimit:       "rate_limit",
	ErrorTypeQuotaExceeded:   "quota_exceeded",
	ErrorTypeTimeout:         "timeout",
	ErrorTypeNotFound:        "not_found",
	ErrorTypeInvalidRequest:  "invalid_request",
	ErrorTypeNetworkError:    "network",
	ErrorTypeInvalidResponse: "invalid_response",
}

func (t ErrorType) String() string {
	if s, ok := errorTypeNames[t]; ok {
		return s
	}

	return fmt.Sprintf("ErrorType(%d)", int(t))
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func newError(t ErrorType, err error, format string, args ...any) *ProviderError {
	return &ProviderError{Type: t, Message: fmt.Sprintf(format, args...), Err: err}
}

// classifyTransportError wraps an error returned by http.Client.Do.
func classifyTransportError(provider string, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) || IsTimeoutError(err) {
		return newError(ErrorTypeTimeout, err, "%s request timed out", provider)
	}

	return newError(ErrorTypeNetworkError, err, "%s request failed", provider)
}

func errorType(err error) (ErrorType, bool) {
	var geoErr *ProviderError
	if errors.As(err, &geoErr) {
		return geoErr.Type, true
	}

	return ErrorTypeUnknown, false
}

// IsRateLimitError reports whether err was caused by a provider rate limit.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	if t, ok := errorType(err); ok {
		return t == ErrorTypeRateLimit
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "429")
}

// IsQuotaExceededError reports whether err was caused by an exhausted quota
// or a rejected key.
func IsQuotaExceededError(err error) bool {
	if err == nil {
		return false
	}

	if t, ok := errorType(err); ok {
		return t == ErrorTypeQuotaExceeded
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "over_query_limit") ||
		strings.Contains(errStr, "quota exceeded")
}

// IsTimeoutError reports whether err was caused by a timeout.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if t, ok := errorType(err); ok {
		return t == ErrorTypeTimeout
	}

	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// IsNotFoundError reports whether the provider answered but found nothing.
func IsNotFoundError(err error) bool {
	t, ok := errorType(err)

	return ok && t == ErrorTypeNotFound
}

// Kind names the failure class of an absorbed attempt for logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRateLimitError(err):
		return "rate_limit"
	case IsQuotaExceededError(err):
		return "quota"
	case IsTimeoutError(err):
		return "timeout"
	case IsNotFoundError(err):
		return "not_found"
	default:
		return "error"
	}
}

// ClassifyHTTPError maps a non-200 status code to a ProviderError.
func ClassifyHTTPError(provider string, statusCode int) *ProviderError {
	switch statusCode {
	case http.StatusTooManyRequests:
		return newError(ErrorTypeRateLimit, nil, "%s: rate limit reached", provider)
	case http.StatusForbidden, http.StatusUnauthorized:
		return newError(ErrorTypeQuotaExceeded, nil, "%s: quota exceeded or access denied (status %d)", provider, statusCode)
	case http.StatusBadRequest:
		return newError(ErrorTypeInvalidRequest, nil, "%s: invalid request", provider)
	case http.StatusNotFound:
		return newError(ErrorTypeNotFound, nil, "%s: location not found", provider)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return newError(ErrorTypeNetworkError, nil, "%s: service unavailable (status %d)", provider, statusCode)
	default:
		return newError(ErrorTypeUnknown, nil, "%s: HTTP error %d", provider, statusCode)
	}
}

// classifyGoogleStatus maps the Google Geocoding "status" field.
func classifyGoogleStatus(status string) *ProviderError {
	switch status {
	case "ZERO_RESULTS":
		return newError(ErrorTypeNotFound, nil, "google maps status: %s", status)
	case "OVER_QUERY_LIMIT", "OVER_DAILY_LIMIT":
		return newError(ErrorTypeQuotaExceeded, nil, "google maps status: %s", status)
	case "REQUEST_DENIED":
		return newError(ErrorTypeQuotaExceeded, nil, "google maps status: %s", status)
	case "INVALID_REQUEST":
		return newError(ErrorTypeInvalidRequest, nil, "google maps status: %s", status)
	default:
		return newError(ErrorTypeUnknown, nil, "google maps status: %s", status)
	}
}
