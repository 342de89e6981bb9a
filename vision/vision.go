// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package vision extracts structured restaurant data from screenshots using
// multimodal models.
package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/phuslu/log"
)

// DefaultTimeout bounds a single analysis call.
const DefaultTimeout = 30 * time.Second

// Analyzer sends one image to a model and validates the answer. It returns
// *TransportError, *SchemaError or *IncompleteDataError on failure.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, imageBase64 string) (*RestaurantData, error)
}

// Extract runs a single analysis and absorbs every failure into a nil
// result; the failure is logged. Callers fall back to manual entry on nil.
func Extract(ctx context.Context, a Analyzer, imageBase64 string) *RestaurantData {
	start := time.Now()

	data, err := a.Analyze(ctx, imageBase64)
	if err != nil {
		var (
			transportErr  *TransportError
			schemaErr     *SchemaError
			incompleteErr *IncompleteDataError
		)

		kind := "unknown"

		switch {
		case errors.As(err, &transportErr):
			kind = "transport"
		case errors.As(err, &schemaErr):
			kind = "schema"
		case errors.As(err, &incompleteErr):
			kind = "incomplete"
		}

		log.Warn().Err(err).Str("provider", a.Name()).Str("kind", kind).Dur("took", time.Since(start)).Msg("vision extraction failed")

		return nil
	}

	log.Info().Str("provider", a.Name()).Str("name", data.Name).Dur("took", time.Since(start)).Msg("vision extraction succeeded")

	return data
}

// EncodeImage reads an image and returns it base64 encoded.
func EncodeImage(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}

	if len(data) == 0 {
		return "", errors.New("empty image")
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// EncodeImageFile is EncodeImage for a file on disk.
func EncodeImageFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by the user
	if err != nil {
		return "", fmt.Errorf("opening image: %w", err)
	}
	defer f.Close()

	return EncodeImage(f)
}

// splitDataURL accepts either raw base64 or a data URL and returns the
// base64 payload and, when present, the declared media type.
func splitDataURL(image string) (payload, mediaType string) {
	image = strings.TrimSpace(image)
	if !strings.HasPrefix(image, "data:") {
		return image, ""
	}

	header, payload, found := strings.Cut(image, ",")
	if !found {
		return image, ""
	}

	mediaType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")

	return payload, mediaType
}

// DecodeImage returns the raw bytes and sniffed media type of a base64 image.
func DecodeImage(image string) ([]byte, string, error) {
	payload, declared := splitDataURL(image)

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding base64 image: %w", err)
	}

	mediaType := http.DetectContentType(data)
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = declared
	}

	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	return data, mediaType, nil
}
