// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils normalizes user and model supplied text before it is
// compared or indexed.
package textutils

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// FoldCase applies full Unicode case folding, so "STRASSE" and "straße" fold
// to the same string. Accents are preserved.
func FoldCase(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// EqualFold reports whether a and b are equal under FoldCase.
func EqualFold(a, b string) bool {
	return FoldCase(a) == FoldCase(b)
}

// ContainsFolded reports whether needle appears in haystack ignoring case and accents.
func ContainsFolded(haystack, needle string) bool {
	return strings.Contains(LowerASCIIFolding(haystack), LowerASCIIFolding(needle))
}

// NormalizeTags trims tags, drops empty ones and removes case-insensitive
// duplicates keeping the first spelling. The result is sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		key := FoldCase(tag)
		if seen[key] {
			continue
		}

		seen[key] = true

		out = append(out, tag)
	}

	slices.SortFunc(out, func(a, b string) int {
		return strings.Compare(FoldCase(a), FoldCase(b))
	})

	return out
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	numOfDigits := len(in)
	if n < 0 {
		numOfDigits-- // First character is the - sign (not a digit)
	}

	numOfCommas := (numOfDigits - 1) / 3

	out := make([]byte, len(in)+numOfCommas)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}
