// Copyright 2025 The SnapBite Authors
// SPDX-License-Identifier: Apache-2.0

package restaurant

import (
	"github.com/snapbite/snapbite/utils/textutils"
)

// DuplicateRadiusMeters is the distance under which two restaurants are the
// same venue regardless of their names.
const DuplicateRadiusMeters = 100.0

// Duplicates reports whether a and b describe the same venue: equal names
// ignoring case, or coordinates strictly closer than DuplicateRadiusMeters.
func Duplicates(a, b *Record) bool {
	if textutils.EqualFold(a.Name, b.Name) {
		return true
	}

	return a.Coordinates.DistanceTo(b.Coordinates) < DuplicateRadiusMeters
}

// FindDuplicate returns the first existing record that duplicates candidate,
// or nil.
func FindDuplicate(candidate *Record, existing []*Record) *Record {
	for _, r := range existing {
		if r.ID != "" && r.ID == candidate.ID {
			continue
		}

		if Duplicates(candidate, r) {
			return r
		}
	}

	return nil
}

// IsDuplicate reports whether candidate duplicates any existing record.
func IsDuplicate(candidate *Record, existing []*Record) bool {
	return FindDuplicate(candidate, existing) != nil
}
