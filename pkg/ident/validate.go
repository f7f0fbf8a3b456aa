// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package ident provides the validated string types used across the gateway:
// file names and paths, MIME types, data URIs, base64 forms and relation IDs.
// The string form of every type is its canonical form; equality is string
// equality and Decode(String()) round-trips.
package ident

import (
	"fmt"
	"regexp"
)

// ValidationError reports a value that failed its pattern check
type ValidationError struct {
	Pattern string
	Value   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("value %q does not match pattern %q", e.Value, e.Pattern)
}

// matchAnchored validates value against pattern with implicit ^...$ anchors
func matchAnchored(re *regexp.Regexp, value string) error {
	loc := re.FindStringIndex(value)
	if loc == nil || loc[0] != 0 || loc[1] != len(value) {
		return &ValidationError{Pattern: re.String(), Value: value}
	}
	return nil
}
