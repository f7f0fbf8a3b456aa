// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"encoding/base64"
	"strings"
)

// EncodeBase64Std encodes with the standard alphabet and padding
func EncodeBase64Std(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64Std decodes standard base64, tolerating missing padding
func DecodeBase64Std(s string) ([]byte, error) {
	if out, err := base64.StdEncoding.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// EncodeBase64Safe encodes with the URL- and filename-safe alphabet
// ("+/" become "-_") and without padding
func EncodeBase64Safe(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64Safe decodes filename-safe base64, tolerating padding and the
// standard alphabet
func DecodeBase64Safe(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if out, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Base64StdToSafe converts a standard encoding to the filename-safe form
func Base64StdToSafe(s string) string {
	s = strings.TrimRight(s, "=")
	s = strings.ReplaceAll(s, "+", "-")
	return strings.ReplaceAll(s, "/", "_")
}

// Base64SafeToStd converts a filename-safe encoding back to the standard
// padded form
func Base64SafeToStd(s string) string {
	s = strings.ReplaceAll(s, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if pad := len(s) % 4; pad != 0 {
		s += strings.Repeat("=", 4-pad)
	}
	return s
}
