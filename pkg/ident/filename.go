// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	fileNameRegexp = regexp.MustCompile(`[A-Za-z0-9._-]+`)
	// punctuation-only names carry no information; the single "-" is the
	// conventional stdin/unnamed marker and stays allowed
	punctuationRun = regexp.MustCompile(`[._-]+`)
	underscoreRun  = regexp.MustCompile(`_+`)
)

// FileNameExamples document the accepted shape for schema generation
var FileNameExamples = []string{"README.md", "widget", "v1.0_2"}

// FileName is a single path segment over [A-Za-z0-9._-]; "." and ".." and
// punctuation-only runs (except the literal "-") are rejected.
type FileName string

// DecodeFileName validates s as a FileName
func DecodeFileName(s string) (FileName, error) {
	if err := matchAnchored(fileNameRegexp, s); err != nil {
		return "", err
	}
	if s == "." || s == ".." {
		return "", fmt.Errorf("file name %q is a relative path marker", s)
	}
	if s != "-" && punctuationRun.FindString(s) == s {
		return "", fmt.Errorf("file name %q contains no word characters", s)
	}
	return FileName(s), nil
}

// TryDecodeFileName is the non-failing variant of DecodeFileName
func TryDecodeFileName(s string) (FileName, bool) {
	f, err := DecodeFileName(s)
	return f, err == nil
}

// NormalizeFileName derives a FileName from arbitrary text: diacritics are
// stripped, anything outside [A-Za-z0-9.-] collapses to "_". Lossy. Fails
// when nothing ASCII survives.
func NormalizeFileName(text string) (FileName, error) {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), text)
	if err != nil {
		stripped = text
	}
	var b strings.Builder
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	collapsed := underscoreRun.ReplaceAllString(b.String(), "_")
	collapsed = strings.Trim(collapsed, "_")
	name, err := DecodeFileName(collapsed)
	if err != nil {
		return "", fmt.Errorf("cannot normalize %q to a file name: %w", text, err)
	}
	return name, nil
}

func (f FileName) String() string { return string(f) }

// Extension returns the suffix after the final dot, empty when there is none
func (f FileName) Extension() string {
	i := strings.LastIndexByte(string(f), '.')
	if i <= 0 || i == len(f)-1 {
		return ""
	}
	return string(f)[i+1:]
}

// FilePath is a non-empty FileName sequence joined by "/"
type FilePath []FileName

// DecodeFilePath validates every segment of a slash-joined path
func DecodeFilePath(s string) (FilePath, error) {
	if s == "" {
		return nil, fmt.Errorf("file path must not be empty")
	}
	parts := strings.Split(s, "/")
	path := make(FilePath, 0, len(parts))
	for _, p := range parts {
		name, err := DecodeFileName(p)
		if err != nil {
			return nil, fmt.Errorf("invalid file path %q: %w", s, err)
		}
		path = append(path, name)
	}
	return path, nil
}

// TryDecodeFilePath is the non-failing variant of DecodeFilePath
func TryDecodeFilePath(s string) (FilePath, bool) {
	p, err := DecodeFilePath(s)
	return p, err == nil
}

func (p FilePath) String() string {
	parts := make([]string, len(p))
	for i, n := range p {
		parts[i] = string(n)
	}
	return strings.Join(parts, "/")
}

// Base returns the final segment
func (p FilePath) Base() FileName {
	return p[len(p)-1]
}
