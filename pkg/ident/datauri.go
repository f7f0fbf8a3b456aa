// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"fmt"
	"strings"
)

// DataURIExamples document the accepted shape for schema generation
var DataURIExamples = []string{"data:image/png;base64,iVBORw0KGgo="}

// DataURI is a parsed data:{mime};base64,{payload} URI
type DataURI struct {
	mime MimeType
	data []byte
}

// NewDataURI builds a DataURI from a MIME type and raw bytes
func NewDataURI(mime MimeType, data []byte) DataURI {
	return DataURI{mime: mime, data: data}
}

// DecodeDataURI parses a data URI; the payload decoder tolerates missing
// padding
func DecodeDataURI(s string) (DataURI, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return DataURI{}, fmt.Errorf("data URI %q does not start with data:", abbreviate(s))
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURI{}, fmt.Errorf("data URI %q has no payload separator", abbreviate(s))
	}
	mimePart, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return DataURI{}, fmt.Errorf("data URI %q is not base64 encoded", abbreviate(s))
	}
	mime, err := DecodeMimeType(mimePart)
	if err != nil {
		return DataURI{}, err
	}
	data, err := DecodeBase64Std(payload)
	if err != nil {
		return DataURI{}, fmt.Errorf("data URI payload: %w", err)
	}
	return DataURI{mime: mime, data: data}, nil
}

// TryDecodeDataURI is the non-failing variant of DecodeDataURI
func TryDecodeDataURI(s string) (DataURI, bool) {
	d, err := DecodeDataURI(s)
	return d, err == nil
}

func (d DataURI) String() string {
	return fmt.Sprintf("data:%s;base64,%s", d.mime, EncodeBase64Std(d.data))
}

// MimeType returns the declared MIME type
func (d DataURI) MimeType() MimeType { return d.mime }

// Bytes returns the decoded payload
func (d DataURI) Bytes() []byte { return d.data }

func abbreviate(s string) string {
	if len(s) > 64 {
		return s[:61] + "..."
	}
	return s
}
