// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"bytes"
	"regexp"
	"strings"
)

var mimeRegexp = regexp.MustCompile(`[a-z0-9][a-z0-9!#$&^_.+-]*/[a-z0-9][a-z0-9!#$&^_.+-]*`)

// MimeTypeExamples document the accepted shape for schema generation
var MimeTypeExamples = []string{"text/markdown", "image/png", "application/pdf"}

// MimeType is a lowercase type/subtype pair
type MimeType string

// Mode groups MIME types by how their content is consumed
type Mode string

// Content modes
const (
	ModeImage       Mode = "image"
	ModeMarkdown    Mode = "markdown"
	ModeMedia       Mode = "media"
	ModePlain       Mode = "plain"
	ModeDocument    Mode = "document"
	ModeSpreadsheet Mode = "spreadsheet"
)

// DecodeMimeType validates s as a MimeType
func DecodeMimeType(s string) (MimeType, error) {
	if err := matchAnchored(mimeRegexp, s); err != nil {
		return "", err
	}
	return MimeType(s), nil
}

// TryDecodeMimeType is the non-failing variant of DecodeMimeType
func TryDecodeMimeType(s string) (MimeType, bool) {
	m, err := DecodeMimeType(strings.ToLower(s))
	return m, err == nil
}

func (m MimeType) String() string { return string(m) }

var (
	imageMimes = map[MimeType]struct{}{
		"image/png": {}, "image/jpeg": {}, "image/gif": {}, "image/webp": {},
		"image/svg+xml": {}, "image/bmp": {}, "image/tiff": {},
	}
	documentMimes = map[MimeType]struct{}{
		"application/pdf":    {},
		"application/msword": {},
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
		"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
		"application/vnd.ms-powerpoint":                 {},
		"application/vnd.oasis.opendocument.text":       {},
		"application/rtf":                               {},
		"application/epub+zip":                          {},
		"text/html":                                     {},
		"application/xhtml+xml":                         {},
		"message/rfc822":                                {},
		"application/vnd.ms-outlook":                    {},
	}
	spreadsheetMimes = map[MimeType]struct{}{
		"application/vnd.ms-excel": {},
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
		"application/vnd.oasis.opendocument.spreadsheet":                    {},
		"text/csv":      {},
		"text/tab-separated-values": {},
	}
)

// Mode classifies the MIME type by curated tables; audio/video fall to media,
// unknown text and application types fall to plain.
func (m MimeType) Mode() Mode {
	if m == "text/markdown" {
		return ModeMarkdown
	}
	if _, ok := imageMimes[m]; ok {
		return ModeImage
	}
	if _, ok := documentMimes[m]; ok {
		return ModeDocument
	}
	if _, ok := spreadsheetMimes[m]; ok {
		return ModeSpreadsheet
	}
	if strings.HasPrefix(string(m), "audio/") || strings.HasPrefix(string(m), "video/") {
		return ModeMedia
	}
	return ModePlain
}

var extensionToMime = map[string]MimeType{
	"md":    "text/markdown",
	"mdx":   "text/markdown",
	"txt":   "text/plain",
	"csv":   "text/csv",
	"tsv":   "text/tab-separated-values",
	"html":  "text/html",
	"htm":   "text/html",
	"json":  "application/json",
	"yml":   "application/x-yaml",
	"yaml":  "application/x-yaml",
	"xml":   "application/xml",
	"pdf":   "application/pdf",
	"doc":   "application/msword",
	"docx":  "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"ppt":   "application/vnd.ms-powerpoint",
	"pptx":  "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"xls":   "application/vnd.ms-excel",
	"xlsx":  "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"rtf":   "application/rtf",
	"eml":   "message/rfc822",
	"msg":   "application/vnd.ms-outlook",
	"png":   "image/png",
	"jpg":   "image/jpeg",
	"jpeg":  "image/jpeg",
	"gif":   "image/gif",
	"webp":  "image/webp",
	"svg":   "image/svg+xml",
	"bmp":   "image/bmp",
	"tif":   "image/tiff",
	"tiff":  "image/tiff",
	"mp3":   "audio/mpeg",
	"wav":   "audio/wav",
	"ogg":   "audio/ogg",
	"m4a":   "audio/mp4",
	"mp4":   "video/mp4",
	"webm":  "video/webm",
	"mov":   "video/quicktime",
	"epub":  "application/epub+zip",
	"tex":   "application/x-tex",
}

var mimeToExtension = func() map[MimeType]string {
	out := map[MimeType]string{}
	// first extension listed for a MIME wins; iterate a fixed order to keep
	// the table deterministic
	order := []string{
		"md", "txt", "csv", "tsv", "html", "json", "yml", "xml", "pdf",
		"doc", "docx", "ppt", "pptx", "xls", "xlsx", "rtf", "eml", "msg",
		"png", "jpg", "gif", "webp", "svg", "bmp", "tiff",
		"mp3", "wav", "ogg", "m4a", "mp4", "webm", "mov", "epub", "tex",
	}
	for _, ext := range order {
		m := extensionToMime[ext]
		if _, ok := out[m]; !ok {
			out[m] = ext
		}
	}
	return out
}()

// GuessMimeType infers a MIME type from a file name extension
func GuessMimeType(name string) (MimeType, bool) {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return "", false
	}
	m, ok := extensionToMime[strings.ToLower(name[i+1:])]
	return m, ok
}

// SniffMimeType inspects magic bytes for the image formats the gateway
// renders inline
func SniffMimeType(data []byte) (MimeType, bool) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png", true
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "image/jpeg", true
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif", true
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp", true
	}
	return "", false
}

// Extension translates the MIME type back to its canonical file extension
func (m MimeType) Extension() (string, bool) {
	ext, ok := mimeToExtension[m]
	return ext, ok
}
