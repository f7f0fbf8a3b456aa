// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package downloader is the gateway's outbound I/O surface: raw HTTP
// fetches plus the documents-parser subservice that turns source files
// into fragments.
package downloader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

// ExpiryDownloadURL is how long download URLs handed to callers stay
// valid; callers must consume or re-request before then
const ExpiryDownloadURL = 5 * time.Minute

// UnavailableError marks an upstream artifact the gateway cannot read:
// gone, forbidden or requiring credentials the request does not carry
type UnavailableError string

func (e UnavailableError) Error() string { return string(e) }

// DownloadError is any other upstream failure, carrying the HTTP status
type DownloadError struct {
	Status int
	URL    string
}

func (e DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed with status %d", e.URL, e.Status)
}

// ReadOptions are parser-defined pass-through options
type ReadOptions map[string]string

// DocumentsReadResponse is the parser subservice result for one document
type DocumentsReadResponse struct {
	Name     string
	MimeType ident.MimeType
	Headers  http.Header
	Mode     model.FragmentMode
	Text     string
	Blobs    map[uri.FragmentURI]ident.DataURI
}

//counterfeiter:generate . Interface

// Interface is the outbound I/O contract connectors depend on
type Interface interface {
	// FetchBytes downloads a URL and returns body, MIME type and response
	// headers
	FetchBytes(ctx context.Context, url *uri.WebURL, headers http.Header) ([]byte, ident.MimeType, http.Header, error)
	// FetchHead issues a HEAD request and returns the response headers
	FetchHead(ctx context.Context, url *uri.WebURL, headers http.Header) (http.Header, error)
	// FetchJSON downloads a URL and decodes the JSON body into out
	FetchJSON(ctx context.Context, url *uri.WebURL, headers http.Header, out interface{}) (http.Header, error)
	// ReadDownload has the parser subservice fetch and parse a document
	ReadDownload(ctx context.Context, url *uri.WebURL, authorization string, headers http.Header, opts ReadOptions) (*DocumentsReadResponse, error)
	// ReadBlob has the parser subservice parse already-downloaded bytes
	ReadBlob(ctx context.Context, name string, mime ident.MimeType, blob []byte, opts ReadOptions) (*DocumentsReadResponse, error)
}
