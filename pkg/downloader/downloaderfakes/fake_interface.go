// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package downloaderfakes provides a test double for downloader.Interface
package downloaderfakes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
)

// FakeInterface implements downloader.Interface with per-call stubs.
// Calls without a stub fail so tests notice unexpected traffic.
type FakeInterface struct {
	FetchBytesStub   func(ctx context.Context, url *uri.WebURL, headers http.Header) ([]byte, ident.MimeType, http.Header, error)
	FetchHeadStub    func(ctx context.Context, url *uri.WebURL, headers http.Header) (http.Header, error)
	FetchJSONStub    func(ctx context.Context, url *uri.WebURL, headers http.Header, out interface{}) (http.Header, error)
	ReadDownloadStub func(ctx context.Context, url *uri.WebURL, authorization string, headers http.Header, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error)
	ReadBlobStub     func(ctx context.Context, name string, mime ident.MimeType, blob []byte, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error)

	FetchBytesCalls   []string
	FetchJSONCalls    []string
	ReadDownloadCalls []string
}

var _ downloader.Interface = (*FakeInterface)(nil)

// FetchBytes implements downloader.Interface
func (f *FakeInterface) FetchBytes(ctx context.Context, url *uri.WebURL, headers http.Header) ([]byte, ident.MimeType, http.Header, error) {
	f.FetchBytesCalls = append(f.FetchBytesCalls, url.String())
	if f.FetchBytesStub == nil {
		return nil, "", nil, fmt.Errorf("unexpected FetchBytes(%s)", url)
	}
	return f.FetchBytesStub(ctx, url, headers)
}

// FetchHead implements downloader.Interface
func (f *FakeInterface) FetchHead(ctx context.Context, url *uri.WebURL, headers http.Header) (http.Header, error) {
	if f.FetchHeadStub == nil {
		return nil, fmt.Errorf("unexpected FetchHead(%s)", url)
	}
	return f.FetchHeadStub(ctx, url, headers)
}

// FetchJSON implements downloader.Interface
func (f *FakeInterface) FetchJSON(ctx context.Context, url *uri.WebURL, headers http.Header, out interface{}) (http.Header, error) {
	f.FetchJSONCalls = append(f.FetchJSONCalls, url.String())
	if f.FetchJSONStub == nil {
		return nil, fmt.Errorf("unexpected FetchJSON(%s)", url)
	}
	return f.FetchJSONStub(ctx, url, headers, out)
}

// ReadDownload implements downloader.Interface
func (f *FakeInterface) ReadDownload(ctx context.Context, url *uri.WebURL, authorization string, headers http.Header, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error) {
	f.ReadDownloadCalls = append(f.ReadDownloadCalls, url.String())
	if f.ReadDownloadStub == nil {
		return nil, fmt.Errorf("unexpected ReadDownload(%s)", url)
	}
	return f.ReadDownloadStub(ctx, url, authorization, headers, opts)
}

// ReadBlob implements downloader.Interface
func (f *FakeInterface) ReadBlob(ctx context.Context, name string, mime ident.MimeType, blob []byte, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error) {
	if f.ReadBlobStub == nil {
		return nil, fmt.Errorf("unexpected ReadBlob(%s)", name)
	}
	return f.ReadBlobStub(ctx, name, mime, blob, opts)
}
