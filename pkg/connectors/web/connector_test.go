// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package web

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/downloader/downloaderfakes"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

func requestContext(dl *downloaderfakes.FakeInterface) *connectors.Context {
	return connectors.NewContext(dl, nil, nil)
}

func TestLocatorMatchesAnyWebURL(t *testing.T) {
	c := NewConnector()
	rctx := requestContext(&downloaderfakes.FakeInterface{})
	wu, err := uri.ParseWebURL("https://example.com/some/page")
	require.NoError(t, err)

	loc, err := c.Locator(context.Background(), rctx, connectors.RefWeb(wu))
	require.NoError(t, err)
	page, ok := loc.(*locators.WebPage)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/some/page", page.URL)
	assert.Equal(t, "www", page.ResourceURI().Realm())
	assert.Equal(t, "page", page.ResourceURI().Subrealm())
}

func TestLocatorCannotInvertDigestURIs(t *testing.T) {
	c := NewConnector()
	rctx := requestContext(&downloaderfakes.FakeInterface{})
	page := &locators.WebPage{URL: "https://example.com/some/page"}

	_, err := c.Locator(context.Background(), rctx, connectors.RefResource(page.ResourceURI()))
	var unavailable connectors.UnavailableError
	require.ErrorAs(t, err, &unavailable)
}

func TestResolveUsesHeadMetadata(t *testing.T) {
	c := NewConnector()
	dl := &downloaderfakes.FakeInterface{
		FetchHeadStub: func(ctx context.Context, u *uri.WebURL, headers http.Header) (http.Header, error) {
			h := http.Header{}
			h.Set("Content-Type", "text/html; charset=utf-8")
			h.Set("Etag", `"v2"`)
			return h, nil
		},
	}
	l := &locators.WebPage{URL: "https://example.com/guide"}
	cached := &model.ResourceView{Metadata: model.MetadataDelta{Revision: model.Set(`"v1"`)}}

	res, err := c.Resolve(context.Background(), requestContext(dl), l, cached)
	require.NoError(t, err)
	assert.Equal(t, "guide", res.Delta.Metadata.Name.OrElse(""))
	aliases, _ := res.Delta.Metadata.Aliases.Value()
	assert.Equal(t, []string{"https://example.com/guide"}, aliases)
	assert.Equal(t, []uri.Affordance{uri.AffordanceBody}, res.Delta.Expired)
}

func TestObserveLiftsHTMLTitle(t *testing.T) {
	c := NewConnector()
	l := &locators.WebPage{URL: "https://example.com/guide"}
	page := []byte(`<html><head><title>  Styling
	Guide </title></head><body><h1>ignored</h1></body></html>`)
	dl := &downloaderfakes.FakeInterface{
		FetchBytesStub: func(ctx context.Context, u *uri.WebURL, headers http.Header) ([]byte, ident.MimeType, http.Header, error) {
			return page, "text/html", nil, nil
		},
		ReadBlobStub: func(ctx context.Context, name string, mime ident.MimeType, blob []byte, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error) {
			assert.Equal(t, "guide", name)
			assert.Equal(t, page, blob)
			return &downloader.DocumentsReadResponse{MimeType: "text/html", Mode: model.FragmentMarkdown, Text: "body"}, nil
		},
	}
	resolved := &model.ResourceView{Metadata: model.MetadataDelta{
		Affordances: model.Set([]model.AffordanceInfo{
			{Affordance: uri.AffordanceBody, MimeType: model.Set(ident.MimeType("text/html"))},
		}),
	}}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, resolved)
	require.NoError(t, err)
	require.NotNil(t, res.Delta)
	assert.Equal(t, "Styling Guide", res.Delta.Metadata.Name.OrElse(""))
	assert.Empty(t, dl.ReadDownloadCalls)
}

func TestPageTitle(t *testing.T) {
	cases := []struct {
		name string
		html string
		want string
	}{
		{"title element", "<html><head><title>Guide</title></head></html>", "Guide"},
		{"og:title wins", `<head><meta property="og:title" content="Social Guide"><title>Guide</title></head>`, "Social Guide"},
		{"no title", "<html><body><p>text</p></body></html>", ""},
		{"body titles ignored", "<html><body><title>late</title></body></html>", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, pageTitle([]byte(tc.html)))
		})
	}
}

func TestObserveCachesOnlyDocumentAndMedia(t *testing.T) {
	c := NewConnector()
	l := &locators.WebPage{URL: "https://example.com/guide"}

	cases := []struct {
		mime  string
		cache bool
	}{
		{"application/pdf", true},
		{"video/mp4", true},
		{"text/html", true},
		{"text/markdown", false},
		{"text/plain", false},
	}
	for _, tc := range cases {
		dl := &downloaderfakes.FakeInterface{
			ReadDownloadStub: func(ctx context.Context, u *uri.WebURL, authorization string, headers http.Header, opts downloader.ReadOptions) (*downloader.DocumentsReadResponse, error) {
				return &downloader.DocumentsReadResponse{MimeType: ident.MimeType(tc.mime), Mode: model.FragmentMarkdown, Text: "body"}, nil
			},
		}
		res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, nil)
		require.NoError(t, err, tc.mime)
		assert.Equal(t, tc.cache, res.Post.Cache, tc.mime)
	}
}
