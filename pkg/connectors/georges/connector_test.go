// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package georges

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader/downloaderfakes"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

func requestContext(dl *downloaderfakes.FakeInterface) *connectors.Context {
	return connectors.NewContext(dl, nil, nil)
}

func TestLocatorFromExternalURI(t *testing.T) {
	c := NewConnector(Options{Realm: "georges", Domain: "georges.example.com"})
	rctx := requestContext(&downloaderfakes.FakeInterface{})

	eu, err := uri.DecodeExternalURI("ext://georges:blob-abc")
	require.NoError(t, err)
	loc, err := c.Locator(context.Background(), rctx, connectors.RefExternal(eu))
	require.NoError(t, err)
	blob, ok := loc.(*locators.GeorgesBlob)
	require.True(t, ok)
	assert.Equal(t, "blob-abc", blob.BlobID)
	assert.Equal(t, "ndk://georges/blob/blob-abc", blob.ResourceURI().String())

	other, err := uri.DecodeExternalURI("ext://elsewhere:blob-abc")
	require.NoError(t, err)
	loc, err = c.Locator(context.Background(), rctx, connectors.RefExternal(other))
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestObserveBodyEmbedsImage(t *testing.T) {
	c := NewConnector(Options{Realm: "georges", Domain: "georges.example.com"})
	dl := &downloaderfakes.FakeInterface{
		FetchBytesStub: func(ctx context.Context, u *uri.WebURL, headers http.Header) ([]byte, ident.MimeType, http.Header, error) {
			assert.Equal(t, "https://georges.example.com/api/blobs/blob-abc", u.String())
			return []byte{0x89, 0x50, 0x4e, 0x47}, "image/png", nil, nil
		},
	}
	l := &locators.GeorgesBlob{RealmName: "georges", Domain: "georges.example.com", BlobID: "blob-abc"}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceBody, nil)
	require.NoError(t, err)
	fragment, ok := res.Bundle.(*model.Fragment)
	require.True(t, ok)
	require.NoError(t, fragment.Validate())
	assert.True(t, res.Post.Cache)
	require.Len(t, fragment.Blobs, 1)
}

func TestObserveFileStub(t *testing.T) {
	c := NewConnector(Options{Realm: "georges", Domain: "georges.example.com"})
	dl := &downloaderfakes.FakeInterface{
		FetchHeadStub: func(ctx context.Context, u *uri.WebURL, headers http.Header) (http.Header, error) {
			h := http.Header{}
			h.Set("Content-Type", "image/jpeg; charset=binary")
			return h, nil
		},
	}
	l := &locators.GeorgesBlob{RealmName: "georges", Domain: "georges.example.com", BlobID: "blob-abc"}

	res, err := c.Observe(context.Background(), requestContext(dl), l, uri.AffordanceFile, nil)
	require.NoError(t, err)
	file, ok := res.Bundle.(*model.BundleFile)
	require.True(t, ok)
	assert.Equal(t, ident.MimeType("image/jpeg"), file.MimeType)
	assert.Equal(t, "https://georges.example.com/api/blobs/blob-abc", file.DownloadURL.String())
	require.NotNil(t, file.Expiry)
}
