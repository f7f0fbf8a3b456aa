// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package georges connects the gateway to the georges image-generation
// blob store. Blobs arrive as opaque external identifiers of the form
// ext://{realm}:{blob-id} and are served straight from the blob API.
package georges

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Connector serves one georges deployment
type Connector struct {
	realm  string
	domain string
}

// Options configures the connector
type Options struct {
	Realm  string
	Domain string
}

// NewConnector builds a connector for one georges deployment
func NewConnector(opts Options) *Connector {
	return &Connector{realm: opts.Realm, domain: opts.Domain}
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

func (c *Connector) apiHeaders(rctx *connectors.Context) http.Header {
	headers := http.Header{}
	if auth := rctx.AuthHeader(c.realm, ""); auth != "" {
		headers.Set("Authorization", auth)
	}
	return headers
}

// Locator implements connectors.Connector
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != c.realm {
			return nil, nil
		}
		path := ru.Path()
		if ru.Subrealm() != "blob" || len(path) != 1 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s: a blob URI carries one id", ru))
		}
		return &locators.GeorgesBlob{RealmName: c.realm, Domain: c.domain, BlobID: path[0]}, nil
	}
	if eu, ok := ref.External(); ok {
		prefix, id, found := strings.Cut(eu.Opaque(), ":")
		if !found || prefix != c.realm || id == "" {
			return nil, nil
		}
		return &locators.GeorgesBlob{RealmName: c.realm, Domain: c.domain, BlobID: id}, nil
	}
	if wu, ok := ref.Web(); ok && wu.Host() == c.domain {
		if id, found := strings.CutPrefix(wu.Path(), "/api/blobs/"); found && id != "" && !strings.Contains(id, "/") {
			return &locators.GeorgesBlob{RealmName: c.realm, Domain: c.domain, BlobID: id}, nil
		}
	}
	return nil, nil
}

func (c *Connector) blobMime(ctx context.Context, rctx *connectors.Context, l *locators.GeorgesBlob) (ident.MimeType, error) {
	headers, err := rctx.Downloader.FetchHead(ctx, l.ContentURL(), c.apiHeaders(rctx))
	if err != nil {
		return "", err
	}
	mime := ident.MimeType("image/png")
	if ct := headers.Get("Content-Type"); ct != "" {
		value, _, _ := strings.Cut(ct, ";")
		mime = ident.MimeType(strings.TrimSpace(value))
	}
	return mime, nil
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	l, ok := loc.(*locators.GeorgesBlob)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	mime, err := c.blobMime(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	// generated blobs are immutable; the id is the revision
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:     model.Set(l.BlobID),
			MimeType: model.Set(mime),
			Revision: model.Set(l.BlobID),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set(mime)},
				{Affordance: uri.AffordanceFile, MimeType: model.Set(mime)},
			}),
		},
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

// Observe implements connectors.Connector
func (c *Connector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	l, ok := loc.(*locators.GeorgesBlob)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	switch observable {
	case uri.AffordanceBody:
		data, mime, _, err := rctx.Downloader.FetchBytes(ctx, l.ContentURL(), c.apiHeaders(rctx))
		if err != nil {
			return nil, err
		}
		return &connectors.ObserveResult{
			Bundle: &model.Fragment{
				Mode: model.FragmentData,
				Text: fmt.Sprintf("![%s](%s)", l.BlobID, uri.SelfFragmentURI()),
				Blobs: map[uri.FragmentURI]ident.DataURI{
					uri.SelfFragmentURI(): ident.NewDataURI(mime, data),
				},
			},
			Post: connectors.PostFlags{Cache: true},
		}, nil
	case uri.AffordanceFile:
		mime, err := c.blobMime(ctx, rctx, l)
		if err != nil {
			return nil, err
		}
		expiry := time.Now().UTC().Add(downloader.ExpiryDownloadURL)
		return &connectors.ObserveResult{
			Bundle: &model.BundleFile{
				URI:         l.ResourceURI(),
				MimeType:    mime,
				DownloadURL: model.DownloadFromWebURL(l.ContentURL()),
				Expiry:      &expiry,
			},
		}, nil
	}
	return nil, connectors.ErrUnsupportedObservable(loc, observable)
}
