// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package web is the catch-all connector: any http(s) URL no other
// connector claimed becomes a www resource. The URI path is a digest of
// the URL, so the reverse mapping lives in the alias store and resource
// histories, not in this connector.
package web

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Realm is fixed for the catch-all
const Realm = "www"

// Connector serves the www realm
type Connector struct{}

// NewConnector builds the catch-all connector
func NewConnector() *Connector { return &Connector{} }

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return Realm }

// Locator implements connectors.Connector. Every web URL matches; it is
// the registry's job to ask this connector last.
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != Realm {
			return nil, nil
		}
		// the URI carries a one-way digest; reconstruction happens
		// through the history or the alias store before dispatch
		return nil, connectors.UnavailableError(fmt.Sprintf("%s has no recorded source URL", ru))
	}
	if wu, ok := ref.Web(); ok {
		return &locators.WebPage{URL: wu.String()}, nil
	}
	return nil, nil
}

// pageName derives a display name from the URL
func pageName(wu *uri.WebURL) string {
	segs := wu.PathSegments()
	if len(segs) > 0 {
		return segs[len(segs)-1]
	}
	return wu.Host()
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	l, ok := loc.(*locators.WebPage)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), Realm))
	}
	target := l.ContentURL()
	headers, err := rctx.Downloader.FetchHead(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	mime := ident.MimeType("text/html")
	if ct := headers.Get("Content-Type"); ct != "" {
		value, _, _ := strings.Cut(ct, ";")
		mime = ident.MimeType(strings.TrimSpace(value))
	}
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(pageName(target)),
			MimeType:    model.Set(mime),
			CitationURL: model.Set(l.CitationURL().String()),
			Aliases:     model.Set([]string{l.URL}),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set(mime)},
			}),
		},
	}
	if etag := headers.Get("Etag"); etag != "" {
		delta.Metadata.Revision = model.Set(etag)
		if cached != nil {
			if prev, ok := cached.Metadata.Revision.Value(); ok && prev != etag {
				delta.Expired = []uri.Affordance{uri.AffordanceBody}
			}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

// Observe implements connectors.Connector. Arbitrary pages are only
// cached when the parser classified them as document or media content;
// in-body links of unknown pages never become relations.
func (c *Connector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	l, ok := loc.(*locators.WebPage)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), Realm))
	}
	if observable != uri.AffordanceBody {
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	}
	var delta *model.ResourceDelta
	var resp *downloader.DocumentsReadResponse
	var err error
	if isHTML(observable, resolved) {
		// fetch the page ourselves so the <title> survives parsing:
		// the parser keeps only the rendered text
		data, mime, _, ferr := rctx.Downloader.FetchBytes(ctx, l.ContentURL(), nil)
		if ferr != nil {
			return nil, ferr
		}
		if title := pageTitle(data); title != "" {
			delta = &model.ResourceDelta{
				Locator:  l,
				Metadata: model.MetadataDelta{Name: model.Set(title)},
			}
		}
		resp, err = rctx.Downloader.ReadBlob(ctx, pageName(l.ContentURL()), mime, data, nil)
	} else {
		resp, err = rctx.Downloader.ReadDownload(ctx, l.ContentURL(), "", nil, nil)
	}
	if err != nil {
		return nil, err
	}
	mode := resp.MimeType.Mode()
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: resp.Mode, Text: model.TrimText(resp.Text), Blobs: resp.Blobs},
		Delta:  delta,
		Post: connectors.PostFlags{
			Cache:              mode == ident.ModeDocument || mode == ident.ModeMedia,
			ExtractDescription: true,
		},
	}, nil
}

func isHTML(observable uri.Affordance, resolved *model.ResourceView) bool {
	if resolved == nil {
		return false
	}
	mime, ok := resolved.MimeFor(observable)
	return ok && mime == "text/html"
}
