// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package confluence connects the gateway to a Confluence wiki. Pages
// are addressed by space key and content id; bodies are read in storage
// format and handed to the documents parser.
package confluence

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// pageIDPattern matches /wiki/spaces/{space}/pages/{id}[/{slug}]
var pageIDPattern = regexp.MustCompile(`^/wiki/spaces/([^/]+)/pages/(\d+)(?:/.*)?$`)

// Connector serves one Confluence domain
type Connector struct {
	realm       string
	domain      string
	publicToken string
}

// Options configures the connector
type Options struct {
	Realm       string
	Domain      string
	PublicToken string
}

// NewConnector builds a connector for one Confluence domain
func NewConnector(opts Options) *Connector {
	return &Connector{realm: opts.Realm, domain: opts.Domain, publicToken: opts.PublicToken}
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

func (c *Connector) apiHeaders(rctx *connectors.Context) http.Header {
	headers := http.Header{}
	configured := ""
	if c.publicToken != "" {
		configured = connectors.BearerAuthHeader(c.publicToken)
	}
	if auth := rctx.AuthHeader(c.realm, configured); auth != "" {
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
		if ru.Subrealm() != "page" || len(path) != 2 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s: a page URI names space and page id", ru))
		}
		return &locators.ConfluencePage{RealmName: c.realm, Domain: c.domain, SpaceKey: path[0], PageID: path[1]}, nil
	}
	wu, ok := ref.Web()
	if !ok || wu.Host() != c.domain {
		return nil, nil
	}
	if m := pageIDPattern.FindStringSubmatch(wu.Path()); m != nil {
		return &locators.ConfluencePage{RealmName: c.realm, Domain: c.domain, SpaceKey: m[1], PageID: m[2]}, nil
	}
	// viewpage.action?pageId=123 is the legacy form; the space comes
	// from the content endpoint at resolve time, so it cannot be
	// inferred here
	if wu.Path() == "/wiki/pages/viewpage.action" {
		if id, ok := wu.GetQuery("pageId"); ok {
			page, err := c.fetchPage(ctx, rctx, id, "space")
			if err != nil {
				return nil, err
			}
			return &locators.ConfluencePage{RealmName: c.realm, Domain: c.domain, SpaceKey: page.Space.Key, PageID: id}, nil
		}
	}
	return nil, nil
}

type pageInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Version struct {
		Number int       `json:"number"`
		When   time.Time `json:"when"`
	} `json:"version"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

func (c *Connector) fetchPage(ctx context.Context, rctx *connectors.Context, id, expand string) (*pageInfo, error) {
	u, err := uri.ParseWebURL("https://" + c.domain + "/wiki/rest/api/content/" + id + "?expand=" + expand)
	if err != nil {
		return nil, err
	}
	var page pageInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, u, c.apiHeaders(rctx), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	l, ok := loc.(*locators.ConfluencePage)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	page, err := c.fetchPage(ctx, rctx, l.PageID, "version,space")
	if err != nil {
		return nil, err
	}
	revision := strconv.Itoa(page.Version.Number)
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(page.Title),
			MimeType:    model.Set[ident.MimeType]("text/html"),
			CitationURL: model.Set(l.CitationURL().String()),
			Revision:    model.Set(revision),
			UpdatedAt:   model.Set(page.Version.When),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/html")},
			}),
		},
	}
	if cached != nil {
		if prev, ok := cached.Metadata.Revision.Value(); ok && prev != revision {
			delta.Expired = []uri.Affordance{uri.AffordanceBody}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

// Observe implements connectors.Connector
func (c *Connector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	l, ok := loc.(*locators.ConfluencePage)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	if observable != uri.AffordanceBody {
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	}
	page, err := c.fetchPage(ctx, rctx, l.PageID, "body.storage,version,space,ancestors")
	if err != nil {
		return nil, err
	}
	resp, err := rctx.Downloader.ReadBlob(ctx, page.Title+".html", "text/html", []byte(page.Body.Storage.Value), nil)
	if err != nil {
		return nil, err
	}
	result := &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: resp.Mode, Text: model.TrimText(resp.Text), Blobs: resp.Blobs},
		Post: connectors.PostFlags{
			Cache:              true,
			ExtractDescription: true,
			LinkRelations:      true,
		},
	}
	// the direct ancestor carries the page hierarchy
	if len(page.Ancestors) > 0 {
		parent := &locators.ConfluencePage{RealmName: c.realm, Domain: c.domain, SpaceKey: l.SpaceKey, PageID: page.Ancestors[len(page.Ancestors)-1].ID}
		result.Relations = append(result.Relations, model.NewParent(parent.ResourceURI(), l.ResourceURI()))
	}
	return result, nil
}
