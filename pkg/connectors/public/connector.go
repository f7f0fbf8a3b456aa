// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package public serves well-known public sources that deserve stable
// URIs: arXiv papers and YouTube videos. It sits between the
// domain-scoped connectors and the catch-all web connector.
package public

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Realm is fixed: public resources are not deployment-scoped
const Realm = "public"

// paperIDPattern matches arXiv ids, optionally version-pinned
var paperIDPattern = regexp.MustCompile(`^([0-9]{4}\.[0-9]{4,5}(v[0-9]+)?)$`)

// videoIDPattern matches YouTube video ids
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// Connector serves the public realm
type Connector struct{}

// NewConnector builds the public connector
func NewConnector() *Connector { return &Connector{} }

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return Realm }

// Locator implements connectors.Connector
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != Realm {
			return nil, nil
		}
		path := ru.Path()
		if len(path) != 1 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s: a public URI carries one id", ru))
		}
		switch ru.Subrealm() {
		case "arxiv":
			return &locators.ArXivPaper{PaperID: path[0]}, nil
		case "youtube":
			return &locators.YouTubeVideo{VideoID: path[0]}, nil
		}
		return nil, connectors.UnavailableError(fmt.Sprintf("%s: unknown subrealm %q", ru, ru.Subrealm()))
	}
	wu, ok := ref.Web()
	if !ok {
		return nil, nil
	}
	switch wu.Host() {
	case "arxiv.org", "www.arxiv.org":
		return arxivLocator(wu)
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		if id, ok := wu.GetQuery("v"); ok && wu.Path() == "/watch" && videoIDPattern.MatchString(id) {
			return &locators.YouTubeVideo{VideoID: id}, nil
		}
	case "youtu.be":
		segs := wu.PathSegments()
		if len(segs) == 1 && videoIDPattern.MatchString(segs[0]) {
			return &locators.YouTubeVideo{VideoID: segs[0]}, nil
		}
	}
	return nil, nil
}

func arxivLocator(wu *uri.WebURL) (locators.Locator, error) {
	segs := wu.PathSegments()
	if len(segs) != 2 {
		return nil, nil
	}
	id := segs[1]
	switch segs[0] {
	case "abs", "src":
	case "pdf":
		// pdf links may carry an extension
		if m := regexp.MustCompile(`^(.*)\.pdf$`).FindStringSubmatch(id); m != nil {
			id = m[1]
		}
	default:
		return nil, nil
	}
	if !paperIDPattern.MatchString(id) {
		return nil, nil
	}
	return &locators.ArXivPaper{PaperID: id}, nil
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	switch l := loc.(type) {
	case *locators.ArXivPaper:
		return c.resolvePaper(ctx, rctx, l)
	case *locators.YouTubeVideo:
		return c.resolveVideo(ctx, rctx, l)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), Realm))
}

func (c *Connector) resolvePaper(ctx context.Context, rctx *connectors.Context, l *locators.ArXivPaper) (*connectors.ResolveResult, error) {
	if _, err := rctx.Downloader.FetchHead(ctx, l.CitationURL(), nil); err != nil {
		return nil, err
	}
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set("arXiv:" + l.PaperID),
			MimeType:    model.Set[ident.MimeType]("application/pdf"),
			CitationURL: model.Set(l.CitationURL().String()),
			Revision:    model.Set(l.PaperID),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("application/pdf")},
			}),
		},
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

// oembedInfo is the YouTube oEmbed response
type oembedInfo struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

func (c *Connector) resolveVideo(ctx context.Context, rctx *connectors.Context, l *locators.YouTubeVideo) (*connectors.ResolveResult, error) {
	oembedURL, err := uri.ParseWebURL("https://www.youtube.com/oembed?format=json&url=" + l.ContentURL().String())
	if err != nil {
		return nil, err
	}
	var info oembedInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, oembedURL, nil, &info); err != nil {
		return nil, err
	}
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(info.Title),
			MimeType:    model.Set[ident.MimeType]("video/mp4"),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("video/mp4")},
			}),
		},
	}
	if info.AuthorName != "" {
		delta.Labels = []model.Label{{Name: "author", Value: info.AuthorName}}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

// Observe implements connectors.Connector
func (c *Connector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	if observable != uri.AffordanceBody {
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	}
	switch l := loc.(type) {
	case *locators.ArXivPaper:
		return c.observePaper(ctx, rctx, l)
	case *locators.YouTubeVideo:
		return c.observeVideo(ctx, rctx, l)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), Realm))
}

// observePaper prefers the LaTeX source over the rendered PDF; papers
// without source fall back to the PDF
func (c *Connector) observePaper(ctx context.Context, rctx *connectors.Context, l *locators.ArXivPaper) (*connectors.ObserveResult, error) {
	resp, err := rctx.Downloader.ReadDownload(ctx, l.ContentURL(), "", nil, nil)
	if err != nil {
		var unavailable connectors.UnavailableError
		if !errors.As(err, &unavailable) {
			return nil, err
		}
		resp, err = rctx.Downloader.ReadDownload(ctx, l.PDFURL(), "", nil, nil)
		if err != nil {
			return nil, err
		}
	}
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: resp.Mode, Text: model.TrimText(resp.Text), Blobs: resp.Blobs},
		Post: connectors.PostFlags{
			Cache:              true,
			ExtractDescription: true,
		},
	}, nil
}

func (c *Connector) observeVideo(ctx context.Context, rctx *connectors.Context, l *locators.YouTubeVideo) (*connectors.ObserveResult, error) {
	resp, err := rctx.Downloader.ReadDownload(ctx, l.ContentURL(), "", nil, nil)
	if err != nil {
		return nil, err
	}
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: resp.Mode, Text: model.TrimText(resp.Text), Blobs: resp.Blobs},
		Post: connectors.PostFlags{
			Cache:              true,
			ExtractDescription: true,
		},
	}, nil
}
