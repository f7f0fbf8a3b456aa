// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package microsoft

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

func escapedPath(segs []string) string {
	out := make([]string, 0, len(segs))
	for _, s := range segs {
		out = append(out, url.PathEscape(s))
	}
	return strings.Join(out, "/")
}

// sharePointMetaURL addresses the item metadata, by id when known and by
// drive-relative path otherwise
func sharePointMetaURL(l *locators.MsSharePointFile) string {
	drive := graphBase + "/sites/" + url.PathEscape(l.SiteID) + "/drive"
	if l.ItemID != "" {
		return drive + "/items/" + url.PathEscape(l.ItemID)
	}
	return drive + "/root:/" + escapedPath(l.ItemPath)
}

func oneDriveMetaURL(l *locators.MsOneDriveFile) string {
	drive := graphBase + "/drives/" + url.PathEscape(l.DriveID)
	if l.ItemID != "" {
		return drive + "/items/" + url.PathEscape(l.ItemID)
	}
	return drive + "/root:/" + escapedPath(l.ItemPath)
}

// childrenURL derives the listing endpoint from a metadata endpoint;
// path-addressed items need the colon reentry syntax
func childrenURL(metaURL string) string {
	if strings.Contains(metaURL, "/root:/") {
		return metaURL + ":/children"
	}
	return metaURL + "/children"
}

func (c *Connector) fetchDriveItem(ctx context.Context, rctx *connectors.Context, metaURL string) (*driveItem, error) {
	var item driveItem
	if err := c.getJSON(ctx, rctx, metaURL, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func driveItemMime(item *driveItem) ident.MimeType {
	if item.File != nil && item.File.MimeType != "" {
		return ident.MimeType(item.File.MimeType)
	}
	if mime, ok := ident.GuessMimeType(item.Name); ok {
		return mime
	}
	return "application/octet-stream"
}

func (c *Connector) resolveDriveItem(ctx context.Context, rctx *connectors.Context, loc locators.Locator, metaURL string, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	item, err := c.fetchDriveItem(ctx, rctx, metaURL)
	if err != nil {
		return nil, err
	}
	// fill in what the path-derived locator was missing
	updated := c.driveLocator(item)
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     updated,
		Metadata: model.MetadataDelta{
			Name:      model.Set(item.Name),
			Revision:  model.Set(item.CTag),
			UpdatedAt: model.Set(item.LastModified),
		},
	}
	if item.WebURL != "" {
		delta.Metadata.CitationURL = model.Set(item.WebURL)
	}
	if item.Folder != nil {
		delta.Metadata.MimeType = model.Set[ident.MimeType]("inode/directory")
		delta.Metadata.Affordances = model.Set([]model.AffordanceInfo{
			{Affordance: uri.AffordanceCollection},
		})
	} else {
		mime := driveItemMime(item)
		delta.Metadata.MimeType = model.Set(mime)
		delta.Metadata.Affordances = model.Set([]model.AffordanceInfo{
			{Affordance: uri.AffordanceBody, MimeType: model.Set(mime)},
			{Affordance: uri.AffordanceFile, MimeType: model.Set(mime)},
		})
	}
	if cached != nil {
		if prev, ok := cached.Metadata.Revision.Value(); ok && prev != item.CTag {
			delta.Expired = []uri.Affordance{uri.AffordanceBody}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

func (c *Connector) observeDriveItem(ctx context.Context, rctx *connectors.Context, loc locators.Locator, metaURL string, observable uri.Affordance) (*connectors.ObserveResult, error) {
	switch observable {
	case uri.AffordanceBody:
		return c.observeDriveBody(ctx, rctx, metaURL)
	case uri.AffordanceCollection:
		return c.observeDriveChildren(ctx, rctx, loc, metaURL)
	case uri.AffordanceFile:
		return c.observeDriveFile(ctx, rctx, loc, metaURL)
	}
	return nil, connectors.ErrUnsupportedObservable(loc, observable)
}

func (c *Connector) observeDriveBody(ctx context.Context, rctx *connectors.Context, metaURL string) (*connectors.ObserveResult, error) {
	item, err := c.fetchDriveItem(ctx, rctx, metaURL)
	if err != nil {
		return nil, err
	}
	if item.DownloadURL == "" {
		return nil, connectors.UnavailableError(fmt.Sprintf("%s has no downloadable content", item.Name))
	}
	download, err := uri.ParseWebURL(item.DownloadURL)
	if err != nil {
		return nil, err
	}
	// the download URL is pre-authenticated; no Authorization goes along
	var resp *downloader.DocumentsReadResponse
	err = c.pacer.Do(ctx, func() error {
		var readErr error
		resp, readErr = rctx.Downloader.ReadDownload(ctx, download, "", nil, nil)
		return readErr
	})
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

type childrenPage struct {
	Value    []driveItem `json:"value"`
	NextLink string      `json:"@odata.nextLink"`
}

func (c *Connector) observeDriveChildren(ctx context.Context, rctx *connectors.Context, loc locators.Locator, metaURL string) (*connectors.ObserveResult, error) {
	next := childrenURL(metaURL)
	var results []uri.ResourceURI
	for next != "" {
		var page childrenPage
		if err := c.getJSON(ctx, rctx, next, &page); err != nil {
			return nil, err
		}
		for i := range page.Value {
			results = append(results, c.driveLocator(&page.Value[i]).ResourceURI())
		}
		next = page.NextLink
	}
	return &connectors.ObserveResult{
		Bundle: &model.BundleCollection{URI: loc.ResourceURI(), Results: results},
		Post:   connectors.PostFlags{ParentRelations: true},
	}, nil
}

func (c *Connector) observeDriveFile(ctx context.Context, rctx *connectors.Context, loc locators.Locator, metaURL string) (*connectors.ObserveResult, error) {
	item, err := c.fetchDriveItem(ctx, rctx, metaURL)
	if err != nil {
		return nil, err
	}
	if item.DownloadURL == "" {
		return nil, connectors.UnavailableError(fmt.Sprintf("%s has no downloadable content", item.Name))
	}
	download, err := uri.ParseWebURL(item.DownloadURL)
	if err != nil {
		return nil, err
	}
	expiry := time.Now().UTC().Add(downloader.ExpiryDownloadURL)
	return &connectors.ObserveResult{
		Bundle: &model.BundleFile{
			URI:         loc.ResourceURI(),
			MimeType:    driveItemMime(item),
			DownloadURL: model.DownloadFromWebURL(download),
			Expiry:      &expiry,
		},
	}, nil
}
