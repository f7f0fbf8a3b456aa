// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package microsoft

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/locators"
)

// deltaPage is one page of a drive delta feed
type deltaPage struct {
	Value     []driveItem `json:"value"`
	NextLink  string      `json:"@odata.nextLink"`
	DeltaLink string      `json:"@odata.deltaLink"`
}

func deltaStateName(siteID string) string { return "msdelta:" + siteID }

// Refresh implements connectors.Refresher: it walks the drive delta feed
// of every configured site and returns locators for the changed files so
// the caller can re-resolve them. The new delta link is persisted per
// site; when a sync yields no link the stored one is kept.
func (c *Connector) Refresh(ctx context.Context, rctx *connectors.Context) ([]locators.Locator, error) {
	var changed []locators.Locator
	var errs *multierror.Error
	for _, siteID := range c.refreshSiteIDs {
		siteChanged, err := c.refreshSite(ctx, rctx, siteID)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("refreshing site %s: %w", siteID, err))
			continue
		}
		changed = append(changed, siteChanged...)
	}
	return changed, errs.ErrorOrNil()
}

func (c *Connector) refreshSite(ctx context.Context, rctx *connectors.Context, siteID string) ([]locators.Locator, error) {
	next, stored, err := c.deltaStartURL(ctx, rctx, siteID)
	if err != nil {
		return nil, err
	}
	var changed []locators.Locator
	deltaLink := ""
	for next != "" {
		var page deltaPage
		if err := c.getJSON(ctx, rctx, next, &page); err != nil {
			return nil, err
		}
		for i := range page.Value {
			item := &page.Value[i]
			if item.File == nil {
				continue
			}
			if item.Parent.SiteID == "" {
				item.Parent.SiteID = siteID
			}
			changed = append(changed, c.driveLocator(item))
		}
		next = page.NextLink
		if page.DeltaLink != "" {
			deltaLink = page.DeltaLink
		}
	}
	if deltaLink != "" && deltaLink != stored {
		if err := rctx.Storage.SetSyncState(ctx, deltaStateName(siteID), deltaLink); err != nil {
			return nil, err
		}
	}
	klog.V(2).Infof("site %s delta sync: %d changed files", siteID, len(changed))
	return changed, nil
}

// deltaStartURL returns the resume point of a site sync: the stored
// delta link when present, the initial full-walk endpoint otherwise
func (c *Connector) deltaStartURL(ctx context.Context, rctx *connectors.Context, siteID string) (start, stored string, err error) {
	stored, found, err := rctx.Storage.GetSyncState(ctx, deltaStateName(siteID))
	if err != nil {
		return "", "", err
	}
	if found && stored != "" {
		return stored, stored, nil
	}
	return graphBase + "/sites/" + url.PathEscape(siteID) + "/drive/root/delta", "", nil
}
