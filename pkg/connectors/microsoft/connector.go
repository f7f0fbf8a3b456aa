// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package microsoft connects the gateway to Microsoft Graph: SharePoint
// and OneDrive drive items, Outlook messages and Teams messages. Two
// connector flavours exist: the personal one works on the caller's
// delegated token, the organization one additionally holds an app-only
// client-credentials token and serves shared SharePoint sites.
package microsoft

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Connector serves one Graph tenant
type Connector struct {
	realm  string
	domain string
	org    bool
	tokens *TokenCache
	pacer  *Pacer

	internalSiteIDs []string
	refreshSiteIDs  []string
}

// Options configures a Graph connector
type Options struct {
	Realm    string
	Domain   string
	TenantID string
	// PublicClientID and PublicClientSecret enable the app-only token
	// for the organization flavour
	PublicClientID     string
	PublicClientSecret string
	InternalSiteIDs    []string
	RefreshSiteIDs     []string
	// Pacer is the process-wide Graph request serialiser, shared across
	// connectors
	Pacer *Pacer
}

// NewMyConnector builds the personal connector: OneDrive files, the
// caller's mailbox and chat messages, all on the delegated token
func NewMyConnector(opts Options) *Connector {
	return &Connector{realm: opts.Realm, domain: opts.Domain, pacer: opts.Pacer}
}

// NewOrgConnector builds the organization connector: SharePoint sites
// and Teams channel messages
func NewOrgConnector(opts Options) *Connector {
	c := &Connector{
		realm:           opts.Realm,
		domain:          opts.Domain,
		org:             true,
		pacer:           opts.Pacer,
		internalSiteIDs: opts.InternalSiteIDs,
		refreshSiteIDs:  opts.RefreshSiteIDs,
	}
	if opts.PublicClientID != "" && opts.PublicClientSecret != "" {
		c.tokens = NewTokenCache(opts.TenantID, opts.PublicClientID, opts.PublicClientSecret)
	}
	return c
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

func (c *Connector) authHeader(ctx context.Context, rctx *connectors.Context) (string, error) {
	if auth := rctx.AuthHeader(c.realm, ""); auth != "" {
		return auth, nil
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return "", err
		}
		return connectors.BearerAuthHeader(token), nil
	}
	return "", connectors.UnavailableError(fmt.Sprintf("no credential for realm %s", c.realm))
}

// getJSON performs one authenticated Graph request under the pacer
func (c *Connector) getJSON(ctx context.Context, rctx *connectors.Context, rawURL string, out interface{}) error {
	u, err := uri.ParseWebURL(rawURL)
	if err != nil {
		return err
	}
	auth, err := c.authHeader(ctx, rctx)
	if err != nil {
		return err
	}
	headers := http.Header{}
	headers.Set("Authorization", auth)
	return c.pacer.Do(ctx, func() error {
		_, err := rctx.Downloader.FetchJSON(ctx, u, headers, out)
		return err
	})
}

// driveItem is the Graph drive-item shape shared by lookups, listings
// and delta pages
type driveItem struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	WebURL       string    `json:"webUrl"`
	CTag         string    `json:"cTag"`
	ETag         string    `json:"eTag"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModifiedDateTime"`
	DownloadURL  string    `json:"@microsoft.graph.downloadUrl"`
	File         *struct {
		MimeType string `json:"mimeType"`
	} `json:"file"`
	Folder *struct {
		ChildCount int `json:"childCount"`
	} `json:"folder"`
	Parent struct {
		SiteID  string `json:"siteId"`
		DriveID string `json:"driveId"`
		Path    string `json:"path"`
	} `json:"parentReference"`
}

// itemPath derives the drive-relative path of an item from its parent
// reference ("/drives/x/root:/docs" plus the item name)
func (d *driveItem) itemPath() []string {
	var segs []string
	if _, after, ok := strings.Cut(d.Parent.Path, "root:"); ok {
		for _, s := range strings.Split(after, "/") {
			if s != "" {
				segs = append(segs, s)
			}
		}
	}
	return append(segs, d.Name)
}

// shareToken encodes a sharing URL for the Graph /shares endpoint
func shareToken(u *uri.WebURL) string {
	return "u!" + ident.EncodeBase64Safe([]byte(u.String()))
}

// itemFromShareURL resolves any drive-item web URL through the shares
// endpoint, which works for both canonical and sharing links
func (c *Connector) itemFromShareURL(ctx context.Context, rctx *connectors.Context, wu *uri.WebURL) (*driveItem, error) {
	var item driveItem
	if err := c.getJSON(ctx, rctx, graphBase+"/shares/"+shareToken(wu)+"/driveItem", &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Locator implements connectors.Connector
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != c.realm {
			return nil, nil
		}
		return c.locatorFromURI(ru)
	}
	wu, ok := ref.Web()
	if !ok {
		return nil, nil
	}
	switch wu.Host() {
	case "teams.microsoft.com":
		return c.locatorFromTeamsLink(wu)
	case c.domain:
		item, err := c.itemFromShareURL(ctx, rctx, wu)
		if err != nil {
			return nil, err
		}
		if !c.servesSite(item.Parent.SiteID) {
			// the site is outside this connector's scope; defer
			return nil, nil
		}
		return c.driveLocator(item), nil
	}
	return nil, nil
}

// servesSite reports whether a SharePoint site is within the
// organization connector's configured scope. An empty list serves
// every site; the personal flavour is never site-scoped.
func (c *Connector) servesSite(siteID string) bool {
	if !c.org || len(c.internalSiteIDs) == 0 {
		return true
	}
	for _, id := range c.internalSiteIDs {
		if strings.EqualFold(id, siteID) {
			return true
		}
	}
	return false
}

// driveLocator builds the drive-item locator variant this flavour serves
func (c *Connector) driveLocator(item *driveItem) locators.Locator {
	if c.org {
		return &locators.MsSharePointFile{
			RealmName: c.realm,
			SiteID:    item.Parent.SiteID,
			ItemID:    item.ID,
			ItemPath:  item.itemPath(),
			WebLink:   item.WebURL,
		}
	}
	return &locators.MsOneDriveFile{
		RealmName: c.realm,
		DriveID:   item.Parent.DriveID,
		ItemID:    item.ID,
		ItemPath:  item.itemPath(),
		WebLink:   item.WebURL,
	}
}

// locatorFromTeamsLink parses a Teams message deep link. Channel
// messages carry a groupId and belong to the organization flavour;
// chats have none and belong to the personal one.
func (c *Connector) locatorFromTeamsLink(wu *uri.WebURL) (locators.Locator, error) {
	segs := wu.PathSegments()
	if len(segs) < 4 || segs[0] != "l" || segs[1] != "message" {
		return nil, nil
	}
	groupID, hasGroup := wu.GetQuery("groupId")
	if hasGroup != c.org {
		return nil, nil
	}
	loc := &locators.MsTeamsMessage{
		RealmName: c.realm,
		GroupID:   groupID,
		ThreadID:  segs[2],
		MessageID: segs[3],
	}
	if parent, ok := wu.GetQuery("parentMessageId"); ok && parent != loc.MessageID {
		loc.ReplyID = loc.MessageID
		loc.MessageID = parent
	}
	return loc, nil
}

func (c *Connector) locatorFromURI(ru uri.ResourceURI) (locators.Locator, error) {
	path := ru.Path()
	bad := func(format string, args ...interface{}) error {
		return connectors.UnavailableError(fmt.Sprintf("%s: ", ru) + fmt.Sprintf(format, args...))
	}
	decode := func(segs []string) ([]string, error) {
		out := make([]string, 0, len(segs))
		for _, s := range segs {
			v, err := locators.OpaqueSegmentValue(s)
			if err != nil {
				return nil, bad("malformed segment %q", s)
			}
			out = append(out, v)
		}
		return out, nil
	}
	switch ru.Subrealm() {
	case "sharepoint":
		if len(path) < 2 {
			return nil, bad("a sharepoint URI names a site and an item path")
		}
		values, err := decode(path)
		if err != nil {
			return nil, err
		}
		return &locators.MsSharePointFile{RealmName: c.realm, SiteID: values[0], ItemPath: values[1:]}, nil
	case "onedrive":
		if len(path) < 2 {
			return nil, bad("a onedrive URI names a drive and an item path")
		}
		values, err := decode(path)
		if err != nil {
			return nil, err
		}
		return &locators.MsOneDriveFile{RealmName: c.realm, DriveID: values[0], ItemPath: values[1:]}, nil
	case "mail":
		if len(path) != 2 {
			return nil, bad("a mail URI names a mailbox and a message")
		}
		values, err := decode(path)
		if err != nil {
			return nil, err
		}
		return &locators.MsOutlookMessage{RealmName: c.realm, Mailbox: values[0], MessageID: values[1]}, nil
	case "teams":
		if len(path) != 2 && len(path) != 3 {
			return nil, bad("a teams URI names a thread and a message")
		}
		thread, err := locators.OpaqueSegmentValue(path[0])
		if err != nil {
			return nil, bad("malformed segment %q", path[0])
		}
		loc := &locators.MsTeamsMessage{RealmName: c.realm, ThreadID: thread, MessageID: path[1]}
		if len(path) == 3 {
			loc.ReplyID = path[2]
		}
		return loc, nil
	}
	return nil, bad("unknown subrealm %q", ru.Subrealm())
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	switch l := loc.(type) {
	case *locators.MsSharePointFile:
		return c.resolveDriveItem(ctx, rctx, loc, sharePointMetaURL(l), cached)
	case *locators.MsOneDriveFile:
		return c.resolveDriveItem(ctx, rctx, loc, oneDriveMetaURL(l), cached)
	case *locators.MsOutlookMessage:
		return c.resolveMessage(ctx, rctx, l, cached)
	case *locators.MsTeamsMessage:
		return c.resolveTeamsMessage(ctx, rctx, l, cached)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
}

// Observe implements connectors.Connector
func (c *Connector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	switch l := loc.(type) {
	case *locators.MsSharePointFile:
		return c.observeDriveItem(ctx, rctx, loc, sharePointMetaURL(l), observable)
	case *locators.MsOneDriveFile:
		return c.observeDriveItem(ctx, rctx, loc, oneDriveMetaURL(l), observable)
	case *locators.MsOutlookMessage:
		if observable != uri.AffordanceBody {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeMessage(ctx, rctx, l)
	case *locators.MsTeamsMessage:
		if observable != uri.AffordanceBody {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeTeamsMessage(ctx, rctx, l)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
}
