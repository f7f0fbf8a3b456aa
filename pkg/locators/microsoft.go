// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package locators

import (
	"strings"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
)

// Microsoft Graph locator kinds
const (
	KindSharePointFile = "ms-sharepoint-file"
	KindOneDriveFile   = "ms-onedrive-file"
	KindOutlookMessage = "ms-outlook-message"
	KindTeamsMessage   = "ms-teams-message"
)

// graphBase is the Graph API root shared by all Microsoft locators
const graphBase = "https://graph.microsoft.com/v1.0"

// opaqueSegment packs a Graph identifier that is not a valid path segment
// into a filename-safe form; OpaqueSegmentValue restores it.
func opaqueSegment(id string) string {
	if _, ok := ident.TryDecodeFileName(id); ok {
		return id
	}
	return "x-" + ident.EncodeBase64Safe([]byte(id))
}

// OpaqueSegmentValue is the inverse of the packing used for Graph
// identifiers in resource URIs
func OpaqueSegmentValue(segment string) (string, error) {
	rest, ok := strings.CutPrefix(segment, "x-")
	if !ok {
		return segment, nil
	}
	raw, err := ident.DecodeBase64Safe(rest)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// MsSharePointFile addresses a drive item on a SharePoint site
type MsSharePointFile struct {
	RealmName string   `yaml:"realm"`
	SiteID    string   `yaml:"site_id"`
	ItemID    string   `yaml:"item_id"`
	ItemPath  []string `yaml:"item_path"`
	WebLink   string   `yaml:"web_link,omitempty"`
}

func (l *MsSharePointFile) Kind() string  { return KindSharePointFile }
func (l *MsSharePointFile) Realm() string { return l.RealmName }

func (l *MsSharePointFile) ResourceURI() uri.ResourceURI {
	parts := []string{opaqueSegment(l.SiteID)}
	for _, p := range l.ItemPath {
		parts = append(parts, opaqueSegment(p))
	}
	return uri.MustResourceURI(l.RealmName, "sharepoint", parts...)
}

func (l *MsSharePointFile) ContentURL() *uri.WebURL {
	return mustParseWebURL(graphBase + "/sites/" + l.SiteID + "/drive/items/" + l.ItemID + "/content")
}

func (l *MsSharePointFile) CitationURL() *uri.WebURL {
	if l.WebLink == "" {
		return nil
	}
	u, err := uri.ParseWebURL(l.WebLink)
	if err != nil {
		return nil
	}
	return u
}

// MsOneDriveFile addresses a drive item in a user drive
type MsOneDriveFile struct {
	RealmName string   `yaml:"realm"`
	DriveID   string   `yaml:"drive_id"`
	ItemID    string   `yaml:"item_id"`
	ItemPath  []string `yaml:"item_path"`
	WebLink   string   `yaml:"web_link,omitempty"`
}

func (l *MsOneDriveFile) Kind() string  { return KindOneDriveFile }
func (l *MsOneDriveFile) Realm() string { return l.RealmName }

func (l *MsOneDriveFile) ResourceURI() uri.ResourceURI {
	parts := []string{opaqueSegment(l.DriveID)}
	for _, p := range l.ItemPath {
		parts = append(parts, opaqueSegment(p))
	}
	return uri.MustResourceURI(l.RealmName, "onedrive", parts...)
}

func (l *MsOneDriveFile) ContentURL() *uri.WebURL {
	return mustParseWebURL(graphBase + "/drives/" + l.DriveID + "/items/" + l.ItemID + "/content")
}

func (l *MsOneDriveFile) CitationURL() *uri.WebURL {
	if l.WebLink == "" {
		return nil
	}
	u, err := uri.ParseWebURL(l.WebLink)
	if err != nil {
		return nil
	}
	return u
}

// MsOutlookMessage addresses a mailbox message
type MsOutlookMessage struct {
	RealmName string `yaml:"realm"`
	Mailbox   string `yaml:"mailbox"`
	MessageID string `yaml:"message_id"`
	WebLink   string `yaml:"web_link,omitempty"`
}

func (l *MsOutlookMessage) Kind() string  { return KindOutlookMessage }
func (l *MsOutlookMessage) Realm() string { return l.RealmName }

func (l *MsOutlookMessage) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "mail", opaqueSegment(l.Mailbox), opaqueSegment(l.MessageID))
}

func (l *MsOutlookMessage) ContentURL() *uri.WebURL {
	if l.Mailbox == "me" {
		return mustParseWebURL(graphBase + "/me/messages/" + l.MessageID)
	}
	return mustParseWebURL(graphBase + "/users/" + l.Mailbox + "/messages/" + l.MessageID)
}

func (l *MsOutlookMessage) CitationURL() *uri.WebURL {
	if l.WebLink == "" {
		return nil
	}
	u, err := uri.ParseWebURL(l.WebLink)
	if err != nil {
		return nil
	}
	return u
}

// MsTeamsMessage addresses a channel or chat message, optionally a reply
type MsTeamsMessage struct {
	RealmName string `yaml:"realm"`
	GroupID   string `yaml:"group_id,omitempty"`
	ThreadID  string `yaml:"thread_id"`
	MessageID string `yaml:"message_id"`
	ReplyID   string `yaml:"reply_id,omitempty"`
}

func (l *MsTeamsMessage) Kind() string  { return KindTeamsMessage }
func (l *MsTeamsMessage) Realm() string { return l.RealmName }

func (l *MsTeamsMessage) ResourceURI() uri.ResourceURI {
	parts := []string{opaqueSegment(l.ThreadID), l.MessageID}
	if l.ReplyID != "" {
		parts = append(parts, l.ReplyID)
	}
	return uri.MustResourceURI(l.RealmName, "teams", parts...)
}

func (l *MsTeamsMessage) ContentURL() *uri.WebURL {
	base := graphBase + "/teams/" + l.GroupID + "/channels/" + l.ThreadID + "/messages/" + l.MessageID
	if l.GroupID == "" {
		base = graphBase + "/chats/" + l.ThreadID + "/messages/" + l.MessageID
	}
	if l.ReplyID != "" {
		base += "/replies/" + l.ReplyID
	}
	return mustParseWebURL(base)
}

func (l *MsTeamsMessage) CitationURL() *uri.WebURL {
	id := l.MessageID
	if l.ReplyID != "" {
		id = l.ReplyID
	}
	u := "https://teams.microsoft.com/l/message/" + l.ThreadID + "/" + id
	if l.GroupID != "" {
		u += "?groupId=" + l.GroupID
	}
	return mustParseWebURL(u)
}
