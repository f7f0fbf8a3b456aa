// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package locators

import (
	"strings"

	"github.com/nandam/nandam/pkg/uri"
)

// Atlassian locator kinds
const (
	KindConfluencePage = "confluence-page"
	KindJiraIssue      = "jira-issue"
)

// ConfluencePage addresses a wiki page by its content id
type ConfluencePage struct {
	RealmName string `yaml:"realm"`
	Domain    string `yaml:"domain"`
	SpaceKey  string `yaml:"space_key"`
	PageID    string `yaml:"page_id"`
}

func (l *ConfluencePage) Kind() string  { return KindConfluencePage }
func (l *ConfluencePage) Realm() string { return l.RealmName }

func (l *ConfluencePage) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "page", l.SpaceKey, l.PageID)
}

func (l *ConfluencePage) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/wiki/rest/api/content/" + l.PageID + "?expand=body.storage,version,space,ancestors")
}

func (l *ConfluencePage) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/wiki/spaces/" + l.SpaceKey + "/pages/" + l.PageID)
}

// JiraIssue addresses a tracker issue by its key
type JiraIssue struct {
	RealmName string `yaml:"realm"`
	Domain    string `yaml:"domain"`
	Key       string `yaml:"key"`
}

func (l *JiraIssue) Kind() string  { return KindJiraIssue }
func (l *JiraIssue) Realm() string { return l.RealmName }

func (l *JiraIssue) ResourceURI() uri.ResourceURI {
	project, _, _ := strings.Cut(l.Key, "-")
	return uri.MustResourceURI(l.RealmName, "issue", project, l.Key)
}

func (l *JiraIssue) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/rest/api/2/issue/" + l.Key + "?expand=renderedFields")
}

func (l *JiraIssue) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/browse/" + l.Key)
}
