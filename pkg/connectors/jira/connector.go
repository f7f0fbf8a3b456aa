// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package jira connects the gateway to a Jira issue tracker. Issues are
// addressed by key; bodies render the summary, description and comments,
// and issue links become graph relations.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// issueKeyPattern matches /browse/{KEY}
var issueKeyPattern = regexp.MustCompile(`^/browse/([A-Z][A-Z0-9]*-\d+)$`)

// Connector serves one Jira domain
type Connector struct {
	realm          string
	domain         string
	publicUsername string
	publicToken    string
	// teamsRealm names the realm that serves Teams messages; conversation
	// links in comments resolve into it. Empty disables the translation.
	teamsRealm string
}

// Options configures the connector
type Options struct {
	Realm          string
	Domain         string
	PublicUsername string
	PublicToken    string
	TeamsRealm     string
}

// NewConnector builds a connector for one Jira domain
func NewConnector(opts Options) *Connector {
	return &Connector{
		realm:          opts.Realm,
		domain:         opts.Domain,
		publicUsername: opts.PublicUsername,
		publicToken:    opts.PublicToken,
		teamsRealm:     opts.TeamsRealm,
	}
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

func (c *Connector) apiHeaders(rctx *connectors.Context) http.Header {
	headers := http.Header{}
	configured := ""
	switch {
	case c.publicUsername != "" && c.publicToken != "":
		configured = connectors.BasicAuthHeader(c.publicUsername, c.publicToken)
	case c.publicToken != "":
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
		if ru.Subrealm() != "issue" || len(path) != 2 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s: an issue URI names project and key", ru))
		}
		return &locators.JiraIssue{RealmName: c.realm, Domain: c.domain, Key: path[1]}, nil
	}
	wu, ok := ref.Web()
	if !ok || wu.Host() != c.domain {
		return nil, nil
	}
	if m := issueKeyPattern.FindStringSubmatch(wu.Path()); m != nil {
		return &locators.JiraIssue{RealmName: c.realm, Domain: c.domain, Key: m[1]}, nil
	}
	return nil, nil
}

type issueComment struct {
	Author struct {
		DisplayName string `json:"displayName"`
	} `json:"author"`
	Created string `json:"created"`
	Body    string `json:"body"`
}

type issueLink struct {
	Type struct {
		Name string `json:"name"`
	} `json:"type"`
	InwardIssue *struct {
		Key string `json:"key"`
	} `json:"inwardIssue"`
	OutwardIssue *struct {
		Key string `json:"key"`
	} `json:"outwardIssue"`
}

type issueInfo struct {
	Key    string `json:"key"`
	Fields struct {
		Summary     string    `json:"summary"`
		Description string    `json:"description"`
		Updated     time.Time `json:"updated"`
		Status      struct {
			Name string `json:"name"`
		} `json:"status"`
		Comment struct {
			Comments []issueComment `json:"comments"`
		} `json:"comment"`
		IssueLinks []issueLink `json:"issuelinks"`
	} `json:"fields"`
}

func (c *Connector) fetchIssue(ctx context.Context, rctx *connectors.Context, l *locators.JiraIssue) (*issueInfo, error) {
	var info issueInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	l, ok := loc.(*locators.JiraIssue)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	info, err := c.fetchIssue(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	revision := info.Fields.Updated.UTC().Format(time.RFC3339)
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(fmt.Sprintf("%s: %s", l.Key, info.Fields.Summary)),
			MimeType:    model.Set[ident.MimeType]("text/markdown"),
			CitationURL: model.Set(l.CitationURL().String()),
			Revision:    model.Set(revision),
			UpdatedAt:   model.Set(info.Fields.Updated),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/markdown")},
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
	l, ok := loc.(*locators.JiraIssue)
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	if observable != uri.AffordanceBody {
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	}
	info, err := c.fetchIssue(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	relations := c.linkRelations(l, info.Fields.IssueLinks)
	comments, conversations := c.splitConversationComments(info.Fields.Comment.Comments)
	for _, conversation := range conversations {
		relations = append(relations, model.NewParent(l.ResourceURI(), conversation))
	}
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{
			Mode: model.FragmentMarkdown,
			Text: renderIssue(l.Key, info, comments),
		},
		Relations: relations,
		Post:      connectors.PostFlags{ExtractDescription: true},
	}, nil
}

// linkRelations turns issue links into misc edges named after the link
// type. The direction follows the link: outward links point away from
// this issue, inward links point at it.
func (c *Connector) linkRelations(l *locators.JiraIssue, links []issueLink) []model.Relation {
	var out []model.Relation
	for _, link := range links {
		switch {
		case link.OutwardIssue != nil:
			other := &locators.JiraIssue{RealmName: c.realm, Domain: c.domain, Key: link.OutwardIssue.Key}
			out = append(out, model.NewMisc(link.Type.Name, l.ResourceURI(), other.ResourceURI()))
		case link.InwardIssue != nil:
			other := &locators.JiraIssue{RealmName: c.realm, Domain: c.domain, Key: link.InwardIssue.Key}
			out = append(out, model.NewMisc(link.Type.Name, other.ResourceURI(), l.ResourceURI()))
		}
	}
	return out
}

// splitConversationComments separates the comments that are nothing but a
// Teams conversation link from the rest. The link stub carries no prose
// worth rendering; the conversation itself joins the graph instead.
func (c *Connector) splitConversationComments(comments []issueComment) ([]issueComment, []uri.ResourceURI) {
	if c.teamsRealm == "" {
		return comments, nil
	}
	var kept []issueComment
	var conversations []uri.ResourceURI
	for _, comment := range comments {
		if target, ok := teamsMessageURI(c.teamsRealm, comment.Body); ok {
			conversations = append(conversations, target)
			continue
		}
		kept = append(kept, comment)
	}
	return kept, conversations
}
