// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package gitlab connects the gateway to a GitLab instance through the
// REST v4 API: projects, blobs, trees, commits and compare spans.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/connectors/forge"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Connector serves one GitLab instance. It holds only fixed options;
// everything learned from the backend is memoised on the request
// context and dies with the request.
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

// NewConnector builds a connector for one GitLab domain
func NewConnector(opts Options) *Connector {
	return &Connector{
		realm:       opts.Realm,
		domain:      opts.Domain,
		publicToken: opts.PublicToken,
	}
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

func (c *Connector) apiHeaders(rctx *connectors.Context) http.Header {
	headers := http.Header{}
	if cred, ok := rctx.Credential(c.realm); ok {
		if h := cred.AuthHeader(); h != "" {
			headers.Set("Authorization", h)
			return headers
		}
	}
	if c.publicToken != "" {
		headers.Set("PRIVATE-TOKEN", c.publicToken)
	}
	return headers
}

func (c *Connector) apiURL(projectID, suffix string) *uri.WebURL {
	u, err := uri.ParseWebURL("https://" + c.domain + "/api/v4/projects/" + projectID + suffix)
	if err != nil {
		panic(err)
	}
	return u
}

func projectID(namespace []string, project string) string {
	return url.PathEscape(strings.Join(append(append([]string{}, namespace...), project), "/"))
}

type projectInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	DefaultBranch string `json:"default_branch"`
	WebURL        string `json:"web_url"`
}

func (c *Connector) defaultBranch(ctx context.Context, rctx *connectors.Context, namespace []string, project string) (string, error) {
	if cfg := c.repoConfig(ctx, rctx, namespace, project); cfg != nil && cfg.Branch != "" {
		return cfg.Branch, nil
	}
	key := c.realm + "/branch/" + strings.Join(namespace, "/") + "/" + project
	if def, ok := rctx.CacheConnector.Get(key); ok {
		return def.(string), nil
	}
	var info projectInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, c.apiURL(projectID(namespace, project), ""), c.apiHeaders(rctx), &info); err != nil {
		return "", err
	}
	rctx.CacheConnector.Set(key, info.DefaultBranch)
	return info.DefaultBranch, nil
}

func (c *Connector) branchExists(ctx context.Context, rctx *connectors.Context, namespace []string, project, branch string) bool {
	key := c.realm + "/branchhit/" + strings.Join(namespace, "/") + "/" + project + "@" + branch
	if hit, ok := rctx.CacheConnector.Get(key); ok {
		return hit.(bool)
	}
	var out struct {
		Name string `json:"name"`
	}
	_, err := rctx.Downloader.FetchJSON(ctx, c.apiURL(projectID(namespace, project), "/repository/branches/"+url.PathEscape(branch)), c.apiHeaders(rctx), &out)
	hit := err == nil
	rctx.CacheConnector.Set(key, hit)
	return hit
}

// repoConfig loads the repo-level nandam.yml from the upstream default
// branch; lookup failures are best-effort and yield a nil config
func (c *Connector) repoConfig(ctx context.Context, rctx *connectors.Context, namespace []string, project string) *forge.RepoConfig {
	key := c.realm + "/repocfg/" + strings.Join(namespace, "/") + "/" + project
	if cfg, ok := rctx.CacheConnector.Get(key); ok {
		return cfg.(*forge.RepoConfig)
	}
	var cfg *forge.RepoConfig
	rawURL := c.apiURL(projectID(namespace, project), "/repository/files/"+url.PathEscape(forge.ConfigFileName)+"/raw")
	if data, _, _, err := rctx.Downloader.FetchBytes(ctx, rawURL, c.apiHeaders(rctx)); err == nil {
		if parsed, err := forge.ParseRepoConfig(data); err == nil {
			cfg = parsed
		} else {
			klog.Warningf("ignoring malformed %s in %s: %v", forge.ConfigFileName, strings.Join(namespace, "/")+"/"+project, err)
		}
	}
	rctx.CacheConnector.Set(key, cfg)
	return cfg
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	now := time.Now().UTC()
	switch l := loc.(type) {
	case *locators.GitLabProject:
		return c.resolveProject(ctx, rctx, l, now)
	case *locators.GitLabFile:
		return c.resolveFile(ctx, rctx, l, cached, now)
	case *locators.GitLabTree:
		return c.resolveTree(l, now)
	case *locators.GitLabCommit:
		return c.resolveCommit(ctx, rctx, l, now)
	case *locators.GitLabCompare:
		return c.resolveCompare(l, now)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
}

func (c *Connector) resolveProject(ctx context.Context, rctx *connectors.Context, l *locators.GitLabProject, now time.Time) (*connectors.ResolveResult, error) {
	var info projectInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
		return nil, err
	}
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(info.Name),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceCollection},
			}),
		},
	}
	if info.Description != "" {
		delta.Metadata.Description = model.Set(info.Description)
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

type fileInfo struct {
	FileName string `json:"file_name"`
	BlobID   string `json:"blob_id"`
}

func (c *Connector) resolveFile(ctx context.Context, rctx *connectors.Context, l *locators.GitLabFile, cached *model.ResourceView, now time.Time) (*connectors.ResolveResult, error) {
	cfg := c.repoConfig(ctx, rctx, l.Namespace, l.Project)
	if !cfg.Allows(l.Path) {
		if cfg.ShouldNotify(l.Path) {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s is excluded by %s in %s", strings.Join(l.Path, "/"), forge.ConfigFileName, strings.Join(l.Namespace, "/")+"/"+l.Project))
		}
		return nil, connectors.UnavailableError(fmt.Sprintf("%s is not observable in %s", strings.Join(l.Path, "/"), strings.Join(l.Namespace, "/")+"/"+l.Project))
	}
	metaURL := c.apiURL(projectID(l.Namespace, l.Project),
		"/repository/files/"+url.PathEscape(strings.Join(l.Path, "/"))+"?ref="+url.QueryEscape(l.Ref))
	var info fileInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, metaURL, c.apiHeaders(rctx), &info); err != nil {
		return nil, err
	}
	mime, ok := ident.GuessMimeType(info.FileName)
	if !ok {
		mime = "text/plain"
	}
	infos := []model.AffordanceInfo{
		{Affordance: uri.AffordanceBody, MimeType: model.Set(mime)},
	}
	switch mime.Mode() {
	case ident.ModeMarkdown, ident.ModePlain:
		infos = append(infos, model.AffordanceInfo{Affordance: uri.AffordancePlain})
	}
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(info.FileName),
			MimeType:    model.Set(mime),
			CitationURL: model.Set(l.CitationURL().String()),
			Revision:    model.Set(info.BlobID),
			Affordances: model.Set(infos),
		},
	}
	if sub, _, ok := cfg.InferSubproject(l.Path); ok {
		delta.Labels = append(delta.Labels, model.Label{Name: "subproject", Value: sub})
	}
	if cached != nil {
		if prev, ok := cached.Metadata.Revision.Value(); ok && prev != info.BlobID {
			delta.Expired = []uri.Affordance{uri.AffordanceBody}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

func (c *Connector) resolveTree(l *locators.GitLabTree, now time.Time) (*connectors.ResolveResult, error) {
	name := l.Project
	if len(l.Path) > 0 {
		name = l.Path[len(l.Path)-1]
	}
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(name),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceCollection},
			}),
		},
	}
	return &connectors.ResolveResult{Delta: delta, Cache: false}, nil
}

type commitInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (c *Connector) resolveCommit(ctx context.Context, rctx *connectors.Context, l *locators.GitLabCommit, now time.Time) (*connectors.ResolveResult, error) {
	var info commitInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
		return nil, err
	}
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(info.Title),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/markdown")},
			}),
		},
	}
	return &connectors.ResolveResult{Delta: delta, Cache: false}, nil
}

func (c *Connector) resolveCompare(l *locators.GitLabCompare, now time.Time) (*connectors.ResolveResult, error) {
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(l.Base + "..." + l.Head),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/markdown")},
			}),
		},
	}
	return &connectors.ResolveResult{Delta: delta, Cache: false}, nil
}
