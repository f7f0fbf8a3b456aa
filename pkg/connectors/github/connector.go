// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package github connects the gateway to GitHub: repositories, blobs,
// trees, commits and compare spans, addressed through the REST API.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v43/github"
	"golang.org/x/oauth2"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/connectors/forge"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

//go:generate go run github.com/maxbrunsfeld/counterfeiter/v6 -generate

//counterfeiter:generate . Repositories

// Repositories is the narrow slice of the GitHub API the connector uses
type Repositories interface {
	Get(ctx context.Context, owner, repo string) (*gh.Repository, *gh.Response, error)
	GetContents(ctx context.Context, owner, repo, path string, opts *gh.RepositoryContentGetOptions) (*gh.RepositoryContent, []*gh.RepositoryContent, *gh.Response, error)
	GetBranch(ctx context.Context, owner, repo, branch string, followRedirects bool) (*gh.Branch, *gh.Response, error)
	GetCommit(ctx context.Context, owner, repo, sha string, opts *gh.ListOptions) (*gh.RepositoryCommit, *gh.Response, error)
	CompareCommits(ctx context.Context, owner, repo, base, head string, opts *gh.ListOptions) (*gh.CommitsComparison, *gh.Response, error)
}

//counterfeiter:generate . RateLimitSource

// RateLimitSource is an interface needed for faking
type RateLimitSource interface {
	RateLimits(ctx context.Context) (*gh.RateLimits, *gh.Response, error)
}

// Connector serves the github realm. It holds only fixed options and
// the process clients; everything learned from the backend is memoised
// on the request context and dies with the request.
type Connector struct {
	realm       string
	host        string
	rawHost     string
	repos       Repositories
	rateLimit   RateLimitSource
	publicToken string
	transport   http.RoundTripper
}

// Options configures the connector
type Options struct {
	Realm       string
	PublicToken string
}

// NewConnector builds a github.com connector over a caching HTTP client
func NewConnector(ctx context.Context, opts Options, httpClient *http.Client) *Connector {
	var transport http.RoundTripper
	if httpClient != nil {
		transport = httpClient.Transport
	}
	if opts.PublicToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.PublicToken})
		base := oauth2.NewClient(ctx, ts)
		if httpClient != nil {
			base.Transport.(*oauth2.Transport).Base = httpClient.Transport
		}
		httpClient = base
	}
	client := gh.NewClient(httpClient)
	c := newConnector(opts, client, client.Repositories)
	c.transport = transport
	return c
}

func newConnector(opts Options, rateLimit RateLimitSource, repos Repositories) *Connector {
	return &Connector{
		realm:       opts.Realm,
		host:        "github.com",
		rawHost:     "raw.githubusercontent.com",
		repos:       repos,
		rateLimit:   rateLimit,
		publicToken: opts.PublicToken,
	}
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

// LogRateLimits reports the remaining API budget
func (c *Connector) LogRateLimits(ctx context.Context) {
	if c.rateLimit == nil {
		return
	}
	limits, _, err := c.rateLimit.RateLimits(ctx)
	if err != nil {
		klog.Warningf("reading rate limits of %s failed: %v", c.host, err)
		return
	}
	core := limits.GetCore()
	klog.Infof("%s rate limit: %d of %d remaining, resets at %s", c.host, core.Remaining, core.Limit, core.Reset.Format(time.RFC3339))
}

func (c *Connector) authHeader(rctx *connectors.Context) string {
	configured := ""
	if c.publicToken != "" {
		configured = connectors.BearerAuthHeader(c.publicToken)
	}
	return rctx.AuthHeader(c.realm, configured)
}

// authTransport stamps one Authorization header onto every request
type authTransport struct {
	base   http.RoundTripper
	header string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	cloned := req.Clone(req.Context())
	cloned.Header.Set("Authorization", t.header)
	return base.RoundTrip(cloned)
}

// repositories returns the REST client for this request: the public one
// when the request carries no credential for the realm, a request-scoped
// client on the caller's credential otherwise
func (c *Connector) repositories(rctx *connectors.Context) Repositories {
	cred, ok := rctx.Credential(c.realm)
	if !ok {
		return c.repos
	}
	header := cred.AuthHeader()
	if header == "" {
		return c.repos
	}
	key := c.realm + "/rest-client"
	if cached, ok := rctx.CacheConnector.Get(key); ok {
		return cached.(Repositories)
	}
	client := gh.NewClient(&http.Client{Transport: &authTransport{base: c.transport, header: header}})
	repos := Repositories(client.Repositories)
	rctx.CacheConnector.Set(key, repos)
	return repos
}

// defaultBranch returns the repository default branch, honoring a
// branch override in the repo config
func (c *Connector) defaultBranch(ctx context.Context, rctx *connectors.Context, owner, repo string) (string, error) {
	if cfg := c.repoConfig(ctx, rctx, owner, repo); cfg != nil && cfg.Branch != "" {
		return cfg.Branch, nil
	}
	key := c.realm + "/branch/" + owner + "/" + repo
	if def, ok := rctx.CacheConnector.Get(key); ok {
		return def.(string), nil
	}
	repository, _, err := c.repositories(rctx).Get(ctx, owner, repo)
	if err != nil {
		return "", mapGitHubError(err, owner+"/"+repo)
	}
	def := repository.GetDefaultBranch()
	rctx.CacheConnector.Set(key, def)
	return def, nil
}

// branchExists probes a candidate branch name, with a request cache
func (c *Connector) branchExists(ctx context.Context, rctx *connectors.Context, owner, repo, branch string) bool {
	key := c.realm + "/branchhit/" + owner + "/" + repo + "@" + branch
	if hit, ok := rctx.CacheConnector.Get(key); ok {
		return hit.(bool)
	}
	_, _, err := c.repositories(rctx).GetBranch(ctx, owner, repo, branch, true)
	hit := err == nil
	rctx.CacheConnector.Set(key, hit)
	return hit
}

// repoConfig loads the repo-level nandam.yml; lookup failures are
// best-effort and yield a nil config
func (c *Connector) repoConfig(ctx context.Context, rctx *connectors.Context, owner, repo string) *forge.RepoConfig {
	key := c.realm + "/repocfg/" + owner + "/" + repo
	if cfg, ok := rctx.CacheConnector.Get(key); ok {
		return cfg.(*forge.RepoConfig)
	}
	var cfg *forge.RepoConfig
	fc, _, _, err := c.repositories(rctx).GetContents(ctx, owner, repo, forge.ConfigFileName, nil)
	if err == nil && fc != nil {
		if content, err := fc.GetContent(); err == nil {
			if parsed, err := forge.ParseRepoConfig([]byte(content)); err == nil {
				cfg = parsed
			} else {
				klog.Warningf("ignoring malformed %s in %s/%s: %v", forge.ConfigFileName, owner, repo, err)
			}
		}
	}
	rctx.CacheConnector.Set(key, cfg)
	return cfg
}

func mapGitHubError(err error, what string) error {
	var ghErr *gh.ErrorResponse
	if e, ok := err.(*gh.ErrorResponse); ok {
		ghErr = e
	}
	if ghErr != nil && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return connectors.UnavailableError(fmt.Sprintf("%s is unavailable (status %d)", what, ghErr.Response.StatusCode))
		}
	}
	return err
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	now := time.Now().UTC()
	switch l := loc.(type) {
	case *locators.GitHubRepo:
		return c.resolveRepo(ctx, rctx, l, now)
	case *locators.GitHubFile:
		return c.resolveFile(ctx, rctx, l, cached, now)
	case *locators.GitHubTree:
		return c.resolveTree(ctx, rctx, l, now)
	case *locators.GitHubCommit:
		return c.resolveCommit(ctx, rctx, l, now)
	case *locators.GitHubCompare:
		return c.resolveCompare(l, now)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
}

func (c *Connector) resolveRepo(ctx context.Context, rctx *connectors.Context, l *locators.GitHubRepo, now time.Time) (*connectors.ResolveResult, error) {
	repository, _, err := c.repositories(rctx).Get(ctx, l.Owner, l.Repo)
	if err != nil {
		return nil, mapGitHubError(err, l.Owner+"/"+l.Repo)
	}
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(repository.GetName()),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceCollection},
			}),
		},
	}
	if desc := repository.GetDescription(); desc != "" {
		delta.Metadata.Description = model.Set(desc)
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

func (c *Connector) resolveFile(ctx context.Context, rctx *connectors.Context, l *locators.GitHubFile, cached *model.ResourceView, now time.Time) (*connectors.ResolveResult, error) {
	cfg := c.repoConfig(ctx, rctx, l.Owner, l.Repo)
	if !cfg.Allows(l.Path) {
		if cfg.ShouldNotify(l.Path) {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s is excluded by %s in %s/%s", strings.Join(l.Path, "/"), forge.ConfigFileName, l.Owner, l.Repo))
		}
		return nil, connectors.UnavailableError(fmt.Sprintf("%s is not observable in %s/%s", strings.Join(l.Path, "/"), l.Owner, l.Repo))
	}
	fc, _, _, err := c.repositories(rctx).GetContents(ctx, l.Owner, l.Repo, strings.Join(l.Path, "/"), &gh.RepositoryContentGetOptions{Ref: l.Ref})
	if err != nil {
		return nil, mapGitHubError(err, l.ResourceURI().String())
	}
	if fc == nil {
		return nil, connectors.UnavailableError(fmt.Sprintf("%s is a directory, not a file", l.ResourceURI()))
	}
	name := fc.GetName()
	mime, ok := ident.GuessMimeType(name)
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
			Name:        model.Set(name),
			MimeType:    model.Set(mime),
			CitationURL: model.Set(l.CitationURL().String()),
			Revision:    model.Set(fc.GetSHA()),
			Affordances: model.Set(infos),
		},
	}
	if sub, _, ok := cfg.InferSubproject(l.Path); ok {
		delta.Labels = append(delta.Labels, model.Label{Name: "subproject", Value: sub})
	}
	// a revision change expires the cached body
	if cached != nil {
		if prev, ok := cached.Metadata.Revision.Value(); ok && prev != fc.GetSHA() {
			delta.Expired = []uri.Affordance{uri.AffordanceBody}
		}
	}
	return &connectors.ResolveResult{Delta: delta, Cache: true}, nil
}

func (c *Connector) resolveTree(ctx context.Context, rctx *connectors.Context, l *locators.GitHubTree, now time.Time) (*connectors.ResolveResult, error) {
	name := l.Repo
	if len(l.Path) > 0 {
		name = l.Path[len(l.Path)-1]
	}
	// probe so nonexistent trees fail at resolve time
	_, dc, _, err := c.repositories(rctx).GetContents(ctx, l.Owner, l.Repo, strings.Join(l.Path, "/"), &gh.RepositoryContentGetOptions{Ref: l.Ref})
	if err != nil {
		return nil, mapGitHubError(err, l.ResourceURI().String())
	}
	if dc == nil {
		return nil, connectors.UnavailableError(fmt.Sprintf("%s is not a directory", l.ResourceURI()))
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

func (c *Connector) resolveCommit(ctx context.Context, rctx *connectors.Context, l *locators.GitHubCommit, now time.Time) (*connectors.ResolveResult, error) {
	commit, _, err := c.repositories(rctx).GetCommit(ctx, l.Owner, l.Repo, l.SHA, nil)
	if err != nil {
		return nil, mapGitHubError(err, l.ResourceURI().String())
	}
	delta := model.ResourceDelta{
		RefreshedAt: now,
		Locator:     l,
		Metadata: model.MetadataDelta{
			Name:        model.Set(firstLine(commit.GetCommit().GetMessage())),
			CitationURL: model.Set(l.CitationURL().String()),
			Affordances: model.Set([]model.AffordanceInfo{
				{Affordance: uri.AffordanceBody, MimeType: model.Set[ident.MimeType]("text/markdown")},
			}),
		},
	}
	return &connectors.ResolveResult{Delta: delta, Cache: false}, nil
}

func (c *Connector) resolveCompare(l *locators.GitHubCompare, now time.Time) (*connectors.ResolveResult, error) {
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

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}
