// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	gh "github.com/google/go-github/v43/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

type fakeRepos struct {
	defaultBranch string
	branches      map[string]bool
	contents      map[string]*gh.RepositoryContent
	listings      map[string][]*gh.RepositoryContent

	getCalls int
}

func (f *fakeRepos) Get(ctx context.Context, owner, repo string) (*gh.Repository, *gh.Response, error) {
	f.getCalls++
	return &gh.Repository{DefaultBranch: gh.String(f.defaultBranch), Name: gh.String(repo)}, nil, nil
}

func (f *fakeRepos) GetBranch(ctx context.Context, owner, repo, branch string, _ bool) (*gh.Branch, *gh.Response, error) {
	if f.branches[branch] {
		return &gh.Branch{Name: gh.String(branch)}, nil, nil
	}
	return nil, nil, &gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeRepos) GetContents(ctx context.Context, owner, repo, path string, opts *gh.RepositoryContentGetOptions) (*gh.RepositoryContent, []*gh.RepositoryContent, *gh.Response, error) {
	if fc, ok := f.contents[path]; ok {
		return fc, nil, nil, nil
	}
	if dc, ok := f.listings[path]; ok {
		return nil, dc, nil, nil
	}
	return nil, nil, nil, &gh.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
}

func (f *fakeRepos) GetCommit(ctx context.Context, owner, repo, sha string, opts *gh.ListOptions) (*gh.RepositoryCommit, *gh.Response, error) {
	return &gh.RepositoryCommit{
		SHA:    gh.String(sha),
		Commit: &gh.Commit{Message: gh.String("fix: resolve crash\n\ndetails")},
		Files: []*gh.CommitFile{
			{Filename: gh.String("pkg/a.go"), Status: gh.String("modified"), Patch: gh.String("@@ -1 +1 @@\n-old\n+new")},
		},
	}, nil, nil
}

func (f *fakeRepos) CompareCommits(ctx context.Context, owner, repo, base, head string, opts *gh.ListOptions) (*gh.CommitsComparison, *gh.Response, error) {
	return &gh.CommitsComparison{
		Commits: []*gh.RepositoryCommit{
			{SHA: gh.String("abcdef1234567"), Commit: &gh.Commit{Message: gh.String("feat: add widget")}},
		},
		Files: []*gh.CommitFile{
			{Filename: gh.String("README.md"), Status: gh.String("modified"), Patch: gh.String("@@ -1 +1 @@\n-a\n+b")},
		},
	}, nil, nil
}

func testConnector(repos *fakeRepos) *Connector {
	return newConnector(Options{Realm: "github"}, nil, repos)
}

func requestContext() *connectors.Context {
	return connectors.NewContext(nil, nil, nil)
}

func webRef(t *testing.T, s string) connectors.Reference {
	t.Helper()
	u, err := uri.ParseWebURL(s)
	require.NoError(t, err)
	return connectors.RefWeb(u)
}

func TestLocatorDefaultBranchBlob(t *testing.T) {
	c := testConnector(&fakeRepos{defaultBranch: "main"})
	loc, err := c.Locator(context.Background(), requestContext(), webRef(t, "https://github.com/acme/widget/blob/main/README.md"))
	require.NoError(t, err)
	file, ok := loc.(*locators.GitHubFile)
	require.True(t, ok)
	assert.True(t, file.IsDefaultBranch)
	assert.Equal(t, "main", file.Ref)
	assert.Equal(t, "ndk://github/file/acme/widget/README.md", file.ResourceURI().String())
}

func TestLocatorSlashedBranchBlob(t *testing.T) {
	c := testConnector(&fakeRepos{defaultBranch: "main", branches: map[string]bool{"feature/x": true}})
	loc, err := c.Locator(context.Background(), requestContext(), webRef(t, "https://github.com/acme/widget/blob/feature/x/README.md"))
	require.NoError(t, err)
	file, ok := loc.(*locators.GitHubFile)
	require.True(t, ok)
	assert.False(t, file.IsDefaultBranch)
	assert.Equal(t, "feature/x", file.Ref)
	assert.Equal(t, []string{"README.md"}, file.Path)
	assert.Equal(t, "ndk://github/ref/acme/widget/feature_x/README.md", file.ResourceURI().String())
}

func TestLocatorDefersOnForeignHost(t *testing.T) {
	c := testConnector(&fakeRepos{defaultBranch: "main"})
	loc, err := c.Locator(context.Background(), requestContext(), webRef(t, "https://gitlab.example.com/a/b"))
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestLocatorFromResourceURI(t *testing.T) {
	c := testConnector(&fakeRepos{defaultBranch: "main"})
	for _, s := range []string{
		"ndk://github/file/acme/widget/README.md",
		"ndk://github/repo/acme/widget",
		"ndk://github/commit/acme/widget/abc123",
		"ndk://github/compare/acme/widget/v1.0_v2.0",
	} {
		ru, err := uri.DecodeResourceURI(s)
		require.NoError(t, err)
		loc, err := c.Locator(context.Background(), requestContext(), connectors.RefResource(ru))
		require.NoError(t, err, s)
		require.NotNil(t, loc, s)
		assert.Equal(t, s, loc.ResourceURI().String())
	}
}

func TestBranchLookupIsRequestScoped(t *testing.T) {
	repos := &fakeRepos{defaultBranch: "main"}
	c := testConnector(repos)
	ref := webRef(t, "https://github.com/acme/widget/blob/main/README.md")

	rctx := requestContext()
	_, err := c.Locator(context.Background(), rctx, ref)
	require.NoError(t, err)
	lookups := repos.getCalls
	require.Greater(t, lookups, 0)

	// a second inference within the same request is memoised
	_, err = c.Locator(context.Background(), rctx, ref)
	require.NoError(t, err)
	assert.Equal(t, lookups, repos.getCalls)

	// a new request learns nothing from the previous one
	_, err = c.Locator(context.Background(), requestContext(), ref)
	require.NoError(t, err)
	assert.Greater(t, repos.getCalls, lookups)
}

// recordingTransport answers every REST call with a minimal repository
// and records the Authorization header it was sent
type recordingTransport struct {
	auth []string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.auth = append(rt.auth, req.Header.Get("Authorization"))
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(`{"name": "widget", "default_branch": "main"}`)),
		Request:    req,
	}, nil
}

func TestResolveSendsCallerCredential(t *testing.T) {
	rec := &recordingTransport{}
	c := NewConnector(context.Background(), Options{Realm: "github", PublicToken: "public-token"}, &http.Client{Transport: rec})
	rctx := connectors.NewContext(nil, nil, map[string]connectors.Credential{
		"github": {Token: "caller-token"},
	})
	l := &locators.GitHubRepo{RealmName: "github", Owner: "acme", Repo: "widget"}

	_, err := c.Resolve(context.Background(), rctx, l, nil)
	require.NoError(t, err)
	require.NotEmpty(t, rec.auth)
	assert.Equal(t, "Bearer caller-token", rec.auth[len(rec.auth)-1])
}

func TestResolveFallsBackToPublicToken(t *testing.T) {
	rec := &recordingTransport{}
	c := NewConnector(context.Background(), Options{Realm: "github", PublicToken: "public-token"}, &http.Client{Transport: rec})
	l := &locators.GitHubRepo{RealmName: "github", Owner: "acme", Repo: "widget"}

	_, err := c.Resolve(context.Background(), requestContext(), l, nil)
	require.NoError(t, err)
	require.NotEmpty(t, rec.auth)
	assert.Equal(t, "Bearer public-token", rec.auth[len(rec.auth)-1])
}

func TestResolveFile(t *testing.T) {
	c := testConnector(&fakeRepos{
		defaultBranch: "main",
		contents: map[string]*gh.RepositoryContent{
			"README.md": {Name: gh.String("README.md"), SHA: gh.String("sha-1")},
		},
	})
	l := &locators.GitHubFile{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"README.md"}}
	res, err := c.Resolve(context.Background(), requestContext(), l, nil)
	require.NoError(t, err)
	assert.True(t, res.Cache)
	assert.Equal(t, "README.md", res.Delta.Metadata.Name.OrElse(""))
	infos, ok := res.Delta.Metadata.Affordances.Value()
	require.True(t, ok)
	var suffixes []uri.Affordance
	for _, info := range infos {
		suffixes = append(suffixes, info.Affordance)
	}
	assert.Equal(t, []uri.Affordance{uri.AffordanceBody, uri.AffordancePlain}, suffixes)
}

func TestResolveMissingFileIsUnavailable(t *testing.T) {
	c := testConnector(&fakeRepos{defaultBranch: "main"})
	l := &locators.GitHubFile{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"gone.md"}}
	_, err := c.Resolve(context.Background(), requestContext(), l, nil)
	var unavailable connectors.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestResolveFileLabelsSubproject(t *testing.T) {
	c := testConnector(&fakeRepos{
		defaultBranch: "main",
		contents: map[string]*gh.RepositoryContent{
			"nandam.yml":        {Name: gh.String("nandam.yml"), Content: gh.String("subprojects:\n  docs/api: api-guide\n")},
			"docs/api/guide.md": {Name: gh.String("guide.md"), SHA: gh.String("sha-1")},
		},
	})
	l := &locators.GitHubFile{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"docs", "api", "guide.md"}}
	res, err := c.Resolve(context.Background(), requestContext(), l, nil)
	require.NoError(t, err)
	require.Len(t, res.Delta.Labels, 1)
	assert.Equal(t, model.Label{Name: "subproject", Value: "api-guide"}, res.Delta.Labels[0])
}

func TestResolveExcludedFileNamesTheConfig(t *testing.T) {
	c := testConnector(&fakeRepos{
		defaultBranch: "main",
		contents: map[string]*gh.RepositoryContent{
			"nandam.yml":         {Name: gh.String("nandam.yml"), Content: gh.String("skipped_notify:\n- internal\n")},
			"internal/secret.md": {Name: gh.String("secret.md"), SHA: gh.String("sha-2")},
		},
	})
	l := &locators.GitHubFile{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"internal", "secret.md"}}
	_, err := c.Resolve(context.Background(), requestContext(), l, nil)
	var unavailable connectors.UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Contains(t, err.Error(), "excluded by nandam.yml")
}

func TestObserveTreeListsAllowedChildren(t *testing.T) {
	c := testConnector(&fakeRepos{
		defaultBranch: "main",
		listings: map[string][]*gh.RepositoryContent{
			"docs": {
				{Name: gh.String("guide.md"), Type: gh.String("file")},
				{Name: gh.String("main.go"), Type: gh.String("file")},
				{Name: gh.String("img"), Type: gh.String("dir")},
			},
		},
	})
	l := &locators.GitHubTree{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"docs"}}
	res, err := c.Observe(context.Background(), requestContext(), l, uri.AffordanceCollection, nil)
	require.NoError(t, err)
	collection, ok := res.Bundle.(*model.BundleCollection)
	require.True(t, ok)
	var got []string
	for _, u := range collection.Results {
		got = append(got, u.String())
	}
	// main.go is filtered by the default allow-list; directories pass
	assert.Equal(t, []string{
		"ndk://github/file/acme/widget/docs/guide.md",
		"ndk://github/tree/acme/widget/docs/img",
	}, got)
	assert.True(t, res.Post.ParentRelations)
}

func TestObserveCompareFormatsDiff(t *testing.T) {
	c := testConnector(&fakeRepos{defaultBranch: "main"})
	l := &locators.GitHubCompare{RealmName: "github", Owner: "acme", Repo: "widget", Base: "v1.0", Head: "v2.0"}
	res, err := c.Observe(context.Background(), requestContext(), l, uri.AffordanceBody, nil)
	require.NoError(t, err)
	fragment, ok := res.Bundle.(*model.Fragment)
	require.True(t, ok)
	assert.Contains(t, fragment.Text, "<commits>")
	assert.Contains(t, fragment.Text, "- abcdef1 feat: add widget")
	assert.Contains(t, fragment.Text, "<diffs>")
	assert.Contains(t, fragment.Text, `<file_diff file="README.md" status="modified">`)
}
