// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package locators

import (
	"strings"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
)

// GitHub locator kinds
const (
	KindGitHubRepo    = "github-repo"
	KindGitHubFile    = "github-file"
	KindGitHubTree    = "github-tree"
	KindGitHubCommit  = "github-commit"
	KindGitHubCompare = "github-compare"
)

// NormalizeRefSegment flattens a git ref into a single URI path segment
// (feature/x becomes feature_x). Lossy; the locator keeps the exact ref.
func NormalizeRefSegment(ref string) string {
	name, err := ident.NormalizeFileName(ref)
	if err != nil {
		// refs are never empty; fall back to a stable constant for
		// pathological non-ASCII refs
		return "ref"
	}
	return name.String()
}

// GitHubRepo addresses a repository
type GitHubRepo struct {
	RealmName string `yaml:"realm"`
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
}

func (l *GitHubRepo) Kind() string  { return KindGitHubRepo }
func (l *GitHubRepo) Realm() string { return l.RealmName }

func (l *GitHubRepo) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "repo", l.Owner, l.Repo)
}

func (l *GitHubRepo) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://api.github.com/repos/" + l.Owner + "/" + l.Repo)
}

func (l *GitHubRepo) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://github.com/" + l.Owner + "/" + l.Repo)
}

// GitHubFile addresses a blob at a ref
type GitHubFile struct {
	RealmName       string   `yaml:"realm"`
	Owner           string   `yaml:"owner"`
	Repo            string   `yaml:"repo"`
	Ref             string   `yaml:"ref"`
	IsDefaultBranch bool     `yaml:"is_default_branch"`
	Path            []string `yaml:"path"`
}

func (l *GitHubFile) Kind() string  { return KindGitHubFile }
func (l *GitHubFile) Realm() string { return l.RealmName }

func (l *GitHubFile) ResourceURI() uri.ResourceURI {
	if l.IsDefaultBranch {
		parts := append([]string{l.Owner, l.Repo}, l.Path...)
		return uri.MustResourceURI(l.RealmName, "file", parts...)
	}
	parts := append([]string{l.Owner, l.Repo, NormalizeRefSegment(l.Ref)}, l.Path...)
	return uri.MustResourceURI(l.RealmName, "ref", parts...)
}

func (l *GitHubFile) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://raw.githubusercontent.com/" + l.Owner + "/" + l.Repo + "/" + l.Ref + "/" + strings.Join(l.Path, "/"))
}

func (l *GitHubFile) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://github.com/" + l.Owner + "/" + l.Repo + "/blob/" + l.Ref + "/" + strings.Join(l.Path, "/"))
}

// GitHubTree addresses a directory at a ref
type GitHubTree struct {
	RealmName       string   `yaml:"realm"`
	Owner           string   `yaml:"owner"`
	Repo            string   `yaml:"repo"`
	Ref             string   `yaml:"ref"`
	IsDefaultBranch bool     `yaml:"is_default_branch"`
	Path            []string `yaml:"path"`
}

func (l *GitHubTree) Kind() string  { return KindGitHubTree }
func (l *GitHubTree) Realm() string { return l.RealmName }

func (l *GitHubTree) ResourceURI() uri.ResourceURI {
	if l.IsDefaultBranch {
		parts := append([]string{l.Owner, l.Repo}, l.Path...)
		return uri.MustResourceURI(l.RealmName, "tree", parts...)
	}
	parts := append([]string{l.Owner, l.Repo, NormalizeRefSegment(l.Ref)}, l.Path...)
	return uri.MustResourceURI(l.RealmName, "reftree", parts...)
}

func (l *GitHubTree) ContentURL() *uri.WebURL { return l.CitationURL() }

func (l *GitHubTree) CitationURL() *uri.WebURL {
	u := "https://github.com/" + l.Owner + "/" + l.Repo + "/tree/" + l.Ref
	if len(l.Path) > 0 {
		u += "/" + strings.Join(l.Path, "/")
	}
	return mustParseWebURL(u)
}

// GitHubCommit addresses a single commit
type GitHubCommit struct {
	RealmName string `yaml:"realm"`
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	SHA       string `yaml:"sha"`
}

func (l *GitHubCommit) Kind() string  { return KindGitHubCommit }
func (l *GitHubCommit) Realm() string { return l.RealmName }

func (l *GitHubCommit) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "commit", l.Owner, l.Repo, l.SHA)
}

func (l *GitHubCommit) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://api.github.com/repos/" + l.Owner + "/" + l.Repo + "/commits/" + l.SHA)
}

func (l *GitHubCommit) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://github.com/" + l.Owner + "/" + l.Repo + "/commit/" + l.SHA)
}

// GitHubCompare addresses a two-dot ref comparison
type GitHubCompare struct {
	RealmName string `yaml:"realm"`
	Owner     string `yaml:"owner"`
	Repo      string `yaml:"repo"`
	Base      string `yaml:"base"`
	Head      string `yaml:"head"`
}

func (l *GitHubCompare) Kind() string  { return KindGitHubCompare }
func (l *GitHubCompare) Realm() string { return l.RealmName }

func (l *GitHubCompare) ResourceURI() uri.ResourceURI {
	span := NormalizeRefSegment(l.Base + "_" + l.Head)
	return uri.MustResourceURI(l.RealmName, "compare", l.Owner, l.Repo, span)
}

func (l *GitHubCompare) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://api.github.com/repos/" + l.Owner + "/" + l.Repo + "/compare/" + l.Base + "..." + l.Head)
}

func (l *GitHubCompare) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://github.com/" + l.Owner + "/" + l.Repo + "/compare/" + l.Base + "..." + l.Head)
}
