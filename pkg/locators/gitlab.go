// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package locators

import (
	"net/url"
	"strings"

	"github.com/nandam/nandam/pkg/uri"
)

// GitLab locator kinds
const (
	KindGitLabProject = "gitlab-project"
	KindGitLabFile    = "gitlab-file"
	KindGitLabTree    = "gitlab-tree"
	KindGitLabCommit  = "gitlab-commit"
	KindGitLabCompare = "gitlab-compare"
)

// gitlabNamespaceSegment flattens a (possibly nested) namespace into one URI
// segment: group/sub becomes group_sub
func gitlabNamespaceSegment(namespace []string) string {
	return NormalizeRefSegment(strings.Join(namespace, "_"))
}

// gitlabProjectPath is the url-encoded {namespace}/{project} id used by the
// REST API
func gitlabProjectPath(namespace []string, project string) string {
	return url.PathEscape(strings.Join(append(append([]string{}, namespace...), project), "/"))
}

// GitLabProject addresses a project
type GitLabProject struct {
	RealmName string   `yaml:"realm"`
	Domain    string   `yaml:"domain"`
	Namespace []string `yaml:"namespace"`
	Project   string   `yaml:"project"`
}

func (l *GitLabProject) Kind() string  { return KindGitLabProject }
func (l *GitLabProject) Realm() string { return l.RealmName }

func (l *GitLabProject) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "project", gitlabNamespaceSegment(l.Namespace), l.Project)
}

func (l *GitLabProject) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/api/v4/projects/" + gitlabProjectPath(l.Namespace, l.Project))
}

func (l *GitLabProject) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/" + strings.Join(l.Namespace, "/") + "/" + l.Project)
}

// GitLabFile addresses a blob at a ref
type GitLabFile struct {
	RealmName       string   `yaml:"realm"`
	Domain          string   `yaml:"domain"`
	Namespace       []string `yaml:"namespace"`
	Project         string   `yaml:"project"`
	Ref             string   `yaml:"ref"`
	IsDefaultBranch bool     `yaml:"is_default_branch"`
	Path            []string `yaml:"path"`
}

func (l *GitLabFile) Kind() string  { return KindGitLabFile }
func (l *GitLabFile) Realm() string { return l.RealmName }

func (l *GitLabFile) ResourceURI() uri.ResourceURI {
	ns := gitlabNamespaceSegment(l.Namespace)
	if l.IsDefaultBranch {
		parts := append([]string{ns, l.Project}, l.Path...)
		return uri.MustResourceURI(l.RealmName, "file", parts...)
	}
	parts := append([]string{ns, l.Project, NormalizeRefSegment(l.Ref)}, l.Path...)
	return uri.MustResourceURI(l.RealmName, "ref", parts...)
}

func (l *GitLabFile) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/api/v4/projects/" + gitlabProjectPath(l.Namespace, l.Project) +
		"/repository/files/" + url.PathEscape(strings.Join(l.Path, "/")) + "/raw?ref=" + url.QueryEscape(l.Ref))
}

func (l *GitLabFile) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/" + strings.Join(l.Namespace, "/") + "/" + l.Project +
		"/-/blob/" + l.Ref + "/" + strings.Join(l.Path, "/"))
}

// GitLabTree addresses a directory at a ref
type GitLabTree struct {
	RealmName       string   `yaml:"realm"`
	Domain          string   `yaml:"domain"`
	Namespace       []string `yaml:"namespace"`
	Project         string   `yaml:"project"`
	Ref             string   `yaml:"ref"`
	IsDefaultBranch bool     `yaml:"is_default_branch"`
	Path            []string `yaml:"path"`
}

func (l *GitLabTree) Kind() string  { return KindGitLabTree }
func (l *GitLabTree) Realm() string { return l.RealmName }

func (l *GitLabTree) ResourceURI() uri.ResourceURI {
	ns := gitlabNamespaceSegment(l.Namespace)
	if l.IsDefaultBranch {
		parts := append([]string{ns, l.Project}, l.Path...)
		return uri.MustResourceURI(l.RealmName, "tree", parts...)
	}
	parts := append([]string{ns, l.Project, NormalizeRefSegment(l.Ref)}, l.Path...)
	return uri.MustResourceURI(l.RealmName, "reftree", parts...)
}

func (l *GitLabTree) ContentURL() *uri.WebURL { return l.CitationURL() }

func (l *GitLabTree) CitationURL() *uri.WebURL {
	u := "https://" + l.Domain + "/" + strings.Join(l.Namespace, "/") + "/" + l.Project + "/-/tree/" + l.Ref
	if len(l.Path) > 0 {
		u += "/" + strings.Join(l.Path, "/")
	}
	return mustParseWebURL(u)
}

// GitLabCommit addresses a single commit
type GitLabCommit struct {
	RealmName string   `yaml:"realm"`
	Domain    string   `yaml:"domain"`
	Namespace []string `yaml:"namespace"`
	Project   string   `yaml:"project"`
	SHA       string   `yaml:"sha"`
}

func (l *GitLabCommit) Kind() string  { return KindGitLabCommit }
func (l *GitLabCommit) Realm() string { return l.RealmName }

func (l *GitLabCommit) ResourceURI() uri.ResourceURI {
	return uri.MustResourceURI(l.RealmName, "commit", gitlabNamespaceSegment(l.Namespace), l.Project, l.SHA)
}

func (l *GitLabCommit) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/api/v4/projects/" + gitlabProjectPath(l.Namespace, l.Project) + "/repository/commits/" + l.SHA)
}

func (l *GitLabCommit) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/" + strings.Join(l.Namespace, "/") + "/" + l.Project + "/-/commit/" + l.SHA)
}

// GitLabCompare addresses a two-ref comparison
type GitLabCompare struct {
	RealmName string   `yaml:"realm"`
	Domain    string   `yaml:"domain"`
	Namespace []string `yaml:"namespace"`
	Project   string   `yaml:"project"`
	Base      string   `yaml:"base"`
	Head      string   `yaml:"head"`
}

func (l *GitLabCompare) Kind() string  { return KindGitLabCompare }
func (l *GitLabCompare) Realm() string { return l.RealmName }

func (l *GitLabCompare) ResourceURI() uri.ResourceURI {
	span := NormalizeRefSegment(l.Base + "_" + l.Head)
	return uri.MustResourceURI(l.RealmName, "compare", gitlabNamespaceSegment(l.Namespace), l.Project, span)
}

func (l *GitLabCompare) ContentURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/api/v4/projects/" + gitlabProjectPath(l.Namespace, l.Project) +
		"/repository/compare?from=" + url.QueryEscape(l.Base) + "&to=" + url.QueryEscape(l.Head))
}

func (l *GitLabCompare) CitationURL() *uri.WebURL {
	return mustParseWebURL("https://" + l.Domain + "/" + strings.Join(l.Namespace, "/") + "/" + l.Project +
		"/-/compare/" + l.Base + "..." + l.Head)
}
