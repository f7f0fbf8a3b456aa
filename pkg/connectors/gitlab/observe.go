// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package gitlab

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/connectors/forge"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/markdown"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Observe implements connectors.Connector
func (c *Connector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	switch l := loc.(type) {
	case *locators.GitLabProject:
		if observable != uri.AffordanceCollection {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeTree(ctx, rctx, l.ResourceURI(), l.Namespace, l.Project, "", nil, false)
	case *locators.GitLabTree:
		if observable != uri.AffordanceCollection {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeTree(ctx, rctx, l.ResourceURI(), l.Namespace, l.Project, l.Ref, l.Path, l.IsDefaultBranch)
	case *locators.GitLabFile:
		switch observable {
		case uri.AffordanceBody:
			return c.observeFileBody(ctx, rctx, l)
		case uri.AffordancePlain:
			return c.observeFilePlain(ctx, rctx, l)
		}
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	case *locators.GitLabCommit:
		if observable != uri.AffordanceBody {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeCommit(ctx, rctx, l)
	case *locators.GitLabCompare:
		if observable != uri.AffordanceBody {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeCompare(ctx, rctx, l)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
}

func (c *Connector) fetchRaw(ctx context.Context, rctx *connectors.Context, l *locators.GitLabFile) ([]byte, ident.MimeType, error) {
	data, mime, _, err := rctx.Downloader.FetchBytes(ctx, l.ContentURL(), c.apiHeaders(rctx))
	if err != nil {
		return nil, "", err
	}
	if guessed, ok := ident.GuessMimeType(l.Path[len(l.Path)-1]); ok {
		mime = guessed
	}
	return data, mime, nil
}

func (c *Connector) observeFileBody(ctx context.Context, rctx *connectors.Context, l *locators.GitLabFile) (*connectors.ObserveResult, error) {
	data, mime, err := c.fetchRaw(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	switch mime.Mode() {
	case ident.ModeMarkdown:
		text := c.rewriteMarkdownLinks(string(data), l)
		return &connectors.ObserveResult{
			Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: model.TrimText(text)},
			Post: connectors.PostFlags{
				ExtractDescription: true,
				LinkRelations:      true,
			},
		}, nil
	case ident.ModeImage:
		name := l.Path[len(l.Path)-1]
		return &connectors.ObserveResult{
			Bundle: &model.Fragment{
				Mode: model.FragmentData,
				Text: fmt.Sprintf("![%s](%s)", name, uri.SelfFragmentURI()),
				Blobs: map[uri.FragmentURI]ident.DataURI{
					uri.SelfFragmentURI(): ident.NewDataURI(mime, data),
				},
			},
		}, nil
	case ident.ModeDocument, ident.ModeMedia, ident.ModeSpreadsheet:
		// spreadsheets parse into document-shaped tables and get the
		// same cached-body treatment as documents
		resp, err := rctx.Downloader.ReadBlob(ctx, l.Path[len(l.Path)-1], mime, data, nil)
		if err != nil {
			return nil, err
		}
		return &connectors.ObserveResult{
			Bundle: &model.Fragment{Mode: resp.Mode, Text: model.TrimText(resp.Text), Blobs: resp.Blobs},
			Post: connectors.PostFlags{
				Cache:              true,
				ExtractDescription: true,
			},
		}, nil
	}
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: model.FragmentPlain, Text: model.TrimText(string(data))},
		Post:   connectors.PostFlags{ExtractDescription: true},
	}, nil
}

func (c *Connector) observeFilePlain(ctx context.Context, rctx *connectors.Context, l *locators.GitLabFile) (*connectors.ObserveResult, error) {
	data, mime, err := c.fetchRaw(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	return &connectors.ObserveResult{
		Bundle: &model.BundlePlain{URI: l.ResourceURI(), MimeType: mime, Text: string(data)},
	}, nil
}

func (c *Connector) rewriteMarkdownLinks(text string, l *locators.GitLabFile) string {
	base := l.CitationURL()
	out := markdown.RewriteLinks([]byte(text), func(dest string, isImage bool) (string, bool) {
		if strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://") ||
			strings.HasPrefix(dest, "self://") || strings.HasPrefix(dest, "#") ||
			strings.HasPrefix(dest, "mailto:") {
			return "", false
		}
		joined, err := base.TryJoinHref(dest)
		if err != nil {
			return "", false
		}
		return joined.String(), true
	})
	return string(out)
}

type treeEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`
}

func (c *Connector) observeTree(ctx context.Context, rctx *connectors.Context, treeURI uri.ResourceURI, namespace []string, project, ref string, path []string, defaultBranch bool) (*connectors.ObserveResult, error) {
	suffix := "/repository/tree?per_page=100"
	if len(path) > 0 {
		suffix += "&path=" + url.QueryEscape(strings.Join(path, "/"))
	}
	if ref != "" {
		suffix += "&ref=" + url.QueryEscape(ref)
	}
	var entries []treeEntry
	if _, err := rctx.Downloader.FetchJSON(ctx, c.apiURL(projectID(namespace, project), suffix), c.apiHeaders(rctx), &entries); err != nil {
		return nil, err
	}
	cfg := c.repoConfig(ctx, rctx, namespace, project)
	var results []uri.ResourceURI
	for _, entry := range entries {
		entryPath := strings.Split(entry.Path, "/")
		switch entry.Type {
		case "tree":
			child := &locators.GitLabTree{RealmName: c.realm, Domain: c.domain, Namespace: namespace, Project: project, Ref: ref, IsDefaultBranch: defaultBranch, Path: entryPath}
			results = append(results, child.ResourceURI())
		case "blob":
			if !cfg.Allows(entryPath) {
				if cfg.ShouldNotify(entryPath) {
					klog.Infof("omitting %s from %s: excluded by %s", entry.Path, treeURI, forge.ConfigFileName)
				}
				continue
			}
			child := &locators.GitLabFile{RealmName: c.realm, Domain: c.domain, Namespace: namespace, Project: project, Ref: ref, IsDefaultBranch: defaultBranch, Path: entryPath}
			results = append(results, child.ResourceURI())
		}
	}
	return &connectors.ObserveResult{
		Bundle: &model.BundleCollection{URI: treeURI, Results: results},
		Post:   connectors.PostFlags{ParentRelations: defaultBranch},
	}, nil
}

type diffEntry struct {
	OldPath     string `json:"old_path"`
	NewPath     string `json:"new_path"`
	Diff        string `json:"diff"`
	NewFile     bool   `json:"new_file"`
	DeletedFile bool   `json:"deleted_file"`
	RenamedFile bool   `json:"renamed_file"`
}

func (e diffEntry) status() string {
	switch {
	case e.NewFile:
		return "added"
	case e.DeletedFile:
		return "deleted"
	case e.RenamedFile:
		return "renamed"
	}
	return "modified"
}

func (c *Connector) observeCommit(ctx context.Context, rctx *connectors.Context, l *locators.GitLabCommit) (*connectors.ObserveResult, error) {
	var info commitInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
		return nil, err
	}
	var diffs []diffEntry
	diffURL := c.apiURL(projectID(l.Namespace, l.Project), "/repository/commits/"+url.PathEscape(l.SHA)+"/diff")
	if _, err := rctx.Downloader.FetchJSON(ctx, diffURL, c.apiHeaders(rctx), &diffs); err != nil {
		return nil, err
	}
	text := formatChangeSet([]commitInfo{info}, diffs)
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: text},
	}, nil
}

type compareInfo struct {
	Commits []commitInfo `json:"commits"`
	Diffs   []diffEntry  `json:"diffs"`
}

func (c *Connector) observeCompare(ctx context.Context, rctx *connectors.Context, l *locators.GitLabCompare) (*connectors.ObserveResult, error) {
	var info compareInfo
	if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
		return nil, err
	}
	text := formatChangeSet(info.Commits, info.Diffs)
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: text},
	}, nil
}

// formatChangeSet renders commits and per-file diffs in the uniform
// <commits>/<diffs> fragment shape
func formatChangeSet(commits []commitInfo, diffs []diffEntry) string {
	var b strings.Builder
	b.WriteString("<commits>\n")
	for _, commit := range commits {
		sha := commit.ID
		if len(sha) > 7 {
			sha = sha[:7]
		}
		fmt.Fprintf(&b, "- %s %s\n", sha, commit.Title)
	}
	b.WriteString("</commits>\n\n<diffs>\n")
	for _, d := range diffs {
		fmt.Fprintf(&b, "<file_diff file=%q status=%q>\n", d.NewPath, d.status())
		if d.Diff != "" {
			b.WriteString("```diff\n")
			b.WriteString(d.Diff)
			if !strings.HasSuffix(d.Diff, "\n") {
				b.WriteString("\n")
			}
			b.WriteString("```\n")
		}
		b.WriteString("</file_diff>\n")
	}
	b.WriteString("</diffs>")
	return b.String()
}
