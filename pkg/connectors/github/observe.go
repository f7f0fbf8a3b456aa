// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v43/github"
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
	case *locators.GitHubRepo:
		if observable != uri.AffordanceCollection {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeTree(ctx, rctx, l.ResourceURI(), l.Owner, l.Repo, "", nil, false)
	case *locators.GitHubTree:
		if observable != uri.AffordanceCollection {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeTree(ctx, rctx, l.ResourceURI(), l.Owner, l.Repo, l.Ref, l.Path, l.IsDefaultBranch)
	case *locators.GitHubFile:
		switch observable {
		case uri.AffordanceBody:
			return c.observeFileBody(ctx, rctx, l)
		case uri.AffordancePlain:
			return c.observeFilePlain(ctx, rctx, l)
		}
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	case *locators.GitHubCommit:
		if observable != uri.AffordanceBody {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeCommit(ctx, rctx, l)
	case *locators.GitHubCompare:
		if observable != uri.AffordanceBody {
			return nil, connectors.ErrUnsupportedObservable(loc, observable)
		}
		return c.observeCompare(ctx, rctx, l)
	}
	return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
}

func (c *Connector) fetchRaw(ctx context.Context, rctx *connectors.Context, l *locators.GitHubFile) ([]byte, ident.MimeType, error) {
	headers := http.Header{}
	if auth := c.authHeader(rctx); auth != "" {
		headers.Set("Authorization", auth)
	}
	data, mime, _, err := rctx.Downloader.FetchBytes(ctx, l.ContentURL(), headers)
	if err != nil {
		return nil, "", err
	}
	if guessed, ok := ident.GuessMimeType(l.Path[len(l.Path)-1]); ok {
		// the raw host serves text/plain for everything; trust the name
		mime = guessed
	}
	return data, mime, nil
}

func (c *Connector) observeFileBody(ctx context.Context, rctx *connectors.Context, l *locators.GitHubFile) (*connectors.ObserveResult, error) {
	data, mime, err := c.fetchRaw(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	mode := mime.Mode()
	switch mode {
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

func (c *Connector) observeFilePlain(ctx context.Context, rctx *connectors.Context, l *locators.GitHubFile) (*connectors.ObserveResult, error) {
	data, mime, err := c.fetchRaw(ctx, rctx, l)
	if err != nil {
		return nil, err
	}
	return &connectors.ObserveResult{
		Bundle: &model.BundlePlain{URI: l.ResourceURI(), MimeType: mime, Text: string(data)},
	}, nil
}

// rewriteMarkdownLinks rebases relative links onto the file's citation
// URL so fragment text never carries repository-relative references
func (c *Connector) rewriteMarkdownLinks(text string, l *locators.GitHubFile) string {
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

func (c *Connector) observeTree(ctx context.Context, rctx *connectors.Context, treeURI uri.ResourceURI, owner, repo, ref string, path []string, defaultBranch bool) (*connectors.ObserveResult, error) {
	var opts *gh.RepositoryContentGetOptions
	if ref != "" {
		opts = &gh.RepositoryContentGetOptions{Ref: ref}
	}
	_, dc, _, err := c.repositories(rctx).GetContents(ctx, owner, repo, strings.Join(path, "/"), opts)
	if err != nil {
		return nil, mapGitHubError(err, treeURI.String())
	}
	if dc == nil {
		return nil, connectors.UnavailableError(fmt.Sprintf("%s is not a directory", treeURI))
	}
	cfg := c.repoConfig(ctx, rctx, owner, repo)
	var results []uri.ResourceURI
	for _, entry := range dc {
		entryPath := append(append([]string{}, path...), entry.GetName())
		switch entry.GetType() {
		case "dir":
			child := &locators.GitHubTree{RealmName: c.realm, Owner: owner, Repo: repo, Ref: ref, IsDefaultBranch: defaultBranch, Path: entryPath}
			results = append(results, child.ResourceURI())
		case "file":
			if !cfg.Allows(entryPath) {
				if cfg.ShouldNotify(entryPath) {
					klog.Infof("omitting %s from %s: excluded by %s", strings.Join(entryPath, "/"), treeURI, forge.ConfigFileName)
				}
				continue
			}
			child := &locators.GitHubFile{RealmName: c.realm, Owner: owner, Repo: repo, Ref: ref, IsDefaultBranch: defaultBranch, Path: entryPath}
			results = append(results, child.ResourceURI())
		}
	}
	return &connectors.ObserveResult{
		Bundle: &model.BundleCollection{URI: treeURI, Results: results},
		Post:   connectors.PostFlags{ParentRelations: defaultBranch},
	}, nil
}

func (c *Connector) observeCommit(ctx context.Context, rctx *connectors.Context, l *locators.GitHubCommit) (*connectors.ObserveResult, error) {
	commit, _, err := c.repositories(rctx).GetCommit(ctx, l.Owner, l.Repo, l.SHA, nil)
	if err != nil {
		return nil, mapGitHubError(err, l.ResourceURI().String())
	}
	text := formatChangeSet(
		[]commitLine{{sha: commit.GetSHA(), message: commit.GetCommit().GetMessage()}},
		commit.Files,
	)
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: text},
	}, nil
}

func (c *Connector) observeCompare(ctx context.Context, rctx *connectors.Context, l *locators.GitHubCompare) (*connectors.ObserveResult, error) {
	comparison, _, err := c.repositories(rctx).CompareCommits(ctx, l.Owner, l.Repo, l.Base, l.Head, nil)
	if err != nil {
		return nil, mapGitHubError(err, l.ResourceURI().String())
	}
	var commits []commitLine
	for _, rc := range comparison.Commits {
		commits = append(commits, commitLine{sha: rc.GetSHA(), message: rc.GetCommit().GetMessage()})
	}
	text := formatChangeSet(commits, comparison.Files)
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: text},
	}, nil
}

type commitLine struct {
	sha     string
	message string
}

// formatChangeSet renders commits and per-file diffs in the uniform
// <commits>/<diffs> fragment shape
func formatChangeSet(commits []commitLine, files []*gh.CommitFile) string {
	var b strings.Builder
	b.WriteString("<commits>\n")
	for _, commit := range commits {
		sha := commit.sha
		if len(sha) > 7 {
			sha = sha[:7]
		}
		fmt.Fprintf(&b, "- %s %s\n", sha, firstLine(commit.message))
	}
	b.WriteString("</commits>\n\n<diffs>\n")
	for _, file := range files {
		fmt.Fprintf(&b, "<file_diff file=%q status=%q>\n", file.GetFilename(), file.GetStatus())
		if patch := file.GetPatch(); patch != "" {
			b.WriteString("```diff\n")
			b.WriteString(patch)
			if !strings.HasSuffix(patch, "\n") {
				b.WriteString("\n")
			}
			b.WriteString("```\n")
		}
		b.WriteString("</file_diff>\n")
	}
	b.WriteString("</diffs>")
	return b.String()
}
