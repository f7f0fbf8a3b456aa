// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/uri"
)

// Locator implements connectors.Connector. Web URLs on github.com and
// raw.githubusercontent.com and ndk:// URIs of this realm are accepted;
// everything else defers to the next connector.
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != c.realm {
			return nil, nil
		}
		return c.locatorFromURI(ru)
	}
	if wu, ok := ref.Web(); ok {
		switch wu.Host() {
		case c.host:
			return c.locatorFromWeb(ctx, rctx, wu)
		case c.rawHost:
			return c.locatorFromRaw(ctx, rctx, wu)
		}
	}
	return nil, nil
}

func (c *Connector) locatorFromURI(ru uri.ResourceURI) (locators.Locator, error) {
	path := ru.Path()
	bad := func(format string, args ...interface{}) error {
		return connectors.UnavailableError(fmt.Sprintf("%s: ", ru) + fmt.Sprintf(format, args...))
	}
	switch ru.Subrealm() {
	case "repo":
		if len(path) != 2 {
			return nil, bad("a repo URI names owner and repo")
		}
		return &locators.GitHubRepo{RealmName: c.realm, Owner: path[0], Repo: path[1]}, nil
	case "file":
		if len(path) < 3 {
			return nil, bad("a file URI names owner, repo and a file path")
		}
		return &locators.GitHubFile{RealmName: c.realm, Owner: path[0], Repo: path[1], Ref: "", IsDefaultBranch: true, Path: path[2:]}, nil
	case "ref":
		if len(path) < 4 {
			return nil, bad("a ref URI names owner, repo, ref and a file path")
		}
		return &locators.GitHubFile{RealmName: c.realm, Owner: path[0], Repo: path[1], Ref: path[2], Path: path[3:]}, nil
	case "tree":
		if len(path) < 2 {
			return nil, bad("a tree URI names owner and repo")
		}
		return &locators.GitHubTree{RealmName: c.realm, Owner: path[0], Repo: path[1], IsDefaultBranch: true, Path: path[2:]}, nil
	case "reftree":
		if len(path) < 3 {
			return nil, bad("a reftree URI names owner, repo and ref")
		}
		return &locators.GitHubTree{RealmName: c.realm, Owner: path[0], Repo: path[1], Ref: path[2], Path: path[3:]}, nil
	case "commit":
		if len(path) != 3 {
			return nil, bad("a commit URI names owner, repo and sha")
		}
		return &locators.GitHubCommit{RealmName: c.realm, Owner: path[0], Repo: path[1], SHA: path[2]}, nil
	case "compare":
		if len(path) != 3 {
			return nil, bad("a compare URI names owner, repo and span")
		}
		// the span segment is lossy; split on the first underscore as a
		// best effort
		base, head, ok := strings.Cut(path[2], "_")
		if !ok {
			return nil, bad("compare span %q has no base_head separator", path[2])
		}
		return &locators.GitHubCompare{RealmName: c.realm, Owner: path[0], Repo: path[1], Base: base, Head: head}, nil
	}
	return nil, bad("unknown subrealm %q", ru.Subrealm())
}

func (c *Connector) locatorFromWeb(ctx context.Context, rctx *connectors.Context, wu *uri.WebURL) (locators.Locator, error) {
	segs := wu.PathSegments()
	if len(segs) < 2 {
		return nil, nil
	}
	owner, repo := segs[0], segs[1]
	rest := segs[2:]
	if len(rest) == 0 {
		return &locators.GitHubRepo{RealmName: c.realm, Owner: owner, Repo: repo}, nil
	}
	switch rest[0] {
	case "blob", "raw":
		ref, path, err := c.splitRefAndPath(ctx, rctx, owner, repo, rest[1:])
		if err != nil {
			return nil, err
		}
		if len(path) == 0 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s points at no file", wu))
		}
		def, err := c.defaultBranch(ctx, rctx, owner, repo)
		if err != nil {
			return nil, err
		}
		return &locators.GitHubFile{RealmName: c.realm, Owner: owner, Repo: repo, Ref: ref, IsDefaultBranch: ref == def, Path: path}, nil
	case "tree":
		ref, path, err := c.splitRefAndPath(ctx, rctx, owner, repo, rest[1:])
		if err != nil {
			return nil, err
		}
		def, err := c.defaultBranch(ctx, rctx, owner, repo)
		if err != nil {
			return nil, err
		}
		return &locators.GitHubTree{RealmName: c.realm, Owner: owner, Repo: repo, Ref: ref, IsDefaultBranch: ref == def, Path: path}, nil
	case "commit":
		if len(rest) != 2 {
			return nil, nil
		}
		return &locators.GitHubCommit{RealmName: c.realm, Owner: owner, Repo: repo, SHA: rest[1]}, nil
	case "compare":
		if len(rest) != 2 {
			return nil, nil
		}
		base, head, ok := strings.Cut(rest[1], "...")
		if !ok {
			base, head, ok = strings.Cut(rest[1], "..")
		}
		if !ok {
			return nil, nil
		}
		return &locators.GitHubCompare{RealmName: c.realm, Owner: owner, Repo: repo, Base: base, Head: head}, nil
	}
	return nil, nil
}

// locatorFromRaw handles raw.githubusercontent.com/{owner}/{repo}/{ref}/{path...}
func (c *Connector) locatorFromRaw(ctx context.Context, rctx *connectors.Context, wu *uri.WebURL) (locators.Locator, error) {
	segs := wu.PathSegments()
	if len(segs) < 4 {
		return nil, nil
	}
	owner, repo := segs[0], segs[1]
	ref, path, err := c.splitRefAndPath(ctx, rctx, owner, repo, segs[2:])
	if err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, nil
	}
	def, err := c.defaultBranch(ctx, rctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return &locators.GitHubFile{RealmName: c.realm, Owner: owner, Repo: repo, Ref: ref, IsDefaultBranch: ref == def, Path: path}, nil
}

// splitRefAndPath disambiguates refs containing slashes: the default
// branch is tried first, then branch candidates from longest to
// shortest, then the single-segment fallback (tags, SHAs).
func (c *Connector) splitRefAndPath(ctx context.Context, rctx *connectors.Context, owner, repo string, segs []string) (string, []string, error) {
	if len(segs) == 0 {
		return "", nil, connectors.UnavailableError(fmt.Sprintf("%s/%s reference names no ref", owner, repo))
	}
	def, err := c.defaultBranch(ctx, rctx, owner, repo)
	if err != nil {
		return "", nil, err
	}
	defSegs := strings.Split(def, "/")
	if len(segs) >= len(defSegs) && strings.Join(segs[:len(defSegs)], "/") == def {
		return def, segs[len(defSegs):], nil
	}
	for end := len(segs); end > 1; end-- {
		candidate := strings.Join(segs[:end], "/")
		if c.branchExists(ctx, rctx, owner, repo, candidate) {
			return candidate, segs[end:], nil
		}
	}
	return segs[0], segs[1:], nil
}
