// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package gitlab

import (
	"context"
	"fmt"
	"strings"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/uri"
)

// Locator implements connectors.Connector. GitLab web URLs carry a "-"
// separator between the project path and the view ("/-/blob/...");
// URLs without it address the project itself.
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != c.realm {
			return nil, nil
		}
		return c.locatorFromURI(ru)
	}
	if wu, ok := ref.Web(); ok && wu.Host() == c.domain {
		return c.locatorFromWeb(ctx, rctx, wu)
	}
	return nil, nil
}

// locatorFromURI reconstructs a locator from a canonical URI. Namespace
// segments are flattened with underscores in URIs, so the nesting is
// not recoverable; the flattened form is kept as a single segment.
func (c *Connector) locatorFromURI(ru uri.ResourceURI) (locators.Locator, error) {
	path := ru.Path()
	bad := func(format string, args ...interface{}) error {
		return connectors.UnavailableError(fmt.Sprintf("%s: ", ru) + fmt.Sprintf(format, args...))
	}
	switch ru.Subrealm() {
	case "project":
		if len(path) != 2 {
			return nil, bad("a project URI names namespace and project")
		}
		return &locators.GitLabProject{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1]}, nil
	case "file":
		if len(path) < 3 {
			return nil, bad("a file URI names namespace, project and a file path")
		}
		return &locators.GitLabFile{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1], IsDefaultBranch: true, Path: path[2:]}, nil
	case "ref":
		if len(path) < 4 {
			return nil, bad("a ref URI names namespace, project, ref and a file path")
		}
		return &locators.GitLabFile{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1], Ref: path[2], Path: path[3:]}, nil
	case "tree":
		if len(path) < 2 {
			return nil, bad("a tree URI names namespace and project")
		}
		return &locators.GitLabTree{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1], IsDefaultBranch: true, Path: path[2:]}, nil
	case "reftree":
		if len(path) < 3 {
			return nil, bad("a reftree URI names namespace, project and ref")
		}
		return &locators.GitLabTree{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1], Ref: path[2], Path: path[3:]}, nil
	case "commit":
		if len(path) != 3 {
			return nil, bad("a commit URI names namespace, project and sha")
		}
		return &locators.GitLabCommit{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1], SHA: path[2]}, nil
	case "compare":
		if len(path) != 3 {
			return nil, bad("a compare URI names namespace, project and span")
		}
		base, head, ok := strings.Cut(path[2], "_")
		if !ok {
			return nil, bad("compare span %q has no base_head separator", path[2])
		}
		return &locators.GitLabCompare{RealmName: c.realm, Domain: c.domain, Namespace: []string{path[0]}, Project: path[1], Base: base, Head: head}, nil
	}
	return nil, bad("unknown subrealm %q", ru.Subrealm())
}

func (c *Connector) locatorFromWeb(ctx context.Context, rctx *connectors.Context, wu *uri.WebURL) (locators.Locator, error) {
	segs := wu.PathSegments()
	dash := -1
	for i, s := range segs {
		if s == "-" {
			dash = i
			break
		}
	}
	if dash < 0 {
		if len(segs) < 2 {
			return nil, nil
		}
		return &locators.GitLabProject{RealmName: c.realm, Domain: c.domain, Namespace: segs[:len(segs)-1], Project: segs[len(segs)-1]}, nil
	}
	if dash < 2 || dash+1 >= len(segs) {
		return nil, nil
	}
	namespace, project := segs[:dash-1], segs[dash-1]
	view, rest := segs[dash+1], segs[dash+2:]
	switch view {
	case "blob", "raw":
		ref, path, err := c.splitRefAndPath(ctx, rctx, namespace, project, rest)
		if err != nil {
			return nil, err
		}
		if len(path) == 0 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s points at no file", wu))
		}
		def, err := c.defaultBranch(ctx, rctx, namespace, project)
		if err != nil {
			return nil, err
		}
		return &locators.GitLabFile{RealmName: c.realm, Domain: c.domain, Namespace: namespace, Project: project, Ref: ref, IsDefaultBranch: ref == def, Path: path}, nil
	case "tree":
		ref, path, err := c.splitRefAndPath(ctx, rctx, namespace, project, rest)
		if err != nil {
			return nil, err
		}
		def, err := c.defaultBranch(ctx, rctx, namespace, project)
		if err != nil {
			return nil, err
		}
		return &locators.GitLabTree{RealmName: c.realm, Domain: c.domain, Namespace: namespace, Project: project, Ref: ref, IsDefaultBranch: ref == def, Path: path}, nil
	case "commit":
		if len(rest) != 1 {
			return nil, nil
		}
		return &locators.GitLabCommit{RealmName: c.realm, Domain: c.domain, Namespace: namespace, Project: project, SHA: rest[0]}, nil
	case "compare":
		if len(rest) != 1 {
			return nil, nil
		}
		base, head, ok := strings.Cut(rest[0], "...")
		if !ok {
			base, head, ok = strings.Cut(rest[0], "..")
		}
		if !ok {
			return nil, nil
		}
		return &locators.GitLabCompare{RealmName: c.realm, Domain: c.domain, Namespace: namespace, Project: project, Base: base, Head: head}, nil
	}
	return nil, nil
}

func (c *Connector) splitRefAndPath(ctx context.Context, rctx *connectors.Context, namespace []string, project string, segs []string) (string, []string, error) {
	if len(segs) == 0 {
		return "", nil, connectors.UnavailableError(fmt.Sprintf("%s reference names no ref", project))
	}
	def, err := c.defaultBranch(ctx, rctx, namespace, project)
	if err != nil {
		return "", nil, err
	}
	defSegs := strings.Split(def, "/")
	if len(segs) >= len(defSegs) && strings.Join(segs[:len(defSegs)], "/") == def {
		return def, segs[len(defSegs):], nil
	}
	for end := len(segs); end > 1; end-- {
		candidate := strings.Join(segs[:end], "/")
		if c.branchExists(ctx, rctx, namespace, project, candidate) {
			return candidate, segs[end:], nil
		}
	}
	return segs[0], segs[1:], nil
}
