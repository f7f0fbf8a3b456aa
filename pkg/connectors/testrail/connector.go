// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package testrail connects the gateway to a TestRail instance. Cases
// and runs are addressed by numeric id through the index.php API.
package testrail

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// Connector serves one TestRail domain
type Connector struct {
	realm          string
	domain         string
	publicUsername string
	publicPassword string
}

// Options configures the connector
type Options struct {
	Realm          string
	Domain         string
	PublicUsername string
	PublicPassword string
}

// NewConnector builds a connector for one TestRail domain
func NewConnector(opts Options) *Connector {
	return &Connector{
		realm:          opts.Realm,
		domain:         opts.Domain,
		publicUsername: opts.PublicUsername,
		publicPassword: opts.PublicPassword,
	}
}

// Realm implements connectors.Connector
func (c *Connector) Realm() string { return c.realm }

func (c *Connector) apiHeaders(rctx *connectors.Context) http.Header {
	headers := http.Header{}
	configured := ""
	if c.publicUsername != "" && c.publicPassword != "" {
		configured = connectors.BasicAuthHeader(c.publicUsername, c.publicPassword)
	}
	if auth := rctx.AuthHeader(c.realm, configured); auth != "" {
		headers.Set("Authorization", auth)
	}
	return headers
}

// viewID extracts the numeric id from a TestRail pseudo-path query, which
// rides entirely in the query string ("index.php?/cases/view/123")
func viewID(wu *uri.WebURL, section string) (string, bool) {
	pairs := wu.QueryPairs()
	if len(pairs) == 0 {
		return "", false
	}
	rest, ok := strings.CutPrefix(pairs[0].Name, "/"+section+"/view/")
	if !ok {
		return "", false
	}
	id, _, _ := strings.Cut(rest, "&")
	if _, err := strconv.Atoi(id); err != nil {
		return "", false
	}
	return id, true
}

// Locator implements connectors.Connector
func (c *Connector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != c.realm {
			return nil, nil
		}
		path := ru.Path()
		if len(path) != 1 {
			return nil, connectors.UnavailableError(fmt.Sprintf("%s: a case or run URI carries one id", ru))
		}
		switch ru.Subrealm() {
		case "case":
			return &locators.TestRailCase{RealmName: c.realm, Domain: c.domain, CaseID: path[0]}, nil
		case "run":
			return &locators.TestRailRun{RealmName: c.realm, Domain: c.domain, RunID: path[0]}, nil
		}
		return nil, connectors.UnavailableError(fmt.Sprintf("%s: unknown subrealm %q", ru, ru.Subrealm()))
	}
	wu, ok := ref.Web()
	if !ok || wu.Host() != c.domain || wu.Path() != "/index.php" {
		return nil, nil
	}
	if id, ok := viewID(wu, "cases"); ok {
		return &locators.TestRailCase{RealmName: c.realm, Domain: c.domain, CaseID: id}, nil
	}
	if id, ok := viewID(wu, "runs"); ok {
		return &locators.TestRailRun{RealmName: c.realm, Domain: c.domain, RunID: id}, nil
	}
	return nil, nil
}

type caseInfo struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	UpdatedOn int64  `json:"updated_on"`
	Refs      string `json:"refs"`
	Preconds  string `json:"custom_preconds"`
	Steps     string `json:"custom_steps"`
	Expected  string `json:"custom_expected"`
}

type runInfo struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	IsCompleted   bool   `json:"is_completed"`
	UpdatedOn     int64  `json:"updated_on"`
	PassedCount   int    `json:"passed_count"`
	FailedCount   int    `json:"failed_count"`
	BlockedCount  int    `json:"blocked_count"`
	UntestedCount int    `json:"untested_count"`
}

// Resolve implements connectors.Connector
func (c *Connector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	var name string
	var updated int64
	switch l := loc.(type) {
	case *locators.TestRailCase:
		var info caseInfo
		if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
			return nil, err
		}
		name, updated = info.Title, info.UpdatedOn
	case *locators.TestRailRun:
		var info runInfo
		if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
			return nil, err
		}
		name, updated = info.Name, info.UpdatedOn
	default:
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	revision := strconv.FormatInt(updated, 10)
	delta := model.ResourceDelta{
		RefreshedAt: time.Now().UTC(),
		Locator:     loc,
		Metadata: model.MetadataDelta{
			Name:        model.Set(name),
			MimeType:    model.Set[ident.MimeType]("text/markdown"),
			CitationURL: model.Set(loc.CitationURL().String()),
			Revision:    model.Set(revision),
			UpdatedAt:   model.Set(time.Unix(updated, 0).UTC()),
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
	if observable != uri.AffordanceBody {
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	}
	var text string
	switch l := loc.(type) {
	case *locators.TestRailCase:
		var info caseInfo
		if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
			return nil, err
		}
		text = renderCase(&info)
	case *locators.TestRailRun:
		var info runInfo
		if _, err := rctx.Downloader.FetchJSON(ctx, l.ContentURL(), c.apiHeaders(rctx), &info); err != nil {
			return nil, err
		}
		text = renderRun(&info)
	default:
		return nil, connectors.BadRequestError(fmt.Sprintf("unexpected locator kind %s for realm %s", loc.Kind(), c.realm))
	}
	return &connectors.ObserveResult{
		Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: text},
		Post:   connectors.PostFlags{ExtractDescription: true},
	}, nil
}

func renderCase(info *caseInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# C%d: %s\n", info.ID, info.Title)
	if info.Refs != "" {
		fmt.Fprintf(&b, "\nReferences: %s\n", info.Refs)
	}
	writeSection(&b, "Preconditions", info.Preconds)
	writeSection(&b, "Steps", info.Steps)
	writeSection(&b, "Expected Result", info.Expected)
	return strings.TrimSpace(b.String())
}

func renderRun(info *runInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# R%d: %s\n", info.ID, info.Name)
	state := "active"
	if info.IsCompleted {
		state = "completed"
	}
	fmt.Fprintf(&b, "\nState: %s\n", state)
	fmt.Fprintf(&b, "\nResults: %d passed, %d failed, %d blocked, %d untested\n",
		info.PassedCount, info.FailedCount, info.BlockedCount, info.UntestedCount)
	writeSection(&b, "Description", info.Description)
	return strings.TrimSpace(b.String())
}

func writeSection(b *strings.Builder, heading, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n%s\n", heading, strings.TrimSpace(body))
}
