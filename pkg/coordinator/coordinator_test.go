// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/downloader/downloaderfakes"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/storage"
	"github.com/nandam/nandam/pkg/uri"
)

// stubConnector serves one realm of blob resources; failures are
// injected per blob ID
type stubConnector struct {
	realm        string
	domain       string
	resolveErr   map[string]error
	observeFn    func(l *locators.GeorgesBlob) *connectors.ObserveResult
	locatorCalls int
	resolveCalls int
	observeCalls int
}

func (c *stubConnector) Realm() string { return c.realm }

func (c *stubConnector) blob(id string) *locators.GeorgesBlob {
	return &locators.GeorgesBlob{RealmName: c.realm, Domain: c.domain, BlobID: id}
}

func (c *stubConnector) Locator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	c.locatorCalls++
	if ru, ok := ref.Resource(); ok {
		if ru.Realm() != c.realm || len(ru.Path()) != 1 {
			return nil, nil
		}
		return c.blob(ru.Path()[0]), nil
	}
	if eu, ok := ref.External(); ok {
		id, ok := strings.CutPrefix(eu.Opaque(), c.realm+":")
		if !ok {
			return nil, nil
		}
		return c.blob(id), nil
	}
	if wu, ok := ref.Web(); ok {
		if wu.Host() != c.domain {
			return nil, nil
		}
		segs := wu.PathSegments()
		if len(segs) == 0 {
			return nil, nil
		}
		return c.blob(segs[len(segs)-1]), nil
	}
	return nil, nil
}

func (c *stubConnector) Resolve(ctx context.Context, rctx *connectors.Context, loc locators.Locator, cached *model.ResourceView) (*connectors.ResolveResult, error) {
	c.resolveCalls++
	l := loc.(*locators.GeorgesBlob)
	if err := c.resolveErr[l.BlobID]; err != nil {
		return nil, err
	}
	return &connectors.ResolveResult{
		Delta: model.ResourceDelta{
			RefreshedAt: time.Now().UTC(),
			Locator:     l,
			Metadata:    model.MetadataDelta{Name: model.Set("blob " + l.BlobID)},
		},
		Cache: true,
	}, nil
}

func (c *stubConnector) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance, resolved *model.ResourceView) (*connectors.ObserveResult, error) {
	c.observeCalls++
	l := loc.(*locators.GeorgesBlob)
	if c.observeFn == nil {
		return nil, connectors.ErrUnsupportedObservable(loc, observable)
	}
	return c.observeFn(l), nil
}

type fixture struct {
	stub    *stubConnector
	store   *storage.Service
	service *Service
}

func newFixture(t *testing.T, extra ...connectors.Connector) *fixture {
	t.Helper()
	stub := &stubConnector{realm: "blobs", domain: "blobs.example.com"}
	registry, err := connectors.NewRegistry(append([]connectors.Connector{stub}, extra...)...)
	require.NoError(t, err)
	return &fixture{
		stub:    stub,
		store:   storage.NewService(storage.NewMemoryStore()),
		service: NewService(registry),
	}
}

func (f *fixture) requestContext() *connectors.Context {
	return connectors.NewContext(&downloaderfakes.FakeInterface{}, f.store, nil)
}

func blobURI(id string) uri.ResourceURI {
	return uri.MustResourceURI("blobs", "blob", id)
}

func TestTryInferLocatorPrefersHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recorded := &locators.GeorgesBlob{RealmName: "blobs", Domain: "old.example.com", BlobID: "b1"}
	history, err := model.NewResourceHistory(model.ResourceDelta{RefreshedAt: time.Now().UTC(), Locator: recorded})
	require.NoError(t, err)
	require.NoError(t, f.store.SetHistory(ctx, blobURI("b1"), history))

	loc, err := f.service.TryInferLocator(ctx, f.requestContext(), connectors.RefResource(blobURI("b1")))
	require.NoError(t, err)
	blob, ok := loc.(*locators.GeorgesBlob)
	require.True(t, ok)
	assert.Equal(t, "old.example.com", blob.Domain, "the recorded locator wins over dispatch")
	assert.Zero(t, f.stub.locatorCalls)
}

func TestTryInferLocatorPersistsAliasForExternalURI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eu, err := uri.DecodeExternalURI("ext://blobs:b2")
	require.NoError(t, err)

	loc, err := f.service.TryInferLocator(ctx, f.requestContext(), connectors.RefExternal(eu))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 1, f.stub.locatorCalls)

	aliased, found, err := f.store.GetAlias(ctx, "ext://blobs:b2")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, blobURI("b2"), aliased.ResourceURI())

	// a later request short-circuits on the alias
	loc, err = f.service.TryInferLocator(ctx, f.requestContext(), connectors.RefExternal(eu))
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, 1, f.stub.locatorCalls)
}

func TestResolveLocatorMemoisesFailures(t *testing.T) {
	f := newFixture(t)
	f.stub.resolveErr = map[string]error{"b3": connectors.UnavailableError("blob b3 is gone")}
	ctx := context.Background()
	rctx := f.requestContext()

	_, err := f.service.ResolveLocator(ctx, rctx, f.stub.blob("b3"))
	var unavailable connectors.UnavailableError
	require.ErrorAs(t, err, &unavailable)

	_, err = f.service.ResolveLocator(ctx, rctx, f.stub.blob("b3"))
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 1, f.stub.resolveCalls, "the cached failure re-raises without a second resolve")
}

func TestResolveLocatorPersistsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	view, err := f.service.ResolveLocator(ctx, f.requestContext(), f.stub.blob("b4"))
	require.NoError(t, err)
	assert.Equal(t, "blob b4", view.Metadata.Name.OrElse(""))

	_, found, err := f.store.GetHistory(ctx, blobURI("b4"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestTryInferAndResolveLocatorsKeepsOrderAndDropsFailures(t *testing.T) {
	f := newFixture(t)
	f.stub.resolveErr = map[string]error{"bad": connectors.UnavailableError("blob bad is gone")}

	refs := []connectors.Reference{
		connectors.RefResource(blobURI("b5")),
		connectors.RefResource(blobURI("bad")),
		connectors.RefResource(blobURI("b6")),
	}
	out := f.service.TryInferAndResolveLocators(context.Background(), f.requestContext(), refs)
	require.Len(t, out, 2)
	assert.Equal(t, "ndk://blobs/blob/b5", out[0].Reference)
	assert.Equal(t, "ndk://blobs/blob/b6", out[1].Reference)
	assert.Equal(t, "blob b6", out[1].View.Metadata.Name.OrElse(""))
}

func TestTryResolveRelationsFiltersAndDedupes(t *testing.T) {
	f := newFixture(t)
	f.stub.resolveErr = map[string]error{"broken": connectors.UnavailableError("blob broken is gone")}
	origin := blobURI("origin")
	a, broken := blobURI("a"), blobURI("broken")

	relations := []model.Relation{
		model.NewLink(origin, a),
		model.NewLink(origin, broken),
		model.NewLink(origin, a), // duplicate
		model.NewParent(origin, a),
	}
	valid, endpoints := f.service.TryResolveRelations(context.Background(), f.requestContext(), origin, relations)
	require.Len(t, valid, 2)
	ids := make([]string, len(valid))
	for i, r := range valid {
		assert.Equal(t, a, r.Target)
		ids[i] = r.UniqueID().String()
	}
	assert.True(t, sort.StringsAreSorted(ids))

	require.Len(t, endpoints, 1)
	assert.Equal(t, a, endpoints[0].Locator.ResourceURI())
	assert.Len(t, endpoints[0].Relations, 2)
}

func TestShouldBacklink(t *testing.T) {
	cases := []struct {
		realm string
		want  bool
	}{
		{"github", true},
		{"jira", true},
		{"www", false},
		// substring artefact, see the TODO on ShouldBacklink
		{"w", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ShouldBacklink(tc.realm), tc.realm)
	}
}

func TestObserveCachesFragmentAndExtractsDescription(t *testing.T) {
	f := newFixture(t)
	f.stub.observeFn = func(l *locators.GeorgesBlob) *connectors.ObserveResult {
		return &connectors.ObserveResult{
			Bundle: &model.Fragment{Mode: model.FragmentMarkdown, Text: "# Title\n\nA short description of the blob."},
			Post:   connectors.PostFlags{Cache: true, ExtractDescription: true},
		}
	}
	ctx := context.Background()

	bundle, err := f.service.Observe(ctx, f.requestContext(), f.stub.blob("b7"), uri.AffordanceBody)
	require.NoError(t, err)
	fragment, ok := bundle.(*model.Fragment)
	require.True(t, ok)
	assert.Contains(t, fragment.Text, "short description")
	assert.Equal(t, 1, f.stub.observeCalls)

	history, found, err := f.store.GetHistory(ctx, blobURI("b7"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Contains(t, history.Merged().Labels, model.Label{Name: "description", Value: "A short description of the blob."})

	// a later request is served from the bundle cache
	_, err = f.service.Observe(ctx, f.requestContext(), f.stub.blob("b7"), uri.AffordanceBody)
	require.NoError(t, err)
	assert.Equal(t, 1, f.stub.observeCalls)
}

func TestObserveCollectionEmitsParentRelations(t *testing.T) {
	f := newFixture(t)
	origin, child := blobURI("dir"), blobURI("child1")
	f.stub.observeFn = func(l *locators.GeorgesBlob) *connectors.ObserveResult {
		return &connectors.ObserveResult{
			Bundle: &model.BundleCollection{URI: origin, Results: []uri.ResourceURI{child}},
			Post:   connectors.PostFlags{ParentRelations: true},
		}
	}
	ctx := context.Background()

	_, err := f.service.Observe(ctx, f.requestContext(), f.stub.blob("dir"), uri.AffordanceCollection)
	require.NoError(t, err)

	ids, err := f.store.RelationsOf(ctx, child)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	relation, found, err := f.store.GetRelation(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.RelationParent, relation.Kind)
	assert.Equal(t, origin, relation.Source)
	assert.Equal(t, child, relation.Target)

	originIDs, err := f.store.RelationsOf(ctx, origin)
	require.NoError(t, err)
	assert.Equal(t, ids, originIDs)
}

func TestObserveSkipsBacklinksForWebResources(t *testing.T) {
	www := &stubConnector{realm: "www", domain: "pages.example.com"}
	f := newFixture(t, www)
	origin := blobURI("linker")
	target := uri.MustResourceURI("www", "blob", "page1")
	f.stub.observeFn = func(l *locators.GeorgesBlob) *connectors.ObserveResult {
		return &connectors.ObserveResult{
			Bundle:    &model.Fragment{Mode: model.FragmentMarkdown, Text: "see elsewhere"},
			Relations: []model.Relation{model.NewLink(origin, target)},
		}
	}
	ctx := context.Background()

	_, err := f.service.Observe(ctx, f.requestContext(), f.stub.blob("linker"), uri.AffordanceBody)
	require.NoError(t, err)

	originIDs, err := f.store.RelationsOf(ctx, origin)
	require.NoError(t, err)
	require.Len(t, originIDs, 1)
	_, found, err := f.store.GetRelation(ctx, originIDs[0])
	require.NoError(t, err)
	assert.True(t, found, "the relation body is persisted")

	targetIDs, err := f.store.RelationsOf(ctx, target)
	require.NoError(t, err)
	assert.Empty(t, targetIDs, "www endpoints carry no back-reference markers")
}

func TestDescribeFragment(t *testing.T) {
	cases := []struct {
		name string
		text string
		want string
	}{
		{"skips headings", "# Title\n\nBody text.", "Body text."},
		{"joins adjacent lines", "line one\nline two", "line one line two"},
		{"stops at the next blank line", "first paragraph\n\nsecond paragraph", "first paragraph"},
		{"empty for heading-only text", "# Title", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, describeFragment(tc.text))
		})
	}
}
