// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package coordinator drives the locator → resolve → observe lifecycle
// across the registered connectors: request-scoped memoised inference
// and resolution, batched parallel resolution of referenced URIs and
// relation validation.
package coordinator

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// resolveFanOut bounds the parallelism of one resolution batch
const resolveFanOut = 10

// Service coordinates resolution and ingestion over one connector
// registry. It is stateless; all per-request state lives in the
// connectors.Context.
type Service struct {
	registry *connectors.Registry
}

// NewService builds a coordinator over a registry
func NewService(registry *connectors.Registry) *Service {
	return &Service{registry: registry}
}

// TryInferLocator maps a reference to its locator, memoised per request.
// Precedence: an already ingested resource knows its own locator, then
// the persisted alias store, then connector dispatch in registration
// order. A nil locator with a nil error means no connector claimed the
// reference.
func (s *Service) TryInferLocator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	key := ref.String()
	if loc, err, ok := rctx.CacheResolve.GetInferred(key); ok {
		return loc, err
	}
	loc, err := s.inferLocator(ctx, rctx, ref)
	rctx.CacheResolve.SetInferred(key, loc, err)
	return loc, err
}

func (s *Service) inferLocator(ctx context.Context, rctx *connectors.Context, ref connectors.Reference) (locators.Locator, error) {
	if ru, ok := ref.Resource(); ok {
		history, found, err := rctx.CacheStorage.GetHistory(ctx, rctx.Storage, ru)
		if err != nil {
			return nil, err
		}
		if found {
			if loc := history.Merged().Locator; loc != nil {
				return loc, nil
			}
		}
	}
	loc, found, err := rctx.Storage.GetAlias(ctx, ref.String())
	if err != nil {
		return nil, err
	}
	if found {
		return loc, nil
	}
	for _, c := range s.registry.Connectors() {
		loc, err := c.Locator(ctx, rctx, ref)
		if err != nil {
			return nil, err
		}
		if loc == nil {
			continue
		}
		// opaque external URIs cannot be reconstructed from the
		// resource URI, so the inverse lookup is persisted now
		if eu, ok := ref.External(); ok {
			s.persistAlias(ctx, rctx, eu.String(), loc)
		}
		return loc, nil
	}
	return nil, nil
}

// persistAlias records reference → locator unless the resource already
// has a history carrying the locator. Best effort: a failed write only
// costs a connector dispatch on the next lookup.
func (s *Service) persistAlias(ctx context.Context, rctx *connectors.Context, reference string, loc locators.Locator) {
	_, found, err := rctx.CacheStorage.GetHistory(ctx, rctx.Storage, loc.ResourceURI())
	if err != nil || found {
		if err != nil {
			klog.Warningf("skipping alias for %q: %v", reference, err)
		}
		return
	}
	if err := rctx.Storage.SetAlias(ctx, reference, loc); err != nil {
		klog.Warningf("persisting alias for %q: %v", reference, err)
	}
}

// TryInferLocators infers a set of references sequentially, keyed by
// reference string; references nobody claimed are absent from the result
func (s *Service) TryInferLocators(ctx context.Context, rctx *connectors.Context, refs []connectors.Reference) map[string]locators.Locator {
	out := map[string]locators.Locator{}
	for _, ref := range refs {
		loc, err := s.TryInferLocator(ctx, rctx, ref)
		if err != nil || loc == nil {
			continue
		}
		out[ref.String()] = loc
	}
	return out
}

// ResolveLocator resolves a locator through its connector and folds the
// resulting delta into the resource history. Results are memoised per
// request; a memoised failure re-raises the original error.
func (s *Service) ResolveLocator(ctx context.Context, rctx *connectors.Context, loc locators.Locator) (*model.ResourceView, error) {
	u := loc.ResourceURI()
	if view, err, ok := rctx.CacheResolve.GetResolved(u); ok {
		return view, err
	}
	view, err := s.resolveLocator(ctx, rctx, loc, u)
	rctx.CacheResolve.SetResolved(u, view, err)
	return view, err
}

func (s *Service) resolveLocator(ctx context.Context, rctx *connectors.Context, loc locators.Locator, u uri.ResourceURI) (*model.ResourceView, error) {
	connector, ok := s.registry.Get(loc.Realm())
	if !ok {
		return nil, connectors.BadRequestError(fmt.Sprintf("no connector registered for realm %q", loc.Realm()))
	}
	history, found, err := rctx.CacheStorage.GetHistory(ctx, rctx.Storage, u)
	if err != nil {
		return nil, err
	}
	var cached *model.ResourceView
	if found {
		cached = history.Merged()
	}
	result, err := connector.Resolve(ctx, rctx, loc, cached)
	if err != nil {
		return nil, err
	}
	if found {
		if _, err := history.Update(result.Delta); err != nil {
			return nil, err
		}
	} else {
		history, err = model.NewResourceHistory(result.Delta)
		if err != nil {
			return nil, err
		}
	}
	if result.Cache {
		if err := rctx.Storage.SetHistory(ctx, u, history); err != nil {
			return nil, err
		}
	}
	rctx.CacheStorage.PutHistory(u, history)
	return history.Merged(), nil
}

// ResolvedReference is one successfully inferred and resolved reference
type ResolvedReference struct {
	Reference string
	Locator   locators.Locator
	View      *model.ResourceView
}

// TryInferAndResolveLocators infers and resolves a set of references in
// batches of resolveFanOut parallel tasks. Results keep the input order;
// a reference that fails to infer or resolve drops out of the result.
func (s *Service) TryInferAndResolveLocators(ctx context.Context, rctx *connectors.Context, refs []connectors.Reference) []ResolvedReference {
	slots := make([]*ResolvedReference, len(refs))
	for start := 0; start < len(refs); start += resolveFanOut {
		end := start + resolveFanOut
		if end > len(refs) {
			end = len(refs)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				ref := refs[i]
				loc, err := s.TryInferLocator(gctx, rctx, ref)
				if err != nil || loc == nil {
					if err != nil {
						klog.V(4).Infof("dropping %s: %v", ref, err)
					}
					return nil
				}
				view, err := s.ResolveLocator(gctx, rctx, loc)
				if err != nil {
					klog.V(4).Infof("dropping %s: %v", ref, err)
					return nil
				}
				slots[i] = &ResolvedReference{Reference: ref.String(), Locator: loc, View: view}
				return nil
			})
		}
		// per-reference failures are swallowed above
		_ = g.Wait()
	}
	var out []ResolvedReference
	for _, r := range slots {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// ResolvedEndpoint pairs an endpoint locator with the IDs of the valid
// relations touching it
type ResolvedEndpoint struct {
	Locator   locators.Locator
	Relations []ident.RelationID
}

// TryResolveRelations keeps the candidate relations whose every endpoint
// can be inferred and resolved. The returned relations are deduplicated
// and sorted by relation ID; the endpoint list pairs each non-origin
// endpoint with the IDs of the valid relations touching it.
func (s *Service) TryResolveRelations(ctx context.Context, rctx *connectors.Context, origin uri.ResourceURI, relations []model.Relation) ([]model.Relation, []ResolvedEndpoint) {
	resolved := map[uri.ResourceURI]locators.Locator{}
	var valid []model.Relation
	for _, r := range model.SortRelations(relations) {
		ok := true
		for _, node := range relationNodes(r) {
			if node == origin {
				continue
			}
			if _, seen := resolved[node]; seen {
				continue
			}
			loc, err := s.TryInferLocator(ctx, rctx, connectors.RefResource(node))
			if err != nil || loc == nil {
				ok = false
				break
			}
			if _, err := s.ResolveLocator(ctx, rctx, loc); err != nil {
				ok = false
				break
			}
			resolved[node] = loc
		}
		if ok {
			valid = append(valid, r)
		}
	}
	byNode := map[uri.ResourceURI][]ident.RelationID{}
	var order []uri.ResourceURI
	for _, r := range valid {
		id := r.UniqueID()
		for _, node := range relationNodes(r) {
			if node == origin {
				continue
			}
			if _, ok := byNode[node]; !ok {
				order = append(order, node)
			}
			byNode[node] = append(byNode[node], id)
		}
	}
	endpoints := make([]ResolvedEndpoint, 0, len(order))
	for _, node := range order {
		endpoints = append(endpoints, ResolvedEndpoint{Locator: resolved[node], Relations: byNode[node]})
	}
	return valid, endpoints
}

// relationNodes returns the distinct endpoints of a relation
func relationNodes(r model.Relation) []uri.ResourceURI {
	nodes := r.Endpoints()
	if len(nodes) == 2 && nodes[0] == nodes[1] {
		return nodes[:1]
	}
	return nodes
}

// Refresh runs every registered refresher and re-resolves the changed
// resources it reports. Per-locator failures are logged and skipped so
// one broken resource cannot stall a sync run.
func (s *Service) Refresh(ctx context.Context, rctx *connectors.Context) error {
	for _, refresher := range s.registry.Refreshers() {
		changed, err := refresher.Refresh(ctx, rctx)
		if err != nil {
			return err
		}
		for _, loc := range changed {
			if _, err := s.ResolveLocator(ctx, rctx, loc); err != nil {
				klog.Warningf("re-resolving %s after refresh: %v", loc.ResourceURI(), err)
			}
		}
	}
	return nil
}
