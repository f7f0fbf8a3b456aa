// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"context"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/nandam/nandam/pkg/connectors"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/markdown"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
)

// descriptionLimit caps extracted description labels
const descriptionLimit = 280

// Observe serves one affordance of a resource. A cached bundle is
// returned as long as the merged history does not mark the affordance
// expired; otherwise the connector fetches and the result is
// post-processed per its flags: description extraction, link and parent
// relation generation, bundle caching and the observation delta.
func (s *Service) Observe(ctx context.Context, rctx *connectors.Context, loc locators.Locator, observable uri.Affordance) (model.Bundle, error) {
	view, err := s.ResolveLocator(ctx, rctx, loc)
	if err != nil {
		return nil, err
	}
	origin := loc.ResourceURI()
	if !expired(view, observable) {
		bundle, found, err := rctx.Storage.GetBundle(ctx, origin, observable)
		if err != nil {
			return nil, err
		}
		if found {
			return bundle, nil
		}
	}
	connector, ok := s.registry.Get(loc.Realm())
	if !ok {
		return nil, connectors.BadRequestError("no connector registered for realm " + loc.Realm())
	}
	result, err := connector.Observe(ctx, rctx, loc, observable, view)
	if err != nil {
		return nil, err
	}
	if err := s.postProcess(ctx, rctx, origin, observable, result); err != nil {
		return nil, err
	}
	return result.Bundle, nil
}

func expired(view *model.ResourceView, observable uri.Affordance) bool {
	for _, a := range view.Expired {
		if a == observable {
			return true
		}
	}
	return false
}

func (s *Service) postProcess(ctx context.Context, rctx *connectors.Context, origin uri.ResourceURI, observable uri.Affordance, result *connectors.ObserveResult) error {
	delta := model.ResourceDelta{RefreshedAt: time.Now().UTC()}
	if result.Delta != nil {
		delta = *result.Delta
		if delta.RefreshedAt.IsZero() {
			delta.RefreshedAt = time.Now().UTC()
		}
	}
	candidates := result.Relations
	if fragment, ok := result.Bundle.(*model.Fragment); ok {
		if result.Post.ExtractDescription {
			if d := describeFragment(fragment.Text); d != "" {
				delta.Labels = append(delta.Labels, model.Label{Name: "description", Value: d})
			}
		}
		if result.Post.LinkRelations {
			candidates = append(candidates, s.linkRelations(ctx, rctx, origin, fragment)...)
		}
	}
	if collection, ok := result.Bundle.(*model.BundleCollection); ok && result.Post.ParentRelations {
		for _, child := range collection.Results {
			if child != origin {
				candidates = append(candidates, model.NewParent(origin, child))
			}
		}
	}
	valid, _ := s.TryResolveRelations(ctx, rctx, origin, candidates)
	if len(valid) > 0 {
		if err := rctx.Storage.SetRelationsFiltered(ctx, valid, func(node uri.ResourceURI) bool {
			return node == origin || ShouldBacklink(node.Realm())
		}); err != nil {
			return err
		}
	}
	// the observation delta clears a pending expiry for this affordance
	observed := model.ObservedDelta{Affordance: observable}
	if len(valid) > 0 {
		observed.Relations = model.Set(valid)
	}
	delta.Observed = append(delta.Observed, observed)
	if err := s.recordObservation(ctx, rctx, origin, delta); err != nil {
		return err
	}
	if result.Post.Cache {
		if err := rctx.Storage.SetBundle(ctx, origin, observable, result.Bundle); err != nil {
			return err
		}
	}
	return nil
}

// recordObservation folds the observation delta into the history and
// persists it when the resource has a persisted record
func (s *Service) recordObservation(ctx context.Context, rctx *connectors.Context, origin uri.ResourceURI, delta model.ResourceDelta) error {
	history, found, err := rctx.CacheStorage.GetHistory(ctx, rctx.Storage, origin)
	if err != nil {
		return err
	}
	if !found {
		// the resolve chose not to cache; the observation stays
		// request-scoped with it
		return nil
	}
	changed, err := history.Update(delta)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := rctx.Storage.SetHistory(ctx, origin, history); err != nil {
		return err
	}
	rctx.CacheStorage.PutHistory(origin, history)
	return nil
}

// linkRelations turns in-body web links into link relations towards
// resources some connector claims. Unclaimed or failing destinations are
// skipped.
func (s *Service) linkRelations(ctx context.Context, rctx *connectors.Context, origin uri.ResourceURI, fragment *model.Fragment) []model.Relation {
	dests, err := markdown.WebDestinations([]byte(fragment.Text))
	if err != nil {
		klog.V(2).Infof("skipping link extraction for %s: %v", origin, err)
		return nil
	}
	var out []model.Relation
	for _, dest := range dests {
		ref, err := connectors.ParseReference(dest)
		if err != nil {
			continue
		}
		loc, err := s.TryInferLocator(ctx, rctx, ref)
		if err != nil || loc == nil {
			continue
		}
		if target := loc.ResourceURI(); target != origin {
			out = append(out, model.NewLink(origin, target))
		}
	}
	return out
}

// describeFragment condenses fragment text into a short description:
// the first non-heading lines, capped at descriptionLimit runes
func describeFragment(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			if b.Len() > 0 {
				break
			}
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(line)
		if b.Len() >= descriptionLimit {
			break
		}
	}
	out := []rune(b.String())
	if len(out) > descriptionLimit {
		return strings.TrimSpace(string(out[:descriptionLimit-1])) + "…"
	}
	return string(out)
}
