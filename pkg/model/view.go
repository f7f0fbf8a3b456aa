// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"sort"
	"time"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/uri"
)

// ObservedView is the merged per-affordance observation state
type ObservedView = ObservedDelta

// ResourceView is the merged read-model of a resource history. All list
// fields are sorted by their natural keys.
type ResourceView struct {
	Locator     locators.Locator
	RefreshedAt time.Time
	Expired     []uri.Affordance
	Labels      []Label
	Metadata    MetadataDelta
	Observed    []ObservedView
}

// foldHistory computes the deterministic left-fold of the delta log.
// Within one delta the expiry set grows before the delta's own
// observations shrink it again, so observing an affordance always clears
// an expiry reported in the same or an earlier delta.
func foldHistory(deltas []ResourceDelta) *ResourceView {
	v := &ResourceView{}
	expired := map[uri.Affordance]bool{}
	labels := map[string]Label{}
	observed := map[uri.Affordance]ObservedView{}
	for _, d := range deltas {
		if d.Locator != nil {
			v.Locator = d.Locator
		}
		if d.RefreshedAt.After(v.RefreshedAt) {
			v.RefreshedAt = d.RefreshedAt
		}
		for _, a := range d.Expired {
			expired[a] = true
		}
		for _, o := range d.Observed {
			delete(expired, o.Affordance)
			if cur, ok := observed[o.Affordance]; ok {
				observed[o.Affordance] = cur.WithUpdate(o)
			} else {
				observed[o.Affordance] = o
			}
		}
		if d.ResetLabels {
			labels = map[string]Label{}
		}
		for _, l := range d.Labels {
			// later occurrence wins on key collision
			labels[l.SortKey()] = l
		}
		v.Metadata = v.Metadata.WithUpdate(d.Metadata)
	}
	for a := range expired {
		v.Expired = append(v.Expired, a)
	}
	sort.Slice(v.Expired, func(i, j int) bool { return v.Expired[i] < v.Expired[j] })
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sortStrings(keys)
	for _, k := range keys {
		v.Labels = append(v.Labels, labels[k])
	}
	affs := make([]string, 0, len(observed))
	for a := range observed {
		affs = append(affs, string(a))
	}
	sortStrings(affs)
	for _, a := range affs {
		v.Observed = append(v.Observed, observed[uri.Affordance(a)])
	}
	return v
}

// ObservedFor returns the merged observation state of one affordance
func (v *ResourceView) ObservedFor(a uri.Affordance) (ObservedView, bool) {
	for _, o := range v.Observed {
		if o.Affordance == a {
			return o, true
		}
	}
	return ObservedView{}, false
}

// AllAliases returns the alias URIs declared by metadata
func (v *ResourceView) AllAliases() []string {
	return v.Metadata.Aliases.OrElse(nil)
}

// AllLabels returns the merged labels in sort-key order
func (v *ResourceView) AllLabels() []Label { return v.Labels }

// AllAttributes flattens the merged scalar metadata into a string map
func (v *ResourceView) AllAttributes() map[string]string {
	out := map[string]string{}
	if name, ok := v.Metadata.Name.Value(); ok {
		out["name"] = name
	}
	if m, ok := v.Metadata.MimeType.Value(); ok {
		out["mime_type"] = m.String()
	}
	if d, ok := v.Metadata.Description.Value(); ok {
		out["description"] = d
	}
	if c, ok := v.Metadata.CitationURL.Value(); ok {
		out["citation_url"] = c
	}
	if t, ok := v.Metadata.CreatedAt.Value(); ok {
		out["created_at"] = t.UTC().Format(time.RFC3339)
	}
	if t, ok := v.Metadata.UpdatedAt.Value(); ok {
		out["updated_at"] = t.UTC().Format(time.RFC3339)
	}
	if r, ok := v.Metadata.Revision.Value(); ok {
		out["revision"] = r
	}
	return out
}

// AllRelations merges metadata-proposed and observation relations, deduped
// and sorted by relation ID
func (v *ResourceView) AllRelations() []Relation {
	var all []Relation
	all = append(all, v.Metadata.Relations.OrElse(nil)...)
	for _, o := range v.Observed {
		all = append(all, o.Relations.OrElse(nil)...)
	}
	return SortRelations(all)
}

// Affordances concatenates metadata-declared and observation-declared
// affordance infos, keyed by suffix with per-key later-wins field merge
func (v *ResourceView) Affordances() []AffordanceInfo {
	merged := map[uri.Affordance]AffordanceInfo{}
	var order []uri.Affordance
	add := func(info AffordanceInfo) {
		if cur, ok := merged[info.Affordance]; ok {
			merged[info.Affordance] = cur.withUpdate(info)
			return
		}
		merged[info.Affordance] = info
		order = append(order, info.Affordance)
	}
	for _, info := range v.Metadata.Affordances.OrElse(nil) {
		add(info)
	}
	for _, o := range v.Observed {
		add(AffordanceInfo{
			Affordance: o.Affordance,
			MimeType:   o.MimeType,
			Sections:   o.Sections,
		})
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]AffordanceInfo, 0, len(order))
	for _, a := range order {
		out = append(out, merged[a])
	}
	return out
}

// SupportsAffordance reports whether the merged view declares the
// affordance
func (v *ResourceView) SupportsAffordance(a uri.Affordance) bool {
	for _, info := range v.Affordances() {
		if info.Affordance == a {
			return true
		}
	}
	return false
}

// MimeFor returns the best-known MIME type for an affordance, falling back
// to the resource-level metadata
func (v *ResourceView) MimeFor(a uri.Affordance) (ident.MimeType, bool) {
	if o, ok := v.ObservedFor(a); ok {
		if m, ok := o.MimeType.Value(); ok {
			return m, true
		}
	}
	for _, info := range v.Metadata.Affordances.OrElse(nil) {
		if info.Affordance == a {
			if m, ok := info.MimeType.Value(); ok {
				return m, true
			}
		}
	}
	return v.Metadata.MimeType.Value()
}
