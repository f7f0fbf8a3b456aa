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
	"gopkg.in/yaml.v3"
)

// AffordanceInfo describes one affordance of a resource: its suffix, an
// optional MIME type, the observation sections and the sub-observations
// (chunks and media) it splits into.
type AffordanceInfo struct {
	Affordance uri.Affordance      `yaml:"affordance"`
	MimeType   Opt[ident.MimeType] `yaml:"mime_type,omitempty"`
	Sections   Opt[[]string]       `yaml:"sections,omitempty"`
	Chunks     Opt[[]string]       `yaml:"chunks,omitempty"`
	Media      Opt[[]string]       `yaml:"media,omitempty"`
}

// withUpdate merges upd field-by-field, later wins
func (a AffordanceInfo) withUpdate(upd AffordanceInfo) AffordanceInfo {
	return AffordanceInfo{
		Affordance: a.Affordance,
		MimeType:   mergeOpt(a.MimeType, upd.MimeType),
		Sections:   mergeOpt(a.Sections, upd.Sections),
		Chunks:     mergeOpt(a.Chunks, upd.Chunks),
		Media:      mergeOpt(a.Media, upd.Media),
	}
}

// Label is a named annotation on a resource or one of its affordances;
// Target is empty for resource-level labels.
type Label struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target,omitempty"`
	Value  string `yaml:"value"`
}

// SortKey is the natural label key: one value per (name, target)
func (l Label) SortKey() string { return l.Name + "\x00" + l.Target }

// MetadataDelta is a sparse metadata update; every field is independently
// three-state.
type MetadataDelta struct {
	Name        Opt[string]           `yaml:"name,omitempty"`
	MimeType    Opt[ident.MimeType]   `yaml:"mime_type,omitempty"`
	Description Opt[string]           `yaml:"description,omitempty"`
	CitationURL Opt[string]           `yaml:"citation_url,omitempty"`
	CreatedAt   Opt[time.Time]        `yaml:"created_at,omitempty"`
	UpdatedAt   Opt[time.Time]        `yaml:"updated_at,omitempty"`
	Revision    Opt[string]           `yaml:"revision,omitempty"`
	Aliases     Opt[[]string]         `yaml:"aliases,omitempty"`
	Affordances Opt[[]AffordanceInfo] `yaml:"affordances,omitempty"`
	Relations   Opt[[]Relation]       `yaml:"relations,omitempty"`
}

// Diff keeps only the fields that change the merged state
func (d MetadataDelta) Diff(before MetadataDelta) MetadataDelta {
	return MetadataDelta{
		Name:        diffOpt(d.Name, before.Name),
		MimeType:    diffOpt(d.MimeType, before.MimeType),
		Description: diffOpt(d.Description, before.Description),
		CitationURL: diffOpt(d.CitationURL, before.CitationURL),
		CreatedAt:   diffOpt(d.CreatedAt, before.CreatedAt),
		UpdatedAt:   diffOpt(d.UpdatedAt, before.UpdatedAt),
		Revision:    diffOpt(d.Revision, before.Revision),
		Aliases:     diffOpt(d.Aliases, before.Aliases),
		Affordances: diffOpt(d.Affordances, before.Affordances),
		Relations:   diffOpt(d.Relations, before.Relations),
	}
}

// WithUpdate applies upd with set-wins semantics
func (d MetadataDelta) WithUpdate(upd MetadataDelta) MetadataDelta {
	return MetadataDelta{
		Name:        mergeOpt(d.Name, upd.Name),
		MimeType:    mergeOpt(d.MimeType, upd.MimeType),
		Description: mergeOpt(d.Description, upd.Description),
		CitationURL: mergeOpt(d.CitationURL, upd.CitationURL),
		CreatedAt:   mergeOpt(d.CreatedAt, upd.CreatedAt),
		UpdatedAt:   mergeOpt(d.UpdatedAt, upd.UpdatedAt),
		Revision:    mergeOpt(d.Revision, upd.Revision),
		Aliases:     mergeOpt(d.Aliases, upd.Aliases),
		Affordances: mergeOpt(d.Affordances, upd.Affordances),
		Relations:   mergeOpt(d.Relations, upd.Relations),
	}
}

// IsEmpty reports whether no field is set
func (d MetadataDelta) IsEmpty() bool {
	return !d.Name.IsSet() && !d.MimeType.IsSet() && !d.Description.IsSet() &&
		!d.CitationURL.IsSet() && !d.CreatedAt.IsSet() && !d.UpdatedAt.IsSet() &&
		!d.Revision.IsSet() && !d.Aliases.IsSet() && !d.Affordances.IsSet() &&
		!d.Relations.IsSet()
}

// ObservedDelta is the per-affordance sub-delta of one observation
type ObservedDelta struct {
	Affordance uri.Affordance         `yaml:"affordance"`
	MimeType   Opt[ident.MimeType]    `yaml:"mime_type,omitempty"`
	Meta       Opt[map[string]string] `yaml:"meta,omitempty"`
	Sections   Opt[[]string]          `yaml:"sections,omitempty"`
	Relations  Opt[[]Relation]        `yaml:"relations,omitempty"`
}

// Diff keeps only the fields that change the merged state; the affordance
// key is always kept
func (d ObservedDelta) Diff(before ObservedDelta) ObservedDelta {
	return ObservedDelta{
		Affordance: d.Affordance,
		MimeType:   diffOpt(d.MimeType, before.MimeType),
		Meta:       diffOpt(d.Meta, before.Meta),
		Sections:   diffOpt(d.Sections, before.Sections),
		Relations:  diffOpt(d.Relations, before.Relations),
	}
}

// WithUpdate applies upd with set-wins semantics
func (d ObservedDelta) WithUpdate(upd ObservedDelta) ObservedDelta {
	return ObservedDelta{
		Affordance: d.Affordance,
		MimeType:   mergeOpt(d.MimeType, upd.MimeType),
		Meta:       mergeOpt(d.Meta, upd.Meta),
		Sections:   mergeOpt(d.Sections, upd.Sections),
		Relations:  mergeOpt(d.Relations, upd.Relations),
	}
}

// IsEmpty reports whether nothing beyond the affordance key is set
func (d ObservedDelta) IsEmpty() bool {
	return !d.MimeType.IsSet() && !d.Meta.IsSet() && !d.Sections.IsSet() && !d.Relations.IsSet()
}

// ResourceDelta is one ingestion step of a resource
type ResourceDelta struct {
	RefreshedAt time.Time
	Locator     locators.Locator
	Expired     []uri.Affordance
	Labels      []Label
	ResetLabels bool
	Metadata    MetadataDelta
	Observed    []ObservedDelta
}

// IsEmpty reports whether appending the delta would not change the merged
// view; RefreshedAt alone does not make a delta worth keeping
func (d ResourceDelta) IsEmpty() bool {
	if d.Locator != nil || len(d.Expired) > 0 || len(d.Labels) > 0 || d.ResetLabels {
		return false
	}
	if !d.Metadata.IsEmpty() {
		return false
	}
	for _, o := range d.Observed {
		if !o.IsEmpty() {
			return false
		}
	}
	return true
}

// Diff elides every no-op field of d against the merged view
func (d ResourceDelta) Diff(view *ResourceView) ResourceDelta {
	out := ResourceDelta{RefreshedAt: d.RefreshedAt, ResetLabels: d.ResetLabels}
	if d.Locator != nil && !locatorsEqual(d.Locator, view.Locator) {
		out.Locator = d.Locator
	}
	expired := map[uri.Affordance]bool{}
	for _, a := range view.Expired {
		expired[a] = true
	}
	for _, a := range d.Expired {
		if !expired[a] {
			out.Expired = append(out.Expired, a)
		}
	}
	current := map[string]Label{}
	for _, l := range view.Labels {
		current[l.SortKey()] = l
	}
	for _, l := range d.Labels {
		if d.ResetLabels || current[l.SortKey()] != l {
			out.Labels = append(out.Labels, l)
		}
	}
	out.Metadata = d.Metadata.Diff(view.Metadata)
	observed := map[uri.Affordance]ObservedDelta{}
	for _, o := range view.Observed {
		observed[o.Affordance] = o
	}
	for _, o := range d.Observed {
		diffed := o.Diff(observed[o.Affordance])
		if _, known := observed[o.Affordance]; !known || !diffed.IsEmpty() {
			out.Observed = append(out.Observed, diffed)
		}
	}
	return out
}

func locatorsEqual(a, b locators.Locator) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	da, err := locators.Marshal(a)
	if err != nil {
		return false
	}
	db, err := locators.Marshal(b)
	if err != nil {
		return false
	}
	return string(da) == string(db)
}

// resourceDeltaYAML is the persisted shape; the locator rides in its kind
// envelope
type resourceDeltaYAML struct {
	RefreshedAt time.Time       `yaml:"refreshed_at"`
	Locator     *yaml.Node      `yaml:"locator,omitempty"`
	Expired     []uri.Affordance `yaml:"expired,omitempty"`
	Labels      []Label         `yaml:"labels,omitempty"`
	ResetLabels bool            `yaml:"reset_labels,omitempty"`
	Metadata    MetadataDelta   `yaml:"metadata,omitempty"`
	Observed    []ObservedDelta `yaml:"observed,omitempty"`
}

// MarshalYAML encodes the delta with the locator envelope
func (d ResourceDelta) MarshalYAML() (interface{}, error) {
	out := resourceDeltaYAML{
		RefreshedAt: d.RefreshedAt,
		Expired:     d.Expired,
		Labels:      d.Labels,
		ResetLabels: d.ResetLabels,
		Metadata:    d.Metadata,
		Observed:    d.Observed,
	}
	if d.Locator != nil {
		node, err := locators.EncodeYAML(d.Locator)
		if err != nil {
			return nil, err
		}
		out.Locator = node
	}
	return out, nil
}

// UnmarshalYAML decodes the delta and its locator envelope
func (d *ResourceDelta) UnmarshalYAML(node *yaml.Node) error {
	var raw resourceDeltaYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*d = ResourceDelta{
		RefreshedAt: raw.RefreshedAt,
		Expired:     raw.Expired,
		Labels:      raw.Labels,
		ResetLabels: raw.ResetLabels,
		Metadata:    raw.Metadata,
		Observed:    raw.Observed,
	}
	if raw.Locator != nil {
		loc, err := locators.DecodeYAML(raw.Locator)
		if err != nil {
			return err
		}
		d.Locator = loc
	}
	return nil
}

func sortStrings(s []string) { sort.Strings(s) }
