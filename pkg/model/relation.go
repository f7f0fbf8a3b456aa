// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
)

// RelationKind is the closed set of edge kinds in the resource graph
type RelationKind string

// Relation kinds
const (
	RelationEmbed  RelationKind = "embed"
	RelationLink   RelationKind = "link"
	RelationMisc   RelationKind = "misc"
	RelationParent RelationKind = "parent"
)

var subkindSeparators = regexp.MustCompile(`[\s-]+`)

// Relation is a typed edge between two resources. For parent relations
// Source holds the parent and Target the child.
type Relation struct {
	Kind    RelationKind    `yaml:"kind"`
	Subkind string          `yaml:"subkind,omitempty"`
	Source  uri.ResourceURI `yaml:"source"`
	Target  uri.ResourceURI `yaml:"target"`
}

// NewEmbed builds an embed edge
func NewEmbed(source, target uri.ResourceURI) Relation {
	return Relation{Kind: RelationEmbed, Source: source, Target: target}
}

// NewLink builds a link edge
func NewLink(source, target uri.ResourceURI) Relation {
	return Relation{Kind: RelationLink, Source: source, Target: target}
}

// NewParent builds a parent edge
func NewParent(parent, child uri.ResourceURI) Relation {
	return Relation{Kind: RelationParent, Source: parent, Target: child}
}

// NewMisc builds a misc edge; the subkind is trimmed, lowercased and
// snake-cased
func NewMisc(subkind string, source, target uri.ResourceURI) Relation {
	sk := strings.ToLower(strings.TrimSpace(subkind))
	sk = subkindSeparators.ReplaceAllString(sk, "_")
	return Relation{Kind: RelationMisc, Subkind: sk, Source: source, Target: target}
}

// GetSource returns the edge source (the parent for parent edges)
func (r Relation) GetSource() uri.ResourceURI { return r.Source }

// GetTargets returns the edge targets
func (r Relation) GetTargets() []uri.ResourceURI { return []uri.ResourceURI{r.Target} }

// Endpoints returns every resource the edge touches
func (r Relation) Endpoints() []uri.ResourceURI {
	return []uri.ResourceURI{r.Source, r.Target}
}

// canonicalBody is the JSON the relation ID digests. Field order is fixed
// alphabetically per kind so the digest is stable across runs.
func (r Relation) canonicalBody() []byte {
	var body interface{}
	switch r.Kind {
	case RelationParent:
		body = struct {
			Child  string `json:"child"`
			Kind   string `json:"kind"`
			Parent string `json:"parent"`
		}{r.Target.String(), string(r.Kind), r.Source.String()}
	case RelationMisc:
		body = struct {
			Kind    string `json:"kind"`
			Source  string `json:"source"`
			Subkind string `json:"subkind"`
			Target  string `json:"target"`
		}{string(r.Kind), r.Source.String(), r.Subkind, r.Target.String()}
	default:
		body = struct {
			Kind   string `json:"kind"`
			Source string `json:"source"`
			Target string `json:"target"`
		}{string(r.Kind), r.Source.String(), r.Target.String()}
	}
	out, err := json.Marshal(body)
	if err != nil {
		// the body is strings only; Marshal cannot fail
		panic(err)
	}
	return out
}

// UniqueID derives the content-addressed relation ID; stable across runs
func (r Relation) UniqueID() ident.RelationID {
	return ident.NewRelationID(string(r.Kind), r.canonicalBody())
}

// SortRelations orders relations by unique ID and drops duplicates
func SortRelations(relations []Relation) []Relation {
	byID := map[string]Relation{}
	ids := make([]string, 0, len(relations))
	for _, r := range relations {
		id := r.UniqueID().String()
		if _, ok := byID[id]; !ok {
			ids = append(ids, id)
		}
		byID[id] = r
	}
	sortStrings(ids)
	out := make([]Relation, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}
