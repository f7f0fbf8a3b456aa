// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
)

// Key prefixes are part of the persisted contract; out-of-band tooling
// navigates the store by these literals.
const (
	PrefixResource     = "v1/resource/"
	PrefixObserved     = "v1/observed/"
	PrefixAlias        = "v1/alias/"
	PrefixRelationDefs = "v1/relation/defs/"
	PrefixRelationRefs = "v1/relation/refs/"
	PrefixSync         = "v1/sync/"
)

const aliasSalt = "nandam-alias-v1:"

// ResourceKey addresses the resource history of one URI:
// v1/resource/{realm}/{subrealm}/{path...}.yml
func ResourceKey(u uri.ResourceURI) string {
	parts := append([]string{u.Realm(), u.Subrealm()}, u.Path()...)
	return PrefixResource + strings.Join(parts, "/") + ".yml"
}

// NodePart flattens a resource URI into a single path segment:
// {realm}+{subrealm}+{path...} joined with "+". It keys both the bundle
// cache directories and the relation back-reference directories.
func NodePart(u uri.ResourceURI) string {
	parts := append([]string{u.Realm(), u.Subrealm()}, u.Path()...)
	return strings.Join(parts, "+")
}

// ObservedKey addresses the cached bundle of one affordance:
// v1/observed/{node_part}/{affordance_stem}.yml
func ObservedKey(u uri.ResourceURI, a uri.Affordance) string {
	return PrefixObserved + NodePart(u) + "/" + string(a) + ".yml"
}

// AliasKey addresses the persisted locator alias of an arbitrary external
// reference string. The reference is salted and hashed so any reference
// shape maps to a fixed-width key.
func AliasKey(reference string) string {
	sum := sha1.Sum([]byte(aliasSalt + reference))
	return PrefixAlias + hex.EncodeToString(sum[:]) + ".yml"
}

// RelationDefKey addresses the canonical body of one relation
func RelationDefKey(id ident.RelationID) string {
	return PrefixRelationDefs + id.String() + ".yml"
}

// RelationRefKey addresses the empty back-reference marker that indexes a
// relation under one of its endpoint nodes
func RelationRefKey(node uri.ResourceURI, id ident.RelationID) string {
	return PrefixRelationRefs + NodePart(node) + "/" + id.String() + ".txt"
}

// RelationRefPrefix lists every relation touching the node
func RelationRefPrefix(node uri.ResourceURI) string {
	return PrefixRelationRefs + NodePart(node) + "/"
}

// SyncStateKey addresses connector sync state, such as a drive delta
// link, under a connector-chosen name. The name is hashed the same way
// alias references are so any identifier shape fits.
func SyncStateKey(name string) string {
	sum := sha1.Sum([]byte(aliasSalt + name))
	return PrefixSync + hex.EncodeToString(sum[:]) + ".txt"
}
