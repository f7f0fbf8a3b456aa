// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var relationIDRegexp = regexp.MustCompile(`([a-z]+)-([0-9a-f]{32})`)

// relationSalt pins the digest to this schema generation so that IDs stay
// stable across runs but not across incompatible body layouts
const relationSalt = "nandam-relation-v1:"

// RelationIDExamples document the accepted shape for schema generation
var RelationIDExamples = []string{"link-0123456789abcdef0123456789abcdef"}

// RelationID is a "{kind}-{32 hex}" content-addressed relation identifier
type RelationID struct {
	kind   string
	digest string
}

// NewRelationID derives the ID for a relation kind over its canonical JSON
// body
func NewRelationID(kind string, canonicalBody []byte) RelationID {
	sum := sha256.Sum256(append([]byte(relationSalt), canonicalBody...))
	return RelationID{kind: kind, digest: hex.EncodeToString(sum[:])[:32]}
}

// DecodeRelationID parses a "{kind}-{32 hex}" identifier
func DecodeRelationID(s string) (RelationID, error) {
	if err := matchAnchored(relationIDRegexp, s); err != nil {
		return RelationID{}, err
	}
	parts := relationIDRegexp.FindStringSubmatch(s)
	return RelationID{kind: parts[1], digest: parts[2]}, nil
}

// TryDecodeRelationID is the non-failing variant of DecodeRelationID
func TryDecodeRelationID(s string) (RelationID, bool) {
	id, err := DecodeRelationID(s)
	return id, err == nil
}

func (r RelationID) String() string { return fmt.Sprintf("%s-%s", r.kind, r.digest) }

// Kind returns the relation kind prefix
func (r RelationID) Kind() string { return r.kind }
