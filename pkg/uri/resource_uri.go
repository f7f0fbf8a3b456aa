// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package uri implements the internal address space of the gateway: canonical
// ndk:// resource URIs, affordance URIs, opaque ext:// identifiers, parsed
// web URLs and the self:// fragment blob keys.
package uri

import (
	"fmt"
	"strings"

	"github.com/nandam/nandam/pkg/ident"
)

// Scheme is the internal resource URI scheme
const Scheme = "ndk://"

// ResourceURI is the canonical internal address of a resource:
// ndk://{realm}/{subrealm}/{path...}. The value is immutable and comparable;
// its string form is the canonical form and defines the total order.
type ResourceURI struct {
	realm    string
	subrealm string
	// slash-joined validated segments, may be empty
	path string
}

// NewResourceURI builds a ResourceURI from validated parts
func NewResourceURI(realm, subrealm string, path ...string) (ResourceURI, error) {
	if _, err := ident.DecodeFileName(realm); err != nil {
		return ResourceURI{}, fmt.Errorf("invalid realm: %w", err)
	}
	if _, err := ident.DecodeFileName(subrealm); err != nil {
		return ResourceURI{}, fmt.Errorf("invalid subrealm: %w", err)
	}
	for _, p := range path {
		if _, err := ident.DecodeFileName(p); err != nil {
			return ResourceURI{}, fmt.Errorf("invalid path segment: %w", err)
		}
	}
	return ResourceURI{realm: realm, subrealm: subrealm, path: strings.Join(path, "/")}, nil
}

// MustResourceURI is NewResourceURI for segments already known to be valid;
// it panics on invalid input and is meant for locator canonicalization where
// every part has been produced by a validated type.
func MustResourceURI(realm, subrealm string, path ...string) ResourceURI {
	u, err := NewResourceURI(realm, subrealm, path...)
	if err != nil {
		panic(err)
	}
	return u
}

// DecodeResourceURI parses the canonical ndk:// form
func DecodeResourceURI(s string) (ResourceURI, error) {
	rest, ok := strings.CutPrefix(s, Scheme)
	if !ok {
		return ResourceURI{}, fmt.Errorf("resource URI %q does not start with %s", s, Scheme)
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		return ResourceURI{}, fmt.Errorf("resource URI %q must name a realm and a subrealm", s)
	}
	return NewResourceURI(parts[0], parts[1], parts[2:]...)
}

// TryDecodeResourceURI is the non-failing variant of DecodeResourceURI
func TryDecodeResourceURI(s string) (ResourceURI, bool) {
	u, err := DecodeResourceURI(s)
	return u, err == nil
}

func (u ResourceURI) String() string {
	if u.path == "" {
		return Scheme + u.realm + "/" + u.subrealm
	}
	return Scheme + u.realm + "/" + u.subrealm + "/" + u.path
}

// Realm returns the connector namespace
func (u ResourceURI) Realm() string { return u.realm }

// Subrealm returns the second-level namespace
func (u ResourceURI) Subrealm() string { return u.subrealm }

// Path returns the path segments after the subrealm
func (u ResourceURI) Path() []string {
	if u.path == "" {
		return nil
	}
	return strings.Split(u.path, "/")
}

// IsZero reports whether u is the empty value
func (u ResourceURI) IsZero() bool { return u.realm == "" }

// Less orders by the canonical string form
func (u ResourceURI) Less(o ResourceURI) bool { return u.String() < o.String() }

// ChildAffordance derives the affordance URI {u}${aff}
func (u ResourceURI) ChildAffordance(a Affordance) AffordanceURI {
	return AffordanceURI{resource: u, affordance: a}
}
