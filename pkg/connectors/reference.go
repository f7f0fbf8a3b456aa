// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"fmt"
	"strings"

	"github.com/nandam/nandam/pkg/uri"
)

// Reference is one of the three input shapes a locator lookup accepts:
// a public web URL, a canonical resource URI, or an opaque external URI
type Reference struct {
	web      *uri.WebURL
	resource uri.ResourceURI
	external uri.ExternalURI
}

// RefWeb wraps a web URL reference
func RefWeb(u *uri.WebURL) Reference { return Reference{web: u} }

// RefResource wraps a canonical resource URI reference
func RefResource(u uri.ResourceURI) Reference { return Reference{resource: u} }

// RefExternal wraps an opaque external URI reference
func RefExternal(u uri.ExternalURI) Reference { return Reference{external: u} }

// ParseReference classifies a raw reference string by scheme
func ParseReference(s string) (Reference, error) {
	switch {
	case strings.HasPrefix(s, uri.Scheme):
		u, err := uri.DecodeResourceURI(s)
		if err != nil {
			return Reference{}, err
		}
		return RefResource(u), nil
	case strings.HasPrefix(s, uri.ExternalScheme):
		u, err := uri.DecodeExternalURI(s)
		if err != nil {
			return Reference{}, err
		}
		return RefExternal(u), nil
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		u, err := uri.ParseWebURL(s)
		if err != nil {
			return Reference{}, err
		}
		return RefWeb(u), nil
	}
	return Reference{}, BadRequestError(fmt.Sprintf("reference %q is not a web URL, resource URI or external URI", s))
}

// Web returns the web URL form when present
func (r Reference) Web() (*uri.WebURL, bool) { return r.web, r.web != nil }

// Resource returns the resource URI form when present
func (r Reference) Resource() (uri.ResourceURI, bool) { return r.resource, !r.resource.IsZero() }

// External returns the external URI form when present
func (r Reference) External() (uri.ExternalURI, bool) { return r.external, r.external != "" }

func (r Reference) String() string {
	switch {
	case r.web != nil:
		return r.web.String()
	case !r.resource.IsZero():
		return r.resource.String()
	default:
		return r.external.String()
	}
}
