// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package uri

import (
	"fmt"
	"strings"
)

// ExternalScheme is the prefix of opaque third-party identifiers
const ExternalScheme = "ext://"

// ExternalURI carries a third-party identifier that is not a user-visible
// URL; everything after the scheme is opaque to the gateway.
type ExternalURI string

// DecodeExternalURI validates the ext:// form
func DecodeExternalURI(s string) (ExternalURI, error) {
	rest, ok := strings.CutPrefix(s, ExternalScheme)
	if !ok {
		return "", fmt.Errorf("external URI %q does not start with %s", s, ExternalScheme)
	}
	if rest == "" {
		return "", fmt.Errorf("external URI %q carries no identifier", s)
	}
	return ExternalURI(s), nil
}

// TryDecodeExternalURI is the non-failing variant of DecodeExternalURI
func TryDecodeExternalURI(s string) (ExternalURI, bool) {
	u, err := DecodeExternalURI(s)
	return u, err == nil
}

func (u ExternalURI) String() string { return string(u) }

// Opaque returns the identifier after the scheme
func (u ExternalURI) Opaque() string { return strings.TrimPrefix(string(u), ExternalScheme) }
