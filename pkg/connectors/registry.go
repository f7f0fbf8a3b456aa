// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package connectors

import (
	"fmt"
)

// Registry holds connectors in dispatch order. Registration order is
// significant: domain-scoped connectors first, public connectors next,
// the catch-all web connector last.
type Registry struct {
	ordered []Connector
	byRealm map[string]Connector
}

// NewRegistry builds a registry; two connectors claiming the same realm
// is a construction error
func NewRegistry(connectors ...Connector) (*Registry, error) {
	r := &Registry{byRealm: map[string]Connector{}}
	for _, c := range connectors {
		realm := c.Realm()
		if _, taken := r.byRealm[realm]; taken {
			return nil, fmt.Errorf("two connectors registered for realm %q", realm)
		}
		r.byRealm[realm] = c
		r.ordered = append(r.ordered, c)
	}
	return r, nil
}

// Connectors returns the connectors in dispatch order
func (r *Registry) Connectors() []Connector {
	return r.ordered
}

// Get returns the connector serving a realm
func (r *Registry) Get(realm string) (Connector, bool) {
	c, ok := r.byRealm[realm]
	return c, ok
}

// Refreshers returns the registered connectors that sync upstream
// deltas, in dispatch order
func (r *Registry) Refreshers() []Refresher {
	var out []Refresher
	for _, c := range r.ordered {
		if refresher, ok := c.(Refresher); ok {
			out = append(out, refresher)
		}
	}
	return out
}
