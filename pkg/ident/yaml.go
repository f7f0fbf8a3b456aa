// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package ident

import "gopkg.in/yaml.v3"

// MarshalYAML encodes the canonical data: form
func (d DataURI) MarshalYAML() (interface{}, error) { return d.String(), nil }

// UnmarshalYAML decodes the canonical data: form
func (d *DataURI) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	decoded, err := DecodeDataURI(s)
	if err != nil {
		return err
	}
	*d = decoded
	return nil
}

// MarshalYAML encodes the "{kind}-{digest}" form
func (r RelationID) MarshalYAML() (interface{}, error) { return r.String(), nil }

// UnmarshalYAML decodes the "{kind}-{digest}" form
func (r *RelationID) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	decoded, err := DecodeRelationID(s)
	if err != nil {
		return err
	}
	*r = decoded
	return nil
}
