// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package uri

import "gopkg.in/yaml.v3"

// The structured URI types persist as their canonical string forms.

// MarshalYAML encodes the canonical string form
func (u ResourceURI) MarshalYAML() (interface{}, error) { return u.String(), nil }

// UnmarshalYAML decodes the canonical string form
func (u *ResourceURI) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	decoded, err := DecodeResourceURI(s)
	if err != nil {
		return err
	}
	*u = decoded
	return nil
}

// MarshalYAML encodes the canonical string form
func (u AffordanceURI) MarshalYAML() (interface{}, error) { return u.String(), nil }

// UnmarshalYAML decodes the canonical string form
func (u *AffordanceURI) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	decoded, err := DecodeAffordanceURI(s)
	if err != nil {
		return err
	}
	*u = decoded
	return nil
}

// MarshalYAML encodes the canonical string form
func (f FragmentURI) MarshalYAML() (interface{}, error) { return f.String(), nil }

// UnmarshalYAML decodes the canonical string form
func (f *FragmentURI) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	decoded, err := DecodeFragmentURI(s)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}
