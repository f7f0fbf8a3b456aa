// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package uri

import (
	"fmt"
	"strings"
)

// Affordance names a shape in which a resource can be consumed
type Affordance string

// The closed affordance set
const (
	AffordanceBody       Affordance = "body"
	AffordanceCollection Affordance = "collection"
	AffordanceFile       Affordance = "file"
	AffordancePlain      Affordance = "plain"
)

// DecodeAffordance validates an affordance suffix
func DecodeAffordance(s string) (Affordance, error) {
	switch Affordance(s) {
	case AffordanceBody, AffordanceCollection, AffordanceFile, AffordancePlain:
		return Affordance(s), nil
	}
	return "", fmt.Errorf("unknown affordance %q", s)
}

func (a Affordance) String() string { return string(a) }

// Suffix returns the user-visible "$" form
func (a Affordance) Suffix() string { return "$" + string(a) }

// AffordanceURI addresses one affordance of a resource:
// {resource-uri}${affordance}
type AffordanceURI struct {
	resource   ResourceURI
	affordance Affordance
}

// DecodeAffordanceURI parses "{resource-uri}${affordance}"
func DecodeAffordanceURI(s string) (AffordanceURI, error) {
	base, suffix, ok := strings.Cut(s, "$")
	if !ok {
		return AffordanceURI{}, fmt.Errorf("affordance URI %q has no $ suffix", s)
	}
	resource, err := DecodeResourceURI(base)
	if err != nil {
		return AffordanceURI{}, err
	}
	aff, err := DecodeAffordance(suffix)
	if err != nil {
		return AffordanceURI{}, err
	}
	return AffordanceURI{resource: resource, affordance: aff}, nil
}

func (u AffordanceURI) String() string {
	return u.resource.String() + u.affordance.Suffix()
}

// Resource returns the addressed resource
func (u AffordanceURI) Resource() ResourceURI { return u.resource }

// Affordance returns the addressed affordance
func (u AffordanceURI) Affordance() Affordance { return u.affordance }
