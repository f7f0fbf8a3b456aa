// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package model holds the uniform content model of the gateway: bundles,
// relations, sparse metadata deltas and the append-only resource history
// with its deterministic merged view.
package model

import (
	"reflect"

	"gopkg.in/yaml.v3"
)

// Opt is a three-state field: unset, set-to-null, or set-to-value. The
// distinction survives YAML: an absent key stays unset, an explicit null
// decodes as set-to-null. Diff and merge depend on all three states being
// preserved exactly.
type Opt[T any] struct {
	present bool
	null    bool
	value   T
}

// Set returns a set-to-value Opt
func Set[T any](v T) Opt[T] { return Opt[T]{present: true, value: v} }

// Null returns a set-to-null Opt
func Null[T any]() Opt[T] { return Opt[T]{present: true, null: true} }

// Unset returns the unset Opt
func Unset[T any]() Opt[T] { return Opt[T]{} }

// IsSet reports whether the field carries a state (value or null)
func (o Opt[T]) IsSet() bool { return o.present }

// IsNull reports whether the field is explicitly null
func (o Opt[T]) IsNull() bool { return o.present && o.null }

// Value returns the value and whether one is set
func (o Opt[T]) Value() (T, bool) {
	if !o.present || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// OrElse returns the value or def when no value is set
func (o Opt[T]) OrElse(def T) T {
	if v, ok := o.Value(); ok {
		return v
	}
	return def
}

// IsZero makes unset fields disappear under yaml omitempty
func (o Opt[T]) IsZero() bool { return !o.present }

// MarshalYAML encodes null or the value
func (o Opt[T]) MarshalYAML() (interface{}, error) {
	if o.null {
		return nil, nil
	}
	return o.value, nil
}

// UnmarshalYAML decodes null or the value; it is only invoked for present
// keys, so absence keeps the unset state
func (o *Opt[T]) UnmarshalYAML(node *yaml.Node) error {
	o.present = true
	if node.Tag == "!!null" {
		o.null = true
		return nil
	}
	o.null = false
	return node.Decode(&o.value)
}

// equalOpt compares two fields state-by-state
func equalOpt[T any](a, b Opt[T]) bool {
	if a.present != b.present || a.null != b.null {
		return false
	}
	if !a.present || a.null {
		return true
	}
	return reflect.DeepEqual(a.value, b.value)
}

// diffOpt keeps cur only when it is set and changes the merged state
func diffOpt[T any](cur, before Opt[T]) Opt[T] {
	if !cur.present || equalOpt(cur, before) {
		return Unset[T]()
	}
	return cur
}

// mergeOpt applies an update with non-unset-wins semantics
func mergeOpt[T any](base, upd Opt[T]) Opt[T] {
	if upd.present {
		return upd
	}
	return base
}
