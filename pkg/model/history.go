// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// IngestionError reports a violated history invariant
type IngestionError string

func (e IngestionError) Error() string { return string(e) }

// ResourceHistory is the append-only delta log of one resource. The first
// delta always carries a locator; the merged view is cached and recomputed
// lazily after updates.
type ResourceHistory struct {
	deltas []ResourceDelta
	view   *ResourceView
}

// NewResourceHistory starts a history with its initial delta
func NewResourceHistory(first ResourceDelta) (*ResourceHistory, error) {
	if first.Locator == nil {
		return nil, IngestionError("the first delta of a resource history must set a locator")
	}
	return &ResourceHistory{deltas: []ResourceDelta{first}}, nil
}

// Deltas returns the log in append order
func (h *ResourceHistory) Deltas() []ResourceDelta { return h.deltas }

// Merged returns the deterministic left-fold of the history
func (h *ResourceHistory) Merged() *ResourceView {
	if h.view == nil {
		h.view = foldHistory(h.deltas)
	}
	return h.view
}

// Update appends delta.Diff(Merged()) when the diff is non-empty and
// reports whether the history changed. Appending the same delta twice is a
// no-op the second time.
func (h *ResourceHistory) Update(delta ResourceDelta) (bool, error) {
	if len(h.deltas) == 0 {
		if delta.Locator == nil {
			return false, IngestionError("the first delta of a resource history must set a locator")
		}
		h.deltas = []ResourceDelta{delta}
		h.view = nil
		return true, nil
	}
	diffed := delta.Diff(h.Merged())
	if diffed.IsEmpty() {
		return false, nil
	}
	h.deltas = append(h.deltas, diffed)
	h.view = nil
	return true, nil
}

type historyYAML struct {
	History []ResourceDelta `yaml:"history"`
}

// MarshalYAML encodes the delta log
func (h ResourceHistory) MarshalYAML() (interface{}, error) {
	return historyYAML{History: h.deltas}, nil
}

// UnmarshalYAML decodes the log and re-checks the locator invariant
func (h *ResourceHistory) UnmarshalYAML(node *yaml.Node) error {
	var raw historyYAML
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if len(raw.History) == 0 {
		return IngestionError("a persisted resource history must not be empty")
	}
	if raw.History[0].Locator == nil {
		return IngestionError(fmt.Sprintf("the first of %d history deltas carries no locator", len(raw.History)))
	}
	h.deltas = raw.History
	h.view = nil
	return nil
}
