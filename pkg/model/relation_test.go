// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package model_test

import (
	"testing"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationUniqueID(t *testing.T) {
	a := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")
	b := uri.MustResourceURI("confluence", "page", "ENG", "1")

	link := model.NewLink(a, b)
	id := link.UniqueID()
	assert.Equal(t, "link", id.Kind())

	// stable across runs and calls
	assert.Equal(t, id, model.NewLink(a, b).UniqueID())

	// kind participates in the digest input
	assert.NotEqual(t, id.String(), model.NewEmbed(a, b).UniqueID().String())

	// parse keeps the kind
	parsed, err := ident.DecodeRelationID(id.String())
	require.NoError(t, err)
	assert.Equal(t, "link", parsed.Kind())
}

func TestMiscSubkindNormalization(t *testing.T) {
	a := uri.MustResourceURI("jira", "issue", "PROJ", "PROJ-42")
	b := uri.MustResourceURI("jira", "issue", "PROJ", "PROJ-43")
	r := model.NewMisc("  Blocked By ", a, b)
	assert.Equal(t, "blocked_by", r.Subkind)
	assert.Equal(t, r.UniqueID(), model.NewMisc("blocked-by", a, b).UniqueID())
}

func TestRelationEndpoints(t *testing.T) {
	parent := uri.MustResourceURI("github", "tree", "acme", "widget")
	child := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")
	r := model.NewParent(parent, child)
	assert.Equal(t, parent, r.GetSource())
	assert.Equal(t, []uri.ResourceURI{child}, r.GetTargets())
	assert.Equal(t, []uri.ResourceURI{parent, child}, r.Endpoints())
}

func TestSortRelations(t *testing.T) {
	a := uri.MustResourceURI("www", "page", "aaaa")
	b := uri.MustResourceURI("www", "page", "bbbb")
	c := uri.MustResourceURI("www", "page", "cccc")
	in := []model.Relation{
		model.NewLink(a, b),
		model.NewLink(a, c),
		model.NewLink(a, b),
		model.NewEmbed(a, c),
	}
	out := model.SortRelations(in)
	require.Len(t, out, 3)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].UniqueID().String(), out[i].UniqueID().String())
	}
}
