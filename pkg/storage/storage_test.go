// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nandam/nandam/pkg/locators"
	"github.com/nandam/nandam/pkg/model"
	"github.com/nandam/nandam/pkg/storage"
	"github.com/nandam/nandam/pkg/uri"
)

func TestKeyLayout(t *testing.T) {
	u := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")
	assert.Equal(t, "v1/resource/github/file/acme/widget/README.md.yml", storage.ResourceKey(u))
	assert.Equal(t, "v1/observed/github+file+acme+widget+README.md/body.yml", storage.ObservedKey(u, uri.AffordanceBody))

	bare := uri.MustResourceURI("confluence", "page", "ENG", "12345")
	assert.Equal(t, "v1/resource/confluence/page/ENG/12345.yml", storage.ResourceKey(bare))

	alias := storage.AliasKey("https://example.com/some/page")
	assert.Regexp(t, `^v1/alias/[0-9a-f]{40}\.yml$`, alias)
	// stable across calls, distinct across references
	assert.Equal(t, alias, storage.AliasKey("https://example.com/some/page"))
	assert.NotEqual(t, alias, storage.AliasKey("https://example.com/other"))
}

func TestObjectStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	_, err := store.Get(ctx, "v1/resource/missing.yml")
	var notFound storage.ErrNotFound
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, store.Set(ctx, "v1/alias/abc.yml", []byte("x")))
	require.NoError(t, store.Set(ctx, "v1/alias/def.yml", []byte("y")))
	require.NoError(t, store.Set(ctx, "v1/resource/github/file/a.yml", []byte("z")))

	keys, err := store.List(ctx, "v1/alias/")
	require.NoError(t, err)
	assert.Equal(t, []string{"v1/alias/abc.yml", "v1/alias/def.yml"}, keys)

	require.NoError(t, store.Delete(ctx, "v1/alias/abc.yml"))
	require.NoError(t, store.Delete(ctx, "v1/alias/abc.yml"))
	_, err = store.Get(ctx, "v1/alias/abc.yml")
	assert.ErrorAs(t, err, &notFound)
}

func TestHistoryStore(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewService(storage.NewMemoryStore())
	u := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")

	_, found, err := svc.GetHistory(ctx, u)
	require.NoError(t, err)
	assert.False(t, found)

	loc := &locators.GitHubFile{RealmName: "github", Owner: "acme", Repo: "widget", Ref: "main", IsDefaultBranch: true, Path: []string{"README.md"}}
	history, err := model.NewResourceHistory(model.ResourceDelta{
		RefreshedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Locator:     loc,
		Metadata:    model.MetadataDelta{Name: model.Set("README.md")},
	})
	require.NoError(t, err)
	require.NoError(t, svc.SetHistory(ctx, u, history))

	restored, found, err := svc.GetHistory(ctx, u)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, loc, restored.Merged().Locator)
}

func TestAliasStore(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewService(storage.NewMemoryStore())
	ref := "ext://jira/PROJ-42"
	loc := &locators.JiraIssue{RealmName: "jira", Domain: "issues.example.com", Key: "PROJ-42"}

	_, found, err := svc.GetAlias(ctx, ref)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, svc.SetAlias(ctx, ref, loc))
	got, found, err := svc.GetAlias(ctx, ref)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, loc, got)
}

func TestRelationStoreBackreferences(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewService(storage.NewMemoryStore())
	a := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")
	b := uri.MustResourceURI("confluence", "page", "ENG", "12345")
	c := uri.MustResourceURI("jira", "issue", "PROJ", "PROJ-42")

	rels := []model.Relation{
		model.NewLink(a, b),
		model.NewMisc("blocked by", c, b),
		model.NewLink(a, b), // duplicate, stored once
	}
	require.NoError(t, svc.SetRelations(ctx, rels))

	idsA, err := svc.RelationsOf(ctx, a)
	require.NoError(t, err)
	require.Len(t, idsA, 1)
	assert.Equal(t, model.NewLink(a, b).UniqueID(), idsA[0])

	// b participates in both relations
	idsB, err := svc.RelationsOf(ctx, b)
	require.NoError(t, err)
	assert.Len(t, idsB, 2)

	r, found, err := svc.GetRelation(ctx, idsA[0])
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, model.NewLink(a, b), r)

	none, err := svc.RelationsOf(ctx, uri.MustResourceURI("www", "page", "unrelated"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestBundleStore(t *testing.T) {
	ctx := context.Background()
	svc := storage.NewService(storage.NewMemoryStore())
	u := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")

	_, found, err := svc.GetBundle(ctx, u, uri.AffordanceBody)
	require.NoError(t, err)
	assert.False(t, found)

	bundle := &model.Fragment{Mode: model.FragmentMarkdown, Text: "# Title"}
	require.NoError(t, svc.SetBundle(ctx, u, uri.AffordanceBody, bundle))

	got, found, err := svc.GetBundle(ctx, u, uri.AffordanceBody)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, bundle, got)

	require.NoError(t, svc.DeleteBundle(ctx, u, uri.AffordanceBody))
	_, found, err = svc.GetBundle(ctx, u, uri.AffordanceBody)
	require.NoError(t, err)
	assert.False(t, found)
}
