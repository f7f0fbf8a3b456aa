// SPDX-FileCopyrightText: 2023 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package uri_test

import (
	"testing"

	"github.com/nandam/nandam/pkg/ident"
	"github.com/nandam/nandam/pkg/uri"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceURIRoundtrip(t *testing.T) {
	cases := []string{
		"ndk://github/file/acme/widget/README.md",
		"ndk://public/arxiv/2301.00001v2",
		"ndk://www/page/0a1b2c",
		"ndk://confluence/page",
	}
	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			u, err := uri.DecodeResourceURI(s)
			require.NoError(t, err)
			assert.Equal(t, s, u.String())
			again, err := uri.DecodeResourceURI(u.String())
			require.NoError(t, err)
			assert.Equal(t, u, again)
		})
	}
}

func TestResourceURIErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"ndk://github",
		"ndk://github/file/..",
		"http://github.com/x",
		"ndk://gi thub/file",
	} {
		_, err := uri.DecodeResourceURI(s)
		assert.Error(t, err, s)
	}
}

func TestResourceURIParts(t *testing.T) {
	u, err := uri.NewResourceURI("github", "file", "acme", "widget", "README.md")
	require.NoError(t, err)
	assert.Equal(t, "github", u.Realm())
	assert.Equal(t, "file", u.Subrealm())
	assert.Equal(t, []string{"acme", "widget", "README.md"}, u.Path())
	assert.True(t, u.Less(uri.MustResourceURI("gitlab", "file")))
}

func TestChildAffordance(t *testing.T) {
	u := uri.MustResourceURI("github", "file", "acme", "widget", "README.md")
	a := u.ChildAffordance(uri.AffordanceBody)
	assert.Equal(t, "ndk://github/file/acme/widget/README.md$body", a.String())

	parsed, err := uri.DecodeAffordanceURI(a.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed.Resource())
	assert.Equal(t, uri.AffordanceBody, parsed.Affordance())

	_, err = uri.DecodeAffordanceURI(u.String())
	assert.Error(t, err)
	_, err = uri.DecodeAffordanceURI(u.String() + "$markdown")
	assert.Error(t, err)
}

func TestExternalURI(t *testing.T) {
	u, err := uri.DecodeExternalURI("ext://outlook/AAMkADM1b2...")
	require.NoError(t, err)
	assert.Equal(t, "outlook/AAMkADM1b2...", u.Opaque())

	_, err = uri.DecodeExternalURI("ext://")
	assert.Error(t, err)
	_, err = uri.DecodeExternalURI("ndk://github/file")
	assert.Error(t, err)
}

func TestWebURLQueryOrder(t *testing.T) {
	w, err := uri.ParseWebURL("https://example.com/a/b?z=1&a=2&z=3#frag")
	require.NoError(t, err)
	assert.Equal(t, "example.com", w.Host())
	assert.Equal(t, "/a/b", w.Path())
	assert.Equal(t, "frag", w.Fragment())
	assert.Equal(t, []uri.QueryPair{{"z", "1"}, {"a", "2"}, {"z", "3"}}, w.QueryPairs())

	v, ok := w.GetQuery("z")
	require.True(t, ok)
	assert.Equal(t, "1", v)
	_, ok = w.GetQuery("missing")
	assert.False(t, ok)
}

func TestTryJoinHref(t *testing.T) {
	base, err := uri.ParseWebURL("https://example.com/docs/usage/index.html")
	require.NoError(t, err)

	cases := []struct {
		href string
		want string
	}{
		{"../install.md", "https://example.com/docs/install.md"},
		{"./img/logo.png", "https://example.com/docs/usage/img/logo.png"},
		{"/root.md", "https://example.com/root.md"},
		{"//cdn.example.com/x.js", "https://cdn.example.com/x.js"},
		{"https://other.com/y", "https://other.com/y"},
		{"?page=2", "https://example.com/docs/usage/index.html?page=2"},
	}
	for _, c := range cases {
		t.Run(c.href, func(t *testing.T) {
			got, err := base.TryJoinHref(c.href)
			require.NoError(t, err)
			assert.Equal(t, c.want, got.String())
			assert.NotContains(t, got.String(), "/./")
			assert.NotContains(t, got.String(), "/../")
		})
	}

	_, err = base.TryJoinHref("mailto:someone@example.com")
	assert.Error(t, err)
}

func TestFragmentURI(t *testing.T) {
	self := uri.SelfFragmentURI()
	assert.Equal(t, "self://~", self.String())
	assert.True(t, self.IsSelf())

	path, err := ident.DecodeFilePath("img/diagram.png")
	require.NoError(t, err)
	f := uri.NewFragmentURI(path)
	assert.Equal(t, "self://img/diagram.png", f.String())

	parsed, err := uri.DecodeFragmentURI("self://img/diagram.png")
	require.NoError(t, err)
	assert.Equal(t, f, parsed)

	parsed, err = uri.DecodeFragmentURI("self://~")
	require.NoError(t, err)
	assert.True(t, parsed.IsSelf())

	_, err = uri.DecodeFragmentURI("self://")
	assert.Error(t, err)
	_, err = uri.DecodeFragmentURI("data:x/y;base64,")
	assert.Error(t, err)
}
